package family

import "time"

// Family is the shared household record. The premium* fields are written
// exclusively by the premium reconciler; everything else is managed by the
// family service.
type Family struct {
	ID               string     `json:"id" firestore:"-"`
	Name             string     `json:"name" firestore:"name"`
	InviteCode       string     `json:"inviteCode" firestore:"inviteCode"`
	CreatedBy        string     `json:"createdBy" firestore:"createdBy"`
	Members          []string   `json:"members" firestore:"members"`
	PremiumOwner     string     `json:"premiumOwner,omitempty" firestore:"premiumOwner,omitempty"`
	PremiumActive    bool       `json:"premiumActive" firestore:"premiumActive"`
	PremiumUntil     *time.Time `json:"premiumUntil,omitempty" firestore:"premiumUntil,omitempty"`
	PremiumUpdatedAt time.Time  `json:"premiumUpdatedAt,omitempty" firestore:"premiumUpdatedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt" firestore:"createdAt"`
}

type CreateFamilyRequest struct {
	Name string `json:"name"`
}

type JoinFamilyRequest struct {
	InviteCode string `json:"inviteCode"`
}
