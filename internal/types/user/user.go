package user

import "time"

type User struct {
	ID           string    `json:"id" firestore:"-"`
	Email        string    `json:"email" firestore:"email"`
	DisplayName  string    `json:"displayName" firestore:"displayName"`
	ImageURL     string    `json:"imageUrl" firestore:"imageUrl,omitempty"`
	FamilyID     string    `json:"familyId,omitempty" firestore:"familyId,omitempty"`
	RCFallbackID string    `json:"-" firestore:"rcFallbackId,omitempty"`
	FCMTokens    []string  `json:"-" firestore:"fcmTokens,omitempty"`
	CreatedAt    time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt"`
}

type CreateUserRequest struct {
	ClerkID     string `json:"clerkId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	ImageURL    string `json:"imageUrl"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"displayName"`
	ImageURL    string `json:"imageUrl"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
}
