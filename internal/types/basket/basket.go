package basket

import "time"

type Item struct {
	ID        string    `json:"id" firestore:"-"`
	Name      string    `json:"name" firestore:"name"`
	Quantity  float64   `json:"quantity" firestore:"quantity"`
	Unit      string    `json:"unit" firestore:"unit,omitempty"`
	Ticked    bool      `json:"ticked" firestore:"ticked"`
	AddedBy   string    `json:"addedBy" firestore:"addedBy"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

type AddItemRequest struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}
