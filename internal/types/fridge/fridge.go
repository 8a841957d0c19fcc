package fridge

import "time"

type Item struct {
	ID        string     `json:"id" firestore:"-"`
	Name      string     `json:"name" firestore:"name"`
	Quantity  float64    `json:"quantity" firestore:"quantity"`
	Unit      string     `json:"unit" firestore:"unit,omitempty"`
	Category  string     `json:"category" firestore:"category,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" firestore:"expiresAt,omitempty"`
	AddedBy   string     `json:"addedBy" firestore:"addedBy"`
	CreatedAt time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" firestore:"updatedAt"`
}

type AddItemRequest struct {
	Name      string     `json:"name"`
	Quantity  float64    `json:"quantity"`
	Unit      string     `json:"unit"`
	Category  string     `json:"category"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

type UpdateQuantityRequest struct {
	Quantity float64 `json:"quantity"`
}
