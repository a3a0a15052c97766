package models

import "time"

type Animal struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Breed        string    `json:"breed"`
	Age          int       `json:"age"`
	Size         string    `json:"size"`
	SpecialNeeds string    `json:"special_needs"`
	PhotoURL     string    `json:"photo,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnimalFilter narrows animal searches. Zero values are ignored.
type AnimalFilter struct {
	UserID int64
	Type   string
	Size   string
	Search string
	Limit  int
}
