package models

import "time"

// Review is left by the owner of a completed booking. One per booking.
type Review struct {
	ID          int64     `json:"id"`
	BookingID   int64     `json:"booking_id"`
	DogSitterID int64     `json:"dogsitter_id"`
	UserID      int64     `json:"user_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
