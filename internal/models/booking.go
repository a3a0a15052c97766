package models

import "time"

type Booking struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	DogSitterID int64           `json:"dogsitter_id"`
	StartDate   Date            `json:"start_date"`
	EndDate     Date            `json:"end_date"`
	TotalPrice  Money           `json:"total_price"`
	Status      string          `json:"status"`
	Version     int64           `json:"version"`
	Animals     []BookingAnimal `json:"animals"`
	Services    []Service       `json:"services"`
	Review      *Review         `json:"review,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Days is the number of nights covered by the booking.
func (b *Booking) Days() int {
	return b.StartDate.DaysUntil(b.EndDate)
}

// IsActive reports whether the booking still occupies the sitter.
func (b *Booking) IsActive() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

// BookingAnimal is an animal attached to a booking with care instructions.
type BookingAnimal struct {
	AnimalID     int64     `json:"animal_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Size         string    `json:"size"`
	SpecialNotes string    `json:"special_notes,omitempty"`
	SpecialDiet  string    `json:"special_diet,omitempty"`
	Medications  string    `json:"medications,omitempty"`
	AddedAt      time.Time `json:"added_at"`
}

// BookingDraft is the input for creating or repricing a booking.
type BookingDraft struct {
	UserID      int64
	DogSitterID int64
	StartDate   Date
	EndDate     Date
	Animals     []BookingAnimal
	ServiceIDs  []int64
}

// Booking list sort keys.
const (
	BookingSortStartDate     = "start_date"
	BookingSortStartDateDesc = "-start_date"
	BookingSortPrice         = "total_price"
	BookingSortPriceDesc     = "-total_price"
	BookingSortCreated       = "created_at"
	BookingSortCreatedDesc   = "-created_at"
)

// BookingFilter holds booking list query parameters. Zero values are ignored.
type BookingFilter struct {
	Status      string
	StartFrom   Date
	EndTo       Date
	UserID      int64
	DogSitterID int64
	ServiceID   int64
	AnimalType  string
	HasReview   *bool
	Sort        string
	Limit       int
	Offset      int
}
