package models

// Service is a priced add-on that can be attached to a booking.
type Service struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Price       Money  `json:"price" yaml:"price"`
	IsActive    bool   `json:"is_active" yaml:"-"`
}
