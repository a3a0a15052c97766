package models

import "time"

type DogSitter struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	FirstName       string    `json:"first_name"`
	LastName        string    `json:"last_name"`
	Description     string    `json:"description"`
	ExperienceYears int       `json:"experience_years"`
	Rating          float64   `json:"rating"`
	TotalReviews    int       `json:"total_reviews"`
	IsBlocked       bool      `json:"is_blocked"`
	AvatarURL       string    `json:"avatar,omitempty"`
	PriceSmall      Money     `json:"price_small"`
	PriceMedium     Money     `json:"price_medium"`
	PriceLarge      Money     `json:"price_large"`
	CreatedAt       time.Time `json:"created_at"`
}

// DailyRate returns the per-day price the sitter charges for one animal of the size.
func (s *DogSitter) DailyRate(size string) Money {
	switch size {
	case SizeSmall:
		return s.PriceSmall
	case SizeLarge:
		return s.PriceLarge
	default:
		return s.PriceMedium
	}
}

// Sitter list sort keys.
const (
	SitterSortRating        = "rating"
	SitterSortRatingDesc    = "-rating"
	SitterSortRatingAsc     = "rating_asc"
	SitterSortExperience    = "experience"
	SitterSortExperienceAsc = "experience_asc"
	SitterSortReviews       = "reviews"
	SitterSortReviewsAsc    = "reviews_asc"
	SitterSortName          = "name"
	SitterSortNameDesc      = "name_desc"
)

// SitterFilter holds the sitter directory query. Nil pointers are ignored.
type SitterFilter struct {
	MinRating      *float64
	MaxRating      *float64
	MinExperience  *int
	MaxExperience  *int
	MinReviews     *int
	Name           string
	HasReviews     *bool
	IsAvailable    *bool
	IncludeBlocked bool
	SortBy         string
	Limit          int
	Offset         int
}

// RatingSummary is the review breakdown shown on a sitter page.
type RatingSummary struct {
	DogSitterID     int64       `json:"dogsitter_id"`
	Average         float64     `json:"average"`
	Total           int         `json:"total"`
	Breakdown       map[int]int `json:"breakdown"`
	PositivePercent float64     `json:"positive_percent"`
}

type SitterStatistics struct {
	DogSitterID       int64   `json:"dogsitter_id"`
	TotalBookings     int     `json:"total_bookings"`
	ActiveBookings    int     `json:"active_bookings"`
	CompletedBookings int     `json:"completed_bookings"`
	CancelledBookings int     `json:"cancelled_bookings"`
	AverageRating     float64 `json:"average_rating"`
	TotalEarnings     Money   `json:"total_earnings"`
	SuccessRate       float64 `json:"success_rate"`
}

// SitterAvailability describes whether a sitter is free for a date range.
type SitterAvailability struct {
	DogSitterID int64 `json:"dogsitter_id"`
	StartDate   Date  `json:"start_date"`
	EndDate     Date  `json:"end_date"`
	Available   bool  `json:"available"`
	IsBlocked   bool  `json:"is_blocked"`
	Conflicts   int   `json:"conflicts"`
}
