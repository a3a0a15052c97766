package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	AnimalDog   = "dog"
	AnimalCat   = "cat"
	AnimalOther = "other"
)

const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
)

const (
	RoleUser   = "user"
	RoleSitter = "sitter"
	RoleAdmin  = "admin"
)

const (
	// DefaultPageSize is used by list endpoints when no limit is given.
	DefaultPageSize = 20
	// MaxPageSize caps the limit query parameter.
	MaxPageSize = 100
	// AnimalSearchLimit caps animal search results.
	AnimalSearchLimit = 20
	// DefaultHistoryDays is the window of the booking history view.
	DefaultHistoryDays = 90
	// MinRating and MaxRating bound review scores.
	MinRating = 1
	MaxRating = 5
)

var bookingTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsValidBookingStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

func IsValidAnimalType(s string) bool {
	switch s {
	case AnimalDog, AnimalCat, AnimalOther:
		return true
	}
	return false
}

func IsValidAnimalSize(s string) bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge:
		return true
	}
	return false
}
