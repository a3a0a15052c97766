package models

// UserBookingStats aggregates an owner's bookings. Durations are in days.
type UserBookingStats struct {
	TotalBookings      int     `json:"total_bookings"`
	TotalAnimals       int     `json:"total_animals"`
	CompletedBookings  int     `json:"completed_bookings"`
	PendingBookings    int     `json:"pending_bookings"`
	ConfirmedBookings  int     `json:"confirmed_bookings"`
	CancelledBookings  int     `json:"cancelled_bookings"`
	ActiveBookings     int     `json:"active_bookings"`
	TotalSpent         Money   `json:"total_spent"`
	AvgBookingPrice    Money   `json:"avg_booking_price"`
	MaxBookingPrice    Money   `json:"max_booking_price"`
	MinBookingPrice    Money   `json:"min_booking_price"`
	LongestBooking     int     `json:"longest_booking"`
	ShortestBooking    int     `json:"shortest_booking"`
	AvgBookingDuration float64 `json:"avg_booking_duration"`
}

// MonthlyBookings is one row of the per-month breakdown.
type MonthlyBookings struct {
	Month         string `json:"month"`
	BookingsCount int    `json:"bookings_count"`
	TotalPrice    Money  `json:"total_price"`
	AvgPrice      Money  `json:"avg_price"`
	AnimalsCount  int    `json:"animals_count"`
}
