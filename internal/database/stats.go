package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"dogsitter/internal/models"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// GetUserBookingStats aggregates every booking of the owner. Money totals
// count completed bookings only, price extremes and durations count all.
func (db *DB) GetUserBookingStats(ctx context.Context, userID int64) (*models.UserBookingStats, error) {
	var (
		stats                models.UserBookingStats
		completed, pending   sql.NullInt64
		confirmed, cancelled sql.NullInt64
		spent                sql.NullInt64
		avgPrice, avgDays    sql.NullFloat64
		maxPrice, minPrice   sql.NullInt64
		longest, shortest    sql.NullFloat64
	)
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'confirmed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN total_price ELSE 0 END),
			AVG(total_price), MAX(total_price), MIN(total_price),
			MAX(julianday(end_date) - julianday(start_date)),
			MIN(julianday(end_date) - julianday(start_date)),
			AVG(julianday(end_date) - julianday(start_date))
		FROM bookings WHERE user_id = ?`, userID,
	).Scan(&stats.TotalBookings, &completed, &pending, &confirmed, &cancelled, &spent,
		&avgPrice, &maxPrice, &minPrice, &longest, &shortest, &avgDays)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user bookings: %w", err)
	}

	stats.CompletedBookings = int(completed.Int64)
	stats.PendingBookings = int(pending.Int64)
	stats.ConfirmedBookings = int(confirmed.Int64)
	stats.CancelledBookings = int(cancelled.Int64)
	stats.ActiveBookings = stats.PendingBookings + stats.ConfirmedBookings
	stats.TotalSpent = models.Money(spent.Int64)
	stats.AvgBookingPrice = models.Money(math.Round(avgPrice.Float64))
	stats.MaxBookingPrice = models.Money(maxPrice.Int64)
	stats.MinBookingPrice = models.Money(minPrice.Int64)
	stats.LongestBooking = int(math.Round(longest.Float64))
	stats.ShortestBooking = int(math.Round(shortest.Float64))
	stats.AvgBookingDuration = round2(avgDays.Float64)

	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM booking_animals ba
		JOIN bookings b ON b.id = ba.booking_id WHERE b.user_id = ?`, userID).Scan(&stats.TotalAnimals)
	if err != nil {
		return nil, fmt.Errorf("failed to count booked animals: %w", err)
	}
	return &stats, nil
}

// GetUpcomingBookings returns pending and confirmed bookings starting today or later.
func (db *DB) GetUpcomingBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.user_id = ? AND b.start_date >= ? AND b.status IN (?, ?)
		ORDER BY b.start_date, b.id`,
		userID, models.Today(), models.StatusPending, models.StatusConfirmed)
}

// GetBookingHistory returns bookings that ended within the last days days.
func (db *DB) GetBookingHistory(ctx context.Context, userID int64, days int) ([]models.Booking, error) {
	if days <= 0 {
		days = models.DefaultHistoryDays
	}
	today := models.Today()
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings b
		WHERE b.user_id = ? AND b.end_date >= ? AND b.end_date <= ?
		ORDER BY b.end_date DESC, b.id DESC`,
		userID, today.AddDays(-days), today)
}

// GetBookingsByMonth groups the owner's bookings by the month they start in,
// newest month first.
func (db *DB) GetBookingsByMonth(ctx context.Context, userID int64) ([]models.MonthlyBookings, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT substr(b.start_date, 1, 7) AS month, COUNT(*), SUM(b.total_price), AVG(b.total_price),
			SUM((SELECT COUNT(*) FROM booking_animals ba WHERE ba.booking_id = b.id))
		FROM bookings b WHERE b.user_id = ?
		GROUP BY month ORDER BY month DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to group bookings by month: %w", err)
	}
	defer rows.Close()

	months := make([]models.MonthlyBookings, 0)
	for rows.Next() {
		var (
			m   models.MonthlyBookings
			avg float64
		)
		if err := rows.Scan(&m.Month, &m.BookingsCount, &m.TotalPrice, &avg, &m.AnimalsCount); err != nil {
			return nil, fmt.Errorf("failed to scan monthly bookings: %w", err)
		}
		m.AvgPrice = models.Money(math.Round(avg))
		months = append(months, m)
	}
	return months, rows.Err()
}

func (db *DB) GetSitterStatistics(ctx context.Context, sitterID int64) (*models.SitterStatistics, error) {
	sitter, err := db.GetSitter(ctx, sitterID)
	if err != nil {
		return nil, err
	}

	stats := models.SitterStatistics{DogSitterID: sitterID, AverageRating: sitter.Rating}
	var (
		active, completed, cancelled sql.NullInt64
		earnings                     sql.NullInt64
	)
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			SUM(CASE WHEN status IN ('pending', 'confirmed') THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'completed' THEN total_price ELSE 0 END)
		FROM bookings WHERE dog_sitter_id = ?`, sitterID,
	).Scan(&stats.TotalBookings, &active, &completed, &cancelled, &earnings)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sitter bookings: %w", err)
	}

	stats.ActiveBookings = int(active.Int64)
	stats.CompletedBookings = int(completed.Int64)
	stats.CancelledBookings = int(cancelled.Int64)
	stats.TotalEarnings = models.Money(earnings.Int64)
	if finished := stats.CompletedBookings + stats.CancelledBookings; finished > 0 {
		stats.SuccessRate = round2(float64(stats.CompletedBookings) / float64(finished) * 100)
	}
	return &stats, nil
}

// GetRatingSummary returns the per-score breakdown of the sitter's reviews.
// Scores 4 and 5 count as positive.
func (db *DB) GetRatingSummary(ctx context.Context, sitterID int64) (*models.RatingSummary, error) {
	if _, err := db.GetSitter(ctx, sitterID); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.rating, COUNT(*) FROM reviews r JOIN bookings b ON b.id = r.booking_id
		WHERE b.dog_sitter_id = ? GROUP BY r.rating`, sitterID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ratings: %w", err)
	}
	defer rows.Close()

	summary := &models.RatingSummary{DogSitterID: sitterID, Breakdown: make(map[int]int, models.MaxRating)}
	for score := models.MinRating; score <= models.MaxRating; score++ {
		summary.Breakdown[score] = 0
	}

	var sum, positive int
	for rows.Next() {
		var score, n int
		if err := rows.Scan(&score, &n); err != nil {
			return nil, fmt.Errorf("failed to scan rating row: %w", err)
		}
		summary.Breakdown[score] = n
		summary.Total += n
		sum += score * n
		if score >= 4 {
			positive += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if summary.Total > 0 {
		summary.Average = round2(float64(sum) / float64(summary.Total))
		summary.PositivePercent = round2(float64(positive) / float64(summary.Total) * 100)
	}
	return summary, nil
}

// GetSitterAvailability reports whether the sitter can take a booking for
// [start, end).
func (db *DB) GetSitterAvailability(ctx context.Context, sitterID int64, start, end models.Date) (*models.SitterAvailability, error) {
	sitter, err := db.GetSitter(ctx, sitterID)
	if err != nil {
		return nil, err
	}
	conflicts, err := db.CountSitterConflicts(ctx, sitterID, start, end, 0)
	if err != nil {
		return nil, err
	}
	return &models.SitterAvailability{
		DogSitterID: sitterID,
		StartDate:   start,
		EndDate:     end,
		Available:   !sitter.IsBlocked && conflicts == 0,
		IsBlocked:   sitter.IsBlocked,
		Conflicts:   conflicts,
	}, nil
}
