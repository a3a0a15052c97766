package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
)

const reviewSelect = `SELECT r.id, r.booking_id, b.dog_sitter_id, b.user_id, r.rating, r.comment, r.created_at
	FROM reviews r JOIN bookings b ON b.id = r.booking_id`

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	if err := row.Scan(&r.ID, &r.BookingID, &r.DogSitterID, &r.UserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateReview stores the review of a completed booking and refreshes the
// sitter rating in the same transaction. review.UserID must be the booking owner.
func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	if review.Rating < models.MinRating || review.Rating > models.MaxRating {
		return fmt.Errorf("%w: rating must be between %d and %d", domain.ErrValidation, models.MinRating, models.MaxRating)
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		var (
			ownerID, sitterID int64
			status            string
		)
		err := tx.QueryRowContext(ctx, `SELECT user_id, dog_sitter_id, status FROM bookings WHERE id = ?`,
			review.BookingID).Scan(&ownerID, &sitterID, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load booking: %w", err)
		}
		if ownerID != review.UserID {
			return fmt.Errorf("%w: only the booking owner can leave a review", domain.ErrForbidden)
		}
		if status != models.StatusCompleted {
			return fmt.Errorf("%w: only completed bookings can be reviewed", domain.ErrValidation)
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO reviews (booking_id, rating, comment, created_at) VALUES (?, ?, ?, ?)`,
			review.BookingID, review.Rating, review.Comment, now)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyReviewed
			}
			return fmt.Errorf("failed to create review: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		review.ID = id
		review.DogSitterID = sitterID
		review.CreatedAt = now
		return refreshSitterRating(ctx, tx, sitterID)
	})
}

// refreshSitterRating recomputes rating (rounded to two decimals, 0 without
// reviews) and total_reviews of the sitter.
func refreshSitterRating(ctx context.Context, tx *sql.Tx, sitterID int64) error {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := tx.QueryRowContext(ctx, `
		SELECT AVG(r.rating), COUNT(r.id) FROM reviews r
		JOIN bookings b ON b.id = r.booking_id
		WHERE b.dog_sitter_id = ?`, sitterID).Scan(&avg, &count)
	if err != nil {
		return fmt.Errorf("failed to aggregate reviews: %w", err)
	}

	rating := 0.0
	if avg.Valid {
		rating = math.Round(avg.Float64*100) / 100
	}
	if _, err := tx.ExecContext(ctx, `UPDATE dog_sitters SET rating = ?, total_reviews = ? WHERE id = ?`,
		rating, count, sitterID); err != nil {
		return fmt.Errorf("failed to update sitter rating: %w", err)
	}
	return nil
}

func (db *DB) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	review, err := scanReview(db.QueryRowContext(ctx, reviewSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

func (db *DB) GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error) {
	review, err := scanReview(db.QueryRowContext(ctx, reviewSelect+` WHERE r.booking_id = ?`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return review, nil
}

// ListSitterReviews returns the newest reviews of a sitter first.
func (db *DB) ListSitterReviews(ctx context.Context, sitterID int64, limit, offset int) ([]models.Review, int, error) {
	var total int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews r JOIN bookings b ON b.id = r.booking_id
		WHERE b.dog_sitter_id = ?`, sitterID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	rows, err := db.QueryContext(ctx, reviewSelect+` WHERE b.dog_sitter_id = ? ORDER BY r.created_at DESC, r.id DESC
		LIMIT ? OFFSET ?`, sitterID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]models.Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// DeleteReview removes a review and refreshes the sitter rating. It returns
// the deleted review.
func (db *DB) DeleteReview(ctx context.Context, id int64) (*models.Review, error) {
	var review *models.Review
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		review, err = scanReview(tx.QueryRowContext(ctx, reviewSelect+` WHERE r.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load review: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete review: %w", err)
		}
		return refreshSitterRating(ctx, tx, review.DogSitterID)
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}
