package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
)

const sitterSelect = `SELECT s.id, s.user_id, u.first_name, u.last_name, s.description, s.experience_years,
	s.rating, s.total_reviews, s.is_blocked, s.avatar_url, s.price_small, s.price_medium, s.price_large, s.created_at
	FROM dog_sitters s JOIN users u ON u.id = s.user_id`

var sitterOrder = map[string]string{
	models.SitterSortRating:        "s.rating DESC",
	models.SitterSortRatingDesc:    "s.rating DESC",
	models.SitterSortRatingAsc:     "s.rating ASC",
	models.SitterSortExperience:    "s.experience_years DESC",
	models.SitterSortExperienceAsc: "s.experience_years ASC",
	models.SitterSortReviews:       "s.total_reviews DESC",
	models.SitterSortReviewsAsc:    "s.total_reviews ASC",
	models.SitterSortName:          "u.last_name ASC, u.first_name ASC",
	models.SitterSortNameDesc:      "u.last_name DESC, u.first_name DESC",
}

func scanSitter(row rowScanner) (*models.DogSitter, error) {
	var s models.DogSitter
	if err := row.Scan(&s.ID, &s.UserID, &s.FirstName, &s.LastName, &s.Description, &s.ExperienceYears,
		&s.Rating, &s.TotalReviews, &s.IsBlocked, &s.AvatarURL, &s.PriceSmall, &s.PriceMedium, &s.PriceLarge,
		&s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSitter registers a sitter profile. A user can hold only one.
func (db *DB) CreateSitter(ctx context.Context, sitter *models.DogSitter) error {
	now := time.Now()
	query := `INSERT INTO dog_sitters (user_id, description, experience_years, avatar_url,
				price_small, price_medium, price_large, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		sitter.UserID, sitter.Description, sitter.ExperienceYears, sitter.AvatarURL,
		sitter.PriceSmall, sitter.PriceMedium, sitter.PriceLarge, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user already has a sitter profile", domain.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to create dog sitter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	created, err := db.GetSitter(ctx, id)
	if err != nil {
		return err
	}
	*sitter = *created
	return nil
}

func (db *DB) GetSitter(ctx context.Context, id int64) (*models.DogSitter, error) {
	return db.getSitter(ctx, db.DB, "s.id = ?", id)
}

func (db *DB) GetSitterByUserID(ctx context.Context, userID int64) (*models.DogSitter, error) {
	return db.getSitter(ctx, db.DB, "s.user_id = ?", userID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (db *DB) getSitter(ctx context.Context, q queryRower, cond string, arg any) (*models.DogSitter, error) {
	sitter, err := scanSitter(q.QueryRowContext(ctx, sitterSelect+" WHERE "+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dog sitter: %w", err)
	}
	return sitter, nil
}

// UpdateSitter saves the editable profile fields. Rating and block state are
// managed separately.
func (db *DB) UpdateSitter(ctx context.Context, sitter *models.DogSitter) error {
	query := `UPDATE dog_sitters SET description = ?, experience_years = ?, avatar_url = ?,
				price_small = ?, price_medium = ?, price_large = ?
			WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		sitter.Description, sitter.ExperienceYears, sitter.AvatarURL,
		sitter.PriceSmall, sitter.PriceMedium, sitter.PriceLarge, sitter.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update dog sitter: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) SetSitterBlocked(ctx context.Context, id int64, blocked bool) error {
	result, err := db.ExecContext(ctx, `UPDATE dog_sitters SET is_blocked = ? WHERE id = ?`, blocked, id)
	if err != nil {
		return fmt.Errorf("failed to update dog sitter block state: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSitters returns one page of sitters matching the filter together with
// the total number of matches.
func (db *DB) ListSitters(ctx context.Context, filter models.SitterFilter) ([]models.DogSitter, int, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeBlocked {
		where = append(where, "s.is_blocked = 0")
	}
	if filter.MinRating != nil {
		where = append(where, "s.rating >= ?")
		args = append(args, *filter.MinRating)
	}
	if filter.MaxRating != nil {
		where = append(where, "s.rating <= ?")
		args = append(args, *filter.MaxRating)
	}
	if filter.MinExperience != nil {
		where = append(where, "s.experience_years >= ?")
		args = append(args, *filter.MinExperience)
	}
	if filter.MaxExperience != nil {
		where = append(where, "s.experience_years <= ?")
		args = append(args, *filter.MaxExperience)
	}
	if filter.MinReviews != nil {
		where = append(where, "s.total_reviews >= ?")
		args = append(args, *filter.MinReviews)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		where = append(where, "(u.first_name LIKE ? OR u.last_name LIKE ?)")
		pattern := "%" + name + "%"
		args = append(args, pattern, pattern)
	}
	if filter.HasReviews != nil {
		if *filter.HasReviews {
			where = append(where, "s.total_reviews > 0")
		} else {
			where = append(where, "s.total_reviews = 0")
		}
	}
	if filter.IsAvailable != nil {
		today := models.Today()
		busy := `EXISTS (SELECT 1 FROM bookings b WHERE b.dog_sitter_id = s.id AND b.status = ?
			AND b.start_date <= ? AND b.end_date >= ?)`
		if *filter.IsAvailable {
			where = append(where, "s.is_blocked = 0 AND NOT "+busy)
		} else {
			where = append(where, "(s.is_blocked = 1 OR "+busy+")")
		}
		args = append(args, models.StatusConfirmed, today, today)
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM dog_sitters s JOIN users u ON u.id = s.user_id` + cond
	if err := db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count dog sitters: %w", err)
	}

	order, ok := sitterOrder[filter.SortBy]
	if !ok {
		order = sitterOrder[models.SitterSortRating]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	query := sitterSelect + cond + " ORDER BY " + order + ", s.id LIMIT ? OFFSET ?"
	rows, err := db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list dog sitters: %w", err)
	}
	defer rows.Close()

	sitters := make([]models.DogSitter, 0)
	for rows.Next() {
		s, err := scanSitter(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan dog sitter: %w", err)
		}
		sitters = append(sitters, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return sitters, total, nil
}
