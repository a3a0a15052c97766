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

const animalColumns = `id, user_id, name, type, breed, age, size, special_needs, photo_url, created_at`

func scanAnimal(row rowScanner) (*models.Animal, error) {
	var a models.Animal
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Type, &a.Breed, &a.Age, &a.Size,
		&a.SpecialNeeds, &a.PhotoURL, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) CreateAnimal(ctx context.Context, animal *models.Animal) error {
	now := time.Now()
	query := `INSERT INTO animals (user_id, name, type, breed, age, size, special_needs, photo_url, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		animal.UserID, animal.Name, animal.Type, animal.Breed, animal.Age, animal.Size,
		animal.SpecialNeeds, animal.PhotoURL, now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to create animal: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	animal.ID = id
	animal.CreatedAt = now
	return nil
}

func (db *DB) GetAnimal(ctx context.Context, id int64) (*models.Animal, error) {
	row := db.QueryRowContext(ctx, `SELECT `+animalColumns+` FROM animals WHERE id = ?`, id)
	animal, err := scanAnimal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get animal: %w", err)
	}
	return animal, nil
}

// ListAnimals returns animals matching the filter ordered by name.
// A search term matches name or breed case-insensitively.
func (db *DB) ListAnimals(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Size != "" {
		where = append(where, "size = ?")
		args = append(args, filter.Size)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "(name LIKE ? OR breed LIKE ?)")
		pattern := "%" + s + "%"
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + animalColumns + ` FROM animals`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list animals: %w", err)
	}
	defer rows.Close()

	animals := make([]models.Animal, 0)
	for rows.Next() {
		a, err := scanAnimal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan animal: %w", err)
		}
		animals = append(animals, *a)
	}
	return animals, rows.Err()
}

func (db *DB) UpdateAnimal(ctx context.Context, animal *models.Animal) error {
	query := `UPDATE animals SET name = ?, type = ?, breed = ?, age = ?, size = ?, special_needs = ?, photo_url = ?
			WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		animal.Name, animal.Type, animal.Breed, animal.Age, animal.Size, animal.SpecialNeeds, animal.PhotoURL, animal.ID)
	if err != nil {
		return fmt.Errorf("failed to update animal: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteAnimal removes the animal. It is refused while the animal is part of
// a pending or confirmed booking.
func (db *DB) DeleteAnimal(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM booking_animals ba
			JOIN bookings b ON b.id = ba.booking_id
			WHERE ba.animal_id = ? AND b.status IN (?, ?)`,
			id, models.StatusPending, models.StatusConfirmed,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("failed to check animal bookings: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("%w: animal has active bookings", domain.ErrConflict)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM animals WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete animal: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
