package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
)

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO services (name, description, price, is_active) VALUES (?, ?, ?, ?)`,
		svc.Name, svc.Description, svc.Price, svc.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: service %q already exists", domain.ErrConflict, svc.Name)
		}
		return fmt.Errorf("failed to create service: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	svc.ID = id
	return nil
}

func (db *DB) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, price, is_active FROM services WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &s, nil
}

func (db *DB) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	query := `SELECT id, name, description, price, is_active FROM services`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := make([]models.Service, 0)
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (db *DB) UpdateService(ctx context.Context, svc *models.Service) error {
	result, err := db.ExecContext(ctx,
		`UPDATE services SET name = ?, description = ?, price = ?, is_active = ? WHERE id = ?`,
		svc.Name, svc.Description, svc.Price, svc.IsActive, svc.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: service %q already exists", domain.ErrConflict, svc.Name)
		}
		return fmt.Errorf("failed to update service: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeactivateService hides the service from new bookings. Existing bookings
// keep the price they were created with.
func (db *DB) DeactivateService(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE services SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate service: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpsertServiceByName inserts the service or refreshes description and price
// of the existing one with the same name. Used for catalog seeding.
func (db *DB) UpsertServiceByName(ctx context.Context, svc *models.Service) error {
	query := `INSERT INTO services (name, description, price, is_active) VALUES (?, ?, ?, 1)
			ON CONFLICT(name) DO UPDATE SET description = excluded.description, price = excluded.price`
	if _, err := db.ExecContext(ctx, query, svc.Name, svc.Description, svc.Price); err != nil {
		return fmt.Errorf("failed to upsert service %q: %w", svc.Name, err)
	}

	err := db.QueryRowContext(ctx, `SELECT id, is_active FROM services WHERE name = ?`, svc.Name).
		Scan(&svc.ID, &svc.IsActive)
	if err != nil {
		return fmt.Errorf("failed to reload service %q: %w", svc.Name, err)
	}
	return nil
}
