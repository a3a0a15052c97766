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

const userColumns = `id, email, password_hash, first_name, last_name, middle_name, phone, address,
	avatar_url, telegram_chat_id, is_active, is_superuser, registration_date, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.MiddleName, &u.Phone, &u.Address,
		&u.AvatarURL, &u.TelegramChatID, &u.IsActive, &u.IsSuperuser, &u.RegistrationDate, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	if user.RegistrationDate.IsZero() {
		user.RegistrationDate = now
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	query := `INSERT INTO users (email, password_hash, first_name, last_name, middle_name, phone, address,
				avatar_url, telegram_chat_id, is_active, is_superuser, registration_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName, user.MiddleName, user.Phone, user.Address,
		user.AvatarURL, user.TelegramChatID, user.IsActive, user.IsSuperuser, user.RegistrationDate, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UpdateUser saves profile fields. Email and password are not changed here.
func (db *DB) UpdateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	query := `UPDATE users SET first_name = ?, last_name = ?, middle_name = ?, phone = ?, address = ?,
				avatar_url = ?, telegram_chat_id = ?, is_active = ?, updated_at = ?
			WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		user.FirstName, user.LastName, user.MiddleName, user.Phone, user.Address,
		user.AvatarURL, user.TelegramChatID, user.IsActive, now, user.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	user.UpdatedAt = now
	return nil
}

func (db *DB) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteUser removes the account with its animals, bookings and photos.
// Reviews on the user's bookings are removed too; the ids of the sitters
// whose rating was recomputed are returned.
func (db *DB) DeleteUser(ctx context.Context, id int64) ([]int64, error) {
	var sitterIDs []int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT DISTINCT b.dog_sitter_id FROM reviews r
			JOIN bookings b ON b.id = r.booking_id
			JOIN dog_sitters s ON s.id = b.dog_sitter_id
			WHERE (b.user_id = ? OR r.user_id = ?) AND s.user_id != ?`, id, id, id)
		if err != nil {
			return fmt.Errorf("failed to find reviewed sitters: %w", err)
		}
		for rows.Next() {
			var sitterID int64
			if err := rows.Scan(&sitterID); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan sitter id: %w", err)
			}
			sitterIDs = append(sitterIDs, sitterID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate reviewed sitters: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return domain.ErrNotFound
		}

		for _, sitterID := range sitterIDs {
			if err := refreshSitterRating(ctx, tx, sitterID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sitterIDs, nil
}

func (db *DB) CreateUserPhoto(ctx context.Context, photo *models.UserPhoto) error {
	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO user_photos (user_id, url, description, is_public, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		photo.UserID, photo.URL, photo.Description, photo.IsPublic, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to create user photo: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	photo.ID = id
	photo.UploadedAt = now
	return nil
}

func (db *DB) ListUserPhotos(ctx context.Context, userID int64) ([]models.UserPhoto, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, url, description, is_public, uploaded_at
		 FROM user_photos WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user photos: %w", err)
	}
	defer rows.Close()

	photos := make([]models.UserPhoto, 0)
	for rows.Next() {
		var p models.UserPhoto
		if err := rows.Scan(&p.ID, &p.UserID, &p.URL, &p.Description, &p.IsPublic, &p.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user photo: %w", err)
		}
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

func (db *DB) GetUserPhoto(ctx context.Context, userID, photoID int64) (*models.UserPhoto, error) {
	var p models.UserPhoto
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, url, description, is_public, uploaded_at FROM user_photos WHERE id = ? AND user_id = ?`,
		photoID, userID,
	).Scan(&p.ID, &p.UserID, &p.URL, &p.Description, &p.IsPublic, &p.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user photo: %w", err)
	}
	return &p, nil
}

func (db *DB) DeleteUserPhoto(ctx context.Context, userID, photoID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM user_photos WHERE id = ? AND user_id = ?`, photoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user photo: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
