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
	"dogsitter/internal/pricing"
)

const bookingColumns = `b.id, b.user_id, b.dog_sitter_id, b.start_date, b.end_date, b.total_price, b.status,
	b.version, b.created_at, b.updated_at`

var bookingOrder = map[string]string{
	models.BookingSortStartDate:     "b.start_date ASC",
	models.BookingSortStartDateDesc: "b.start_date DESC",
	models.BookingSortPrice:         "b.total_price ASC",
	models.BookingSortPriceDesc:     "b.total_price DESC",
	models.BookingSortCreated:       "b.created_at ASC",
	models.BookingSortCreatedDesc:   "b.created_at DESC",
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.DogSitterID, &b.StartDate, &b.EndDate, &b.TotalPrice, &b.Status,
		&b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Animals = []models.BookingAnimal{}
	b.Services = []models.Service{}
	return &b, nil
}

// pricedDraft is a draft resolved against the database and priced.
type pricedDraft struct {
	sitter   *models.DogSitter
	animals  []models.BookingAnimal
	services []models.Service
	quote    pricing.Quote
}

// resolveDraft loads the sitter, the owner's animals and the active services
// referenced by the draft and computes the price.
func (db *DB) resolveDraft(ctx context.Context, q querier, draft models.BookingDraft) (*pricedDraft, error) {
	sitter, err := db.getSitter(ctx, q, "s.id = ?", draft.DogSitterID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: dog sitter %d not found", domain.ErrValidation, draft.DogSitterID)
		}
		return nil, err
	}
	if sitter.IsBlocked {
		return nil, fmt.Errorf("%w: dog sitter is blocked", domain.ErrSitterUnavailable)
	}
	if sitter.UserID == draft.UserID {
		return nil, fmt.Errorf("%w: cannot book yourself", domain.ErrValidation)
	}

	animals, err := loadOwnedAnimals(ctx, q, draft.UserID, draft.Animals)
	if err != nil {
		return nil, err
	}
	services, err := loadActiveServices(ctx, q, draft.ServiceIDs)
	if err != nil {
		return nil, err
	}

	days := draft.StartDate.DaysUntil(draft.EndDate)
	return &pricedDraft{
		sitter:   sitter,
		animals:  animals,
		services: services,
		quote:    pricing.Calculate(sitter, animals, services, days),
	}, nil
}

func loadOwnedAnimals(ctx context.Context, q querier, ownerID int64, requested []models.BookingAnimal) ([]models.BookingAnimal, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: at least one animal is required", domain.ErrValidation)
	}

	ids := make([]int64, 0, len(requested))
	seen := make(map[int64]bool, len(requested))
	for _, a := range requested {
		if seen[a.AnimalID] {
			return nil, fmt.Errorf("%w: animal %d listed twice", domain.ErrValidation, a.AnimalID)
		}
		seen[a.AnimalID] = true
		ids = append(ids, a.AnimalID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, user_id, name, type, size FROM animals WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load animals: %w", err)
	}
	defer rows.Close()

	type animalRow struct {
		userID          int64
		name, typ, size string
	}
	found := make(map[int64]animalRow, len(ids))
	for rows.Next() {
		var (
			id int64
			r  animalRow
		)
		if err := rows.Scan(&id, &r.userID, &r.name, &r.typ, &r.size); err != nil {
			return nil, fmt.Errorf("failed to scan animal: %w", err)
		}
		found[id] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	animals := make([]models.BookingAnimal, 0, len(requested))
	for _, a := range requested {
		r, ok := found[a.AnimalID]
		if !ok || r.userID != ownerID {
			return nil, fmt.Errorf("%w: animal %d does not belong to you", domain.ErrValidation, a.AnimalID)
		}
		a.Name, a.Type, a.Size = r.name, r.typ, r.size
		animals = append(animals, a)
	}
	return animals, nil
}

func loadActiveServices(ctx context.Context, q querier, ids []int64) ([]models.Service, error) {
	services := make([]models.Service, 0, len(ids))
	if len(ids) == 0 {
		return services, nil
	}

	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, fmt.Errorf("%w: service %d listed twice", domain.ErrValidation, id)
		}
		seen[id] = true
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, name, description, price, is_active FROM services WHERE is_active = 1 AND id IN (`+
			placeholders(len(ids))+`) ORDER BY name`,
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(services) != len(ids) {
		return nil, fmt.Errorf("%w: unknown or inactive service", domain.ErrValidation)
	}
	return services, nil
}

func insertBookingItems(ctx context.Context, tx *sql.Tx, bookingID int64, p *pricedDraft, now time.Time) error {
	for _, a := range p.animals {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO booking_animals (booking_id, animal_id, special_notes, special_diet, medications, added_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			bookingID, a.AnimalID, a.SpecialNotes, a.SpecialDiet, a.Medications, now)
		if err != nil {
			return fmt.Errorf("failed to attach animal %d: %w", a.AnimalID, err)
		}
	}
	for _, s := range p.services {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO booking_services (booking_id, service_id, price) VALUES (?, ?, ?)`,
			bookingID, s.ID, s.Price)
		if err != nil {
			return fmt.Errorf("failed to attach service %d: %w", s.ID, err)
		}
	}
	return nil
}

// CreateBooking prices and stores a pending booking with its animals and
// services in a single transaction.
func (db *DB) CreateBooking(ctx context.Context, draft models.BookingDraft) (*models.Booking, error) {
	var booking *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		priced, err := db.resolveDraft(ctx, tx, draft)
		if err != nil {
			return err
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (user_id, dog_sitter_id, start_date, end_date, total_price, status, version,
				created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			draft.UserID, draft.DogSitterID, draft.StartDate, draft.EndDate, priced.quote.Total,
			models.StatusPending, now, now)
		if err != nil {
			if isForeignKeyViolation(err) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("failed to insert booking: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		if err := insertBookingItems(ctx, tx, id, priced, now); err != nil {
			return err
		}

		booking, err = getBooking(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// QuoteBooking prices a draft without storing anything.
func (db *DB) QuoteBooking(ctx context.Context, draft models.BookingDraft) (pricing.Quote, error) {
	priced, err := db.resolveDraft(ctx, db.DB, draft)
	if err != nil {
		return pricing.Quote{}, err
	}
	return priced.quote, nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db.DB, id)
}

func getBooking(ctx context.Context, q querier, id int64) (*models.Booking, error) {
	booking, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if err := loadBookingDetails(ctx, q, []*models.Booking{booking}); err != nil {
		return nil, err
	}
	return booking, nil
}

// loadBookingDetails fills animals, services and review of the given bookings.
// It must be called after the rows that produced the bookings are closed.
func loadBookingDetails(ctx context.Context, q querier, bookings []*models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Booking, len(bookings))
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	in := placeholders(len(ids))
	args := int64Args(ids)

	rows, err := q.QueryContext(ctx, `
		SELECT ba.booking_id, a.id, a.name, a.type, a.size, ba.special_notes, ba.special_diet, ba.medications, ba.added_at
		FROM booking_animals ba JOIN animals a ON a.id = ba.animal_id
		WHERE ba.booking_id IN (`+in+`) ORDER BY ba.booking_id, a.name`, args...)
	if err != nil {
		return fmt.Errorf("failed to load booking animals: %w", err)
	}
	for rows.Next() {
		var (
			bookingID int64
			a         models.BookingAnimal
		)
		if err := rows.Scan(&bookingID, &a.AnimalID, &a.Name, &a.Type, &a.Size, &a.SpecialNotes, &a.SpecialDiet,
			&a.Medications, &a.AddedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan booking animal: %w", err)
		}
		byID[bookingID].Animals = append(byID[bookingID].Animals, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx, `
		SELECT bs.booking_id, s.id, s.name, s.description, bs.price, s.is_active
		FROM booking_services bs JOIN services s ON s.id = bs.service_id
		WHERE bs.booking_id IN (`+in+`) ORDER BY bs.booking_id, s.name`, args...)
	if err != nil {
		return fmt.Errorf("failed to load booking services: %w", err)
	}
	for rows.Next() {
		var (
			bookingID int64
			s         models.Service
		)
		if err := rows.Scan(&bookingID, &s.ID, &s.Name, &s.Description, &s.Price, &s.IsActive); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan booking service: %w", err)
		}
		byID[bookingID].Services = append(byID[bookingID].Services, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT id, booking_id, rating, comment, created_at FROM reviews WHERE booking_id IN (`+in+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to load booking reviews: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.BookingID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan review: %w", err)
		}
		b := byID[r.BookingID]
		r.UserID = b.UserID
		r.DogSitterID = b.DogSitterID
		b.Review = &r
	}
	return rows.Err()
}

// ListBookings returns one page of bookings matching the filter and the total
// number of matches.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, filter.Status)
	}
	if !filter.StartFrom.IsZero() {
		where = append(where, "b.start_date >= ?")
		args = append(args, filter.StartFrom)
	}
	if !filter.EndTo.IsZero() {
		where = append(where, "b.end_date <= ?")
		args = append(args, filter.EndTo)
	}
	if filter.UserID != 0 {
		where = append(where, "b.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.DogSitterID != 0 {
		where = append(where, "b.dog_sitter_id = ?")
		args = append(args, filter.DogSitterID)
	}
	if filter.ServiceID != 0 {
		where = append(where, "EXISTS (SELECT 1 FROM booking_services bs WHERE bs.booking_id = b.id AND bs.service_id = ?)")
		args = append(args, filter.ServiceID)
	}
	if filter.AnimalType != "" {
		where = append(where, `EXISTS (SELECT 1 FROM booking_animals ba JOIN animals a ON a.id = ba.animal_id
			WHERE ba.booking_id = b.id AND a.type = ?)`)
		args = append(args, filter.AnimalType)
	}
	if filter.HasReview != nil {
		exists := "EXISTS (SELECT 1 FROM reviews r WHERE r.booking_id = b.id)"
		if *filter.HasReview {
			where = append(where, exists)
		} else {
			where = append(where, "NOT "+exists)
		}
	}

	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings b`+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	order, ok := bookingOrder[filter.Sort]
	if !ok {
		order = bookingOrder[models.BookingSortCreatedDesc]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultPageSize
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings b` + cond + ` ORDER BY ` + order + `, b.id DESC LIMIT ? OFFSET ?`
	bookings, err := db.queryBookings(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// queryBookings runs a booking select and loads the details of every row.
func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}

	var list []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		list = append(list, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := loadBookingDetails(ctx, db.DB, list); err != nil {
		return nil, err
	}

	bookings := make([]models.Booking, 0, len(list))
	for _, b := range list {
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

// countConflicts counts confirmed bookings of the sitter overlapping
// [start, end), ignoring excludeID.
func countConflicts(ctx context.Context, q querier, sitterID int64, start, end models.Date, excludeID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE dog_sitter_id = ? AND status = ? AND id != ? AND start_date < ? AND end_date > ?`,
		sitterID, models.StatusConfirmed, excludeID, end, start,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to check sitter conflicts: %w", err)
	}
	return n, nil
}

func (db *DB) CountSitterConflicts(ctx context.Context, sitterID int64, start, end models.Date, excludeID int64) (int, error) {
	return countConflicts(ctx, db.DB, sitterID, start, end, excludeID)
}

// UpdateBookingStatusWithVersion moves the booking to status if it is still at
// fromVersion. A zero fromVersion uses the current version. Confirming fails
// with ErrSitterUnavailable when the sitter already has a confirmed booking
// overlapping the dates.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) (*models.Booking, error) {
	var booking *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBooking(tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load booking: %w", err)
		}
		if fromVersion == 0 {
			fromVersion = current.Version
		}
		if current.Version != fromVersion {
			return domain.ErrConcurrentModification
		}
		if !models.CanTransition(current.Status, status) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStatusTransition, current.Status, status)
		}

		if status == models.StatusConfirmed {
			n, err := countConflicts(ctx, tx, current.DogSitterID, current.StartDate, current.EndDate, current.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return domain.ErrSitterUnavailable
			}
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
			status, time.Now(), id, fromVersion)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return domain.ErrConcurrentModification
		}

		booking, err = getBooking(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// UpdatePendingBooking replaces dates, animals and services of a pending
// booking and reprices it.
func (db *DB) UpdatePendingBooking(ctx context.Context, id, fromVersion int64, draft models.BookingDraft) (*models.Booking, error) {
	var booking *models.Booking
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanBooking(tx.QueryRowContext(ctx,
			`SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load booking: %w", err)
		}
		if fromVersion == 0 {
			fromVersion = current.Version
		}
		if current.Version != fromVersion {
			return domain.ErrConcurrentModification
		}
		if current.Status != models.StatusPending {
			return fmt.Errorf("%w: only pending bookings can be changed", domain.ErrInvalidStatusTransition)
		}

		draft.UserID = current.UserID
		draft.DogSitterID = current.DogSitterID
		priced, err := db.resolveDraft(ctx, tx, draft)
		if err != nil {
			return err
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET start_date = ?, end_date = ?, total_price = ?, version = version + 1, updated_at = ?
			 WHERE id = ? AND version = ?`,
			draft.StartDate, draft.EndDate, priced.quote.Total, now, id, fromVersion)
		if err != nil {
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return domain.ErrConcurrentModification
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_animals WHERE booking_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear booking animals: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_services WHERE booking_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear booking services: %w", err)
		}
		if err := insertBookingItems(ctx, tx, id, priced, now); err != nil {
			return err
		}

		booking, err = getBooking(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// DeleteBooking removes the booking. A review attached to it goes with it,
// so the sitter rating is recomputed in the same transaction.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var sitterID int64
		err := tx.QueryRowContext(ctx, `SELECT dog_sitter_id FROM bookings WHERE id = ?`, id).Scan(&sitterID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get booking: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete booking: %w", err)
		}
		return refreshSitterRating(ctx, tx, sitterID)
	})
}

// GetBookingsByDateRange returns bookings overlapping [from, to], ordered by
// start date.
func (db *DB) GetBookingsByDateRange(ctx context.Context, from, to models.Date) ([]models.Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.start_date <= ? AND b.end_date >= ?
		 ORDER BY b.start_date, b.id`, to, from)
}
