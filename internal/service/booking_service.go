package service

import (
	"context"
	"errors"
	"fmt"

	"dogsitter/internal/config"
	"dogsitter/internal/domain"
	"dogsitter/internal/events"
	"dogsitter/internal/logging"
	"dogsitter/internal/metrics"
	"dogsitter/internal/models"
	"dogsitter/internal/pricing"

	"github.com/rs/zerolog"
)

// Booking list scopes.
const (
	ScopeOwner  = "owner"
	ScopeSitter = "sitter"
	ScopeAll    = "all"
)

// BookingInput is what an owner submits to book or rebook a sitter.
type BookingInput struct {
	DogSitterID int64                  `json:"dogsitter_id"`
	StartDate   models.Date            `json:"start_date"`
	EndDate     models.Date            `json:"end_date"`
	Animals     []models.BookingAnimal `json:"animals"`
	ServiceIDs  []int64                `json:"services"`
}

type BookingService struct {
	bookings      domain.BookingRepository
	sitters       domain.SitterRepository
	eventBus      domain.EventPublisher
	ledgerWorker  domain.SyncWorker
	cache         domain.CacheRepository
	maxDays       int
	maxExportDays int
	today         func() models.Date
	logger        *zerolog.Logger
}

func NewBookingService(
	bookings domain.BookingRepository,
	sitters domain.SitterRepository,
	eventBus domain.EventPublisher,
	ledgerWorker domain.SyncWorker,
	cache domain.CacheRepository,
	cfg config.BookingConfig,
	exports config.ExportConfig,
	logger *zerolog.Logger,
) *BookingService {
	maxDays := cfg.MaxDays
	if maxDays <= 0 {
		maxDays = 365
	}
	maxExportDays := exports.MaxRangeDays
	if maxExportDays <= 0 {
		maxExportDays = 366
	}
	return &BookingService{
		bookings:      bookings,
		sitters:       sitters,
		eventBus:      eventBus,
		ledgerWorker:  ledgerWorker,
		cache:         cache,
		maxDays:       maxDays,
		maxExportDays: maxExportDays,
		today:         models.Today,
		logger:        logging.Component(logger, "booking_service"),
	}
}

// ValidateDates checks a requested stay against today and the length limit.
func (s *BookingService) ValidateDates(start, end models.Date) error {
	if start.IsZero() || end.IsZero() {
		return validationError("start_date and end_date are required")
	}
	if start.Before(s.today()) {
		return validationError("start date cannot be in the past")
	}
	if !end.After(start) {
		return validationError("end date must be after start date")
	}
	if days := start.DaysUntil(end); days > s.maxDays {
		return validationError("booking cannot be longer than %d days", s.maxDays)
	}
	return nil
}

func (s *BookingService) draft(actor domain.Actor, in BookingInput) (models.BookingDraft, error) {
	if in.DogSitterID <= 0 {
		return models.BookingDraft{}, validationError("dogsitter_id is required")
	}
	if err := s.ValidateDates(in.StartDate, in.EndDate); err != nil {
		return models.BookingDraft{}, err
	}
	if len(in.Animals) == 0 {
		return models.BookingDraft{}, validationError("at least one animal is required")
	}
	return models.BookingDraft{
		UserID:      actor.UserID,
		DogSitterID: in.DogSitterID,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Animals:     in.Animals,
		ServiceIDs:  in.ServiceIDs,
	}, nil
}

// Quote prices a booking without storing it.
func (s *BookingService) Quote(ctx context.Context, actor domain.Actor, in BookingInput) (pricing.Quote, error) {
	draft, err := s.draft(actor, in)
	if err != nil {
		return pricing.Quote{}, err
	}
	return s.bookings.QuoteBooking(ctx, draft)
}

func (s *BookingService) Create(ctx context.Context, actor domain.Actor, in BookingInput) (*models.Booking, error) {
	draft, err := s.draft(actor, in)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookings.CreateBooking(ctx, draft)
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCreated()
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("user_id", booking.UserID).
		Int64("dogsitter_id", booking.DogSitterID).
		Str("total_price", booking.TotalPrice.String()).
		Msg("booking created")

	s.publishEvent(events.EventBookingCreated, booking, actor.UserID)
	s.enqueueSync(ctx, models.SyncTaskUpsert, booking)
	return booking, nil
}

// sitterIDOf returns the sitter profile id of the actor, or zero.
func (s *BookingService) sitterIDOf(ctx context.Context, actor domain.Actor) (int64, error) {
	sitter, err := s.sitters.GetSitterByUserID(ctx, actor.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return sitter.ID, nil
}

// isAssignedSitter reports whether the actor is the sitter of the booking.
func (s *BookingService) isAssignedSitter(ctx context.Context, actor domain.Actor, b *models.Booking) (bool, error) {
	sitterID, err := s.sitterIDOf(ctx, actor)
	if err != nil {
		return false, err
	}
	return sitterID != 0 && sitterID == b.DogSitterID, nil
}

// Get returns a booking visible to the owner, the assigned sitter and admins.
func (s *BookingService) Get(ctx context.Context, actor domain.Actor, id int64) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin || booking.UserID == actor.UserID {
		return booking, nil
	}
	assigned, err := s.isAssignedSitter(ctx, actor, booking)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, domain.ErrNotFound
	}
	return booking, nil
}

// List returns bookings of the given scope: the actor's own bookings, the
// bookings assigned to the actor as a sitter, or every booking for admins.
func (s *BookingService) List(ctx context.Context, actor domain.Actor, scope string, filter models.BookingFilter) ([]models.Booking, int, error) {
	if filter.Status != "" && !models.IsValidBookingStatus(filter.Status) {
		return nil, 0, validationError("unknown status %q", filter.Status)
	}
	if filter.AnimalType != "" && !models.IsValidAnimalType(filter.AnimalType) {
		return nil, 0, validationError("unknown animal type %q", filter.AnimalType)
	}
	switch filter.Sort {
	case "", models.BookingSortStartDate, models.BookingSortStartDateDesc,
		models.BookingSortPrice, models.BookingSortPriceDesc,
		models.BookingSortCreated, models.BookingSortCreatedDesc:
	default:
		return nil, 0, validationError("unknown sort key %q", filter.Sort)
	}

	switch scope {
	case "", ScopeOwner:
		filter.UserID = actor.UserID
	case ScopeSitter:
		sitterID, err := s.sitterIDOf(ctx, actor)
		if err != nil {
			return nil, 0, err
		}
		if sitterID == 0 {
			return nil, 0, fmt.Errorf("%w: not a dog sitter", domain.ErrForbidden)
		}
		filter.DogSitterID = sitterID
	case ScopeAll:
		if err := requireAdmin(actor); err != nil {
			return nil, 0, err
		}
	default:
		return nil, 0, validationError("unknown scope %q", scope)
	}

	filter.Limit, filter.Offset = NormalizePage(filter.Limit, filter.Offset)
	return s.bookings.ListBookings(ctx, filter)
}

// Update replaces the stay of a pending booking. Only the owner may do it.
func (s *BookingService) Update(ctx context.Context, actor domain.Actor, id, version int64, in BookingInput) (*models.Booking, error) {
	current, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.UserID != actor.UserID {
		if actor.IsAdmin {
			return nil, fmt.Errorf("%w: only the owner can change a booking", domain.ErrForbidden)
		}
		return nil, domain.ErrNotFound
	}
	if in.DogSitterID == 0 {
		in.DogSitterID = current.DogSitterID
	}
	draft, err := s.draft(actor, in)
	if err != nil {
		return nil, err
	}
	if version == 0 {
		version = current.Version
	}

	booking, err := s.bookings.UpdatePendingBooking(ctx, id, version, draft)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", id).Int64("version", booking.Version).Msg("booking updated")
	s.publishEvent(events.EventBookingUpdated, booking, actor.UserID)
	s.enqueueSync(ctx, models.SyncTaskUpsert, booking)
	return booking, nil
}

// Cancel lets the owner withdraw a pending booking and the sitter or an admin
// cancel a pending or confirmed one.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id, version int64) (*models.Booking, error) {
	current, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case actor.IsAdmin:
	case current.UserID == actor.UserID:
		if current.Status != models.StatusPending {
			return nil, fmt.Errorf("%w: only pending bookings can be cancelled", domain.ErrInvalidStatusTransition)
		}
	default:
		assigned, err := s.isAssignedSitter(ctx, actor, current)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, domain.ErrNotFound
		}
	}

	return s.transition(ctx, actor, current, version, models.StatusCancelled, events.EventBookingCancelled)
}

// Confirm accepts a pending booking on behalf of the assigned sitter.
func (s *BookingService) Confirm(ctx context.Context, actor domain.Actor, id, version int64) (*models.Booking, error) {
	current, err := s.loadForSitter(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, current, version, models.StatusConfirmed, events.EventBookingConfirmed)
}

// Complete closes a confirmed booking once its stay has started.
func (s *BookingService) Complete(ctx context.Context, actor domain.Actor, id, version int64) (*models.Booking, error) {
	current, err := s.loadForSitter(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.StatusConfirmed && s.today().Before(current.StartDate) {
		return nil, validationError("booking cannot be completed before %s", current.StartDate)
	}
	return s.transition(ctx, actor, current, version, models.StatusCompleted, events.EventBookingCompleted)
}

// loadForSitter fetches a booking the actor manages as its sitter. Owners get
// ErrForbidden, strangers ErrNotFound.
func (s *BookingService) loadForSitter(ctx context.Context, actor domain.Actor, id int64) (*models.Booking, error) {
	current, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin {
		return current, nil
	}
	assigned, err := s.isAssignedSitter(ctx, actor, current)
	if err != nil {
		return nil, err
	}
	if assigned {
		return current, nil
	}
	if current.UserID == actor.UserID {
		return nil, fmt.Errorf("%w: only the dog sitter can do this", domain.ErrForbidden)
	}
	return nil, domain.ErrNotFound
}

func (s *BookingService) transition(
	ctx context.Context,
	actor domain.Actor,
	current *models.Booking,
	version int64,
	status, eventType string,
) (*models.Booking, error) {
	if version == 0 {
		version = current.Version
	}

	booking, err := s.bookings.UpdateBookingStatusWithVersion(ctx, current.ID, version, status)
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition(status)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("from", current.Status).
		Str("to", booking.Status).
		Int64("actor_id", actor.UserID).
		Msg("booking status changed")

	s.publishEvent(eventType, booking, actor.UserID)
	s.enqueueSync(ctx, models.SyncTaskUpdateStatus, booking)
	return booking, nil
}

// Delete removes a booking. Owners may only delete pending or cancelled ones.
func (s *BookingService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin {
		if booking.UserID != actor.UserID {
			return domain.ErrNotFound
		}
		if booking.Status != models.StatusPending && booking.Status != models.StatusCancelled {
			return fmt.Errorf("%w: only pending or cancelled bookings can be deleted", domain.ErrConflict)
		}
	}

	if err := s.bookings.DeleteBooking(ctx, id); err != nil {
		return err
	}
	if booking.Review != nil {
		invalidateRatings(ctx, s.cache, s.logger, booking.DogSitterID)
	}

	s.logger.Info().Int64("booking_id", id).Int64("actor_id", actor.UserID).Msg("booking deleted")
	s.publishEvent(events.EventBookingDeleted, booking, actor.UserID)
	s.enqueueSync(ctx, models.SyncTaskDelete, booking)
	return nil
}

// ExportRange returns the bookings overlapping [from, to] for the admin export.
func (s *BookingService) ExportRange(ctx context.Context, actor domain.Actor, from, to models.Date) ([]models.Booking, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() {
		return nil, validationError("from and to are required")
	}
	if to.Before(from) {
		return nil, validationError("to must not be before from")
	}
	if from.DaysUntil(to) > s.maxExportDays {
		return nil, validationError("export range cannot exceed %d days", s.maxExportDays)
	}
	return s.bookings.GetBookingsByDateRange(ctx, from, to)
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, actorID int64) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(booking, actorID)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, taskType string, booking *models.Booking) {
	if s.ledgerWorker == nil {
		return
	}
	if err := s.ledgerWorker.EnqueueTask(ctx, taskType, booking); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("ledger enqueue error")
	}
}
