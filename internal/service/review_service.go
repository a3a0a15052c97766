package service

import (
	"context"
	"strings"

	"dogsitter/internal/domain"
	"dogsitter/internal/events"
	"dogsitter/internal/logging"
	"dogsitter/internal/metrics"
	"dogsitter/internal/models"

	"github.com/rs/zerolog"
)

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// bookingViewer resolves a booking the actor is allowed to see.
type bookingViewer interface {
	Get(ctx context.Context, actor domain.Actor, id int64) (*models.Booking, error)
}

type ReviewService struct {
	reviews  domain.ReviewRepository
	bookings bookingViewer
	cache    domain.CacheRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewReviewService(
	reviews domain.ReviewRepository,
	bookings bookingViewer,
	cache domain.CacheRepository,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		bookings: bookings,
		cache:    cache,
		eventBus: eventBus,
		logger:   logging.Component(logger, "review_service"),
	}
}

// Create stores the owner's review of a completed booking.
func (s *ReviewService) Create(ctx context.Context, actor domain.Actor, bookingID int64, in ReviewInput) (*models.Review, error) {
	if in.Rating < models.MinRating || in.Rating > models.MaxRating {
		return nil, validationError("rating must be between %d and %d", models.MinRating, models.MaxRating)
	}
	if _, err := s.bookings.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}

	review := &models.Review{
		BookingID: bookingID,
		UserID:    actor.UserID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	metrics.IncReviewCreated()
	s.invalidateRating(ctx, review.DogSitterID)
	s.logger.Info().
		Int64("review_id", review.ID).
		Int64("booking_id", bookingID).
		Int64("dogsitter_id", review.DogSitterID).
		Int("rating", review.Rating).
		Msg("review created")

	if s.eventBus != nil {
		payload := events.ReviewEventPayload{
			ReviewID:    review.ID,
			BookingID:   review.BookingID,
			DogSitterID: review.DogSitterID,
			UserID:      review.UserID,
			Rating:      review.Rating,
		}
		if err := s.eventBus.PublishJSON(events.EventReviewCreated, payload); err != nil {
			s.logger.Error().Err(err).Int64("review_id", review.ID).Msg("publish event error")
		}
	}
	return review, nil
}

// GetForBooking returns the review of a booking the actor can see.
func (s *ReviewService) GetForBooking(ctx context.Context, actor domain.Actor, bookingID int64) (*models.Review, error) {
	if _, err := s.bookings.Get(ctx, actor, bookingID); err != nil {
		return nil, err
	}
	return s.reviews.GetReviewByBooking(ctx, bookingID)
}

func (s *ReviewService) Get(ctx context.Context, id int64) (*models.Review, error) {
	return s.reviews.GetReview(ctx, id)
}

func (s *ReviewService) ListBySitter(ctx context.Context, sitterID int64, limit, offset int) ([]models.Review, int, error) {
	limit, offset = NormalizePage(limit, offset)
	return s.reviews.ListSitterReviews(ctx, sitterID, limit, offset)
}

// Delete removes a review (moderation) and refreshes the sitter rating.
func (s *ReviewService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	review, err := s.reviews.DeleteReview(ctx, id)
	if err != nil {
		return err
	}
	s.invalidateRating(ctx, review.DogSitterID)
	s.logger.Info().Int64("review_id", id).Int64("dogsitter_id", review.DogSitterID).Msg("review deleted")
	return nil
}

func (s *ReviewService) invalidateRating(ctx context.Context, sitterID int64) {
	invalidateRatings(ctx, s.cache, s.logger, sitterID)
}
