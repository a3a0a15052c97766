package service

import (
	"context"
	"strings"
	"time"

	"dogsitter/internal/domain"
	"dogsitter/internal/logging"
	"dogsitter/internal/models"

	"github.com/rs/zerolog"
)

// SitterInput is the profile a user submits to become a dog sitter.
type SitterInput struct {
	Description     string       `json:"description"`
	ExperienceYears int          `json:"experience_years"`
	AvatarURL       string       `json:"avatar"`
	PriceSmall      models.Money `json:"price_small"`
	PriceMedium     models.Money `json:"price_medium"`
	PriceLarge      models.Money `json:"price_large"`
}

// SitterUpdate is a partial profile change. Nil fields are left alone.
type SitterUpdate struct {
	Description     *string       `json:"description"`
	ExperienceYears *int          `json:"experience_years"`
	AvatarURL       *string       `json:"avatar"`
	PriceSmall      *models.Money `json:"price_small"`
	PriceMedium     *models.Money `json:"price_medium"`
	PriceLarge      *models.Money `json:"price_large"`
}

type SitterService struct {
	sitters   domain.SitterRepository
	reviews   domain.ReviewRepository
	stats     domain.StatsRepository
	cache     domain.CacheRepository
	ratingTTL time.Duration
	logger    *zerolog.Logger
}

func NewSitterService(
	sitters domain.SitterRepository,
	reviews domain.ReviewRepository,
	stats domain.StatsRepository,
	cache domain.CacheRepository,
	ratingTTL time.Duration,
	logger *zerolog.Logger,
) *SitterService {
	return &SitterService{
		sitters:   sitters,
		reviews:   reviews,
		stats:     stats,
		cache:     cache,
		ratingTTL: ratingTTL,
		logger:    logging.Component(logger, "sitter_service"),
	}
}

func validateSitter(s *models.DogSitter) error {
	if s.ExperienceYears < 0 {
		return validationError("experience_years cannot be negative")
	}
	if s.PriceSmall < 0 || s.PriceMedium < 0 || s.PriceLarge < 0 {
		return validationError("prices cannot be negative")
	}
	if !s.PriceSmall.Valid() || !s.PriceMedium.Valid() || !s.PriceLarge.Valid() {
		return validationError("prices cannot exceed %s", models.MaxMoney)
	}
	return nil
}

// Become creates the caller's sitter profile. One per user.
func (s *SitterService) Become(ctx context.Context, actor domain.Actor, in SitterInput) (*models.DogSitter, error) {
	sitter := &models.DogSitter{
		UserID:          actor.UserID,
		Description:     strings.TrimSpace(in.Description),
		ExperienceYears: in.ExperienceYears,
		AvatarURL:       strings.TrimSpace(in.AvatarURL),
		PriceSmall:      in.PriceSmall,
		PriceMedium:     in.PriceMedium,
		PriceLarge:      in.PriceLarge,
	}
	if err := validateSitter(sitter); err != nil {
		return nil, err
	}
	if err := s.sitters.CreateSitter(ctx, sitter); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("user_id", actor.UserID).Int64("dogsitter_id", sitter.ID).Msg("sitter profile created")
	return s.sitters.GetSitter(ctx, sitter.ID)
}

// Mine returns the caller's sitter profile.
func (s *SitterService) Mine(ctx context.Context, actor domain.Actor) (*models.DogSitter, error) {
	return s.sitters.GetSitterByUserID(ctx, actor.UserID)
}

func (s *SitterService) UpdateMine(ctx context.Context, actor domain.Actor, upd SitterUpdate) (*models.DogSitter, error) {
	sitter, err := s.sitters.GetSitterByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if v := trimmed(upd.Description); v != nil {
		sitter.Description = *v
	}
	if upd.ExperienceYears != nil {
		sitter.ExperienceYears = *upd.ExperienceYears
	}
	if v := trimmed(upd.AvatarURL); v != nil {
		sitter.AvatarURL = *v
	}
	if upd.PriceSmall != nil {
		sitter.PriceSmall = *upd.PriceSmall
	}
	if upd.PriceMedium != nil {
		sitter.PriceMedium = *upd.PriceMedium
	}
	if upd.PriceLarge != nil {
		sitter.PriceLarge = *upd.PriceLarge
	}
	if err := validateSitter(sitter); err != nil {
		return nil, err
	}
	if err := s.sitters.UpdateSitter(ctx, sitter); err != nil {
		return nil, err
	}
	return sitter, nil
}

// List pages through the sitter directory. Blocked sitters are only listed
// for admins.
func (s *SitterService) List(ctx context.Context, actor domain.Actor, filter models.SitterFilter) ([]models.DogSitter, int, error) {
	switch filter.SortBy {
	case "", models.SitterSortRating, models.SitterSortRatingDesc, models.SitterSortRatingAsc,
		models.SitterSortExperience, models.SitterSortExperienceAsc,
		models.SitterSortReviews, models.SitterSortReviewsAsc,
		models.SitterSortName, models.SitterSortNameDesc:
	default:
		return nil, 0, validationError("unknown sort key %q", filter.SortBy)
	}
	if filter.MinRating != nil && filter.MaxRating != nil && *filter.MinRating > *filter.MaxRating {
		return nil, 0, validationError("min_rating cannot exceed max_rating")
	}
	if !actor.IsAdmin {
		filter.IncludeBlocked = false
	}
	filter.Name = strings.TrimSpace(filter.Name)
	filter.Limit, filter.Offset = NormalizePage(filter.Limit, filter.Offset)
	return s.sitters.ListSitters(ctx, filter)
}

func (s *SitterService) Get(ctx context.Context, actor domain.Actor, id int64) (*models.DogSitter, error) {
	sitter, err := s.sitters.GetSitter(ctx, id)
	if err != nil {
		return nil, err
	}
	if sitter.IsBlocked && !actor.IsAdmin && sitter.UserID != actor.UserID {
		return nil, domain.ErrNotFound
	}
	return sitter, nil
}

func (s *SitterService) Reviews(ctx context.Context, sitterID int64, limit, offset int) ([]models.Review, int, error) {
	if _, err := s.sitters.GetSitter(ctx, sitterID); err != nil {
		return nil, 0, err
	}
	limit, offset = NormalizePage(limit, offset)
	return s.reviews.ListSitterReviews(ctx, sitterID, limit, offset)
}

// RatingSummary serves the review breakdown from cache when possible.
func (s *SitterService) RatingSummary(ctx context.Context, sitterID int64) (*models.RatingSummary, error) {
	key := RatingCacheKey(sitterID)
	if s.cache != nil {
		var cached models.RatingSummary
		found, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("rating cache read failed")
		} else if found {
			return &cached, nil
		}
	}

	if _, err := s.sitters.GetSitter(ctx, sitterID); err != nil {
		return nil, err
	}
	summary, err := s.stats.GetRatingSummary(ctx, sitterID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, summary, s.ratingTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("rating cache write failed")
		}
	}
	return summary, nil
}

// Statistics exposes earnings, so only the sitter and admins may read them.
func (s *SitterService) Statistics(ctx context.Context, actor domain.Actor, sitterID int64) (*models.SitterStatistics, error) {
	sitter, err := s.sitters.GetSitter(ctx, sitterID)
	if err != nil {
		return nil, err
	}
	if sitter.UserID != actor.UserID && !actor.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return s.stats.GetSitterStatistics(ctx, sitterID)
}

func (s *SitterService) Availability(ctx context.Context, sitterID int64, start, end models.Date) (*models.SitterAvailability, error) {
	if start.IsZero() || end.IsZero() {
		return nil, validationError("start_date and end_date are required")
	}
	if !end.After(start) {
		return nil, validationError("end_date must be after start_date")
	}
	if _, err := s.sitters.GetSitter(ctx, sitterID); err != nil {
		return nil, err
	}
	return s.stats.GetSitterAvailability(ctx, sitterID, start, end)
}

func (s *SitterService) SetBlocked(ctx context.Context, actor domain.Actor, sitterID int64, blocked bool) (*models.DogSitter, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.sitters.SetSitterBlocked(ctx, sitterID, blocked); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("dogsitter_id", sitterID).Bool("blocked", blocked).Msg("sitter block state changed")
	return s.sitters.GetSitter(ctx, sitterID)
}
