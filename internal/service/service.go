package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"

	"github.com/rs/zerolog"
)

var phoneRe = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// RatingCacheKey is the cache key of a sitter's rating summary.
func RatingCacheKey(sitterID int64) string {
	return fmt.Sprintf("sitter:rating:%d", sitterID)
}

// invalidateRatings drops cached rating summaries. Failures are logged only;
// the cached value expires on its own.
func invalidateRatings(ctx context.Context, cache domain.CacheRepository, logger *zerolog.Logger, sitterIDs ...int64) {
	if cache == nil || len(sitterIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(sitterIDs))
	for _, id := range sitterIDs {
		keys = append(keys, RatingCacheKey(id))
	}
	if err := cache.Delete(ctx, keys...); err != nil {
		logger.Warn().Err(err).Ints64("dogsitter_ids", sitterIDs).Msg("rating cache invalidation failed")
	}
}

// NormalizePage clamps list paging to the default and maximum page sizes.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = models.DefaultPageSize
	}
	if limit > models.MaxPageSize {
		limit = models.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrValidation}, args...)...)
}

func validatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phoneRe.MatchString(phone) {
		return validationError("phone number must be entered in the format '+999999999', up to 15 digits")
	}
	return nil
}

func requireAdmin(actor domain.Actor) error {
	if !actor.IsAdmin {
		return fmt.Errorf("%w: admin only", domain.ErrForbidden)
	}
	return nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
