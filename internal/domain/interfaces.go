package domain

import (
	"context"
	"time"

	"dogsitter/internal/models"
	"dogsitter/internal/pricing"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID  int64
	IsAdmin bool
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) ([]int64, error)
	CreateUserPhoto(ctx context.Context, photo *models.UserPhoto) error
	ListUserPhotos(ctx context.Context, userID int64) ([]models.UserPhoto, error)
	GetUserPhoto(ctx context.Context, userID, photoID int64) (*models.UserPhoto, error)
	DeleteUserPhoto(ctx context.Context, userID, photoID int64) error
}

type AnimalRepository interface {
	CreateAnimal(ctx context.Context, animal *models.Animal) error
	GetAnimal(ctx context.Context, id int64) (*models.Animal, error)
	ListAnimals(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, error)
	UpdateAnimal(ctx context.Context, animal *models.Animal) error
	DeleteAnimal(ctx context.Context, id int64) error
}

type SitterRepository interface {
	CreateSitter(ctx context.Context, sitter *models.DogSitter) error
	GetSitter(ctx context.Context, id int64) (*models.DogSitter, error)
	GetSitterByUserID(ctx context.Context, userID int64) (*models.DogSitter, error)
	UpdateSitter(ctx context.Context, sitter *models.DogSitter) error
	SetSitterBlocked(ctx context.Context, id int64, blocked bool) error
	ListSitters(ctx context.Context, filter models.SitterFilter) ([]models.DogSitter, int, error)
}

type CatalogRepository interface {
	CreateService(ctx context.Context, svc *models.Service) error
	GetService(ctx context.Context, id int64) (*models.Service, error)
	ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error)
	UpdateService(ctx context.Context, svc *models.Service) error
	DeactivateService(ctx context.Context, id int64) error
	UpsertServiceByName(ctx context.Context, svc *models.Service) error
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, draft models.BookingDraft) (*models.Booking, error)
	QuoteBooking(ctx context.Context, draft models.BookingDraft) (pricing.Quote, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) (*models.Booking, error)
	UpdatePendingBooking(ctx context.Context, id, version int64, draft models.BookingDraft) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	GetBookingsByDateRange(ctx context.Context, from, to models.Date) ([]models.Booking, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReview(ctx context.Context, id int64) (*models.Review, error)
	GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error)
	ListSitterReviews(ctx context.Context, sitterID int64, limit, offset int) ([]models.Review, int, error)
	DeleteReview(ctx context.Context, id int64) (*models.Review, error)
}

type StatsRepository interface {
	GetUserBookingStats(ctx context.Context, userID int64) (*models.UserBookingStats, error)
	GetUpcomingBookings(ctx context.Context, userID int64) ([]models.Booking, error)
	GetBookingHistory(ctx context.Context, userID int64, days int) ([]models.Booking, error)
	GetBookingsByMonth(ctx context.Context, userID int64) ([]models.MonthlyBookings, error)
	GetSitterStatistics(ctx context.Context, sitterID int64) (*models.SitterStatistics, error)
	GetRatingSummary(ctx context.Context, sitterID int64) (*models.RatingSummary, error)
	GetSitterAvailability(ctx context.Context, sitterID int64, start, end models.Date) (*models.SitterAvailability, error)
}

// CacheRepository stores short-lived JSON values and counts attempts for
// rate limiting.
type CacheRepository interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error
}

type TokenIssuer interface {
	Issue(userID int64, email, role string) (string, time.Time, error)
}
