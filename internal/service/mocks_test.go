package service

import (
	"context"
	"io"
	"time"

	"dogsitter/internal/domain"
	"dogsitter/internal/models"
	"dogsitter/internal/pricing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

var (
	ownerActor  = domain.Actor{UserID: 1}
	sitterActor = domain.Actor{UserID: 2}
	adminActor  = domain.Actor{UserID: 99, IsAdmin: true}
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepo) UpdateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepo) UpdateUserPassword(ctx context.Context, userID int64, passwordHash string) error {
	return m.Called(ctx, userID, passwordHash).Error(0)
}

func (m *MockUserRepo) DeleteUser(ctx context.Context, id int64) ([]int64, error) {
	args := m.Called(ctx, id)
	ids, _ := args.Get(0).([]int64)
	return ids, args.Error(1)
}

func (m *MockUserRepo) CreateUserPhoto(ctx context.Context, photo *models.UserPhoto) error {
	return m.Called(ctx, photo).Error(0)
}

func (m *MockUserRepo) ListUserPhotos(ctx context.Context, userID int64) ([]models.UserPhoto, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.UserPhoto), args.Error(1)
}

func (m *MockUserRepo) GetUserPhoto(ctx context.Context, userID, photoID int64) (*models.UserPhoto, error) {
	args := m.Called(ctx, userID, photoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserPhoto), args.Error(1)
}

func (m *MockUserRepo) DeleteUserPhoto(ctx context.Context, userID, photoID int64) error {
	return m.Called(ctx, userID, photoID).Error(0)
}

type MockAnimalRepo struct {
	mock.Mock
}

func (m *MockAnimalRepo) CreateAnimal(ctx context.Context, animal *models.Animal) error {
	return m.Called(ctx, animal).Error(0)
}

func (m *MockAnimalRepo) GetAnimal(ctx context.Context, id int64) (*models.Animal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Animal), args.Error(1)
}

func (m *MockAnimalRepo) ListAnimals(ctx context.Context, filter models.AnimalFilter) ([]models.Animal, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Animal), args.Error(1)
}

func (m *MockAnimalRepo) UpdateAnimal(ctx context.Context, animal *models.Animal) error {
	return m.Called(ctx, animal).Error(0)
}

func (m *MockAnimalRepo) DeleteAnimal(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockSitterRepo struct {
	mock.Mock
}

func (m *MockSitterRepo) CreateSitter(ctx context.Context, sitter *models.DogSitter) error {
	return m.Called(ctx, sitter).Error(0)
}

func (m *MockSitterRepo) GetSitter(ctx context.Context, id int64) (*models.DogSitter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DogSitter), args.Error(1)
}

func (m *MockSitterRepo) GetSitterByUserID(ctx context.Context, userID int64) (*models.DogSitter, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DogSitter), args.Error(1)
}

func (m *MockSitterRepo) UpdateSitter(ctx context.Context, sitter *models.DogSitter) error {
	return m.Called(ctx, sitter).Error(0)
}

func (m *MockSitterRepo) SetSitterBlocked(ctx context.Context, id int64, blocked bool) error {
	return m.Called(ctx, id, blocked).Error(0)
}

func (m *MockSitterRepo) ListSitters(ctx context.Context, filter models.SitterFilter) ([]models.DogSitter, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.DogSitter), args.Int(1), args.Error(2)
}

type MockCatalogRepo struct {
	mock.Mock
}

func (m *MockCatalogRepo) CreateService(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *MockCatalogRepo) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *MockCatalogRepo) ListServices(ctx context.Context, activeOnly bool) ([]models.Service, error) {
	args := m.Called(ctx, activeOnly)
	return args.Get(0).([]models.Service), args.Error(1)
}

func (m *MockCatalogRepo) UpdateService(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}

func (m *MockCatalogRepo) DeactivateService(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogRepo) UpsertServiceByName(ctx context.Context, svc *models.Service) error {
	return m.Called(ctx, svc).Error(0)
}

type MockBookingRepo struct {
	mock.Mock
}

func (m *MockBookingRepo) CreateBooking(ctx context.Context, draft models.BookingDraft) (*models.Booking, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingRepo) QuoteBooking(ctx context.Context, draft models.BookingDraft) (pricing.Quote, error) {
	args := m.Called(ctx, draft)
	return args.Get(0).(pricing.Quote), args.Error(1)
}

func (m *MockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingRepo) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Booking), args.Int(1), args.Error(2)
}

func (m *MockBookingRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) (*models.Booking, error) {
	args := m.Called(ctx, id, version, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingRepo) UpdatePendingBooking(ctx context.Context, id, version int64, draft models.BookingDraft) (*models.Booking, error) {
	args := m.Called(ctx, id, version, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingRepo) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBookingRepo) GetBookingsByDateRange(ctx context.Context, from, to models.Date) ([]models.Booking, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockReviewRepo struct {
	mock.Mock
}

func (m *MockReviewRepo) CreateReview(ctx context.Context, review *models.Review) error {
	return m.Called(ctx, review).Error(0)
}

func (m *MockReviewRepo) GetReview(ctx context.Context, id int64) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewRepo) GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *MockReviewRepo) ListSitterReviews(ctx context.Context, sitterID int64, limit, offset int) ([]models.Review, int, error) {
	args := m.Called(ctx, sitterID, limit, offset)
	return args.Get(0).([]models.Review), args.Int(1), args.Error(2)
}

func (m *MockReviewRepo) DeleteReview(ctx context.Context, id int64) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

type MockStatsRepo struct {
	mock.Mock
}

func (m *MockStatsRepo) GetUserBookingStats(ctx context.Context, userID int64) (*models.UserBookingStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserBookingStats), args.Error(1)
}

func (m *MockStatsRepo) GetUpcomingBookings(ctx context.Context, userID int64) ([]models.Booking, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockStatsRepo) GetBookingHistory(ctx context.Context, userID int64, days int) ([]models.Booking, error) {
	args := m.Called(ctx, userID, days)
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockStatsRepo) GetBookingsByMonth(ctx context.Context, userID int64) ([]models.MonthlyBookings, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]models.MonthlyBookings), args.Error(1)
}

func (m *MockStatsRepo) GetSitterStatistics(ctx context.Context, sitterID int64) (*models.SitterStatistics, error) {
	args := m.Called(ctx, sitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SitterStatistics), args.Error(1)
}

func (m *MockStatsRepo) GetRatingSummary(ctx context.Context, sitterID int64) (*models.RatingSummary, error) {
	args := m.Called(ctx, sitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

func (m *MockStatsRepo) GetSitterAvailability(ctx context.Context, sitterID int64, start, end models.Date) (*models.SitterAvailability, error) {
	args := m.Called(ctx, sitterID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SitterAvailability), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	args := m.Called(ctx, key, dst)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *MockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type MockSyncWorker struct {
	mock.Mock
}

func (m *MockSyncWorker) EnqueueTask(ctx context.Context, taskType string, booking *models.Booking) error {
	return m.Called(ctx, taskType, booking).Error(0)
}

type MockTokens struct {
	mock.Mock
}

func (m *MockTokens) Issue(userID int64, email, role string) (string, time.Time, error) {
	args := m.Called(userID, email, role)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}
