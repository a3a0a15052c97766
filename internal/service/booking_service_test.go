package service

import (
	"context"
	"testing"
	"time"

	"dogsitter/internal/config"
	"dogsitter/internal/domain"
	"dogsitter/internal/events"
	"dogsitter/internal/models"
	"dogsitter/internal/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testToday = models.NewDate(2026, time.March, 1)

type bookingServiceDeps struct {
	bookings *MockBookingRepo
	sitters  *MockSitterRepo
	bus      *MockPublisher
	worker   *MockSyncWorker
	cache    *MockCache
}

func newBookingServiceForTest() (*BookingService, bookingServiceDeps) {
	deps := bookingServiceDeps{
		bookings: new(MockBookingRepo),
		sitters:  new(MockSitterRepo),
		bus:      new(MockPublisher),
		worker:   new(MockSyncWorker),
		cache:    new(MockCache),
	}
	svc := NewBookingService(deps.bookings, deps.sitters, deps.bus, deps.worker, deps.cache,
		config.BookingConfig{MaxDays: 30}, config.ExportConfig{MaxRangeDays: 62}, testLogger())
	svc.today = func() models.Date { return testToday }
	return svc, deps
}

// sitterActor (user 2) owns sitter profile 10.
func expectSitterProfile(deps bookingServiceDeps) {
	deps.sitters.On("GetSitterByUserID", mock.Anything, sitterActor.UserID).
		Return(&models.DogSitter{ID: 10, UserID: sitterActor.UserID}, nil)
	deps.sitters.On("GetSitterByUserID", mock.Anything, mock.Anything).Return(nil, domain.ErrNotFound)
}

func testBooking(status string) *models.Booking {
	return &models.Booking{
		ID:          100,
		UserID:      ownerActor.UserID,
		DogSitterID: 10,
		StartDate:   testToday.AddDays(3),
		EndDate:     testToday.AddDays(6),
		TotalPrice:  models.Money(150000),
		Status:      status,
		Version:     2,
		Animals:     []models.BookingAnimal{{AnimalID: 3, Size: models.SizeMedium}},
	}
}

func validInput() BookingInput {
	return BookingInput{
		DogSitterID: 10,
		StartDate:   testToday.AddDays(3),
		EndDate:     testToday.AddDays(6),
		Animals:     []models.BookingAnimal{{AnimalID: 3, SpecialDiet: "grain free"}},
		ServiceIDs:  []int64{1},
	}
}

func TestBookingService_Create(t *testing.T) {
	ctx := context.Background()
	svc, deps := newBookingServiceForTest()
	created := testBooking(models.StatusPending)

	deps.bookings.On("CreateBooking", ctx, models.BookingDraft{
		UserID:      ownerActor.UserID,
		DogSitterID: 10,
		StartDate:   testToday.AddDays(3),
		EndDate:     testToday.AddDays(6),
		Animals:     []models.BookingAnimal{{AnimalID: 3, SpecialDiet: "grain free"}},
		ServiceIDs:  []int64{1},
	}).Return(created, nil).Once()
	deps.bus.On("PublishJSON", events.EventBookingCreated, mock.MatchedBy(func(p events.BookingEventPayload) bool {
		return p.BookingID == 100 && p.ChangedByID == ownerActor.UserID && p.Animals == 1
	})).Return(nil).Once()
	deps.worker.On("EnqueueTask", ctx, models.SyncTaskUpsert, created).Return(nil).Once()

	booking, err := svc.Create(ctx, ownerActor, validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(100), booking.ID)

	deps.bookings.AssertExpectations(t)
	deps.bus.AssertExpectations(t)
	deps.worker.AssertExpectations(t)
}

func TestBookingService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *BookingInput)
	}{
		{"missing sitter", func(in *BookingInput) { in.DogSitterID = 0 }},
		{"start in the past", func(in *BookingInput) { in.StartDate = testToday.AddDays(-1) }},
		{"end equals start", func(in *BookingInput) { in.EndDate = in.StartDate }},
		{"end before start", func(in *BookingInput) { in.EndDate = in.StartDate.AddDays(-1) }},
		{"too long", func(in *BookingInput) { in.EndDate = in.StartDate.AddDays(31) }},
		{"no animals", func(in *BookingInput) { in.Animals = nil }},
		{"missing dates", func(in *BookingInput) { in.StartDate = models.Date{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := newBookingServiceForTest()
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), ownerActor, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
			deps.bookings.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
		})
	}
}

func TestBookingService_CreateStartingToday(t *testing.T) {
	ctx := context.Background()
	svc, deps := newBookingServiceForTest()
	in := validInput()
	in.StartDate = testToday
	in.EndDate = testToday.AddDays(1)

	deps.bookings.On("CreateBooking", ctx, mock.Anything).Return(testBooking(models.StatusPending), nil).Once()
	deps.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
	deps.worker.On("EnqueueTask", ctx, mock.Anything, mock.Anything).Return(nil)

	_, err := svc.Create(ctx, ownerActor, in)
	assert.NoError(t, err)
}

func TestBookingService_Quote(t *testing.T) {
	ctx := context.Background()
	svc, deps := newBookingServiceForTest()
	want := pricing.Quote{Days: 3, DailyAnimals: 50000, AnimalsTotal: 150000, ServicesTotal: 20000, Total: 170000}
	deps.bookings.On("QuoteBooking", ctx, mock.MatchedBy(func(d models.BookingDraft) bool {
		return d.UserID == ownerActor.UserID && d.DogSitterID == 10
	})).Return(want, nil).Once()

	got, err := svc.Quote(ctx, ownerActor, validInput())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	deps.bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
}

func TestBookingService_Get(t *testing.T) {
	ctx := context.Background()
	svc, deps := newBookingServiceForTest()
	expectSitterProfile(deps)
	deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil)

	_, err := svc.Get(ctx, ownerActor, 100)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, sitterActor, 100)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, adminActor, 100)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, domain.Actor{UserID: 55}, 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookingService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("owner scope", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("ListBookings", ctx, models.BookingFilter{
			UserID: ownerActor.UserID, Status: models.StatusPending, Limit: models.DefaultPageSize,
		}).Return([]models.Booking{*testBooking(models.StatusPending)}, 1, nil).Once()

		list, total, err := svc.List(ctx, ownerActor, "", models.BookingFilter{Status: models.StatusPending, UserID: 77})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Len(t, list, 1)
		deps.bookings.AssertExpectations(t)
	})

	t.Run("sitter scope", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		deps.bookings.On("ListBookings", ctx, models.BookingFilter{DogSitterID: 10, Limit: models.MaxPageSize}).
			Return([]models.Booking{}, 0, nil).Once()

		_, _, err := svc.List(ctx, sitterActor, ScopeSitter, models.BookingFilter{Limit: 500})
		require.NoError(t, err)

		_, _, err = svc.List(ctx, ownerActor, ScopeSitter, models.BookingFilter{})
		assert.ErrorIs(t, err, domain.ErrForbidden)
		deps.bookings.AssertExpectations(t)
	})

	t.Run("all scope is admin only", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		_, _, err := svc.List(ctx, ownerActor, ScopeAll, models.BookingFilter{})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		deps.bookings.On("ListBookings", ctx, models.BookingFilter{Limit: models.DefaultPageSize}).
			Return([]models.Booking{}, 0, nil).Once()
		_, _, err = svc.List(ctx, adminActor, ScopeAll, models.BookingFilter{})
		assert.NoError(t, err)
	})

	t.Run("bad query", func(t *testing.T) {
		svc, _ := newBookingServiceForTest()
		_, _, err := svc.List(ctx, ownerActor, "", models.BookingFilter{Status: "lost"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, _, err = svc.List(ctx, ownerActor, "", models.BookingFilter{Sort: "rating"})
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, _, err = svc.List(ctx, ownerActor, "everyone", models.BookingFilter{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestBookingService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("owner reprices pending booking", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		updated := testBooking(models.StatusPending)
		updated.Version = 3
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()
		deps.bookings.On("UpdatePendingBooking", ctx, int64(100), int64(2), mock.MatchedBy(func(d models.BookingDraft) bool {
			return d.DogSitterID == 10 && d.UserID == ownerActor.UserID
		})).Return(updated, nil).Once()
		deps.bus.On("PublishJSON", events.EventBookingUpdated, mock.Anything).Return(nil).Once()
		deps.worker.On("EnqueueTask", ctx, models.SyncTaskUpsert, updated).Return(nil).Once()

		in := validInput()
		in.DogSitterID = 0
		got, err := svc.Update(ctx, ownerActor, 100, 0, in)
		require.NoError(t, err)
		assert.Equal(t, int64(3), got.Version)
		deps.bookings.AssertExpectations(t)
		deps.worker.AssertExpectations(t)
	})

	t.Run("others cannot update", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil)

		_, err := svc.Update(ctx, domain.Actor{UserID: 55}, 100, 0, validInput())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = svc.Update(ctx, adminActor, 100, 0, validInput())
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestBookingService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("owner cancels pending", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		cancelled := testBooking(models.StatusCancelled)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()
		deps.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(100), int64(2), models.StatusCancelled).
			Return(cancelled, nil).Once()
		deps.bus.On("PublishJSON", events.EventBookingCancelled, mock.Anything).Return(nil).Once()
		deps.worker.On("EnqueueTask", ctx, models.SyncTaskUpdateStatus, cancelled).Return(nil).Once()

		got, err := svc.Cancel(ctx, ownerActor, 100, 0)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		deps.bookings.AssertExpectations(t)
		deps.bus.AssertExpectations(t)
		deps.worker.AssertExpectations(t)
	})

	t.Run("owner cannot cancel confirmed", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusConfirmed), nil).Once()

		_, err := svc.Cancel(ctx, ownerActor, 100, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidStatusTransition)
		deps.bookings.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("sitter cancels confirmed", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusConfirmed), nil).Once()
		deps.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(100), int64(5), models.StatusCancelled).
			Return(testBooking(models.StatusCancelled), nil).Once()
		deps.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
		deps.worker.On("EnqueueTask", ctx, mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Cancel(ctx, sitterActor, 100, 5)
		require.NoError(t, err)
		deps.bookings.AssertExpectations(t)
	})

	t.Run("stranger gets not found", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()

		_, err := svc.Cancel(ctx, domain.Actor{UserID: 55}, 100, 0)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("concurrent change surfaces", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()
		deps.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(100), int64(1), models.StatusCancelled).
			Return(nil, domain.ErrConcurrentModification).Once()

		_, err := svc.Cancel(ctx, adminActor, 100, 1)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		deps.bus.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
		deps.worker.AssertNotCalled(t, "EnqueueTask", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBookingService_Confirm(t *testing.T) {
	ctx := context.Background()

	t.Run("assigned sitter", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		confirmed := testBooking(models.StatusConfirmed)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()
		deps.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(100), int64(2), models.StatusConfirmed).
			Return(confirmed, nil).Once()
		deps.bus.On("PublishJSON", events.EventBookingConfirmed, mock.MatchedBy(func(p events.BookingEventPayload) bool {
			return p.ChangedByID == sitterActor.UserID && p.Status == models.StatusConfirmed
		})).Return(nil).Once()
		deps.worker.On("EnqueueTask", ctx, models.SyncTaskUpdateStatus, confirmed).Return(nil).Once()

		_, err := svc.Confirm(ctx, sitterActor, 100, 0)
		require.NoError(t, err)
		deps.bus.AssertExpectations(t)
	})

	t.Run("owner is forbidden", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()

		_, err := svc.Confirm(ctx, ownerActor, 100, 0)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("overlap", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()
		deps.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(100), int64(2), models.StatusConfirmed).
			Return(nil, domain.ErrSitterUnavailable).Once()

		_, err := svc.Confirm(ctx, adminActor, 100, 0)
		assert.ErrorIs(t, err, domain.ErrSitterUnavailable)
	})
}

func TestBookingService_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("before start date", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusConfirmed), nil).Once()

		_, err := svc.Complete(ctx, sitterActor, 100, 0)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("once started", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		expectSitterProfile(deps)
		svc.today = func() models.Date { return testToday.AddDays(3) }
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusConfirmed), nil).Once()
		deps.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(100), int64(2), models.StatusCompleted).
			Return(testBooking(models.StatusCompleted), nil).Once()
		deps.bus.On("PublishJSON", events.EventBookingCompleted, mock.Anything).Return(nil).Once()
		deps.worker.On("EnqueueTask", ctx, models.SyncTaskUpdateStatus, mock.Anything).Return(nil).Once()

		got, err := svc.Complete(ctx, sitterActor, 100, 0)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, got.Status)
	})
}

func TestBookingService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes pending", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		booking := testBooking(models.StatusPending)
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(booking, nil).Once()
		deps.bookings.On("DeleteBooking", ctx, int64(100)).Return(nil).Once()
		deps.bus.On("PublishJSON", events.EventBookingDeleted, mock.Anything).Return(nil).Once()
		deps.worker.On("EnqueueTask", ctx, models.SyncTaskDelete, booking).Return(nil).Once()

		require.NoError(t, svc.Delete(ctx, ownerActor, 100))
		deps.worker.AssertExpectations(t)
		deps.cache.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("admin deletes reviewed booking", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		booking := testBooking(models.StatusCompleted)
		booking.Review = &models.Review{ID: 7, BookingID: 100, DogSitterID: 10, Rating: 5}
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(booking, nil).Once()
		deps.bookings.On("DeleteBooking", ctx, int64(100)).Return(nil).Once()
		deps.cache.On("Delete", ctx, []string{RatingCacheKey(10)}).Return(nil).Once()
		deps.bus.On("PublishJSON", events.EventBookingDeleted, mock.Anything).Return(nil).Once()
		deps.worker.On("EnqueueTask", ctx, models.SyncTaskDelete, booking).Return(nil).Once()

		require.NoError(t, svc.Delete(ctx, adminActor, 100))
		deps.cache.AssertExpectations(t)
	})

	t.Run("owner cannot delete confirmed", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusConfirmed), nil).Once()

		assert.ErrorIs(t, svc.Delete(ctx, ownerActor, 100), domain.ErrConflict)
		deps.bookings.AssertNotCalled(t, "DeleteBooking", mock.Anything, mock.Anything)
	})

	t.Run("stranger", func(t *testing.T) {
		svc, deps := newBookingServiceForTest()
		deps.bookings.On("GetBooking", ctx, int64(100)).Return(testBooking(models.StatusPending), nil).Once()

		assert.ErrorIs(t, svc.Delete(ctx, domain.Actor{UserID: 55}, 100), domain.ErrNotFound)
	})
}

func TestBookingService_ExportRange(t *testing.T) {
	ctx := context.Background()
	svc, deps := newBookingServiceForTest()
	from := models.NewDate(2026, time.January, 1)

	_, err := svc.ExportRange(ctx, ownerActor, from, from.AddDays(10))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ExportRange(ctx, adminActor, from, from.AddDays(-1))
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.ExportRange(ctx, adminActor, from, from.AddDays(63))
	assert.ErrorIs(t, err, domain.ErrValidation)

	deps.bookings.On("GetBookingsByDateRange", ctx, from, from.AddDays(31)).
		Return([]models.Booking{*testBooking(models.StatusCompleted)}, nil).Once()
	list, err := svc.ExportRange(ctx, adminActor, from, from.AddDays(31))
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestBookingService_PublishFailureDoesNotFail(t *testing.T) {
	ctx := context.Background()
	svc, deps := newBookingServiceForTest()
	deps.bookings.On("CreateBooking", ctx, mock.Anything).Return(testBooking(models.StatusPending), nil).Once()
	deps.bus.On("PublishJSON", mock.Anything, mock.Anything).Return(assert.AnError).Once()
	deps.worker.On("EnqueueTask", ctx, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := svc.Create(ctx, ownerActor, validInput())
	assert.NoError(t, err)
}
