package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dogsitter/internal/domain"
	"dogsitter/internal/events"
	"dogsitter/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

type fakeDirectory struct {
	users   map[int64]*models.User
	sitters map[int64]*models.DogSitter
}

func (f *fakeDirectory) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDirectory) GetSitter(_ context.Context, id int64) (*models.DogSitter, error) {
	if s, ok := f.sitters[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func newDirectory() *fakeDirectory {
	return &fakeDirectory{
		users: map[int64]*models.User{
			1: {ID: 1, TelegramChatID: 1001},
			2: {ID: 2, TelegramChatID: 2002},
			3: {ID: 3},
		},
		sitters: map[int64]*models.DogSitter{
			7: {ID: 7, UserID: 2},
			8: {ID: 8, UserID: 3},
		},
	}
}

func bookingEvent(t *testing.T, eventType string, sitterID int64) *events.Event {
	t.Helper()
	start := models.NewDate(2026, time.July, 1)
	b := &models.Booking{ID: 42, UserID: 1, DogSitterID: sitterID, StartDate: start, EndDate: start.AddDays(2), TotalPrice: 150000,
		Animals: []models.BookingAnimal{{AnimalID: 1}}}
	ev, err := events.NewJSONEvent(eventType, events.NewBookingPayload(b, 1))
	require.NoError(t, err)
	return &ev
}

func matchText(chatID int64, contains string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, contains)
	})
}

func TestTelegramNotifier_Recipients(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		chatID    int64
		contains  string
	}{
		{"created goes to sitter", events.EventBookingCreated, 2002, "New booking request #42"},
		{"confirmed goes to owner", events.EventBookingConfirmed, 1001, "was confirmed"},
		{"cancelled goes to owner", events.EventBookingCancelled, 1001, "was cancelled"},
		{"completed goes to owner", events.EventBookingCompleted, 1001, "leave a review"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(MockSender)
			n := NewTelegramNotifier(sender, newDirectory(), 10, nil)
			sender.On("Send", matchText(tt.chatID, tt.contains)).Return(tgbotapi.Message{}, nil).Once()

			n.handle(context.Background(), bookingEvent(t, tt.eventType, 7))
			sender.AssertExpectations(t)
		})
	}
}

func TestTelegramNotifier_CreatedMessageDetails(t *testing.T) {
	sender := new(MockSender)
	n := NewTelegramNotifier(sender, newDirectory(), 10, nil)
	sender.On("Send", matchText(2002, "2026-07-01 - 2026-07-03")).Return(tgbotapi.Message{}, nil).Once()

	n.handle(context.Background(), bookingEvent(t, events.EventBookingCreated, 7))
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_Review(t *testing.T) {
	sender := new(MockSender)
	n := NewTelegramNotifier(sender, newDirectory(), 10, nil)
	ev, err := events.NewJSONEvent(events.EventReviewCreated, events.ReviewEventPayload{ReviewID: 1, BookingID: 42, DogSitterID: 7, Rating: 5})
	require.NoError(t, err)
	sender.On("Send", matchText(2002, "5/5")).Return(tgbotapi.Message{}, nil).Once()

	n.handle(context.Background(), &ev)
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_SkipsAndFailures(t *testing.T) {
	sender := new(MockSender)
	n := NewTelegramNotifier(sender, newDirectory(), 10, nil)
	ctx := context.Background()

	// Sitter 8 has no chat.
	n.handle(ctx, bookingEvent(t, events.EventBookingCreated, 8))
	// Unknown sitter.
	n.handle(ctx, bookingEvent(t, events.EventBookingCreated, 99))
	// Broken payload.
	n.handle(ctx, &events.Event{Type: events.EventBookingConfirmed, Payload: []byte("{")})
	sender.AssertNotCalled(t, "Send", mock.Anything)

	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("blocked by user")).Once()
	n.handle(ctx, bookingEvent(t, events.EventBookingConfirmed, 7))
	sender.AssertExpectations(t)

	_, _, err := n.render(ctx, bookingEvent(t, events.EventBookingUpdated, 7))
	assert.Error(t, err)
}

func TestTelegramNotifier_AttachAndRun(t *testing.T) {
	sender := new(MockSender)
	n := NewTelegramNotifier(sender, newDirectory(), 10, nil)
	bus := events.NewEventBus()
	n.Attach(bus)

	sent := make(chan struct{}, 1)
	sender.On("Send", matchText(1001, "was confirmed")).Return(tgbotapi.Message{}, nil).Run(func(mock.Arguments) {
		sent <- struct{}{}
	}).Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	assert.Equal(t, 0, bus.Publish(bookingEvent(t, events.EventBookingConfirmed, 7)))
	// Not subscribed.
	assert.Equal(t, 0, bus.Publish(bookingEvent(t, events.EventBookingUpdated, 7)))

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not sent")
	}
	cancel()
	<-done
	sender.AssertExpectations(t)
}

func TestTelegramNotifier_QueueFull(t *testing.T) {
	n := NewTelegramNotifier(new(MockSender), newDirectory(), 1, nil)
	bus := events.NewEventBus()
	n.Attach(bus)

	assert.Equal(t, 0, bus.Publish(bookingEvent(t, events.EventBookingCreated, 7)))
	assert.Equal(t, 1, bus.Publish(bookingEvent(t, events.EventBookingCreated, 7)))
}
