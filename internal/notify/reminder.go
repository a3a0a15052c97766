package notify

import (
	"context"
	"fmt"
	"time"

	"dogsitter/internal/logging"
	"dogsitter/internal/metrics"
	"dogsitter/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BookingSource lists bookings overlapping a date range.
type BookingSource interface {
	GetBookingsByDateRange(ctx context.Context, from, to models.Date) ([]models.Booking, error)
}

// Reminder messages owners and sitters the day before a confirmed stay starts.
type Reminder struct {
	sender   Sender
	dir      Directory
	bookings BookingSource
	hour     int
	minute   int
	now      func() time.Time
	logger   *zerolog.Logger
}

// NewReminder parses at as "HH:MM" local time.
func NewReminder(sender Sender, dir Directory, bookings BookingSource, at string, logger *zerolog.Logger) (*Reminder, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(at, "%d:%d", &hour, &minute); err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("invalid reminder time %q, expected HH:MM", at)
	}
	return &Reminder{
		sender:   sender,
		dir:      dir,
		bookings: bookings,
		hour:     hour,
		minute:   minute,
		now:      time.Now,
		logger:   logging.Component(logger, "reminder"),
	}, nil
}

// Run sends reminders once a day at the configured time until ctx is done.
func (r *Reminder) Run(ctx context.Context) {
	timer := time.NewTimer(r.untilNext())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.SendTomorrow(ctx)
			timer.Reset(r.untilNext())
		}
	}
}

func (r *Reminder) untilNext() time.Duration {
	now := r.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hour, r.minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// SendTomorrow reminds both sides of every confirmed booking starting
// tomorrow and returns how many messages went out.
func (r *Reminder) SendTomorrow(ctx context.Context) int {
	tomorrow := models.DateOf(r.now()).AddDays(1)
	bookings, err := r.bookings.GetBookingsByDateRange(ctx, tomorrow, tomorrow)
	if err != nil {
		r.logger.Error().Err(err).Str("date", tomorrow.String()).Msg("failed to load bookings")
		return 0
	}

	sent := 0
	for i := range bookings {
		b := &bookings[i]
		if b.Status != models.StatusConfirmed || !b.StartDate.Equal(tomorrow) {
			continue
		}
		ownerChat, err := r.ownerChat(ctx, b.UserID)
		if err != nil {
			r.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to resolve owner chat")
		}
		sitterChat, err := r.sitterChat(ctx, b.DogSitterID)
		if err != nil {
			r.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to resolve sitter chat")
		}

		text := fmt.Sprintf("Reminder: booking #%d starts tomorrow (%s - %s).", b.ID, b.StartDate, b.EndDate)
		for _, chatID := range []int64{ownerChat, sitterChat} {
			if r.send(chatID, text) {
				sent++
			}
		}
	}
	return sent
}

func (r *Reminder) send(chatID int64, text string) bool {
	if chatID == 0 {
		metrics.IncNotification(resultSkipped)
		return false
	}
	if _, err := r.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		metrics.IncNotification(resultFailed)
		r.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send reminder")
		return false
	}
	metrics.IncNotification(resultSent)
	return true
}

func (r *Reminder) ownerChat(ctx context.Context, userID int64) (int64, error) {
	u, err := r.dir.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.TelegramChatID, nil
}

func (r *Reminder) sitterChat(ctx context.Context, sitterID int64) (int64, error) {
	s, err := r.dir.GetSitter(ctx, sitterID)
	if err != nil {
		return 0, err
	}
	return r.ownerChat(ctx, s.UserID)
}
