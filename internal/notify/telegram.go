package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"dogsitter/internal/config"
	"dogsitter/internal/events"
	"dogsitter/internal/logging"
	"dogsitter/internal/metrics"
	"dogsitter/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Directory resolves users and sitters to Telegram chats.
type Directory interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetSitter(ctx context.Context, id int64) (*models.DogSitter, error)
}

// Notification results for metrics.
const (
	resultSent    = "sent"
	resultFailed  = "failed"
	resultSkipped = "skipped"
	resultDropped = "dropped"
)

// NewBotAPI connects to Telegram with the configured token.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// TelegramNotifier tells sitters about new bookings and owners about status
// changes. Events are queued by the bus handler and sent from Run.
type TelegramNotifier struct {
	sender Sender
	dir    Directory
	queue  chan events.Event
	logger *zerolog.Logger
}

func NewTelegramNotifier(sender Sender, dir Directory, queueSize int, logger *zerolog.Logger) *TelegramNotifier {
	if queueSize <= 0 {
		queueSize = 100
	}
	return &TelegramNotifier{
		sender: sender,
		dir:    dir,
		queue:  make(chan events.Event, queueSize),
		logger: logging.Component(logger, "telegram_notifier"),
	}
}

// Attach subscribes the notifier to the events it reports.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	bus.Subscribe(n.enqueue,
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventReviewCreated,
	)
}

func (n *TelegramNotifier) enqueue(event *events.Event) error {
	select {
	case n.queue <- *event:
		return nil
	default:
		metrics.IncNotification(resultDropped)
		n.logger.Warn().Str("event", event.Type).Msg("notification queue full, event dropped")
		return fmt.Errorf("notification queue full")
	}
}

// Run sends queued notifications until ctx is done.
func (n *TelegramNotifier) Run(ctx context.Context) {
	n.logger.Info().Msg("started")
	defer n.logger.Info().Msg("stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-n.queue:
			n.handle(ctx, &event)
		}
	}
}

func (n *TelegramNotifier) handle(ctx context.Context, event *events.Event) {
	chatID, text, err := n.render(ctx, event)
	if err != nil {
		metrics.IncNotification(resultFailed)
		n.logger.Error().Err(err).Str("event", event.Type).Msg("failed to prepare notification")
		return
	}
	if chatID == 0 {
		metrics.IncNotification(resultSkipped)
		n.logger.Debug().Str("event", event.Type).Msg("recipient has no telegram chat")
		return
	}

	if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		metrics.IncNotification(resultFailed)
		n.logger.Error().Err(err).Str("event", event.Type).Int64("chat_id", chatID).Msg("failed to send notification")
		return
	}
	metrics.IncNotification(resultSent)
}

// render picks the recipient chat and message text for an event.
func (n *TelegramNotifier) render(ctx context.Context, event *events.Event) (int64, string, error) {
	if event.Type == events.EventReviewCreated {
		var p events.ReviewEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return 0, "", fmt.Errorf("decode review payload: %w", err)
		}
		chatID, err := n.sitterChat(ctx, p.DogSitterID)
		if err != nil {
			return 0, "", err
		}
		return chatID, fmt.Sprintf("New review for booking #%d: %d/5", p.BookingID, p.Rating), nil
	}

	var p events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return 0, "", fmt.Errorf("decode booking payload: %w", err)
	}

	if event.Type == events.EventBookingCreated {
		chatID, err := n.sitterChat(ctx, p.DogSitterID)
		if err != nil {
			return 0, "", err
		}
		text := fmt.Sprintf("New booking request #%d\n%s - %s\nAnimals: %d\nTotal: %s",
			p.BookingID, p.StartDate, p.EndDate, p.Animals, p.TotalPrice)
		return chatID, text, nil
	}

	chatID, err := n.userChat(ctx, p.UserID)
	if err != nil {
		return 0, "", err
	}
	var text string
	switch event.Type {
	case events.EventBookingConfirmed:
		text = fmt.Sprintf("Booking #%d for %s - %s was confirmed by the sitter.", p.BookingID, p.StartDate, p.EndDate)
	case events.EventBookingCancelled:
		text = fmt.Sprintf("Booking #%d for %s - %s was cancelled.", p.BookingID, p.StartDate, p.EndDate)
	case events.EventBookingCompleted:
		text = fmt.Sprintf("Booking #%d is completed. You can now leave a review.", p.BookingID)
	default:
		return 0, "", fmt.Errorf("unsupported event type: %s", event.Type)
	}
	return chatID, text, nil
}

func (n *TelegramNotifier) userChat(ctx context.Context, userID int64) (int64, error) {
	u, err := n.dir.GetUserByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	return u.TelegramChatID, nil
}

func (n *TelegramNotifier) sitterChat(ctx context.Context, sitterID int64) (int64, error) {
	s, err := n.dir.GetSitter(ctx, sitterID)
	if err != nil {
		return 0, fmt.Errorf("load sitter %d: %w", sitterID, err)
	}
	return n.userChat(ctx, s.UserID)
}
