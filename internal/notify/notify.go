// Package notify delivers user notifications (bet settled, event cancelled)
// without ever blocking or failing the operation that triggered them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evetabi/furbito/internal/domain"
	"github.com/evetabi/furbito/internal/metrics"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the fire-and-forget sink the engine calls after commits.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, subject, body string)
}

// Sender delivers one rendered message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// UserLookup resolves the recipient's delivery address.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// ErrNoChannel means the user has not linked a chat.
var ErrNoChannel = errors.New("notify: user has no linked chat")

// ──────────────────────────────────────────────────────────────────────────────
// Dispatcher
// ──────────────────────────────────────────────────────────────────────────────

// Dispatcher implements Notifier on top of a Sender. Notify returns at once;
// delivery runs in its own goroutine with a bounded timeout.
type Dispatcher struct {
	users   UserLookup
	sender  Sender
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. timeout <= 0 means 5s.
func NewDispatcher(users UserLookup, sender Sender, timeout time.Duration, log *zap.Logger, m *metrics.Metrics) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		users:   users,
		sender:  sender,
		timeout: timeout,
		log:     log.With(zap.String("component", "notify")),
		metrics: m,
	}
}

// Notify schedules delivery and returns immediately. The caller's
// cancellation does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, userID uuid.UUID, subject, body string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		err := d.Deliver(ctx, userID, subject, body)
		switch {
		case err == nil:
			d.metrics.Notification("sent")
		case errors.Is(err, ErrNoChannel):
			d.metrics.Notification("skipped")
			d.log.Debug("no chat linked", zap.Stringer("user_id", userID), zap.String("subject", subject))
		default:
			d.metrics.Notification("failed")
			d.log.Warn("delivery failed", zap.Stringer("user_id", userID), zap.String("subject", subject), zap.Error(err))
		}
	}()
}

// Deliver sends synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, userID uuid.UUID, subject, body string) error {
	u, err := d.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify.Deliver: get user: %w", err)
	}
	if u.TelegramChatID == nil {
		return ErrNoChannel
	}
	if err := d.sender.Send(ctx, *u.TelegramChatID, Render(subject, body)); err != nil {
		return fmt.Errorf("notify.Deliver: send: %w", err)
	}
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Render formats a message body.
func Render(subject, body string) string {
	if body == "" {
		return subject
	}
	return subject + "\n\n" + body
}

// ──────────────────────────────────────────────────────────────────────────────
// Senders
// ──────────────────────────────────────────────────────────────────────────────

// TelegramSender delivers through the Telegram Bot API.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSender authenticates the bot token.
func NewTelegramSender(token string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram bot: %w", err)
	}
	bot.Debug = false
	return &TelegramSender{bot: bot}, nil
}

// Send posts text to chatID. The bot API is not context-aware; ctx is only
// checked before the call.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	Log *zap.Logger
}

func (s LogSender) Send(_ context.Context, chatID int64, text string) error {
	s.Log.Info("notification", zap.Int64("chat_id", chatID), zap.String("text", text))
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, uuid.UUID, string, string) {}
