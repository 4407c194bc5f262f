package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"

	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
	"dispatch-service/internal/utils"
)

// TelegramConfig holds the bot token and the ops chat that receives alert events.
type TelegramConfig struct {
	BotToken  string
	ChatID    string
	RateLimit float64
}

// Telegram posts alert lifecycle events to an operations chat.
type Telegram struct {
	bot     *bot.Bot
	chatID  any
	limiter *rate.Limiter
	logger  *logging.Logger
	delay   time.Duration
}

func NewTelegram(cfg TelegramConfig, logger *logging.Logger, opts ...bot.Option) (*Telegram, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if cfg.ChatID == "" {
		return nil, fmt.Errorf("missing telegram chat id")
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	b, err := bot.New(cfg.BotToken, append([]bot.Option{bot.WithSkipGetMe()}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	burst := int(cfg.RateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Telegram{
		bot:     b,
		chatID:  parseChatID(cfg.ChatID),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		logger:  logger,
		delay:   time.Second,
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts ev to the chat, retrying failed calls.
func (t *Telegram) Send(ctx context.Context, ev models.Event) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}
	params := &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      FormatEvent(ev),
		ParseMode: tgmodels.ParseModeMarkdown,
	}
	return utils.Retry(t.logger, 3, t.delay, func() error {
		if _, err := t.bot.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %v: %w", t.chatID, err)
		}
		return nil
	})
}

// FormatEvent renders ev as a MarkdownV2 message. Every interpolated value is
// escaped so badge numbers and statuses cannot break the markup.
func FormatEvent(ev models.Event) string {
	esc := bot.EscapeMarkdown
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", esc(title(ev.Type)))
	fmt.Fprintf(&b, "*Alert:* `%s`\n", ev.AlertID)
	fmt.Fprintf(&b, "*Status:* %s\n", esc(string(ev.AlertStatus)))
	if ev.BadgeNumber != "" {
		fmt.Fprintf(&b, "*Forwarded to badge:* %s\n", esc(ev.BadgeNumber))
	}
	fmt.Fprintf(&b, "*At:* %s", esc(ev.OccurredAt.UTC().Format(time.RFC3339)))
	return b.String()
}

func title(t models.EventType) string {
	switch t {
	case models.EventAlertCreated:
		return "New SOS alert"
	case models.EventAlertAccepted:
		return "Alert accepted"
	case models.EventAlertRejected:
		return "Alert rejected"
	case models.EventAlertForwarded:
		return "Alert forwarded"
	case models.EventAlertCanceled:
		return "Alert canceled by owner"
	case models.EventAlertResolved:
		return "Alert resolved"
	default:
		return string(t)
	}
}

// parseChatID keeps numeric ids numeric; channel usernames stay strings.
func parseChatID(s string) any {
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id
	}
	return s
}
