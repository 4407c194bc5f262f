package providers

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

func TestFormatEvent(t *testing.T) {
	id := uuid.MustParse("5d0c6a4e-2f7b-4d8c-9a51-3c2e1f0b7a64")
	at := time.Date(2026, 4, 2, 8, 30, 0, 0, time.UTC)

	got := FormatEvent(models.Event{
		Type:        models.EventAlertForwarded,
		AlertID:     id,
		AlertStatus: models.AlertActive,
		BadgeNumber: "B-42",
		OccurredAt:  at,
	})
	assert.Equal(t, "*Alert forwarded*\n"+
		"*Alert:* `5d0c6a4e-2f7b-4d8c-9a51-3c2e1f0b7a64`\n"+
		"*Status:* ACTIVE\n"+
		"*Forwarded to badge:* B\\-42\n"+
		"*At:* 2026\\-04\\-02T08:30:00Z", got)

	got = FormatEvent(models.Event{Type: models.EventAlertCreated, AlertID: id, AlertStatus: models.AlertActive, OccurredAt: at})
	assert.Contains(t, got, "*New SOS alert*")
	assert.NotContains(t, got, "badge")

	got = FormatEvent(models.Event{Type: models.EventAlertForwarded, AlertID: id, BadgeNumber: "K9_unit*1", OccurredAt: at})
	assert.Contains(t, got, "*Forwarded to badge:* K9\\_unit\\*1\n")
}

func TestParseChatID(t *testing.T) {
	assert.Equal(t, int64(-100123), parseChatID("-100123"))
	assert.Equal(t, "@sos_ops", parseChatID("@sos_ops"))
}

func TestNewTelegramValidates(t *testing.T) {
	logger := logging.NewWithWriter(io.Discard, "error")
	_, err := NewTelegram(TelegramConfig{ChatID: "1"}, logger)
	assert.Error(t, err)
	_, err = NewTelegram(TelegramConfig{BotToken: "123:abc"}, logger)
	assert.Error(t, err)

	tg, err := NewTelegram(TelegramConfig{BotToken: "123:abc", ChatID: "1"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "telegram", tg.Name())
}
