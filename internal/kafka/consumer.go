package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"dispatch-service/internal/errs"
	"dispatch-service/internal/logging"
	"dispatch-service/internal/models"
)

// AlertRaiser stores a newly triggered alert.
type AlertRaiser interface {
	RaiseAlert(ctx context.Context, alert models.Alert) error
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer ingests SOS triggers published by the mobile gateway.
type Consumer struct {
	reader     messageReader
	raiser     AlertRaiser
	logger     *logging.Logger
	now        func() time.Time
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, raiser AlertRaiser, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: 0,
	})
	return &Consumer{
		reader:     r,
		raiser:     raiser,
		logger:     logger,
		now:        time.Now,
		backoff:    500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Start reads messages until ctx is canceled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("Kafka consumer started")
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}
			if !c.process(ctx, msg) {
				c.logger.Info("Kafka consumer stopped")
				return
			}
			if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.Errorf("Commit offset %d failed: %v", msg.Offset, err)
			}
		}
	}()
}

// process handles msg until it may be committed. A trigger that fails to be
// stored is retried with growing backoff and blocks the partition; it reports
// false only when ctx ends first, leaving the offset uncommitted.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, msg)
		if err == nil {
			return true
		}
		if errors.Is(err, errMalformed) {
			c.logger.Errorf("Invalid message at offset %d: %v", msg.Offset, err)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		wait := c.backoff * time.Duration(attempt)
		if wait > c.maxBackoff {
			wait = c.maxBackoff
		}
		c.logger.Errorf("Raise from offset %d failed (attempt %d), retrying in %v: %v", msg.Offset, attempt, wait, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
	}
}

// handle raises the alert carried by msg. Decode failures and alerts the
// engine refuses as invalid wrap errMalformed. A redelivered alert that is
// already stored counts as handled.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	alert, err := decodeAlert(msg, c.now())
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	err = c.raiser.RaiseAlert(ctx, alert)
	switch {
	case err == nil:
		c.logger.WithField("alert_id", alert.ID).Info("Processed Kafka message")
		return nil
	case errors.Is(err, errs.ErrConflict):
		c.logger.WithField("alert_id", alert.ID).Warn("Alert already stored, skipping redelivery")
		return nil
	case errors.Is(err, errs.ErrInvalidArgument):
		return fmt.Errorf("%w: %v", errMalformed, err)
	default:
		return err
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

var errMalformed = errors.New("malformed alert message")

// ingestNamespace seeds ids for messages that carry neither an id nor a uuid key,
// so a redelivered message maps to the same alert.
var ingestNamespace = uuid.MustParse("8f4c2b1e-6d3a-4e7f-9b05-1a2c3d4e5f60")

// alertMessage is the wire shape of an SOS trigger.
type alertMessage struct {
	ID            string           `json:"id"`
	UserID        string           `json:"userId"`
	Latitude      *decimal.Decimal `json:"latitude"`
	Longitude     *decimal.Decimal `json:"longitude"`
	Address       *string          `json:"address"`
	TriggerMethod string           `json:"triggerMethod"`
	Message       *string          `json:"message"`
	AudioURL      *string          `json:"audioUrl"`
	TriggeredAt   *time.Time       `json:"triggeredAt"`
}

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

func decodeAlert(msg kafka.Message, now time.Time) (models.Alert, error) {
	var m alertMessage
	if err := json.Unmarshal(msg.Value, &m); err != nil {
		return models.Alert{}, fmt.Errorf("unmarshal message failed: %w", err)
	}
	userID, err := uuid.Parse(m.UserID)
	if err != nil {
		return models.Alert{}, fmt.Errorf("invalid userId %q", m.UserID)
	}
	if m.Latitude == nil || m.Longitude == nil {
		return models.Alert{}, fmt.Errorf("latitude and longitude are required")
	}
	if m.Latitude.Abs().GreaterThan(maxLatitude) || m.Longitude.Abs().GreaterThan(maxLongitude) {
		return models.Alert{}, fmt.Errorf("coordinates out of range: %s,%s", m.Latitude, m.Longitude)
	}
	method, err := models.ParseTriggerMethod(m.TriggerMethod)
	if err != nil {
		return models.Alert{}, err
	}
	at := now
	if m.TriggeredAt != nil && !m.TriggeredAt.IsZero() {
		at = *m.TriggeredAt
	}

	alert := models.NewAlert(userID, *m.Latitude, *m.Longitude, method, at)
	if alert.ID, err = messageID(m.ID, msg); err != nil {
		return models.Alert{}, err
	}
	alert.Address = trimmed(m.Address)
	alert.Message = trimmed(m.Message)
	alert.AudioURL = trimmed(m.AudioURL)
	return alert, nil
}

// messageID prefers the explicit id, then a uuid message key, then a name
// derived from the message position.
func messageID(explicit string, msg kafka.Message) (uuid.UUID, error) {
	if explicit != "" {
		id, err := uuid.Parse(explicit)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid id %q", explicit)
		}
		return id, nil
	}
	if id, err := uuid.ParseBytes(msg.Key); err == nil {
		return id, nil
	}
	name := fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
	return uuid.NewSHA1(ingestNamespace, []byte(name)), nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
