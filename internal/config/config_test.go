package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://dispatch@localhost/dispatch")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")

	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, ":8080", cfg.API.Port)
	assert.Equal(t, "", cfg.API.BasePath)
	assert.Equal(t, "logs", cfg.Logging.Dir)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "sos.alerts", cfg.Kafka.AlertTopic)
	assert.Equal(t, "sos.alert-events", cfg.Kafka.EventTopic)
	assert.Equal(t, 500, cfg.Notification.QueueSize)
	assert.Equal(t, 10, cfg.Notification.MaxWorkers)
	assert.Equal(t, "last-responder", cfg.Coordination.RejectPolicy)
	assert.Equal(t, 3, cfg.Coordination.AvailabilityRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Coordination.AvailabilityBackoff)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("API_PORT", "9191")
	t.Setenv("API_BASE_PATH", "/api/v1/")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REJECT_POLICY", "legacy")
	t.Setenv("AVAILABILITY_RETRY_BASE", "10ms")

	cfg, err := parse()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.DB.Driver)
	assert.Equal(t, ":9191", cfg.API.Port)
	assert.Equal(t, "/api/v1", cfg.API.BasePath)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "legacy", cfg.Coordination.RejectPolicy)
	assert.Equal(t, 10*time.Millisecond, cfg.Coordination.AvailabilityBackoff)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret and dsn", map[string]string{}, "missing required configurations: [DB_DSN AUTH_JWT_SECRET]"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql", "AUTH_JWT_SECRET": "x"}, "unsupported DB_DRIVER"},
		{"bad policy", map[string]string{"DB_DRIVER": "memory", "AUTH_JWT_SECRET": "x", "REJECT_POLICY": "never"}, "invalid REJECT_POLICY"},
		{"seed file with postgres", map[string]string{"DB_DSN": "postgres://x", "AUTH_JWT_SECRET": "x", "DB_SEED_FILE": "seed.json"}, "DB_SEED_FILE requires"},
		{"telegram without chat", map[string]string{"DB_DRIVER": "memory", "AUTH_JWT_SECRET": "x", "TELEGRAM_BOT_TOKEN": "t"}, "TELEGRAM_CHAT_ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "")
			t.Setenv("DB_DSN", "")
			t.Setenv("AUTH_JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
