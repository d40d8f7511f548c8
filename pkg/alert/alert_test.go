package alert

import (
	"bytes"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"

	"github.com/soundprediction/graphfuse/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.IsType(t, &LogAlerter{}, New(config.AlertConfig{}, nil))
	assert.IsType(t, &EmailAlerter{}, New(config.AlertConfig{Enabled: true, SMTPHost: "smtp.example.com", To: []string{"ops@example.com"}}, nil))
}

func TestEmailAlerter(t *testing.T) {
	cfg := config.AlertConfig{
		Enabled:  true,
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		From:     "graphfuse@example.com",
		To:       []string{"ops@example.com", "oncall@example.com"},
	}

	t.Run("sends message", func(t *testing.T) {
		a := NewEmailAlerter(cfg)
		var gotAddr string
		var gotMsg []byte
		a.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotMsg = addr, msg
			assert.Equal(t, cfg.From, from)
			assert.Equal(t, cfg.To, to)
			return nil
		}

		require.NoError(t, a.Alert("breaker open", "oracle down"))
		assert.Equal(t, "smtp.example.com:587", gotAddr)
		assert.Contains(t, string(gotMsg), "Subject: breaker open")
		assert.Contains(t, string(gotMsg), "To: ops@example.com,oncall@example.com")
	})

	t.Run("wraps send failure", func(t *testing.T) {
		a := NewEmailAlerter(cfg)
		a.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("dial failed") }
		assert.ErrorContains(t, a.Alert("s", "m"), "failed to send alert email")
	})

	t.Run("disabled is a no-op", func(t *testing.T) {
		disabled := cfg
		disabled.Enabled = false
		a := NewEmailAlerter(disabled)
		a.send = func(string, smtp.Auth, string, []string, []byte) error {
			t.Fatal("send should not be called")
			return nil
		}
		assert.NoError(t, a.Alert("s", "m"))
	})
}

func TestLogAlerter(t *testing.T) {
	var buf bytes.Buffer
	a := NewLogAlerter(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, a.Alert("breaker open", "oracle down"))
	assert.Contains(t, buf.String(), "breaker open")
	assert.Contains(t, buf.String(), "oracle down")
}
