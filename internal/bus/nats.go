package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"pulsewatch-backend/internal/alerts"
)

// Bus wraps one NATS connection for both directions: publishing alert
// notifications and subscribing to indicator configuration events.
type Bus struct {
	Conn   *nats.Conn
	logger *slog.Logger
}

type Event struct {
	IndicatorID string `json:"indicator_id"`
}

func Connect(url string, logger *slog.Logger) (*Bus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &Bus{Conn: conn, logger: logger}, nil
}

func (b *Bus) Close() {
	if b.Conn != nil {
		b.Conn.Drain()
		b.Conn.Close()
	}
}

// Notify publishes the alert as JSON. Delivery is fire-and-forget: failures
// are logged here and never retried by the caller.
func (b *Bus) Notify(ctx context.Context, alert alerts.Alert, kind alerts.Kind) {
	subject := "alert.triggered"
	if kind == alerts.KindEscalated {
		subject = "alert.escalated"
	}
	data, err := json.Marshal(alert)
	if err != nil {
		b.logger.Error("failed to encode alert notification",
			slog.String("alert", alert.ID), slog.String("error", err.Error()))
		return
	}
	if err := b.Conn.Publish(subject, data); err != nil {
		b.logger.Error("failed to publish alert notification",
			slog.String("subject", subject),
			slog.String("alert", alert.ID),
			slog.String("error", err.Error()))
	}
}

func (b *Bus) Subscribe(subject string, handler func(Event)) (*nats.Subscription, error) {
	return b.Conn.Subscribe(subject, func(msg *nats.Msg) {
		var evt Event
		_ = json.Unmarshal(msg.Data, &evt)
		handler(evt)
	})
}
