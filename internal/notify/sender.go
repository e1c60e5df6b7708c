package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"postpilot/apps/backend/internal/config"
	"postpilot/apps/backend/internal/middleware"
)

// Kind selects the delivery channel for a notification.
type Kind string

const (
	KindEmail       Kind = "email"
	KindGMBReminder Kind = "gmb_reminder"
	KindSMS         Kind = "sms"
)

var ErrRejected = fmt.Errorf("notification rejected")

// Sender hands a rendered notification to a delivery channel. A nil return
// means the request was accepted for delivery, not that it was delivered.
type Sender interface {
	Send(ctx context.Context, kind Kind, recipient string, data json.RawMessage) error
}

// Publisher is the subset of *nsq.Producer the sender needs.
type Publisher interface {
	Publish(topic string, body []byte) error
}

// NSQSender publishes notification envelopes to per-kind NSQ topics; the
// delivery workers (email provider, GMB integration) consume them downstream.
type NSQSender struct {
	pub Publisher
}

func NewNSQSender(pub Publisher) *NSQSender {
	return &NSQSender{pub: pub}
}

type envelope struct {
	Kind          Kind            `json:"kind"`
	Recipient     string          `json:"recipient"`
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

func (s *NSQSender) Send(ctx context.Context, kind Kind, recipient string, data json.RawMessage) error {
	topic, err := topicFor(kind)
	if err != nil {
		return err
	}

	body, err := json.Marshal(envelope{
		Kind:          kind,
		Recipient:     recipient,
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(ctx),
	})
	if err != nil {
		return err
	}

	if err := s.pub.Publish(topic, body); err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	slog.InfoContext(ctx, "notification accepted", "kind", kind, "topic", topic, "recipient", recipient)
	return nil
}

func topicFor(kind Kind) (string, error) {
	switch kind {
	case KindEmail:
		return config.TopicNotifyEmail, nil
	case KindGMBReminder:
		return config.TopicNotifyGMB, nil
	case KindSMS:
		return config.TopicNotifySMS, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrRejected, kind)
	}
}
