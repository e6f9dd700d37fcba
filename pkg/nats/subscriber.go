package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

// Subscriber handles listening for events from NATS.
type Subscriber struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	logger   logger.ILogger
	contexts []jetstream.ConsumeContext
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// Subscribe registers a durable consumer for one event type. A handler error
// naks the message so JetStream redelivers it.
func (s *Subscriber) Subscribe(ctx context.Context, eventType, durableName string, handler EventHandler) error {
	subject := Subject(eventType)

	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := DecodeEvent(msg.Subject(), msg.Data())
		if err != nil {
			s.logger.Error("NATS", "Dropping undecodable event", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
			_ = msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			s.logger.Warn("NATS", "Handler failed, event will be redelivered", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.contexts = append(s.contexts, cc)

	s.logger.Info("NATS", "Subscribed", map[string]interface{}{"subject": subject, "durable": durableName})
	return nil
}

// DecodeEvent rebuilds an event from its subject and JSON payload.
func DecodeEvent(subject string, data []byte) (events.BaseEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return events.BaseEvent{}, err
	}

	occurredAt := time.Now()
	if raw, ok := payload["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			occurredAt = t
		}
	}

	return events.BaseEvent{
		Type:       strings.TrimPrefix(subject, SubjectPrefix),
		Data:       payload,
		OccurredAt: occurredAt,
	}, nil
}

func (s *Subscriber) Close() {
	for _, cc := range s.contexts {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
