// Package events publishes checkout outcomes for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/arben-grepi/ecomm-storefront-generator-sub004/internal/domain"
	"github.com/arben-grepi/ecomm-storefront-generator-sub004/pkg/errors"
)

const (
	TypeSessionCreated = "checkout.session_created"
	TypeRejected       = "checkout.rejected"
)

// CheckoutEvent is the message published for every createSession outcome
type CheckoutEvent struct {
	Type       string          `json:"type"`
	AttemptID  string          `json:"attemptId"`
	Tenant     string          `json:"tenant"`
	Market     string          `json:"market"`
	Outcome    string          `json:"outcome"`
	SessionID  string          `json:"sessionId,omitempty"`
	Kind       errors.Kind     `json:"kind,omitempty"`
	Reasons    []errors.Reason `json:"reasons,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// SessionCreated builds the event for a created session
func SessionCreated(s *domain.CheckoutSession) CheckoutEvent {
	return CheckoutEvent{
		Type:       TypeSessionCreated,
		AttemptID:  s.AttemptID,
		Tenant:     s.Tenant,
		Market:     s.Market,
		Outcome:    string(domain.OutcomeCreated),
		SessionID:  s.ID,
		OccurredAt: time.Now().UTC(),
	}
}

// Rejected builds the event for a rejected attempt
func Rejected(attemptID string, sc domain.StoreContext, rej *errors.Rejection) CheckoutEvent {
	outcome := domain.OutcomeRejected
	if rej.Retryable {
		outcome = domain.OutcomeRetry
	}
	return CheckoutEvent{
		Type:       TypeRejected,
		AttemptID:  attemptID,
		Tenant:     sc.Tenant,
		Market:     sc.Market,
		Outcome:    string(outcome),
		Kind:       rej.Kind,
		Reasons:    rej.Reasons,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers checkout events
type Publisher interface {
	Publish(ctx context.Context, event CheckoutEvent) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher writes events to topic, keyed by attempt id so one attempt stays on
// one partition.
func NewKafkaPublisher(brokersCSV, topic string, logger *zap.Logger) (Publisher, error) {
	brokers := splitBrokers(brokersCSV)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(writer, logger), nil
}

func newKafkaPublisher(w messageWriter, logger *zap.Logger) *kafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &kafkaPublisher{writer: w, logger: logger}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event CheckoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.AttemptID),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return &errors.ErrUpstream{Service: "kafka", Err: err}
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event; used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, CheckoutEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

func splitBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
