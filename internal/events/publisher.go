package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// OrderSettled is emitted once a verified payment has been persisted.
// It carries enough to reconcile the local order against the gateway record.
type OrderSettled struct {
	OrderID        string          `json:"orderId"`
	GatewayOrderID string          `json:"gatewayOrderId"`
	PaymentID      string          `json:"paymentId"`
	UserID         string          `json:"userId"`
	CouponCode     string          `json:"couponCode,omitempty"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Currency       string          `json:"currency"`
	SettledAt      time.Time       `json:"settledAt"`
}

// Publisher emits settlement events
type Publisher interface {
	PublishOrderSettled(ctx context.Context, event OrderSettled) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by payment id
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *KafkaPublisher) PublishOrderSettled(ctx context.Context, event OrderSettled) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PaymentID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("order.settled")},
		},
	}); err != nil {
		return fmt.Errorf("writer.WriteMessages: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event; used when no brokers are configured
type NopPublisher struct{}

func (NopPublisher) PublishOrderSettled(context.Context, OrderSettled) error { return nil }

func (NopPublisher) Close() error { return nil }
