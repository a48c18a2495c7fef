// Package eventhook streams stockledger events to Kafka.
//
// Every event is a JSON envelope keyed by the bill number or SKU it
// concerns, so all events for one bill or product land on one partition.
package eventhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/xraph/stockledger/bill"
	"github.com/xraph/stockledger/discount"
	"github.com/xraph/stockledger/id"
	"github.com/xraph/stockledger/plugin"
	"github.com/xraph/stockledger/product"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Publisher)(nil)
	_ plugin.OnShutdown        = (*Publisher)(nil)
	_ plugin.OnBillGenerated   = (*Publisher)(nil)
	_ plugin.OnBillPaid        = (*Publisher)(nil)
	_ plugin.OnLowStock        = (*Publisher)(nil)
	_ plugin.OnProductExpiring = (*Publisher)(nil)
	_ plugin.OnProductExpired  = (*Publisher)(nil)
)

// Event types
const (
	TypeBillGenerated   = "bill.generated"
	TypeBillPaid        = "bill.paid"
	TypeStockLow        = "stock.low"
	TypeProductExpiring = "product.expiring"
	TypeProductExpired  = "product.expired"
)

// DefaultTopic is used when no topic is configured.
const DefaultTopic = "stockledger-events"

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Event is the envelope written as the message value.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ProductEvent is the payload of stock and expiry events.
type ProductEvent struct {
	Product    *product.Product     `json:"product"`
	Evaluation *discount.Evaluation `json:"evaluation,omitempty"`
}

// Publisher is a plugin that writes stockledger events to Kafka.
type Publisher struct {
	writer  Writer
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

// batchTimeout caps how long a synchronous write waits for a batch to fill.
const batchTimeout = 5 * time.Millisecond

// NewKafkaWriter builds a writer for brokers and topic. Every event is sent
// as its own batch so a hook returns as soon as the brokers acknowledge it.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           batchTimeout,
	}
}

// New creates a Publisher writing through w.
func New(w Writer, opts ...Option) *Publisher {
	p := &Publisher{
		writer:  w,
		logger:  slog.Default(),
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements plugin.Plugin.
func (p *Publisher) Name() string { return "event-hook" }

// OnShutdown implements plugin.OnShutdown.
func (p *Publisher) OnShutdown(_ context.Context) error {
	return p.writer.Close()
}

// OnBillGenerated implements plugin.OnBillGenerated.
func (p *Publisher) OnBillGenerated(ctx context.Context, b *bill.Bill) error {
	return p.publish(ctx, TypeBillGenerated, b.Number, b)
}

// OnBillPaid implements plugin.OnBillPaid.
func (p *Publisher) OnBillPaid(ctx context.Context, b *bill.Bill) error {
	return p.publish(ctx, TypeBillPaid, b.Number, b)
}

// OnLowStock implements plugin.OnLowStock.
func (p *Publisher) OnLowStock(ctx context.Context, prod *product.Product) error {
	return p.publish(ctx, TypeStockLow, prod.SKU, ProductEvent{Product: prod})
}

// OnProductExpiring implements plugin.OnProductExpiring.
func (p *Publisher) OnProductExpiring(ctx context.Context, prod *product.Product, eval discount.Evaluation) error {
	return p.publish(ctx, TypeProductExpiring, prod.SKU, ProductEvent{Product: prod, Evaluation: &eval})
}

// OnProductExpired implements plugin.OnProductExpired.
func (p *Publisher) OnProductExpired(ctx context.Context, prod *product.Product, eval discount.Evaluation) error {
	return p.publish(ctx, TypeProductExpired, prod.SKU, ProductEvent{Product: prod, Evaluation: &eval})
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("eventhook: encode %s: %w", eventType, err)
	}
	evt := Event{
		ID:         id.NewEventID().String(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Data:       data,
	}
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("eventhook: encode envelope: %w", err)
	}

	// The sale has already committed; a canceled caller must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  evt.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	})
	if err != nil {
		p.logger.Warn("eventhook: publish failed",
			"type", eventType,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("eventhook: publish %s: %w", eventType, err)
	}
	return nil
}
