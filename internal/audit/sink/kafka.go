// Package sink holds post-commit consumers of the audit trail.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"kontrakpro/internal/audit/models"
	"kontrakpro/pkg/platform/circuit"
)

// ErrCircuitOpen is returned while the breaker is refusing deliveries.
var ErrCircuitOpen = errors.New("kafka sink circuit open")

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Kafka forwards each committed event to the audit topic as JSON keyed by
// event id.
type Kafka struct {
	producer producer
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewKafka(p producer, breaker *circuit.Breaker, logger *slog.Logger) *Kafka {
	if breaker == nil {
		breaker = circuit.New("kafka")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{producer: p, breaker: breaker, logger: logger}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Deliver(ctx context.Context, e *models.Event) error {
	if !k.breaker.Allow() {
		return ErrCircuitOpen
	}

	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(e.ID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}

	if err := k.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := k.breaker.RecordFailure(); change.Opened {
			k.logger.WarnContext(ctx, "kafka sink circuit opened", "error", err)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}
	if _, change := k.breaker.RecordSuccess(); change.Closed {
		k.logger.InfoContext(ctx, "kafka sink circuit closed")
	}
	return nil
}
