package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"kontrakpro/internal/audit/models"
	"kontrakpro/pkg/clock"
	"kontrakpro/pkg/domain"
	"kontrakpro/pkg/platform/circuit"
)

var eventTime = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		if f.err == nil {
			f.records = append(f.records, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func signedEvent(t *testing.T) *models.Event {
	t.Helper()
	e, err := models.NewEvent(domain.NewEventID(), models.EventInput{
		Type:         models.EventContractSigned,
		ContractID:   "c-42",
		ContractName: "Master Services Agreement",
		Actor:        models.Actor{UserID: "u-1", UserName: "Dana"},
		Details: &models.ContractSigned{
			SignerName: "Lee", SignerEmail: "lee@example.com", Method: "electronic",
		},
	}, eventTime)
	require.NoError(t, err)
	return e
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestKafkaDeliverProducesKeyedJSON(t *testing.T) {
	p := &fakeProducer{}
	k := NewKafka(p, nil, discardLogger())
	e := signedEvent(t)

	require.NoError(t, k.Deliver(context.Background(), e))
	require.Len(t, p.records, 1)

	r := p.records[0]
	assert.Equal(t, e.ID.String(), string(r.Key))
	assert.Equal(t, "kafka", k.Name())

	var decoded models.Event
	require.NoError(t, json.Unmarshal(r.Value, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, models.EventContractSigned, decoded.Type)
	assert.Equal(t, "Lee", decoded.Details.(*models.ContractSigned).SignerName)
}

func TestKafkaDeliverOpensCircuit(t *testing.T) {
	clk := clock.Fake(eventTime)
	breaker := circuit.New("kafka",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(clk),
	)
	p := &fakeProducer{}
	p.fail(errors.New("broker not available"))
	k := NewKafka(p, breaker, discardLogger())
	ctx := context.Background()

	assert.Error(t, k.Deliver(ctx, signedEvent(t)))
	assert.Error(t, k.Deliver(ctx, signedEvent(t)))
	assert.True(t, breaker.IsOpen())

	err := k.Deliver(ctx, signedEvent(t))
	assert.ErrorIs(t, err, ErrCircuitOpen)

	p.fail(nil)
	clk.Advance(time.Minute)
	require.NoError(t, k.Deliver(ctx, signedEvent(t)))
	assert.False(t, breaker.IsOpen())
	assert.Len(t, p.records, 1)
}
