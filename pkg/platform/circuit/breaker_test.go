package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kontrakpro/pkg/clock"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewBreakerIsClosed(t *testing.T) {
	b := New("kafka")
	assert.Equal(t, "kafka", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())
}

func TestFailureThreshold(t *testing.T) {
	b := New("kafka", WithFailureThreshold(3))

	for range 2 {
		fallback, change := b.RecordFailure()
		require.False(t, fallback)
		require.False(t, change.Opened)
	}
	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.Equal(t, "open", b.State().String())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "already open")
}

func TestSuccessClearsFailureRun(t *testing.T) {
	b := New("kafka", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "failures must be consecutive")

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestClosingNeedsConsecutiveSuccesses(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen(), "a failure restarts the success run")

	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestAllowWhileOpen(t *testing.T) {
	clk := clock.Fake(start)
	b := New("kafka",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(clk),
	)
	b.RecordFailure()

	t.Run("refuses during cooldown", func(t *testing.T) {
		assert.False(t, b.Allow())
		clk.Advance(59 * time.Second)
		assert.False(t, b.Allow())
	})

	t.Run("admits one probe per cooldown", func(t *testing.T) {
		clk.Advance(time.Second)
		assert.True(t, b.Allow())
		assert.False(t, b.Allow())
	})

	t.Run("failed probe restarts cooldown", func(t *testing.T) {
		b.RecordFailure()
		clk.Advance(30 * time.Second)
		assert.False(t, b.Allow())
		clk.Advance(30 * time.Second)
		assert.True(t, b.Allow())
	})

	t.Run("successful probe admits the next call", func(t *testing.T) {
		b.RecordSuccess()
		assert.True(t, b.Allow())
		b.RecordSuccess()
		assert.False(t, b.IsOpen())
	})
}

func TestReset(t *testing.T) {
	b := New("kafka", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}
