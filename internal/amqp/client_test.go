package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/core"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"wrapped amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isConnectionError(tt.err))
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	t.Run("initial state is closed", func(t *testing.T) {
		assert.False(t, client.isCircuitOpen())
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		assert.False(t, client.isCircuitOpen())
		assert.Zero(t, atomic.LoadInt64(&client.failureCount))
	})

	t.Run("max failures open circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		assert.True(t, client.isCircuitOpen())
		assert.Equal(t, StateOpen, atomic.LoadInt32(&client.state))
	})

	t.Run("half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		assert.False(t, client.isCircuitOpen())
		assert.Equal(t, StateHalfOpen, atomic.LoadInt32(&client.state))
	})

	t.Run("failure while half-open reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)

		client.recordFailure()
		assert.True(t, client.isCircuitOpen())
	})
}

func TestPublishInsightRequest(t *testing.T) {
	t.Run("fails fast when circuit is open", func(t *testing.T) {
		client := &Client{queueName: "q"}
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishInsightRequest(context.Background(), "u1", "2025-01")
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("respects cancelled context", func(t *testing.T) {
		client := &Client{queueName: "q"}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.PublishInsightRequest(ctx, "u1", "2025-01")
		assert.Equal(t, context.Canceled, err)
	})

	t.Run("rejects invalid month before publishing", func(t *testing.T) {
		client := &Client{queueName: "q"}
		err := client.PublishInsightRequest(context.Background(), "u1", "2025-13")
		assert.ErrorIs(t, err, core.ErrInvalidMonth)
	})

	t.Run("counts a failure without a channel", func(t *testing.T) {
		client := &Client{queueName: "q"}
		err := client.PublishInsightRequest(context.Background(), "u1", "2025-01")
		require.Error(t, err)
		assert.EqualValues(t, 1, atomic.LoadInt64(&client.failureCount))
	})
}

func TestInsightRequestMessage(t *testing.T) {
	msg := NewInsightRequestMessage("u1", "2025-01")
	assert.NotEmpty(t, msg.RequestID)
	assert.WithinDuration(t, time.Now(), msg.Timestamp, time.Second)

	body, err := msg.ToJSON()
	require.NoError(t, err)

	parsed, err := InsightRequestMessageFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, msg.RequestID, parsed.RequestID)
	assert.Equal(t, "u1", parsed.Owner)
	assert.Equal(t, "2025-01", parsed.Month)
}

func TestInsightRequestMessageFromJSONRejects(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `{"owner":`,
		"missing owner": `{"owner":"  ","month":"2025-01"}`,
		"bad month":     `{"owner":"u1","month":"January"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := InsightRequestMessageFromJSON([]byte(body))
			assert.Error(t, err)
		})
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func TestProcess(t *testing.T) {
	good, err := NewInsightRequestMessage("u1", "2025-01").ToJSON()
	require.NoError(t, err)
	ok := func(context.Context, *InsightRequestMessage) error { return nil }
	fail := func(context.Context, *InsightRequestMessage) error { return errors.New("store down") }

	t.Run("acks on success", func(t *testing.T) {
		ack := &fakeAck{}
		process(context.Background(), good, false, ack, ok)
		assert.True(t, ack.acked)
		assert.False(t, ack.nacked)
	})

	t.Run("drops malformed", func(t *testing.T) {
		ack := &fakeAck{}
		called := false
		process(context.Background(), []byte("nope"), false, ack, func(context.Context, *InsightRequestMessage) error {
			called = true
			return nil
		})
		assert.False(t, called)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})

	t.Run("requeues first failure", func(t *testing.T) {
		ack := &fakeAck{}
		process(context.Background(), good, false, ack, fail)
		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("drops repeated failure", func(t *testing.T) {
		ack := &fakeAck{}
		process(context.Background(), good, true, ack, fail)
		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
	})
}
