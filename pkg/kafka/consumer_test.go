package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyHandler struct {
	failures int
	calls    int
	got      []byte
}

func (h *flakyHandler) Topic() string { return "bars" }

func (h *flakyHandler) Handle(_ context.Context, data []byte) error {
	h.calls++
	h.got = data
	if h.calls <= h.failures {
		return errors.New("store unavailable")
	}
	return nil
}

func newTestConsumer(t *testing.T, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, time.Millisecond),
	)
	require.NoError(t, err)
	c.sleepFn = func(time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return c
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t, 3)
	h := &flakyHandler{failures: 2}
	c.RegisterHandler(h)

	err := c.process(kafka.Message{Topic: "bars", Value: []byte(`{"symbol":"AAPL"}`)})
	require.NoError(t, err)
	assert.Equal(t, 3, h.calls)
	assert.Equal(t, `{"symbol":"AAPL"}`, string(h.got))
}

func TestProcessGivesUpAndReportsAttempts(t *testing.T) {
	c := newTestConsumer(t, 1)
	h := &flakyHandler{failures: 10}
	c.RegisterHandler(h)

	var reported int
	c.SetHook(HookFuncs{Err: func(_ context.Context, _ string, _ kafka.Message, attempts int, _ error) {
		reported = attempts
	}})

	err := c.process(kafka.Message{Topic: "bars"})
	require.Error(t, err)
	assert.Equal(t, 2, h.calls)
	assert.Equal(t, 2, reported)
}

func TestProcessBeforeHookRejects(t *testing.T) {
	c := newTestConsumer(t, 0)
	h := &flakyHandler{}
	c.RegisterHandler(h)
	c.SetHook(HookFuncs{Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
		return ctx, data, errors.New("bad schema")
	}})

	err := c.process(kafka.Message{Topic: "bars"})
	assert.EqualError(t, err, "bad schema")
	assert.Equal(t, 0, h.calls)
}

func TestProcessRecoversPanics(t *testing.T) {
	c := newTestConsumer(t, 0)
	c.RegisterHandler(panicHandler{})

	err := c.process(kafka.Message{Topic: "bars"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}

type panicHandler struct{}

func (panicHandler) Topic() string { return "bars" }
func (panicHandler) Handle(context.Context, []byte) error { panic("nil map") }

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(100*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]interface{}{"symbol": "AAPL"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbol":"AAPL"}`, string(b))

	b, err = encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", string(b))
}

func TestProducerOptions(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithDelivery(1, 0),
		WithBatching(0, 4096, 50*time.Millisecond),
		WithHashByKey(true),
	} {
		opt(&cfg)
	}
	assert.Equal(t, 1, cfg.RequiredAcks)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 4096, cfg.BatchBytes)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchTimeout)
	assert.True(t, cfg.HashByKey)

	_, err := NewProducer()
	assert.Error(t, err)
}
