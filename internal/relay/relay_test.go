package relay

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
)

var testRedisURL string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}
	testRedisURL = "redis://" + endpoint

	code := m.Run()

	_ = container.Terminate(ctx)
	os.Exit(code)
}

func setupTestClient(t *testing.T) *Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client, err := NewClient(testRedisURL)
	require.NoError(t, err)

	// Flush all keys before each test
	require.NoError(t, client.rdb.FlushAll(context.Background()).Err())

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// captureSink records delivered events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
	ch     chan domain.Event
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan domain.Event, 16)}
}

func (s *captureSink) Deliver(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.ch <- event
	return nil
}

func TestRelayRoundTrip(t *testing.T) {
	client := setupTestClient(t)
	r := New(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newCaptureSink()
	go r.Run(ctx, sink)

	// Give the subscription time to establish.
	time.Sleep(100 * time.Millisecond)

	subject := int64(42)
	sent := domain.Event{
		ID:        7,
		Type:      domain.EventGradeUpdate,
		SubjectID: &subject,
		Payload:   json.RawMessage(`{"grade":91}`),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, r.Deliver(ctx, sent))

	select {
	case got := <-sink.ch:
		assert.Equal(t, sent.ID, got.ID)
		assert.Equal(t, sent.Type, got.Type)
		require.NotNil(t, got.SubjectID)
		assert.Equal(t, subject, *got.SubjectID)
		assert.JSONEq(t, `{"grade":91}`, string(got.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed event")
	}
}

func TestRelayPreservesOrder(t *testing.T) {
	client := setupTestClient(t)
	r := New(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newCaptureSink()
	go r.Run(ctx, sink)

	time.Sleep(100 * time.Millisecond)

	for i := int64(1); i <= 5; i++ {
		err := r.Deliver(ctx, domain.Event{
			ID:      i,
			Type:    domain.EventNotification,
			Payload: json.RawMessage(`{}`),
		})
		require.NoError(t, err)
	}

	var ids []int64
	timeout := time.After(2 * time.Second)
	for len(ids) < 5 {
		select {
		case e := <-sink.ch:
			ids = append(ids, e.ID)
		case <-timeout:
			t.Fatalf("timed out, received %d/5 events", len(ids))
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	client := setupTestClient(t)
	r := New(client)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, newCaptureSink())
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay subscriber did not stop after cancel")
	}
}
