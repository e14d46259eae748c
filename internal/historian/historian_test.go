// internal/historian/historian_test.go
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/cache"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]models.RoundEvent
	fail    int
}

func (s *memorySink) InsertRoundEvents(_ context.Context, events []models.RoundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail > 0 {
		s.fail--
		return errors.New("db down")
	}
	s.batches = append(s.batches, append([]models.RoundEvent(nil), events...))
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func (s *memorySink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, len(b))
	}
	return out
}

func setup(t *testing.T, sink Sink, batchSize int) (*cache.EventQueue, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	q := cache.NewEventQueue(rdb, "events")
	svc := New(rdb, q.Name(), sink, batchSize, 50*time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q, cancel, done
}

func publish(t *testing.T, q *cache.EventQueue, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, q.PublishRoundEvent(context.Background(), models.RoundEvent{
			LobbyCode: "ABCD1234",
			Round:     1,
			UserID:    uuid.New(),
			Type:      models.EventGuess,
			Timestamp: time.Now().UnixMilli(),
		}))
	}
}

func TestFlushesFullBatches(t *testing.T) {
	sink := &memorySink{}
	q, _, _ := setup(t, sink, 2)

	publish(t, q, 4)
	require.Eventually(t, func() bool { return sink.count() == 4 }, 5*time.Second, 10*time.Millisecond)
	for _, size := range sink.sizes() {
		assert.LessOrEqual(t, size, 2)
	}
}

func TestFlushesPartialBatchAfterDelay(t *testing.T) {
	sink := &memorySink{}
	q, _, _ := setup(t, sink, 100)

	publish(t, q, 3)
	require.Eventually(t, func() bool { return sink.count() == 3 }, 5*time.Second, 10*time.Millisecond)
}

func TestSkipsMalformedPayloads(t *testing.T) {
	sink := &memorySink{}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	log := logrus.New()
	log.SetOutput(io.Discard)

	good, err := json.Marshal(models.RoundEvent{LobbyCode: "ABCD1234", Type: models.EventRoundEnded})
	require.NoError(t, err)
	_, err = mr.RPush("events", "{not json", string(good))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(rdb, "events", sink, 1, 10*time.Millisecond, log).Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return sink.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestRetriesAfterSinkFailure(t *testing.T) {
	sink := &memorySink{fail: 1}
	q, _, _ := setup(t, sink, 1)

	publish(t, q, 1)
	require.Eventually(t, func() bool { return sink.count() == 1 }, 5*time.Second, 10*time.Millisecond)
}

func TestFlushesOnShutdown(t *testing.T) {
	sink := &memorySink{}
	q, cancel, done := setup(t, sink, 100)

	publish(t, q, 2)
	// Give the consumer a moment to pop the events before stopping it.
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 2, sink.count())
}
