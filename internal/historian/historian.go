// internal/historian/historian.go is an asynchronous consumer that pops round
// events from a Redis queue and persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Sink persists a batch of events atomically.
type Sink interface {
	InsertRoundEvents(ctx context.Context, events []models.RoundEvent) error
}

// BLPOP timeouts are whole seconds.
const minPollTimeout = time.Second

// Service drains the queue. Only the Run goroutine touches the batch.
type Service struct {
	rdb        *redis.Client
	queue      string
	sink       Sink
	log        logrus.FieldLogger
	batchSize  int
	flushDelay time.Duration

	// maxPending bounds how many events are held while the sink is failing.
	maxPending int

	batch     []models.RoundEvent
	lastFlush time.Time
}

// New returns a Service that flushes when batchSize events are pending or
// flushDelay has passed since the last flush.
func New(rdb *redis.Client, queue string, sink Sink, batchSize int, flushDelay time.Duration, log logrus.FieldLogger) *Service {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Service{
		rdb:        rdb,
		queue:      queue,
		sink:       sink,
		log:        log.WithField("queue", queue),
		batchSize:  batchSize,
		flushDelay: flushDelay,
		maxPending: batchSize * 10,
		batch:      make([]models.RoundEvent, 0, batchSize),
	}
}

// Run consumes until ctx ends, then flushes what it holds.
func (s *Service) Run(ctx context.Context) {
	s.log.Info("historian started")
	s.lastFlush = time.Now()
	poll := s.flushDelay
	if poll < minPollTimeout {
		poll = minPollTimeout
	}

	for ctx.Err() == nil {
		res, err := s.rdb.BLPop(ctx, poll, s.queue).Result()
		switch {
		case err == nil && len(res) == 2:
			// res[0] is the queue name and res[1] the payload.
			s.accept(res[1])
		case err == nil, errors.Is(err, redis.Nil):
		case ctx.Err() != nil:
		default:
			s.log.Warnf("BLPop: %v", err)
			sleep(ctx, poll)
		}

		if len(s.batch) >= s.batchSize || time.Since(s.lastFlush) >= s.flushDelay {
			s.flush(ctx)
		}
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.flush(flushCtx)
	s.log.Info("historian stopped")
}

func (s *Service) accept(payload string) {
	var ev models.RoundEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.log.Warnf("invalid round event: %v", err)
		return
	}
	s.batch = append(s.batch, ev)
}

// flush writes the pending batch. On failure the batch is kept for the next
// attempt, dropping the oldest events past maxPending.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.InsertRoundEvents(ctx, s.batch); err != nil {
		s.log.Errorf("failed to flush %d events: %v", len(s.batch), err)
		if over := len(s.batch) - s.maxPending; over > 0 {
			s.log.Warnf("dropping %d oldest events", over)
			s.batch = append(s.batch[:0], s.batch[over:]...)
		}
		return
	}
	s.log.Debugf("flushed %d events", len(s.batch))
	s.batch = make([]models.RoundEvent, 0, s.batchSize)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
