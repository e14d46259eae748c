// internal/store/subscription.go
package store

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/geohunt/internal/models"
	log "github.com/sirupsen/logrus"
)

const subscriptionBuffer = 16

// Subscription delivers lobby snapshots on C. A nil snapshot means the lobby
// was deleted. C is closed once the subscription is released.
type Subscription struct {
	Code string
	C    <-chan *models.Lobby

	ch       chan *models.Lobby
	mu       sync.Mutex
	closed   bool
	patches  []Patch
	once     sync.Once
	stop     chan struct{}
	finished chan struct{}

	apply   func(ctx context.Context, patches []Patch) error
	release func()
}

func newSubscription(ctx context.Context, code string, apply func(context.Context, []Patch) error, release func()) *Subscription {
	ch := make(chan *models.Lobby, subscriptionBuffer)
	s := &Subscription{
		Code:     code,
		C:        ch,
		ch:       ch,
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
		apply:    apply,
		release:  release,
	}
	go func() {
		select {
		case <-ctx.Done():
			s.shutdown(true)
		case <-s.stop:
		}
	}()
	return s
}

// OnDisconnect registers a patch to apply if the subscriber's context ends
// without an explicit Close.
func (s *Subscription) OnDisconnect(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, p)
}

// Close releases the subscription without running disconnect patches.
func (s *Subscription) Close() {
	s.shutdown(false)
}

// Done is closed after the subscription has been released and any disconnect
// patches have been applied.
func (s *Subscription) Done() <-chan struct{} {
	return s.finished
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// deliver pushes a snapshot without blocking. When the buffer is full the
// oldest snapshot is dropped, since only the latest state matters.
func (s *Subscription) deliver(l *models.Lobby) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- l:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- l:
	default:
		log.Warnf("Subscription %s: dropped snapshot, buffer full", s.Code)
	}
}

func (s *Subscription) shutdown(runPatches bool) {
	s.once.Do(func() {
		defer close(s.finished)
		close(s.stop)

		s.mu.Lock()
		s.closed = true
		patches := s.patches
		s.patches = nil
		close(s.ch)
		s.mu.Unlock()

		if s.release != nil {
			s.release()
		}
		if !runPatches || len(patches) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.apply(ctx, patches); err != nil {
			log.Warnf("Subscription %s: failed to apply disconnect patches: %v", s.Code, err)
		}
	})
}
