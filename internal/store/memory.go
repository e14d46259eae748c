// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jason-s-yu/geohunt/internal/models"
)

// MemoryStore keeps lobbies in process. It backs tests and single-node
// deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	lobbies map[string]*models.Lobby
	subs    map[string]map[*Subscription]struct{}
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies: make(map[string]*models.Lobby),
		subs:    make(map[string]map[*Subscription]struct{}),
	}
}

func (s *MemoryStore) CreateLobby(_ context.Context, l *models.Lobby) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[l.Code]; exists {
		return ErrCodeTaken
	}
	s.lobbies[l.Code] = l.Clone()
	s.publishLocked(l.Code, s.lobbies[l.Code])
	return nil
}

func (s *MemoryStore) GetLobby(_ context.Context, code string) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[code]
	if !ok {
		return nil, fmt.Errorf("lobby %s: %w", code, models.ErrNotFound)
	}
	return l.Clone(), nil
}

func (s *MemoryStore) UpdateLobby(_ context.Context, code string, fn UpdateFunc) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.lobbies[code]
	if !ok {
		return nil, fmt.Errorf("lobby %s: %w", code, models.ErrNotFound)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.lobbies[code] = next
	s.publishLocked(code, next)
	return next.Clone(), nil
}

func (s *MemoryStore) DeleteLobby(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[code]; !ok {
		return nil
	}
	delete(s.lobbies, code)
	s.publishLocked(code, nil)
	return nil
}

func (s *MemoryStore) DeleteLobbyIf(_ context.Context, code string, pred func(l *models.Lobby) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.lobbies[code]
	if !ok || !pred(cur.Clone()) {
		return false, nil
	}
	delete(s.lobbies, code)
	s.publishLocked(code, nil)
	return true, nil
}

func (s *MemoryStore) ListLobbies(_ context.Context) ([]*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, code string) (*Subscription, error) {
	var sub *Subscription
	sub = newSubscription(ctx, code,
		func(ctx context.Context, patches []Patch) error {
			return applyPatches(ctx, s, code, patches)
		},
		func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[code], sub)
			if len(s.subs[code]) == 0 {
				delete(s.subs, code)
			}
		},
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.isClosed() {
		return sub, nil
	}
	if s.subs[code] == nil {
		s.subs[code] = make(map[*Subscription]struct{})
	}
	s.subs[code][sub] = struct{}{}
	if l, ok := s.lobbies[code]; ok {
		sub.deliver(l.Clone())
	}
	return sub, nil
}

// publishLocked fans a snapshot out to subscribers. Caller holds s.mu.
func (s *MemoryStore) publishLocked(code string, l *models.Lobby) {
	for sub := range s.subs[code] {
		if l == nil {
			sub.deliver(nil)
			continue
		}
		sub.deliver(l.Clone())
	}
}
