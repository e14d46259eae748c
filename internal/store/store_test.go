package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory func(t *testing.T) LobbyStore

func newMemory(t *testing.T) LobbyStore {
	return NewMemoryStore()
}

func newRedis(t *testing.T) LobbyStore {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	s := NewRedisStore(rdb)
	s.maxRetries = 1000
	return s
}

var factories = map[string]storeFactory{
	"memory": newMemory,
	"redis":  newRedis,
}

func newTestLobby(code string) (*models.Lobby, uuid.UUID) {
	host := uuid.New()
	return &models.Lobby{
		Code:       code,
		Host:       host,
		Status:     models.StatusWaiting,
		PresetID:   uuid.New(),
		TimeLimit:  20,
		MaxPlayers: 4,
		Players:    map[uuid.UUID]*models.PlayerState{host: models.NewPlayerState("host")},
	}, host
}

// next waits for the next snapshot on a subscription.
func next(t *testing.T, sub *Subscription) (*models.Lobby, bool) {
	t.Helper()
	select {
	case l, ok := <-sub.C:
		return l, ok
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for lobby snapshot")
		return nil, false
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s LobbyStore)) {
	for name, f := range factories {
		t.Run(name, func(t *testing.T) {
			fn(t, f(t))
		})
	}
}

func TestCreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		l, host := newTestLobby("AAAA1111")
		require.NoError(t, s.CreateLobby(ctx, l))

		got, err := s.GetLobby(ctx, "AAAA1111")
		require.NoError(t, err)
		assert.Equal(t, host, got.Host)
		assert.Equal(t, models.StatusWaiting, got.Status)
		require.Contains(t, got.Players, host)
		assert.Equal(t, "host", got.Players[host].Username)

		dup, _ := newTestLobby("AAAA1111")
		assert.ErrorIs(t, s.CreateLobby(ctx, dup), ErrCodeTaken)

		_, err = s.GetLobby(ctx, "ZZZZ9999")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestUpdateLobby(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		l, host := newTestLobby("BBBB2222")
		require.NoError(t, s.CreateLobby(ctx, l))

		updated, err := s.UpdateLobby(ctx, "BBBB2222", func(l *models.Lobby) error {
			l.Players[host].Score = 42
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, updated.Players[host].Score)

		boom := errors.New("boom")
		_, err = s.UpdateLobby(ctx, "BBBB2222", func(l *models.Lobby) error {
			l.Players[host].Score = 99
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.GetLobby(ctx, "BBBB2222")
		require.NoError(t, err)
		assert.Equal(t, 42, got.Players[host].Score, "aborted update must not be written")

		_, err = s.UpdateLobby(ctx, "NOPE0000", func(*models.Lobby) error { return nil })
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		l, host := newTestLobby("CCCC3333")
		require.NoError(t, s.CreateLobby(ctx, l))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 5; j++ {
					_, err := s.UpdateLobby(ctx, "CCCC3333", func(l *models.Lobby) error {
						l.Players[host].Score++
						return nil
					})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		got, err := s.GetLobby(ctx, "CCCC3333")
		require.NoError(t, err)
		assert.Equal(t, 40, got.Players[host].Score)
	})
}

func TestDeleteAndList(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		for _, code := range []string{"DDDD0002", "DDDD0001", "DDDD0003"} {
			l, _ := newTestLobby(code)
			require.NoError(t, s.CreateLobby(ctx, l))
		}

		all, err := s.ListLobbies(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "DDDD0001", all[0].Code)
		assert.Equal(t, "DDDD0003", all[2].Code)

		require.NoError(t, s.DeleteLobby(ctx, "DDDD0002"))
		require.NoError(t, s.DeleteLobby(ctx, "DDDD0002"))
		_, err = s.GetLobby(ctx, "DDDD0002")
		assert.ErrorIs(t, err, models.ErrNotFound)

		all, err = s.ListLobbies(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestDeleteLobbyIf(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		l, host := newTestLobby("DDDD4444")
		require.NoError(t, s.CreateLobby(ctx, l))
		hostGone := func(l *models.Lobby) bool { return !l.HostPresent() }

		deleted, err := s.DeleteLobbyIf(ctx, "DDDD4444", hostGone)
		require.NoError(t, err)
		assert.False(t, deleted)
		_, err = s.GetLobby(ctx, "DDDD4444")
		require.NoError(t, err)

		sub, err := s.Subscribe(ctx, "DDDD4444")
		require.NoError(t, err)
		defer sub.Close()
		_, ok := next(t, sub)
		require.True(t, ok)

		_, err = s.UpdateLobby(ctx, "DDDD4444", func(l *models.Lobby) error {
			delete(l.Players, host)
			return nil
		})
		require.NoError(t, err)
		_, ok = next(t, sub)
		require.True(t, ok)

		deleted, err = s.DeleteLobbyIf(ctx, "DDDD4444", hostGone)
		require.NoError(t, err)
		assert.True(t, deleted)
		gone, ok := next(t, sub)
		require.True(t, ok)
		assert.Nil(t, gone)

		_, err = s.GetLobby(ctx, "DDDD4444")
		assert.ErrorIs(t, err, models.ErrNotFound)
		deleted, err = s.DeleteLobbyIf(ctx, "DDDD4444", hostGone)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestSubscribeStreamsSnapshots(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		l, host := newTestLobby("EEEE4444")
		require.NoError(t, s.CreateLobby(ctx, l))

		sub, err := s.Subscribe(ctx, "EEEE4444")
		require.NoError(t, err)
		defer sub.Close()

		first, ok := next(t, sub)
		require.True(t, ok)
		assert.Equal(t, "EEEE4444", first.Code)

		_, err = s.UpdateLobby(ctx, "EEEE4444", func(l *models.Lobby) error {
			l.Players[host].Score = 7
			return nil
		})
		require.NoError(t, err)

		snap, ok := next(t, sub)
		require.True(t, ok)
		require.NotNil(t, snap)
		assert.Equal(t, 7, snap.Players[host].Score)

		require.NoError(t, s.DeleteLobby(ctx, "EEEE4444"))
		gone, ok := next(t, sub)
		require.True(t, ok)
		assert.Nil(t, gone)
	})
}

func TestSubscribeDuringWritesEndsOnLatestState(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx := context.Background()
		l, host := newTestLobby("EEEE5555")
		require.NoError(t, s.CreateLobby(ctx, l))

		const writes = 30
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < writes; i++ {
				_, err := s.UpdateLobby(ctx, "EEEE5555", func(l *models.Lobby) error {
					l.Players[host].Score++
					return nil
				})
				assert.NoError(t, err)
			}
		}()

		sub, err := s.Subscribe(ctx, "EEEE5555")
		require.NoError(t, err)
		defer sub.Close()
		<-done

		var last *models.Lobby
		for {
			select {
			case snap := <-sub.C:
				last = snap
				continue
			case <-time.After(300 * time.Millisecond):
			}
			break
		}
		require.NotNil(t, last)
		assert.Equal(t, writes, last.Players[host].Score)
	})
}

func TestDisconnectPatchRunsWhenContextEnds(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		l, host := newTestLobby("FFFF5555")
		require.NoError(t, s.CreateLobby(context.Background(), l))

		ctx, cancel := context.WithCancel(context.Background())
		sub, err := s.Subscribe(ctx, "FFFF5555")
		require.NoError(t, err)
		sub.OnDisconnect(func(l *models.Lobby) {
			if p, ok := l.Players[host]; ok {
				p.MarkOffline(time.Now())
			}
		})

		cancel()
		select {
		case <-sub.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("subscription did not shut down")
		}

		got, err := s.GetLobby(context.Background(), "FFFF5555")
		require.NoError(t, err)
		assert.False(t, got.Players[host].Online)
		assert.NotNil(t, got.Players[host].LastActive)
	})
}

func TestCloseSkipsDisconnectPatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s LobbyStore) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		l, host := newTestLobby("GGGG6666")
		require.NoError(t, s.CreateLobby(ctx, l))

		sub, err := s.Subscribe(ctx, "GGGG6666")
		require.NoError(t, err)
		sub.OnDisconnect(func(l *models.Lobby) { l.Players[host].Online = false })
		sub.Close()
		<-sub.Done()

		got, err := s.GetLobby(ctx, "GGGG6666")
		require.NoError(t, err)
		assert.True(t, got.Players[host].Online)

		// C is drained and closed after release.
		for range sub.C {
		}
	})
}
