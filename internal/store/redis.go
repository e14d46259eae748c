// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key and channel the RedisStore touches.
const DefaultKeyPrefix = "geohunt:"

const defaultMaxRetries = 10

// deletedPayload is published on a lobby's channel when it is removed.
var deletedPayload = []byte("null")

// RedisStore keeps each lobby as a JSON document under {prefix}game:{code}.
// Updates use WATCH/MULTI so concurrent writers never lose each other's
// changes, and every write is published on {prefix}game-updates:{code}.
type RedisStore struct {
	rdb        *redis.Client
	prefix     string
	maxRetries int
}

// NewRedisStore wraps a connected client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb:        rdb,
		prefix:     DefaultKeyPrefix,
		maxRetries: defaultMaxRetries,
	}
}

func (s *RedisStore) key(code string) string {
	return s.prefix + "game:" + code
}

func (s *RedisStore) channel(code string) string {
	return s.prefix + "game-updates:" + code
}

func transient(op, code string, err error) error {
	return fmt.Errorf("%s lobby %s: %w: %w", op, code, models.ErrTransient, err)
}

func decodeLobby(data []byte) (*models.Lobby, error) {
	var l *models.Lobby
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode lobby: %w", err)
	}
	if l != nil && l.Players == nil {
		l.Players = make(map[uuid.UUID]*models.PlayerState)
	}
	return l, nil
}

func (s *RedisStore) CreateLobby(ctx context.Context, l *models.Lobby) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode lobby: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(l.Code), data, 0).Result()
	if err != nil {
		return transient("create", l.Code, err)
	}
	if !ok {
		return ErrCodeTaken
	}
	if err := s.rdb.Publish(ctx, s.channel(l.Code), data).Err(); err != nil {
		return transient("publish", l.Code, err)
	}
	return nil
}

func (s *RedisStore) GetLobby(ctx context.Context, code string) (*models.Lobby, error) {
	data, err := s.rdb.Get(ctx, s.key(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lobby %s: %w", code, models.ErrNotFound)
	}
	if err != nil {
		return nil, transient("get", code, err)
	}
	return decodeLobby(data)
}

func (s *RedisStore) UpdateLobby(ctx context.Context, code string, fn UpdateFunc) (*models.Lobby, error) {
	key := s.key(code)
	var result *models.Lobby

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("lobby %s: %w", code, models.ErrNotFound)
		}
		if err != nil {
			return transient("get", code, err)
		}
		l, err := decodeLobby(data)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		out, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode lobby: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			pipe.Publish(ctx, s.channel(code), out)
			return nil
		})
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return transient("update", code, err)
		}
		if err != nil {
			return err
		}
		result = l
		return nil
	}

	if err := s.watch(ctx, "update", code, txf); err != nil {
		return nil, err
	}
	return result, nil
}

// watch runs txf under WATCH on the lobby key, retrying when another writer
// got in first.
func (s *RedisStore) watch(ctx context.Context, op, code string, txf func(tx *redis.Tx) error) error {
	for i := 0; i < s.maxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, s.key(code))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%s lobby %s: %w: too many concurrent writers", op, code, models.ErrTransient)
}

func (s *RedisStore) DeleteLobby(ctx context.Context, code string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(code))
		pipe.Publish(ctx, s.channel(code), deletedPayload)
		return nil
	})
	if err != nil {
		return transient("delete", code, err)
	}
	return nil
}

func (s *RedisStore) DeleteLobbyIf(ctx context.Context, code string, pred func(l *models.Lobby) bool) (bool, error) {
	key := s.key(code)
	var deleted bool

	txf := func(tx *redis.Tx) error {
		deleted = false
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return transient("get", code, err)
		}
		l, err := decodeLobby(data)
		if err != nil {
			return err
		}
		if !pred(l) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.Publish(ctx, s.channel(code), deletedPayload)
			return nil
		})
		if err != nil && !errors.Is(err, redis.TxFailedErr) {
			return transient("delete", code, err)
		}
		if err != nil {
			return err
		}
		deleted = true
		return nil
	}

	if err := s.watch(ctx, "delete", code, txf); err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *RedisStore) ListLobbies(ctx context.Context) ([]*models.Lobby, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"game:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, transient("scan", "*", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, transient("mget", "*", err)
	}
	out := make([]*models.Lobby, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // deleted between SCAN and MGET
		}
		l, err := decodeLobby([]byte(str))
		if err != nil || l == nil {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *RedisStore) Subscribe(ctx context.Context, code string) (*Subscription, error) {
	ps := s.rdb.Subscribe(ctx, s.channel(code))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, transient("subscribe", code, err)
	}

	sub := newSubscription(ctx, code,
		func(ctx context.Context, patches []Patch) error {
			return applyPatches(ctx, s, code, patches)
		},
		func() { _ = ps.Close() },
	)

	// The channel is subscribed before the read, so every write after it is
	// queued behind the initial snapshot.
	if l, err := s.GetLobby(ctx, code); err == nil {
		sub.deliver(l)
	}

	msgs := ps.Channel()
	go func() {
		for msg := range msgs {
			l, err := decodeLobby([]byte(msg.Payload))
			if err != nil {
				continue
			}
			sub.deliver(l)
		}
	}()
	return sub, nil
}
