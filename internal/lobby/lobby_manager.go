// internal/lobby/lobby_manager.go

package lobby

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/game"
	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/jason-s-yu/geohunt/internal/store"
	"github.com/sirupsen/logrus"
)

// CodeAlphabet and CodeLength define lobby codes.
const (
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CodeLength   = 8
)

const (
	maxCodeAttempts = 10
	timerOpTimeout  = 5 * time.Second
)

// errStale aborts an update whose precondition no longer holds.
var errStale = errors.New("stale lobby state")

// PresetSource resolves preset ids.
type PresetSource interface {
	GetPreset(ctx context.Context, id uuid.UUID) (*models.Preset, error)
}

// EventSink receives round events. Failures are logged and otherwise ignored.
type EventSink interface {
	PublishRoundEvent(ctx context.Context, ev models.RoundEvent) error
}

// Manager drives the lobby state machine. Every mutation is a single atomic
// read-modify-write on the store, so checks that read sibling players see the
// same snapshot the write is based on.
type Manager struct {
	store   store.LobbyStore
	presets PresetSource
	rules   game.Rules
	log     logrus.FieldLogger

	// Sampler places target offsets. Replace it for deterministic tests.
	Sampler *geo.Sampler
	// Events is optional.
	Events EventSink
	// Now is the manager's clock.
	Now func() time.Time
	// GenerateCode produces candidate lobby codes.
	GenerateCode func() string

	mu     sync.Mutex
	timers map[string]*roundTimer
}

type roundTimer struct {
	endTime int64
	t       *time.Timer
}

// NewManager returns a Manager over s. A nil logger discards output.
func NewManager(s store.LobbyStore, presets PresetSource, rules game.Rules, logger logrus.FieldLogger) *Manager {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Manager{
		store:        s,
		presets:      presets,
		rules:        rules,
		log:          logger,
		Sampler:      geo.NewTimeSeededSampler(),
		Now:          time.Now,
		GenerateCode: RandomCode,
		timers:       make(map[string]*roundTimer),
	}
}

// RandomCode draws CodeLength characters uniformly from CodeAlphabet.
func RandomCode() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = CodeAlphabet[rand.Intn(len(CodeAlphabet))]
	}
	return string(b)
}

// Rules returns the scoring rules in effect.
func (m *Manager) Rules() game.Rules {
	return m.rules
}

// Store returns the underlying lobby store.
func (m *Manager) Store() store.LobbyStore {
	return m.store
}

func (m *Manager) logFor(code string, userID uuid.UUID) logrus.FieldLogger {
	fields := logrus.Fields{"lobby": code}
	if userID != uuid.Nil {
		fields["user"] = userID.String()
	}
	return m.log.WithFields(fields)
}

// emit publishes a round event, logging failures.
func (m *Manager) emit(ctx context.Context, l *models.Lobby, userID uuid.UUID, typ models.RoundEventType, payload map[string]interface{}) {
	if m.Events == nil || l == nil {
		return
	}
	ev := models.RoundEvent{
		LobbyCode: l.Code,
		UserID:    userID,
		Type:      typ,
		Payload:   payload,
		Timestamp: m.Now().UnixMilli(),
	}
	if l.EndTime != nil {
		ev.Round = *l.EndTime
	}
	if err := m.Events.PublishRoundEvent(ctx, ev); err != nil {
		m.logFor(l.Code, userID).Warnf("failed to publish %s event: %v", typ, err)
	}
}

// armTimer schedules the round ending at endTime, replacing any earlier timer
// for the lobby.
func (m *Manager) armTimer(code string, endTime int64) {
	delay := time.UnixMilli(endTime).Sub(m.Now())
	if delay < 0 {
		delay = 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.timers[code]; ok {
		old.t.Stop()
	}
	rt := &roundTimer{endTime: endTime}
	rt.t = time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timerOpTimeout)
		defer cancel()
		m.expireRound(ctx, code, endTime)
	})
	m.timers[code] = rt
}

func (m *Manager) stopTimer(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt, ok := m.timers[code]; ok {
		rt.t.Stop()
		delete(m.timers, code)
	}
}

// timerArmed reports the end time of the lobby's pending timer.
func (m *Manager) timerArmed(code string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.timers[code]
	if !ok {
		return 0, false
	}
	return rt.endTime, true
}

// expireRound ends the round that was scheduled to end at endTime. A timer
// for a round that already ended or was restarted does nothing.
func (m *Manager) expireRound(ctx context.Context, code string, endTime int64) {
	m.mu.Lock()
	if rt, ok := m.timers[code]; ok && rt.endTime == endTime {
		rt.t.Stop()
		delete(m.timers, code)
	}
	m.mu.Unlock()

	var before *models.Lobby
	_, err := m.store.UpdateLobby(ctx, code, func(l *models.Lobby) error {
		if l.Status != models.StatusInProgress || l.EndTime == nil || *l.EndTime != endTime {
			return errStale
		}
		before = l.Clone()
		game.EndRound(l)
		return nil
	})
	switch {
	case errors.Is(err, errStale), errors.Is(err, models.ErrNotFound):
		return
	case err != nil:
		m.logFor(code, uuid.Nil).Warnf("round timer failed to end round: %v", err)
		return
	}
	m.logFor(code, uuid.Nil).Info("round time expired")
	m.emitRoundEnded(ctx, before, "timer")
}

func (m *Manager) emitRoundEnded(ctx context.Context, final *models.Lobby, reason string) {
	m.emit(ctx, final, uuid.Nil, models.EventRoundEnded, map[string]interface{}{
		"reason":    reason,
		"standings": game.Standings(final),
	})
}

// Shutdown stops every pending round timer.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, rt := range m.timers {
		rt.t.Stop()
		delete(m.timers, code)
	}
}
