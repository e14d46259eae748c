package lobby

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/geohunt/internal/game"
	"github.com/jason-s-yu/geohunt/internal/geo"
	"github.com/jason-s-yu/geohunt/internal/models"
	"github.com/jason-s-yu/geohunt/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type presetMock struct {
	mock.Mock
}

func (p *presetMock) GetPreset(ctx context.Context, id uuid.UUID) (*models.Preset, error) {
	args := p.Called(ctx, id)
	preset, _ := args.Get(0).(*models.Preset)
	return preset, args.Error(1)
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.RoundEvent
}

func (s *recordingSink) PublishRoundEvent(_ context.Context, ev models.RoundEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) types() []models.RoundEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RoundEventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	m      *Manager
	store  *store.MemoryStore
	preset *models.Preset
	sink   *recordingSink
	now    time.Time
	host   uuid.UUID
}

func testPreset(targets int) *models.Preset {
	start := geo.Point{Lat: 40.0, Lon: -75.0}
	p := &models.Preset{
		ID:               uuid.New(),
		Title:            "Downtown",
		Creator:          "author",
		GameMode:         "classic",
		StartingLocation: start,
		Radius:           2000,
	}
	for i := 0; i < targets; i++ {
		p.Targets = append(p.Targets, models.TargetDef{
			Location: geo.Point{Lat: start.Lat + 0.002*float64(i+1), Lon: start.Lon},
			PlaceID:  "place-" + string(rune('a'+i)),
			Street:   "Main St",
			Types:    []string{"cafe"},
			Reviews:  []string{"good", "fine"},
		})
	}
	return p
}

func newFixture(t *testing.T, targets int) *fixture {
	t.Helper()
	f := &fixture{
		store:  store.NewMemoryStore(),
		preset: testPreset(targets),
		sink:   &recordingSink{},
		now:    time.UnixMilli(1_700_000_000_000),
		host:   uuid.New(),
	}
	presets := &presetMock{}
	presets.On("GetPreset", mock.Anything, f.preset.ID).Return(f.preset, nil)
	presets.On("GetPreset", mock.Anything, mock.Anything).Return(nil, models.ErrNotFound)

	f.m = NewManager(f.store, presets, game.DefaultRules(), nil)
	f.m.Sampler = geo.NewSampler(7)
	f.m.Events = f.sink
	f.m.Now = func() time.Time { return f.now }
	t.Cleanup(f.m.Shutdown)
	return f
}

func (f *fixture) create(t *testing.T, maxPlayers int) *models.Lobby {
	t.Helper()
	l, err := f.m.CreateLobby(context.Background(), f.host, "host", f.preset.ID, 30, maxPlayers)
	require.NoError(t, err)
	return l
}

func TestRandomCodeFormat(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	for i := 0; i < 100; i++ {
		assert.Regexp(t, re, RandomCode())
	}
}

func TestCreateLobby(t *testing.T) {
	f := newFixture(t, 1)
	l := f.create(t, 4)

	assert.Equal(t, models.StatusWaiting, l.Status)
	assert.Nil(t, l.EndTime)
	require.Contains(t, l.Players, f.host)
	assert.Zero(t, l.Players[f.host].Score)
	assert.True(t, l.Players[f.host].Online)

	stored, err := f.m.GetLobby(context.Background(), l.Code)
	require.NoError(t, err)
	assert.Equal(t, f.host, stored.Host)
}

func TestCreateLobbyValidates(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.m.CreateLobby(ctx, f.host, "host", f.preset.ID, 0, 4)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.m.CreateLobby(ctx, f.host, "host", f.preset.ID, 30, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.m.CreateLobby(ctx, f.host, "host", uuid.New(), 30, 4)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateLobbyRedrawsTakenCodes(t *testing.T) {
	f := newFixture(t, 1)
	taken, _ := newTakenLobby("AAAAAAAA")
	require.NoError(t, f.store.CreateLobby(context.Background(), taken))

	codes := []string{"AAAAAAAA", "AAAAAAAA", "BBBBBBBB"}
	f.m.GenerateCode = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}

	l := f.create(t, 4)
	assert.Equal(t, "BBBBBBBB", l.Code)
}

func newTakenLobby(code string) (*models.Lobby, uuid.UUID) {
	host := uuid.New()
	return &models.Lobby{
		Code:       code,
		Host:       host,
		Status:     models.StatusWaiting,
		TimeLimit:  10,
		MaxPlayers: 2,
		Players:    map[uuid.UUID]*models.PlayerState{host: models.NewPlayerState("other")},
	}, host
}

func TestJoinCapacity(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 2)
	require.Len(t, l.Players, 1)

	second := uuid.New()
	l, err := f.m.JoinLobby(ctx, l.Code, second, "second")
	require.NoError(t, err)
	assert.Len(t, l.Players, 2)

	_, err = f.m.JoinLobby(ctx, l.Code, uuid.New(), "third")
	assert.ErrorIs(t, err, models.ErrLobbyFull)

	// A member re-joining a full lobby is fine.
	_, err = f.m.JoinLobby(ctx, l.Code, second, "second")
	assert.NoError(t, err)
}

func TestJoinIsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	guest := uuid.New()

	first, err := f.m.JoinLobby(ctx, l.Code, guest, "guest")
	require.NoError(t, err)
	second, err := f.m.JoinLobby(ctx, l.Code, guest, "renamed")
	require.NoError(t, err)
	assert.Equal(t, first.Players, second.Players)
}

func TestJoinErrors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.m.JoinLobby(ctx, "NOPE0000", uuid.New(), "x")
	assert.ErrorIs(t, err, models.ErrNotFound)

	l := f.create(t, 4)
	guest := uuid.New()
	_, err = f.m.JoinLobby(ctx, l.Code, guest, "guest")
	require.NoError(t, err)
	_, err = f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	_, err = f.m.JoinLobby(ctx, l.Code, uuid.New(), "late")
	assert.ErrorIs(t, err, models.ErrAlreadyStarted)
	_, err = f.m.JoinLobby(ctx, l.Code, guest, "guest")
	assert.NoError(t, err, "members may rejoin a running round")
}

func TestStartGameDealsFreshSessions(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	l := f.create(t, 4)
	_, err := f.m.JoinLobby(ctx, l.Code, uuid.New(), "guest")
	require.NoError(t, err)

	started, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)
	require.NotNil(t, started)

	assert.Equal(t, models.StatusInProgress, started.Status)
	require.NotNil(t, started.EndTime)
	assert.Equal(t, f.now.Add(30*time.Minute).UnixMilli(), *started.EndTime)

	for _, p := range started.Players {
		require.Len(t, p.RemainingTargets, 3)
		for i, rt := range p.RemainingTargets {
			assert.Equal(t, i+1, rt.Index)
			assert.Equal(t, 100, rt.Value)
			assert.False(t, rt.Hints.Street.Used)
			assert.False(t, rt.Hints.Types.Used)
			assert.Equal(t, -1, rt.Hints.Reviews.ReviewIndex)
		}
	}

	end, armed := f.m.timerArmed(l.Code)
	assert.True(t, armed)
	assert.Equal(t, *started.EndTime, end)
	assert.Equal(t, []models.RoundEventType{models.EventRoundStarted}, f.sink.types())
}

func TestStartGameRequiresHost(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	guest := uuid.New()
	_, err := f.m.JoinLobby(ctx, l.Code, guest, "guest")
	require.NoError(t, err)

	_, err = f.m.StartGame(ctx, l.Code, guest)
	assert.ErrorIs(t, err, models.ErrNotHost)

	_, err = f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)
	_, err = f.m.StartGame(ctx, l.Code, f.host)
	assert.ErrorIs(t, err, models.ErrAlreadyStarted)
}

func TestEndGameIsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	_, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ended, err := f.m.EndGame(ctx, l.Code, f.host)
		require.NoError(t, err)
		assert.Equal(t, models.StatusWaiting, ended.Status)
		assert.Nil(t, ended.EndTime)
	}
	_, armed := f.m.timerArmed(l.Code)
	assert.False(t, armed)
	assert.Equal(t, []models.RoundEventType{models.EventRoundStarted, models.EventRoundEnded}, f.sink.types())
}

func TestStaleTimerIsIgnored(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)

	first, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)
	staleEnd := *first.EndTime

	_, err = f.m.EndGame(ctx, l.Code, f.host)
	require.NoError(t, err)
	f.now = f.now.Add(time.Minute)
	second, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	f.m.expireRound(ctx, l.Code, staleEnd)
	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status, "an old round's timer must not end the new round")

	f.m.expireRound(ctx, l.Code, *second.EndTime)
	got, err = f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.Nil(t, got.EndTime)
}

func TestActionsAfterDeadlineEndTheRound(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	guest := uuid.New()
	_, err := f.m.JoinLobby(ctx, l.Code, guest, "guest")
	require.NoError(t, err)
	_, err = f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	// The timer never fires here, as after a restart.
	f.now = f.now.Add(45 * time.Minute)
	_, err = f.m.FinishRound(ctx, l.Code, guest)
	assert.ErrorIs(t, err, models.ErrRoundNotActive)
	_, err = f.m.UseHint(ctx, l.Code, guest, "place-a", models.HintStreet, 0)
	assert.ErrorIs(t, err, models.ErrRoundNotActive)

	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.Nil(t, got.EndTime)
	assert.Zero(t, got.Players[guest].Score)
	assert.False(t, got.Players[guest].Finished)
	_, armed := f.m.timerArmed(l.Code)
	assert.False(t, armed)

	assert.Equal(t, []models.RoundEventType{
		models.EventRoundStarted,
		models.EventRoundEnded,
	}, f.sink.types())
}

// playTarget walks the player onto the first remaining target and guesses it.
func playTarget(t *testing.T, f *fixture, code string, userID uuid.UUID) game.GuessResult {
	t.Helper()
	ctx := context.Background()
	l, err := f.m.GetLobby(ctx, code)
	require.NoError(t, err)
	target := l.Players[userID].RemainingTargets[0]
	pos := target.RandOffset

	_, err = f.m.UpdateLocation(ctx, code, userID, &pos)
	require.NoError(t, err)
	require.NoError(t, f.m.SelectTarget(ctx, code, userID, target.PlaceID))
	res, err := f.m.CheckGuess(ctx, code, userID, target.PlaceID)
	require.NoError(t, err)
	return res
}

func TestGuessingEveryTargetEndsRound(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	guest := uuid.New()
	_, err := f.m.JoinLobby(ctx, l.Code, guest, "guest")
	require.NoError(t, err)
	_, err = f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	res := playTarget(t, f, l.Code, guest)
	assert.True(t, res.Correct)
	assert.False(t, res.FirstFind, "host still holds the target")
	require.NotNil(t, res.Finish)
	assert.True(t, res.Finish.First)
	assert.Equal(t, int64(10*60*1000), res.Finish.CompletionTime)

	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)
	assert.Equal(t, 100+50, got.Players[guest].Score)
	_, armed := f.m.timerArmed(l.Code)
	assert.False(t, armed)

	assert.Equal(t, []models.RoundEventType{
		models.EventRoundStarted,
		models.EventGuess,
		models.EventPlayerFinished,
		models.EventRoundEnded,
	}, f.sink.types())
}

func TestWrongGuessAndMissingSelection(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	l := f.create(t, 4)
	_, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	_, err = f.m.CheckGuess(ctx, l.Code, f.host, "place-a")
	assert.ErrorIs(t, err, models.ErrNoSelection)

	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	target := got.Players[f.host].RemainingTargets[0]
	pos := target.RandOffset
	_, err = f.m.UpdateLocation(ctx, l.Code, f.host, &pos)
	require.NoError(t, err)
	require.NoError(t, f.m.SelectTarget(ctx, l.Code, f.host, target.PlaceID))

	res, err := f.m.CheckGuess(ctx, l.Code, f.host, "somewhere-else")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, 95, res.Value)

	got, err = f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.Empty(t, got.Players[f.host].PendingGuess)
	assert.Equal(t, 95, got.Players[f.host].RemainingTargets[0].Value)
}

func TestUseHintChargesOnce(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	_, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	res, err := f.m.UseHint(ctx, l.Code, f.host, "place-a", models.HintStreet, 0)
	require.NoError(t, err)
	assert.True(t, res.Charged)
	assert.Equal(t, 70, res.Value)

	res, err = f.m.UseHint(ctx, l.Code, f.host, "place-a", models.HintStreet, 0)
	require.NoError(t, err)
	assert.False(t, res.Charged)
	assert.Equal(t, 70, res.Value)

	_, err = f.m.UseHint(ctx, l.Code, f.host, "place-a", models.HintKind("photo"), 0)
	assert.ErrorIs(t, err, models.ErrValidation)

	assert.Equal(t, []models.RoundEventType{models.EventRoundStarted, models.EventHintUsed}, f.sink.types())
}

func TestFinishRoundAutoEndsSoloRound(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	l := f.create(t, 4)
	_, err := f.m.StartGame(ctx, l.Code, f.host)
	require.NoError(t, err)

	res, err := f.m.FinishRound(ctx, l.Code, f.host)
	require.NoError(t, err)
	assert.True(t, res.First)
	assert.Equal(t, 50, res.Bonus)

	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaiting, got.Status)

	_, err = f.m.FinishRound(ctx, l.Code, f.host)
	assert.ErrorIs(t, err, models.ErrRoundNotActive)
}

func TestUpdateLocationRange(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)

	inside := geo.Point{Lat: 40.001, Lon: -75.0}
	in, err := f.m.UpdateLocation(ctx, l.Code, f.host, &inside)
	require.NoError(t, err)
	assert.True(t, in)

	far := geo.Point{Lat: 41.0, Lon: -75.0}
	in, err = f.m.UpdateLocation(ctx, l.Code, f.host, &far)
	require.NoError(t, err)
	assert.False(t, in)

	in, err = f.m.UpdateLocation(ctx, l.Code, f.host, nil)
	require.NoError(t, err)
	assert.False(t, in)

	_, err = f.m.UpdateLocation(ctx, l.Code, uuid.New(), &inside)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLeaveAndClose(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)
	guest := uuid.New()
	_, err := f.m.JoinLobby(ctx, l.Code, guest, "guest")
	require.NoError(t, err)

	require.NoError(t, f.m.LeaveGame(ctx, l.Code, guest))
	require.NoError(t, f.m.LeaveGame(ctx, l.Code, guest))
	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.NotContains(t, got.Players, guest)

	assert.ErrorIs(t, f.m.CloseLobby(ctx, l.Code, guest), models.ErrNotHost)
	require.NoError(t, f.m.CloseLobby(ctx, l.Code, f.host))
	_, err = f.m.GetLobby(ctx, l.Code)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHostLeavingKeepsLobby(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	l := f.create(t, 4)

	require.NoError(t, f.m.LeaveGame(ctx, l.Code, f.host))
	got, err := f.m.GetLobby(ctx, l.Code)
	require.NoError(t, err)
	assert.False(t, got.HostPresent())
}

func TestSubscribeTracksPresence(t *testing.T) {
	f := newFixture(t, 1)
	l := f.create(t, 4)
	_, err := f.store.UpdateLobby(context.Background(), l.Code, func(l *models.Lobby) error {
		l.Players[f.host].MarkOffline(f.now.Add(-time.Minute))
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := f.m.Subscribe(ctx, l.Code, f.host)
	require.NoError(t, err)

	select {
	case snap := <-sub.C:
		require.NotNil(t, snap)
		assert.True(t, snap.Players[f.host].Online)
		assert.Nil(t, snap.Players[f.host].LastActive)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not shut down")
	}

	got, err := f.m.GetLobby(context.Background(), l.Code)
	require.NoError(t, err)
	assert.False(t, got.Players[f.host].Online)
	require.NotNil(t, got.Players[f.host].LastActive)
	assert.True(t, got.Players[f.host].LastActive.Equal(f.now.UTC()))
}
