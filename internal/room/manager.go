package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/election"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/phase"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// WordPicker chooses the secret word for a new game
type WordPicker interface {
	Pick(categories []string) (models.Word, error)
}

// Departure reports what a leave did to the room
type Departure struct {
	HostDeparted bool
	RoomClosed   bool
}

// Options configures a Manager
type Options struct {
	Store        store.Store
	Words        WordPicker
	Timings      game.Timings
	Log          *zap.Logger
	Now          func() time.Time
	Rand         *rand.Rand
	CodeAttempts int
}

// Manager runs the room lifecycle on behalf of one client connection
type Manager struct {
	st       store.Store
	words    WordPicker
	timings  game.Timings
	log      *zap.Logger
	now      func() time.Time
	attempts int

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewManager creates a Manager
func NewManager(opts Options) *Manager {
	m := &Manager{
		st:       opts.Store,
		words:    opts.Words,
		timings:  opts.Timings,
		log:      opts.Log,
		now:      opts.Now,
		attempts: opts.CodeAttempts,
		rng:      opts.Rand,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.timings == (game.Timings{}) {
		m.timings = game.DefaultTimings()
	}
	return m
}

// CreateRoom opens a lobby under a fresh code with the caller as host
func (m *Manager) CreateRoom(ctx context.Context, host models.Profile) (string, error) {
	room := models.Room{
		Status:     models.StatusLobby,
		PhaseSeq:   0,
		CreatedAt:  game.Millis(m.now()),
		Host:       host.Name,
		HostID:     host.UID,
		HostAvatar: host.AvatarID,
	}
	fields := map[string]any{
		"status":     room.Status,
		"phaseSeq":   room.PhaseSeq,
		"createdAt":  room.CreatedAt,
		"host":       room.Host,
		"hostId":     room.HostID,
		"hostAvatar": room.HostAvatar,
	}
	// a code counts as taken when another host claimed it first
	code, err := game.UniqueRoomCode(ctx, m.attempts, func(ctx context.Context, code string) (bool, error) {
		ok, err := m.st.UpdateIf(ctx, models.RoomPath(code), []store.Condition{store.Missing("status")}, fields)
		if err != nil {
			return false, fmt.Errorf("create room %s: %w", code, err)
		}
		if !ok {
			m.log.Debug("room code taken", zap.String("room", code))
		}
		return !ok, nil
	})
	if err != nil {
		return "", err
	}
	if err := m.armHostDisconnect(ctx, code); err != nil {
		return "", err
	}

	m.log.Info("room created", zap.String("room", code), zap.String("host", host.Name))
	return code, nil
}

func (m *Manager) armHostDisconnect(ctx context.Context, code string) error {
	op := store.UpdateOp(models.RoomPath(code), map[string]any{"hostDisconnected": true}).If(liveRoom())
	if err := m.st.OnDisconnect(ctx, op); err != nil {
		return fmt.Errorf("register host disconnect: %w", err)
	}
	return nil
}

// JoinRoom adds a player to a lobby and returns their player id
func (m *Manager) JoinRoom(ctx context.Context, code string, p models.Profile) (string, error) {
	room, err := Load(ctx, m.st, code)
	if err != nil {
		return "", err
	}
	if room.Status != models.StatusLobby {
		return "", game.ErrRoomNotJoinable
	}

	id := ""
	entry := models.PlayerEntry{
		Name:     p.Name,
		AvatarID: p.AvatarID,
		UID:      p.UID,
		Status:   models.PlayerWaiting,
		JoinedAt: game.Millis(m.now()),
	}
	for pid, existing := range room.Players {
		if p.UID != "" && existing.UID == p.UID {
			id = pid
			entry.JoinedAt = existing.JoinedAt
			break
		}
	}
	if id == "" {
		if id, err = store.NewPushKey(); err != nil {
			return "", err
		}
	}

	ok, err := m.st.UpdateIf(ctx, models.RoomPath(code), []store.Condition{store.Eq("status", models.StatusLobby)}, map[string]any{
		"players/" + id: entry,
	})
	if err != nil {
		return "", fmt.Errorf("join room %s: %w", code, err)
	}
	if !ok {
		// the room started or vanished between the read and the write
		if _, err := Load(ctx, m.st, code); err != nil {
			return "", err
		}
		return "", game.ErrRoomNotJoinable
	}

	op := store.UpdateOp(models.RoomPath(code), departureFields(id)).If(liveRoom())
	if err := m.st.OnDisconnect(ctx, op); err != nil {
		return "", fmt.Errorf("register player disconnect: %w", err)
	}

	m.log.Info("player joined", zap.String("room", code), zap.String("player", id), zap.String("name", p.Name))
	return id, nil
}

// LeaveRoom removes a member voluntarily
func (m *Manager) LeaveRoom(ctx context.Context, code, playerID string) (Departure, error) {
	room, err := Load(ctx, m.st, code)
	if errors.Is(err, game.ErrRoomNotFound) {
		return Departure{RoomClosed: true}, nil
	}
	if err != nil {
		return Departure{}, err
	}
	path := models.RoomPath(code)
	if err := m.st.CancelOnDisconnect(ctx, path); err != nil {
		return Departure{}, fmt.Errorf("cancel disconnect writes: %w", err)
	}

	var dep Departure
	if duty, _ := (election.Convention{}).IsDutyHolder(ctx, room, playerID); duty {
		dep.HostDeparted = true
	}

	if playerID == models.HostID {
		dep.HostDeparted = true
		if room.Status == models.StatusLobby {
			if err := m.st.Remove(ctx, path); err != nil {
				return dep, fmt.Errorf("delete room %s: %w", code, err)
			}
			dep.RoomClosed = true
			m.log.Info("host closed lobby", zap.String("room", code))
			return dep, nil
		}
		fields := departureFields(playerID)
		fields["hostLeft"] = true
		if err := m.st.Update(ctx, path, fields); err != nil {
			return dep, fmt.Errorf("mark host left: %w", err)
		}
		m.log.Info("host left game", zap.String("room", code), zap.String("status", string(room.Status)))
		return dep, nil
	}

	if err := m.st.Update(ctx, path, departureFields(playerID)); err != nil {
		return dep, fmt.Errorf("leave room %s: %w", code, err)
	}
	m.log.Info("player left", zap.String("room", code), zap.String("player", playerID))
	return dep, nil
}

// CloseRoom deletes the room for everyone
func (m *Manager) CloseRoom(ctx context.Context, code string) error {
	path := models.RoomPath(code)
	if err := m.st.CancelOnDisconnect(ctx, path); err != nil {
		return fmt.Errorf("cancel disconnect writes: %w", err)
	}
	if err := m.st.Remove(ctx, path); err != nil {
		return fmt.Errorf("close room %s: %w", code, err)
	}
	m.log.Info("room closed", zap.String("room", code))
	return nil
}

// Reclaim lets the original host re-enter a room they dropped out of
func (m *Manager) Reclaim(ctx context.Context, code string, host models.Profile) error {
	room, err := Load(ctx, m.st, code)
	if err != nil {
		return err
	}
	if room.HostID == "" || room.HostID != host.UID {
		return game.ErrNotHost
	}

	conds := []store.Condition{store.Eq("phaseSeq", room.PhaseSeq), store.Eq("hostId", host.UID)}
	ok, err := m.st.UpdateIf(ctx, models.RoomPath(code), conds, map[string]any{
		"status":           models.StatusLobby,
		"phaseSeq":         room.PhaseSeq + 1,
		"gameState":        nil,
		"lease":            nil,
		"hostDisconnected": nil,
		"hostLeft":         nil,
		"abortReason":      nil,
		"host":             host.Name,
		"hostAvatar":       host.AvatarID,
	})
	if err != nil {
		return fmt.Errorf("reclaim room %s: %w", code, err)
	}
	if !ok {
		return fmt.Errorf("%w: room changed during reclaim", game.ErrWriteFailure)
	}
	if err := m.armHostDisconnect(ctx, code); err != nil {
		return err
	}
	m.log.Info("host reclaimed room", zap.String("room", code))
	return nil
}

// StartGame deals roles for the lobby roster and opens the reveal phase
func (m *Manager) StartGame(ctx context.Context, code string, settings models.Settings) error {
	room, err := Load(ctx, m.st, code)
	if err != nil {
		return err
	}
	if room.Status != models.StatusLobby {
		return game.ErrWrongPhase
	}
	state, err := m.deal(room.Members(), settings)
	if err != nil {
		return err
	}
	return m.apply(ctx, code, phase.Start(room, state, settings))
}

// Restart deals a new round for the players still at the table
func (m *Manager) Restart(ctx context.Context, code string) error {
	room, err := Load(ctx, m.st, code)
	if err != nil {
		return err
	}
	if room.Status != models.StatusResult || room.GameState == nil {
		return game.ErrWrongPhase
	}

	cards := room.GameState.Ordered()
	members := make([]models.Member, 0, len(cards))
	for _, a := range cards {
		members = append(members, models.Member{ID: a.ID, Name: a.Name, AvatarID: a.AvatarID})
	}
	settings := models.Settings{ImposterCount: room.GameState.ImposterCount, Language: room.GameState.Language}
	if room.Settings != nil {
		settings = *room.Settings
	}
	if limit := game.MaxImpostors(len(members)); settings.ImposterCount > limit {
		settings.ImposterCount = limit
	}

	state, err := m.deal(members, settings)
	if err != nil {
		return err
	}
	return m.apply(ctx, code, phase.Restart(room, state))
}

// ReturnToLobby ends the game from the result screen and keeps the roster
func (m *Manager) ReturnToLobby(ctx context.Context, code string) error {
	room, err := Load(ctx, m.st, code)
	if err != nil {
		return err
	}
	if room.Status != models.StatusResult {
		return game.ErrWrongPhase
	}
	return m.apply(ctx, code, phase.ReturnToLobby(room))
}

func (m *Manager) deal(members []models.Member, settings models.Settings) (*models.GameState, error) {
	n := len(members)
	if n < game.MinPlayers {
		return nil, fmt.Errorf("%w: have %d, need %d", game.ErrNotEnoughPlayers, n, game.MinPlayers)
	}
	if settings.ImposterCount < 1 || settings.ImposterCount > game.MaxImpostors(n) {
		return nil, fmt.Errorf("%w: %d for %d players", game.ErrInvalidImpostorCount, settings.ImposterCount, n)
	}
	word, err := m.words.Pick(settings.Categories)
	if err != nil {
		return nil, fmt.Errorf("pick word: %w", err)
	}

	m.mu.Lock()
	cards := game.AssignRoles(members, settings.ImposterCount, word, m.rng)
	m.mu.Unlock()

	return &models.GameState{
		Assignments:        cards,
		ImposterCount:      settings.ImposterCount,
		Category:           word.Category,
		Language:           settings.Language,
		StartedAt:          game.Millis(m.now()),
		DiscussionDuration: m.timings.DiscussionFor(n).Milliseconds(),
	}, nil
}

func (m *Manager) apply(ctx context.Context, code string, tr phase.Transition) error {
	ok, err := phase.Apply(ctx, m.st, code, tr)
	if err != nil {
		return fmt.Errorf("%s: %w", tr.Reason, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s lost a concurrent update", game.ErrWrongPhase, tr.Reason)
	}
	m.log.Info("phase transition",
		zap.String("room", code),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("reason", tr.Reason))
	return nil
}
