package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Axidify/Terminality-V2-sub001/internal/catalog"
	"github.com/Axidify/Terminality-V2-sub001/internal/logging"
	"github.com/Axidify/Terminality-V2-sub001/internal/metrics"
	"github.com/Axidify/Terminality-V2-sub001/internal/security"
	"github.com/Axidify/Terminality-V2-sub001/internal/systems"
)

// World is the shared server state: the loaded catalog, the lockout book,
// the state store and the connected players.
type World struct {
	mu      sync.RWMutex
	catalog *catalog.Catalog
	players map[string]*Player

	lockouts    *security.LockoutBook
	store       StateStore
	saver       *Saver
	keys        SnapshotKeys
	context     systems.Context
	commandRate int
	idleTimeout time.Duration
	now         func() time.Time
}

// WorldOption customises NewWorld.
type WorldOption func(*World)

// WithStateStore persists desktops to store through a background saver.
func WithStateStore(store StateStore) WorldOption {
	return func(w *World) {
		w.store = store
	}
}

// WithLockoutCooldown sets how long a lockout lasts.
func WithLockoutCooldown(d time.Duration) WorldOption {
	return func(w *World) {
		w.lockouts = security.NewLockoutBook(d)
	}
}

// WithCommandRate caps commands per second for each terminal.
func WithCommandRate(n int) WorldOption {
	return func(w *World) {
		w.commandRate = n
	}
}

// WithIdleTimeout disconnects terminals that stay silent for d.
func WithIdleTimeout(d time.Duration) WorldOption {
	return func(w *World) {
		w.idleTimeout = d
	}
}

// WithSnapshotKeys overrides the envelope section names.
func WithSnapshotKeys(keys SnapshotKeys) WorldOption {
	return func(w *World) {
		w.keys = keys
	}
}

// WithContext sets the quest context new desktops start in.
func WithContext(ctx systems.Context) WorldOption {
	return func(w *World) {
		w.context = ctx
	}
}

// WithClock replaces time.Now for desktops created by the world.
func WithClock(now func() time.Time) WorldOption {
	return func(w *World) {
		w.now = now
	}
}

// NewWorld wraps a loaded catalog.
func NewWorld(cat *catalog.Catalog, opts ...WorldOption) *World {
	w := &World{
		catalog:     cat,
		players:     make(map[string]*Player),
		keys:        DefaultSnapshotKeys(),
		commandRate: defaultCommandLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.lockouts == nil {
		w.lockouts = security.NewLockoutBook(defaultLockoutCooldown)
	}
	if w.store != nil {
		w.saver = NewSaver(w.store, defaultSaveTimeout)
	}
	return w
}

// Catalog returns the catalog currently in effect.
func (w *World) Catalog() *catalog.Catalog {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.catalog
}

// SetCatalog swaps in a new catalog. Desktops already open keep their quest
// machine and pick up new systems the next time they re-resolve.
func (w *World) SetCatalog(cat *catalog.Catalog) {
	if cat == nil {
		return
	}
	w.mu.Lock()
	w.catalog = cat
	w.mu.Unlock()
}

// Reload re-reads the catalog from disk. A failed load keeps the old one.
func (w *World) Reload() error {
	current := w.Catalog()
	path := catalog.DefaultContentPath
	if current != nil && current.Path != "" {
		path = current.Path
	}
	next, err := catalog.Load(path)
	metrics.RecordReload(err == nil)
	if err != nil {
		logging.L().Error("reload content", logging.String("path", path), logging.Err(err))
		return fmt.Errorf("reload content: %w", err)
	}
	for _, warning := range next.Warnings {
		logging.L().Warn("content warning", logging.String("warning", warning))
	}
	w.SetCatalog(next)
	logging.L().Info("content reloaded",
		logging.String("path", path),
		logging.Int("systems", len(next.Systems)),
		logging.Int("quests", len(next.Quests)),
	)
	return nil
}

// NewDesktop starts a fresh session for player.
func (w *World) NewDesktop(player string) (*Desktop, error) {
	cat := w.Catalog()
	if cat == nil {
		return nil, errors.New("no content loaded")
	}
	return NewDesktop(DesktopOptions{
		Player:  player,
		Context: w.context,
		Resolve: func(ctx systems.Context) ([]systems.Definition, []systems.Warning, error) {
			return w.Catalog().Resolve(ctx)
		},
		Machine:  cat.Machine(),
		Lockouts: w.lockouts,
		Now:      w.now,
	})
}

// OpenDesktop starts a session for player and restores whatever state the
// store holds for them.
func (w *World) OpenDesktop(ctx context.Context, player string) (*Desktop, []string, error) {
	d, err := w.NewDesktop(player)
	if err != nil {
		return nil, nil, err
	}
	if w.store == nil {
		return d, nil, nil
	}
	data, err := w.store.Load(ctx, stateKey(player))
	if errors.Is(err, ErrStateNotFound) {
		return d, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load desktop state: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		warning := fmt.Sprintf("discarding unreadable state: %v", err)
		logging.L().Warn("desktop state unreadable", logging.String("player", player), logging.Err(err))
		return d, []string{warning}, nil
	}
	return d, d.Hydrate(&env, w.keys), nil
}

// SaveDesktop queues the session's state for writing.
func (w *World) SaveDesktop(d *Desktop) {
	if w.saver == nil || d == nil {
		return
	}
	env, err := d.Snapshot(w.keys, nil)
	if err != nil {
		logging.L().Error("snapshot desktop", logging.String("player", d.Player()), logging.Err(err))
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		logging.L().Error("encode desktop", logging.String("player", d.Player()), logging.Err(err))
		return
	}
	w.saver.Submit(stateKey(d.Player()), data)
}

// Close flushes pending saves.
func (w *World) Close(ctx context.Context) error {
	if w.saver == nil {
		return nil
	}
	return w.saver.Close(ctx)
}

func playerKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (w *World) addPlayer(p *Player) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := playerKey(p.Name)
	if _, exists := w.players[key]; exists {
		return fmt.Errorf("%s is already connected", p.Name)
	}
	w.players[key] = p
	return nil
}

func (w *World) removePlayer(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.players, playerKey(name))
}

// ActivePlayer returns the connected player with the given handle.
func (w *World) ActivePlayer(name string) (*Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[playerKey(name)]
	return p, ok
}

// Players lists connected handles in order.
func (w *World) Players() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.players))
	for _, p := range w.players {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
