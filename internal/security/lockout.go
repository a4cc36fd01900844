package security

import (
	"strings"
	"sync"
	"time"
)

type lockoutKey struct {
	player string
	system string
}

// LockoutBook remembers which players are barred from which systems.
type LockoutBook struct {
	mu       sync.Mutex
	cooldown time.Duration
	entries  map[lockoutKey]time.Time
}

// NewLockoutBook creates a book whose locks last cooldown.
func NewLockoutBook(cooldown time.Duration) *LockoutBook {
	return &LockoutBook{
		cooldown: cooldown,
		entries:  make(map[lockoutKey]time.Time),
	}
}

func newLockoutKey(player, system string) lockoutKey {
	return lockoutKey{player: strings.ToLower(strings.TrimSpace(player)), system: system}
}

// Lock bars player from system until now plus the cooldown.
func (b *LockoutBook) Lock(player, system string, now time.Time) time.Time {
	until := now.Add(b.cooldown)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[newLockoutKey(player, system)] = until
	return until
}

// Locked reports whether player is still barred from system at now. Expired
// entries are dropped.
func (b *LockoutBook) Locked(player, system string, now time.Time) (time.Time, bool) {
	key := newLockoutKey(player, system)
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.entries[key]
	if !ok {
		return time.Time{}, false
	}
	if !now.Before(until) {
		delete(b.entries, key)
		return time.Time{}, false
	}
	return until, true
}

// Clear lifts a lock early.
func (b *LockoutBook) Clear(player, system string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, newLockoutKey(player, system))
}
