// Package cache holds the in-memory view of active punishments used on
// hot paths (join checks, chat checks). The durable store stays the
// source of truth; the cache is rebuilt from it at startup.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tribunal-mc/tribunal/internal/database/types"
)

// Active indexes enforceable punishments by target player. Reads filter
// expiry against the wall clock, so a punishment stops being reported
// the instant its expiry passes even before the sweeper deactivates it.
type Active struct {
	mu      sync.RWMutex
	byID    map[int64]*types.Punishment
	players map[uuid.UUID][]*types.Punishment

	// clean records players confirmed by a store scan to have no
	// enforceable punishments, so repeat checks for them skip the store.
	// Issuing a punishment removes the marker.
	clean map[uuid.UUID]struct{}
}

// NewActive creates an empty cache.
func NewActive() *Active {
	return &Active{
		byID:    make(map[int64]*types.Punishment),
		players: make(map[uuid.UUID][]*types.Punishment),
		clean:   make(map[uuid.UUID]struct{}),
	}
}

// Warm replaces the entire cache contents. Called at startup with the
// store's active set, and after bulk changes.
func (c *Active) Warm(punishments []*types.Punishment) {
	byID := make(map[int64]*types.Punishment, len(punishments))
	players := make(map[uuid.UUID][]*types.Punishment)

	for _, p := range punishments {
		clone := *p
		byID[clone.ID] = &clone
		players[clone.TargetID] = append(players[clone.TargetID], &clone)
	}

	c.mu.Lock()
	c.byID = byID
	c.players = players
	c.clean = make(map[uuid.UUID]struct{})
	c.mu.Unlock()
}

// Add inserts a newly issued punishment.
func (c *Active) Add(punishment *types.Punishment) {
	clone := *punishment

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID[clone.ID] = &clone
	c.players[clone.TargetID] = append(c.players[clone.TargetID], &clone)
	delete(c.clean, clone.TargetID)
}

// Remove drops a punishment by id, if present.
func (c *Active) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.byID[id]
	if !ok {
		return
	}

	delete(c.byID, id)

	list := c.players[p.TargetID]
	for i, entry := range list {
		if entry.ID == id {
			c.players[p.TargetID] = append(list[:i], list[i+1:]...)
			break
		}
	}

	if len(c.players[p.TargetID]) == 0 {
		delete(c.players, p.TargetID)
	}
}

// Get returns the punishment by id if it is still enforceable, or nil.
func (c *Active) Get(id int64, now time.Time) *types.Punishment {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.byID[id]
	if !ok || !p.Enforceable(now) {
		return nil
	}

	clone := *p

	return &clone
}

// ForPlayer returns copies of the player's enforceable punishments. The
// second return value reports whether the cache is authoritative for
// this player: true when punishments were found, or when the player is
// marked clean. A false return means the caller must scan the store.
func (c *Active) ForPlayer(playerID uuid.UUID, now time.Time) ([]*types.Punishment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var list []*types.Punishment

	for _, p := range c.players[playerID] {
		if p.Enforceable(now) {
			clone := *p
			list = append(list, &clone)
		}
	}

	if len(list) > 0 {
		return list, true
	}

	_, known := c.clean[playerID]

	return nil, known
}

// MarkClean records that a store scan found no enforceable punishments
// for the player, so subsequent reads are answered from memory. The
// marker is dropped if a punishment was added since the scan started.
func (c *Active) MarkClean(playerID uuid.UUID, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.players[playerID] {
		if p.Enforceable(now) {
			return
		}
	}

	c.clean[playerID] = struct{}{}
}

// HasPlayer reports whether the player has at least one enforceable
// punishment of any type.
func (c *Active) HasPlayer(playerID uuid.UUID, now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.players[playerID] {
		if p.Enforceable(now) {
			return true
		}
	}

	return false
}

// Len returns the number of cached punishments, including any whose
// expiry has passed but which the sweeper has not yet removed.
func (c *Active) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byID)
}
