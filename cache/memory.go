package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

type memoryEntry struct {
	tournament *models.Tournament
	expiresAt  time.Time
	deadline   time.Time
}

// Memory is the process-local cache. Expired entries are dropped lazily on access and by the
// janitor started with RunJanitor.
type Memory struct {
	mu      sync.Mutex
	entries map[int]*memoryEntry
	opts    Options
	now     func() time.Time
	logger  *slog.Logger
}

func NewMemory(opts Options, logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		entries: make(map[int]*memoryEntry),
		opts:    opts.withDefaults(),
		now:     time.Now,
		logger:  logger,
	}
}

func (c *Memory) Get(_ context.Context, id int) (*models.Tournament, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(id)
	if !ok {
		return nil, false
	}
	e.expiresAt = expiry(c.now(), e.deadline, c.opts.SlidingTTL)
	return e.tournament.Clone(), true
}

func (c *Memory) Put(_ context.Context, t *models.Tournament) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live(t.ID); ok {
		return
	}
	c.store(t)
}

func (c *Memory) Replace(_ context.Context, t *models.Tournament) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(t)
}

func (c *Memory) MutatePlayers(_ context.Context, id int, m PlayerMutation) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.live(id)
	if !ok {
		return false
	}
	if !m.apply(e.tournament) {
		delete(c.entries, id)
		return false
	}
	return true
}

func (c *Memory) Invalidate(_ context.Context, id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Len counts entries, expired ones included until they are swept.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RunJanitor sweeps expired entries every interval until ctx is done.
func (c *Memory) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				c.logger.Debug("cache entries evicted", slog.Int("count", n))
			}
		}
	}
}

func (c *Memory) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
			evicted++
		}
	}
	return evicted
}

// live returns the entry if it has not expired; expired entries are removed. Callers hold mu.
func (c *Memory) live(id int) (*memoryEntry, bool) {
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, id)
		return nil, false
	}
	return e, true
}

func (c *Memory) store(t *models.Tournament) {
	now := c.now()
	deadline := now.Add(c.opts.AbsoluteTTL)
	c.entries[t.ID] = &memoryEntry{
		tournament: t.Clone(),
		expiresAt:  expiry(now, deadline, c.opts.SlidingTTL),
		deadline:   deadline,
	}
}
