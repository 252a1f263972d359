// Package cache holds committed tournament snapshots keyed by id.
//
// Entries expire after SlidingTTL without access and never outlive AbsoluteTTL from the moment
// they were written. Values are deep copies in both directions: callers may mutate what they get
// and what they pass in without affecting the cache.
package cache

import (
	"context"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

const (
	DefaultSlidingTTL  = 20 * time.Minute
	DefaultAbsoluteTTL = 2 * time.Hour
)

type Cache interface {
	// Get returns a copy of the entry and extends its sliding expiry.
	Get(ctx context.Context, id int) (*models.Tournament, bool)
	// Put inserts only when nothing is cached for the id yet.
	Put(ctx context.Context, t *models.Tournament)
	// Replace overwrites unconditionally and restarts both expiries.
	Replace(ctx context.Context, t *models.Tournament)
	// MutatePlayers patches the player list of a cached entry. It reports false, and drops the
	// entry, when the cached version is not the one the mutation started from.
	MutatePlayers(ctx context.Context, id int, m PlayerMutation) bool
	Invalidate(ctx context.Context, id int)
}

// PlayerMutation describes a committed add or remove that moved the tournament from
// FromVersion to ToVersion.
type PlayerMutation struct {
	FromVersion int64
	ToVersion   int64
	Added       *models.Player
	RemovedID   int
}

// apply patches t in place. It fails when t is not at FromVersion.
func (m PlayerMutation) apply(t *models.Tournament) bool {
	if t.Version != m.FromVersion {
		return false
	}
	if m.RemovedID != 0 {
		kept := t.Players[:0]
		for _, p := range t.Players {
			if p.ID != m.RemovedID {
				kept = append(kept, p)
			}
		}
		t.Players = kept
	}
	if m.Added != nil {
		t.Players = append(t.Players, m.Added.Clone())
	}
	t.Version = m.ToVersion
	return true
}

type Options struct {
	SlidingTTL  time.Duration
	AbsoluteTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.SlidingTTL <= 0 {
		o.SlidingTTL = DefaultSlidingTTL
	}
	if o.AbsoluteTTL <= 0 {
		o.AbsoluteTTL = DefaultAbsoluteTTL
	}
	if o.SlidingTTL > o.AbsoluteTTL {
		o.SlidingTTL = o.AbsoluteTTL
	}
	return o
}

// expiry is the earlier of the sliding window and the absolute deadline.
func expiry(now, deadline time.Time, sliding time.Duration) time.Time {
	if exp := now.Add(sliding); exp.Before(deadline) {
		return exp
	}
	return deadline
}
