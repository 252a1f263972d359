package models

import "time"

// RoundKind is chosen by the pairing strategy and only affects display and termination.
type RoundKind string

const (
	RoundRegular    RoundKind = "Regular"
	RoundTiebreaker RoundKind = "Tiebreaker"
	RoundFinal      RoundKind = "Final"
)

type Round struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	RoundNumber  int       `json:"round_number" db:"round_number"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	IsCompleted  bool      `json:"is_completed" db:"is_completed"`
	Kind         RoundKind `json:"round_type" db:"kind"`
	Matches      []*Match  `json:"matches" db:"-"`
}

func (r *Round) FindMatch(id int) *Match {
	for _, m := range r.Matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// AllResolved reports whether every match has a winner. A round without matches is not resolved.
func (r *Round) AllResolved() bool {
	if len(r.Matches) == 0 {
		return false
	}
	for _, m := range r.Matches {
		if !m.IsResolved() {
			return false
		}
	}
	return true
}

// Participants returns every player id appearing in the round, in match order.
func (r *Round) Participants() []int {
	var ids []int
	for _, m := range r.Matches {
		ids = append(ids, m.PlayerIDs...)
	}
	return ids
}

// Winners returns the winner of every resolved match, in match order.
func (r *Round) Winners() []int {
	var ids []int
	for _, m := range r.Matches {
		if m.WinnerID != nil {
			ids = append(ids, *m.WinnerID)
		}
	}
	return ids
}

func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	c.Matches = make([]*Match, len(r.Matches))
	for i, m := range r.Matches {
		c.Matches[i] = m.Clone()
	}
	return &c
}
