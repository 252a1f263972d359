package models

import "time"

// Match has two participants, or one for a bye.
type Match struct {
	ID          int        `json:"id" db:"id"`
	RoundID     int        `json:"round_id" db:"round_id"`
	PlayerIDs   []int      `json:"player_ids" db:"-"`
	WinnerID    *int       `json:"winner_id" db:"winner_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
}

// MatchResult is a submitted (match, winner) pair.
type MatchResult struct {
	MatchID  int `json:"match_id"`
	WinnerID int `json:"winner_id"`
}

func (m *Match) IsBye() bool {
	return len(m.PlayerIDs) == 1
}

func (m *Match) IsResolved() bool {
	return m.WinnerID != nil
}

func (m *Match) HasParticipant(playerID int) bool {
	for _, id := range m.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}

// Resolve records the winner. The caller is responsible for validating it.
func (m *Match) Resolve(winnerID int, at time.Time) {
	w := winnerID
	ts := at
	m.WinnerID = &w
	m.CompletedAt = &ts
}

// Opponents returns the participants other than playerID.
func (m *Match) Opponents(playerID int) []int {
	out := make([]int, 0, len(m.PlayerIDs))
	for _, id := range m.PlayerIDs {
		if id != playerID {
			out = append(out, id)
		}
	}
	return out
}

func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.PlayerIDs = append([]int(nil), m.PlayerIDs...)
	c.WinnerID = cloneIntPtr(m.WinnerID)
	c.CompletedAt = cloneTimePtr(m.CompletedAt)
	return &c
}
