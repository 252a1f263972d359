package models

import (
	"fmt"
	"time"
)

// TournamentStatus представляет стадию жизненного цикла турнира.
type TournamentStatus int

const (
	StatusCreated    TournamentStatus = 1
	StatusInProgress TournamentStatus = 2
	StatusCompleted  TournamentStatus = 3
)

func (s TournamentStatus) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("TournamentStatus(%d)", int(s))
	}
}

// TournamentFormat selects the pairing strategy used for a tournament.
type TournamentFormat int

const (
	FormatSwiss            TournamentFormat = 1
	FormatChampionsMeeting TournamentFormat = 2
)

func (f TournamentFormat) String() string {
	switch f {
	case FormatSwiss:
		return "Swiss"
	case FormatChampionsMeeting:
		return "ChampionsMeeting"
	default:
		return fmt.Sprintf("TournamentFormat(%d)", int(f))
	}
}

func (f TournamentFormat) IsValid() bool {
	return f == FormatSwiss || f == FormatChampionsMeeting
}

// Tournament is the aggregate root: players and rounds are loaded with it.
type Tournament struct {
	ID           int              `json:"id" db:"id"`
	Name         string           `json:"name" db:"name"`
	Format       TournamentFormat `json:"type" db:"format"`
	Status       TournamentStatus `json:"status" db:"status"`
	SecretHash   string           `json:"-" db:"secret_hash"`
	CurrentRound int              `json:"current_round" db:"current_round"`
	WinnerID     *int             `json:"winner_id" db:"winner_id"`
	Version      int64            `json:"version" db:"version"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	StartedAt    *time.Time       `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at" db:"completed_at"`

	Players []*Player `json:"players" db:"-"`
	Rounds  []*Round  `json:"rounds" db:"-"`
}

// TournamentSummary is the light projection used for listings.
type TournamentSummary struct {
	ID           int              `json:"id" db:"id"`
	Name         string           `json:"name" db:"name"`
	Format       TournamentFormat `json:"type" db:"format"`
	Status       TournamentStatus `json:"status" db:"status"`
	PlayersCount int              `json:"players_count" db:"players_count"`
	CurrentRound int              `json:"current_round" db:"current_round"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

func (t *Tournament) IsProtected() bool {
	return t.SecretHash != ""
}

// FindPlayer returns the player with the given id or nil.
func (t *Tournament) FindPlayer(id int) *Player {
	for _, p := range t.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *Tournament) HasPlayerNamed(name string) bool {
	for _, p := range t.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// RoundByNumber returns the round with the given number or nil.
func (t *Tournament) RoundByNumber(n int) *Round {
	for _, r := range t.Rounds {
		if r.RoundNumber == n {
			return r
		}
	}
	return nil
}

// CurrentRoundEntity returns the round matching CurrentRound.
func (t *Tournament) CurrentRoundEntity() *Round {
	return t.RoundByNumber(t.CurrentRound)
}

// CompletedRounds counts rounds whose matches are all resolved.
func (t *Tournament) CompletedRounds() int {
	n := 0
	for _, r := range t.Rounds {
		if r.IsCompleted {
			n++
		}
	}
	return n
}

// Summary builds the list projection of the tournament.
func (t *Tournament) Summary() TournamentSummary {
	return TournamentSummary{
		ID:           t.ID,
		Name:         t.Name,
		Format:       t.Format,
		Status:       t.Status,
		PlayersCount: len(t.Players),
		CurrentRound: t.CurrentRound,
		CreatedAt:    t.CreatedAt,
	}
}

// Clone returns a deep copy. Cached aggregates are only ever handed out as clones.
func (t *Tournament) Clone() *Tournament {
	if t == nil {
		return nil
	}
	c := *t
	c.WinnerID = cloneIntPtr(t.WinnerID)
	c.StartedAt = cloneTimePtr(t.StartedAt)
	c.CompletedAt = cloneTimePtr(t.CompletedAt)

	c.Players = make([]*Player, len(t.Players))
	for i, p := range t.Players {
		c.Players[i] = p.Clone()
	}
	c.Rounds = make([]*Round, len(t.Rounds))
	for i, r := range t.Rounds {
		c.Rounds[i] = r.Clone()
	}
	return &c
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

func cloneTimePtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
