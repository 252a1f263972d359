package models

import "encoding/json"

type Player struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	Name         string `json:"name" db:"name"`
	Wins         int    `json:"wins" db:"wins"`
	Losses       int    `json:"losses" db:"losses"`
	Points       int    `json:"points" db:"points"`
	RoundWins    int    `json:"round_wins" db:"round_wins"`
	RoundLosses  int    `json:"round_losses" db:"round_losses"`
	Group        string `json:"group" db:"group_label"`
}

func (p *Player) TotalMatches() int {
	return p.Wins + p.Losses
}

func (p *Player) RoundMatches() int {
	return p.RoundWins + p.RoundLosses
}

// WinRate is wins over matches played, 0 when nothing has been played.
func (p *Player) WinRate() float64 {
	total := p.TotalMatches()
	if total == 0 {
		return 0
	}
	return float64(p.Wins) / float64(total)
}

// ResetStage clears the per-stage counters.
func (p *Player) ResetStage() {
	p.RoundWins = 0
	p.RoundLosses = 0
}

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// MarshalJSON adds the derived statistics to the snapshot sent to clients.
func (p Player) MarshalJSON() ([]byte, error) {
	type plain Player
	return json.Marshal(struct {
		plain
		WinRate      float64 `json:"win_rate"`
		TotalMatches int     `json:"total_matches"`
		RoundMatches int     `json:"round_matches"`
	}{
		plain:        plain(p),
		WinRate:      p.WinRate(),
		TotalMatches: p.TotalMatches(),
		RoundMatches: p.RoundMatches(),
	})
}
