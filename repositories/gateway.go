package repositories

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-engine/models"
)

var (
	ErrTournamentNotFound        = errors.New("tournament not found")
	ErrTournamentVersionConflict = errors.New("tournament was modified concurrently")
	ErrPlayerNotFound            = errors.New("player not found")
	ErrPlayerNameConflict        = errors.New("player name already taken in this tournament")
	ErrRoundNotFound             = errors.New("round not found")
	ErrMatchNotFound             = errors.New("match not found")
)

// Depth controls how much of the aggregate GetTournament loads.
type Depth int

const (
	DepthBare Depth = iota
	DepthWithPlayers
	DepthFull
)

// Gateway is the durable store for tournaments. Reads outside a transaction see committed state;
// every write goes through WithinTx.
type Gateway interface {
	ListTournaments(ctx context.Context) ([]models.TournamentSummary, error)
	GetTournament(ctx context.Context, id int, depth Depth) (*models.Tournament, error)
	// WithinTx commits when fn returns nil and rolls back otherwise, including on panic.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of the gateway, valid only inside WithinTx.
type Tx interface {
	GetTournament(ctx context.Context, id int, depth Depth) (*models.Tournament, error)
	// CreateTournament fills ID, CreatedAt and Version.
	CreateTournament(ctx context.Context, t *models.Tournament) error
	// UpdateTournament writes the scalar fields if the stored version still equals t.Version,
	// then bumps t.Version. A stale version yields ErrTournamentVersionConflict.
	UpdateTournament(ctx context.Context, t *models.Tournament) error
	// DeleteTournament removes the whole graph and reports whether anything was there.
	DeleteTournament(ctx context.Context, id int) (bool, error)

	CreatePlayer(ctx context.Context, p *models.Player) error
	DeletePlayer(ctx context.Context, tournamentID, playerID int) error
	UpdatePlayers(ctx context.Context, players []*models.Player) error

	// CreateRound stores the round row only; its matches are written with CreateMatch.
	CreateRound(ctx context.Context, r *models.Round) error
	UpdateRound(ctx context.Context, r *models.Round) error
	CreateMatch(ctx context.Context, m *models.Match) error
	UpdateMatch(ctx context.Context, m *models.Match) error
}

// assemble attaches matches to their rounds, keeping the given order.
func assemble(t *models.Tournament, players []*models.Player, rounds []*models.Round, matches []*models.Match) {
	t.Players = players
	if t.Players == nil {
		t.Players = []*models.Player{}
	}
	byID := make(map[int]*models.Round, len(rounds))
	for _, r := range rounds {
		r.Matches = []*models.Match{}
		byID[r.ID] = r
	}
	for _, m := range matches {
		if r, ok := byID[m.RoundID]; ok {
			r.Matches = append(r.Matches, m)
		}
	}
	t.Rounds = rounds
	if t.Rounds == nil {
		t.Rounds = []*models.Round{}
	}
}
