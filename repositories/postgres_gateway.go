package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournament-engine/models"
)

type postgresGateway struct {
	db          *sql.DB
	logger      *slog.Logger
	tournaments *postgresTournamentRepository
	players     *postgresPlayerRepository
	rounds      *postgresRoundRepository
	matches     *postgresMatchRepository
}

func NewPostgresGateway(db *sql.DB, logger *slog.Logger) Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &postgresGateway{
		db:          db,
		logger:      logger,
		tournaments: &postgresTournamentRepository{},
		players:     &postgresPlayerRepository{},
		rounds:      &postgresRoundRepository{},
		matches:     &postgresMatchRepository{},
	}
}

func (g *postgresGateway) ListTournaments(ctx context.Context) ([]models.TournamentSummary, error) {
	return g.tournaments.List(ctx, g.db)
}

const consistentReadAttempts = 3

// GetTournament loads the graph pieces in parallel on the pool. The pieces are separate
// statements, so the version is checked again afterwards and the load repeated when a writer
// committed in between.
func (g *postgresGateway) GetTournament(ctx context.Context, id int, depth Depth) (*models.Tournament, error) {
	if depth == DepthBare {
		return g.tournaments.GetByID(ctx, g.db, id)
	}
	return readConsistent(ctx, consistentReadAttempts,
		func(ctx context.Context) (*models.Tournament, error) {
			return g.loadGraph(ctx, id, depth)
		},
		func(ctx context.Context) (int64, error) {
			return g.tournaments.Version(ctx, g.db, id)
		})
}

func (g *postgresGateway) loadGraph(ctx context.Context, id int, depth Depth) (*models.Tournament, error) {
	t, err := g.tournaments.GetByID(ctx, g.db, id)
	if err != nil {
		return nil, err
	}

	var (
		players []*models.Player
		rounds  []*models.Round
		matches []*models.Match
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		players, err = g.players.ListByTournament(egCtx, g.db, id)
		return err
	})
	if depth == DepthFull {
		eg.Go(func() error {
			var err error
			rounds, err = g.rounds.ListByTournament(egCtx, g.db, id)
			return err
		})
		eg.Go(func() error {
			var err error
			matches, err = g.matches.ListByTournament(egCtx, g.db, id)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	assemble(t, players, rounds, matches)
	return t, nil
}

// readConsistent accepts a loaded graph only if the tournament version read after it still
// matches. Every mutating transaction bumps the version.
func readConsistent(
	ctx context.Context,
	attempts int,
	load func(context.Context) (*models.Tournament, error),
	version func(context.Context) (int64, error),
) (*models.Tournament, error) {
	for i := 0; i < attempts; i++ {
		t, err := load(ctx)
		if err != nil {
			return nil, err
		}
		current, err := version(ctx)
		if err != nil {
			return nil, err
		}
		if current == t.Version {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: graph changed during %d reads", ErrTournamentVersionConflict, attempts)
}

// WithinTx runs fn in one transaction: panic or error rolls back, otherwise it commits.
func (g *postgresGateway) WithinTx(ctx context.Context, fn func(tx Tx) error) (txErr error) {
	sqlTx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				g.logger.ErrorContext(ctx, "rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := sqlTx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	txErr = fn(&postgresTx{tx: sqlTx, g: g})
	return txErr
}

type postgresTx struct {
	tx *sql.Tx
	g  *postgresGateway
}

// GetTournament reads sequentially: a *sql.Tx cannot serve concurrent queries.
func (t *postgresTx) GetTournament(ctx context.Context, id int, depth Depth) (*models.Tournament, error) {
	tournament, err := t.g.tournaments.GetByID(ctx, t.tx, id)
	if err != nil || depth == DepthBare {
		return tournament, err
	}
	players, err := t.g.players.ListByTournament(ctx, t.tx, id)
	if err != nil {
		return nil, err
	}
	var (
		rounds  []*models.Round
		matches []*models.Match
	)
	if depth == DepthFull {
		if rounds, err = t.g.rounds.ListByTournament(ctx, t.tx, id); err != nil {
			return nil, err
		}
		if matches, err = t.g.matches.ListByTournament(ctx, t.tx, id); err != nil {
			return nil, err
		}
	}
	assemble(tournament, players, rounds, matches)
	return tournament, nil
}

func (t *postgresTx) CreateTournament(ctx context.Context, tournament *models.Tournament) error {
	return t.g.tournaments.Create(ctx, t.tx, tournament)
}

func (t *postgresTx) UpdateTournament(ctx context.Context, tournament *models.Tournament) error {
	return t.g.tournaments.Update(ctx, t.tx, tournament)
}

func (t *postgresTx) DeleteTournament(ctx context.Context, id int) (bool, error) {
	return t.g.tournaments.Delete(ctx, t.tx, id)
}

func (t *postgresTx) CreatePlayer(ctx context.Context, p *models.Player) error {
	return t.g.players.Create(ctx, t.tx, p)
}

func (t *postgresTx) DeletePlayer(ctx context.Context, tournamentID, playerID int) error {
	return t.g.players.Delete(ctx, t.tx, tournamentID, playerID)
}

func (t *postgresTx) UpdatePlayers(ctx context.Context, players []*models.Player) error {
	for _, p := range players {
		if err := t.g.players.UpdateStats(ctx, t.tx, p); err != nil {
			return fmt.Errorf("player %d: %w", p.ID, err)
		}
	}
	return nil
}

func (t *postgresTx) CreateRound(ctx context.Context, r *models.Round) error {
	return t.g.rounds.Create(ctx, t.tx, r)
}

func (t *postgresTx) UpdateRound(ctx context.Context, r *models.Round) error {
	return t.g.rounds.Update(ctx, t.tx, r)
}

func (t *postgresTx) CreateMatch(ctx context.Context, m *models.Match) error {
	return t.g.matches.Create(ctx, t.tx, m)
}

func (t *postgresTx) UpdateMatch(ctx context.Context, m *models.Match) error {
	return t.g.matches.UpdateResult(ctx, t.tx, m)
}
