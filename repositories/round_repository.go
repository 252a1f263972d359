package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

type postgresRoundRepository struct{}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		INSERT INTO rounds (tournament_id, round_number, kind, is_completed, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		round.TournamentID, round.RoundNumber, round.Kind, round.IsCompleted, round.CreatedAt,
	).Scan(&round.ID)
	return r.handleRoundError(err)
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Round, error) {
	query := `
		SELECT id, tournament_id, round_number, kind, is_completed, created_at
		FROM rounds
		WHERE tournament_id = $1
		ORDER BY round_number`

	rows, err := exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		round := &models.Round{}
		if err := rows.Scan(&round.ID, &round.TournamentID, &round.RoundNumber, &round.Kind,
			&round.IsCompleted, &round.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

func (r *postgresRoundRepository) Update(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE rounds SET kind = $1, is_completed = $2 WHERE id = $3`,
		round.Kind, round.IsCompleted, round.ID)
	if err != nil {
		return r.handleRoundError(err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}

func (r *postgresRoundRepository) handleRoundError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			// Another transaction created this round number first.
			if pqErr.Constraint == "rounds_tournament_id_round_number_key" {
				return ErrTournamentVersionConflict
			}
		case "23503":
			if pqErr.Constraint == "rounds_tournament_id_fkey" {
				return ErrTournamentNotFound
			}
		}
	}
	return fmt.Errorf("round query failed: %w", err)
}
