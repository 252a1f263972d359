package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

type postgresPlayerRepository struct{}

func (r *postgresPlayerRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	query := `
		INSERT INTO players (tournament_id, name, wins, losses, points, round_wins, round_losses, group_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		p.TournamentID, p.Name, p.Wins, p.Losses, p.Points, p.RoundWins, p.RoundLosses, p.Group,
	).Scan(&p.ID)
	return r.handlePlayerError(err)
}

func (r *postgresPlayerRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Player, error) {
	query := `
		SELECT id, tournament_id, name, wins, losses, points, round_wins, round_losses, group_label
		FROM players
		WHERE tournament_id = $1
		ORDER BY id`

	rows, err := exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	players := make([]*models.Player, 0)
	for rows.Next() {
		p := &models.Player{}
		if err := rows.Scan(&p.ID, &p.TournamentID, &p.Name, &p.Wins, &p.Losses, &p.Points,
			&p.RoundWins, &p.RoundLosses, &p.Group); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during player rows iteration: %w", err)
	}
	return players, nil
}

func (r *postgresPlayerRepository) UpdateStats(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	query := `
		UPDATE players SET
			wins = $1, losses = $2, points = $3, round_wins = $4, round_losses = $5, group_label = $6
		WHERE id = $7 AND tournament_id = $8`

	result, err := exec.ExecContext(ctx, query,
		p.Wins, p.Losses, p.Points, p.RoundWins, p.RoundLosses, p.Group, p.ID, p.TournamentID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) Delete(ctx context.Context, exec SQLExecutor, tournamentID, playerID int) error {
	result, err := exec.ExecContext(ctx, `DELETE FROM players WHERE id = $1 AND tournament_id = $2`, playerID, tournamentID)
	if err != nil {
		return r.handlePlayerError(err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func (r *postgresPlayerRepository) handlePlayerError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			if pqErr.Constraint == "players_tournament_id_name_key" {
				return ErrPlayerNameConflict
			}
		case "23503": // foreign_key_violation
			if pqErr.Constraint == "players_tournament_id_fkey" {
				return ErrTournamentNotFound
			}
		}
	}
	return fmt.Errorf("player query failed: %w", err)
}
