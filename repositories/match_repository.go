package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/lib/pq"
)

type postgresMatchRepository struct{}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	query := `
		INSERT INTO matches (round_id, player_ids, winner_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		m.RoundID, pq.Array(m.PlayerIDs), m.WinnerID, m.CreatedAt, m.CompletedAt,
	).Scan(&m.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrRoundNotFound
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// ListByTournament returns every match of every round of the tournament, ordered by id.
func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error) {
	query := `
		SELECT m.id, m.round_id, m.player_ids, m.winner_id, m.created_at, m.completed_at
		FROM matches m
		JOIN rounds r ON r.id = m.round_id
		WHERE r.tournament_id = $1
		ORDER BY m.id`

	rows, err := exec.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		var ids pq.Int64Array
		if err := rows.Scan(&m.ID, &m.RoundID, &ids, &m.WinnerID, &m.CreatedAt, &m.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.PlayerIDs = make([]int, len(ids))
		for i, id := range ids {
			m.PlayerIDs[i] = int(id)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	result, err := exec.ExecContext(ctx,
		`UPDATE matches SET winner_id = $1, completed_at = $2 WHERE id = $3`,
		m.WinnerID, m.CompletedAt, m.ID)
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", m.ID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
