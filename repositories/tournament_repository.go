package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

type postgresTournamentRepository struct{}

const tournamentColumns = `
	id, name, format, status, secret_hash, current_round, winner_id, version,
	created_at, started_at, completed_at`

func scanTournament(row interface{ Scan(...any) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID, &t.Name, &t.Format, &t.Status, &t.SecretHash, &t.CurrentRound, &t.WinnerID, &t.Version,
		&t.CreatedAt, &t.StartedAt, &t.CompletedAt,
	)
	return t, err
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, format, status, secret_hash, current_round)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, version, created_at`

	err := exec.QueryRowContext(ctx, query, t.Name, t.Format, t.Status, t.SecretHash, t.CurrentRound).
		Scan(&t.ID, &t.Version, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t, err := scanTournament(exec.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) Version(ctx context.Context, exec SQLExecutor, id int) (int64, error) {
	var version int64
	err := exec.QueryRowContext(ctx, `SELECT version FROM tournaments WHERE id = $1`, id).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrTournamentNotFound
		}
		return 0, fmt.Errorf("failed to read version of tournament %d: %w", id, err)
	}
	return version, nil
}

// List returns the light projection, newest first.
func (r *postgresTournamentRepository) List(ctx context.Context, exec SQLExecutor) ([]models.TournamentSummary, error) {
	query := `
		SELECT t.id, t.name, t.format, t.status, COUNT(p.id), t.current_round, t.created_at
		FROM tournaments t
		LEFT JOIN players p ON p.tournament_id = t.id
		GROUP BY t.id
		ORDER BY t.created_at DESC, t.id DESC`

	rows, err := exec.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	list := make([]models.TournamentSummary, 0)
	for rows.Next() {
		var s models.TournamentSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Format, &s.Status, &s.PlayersCount, &s.CurrentRound, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tournament summary: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return list, nil
}

// Update is guarded by the version column. A missing row and a stale version are told apart
// with a follow-up existence check.
func (r *postgresTournamentRepository) Update(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		UPDATE tournaments SET
			name = $1,
			status = $2,
			current_round = $3,
			winner_id = $4,
			started_at = $5,
			completed_at = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
		RETURNING version`

	var version int64
	err := exec.QueryRowContext(ctx, query,
		t.Name, t.Status, t.CurrentRound, t.WinnerID, t.StartedAt, t.CompletedAt,
		t.ID, t.Version,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := exec.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tournaments WHERE id = $1)`, t.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check tournament %d: %w", t.ID, err)
		}
		if !exists {
			return ErrTournamentNotFound
		}
		return ErrTournamentVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update tournament %d: %w", t.ID, err)
	}
	t.Version = version
	return nil
}

// Delete relies on ON DELETE CASCADE for players, rounds and matches.
func (r *postgresTournamentRepository) Delete(ctx context.Context, exec SQLExecutor, id int) (bool, error) {
	result, err := exec.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	if err := checkAffectedRows(result, ErrTournamentNotFound); err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
