package repositories

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/db"
	"github.com/Dosada05/tournament-engine/models"
)

func TestMemoryGateway(t *testing.T) {
	runGatewayContract(t, NewMemoryGateway())
}

// TestPostgresGateway runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresGateway(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := db.Connect(dsn, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	runGatewayContract(t, NewPostgresGateway(conn, slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func runGatewayContract(t *testing.T, g Gateway) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	tournament := &models.Tournament{
		Name:       "Gateway Cup " + now.Format(time.RFC3339Nano),
		Format:     models.FormatSwiss,
		Status:     models.StatusCreated,
		SecretHash: "hash",
	}
	require.NoError(t, g.WithinTx(ctx, func(tx Tx) error {
		return tx.CreateTournament(ctx, tournament)
	}))
	require.NotZero(t, tournament.ID)
	assert.EqualValues(t, 1, tournament.Version)
	t.Cleanup(func() {
		_ = g.WithinTx(ctx, func(tx Tx) error {
			_, err := tx.DeleteTournament(ctx, tournament.ID)
			return err
		})
	})

	var players []*models.Player
	require.NoError(t, g.WithinTx(ctx, func(tx Tx) error {
		for _, name := range []string{"Ann", "Bob", "Cid"} {
			p := &models.Player{TournamentID: tournament.ID, Name: name}
			if err := tx.CreatePlayer(ctx, p); err != nil {
				return err
			}
			players = append(players, p)
		}
		return tx.UpdateTournament(ctx, tournament)
	}))
	assert.EqualValues(t, 2, tournament.Version)

	t.Run("duplicate name rolls back the transaction", func(t *testing.T) {
		err := g.WithinTx(ctx, func(tx Tx) error {
			return tx.CreatePlayer(ctx, &models.Player{TournamentID: tournament.ID, Name: "Ann"})
		})
		assert.ErrorIs(t, err, ErrPlayerNameConflict)

		err = g.WithinTx(ctx, func(tx Tx) error {
			if err := tx.CreatePlayer(ctx, &models.Player{TournamentID: tournament.ID, Name: "Dan"}); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.EqualError(t, err, "abort")

		loaded, err := g.GetTournament(ctx, tournament.ID, DepthWithPlayers)
		require.NoError(t, err)
		assert.Len(t, loaded.Players, 3)
		assert.False(t, loaded.HasPlayerNamed("Dan"))
	})

	t.Run("depth controls what is loaded", func(t *testing.T) {
		bare, err := g.GetTournament(ctx, tournament.ID, DepthBare)
		require.NoError(t, err)
		assert.Equal(t, tournament.Name, bare.Name)
		assert.Equal(t, "hash", bare.SecretHash)
		assert.Empty(t, bare.Players)

		withPlayers, err := g.GetTournament(ctx, tournament.ID, DepthWithPlayers)
		require.NoError(t, err)
		require.Len(t, withPlayers.Players, 3)
		assert.Equal(t, "Ann", withPlayers.Players[0].Name)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		stale := *tournament
		stale.Version = 1
		err := g.WithinTx(ctx, func(tx Tx) error { return tx.UpdateTournament(ctx, &stale) })
		assert.ErrorIs(t, err, ErrTournamentVersionConflict)

		missing := &models.Tournament{ID: tournament.ID + 100000, Version: 1}
		err = g.WithinTx(ctx, func(tx Tx) error { return tx.UpdateTournament(ctx, missing) })
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("rounds and matches round-trip", func(t *testing.T) {
		round := &models.Round{TournamentID: tournament.ID, RoundNumber: 1, Kind: models.RoundRegular, CreatedAt: now}
		var match, bye *models.Match
		require.NoError(t, g.WithinTx(ctx, func(tx Tx) error {
			tournament.Status = models.StatusInProgress
			tournament.CurrentRound = 1
			tournament.StartedAt = &now
			if err := tx.CreateRound(ctx, round); err != nil {
				return err
			}
			match = &models.Match{RoundID: round.ID, PlayerIDs: []int{players[0].ID, players[1].ID}, CreatedAt: now}
			bye = &models.Match{RoundID: round.ID, PlayerIDs: []int{players[2].ID}, CreatedAt: now}
			bye.Resolve(players[2].ID, now)
			for _, m := range []*models.Match{match, bye} {
				if err := tx.CreateMatch(ctx, m); err != nil {
					return err
				}
			}
			return tx.UpdateTournament(ctx, tournament)
		}))

		require.NoError(t, g.WithinTx(ctx, func(tx Tx) error {
			match.Resolve(players[0].ID, now)
			round.IsCompleted = true
			players[0].Wins, players[0].Points, players[0].RoundWins = 1, 1, 1
			players[1].Losses, players[1].RoundLosses = 1, 1
			if err := tx.UpdateMatch(ctx, match); err != nil {
				return err
			}
			if err := tx.UpdateRound(ctx, round); err != nil {
				return err
			}
			if err := tx.UpdatePlayers(ctx, players[:2]); err != nil {
				return err
			}
			return tx.UpdateTournament(ctx, tournament)
		}))

		full, err := g.GetTournament(ctx, tournament.ID, DepthFull)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, full.Status)
		assert.Equal(t, 1, full.CurrentRound)
		require.Len(t, full.Rounds, 1)
		r := full.Rounds[0]
		assert.True(t, r.IsCompleted)
		require.Len(t, r.Matches, 2)
		assert.Equal(t, []int{players[0].ID, players[1].ID}, r.Matches[0].PlayerIDs)
		require.NotNil(t, r.Matches[0].WinnerID)
		assert.Equal(t, players[0].ID, *r.Matches[0].WinnerID)
		assert.True(t, r.Matches[1].IsBye())
		assert.Equal(t, 1, full.FindPlayer(players[0].ID).Points)
		assert.Equal(t, 1, full.FindPlayer(players[1].ID).Losses)
	})

	t.Run("duplicate round number conflicts", func(t *testing.T) {
		err := g.WithinTx(ctx, func(tx Tx) error {
			return tx.CreateRound(ctx, &models.Round{TournamentID: tournament.ID, RoundNumber: 1, Kind: models.RoundRegular, CreatedAt: now})
		})
		assert.ErrorIs(t, err, ErrTournamentVersionConflict)
	})

	t.Run("list counts players", func(t *testing.T) {
		list, err := g.ListTournaments(ctx)
		require.NoError(t, err)
		var found *models.TournamentSummary
		for i := range list {
			if list[i].ID == tournament.ID {
				found = &list[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, 3, found.PlayersCount)
		assert.Equal(t, 1, found.CurrentRound)
	})

	t.Run("player removal", func(t *testing.T) {
		err := g.WithinTx(ctx, func(tx Tx) error { return tx.DeletePlayer(ctx, tournament.ID, -1) })
		assert.ErrorIs(t, err, ErrPlayerNotFound)
	})

	t.Run("delete removes the graph", func(t *testing.T) {
		var deleted bool
		require.NoError(t, g.WithinTx(ctx, func(tx Tx) error {
			var err error
			deleted, err = tx.DeleteTournament(ctx, tournament.ID)
			return err
		}))
		assert.True(t, deleted)

		_, err := g.GetTournament(ctx, tournament.ID, DepthFull)
		assert.ErrorIs(t, err, ErrTournamentNotFound)

		require.NoError(t, g.WithinTx(ctx, func(tx Tx) error {
			var err error
			deleted, err = tx.DeleteTournament(ctx, tournament.ID)
			return err
		}))
		assert.False(t, deleted)
	})
}

func TestMemoryGatewayIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()
	tr := &models.Tournament{Name: "Iso", Format: models.FormatSwiss, Status: models.StatusCreated}
	require.NoError(t, g.WithinTx(ctx, func(tx Tx) error { return tx.CreateTournament(ctx, tr) }))

	loaded, err := g.GetTournament(ctx, tr.ID, DepthFull)
	require.NoError(t, err)
	loaded.Name = "changed"
	loaded.Players = append(loaded.Players, &models.Player{ID: 99})

	again, err := g.GetTournament(ctx, tr.ID, DepthFull)
	require.NoError(t, err)
	assert.Equal(t, "Iso", again.Name)
	assert.Empty(t, again.Players)
}

func TestMemoryGatewayRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGateway()

	assert.Panics(t, func() {
		_ = g.WithinTx(ctx, func(tx Tx) error {
			_ = tx.CreateTournament(ctx, &models.Tournament{Name: "boom"})
			panic("boom")
		})
	})
	list, err := g.ListTournaments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrTournamentNotFound))
	assert.True(t, IsTransient(&pq.Error{Code: "40001"}))
	assert.True(t, IsTransient(&pq.Error{Code: "08006"}))
	assert.True(t, IsTransient(&pq.Error{Code: "57P01"}))
	assert.False(t, IsTransient(&pq.Error{Code: "23505"}))
}

func TestReadConsistent(t *testing.T) {
	ctx := context.Background()

	// graph loads see versions[i]; the check after load i sees versions[i+1]
	script := func(versions ...int64) (func(context.Context) (*models.Tournament, error), func(context.Context) (int64, error), *int) {
		loads := 0
		load := func(context.Context) (*models.Tournament, error) {
			v := versions[loads]
			loads++
			return &models.Tournament{ID: 1, Version: v}, nil
		}
		version := func(context.Context) (int64, error) {
			return versions[loads], nil
		}
		return load, version, &loads
	}

	t.Run("stable graph", func(t *testing.T) {
		load, version, loads := script(4, 4)
		got, err := readConsistent(ctx, 3, load, version)
		require.NoError(t, err)
		assert.EqualValues(t, 4, got.Version)
		assert.Equal(t, 1, *loads)
	})

	t.Run("writer commits during the first read", func(t *testing.T) {
		load, version, loads := script(4, 5, 5)
		got, err := readConsistent(ctx, 3, load, version)
		require.NoError(t, err)
		assert.EqualValues(t, 5, got.Version)
		assert.Equal(t, 2, *loads)
	})

	t.Run("graph never settles", func(t *testing.T) {
		load, version, loads := script(1, 2, 3, 4)
		_, err := readConsistent(ctx, 3, load, version)
		assert.ErrorIs(t, err, ErrTournamentVersionConflict)
		assert.Equal(t, 3, *loads)
	})

	t.Run("tournament deleted between reads", func(t *testing.T) {
		load, _, _ := script(1, 1)
		_, err := readConsistent(ctx, 3, load, func(context.Context) (int64, error) {
			return 0, ErrTournamentNotFound
		})
		assert.ErrorIs(t, err, ErrTournamentNotFound)
	})

	t.Run("load failure", func(t *testing.T) {
		boom := errors.New("connection reset")
		_, err := readConsistent(ctx, 3, func(context.Context) (*models.Tournament, error) {
			return nil, boom
		}, nil)
		assert.ErrorIs(t, err, boom)
	})
}
