package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/cache"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

type fixture struct {
	svc     *tournamentService
	gateway *repositories.MemoryGateway
	cache   *cache.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := repositories.NewMemoryGateway()
	c := cache.NewMemory(cache.Options{}, logger)
	return &fixture{
		svc:     newService(gw, c, logger),
		gateway: gw,
		cache:   c,
	}
}

func newService(gw repositories.Gateway, c cache.Cache, logger *slog.Logger) *tournamentService {
	return NewTournamentService(
		gw,
		c,
		brackets.NewStrategyFactory(1, logger),
		NewMatchService(1),
		NewAccessGuard(bcrypt.MinCost),
		3,
		logger,
	).(*tournamentService)
}

func (f *fixture) create(t *testing.T, format models.TournamentFormat, secret string, players ...string) *models.Tournament {
	t.Helper()
	ctx := context.Background()
	tr, err := f.svc.CreateTournament(ctx, CreateTournamentInput{Name: "Spring Cup", Format: format, Secret: secret})
	require.NoError(t, err)
	for _, name := range players {
		_, err := f.svc.AddPlayer(ctx, tr.ID, name, secret)
		require.NoError(t, err)
	}
	return tr
}

func playerNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Player %02d", i+1)
	}
	return names
}

// lowestIDWins submits a result for every unresolved match of the round, the lowest id winning.
func lowestIDWins(r *models.Round) []models.MatchResult {
	var results []models.MatchResult
	for _, m := range r.Matches {
		if m.IsResolved() {
			continue
		}
		winner := m.PlayerIDs[0]
		for _, id := range m.PlayerIDs {
			if id < winner {
				winner = id
			}
		}
		results = append(results, models.MatchResult{MatchID: m.ID, WinnerID: winner})
	}
	return results
}

func TestCreateTournamentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'n'
	}

	tests := []struct {
		name  string
		input CreateTournamentInput
	}{
		{"empty name", CreateTournamentInput{Name: "   ", Format: models.FormatSwiss}},
		{"long name", CreateTournamentInput{Name: string(long), Format: models.FormatSwiss}},
		{"unknown format", CreateTournamentInput{Name: "Cup", Format: models.TournamentFormat(9)}},
		{"long secret", CreateTournamentInput{Name: "Cup", Format: models.FormatSwiss, Secret: string(long)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateTournament(ctx, tt.input)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}

	list, err := f.svc.ListTournaments(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateAndGetTournament(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.svc.CreateTournament(ctx, CreateTournamentInput{Name: "  Autumn Open ", Format: models.FormatChampionsMeeting, Secret: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Autumn Open", tr.Name)
	assert.Equal(t, models.StatusCreated, tr.Status)
	assert.Zero(t, tr.CurrentRound)
	assert.Nil(t, tr.WinnerID)
	assert.True(t, tr.IsProtected())
	assert.NotEqual(t, "pw", tr.SecretHash)

	got, err := f.svc.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Name, got.Name)
	assert.Empty(t, got.Rounds)

	_, err = f.svc.GetTournament(ctx, tr.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := f.svc.ListTournaments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Autumn Open", list[0].Name)
}

func TestChallengeSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.create(t, models.FormatSwiss, "")
	locked := f.create(t, models.FormatSwiss, "Hunter2")

	for _, secret := range []string{"", "x", "Hunter2"} {
		ok, err := f.svc.ChallengeSecret(ctx, open.ID, secret)
		require.NoError(t, err)
		assert.True(t, ok, "unprotected tournament accepts %q", secret)
	}

	ok, err := f.svc.ChallengeSecret(ctx, locked.ID, "Hunter2")
	require.NoError(t, err)
	assert.True(t, ok)
	for _, secret := range []string{"", "hunter2", "Hunter22"} {
		ok, err := f.svc.ChallengeSecret(ctx, locked.ID, secret)
		require.NoError(t, err)
		assert.False(t, ok, "secret %q", secret)
	}

	_, err = f.svc.ChallengeSecret(ctx, 404, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsRequireSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "pw", "A", "B", "C")

	_, err := f.svc.AddPlayer(ctx, tr.ID, "D", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.RemovePlayer(ctx, tr.ID, 1, "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.StartTournament(ctx, tr.ID, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.UpdateTournamentName(ctx, tr.ID, "New", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.DeleteTournament(ctx, tr.ID, "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)

	got, err := f.svc.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Len(t, got.Players, 3)
}

func TestAddAndRemovePlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "")

	ann, err := f.svc.AddPlayer(ctx, tr.ID, "Ann", "")
	require.NoError(t, err)
	assert.NotZero(t, ann.ID)
	assert.Equal(t, tr.ID, ann.TournamentID)

	_, err = f.svc.AddPlayer(ctx, tr.ID, "Ann", "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.svc.AddPlayer(ctx, tr.ID, "ann", "")
	require.NoError(t, err, "names are case-sensitive")
	_, err = f.svc.AddPlayer(ctx, tr.ID, " ", "")
	assert.ErrorIs(t, err, ErrValidationFailed)
	_, err = f.svc.AddPlayer(ctx, 999, "Zed", "")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.svc.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)

	removed, err := f.svc.RemovePlayer(ctx, tr.ID, ann.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ann.ID, removed)
	_, err = f.svc.RemovePlayer(ctx, tr.ID, ann.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	cached, ok := f.cache.Get(ctx, tr.ID)
	require.True(t, ok)
	assert.False(t, cached.HasPlayerNamed("Ann"))
	stored, err := f.gateway.GetTournament(ctx, tr.ID, repositories.DepthFull)
	require.NoError(t, err)
	assert.Equal(t, stored.Version, cached.Version, "cache follows committed versions")
}

func TestPlayersFrozenAfterStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "", "A", "B", "C")
	_, err := f.svc.StartTournament(ctx, tr.ID, "")
	require.NoError(t, err)

	_, err = f.svc.AddPlayer(ctx, tr.ID, "D", "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.svc.RemovePlayer(ctx, tr.ID, 1, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	_, err = f.svc.StartTournament(ctx, tr.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestStartRequiresThreePlayers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	two := f.create(t, models.FormatSwiss, "", "A", "B")
	_, err := f.svc.StartTournament(ctx, two.ID, "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
	got, err := f.svc.GetTournament(ctx, two.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Empty(t, got.Rounds)

	three := f.create(t, models.FormatSwiss, "", "A", "B", "C")
	started, err := f.svc.StartTournament(ctx, three.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, started.Status)
	assert.Equal(t, 1, started.CurrentRound)
	assert.NotNil(t, started.StartedAt)
	require.Len(t, started.Rounds, 1)
}

func TestRoundOneShape(t *testing.T) {
	for _, format := range []models.TournamentFormat{models.FormatSwiss, models.FormatChampionsMeeting} {
		for n := 3; n <= 11; n++ {
			t.Run(fmt.Sprintf("%s/%d", format, n), func(t *testing.T) {
				f := newFixture(t)
				tr := f.create(t, format, "", playerNames(n)...)
				started, err := f.svc.StartTournament(context.Background(), tr.ID, "")
				require.NoError(t, err)

				round := started.CurrentRoundEntity()
				require.NotNil(t, round)
				assert.Len(t, round.Matches, (n+1)/2)

				byes := 0
				seen := map[int]bool{}
				for _, m := range round.Matches {
					assert.NotZero(t, m.ID)
					if m.IsBye() {
						byes++
						assert.True(t, m.IsResolved(), "a bye is created resolved")
					} else {
						assert.Len(t, m.PlayerIDs, 2)
					}
					for _, id := range m.PlayerIDs {
						assert.False(t, seen[id], "player %d appears twice", id)
						seen[id] = true
					}
				}
				assert.Equal(t, n%2, byes)
				assert.Len(t, seen, n)
			})
		}
	}
}

func TestThreePlayerSwissScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "", "A", "B", "C")
	started, err := f.svc.StartTournament(ctx, tr.ID, "")
	require.NoError(t, err)

	r1 := started.CurrentRoundEntity()
	require.Len(t, r1.Matches, 2)
	assert.Equal(t, []int{1, 2}, r1.Matches[0].PlayerIDs)
	assert.Equal(t, []int{3}, r1.Matches[1].PlayerIDs)

	res, err := f.svc.AdvanceRound(ctx, tr.ID, "", []models.MatchResult{{MatchID: r1.Matches[0].ID, WinnerID: 1}})
	require.NoError(t, err)
	assert.False(t, res.Completed, "three players play two rounds")
	require.NotNil(t, res.NewRound)
	assert.Equal(t, 2, res.NewRound.RoundNumber)
	assert.Equal(t, models.RoundFinal, res.NewRound.Kind)
	assert.Equal(t, 2, res.Tournament.CurrentRound)
	assert.True(t, res.Tournament.RoundByNumber(1).IsCompleted)
	require.Len(t, res.NewRound.Matches, 2)
	assert.Equal(t, []int{1, 3}, res.NewRound.Matches[0].PlayerIDs)
	assert.Equal(t, []int{2}, res.NewRound.Matches[1].PlayerIDs)

	res, err = f.svc.AdvanceRound(ctx, tr.ID, "", []models.MatchResult{{MatchID: res.NewRound.Matches[0].ID, WinnerID: 1}})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Nil(t, res.NewRound)
	assert.Equal(t, models.StatusCompleted, res.Tournament.Status)
	require.NotNil(t, res.Tournament.WinnerID)
	assert.Equal(t, 1, *res.Tournament.WinnerID)
	assert.NotNil(t, res.Tournament.CompletedAt)
	assert.Equal(t, 2, res.Tournament.CurrentRound)

	winner := res.Tournament.FindPlayer(1)
	assert.Equal(t, 2, winner.Wins)
	assert.Equal(t, 2, winner.Points)

	stored, err := f.gateway.GetTournament(ctx, tr.ID, repositories.DepthFull)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, 1, stored.FindPlayer(2).Wins, "bye in round two is persisted")

	_, err = f.svc.AdvanceRound(ctx, tr.ID, "", []models.MatchResult{{MatchID: 1, WinnerID: 1}})
	assert.ErrorIs(t, err, ErrConflict, "round one of a completed tournament")
	_, err = f.svc.UpdateTournamentName(ctx, tr.ID, "Renamed", "")
	assert.ErrorIs(t, err, ErrInvalidOperation)
}

func TestAdvanceRoundPartialSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "", "A", "B", "C", "D")
	started, err := f.svc.StartTournament(ctx, tr.ID, "")
	require.NoError(t, err)
	round := started.CurrentRoundEntity()
	before, ok := f.cache.Get(ctx, tr.ID)
	require.True(t, ok)

	_, err = f.svc.AdvanceRound(ctx, tr.ID, "", lowestIDWins(round)[:1])
	require.ErrorIs(t, err, ErrRoundNotResolved)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	after, ok := f.cache.Get(ctx, tr.ID)
	require.True(t, ok)
	assert.Equal(t, before, after, "a failed operation leaves the cache as it was")

	stored, err := f.gateway.GetTournament(ctx, tr.ID, repositories.DepthFull)
	require.NoError(t, err)
	assert.Len(t, stored.Rounds, 1)
	assert.False(t, stored.Rounds[0].Matches[0].IsResolved())
	for _, p := range stored.Players {
		assert.Zero(t, p.Wins, "player %d", p.ID)
	}
}

func TestAdvanceRoundRejectsResolvedMatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "", "A", "B", "C", "D", "E")
	started, err := f.svc.StartTournament(ctx, tr.ID, "")
	require.NoError(t, err)
	r1 := started.CurrentRoundEntity()

	var bye *models.Match
	for _, m := range r1.Matches {
		if m.IsBye() {
			bye = m
		}
	}
	require.NotNil(t, bye)
	withBye := append(lowestIDWins(r1), models.MatchResult{MatchID: bye.ID, WinnerID: bye.PlayerIDs[0]})
	_, err = f.svc.AdvanceRound(ctx, tr.ID, "", withBye)
	assert.ErrorIs(t, err, ErrMatchAlreadyResolved)

	results := lowestIDWins(r1)
	_, err = f.svc.AdvanceRound(ctx, tr.ID, "", results)
	require.NoError(t, err)

	_, err = f.svc.AdvanceRound(ctx, tr.ID, "", results)
	assert.ErrorIs(t, err, ErrRoundAlreadyAdvanced)
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.svc.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	total := 0
	for _, p := range got.Players {
		total += p.Wins
	}
	assert.Equal(t, 4, total, "two match wins and the byes of both rounds, counted once")
}

func TestConcurrentAdvanceOfSameRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "", playerNames(8)...)
	started, err := f.svc.StartTournament(ctx, tr.ID, "")
	require.NoError(t, err)
	results := lowestIDWins(started.CurrentRoundEntity())

	const clients = 2
	errs := make(chan error, clients)
	var ready sync.WaitGroup
	ready.Add(clients)
	gate := make(chan struct{})
	for i := 0; i < clients; i++ {
		go func() {
			ready.Done()
			<-gate
			_, err := f.svc.AdvanceRound(ctx, tr.ID, "", results)
			errs <- err
		}()
	}
	ready.Wait()
	close(gate)

	var succeeded, conflicted int
	for i := 0; i < clients; i++ {
		err := <-errs
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConflict):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	stored, err := f.gateway.GetTournament(ctx, tr.ID, repositories.DepthFull)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentRound)
	assert.Len(t, stored.Rounds, 2, "exactly one new round")
	total := 0
	for _, p := range stored.Players {
		total += p.Wins
	}
	assert.Equal(t, 4, total, "round one wins are counted once")
}

func TestAdvancedRoundDetection(t *testing.T) {
	tr := &models.Tournament{
		Status:       models.StatusInProgress,
		CurrentRound: 2,
		Rounds: []*models.Round{
			{RoundNumber: 1, Matches: []*models.Match{{ID: 1}, {ID: 2}}},
			{RoundNumber: 2, Matches: []*models.Match{{ID: 3}}},
		},
	}

	tests := []struct {
		name    string
		results []models.MatchResult
		round   int
		ok      bool
	}{
		{"earlier round", []models.MatchResult{{MatchID: 1}, {MatchID: 2}}, 1, true},
		{"current round", []models.MatchResult{{MatchID: 3}}, 0, false},
		{"mixed rounds", []models.MatchResult{{MatchID: 1}, {MatchID: 3}}, 0, false},
		{"unknown match", []models.MatchResult{{MatchID: 1}, {MatchID: 99}}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round, ok := advancedRound(tr, tt.results)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.round, round)
		})
	}

	tr.Status = models.StatusCompleted
	round, ok := advancedRound(tr, []models.MatchResult{{MatchID: 3}})
	assert.True(t, ok, "every round of a completed tournament is closed")
	assert.Equal(t, 2, round)
}

func TestAdvanceRoundOrderIndependent(t *testing.T) {
	play := func(reverse bool) []models.Player {
		f := newFixture(t)
		ctx := context.Background()
		tr := f.create(t, models.FormatSwiss, "", playerNames(6)...)
		started, err := f.svc.StartTournament(ctx, tr.ID, "")
		require.NoError(t, err)
		results := lowestIDWins(started.CurrentRoundEntity())
		if reverse {
			sort.Slice(results, func(i, j int) bool { return results[i].MatchID > results[j].MatchID })
		}
		res, err := f.svc.AdvanceRound(ctx, tr.ID, "", results)
		require.NoError(t, err)
		out := make([]models.Player, len(res.Tournament.Players))
		for i, p := range res.Tournament.Players {
			out[i] = *p
		}
		return out
	}
	assert.Equal(t, play(false), play(true))
}

func TestPlayToCompletion(t *testing.T) {
	for _, format := range []models.TournamentFormat{models.FormatSwiss, models.FormatChampionsMeeting} {
		for _, n := range []int{3, 4, 7, 9} {
			t.Run(fmt.Sprintf("%s/%d", format, n), func(t *testing.T) {
				f := newFixture(t)
				ctx := context.Background()
				tr := f.create(t, format, "pw", playerNames(n)...)
				current, err := f.svc.StartTournament(ctx, tr.ID, "pw")
				require.NoError(t, err)

				for i := 0; i < 20 && current.Status != models.StatusCompleted; i++ {
					res, err := f.svc.AdvanceRound(ctx, tr.ID, "pw", lowestIDWins(current.CurrentRoundEntity()))
					require.NoError(t, err)
					current = res.Tournament
					assert.Equal(t, len(current.Rounds), current.CurrentRound)
				}
				require.Equal(t, models.StatusCompleted, current.Status)
				require.NotNil(t, current.WinnerID)
				assert.Equal(t, 1, *current.WinnerID)
				for _, r := range current.Rounds {
					assert.True(t, r.IsCompleted, "round %d", r.RoundNumber)
				}

				got, err := f.svc.GetTournament(ctx, tr.ID)
				require.NoError(t, err)
				assert.Equal(t, current.Version, got.Version)
			})
		}
	}
}

func TestUpdateTournamentName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "", "A", "B", "C")

	updated, err := f.svc.UpdateTournamentName(ctx, tr.ID, "Renamed", "")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Len(t, updated.Players, 3)

	_, err = f.svc.UpdateTournamentName(ctx, tr.ID, "", "")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.StartTournament(ctx, tr.ID, "")
	require.NoError(t, err)
	updated, err = f.svc.UpdateTournamentName(ctx, tr.ID, "Still running", "")
	require.NoError(t, err)
	assert.Len(t, updated.Rounds, 1)

	list, err := f.svc.ListTournaments(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Still running", list[0].Name)
}

func TestDeleteTournament(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "pw", "A", "B", "C")
	_, err := f.svc.StartTournament(ctx, tr.ID, "pw")
	require.NoError(t, err)

	ok, err := f.svc.DeleteTournament(ctx, tr.ID, "pw")
	require.NoError(t, err)
	assert.True(t, ok)

	_, cached := f.cache.Get(ctx, tr.ID)
	assert.False(t, cached)
	_, err = f.svc.GetTournament(ctx, tr.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.ChallengeSecret(ctx, tr.ID, "pw")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.DeleteTournament(ctx, tr.ID, "pw")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteOfVanishedTournamentDropsCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.create(t, models.FormatSwiss, "pw", "A", "B")
	_, err := f.svc.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	_, ok := f.cache.Get(ctx, tr.ID)
	require.True(t, ok)

	// removed by another instance; this one still holds the snapshot
	require.NoError(t, f.gateway.WithinTx(ctx, func(tx repositories.Tx) error {
		_, err := tx.DeleteTournament(ctx, tr.ID)
		return err
	}))

	_, err = f.svc.DeleteTournament(ctx, tr.ID, "pw")
	assert.ErrorIs(t, err, ErrNotFound)
	_, ok = f.cache.Get(ctx, tr.ID)
	assert.False(t, ok, "the stale snapshot is dropped, nothing else changed")
}

// scriptedGateway fails the first transactions with the given errors, then delegates.
type scriptedGateway struct {
	repositories.Gateway
	failures []error
	calls    int
}

func (g *scriptedGateway) WithinTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	g.calls++
	if len(g.failures) > 0 {
		err := g.failures[0]
		g.failures = g.failures[1:]
		return err
	}
	return g.Gateway.WithinTx(ctx, fn)
}

func scriptedFixture(t *testing.T) (*tournamentService, *scriptedGateway, *cache.Memory, *models.Tournament) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := &scriptedGateway{Gateway: repositories.NewMemoryGateway()}
	c := cache.NewMemory(cache.Options{}, logger)
	svc := newService(gw, c, logger)
	tr, err := svc.CreateTournament(context.Background(), CreateTournamentInput{Name: "Retry", Format: models.FormatSwiss})
	require.NoError(t, err)
	gw.calls = 0
	return svc, gw, c, tr
}

func TestTransientFailuresAreRetried(t *testing.T) {
	svc, gw, _, tr := scriptedFixture(t)
	gw.failures = []error{&pq.Error{Code: "40001"}, &pq.Error{Code: "08006"}}

	p, err := svc.AddPlayer(context.Background(), tr.ID, "Ann", "")
	require.NoError(t, err)
	assert.NotZero(t, p.ID)
	assert.Equal(t, 3, gw.calls)
}

func TestTransientFailuresGiveUp(t *testing.T) {
	svc, gw, _, tr := scriptedFixture(t)
	gw.failures = []error{&pq.Error{Code: "40001"}, &pq.Error{Code: "40001"}, &pq.Error{Code: "40001"}, &pq.Error{Code: "40001"}}

	_, err := svc.AddPlayer(context.Background(), tr.ID, "Ann", "")
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.Equal(t, 3, gw.calls)
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	svc, gw, _, tr := scriptedFixture(t)
	gw.failures = []error{errors.New("disk on fire")}

	_, err := svc.AddPlayer(context.Background(), tr.ID, "Ann", "")
	require.ErrorIs(t, err, ErrUnexpected)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	assert.NotContains(t, err.Error(), "disk on fire")
	assert.Equal(t, 1, gw.calls, "only transient failures are retried")
}

func TestVersionConflictInvalidatesCache(t *testing.T) {
	svc, gw, c, tr := scriptedFixture(t)
	ctx := context.Background()
	_, ok := c.Get(ctx, tr.ID)
	require.True(t, ok)

	gw.failures = []error{fmt.Errorf("update: %w", repositories.ErrTournamentVersionConflict)}
	_, err := svc.UpdateTournamentName(ctx, tr.ID, "Late", "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 1, gw.calls, "conflicts are returned to the caller")

	_, ok = c.Get(ctx, tr.ID)
	assert.False(t, ok)

	got, err := svc.GetTournament(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Retry", got.Name)
}
