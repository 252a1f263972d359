package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-engine/models"
)

// fourPlayerRound returns a tournament with players 1..4 and a round pairing 1-2 (match 10) and 3-4 (match 11).
func fourPlayerRound() (*models.Tournament, *models.Round) {
	t := &models.Tournament{ID: 1, Status: models.StatusInProgress, CurrentRound: 1}
	for id := 1; id <= 4; id++ {
		t.Players = append(t.Players, &models.Player{ID: id, TournamentID: 1, Name: string(rune('A' + id - 1))})
	}
	r := &models.Round{ID: 5, TournamentID: 1, RoundNumber: 1, Kind: models.RoundRegular}
	r.Matches = []*models.Match{
		{ID: 10, RoundID: 5, PlayerIDs: []int{1, 2}},
		{ID: 11, RoundID: 5, PlayerIDs: []int{3, 4}},
	}
	t.Rounds = []*models.Round{r}
	return t, r
}

func fixedMatchService(ppw int) *matchService {
	s := NewMatchService(ppw).(*matchService)
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestProcessMatchWinnersAppliesStatistics(t *testing.T) {
	tr, round := fourPlayerRound()
	s := fixedMatchService(3)

	completed, resolved, err := s.ProcessMatchWinners(tr, round, []models.MatchResult{
		{MatchID: 10, WinnerID: 2},
		{MatchID: 11, WinnerID: 3},
	})
	require.NoError(t, err)
	assert.True(t, completed)
	assert.True(t, round.IsCompleted)
	assert.Len(t, resolved, 2)

	p2 := tr.FindPlayer(2)
	assert.Equal(t, 1, p2.Wins)
	assert.Equal(t, 1, p2.RoundWins)
	assert.Equal(t, 3, p2.Points)
	p1 := tr.FindPlayer(1)
	assert.Equal(t, 1, p1.Losses)
	assert.Equal(t, 1, p1.RoundLosses)
	assert.Zero(t, p1.Points)

	m := round.FindMatch(10)
	require.NotNil(t, m.WinnerID)
	assert.Equal(t, 2, *m.WinnerID)
	require.NotNil(t, m.CompletedAt)
}

func TestProcessMatchWinnersPartialBatch(t *testing.T) {
	tr, round := fourPlayerRound()
	completed, _, err := fixedMatchService(1).ProcessMatchWinners(tr, round, []models.MatchResult{{MatchID: 11, WinnerID: 4}})
	require.NoError(t, err)
	assert.False(t, completed)
	assert.False(t, round.IsCompleted)

	completed, _, err = fixedMatchService(1).ProcessMatchWinners(tr, round, []models.MatchResult{{MatchID: 10, WinnerID: 1}})
	require.NoError(t, err)
	assert.True(t, completed, "earlier results count towards completion")
}

func TestProcessMatchWinnersOrderIndependent(t *testing.T) {
	results := []models.MatchResult{{MatchID: 10, WinnerID: 1}, {MatchID: 11, WinnerID: 4}}
	reversed := []models.MatchResult{results[1], results[0]}

	a, ra := fourPlayerRound()
	b, rb := fourPlayerRound()
	doneA, _, err := fixedMatchService(2).ProcessMatchWinners(a, ra, results)
	require.NoError(t, err)
	doneB, _, err := fixedMatchService(2).ProcessMatchWinners(b, rb, reversed)
	require.NoError(t, err)

	assert.Equal(t, doneA, doneB)
	for id := 1; id <= 4; id++ {
		assert.Equal(t, *a.FindPlayer(id), *b.FindPlayer(id), "player %d", id)
	}
}

func TestProcessMatchWinnersValidation(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *models.Round)
		results []models.MatchResult
		wantErr error
	}{
		{
			name:    "match outside round",
			results: []models.MatchResult{{MatchID: 10, WinnerID: 1}, {MatchID: 99, WinnerID: 1}},
			wantErr: ErrMatchNotInRound,
		},
		{
			name:    "winner not a participant",
			results: []models.MatchResult{{MatchID: 10, WinnerID: 1}, {MatchID: 11, WinnerID: 1}},
			wantErr: ErrWinnerNotParticipant,
		},
		{
			name:    "duplicate match in batch",
			results: []models.MatchResult{{MatchID: 10, WinnerID: 1}, {MatchID: 10, WinnerID: 1}},
			wantErr: ErrDuplicateMatchResult,
		},
		{
			name: "already resolved",
			prepare: func(r *models.Round) {
				r.FindMatch(11).Resolve(3, time.Now())
			},
			results: []models.MatchResult{{MatchID: 10, WinnerID: 1}, {MatchID: 11, WinnerID: 3}},
			wantErr: ErrMatchAlreadyResolved,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, round := fourPlayerRound()
			if tt.prepare != nil {
				tt.prepare(round)
			}
			completed, _, err := fixedMatchService(1).ProcessMatchWinners(tr, round, tt.results)
			require.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidationFailed)
			assert.False(t, completed)

			assert.False(t, round.FindMatch(10).IsResolved(), "a rejected batch changes nothing")
			for _, p := range tr.Players {
				assert.Zero(t, p.Wins+p.Losses, "player %d", p.ID)
			}
		})
	}
}

func TestAccessGuard(t *testing.T) {
	g := NewAccessGuard(4)

	hash, err := g.Hash("")
	require.NoError(t, err)
	assert.Empty(t, hash)
	for _, secret := range []string{"", "anything", "Secret"} {
		assert.NoError(t, g.Verify("", secret))
	}

	hash, err = g.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.NoError(t, g.Verify(hash, "s3cret"))
	assert.ErrorIs(t, g.Verify(hash, "S3CRET"), ErrUnauthorized)
	assert.ErrorIs(t, g.Verify(hash, ""), ErrUnauthorized)

	long := make([]byte, maxSecretBytes+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = g.Hash(string(long))
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, g.Verify(hash, string(long)), ErrUnauthorized)
}
