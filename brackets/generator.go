package brackets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported tournament format")
	ErrNotEnoughPlayers   = errors.New("not enough players to create a round")
	ErrNoWinnerCandidates = errors.New("no players to determine a winner from")
)

// Strategy decides who plays whom each round and when a tournament ends.
//
// CreateMatchesForRound receives a round that is already persisted (it has an ID) but not yet
// part of tournament.Rounds, which only holds the previous rounds. It fills round.Matches, sets
// round.Kind and may update player statistics (byes, stage counters, group labels); the caller
// persists everything afterwards.
type Strategy interface {
	Name() string
	CreateMatchesForRound(ctx context.Context, tournament *models.Tournament, round *models.Round) error
	ShouldCompleteTournament(tournament *models.Tournament) bool
	DetermineTournamentWinner(tournament *models.Tournament) (int, error)
}

type StrategyFactory struct {
	pointsPerWin int
	logger       *slog.Logger
	now          func() time.Time
}

func NewStrategyFactory(pointsPerWin int, logger *slog.Logger) *StrategyFactory {
	if pointsPerWin <= 0 {
		pointsPerWin = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StrategyFactory{
		pointsPerWin: pointsPerWin,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (f *StrategyFactory) PointsPerWin() int {
	return f.pointsPerWin
}

func (f *StrategyFactory) GetStrategy(format models.TournamentFormat) (Strategy, error) {
	switch format {
	case models.FormatSwiss:
		return &SwissStrategy{
			pointsPerWin: f.pointsPerWin,
			searchBudget: defaultSearchBudget,
			logger:       f.logger,
			now:          f.now,
		}, nil
	case models.FormatChampionsMeeting:
		return &GroupStageStrategy{
			pointsPerWin: f.pointsPerWin,
			logger:       f.logger,
			now:          f.now,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func newMatch(round *models.Round, at time.Time, playerIDs ...int) *models.Match {
	return &models.Match{
		RoundID:   round.ID,
		PlayerIDs: playerIDs,
		CreatedAt: at,
	}
}

// newByeMatch creates a one-participant match that is already won and credits the player.
func newByeMatch(round *models.Round, at time.Time, player *models.Player, pointsPerWin int) *models.Match {
	m := newMatch(round, at, player.ID)
	m.Resolve(player.ID, at)
	player.Wins++
	player.RoundWins++
	player.Points += pointsPerWin
	return m
}

func latestRound(t *models.Tournament) *models.Round {
	var latest *models.Round
	for _, r := range t.Rounds {
		if latest == nil || r.RoundNumber > latest.RoundNumber {
			latest = r
		}
	}
	return latest
}
