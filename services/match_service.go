package services

import (
	"fmt"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

type MatchService interface {
	// ProcessMatchWinners applies results to round and reports whether every match of the round
	// now has a winner. The whole batch is validated first: on error nothing is changed.
	// The returned matches are the ones resolved by this call.
	ProcessMatchWinners(tournament *models.Tournament, round *models.Round, results []models.MatchResult) (bool, []*models.Match, error)
}

type matchService struct {
	pointsPerWin int
	now          func() time.Time
}

func NewMatchService(pointsPerWin int) MatchService {
	if pointsPerWin <= 0 {
		pointsPerWin = 1
	}
	return &matchService{
		pointsPerWin: pointsPerWin,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *matchService) ProcessMatchWinners(tournament *models.Tournament, round *models.Round, results []models.MatchResult) (bool, []*models.Match, error) {
	matches, err := validateResults(tournament, round, results)
	if err != nil {
		return false, nil, err
	}

	at := s.now()
	for i, res := range results {
		m := matches[i]
		m.Resolve(res.WinnerID, at)

		winner := tournament.FindPlayer(res.WinnerID)
		winner.Wins++
		winner.RoundWins++
		winner.Points += s.pointsPerWin
		for _, loserID := range m.Opponents(res.WinnerID) {
			loser := tournament.FindPlayer(loserID)
			loser.Losses++
			loser.RoundLosses++
		}
	}

	round.IsCompleted = round.AllResolved()
	return round.IsCompleted, matches, nil
}

func validateResults(tournament *models.Tournament, round *models.Round, results []models.MatchResult) ([]*models.Match, error) {
	seen := make(map[int]struct{}, len(results))
	matches := make([]*models.Match, len(results))
	for i, res := range results {
		if _, dup := seen[res.MatchID]; dup {
			return nil, fmt.Errorf("%w: match %d", ErrDuplicateMatchResult, res.MatchID)
		}
		seen[res.MatchID] = struct{}{}

		m := round.FindMatch(res.MatchID)
		if m == nil {
			return nil, fmt.Errorf("%w: match %d, round %d", ErrMatchNotInRound, res.MatchID, round.RoundNumber)
		}
		if !m.HasParticipant(res.WinnerID) {
			return nil, fmt.Errorf("%w: player %d, match %d", ErrWinnerNotParticipant, res.WinnerID, res.MatchID)
		}
		if m.IsResolved() {
			return nil, fmt.Errorf("%w: match %d", ErrMatchAlreadyResolved, res.MatchID)
		}
		for _, id := range m.PlayerIDs {
			if tournament.FindPlayer(id) == nil {
				return nil, fmt.Errorf("%w: player %d of match %d", ErrPlayerNotFound, id, res.MatchID)
			}
		}
		matches[i] = m
	}
	return matches, nil
}
