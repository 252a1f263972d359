package brackets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

// defaultSearchBudget bounds the repeat-free pairing search; past it the fallback pairing is used.
const defaultSearchBudget = 200_000

type SwissStrategy struct {
	pointsPerWin int
	searchBudget int
	logger       *slog.Logger
	now          func() time.Time
}

func (s *SwissStrategy) Name() string {
	return "Swiss"
}

// RequiredSwissRounds is ceil(log2(n)), never fewer than two rounds.
func RequiredSwissRounds(players int) int {
	rounds := 0
	for 1<<rounds < players {
		rounds++
	}
	if rounds < 2 {
		rounds = 2
	}
	return rounds
}

type pairing struct {
	a, b *models.Player
}

// CreateMatchesForRound pairs players by standings. See pairRound for the exact order of preference.
func (s *SwissStrategy) CreateMatchesForRound(ctx context.Context, t *models.Tournament, round *models.Round) error {
	if len(t.Players) < 2 {
		return fmt.Errorf("%w: swiss needs at least 2, found %d", ErrNotEnoughPlayers, len(t.Players))
	}
	now := s.now()
	ranked := RankPlayers(t.Players)
	required := RequiredSwissRounds(len(ranked))

	if t.CompletedRounds() >= required {
		// Regular rounds are over and the leaders are still level: one decider between them.
		round.Kind = models.RoundTiebreaker
		round.Matches = []*models.Match{newMatch(round, now, ranked[0].ID, ranked[1].ID)}
		s.logger.InfoContext(ctx, "swiss tiebreaker round created",
			slog.Int("tournament_id", t.ID),
			slog.Int("round", round.RoundNumber),
			slog.Int("player1_id", ranked[0].ID),
			slog.Int("player2_id", ranked[1].ID))
		return nil
	}

	round.Kind = models.RoundRegular
	if round.RoundNumber >= required {
		round.Kind = models.RoundFinal
	}

	history := buildHistory(t.Rounds)
	pairs, bye, repeats := s.pairRound(ranked, history)
	if repeats {
		s.logger.WarnContext(ctx, "swiss pairing fell back to repeat pairings",
			slog.Int("tournament_id", t.ID),
			slog.Int("round", round.RoundNumber))
	}

	round.Matches = make([]*models.Match, 0, len(pairs)+1)
	for _, p := range pairs {
		round.Matches = append(round.Matches, newMatch(round, now, p.a.ID, p.b.ID))
	}
	if bye != nil {
		round.Matches = append(round.Matches, newByeMatch(round, now, bye, s.pointsPerWin))
	}
	return nil
}

// pairRound picks the bye (odd player count) and pairs the rest.
//
// Bye: the lowest-ranked player who has not had one yet, moving upward when the remaining
// players cannot be paired without repeats. Pairing: point brackets top-down, each player
// taking the highest-ranked opponent not met before, odd brackets floating their leftover into
// the next bracket. When no repeat-free pairing exists the fallback in fallbackPairs is used and
// repeats is true.
func (s *SwissStrategy) pairRound(ranked []*models.Player, history *matchHistory) (pairs []pairing, bye *models.Player, repeats bool) {
	if len(ranked)%2 == 0 {
		if pairs, ok := s.pairWithoutRepeats(ranked, history); ok {
			return pairs, nil, false
		}
		return fallbackPairs(ranked, history), nil, true
	}

	candidates := byeCandidates(ranked, history)
	for _, c := range candidates {
		if pairs, ok := s.pairWithoutRepeats(without(ranked, c), history); ok {
			return pairs, c, false
		}
	}
	bye = candidates[0]
	return fallbackPairs(without(ranked, bye), history), bye, true
}

// byeCandidates orders bye receivers: players without a bye from the bottom up, then the rest.
func byeCandidates(ranked []*models.Player, history *matchHistory) []*models.Player {
	out := make([]*models.Player, 0, len(ranked))
	for i := len(ranked) - 1; i >= 0; i-- {
		if !history.hadBye(ranked[i].ID) {
			out = append(out, ranked[i])
		}
	}
	for i := len(ranked) - 1; i >= 0; i-- {
		if history.hadBye(ranked[i].ID) {
			out = append(out, ranked[i])
		}
	}
	return out
}

func without(players []*models.Player, skip *models.Player) []*models.Player {
	out := make([]*models.Player, 0, len(players))
	for _, p := range players {
		if p != skip {
			out = append(out, p)
		}
	}
	return out
}

type swissSearch struct {
	brackets [][]*models.Player
	history  *matchHistory
	budget   int
}

func (s *SwissStrategy) pairWithoutRepeats(ranked []*models.Player, history *matchHistory) ([]pairing, bool) {
	search := &swissSearch{
		brackets: PointBrackets(ranked),
		history:  history,
		budget:   s.searchBudget,
	}
	return search.solve(0, nil)
}

// solve pairs bracket bi together with the players floated down from the bracket above.
func (s *swissSearch) solve(bi int, floaters []*models.Player) ([]pairing, bool) {
	if bi == len(s.brackets) {
		return nil, len(floaters) == 0
	}
	group := make([]*models.Player, 0, len(floaters)+len(s.brackets[bi]))
	group = append(group, floaters...)
	group = append(group, s.brackets[bi]...)

	last := bi == len(s.brackets)-1
	var result []pairing
	found := false
	s.matchGroup(group, make([]bool, len(group)), nil, nil, last, func(pairs []pairing, leftover []*models.Player) bool {
		rest, ok := s.solve(bi+1, leftover)
		if !ok {
			return false
		}
		result = append(append([]pairing(nil), pairs...), rest...)
		found = true
		return true
	})
	return result, found
}

// matchGroup enumerates pairings of group depth-first, best-ranked choices first. The first
// unused player is paired with each unmet opponent in rank order; floating it down is tried last
// and is not allowed in the final bracket. done returns true to stop the enumeration.
func (s *swissSearch) matchGroup(
	group []*models.Player,
	used []bool,
	pairs []pairing,
	leftover []*models.Player,
	last bool,
	done func([]pairing, []*models.Player) bool,
) bool {
	if s.budget <= 0 {
		return true
	}
	s.budget--

	first := -1
	for i := range group {
		if !used[i] {
			first = i
			break
		}
	}
	if first == -1 {
		return done(pairs, leftover)
	}

	used[first] = true
	for j := first + 1; j < len(group); j++ {
		if used[j] || s.history.played(group[first].ID, group[j].ID) {
			continue
		}
		used[j] = true
		stop := s.matchGroup(group, used, append(pairs, pairing{a: group[first], b: group[j]}), leftover, last, done)
		used[j] = false
		if stop {
			used[first] = false
			return true
		}
	}
	stop := false
	if !last {
		stop = s.matchGroup(group, used, pairs, append(leftover, group[first]), last, done)
	}
	used[first] = false
	return stop
}

// fallbackPairs walks the ranking, pairing each player with the highest-ranked opponent not met
// yet, or with the next player when everyone left has been met.
func fallbackPairs(ranked []*models.Player, history *matchHistory) []pairing {
	remaining := append([]*models.Player(nil), ranked...)
	pairs := make([]pairing, 0, len(remaining)/2)
	for len(remaining) >= 2 {
		p := remaining[0]
		pick := 1
		for j := 1; j < len(remaining); j++ {
			if !history.played(p.ID, remaining[j].ID) {
				pick = j
				break
			}
		}
		pairs = append(pairs, pairing{a: p, b: remaining[pick]})
		remaining = append(remaining[1:pick], remaining[pick+1:]...)
	}
	return pairs
}

// ShouldCompleteTournament holds once the required rounds are played and a single leader
// stands out, or after one tiebreaker round.
func (s *SwissStrategy) ShouldCompleteTournament(t *models.Tournament) bool {
	if t.CompletedRounds() < RequiredSwissRounds(len(t.Players)) {
		return false
	}
	ranked := RankPlayers(t.Players)
	if len(ranked) < 2 || !tiedOnScore(ranked[0], ranked[1]) {
		return true
	}
	for _, r := range t.Rounds {
		if r.Kind == models.RoundTiebreaker && r.IsCompleted {
			return true
		}
	}
	return false
}

func (s *SwissStrategy) DetermineTournamentWinner(t *models.Tournament) (int, error) {
	if len(t.Players) == 0 {
		return 0, ErrNoWinnerCandidates
	}
	return RankPlayers(t.Players)[0].ID, nil
}
