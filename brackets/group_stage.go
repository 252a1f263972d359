package brackets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

const groupSize = 4

// GroupStageStrategy runs round-robin groups followed by a single-elimination knockout.
type GroupStageStrategy struct {
	pointsPerWin int
	logger       *slog.Logger
	now          func() time.Time
}

func (s *GroupStageStrategy) Name() string {
	return "ChampionsMeeting"
}

// AssignGroupSizes splits n players into groups of four. A remainder of two or three forms its
// own group, a remainder of one turns the last full group into 3+2.
func AssignGroupSizes(n int) []int {
	if n <= 0 {
		return nil
	}
	sizes := make([]int, n/groupSize)
	for i := range sizes {
		sizes[i] = groupSize
	}
	switch rest := n % groupSize; {
	case rest == 1 && len(sizes) > 0:
		sizes[len(sizes)-1] = 3
		sizes = append(sizes, 2)
	case rest > 0:
		sizes = append(sizes, rest)
	}
	return sizes
}

// GroupLabel maps 0, 1, ... to A, B, ..., Z, AA, AB, ...
func GroupLabel(i int) string {
	var sb []byte
	for i >= 0 {
		sb = append([]byte{byte('A' + i%26)}, sb...)
		i = i/26 - 1
	}
	return string(sb)
}

// GroupStageRounds is the number of rounds needed for every group to finish its round robin.
func GroupStageRounds(players int) int {
	rounds := 0
	for _, size := range AssignGroupSizes(players) {
		if r := roundRobinRounds(size); r > rounds {
			rounds = r
		}
	}
	return rounds
}

func roundRobinRounds(size int) int {
	if size < 2 {
		return 0
	}
	if size%2 == 0 {
		return size - 1
	}
	return size
}

func (s *GroupStageStrategy) CreateMatchesForRound(ctx context.Context, t *models.Tournament, round *models.Round) error {
	if len(t.Players) < 2 {
		return fmt.Errorf("%w: group stage needs at least 2, found %d", ErrNotEnoughPlayers, len(t.Players))
	}
	groupRounds := GroupStageRounds(len(t.Players))
	round.Kind = models.RoundRegular

	if round.RoundNumber == 1 {
		s.assignGroups(ctx, t)
	}
	if round.RoundNumber <= groupRounds {
		round.Matches = s.groupRoundMatches(t, round)
		return nil
	}

	var alive []*models.Player
	if round.RoundNumber == groupRounds+1 {
		alive = groupAdvancers(t)
		for _, p := range t.Players {
			p.ResetStage()
		}
		s.logger.InfoContext(ctx, "knockout stage started",
			slog.Int("tournament_id", t.ID),
			slog.Int("advancers", len(alive)))
	} else {
		prev := latestRound(t)
		if prev == nil {
			return fmt.Errorf("%w: no previous knockout round", ErrNotEnoughPlayers)
		}
		for _, id := range prev.Winners() {
			if p := t.FindPlayer(id); p != nil {
				alive = append(alive, p)
			}
		}
	}
	if len(alive) < 2 {
		return fmt.Errorf("%w: knockout round needs at least 2 players, found %d", ErrNotEnoughPlayers, len(alive))
	}

	round.Matches = s.knockoutMatches(round, RankPlayers(alive))
	if len(alive) == 2 {
		round.Kind = models.RoundFinal
	}
	return nil
}

// assignGroups labels players in registration order.
func (s *GroupStageStrategy) assignGroups(ctx context.Context, t *models.Tournament) {
	byID := append([]*models.Player(nil), t.Players...)
	sort.Slice(byID, func(i, j int) bool { return byID[i].ID < byID[j].ID })

	labels := make([]string, 0)
	next := 0
	for gi, size := range AssignGroupSizes(len(byID)) {
		label := GroupLabel(gi)
		labels = append(labels, label)
		for _, p := range byID[next : next+size] {
			p.Group = label
			p.ResetStage()
		}
		next += size
	}
	s.logger.InfoContext(ctx, "players assigned to groups",
		slog.Int("tournament_id", t.ID),
		slog.String("groups", strings.Join(labels, ",")))
}

// groups returns group members ordered by player id, keyed and ordered by label.
func groups(t *models.Tournament) ([]string, map[string][]*models.Player) {
	members := make(map[string][]*models.Player)
	var labels []string
	for _, p := range t.Players {
		if _, ok := members[p.Group]; !ok {
			labels = append(labels, p.Group)
		}
		members[p.Group] = append(members[p.Group], p)
	}
	sort.Strings(labels)
	for _, ps := range members {
		sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
	}
	return labels, members
}

// groupRoundMatches uses the circle method: the first seat is fixed and the others rotate one
// step per round. An odd group gets an empty seat; whoever faces it takes the bye.
func (s *GroupStageStrategy) groupRoundMatches(t *models.Tournament, round *models.Round) []*models.Match {
	now := s.now()
	labels, members := groups(t)
	var matches []*models.Match
	for _, label := range labels {
		seats := append([]*models.Player(nil), members[label]...)
		if len(seats)%2 == 1 {
			seats = append(seats, nil)
		}
		idx := round.RoundNumber - 1
		if len(seats) < 2 || idx >= len(seats)-1 {
			continue
		}

		rotating := seats[1:]
		shift := idx % len(rotating)
		order := make([]*models.Player, 0, len(seats))
		order = append(order, seats[0])
		order = append(order, rotating[len(rotating)-shift:]...)
		order = append(order, rotating[:len(rotating)-shift]...)

		for i := 0; i < len(order)/2; i++ {
			a, b := order[i], order[len(order)-1-i]
			switch {
			case a == nil:
				matches = append(matches, newByeMatch(round, now, b, s.pointsPerWin))
			case b == nil:
				matches = append(matches, newByeMatch(round, now, a, s.pointsPerWin))
			default:
				matches = append(matches, newMatch(round, now, a.ID, b.ID))
			}
		}
	}
	return matches
}

// groupAdvancers takes the group leader by stage wins, or the top two when there is a single group.
func groupAdvancers(t *models.Tournament) []*models.Player {
	labels, members := groups(t)
	perGroup := 1
	if len(labels) == 1 {
		perGroup = 2
	}
	var out []*models.Player
	for _, label := range labels {
		ps := append([]*models.Player(nil), members[label]...)
		sort.SliceStable(ps, func(i, j int) bool {
			if ps[i].RoundWins != ps[j].RoundWins {
				return ps[i].RoundWins > ps[j].RoundWins
			}
			return RanksAhead(ps[i], ps[j])
		})
		if len(ps) > perGroup {
			ps = ps[:perGroup]
		}
		out = append(out, ps...)
	}
	return out
}

// knockoutMatches pairs the best remaining seed with the worst; an odd field gives the top seed a bye.
func (s *GroupStageStrategy) knockoutMatches(round *models.Round, seeded []*models.Player) []*models.Match {
	now := s.now()
	var matches []*models.Match
	if len(seeded)%2 == 1 {
		matches = append(matches, newByeMatch(round, now, seeded[0], s.pointsPerWin))
		seeded = seeded[1:]
	}
	for i := 0; i < len(seeded)/2; i++ {
		matches = append(matches, newMatch(round, now, seeded[i].ID, seeded[len(seeded)-1-i].ID))
	}
	return matches
}

// ShouldCompleteTournament holds once a knockout round leaves a single winner.
func (s *GroupStageStrategy) ShouldCompleteTournament(t *models.Tournament) bool {
	latest := latestRound(t)
	if latest == nil || latest.RoundNumber <= GroupStageRounds(len(t.Players)) {
		return false
	}
	return latest.AllResolved() && len(latest.Winners()) == 1
}

func (s *GroupStageStrategy) DetermineTournamentWinner(t *models.Tournament) (int, error) {
	if len(t.Players) == 0 {
		return 0, ErrNoWinnerCandidates
	}
	if latest := latestRound(t); latest != nil && latest.RoundNumber > GroupStageRounds(len(t.Players)) {
		if winners := latest.Winners(); len(winners) == 1 {
			return winners[0], nil
		}
	}
	return RankPlayers(t.Players)[0].ID, nil
}
