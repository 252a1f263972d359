package brackets

import (
	"sort"

	"github.com/Dosada05/tournament-engine/models"
)

// RanksAhead is the standings order: points, wins, win rate, then lowest id as the final tiebreak.
func RanksAhead(a, b *models.Player) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if ar, br := a.WinRate(), b.WinRate(); ar != br {
		return ar > br
	}
	return a.ID < b.ID
}

// RankPlayers returns a sorted copy; the input slice is left untouched.
func RankPlayers(players []*models.Player) []*models.Player {
	ranked := append([]*models.Player(nil), players...)
	sort.Slice(ranked, func(i, j int) bool {
		return RanksAhead(ranked[i], ranked[j])
	})
	return ranked
}

// tiedOnScore reports whether two players cannot be separated by points and wins.
func tiedOnScore(a, b *models.Player) bool {
	return a.Points == b.Points && a.Wins == b.Wins
}

// PointBrackets groups ranked players sharing the same points, highest bracket first.
func PointBrackets(ranked []*models.Player) [][]*models.Player {
	var out [][]*models.Player
	for _, p := range ranked {
		if n := len(out); n > 0 && out[n-1][0].Points == p.Points {
			out[n-1] = append(out[n-1], p)
			continue
		}
		out = append(out, []*models.Player{p})
	}
	return out
}

type pairKey struct{ lo, hi int }

func keyOf(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// matchHistory records who has met whom and who already received a bye.
type matchHistory struct {
	met  map[pairKey]int
	byes map[int]int
}

func buildHistory(rounds []*models.Round) *matchHistory {
	h := &matchHistory{met: make(map[pairKey]int), byes: make(map[int]int)}
	for _, r := range rounds {
		for _, m := range r.Matches {
			if m.IsBye() {
				h.byes[m.PlayerIDs[0]]++
				continue
			}
			for i := 0; i < len(m.PlayerIDs); i++ {
				for j := i + 1; j < len(m.PlayerIDs); j++ {
					h.met[keyOf(m.PlayerIDs[i], m.PlayerIDs[j])]++
				}
			}
		}
	}
	return h
}

func (h *matchHistory) played(a, b int) bool {
	return h.met[keyOf(a, b)] > 0
}

func (h *matchHistory) hadBye(id int) bool {
	return h.byes[id] > 0
}
