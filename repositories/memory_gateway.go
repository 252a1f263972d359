package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/tournament-engine/models"
)

// MemoryGateway keeps tournaments in process memory. Transactions are serialized: each one works
// on private copies of the tournaments it touches, and the copies replace the committed ones only
// when the transaction succeeds.
type MemoryGateway struct {
	mu          sync.RWMutex
	tournaments map[int]*models.Tournament
	seq         struct{ tournament, player, round, match int }
	now         func() time.Time
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{
		tournaments: make(map[int]*models.Tournament),
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (g *MemoryGateway) ListTournaments(_ context.Context) ([]models.TournamentSummary, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	list := make([]models.TournamentSummary, 0, len(g.tournaments))
	for _, t := range g.tournaments {
		list = append(list, t.Summary())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (g *MemoryGateway) GetTournament(_ context.Context, id int, depth Depth) (*models.Tournament, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	t, ok := g.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return trimToDepth(t.Clone(), depth), nil
}

func (g *MemoryGateway) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	tx := &memoryTx{
		g:       g,
		working: make(map[int]*models.Tournament),
		deleted: make(map[int]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	for id := range tx.deleted {
		delete(g.tournaments, id)
	}
	for id, t := range tx.working {
		g.tournaments[id] = t
	}
	return nil
}

func trimToDepth(t *models.Tournament, depth Depth) *models.Tournament {
	switch depth {
	case DepthBare:
		t.Players, t.Rounds = nil, nil
	case DepthWithPlayers:
		t.Rounds = nil
	}
	return t
}

type memoryTx struct {
	g       *MemoryGateway
	working map[int]*models.Tournament
	deleted map[int]bool
}

// load returns the transaction's private copy of a tournament.
func (tx *memoryTx) load(id int) (*models.Tournament, bool) {
	if tx.deleted[id] {
		return nil, false
	}
	if t, ok := tx.working[id]; ok {
		return t, true
	}
	committed, ok := tx.g.tournaments[id]
	if !ok {
		return nil, false
	}
	t := committed.Clone()
	tx.working[id] = t
	return t, true
}

func (tx *memoryTx) findRound(roundID int) (*models.Tournament, *models.Round) {
	for _, t := range tx.working {
		if r := roundWithID(t, roundID); r != nil {
			return t, r
		}
	}
	for id, committed := range tx.g.tournaments {
		if tx.deleted[id] || roundWithID(committed, roundID) == nil {
			continue
		}
		t, _ := tx.load(id)
		return t, roundWithID(t, roundID)
	}
	return nil, nil
}

func roundWithID(t *models.Tournament, roundID int) *models.Round {
	for _, r := range t.Rounds {
		if r.ID == roundID {
			return r
		}
	}
	return nil
}

func (tx *memoryTx) GetTournament(_ context.Context, id int, depth Depth) (*models.Tournament, error) {
	t, ok := tx.load(id)
	if !ok {
		return nil, ErrTournamentNotFound
	}
	return trimToDepth(t.Clone(), depth), nil
}

func (tx *memoryTx) CreateTournament(_ context.Context, t *models.Tournament) error {
	tx.g.seq.tournament++
	t.ID = tx.g.seq.tournament
	t.Version = 1
	t.CreatedAt = tx.g.now()

	stored := t.Clone()
	stored.Players = []*models.Player{}
	stored.Rounds = []*models.Round{}
	tx.working[t.ID] = stored
	return nil
}

func (tx *memoryTx) UpdateTournament(_ context.Context, t *models.Tournament) error {
	stored, ok := tx.load(t.ID)
	if !ok {
		return ErrTournamentNotFound
	}
	if stored.Version != t.Version {
		return ErrTournamentVersionConflict
	}
	c := t.Clone()
	stored.Name = c.Name
	stored.Status = c.Status
	stored.CurrentRound = c.CurrentRound
	stored.WinnerID = c.WinnerID
	stored.StartedAt = c.StartedAt
	stored.CompletedAt = c.CompletedAt
	stored.Version++
	t.Version = stored.Version
	return nil
}

func (tx *memoryTx) DeleteTournament(_ context.Context, id int) (bool, error) {
	if _, ok := tx.load(id); !ok {
		return false, nil
	}
	delete(tx.working, id)
	tx.deleted[id] = true
	return true, nil
}

func (tx *memoryTx) CreatePlayer(_ context.Context, p *models.Player) error {
	t, ok := tx.load(p.TournamentID)
	if !ok {
		return ErrTournamentNotFound
	}
	if t.HasPlayerNamed(p.Name) {
		return ErrPlayerNameConflict
	}
	tx.g.seq.player++
	p.ID = tx.g.seq.player
	t.Players = append(t.Players, p.Clone())
	return nil
}

func (tx *memoryTx) DeletePlayer(_ context.Context, tournamentID, playerID int) error {
	t, ok := tx.load(tournamentID)
	if !ok {
		return ErrPlayerNotFound
	}
	for i, p := range t.Players {
		if p.ID == playerID {
			t.Players = append(t.Players[:i], t.Players[i+1:]...)
			return nil
		}
	}
	return ErrPlayerNotFound
}

func (tx *memoryTx) UpdatePlayers(_ context.Context, players []*models.Player) error {
	for _, p := range players {
		t, ok := tx.load(p.TournamentID)
		if !ok {
			return ErrPlayerNotFound
		}
		stored := t.FindPlayer(p.ID)
		if stored == nil {
			return ErrPlayerNotFound
		}
		stored.Wins = p.Wins
		stored.Losses = p.Losses
		stored.Points = p.Points
		stored.RoundWins = p.RoundWins
		stored.RoundLosses = p.RoundLosses
		stored.Group = p.Group
	}
	return nil
}

func (tx *memoryTx) CreateRound(_ context.Context, r *models.Round) error {
	t, ok := tx.load(r.TournamentID)
	if !ok {
		return ErrTournamentNotFound
	}
	if t.RoundByNumber(r.RoundNumber) != nil {
		return ErrTournamentVersionConflict
	}
	tx.g.seq.round++
	r.ID = tx.g.seq.round

	stored := r.Clone()
	stored.Matches = []*models.Match{}
	t.Rounds = append(t.Rounds, stored)
	return nil
}

func (tx *memoryTx) UpdateRound(_ context.Context, r *models.Round) error {
	_, stored := tx.findRound(r.ID)
	if stored == nil {
		return ErrRoundNotFound
	}
	stored.Kind = r.Kind
	stored.IsCompleted = r.IsCompleted
	return nil
}

func (tx *memoryTx) CreateMatch(_ context.Context, m *models.Match) error {
	_, round := tx.findRound(m.RoundID)
	if round == nil {
		return ErrRoundNotFound
	}
	tx.g.seq.match++
	m.ID = tx.g.seq.match
	round.Matches = append(round.Matches, m.Clone())
	return nil
}

func (tx *memoryTx) UpdateMatch(_ context.Context, m *models.Match) error {
	_, round := tx.findRound(m.RoundID)
	if round == nil {
		return ErrMatchNotFound
	}
	stored := round.FindMatch(m.ID)
	if stored == nil {
		return ErrMatchNotFound
	}
	c := m.Clone()
	stored.WinnerID = c.WinnerID
	stored.CompletedAt = c.CompletedAt
	return nil
}
