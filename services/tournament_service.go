package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"

	"github.com/Dosada05/tournament-engine/brackets"
	"github.com/Dosada05/tournament-engine/cache"
	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/repositories"
)

const (
	maxTournamentNameLength = 100
	maxPlayerNameLength     = 50
	minPlayersToStart       = 3
	defaultRetryAttempts    = 3
)

type CreateTournamentInput struct {
	Name   string
	Format models.TournamentFormat
	Secret string
}

// AdvanceResult describes what one AdvanceRound call changed.
type AdvanceResult struct {
	Tournament *models.Tournament
	Resolved   []*models.Match
	NewRound   *models.Round
	Completed  bool
}

type TournamentService interface {
	CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	AddPlayer(ctx context.Context, tournamentID int, name, secret string) (*models.Player, error)
	RemovePlayer(ctx context.Context, tournamentID, playerID int, secret string) (int, error)
	StartTournament(ctx context.Context, tournamentID int, secret string) (*models.Tournament, error)
	AdvanceRound(ctx context.Context, tournamentID int, secret string, results []models.MatchResult) (*AdvanceResult, error)
	UpdateTournamentName(ctx context.Context, tournamentID int, name, secret string) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, tournamentID int, secret string) (bool, error)
	ChallengeSecret(ctx context.Context, tournamentID int, secret string) (bool, error)
	GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error)
	ListTournaments(ctx context.Context) ([]models.TournamentSummary, error)
}

type tournamentService struct {
	gateway       repositories.Gateway
	snapshots     cache.Cache
	strategies    *brackets.StrategyFactory
	matches       MatchService
	guard         *AccessGuard
	retryAttempts uint
	loads         singleflight.Group
	now           func() time.Time
	logger        *slog.Logger
}

func NewTournamentService(
	gateway repositories.Gateway,
	snapshots cache.Cache,
	strategies *brackets.StrategyFactory,
	matches MatchService,
	guard *AccessGuard,
	retryAttempts int,
	logger *slog.Logger,
) TournamentService {
	if retryAttempts <= 0 {
		retryAttempts = defaultRetryAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		gateway:       gateway,
		snapshots:     snapshots,
		strategies:    strategies,
		matches:       matches,
		guard:         guard,
		retryAttempts: uint(retryAttempts),
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	const op = "CreateTournament"
	name, err := validateTournamentName(input.Name)
	if err != nil {
		return nil, err
	}
	if !input.Format.IsValid() {
		return nil, ErrUnknownFormat
	}
	hash, err := s.guard.Hash(input.Secret)
	if err != nil {
		return nil, err
	}

	var created *models.Tournament
	err = s.mutate(ctx, op, 0, func(tx repositories.Tx) error {
		t := &models.Tournament{
			Name:       name,
			Format:     input.Format,
			Status:     models.StatusCreated,
			SecretHash: hash,
			Players:    []*models.Player{},
			Rounds:     []*models.Round{},
		}
		if err := tx.CreateTournament(ctx, t); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.Replace(ctx, created)
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", created.ID),
		slog.String("format", created.Format.String()),
		slog.Bool("protected", created.IsProtected()))
	return created, nil
}

func (s *tournamentService) AddPlayer(ctx context.Context, tournamentID int, name, secret string) (*models.Player, error) {
	const op = "AddPlayer"
	name, err := validatePlayerName(name)
	if err != nil {
		return nil, err
	}
	if err := s.challenge(ctx, tournamentID, secret); err != nil {
		return nil, err
	}

	var player *models.Player
	var mutation cache.PlayerMutation
	err = s.mutate(ctx, op, tournamentID, func(tx repositories.Tx) error {
		t, err := tx.GetTournament(ctx, tournamentID, repositories.DepthWithPlayers)
		if err != nil {
			return err
		}
		if t.Status != models.StatusCreated {
			return ErrTournamentNotCreated
		}
		if t.HasPlayerNamed(name) {
			return fmt.Errorf("%w: %q", ErrPlayerNameTaken, name)
		}
		from := t.Version
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		p := &models.Player{TournamentID: t.ID, Name: name}
		if err := tx.CreatePlayer(ctx, p); err != nil {
			return err
		}
		player = p
		mutation = cache.PlayerMutation{FromVersion: from, ToVersion: t.Version, Added: p}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.MutatePlayers(ctx, tournamentID, mutation)
	return player, nil
}

func (s *tournamentService) RemovePlayer(ctx context.Context, tournamentID, playerID int, secret string) (int, error) {
	const op = "RemovePlayer"
	if err := s.challenge(ctx, tournamentID, secret); err != nil {
		return 0, err
	}

	var mutation cache.PlayerMutation
	err := s.mutate(ctx, op, tournamentID, func(tx repositories.Tx) error {
		t, err := tx.GetTournament(ctx, tournamentID, repositories.DepthWithPlayers)
		if err != nil {
			return err
		}
		if t.Status != models.StatusCreated {
			return ErrTournamentNotCreated
		}
		if t.FindPlayer(playerID) == nil {
			return fmt.Errorf("%w: id %d", ErrPlayerNotFound, playerID)
		}
		from := t.Version
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		if err := tx.DeletePlayer(ctx, tournamentID, playerID); err != nil {
			return err
		}
		mutation = cache.PlayerMutation{FromVersion: from, ToVersion: t.Version, RemovedID: playerID}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.snapshots.MutatePlayers(ctx, tournamentID, mutation)
	return playerID, nil
}

func (s *tournamentService) StartTournament(ctx context.Context, tournamentID int, secret string) (*models.Tournament, error) {
	const op = "StartTournament"
	if err := s.challenge(ctx, tournamentID, secret); err != nil {
		return nil, err
	}

	var started *models.Tournament
	err := s.mutate(ctx, op, tournamentID, func(tx repositories.Tx) error {
		t, err := tx.GetTournament(ctx, tournamentID, repositories.DepthFull)
		if err != nil {
			return err
		}
		if t.Status != models.StatusCreated {
			return ErrTournamentNotCreated
		}
		if len(t.Players) < minPlayersToStart {
			return fmt.Errorf("%w (have %d)", ErrNotEnoughPlayers, len(t.Players))
		}
		strategy, err := s.strategies.GetStrategy(t.Format)
		if err != nil {
			return err
		}

		now := s.now()
		t.Status = models.StatusInProgress
		t.StartedAt = &now
		t.CurrentRound = 1
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		if _, err := s.createRound(ctx, tx, t, strategy); err != nil {
			return err
		}
		started = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.Replace(ctx, started)
	s.logger.InfoContext(ctx, "tournament started",
		slog.Int("tournament_id", started.ID),
		slog.Int("players", len(started.Players)))
	return started, nil
}

func (s *tournamentService) AdvanceRound(ctx context.Context, tournamentID int, secret string, results []models.MatchResult) (*AdvanceResult, error) {
	const op = "AdvanceRound"
	if len(results) == 0 {
		return nil, ErrNoMatchResults
	}
	if err := s.challenge(ctx, tournamentID, secret); err != nil {
		return nil, err
	}

	var res *AdvanceResult
	err := s.mutate(ctx, op, tournamentID, func(tx repositories.Tx) error {
		t, err := tx.GetTournament(ctx, tournamentID, repositories.DepthFull)
		if err != nil {
			return err
		}
		if number, ok := advancedRound(t, results); ok {
			return fmt.Errorf("%w: round %d", ErrRoundAlreadyAdvanced, number)
		}
		if t.Status != models.StatusInProgress {
			return ErrTournamentNotInProgress
		}
		round := t.CurrentRoundEntity()
		if round == nil {
			return fmt.Errorf("%w: round %d", ErrCurrentRoundMissing, t.CurrentRound)
		}
		strategy, err := s.strategies.GetStrategy(t.Format)
		if err != nil {
			return err
		}

		resolvedRound, resolved, err := s.matches.ProcessMatchWinners(t, round, results)
		if err != nil {
			return err
		}
		if !resolvedRound {
			return ErrRoundNotResolved
		}

		completed := strategy.ShouldCompleteTournament(t)
		if completed {
			winnerID, err := strategy.DetermineTournamentWinner(t)
			if err != nil {
				return err
			}
			now := s.now()
			t.WinnerID = &winnerID
			t.Status = models.StatusCompleted
			t.CompletedAt = &now
		} else {
			t.CurrentRound++
		}
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}

		for _, m := range resolved {
			if err := tx.UpdateMatch(ctx, m); err != nil {
				return err
			}
		}
		if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		var next *models.Round
		if completed {
			if err := tx.UpdatePlayers(ctx, t.Players); err != nil {
				return err
			}
		} else if next, err = s.createRound(ctx, tx, t, strategy); err != nil {
			return err
		}

		res = &AdvanceResult{Tournament: t, Resolved: resolved, NewRound: next, Completed: completed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.Replace(ctx, res.Tournament)
	if res.Completed {
		s.logger.InfoContext(ctx, "tournament completed",
			slog.Int("tournament_id", tournamentID),
			slog.Int("winner_id", *res.Tournament.WinnerID),
			slog.Int("rounds", len(res.Tournament.Rounds)))
	} else {
		s.logger.InfoContext(ctx, "round advanced",
			slog.Int("tournament_id", tournamentID),
			slog.Int("round", res.NewRound.RoundNumber),
			slog.String("kind", string(res.NewRound.Kind)))
	}
	return res, nil
}

// advancedRound reports the round that every result points into when that round is already
// closed: an earlier round, or any round of a completed tournament. Two clients submitting the
// same round race on this; the loser sees a conflict instead of a validation error.
func advancedRound(t *models.Tournament, results []models.MatchResult) (int, bool) {
	number := 0
	for _, res := range results {
		n := 0
		for _, r := range t.Rounds {
			if r.FindMatch(res.MatchID) != nil {
				n = r.RoundNumber
				break
			}
		}
		if n == 0 || (number != 0 && n != number) {
			return 0, false
		}
		number = n
	}
	if number == 0 {
		return 0, false
	}
	if t.Status == models.StatusCompleted || number < t.CurrentRound {
		return number, true
	}
	return 0, false
}

func (s *tournamentService) UpdateTournamentName(ctx context.Context, tournamentID int, name, secret string) (*models.Tournament, error) {
	const op = "UpdateTournamentName"
	name, err := validateTournamentName(name)
	if err != nil {
		return nil, err
	}
	if err := s.challenge(ctx, tournamentID, secret); err != nil {
		return nil, err
	}

	var updated *models.Tournament
	err = s.mutate(ctx, op, tournamentID, func(tx repositories.Tx) error {
		t, err := tx.GetTournament(ctx, tournamentID, repositories.DepthFull)
		if err != nil {
			return err
		}
		if t.Status == models.StatusCompleted {
			return ErrTournamentCompleted
		}
		t.Name = name
		if err := tx.UpdateTournament(ctx, t); err != nil {
			return err
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.snapshots.Replace(ctx, updated)
	return updated, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, tournamentID int, secret string) (bool, error) {
	const op = "DeleteTournament"
	if err := s.challenge(ctx, tournamentID, secret); err != nil {
		return false, err
	}

	err := s.mutate(ctx, op, tournamentID, func(tx repositories.Tx) error {
		deleted, err := tx.DeleteTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !deleted {
			return ErrTournamentNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Only drops an entry that may outlive a delete done elsewhere; nothing was written.
			s.snapshots.Invalidate(ctx, tournamentID)
		}
		return false, err
	}

	s.snapshots.Invalidate(ctx, tournamentID)
	s.logger.InfoContext(ctx, "tournament deleted", slog.Int("tournament_id", tournamentID))
	return true, nil
}

// ChallengeSecret reports a wrong password as false; only a missing tournament is an error.
func (s *tournamentService) ChallengeSecret(ctx context.Context, tournamentID int, secret string) (bool, error) {
	err := s.challenge(ctx, tournamentID, secret)
	if errors.Is(err, ErrUnauthorized) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *tournamentService) GetTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.load(ctx, tournamentID)
}

func (s *tournamentService) ListTournaments(ctx context.Context) ([]models.TournamentSummary, error) {
	const op = "ListTournaments"
	var list []models.TournamentSummary
	err := s.retry(ctx, op, 0, func() error {
		var err error
		list, err = s.gateway.ListTournaments(ctx)
		return err
	})
	if err != nil {
		return nil, s.translate(ctx, op, 0, err)
	}
	if list == nil {
		list = []models.TournamentSummary{}
	}
	return list, nil
}

func (s *tournamentService) challenge(ctx context.Context, tournamentID int, secret string) error {
	t, err := s.load(ctx, tournamentID)
	if err != nil {
		return err
	}
	if err := s.guard.Verify(t.SecretHash, secret); err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			return s.translate(ctx, "ChallengeSecret", tournamentID, err)
		}
		s.logger.WarnContext(ctx, "tournament password rejected", slog.Int("tournament_id", tournamentID))
		return err
	}
	return nil
}

// load reads through the cache. Concurrent misses for one id share a single storage read.
func (s *tournamentService) load(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	if t, ok := s.snapshots.Get(ctx, tournamentID); ok {
		return t, nil
	}
	v, err, _ := s.loads.Do(strconv.Itoa(tournamentID), func() (any, error) {
		var t *models.Tournament
		err := s.retry(ctx, "GetTournament", tournamentID, func() error {
			var err error
			t, err = s.gateway.GetTournament(ctx, tournamentID, repositories.DepthFull)
			return err
		})
		if err != nil {
			return nil, err
		}
		s.snapshots.Put(ctx, t)
		return t, nil
	})
	if err != nil {
		return nil, s.translate(ctx, "GetTournament", tournamentID, err)
	}
	return v.(*models.Tournament).Clone(), nil
}

// createRound persists the round row, lets the strategy fill it, then writes its matches and the
// player statistics the strategy touched.
func (s *tournamentService) createRound(ctx context.Context, tx repositories.Tx, t *models.Tournament, strategy brackets.Strategy) (*models.Round, error) {
	round := &models.Round{
		TournamentID: t.ID,
		RoundNumber:  t.CurrentRound,
		Kind:         models.RoundRegular,
		CreatedAt:    s.now(),
		Matches:      []*models.Match{},
	}
	if err := tx.CreateRound(ctx, round); err != nil {
		return nil, err
	}
	if err := strategy.CreateMatchesForRound(ctx, t, round); err != nil {
		return nil, err
	}
	for _, m := range round.Matches {
		m.RoundID = round.ID
		if err := tx.CreateMatch(ctx, m); err != nil {
			return nil, err
		}
	}
	round.IsCompleted = round.AllResolved()
	if err := tx.UpdateRound(ctx, round); err != nil {
		return nil, err
	}
	if err := tx.UpdatePlayers(ctx, t.Players); err != nil {
		return nil, err
	}
	t.Rounds = append(t.Rounds, round)
	return round, nil
}

// mutate runs fn in one transaction under the retry shell and translates its error.
func (s *tournamentService) mutate(ctx context.Context, op string, tournamentID int, fn func(tx repositories.Tx) error) error {
	err := s.retry(ctx, op, tournamentID, func() error {
		return s.gateway.WithinTx(ctx, fn)
	})
	if err != nil {
		return s.translate(ctx, op, tournamentID, err)
	}
	return nil
}

// retry re-runs fn only while storage reports transient failures.
func (s *tournamentService) retry(ctx context.Context, op string, tournamentID int, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := fn()
		if err != nil && !repositories.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.retryAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.WarnContext(ctx, "transient storage failure, retrying",
				slog.String("operation", op),
				slog.Int("tournament_id", tournamentID),
				slog.Duration("backoff", next),
				slog.Any("error", err))
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	return err
}

// translate maps storage and strategy errors onto the service taxonomy. Anything it does not
// recognise is logged with a trace and surfaced as ErrUnexpected.
func (s *tournamentService) translate(ctx context.Context, op string, tournamentID int, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidOperation),
		errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrPlayerNotFound):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrPlayerNameConflict):
		return ErrPlayerNameTaken
	case errors.Is(err, repositories.ErrTournamentVersionConflict):
		// The tx rolled back; the cached snapshot is the stale read that lost, so the next
		// read reloads from storage.
		s.snapshots.Invalidate(ctx, tournamentID)
		s.logger.WarnContext(ctx, "concurrent modification rejected",
			slog.String("operation", op),
			slog.Int("tournament_id", tournamentID))
		return fmt.Errorf("%w (tournament %d)", ErrConflict, tournamentID)
	case errors.Is(err, brackets.ErrUnsupportedFormat):
		return ErrUnknownFormat
	case errors.Is(err, brackets.ErrNotEnoughPlayers):
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	s.logger.ErrorContext(ctx, "unexpected error in tournament operation",
		slog.String("operation", op),
		slog.Int("tournament_id", tournamentID),
		slog.Any("error", err),
		slog.String("trace", eris.ToString(eris.Wrap(err, op), true)))
	return ErrUnexpected
}

func validateTournamentName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrTournamentNameRequired
	}
	if utf8.RuneCountInString(name) > maxTournamentNameLength {
		return "", ErrTournamentNameTooLong
	}
	return name, nil
}

func validatePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrPlayerNameRequired
	}
	if utf8.RuneCountInString(name) > maxPlayerNameLength {
		return "", ErrPlayerNameTooLong
	}
	return name, nil
}
