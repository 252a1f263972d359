package services

import (
	"errors"
	"fmt"
)

// Категории ошибок. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrValidationFailed = errors.New("validation failed")
	ErrConflict         = errors.New("tournament was modified concurrently, retry the request")

	// ErrUnexpected is what callers see for internal failures; details stay in the logs.
	ErrUnexpected = fmt.Errorf("%w: unexpected error while processing the request", ErrInvalidOperation)
)

var (
	ErrTournamentNotFound = fmt.Errorf("tournament %w", ErrNotFound)
	ErrPlayerNotFound     = fmt.Errorf("player %w", ErrNotFound)

	ErrInvalidSecret = fmt.Errorf("%w: invalid tournament password", ErrUnauthorized)

	// ErrRoundAlreadyAdvanced: someone else closed the round first. Re-read and retry.
	ErrRoundAlreadyAdvanced = fmt.Errorf("%w: the submitted round has already been advanced", ErrConflict)

	ErrTournamentNameRequired = fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	ErrTournamentNameTooLong  = fmt.Errorf("%w: tournament name must be at most %d characters", ErrValidationFailed, maxTournamentNameLength)
	ErrSecretTooLong          = fmt.Errorf("%w: password must be at most %d bytes", ErrValidationFailed, maxSecretBytes)
	ErrUnknownFormat          = fmt.Errorf("%w: unknown tournament type", ErrValidationFailed)
	ErrPlayerNameRequired     = fmt.Errorf("%w: player name is required", ErrValidationFailed)
	ErrPlayerNameTooLong      = fmt.Errorf("%w: player name must be at most %d characters", ErrValidationFailed, maxPlayerNameLength)
	ErrNoMatchResults         = fmt.Errorf("%w: no match results submitted", ErrValidationFailed)
	ErrMatchNotInRound        = fmt.Errorf("%w: match does not belong to the current round", ErrValidationFailed)
	ErrWinnerNotParticipant   = fmt.Errorf("%w: winner is not a participant of the match", ErrValidationFailed)
	ErrMatchAlreadyResolved   = fmt.Errorf("%w: match already has a winner", ErrValidationFailed)
	ErrDuplicateMatchResult   = fmt.Errorf("%w: match submitted more than once", ErrValidationFailed)

	ErrTournamentNotCreated    = fmt.Errorf("%w: tournament has already started", ErrInvalidOperation)
	ErrTournamentNotInProgress = fmt.Errorf("%w: tournament is not in progress", ErrInvalidOperation)
	ErrTournamentCompleted     = fmt.Errorf("%w: tournament is completed", ErrInvalidOperation)
	ErrNotEnoughPlayers        = fmt.Errorf("%w: at least %d players are required to start", ErrInvalidOperation, minPlayersToStart)
	ErrPlayerNameTaken         = fmt.Errorf("%w: player name is already taken in this tournament", ErrInvalidOperation)
	ErrRoundNotResolved        = fmt.Errorf("%w: not every match of the round has a winner", ErrInvalidOperation)
	ErrCurrentRoundMissing     = fmt.Errorf("%w: current round not found", ErrInvalidOperation)
)
