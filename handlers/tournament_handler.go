package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-engine/models"
	"github.com/Dosada05/tournament-engine/notifications"
	"github.com/Dosada05/tournament-engine/services"
)

type createTournamentRequest struct {
	Name     string                  `json:"name"`
	Type     models.TournamentFormat `json:"type"`
	Password string                  `json:"password"`
}

type updateTournamentRequest struct {
	TournamentID int    `json:"tournament_id"`
	Name         string `json:"name"`
	Password     string `json:"password"`
}

// tournamentAccessRequest is the body of start, delete and validate-password.
type tournamentAccessRequest struct {
	TournamentID int    `json:"tournament_id"`
	Password     string `json:"password"`
}

type addPlayerRequest struct {
	TournamentID int    `json:"tournament_id"`
	Name         string `json:"name"`
	Password     string `json:"password"`
}

type removePlayerRequest struct {
	TournamentID int    `json:"tournament_id"`
	PlayerID     int    `json:"player_id"`
	Password     string `json:"password"`
}

type nextRoundRequest struct {
	TournamentID int                  `json:"tournament_id"`
	Password     string               `json:"password"`
	MatchResults []models.MatchResult `json:"match_results"`
}

// winnerSelectedPayload is broadcast once per resolved match.
type winnerSelectedPayload struct {
	TournamentID int `json:"tournament_id"`
	RoundNumber  int `json:"round_number"`
	MatchID      int `json:"match_id"`
	WinnerID     int `json:"winner_id"`
}

type TournamentHandler struct {
	tournamentService services.TournamentService
	events            notifications.Sink
	logger            *slog.Logger
}

func NewTournamentHandler(ts services.TournamentService, events notifications.Sink, logger *slog.Logger) *TournamentHandler {
	if events == nil {
		events = notifications.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TournamentHandler{
		tournamentService: ts,
		events:            events,
		logger:            logger,
	}
}

// ListHandler godoc
// @Summary  List tournaments
// @Tags     tournaments
// @Produce  json
// @Success  200 {object} map[string][]models.TournamentSummary
// @Router   /tournaments [get]
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.tournamentService.ListTournaments(r.Context())
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// GetByIDHandler godoc
// @Summary  Get a tournament with players, rounds and matches
// @Tags     tournaments
// @Produce  json
// @Param    tournamentID path int true "Tournament ID"
// @Success  200 {object} map[string]models.Tournament
// @Failure  404 {object} map[string]string
// @Router   /tournaments/{tournamentID} [get]
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}
	tournament, err := h.tournamentService.GetTournament(r.Context(), id)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// CreateHandler godoc
// @Summary  Create a tournament
// @Tags     tournaments
// @Accept   json
// @Produce  json
// @Param    body body createTournamentRequest true "Name, type (1 Swiss, 2 ChampionsMeeting) and optional password"
// @Success  201 {object} map[string]models.Tournament
// @Failure  400 {object} map[string]string
// @Router   /tournaments [post]
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var input createTournamentRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	tournament, err := h.tournamentService.CreateTournament(r.Context(), services.CreateTournamentInput{
		Name:   input.Name,
		Format: input.Type,
		Secret: input.Password,
	})
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// UpdateHandler godoc
// @Summary  Rename a tournament
// @Tags     tournaments
// @Accept   json
// @Produce  json
// @Param    body body updateTournamentRequest true "Tournament, new name and password"
// @Success  200 {object} map[string]models.Tournament
// @Failure  400,401,404,409 {object} map[string]string
// @Router   /tournaments [put]
func (h *TournamentHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	var input updateTournamentRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	tournament, err := h.tournamentService.UpdateTournamentName(r.Context(), input.TournamentID, input.Name, input.Password)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	h.publish(r, notifications.EventTournamentUpdated, tournament.ID, tournament)

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// DeleteHandler godoc
// @Summary  Delete a tournament and everything in it
// @Tags     tournaments
// @Accept   json
// @Param    body body tournamentAccessRequest true "Tournament and password"
// @Success  204
// @Failure  401,404 {object} map[string]string
// @Router   /tournaments [delete]
func (h *TournamentHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	var input tournamentAccessRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	if _, err := h.tournamentService.DeleteTournament(r.Context(), input.TournamentID, input.Password); err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	h.publish(r, notifications.EventTournamentDeleted, input.TournamentID, jsonResponse{"tournament_id": input.TournamentID})

	w.WriteHeader(http.StatusNoContent) // Успешное удаление
}

// AddPlayerHandler godoc
// @Summary  Register a player
// @Tags     players
// @Accept   json
// @Produce  json
// @Param    body body addPlayerRequest true "Tournament, player name and password"
// @Success  201 {object} map[string]models.Player
// @Failure  400,401,404,409 {object} map[string]string
// @Router   /tournaments/players [post]
func (h *TournamentHandler) AddPlayerHandler(w http.ResponseWriter, r *http.Request) {
	var input addPlayerRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	player, err := h.tournamentService.AddPlayer(r.Context(), input.TournamentID, input.Name, input.Password)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	h.publish(r, notifications.EventPlayerAdded, input.TournamentID, player)

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"player": player}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// RemovePlayerHandler godoc
// @Summary  Remove a player before the tournament starts
// @Tags     players
// @Accept   json
// @Produce  json
// @Param    body body removePlayerRequest true "Tournament, player and password"
// @Success  200 {object} map[string]int
// @Failure  400,401,404 {object} map[string]string
// @Router   /tournaments/players [delete]
func (h *TournamentHandler) RemovePlayerHandler(w http.ResponseWriter, r *http.Request) {
	var input removePlayerRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	removedID, err := h.tournamentService.RemovePlayer(r.Context(), input.TournamentID, input.PlayerID, input.Password)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	h.publish(r, notifications.EventPlayerRemoved, input.TournamentID, jsonResponse{"player_id": removedID})

	if err := writeJSON(w, http.StatusOK, jsonResponse{"removed_player_id": removedID}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// StartHandler godoc
// @Summary  Start a tournament and create round one
// @Tags     tournaments
// @Accept   json
// @Produce  json
// @Param    body body tournamentAccessRequest true "Tournament and password"
// @Success  200 {object} map[string]models.Tournament
// @Failure  400,401,404,409 {object} map[string]string
// @Router   /tournaments/start [post]
func (h *TournamentHandler) StartHandler(w http.ResponseWriter, r *http.Request) {
	var input tournamentAccessRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	tournament, err := h.tournamentService.StartTournament(r.Context(), input.TournamentID, input.Password)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	h.publish(r, notifications.EventTournamentStarted, tournament.ID, tournament)

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// NextRoundHandler godoc
// @Summary  Submit the winners of the current round and advance
// @Tags     tournaments
// @Accept   json
// @Produce  json
// @Param    body body nextRoundRequest true "Tournament, password and match results"
// @Success  200 {object} map[string]interface{}
// @Failure  400,401,404,409 {object} map[string]string
// @Router   /tournaments/next-round [post]
func (h *TournamentHandler) NextRoundHandler(w http.ResponseWriter, r *http.Request) {
	var input nextRoundRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	res, err := h.tournamentService.AdvanceRound(r.Context(), input.TournamentID, input.Password, input.MatchResults)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}

	t := res.Tournament
	finished := t.CurrentRound
	if res.NewRound != nil {
		finished = res.NewRound.RoundNumber - 1
	}
	for _, m := range res.Resolved {
		if m.WinnerID == nil {
			continue
		}
		h.publish(r, notifications.EventWinnerSelected, t.ID, winnerSelectedPayload{
			TournamentID: t.ID,
			RoundNumber:  finished,
			MatchID:      m.ID,
			WinnerID:     *m.WinnerID,
		})
	}
	if res.Completed {
		h.publish(r, notifications.EventTournamentCompleted, t.ID, t)
	} else {
		h.publish(r, notifications.EventNewRound, t.ID, t)
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": t, "completed": res.Completed}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

// ValidatePasswordHandler godoc
// @Summary  Check a tournament password
// @Tags     tournaments
// @Accept   json
// @Produce  json
// @Param    body body tournamentAccessRequest true "Tournament and password"
// @Success  200 {object} map[string]bool
// @Failure  404 {object} map[string]string
// @Router   /tournaments/validate-password [post]
func (h *TournamentHandler) ValidatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var input tournamentAccessRequest
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	valid, err := h.tournamentService.ChallengeSecret(r.Context(), input.TournamentID, input.Password)
	if err != nil {
		h.mapTournamentServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"valid": valid}, nil); err != nil {
		serverErrorResponse(w, r, h.logger, err)
	}
}

func (h *TournamentHandler) publish(r *http.Request, t notifications.EventType, tournamentID int, payload any) {
	h.events.Publish(r.Context(), notifications.NewEvent(t, tournamentID, payload))
}

// mapTournamentServiceErrorToHTTP преобразует ошибки TournamentService в HTTP статусы.
// ErrUnexpected is checked first: it is an InvalidOperation-class error but must not reach
// the client as a 400.
func (h *TournamentHandler) mapTournamentServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUnexpected):
		errorResponse(w, r, h.logger, http.StatusInternalServerError, err.Error())
	case errors.Is(err, services.ErrNotFound):
		notFoundResponse(w, r, h.logger, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		unauthorizedResponse(w, r, h.logger, err.Error())
	case errors.Is(err, services.ErrConflict):
		conflictResponse(w, r, h.logger, err.Error())
	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrInvalidOperation):
		badRequestResponse(w, r, h.logger, err)
	default:
		serverErrorResponse(w, r, h.logger, err)
	}
}
