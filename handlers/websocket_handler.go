package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/tournament-engine/notifications"
	"github.com/Dosada05/tournament-engine/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer for HTTP; subscribers only read public state.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WebSocketHandler struct {
	hub               *notifications.Hub
	tournamentService services.TournamentService
	logger            *slog.Logger
}

func NewWebSocketHandler(hub *notifications.Hub, ts services.TournamentService, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, tournamentService: ts, logger: logger}
}

// ServeWs подписывает клиента на события турнира.
// Клиент должен подключаться к /ws/tournaments/{tournamentID}
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, h.logger, err)
		return
	}

	if _, err := h.tournamentService.GetTournament(r.Context(), id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			notFoundResponse(w, r, h.logger, err.Error())
			return
		}
		serverErrorResponse(w, r, h.logger, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже отправил HTTP ошибку клиенту.
		h.logger.Warn("websocket upgrade failed", slog.Int("tournament_id", id), slog.Any("error", err))
		return
	}

	room := notifications.RoomName(id)
	h.hub.Attach(conn, room)
	h.logger.Info("websocket client attached", slog.String("room", room))
}
