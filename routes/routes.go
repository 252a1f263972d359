package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/tournament-engine/docs" // регистрирует swagger spec
	"github.com/Dosada05/tournament-engine/handlers"
	"github.com/Dosada05/tournament-engine/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	logger *slog.Logger,
	allowedOrigins []string,
	tournamentHandler *handlers.TournamentHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Websocket route stays outside the timeout middleware: connections are long-lived.
	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)

	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(15 * time.Second))

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", tournamentHandler.ListHandler)
			r.Post("/", tournamentHandler.CreateHandler)
			r.Put("/", tournamentHandler.UpdateHandler)
			r.Delete("/", tournamentHandler.DeleteHandler)

			r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)

			r.Post("/players", tournamentHandler.AddPlayerHandler)
			r.Delete("/players", tournamentHandler.RemovePlayerHandler)

			r.Post("/start", tournamentHandler.StartHandler)
			r.Post("/next-round", tournamentHandler.NextRoundHandler)
			r.Post("/validate-password", tournamentHandler.ValidatePasswordHandler)
		})
	})
}
