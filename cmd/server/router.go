package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/cardfeed/internal/api"
	apiMiddleware "github.com/phrazzld/cardfeed/internal/api/middleware"
	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/connector/mail"
	"github.com/phrazzld/cardfeed/internal/connector/slack"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	cardHandler := api.NewCardHandler(app.cardService, app.logger)
	feedHandler := api.NewFeedHandler(app.cardService, app.logger)
	streamHandler := api.NewStreamHandler(app.cardService, app.logger)
	memoryHandler := api.NewMemoryHandler(app.cardService, app.logger)
	slackHandler := slack.NewHandler(app.cardService, app.config.Slack.SigningSecret, app.logger)
	mailHandler := mail.NewHandler(app.cardService, app.logger)

	r.Get("/health", app.health)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	r.Route(app.config.Server.BasePath, func(r chi.Router) {
		// Slack authenticates with its request signature.
		r.Post("/slack/events", slackHandler.Events)

		r.Group(func(r chi.Router) {
			if app.jwtService != nil {
				r.Use(apiMiddleware.NewAuthMiddleware(app.jwtService).Authenticate)
			}

			r.Post("/cards", cardHandler.CreateCard)
			r.Get("/cards", cardHandler.ListCards)
			r.Get("/cards/parked", cardHandler.ListParked)
			r.Get("/cards/{id}", cardHandler.GetCard)
			r.Post("/cards/{id}/actions", cardHandler.PerformAction)
			r.Post("/cards/{id}/park", cardHandler.ParkCard)
			r.Post("/cards/{id}/unpark", cardHandler.UnparkCard)
			r.Post("/cards/{id}/snooze", cardHandler.SnoozeCard)
			r.Post("/cards/{id}/signal", cardHandler.SignalCard)
			r.Get("/cards/{id}/events", cardHandler.CardHistory)
			r.Get("/memory/working-set", memoryHandler.GetWorkingSet)
			r.Put("/memory/working-set", memoryHandler.UpdateWorkingSet)
			r.Get("/memory/summaries/{key}", memoryHandler.GetSummary)
			r.Put("/memory/summaries/{key}", memoryHandler.PutSummary)

			r.Get("/feed", feedHandler.GetFeed)
			r.Get("/feed/altitude", feedHandler.GetAltitude)
			r.Put("/feed/altitude", feedHandler.SetAltitude)
			r.Delete("/feed/altitude", feedHandler.ClearAltitude)
			r.Get("/altimeter", feedHandler.GetAltimeter)
			r.Post("/orient/plan", feedHandler.PlanOrient)

			r.Get("/stream/cards", streamHandler.StreamCards)

			r.Post("/slack/map", slackHandler.LinkThread)
			r.Post("/mail/ingest", mailHandler.Ingest)
		})
	})

	return r
}

// health handles GET /health. A configured store that does not answer a
// ping makes the service unhealthy; one that never opened reports degraded.
func (app *application) health(w http.ResponseWriter, r *http.Request) {
	if app.degraded {
		shared.RespondWithJSON(w, r, http.StatusOK,
			api.HealthResponse{Status: "degraded", Store: app.config.Database.Driver})
		return
	}
	if app.store == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok", Store: "none"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := app.store.Ping(ctx); err != nil {
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable,
			api.HealthResponse{Status: "unavailable", Store: app.config.Database.Driver})
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok", Store: app.config.Database.Driver})
}
