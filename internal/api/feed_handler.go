package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/service"
)

// FeedHandler serves the prioritized feed, altitude selection and planning.
type FeedHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(cardService service.CardService, logger *slog.Logger) *FeedHandler {
	if cardService == nil || logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardService and logger are required for FeedHandler")
	}
	return &FeedHandler{
		cardService: cardService,
		logger:      logger.With(slog.String("component", "feed_handler")),
	}
}

// GetFeed handles GET /feed requests. The altitude query parameter filters
// to one altitude and limit caps the card count.
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	var filter *domain.Altitude
	if raw := r.URL.Query().Get("altitude"); raw != "" {
		alt, err := domain.ParseAltitude(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		filter = &alt
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.cardService.Feed(r.Context(), filter, limit))
}

// GetAltitude handles GET /feed/altitude requests.
func (h *FeedHandler) GetAltitude(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.cardService.CurrentAltitude(r.Context()))
}

// SetAltitude handles PUT /feed/altitude requests.
func (h *FeedHandler) SetAltitude(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req AltitudeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	state, err := h.cardService.SetAltitude(r.Context(), req.Altitude)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to set altitude")
		return
	}

	log.Info("altitude pinned", slog.String("altitude", string(state.Current)))
	shared.RespondWithJSON(w, r, http.StatusOK, state)
}

// ClearAltitude handles DELETE /feed/altitude requests.
func (h *FeedHandler) ClearAltitude(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.cardService.ClearAltitude(r.Context()))
}

// GetAltimeter handles GET /altimeter requests.
func (h *FeedHandler) GetAltimeter(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.cardService.Altimeter(r.Context()))
}

// PlanOrient handles POST /orient/plan requests.
func (h *FeedHandler) PlanOrient(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.cardService.PlanOrient(r.Context(), req.Tasks)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to plan tasks")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, card)
}
