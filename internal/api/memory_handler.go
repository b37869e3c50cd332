package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/service"
)

// MemoryHandler serves the working set and summaries. Writes wake cards
// parked on the memory keys they change.
type MemoryHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewMemoryHandler creates a new MemoryHandler
func NewMemoryHandler(cardService service.CardService, logger *slog.Logger) *MemoryHandler {
	if cardService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardService cannot be nil for MemoryHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for MemoryHandler")
	}
	return &MemoryHandler{
		cardService: cardService,
		logger:      logger.With(slog.String("component", "memory_handler")),
	}
}

// GetWorkingSet handles GET /memory/working-set requests.
func (h *MemoryHandler) GetWorkingSet(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.cardService.WorkingSet(r.Context()))
}

// UpdateWorkingSet handles PUT /memory/working-set requests.
func (h *MemoryHandler) UpdateWorkingSet(w http.ResponseWriter, r *http.Request) {
	var req WorkingSetRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res := h.cardService.UpdateWorkingSet(r.Context(), req.toUpdate())
	logger.FromContextOrDefault(r.Context(), h.logger).Debug("working set updated",
		slog.Any("changed", res.Changed),
		slog.Int("woken", len(res.Woken)))
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// GetSummary handles GET /memory/summaries/{key} requests.
func (h *MemoryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.cardService.Summary(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, sum)
}

// PutSummary handles PUT /memory/summaries/{key} requests.
func (h *MemoryHandler) PutSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.cardService.PutSummary(r.Context(), chi.URLParam(r, "key"), req.Text)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to store summary")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}
