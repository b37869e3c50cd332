package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/parking"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/service"
)

// CardHandler handles card-related HTTP requests
type CardHandler struct {
	cardService service.CardService
	logger      *slog.Logger
	now         func() time.Time
}

// NewCardHandler creates a new CardHandler
func NewCardHandler(cardService service.CardService, logger *slog.Logger) *CardHandler {
	if cardService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardService cannot be nil for CardHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for CardHandler")
	}

	return &CardHandler{
		cardService: cardService,
		logger:      logger.With(slog.String("component", "card_handler")),
		now:         time.Now,
	}
}

// CreateCard handles POST /cards requests.
func (h *CardHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateCardRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.cardService.CreateCard(r.Context(), req.toInput())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create card")
		return
	}

	log.Debug("card created",
		slog.String("card_id", card.ID.String()),
		slog.String("kind", string(card.Kind())))
	shared.RespondWithJSON(w, r, http.StatusCreated, card)
}

// ListCards handles GET /cards requests. Optional status and kind query
// parameters narrow the result.
func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	var filter service.ListFilter

	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := domain.ParseKind(raw)
		if err != nil {
			HandleAPIError(w, r, err, "")
			return
		}
		filter.Kind = kind
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.Status(raw)
		switch status {
		case domain.StatusActive, domain.StatusPending, domain.StatusParked,
			domain.StatusCompleted, domain.StatusCancelled:
			filter.Status = status
		default:
			HandleAPIError(w, r, domain.NewValidationError("status", "is not a known status", domain.ErrValidation), "")
			return
		}
	}

	cards := h.cardService.ListCards(r.Context(), filter)
	shared.RespondWithJSON(w, r, http.StatusOK, CardListResponse{Cards: cards, Count: len(cards)})
}

// GetCard handles GET /cards/{id} requests.
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, nil)
	if !ok {
		return
	}

	card, err := h.cardService.GetCard(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get card")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// PerformAction handles POST /cards/{id}/actions requests.
func (h *CardHandler) PerformAction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, log)
	if !ok {
		return
	}
	var req ActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	card, err := h.cardService.PerformAction(r.Context(), id, req.Action, req.Payload)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to perform action")
		return
	}

	log.Debug("card action performed",
		slog.String("card_id", id.String()),
		slog.String("action", req.Action),
		slog.String("status", string(card.Status)))
	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// ParkCard handles POST /cards/{id}/park requests.
func (h *CardHandler) ParkCard(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, nil)
	if !ok {
		return
	}
	var req ParkRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.cardService.Park(r.Context(), id, req.toInput(h.now()))
	if err != nil {
		HandleAPIError(w, r, err, "Failed to park card")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, item)
}

// UnparkCard handles POST /cards/{id}/unpark requests. Unparking a card that
// is not parked returns 404.
func (h *CardHandler) UnparkCard(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, nil)
	if !ok {
		return
	}

	card, ok := h.cardService.Unpark(r.Context(), id)
	if !ok {
		HandleAPIError(w, r, parking.ErrNotParked, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, card)
}

// SnoozeCard handles POST /cards/{id}/snooze requests.
func (h *CardHandler) SnoozeCard(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, nil)
	if !ok {
		return
	}
	var req SnoozeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	item, err := h.cardService.Snooze(r.Context(), id, req.Minutes)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to snooze card")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, item)
}

// ListParked handles GET /cards/parked requests.
func (h *CardHandler) ListParked(w http.ResponseWriter, r *http.Request) {
	items := h.cardService.ListParked(r.Context())
	shared.RespondWithJSON(w, r, http.StatusOK, ParkedListResponse{Items: items, Count: len(items)})
}

// SignalCard handles POST /cards/{id}/signal requests. A signal the card did
// not wait for returns woke=false.
func (h *CardHandler) SignalCard(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathUUID(w, r, log)
	if !ok {
		return
	}
	var req SignalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	woke, err := h.cardService.Signal(r.Context(), id, req.toCondition())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to signal card")
		return
	}

	log.Debug("card signalled",
		slog.String("card_id", id.String()),
		slog.String("type", req.Type),
		slog.Bool("woke", woke))
	shared.RespondWithJSON(w, r, http.StatusOK, SignalResponse{Woke: woke})
}

// CardHistory handles GET /cards/{id}/events requests.
func (h *CardHandler) CardHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathUUID(w, r, nil)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	history, err := h.cardService.History(r.Context(), id, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read card history")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, HistoryResponse{Events: history, Count: len(history)})
}
