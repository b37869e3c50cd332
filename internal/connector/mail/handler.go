package mail

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/cardfeed/internal/api"
	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
)

// MaxMessages caps a single ingest request.
const MaxMessages = 100

// Ingester registers connector cards. service.CardService satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, card domain.Card) (domain.Card, error)
}

// IngestRequest is the body of POST /mail/ingest.
type IngestRequest struct {
	Messages []Message `json:"messages" validate:"required,min=1,max=100,dive"`
}

// Handler serves the mail ingest endpoint.
type Handler struct {
	cards  Ingester
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(cards Ingester, logger *slog.Logger) *Handler {
	if cards == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cards cannot be nil for mail Handler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for mail Handler")
	}
	return &Handler{
		cards:  cards,
		logger: logger.With(slog.String("component", "mail_connector")),
		now:    time.Now,
	}
}

// Ingest handles POST /mail/ingest. It responds with the cards created, in
// triage order.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req IngestRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, api.SanitizeValidationError(err), err)
		return
	}

	built, err := BuildCards(req.Messages, h.now().UTC())
	if err != nil {
		api.HandleAPIError(w, r, err, "Failed to build cards")
		return
	}

	created := make([]domain.Card, 0, len(built))
	for _, card := range built {
		card, err := h.cards.Ingest(r.Context(), card)
		if err != nil {
			api.HandleAPIError(w, r, err, "Failed to ingest mail")
			return
		}
		created = append(created, card)
	}

	log.Info("mail ingested",
		slog.Int("messages", len(req.Messages)),
		slog.Int("cards", len(created)))
	shared.RespondWithJSON(w, r, http.StatusCreated, api.CardListResponse{Cards: created, Count: len(created)})
}
