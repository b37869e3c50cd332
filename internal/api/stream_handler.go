package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/events"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/service"
)

// StreamHandler serves the live card stream as Server-Sent Events.
type StreamHandler struct {
	cardService service.CardService
	logger      *slog.Logger
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(cardService service.CardService, logger *slog.Logger) *StreamHandler {
	if cardService == nil || logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cardService and logger are required for StreamHandler")
	}
	return &StreamHandler{
		cardService: cardService,
		logger:      logger.With(slog.String("component", "stream_handler")),
	}
}

// StreamCards handles GET /stream/cards. The first frame is queue.hydrate;
// bus events and altimeter heartbeats follow until the client disconnects.
func (h *StreamHandler) StreamCards(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log.Debug("stream opened")
	sent := 0
	for e := range h.cardService.Subscribe(r.Context()) {
		if err := writeEvent(w, e); err != nil {
			log.Debug("stream write failed", slog.String("error", err.Error()))
			return
		}
		flusher.Flush()
		sent++
	}
	log.Debug("stream closed", slog.Int("events_sent", sent))
}

// writeEvent writes one SSE frame. Bus events carry their sequence number as
// the frame id.
func writeEvent(w http.ResponseWriter, e events.Event) error {
	var b strings.Builder
	if e.Seq > 0 {
		fmt.Fprintf(&b, "id: %d\n", e.Seq)
	}
	fmt.Fprintf(&b, "event: %s\n", e.Name)
	for _, line := range strings.Split(e.Payload, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	_, err := w.Write([]byte(b.String()))
	return err
}
