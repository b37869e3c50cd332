// Package slack turns Slack Events API callbacks into card feed operations:
// thread replies and card mentions wake parked cards, and direct messages
// arrive as break-in cards.
package slack

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/api"
	"github.com/phrazzld/cardfeed/internal/api/shared"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/redact"
	"github.com/slack-go/slack/slackevents"
)

// Header names set by Slack on every signed request.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
)

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// CardSink is the part of the card service the Slack connector drives.
// service.CardService satisfies it.
type CardSink interface {
	Ingest(ctx context.Context, card domain.Card) (domain.Card, error)
	Signal(ctx context.Context, id uuid.UUID, signal domain.WakeCondition) (bool, error)
	LinkThread(ctx context.Context, id uuid.UUID, channel, threadTS string)
	FindCardByThread(ctx context.Context, channel, threadTS string) (uuid.UUID, bool)
}

// LinkRequest associates a Slack thread with a card.
type LinkRequest struct {
	CardID   uuid.UUID `json:"card_id" validate:"required"`
	Channel  string    `json:"channel" validate:"required"`
	ThreadTS string    `json:"thread_ts" validate:"required"`
}

// Handler serves the Slack endpoints.
type Handler struct {
	cards    CardSink
	verifier *Verifier
	logger   *slog.Logger
}

// NewHandler creates a Handler. An empty signingSecret leaves the connector
// unconfigured and every event request is answered with 503.
func NewHandler(cards CardSink, signingSecret string, logger *slog.Logger) *Handler {
	if cards == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("cards cannot be nil for slack Handler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for slack Handler")
	}

	h := &Handler{
		cards:  cards,
		logger: logger.With(slog.String("component", "slack_connector")),
	}
	if signingSecret != "" {
		h.verifier = NewVerifier(signingSecret)
	}
	return h
}

// Events handles POST /slack/events.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if h.verifier == nil {
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Slack events not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, shared.MaxBodyBytes))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		log.Warn("rejected slack request", redact.ErrorAttr(err))
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid signature")
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		if !json.Valid(body) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
			return
		}
		// Slack retries non-2xx answers, so unsupported events are acknowledged.
		log.Debug("ignoring unsupported slack event", redact.ErrorAttr(err))
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		challenge, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"challenge": challenge.Challenge})
		return
	case slackevents.CallbackEvent:
		if msg, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			h.handleMessage(r.Context(), log, msg)
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

// LinkThread handles POST /slack/map.
func (h *Handler) LinkThread(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, api.SanitizeValidationError(err), err)
		return
	}

	h.cards.LinkThread(r.Context(), req.CardID, req.Channel, req.ThreadTS)
	shared.RespondWithJSON(w, r, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleMessage(ctx context.Context, log *slog.Logger, ev *slackevents.MessageEvent) {
	if ev.BotID != "" || ev.SubType == "bot_message" {
		return
	}
	log = log.With(slog.String("channel", ev.Channel), slog.String("ts", ev.TimeStamp))
	log.Info("slack message received", slog.String("channel_type", ev.ChannelType))

	threadTS := ev.ThreadTimeStamp
	if threadTS == "" {
		threadTS = ev.TimeStamp
	}
	if ev.Channel != "" && threadTS != "" {
		if id, ok := h.cards.FindCardByThread(ctx, ev.Channel, threadTS); ok {
			h.signal(ctx, log, id, domain.EventThreadReplied)
		}
	}

	if id, ok := mentionedCard(ev.Text); ok {
		h.signal(ctx, log, id, domain.EventMentioned)
	}

	if ev.ChannelType == "im" && ev.Text != "" {
		h.breakIn(ctx, log, ev)
	}
}

func (h *Handler) signal(ctx context.Context, log *slog.Logger, id uuid.UUID, event string) {
	woke, err := h.cards.Signal(ctx, id, domain.EventCondition(event))
	if err != nil {
		log.Warn("slack signal failed",
			slog.String("card_id", id.String()),
			redact.ErrorAttr(err))
		return
	}
	log.Debug("slack signal delivered",
		slog.String("card_id", id.String()),
		slog.String("event", event),
		slog.Bool("woke", woke))
}

func (h *Handler) breakIn(ctx context.Context, log *slog.Logger, ev *slackevents.MessageEvent) {
	card, err := BreakInCard(ev.Channel, ev.User, ev.Text, ev.TimeStamp)
	if err != nil {
		log.Warn("could not build break-in card", redact.ErrorAttr(err))
		return
	}
	card, err = h.cards.Ingest(ctx, card)
	if err != nil {
		log.Error("failed to ingest slack break-in", redact.ErrorAttr(err))
		return
	}
	if ev.Channel != "" && ev.TimeStamp != "" {
		h.cards.LinkThread(ctx, card.ID, ev.Channel, ev.TimeStamp)
	}
}

// BreakInCard builds the break-in card for a direct message.
func BreakInCard(channel, user, text, ts string) (domain.Card, error) {
	source := channel
	if source == "" {
		source = "slack:dm"
	}
	sender := user
	if sender == "" {
		sender = "unknown"
	}

	var opts []domain.CardOption
	if channel != "" {
		opts = append(opts, domain.WithOrigin(domain.Origin{DocID: "slack:" + channel, BlockID: ts}))
	}
	return domain.NewCard("New Slack DM", domain.BreakInContent{
		Source:  source,
		Message: text,
		Sender:  sender,
		Urgency: urgencyOf(text),
	}, opts...)
}

func urgencyOf(text string) domain.Urgency {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "urgent") || strings.Contains(lower, "now") {
		return domain.UrgencyHigh
	}
	return domain.UrgencyMedium
}

func mentionedCard(text string) (uuid.UUID, bool) {
	match := uuidPattern.FindString(text)
	if match == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(match)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
