package mail

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cardfeed/internal/domain"
)

// Suggested batch actions. Only archive_all and unsubscribe_all are card
// actions; the rest are hints for the client.
const (
	suggestArchiveAll         = "archive_all"
	suggestUnsubscribeAll     = "unsubscribe_all"
	suggestDeclineAllSales    = "decline_all_sales"
	suggestArchiveNewsletters = "archive_newsletters"
)

type batched struct {
	msg         Message
	category    Category
	unsubscribe bool
}

// BuildCards triages messages into cards. Personal and warm sales messages
// get a card each; everything else lands in one trailing batch review card.
func BuildCards(messages []Message, now time.Time) ([]domain.Card, error) {
	var (
		cards []domain.Card
		batch []batched
	)

	for _, msg := range messages {
		category := Classify(msg)
		switch {
		case category == CategoryPersonal,
			category == CategorySales && IsRelevantSales(msg):
			card, err := messageCard(msg, category, now)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", msg.ID, err)
			}
			cards = append(cards, card)
		default:
			batch = append(batch, batched{msg: msg, category: category, unsubscribe: HasUnsubscribe(msg)})
		}
	}

	if len(batch) > 0 {
		card, err := batchCard(batch, now)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func messageCard(msg Message, category Category, now time.Time) (domain.Card, error) {
	sender := SenderName(msg.From)
	opts := []domain.CardOption{
		domain.WithCreatedAt(now),
		domain.WithOrigin(domain.Origin{DocID: "gmail_" + msg.ID, BlockID: msg.ThreadID}),
		domain.WithMetadata(domain.Metadata{
			EmailSender:    sender,
			EmailSubject:   msg.Subject,
			EmailDate:      msg.Date,
			ReplyTemplates: ReplyTemplates(msg, category),
			Category:       string(category),
		}),
	}

	var content domain.Content
	switch {
	case category == CategoryPersonal && isUrgent(msg):
		content = domain.BreakInContent{
			Source:  "gmail",
			Message: msg.Snippet,
			Sender:  sender,
			Urgency: domain.UrgencyHigh,
		}
	case category == CategoryPersonal:
		content = domain.DoNowContent{
			Intent: domain.Intent{
				ID:              uuid.New(),
				Name:            "Reply to personal email",
				Description:     fmt.Sprintf("From: %s\nSubject: %s\n\n%s", sender, msg.Subject, msg.Snippet),
				Type:            domain.IntentOperate,
				Rationale:       reasoning(msg, category),
				Preconditions:   []string{},
				EstimatedTokens: 100,
				CreatedAt:       now,
			},
			Preview: msg.Snippet,
		}
		opts = append(opts, domain.WithActions(domain.ActionOpen, domain.ActionGenerateDraft, domain.ActionPark))
	default:
		content = domain.ShipContent{VersionTag: "email-response"}
		opts = append(opts, domain.WithActions(
			domain.ActionDeclineRespectfully, domain.ActionGenerateDraft, domain.ActionOpen, domain.ActionPark))
	}

	return domain.NewCard(Title(msg), content, opts...)
}

func batchCard(items []batched, now time.Time) (domain.Card, error) {
	emails := make([]domain.BatchEmail, 0, len(items))
	var newsletters, sales, unsubscribe bool
	for _, it := range items {
		subject := it.msg.Subject
		if subject == "" {
			subject = it.msg.Snippet
		}
		emails = append(emails, domain.BatchEmail{
			ID:       it.msg.ID,
			ThreadID: it.msg.ThreadID,
			From:     SenderName(it.msg.From),
			Subject:  subject,
			Snippet:  it.msg.Snippet,
			Category: string(it.category),
		})
		newsletters = newsletters || it.category == CategoryNewsletter
		sales = sales || it.category == CategorySales
		unsubscribe = unsubscribe || it.unsubscribe
	}

	suggested := []string{suggestArchiveAll}
	actions := []domain.Action{domain.ActionProcessBatch, domain.ActionArchiveAll}
	if unsubscribe {
		suggested = append(suggested, suggestUnsubscribeAll)
		actions = append(actions, domain.ActionUnsubscribeAll)
	}
	if sales {
		suggested = append(suggested, suggestDeclineAllSales)
	}
	if newsletters {
		suggested = append(suggested, suggestArchiveNewsletters)
	}
	actions = append(actions, domain.ActionBlockSender, domain.ActionExpandToFlow, domain.ActionPark)

	return domain.NewCard(
		fmt.Sprintf("Batch Review: %d Low-Priority Emails", len(items)),
		domain.BatchReviewContent{Emails: emails, SuggestedActions: suggested},
		domain.WithAltitude(domain.AltitudeOrient),
		domain.WithActions(actions...),
		domain.WithCreatedAt(now),
		domain.WithOrigin(domain.Origin{DocID: "gmail_batch"}),
	)
}
