// Package mail turns normalized inbox messages into cards. Personal mail
// becomes focused work, warm sales threads become ship decisions, and the
// rest is folded into a single batch review card.
package mail

import (
	"strings"
	"unicode/utf8"
)

// Category is the triage bucket of a message.
type Category string

// Categories.
const (
	CategoryPersonal     Category = "personal"
	CategorySales        Category = "sales"
	CategoryNewsletter   Category = "newsletter"
	CategoryNotification Category = "notification"
)

// Message is a normalized inbox message.
type Message struct {
	ID       string `json:"id" validate:"required"`
	ThreadID string `json:"thread_id"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Snippet  string `json:"snippet"`
	Date     string `json:"date"`
}

var (
	newsletterMarkers   = []string{"unsubscribe", "view in browser", "no longer wish to receive"}
	notificationMarkers = []string{"notification", "alert", "automated", "do not reply"}
	salesMarkers        = []string{"demo", "schedule a call", "quick chat", "following up", "reach out", "opportunity"}
	personalMarkers     = []string{"?", "thanks", "hi ", "hey ", "please", "could you"}
	warmSalesMarkers    = []string{"follow up on our conversation", "as discussed", "per our meeting"}
	unsubscribeMarkers  = []string{"unsubscribe", "manage preferences", "email preferences", "opt out"}
	urgentMarkers       = []string{"urgent", "asap"}
)

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Classify buckets a message by its snippet. Checks run from least to most
// valuable so bulk mail that happens to ask a question still batches.
func Classify(msg Message) Category {
	snippet := strings.ToLower(msg.Snippet)
	switch {
	case containsAny(snippet, newsletterMarkers):
		return CategoryNewsletter
	case containsAny(snippet, notificationMarkers):
		return CategoryNotification
	case containsAny(snippet, salesMarkers):
		return CategorySales
	case containsAny(snippet, personalMarkers):
		return CategoryPersonal
	}
	return CategoryNotification
}

// IsRelevantSales reports whether a sales message continues an existing
// conversation rather than cold outreach.
func IsRelevantSales(msg Message) bool {
	return containsAny(strings.ToLower(msg.Snippet), warmSalesMarkers)
}

// HasUnsubscribe reports whether the message offers a way to opt out.
func HasUnsubscribe(msg Message) bool {
	return containsAny(strings.ToLower(msg.Snippet), unsubscribeMarkers)
}

func isUrgent(msg Message) bool {
	return containsAny(strings.ToLower(msg.Snippet), urgentMarkers)
}

// SenderName extracts a display name from a From header such as
// "Ada Lovelace <ada@example.com>" or "ada@example.com".
func SenderName(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return "Unknown Sender"
	}
	if i := strings.Index(from, "<"); i >= 0 {
		if name := strings.Trim(strings.TrimSpace(from[:i]), `"`); name != "" {
			return name
		}
		from = strings.Trim(from[i:], "<>")
	}
	if i := strings.Index(from, "@"); i >= 0 {
		return from[:i]
	}
	return from
}

const maxTitleLen = 77

// Title is the subject, or a truncated snippet when the subject is empty.
func Title(msg Message) string {
	if strings.TrimSpace(msg.Subject) != "" {
		return msg.Subject
	}
	snippet := strings.TrimSpace(msg.Snippet)
	if snippet == "" {
		return "(no subject)"
	}
	if len(snippet) <= maxTitleLen {
		return snippet
	}
	end := 74
	for end > 0 && !utf8.RuneStart(snippet[end]) {
		end--
	}
	return snippet[:end] + "..."
}

func reasoning(msg Message, category Category) string {
	snippet := strings.ToLower(msg.Snippet)
	switch category {
	case CategoryPersonal:
		switch {
		case strings.Contains(snippet, "?"):
			return "Personal email with question requiring response"
		case strings.Contains(snippet, "meeting"), strings.Contains(snippet, "call"):
			return "Personal meeting or call request"
		}
		return "Personal email requiring attention"
	case CategorySales:
		switch {
		case strings.Contains(snippet, "demo"):
			return "Sales demo request"
		case strings.Contains(snippet, "follow"):
			return "Sales follow-up"
		}
		return "Sales outreach requiring decision"
	case CategoryNewsletter:
		return "Newsletter for optional reading"
	}
	return "Automated notification"
}

// ReplyTemplates suggests canned replies for a message.
func ReplyTemplates(msg Message, category Category) []string {
	snippet := strings.ToLower(msg.Snippet)
	switch category {
	case CategoryPersonal:
		switch {
		case strings.Contains(snippet, "meeting"), strings.Contains(snippet, "call"):
			return []string{
				"I'm available for a call. What times work for you?",
				"Let me check my calendar and get back to you with available times.",
				"I need to postpone. Can we reschedule for next week?",
			}
		case strings.Contains(snippet, "?"):
			return []string{
				"Thanks for reaching out. Let me look into this and get back to you.",
				"Yes, that works for me.",
				"I need more information to answer this properly.",
			}
		}
		return []string{
			"Thanks for the update.",
			"Got it, I'll take care of this.",
			"Let me know if you need anything else.",
		}
	case CategorySales:
		return []string{
			"Thanks for reaching out. I'm not interested at this time.",
			"Please remove me from your mailing list.",
			"I'll reach out if we need this in the future.",
		}
	}
	return []string{"Acknowledged.", "Thanks for the information."}
}
