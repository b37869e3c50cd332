// Package memory keeps the working set: the document the user is focused on
// and keyed summaries of earlier work. Every change reports the memory keys
// it touched so parked cards waiting on those keys can wake.
package memory

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// KeyWorkingSet changes on every working set update.
const KeyWorkingSet = "working_set"

// ErrInvalidKey is returned for an empty summary key.
var ErrInvalidKey = errors.New("memory key is required")

// DocumentContext is the document in focus.
type DocumentContext struct {
	DocID          string `json:"doc_id"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	FocusedSection string `json:"focused_section,omitempty"`
}

// WorkingSet is the current focus.
type WorkingSet struct {
	ActiveDoc *DocumentContext `json:"active_doc"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Update changes the working set. A nil DocID keeps the active document.
type Update struct {
	DocID          *string
	Title          string
	Content        string
	FocusedSection string
}

// Summary is a keyed note about earlier work.
type Summary struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds the working set and summaries in memory.
type Store struct {
	mu        sync.RWMutex
	working   WorkingSet
	summaries map[string]Summary
	now       func() time.Time
}

// NewStore creates an empty Store. A nil clock uses time.Now.
func NewStore(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{summaries: make(map[string]Summary), now: now}
}

// WorkingSet returns a copy of the working set.
func (s *Store) WorkingSet() WorkingSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.clone()
}

// UpdateWorkingSet applies u and returns the result along with the keys it
// changed: KeyWorkingSet, plus the document id when a document is set.
func (s *Store) UpdateWorkingSet(u Update) (WorkingSet, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := []string{KeyWorkingSet}
	if u.DocID != nil {
		id := strings.TrimSpace(*u.DocID)
		if id == "" {
			s.working.ActiveDoc = nil
		} else {
			title := u.Title
			if title == "" {
				title = "Document " + id
			}
			s.working.ActiveDoc = &DocumentContext{
				DocID:          id,
				Title:          title,
				Content:        u.Content,
				FocusedSection: u.FocusedSection,
			}
			changed = append(changed, id)
		}
	} else if doc := s.working.ActiveDoc; doc != nil {
		updated := *doc
		if u.Content != "" {
			updated.Content = u.Content
		}
		if u.FocusedSection != "" {
			updated.FocusedSection = u.FocusedSection
		}
		s.working.ActiveDoc = &updated
		changed = append(changed, doc.DocID)
	}
	s.working.UpdatedAt = s.now().UTC()
	return s.working.clone(), changed
}

// Summary returns the summary stored under key.
func (s *Store) Summary(key string) (Summary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[key]
	return sum, ok
}

// PutSummary stores text under key. changed is false when the text is
// already current.
func (s *Store) PutSummary(key, text string) (sum Summary, changed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Summary{}, false, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.summaries[key]; ok && prev.Text == text {
		return prev, false, nil
	}
	sum = Summary{Key: key, Text: text, UpdatedAt: s.now().UTC()}
	s.summaries[key] = sum
	return sum, true, nil
}

func (w WorkingSet) clone() WorkingSet {
	if w.ActiveDoc != nil {
		doc := *w.ActiveDoc
		w.ActiveDoc = &doc
	}
	return w
}
