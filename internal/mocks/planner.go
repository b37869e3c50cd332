package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/cardfeed/internal/domain"
)

// MockPlanner ranks task titles for testing. Without PlanFn it returns
// Content and Err. Every call is recorded.
type MockPlanner struct {
	PlanFn func(ctx context.Context, titles []string) (domain.OrientContent, error)

	Content domain.OrientContent
	Err     error

	mu    sync.Mutex
	calls [][]string
}

// Plan implements service.Planner.
func (m *MockPlanner) Plan(ctx context.Context, titles []string) (domain.OrientContent, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]string(nil), titles...))
	m.mu.Unlock()

	if m.PlanFn != nil {
		return m.PlanFn(ctx, titles)
	}
	return m.Content, m.Err
}

// Calls returns the titles passed to each Plan call.
func (m *MockPlanner) Calls() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.calls...)
}
