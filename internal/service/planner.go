package service

import (
	"context"
	"log/slog"

	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/phrazzld/cardfeed/internal/platform/logger"
	"github.com/phrazzld/cardfeed/internal/redact"
)

// Planner ranks task titles into next tasks.
type Planner interface {
	Plan(ctx context.Context, titles []string) (domain.OrientContent, error)
}

// PlanOrient implements CardService.PlanOrient
func (s *cardServiceImpl) PlanOrient(ctx context.Context, titles []string) (domain.Card, error) {
	if s.planner == nil {
		return domain.Card{}, NewServiceError("plan_orient", "planner disabled", ErrFeatureDisabled)
	}
	if len(titles) == 0 {
		return domain.Card{}, NewServiceError("plan_orient", "no tasks given",
			domain.NewValidationError("tasks", "cannot be empty", domain.ErrValidation))
	}

	content, err := s.planner.Plan(ctx, titles)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("planner failed",
			slog.Int("task_count", len(titles)),
			redact.ErrorAttr(err))
		return domain.Card{}, NewServiceError("plan_orient", "planner failed", err)
	}

	card, err := domain.NewCard("Plan your next moves", content)
	if err != nil {
		return domain.Card{}, NewServiceError("plan_orient", "planner returned an invalid plan", err)
	}
	return s.Ingest(ctx, card)
}
