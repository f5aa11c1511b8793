package out

import (
	"context"

	"studydesk/internal/modules/planner/domain"
)

type PlanStore interface {
	Load(ctx context.Context) []domain.Plan
	// Update applies fn to the freshest stored plans and persists the result.
	Update(ctx context.Context, fn func([]domain.Plan) ([]domain.Plan, error)) ([]domain.Plan, error)
}
