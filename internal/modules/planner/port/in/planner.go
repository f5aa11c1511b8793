package in

import (
	"context"

	"studydesk/internal/modules/planner/dto"
)

// Usecase manages plans. Plan references accept an id, a unique id prefix or
// a plan name; task references accept an id, a 1-based position or a name.
type Usecase interface {
	Create(ctx context.Context, input dto.CreateInput) (dto.PlanOutput, error)
	List(ctx context.Context) []dto.PlanOutput
	Show(ctx context.Context, planRef string) (dto.PlanOutput, error)
	// Day returns the tasks scheduled on day; day 0 means the current day.
	Day(ctx context.Context, planRef string, day int) (dto.DayOutput, error)
	SetCompleted(ctx context.Context, planRef, taskRef string, done bool) (dto.PlanOutput, error)
	Reorder(ctx context.Context, planRef string, from, to int) (dto.PlanOutput, error)
	AddTask(ctx context.Context, planRef, name string) (dto.PlanOutput, error)
	Delete(ctx context.Context, planRef string) error
}
