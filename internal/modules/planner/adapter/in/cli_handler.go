package in

import (
	"context"

	plannerdto "studydesk/internal/modules/planner/dto"
	plannerin "studydesk/internal/modules/planner/port/in"
)

type CLIHandler struct {
	usecase plannerin.Usecase
}

func NewCLIHandler(usecase plannerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Create(ctx context.Context, name string, totalDays, tasksPerDay int, tasks []string) (plannerdto.PlanOutput, error) {
	return h.usecase.Create(ctx, plannerdto.CreateInput{Name: name, TotalDays: totalDays, TasksPerDay: tasksPerDay, Tasks: tasks})
}

func (h CLIHandler) List(ctx context.Context) []plannerdto.PlanOutput {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Show(ctx context.Context, planRef string) (plannerdto.PlanOutput, error) {
	return h.usecase.Show(ctx, planRef)
}

func (h CLIHandler) Day(ctx context.Context, planRef string, day int) (plannerdto.DayOutput, error) {
	return h.usecase.Day(ctx, planRef, day)
}

// Today returns the current day of the first plan, if any.
func (h CLIHandler) Today(ctx context.Context) (plannerdto.DayOutput, bool, error) {
	plans := h.usecase.List(ctx)
	if len(plans) == 0 {
		return plannerdto.DayOutput{}, false, nil
	}
	day, err := h.usecase.Day(ctx, plans[0].ID, 0)
	if err != nil {
		return plannerdto.DayOutput{}, false, err
	}
	return day, true, nil
}

func (h CLIHandler) SetCompleted(ctx context.Context, planRef, taskRef string, done bool) (plannerdto.PlanOutput, error) {
	return h.usecase.SetCompleted(ctx, planRef, taskRef, done)
}

func (h CLIHandler) Reorder(ctx context.Context, planRef string, from, to int) (plannerdto.PlanOutput, error) {
	return h.usecase.Reorder(ctx, planRef, from, to)
}

func (h CLIHandler) AddTask(ctx context.Context, planRef, name string) (plannerdto.PlanOutput, error) {
	return h.usecase.AddTask(ctx, planRef, name)
}

func (h CLIHandler) Delete(ctx context.Context, planRef string) error {
	return h.usecase.Delete(ctx, planRef)
}
