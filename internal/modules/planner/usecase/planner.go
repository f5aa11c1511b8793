package usecase

import (
	"context"
	"fmt"

	"studydesk/internal/modules/planner/domain"
	plannerdto "studydesk/internal/modules/planner/dto"
	plannerin "studydesk/internal/modules/planner/port/in"
	"studydesk/internal/modules/planner/service"
	apperrors "studydesk/internal/platform/errors"
)

type Interactor struct {
	svc *service.PlanService
}

func NewInteractor(svc *service.PlanService) plannerin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Create(ctx context.Context, input plannerdto.CreateInput) (plannerdto.PlanOutput, error) {
	plan, err := i.svc.Create(ctx, input.Name, input.TotalDays, input.TasksPerDay, input.Tasks)
	if err != nil {
		return plannerdto.PlanOutput{}, err
	}
	return toPlanOutput(plan), nil
}

func (i *Interactor) List(ctx context.Context) []plannerdto.PlanOutput {
	plans := i.svc.List(ctx)
	out := make([]plannerdto.PlanOutput, 0, len(plans))
	for _, plan := range plans {
		out = append(out, toPlanOutput(plan))
	}
	return out
}

func (i *Interactor) Show(ctx context.Context, planRef string) (plannerdto.PlanOutput, error) {
	plan, err := i.svc.Get(ctx, planRef)
	if err != nil {
		return plannerdto.PlanOutput{}, err
	}
	return toPlanOutput(plan), nil
}

func (i *Interactor) Day(ctx context.Context, planRef string, day int) (plannerdto.DayOutput, error) {
	if day < 0 {
		return plannerdto.DayOutput{}, fmt.Errorf("%w: day must be positive", apperrors.ErrInvalidInput)
	}
	plan, err := i.svc.Get(ctx, planRef)
	if err != nil {
		return plannerdto.DayOutput{}, err
	}
	current := domain.CurrentDay(plan)
	if day == 0 {
		day = current
	}
	positions := make(map[string]int, len(plan.Tasks))
	for idx, task := range plan.Tasks {
		positions[task.ID] = idx + 1
	}
	progress := domain.Progress(plan)
	out := plannerdto.DayOutput{
		PlanID:     plan.ID,
		PlanName:   plan.Name,
		Day:        day,
		CurrentDay: current,
		TotalDays:  plan.TotalDays,
		Tasks:      []plannerdto.TaskOutput{},
		Completed:  progress.Completed,
		Total:      progress.Total,
	}
	for _, task := range domain.AssignDay(plan, day) {
		out.Tasks = append(out.Tasks, toTaskOutput(task, positions[task.ID]))
	}
	return out, nil
}

func (i *Interactor) SetCompleted(ctx context.Context, planRef, taskRef string, done bool) (plannerdto.PlanOutput, error) {
	plan, err := i.svc.SetCompleted(ctx, planRef, taskRef, done)
	if err != nil {
		return plannerdto.PlanOutput{}, err
	}
	return toPlanOutput(plan), nil
}

func (i *Interactor) Reorder(ctx context.Context, planRef string, from, to int) (plannerdto.PlanOutput, error) {
	plan, err := i.svc.Reorder(ctx, planRef, from, to)
	if err != nil {
		return plannerdto.PlanOutput{}, err
	}
	return toPlanOutput(plan), nil
}

func (i *Interactor) AddTask(ctx context.Context, planRef, name string) (plannerdto.PlanOutput, error) {
	plan, err := i.svc.AddTask(ctx, planRef, name)
	if err != nil {
		return plannerdto.PlanOutput{}, err
	}
	return toPlanOutput(plan), nil
}

func (i *Interactor) Delete(ctx context.Context, planRef string) error {
	return i.svc.Delete(ctx, planRef)
}

func toPlanOutput(plan domain.Plan) plannerdto.PlanOutput {
	progress := domain.Progress(plan)
	out := plannerdto.PlanOutput{
		ID:          plan.ID,
		Name:        plan.Name,
		TotalDays:   plan.TotalDays,
		TasksPerDay: plan.TasksPerDay,
		CreatedAt:   plan.CreatedAt,
		Tasks:       make([]plannerdto.TaskOutput, 0, len(plan.Tasks)),
		CurrentDay:  domain.CurrentDay(plan),
		Completed:   progress.Completed,
		Total:       progress.Total,
	}
	for idx, task := range plan.Tasks {
		out.Tasks = append(out.Tasks, toTaskOutput(task, idx+1))
	}
	return out
}

func toTaskOutput(task domain.PlannerTask, position int) plannerdto.TaskOutput {
	return plannerdto.TaskOutput{
		ID:          task.ID,
		Name:        task.Name,
		Position:    position,
		Completed:   task.Completed,
		CompletedAt: task.CompletedAt,
	}
}
