package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"studydesk/internal/modules/planner/domain"
	plannerout "studydesk/internal/modules/planner/port/out"
	"studydesk/internal/platform/clock"
	apperrors "studydesk/internal/platform/errors"
	"studydesk/internal/platform/id"
	"studydesk/internal/platform/logging"
)

type PlanService struct {
	clock  clock.Clock
	idGen  id.Generator
	store  plannerout.PlanStore
	logger *zap.Logger
}

func NewPlanService(clock clock.Clock, idGen id.Generator, store plannerout.PlanStore, logger *zap.Logger) *PlanService {
	return &PlanService{clock: clock, idGen: idGen, store: store, logger: logging.OrNop(logger).Named("planner")}
}

func (s *PlanService) Create(ctx context.Context, name string, totalDays, tasksPerDay int, taskNames []string) (domain.Plan, error) {
	plan := domain.Plan{
		ID:          s.idGen.New(),
		Name:        strings.TrimSpace(name),
		TotalDays:   totalDays,
		TasksPerDay: tasksPerDay,
		Tasks:       make([]domain.PlannerTask, 0, len(taskNames)),
		CreatedAt:   s.clock.Now(),
	}
	for _, taskName := range taskNames {
		plan.Tasks = append(plan.Tasks, domain.PlannerTask{ID: s.idGen.New(), Name: strings.TrimSpace(taskName)})
	}
	if err := plan.Validate(); err != nil {
		return domain.Plan{}, err
	}
	if _, err := s.store.Update(ctx, func(plans []domain.Plan) ([]domain.Plan, error) {
		return append(plans, plan), nil
	}); err != nil {
		return domain.Plan{}, err
	}
	s.logger.Debug("plan created", zap.String("plan", plan.ID), zap.Int("tasks", len(plan.Tasks)))
	return plan, nil
}

func (s *PlanService) List(ctx context.Context) []domain.Plan {
	return s.store.Load(ctx)
}

// Get resolves ref as an id, a unique id prefix, or a case-insensitive name.
func (s *PlanService) Get(ctx context.Context, ref string) (domain.Plan, error) {
	plans := s.store.Load(ctx)
	idx, err := findPlan(plans, ref)
	if err != nil {
		return domain.Plan{}, err
	}
	return plans[idx], nil
}

func (s *PlanService) Delete(ctx context.Context, ref string) error {
	_, err := s.store.Update(ctx, func(plans []domain.Plan) ([]domain.Plan, error) {
		idx, err := findPlan(plans, ref)
		if err != nil {
			return nil, err
		}
		return append(plans[:idx:idx], plans[idx+1:]...), nil
	})
	return err
}

func (s *PlanService) SetCompleted(ctx context.Context, ref, taskRef string, done bool) (domain.Plan, error) {
	return s.edit(ctx, ref, func(plan domain.Plan) (domain.Plan, error) {
		idx, err := plan.TaskIndex(taskRef)
		if err != nil {
			return plan, err
		}
		return plan.WithCompleted(idx, done, s.clock.Now()), nil
	})
}

// Reorder moves the task at position from to position to, both 1-based.
func (s *PlanService) Reorder(ctx context.Context, ref string, from, to int) (domain.Plan, error) {
	return s.edit(ctx, ref, func(plan domain.Plan) (domain.Plan, error) {
		return plan.Moved(from-1, to-1)
	})
}

func (s *PlanService) AddTask(ctx context.Context, ref, name string) (domain.Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Plan{}, fmt.Errorf("%w: task name is required", apperrors.ErrInvalidInput)
	}
	return s.edit(ctx, ref, func(plan domain.Plan) (domain.Plan, error) {
		plan.Tasks = append(append([]domain.PlannerTask(nil), plan.Tasks...), domain.PlannerTask{ID: s.idGen.New(), Name: name})
		return plan, nil
	})
}

func (s *PlanService) edit(ctx context.Context, ref string, fn func(domain.Plan) (domain.Plan, error)) (domain.Plan, error) {
	var edited domain.Plan
	_, err := s.store.Update(ctx, func(plans []domain.Plan) ([]domain.Plan, error) {
		idx, err := findPlan(plans, ref)
		if err != nil {
			return nil, err
		}
		next, err := fn(plans[idx])
		if err != nil {
			return nil, err
		}
		out := append([]domain.Plan(nil), plans...)
		out[idx] = next
		edited = next
		return out, nil
	})
	if err != nil {
		return domain.Plan{}, err
	}
	return edited, nil
}

func findPlan(plans []domain.Plan, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, fmt.Errorf("%w: plan reference is required", apperrors.ErrInvalidInput)
	}
	for i, plan := range plans {
		if plan.ID == ref {
			return i, nil
		}
	}
	match := -1
	for i, plan := range plans {
		if strings.HasPrefix(plan.ID, ref) || strings.EqualFold(plan.Name, ref) {
			if match >= 0 {
				return -1, fmt.Errorf("%w: plan %q is ambiguous", apperrors.ErrInvalidInput, ref)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: plan %q", apperrors.ErrNotFound, ref)
	}
	return match, nil
}
