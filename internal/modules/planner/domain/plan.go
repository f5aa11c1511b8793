package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "studydesk/internal/platform/errors"
)

type PlannerTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Plan is an ordered task list spread over days. Task order is significant
// and changes only through Reorder.
type Plan struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	TotalDays   int           `json:"totalDays"`
	TasksPerDay int           `json:"tasksPerDay"`
	Tasks       []PlannerTask `json:"tasks"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (p Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: plan name is required", apperrors.ErrInvalidInput)
	}
	if p.TotalDays < 1 {
		return fmt.Errorf("%w: total days must be at least 1", apperrors.ErrInvalidInput)
	}
	if p.TasksPerDay < 1 {
		return fmt.Errorf("%w: tasks per day must be at least 1", apperrors.ErrInvalidInput)
	}
	for _, task := range p.Tasks {
		if strings.TrimSpace(task.Name) == "" {
			return fmt.Errorf("%w: task name is required", apperrors.ErrInvalidInput)
		}
	}
	return nil
}

// TaskIndex resolves a task reference: an exact id, a 1-based position, or a
// case-insensitive name that matches exactly one task.
func (p Plan) TaskIndex(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	for i, task := range p.Tasks {
		if task.ID == ref {
			return i, nil
		}
	}
	if pos, err := strconv.Atoi(ref); err == nil {
		if pos < 1 || pos > len(p.Tasks) {
			return -1, fmt.Errorf("%w: task position %d out of range 1..%d", apperrors.ErrInvalidInput, pos, len(p.Tasks))
		}
		return pos - 1, nil
	}
	match := -1
	for i, task := range p.Tasks {
		if strings.EqualFold(task.Name, ref) {
			if match >= 0 {
				return -1, fmt.Errorf("%w: task name %q is ambiguous", apperrors.ErrInvalidInput, ref)
			}
			match = i
		}
	}
	if match < 0 {
		return -1, fmt.Errorf("%w: task %q", apperrors.ErrNotFound, ref)
	}
	return match, nil
}

// WithCompleted returns a copy of p with task i marked done or undone.
func (p Plan) WithCompleted(i int, done bool, now time.Time) Plan {
	next := p.clone()
	task := &next.Tasks[i]
	if task.Completed == done {
		return next
	}
	task.Completed = done
	task.CompletedAt = nil
	if done {
		stamp := now
		task.CompletedAt = &stamp
	}
	return next
}

// Moved returns a copy of p with the task at from moved to position to.
func (p Plan) Moved(from, to int) (Plan, error) {
	if from < 0 || from >= len(p.Tasks) || to < 0 || to >= len(p.Tasks) {
		return p, fmt.Errorf("%w: reorder positions out of range", apperrors.ErrInvalidInput)
	}
	next := p.clone()
	task := next.Tasks[from]
	next.Tasks = append(next.Tasks[:from], next.Tasks[from+1:]...)
	next.Tasks = append(next.Tasks[:to], append([]PlannerTask{task}, next.Tasks[to:]...)...)
	return next, nil
}

func (p Plan) clone() Plan {
	next := p
	next.Tasks = append([]PlannerTask(nil), p.Tasks...)
	return next
}
