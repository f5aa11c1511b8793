package in

import (
	"context"
	"encoding/json"

	"studydesk/internal/modules/syncstate/domain"
	"studydesk/internal/modules/syncstate/dto"
)

const (
	KeyStudySessions  = domain.KeyStudySessions
	KeyActiveSession  = domain.KeyActiveSession
	KeyPlans          = domain.KeyPlans
	KeyYearlyGoals    = domain.KeyYearlyGoals
	KeyDailyTasks     = domain.KeyDailyTasks
	KeyCourses        = domain.KeyCourses
	KeyNotes          = domain.KeyNotes
	KeySettings       = domain.KeySettings
	KeyTimerSettings  = domain.KeyTimerSettings
	KeyLanguageRecord = domain.KeyLanguageRecord
)

type Key = domain.LogicalKey

// UpdateFunc computes the next value from the freshest local value. ok is
// false when the key has never been written.
type UpdateFunc func(current json.RawMessage, ok bool) (json.RawMessage, error)

// Store is the per-user keyed state every feature reads and writes through.
type Store interface {
	UserID() string
	Spec(key Key) domain.KeySpec
	Read(ctx context.Context, key Key) (json.RawMessage, bool)
	Update(ctx context.Context, key Key, fn UpdateFunc) (json.RawMessage, error)
	Clear(ctx context.Context, key Key) error
}

type Syncer interface {
	Refresh(ctx context.Context) dto.SyncReport
	Flush(ctx context.Context) error
}

type Migration interface {
	Run(ctx context.Context) (dto.MigrationReport, error)
}

// ReadAs decodes the value stored under key into T. Absent values, null, and
// values whose shape disagrees with the key's kind or with T yield initial.
func ReadAs[T any](ctx context.Context, s Store, key Key, initial T) T {
	raw, ok := s.Read(ctx, key)
	return decodeAs(s.Spec(key), raw, ok, initial)
}

// UpdateAs runs fn against the decoded current value and stores its result.
// An error from fn aborts the write.
func UpdateAs[T any](ctx context.Context, s Store, key Key, initial T, fn func(T) (T, error)) (T, error) {
	spec := s.Spec(key)
	var next T
	_, err := s.Update(ctx, key, func(current json.RawMessage, ok bool) (json.RawMessage, error) {
		value, err := fn(decodeAs(spec, current, ok, initial))
		if err != nil {
			return nil, err
		}
		next = value
		return json.Marshal(value)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return next, nil
}

func SetAs[T any](ctx context.Context, s Store, key Key, value T) error {
	_, err := UpdateAs(ctx, s, key, value, func(T) (T, error) { return value, nil })
	return err
}

func decodeAs[T any](spec domain.KeySpec, raw json.RawMessage, ok bool, initial T) T {
	if !ok || domain.ShapeOf(raw) == domain.ShapeNull || !spec.Kind.Accepts(raw) {
		return initial
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return initial
	}
	return value
}
