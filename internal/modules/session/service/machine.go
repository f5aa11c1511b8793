package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"studydesk/internal/modules/session/domain"
	sessionout "studydesk/internal/modules/session/port/out"
	"studydesk/internal/platform/clock"
	apperrors "studydesk/internal/platform/errors"
	"studydesk/internal/platform/id"
	"studydesk/internal/platform/logging"
)

type StartParams struct {
	SubjectID   string
	SubjectName string
	TaskID      string
	TaskLabel   string
}

type Snapshot struct {
	Active         *domain.ActiveSession
	ElapsedSeconds float64
	IsPaused       bool
}

// Machine drives the Idle -> Running <-> Paused -> Idle lifecycle. Every
// transition reads the stored session at the moment it runs, so a value the
// sync layer adopted in between is never overwritten by a stale copy.
type Machine struct {
	clock  clock.Clock
	idGen  id.Generator
	store  sessionout.StateStore
	logger *zap.Logger

	mu sync.Mutex
}

func NewMachine(clock clock.Clock, idGen id.Generator, store sessionout.StateStore, logger *zap.Logger) *Machine {
	return &Machine{clock: clock, idGen: idGen, store: store, logger: logging.OrNop(logger).Named("session")}
}

func (m *Machine) Start(ctx context.Context, params StartParams) (domain.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.store.UpdateActive(ctx, func(current *domain.ActiveSession) (*domain.ActiveSession, error) {
		if current != nil {
			return nil, apperrors.ErrActiveSessionExists
		}
		now := m.clock.Now()
		return &domain.ActiveSession{
			SubjectID:   domain.Optional(params.SubjectID),
			SubjectName: domain.Optional(params.SubjectName),
			TaskID:      domain.Optional(params.TaskID),
			TaskLabel:   domain.Optional(params.TaskLabel),
			StartTime:   now,
			ResumedAt:   &now,
		}, nil
	})
	if err != nil {
		return domain.ActiveSession{}, err
	}
	m.logger.Debug("session started", zap.String("label", next.Label()))
	return *next, nil
}

func (m *Machine) Pause(ctx context.Context) (domain.ActiveSession, error) {
	return m.transition(ctx, "paused", domain.ActiveSession.Pause)
}

func (m *Machine) Continue(ctx context.Context) (domain.ActiveSession, error) {
	return m.transition(ctx, "continued", domain.ActiveSession.Continue)
}

func (m *Machine) transition(ctx context.Context, name string, step func(domain.ActiveSession, time.Time) (domain.ActiveSession, error)) (domain.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.store.UpdateActive(ctx, func(current *domain.ActiveSession) (*domain.ActiveSession, error) {
		if current == nil {
			return nil, apperrors.ErrNoActiveSession
		}
		updated, err := step(*current, m.clock.Now())
		if err != nil {
			return nil, err
		}
		return &updated, nil
	})
	if err != nil {
		return domain.ActiveSession{}, err
	}
	m.logger.Debug("session "+name, zap.Float64("accumulated_seconds", next.AccumulatedSeconds))
	return *next, nil
}

// End appends the finished record to the session log and only then resets
// the active session, so a failure in between leaves the timer recoverable.
func (m *Machine) End(ctx context.Context) (domain.StudySessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.store.LoadActive(ctx)
	if active == nil {
		return domain.StudySessionRecord{}, apperrors.ErrNoActiveSession
	}
	record, err := m.store.AppendRecord(ctx, domain.NewRecord(m.idGen.New(), *active, m.clock.Now()))
	if err != nil {
		return domain.StudySessionRecord{}, fmt.Errorf("append session record: %w", err)
	}
	if _, err := m.store.UpdateActive(ctx, func(current *domain.ActiveSession) (*domain.ActiveSession, error) {
		// a session started elsewhere after this one ended stays active
		if current != nil && !current.StartTime.Equal(active.StartTime) {
			return current, nil
		}
		return nil, nil
	}); err != nil {
		return domain.StudySessionRecord{}, fmt.Errorf("reset active session: %w", err)
	}
	m.logger.Debug("session ended", zap.String("id", record.ID), zap.Float64("minutes", record.DurationMinutes))
	return record, nil
}

// Snapshot is read only.
func (m *Machine) Snapshot(ctx context.Context) Snapshot {
	active := m.store.LoadActive(ctx)
	if active == nil {
		return Snapshot{}
	}
	return Snapshot{
		Active:         active,
		ElapsedSeconds: active.ElapsedSeconds(m.clock.Now()),
		IsPaused:       active.IsPaused(),
	}
}

func (m *Machine) History(ctx context.Context) []domain.StudySessionRecord {
	return m.store.Records(ctx)
}

func (m *Machine) ClearHistory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.ClearRecords(ctx)
}
