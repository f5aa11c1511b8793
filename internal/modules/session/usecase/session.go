package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studydesk/internal/modules/session/domain"
	sessiondto "studydesk/internal/modules/session/dto"
	sessionin "studydesk/internal/modules/session/port/in"
	sessionout "studydesk/internal/modules/session/port/out"
	"studydesk/internal/modules/session/service"
	apperrors "studydesk/internal/platform/errors"
)

const DefaultWatchInterval = time.Second

type Interactor struct {
	machine  *service.Machine
	exporter sessionout.NoteExporter
}

func NewInteractor(machine *service.Machine, exporter sessionout.NoteExporter) sessionin.Usecase {
	return &Interactor{machine: machine, exporter: exporter}
}

func (i *Interactor) Start(ctx context.Context, input sessiondto.StartInput) (sessiondto.Status, error) {
	if strings.TrimSpace(input.TaskID) != "" && strings.TrimSpace(input.TaskLabel) == "" {
		return sessiondto.Status{}, fmt.Errorf("%w: task label is required with a task id", apperrors.ErrInvalidInput)
	}
	active, err := i.machine.Start(ctx, service.StartParams{
		SubjectID:   input.SubjectID,
		SubjectName: input.SubjectName,
		TaskID:      input.TaskID,
		TaskLabel:   input.TaskLabel,
	})
	if err != nil {
		return sessiondto.Status{}, err
	}
	return toStatus(active, active.AccumulatedSeconds), nil
}

func (i *Interactor) Pause(ctx context.Context) (sessiondto.Status, error) {
	active, err := i.machine.Pause(ctx)
	if err != nil {
		return sessiondto.Status{}, err
	}
	return toStatus(active, active.AccumulatedSeconds), nil
}

func (i *Interactor) Continue(ctx context.Context) (sessiondto.Status, error) {
	active, err := i.machine.Continue(ctx)
	if err != nil {
		return sessiondto.Status{}, err
	}
	return toStatus(active, active.AccumulatedSeconds), nil
}

func (i *Interactor) End(ctx context.Context) (sessiondto.RecordOutput, error) {
	record, err := i.machine.End(ctx)
	if err != nil {
		return sessiondto.RecordOutput{}, err
	}
	return toRecord(record), nil
}

func (i *Interactor) Status(ctx context.Context) sessiondto.Status {
	snap := i.machine.Snapshot(ctx)
	if snap.Active == nil {
		return sessiondto.Status{}
	}
	return toStatus(*snap.Active, snap.ElapsedSeconds)
}

func (i *Interactor) Watch(ctx context.Context, interval time.Duration) <-chan sessiondto.Status {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	out := make(chan sessiondto.Status)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case out <- i.Status(ctx):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// History lists finished sessions, newest first.
func (i *Interactor) History(ctx context.Context) []sessiondto.RecordOutput {
	records := i.machine.History(ctx)
	out := make([]sessiondto.RecordOutput, 0, len(records))
	for idx := len(records) - 1; idx >= 0; idx-- {
		out = append(out, toRecord(records[idx]))
	}
	return out
}

func (i *Interactor) ClearHistory(ctx context.Context) error {
	return i.machine.ClearHistory(ctx)
}

func (i *Interactor) Summary(ctx context.Context, since time.Time) sessiondto.SummaryOutput {
	totals := domain.Summarize(i.machine.History(ctx), since)
	out := sessiondto.SummaryOutput{Since: since, Subjects: make([]sessiondto.SubjectTotal, 0, len(totals))}
	for _, total := range totals {
		out.Sessions += total.Sessions
		out.Minutes += total.Minutes
		out.Subjects = append(out.Subjects, sessiondto.SubjectTotal{Subject: total.Subject, Sessions: total.Sessions, Minutes: total.Minutes})
	}
	return out
}

func (i *Interactor) Export(ctx context.Context, dir string) (sessiondto.ExportOutput, error) {
	if strings.TrimSpace(dir) == "" {
		return sessiondto.ExportOutput{}, fmt.Errorf("%w: export directory is required", apperrors.ErrInvalidInput)
	}
	if i.exporter == nil {
		return sessiondto.ExportOutput{}, fmt.Errorf("session exporter is not configured")
	}
	paths, err := i.exporter.Export(ctx, dir, i.machine.History(ctx))
	if err != nil {
		return sessiondto.ExportOutput{}, err
	}
	return sessiondto.ExportOutput{Dir: dir, Paths: paths}, nil
}

func toStatus(active domain.ActiveSession, elapsed float64) sessiondto.Status {
	return sessiondto.Status{
		Active: &sessiondto.ActiveOutput{
			SubjectID:          domain.Deref(active.SubjectID),
			SubjectName:        domain.Deref(active.SubjectName),
			TaskID:             domain.Deref(active.TaskID),
			TaskLabel:          domain.Deref(active.TaskLabel),
			Label:              active.Label(),
			StartTime:          active.StartTime,
			AccumulatedSeconds: active.AccumulatedSeconds,
			ResumedAt:          active.ResumedAt,
		},
		ElapsedSeconds: elapsed,
		IsPaused:       active.IsPaused(),
	}
}

func toRecord(r domain.StudySessionRecord) sessiondto.RecordOutput {
	return sessiondto.RecordOutput{
		ID:              r.ID,
		SubjectID:       domain.Deref(r.SubjectID),
		SubjectName:     domain.Deref(r.SubjectName),
		TaskID:          domain.Deref(r.TaskID),
		TaskLabel:       domain.Deref(r.TaskLabel),
		Label:           r.Label(),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		DurationMinutes: r.DurationMinutes,
	}
}
