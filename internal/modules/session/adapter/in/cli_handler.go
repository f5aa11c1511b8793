package in

import (
	"context"
	"time"

	sessiondto "studydesk/internal/modules/session/dto"
	sessionin "studydesk/internal/modules/session/port/in"
)

type CLIHandler struct {
	usecase sessionin.Usecase
}

func NewCLIHandler(usecase sessionin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Start(ctx context.Context, subjectID, subjectName, taskID, taskLabel string) (sessiondto.Status, error) {
	return h.usecase.Start(ctx, sessiondto.StartInput{SubjectID: subjectID, SubjectName: subjectName, TaskID: taskID, TaskLabel: taskLabel})
}

func (h CLIHandler) Pause(ctx context.Context) (sessiondto.Status, error) {
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) Continue(ctx context.Context) (sessiondto.Status, error) {
	return h.usecase.Continue(ctx)
}

// Toggle pauses a running session and continues a paused one.
func (h CLIHandler) Toggle(ctx context.Context) (sessiondto.Status, error) {
	if h.usecase.Status(ctx).IsPaused {
		return h.usecase.Continue(ctx)
	}
	return h.usecase.Pause(ctx)
}

func (h CLIHandler) End(ctx context.Context) (sessiondto.RecordOutput, error) {
	return h.usecase.End(ctx)
}

func (h CLIHandler) Status(ctx context.Context) sessiondto.Status {
	return h.usecase.Status(ctx)
}

func (h CLIHandler) Watch(ctx context.Context, interval time.Duration) <-chan sessiondto.Status {
	return h.usecase.Watch(ctx, interval)
}

func (h CLIHandler) History(ctx context.Context) []sessiondto.RecordOutput {
	return h.usecase.History(ctx)
}

func (h CLIHandler) ClearHistory(ctx context.Context) error {
	return h.usecase.ClearHistory(ctx)
}

func (h CLIHandler) Summary(ctx context.Context, since time.Time) sessiondto.SummaryOutput {
	return h.usecase.Summary(ctx, since)
}

func (h CLIHandler) Export(ctx context.Context, dir string) (sessiondto.ExportOutput, error) {
	return h.usecase.Export(ctx, dir)
}
