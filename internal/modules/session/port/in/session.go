package in

import (
	"context"
	"time"

	"studydesk/internal/modules/session/dto"
)

type Usecase interface {
	Start(ctx context.Context, input dto.StartInput) (dto.Status, error)
	Pause(ctx context.Context) (dto.Status, error)
	Continue(ctx context.Context) (dto.Status, error)
	End(ctx context.Context) (dto.RecordOutput, error)
	Status(ctx context.Context) dto.Status
	// Watch emits a fresh Status every interval until ctx ends, then closes
	// the channel. It never writes state.
	Watch(ctx context.Context, interval time.Duration) <-chan dto.Status
	History(ctx context.Context) []dto.RecordOutput
	ClearHistory(ctx context.Context) error
	Summary(ctx context.Context, since time.Time) dto.SummaryOutput
	Export(ctx context.Context, dir string) (dto.ExportOutput, error)
}
