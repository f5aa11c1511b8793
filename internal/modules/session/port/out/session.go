package out

import (
	"context"

	"studydesk/internal/modules/session/domain"
)

// StateStore persists the active session and the session log. UpdateActive
// must compute against the freshest stored value; a nil session means idle.
// AppendRecord returns the record already logged for the same start time
// instead of appending a second one.
type StateStore interface {
	LoadActive(ctx context.Context) *domain.ActiveSession
	UpdateActive(ctx context.Context, fn func(current *domain.ActiveSession) (*domain.ActiveSession, error)) (*domain.ActiveSession, error)
	AppendRecord(ctx context.Context, record domain.StudySessionRecord) (domain.StudySessionRecord, error)
	Records(ctx context.Context) []domain.StudySessionRecord
	ClearRecords(ctx context.Context) error
}

type NoteExporter interface {
	Export(ctx context.Context, dir string, records []domain.StudySessionRecord) ([]string, error)
}
