package out

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"studydesk/internal/modules/session/domain"
	sessionout "studydesk/internal/modules/session/port/out"
	syncin "studydesk/internal/modules/syncstate/port/in"
	"studydesk/internal/platform/logging"
)

// SyncedStateStore keeps the active session and the session log in the
// synchronized key/value state.
type SyncedStateStore struct {
	store  syncin.Store
	logger *zap.Logger
}

var _ sessionout.StateStore = (*SyncedStateStore)(nil)

func NewSyncedStateStore(store syncin.Store, logger *zap.Logger) *SyncedStateStore {
	return &SyncedStateStore{store: store, logger: logging.OrNop(logger).Named("session-store")}
}

func (s *SyncedStateStore) LoadActive(ctx context.Context) *domain.ActiveSession {
	return idleIfBlank(syncin.ReadAs[*domain.ActiveSession](ctx, s.store, syncin.KeyActiveSession, nil))
}

func (s *SyncedStateStore) UpdateActive(ctx context.Context, fn func(*domain.ActiveSession) (*domain.ActiveSession, error)) (*domain.ActiveSession, error) {
	return syncin.UpdateAs(ctx, s.store, syncin.KeyActiveSession, (*domain.ActiveSession)(nil), func(current *domain.ActiveSession) (*domain.ActiveSession, error) {
		return fn(idleIfBlank(current))
	})
}

// AppendRecord appends to the raw log so entries this build cannot decode
// are carried along untouched. A session is logged at most once per start
// time; the check runs inside the same update as the append.
func (s *SyncedStateStore) AppendRecord(ctx context.Context, record domain.StudySessionRecord) (domain.StudySessionRecord, error) {
	encoded, err := json.Marshal(record)
	if err != nil {
		return domain.StudySessionRecord{}, fmt.Errorf("encode session record: %w", err)
	}
	stored := record
	_, err = syncin.UpdateAs(ctx, s.store, syncin.KeyStudySessions, []json.RawMessage{}, func(log []json.RawMessage) ([]json.RawMessage, error) {
		stored = record
		for _, raw := range log {
			existing := domain.StudySessionRecord{}
			if json.Unmarshal(raw, &existing) != nil || !existing.StartTime.Equal(record.StartTime) {
				continue
			}
			s.logger.Debug("session already logged", zap.String("id", existing.ID))
			stored = existing
			return log, nil
		}
		return append(log, encoded), nil
	})
	if err != nil {
		return domain.StudySessionRecord{}, err
	}
	return stored, nil
}

func (s *SyncedStateStore) Records(ctx context.Context) []domain.StudySessionRecord {
	log := syncin.ReadAs(ctx, s.store, syncin.KeyStudySessions, []json.RawMessage{})
	out := make([]domain.StudySessionRecord, 0, len(log))
	for idx, raw := range log {
		record := domain.StudySessionRecord{}
		if err := json.Unmarshal(raw, &record); err != nil || record.StartTime.IsZero() {
			s.logger.Debug("skip unreadable session record", zap.Int("index", idx), zap.Error(err))
			continue
		}
		out = append(out, record)
	}
	return out
}

func (s *SyncedStateStore) ClearRecords(ctx context.Context) error {
	return syncin.SetAs(ctx, s.store, syncin.KeyStudySessions, []json.RawMessage{})
}

func idleIfBlank(active *domain.ActiveSession) *domain.ActiveSession {
	if active == nil || active.StartTime.IsZero() {
		return nil
	}
	return active
}
