package out

import (
	"context"

	syncout "studydesk/internal/modules/syncstate/port/out"
	apperrors "studydesk/internal/platform/errors"
)

// OfflineRemoteStore is used when no remote driver is configured. Every call
// fails, so the coordinator runs from the local cache alone.
type OfflineRemoteStore struct{}

var _ syncout.RemoteStore = OfflineRemoteStore{}

func (OfflineRemoteStore) Load(context.Context, string) (syncout.Fields, error) {
	return nil, apperrors.ErrRemoteUnavailable
}

func (OfflineRemoteStore) Save(context.Context, string, syncout.Fields) error {
	return apperrors.ErrRemoteUnavailable
}
