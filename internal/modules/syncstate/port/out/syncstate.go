package out

import (
	"context"
	"encoding/json"

	"studydesk/internal/modules/syncstate/domain"
)

// Fields is a partial remote document: field name to JSON value.
type Fields map[string]json.RawMessage

// RemoteStore holds one document per user. Save merges: fields not named in
// the payload are left untouched.
type RemoteStore interface {
	Load(ctx context.Context, userID string) (Fields, error)
	Save(ctx context.Context, userID string, fields Fields) error
}

// LocalCache is the device-local, per-user key/value store.
type LocalCache interface {
	Get(ctx context.Context, userID string, key domain.LogicalKey) (json.RawMessage, bool, error)
	Set(ctx context.Context, userID string, key domain.LogicalKey, value json.RawMessage) error
}

// LegacyCache exposes the unscoped key namespace older builds wrote to.
type LegacyCache interface {
	Scan(ctx context.Context, prefix string) ([]domain.RawEntry, error)
	Delete(ctx context.Context, keys []string) error
}
