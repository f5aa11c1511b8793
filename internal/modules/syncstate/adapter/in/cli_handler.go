package in

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"studydesk/internal/modules/syncstate/dto"
	syncin "studydesk/internal/modules/syncstate/port/in"
	apperrors "studydesk/internal/platform/errors"
)

type CLIHandler struct {
	store     syncin.Store
	syncer    syncin.Syncer
	migration syncin.Migration
}

func NewCLIHandler(store syncin.Store, syncer syncin.Syncer, migration syncin.Migration) CLIHandler {
	return CLIHandler{store: store, syncer: syncer, migration: migration}
}

func (h CLIHandler) Sync(ctx context.Context) dto.SyncReport {
	return h.syncer.Refresh(ctx)
}

func (h CLIHandler) Migrate(ctx context.Context) (dto.MigrationReport, error) {
	return h.migration.Run(ctx)
}

// Get returns the stored value for key, indented for display. A cleared key
// reads as not found.
func (h CLIHandler) Get(ctx context.Context, key string) (string, error) {
	raw, ok := h.store.Read(ctx, syncin.Key(key))
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return "", fmt.Errorf("%w: %s", apperrors.ErrNotFound, key)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw), nil
	}
	pretty, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return string(raw), nil
	}
	return string(pretty), nil
}

func (h CLIHandler) Set(ctx context.Context, key, value string) error {
	_, err := h.store.Update(ctx, syncin.Key(key), func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage(value), nil
	})
	return err
}

func (h CLIHandler) Clear(ctx context.Context, key string) error {
	return h.store.Clear(ctx, syncin.Key(key))
}

func (h CLIHandler) Flush(ctx context.Context) error {
	return h.syncer.Flush(ctx)
}
