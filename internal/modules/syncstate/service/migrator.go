package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"studydesk/internal/modules/syncstate/domain"
	"studydesk/internal/modules/syncstate/dto"
	syncin "studydesk/internal/modules/syncstate/port/in"
	syncout "studydesk/internal/modules/syncstate/port/out"
	"studydesk/internal/platform/logging"
)

// Migrator uploads legacy unscoped cache entries into the user's remote
// document. One Migrator serves one login; only its first Run does work.
type Migrator struct {
	userID   string
	prefix   string
	excluded map[string]struct{}
	registry domain.Registry
	legacy   syncout.LegacyCache
	local    syncout.LocalCache
	remote   syncout.RemoteStore
	logger   *zap.Logger

	mu     sync.Mutex
	ran    bool
	report dto.MigrationReport
	err    error
}

var _ syncin.Migration = (*Migrator)(nil)

func NewMigrator(userID, prefix string, excluded []string, registry domain.Registry, legacy syncout.LegacyCache, local syncout.LocalCache, remote syncout.RemoteStore, logger *zap.Logger) *Migrator {
	skip := make(map[string]struct{}, len(excluded))
	for _, key := range excluded {
		skip[key] = struct{}{}
	}
	return &Migrator{
		userID:   userID,
		prefix:   prefix,
		excluded: skip,
		registry: registry,
		legacy:   legacy,
		local:    local,
		remote:   remote,
		logger:   logging.OrNop(logger).Named("migrate").With(zap.String("user", userID)),
	}
}

// Run performs the migration once. Later calls return the first result and
// error without touching either store; a failed upload is retried by the
// next login's Migrator.
func (m *Migrator) Run(ctx context.Context) (dto.MigrationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ran {
		report := m.report
		report.AlreadyRan = true
		return report, m.err
	}
	m.ran = true
	m.report, m.err = m.migrate(ctx)
	return m.report, m.err
}

func (m *Migrator) migrate(ctx context.Context) (dto.MigrationReport, error) {
	report := dto.MigrationReport{}
	entries, err := m.legacy.Scan(ctx, m.prefix)
	if err != nil {
		return report, fmt.Errorf("scan legacy entries: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	payload := syncout.Fields{}
	uploaded := []string{}
	// colliding entries are not uploaded but are deleted with the rest
	collided := []string{}
	for _, entry := range entries {
		if _, skip := m.excluded[entry.Key]; skip {
			continue
		}
		report.Scanned++
		field, ok := domain.LegacyFieldName(entry.Key, m.prefix, m.userID, m.registry)
		if !ok {
			report.Skipped = append(report.Skipped, entry.Key)
			continue
		}
		if _, exists := payload[string(field)]; exists {
			report.Collisions = append(report.Collisions, entry.Key)
			collided = append(collided, entry.Key)
			continue
		}
		payload[string(field)] = legacyValue(entry.Value)
		report.Fields = append(report.Fields, string(field))
		uploaded = append(uploaded, entry.Key)
	}
	if len(payload) == 0 {
		return report, nil
	}

	if err := m.remote.Save(ctx, m.userID, payload); err != nil {
		m.logger.Warn("legacy upload failed, local entries kept", zap.Int("fields", len(payload)), zap.Error(err))
		return report, fmt.Errorf("upload legacy fields: %w", err)
	}
	report.Uploaded = true
	m.seedLocal(ctx, payload)

	remove := append(uploaded, collided...)
	if err := m.legacy.Delete(ctx, remove); err != nil {
		return report, fmt.Errorf("delete migrated entries: %w", err)
	}
	report.Deleted = len(remove)
	m.logger.Info("legacy data migrated", zap.Strings("fields", report.Fields), zap.Int("deleted", report.Deleted))
	return report, nil
}

// seedLocal copies migrated fields into empty scoped slots so they are
// readable before the next sync cycle.
func (m *Migrator) seedLocal(ctx context.Context, payload syncout.Fields) {
	for name, value := range payload {
		key := domain.LogicalKey(name)
		if !m.registry.Spec(key).Kind.Accepts(value) {
			continue
		}
		current, ok, err := m.local.Get(ctx, m.userID, key)
		if err != nil {
			m.logger.Warn("read scoped slot", zap.String("key", name), zap.Error(err))
			continue
		}
		if ok && !domain.IsEmpty(current) {
			continue
		}
		if err := m.local.Set(ctx, m.userID, key, value); err != nil {
			m.logger.Warn("seed scoped slot", zap.String("key", name), zap.Error(err))
		}
	}
}

// legacyValue keeps valid JSON as is and wraps anything else as a string.
func legacyValue(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		return append(json.RawMessage(nil), raw...)
	}
	encoded, _ := json.Marshal(string(raw))
	return encoded
}
