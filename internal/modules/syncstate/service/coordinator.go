package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"studydesk/internal/modules/syncstate/domain"
	"studydesk/internal/modules/syncstate/dto"
	syncin "studydesk/internal/modules/syncstate/port/in"
	syncout "studydesk/internal/modules/syncstate/port/out"
	apperrors "studydesk/internal/platform/errors"
	"studydesk/internal/platform/logging"
)

// Coordinator reconciles the local cache with the remote document for one
// user. The local cache is the source of truth; remote writes are fire and
// forget and remote reads only ever fill gaps.
type Coordinator struct {
	userID   string
	registry domain.Registry
	local    syncout.LocalCache
	remote   syncout.RemoteStore
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	overlay map[domain.LogicalKey]json.RawMessage
	tails   map[domain.LogicalKey]chan struct{}
	pending sync.WaitGroup
	loads   singleflight.Group
}

var (
	_ syncin.Store  = (*Coordinator)(nil)
	_ syncin.Syncer = (*Coordinator)(nil)
)

// NewCoordinator builds a coordinator. A zero timeout leaves remote calls
// bounded only by the caller's context.
func NewCoordinator(userID string, registry domain.Registry, local syncout.LocalCache, remote syncout.RemoteStore, timeout time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		userID:   userID,
		registry: registry,
		local:    local,
		remote:   remote,
		timeout:  timeout,
		logger:   logging.OrNop(logger).Named("sync").With(zap.String("user", userID)),
		overlay:  map[domain.LogicalKey]json.RawMessage{},
		tails:    map[domain.LogicalKey]chan struct{}{},
	}
}

func (c *Coordinator) UserID() string { return c.userID }

func (c *Coordinator) Spec(key domain.LogicalKey) domain.KeySpec { return c.registry.Spec(key) }

func (c *Coordinator) Read(ctx context.Context, key domain.LogicalKey) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok, err := c.readLocked(ctx, key)
	if err != nil {
		c.logger.Warn("local read failed", zap.String("key", string(key)), zap.Error(err))
		return nil, false
	}
	return value, ok
}

// Update recomputes the value for key against the freshest local value,
// stores it locally and schedules a remote save. Calls are serialized.
func (c *Coordinator) Update(ctx context.Context, key domain.LogicalKey, fn syncin.UpdateFunc) (json.RawMessage, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok, err := c.readLocked(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	next, err := fn(current, ok)
	if err != nil {
		return nil, err
	}
	next = bytes.TrimSpace(next)
	if !json.Valid(next) {
		return nil, fmt.Errorf("%w: value for %s is not valid JSON", apperrors.ErrInvalidInput, key)
	}
	spec := c.registry.Spec(key)
	if !spec.Kind.Accepts(next) {
		return nil, fmt.Errorf("%w: %s holds a %s value", apperrors.ErrInvalidInput, key, spec.Kind)
	}
	next = append(json.RawMessage(nil), next...)

	c.writeLocalLocked(ctx, key, next)
	c.saveRemoteLocked(key, next)
	return next, nil
}

func (c *Coordinator) Clear(ctx context.Context, key domain.LogicalKey) error {
	_, err := c.Update(ctx, key, func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage("null"), nil
	})
	return err
}

// Refresh loads the remote document and applies the merge policy to every
// registered key and every field the remote document carries. Adopted values
// are written to the local cache only.
func (c *Coordinator) Refresh(ctx context.Context) dto.SyncReport {
	report := dto.SyncReport{UserID: c.userID}
	snapshot, unreadable := c.snapshot(ctx)

	fields, err := c.load(ctx)
	if err != nil {
		c.logger.Warn("remote load failed, continuing from local cache", zap.Error(err))
		report.RemoteErr = err
		return report
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range c.mergeKeys(fields) {
		outcome := c.mergeLocked(ctx, key, snapshot, unreadable, fields)
		c.logger.Debug("merge", zap.String("key", string(key)), zap.Stringer("decision", outcome.Decision), zap.String("reason", outcome.Reason))
		report.Outcomes = append(report.Outcomes, dto.KeyOutcome{
			Key:      string(key),
			Decision: outcome.Decision.String(),
			Reason:   outcome.Reason,
		})
	}
	return report
}

// mergeLocked resolves one key. A key whose local value cannot be read is
// kept, never overwritten by the remote value.
func (c *Coordinator) mergeLocked(ctx context.Context, key domain.LogicalKey, snapshot map[domain.LogicalKey]json.RawMessage, unreadable map[domain.LogicalKey]error, fields syncout.Fields) domain.Outcome {
	keep := func(reason string) domain.Outcome {
		return domain.Outcome{Key: key, Decision: domain.Keep, Reason: reason}
	}
	if err, failed := unreadable[key]; failed {
		c.logger.Warn("local read failed, keeping local", zap.String("key", string(key)), zap.Error(err))
		return keep(domain.ReasonLocalReadFailed)
	}
	before, seen := snapshot[key]
	if !seen {
		var err error
		if before, _, err = c.readLocked(ctx, key); err != nil {
			c.logger.Warn("local read failed, keeping local", zap.String("key", string(key)), zap.Error(err))
			return keep(domain.ReasonLocalReadFailed)
		}
	}
	remote, remoteOK := fields[string(key)]
	outcome := domain.Resolve(c.registry.Spec(key), before, remote, remoteOK)
	if outcome.Decision != domain.Adopt {
		return outcome
	}
	current, _, err := c.readLocked(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("local read failed, keeping local", zap.String("key", string(key)), zap.Error(err))
		return keep(domain.ReasonLocalReadFailed)
	case !bytes.Equal(current, before):
		return keep(domain.ReasonLocalChanged)
	}
	c.writeLocalLocked(ctx, key, append(json.RawMessage(nil), remote...))
	return outcome
}

// Flush blocks until every scheduled remote save has finished or ctx ends.
func (c *Coordinator) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush remote writes: %w", ctx.Err())
	}
}

func (c *Coordinator) snapshot(ctx context.Context) (map[domain.LogicalKey]json.RawMessage, map[domain.LogicalKey]error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[domain.LogicalKey]json.RawMessage{}
	failed := map[domain.LogicalKey]error{}
	for _, spec := range c.registry.Specs() {
		value, _, err := c.readLocked(ctx, spec.Key)
		if err != nil {
			failed[spec.Key] = err
			continue
		}
		out[spec.Key] = value
	}
	return out, failed
}

func (c *Coordinator) mergeKeys(fields syncout.Fields) []domain.LogicalKey {
	seen := map[domain.LogicalKey]struct{}{}
	keys := []domain.LogicalKey{}
	for _, spec := range c.registry.Specs() {
		seen[spec.Key] = struct{}{}
		keys = append(keys, spec.Key)
	}
	for name := range fields {
		key := domain.LogicalKey(name)
		if _, ok := seen[key]; ok {
			continue
		}
		if err := key.Validate(); err != nil {
			c.logger.Debug("skip remote field", zap.String("field", name), zap.Error(err))
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (c *Coordinator) load(ctx context.Context) (syncout.Fields, error) {
	v, err, shared := c.loads.Do(c.userID, func() (any, error) {
		ctx, cancel := c.remoteContext(ctx)
		defer cancel()
		return c.remote.Load(ctx, c.userID)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("remote load shared")
	}
	fields, _ := v.(syncout.Fields)
	return fields, nil
}

func (c *Coordinator) readLocked(ctx context.Context, key domain.LogicalKey) (json.RawMessage, bool, error) {
	if value, ok := c.overlay[key]; ok {
		return value, true, nil
	}
	return c.local.Get(ctx, c.userID, key)
}

func (c *Coordinator) writeLocalLocked(ctx context.Context, key domain.LogicalKey, value json.RawMessage) {
	if err := c.local.Set(ctx, c.userID, key, value); err != nil {
		c.logger.Warn("local write failed, keeping value in memory", zap.String("key", string(key)), zap.Error(err))
		c.overlay[key] = value
		return
	}
	delete(c.overlay, key)
}

// saveRemoteLocked schedules a remote save. Saves for the same key run in
// call order; each waits for the previous one to finish.
func (c *Coordinator) saveRemoteLocked(key domain.LogicalKey, value json.RawMessage) {
	prev := c.tails[key]
	done := make(chan struct{})
	c.tails[key] = done
	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := c.remoteContext(context.Background())
		defer cancel()
		if err := c.remote.Save(ctx, c.userID, syncout.Fields{string(key): value}); err != nil {
			c.logger.Warn("remote save failed", zap.String("key", string(key)), zap.Error(err))
			return
		}
		c.logger.Debug("remote save", zap.String("key", string(key)))
	}()
}

func (c *Coordinator) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
