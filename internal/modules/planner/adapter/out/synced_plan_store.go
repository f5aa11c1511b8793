package out

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"studydesk/internal/modules/planner/domain"
	plannerout "studydesk/internal/modules/planner/port/out"
	syncin "studydesk/internal/modules/syncstate/port/in"
	"studydesk/internal/platform/logging"
)

// SyncedPlanStore keeps plans under the planner key of the synchronized
// state. Entries it cannot decode are carried through writes unchanged.
type SyncedPlanStore struct {
	store  syncin.Store
	logger *zap.Logger
}

var _ plannerout.PlanStore = (*SyncedPlanStore)(nil)

func NewSyncedPlanStore(store syncin.Store, logger *zap.Logger) *SyncedPlanStore {
	return &SyncedPlanStore{store: store, logger: logging.OrNop(logger).Named("plan-store")}
}

func (s *SyncedPlanStore) Load(ctx context.Context) []domain.Plan {
	plans, _ := s.decode(syncin.ReadAs(ctx, s.store, syncin.KeyPlans, []json.RawMessage{}))
	return plans
}

func (s *SyncedPlanStore) Update(ctx context.Context, fn func([]domain.Plan) ([]domain.Plan, error)) ([]domain.Plan, error) {
	var result []domain.Plan
	_, err := syncin.UpdateAs(ctx, s.store, syncin.KeyPlans, []json.RawMessage{}, func(raw []json.RawMessage) ([]json.RawMessage, error) {
		plans, unreadable := s.decode(raw)
		next, err := fn(plans)
		if err != nil {
			return nil, err
		}
		out := make([]json.RawMessage, 0, len(next)+len(unreadable))
		for _, plan := range next {
			encoded, err := json.Marshal(plan)
			if err != nil {
				return nil, fmt.Errorf("encode plan %s: %w", plan.ID, err)
			}
			out = append(out, encoded)
		}
		result = next
		return append(out, unreadable...), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SyncedPlanStore) decode(raw []json.RawMessage) ([]domain.Plan, []json.RawMessage) {
	plans := make([]domain.Plan, 0, len(raw))
	unreadable := []json.RawMessage{}
	for idx, entry := range raw {
		plan := domain.Plan{}
		if err := json.Unmarshal(entry, &plan); err != nil || plan.ID == "" {
			s.logger.Debug("keep unreadable plan entry", zap.Int("index", idx), zap.Error(err))
			unreadable = append(unreadable, entry)
			continue
		}
		plans = append(plans, plan)
	}
	return plans, unreadable
}
