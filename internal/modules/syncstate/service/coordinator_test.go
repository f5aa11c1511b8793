package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"studydesk/internal/modules/syncstate/domain"
	"studydesk/internal/modules/syncstate/dto"
	syncin "studydesk/internal/modules/syncstate/port/in"
	"studydesk/internal/modules/syncstate/service"
	apperrors "studydesk/internal/platform/errors"
)

const user = "user42"

func newCoordinator(local *fakeLocal, remote *fakeRemote) *service.Coordinator {
	return service.NewCoordinator(user, domain.DefaultRegistry(), local, remote, 0, nil)
}

func flush(t *testing.T, c *service.Coordinator) {
	t.Helper()
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestUpdateWritesLocalThenRemote(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	c := newCoordinator(local, remote)

	got, err := syncin.UpdateAs(context.Background(), c, domain.KeySettings, map[string]string{}, func(m map[string]string) (map[string]string, error) {
		m["theme"] = "dark"
		return m, nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got["theme"] != "dark" {
		t.Fatalf("unexpected result %v", got)
	}
	if v := local.value(user, domain.KeySettings); v != `{"theme":"dark"}` {
		t.Fatalf("local value = %s", v)
	}
	flush(t, c)
	if v := remote.field("settings"); v != `{"theme":"dark"}` {
		t.Fatalf("remote value = %s", v)
	}
}

func TestConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	c := newCoordinator(local, remote)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := syncin.UpdateAs(context.Background(), c, domain.KeyDailyTasks, []int{}, func(items []int) ([]int, error) {
				return append(items, i), nil
			})
			if err != nil {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	flush(t, c)

	items := syncin.ReadAs(context.Background(), c, domain.KeyDailyTasks, []int{})
	if len(items) != 40 {
		t.Fatalf("expected 40 items, got %d", len(items))
	}
	if remote.field("daily-tasks") != local.value(user, domain.KeyDailyTasks) {
		t.Fatalf("remote saves applied out of order: remote %s local %s", remote.field("daily-tasks"), local.value(user, domain.KeyDailyTasks))
	}
}

func TestRemoteSavesForOneKeyKeepCallOrder(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	c := newCoordinator(local, remote)
	for i := 0; i < 25; i++ {
		if err := syncin.SetAs(context.Background(), c, domain.KeyTimerSettings, map[string]int{"focus": i}); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	flush(t, c)
	if got := remote.field("timer-settings"); got != `{"focus":24}` {
		t.Fatalf("last write must win remotely, got %s", got)
	}
}

func TestLocalWriteFailureKeepsValueInMemory(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	local.failSet = true
	c := newCoordinator(local, remote)

	if err := syncin.SetAs(context.Background(), c, domain.KeyNotes, []string{"a"}); err != nil {
		t.Fatalf("set must not surface local failure: %v", err)
	}
	got := syncin.ReadAs(context.Background(), c, domain.KeyNotes, []string(nil))
	if diff := cmp.Diff([]string{"a"}, got); diff != "" {
		t.Fatalf("overlay value mismatch (-want +got):\n%s", diff)
	}
	flush(t, c)
	if remote.field("notes") != `["a"]` {
		t.Fatalf("remote save still expected, got %s", remote.field("notes"))
	}
}

func TestRemoteSaveFailureIsNotSurfaced(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	remote.saveErr = apperrors.ErrRemoteUnavailable
	c := newCoordinator(local, remote)
	if err := syncin.SetAs(context.Background(), c, domain.KeyCourses, []string{"go"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	flush(t, c)
	if local.value(user, domain.KeyCourses) != `["go"]` {
		t.Fatalf("local write must stand after remote failure")
	}
	if remote.saveCount() != 1 {
		t.Fatalf("expected exactly one attempt and no retry, got %d", remote.saveCount())
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	t.Parallel()
	c := newCoordinator(newFakeLocal(), newFakeRemote())
	_, err := c.Update(context.Background(), domain.KeySettings, func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage(`{broken`), nil
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad JSON, got %v", err)
	}
	_, err = c.Update(context.Background(), domain.KeyStudySessions, func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage(`{"not":"a list"}`), nil
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for shape mismatch, got %v", err)
	}
	_, err = c.Update(context.Background(), "bad/key", func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage(`1`), nil
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad key, got %v", err)
	}
	sentinel := errors.New("abort")
	_, err = c.Update(context.Background(), domain.KeySettings, func(json.RawMessage, bool) (json.RawMessage, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected updater error, got %v", err)
	}
	flush(t, c)
}

func TestRefreshAppliesMergePolicy(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	local.put(user, domain.KeyStudySessions, `[1,2,3]`)
	local.put(user, domain.KeyYearlyGoals, `[1,2,3]`)
	local.put(user, domain.KeyActiveSession, `{"startTime":"2026-03-01T10:00:00Z","accumulatedSeconds":0,"resumedAt":"2026-03-01T10:00:00Z"}`)
	local.put(user, domain.KeySettings, `{"theme":"light"}`)
	remote.doc["study-sessions"] = json.RawMessage(`[1,2,3,4,5]`)
	remote.doc["yearly-goals"] = json.RawMessage(`[1,2]`)
	remote.doc["active-study-session"] = json.RawMessage(`{"startTime":"2026-03-01T09:00:00Z","accumulatedSeconds":9999,"resumedAt":null}`)
	remote.doc["settings"] = json.RawMessage(`{"theme":"dark"}`)
	remote.doc["timer-settings"] = json.RawMessage(`{"focus":25}`)
	remote.doc["language-tracker"] = json.RawMessage(`[1]`)
	remote.doc["widgets"] = json.RawMessage(`{"pinned":true}`)
	c := newCoordinator(local, remote)

	report := c.Refresh(context.Background())
	if report.RemoteErr != nil {
		t.Fatalf("unexpected remote error: %v", report.RemoteErr)
	}
	want := map[string]string{
		"study-sessions":       `[1,2,3,4,5]`,
		"yearly-goals":         `[1,2,3]`,
		"active-study-session": `{"startTime":"2026-03-01T10:00:00Z","accumulatedSeconds":0,"resumedAt":"2026-03-01T10:00:00Z"}`,
		"settings":             `{"theme":"light"}`,
		"timer-settings":       `{"focus":25}`,
		"language-tracker":     `[1]`,
		"widgets":              `{"pinned":true}`,
	}
	for key, value := range want {
		if got := local.value(user, domain.LogicalKey(key)); got != value {
			t.Fatalf("%s: expected %s, got %s", key, value, got)
		}
	}
	if diff := cmp.Diff([]string{"language-tracker", "study-sessions", "timer-settings", "widgets"}, report.Adopted()); diff != "" {
		t.Fatalf("adopted keys mismatch (-want +got):\n%s", diff)
	}
	flush(t, c)
	if remote.saveCount() != 0 {
		t.Fatalf("adoption must not echo to remote, got %d saves", remote.saveCount())
	}
}

func TestRefreshKeepsKeysWhoseLocalReadFails(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	local.put(user, domain.KeyStudySessions, `[1]`)
	local.failGet = map[domain.LogicalKey]bool{domain.KeyStudySessions: true, "widgets": true}
	remote.doc["study-sessions"] = json.RawMessage(`[1,2,3]`)
	remote.doc["widgets"] = json.RawMessage(`{"pinned":true}`)
	remote.doc["courses"] = json.RawMessage(`["go"]`)
	c := newCoordinator(local, remote)

	report := c.Refresh(context.Background())
	reasons := map[string]string{}
	for _, o := range report.Outcomes {
		reasons[o.Key] = o.Decision + "/" + o.Reason
	}
	if reasons["study-sessions"] != "keep/"+domain.ReasonLocalReadFailed || reasons["widgets"] != "keep/"+domain.ReasonLocalReadFailed {
		t.Fatalf("unreadable keys must be kept: %v", reasons)
	}
	if diff := cmp.Diff([]string{"courses"}, report.Adopted()); diff != "" {
		t.Fatalf("adopted keys mismatch (-want +got):\n%s", diff)
	}
	if local.value(user, domain.KeyStudySessions) != `[1]` {
		t.Fatalf("unreadable local value overwritten: %s", local.value(user, domain.KeyStudySessions))
	}
	if _, err := c.Update(context.Background(), domain.KeyStudySessions, func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage(`[]`), nil
	}); !errors.Is(err, errDenied) {
		t.Fatalf("update over an unreadable value must fail, got %v", err)
	}
	flush(t, c)
	if remote.saveCount() != 0 {
		t.Fatalf("no remote save expected, got %d", remote.saveCount())
	}
}

func TestRefreshKeepsLocalWhenRemoteUnavailable(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	local.put(user, domain.KeyNotes, `["n"]`)
	remote.loadErr = apperrors.ErrRemoteUnavailable
	c := newCoordinator(local, remote)

	report := c.Refresh(context.Background())
	if !errors.Is(report.RemoteErr, apperrors.ErrRemoteUnavailable) {
		t.Fatalf("expected remote error in report, got %v", report.RemoteErr)
	}
	if len(report.Outcomes) != 0 {
		t.Fatalf("no merge expected without remote data, got %v", report.Outcomes)
	}
	if local.value(user, domain.KeyNotes) != `["n"]` {
		t.Fatalf("local must be untouched")
	}
}

func TestRefreshKeepsLocalWrittenDuringLoad(t *testing.T) {
	t.Parallel()
	local, remote := newFakeLocal(), newFakeRemote()
	local.put(user, domain.KeyNotes, `["a"]`)
	remote.doc["notes"] = json.RawMessage(`["x","y","z"]`)
	c := newCoordinator(local, remote)
	remote.onLoad = func() {
		if err := syncin.SetAs(context.Background(), c, domain.KeyNotes, []string{"a", "b"}); err != nil {
			t.Errorf("set during load: %v", err)
		}
	}

	report := c.Refresh(context.Background())
	flush(t, c)
	if got := local.value(user, domain.KeyNotes); got != `["a","b"]` {
		t.Fatalf("raced local write must survive, got %s", got)
	}
	var notes dto.KeyOutcome
	for _, o := range report.Outcomes {
		if o.Key == "notes" {
			notes = o
		}
	}
	if notes.Decision != "keep" || notes.Reason != domain.ReasonLocalChanged {
		t.Fatalf("unexpected outcome for notes: %+v", notes)
	}
}

func TestRefreshHonoursCallerContext(t *testing.T) {
	t.Parallel()
	remote := newFakeRemote()
	remote.loadGate = make(chan struct{})
	c := newCoordinator(newFakeLocal(), remote)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := c.Refresh(ctx)
	if !errors.Is(report.RemoteErr, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", report.RemoteErr)
	}
}

func TestClearStoresNull(t *testing.T) {
	t.Parallel()
	c := newCoordinator(newFakeLocal(), newFakeRemote())
	for i := 0; i < 3; i++ {
		if err := c.Clear(context.Background(), domain.LogicalKey(fmt.Sprintf("k%d", i))); err != nil {
			t.Fatalf("clear: %v", err)
		}
	}
	flush(t, c)
	if _, ok := c.Read(context.Background(), "k0"); !ok {
		t.Fatalf("cleared key should hold null")
	}
}
