package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	sessionout "studydesk/internal/modules/session/adapter/out"
	sessiondto "studydesk/internal/modules/session/dto"
	sessionin "studydesk/internal/modules/session/port/in"
	"studydesk/internal/modules/session/service"
	"studydesk/internal/modules/session/usecase"
	syncoutadapter "studydesk/internal/modules/syncstate/adapter/out"
	"studydesk/internal/modules/syncstate/domain"
	syncout "studydesk/internal/modules/syncstate/port/out"
	syncservice "studydesk/internal/modules/syncstate/service"
	apperrors "studydesk/internal/platform/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu     sync.Mutex
	values []time.Time
	idx    int
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.values) {
		return f.values[len(f.values)-1]
	}
	v := f.values[f.idx]
	f.idx++
	return v
}

type fakeID struct {
	mu sync.Mutex
	n  int
}

func (f *fakeID) New() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return "rec-" + string(rune('0'+f.n))
}

type memRemote struct {
	mu  sync.Mutex
	doc syncout.Fields
}

func (m *memRemote) Load(context.Context, string) (syncout.Fields, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := syncout.Fields{}
	for k, v := range m.doc {
		out[k] = v
	}
	return out, nil
}

func (m *memRemote) Save(_ context.Context, _ string, fields syncout.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range fields {
		m.doc[k] = v
	}
	return nil
}

type harness struct {
	uc     sessionin.Usecase
	coord  *syncservice.Coordinator
	remote *memRemote
}

func newHarness(t *testing.T, clk *fakeClock) harness {
	t.Helper()
	cache, err := syncoutadapter.NewSQLiteLocalCache(filepath.Join(t.TempDir(), "studydesk.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	remote := &memRemote{doc: syncout.Fields{}}
	coord := syncservice.NewCoordinator("u1", domain.DefaultRegistry(), cache, remote, 0, nil)
	t.Cleanup(func() { _ = coord.Flush(context.Background()) })

	machine := service.NewMachine(clk, &fakeID{}, sessionout.NewSyncedStateStore(coord, nil), nil)
	return harness{uc: usecase.NewInteractor(machine, sessionout.NewMarkdownExporter()), coord: coord, remote: remote}
}

func (h harness) putRaw(t *testing.T, key domain.LogicalKey, value string) {
	t.Helper()
	if _, err := h.coord.Update(context.Background(), key, func(json.RawMessage, bool) (json.RawMessage, error) {
		return json.RawMessage(value), nil
	}); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func TestElapsedTimeIgnoresPausedGap(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{
		t0,
		t0.Add(10 * time.Second),
		t0.Add(70 * time.Second),
		t0.Add(95 * time.Second),
	}}
	h := newHarness(t, clk)
	ctx := context.Background()

	if _, err := h.uc.Start(ctx, sessiondto.StartInput{SubjectID: "math", SubjectName: "Math"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	paused, err := h.uc.Pause(ctx)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !paused.IsPaused || paused.ElapsedSeconds != 10 {
		t.Fatalf("expected paused at 10s, got %+v", paused)
	}
	if _, err := h.uc.Continue(ctx); err != nil {
		t.Fatalf("continue: %v", err)
	}
	record, err := h.uc.End(ctx)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if math.Abs(record.DurationMinutes-35.0/60) > 1e-9 {
		t.Fatalf("expected 35/60 minutes, got %v", record.DurationMinutes)
	}
	if record.SubjectName != "Math" || record.Label != "Math" {
		t.Fatalf("record lost subject: %+v", record)
	}
	if status := h.uc.Status(ctx); status.Active != nil {
		t.Fatalf("expected idle after end, got %+v", status)
	}
	if history := h.uc.History(ctx); len(history) != 1 || history[0].ID != record.ID {
		t.Fatalf("history mismatch: %+v", history)
	}
}

func TestTransitionsRejectInvalidStates(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{t0}}
	h := newHarness(t, clk)
	ctx := context.Background()

	if _, err := h.uc.Pause(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("pause idle: %v", err)
	}
	if _, err := h.uc.Continue(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("continue idle: %v", err)
	}
	if _, err := h.uc.End(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("end idle: %v", err)
	}
	if _, err := h.uc.Start(ctx, sessiondto.StartInput{TaskID: "t1"}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("task id without label: %v", err)
	}
	if _, err := h.uc.Start(ctx, sessiondto.StartInput{TaskID: "t1", TaskLabel: "Flashcards"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := h.uc.Start(ctx, sessiondto.StartInput{}); !errors.Is(err, apperrors.ErrActiveSessionExists) {
		t.Fatalf("second start: %v", err)
	}
	if _, err := h.uc.Continue(ctx); !errors.Is(err, apperrors.ErrSessionNotPaused) {
		t.Fatalf("continue running: %v", err)
	}
	if _, err := h.uc.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := h.uc.Pause(ctx); !errors.Is(err, apperrors.ErrSessionNotRunning) {
		t.Fatalf("pause paused: %v", err)
	}
	if _, err := h.uc.Start(ctx, sessiondto.StartInput{}); !errors.Is(err, apperrors.ErrActiveSessionExists) {
		t.Fatalf("start while paused: %v", err)
	}
}

func TestLegacyActiveSessionIsRunningFromStart(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{t0.Add(2 * time.Minute)}}
	h := newHarness(t, clk)
	ctx := context.Background()
	h.putRaw(t, domain.KeyActiveSession, `{"subjectId":"go","subjectName":"Go","taskId":null,"taskLabel":null,"startTime":"2026-03-02T09:00:00Z"}`)

	status := h.uc.Status(ctx)
	if status.Active == nil || status.IsPaused || status.ElapsedSeconds != 120 {
		t.Fatalf("expected running legacy session at 120s, got %+v", status)
	}
	record, err := h.uc.End(ctx)
	if err != nil {
		t.Fatalf("end legacy: %v", err)
	}
	if record.DurationMinutes != 2 {
		t.Fatalf("expected 2 minutes, got %v", record.DurationMinutes)
	}
}

func TestEndAppendsRecordThenClearsActive(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{t0}}
	h := newHarness(t, clk)
	ctx := context.Background()
	h.putRaw(t, domain.KeyStudySessions, `[{"legacy":"entry"}]`)

	if _, err := h.uc.Start(ctx, sessiondto.StartInput{SubjectName: "Chem"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	record, err := h.uc.End(ctx)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if math.Abs(record.DurationMinutes-1.0/60) > 1e-12 {
		t.Fatalf("expected floor duration, got %v", record.DurationMinutes)
	}
	raw, _ := h.coord.Read(ctx, domain.KeyActiveSession)
	if string(raw) != "null" {
		t.Fatalf("active session should be reset to null, got %s", raw)
	}
	log, _ := h.coord.Read(ctx, domain.KeyStudySessions)
	var entries []json.RawMessage
	if err := json.Unmarshal(log, &entries); err != nil || len(entries) != 2 {
		t.Fatalf("unreadable entries must be kept, got %s", log)
	}
	if history := h.uc.History(ctx); len(history) != 1 {
		t.Fatalf("history should skip unreadable entries, got %+v", history)
	}
	if err := h.coord.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if string(h.remote.doc["active-study-session"]) != "null" {
		t.Fatalf("remote should see the reset, got %s", h.remote.doc["active-study-session"])
	}
}

func TestEndDoesNotLogTheSameSessionTwice(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{t0}}
	h := newHarness(t, clk)
	ctx := context.Background()

	if _, err := h.uc.Start(ctx, sessiondto.StartInput{SubjectName: "Chem"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	// another window ended the same session but has not reset it yet
	h.putRaw(t, domain.KeyStudySessions, `[{"id":"other-1","subjectName":"Chem","startTime":"2026-03-02T09:00:00Z","endTime":"2026-03-02T09:30:00Z","durationMinutes":30}]`)

	record, err := h.uc.End(ctx)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if record.ID != "other-1" || record.DurationMinutes != 30 {
		t.Fatalf("expected the already logged record, got %+v", record)
	}
	if history := h.uc.History(ctx); len(history) != 1 {
		t.Fatalf("session logged twice: %+v", history)
	}
	if raw, _ := h.coord.Read(ctx, domain.KeyActiveSession); string(raw) != "null" {
		t.Fatalf("active session should be reset, got %s", raw)
	}
	if _, err := h.uc.End(ctx); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("second end: %v", err)
	}
}

func TestRemoteSnapshotNeverReplacesLocalSession(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{t0}}
	h := newHarness(t, clk)
	ctx := context.Background()
	if _, err := h.uc.Start(ctx, sessiondto.StartInput{SubjectName: "Physics"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := h.coord.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	h.remote.mu.Lock()
	h.remote.doc["active-study-session"] = json.RawMessage(`{"startTime":"2026-03-02T08:00:00Z","accumulatedSeconds":9999,"resumedAt":null}`)
	h.remote.mu.Unlock()

	report := h.coord.Refresh(ctx)
	if report.RemoteErr != nil {
		t.Fatalf("refresh: %v", report.RemoteErr)
	}
	status := h.uc.Status(ctx)
	if status.Active == nil || !status.Active.StartTime.Equal(t0) || status.IsPaused || status.Active.SubjectName != "Physics" {
		t.Fatalf("local session must be retained, got %+v", status.Active)
	}
}

func TestWatchStopsWhenContextEnds(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{t0, t0.Add(5 * time.Second)}}
	h := newHarness(t, clk)
	if _, err := h.uc.Start(context.Background(), sessiondto.StartInput{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	updates := h.uc.Watch(ctx, 5*time.Millisecond)
	first, ok := <-updates
	if !ok || first.Active == nil || first.ElapsedSeconds != 5 {
		t.Fatalf("unexpected first update %+v ok=%v", first, ok)
	}
	cancel()
	for range updates {
	}
	if _, err := h.uc.Pause(context.Background()); err != nil {
		t.Fatalf("watch must not change state: %v", err)
	}
}

func TestSummaryAndExport(t *testing.T) {
	t.Parallel()
	clk := &fakeClock{values: []time.Time{
		t0, t0.Add(30 * time.Minute),
		t0.Add(time.Hour), t0.Add(time.Hour + 15*time.Minute),
	}}
	h := newHarness(t, clk)
	ctx := context.Background()
	for _, subject := range []string{"Math", "Go"} {
		if _, err := h.uc.Start(ctx, sessiondto.StartInput{SubjectName: subject, TaskLabel: subject + " drills"}); err != nil {
			t.Fatalf("start %s: %v", subject, err)
		}
		if _, err := h.uc.End(ctx); err != nil {
			t.Fatalf("end %s: %v", subject, err)
		}
	}

	summary := h.uc.Summary(ctx, t0)
	if summary.Sessions != 2 || summary.Minutes != 45 || summary.Subjects[0].Subject != "Math" {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if later := h.uc.Summary(ctx, t0.Add(time.Minute)); later.Sessions != 1 {
		t.Fatalf("since filter ignored: %+v", later)
	}

	dir := t.TempDir()
	out, err := h.uc.Export(ctx, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(out.Paths) != 2 {
		t.Fatalf("expected 2 notes, got %v", out.Paths)
	}
	wantPath := filepath.Join(dir, "sessions", "2026", "03", "02", "090000-math-drills.md")
	if out.Paths[0] != wantPath {
		t.Fatalf("expected %s, got %s", wantPath, out.Paths[0])
	}
	note, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if !strings.HasPrefix(string(note), "---\n") || !strings.Contains(string(note), "duration_minutes: 30") || !strings.Contains(string(note), "subject: Math") {
		t.Fatalf("unexpected note:\n%s", note)
	}

	// Text written outside the generated block survives a second export.
	edited := string(note) + "\nreviewed chapter 3\n"
	if err := os.WriteFile(wantPath, []byte(edited), 0o644); err != nil {
		t.Fatalf("edit note: %v", err)
	}
	if _, err := h.uc.Export(ctx, dir); err != nil {
		t.Fatalf("re-export: %v", err)
	}
	again, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	if !strings.Contains(string(again), "reviewed chapter 3") || strings.Count(string(again), "<!-- studydesk:session:start -->") != 1 {
		t.Fatalf("re-export lost user text or duplicated the block:\n%s", again)
	}

	if err := h.uc.ClearHistory(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(h.uc.History(ctx)) != 0 {
		t.Fatalf("history should be empty after clear")
	}
	if _, err := h.uc.Export(ctx, " "); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("blank dir: %v", err)
	}
}
