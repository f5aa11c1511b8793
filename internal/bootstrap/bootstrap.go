package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	planninginadapter "studydesk/internal/modules/planner/adapter/in"
	planningoutadapter "studydesk/internal/modules/planner/adapter/out"
	plannerservice "studydesk/internal/modules/planner/service"
	plannerusecase "studydesk/internal/modules/planner/usecase"
	sessioninadapter "studydesk/internal/modules/session/adapter/in"
	sessionoutadapter "studydesk/internal/modules/session/adapter/out"
	sessionservice "studydesk/internal/modules/session/service"
	sessionusecase "studydesk/internal/modules/session/usecase"
	syncinadapter "studydesk/internal/modules/syncstate/adapter/in"
	syncoutadapter "studydesk/internal/modules/syncstate/adapter/out"
	syncdomain "studydesk/internal/modules/syncstate/domain"
	syncdto "studydesk/internal/modules/syncstate/dto"
	syncout "studydesk/internal/modules/syncstate/port/out"
	syncservice "studydesk/internal/modules/syncstate/service"
	"studydesk/internal/platform/clock"
	"studydesk/internal/platform/config"
	"studydesk/internal/platform/id"
	"studydesk/internal/platform/logging"
	uiapp "studydesk/internal/ui/app"
)

// App is everything one signed-in user works with. It is built by Login and
// torn down by Logout; nothing outlives it.
type App struct {
	UserID     string
	SyncCLI    syncinadapter.CLIHandler
	SessionCLI sessioninadapter.CLIHandler
	PlannerCLI planninginadapter.CLIHandler

	// LoginSync and LoginMigration are the reports from the login sequence.
	// LoginMigrationErr is set when the legacy upload failed; sign-in still
	// succeeds and the entries are retried at the next login.
	LoginSync         syncdto.SyncReport
	LoginMigration    syncdto.MigrationReport
	LoginMigrationErr error

	cache       *syncoutadapter.SQLiteLocalCache
	remote      syncout.RemoteStore
	coordinator *syncservice.Coordinator
	logger      *zap.Logger
}

// Login wires the modules for cfg.UserID, runs the legacy migration and then
// the initial sync. A remote that cannot be reached does not fail login.
func Login(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	cache, err := syncoutadapter.NewSQLiteLocalCache(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	remote, err := newRemoteStore(ctx, cfg)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	registry := syncdomain.DefaultRegistry()
	coordinator := syncservice.NewCoordinator(cfg.UserID, registry, cache, remote, cfg.Remote.Timeout, logger)
	migrator := syncservice.NewMigrator(cfg.UserID, cfg.AppPrefix, cfg.ExcludedKeys, registry, cache, cache, remote, logger)

	clk := clock.SystemClock{}
	ids := id.UUID{}

	sessionUC := sessionusecase.NewInteractor(
		sessionservice.NewMachine(clk, ids, sessionoutadapter.NewSyncedStateStore(coordinator, logger), logger),
		sessionoutadapter.NewMarkdownExporter(),
	)
	plannerUC := plannerusecase.NewInteractor(
		plannerservice.NewPlanService(clk, ids, planningoutadapter.NewSyncedPlanStore(coordinator, logger), logger),
	)

	app := &App{
		UserID:      cfg.UserID,
		SyncCLI:     syncinadapter.NewCLIHandler(coordinator, coordinator, migrator),
		SessionCLI:  sessioninadapter.NewCLIHandler(sessionUC),
		PlannerCLI:  planninginadapter.NewCLIHandler(plannerUC),
		cache:       cache,
		remote:      remote,
		coordinator: coordinator,
		logger:      logger.Named("app").With(zap.String("user", cfg.UserID)),
	}

	report, err := migrator.Run(ctx)
	if err != nil {
		app.logger.Warn("legacy migration failed; local data kept", zap.Error(err))
	}
	app.LoginMigration = report
	app.LoginMigrationErr = err
	app.LoginSync = coordinator.Refresh(ctx)
	app.logger.Debug("signed in",
		zap.Strings("adopted", app.LoginSync.Adopted()),
		zap.Strings("migrated", report.Fields),
	)
	return app, nil
}

// Logout waits for pending remote saves and releases storage handles.
func (a *App) Logout(ctx context.Context) error {
	if err := a.coordinator.Flush(ctx); err != nil {
		a.logger.Warn("pending remote saves abandoned", zap.Error(err))
	}
	var firstErr error
	if err := a.cache.Close(); err != nil {
		firstErr = fmt.Errorf("close local cache: %w", err)
	}
	if closer, ok := a.remote.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close remote store: %w", err)
		}
	}
	return firstErr
}

func newRemoteStore(ctx context.Context, cfg config.Config) (syncout.RemoteStore, error) {
	switch cfg.Remote.Driver {
	case config.DriverPostgres:
		store, err := syncoutadapter.NewPostgresRemoteStore(cfg.Remote.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres remote: %w", err)
		}
		return store, nil
	case config.DriverFirestore:
		store, err := syncoutadapter.NewFirestoreRemoteStore(ctx, cfg.Remote.ProjectID, cfg.Remote.Collection, cfg.Remote.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("open firestore remote: %w", err)
		}
		return store, nil
	default:
		return syncoutadapter.OfflineRemoteStore{}, nil
	}
}

// ImportLegacyExport copies a JSON object of legacy key/value pairs (a dump of
// the old browser storage) into the local cache, where the next login's
// migration picks it up. String values are stored as their raw text.
func ImportLegacyExport(ctx context.Context, cfg config.Config, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read export: %w", err)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return 0, fmt.Errorf("decode export %s: %w", path, err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return 0, fmt.Errorf("create data dir: %w", err)
	}
	cache, err := syncoutadapter.NewSQLiteLocalCache(cfg.DBPath)
	if err != nil {
		return 0, fmt.Errorf("open local cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value := []byte(entries[k])
		var text string
		if err := json.Unmarshal(value, &text); err == nil {
			value = []byte(text)
		}
		if err := cache.PutRaw(ctx, k, value); err != nil {
			return 0, fmt.Errorf("import %s: %w", k, err)
		}
	}
	return len(keys), nil
}

func RunTUI(app *App) error {
	model := uiapp.NewModel(app.UserID, app.SessionCLI, app.PlannerCLI, app.SyncCLI)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
