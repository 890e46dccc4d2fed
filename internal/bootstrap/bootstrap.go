package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	activityinadapter "tabtrail/internal/modules/activity/adapter/in"
	activityoutadapter "tabtrail/internal/modules/activity/adapter/out"
	activity "tabtrail/internal/modules/activity/domain"
	activityservice "tabtrail/internal/modules/activity/service"
	activityusecase "tabtrail/internal/modules/activity/usecase"
	classifierinadapter "tabtrail/internal/modules/classifier/adapter/in"
	classifieroutadapter "tabtrail/internal/modules/classifier/adapter/out"
	classifierservice "tabtrail/internal/modules/classifier/service"
	classifierusecase "tabtrail/internal/modules/classifier/usecase"
	realtimeinadapter "tabtrail/internal/modules/realtime/adapter/in"
	realtimeservice "tabtrail/internal/modules/realtime/service"
	scoring "tabtrail/internal/modules/scoring/domain"
	storageinadapter "tabtrail/internal/modules/storage/adapter/in"
	storageoutadapter "tabtrail/internal/modules/storage/adapter/out"
	storageout "tabtrail/internal/modules/storage/port/out"
	storageservice "tabtrail/internal/modules/storage/service"
	storageusecase "tabtrail/internal/modules/storage/usecase"
	"tabtrail/internal/platform/clock"
	"tabtrail/internal/platform/config"
	"tabtrail/internal/platform/id"
	"tabtrail/internal/platform/logging"
)

const (
	loopBuffer      = 1024
	shutdownTimeout = 10 * time.Second
)

// App is the wired engine. Nothing runs until Start.
type App struct {
	Config config.Config
	Logger zerolog.Logger

	ActivityCLI   activityinadapter.CLIHandler
	StorageCLI    storageinadapter.CLIHandler
	ClassifierCLI classifierinadapter.CLIHandler
	Handler       http.Handler

	// LoadedFrom names where the state came from: state, replica or fresh.
	LoadedFrom string

	loop       *activityusecase.Loop
	engine     *activityusecase.Interactor
	publisher  *realtimeservice.Publisher
	classifier *classifierservice.ClassifierService
	closers    []io.Closer
	started    bool
	loopDone   chan struct{}
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, loopDone: make(chan struct{})}
	if err := app.wire(ctx); err != nil {
		_ = app.closeStores()
		return nil, err
	}
	return app, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config
	clk := clock.SystemClock{}
	a.loop = activityusecase.NewLoop(loopBuffer)

	classifierSvc, classifierCLI := newClassifier(cfg, a.Logger)
	a.classifier = classifierSvc
	a.ClassifierCLI = classifierCLI

	records, err := storageoutadapter.NewSQLiteRecordStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	a.closers = append(a.closers, records)
	index, err := storageoutadapter.NewSQLiteSessionIndex(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open session index: %w", err)
	}
	a.closers = append(a.closers, index)
	replica := a.replicaStore(ctx, records)

	var store *activityservice.StateStore
	persist := storageservice.NewPersistService(storageservice.Deps{
		Clock:   clk,
		Post:    a.loop.Post,
		Call:    a.loop.Call,
		Source:  func() *activity.State { return store.State() },
		Records: records,
		Replica: replica,
		Index:   index,
		Logger:  logging.Component(a.Logger, "storage"),
		Config: storageservice.Config{
			QuotaBytes:        cfg.Storage.QuotaBytes,
			ReplicaQuotaBytes: cfg.Storage.ReplicaQuotaBytes,
		},
	})
	st, from := persist.Load(ctx)
	a.LoadedFrom = from
	store = activityservice.NewStateStore(st)
	a.Logger.Info().Str("from", from).Int("sessions", len(st.Sessions)).Msg("state loaded")

	activityLogger := logging.Component(a.Logger, "activity")
	lifecycle := activityservice.NewLifecycleService(
		store,
		id.UUID{},
		activity.ChainClassifier{classifierSvc, activity.DefaultRules()},
		activityservice.LifecycleConfig{
			SessionTimeout: time.Duration(cfg.Tracking.SessionTimeoutMinutes) * time.Minute,
			EventCapacity:  cfg.Tracking.EventCapacity,
			Preferences: scoring.Preferences{
				Sensitivity:        cfg.Scoring.Sensitivity,
				ProductiveDomains:  cfg.Scoring.ProductiveDomains,
				DistractingDomains: cfg.Scoring.DistractingDomains,
				Location:           time.Local,
			},
		},
		activityLogger,
	)
	tracker := activityservice.NewTrackerService(store, lifecycle, activityLogger)
	commands := activityservice.NewCommandService(store, lifecycle, tracker, activityLogger)

	a.publisher = realtimeservice.NewPublisher(realtimeservice.Deps{
		Clock:  clk,
		Post:   a.loop.Post,
		Call:   a.loop.Call,
		Source: store.State,
		Logger: logging.Component(a.Logger, "realtime"),
	})

	a.engine = activityusecase.NewInteractor(activityusecase.Deps{
		Loop:         a.loop,
		Clock:        clk,
		Store:        store,
		Lifecycle:    lifecycle,
		Tracker:      tracker,
		Commands:     commands,
		Persister:    persist,
		Broadcaster:  a.publisher,
		Host:         activityoutadapter.NewStaticHost(),
		Logger:       activityLogger,
		TickInterval: time.Duration(cfg.Tracking.TickSeconds) * time.Second,
	})
	persist.SetDiagnostics(a.engine)

	exporter := storageoutadapter.NewMarkdownNoteExporter(cfg.Storage.NotesDir, time.Local)
	storageUC := storageusecase.NewInteractor(a.engine, index, exporter)

	a.ActivityCLI = activityinadapter.NewCLIHandler(a.engine)
	a.StorageCLI = storageinadapter.NewCLIHandler(storageUC)

	mux := http.NewServeMux()
	activityinadapter.NewHTTPHandler(a.engine, logging.Component(a.Logger, "http")).Register(mux)
	realtimeinadapter.NewStreamHandler(a.publisher, logging.Component(a.Logger, "stream")).Register(mux)
	a.Handler = mux
	return nil
}

// replicaStore prefers redis when configured and falls back to a second key
// in the primary database.
func (a *App) replicaStore(ctx context.Context, records storageout.BlobStore) storageout.BlobStore {
	url := a.Config.Storage.RedisURL
	if url == "" {
		return records
	}
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	replica, err := storageoutadapter.NewRedisReplicaStore(dialCtx, url, "")
	if err != nil {
		a.Logger.Warn().Err(err).Msg("redis replica unavailable, using local database")
		return records
	}
	a.closers = append(a.closers, replica)
	return replica
}

func newClassifier(cfg config.Config, logger zerolog.Logger) (*classifierservice.ClassifierService, classifierinadapter.CLIHandler) {
	component := logging.Component(logger, "classifier")
	svc := classifierservice.NewClassifierService(
		classifieroutadapter.NewFileManifestStore(cfg.Plugins.ManifestPath),
		classifieroutadapter.NewGRPCHost(component),
		clock.SystemClock{},
		component,
		classifierservice.Config{},
	)
	return svc, classifierinadapter.NewCLIHandler(classifierusecase.NewInteractor(svc))
}

// NewClassifierCLI wires only the classifier host, for commands that do not
// need the engine. The returned close func stops plugin processes.
func NewClassifierCLI(ctx context.Context, cfg config.Config) (classifierinadapter.CLIHandler, func() error, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return classifierinadapter.CLIHandler{}, nil, err
	}
	svc, handler := newClassifier(cfg, logger)
	if err := svc.Start(ctx); err != nil {
		return classifierinadapter.CLIHandler{}, nil, err
	}
	return handler, svc.Close, nil
}

// Start runs the control flow, connects classifiers and syncs the engine.
func (a *App) Start(ctx context.Context) error {
	a.started = true
	go func() {
		defer close(a.loopDone)
		a.loop.Run(context.Background())
	}()
	if err := a.classifier.Start(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("classifiers disabled")
	}
	return a.engine.Start(ctx)
}

// Close flushes pending writes, ends observer streams and releases stores.
func (a *App) Close(ctx context.Context) error {
	if !a.started {
		a.loop.Stop()
		return errors.Join(a.classifier.Close(), a.closeStores())
	}
	var errs []error
	if err := a.engine.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown engine: %w", err))
	}
	if err := a.publisher.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close observers: %w", err))
	}
	a.loop.Stop()
	<-a.loopDone
	if err := a.classifier.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close classifiers: %w", err))
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Serve listens until ctx is done, then shuts the server and the engine down.
func (a *App) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:              a.Config.Listen,
		Handler:           a.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("listen", a.Config.Listen).Msg("serving")
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Observer streams are hijacked connections; close them before the
	// server waits on its handlers.
	if closeErr := a.publisher.Close(shutdownCtx); closeErr != nil {
		a.Logger.Warn().Err(closeErr).Msg("close observers")
	}
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("shutdown http: %w", shutdownErr)
	}
	if closeErr := a.Close(shutdownCtx); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
