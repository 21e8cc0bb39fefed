package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"orate-server-go/internal/domain/auth"
	"orate-server-go/internal/domain/session/store"
	platformconfig "orate-server-go/internal/platform/config"
	platformerrors "orate-server-go/internal/platform/errors"
	platformlogging "orate-server-go/internal/platform/logging"
	platformstorage "orate-server-go/internal/platform/storage"
	httptransport "orate-server-go/internal/transport/http"
	httpwebapi "orate-server-go/internal/transport/http/webapi"
	"orate-server-go/internal/transport/ws"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	configPath string
	config     *platformconfig.Config
	logger     *platformlogging.Logger
	store      store.Store
	tokens     *auth.SessionToken
}

// Options tunes the bootstrap sequence.
type Options struct {
	ConfigPath string
}

// Run drives the whole service lifecycle: configuration, dependency
// initialisation, server startup and graceful shutdown.
func Run(ctx context.Context, opts Options) error {
	state := &appState{configPath: opts.ConfigPath}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := state.store.Close(closeCtx); err != nil {
			logger.WarnTag("Bootstrap", "session store did not close cleanly: %v", err)
		}
	}()

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("Bootstrap", "all services stopped")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "initialisation order:")
	for _, step := range steps {
		logger.InfoTag("Bootstrap", "  %s", step.Title)
	}
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph lists the ordered initialisation steps and their dependencies.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"config:load", "logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "store:init-session",
			Title:     "Initialise session store",
			DependsOn: []string{"storage:init-database"},
			Kind:      platformerrors.KindStorage,
			Execute:   initSessionStoreStep,
		},
		{
			ID:        "auth:init-tokens",
			Title:     "Initialise token issuer",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initTokensStep,
		},
		{
			ID:        "eventbus:register-handlers",
			Title:     "Register event handlers",
			DependsOn: []string{"store:init-session", "logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   registerEventHandlersStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader(state.configPath).Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load configuration", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialise logging provider", err)
	}

	state.logger = logger
	logger.InfoTag("Bootstrap", "logging ready [%s] config=%s", state.config.Log.Level, state.configPath)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if err := platformstorage.InitDatabase(state.config.Session.Store.SQLite.DSN); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialise database", err)
	}
	return nil
}

func initSessionStoreStep(_ context.Context, state *appState) error {
	st, err := buildSessionStore(state.config, state.logger)
	if err != nil {
		return err
	}
	state.store = st
	return nil
}

func initTokensStep(_ context.Context, state *appState) error {
	cfg := state.config.Server.Auth
	if cfg.Enabled && strings.TrimSpace(cfg.Secret) == "" {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"auth:init-tokens",
			"auth is enabled but no secret is configured",
		)
	}
	state.tokens = auth.NewSessionToken(cfg.Secret).WithTTL(cfg.TTL)
	return nil
}

func registerEventHandlersStep(_ context.Context, state *appState) error {
	return registerEventHandlers(state.store, state.logger)
}

// buildSessionStore resolves the configured store driver, falling back to the
// in-memory driver for unknown types.
func buildSessionStore(config *platformconfig.Config, logger *platformlogging.Logger) (store.Store, error) {
	storeType := strings.ToLower(strings.TrimSpace(config.Session.Store.Type))
	storeCfg := store.Config{
		Driver: storeType,
		TTL:    config.Session.Store.Expiry,
	}

	switch storeCfg.Driver {
	case "", store.DriverMemory:
		storeCfg.Driver = store.DriverMemory
		storeCfg.Memory = &store.MemoryConfig{}
	case store.DriverSQLite, "database":
		storeCfg.Driver = store.DriverSQLite
		storeCfg.SQLite = &store.SQLiteConfig{
			DSN: config.Session.Store.SQLite.DSN,
		}
	case store.DriverRedis:
		storeCfg.Redis = &store.RedisConfig{
			Addr:     config.Session.Store.Redis.Addr,
			Username: config.Session.Store.Redis.Username,
			Password: config.Session.Store.Redis.Password,
			DB:       config.Session.Store.Redis.DB,
			Prefix:   config.Session.Store.Redis.Prefix,
		}
		if storeCfg.Redis.Addr == "" {
			return nil, platformerrors.New(
				platformerrors.KindBootstrap,
				"store:init-session",
				"redis store addr is required",
			)
		}
	default:
		logger.WarnTag("Storage", "unsupported store type %s, falling back to memory", storeType)
		storeCfg.Driver = store.DriverMemory
		storeCfg.Memory = &store.MemoryConfig{}
	}

	deps := store.Dependencies{
		SQLiteDB: platformstorage.GetDB(),
	}
	st, err := store.New(storeCfg, deps)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "store:init-session", "failed to create session store", err)
	}

	logger.InfoTag("Storage", "session store ready driver=%s", storeCfg.Driver)
	return st, nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	wsServer, err := startTransportServer(state, g, groupCtx)
	if err != nil {
		return fmt.Errorf("start websocket transport: %w", err)
	}

	if state.config.Web.Enabled {
		if _, err := startHTTPServer(state, wsServer, g, groupCtx); err != nil {
			return fmt.Errorf("start http transport: %w", err)
		}
	}
	return nil
}

func startTransportServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*ws.Server, error) {
	config := state.config
	logger := state.logger

	hub := ws.NewHub(logger)
	router := ws.NewRouter(hub, logger, ws.RouterOptions{})

	addr := config.Server.IP + ":" + strconv.Itoa(config.Server.Port)
	server := ws.NewServer(ws.ServerConfig{Addr: addr, Path: "/"}, router, hub, logger)
	server.SetHandlerBuilder(ws.NewHandlerBuilder(config, logger, state.tokens, sharedBus()))

	g.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			if groupCtx.Err() != nil {
				return nil
			}
			logger.ErrorTag("WebSocket", "server stopped: %v", err)
			return err
		}
		return nil
	})

	return server, nil
}

func startHTTPServer(state *appState, wsServer *ws.Server, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	webapiService, err := httpwebapi.NewService(config, logger, state.store, state.tokens)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:new-service", "failed to create webapi service", err)
	}
	webapiService.SetCounts(wsServer.Counts)

	if err := webapiService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "webapi:register-routes", "failed to register webapi routes", err)
	}

	httpRouter.Engine.NoRoute(func(c *gin.Context) {
		httptransport.RespondError(c, http.StatusNotFound, "not found", nil)
	})

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: httpRouter.Engine,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "api listening on http://localhost:%d/api", config.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "shutdown requested: %v", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services shut down cleanly")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("Bootstrap", "shutdown timed out")
		return errors.New("shutdown timed out")
	}
	return nil
}
