// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/storybundle/internal/api"
	"github.com/starford/storybundle/internal/apperr"
	"github.com/starford/storybundle/internal/bundle"
	"github.com/starford/storybundle/internal/bundleservice"
	"github.com/starford/storybundle/internal/catalog"
	"github.com/starford/storybundle/internal/iiif"
	"github.com/starford/storybundle/internal/mcpserver"
	"github.com/starford/storybundle/internal/models"
	"github.com/starford/storybundle/internal/render"
	"github.com/starford/storybundle/internal/sse"
	"github.com/starford/storybundle/internal/storage"
	"github.com/starford/storybundle/internal/versions"
	"github.com/starford/storybundle/internal/watch"
)

// BuildRequest selects what a build run produces.
type BuildRequest struct {
	Version    string
	BundleOnly bool
	IIIFOnly   bool
}

// runtime holds the components shared by every command.
type runtime struct {
	cfg      *Config
	logger   *slog.Logger
	store    *storage.FS
	db       *catalog.DB
	registry *iiif.Registry
	urls     iiif.URLs
	builder  *bundle.Builder
	renderer *render.Renderer
	pyramids iiif.PyramidBuilder
}

func setup(opts []Option) (*runtime, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("content_root", cfg.Content.Root),
		slog.String("base_url", cfg.Content.BaseURL),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	store, err := storage.NewFS(cfg.Content.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := catalog.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}

	// A broken registry still yields an empty one; bundles build without
	// derived IIIF fields.
	registry, err := iiif.LoadRegistry(store, cfg.Layout.RegistryPath())
	if err != nil {
		logger.Warn("registry load failed", slog.String("path", cfg.Layout.RegistryPath()), slog.String("error", err.Error()))
	}

	urls := iiif.NewURLs(cfg.Content.BaseURL)
	renderer := render.New(render.NewGoldmark())
	assembler := &bundle.Assembler{
		Store:    store,
		Renderer: renderer,
		Deriver: &iiif.Deriver{
			URLs:     urls,
			Registry: registry,
			Sizes:    iiif.FileSizes{Store: store, Dir: cfg.Layout.ObjectsPath()},
		},
		Layout: cfg.Layout.BundleLayout(),
		Meta: models.Meta{
			BundleFormat: cfg.Bundle.Format,
			Generator:    cfg.Bundle.Generator,
			Source:       cfg.Bundle.Source,
			Description:  cfg.Bundle.Description,
			License:      cfg.Bundle.License,
		},
		IIIFBaseURL: urls.ObjectsBase(),
		Now:         app.now,
	}

	pyramids := app.pyramids
	if pyramids == nil {
		pyramids = iiif.VipsBuilder{
			Bin:         cfg.IIIF.VipsPath,
			TileSize:    cfg.IIIF.TileSize,
			ServiceBase: urls.ObjectsBase(),
		}
	}

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		db:       db,
		registry: registry,
		urls:     urls,
		renderer: renderer,
		pyramids: pyramids,
		builder: &bundle.Builder{
			Store:     store,
			Assembler: assembler,
			DemosDir:  cfg.Layout.DemosDir,
			Languages: cfg.Content.Languages,
			Parallel:  cfg.Bundle.Parallel,
			Logger:    logger,
		},
	}, nil
}

func (rt *runtime) service(opts ...bundleservice.Option) *bundleservice.Service {
	opts = append([]bundleservice.Option{bundleservice.WithLogger(rt.logger)}, opts...)
	return bundleservice.NewService(rt.store, rt.db, rt.builder, rt.renderer, opts...)
}

// reportWarnings logs every collected warning once, at the end of a run.
func (rt *runtime) reportWarnings(warnings []string) {
	for _, w := range warnings {
		rt.logger.Warn("build warning", slog.String("message", w))
	}
	if len(warnings) > 0 {
		rt.logger.Info("build finished with warnings", slog.Int("count", len(warnings)))
	}
}

// Build runs the IIIF stage (tiles, then manifest validation) and the bundle
// stage (bundles, catalog, version index) as selected by req. Warnings never
// fail the run; an invalid manifest, a missing version directory or a version
// without content does.
func Build(ctx context.Context, req BuildRequest, opts ...Option) error {
	if req.BundleOnly && req.IIIFOnly {
		return errors.New("cannot combine bundle-only and iiif-only")
	}
	if req.Version == "" && !req.IIIFOnly {
		return errors.New("version is required unless building IIIF only")
	}

	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	var warnings []string
	var failed error

	if !req.BundleOnly {
		iw, err := rt.buildIIIF(ctx)
		if err != nil {
			return err
		}
		if len(iw.invalid) > 0 {
			failed = fmt.Errorf("%w: %d manifest(s)", apperr.ErrInvalidManifest, len(iw.invalid))
		}
		warnings = append(warnings, iw.tiles...)
		warnings = append(warnings, iw.invalid...)
	}

	if !req.IIIFOnly {
		rt.logger.Info("bundle: building version", slog.String("version", req.Version))
		res, err := rt.service().Build(ctx, req.Version)
		if res != nil {
			warnings = append(warnings, res.Warnings()...)
		}
		if err != nil {
			rt.reportWarnings(warnings)
			return err
		}
	}

	rt.reportWarnings(warnings)
	return failed
}

type iiifWarnings struct {
	tiles   []string
	invalid []string
}

func (rt *runtime) buildIIIF(ctx context.Context) (iiifWarnings, error) {
	var out iiifWarnings
	cfg := rt.cfg

	tiler := &iiif.Tiler{
		Store:      rt.store,
		Builder:    rt.pyramids,
		URLs:       rt.urls,
		Dir:        cfg.Layout.IIIFDir,
		ObjectsDir: cfg.Layout.ObjectsPath(),
		Languages:  cfg.Content.Languages,
		Force:      cfg.IIIF.Force,
		Logger:     rt.logger,
	}
	rep, err := tiler.Run(ctx, rt.registry)
	if err != nil {
		return out, fmt.Errorf("iiif tiles: %w", err)
	}
	out.tiles = rep.Warnings
	rt.logger.Info("tiles: done",
		slog.Int("processed", rep.Processed),
		slog.Int("skipped", rep.Skipped))

	if cfg.IIIF.SkipValidation {
		return out, nil
	}
	var override []byte
	if cfg.IIIF.SchemaPath != "" {
		if override, err = os.ReadFile(cfg.IIIF.SchemaPath); err != nil {
			return out, fmt.Errorf("read manifest schema: %w", err)
		}
	}
	validator, err := iiif.NewSchemaValidator(override)
	if err != nil {
		return out, err
	}
	out.invalid, err = iiif.ValidateManifests(rt.store, cfg.Layout.ObjectsPath(), validator)
	if err != nil {
		return out, fmt.Errorf("validate manifests: %w", err)
	}
	return out, nil
}

// Versions rewrites the version index from the bundles on disk.
func Versions(_ context.Context, opts ...Option) ([]string, error) {
	rt, err := setup(opts)
	if err != nil {
		return nil, err
	}
	defer rt.db.Close()

	vs, err := versions.Build(rt.store, rt.cfg.Layout.DemosDir, rt.cfg.Content.Languages, rt.cfg.Layout.BundleFile)
	if err != nil {
		return nil, err
	}
	rt.logger.Info("versions: index written", slog.Any("versions", vs))
	return vs, nil
}

// Serve builds version, then serves the preview API and rebuilds whenever its
// source tree changes, until ctx is cancelled or a signal arrives.
func Serve(ctx context.Context, version string, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()
	cfg, logger := rt.cfg, rt.logger

	versionDir := bundle.VersionDir(cfg.Layout.DemosDir, version)
	if !rt.store.Exists(versionDir) {
		return fmt.Errorf("%w: %s", apperr.ErrVersionNotFound, versionDir)
	}
	watchRoot, err := rt.store.Abs(versionDir)
	if err != nil {
		return err
	}

	// Run initial sync.
	if err := catalog.Sync(rt.db, rt.store, cfg.Layout.DemosDir, cfg.Layout.BundleFile, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := rt.service(bundleservice.WithPublisher(broker))
	rebuild := func(ctx context.Context) {
		res, err := svc.Build(ctx, version)
		if res != nil {
			rt.reportWarnings(res.Warnings())
		}
		if err != nil {
			logger.Warn("rebuild failed", slog.String("version", version), slog.String("error", err.Error()))
		}
	}
	rebuild(ctx)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Tiles and manifests, so the default base_url resolves against the preview.
	iiifRoot, err := rt.store.Abs(cfg.Layout.IIIFDir)
	if err != nil {
		return err
	}
	r.Handle("/iiif/*", http.StripPrefix("/iiif/", http.FileServer(http.Dir(iiifRoot))))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start source watcher with rebuild callback.
	g.Go(func() error {
		return watch.Watch(gCtx, watchRoot, watch.DefaultDebounce, logger, rebuild)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server",
			slog.String("address", cfg.App.HTTP.Address()),
			slog.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// MCP serves the bundle tools over stdio until stdin closes.
func MCP(_ context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.service()).ServeStdio()
}
