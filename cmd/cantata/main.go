package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amckee/cantata/internal/api"
	"github.com/amckee/cantata/internal/backup"
	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/config"
	"github.com/amckee/cantata/internal/database"
	"github.com/amckee/cantata/internal/dedupe"
	"github.com/amckee/cantata/internal/indexer"
	"github.com/amckee/cantata/internal/logging"
	"github.com/amckee/cantata/internal/maintenance"
	"github.com/amckee/cantata/internal/reindexer"
	"github.com/amckee/cantata/internal/resolver"
	"github.com/amckee/cantata/internal/source"
	"github.com/amckee/cantata/internal/source/discogs"
	"github.com/amckee/cantata/internal/source/musicbrainz"
	"github.com/amckee/cantata/internal/source/spotify"
	"github.com/amckee/cantata/internal/version"
)

func main() {
	// Handle subcommands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "dedupe":
			if err := runDedupe(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	configPath := os.Getenv("CANTATA_CONFIG_PATH")
	if configPath == "" {
		configPath = "/data/config.yaml"
	}
	return config.Load(configPath)
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Dir:    cfg.Logging.Dir,
	})
	defer log.Close() //nolint:errcheck
	logger := log.Logger
	slog.SetDefault(logger)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	schemaVersion, err := database.SchemaVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	logger.Info("database ready",
		slog.String("path", cfg.Database.Path),
		slog.Int64("schema_version", schemaVersion))

	// Source adapters
	rateLimiters := source.NewRateLimiterMap()
	registry := source.NewRegistry()
	registry.Register(musicbrainz.New(rateLimiters, logger))
	if cfg.Sources.DiscogsToken != "" {
		registry.Register(discogs.New(rateLimiters, logger, cfg.Sources.DiscogsToken))
	} else {
		logger.Warn("discogs token not configured; discogs source disabled")
	}
	if cfg.Sources.SpotifyClientID != "" && cfg.Sources.SpotifyClientSecret != "" {
		registry.Register(spotify.New(rateLimiters, logger, cfg.Sources.SpotifyClientID, cfg.Sources.SpotifyClientSecret))
	} else {
		logger.Warn("spotify credentials not configured; spotify source disabled")
	}

	// Catalog services
	cat := catalog.NewService(db)
	res := resolver.New(cat, logger)
	ix := indexer.New(cat, res, registry, logger)
	rx := reindexer.New(cat, ix, registry, logger, reindexer.Config{
		Tick:       cfg.Reindexer.Tick,
		MaxRetries: cfg.Reindexer.MaxRetries,
		Interval:   cfg.Reindexer.Interval,
	})
	dd := dedupe.New(cat, logger)
	mnt := maintenance.New(db, cfg.Database.Path, logger)

	backupDir := cfg.Backup.Dir
	if backupDir == "" {
		backupDir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
	}
	bk := backup.New(db, backupDir, cfg.Backup.Retention, logger)

	logger.Info("starting cantata", slog.String("version", version.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go rx.Run(ctx)
	go mnt.StartScheduler(ctx, 24*time.Hour)
	if cfg.Backup.Enabled {
		go bk.StartScheduler(ctx, cfg.Backup.Interval)
	}

	router := api.NewRouter(api.Deps{
		Catalog:     cat,
		Resolver:    res,
		Indexer:     ix,
		Reindexer:   rx,
		Deduper:     dd,
		Maintenance: mnt,
		Backup:      bk,
		Log:         log,
		Logger:      logger,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// runDedupe merges duplicate albums offline and prints a report.
func runDedupe(args []string) error {
	fs := flag.NewFlagSet("dedupe", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "report duplicates without merging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(logging.Options{Level: cfg.Logging.Level, Format: "text"})
	defer log.Close() //nolint:errcheck

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	cat := catalog.NewService(db)
	dd := dedupe.New(cat, log.Logger)

	result, err := dd.Run(context.Background(), *dryRun)
	if err != nil {
		return fmt.Errorf("dedupe run: %w", err)
	}

	if *dryRun {
		fmt.Println("dry run: no changes were made")
	}
	fmt.Print(dedupe.Report(result))
	return nil
}
