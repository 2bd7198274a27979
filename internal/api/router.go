// Package api exposes the catalog over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/amckee/cantata/internal/backup"
	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/dedupe"
	"github.com/amckee/cantata/internal/indexer"
	"github.com/amckee/cantata/internal/logging"
	"github.com/amckee/cantata/internal/maintenance"
	"github.com/amckee/cantata/internal/reindexer"
	"github.com/amckee/cantata/internal/resolver"
)

// Deps bundles the services the HTTP router needs.
type Deps struct {
	Catalog     *catalog.Service
	Resolver    *resolver.Resolver
	Indexer     *indexer.Indexer
	Reindexer   *reindexer.Reindexer
	Deduper     *dedupe.Deduper
	Maintenance *maintenance.Service
	Backup      *backup.Service
	Log         *logging.Logger
	Logger      *slog.Logger
}

// Router wires the HTTP routes to the catalog services.
type Router struct {
	catalog     *catalog.Service
	resolver    *resolver.Resolver
	indexer     *indexer.Indexer
	reindexer   *reindexer.Reindexer
	deduper     *dedupe.Deduper
	maintenance *maintenance.Service
	backup      *backup.Service
	log         *logging.Logger
	logger      *slog.Logger
}

func NewRouter(deps Deps) *Router {
	return &Router{
		catalog:     deps.Catalog,
		resolver:    deps.Resolver,
		indexer:     deps.Indexer,
		reindexer:   deps.Reindexer,
		deduper:     deps.Deduper,
		maintenance: deps.Maintenance,
		backup:      deps.Backup,
		log:         deps.Log,
		logger:      deps.Logger,
	}
}

// Handler returns the configured HTTP handler with request logging applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", r.handleHealth)

	mux.HandleFunc("GET /api/v1/albums", r.handleListAlbums)
	mux.HandleFunc("GET /api/v1/albums/{id}", r.handleGetAlbum)
	mux.HandleFunc("GET /api/v1/artists/{id}", r.handleGetArtist)
	mux.HandleFunc("GET /api/v1/resolve", r.handleResolve)

	mux.HandleFunc("POST /api/v1/index/{source}/releases/{id}", r.handleIndexAlbum)
	mux.HandleFunc("POST /api/v1/index/{source}/artists/{id}", r.handleIndexArtist)
	mux.HandleFunc("POST /api/v1/reindex", r.handleReindex)
	mux.HandleFunc("POST /api/v1/dedupe", r.handleDedupe)

	mux.HandleFunc("GET /api/v1/backups", r.handleListBackups)
	mux.HandleFunc("POST /api/v1/backups", r.handleCreateBackup)

	mux.HandleFunc("GET /api/v1/maintenance/status", r.handleMaintenanceStatus)
	mux.HandleFunc("POST /api/v1/maintenance/optimize", r.handleMaintenanceOptimize)
	mux.HandleFunc("POST /api/v1/maintenance/vacuum", r.handleMaintenanceVacuum)

	mux.HandleFunc("GET /api/v1/logging/level", r.handleGetLogLevel)
	mux.HandleFunc("PUT /api/v1/logging/level", r.handleSetLogLevel)

	return requestLogging(r.logger)(mux)
}
