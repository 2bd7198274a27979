package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/logging"
	"github.com/amckee/cantata/internal/resolver"
	"github.com/amckee/cantata/internal/source"
	"github.com/amckee/cantata/internal/version"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleListAlbums(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	albums, err := r.catalog.ListRecentAlbums(req.Context(), limit)
	if err != nil {
		r.logger.Error("listing albums", "error", err)
		writeError(w, http.StatusInternalServerError, "listing albums")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"albums": albums})
}

// albumResponse is an album plus its tracks.
type albumResponse struct {
	*catalog.Album
	Tracks []catalog.Track `json:"tracks"`
}

func (r *Router) handleGetAlbum(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	album, err := r.catalog.GetAlbumByID(req.Context(), id)
	if err != nil {
		r.logger.Error("fetching album", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "fetching album")
		return
	}
	if album == nil {
		writeError(w, http.StatusNotFound, "album not found")
		return
	}

	tracks, err := r.catalog.ListTracksByAlbum(req.Context(), id)
	if err != nil {
		r.logger.Error("listing tracks", "album_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "listing tracks")
		return
	}

	writeJSON(w, http.StatusOK, albumResponse{Album: album, Tracks: tracks})
}

func (r *Router) handleGetArtist(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	artist, err := r.catalog.GetArtistByID(req.Context(), id)
	if err != nil {
		r.logger.Error("fetching artist", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "fetching artist")
		return
	}
	if artist == nil {
		writeError(w, http.StatusNotFound, "artist not found")
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

// handleResolve answers two kinds of lookup: by external id (optionally
// scoped to one source), or by fuzzy artist/title match.
func (r *Router) handleResolve(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()

	if externalID := q.Get("id"); externalID != "" {
		src := source.Name(q.Get("source"))
		if src != "" && !src.Valid() {
			writeError(w, http.StatusBadRequest, "unknown source")
			return
		}
		album, err := r.resolver.FindBySourceID(req.Context(), src, externalID)
		if err != nil {
			r.logger.Error("resolving external id", "source", src, "id", externalID, "error", err)
			writeError(w, http.StatusInternalServerError, "resolving external id")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"album": album})
		return
	}

	artist := q.Get("artist")
	title := q.Get("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title or id is required")
		return
	}

	album, score, err := r.resolver.FindMatchingAlbum(req.Context(), artist, title, resolver.MatchThreshold)
	if err != nil {
		r.logger.Error("resolving album", "artist", artist, "title", title, "error", err)
		writeError(w, http.StatusInternalServerError, "resolving album")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"album": album,
		"score": score,
	})
}

func (r *Router) handleIndexAlbum(w http.ResponseWriter, req *http.Request) {
	src := source.Name(req.PathValue("source"))
	if !src.Valid() {
		writeError(w, http.StatusBadRequest, "unknown source")
		return
	}

	album, err := r.indexer.IndexAlbum(req.Context(), src, req.PathValue("id"))
	if err != nil {
		var unavailable *source.ErrUnavailable
		if errors.As(err, &unavailable) {
			// Serve whatever canonical data we already hold for this id.
			if existing, lookupErr := r.catalog.GetAlbumBySourceID(req.Context(), src, req.PathValue("id")); lookupErr == nil && existing != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"error": "upstream source unavailable",
					"album": existing,
				})
				return
			}
		}
		r.writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, album)
}

func (r *Router) handleIndexArtist(w http.ResponseWriter, req *http.Request) {
	src := source.Name(req.PathValue("source"))
	if !src.Valid() {
		writeError(w, http.StatusBadRequest, "unknown source")
		return
	}

	artist, err := r.indexer.IndexArtist(req.Context(), src, req.PathValue("id"))
	if err != nil {
		r.writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artist)
}

func (r *Router) handleReindex(w http.ResponseWriter, req *http.Request) {
	// The sweep can take a while against upstream sources, so it runs
	// detached from the request.
	go r.reindexer.Sweep(context.WithoutCancel(req.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sweep started"})
}

func (r *Router) handleDedupe(w http.ResponseWriter, req *http.Request) {
	dryRun := req.URL.Query().Get("dry_run") == "true"

	result, err := r.deduper.Run(req.Context(), dryRun)
	if err != nil {
		r.logger.Error("dedupe run", "error", err)
		writeError(w, http.StatusInternalServerError, "dedupe run failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleListBackups(w http.ResponseWriter, req *http.Request) {
	backups, err := r.backup.List()
	if err != nil {
		r.logger.Error("listing backups", "error", err)
		writeError(w, http.StatusInternalServerError, "listing backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": backups})
}

func (r *Router) handleCreateBackup(w http.ResponseWriter, req *http.Request) {
	info, err := r.backup.Snapshot(req.Context())
	if err != nil {
		r.logger.Error("creating backup", "error", err)
		writeError(w, http.StatusInternalServerError, "creating backup")
		return
	}
	if err := r.backup.Prune(); err != nil {
		r.logger.Warn("pruning backups", "error", err)
	}
	writeJSON(w, http.StatusCreated, info)
}

func (r *Router) handleMaintenanceStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.maintenance.Status(req.Context())
	if err != nil {
		r.logger.Error("maintenance status", "error", err)
		writeError(w, http.StatusInternalServerError, "reading maintenance status")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (r *Router) handleMaintenanceOptimize(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Optimize(req.Context()); err != nil {
		r.logger.Error("optimize", "error", err)
		writeError(w, http.StatusInternalServerError, "optimize failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMaintenanceVacuum(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Vacuum(req.Context()); err != nil {
		r.logger.Error("vacuum", "error", err)
		writeError(w, http.StatusInternalServerError, "vacuum failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleGetLogLevel(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"level": r.log.Level()})
}

func (r *Router) handleSetLogLevel(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !logging.ValidLevel(body.Level) {
		writeError(w, http.StatusBadRequest, "level must be one of debug, info, warn, error")
		return
	}

	r.log.SetLevel(body.Level)
	r.logger.Info("log level changed", "level", body.Level)
	writeJSON(w, http.StatusOK, map[string]string{"level": body.Level})
}

// writeSourceError maps upstream source errors onto HTTP statuses.
func (r *Router) writeSourceError(w http.ResponseWriter, err error) {
	var notFound *source.ErrNotFound
	var unavailable *source.ErrUnavailable
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &unavailable):
		r.logger.Error("upstream unavailable", "error", err)
		writeError(w, http.StatusBadGateway, "upstream source unavailable")
	default:
		r.logger.Error("index request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "index request failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
