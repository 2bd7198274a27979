package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amckee/cantata/internal/backup"
	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/database"
	"github.com/amckee/cantata/internal/dedupe"
	"github.com/amckee/cantata/internal/indexer"
	"github.com/amckee/cantata/internal/logging"
	"github.com/amckee/cantata/internal/maintenance"
	"github.com/amckee/cantata/internal/reindexer"
	"github.com/amckee/cantata/internal/resolver"
	"github.com/amckee/cantata/internal/source"
)

type fakeClient struct {
	name     source.Name
	releases map[string]*source.Release
}

func (f *fakeClient) Name() source.Name { return f.name }

func (f *fakeClient) SearchReleases(_ context.Context, _ string, _ int) ([]source.ReleaseSearchResult, error) {
	return nil, nil
}

func (f *fakeClient) GetRelease(_ context.Context, id string) (*source.Release, error) {
	rel, ok := f.releases[id]
	if !ok {
		return nil, &source.ErrNotFound{Source: f.name, ID: id}
	}
	if rel == nil {
		return nil, &source.ErrUnavailable{Source: f.name, Cause: context.DeadlineExceeded}
	}
	return rel, nil
}

func (f *fakeClient) GetArtist(_ context.Context, id string) (*source.Artist, error) {
	return nil, &source.ErrNotFound{Source: f.name, ID: id}
}

func (f *fakeClient) SearchArtists(_ context.Context, _ string) ([]source.ArtistSearchResult, error) {
	return nil, nil
}

func setupServer(t *testing.T) (*httptest.Server, *catalog.Service) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "cantata.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mb := &fakeClient{
		name: source.NameMusicBrainz,
		releases: map[string]*source.Release{
			"mb-ok": {
				ID:     "mb-ok",
				Title:  "OK Computer",
				Artist: "Radiohead",
				Media: []source.Medium{{Tracks: []source.ReleaseTrack{
					{ID: "mb-t1", Title: "Airbag", Position: "1"},
					{ID: "mb-t2", Title: "Paranoid Android", Position: "2"},
				}}},
			},
			"mb-down": nil,
		},
	}
	registry := source.NewRegistry()
	registry.Register(mb)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.NewService(db)
	res := resolver.New(cat, logger)
	ix := indexer.New(cat, res, registry, logger)
	rx := reindexer.New(cat, ix, registry, logger, reindexer.Config{})
	dd := dedupe.New(cat, logger)
	mnt := maintenance.New(db, dbPath, logger)
	bk := backup.New(db, filepath.Join(t.TempDir(), "backups"), 3, logger)

	log := logging.New(logging.Options{Level: "error", Format: "text"})
	t.Cleanup(func() { _ = log.Close() })

	router := NewRouter(Deps{
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

	srv := httptest.NewServer(router.Handler())
	t.Cleanup(srv.Close)
	return srv, cat
}

func getJSON(t *testing.T, srv *httptest.Server, path string, wantStatus int, v any) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d", path, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func postJSON(t *testing.T, srv *httptest.Server, path, body string, wantStatus int, v any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s: status %d, want %d", path, resp.StatusCode, wantStatus)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)

	var body map[string]string
	getJSON(t, srv, "/api/v1/health", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["version"] == "" {
		t.Error("expected version to be set")
	}
}

func TestIndexAlbumEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	var album catalog.Album
	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/mb-ok", "", http.StatusOK, &album)
	if album.Title != "OK Computer" {
		t.Errorf("expected OK Computer, got %q", album.Title)
	}
	if album.TrackCount != 2 {
		t.Errorf("expected 2 tracks, got %d", album.TrackCount)
	}

	var fetched struct {
		catalog.Album
		Tracks []catalog.Track `json:"tracks"`
	}
	getJSON(t, srv, "/api/v1/albums/"+album.ID, http.StatusOK, &fetched)
	if len(fetched.Tracks) != 2 {
		t.Errorf("expected 2 tracks in album response, got %d", len(fetched.Tracks))
	}
}

func TestIndexAlbumNotFound(t *testing.T) {
	srv, _ := setupServer(t)
	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/nope", "", http.StatusNotFound, nil)
}

func TestIndexAlbumUnavailableServesCachedData(t *testing.T) {
	srv, cat := setupServer(t)

	seeded := &catalog.Album{Title: "In Rainbows", Artist: "Radiohead", MusicBrainzID: "mb-down"}
	if err := cat.CreateAlbum(context.Background(), seeded); err != nil {
		t.Fatalf("seeding album: %v", err)
	}

	var body struct {
		Error string         `json:"error"`
		Album *catalog.Album `json:"album"`
	}
	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/mb-down", "", http.StatusServiceUnavailable, &body)
	if body.Album == nil || body.Album.ID != seeded.ID {
		t.Errorf("expected cached album in response, got %+v", body.Album)
	}
}

func TestIndexAlbumUnavailableNoCachedData(t *testing.T) {
	srv, _ := setupServer(t)
	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/mb-down", "", http.StatusBadGateway, nil)
}

func TestIndexAlbumUnknownSource(t *testing.T) {
	srv, _ := setupServer(t)
	postJSON(t, srv, "/api/v1/index/lastfm/releases/x", "", http.StatusBadRequest, nil)
}

func TestGetAlbumNotFound(t *testing.T) {
	srv, _ := setupServer(t)
	getJSON(t, srv, "/api/v1/albums/missing", http.StatusNotFound, nil)
}

func TestGetArtistNotFound(t *testing.T) {
	srv, _ := setupServer(t)
	getJSON(t, srv, "/api/v1/artists/missing", http.StatusNotFound, nil)
}

func TestResolveEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/mb-ok", "", http.StatusOK, nil)

	var body struct {
		Album *catalog.Album `json:"album"`
		Score float64        `json:"score"`
	}
	getJSON(t, srv, "/api/v1/resolve?artist=Radiohead&title=OK+Computer", http.StatusOK, &body)
	if body.Album == nil {
		t.Fatal("expected a resolved album")
	}
	if body.Score < resolver.MatchThreshold {
		t.Errorf("expected score >= %v, got %v", resolver.MatchThreshold, body.Score)
	}

	getJSON(t, srv, "/api/v1/resolve?artist=Aphex+Twin&title=Drukqs", http.StatusOK, &body)
	if body.Album != nil {
		t.Errorf("expected no match, got %+v", body.Album)
	}
}

func TestResolveByExternalID(t *testing.T) {
	srv, _ := setupServer(t)

	var indexed catalog.Album
	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/mb-ok", "", http.StatusOK, &indexed)

	var body struct {
		Album *catalog.Album `json:"album"`
	}
	getJSON(t, srv, "/api/v1/resolve?source=musicbrainz&id=mb-ok", http.StatusOK, &body)
	if body.Album == nil || body.Album.ID != indexed.ID {
		t.Errorf("expected indexed album, got %+v", body.Album)
	}

	// Source omitted: all three id columns are checked.
	getJSON(t, srv, "/api/v1/resolve?id=mb-ok", http.StatusOK, &body)
	if body.Album == nil || body.Album.ID != indexed.ID {
		t.Errorf("expected indexed album without source, got %+v", body.Album)
	}

	getJSON(t, srv, "/api/v1/resolve?id=unknown", http.StatusOK, &body)
	if body.Album != nil {
		t.Errorf("expected no album for unknown id, got %+v", body.Album)
	}

	getJSON(t, srv, "/api/v1/resolve?source=lastfm&id=x", http.StatusBadRequest, nil)
}

func TestResolveRequiresTitle(t *testing.T) {
	srv, _ := setupServer(t)
	getJSON(t, srv, "/api/v1/resolve?artist=Radiohead", http.StatusBadRequest, nil)
}

func TestListAlbums(t *testing.T) {
	srv, _ := setupServer(t)

	postJSON(t, srv, "/api/v1/index/musicbrainz/releases/mb-ok", "", http.StatusOK, nil)

	var body struct {
		Albums []*catalog.Album `json:"albums"`
	}
	getJSON(t, srv, "/api/v1/albums", http.StatusOK, &body)
	if len(body.Albums) != 1 {
		t.Errorf("expected 1 album, got %d", len(body.Albums))
	}

	getJSON(t, srv, "/api/v1/albums?limit=0", http.StatusBadRequest, nil)
}

func TestDedupeEndpoint(t *testing.T) {
	srv, _ := setupServer(t)

	var result dedupe.Result
	postJSON(t, srv, "/api/v1/dedupe?dry_run=true", "", http.StatusOK, &result)
	if result.Clusters != 0 {
		t.Errorf("expected no clusters on empty catalog, got %d", result.Clusters)
	}
}

func TestBackupEndpoints(t *testing.T) {
	srv, _ := setupServer(t)

	var info backup.Info
	postJSON(t, srv, "/api/v1/backups", "", http.StatusCreated, &info)
	if info.Size == 0 {
		t.Error("expected non-zero backup size")
	}

	var body struct {
		Backups []backup.Info `json:"backups"`
	}
	getJSON(t, srv, "/api/v1/backups", http.StatusOK, &body)
	if len(body.Backups) != 1 {
		t.Errorf("expected 1 backup, got %d", len(body.Backups))
	}
}

func TestMaintenanceEndpoints(t *testing.T) {
	srv, _ := setupServer(t)

	postJSON(t, srv, "/api/v1/maintenance/optimize", "", http.StatusOK, nil)

	var st maintenance.Status
	getJSON(t, srv, "/api/v1/maintenance/status", http.StatusOK, &st)
	if st.LastOptimizeAt == "" {
		t.Error("expected last optimize time after optimize")
	}

	postJSON(t, srv, "/api/v1/maintenance/vacuum", "", http.StatusOK, nil)
}

func TestLogLevelEndpoints(t *testing.T) {
	srv, _ := setupServer(t)

	var body map[string]string
	getJSON(t, srv, "/api/v1/logging/level", http.StatusOK, &body)
	if body["level"] != "error" {
		t.Errorf("expected level error, got %q", body["level"])
	}

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/logging/level", strings.NewReader(`{"level":"debug"}`))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT level: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT level: status %d", resp.StatusCode)
	}

	getJSON(t, srv, "/api/v1/logging/level", http.StatusOK, &body)
	if body["level"] != "debug" {
		t.Errorf("expected level debug after update, got %q", body["level"])
	}

	req, err = http.NewRequest(http.MethodPut, srv.URL+"/api/v1/logging/level", strings.NewReader(`{"level":"loud"}`))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("PUT level: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid level, got %d", resp.StatusCode)
	}
}

func TestReindexEndpoint(t *testing.T) {
	srv, _ := setupServer(t)
	postJSON(t, srv, "/api/v1/reindex", "", http.StatusAccepted, nil)
}

func TestScrubQuery(t *testing.T) {
	tests := []struct {
		in  string
		out string
	}{
		{"", ""},
		{"artist=Radiohead", "artist=Radiohead"},
		{"token=abc123", "token=REDACTED"},
		{"artist=Low&client_secret=xyz", "artist=Low&client_secret=REDACTED"},
	}
	for _, tt := range tests {
		if got := scrubQuery(tt.in); got != tt.out {
			t.Errorf("scrubQuery(%q) = %q, want %q", tt.in, got, tt.out)
		}
	}
}
