package spotify

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/amckee/cantata/internal/source"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

// newTestServer serves both the token endpoint and the API from one server.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/api/token":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "test-id" || pass != "test-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(`{"access_token":"test-access-token","token_type":"Bearer","expires_in":3600}`))

		case r.Header.Get("Authorization") != "Bearer test-access-token":
			w.WriteHeader(http.StatusUnauthorized)

		case r.URL.Path == "/search" && r.URL.Query().Get("type") == "album":
			w.Write(loadFixture(t, "search_albums.json"))

		case r.URL.Path == "/search" && r.URL.Query().Get("type") == "artist":
			w.Write([]byte(`{"artists":{"total":1,"items":[{"id":"4Z8W4fKeB5YxbusRsdQVPb","name":"Radiohead"}]}}`))

		case r.URL.Path == "/albums/6dVIqQ8qmQ5GBnJ9shOYGE":
			w.Write(loadFixture(t, "album_okcomputer.json"))

		case r.URL.Path == "/albums/5CnP7PTgXnNI02KRqRci3z":
			w.Write(loadFixture(t, "album_multidisc.json"))

		case r.URL.Path == "/artists/4Z8W4fKeB5YxbusRsdQVPb":
			w.Write([]byte(`{"id":"4Z8W4fKeB5YxbusRsdQVPb","name":"Radiohead","genres":["alternative rock","art rock"],"images":[{"url":"https://i.scdn.co/image/artist640.jpg","width":640,"height":640}]}`))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	limiter := source.NewRateLimiterMap()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, "test-id", "test-secret", srvURL, srvURL+"/api/token")
}

func TestName(t *testing.T) {
	c := newTestClient(t, "http://localhost")
	if c.Name() != source.NameSpotify {
		t.Errorf("expected %s, got %s", source.NameSpotify, c.Name())
	}
}

func TestSearchReleases(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	results, err := c.SearchReleases(context.Background(), "OK Computer", 25)
	if err != nil {
		t.Fatalf("SearchReleases: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.ID != "6dVIqQ8qmQ5GBnJ9shOYGE" || r.Title != "OK Computer" || r.Artist != "Radiohead" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.CoverURL != "https://i.scdn.co/image/640.jpg" {
		t.Errorf("unexpected cover URL: %s", r.CoverURL)
	}
}

func TestGetRelease(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	rel, err := c.GetRelease(context.Background(), "6dVIqQ8qmQ5GBnJ9shOYGE")
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if rel.Title != "OK Computer" || rel.Artist != "Radiohead" {
		t.Errorf("unexpected release: %s / %s", rel.Title, rel.Artist)
	}
	if rel.CoverURL != "https://i.scdn.co/image/640.jpg" {
		t.Errorf("expected widest image, got %s", rel.CoverURL)
	}

	tracks := rel.Tracks()
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	// Single disc: bare track numbers.
	if tracks[0].Position != "1" || tracks[2].Position != "3" {
		t.Errorf("unexpected positions: %s, %s", tracks[0].Position, tracks[2].Position)
	}
	if tracks[0].DurationMS != 284066 {
		t.Errorf("expected 284066ms, got %d", tracks[0].DurationMS)
	}
}

func TestGetReleaseMultiDisc(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	rel, err := c.GetRelease(context.Background(), "5CnP7PTgXnNI02KRqRci3z")
	if err != nil {
		t.Fatalf("GetRelease: %v", err)
	}
	if len(rel.Media) != 2 {
		t.Fatalf("expected 2 media, got %d", len(rel.Media))
	}

	tracks := rel.Tracks()
	if len(tracks) != 4 {
		t.Fatalf("expected 4 tracks, got %d", len(tracks))
	}
	if tracks[0].Position != "1-01" {
		t.Errorf("expected position 1-01, got %s", tracks[0].Position)
	}
	if tracks[2].Position != "2-01" {
		t.Errorf("expected position 2-01, got %s", tracks[2].Position)
	}
}

func TestGetReleaseNotFound(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	_, err := c.GetRelease(context.Background(), "no-such-album")
	if err == nil {
		t.Fatal("expected error for not-found ID")
	}
	if _, ok := err.(*source.ErrNotFound); !ok {
		t.Errorf("expected ErrNotFound, got %T: %v", err, err)
	}
}

func TestGetArtist(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	artist, err := c.GetArtist(context.Background(), "4Z8W4fKeB5YxbusRsdQVPb")
	if err != nil {
		t.Fatalf("GetArtist: %v", err)
	}
	if artist.Name != "Radiohead" {
		t.Errorf("expected name Radiohead, got %s", artist.Name)
	}
	if artist.ImageURL != "https://i.scdn.co/image/artist640.jpg" {
		t.Errorf("unexpected image URL: %s", artist.ImageURL)
	}
	if len(artist.Genres) != 2 {
		t.Errorf("expected 2 genres, got %d", len(artist.Genres))
	}
}

func TestSearchArtists(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	results, err := c.SearchArtists(context.Background(), "Radiohead")
	if err != nil {
		t.Fatalf("SearchArtists: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Radiohead" {
		t.Errorf("unexpected results: %v", results)
	}
}

func TestTokenCached(t *testing.T) {
	tokenCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/token" {
			tokenCalls++
			w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"albums":{"total":0,"items":[]}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := c.SearchReleases(context.Background(), "x", 1); err != nil {
			t.Fatalf("SearchReleases: %v", err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("expected 1 token fetch, got %d", tokenCalls)
	}
}

func TestTokenAuthFailure(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	limiter := source.NewRateLimiterMap()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c := NewWithBaseURL(limiter, logger, "wrong-id", "wrong-secret", srv.URL, srv.URL+"/api/token")

	_, err := c.SearchReleases(context.Background(), "x", 1)
	if err == nil {
		t.Fatal("expected error for bad credentials")
	}
	if _, ok := err.(*source.ErrUnavailable); !ok {
		t.Errorf("expected ErrUnavailable, got %T: %v", err, err)
	}
}

func TestFormatPosition(t *testing.T) {
	cases := []struct {
		disc, track, total int
		want               string
	}{
		{1, 3, 1, "3"},
		{1, 3, 2, "1-03"},
		{2, 11, 2, "2-11"},
	}
	for _, c := range cases {
		if got := formatPosition(c.disc, c.track, c.total); got != c.want {
			t.Errorf("formatPosition(%d,%d,%d) = %q, want %q", c.disc, c.track, c.total, got, c.want)
		}
	}
}

func TestLargestImage(t *testing.T) {
	images := []Image{
		{URL: "small", Width: 64},
		{URL: "big", Width: 640},
		{URL: "medium", Width: 300},
	}
	if got := largestImage(images); got != "big" {
		t.Errorf("largestImage = %q, want big", got)
	}
	if got := largestImage(nil); got != "" {
		t.Errorf("largestImage(nil) = %q, want empty", got)
	}
}
