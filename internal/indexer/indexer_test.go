package indexer

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/database"
	"github.com/amckee/cantata/internal/resolver"
	"github.com/amckee/cantata/internal/source"
)

// fakeClient is a canned in-memory source adapter.
type fakeClient struct {
	name     source.Name
	releases map[string]*source.Release
	artists  map[string]*source.Artist
	searches map[string][]source.ReleaseSearchResult
}

func (f *fakeClient) Name() source.Name { return f.name }

func (f *fakeClient) SearchReleases(_ context.Context, query string, _ int) ([]source.ReleaseSearchResult, error) {
	return f.searches[query], nil
}

func (f *fakeClient) GetRelease(_ context.Context, id string) (*source.Release, error) {
	rel, ok := f.releases[id]
	if !ok {
		return nil, &source.ErrNotFound{Source: f.name, ID: id}
	}
	return rel, nil
}

func (f *fakeClient) GetArtist(_ context.Context, id string) (*source.Artist, error) {
	artist, ok := f.artists[id]
	if !ok {
		return nil, &source.ErrNotFound{Source: f.name, ID: id}
	}
	return artist, nil
}

func (f *fakeClient) SearchArtists(_ context.Context, _ string) ([]source.ArtistSearchResult, error) {
	return nil, nil
}

func setupIndexer(t *testing.T, clients ...source.Client) (*Indexer, *catalog.Service) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cat := catalog.NewService(db)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	res := resolver.New(cat, logger)
	reg := source.NewRegistry()
	for _, c := range clients {
		reg.Register(c)
	}
	return New(cat, res, reg, logger), cat
}

func vinylRelease() *source.Release {
	return &source.Release{
		ID:          "mb-okc",
		Title:       "OK Computer",
		Artist:      "Radiohead",
		ReleaseDate: "1997-06-16",
		CoverURL:    "https://covers.test/okc.jpg",
		Genres:      []string{"alternative rock"},
		Media: []source.Medium{
			{Tracks: []source.ReleaseTrack{
				{ID: "t-a1", Title: "Airbag", Position: "A1", DurationMS: 284000},
				{ID: "t-a2", Title: "Paranoid Android", Position: "A2", DurationMS: 383000},
			}},
			{Tracks: []source.ReleaseTrack{
				{ID: "t-b1", Title: "Subterranean Homesick Alien", Position: "B1", DurationMS: 267000},
			}},
		},
	}
}

func TestIndexAlbum(t *testing.T) {
	mb := &fakeClient{
		name:     source.NameMusicBrainz,
		releases: map[string]*source.Release{"mb-okc": vinylRelease()},
	}
	ix, cat := setupIndexer(t, mb)
	ctx := context.Background()

	album, err := ix.IndexAlbum(ctx, source.NameMusicBrainz, "mb-okc")
	if err != nil {
		t.Fatalf("IndexAlbum: %v", err)
	}
	if album.Title != "OK Computer" || album.MusicBrainzID != "mb-okc" {
		t.Errorf("unexpected album: %+v", album)
	}
	if album.CoverURL != "https://covers.test/okc.jpg" {
		t.Errorf("expected native cover art, got %s", album.CoverURL)
	}
	if album.TrackCount != 3 {
		t.Errorf("TrackCount = %d, want 3", album.TrackCount)
	}

	tracks, err := cat.ListTracksByAlbum(ctx, album.ID)
	if err != nil {
		t.Fatalf("ListTracksByAlbum: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks, got %d", len(tracks))
	}
	// Vinyl positions normalize and parsed numerics drive the track number.
	if tracks[0].Position != "A1" || tracks[0].TrackNumber != 1 {
		t.Errorf("unexpected first track: %+v", tracks[0])
	}
}

func TestIndexAlbumIdempotent(t *testing.T) {
	mb := &fakeClient{
		name:     source.NameMusicBrainz,
		releases: map[string]*source.Release{"mb-okc": vinylRelease()},
	}
	ix, cat := setupIndexer(t, mb)
	ctx := context.Background()

	first, err := ix.IndexAlbum(ctx, source.NameMusicBrainz, "mb-okc")
	if err != nil {
		t.Fatalf("IndexAlbum: %v", err)
	}
	second, err := ix.IndexAlbum(ctx, source.NameMusicBrainz, "mb-okc")
	if err != nil {
		t.Fatalf("IndexAlbum (repeat): %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same canonical id, got %s and %s", first.ID, second.ID)
	}

	tracks, err := cat.ListTracksByAlbum(ctx, first.ID)
	if err != nil {
		t.Fatalf("ListTracksByAlbum: %v", err)
	}
	if len(tracks) != 3 {
		t.Errorf("expected 3 tracks after reindex, got %d", len(tracks))
	}
}

func TestIndexAlbumNotFoundUpstream(t *testing.T) {
	mb := &fakeClient{name: source.NameMusicBrainz, releases: map[string]*source.Release{}}
	ix, _ := setupIndexer(t, mb)

	_, err := ix.IndexAlbum(context.Background(), source.NameMusicBrainz, "no-such-id")
	if err == nil {
		t.Fatal("expected error for missing upstream record")
	}
	if _, ok := err.(*source.ErrNotFound); !ok {
		t.Errorf("expected ErrNotFound, got %T: %v", err, err)
	}
}

func TestIndexAlbumLinksCrossSourceDuplicate(t *testing.T) {
	mb := &fakeClient{
		name:     source.NameMusicBrainz,
		releases: map[string]*source.Release{"mb-okc": vinylRelease()},
	}
	spotifyRel := &source.Release{
		ID:     "sp-okc",
		Title:  "OK Computer",
		Artist: "Radiohead",
		Media: []source.Medium{
			{Tracks: []source.ReleaseTrack{
				{ID: "sp-t1", Title: "Airbag", Position: "1", DurationMS: 284066},
			}},
		},
	}
	sp := &fakeClient{
		name:     source.NameSpotify,
		releases: map[string]*source.Release{"sp-okc": spotifyRel},
	}
	ix, cat := setupIndexer(t, mb, sp)
	ctx := context.Background()

	first, err := ix.IndexAlbum(ctx, source.NameMusicBrainz, "mb-okc")
	if err != nil {
		t.Fatalf("IndexAlbum (musicbrainz): %v", err)
	}
	second, err := ix.IndexAlbum(ctx, source.NameSpotify, "sp-okc")
	if err != nil {
		t.Fatalf("IndexAlbum (spotify): %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected the spotify id to link onto the existing album, got %s and %s", first.ID, second.ID)
	}
	if second.SpotifyID != "sp-okc" || second.MusicBrainzID != "mb-okc" {
		t.Errorf("expected both source ids on the canonical row: %+v", second)
	}

	albums, err := cat.ListAllAlbums(ctx)
	if err != nil {
		t.Fatalf("ListAllAlbums: %v", err)
	}
	if len(albums) != 1 {
		t.Errorf("expected exactly 1 canonical album, got %d", len(albums))
	}
}

func TestIndexAlbumPositionBackfill(t *testing.T) {
	mb := &fakeClient{
		name:     source.NameMusicBrainz,
		releases: map[string]*source.Release{"mb-okc": vinylRelease()},
	}
	ix, cat := setupIndexer(t, mb)
	ctx := context.Background()

	// Pre-seed the album with a track that has no position, as a bare
	// user-created record would.
	seed := &catalog.Album{Title: "OK Computer", Artist: "Radiohead", MusicBrainzID: "mb-okc"}
	if err := cat.CreateAlbum(ctx, seed); err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}
	bare := &catalog.Track{AlbumID: seed.ID, Title: "Airbag", TrackNumber: 1}
	if err := cat.InsertTrack(ctx, bare); err != nil {
		t.Fatalf("InsertTrack: %v", err)
	}

	if _, err := ix.IndexAlbum(ctx, source.NameMusicBrainz, "mb-okc"); err != nil {
		t.Fatalf("IndexAlbum: %v", err)
	}

	tracks, err := cat.ListTracksByAlbum(ctx, seed.ID)
	if err != nil {
		t.Fatalf("ListTracksByAlbum: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("expected 3 tracks (1 backfilled + 2 new), got %d", len(tracks))
	}
	var airbag *catalog.Track
	for i := range tracks {
		if tracks[i].ID == bare.ID {
			airbag = &tracks[i]
		}
	}
	if airbag == nil {
		t.Fatal("pre-seeded track disappeared")
	}
	if airbag.Position != "A1" {
		t.Errorf("expected backfilled position A1, got %q", airbag.Position)
	}
}

func TestIndexAlbumCoverArtFallback(t *testing.T) {
	rel := vinylRelease()
	rel.CoverURL = ""
	mb := &fakeClient{
		name:     source.NameMusicBrainz,
		releases: map[string]*source.Release{"mb-okc": rel},
	}
	dg := &fakeClient{
		name: source.NameDiscogs,
		searches: map[string][]source.ReleaseSearchResult{
			"Radiohead OK Computer": {
				{ID: "249504", Title: "OK Computer", Artist: "Radiohead", CoverURL: "https://i.discogs.test/okc.jpg"},
			},
		},
	}
	ix, _ := setupIndexer(t, mb, dg)

	album, err := ix.IndexAlbum(context.Background(), source.NameMusicBrainz, "mb-okc")
	if err != nil {
		t.Fatalf("IndexAlbum: %v", err)
	}
	if album.CoverURL != "https://i.discogs.test/okc.jpg" {
		t.Errorf("expected fallback cover art, got %q", album.CoverURL)
	}
}

func TestIndexAlbumCoverArtFailureSwallowed(t *testing.T) {
	rel := vinylRelease()
	rel.CoverURL = ""
	mb := &fakeClient{
		name:     source.NameMusicBrainz,
		releases: map[string]*source.Release{"mb-okc": rel},
	}
	// No fallback sources registered at all; indexing still succeeds.
	ix, _ := setupIndexer(t, mb)

	album, err := ix.IndexAlbum(context.Background(), source.NameMusicBrainz, "mb-okc")
	if err != nil {
		t.Fatalf("IndexAlbum: %v", err)
	}
	if album.CoverURL != "" {
		t.Errorf("expected no cover art, got %q", album.CoverURL)
	}
}

func TestGetOrCreateAlbum(t *testing.T) {
	mb := &fakeClient{name: source.NameMusicBrainz, releases: map[string]*source.Release{}}
	sp := &fakeClient{
		name: source.NameSpotify,
		releases: map[string]*source.Release{
			"sp-okc": {
				ID: "sp-okc", Title: "OK Computer", Artist: "Radiohead",
				Media: []source.Medium{{Tracks: []source.ReleaseTrack{
					{ID: "sp-t1", Title: "Airbag", Position: "1"},
				}}},
			},
		},
	}
	ix, _ := setupIndexer(t, mb, sp)

	// MusicBrainz fails; the pipeline falls through to Spotify.
	album, err := ix.GetOrCreateAlbum(context.Background(), map[source.Name]string{
		source.NameMusicBrainz: "mb-missing",
		source.NameSpotify:     "sp-okc",
	})
	if err != nil {
		t.Fatalf("GetOrCreateAlbum: %v", err)
	}
	if album.SpotifyID != "sp-okc" {
		t.Errorf("expected spotify-indexed album, got %+v", album)
	}
}

func TestIndexArtist(t *testing.T) {
	mb := &fakeClient{
		name: source.NameMusicBrainz,
		artists: map[string]*source.Artist{
			"mba-rh": {ID: "mba-rh", Name: "Radiohead", Genres: []string{"alternative rock"}},
		},
	}
	dg := &fakeClient{
		name: source.NameDiscogs,
		artists: map[string]*source.Artist{
			"3840": {ID: "3840", Name: "Radiohead", ImageURL: "https://i.discogs.test/rh.jpg"},
		},
	}
	// Discogs search answers the image fallback.
	dgSearch := &fakeArtistSearcher{fakeClient: dg, results: []source.ArtistSearchResult{{ID: "3840", Name: "Radiohead"}}}
	ix, _ := setupIndexer(t, mb, dgSearch)

	artist, err := ix.IndexArtist(context.Background(), source.NameMusicBrainz, "mba-rh")
	if err != nil {
		t.Fatalf("IndexArtist: %v", err)
	}
	if artist.Name != "Radiohead" || artist.MusicBrainzID != "mba-rh" {
		t.Errorf("unexpected artist: %+v", artist)
	}
	if artist.ImageURL != "https://i.discogs.test/rh.jpg" {
		t.Errorf("expected fallback artist image, got %q", artist.ImageURL)
	}
}

// fakeArtistSearcher overrides SearchArtists with canned results.
type fakeArtistSearcher struct {
	*fakeClient
	results []source.ArtistSearchResult
}

func (f *fakeArtistSearcher) SearchArtists(_ context.Context, _ string) ([]source.ArtistSearchResult, error) {
	return f.results, nil
}
