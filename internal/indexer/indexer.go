// Package indexer ingests albums and artists from external sources into the
// canonical catalog. All writes are idempotent: indexing the same external
// id twice, even concurrently from the request path and the background
// reindexer, yields one canonical row and no duplicate tracks.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/position"
	"github.com/amckee/cantata/internal/resolver"
	"github.com/amckee/cantata/internal/source"
)

// Indexer drives the per-source album and artist ingestion pipelines.
type Indexer struct {
	catalog  *catalog.Service
	resolver *resolver.Resolver
	sources  *source.Registry
	logger   *slog.Logger
}

// New creates an Indexer.
func New(cat *catalog.Service, res *resolver.Resolver, sources *source.Registry, logger *slog.Logger) *Indexer {
	return &Indexer{
		catalog:  cat,
		resolver: res,
		sources:  sources,
		logger:   logger.With(slog.String("component", "indexer")),
	}
}

// IndexAlbum indexes the album identified by externalID at the named
// source. If a canonical album already owns the id and has at least one
// positioned track, it is returned unchanged. Upstream not-found surfaces
// as *source.ErrNotFound.
func (ix *Indexer) IndexAlbum(ctx context.Context, src source.Name, externalID string) (*catalog.Album, error) {
	client := ix.sources.Get(src)
	if client == nil {
		return nil, fmt.Errorf("no client registered for source %s", src)
	}

	album, err := ix.catalog.GetAlbumBySourceID(ctx, src, externalID)
	if err != nil {
		return nil, fmt.Errorf("looking up album by %s id: %w", src, err)
	}
	if album != nil {
		positioned, err := ix.catalog.CountAlbumTracksWithPosition(ctx, album.ID)
		if err != nil {
			return nil, fmt.Errorf("counting positioned tracks: %w", err)
		}
		if positioned > 0 {
			return album, nil
		}
	}

	rel, err := client.GetRelease(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if rel == nil || rel.Title == "" {
		return nil, &source.ErrNotFound{Source: src, ID: externalID}
	}

	if album == nil {
		// The same release may already exist under another source's id.
		album, err = ix.resolver.EnsureSourceIDs(ctx, src, externalID, rel.Artist, rel.Title)
		if err != nil {
			return nil, err
		}
	}

	if album == nil {
		fresh := albumFromRelease(rel)
		fresh.SetSourceID(src, externalID)
		album, _, err = ix.catalog.InsertAlbumIfAbsent(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("inserting album: %w", err)
		}
	} else {
		ix.fillMissingMetadata(ctx, album, rel)
	}

	if err := ix.ingestTracks(ctx, album, src, rel.Tracks()); err != nil {
		return nil, err
	}

	if err := ix.catalog.RefreshAlbumTrackCount(ctx, album.ID); err != nil {
		return nil, fmt.Errorf("refreshing track count: %w", err)
	}

	ix.ensureCoverArt(ctx, album, src, rel.CoverURL)

	return ix.catalog.GetAlbumByID(ctx, album.ID)
}

// GetOrCreateAlbum resolves any of the given external ids to a canonical
// album, indexing from the first source that succeeds. Sources are tried
// in priority order; the last failure is returned only when every id fails.
func (ix *Indexer) GetOrCreateAlbum(ctx context.Context, ids map[source.Name]string) (*catalog.Album, error) {
	var lastErr error
	for _, src := range source.AllNames() {
		id, ok := ids[src]
		if !ok || id == "" {
			continue
		}
		album, err := ix.IndexAlbum(ctx, src, id)
		if err == nil {
			return album, nil
		}
		lastErr = err
		ix.logger.Warn("album index attempt failed",
			slog.String("source", string(src)),
			slog.String("external_id", id),
			slog.String("error", err.Error()))
	}
	if lastErr == nil {
		return nil, fmt.Errorf("no external ids supplied")
	}
	return nil, lastErr
}

// IndexArtist indexes the artist identified by externalID at the named
// source, creating the canonical artist row if needed and backfilling a
// missing image from other sources.
func (ix *Indexer) IndexArtist(ctx context.Context, src source.Name, externalID string) (*catalog.Artist, error) {
	client := ix.sources.Get(src)
	if client == nil {
		return nil, fmt.Errorf("no client registered for source %s", src)
	}

	artist, err := ix.catalog.GetArtistBySourceID(ctx, src, externalID)
	if err != nil {
		return nil, fmt.Errorf("looking up artist by %s id: %w", src, err)
	}
	if artist != nil && artist.ImageURL != "" {
		return artist, nil
	}

	fetched, err := client.GetArtist(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if fetched == nil || fetched.Name == "" {
		return nil, &source.ErrNotFound{Source: src, ID: externalID}
	}

	if artist == nil {
		fresh := &catalog.Artist{
			Name:     fetched.Name,
			ImageURL: fetched.ImageURL,
			Genres:   fetched.Genres,
		}
		fresh.SetSourceID(src, externalID)
		artist, _, err = ix.catalog.InsertArtistIfAbsent(ctx, fresh)
		if err != nil {
			return nil, fmt.Errorf("inserting artist: %w", err)
		}
	}

	if artist.ImageURL == "" {
		ix.ensureArtistImage(ctx, artist, src, fetched.ImageURL)
	}

	return ix.catalog.GetArtistByID(ctx, artist.ID)
}

// ingestTracks inserts the fetched track list and backfills missing
// positions on tracks that already exist. Per-track failures are logged
// and skipped so one bad row never aborts the album.
func (ix *Indexer) ingestTracks(ctx context.Context, album *catalog.Album, src source.Name, tracks []source.ReleaseTrack) error {
	existing, err := ix.catalog.ListTracksByAlbum(ctx, album.ID)
	if err != nil {
		return fmt.Errorf("listing existing tracks: %w", err)
	}

	byExternalID := make(map[string]*catalog.Track)
	byTitle := make(map[string]*catalog.Track)
	for i := range existing {
		t := &existing[i]
		if t.MusicBrainzID != "" {
			byExternalID[t.MusicBrainzID] = t
		}
		if t.SpotifyID != "" {
			byExternalID[t.SpotifyID] = t
		}
		byTitle[strings.ToLower(t.Title)] = t
	}

	for i, rt := range tracks {
		pos := position.Parse(rt.Position)

		prior := byExternalID[rt.ID]
		if prior == nil {
			prior = byTitle[strings.ToLower(rt.Title)]
		}
		if prior != nil {
			// Backfill just the position when the fresh fetch has one.
			if prior.Position == "" && pos.Normalized != "" {
				if err := ix.catalog.SetTrackPosition(ctx, prior.ID, pos.Normalized); err != nil {
					ix.logger.Warn("position backfill failed",
						slog.String("track_id", prior.ID),
						slog.String("error", err.Error()))
				}
			}
			continue
		}

		number := pos.Number
		if number == position.None {
			number = i + 1
		}
		track := &catalog.Track{
			AlbumID:     album.ID,
			Title:       rt.Title,
			TrackNumber: number,
			DurationMS:  rt.DurationMS,
			Position:    pos.Normalized,
		}
		if rt.ID != "" {
			switch src {
			case source.NameMusicBrainz:
				track.MusicBrainzID = rt.ID
			case source.NameSpotify:
				track.SpotifyID = rt.ID
			}
		}

		if _, err := ix.catalog.InsertTrackIfAbsent(ctx, track); err != nil {
			ix.logger.Warn("track insert failed",
				slog.String("album_id", album.ID),
				slog.String("title", rt.Title),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// fillMissingMetadata copies metadata the album is still missing from a
// fresh fetch. Existing values are never overwritten.
func (ix *Indexer) fillMissingMetadata(ctx context.Context, album *catalog.Album, rel *source.Release) {
	changed := false
	if album.ReleaseDate == "" && rel.ReleaseDate != "" {
		album.ReleaseDate = rel.ReleaseDate
		changed = true
	}
	if len(album.Genres) == 0 && len(rel.Genres) > 0 {
		album.Genres = rel.Genres
		changed = true
	}
	if !changed {
		return
	}
	if err := ix.catalog.UpdateAlbum(ctx, album); err != nil {
		ix.logger.Warn("metadata backfill failed",
			slog.String("album_id", album.ID),
			slog.String("error", err.Error()))
	}
}

// ensureCoverArt fills in a missing cover, trying the fetching source's
// own art first and then searching the other sources by artist and title.
// Cover art failures never block indexing; they are logged and dropped.
func (ix *Indexer) ensureCoverArt(ctx context.Context, album *catalog.Album, native source.Name, nativeCover string) {
	if album.CoverURL != "" {
		return
	}

	setCover := func(u string) bool {
		if u == "" {
			return false
		}
		album.CoverURL = u
		if err := ix.catalog.UpdateAlbum(ctx, album); err != nil {
			ix.logger.Warn("cover art update failed",
				slog.String("album_id", album.ID),
				slog.String("error", err.Error()))
			return false
		}
		return true
	}

	if setCover(nativeCover) {
		return
	}

	query := strings.TrimSpace(album.Artist + " " + album.Title)
	for _, src := range source.AllNames() {
		if src == native {
			continue
		}
		client := ix.sources.Get(src)
		if client == nil {
			continue
		}
		results, err := client.SearchReleases(ctx, query, 5)
		if err != nil {
			ix.logger.Debug("cover art fallback search failed",
				slog.String("source", string(src)),
				slog.String("error", err.Error()))
			continue
		}
		for _, res := range results {
			if res.CoverURL != "" && setCover(res.CoverURL) {
				return
			}
		}
	}
}

// ensureArtistImage fills in a missing artist image, preferring the
// fetching source and falling back to the others by name search. Failures
// are swallowed the same way cover art failures are.
func (ix *Indexer) ensureArtistImage(ctx context.Context, artist *catalog.Artist, native source.Name, nativeImage string) {
	setImage := func(u string) bool {
		if u == "" {
			return false
		}
		artist.ImageURL = u
		if err := ix.catalog.UpdateArtist(ctx, artist); err != nil {
			ix.logger.Warn("artist image update failed",
				slog.String("artist_id", artist.ID),
				slog.String("error", err.Error()))
			return false
		}
		return true
	}

	if setImage(nativeImage) {
		return
	}

	for _, src := range source.AllNames() {
		if src == native {
			continue
		}
		client := ix.sources.Get(src)
		if client == nil {
			continue
		}
		results, err := client.SearchArtists(ctx, artist.Name)
		if err != nil || len(results) == 0 {
			continue
		}
		fetched, err := client.GetArtist(ctx, results[0].ID)
		if err != nil {
			ix.logger.Debug("artist image fallback failed",
				slog.String("source", string(src)),
				slog.String("error", err.Error()))
			continue
		}
		if setImage(fetched.ImageURL) {
			return
		}
	}
}

// albumFromRelease maps a fetched release onto a new canonical album.
func albumFromRelease(rel *source.Release) *catalog.Album {
	return &catalog.Album{
		Title:       rel.Title,
		Artist:      rel.Artist,
		ReleaseDate: rel.ReleaseDate,
		CoverURL:    rel.CoverURL,
		Genres:      rel.Genres,
	}
}
