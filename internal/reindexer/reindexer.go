// Package reindexer runs the background repair loop for the catalog. It
// periodically picks up albums that never received tracks and artists that
// never received albums, and retries indexing them with a bounded,
// fixed-interval backoff.
package reindexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/indexer"
	"github.com/amckee/cantata/internal/resolver"
	"github.com/amckee/cantata/internal/similarity"
	"github.com/amckee/cantata/internal/source"
)

// Defaults for the repair loop. An entity that fails MaxRetries attempts
// is left alone until its retry count is manually reset.
const (
	DefaultTick       = 60 * time.Second
	DefaultMaxRetries = 5
	DefaultInterval   = 6 * time.Hour

	albumBatchSize  = 25
	artistBatchSize = 25
	searchLimit     = 10
)

// Config tunes the repair loop. Zero values fall back to the defaults.
type Config struct {
	Tick       time.Duration
	MaxRetries int
	Interval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Reindexer owns the background repair loop.
type Reindexer struct {
	catalog *catalog.Service
	indexer *indexer.Indexer
	sources *source.Registry
	logger  *slog.Logger
	cfg     Config
}

// New creates a Reindexer.
func New(cat *catalog.Service, ix *indexer.Indexer, sources *source.Registry, logger *slog.Logger, cfg Config) *Reindexer {
	return &Reindexer{
		catalog: cat,
		indexer: ix,
		sources: sources,
		logger:  logger.With(slog.String("component", "reindexer")),
		cfg:     cfg.withDefaults(),
	}
}

// Run drives the repair loop until the context is canceled. One sweep runs
// immediately so a fresh deployment does not wait a full tick.
func (r *Reindexer) Run(ctx context.Context) {
	r.logger.Info("reindexer started",
		slog.Duration("tick", r.cfg.Tick),
		slog.Int("max_retries", r.cfg.MaxRetries))

	ticker := time.NewTicker(r.cfg.Tick)
	defer ticker.Stop()

	r.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reindexer stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over track-less albums and album-less artists.
// Failures are isolated per entity; one bad record never aborts the batch.
func (r *Reindexer) Sweep(ctx context.Context) {
	r.sweepAlbums(ctx)
	r.sweepArtists(ctx)
}

func (r *Reindexer) sweepAlbums(ctx context.Context) {
	albums, err := r.catalog.ListAlbumsMissingTracks(ctx, albumBatchSize, r.cfg.MaxRetries, time.Now().UTC())
	if err != nil {
		r.logger.Error("listing track-less albums", slog.String("error", err.Error()))
		return
	}
	for i := range albums {
		if ctx.Err() != nil {
			return
		}
		r.attemptAlbum(ctx, &albums[i])
	}
}

// attemptAlbum tries every known external id in source priority order, then
// a last-resort title search, and records the retry state.
func (r *Reindexer) attemptAlbum(ctx context.Context, album *catalog.Album) {
	for _, src := range source.AllNames() {
		id := album.SourceID(src)
		if id == "" {
			continue
		}
		if _, err := r.indexer.IndexAlbum(ctx, src, id); err != nil {
			r.logger.Debug("album reindex attempt failed",
				slog.String("album_id", album.ID),
				slog.String("source", string(src)),
				slog.String("error", err.Error()))
			continue
		}
		if r.albumComplete(ctx, album.ID) {
			r.markAlbumSuccess(ctx, album)
			return
		}
	}

	if r.searchAndIndexAlbum(ctx, album) && r.albumComplete(ctx, album.ID) {
		r.markAlbumSuccess(ctx, album)
		return
	}

	r.markAlbumFailure(ctx, album)
}

// searchAndIndexAlbum is the last resort: search the fallback sources by
// artist and title and index the first result that convincingly matches.
func (r *Reindexer) searchAndIndexAlbum(ctx context.Context, album *catalog.Album) bool {
	query := album.Artist + " " + album.Title
	for _, client := range r.sources.All() {
		if album.SourceID(client.Name()) != "" {
			// Direct lookup already failed for this source.
			continue
		}
		results, err := client.SearchReleases(ctx, query, searchLimit)
		if err != nil {
			r.logger.Debug("fallback search failed",
				slog.String("source", string(client.Name())),
				slog.String("error", err.Error()))
			continue
		}
		for _, res := range results {
			score := similarity.AlbumScore(album.Artist, album.Title, res.Artist, res.Title)
			if score < resolver.MatchThreshold {
				continue
			}
			if _, err := r.indexer.IndexAlbum(ctx, client.Name(), res.ID); err != nil {
				r.logger.Debug("fallback index failed",
					slog.String("source", string(client.Name())),
					slog.String("external_id", res.ID),
					slog.String("error", err.Error()))
				continue
			}
			return true
		}
	}
	return false
}

func (r *Reindexer) albumComplete(ctx context.Context, albumID string) bool {
	n, err := r.catalog.CountAlbumTracks(ctx, albumID)
	if err != nil {
		r.logger.Error("counting tracks", slog.String("album_id", albumID), slog.String("error", err.Error()))
		return false
	}
	return n > 0
}

func (r *Reindexer) markAlbumSuccess(ctx context.Context, album *catalog.Album) {
	if err := r.catalog.SetAlbumRetryState(ctx, album.ID, 0, nil); err != nil {
		r.logger.Error("resetting album retry state",
			slog.String("album_id", album.ID),
			slog.String("error", err.Error()))
		return
	}
	r.logger.Info("album repaired", slog.String("album_id", album.ID), slog.String("title", album.Title))
}

func (r *Reindexer) markAlbumFailure(ctx context.Context, album *catalog.Album) {
	next := time.Now().UTC().Add(r.cfg.Interval)
	count := album.RetryCount + 1
	if err := r.catalog.SetAlbumRetryState(ctx, album.ID, count, &next); err != nil {
		r.logger.Error("recording album retry state",
			slog.String("album_id", album.ID),
			slog.String("error", err.Error()))
		return
	}
	if count >= r.cfg.MaxRetries {
		r.logger.Warn("album retries exhausted",
			slog.String("album_id", album.ID),
			slog.String("title", album.Title),
			slog.Int("retry_count", count))
		return
	}
	r.logger.Info("album reindex rescheduled",
		slog.String("album_id", album.ID),
		slog.Int("retry_count", count),
		slog.Time("next_attempt", next))
}

func (r *Reindexer) sweepArtists(ctx context.Context) {
	artists, err := r.catalog.ListArtistsMissingAlbums(ctx, artistBatchSize, r.cfg.MaxRetries, time.Now().UTC())
	if err != nil {
		r.logger.Error("listing album-less artists", slog.String("error", err.Error()))
		return
	}
	for i := range artists {
		if ctx.Err() != nil {
			return
		}
		r.attemptArtist(ctx, &artists[i])
	}
}

// attemptArtist expands an artist's releases through the indexer: search
// each source the artist is known at for their releases and index the ones
// credibly credited to them.
func (r *Reindexer) attemptArtist(ctx context.Context, artist *catalog.Artist) {
	indexed := 0
	for _, src := range source.AllNames() {
		if artist.SourceID(src) == "" {
			continue
		}
		client := r.sources.Get(src)
		if client == nil {
			continue
		}
		results, err := client.SearchReleases(ctx, artist.Name, searchLimit)
		if err != nil {
			r.logger.Debug("artist release search failed",
				slog.String("artist_id", artist.ID),
				slog.String("source", string(src)),
				slog.String("error", err.Error()))
			continue
		}
		for _, res := range results {
			if similarity.Score(artist.Name, res.Artist) < resolver.MatchThreshold {
				continue
			}
			album, err := r.indexer.IndexAlbum(ctx, src, res.ID)
			if err != nil {
				r.logger.Debug("artist release index failed",
					slog.String("artist_id", artist.ID),
					slog.String("external_id", res.ID),
					slog.String("error", err.Error()))
				continue
			}
			r.claimAlbum(ctx, artist, album)
			indexed++
		}
		if indexed > 0 {
			break
		}
	}

	if indexed > 0 {
		if err := r.catalog.SetArtistRetryState(ctx, artist.ID, 0, nil); err != nil {
			r.logger.Error("resetting artist retry state",
				slog.String("artist_id", artist.ID),
				slog.String("error", err.Error()))
			return
		}
		r.logger.Info("artist repaired",
			slog.String("artist_id", artist.ID),
			slog.String("name", artist.Name),
			slog.Int("albums_indexed", indexed))
		return
	}

	next := time.Now().UTC().Add(r.cfg.Interval)
	count := artist.RetryCount + 1
	if err := r.catalog.SetArtistRetryState(ctx, artist.ID, count, &next); err != nil {
		r.logger.Error("recording artist retry state",
			slog.String("artist_id", artist.ID),
			slog.String("error", err.Error()))
		return
	}
	if count >= r.cfg.MaxRetries {
		r.logger.Warn("artist retries exhausted",
			slog.String("artist_id", artist.ID),
			slog.String("name", artist.Name),
			slog.Int("retry_count", count))
	}
}

// claimAlbum points a freshly indexed album at the artist when it has no
// owner yet.
func (r *Reindexer) claimAlbum(ctx context.Context, artist *catalog.Artist, album *catalog.Album) {
	if album.ArtistID != "" {
		return
	}
	album.ArtistID = artist.ID
	if err := r.catalog.UpdateAlbum(ctx, album); err != nil {
		r.logger.Warn("claiming album for artist failed",
			slog.String("album_id", album.ID),
			slog.String("artist_id", artist.ID),
			slog.String("error", err.Error()))
	}
}
