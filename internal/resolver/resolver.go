// Package resolver reconciles externally-sourced album records against the
// canonical catalog. It answers two questions: "which album owns this
// external id?" and "which existing album is this incoming record really?"
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/similarity"
	"github.com/amckee/cantata/internal/source"
)

const (
	// MatchThreshold is the minimum album similarity for two records to be
	// treated as the same release.
	MatchThreshold = 0.85

	// recentScanLimit bounds the fuzzy-match scan to the most recently
	// created albums. New duplicates cluster near ingestion time, so the
	// recent window catches nearly all of them at a fixed cost.
	recentScanLimit = 100
)

// Resolver performs cross-source identity resolution for albums.
type Resolver struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

// New creates a Resolver backed by the given catalog service.
func New(cat *catalog.Service, logger *slog.Logger) *Resolver {
	return &Resolver{
		catalog: cat,
		logger:  logger.With(slog.String("component", "resolver")),
	}
}

// FindBySourceID looks up the album owning externalID in the given source's
// id column. With an empty source name it checks all source columns.
// Returns nil without error when no album owns the id.
func (r *Resolver) FindBySourceID(ctx context.Context, src source.Name, externalID string) (*catalog.Album, error) {
	if externalID == "" {
		return nil, nil
	}
	if src == "" {
		return r.catalog.GetAlbumByAnySourceID(ctx, externalID)
	}
	return r.catalog.GetAlbumBySourceID(ctx, src, externalID)
}

// FindMatchingAlbum scans recently created albums for the best fuzzy match
// against the candidate artist and title. It returns the highest-scoring
// album at or above threshold, with its score, or nil when none qualifies.
// Ties go to the earliest-scanned album, so results are deterministic for
// a fixed catalog state.
func (r *Resolver) FindMatchingAlbum(ctx context.Context, artist, title string, threshold float64) (*catalog.Album, float64, error) {
	albums, err := r.catalog.ListRecentAlbums(ctx, recentScanLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing recent albums: %w", err)
	}

	normTitle := similarity.Normalize(title)
	normArtist := similarity.Normalize(artist)

	var best *catalog.Album
	bestScore := 0.0
	for i := range albums {
		cand := &albums[i]
		if !worthScoring(normArtist, normTitle, cand, threshold) {
			continue
		}
		score := similarity.AlbumScore(artist, title, cand.Artist, cand.Title)
		if score >= threshold && score > bestScore {
			best = cand
			bestScore = score
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestScore, nil
}

// worthScoring is a cheap prefilter ahead of the full edit-distance pass.
// A candidate survives when its title fuzzily matches in either direction,
// or when the weighted length bound on edit distance still allows the
// threshold to be reached.
func worthScoring(normArtist, normTitle string, cand *catalog.Album, threshold float64) bool {
	candTitle := similarity.Normalize(cand.Title)
	if fuzzy.MatchFold(normTitle, candTitle) || fuzzy.MatchFold(candTitle, normTitle) {
		return true
	}
	candArtist := similarity.Normalize(cand.Artist)
	bound := 0.3*lengthBound(normArtist, candArtist) + 0.7*lengthBound(normTitle, candTitle)
	return bound >= threshold
}

// lengthBound is an upper bound on similarity.Score: edit distance is at
// least the difference in rune counts.
func lengthBound(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1
	}
	max := la
	if lb > max {
		max = lb
	}
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	return 1 - float64(diff)/float64(max)
}

// LinkSourceID records externalID as the album's id in the given source
// column. Linking the same id twice is a no-op; a column already claimed
// by a different id is left untouched.
func (r *Resolver) LinkSourceID(ctx context.Context, albumID string, src source.Name, externalID string) error {
	if err := r.catalog.LinkAlbumSourceID(ctx, albumID, src, externalID); err != nil {
		return fmt.Errorf("linking %s id %s onto album %s: %w", src, externalID, albumID, err)
	}
	return nil
}

// EnsureSourceIDs is the find-or-link entry point for an incoming external
// record. If an album already owns externalID for src, it is returned as
// is. Otherwise the candidate's artist and title are fuzzy-matched against
// the catalog; on a match the external id is linked onto that album and
// the refreshed album is returned. With no owner and no match it returns
// nil, and the caller creates a new canonical record.
func (r *Resolver) EnsureSourceIDs(ctx context.Context, src source.Name, externalID, artist, title string) (*catalog.Album, error) {
	owner, err := r.catalog.GetAlbumBySourceID(ctx, src, externalID)
	if err != nil {
		return nil, fmt.Errorf("looking up %s id %s: %w", src, externalID, err)
	}
	if owner != nil {
		return owner, nil
	}

	match, score, err := r.FindMatchingAlbum(ctx, artist, title, MatchThreshold)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}

	r.logger.Info("linking external id onto fuzzy match",
		slog.String("source", string(src)),
		slog.String("external_id", externalID),
		slog.String("album_id", match.ID),
		slog.Float64("score", score))

	if err := r.LinkSourceID(ctx, match.ID, src, externalID); err != nil {
		return nil, err
	}
	return r.catalog.GetAlbumByID(ctx, match.ID)
}
