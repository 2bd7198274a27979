// Package dedupe is the offline merge tool for the canonical catalog. It
// clusters near-identical albums, merges each cluster into one survivor,
// re-points dependent rows, and dedupes and renumbers the survivor's
// tracks. It is a batch operation, never part of the request path.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/amckee/cantata/internal/catalog"
	"github.com/amckee/cantata/internal/position"
	"github.com/amckee/cantata/internal/similarity"
	"github.com/amckee/cantata/internal/source"
)

// ClusterThreshold is the minimum album similarity for two canonical rows
// to be merged. It sits above the resolver's link threshold: merging is
// destructive, so it demands more confidence than linking.
const ClusterThreshold = 0.88

// Deduper runs the merge pass.
type Deduper struct {
	catalog *catalog.Service
	logger  *slog.Logger
}

// New creates a Deduper.
func New(cat *catalog.Service, logger *slog.Logger) *Deduper {
	return &Deduper{
		catalog: cat,
		logger:  logger.With(slog.String("component", "dedupe")),
	}
}

// Merge describes one merged cluster.
type Merge struct {
	SurvivorID    string
	Title         string
	Artist        string
	AbsorbedIDs   []string
	TracksRemoved int
}

// Result summarizes a full merge pass.
type Result struct {
	AlbumsScanned int
	Clusters      int
	Absorbed      int
	TracksRemoved int
	Merges        []Merge
}

// Run executes one full merge pass. With dryRun set it clusters and
// reports but writes nothing.
func (d *Deduper) Run(ctx context.Context, dryRun bool) (*Result, error) {
	albums, err := d.catalog.ListAllAlbums(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}

	result := &Result{AlbumsScanned: len(albums)}
	processed := make([]bool, len(albums))

	// Greedy clustering in creation order: each unprocessed album sweeps
	// all later albums and absorbs everything above the threshold.
	for i := range albums {
		if processed[i] {
			continue
		}
		cluster := []*catalog.Album{&albums[i]}
		processed[i] = true
		for j := i + 1; j < len(albums); j++ {
			if processed[j] {
				continue
			}
			score := similarity.AlbumScore(albums[i].Artist, albums[i].Title, albums[j].Artist, albums[j].Title)
			if score >= ClusterThreshold {
				cluster = append(cluster, &albums[j])
				processed[j] = true
			}
		}
		if len(cluster) < 2 {
			continue
		}

		result.Clusters++
		merge, err := d.mergeCluster(ctx, cluster, dryRun)
		if err != nil {
			return nil, err
		}
		result.Absorbed += len(merge.AbsorbedIDs)
		result.TracksRemoved += merge.TracksRemoved
		result.Merges = append(result.Merges, *merge)
	}
	return result, nil
}

// mergeCluster merges one cluster into its survivor.
func (d *Deduper) mergeCluster(ctx context.Context, cluster []*catalog.Album, dryRun bool) (*Merge, error) {
	survivor := pickSurvivor(cluster)
	merge := &Merge{
		SurvivorID: survivor.ID,
		Title:      survivor.Title,
		Artist:     survivor.Artist,
	}
	for _, a := range cluster {
		if a.ID != survivor.ID {
			merge.AbsorbedIDs = append(merge.AbsorbedIDs, a.ID)
		}
	}

	d.logger.Info("merging cluster",
		slog.String("survivor_id", survivor.ID),
		slog.String("title", survivor.Title),
		slog.Int("absorbed", len(merge.AbsorbedIDs)),
		slog.Bool("dry_run", dryRun))

	if dryRun {
		return merge, nil
	}

	for _, a := range cluster {
		if a.ID == survivor.ID {
			continue
		}
		if err := d.catalog.ReassignAlbumDependents(ctx, a.ID, survivor.ID); err != nil {
			return nil, fmt.Errorf("re-pointing dependents of %s: %w", a.ID, err)
		}
		unionSourceIDs(survivor, a)
		if err := d.catalog.DeleteAlbum(ctx, a.ID); err != nil {
			return nil, fmt.Errorf("deleting absorbed album %s: %w", a.ID, err)
		}
	}
	if err := d.catalog.UpdateAlbum(ctx, survivor); err != nil {
		return nil, fmt.Errorf("saving survivor %s: %w", survivor.ID, err)
	}

	removed, err := d.DedupeTracks(ctx, survivor.ID)
	if err != nil {
		return nil, err
	}
	merge.TracksRemoved = removed

	if err := d.catalog.RefreshAlbumTrackCount(ctx, survivor.ID); err != nil {
		return nil, fmt.Errorf("refreshing survivor track count: %w", err)
	}
	return merge, nil
}

// pickSurvivor chooses the canonical row for a cluster: the strongest
// external-id presence wins, ties going to the earliest-created row.
func pickSurvivor(cluster []*catalog.Album) *catalog.Album {
	best := cluster[0]
	bestScore := sourceIDScore(best)
	for _, a := range cluster[1:] {
		score := sourceIDScore(a)
		switch {
		case score > bestScore:
			best, bestScore = a, score
		case score == bestScore && a.CreatedAt.Before(best.CreatedAt):
			best = a
		}
	}
	return best
}

// sourceIDScore weights external-id presence by source priority.
func sourceIDScore(a *catalog.Album) int {
	score := 0
	weight := 1 << uint(len(source.AllNames()))
	for _, src := range source.AllNames() {
		if a.SourceID(src) != "" {
			score += weight
		}
		weight >>= 1
	}
	return score
}

// unionSourceIDs copies the absorbed album's external ids onto the
// survivor where the survivor's columns are still empty.
func unionSourceIDs(survivor, absorbed *catalog.Album) {
	for _, src := range source.AllNames() {
		if survivor.SourceID(src) == "" && absorbed.SourceID(src) != "" {
			survivor.SetSourceID(src, absorbed.SourceID(src))
		}
	}
}

// DedupeTracks removes duplicate tracks on one album and renumbers the
// rest densely. Tracks are grouped by normalized position when present,
// otherwise by lowercased title; within a group the track with the most
// external ids survives, ties going to the earliest created. Returns the
// number of tracks deleted.
func (d *Deduper) DedupeTracks(ctx context.Context, albumID string) (int, error) {
	tracks, err := d.catalog.ListTracksByAlbum(ctx, albumID)
	if err != nil {
		return 0, fmt.Errorf("listing tracks of %s: %w", albumID, err)
	}

	groups := make(map[string][]*catalog.Track)
	var order []string
	for i := range tracks {
		t := &tracks[i]
		key := t.Position
		if key == "" {
			key = "title:" + strings.ToLower(t.Title)
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	removed := 0
	var keepers []*catalog.Track
	for _, key := range order {
		group := groups[key]
		keeper := group[0]
		for _, t := range group[1:] {
			if betterKeeper(t, keeper) {
				keeper = t
			}
		}
		for _, t := range group {
			if t.ID == keeper.ID {
				continue
			}
			if err := d.catalog.DeleteTrack(ctx, t.ID); err != nil {
				return removed, fmt.Errorf("deleting duplicate track %s: %w", t.ID, err)
			}
			removed++
		}
		keepers = append(keepers, keeper)
	}

	// Renumber densely by (position, title).
	sort.SliceStable(keepers, func(i, j int) bool {
		pi, pj := position.Parse(keepers[i].Position), position.Parse(keepers[j].Position)
		if c := position.Compare(pi, pj); c != 0 {
			return c < 0
		}
		return strings.ToLower(keepers[i].Title) < strings.ToLower(keepers[j].Title)
	})
	for i, t := range keepers {
		want := i + 1
		if t.TrackNumber == want {
			continue
		}
		if err := d.catalog.SetTrackNumber(ctx, t.ID, want); err != nil {
			return removed, fmt.Errorf("renumbering track %s: %w", t.ID, err)
		}
	}
	return removed, nil
}

// betterKeeper reports whether a should survive over b.
func betterKeeper(a, b *catalog.Track) bool {
	if ca, cb := a.ExternalIDCount(), b.ExternalIDCount(); ca != cb {
		return ca > cb
	}
	return a.CreatedAt.Before(b.CreatedAt)
}
