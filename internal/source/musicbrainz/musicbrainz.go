package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amckee/cantata/internal/source"
	"github.com/amckee/cantata/internal/version"
)

const (
	defaultBaseURL  = "https://musicbrainz.org/ws/2"
	defaultCoverURL = "https://coverartarchive.org"
)

// Client implements the source.Client interface for MusicBrainz.
type Client struct {
	client   *http.Client
	limiter  *source.RateLimiterMap
	logger   *slog.Logger
	baseURL  string
	coverURL string
}

// New creates a MusicBrainz client with the default base URLs.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Client {
	return NewWithBaseURL(limiter, logger, defaultBaseURL, defaultCoverURL)
}

// NewWithBaseURL creates a MusicBrainz client with custom base URLs (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL, coverURL string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:  limiter,
		logger:   logger.With(slog.String("source", "musicbrainz")),
		baseURL:  strings.TrimRight(baseURL, "/"),
		coverURL: strings.TrimRight(coverURL, "/"),
	}
}

// Name returns the source name.
func (c *Client) Name() source.Name { return source.NameMusicBrainz }

// SearchReleases searches MusicBrainz releases by free text.
func (c *Client) SearchReleases(ctx context.Context, query string, limit int) ([]source.ReleaseSearchResult, error) {
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {fmt.Sprintf("%d", limit)},
	}
	reqURL := c.baseURL + "/release?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp ReleaseSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing release search response: %w", err)
	}

	results := make([]source.ReleaseSearchResult, 0, len(resp.Releases))
	for _, r := range resp.Releases {
		results = append(results, source.ReleaseSearchResult{
			ID:          r.ID,
			Title:       r.Title,
			Artist:      joinArtistCredit(r.ArtistCredit),
			ReleaseDate: r.Date,
			CoverURL:    c.frontCoverURL(r.ID),
		})
	}
	return results, nil
}

// GetRelease fetches a full release with its media and recordings.
func (c *Client) GetRelease(ctx context.Context, id string) (*source.Release, error) {
	params := url.Values{
		"inc": {"recordings+artist-credits+genres"},
		"fmt": {"json"},
	}
	reqURL := c.baseURL + "/release/" + url.PathEscape(id) + "?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var rel MBRelease
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("parsing release response: %w", err)
	}

	return c.mapRelease(&rel), nil
}

// GetArtist fetches full artist metadata by MBID.
func (c *Client) GetArtist(ctx context.Context, id string) (*source.Artist, error) {
	params := url.Values{
		"inc": {"genres"},
		"fmt": {"json"},
	}
	reqURL := c.baseURL + "/artist/" + url.PathEscape(id) + "?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var artist MBArtist
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}

	out := &source.Artist{
		ID:   artist.ID,
		Name: artist.Name,
	}
	for _, g := range artist.Genres {
		if g.Name != "" {
			out.Genres = append(out.Genres, g.Name)
		}
	}
	// MusicBrainz does not host artist images; ImageURL stays empty and the
	// indexer falls back to another source.
	return out, nil
}

// SearchArtists searches MusicBrainz for artists matching the given name.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]source.ArtistSearchResult, error) {
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {"25"},
	}
	reqURL := c.baseURL + "/artist?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp ArtistSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing artist search response: %w", err)
	}

	results := make([]source.ArtistSearchResult, 0, len(resp.Artists))
	for _, a := range resp.Artists {
		results = append(results, source.ArtistSearchResult{
			ID:   a.ID,
			Name: a.Name,
		})
	}
	return results, nil
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, source.NameMusicBrainz); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent())
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrNotFound{
			Source: source.NameMusicBrainz,
			ID:     reqURL,
		}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapRelease converts a MusicBrainz release to the common Release type,
// preserving the medium boundaries and track order.
func (c *Client) mapRelease(rel *MBRelease) *source.Release {
	out := &source.Release{
		ID:          rel.ID,
		Title:       rel.Title,
		Artist:      joinArtistCredit(rel.ArtistCredit),
		ReleaseDate: rel.Date,
		CoverURL:    c.frontCoverURL(rel.ID),
	}
	for _, g := range rel.Genres {
		if g.Name != "" {
			out.Genres = append(out.Genres, g.Name)
		}
	}
	for _, medium := range rel.Media {
		m := source.Medium{Tracks: make([]source.ReleaseTrack, 0, len(medium.Tracks))}
		for _, t := range medium.Tracks {
			track := source.ReleaseTrack{
				ID:       t.ID,
				Title:    t.Title,
				Position: t.Number,
			}
			if track.Title == "" && t.Recording != nil {
				track.Title = t.Recording.Title
			}
			if t.Length > 0 {
				track.DurationMS = t.Length
			} else if t.Recording != nil {
				track.DurationMS = t.Recording.Length
			}
			m.Tracks = append(m.Tracks, track)
		}
		out.Media = append(out.Media, m)
	}
	return out
}

// frontCoverURL builds the Cover Art Archive front-image URL for a release.
// The archive serves a redirect whether or not art exists; availability is
// not checked here.
func (c *Client) frontCoverURL(releaseID string) string {
	return c.coverURL + "/release/" + url.PathEscape(releaseID) + "/front-500"
}

// joinArtistCredit flattens an artist-credit array into a display string,
// honoring join phrases ("feat.", " & ").
func joinArtistCredit(credits []ArtistCredit) string {
	var b strings.Builder
	for _, credit := range credits {
		if credit.Name != "" {
			b.WriteString(credit.Name)
		} else if credit.Artist != nil {
			b.WriteString(credit.Artist.Name)
		}
		b.WriteString(credit.JoinPhrase)
	}
	return strings.TrimSpace(b.String())
}

func userAgent() string {
	return fmt.Sprintf("Cantata/%s (https://github.com/amckee/cantata)", version.Version)
}
