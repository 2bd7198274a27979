package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amckee/cantata/internal/source"
	"github.com/amckee/cantata/internal/version"
)

const defaultBaseURL = "https://api.discogs.com"

// Client implements the source.Client interface for Discogs.
type Client struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	token   string
}

// New creates a Discogs client with the default base URL. The token is a
// Discogs personal access token; requests go out unauthenticated when it
// is empty, at a much lower rate limit.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, token string) *Client {
	return NewWithBaseURL(limiter, logger, token, defaultBaseURL)
}

// NewWithBaseURL creates a Discogs client with a custom base URL (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, token, baseURL string) *Client {
	return &Client{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "discogs")),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Name returns the source name.
func (c *Client) Name() source.Name { return source.NameDiscogs }

// SearchReleases searches the Discogs database for releases.
func (c *Client) SearchReleases(ctx context.Context, query string, limit int) ([]source.ReleaseSearchResult, error) {
	params := url.Values{
		"q":        {query},
		"type":     {"release"},
		"per_page": {strconv.Itoa(limit)},
	}
	reqURL := c.baseURL + "/database/search?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]source.ReleaseSearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		artist, title := splitSearchTitle(r.Title)
		results = append(results, source.ReleaseSearchResult{
			ID:          strconv.Itoa(r.ID),
			Title:       title,
			Artist:      artist,
			ReleaseDate: r.Year,
			CoverURL:    r.CoverImage,
		})
	}
	return results, nil
}

// GetRelease fetches a full release by its Discogs ID. The tracklist is
// flat; Discogs does not group tracks into media, so the release comes
// back as a single medium with the raw vinyl/CD positions preserved.
func (c *Client) GetRelease(ctx context.Context, id string) (*source.Release, error) {
	reqURL := c.baseURL + "/releases/" + url.PathEscape(id)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var detail ReleaseDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing release response: %w", err)
	}

	return mapRelease(&detail), nil
}

// GetArtist fetches full artist metadata by Discogs ID.
func (c *Client) GetArtist(ctx context.Context, id string) (*source.Artist, error) {
	reqURL := c.baseURL + "/artists/" + url.PathEscape(id)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var detail ArtistDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}

	out := &source.Artist{
		ID:   strconv.Itoa(detail.ID),
		Name: detail.Name,
	}
	for _, img := range detail.Images {
		if img.Type == "primary" && img.URI != "" {
			out.ImageURL = img.URI
			break
		}
	}
	if out.ImageURL == "" && len(detail.Images) > 0 {
		out.ImageURL = detail.Images[0].URI
	}
	return out, nil
}

// SearchArtists searches the Discogs database for artists.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]source.ArtistSearchResult, error) {
	params := url.Values{
		"q":    {query},
		"type": {"artist"},
	}
	reqURL := c.baseURL + "/database/search?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]source.ArtistSearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, source.ArtistSearchResult{
			ID:   strconv.Itoa(r.ID),
			Name: r.Title,
		})
	}
	return results, nil
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, source.NameDiscogs); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameDiscogs,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}
	req.Header.Set("User-Agent", "Cantata/"+version.Version)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameDiscogs,
			Cause:  err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrNotFound{Source: source.NameDiscogs, ID: reqURL}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameDiscogs,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapRelease converts a Discogs release to the common Release type.
func mapRelease(detail *ReleaseDetail) *source.Release {
	out := &source.Release{
		ID:    strconv.Itoa(detail.ID),
		Title: detail.Title,
	}
	if detail.Year > 0 {
		out.ReleaseDate = strconv.Itoa(detail.Year)
	}

	var artists []string
	for _, a := range detail.Artists {
		if a.Name != "" {
			artists = append(artists, cleanArtistName(a.Name))
		}
	}
	out.Artist = strings.Join(artists, " & ")

	out.Genres = append(out.Genres, detail.Genres...)
	out.Genres = append(out.Genres, detail.Styles...)

	for _, img := range detail.Images {
		if img.Type == "primary" && img.URI != "" {
			out.CoverURL = img.URI
			break
		}
	}
	if out.CoverURL == "" && len(detail.Images) > 0 {
		out.CoverURL = detail.Images[0].URI
	}

	medium := source.Medium{Tracks: make([]source.ReleaseTrack, 0, len(detail.Tracklist))}
	for _, t := range detail.Tracklist {
		// Heading rows ("Side A") and index tracks carry no position.
		if t.Type != "" && t.Type != "track" {
			continue
		}
		medium.Tracks = append(medium.Tracks, source.ReleaseTrack{
			Title:      t.Title,
			Position:   t.Position,
			DurationMS: parseDuration(t.Duration),
		})
	}
	out.Media = []source.Medium{medium}
	return out
}

// splitSearchTitle splits a Discogs search title of the form
// "Artist - Title" into its parts. Titles without the separator come
// back with an empty artist.
func splitSearchTitle(s string) (artist, title string) {
	artist, title, found := strings.Cut(s, " - ")
	if !found {
		return "", s
	}
	return cleanArtistName(artist), title
}

// cleanArtistName strips the disambiguation suffix Discogs appends to
// duplicate artist names, e.g. "Nirvana (2)".
func cleanArtistName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " ("); i > 0 && strings.HasSuffix(name, ")") {
		suffix := name[i+2 : len(name)-1]
		if _, err := strconv.Atoi(suffix); err == nil {
			return name[:i]
		}
	}
	return name
}

// parseDuration converts a Discogs "m:ss" or "h:mm:ss" duration string
// to milliseconds. Malformed or empty durations come back as 0.
func parseDuration(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total * 1000
}
