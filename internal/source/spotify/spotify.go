package spotify

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

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/amckee/cantata/internal/source"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Client implements the source.Client interface for the Spotify Web API.
// It authenticates with the OAuth2 client-credentials flow; the oauth2
// package caches the access token and refreshes it near expiry.
type Client struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates a Spotify client with the default API endpoints.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, clientID, clientSecret string) *Client {
	return NewWithBaseURL(limiter, logger, clientID, clientSecret, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify client with custom endpoints (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, clientID, clientSecret, baseURL, tokenURL string) *Client {
	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// Token requests go through their own client; give it the same timeout
	// as the API requests.
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient,
		&http.Client{Timeout: 10 * time.Second})
	httpClient := conf.Client(ctx)
	httpClient.Timeout = 10 * time.Second

	return &Client{
		client:  httpClient,
		limiter: limiter,
		logger:  logger.With(slog.String("source", "spotify")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source name.
func (c *Client) Name() source.Name { return source.NameSpotify }

// SearchReleases searches Spotify albums by free text.
func (c *Client) SearchReleases(ctx context.Context, query string, limit int) ([]source.ReleaseSearchResult, error) {
	params := url.Values{
		"q":     {query},
		"type":  {"album"},
		"limit": {strconv.Itoa(limit)},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]source.ReleaseSearchResult, 0, len(resp.Albums.Items))
	for _, a := range resp.Albums.Items {
		results = append(results, source.ReleaseSearchResult{
			ID:          a.ID,
			Title:       a.Name,
			Artist:      joinArtists(a.Artists),
			ReleaseDate: a.ReleaseDate,
			CoverURL:    largestImage(a.Images),
		})
	}
	return results, nil
}

// GetRelease fetches a full album, including its tracks, by Spotify ID.
// Disc and track numbers are folded into positions the way a multi-disc
// CD booklet prints them ("3" on disc one, "2-03" on later discs).
func (c *Client) GetRelease(ctx context.Context, id string) (*source.Release, error) {
	reqURL := c.baseURL + "/albums/" + url.PathEscape(id)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var album Album
	if err := json.Unmarshal(body, &album); err != nil {
		return nil, fmt.Errorf("parsing album response: %w", err)
	}

	return mapAlbum(&album), nil
}

// GetArtist fetches full artist metadata by Spotify ID.
func (c *Client) GetArtist(ctx context.Context, id string) (*source.Artist, error) {
	reqURL := c.baseURL + "/artists/" + url.PathEscape(id)

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var artist ArtistDetail
	if err := json.Unmarshal(body, &artist); err != nil {
		return nil, fmt.Errorf("parsing artist response: %w", err)
	}

	return &source.Artist{
		ID:       artist.ID,
		Name:     artist.Name,
		ImageURL: largestImage(artist.Images),
		Genres:   artist.Genres,
	}, nil
}

// SearchArtists searches Spotify for artists matching the given name.
func (c *Client) SearchArtists(ctx context.Context, query string) ([]source.ArtistSearchResult, error) {
	params := url.Values{
		"q":     {query},
		"type":  {"artist"},
		"limit": {"25"},
	}
	reqURL := c.baseURL + "/search?" + params.Encode()

	body, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]source.ArtistSearchResult, 0, len(resp.ArtistsPage.Items))
	for _, a := range resp.ArtistsPage.Items {
		results = append(results, source.ArtistSearchResult{
			ID:   a.ID,
			Name: a.Name,
		})
	}
	return results, nil
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx, source.NameSpotify); err != nil {
		return nil, &source.ErrUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	// The oauth2 transport attaches the bearer token, fetching or refreshing
	// it first when needed. Token endpoint failures surface here.
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &source.ErrUnavailable{Source: source.NameSpotify, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrNotFound{Source: source.NameSpotify, ID: reqURL}
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.ErrUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// mapAlbum converts a Spotify album to the common Release type, grouping
// tracks into one medium per disc.
func mapAlbum(album *Album) *source.Release {
	out := &source.Release{
		ID:          album.ID,
		Title:       album.Name,
		Artist:      joinArtists(album.Artists),
		ReleaseDate: album.ReleaseDate,
		CoverURL:    largestImage(album.Images),
		Genres:      album.Genres,
	}

	totalDiscs := maxDiscNumber(album)
	discs := make(map[int][]source.ReleaseTrack)
	for _, t := range album.Tracks.Items {
		disc := t.DiscNumber
		if disc < 1 {
			disc = 1
		}
		discs[disc] = append(discs[disc], source.ReleaseTrack{
			ID:         t.ID,
			Title:      t.Name,
			Position:   formatPosition(disc, t.TrackNumber, totalDiscs),
			DurationMS: t.DurationMS,
		})
	}
	for disc := 1; disc <= totalDiscs; disc++ {
		if tracks, ok := discs[disc]; ok {
			out.Media = append(out.Media, source.Medium{Tracks: tracks})
		}
	}
	return out
}

// maxDiscNumber returns the highest disc number in the album's tracks.
func maxDiscNumber(album *Album) int {
	max := 1
	for _, t := range album.Tracks.Items {
		if t.DiscNumber > max {
			max = t.DiscNumber
		}
	}
	return max
}

// formatPosition renders a disc/track pair as a position label. Single
// disc albums use the bare track number; multi-disc albums prefix the
// disc ("2-03").
func formatPosition(disc, track, totalDiscs int) string {
	if totalDiscs <= 1 {
		return strconv.Itoa(track)
	}
	return fmt.Sprintf("%d-%02d", disc, track)
}

// joinArtists flattens an artist list into a display string.
func joinArtists(artists []ArtistRef) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}

// largestImage picks the widest image URL, or "" when there are none.
func largestImage(images []Image) string {
	best := ""
	bestWidth := -1
	for _, img := range images {
		if img.Width > bestWidth && img.URL != "" {
			best = img.URL
			bestWidth = img.Width
		}
	}
	return best
}
