package discogs

// Discogs API response types.

// SearchResponse is the top-level response from the database search endpoint.
type SearchResponse struct {
	Results    []SearchResult `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// SearchResult represents a single search hit. Release titles come back
// as "Artist - Title"; artist hits carry just the name.
type SearchResult struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	Type       string `json:"type"`
	Year       string `json:"year"`
	Thumb      string `json:"thumb"`
	CoverImage string `json:"cover_image"`
}

// Pagination holds pagination info.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// ReleaseDetail is the full release response from Discogs.
type ReleaseDetail struct {
	ID        int              `json:"id"`
	Title     string           `json:"title"`
	Year      int              `json:"year"`
	Artists   []ArtistRef      `json:"artists"`
	Genres    []string         `json:"genres"`
	Styles    []string         `json:"styles"`
	Images    []Image          `json:"images"`
	Tracklist []TracklistEntry `json:"tracklist"`
}

// TracklistEntry is one row of a release tracklist. Position is the raw
// label as printed on the release ("A1", "3", "2-05"); Type is "track"
// for playable rows, "heading" or "index" for structural ones.
type TracklistEntry struct {
	Position string `json:"position"`
	Type     string `json:"type_"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

// ArtistDetail is the full artist response from Discogs.
type ArtistDetail struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// ArtistRef is a reference to an artist on a release.
type ArtistRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Image represents a Discogs image.
type Image struct {
	Type   string `json:"type"` // "primary" or "secondary"
	URI    string `json:"uri"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
