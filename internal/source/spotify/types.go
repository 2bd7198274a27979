package spotify

// Spotify Web API response types.

// SearchResponse is the top-level response from the search endpoint. The
// populated page depends on the requested type.
type SearchResponse struct {
	Albums      AlbumPage  `json:"albums"`
	ArtistsPage ArtistPage `json:"artists"`
}

// AlbumPage is a paged list of albums.
type AlbumPage struct {
	Items []Album `json:"items"`
	Total int     `json:"total"`
}

// ArtistPage is a paged list of artists.
type ArtistPage struct {
	Items []ArtistDetail `json:"items"`
	Total int            `json:"total"`
}

// Album is a Spotify album, from search (without tracks) or lookup.
type Album struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ReleaseDate string      `json:"release_date"`
	Artists     []ArtistRef `json:"artists"`
	Images      []Image     `json:"images"`
	Genres      []string    `json:"genres"`
	Tracks      TrackPage   `json:"tracks"`
}

// TrackPage is a paged list of album tracks.
type TrackPage struct {
	Items []AlbumTrack `json:"items"`
	Total int          `json:"total"`
}

// AlbumTrack is a track on an album.
type AlbumTrack struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DiscNumber  int    `json:"disc_number"`
	TrackNumber int    `json:"track_number"`
	DurationMS  int    `json:"duration_ms"`
}

// ArtistDetail is a full Spotify artist.
type ArtistDetail struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
	Images []Image  `json:"images"`
}

// ArtistRef is a simplified artist reference on an album or track.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Image is a Spotify image in one of several sizes.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
