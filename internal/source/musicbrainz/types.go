package musicbrainz

// MusicBrainz API response types.

// ReleaseSearchResponse is the top-level response from the release search endpoint.
type ReleaseSearchResponse struct {
	Releases []MBRelease `json:"releases"`
	Count    int         `json:"count"`
}

// ArtistSearchResponse is the top-level response from the artist search endpoint.
type ArtistSearchResponse struct {
	Artists []MBArtist `json:"artists"`
	Count   int        `json:"count"`
}

// MBRelease is a MusicBrainz release, from search or lookup.
type MBRelease struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Genres       []Genre        `json:"genres"`
	Media        []MBMedium     `json:"media"`
}

// MBMedium is one disc or side of a release.
type MBMedium struct {
	Format   string    `json:"format"`
	Position int       `json:"position"`
	Tracks   []MBTrack `json:"tracks"`
}

// MBTrack is a track on a medium. Number is the display position
// ("A1", "1", "2"); Position is the 1-based ordinal on the medium.
type MBTrack struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Number    string       `json:"number"`
	Position  int          `json:"position"`
	Length    int          `json:"length"`
	Recording *MBRecording `json:"recording"`
}

// MBRecording is the recording behind a track.
type MBRecording struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

// MBArtist is a MusicBrainz artist, from search or lookup.
type MBArtist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Genres []Genre `json:"genres"`
}

// ArtistCredit is one entry in a release's artist-credit array.
type ArtistCredit struct {
	Name       string    `json:"name"`
	JoinPhrase string    `json:"joinphrase"`
	Artist     *MBArtist `json:"artist"`
}

// Genre is a MusicBrainz genre entry.
type Genre struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
