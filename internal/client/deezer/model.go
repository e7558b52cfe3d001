package deezer

import "io"

// FetchTrackResult represents the result of fetching an audio stream.
type FetchTrackResult struct {
	// Body is the response body stream.
	Body io.ReadCloser
	// TotalBytes is the total size of the stream in bytes, or -1 when unknown.
	TotalBytes int64
}

// Track represents gateway metadata for a single song.
// The gateway returns most numeric fields as strings.
type Track struct {
	// ID is the unique song identifier.
	ID string `json:"SNG_ID"`
	// Title is the song name without version suffix.
	Title string `json:"SNG_TITLE"`
	// Version is the optional version/remix suffix, e.g. "(Remastered)".
	Version string `json:"VERSION"`
	// ArtistName is the primary artist name.
	ArtistName string `json:"ART_NAME"`
	// Artists is the full list of contributing artists.
	Artists []*TrackArtist `json:"ARTISTS"`
	// AlbumID is the identifier of the owning album.
	AlbumID string `json:"ALB_ID"`
	// AlbumTitle is the owning album's name.
	AlbumTitle string `json:"ALB_TITLE"`
	// AlbumPicture is the content-hash identifier of the album cover.
	AlbumPicture string `json:"ALB_PICTURE"`
	// TrackNumber is the 1-based position within the album disc.
	TrackNumber string `json:"TRACK_NUMBER"`
	// DiskNumber is the 1-based disc number.
	DiskNumber string `json:"DISK_NUMBER"`
	// PhysicalReleaseDate is the release date in ISO form (YYYY-MM-DD).
	PhysicalReleaseDate string `json:"PHYSICAL_RELEASE_DATE"`
	// ISRC is the international standard recording code.
	ISRC string `json:"ISRC"`
	// Duration is the track length in seconds.
	Duration string `json:"DURATION"`
	// TrackToken is the per-track rights token required for media URL requests.
	TrackToken string `json:"TRACK_TOKEN"`
	// TrackTokenExpire is the Unix timestamp after which TrackToken is stale.
	TrackTokenExpire int64 `json:"TRACK_TOKEN_EXPIRE"`
	// Contributors lists composers, publishers and similar credits.
	Contributors *TrackContributors `json:"SNG_CONTRIBUTORS"`
	// FilesizeMP3128 is the stream size for the MP3_128 format, "0" when unavailable.
	FilesizeMP3128 string `json:"FILESIZE_MP3_128"`
	// FilesizeMP3320 is the stream size for the MP3_320 format, "0" when unavailable.
	FilesizeMP3320 string `json:"FILESIZE_MP3_320"`
	// FilesizeFLAC is the stream size for the FLAC format, "0" when unavailable.
	FilesizeFLAC string `json:"FILESIZE_FLAC"`
}

// TrackArtist represents one contributing artist of a track.
type TrackArtist struct {
	// ID is the unique artist identifier.
	ID string `json:"ART_ID"`
	// Name is the artist name.
	Name string `json:"ART_NAME"`
	// Picture is the content-hash identifier of the artist image.
	Picture string `json:"ART_PICTURE"`
}

// TrackContributors represents credit lists attached to a track.
type TrackContributors struct {
	// Composers lists the composers of the track.
	Composers []string `json:"composer"`
	// Publishers lists the publishers of the track.
	Publishers []string `json:"publisher"`
	// MainArtists lists the main credited artists.
	MainArtists []string `json:"main_artist"`
}

// Album represents gateway metadata for an album page.
type Album struct {
	// ID is the unique album identifier.
	ID string `json:"ALB_ID"`
	// Title is the album name.
	Title string `json:"ALB_TITLE"`
	// ArtistName is the album-level artist name.
	ArtistName string `json:"ART_NAME"`
	// Picture is the content-hash identifier of the album cover.
	Picture string `json:"ALB_PICTURE"`
	// NumberTrack is the total track count.
	NumberTrack string `json:"NUMBER_TRACK"`
	// NumberDisk is the total disc count.
	NumberDisk string `json:"NUMBER_DISK"`
	// PhysicalReleaseDate is the release date in ISO form (YYYY-MM-DD).
	PhysicalReleaseDate string `json:"PHYSICAL_RELEASE_DATE"`
	// LabelName is the publishing label name.
	LabelName string `json:"LABEL_NAME"`
	// Tracks is the ordered track list of the album; filled from the page response.
	Tracks []*Track `json:"-"`
	// Genre is the album's primary genre name; filled from the page response.
	Genre string `json:"-"`
}

// Playlist represents gateway metadata for a playlist page.
type Playlist struct {
	// ID is the unique playlist identifier.
	ID string `json:"PLAYLIST_ID"`
	// Title is the playlist name.
	Title string `json:"TITLE"`
	// Picture is the content-hash identifier of the playlist cover.
	Picture string `json:"PLAYLIST_PICTURE"`
	// NumberSongs is the total number of songs in the playlist.
	NumberSongs int64 `json:"NB_SONG"`
	// Tracks is the ordered track list of the playlist; filled from the page response.
	Tracks []*Track `json:"-"`
}

// Lyrics represents gateway lyrics data for a track.
type Lyrics struct {
	// ID is the unique lyrics identifier.
	ID string `json:"LYRICS_ID"`
	// Text is the plain, unsynchronized lyrics text.
	Text string `json:"LYRICS_TEXT"`
	// SyncJSON is the list of synchronized lyrics lines.
	SyncJSON []*SyncedLyricsLine `json:"LYRICS_SYNC_JSON"`
	// Writers lists the lyrics writers.
	Writers string `json:"LYRICS_WRITERS"`
}

// SyncedLyricsLine represents one timestamped lyrics line.
type SyncedLyricsLine struct {
	// LRCTimestamp is the pre-rendered "[mm:ss.xx]" timestamp, empty for spacer lines.
	LRCTimestamp string `json:"lrc_timestamp"`
	// Milliseconds is the absolute offset of the line from the track start.
	Milliseconds string `json:"milliseconds"`
	// Duration is how long the line stays active, in milliseconds.
	Duration string `json:"duration"`
	// Line is the lyrics text of the line.
	Line string `json:"line"`
}

// UserProfile represents the authenticated user's account data.
type UserProfile struct {
	// UserID is the numeric account identifier; zero means the session is anonymous.
	UserID int64
	// UserName is the account display name.
	UserName string
	// Country is the two-letter account country code.
	Country string
	// OfferName is the subscription plan name.
	OfferName string
	// CanStreamLossless indicates whether the subscription allows FLAC streaming.
	CanStreamLossless bool
	// CanStreamHQ indicates whether the subscription allows MP3_320 streaming.
	CanStreamHQ bool
}

// mediaRequest represents the body of a media URL request.
type mediaRequest struct {
	// LicenseToken is the short-lived license token from the session.
	LicenseToken string `json:"license_token"`
	// Media lists the requested media entries.
	Media []mediaRequestEntry `json:"media"`
	// TrackTokens lists the per-track rights tokens, parallel to Media.
	TrackTokens []string `json:"track_tokens"`
}

// mediaRequestEntry represents one requested media entry.
type mediaRequestEntry struct {
	// Type is the media type, always "FULL".
	Type string `json:"type"`
	// Formats lists the acceptable cipher/format pairs in preference order.
	Formats []mediaRequestFormat `json:"formats"`
}

// mediaRequestFormat represents one acceptable cipher/format pair.
type mediaRequestFormat struct {
	// Cipher is the stream encryption scheme.
	Cipher string `json:"cipher"`
	// Format is the audio format name (MP3_128, MP3_320 or FLAC).
	Format string `json:"format"`
}

// mediaResponse represents the body of a media URL response.
type mediaResponse struct {
	// Data holds one entry per requested track token.
	Data []mediaResponseData `json:"data"`
}

// mediaResponseData represents the media URL result for one track.
type mediaResponseData struct {
	// Media lists the granted media entries with their source URLs.
	Media []mediaResponseEntry `json:"media"`
	// Errors lists rights errors when no media was granted.
	Errors []mediaResponseError `json:"errors"`
}

// mediaResponseEntry represents one granted media entry.
type mediaResponseEntry struct {
	// Format is the granted audio format name.
	Format string `json:"format"`
	// Sources lists the mirrors serving the stream.
	Sources []mediaResponseSource `json:"sources"`
}

// mediaResponseSource represents one mirror serving a stream.
type mediaResponseSource struct {
	// URL is the signed, time-limited stream URL.
	URL string `json:"url"`
	// Provider is the mirror name.
	Provider string `json:"provider"`
}

// mediaResponseError represents one rights error from the media endpoint.
type mediaResponseError struct {
	// Code is the numeric rights error code.
	Code int64 `json:"code"`
	// Message is the human-readable error description.
	Message string `json:"message"`
}
