package downloader

import (
	"strconv"
	"strings"

	"github.com/deegrab/deegrab/internal/client/deezer"
	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/constants"
)

// DownloadKind identifies what context a track is downloaded in.
// It selects the filename template and the position source.
type DownloadKind string

const (
	// KindTrack is a standalone track download.
	KindTrack DownloadKind = "track"
	// KindAlbumTrack is a track downloaded as part of an album.
	KindAlbumTrack DownloadKind = "album_track"
	// KindPlaylistTrack is a track downloaded as part of a playlist.
	KindPlaylistTrack DownloadKind = "playlist_track"
)

// DownloadCategory represents the type of content a URL points at.
type DownloadCategory uint8

const (
	// DownloadCategoryUnknown represents an unrecognized URL.
	DownloadCategoryUnknown DownloadCategory = iota
	// DownloadCategoryTrack represents a single track URL.
	DownloadCategoryTrack
	// DownloadCategoryAlbum represents an album URL.
	DownloadCategoryAlbum
	// DownloadCategoryPlaylist represents a playlist URL.
	DownloadCategoryPlaylist
)

// Placeholder values used when authoritative metadata could not be resolved.
const (
	// UnknownArtist substitutes a missing artist name.
	UnknownArtist = "Unknown Artist"
	// UnknownAlbum substitutes a missing album title.
	UnknownAlbum = "Unknown Album"
	// UnknownTitle substitutes a missing track title.
	UnknownTitle = "Unknown Title"
)

// TrackMetadata is the resolved, read-only description of one track.
// Numeric positions are already parsed and floored at 1.
type TrackMetadata struct {
	// ID is the track's numeric identifier as a string.
	ID string
	// Title is the track name, version suffix included when present.
	Title string
	// Artist is the primary artist name.
	Artist string
	// ArtistNames lists every contributing artist, primary first.
	ArtistNames []string
	// MainArtists lists artists credited with the "main" role.
	MainArtists []string
	// AlbumID is the owning album's identifier.
	AlbumID string
	// Album is the owning album's title.
	Album string
	// AlbumArtist is the album-level artist name when the source carried one.
	AlbumArtist string
	// TrackNumber is the 1-based position within the disc, never 0.
	TrackNumber int64
	// DiscNumber is the 1-based disc number, never 0.
	DiscNumber int64
	// PlaylistPosition is the 1-based position within the owning playlist;
	// zero means the track was not queued from a playlist. When set it
	// overrides TrackNumber in filenames and tags.
	PlaylistPosition int64
	// TotalTracks is the owning album's track count, 0 when unknown.
	TotalTracks int64
	// TotalDiscs is the owning album's disc count, 0 when unknown.
	TotalDiscs int64
	// ReleaseDate is the ISO release date (YYYY-MM-DD), possibly empty.
	ReleaseDate string
	// Genre is the genre name, possibly empty.
	Genre string
	// Composer is a comma-joined composer list, possibly empty.
	Composer string
	// Publisher is a comma-joined publisher list, possibly empty.
	Publisher string
	// ISRC is the international standard recording code, possibly empty.
	ISRC string
	// SongID is the numeric id the decryption key is derived from.
	SongID string
	// CoverHash is the content-hash identifier of the album cover.
	CoverHash string
	// ArtistPictureHash is the content-hash identifier of the artist image.
	ArtistPictureHash string
}

// Year extracts the release year from the ISO release date.
func (t *TrackMetadata) Year() string {
	if len(t.ReleaseDate) < 4 {
		return ""
	}

	return t.ReleaseDate[:4]
}

// TaggedArtist returns the artist credit written into audio tags: the primary
// artist followed by "feat." and the remaining contributors, when any exist.
func (t *TrackMetadata) TaggedArtist() string {
	var featured []string

	for _, name := range t.ArtistNames {
		if name != t.Artist {
			featured = append(featured, name)
		}
	}

	if len(featured) == 0 {
		return t.Artist
	}

	return t.Artist + " feat. " + strings.Join(featured, ", ")
}

// HasUsableIdentity reports whether the metadata carries a real title and artist,
// making it an acceptable fallback when an authoritative fetch fails.
func (t *TrackMetadata) HasUsableIdentity() bool {
	return t != nil && t.Title != "" && t.Artist != "" &&
		t.Title != UnknownTitle && t.Artist != UnknownArtist
}

// AlbumDetails is the resolved description of an album, cached by id and
// shared across sibling-track workers.
type AlbumDetails struct {
	// ID is the album's numeric identifier as a string.
	ID string
	// Title is the album name.
	Title string
	// ArtistName is the album-level artist name.
	ArtistName string
	// TotalTracks is the album's track count.
	TotalTracks int64
	// TotalDiscs is the album's disc count.
	TotalDiscs int64
	// Genre is the album's primary genre name.
	Genre string
	// CoverHash is the content-hash identifier of the album cover.
	CoverHash string
	// Tracks is the ordered track list.
	Tracks []*TrackMetadata
}

// DownloadTask is the unit of work handed to a Worker.
type DownloadTask struct {
	// TrackID is the target track's identifier.
	TrackID string
	// Kind selects template and position semantics.
	Kind DownloadKind
	// AlbumID is the owning album id for album-kind tasks.
	AlbumID string
	// PlaylistID is the owning playlist id for playlist-kind tasks.
	PlaylistID string
	// GroupTitle is the owning album or playlist title.
	GroupTitle string
	// GroupTotal is the number of tracks expected in the owning group.
	GroupTotal int64
	// PlaylistPosition is the 1-based playlist position for playlist-kind tasks.
	PlaylistPosition int64
	// Metadata is optional caller-supplied metadata used as a fallback when
	// the authoritative per-track lookup fails.
	Metadata *TrackMetadata
}

// Quality is the requested audio quality.
type Quality string

const (
	// QualityMP3128 is 128 kbit/s MP3.
	QualityMP3128 Quality = config.QualityMP3128
	// QualityMP3320 is 320 kbit/s MP3.
	QualityMP3320 Quality = config.QualityMP3320
	// QualityFLAC is lossless FLAC.
	QualityFLAC Quality = config.QualityFLAC
)

// Extension returns the output file extension for the quality.
func (q Quality) Extension() string {
	if q == QualityFLAC {
		return constants.ExtensionFLAC
	}

	return constants.ExtensionMP3
}

// TrackMetadataFromClient converts gateway track data into resolved metadata.
// String-typed numbers are parsed leniently; track and disc numbers are
// floored at 1 so rendered filenames and tags never show 0.
func TrackMetadataFromClient(track *deezer.Track) *TrackMetadata {
	metadata := &TrackMetadata{
		ID:          track.ID,
		Title:       joinTitle(track.Title, track.Version),
		Artist:      track.ArtistName,
		AlbumID:     track.AlbumID,
		Album:       track.AlbumTitle,
		TrackNumber: parsePositionFloor(track.TrackNumber),
		DiscNumber:  parsePositionFloor(track.DiskNumber),
		ReleaseDate: track.PhysicalReleaseDate,
		ISRC:        track.ISRC,
		SongID:      track.ID,
		CoverHash:   track.AlbumPicture,
	}

	for _, artist := range track.Artists {
		if artist.Name == "" {
			continue
		}

		metadata.ArtistNames = append(metadata.ArtistNames, artist.Name)

		if metadata.ArtistPictureHash == "" {
			metadata.ArtistPictureHash = artist.Picture
		}
	}

	if metadata.Artist == "" && len(metadata.ArtistNames) > 0 {
		metadata.Artist = metadata.ArtistNames[0]
	}

	if track.Contributors != nil {
		metadata.MainArtists = track.Contributors.MainArtists
		metadata.Composer = strings.Join(track.Contributors.Composers, ", ")
		metadata.Publisher = strings.Join(track.Contributors.Publishers, ", ")
	}

	applyMetadataPlaceholders(metadata)

	return metadata
}

// PlaceholderMetadata builds metadata carrying only placeholders for a track id.
func PlaceholderMetadata(trackID string) *TrackMetadata {
	metadata := &TrackMetadata{
		ID:          trackID,
		SongID:      trackID,
		TrackNumber: 1,
		DiscNumber:  1,
	}

	applyMetadataPlaceholders(metadata)

	return metadata
}

// AlbumDetailsFromClient converts gateway album data into resolved details.
func AlbumDetailsFromClient(album *deezer.Album) *AlbumDetails {
	details := &AlbumDetails{
		ID:          album.ID,
		Title:       album.Title,
		ArtistName:  album.ArtistName,
		TotalTracks: parseCount(album.NumberTrack),
		TotalDiscs:  parseCount(album.NumberDisk),
		Genre:       album.Genre,
		CoverHash:   album.Picture,
	}

	details.Tracks = make([]*TrackMetadata, 0, len(album.Tracks))

	for _, track := range album.Tracks {
		metadata := TrackMetadataFromClient(track)
		metadata.TotalTracks = details.TotalTracks
		metadata.TotalDiscs = details.TotalDiscs

		if metadata.Genre == "" {
			metadata.Genre = details.Genre
		}

		details.Tracks = append(details.Tracks, metadata)
	}

	return details
}

// joinTitle appends the version suffix to a title when present.
func joinTitle(title, version string) string {
	version = strings.TrimSpace(version)
	if version == "" {
		return title
	}

	return title + " " + version
}

// parsePositionFloor parses a 1-based position, flooring missing or zero values at 1.
func parsePositionFloor(value string) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || parsed < 1 {
		return 1
	}

	return parsed
}

// parseCount parses a total count, returning 0 when unknown.
func parseCount(value string) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || parsed < 0 {
		return 0
	}

	return parsed
}

// applyMetadataPlaceholders fills empty identity fields with placeholder values.
func applyMetadataPlaceholders(metadata *TrackMetadata) {
	if strings.TrimSpace(metadata.Title) == "" {
		metadata.Title = UnknownTitle
	}

	if strings.TrimSpace(metadata.Artist) == "" {
		metadata.Artist = UnknownArtist
	}

	if strings.TrimSpace(metadata.Album) == "" {
		metadata.Album = UnknownAlbum
	}
}

// DownloadItem represents a single downloadable item extracted from a URL.
type DownloadItem struct {
	// Category is the item's content type.
	Category DownloadCategory
	// URL is the original URL the item was parsed from.
	URL string
	// ItemID is the numeric identifier extracted from the URL.
	ItemID string
}

// ShortDownloadItem is the deduplication key for download items.
type ShortDownloadItem struct {
	// Category is the item's content type.
	Category DownloadCategory
	// ItemID is the numeric identifier extracted from the URL.
	ItemID string
}
