package downloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deegrab/deegrab/internal/client/deezer"
)

// TestTrackMetadataFromClient tests the TrackMetadataFromClient function.
func TestTrackMetadataFromClient(t *testing.T) {
	t.Parallel()

	track := &deezer.Track{
		ID:                  "3135556",
		Title:               "Harder, Better, Faster, Stronger",
		Version:             "(Remastered)",
		ArtistName:          "Daft Punk",
		AlbumID:             "302127",
		AlbumTitle:          "Discovery",
		AlbumPicture:        "coverhash",
		TrackNumber:         "4",
		DiskNumber:          "1",
		PhysicalReleaseDate: "2001-03-07",
		ISRC:                "GBDUW0000059",
		Artists: []*deezer.TrackArtist{
			{ID: "27", Name: "Daft Punk", Picture: "artisthash"},
			{ID: "0", Name: ""},
		},
		Contributors: &deezer.TrackContributors{
			Composers:   []string{"Thomas Bangalter", "Guy-Manuel de Homem-Christo"},
			Publishers:  []string{"Daft Life"},
			MainArtists: []string{"Daft Punk"},
		},
	}

	metadata := TrackMetadataFromClient(track)

	assert.Equal(t, "3135556", metadata.ID)
	assert.Equal(t, "Harder, Better, Faster, Stronger (Remastered)", metadata.Title)
	assert.Equal(t, "Daft Punk", metadata.Artist)
	assert.Equal(t, "302127", metadata.AlbumID)
	assert.Equal(t, "Discovery", metadata.Album)
	assert.Equal(t, int64(4), metadata.TrackNumber)
	assert.Equal(t, int64(1), metadata.DiscNumber)
	assert.Equal(t, "GBDUW0000059", metadata.ISRC)
	assert.Equal(t, "coverhash", metadata.CoverHash)
	assert.Equal(t, "artisthash", metadata.ArtistPictureHash)

	// Empty artist entries are skipped.
	assert.Equal(t, []string{"Daft Punk"}, metadata.ArtistNames)

	assert.Equal(t, []string{"Daft Punk"}, metadata.MainArtists)
	assert.Equal(t, "Thomas Bangalter, Guy-Manuel de Homem-Christo", metadata.Composer)
	assert.Equal(t, "Daft Life", metadata.Publisher)
	assert.Equal(t, "2001", metadata.Year())
}

// TestTrackMetadataFromClient_Placeholders tests placeholder substitution and
// position flooring on sparse gateway data.
func TestTrackMetadataFromClient_Placeholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		track    *deezer.Track
		expected *TrackMetadata
	}{
		{
			name:  "everything missing",
			track: &deezer.Track{ID: "42"},
			expected: &TrackMetadata{
				ID:          "42",
				Title:       UnknownTitle,
				Artist:      UnknownArtist,
				Album:       UnknownAlbum,
				TrackNumber: 1,
				DiscNumber:  1,
				SongID:      "42",
			},
		},
		{
			name: "zero positions floored at one",
			track: &deezer.Track{
				ID:          "43",
				Title:       "One More Time",
				ArtistName:  "Daft Punk",
				AlbumTitle:  "Discovery",
				TrackNumber: "0",
				DiskNumber:  "garbage",
			},
			expected: &TrackMetadata{
				ID:          "43",
				Title:       "One More Time",
				Artist:      "Daft Punk",
				Album:       "Discovery",
				TrackNumber: 1,
				DiscNumber:  1,
				SongID:      "43",
			},
		},
		{
			name: "primary artist taken from artist list",
			track: &deezer.Track{
				ID:         "44",
				Title:      "Aerodynamic",
				AlbumTitle: "Discovery",
				Artists: []*deezer.TrackArtist{
					{ID: "27", Name: "Daft Punk"},
				},
			},
			expected: &TrackMetadata{
				ID:          "44",
				Title:       "Aerodynamic",
				Artist:      "Daft Punk",
				ArtistNames: []string{"Daft Punk"},
				Album:       "Discovery",
				TrackNumber: 1,
				DiscNumber:  1,
				SongID:      "44",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, TrackMetadataFromClient(tt.track))
		})
	}
}

// TestPlaceholderMetadata tests the PlaceholderMetadata function.
func TestPlaceholderMetadata(t *testing.T) {
	t.Parallel()

	metadata := PlaceholderMetadata("123")

	assert.Equal(t, "123", metadata.ID)
	assert.Equal(t, "123", metadata.SongID)
	assert.Equal(t, UnknownTitle, metadata.Title)
	assert.Equal(t, UnknownArtist, metadata.Artist)
	assert.Equal(t, UnknownAlbum, metadata.Album)
	assert.Equal(t, int64(1), metadata.TrackNumber)
	assert.Equal(t, int64(1), metadata.DiscNumber)
	assert.False(t, metadata.HasUsableIdentity())
}

// TestTaggedArtist tests the featuring credit built from the contributor list.
func TestTaggedArtist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metadata *TrackMetadata
		expected string
	}{
		{
			name:     "solo artist",
			metadata: &TrackMetadata{Artist: "Daft Punk", ArtistNames: []string{"Daft Punk"}},
			expected: "Daft Punk",
		},
		{
			name:     "no contributor list",
			metadata: &TrackMetadata{Artist: "Daft Punk"},
			expected: "Daft Punk",
		},
		{
			name: "featured artists",
			metadata: &TrackMetadata{
				Artist:      "Daft Punk",
				ArtistNames: []string{"Daft Punk", "Pharrell Williams", "Nile Rodgers"},
			},
			expected: "Daft Punk feat. Pharrell Williams, Nile Rodgers",
		},
		{
			name: "primary not first in list",
			metadata: &TrackMetadata{
				Artist:      "Pharrell Williams",
				ArtistNames: []string{"Daft Punk", "Pharrell Williams"},
			},
			expected: "Pharrell Williams feat. Daft Punk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.metadata.TaggedArtist())
		})
	}
}

// TestHasUsableIdentity tests the HasUsableIdentity method.
func TestHasUsableIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metadata *TrackMetadata
		expected bool
	}{
		{
			name:     "nil metadata",
			metadata: nil,
			expected: false,
		},
		{
			name:     "real title and artist",
			metadata: &TrackMetadata{Title: "One More Time", Artist: "Daft Punk"},
			expected: true,
		},
		{
			name:     "placeholder title",
			metadata: &TrackMetadata{Title: UnknownTitle, Artist: "Daft Punk"},
			expected: false,
		},
		{
			name:     "empty artist",
			metadata: &TrackMetadata{Title: "One More Time"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.metadata.HasUsableIdentity())
		})
	}
}

// TestAlbumDetailsFromClient tests the AlbumDetailsFromClient function.
func TestAlbumDetailsFromClient(t *testing.T) {
	t.Parallel()

	album := &deezer.Album{
		ID:          "302127",
		Title:       "Discovery",
		ArtistName:  "Daft Punk",
		NumberTrack: "14",
		NumberDisk:  "1",
		Genre:       "Electro",
		Picture:     "coverhash",
		Tracks: []*deezer.Track{
			{ID: "1", Title: "One More Time", ArtistName: "Daft Punk", TrackNumber: "1"},
			{ID: "2", Title: "Aerodynamic", ArtistName: "Daft Punk", TrackNumber: "2"},
		},
	}

	details := AlbumDetailsFromClient(album)

	assert.Equal(t, "302127", details.ID)
	assert.Equal(t, int64(14), details.TotalTracks)
	assert.Equal(t, int64(1), details.TotalDiscs)
	require.Len(t, details.Tracks, 2)

	// Album-level counts and genre propagate to each track.
	for _, track := range details.Tracks {
		assert.Equal(t, int64(14), track.TotalTracks)
		assert.Equal(t, int64(1), track.TotalDiscs)
		assert.Equal(t, "Electro", track.Genre)
	}
}

// TestAlbumDetailsFromClient_UnknownCounts tests count parsing on missing values.
func TestAlbumDetailsFromClient_UnknownCounts(t *testing.T) {
	t.Parallel()

	details := AlbumDetailsFromClient(&deezer.Album{ID: "1", Title: "Homework"})

	assert.Zero(t, details.TotalTracks)
	assert.Zero(t, details.TotalDiscs)
	assert.Empty(t, details.Tracks)
}

// TestYear tests the Year method.
func TestYear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		releaseDate string
		expected    string
	}{
		{
			name:        "full iso date",
			releaseDate: "2001-03-07",
			expected:    "2001",
		},
		{
			name:        "year only",
			releaseDate: "1997",
			expected:    "1997",
		},
		{
			name:        "empty",
			releaseDate: "",
			expected:    "",
		},
		{
			name:        "too short",
			releaseDate: "97",
			expected:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			metadata := &TrackMetadata{ReleaseDate: tt.releaseDate}
			assert.Equal(t, tt.expected, metadata.Year())
		})
	}
}

// TestQualityExtension tests the Extension method.
func TestQualityExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".mp3", QualityMP3128.Extension())
	assert.Equal(t, ".mp3", QualityMP3320.Extension())
	assert.Equal(t, ".flac", QualityFLAC.Extension())
}
