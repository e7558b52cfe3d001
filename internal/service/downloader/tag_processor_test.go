package downloader

import (
	"context"
	"testing"

	"github.com/go-flac/flacvorbis"
	"github.com/oshokin/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func taggingMetadata() *TrackMetadata {
	//nolint:exhaustruct // Only the fields the tag writers read matter here.
	return &TrackMetadata{
		ID:          "3135556",
		Title:       "Harder, Better, Faster, Stronger",
		Artist:      "Daft Punk",
		ArtistNames: []string{"Daft Punk"},
		Album:       "Discovery",
		ReleaseDate: "2001-03-12",
		TrackNumber: 4,
		TotalTracks: 14,
		DiscNumber:  1,
		TotalDiscs:  1,
	}
}

func flacTagValue(t *testing.T, tag *flacvorbis.MetaDataBlockVorbisComment, key string) string {
	t.Helper()

	values, err := tag.Get(key)
	require.NoError(t, err)

	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// TestAddMP3Tags_FeaturedArtists tests that the artist frame credits every
// contributing artist, not just the primary one.
func TestAddMP3Tags_FeaturedArtists(t *testing.T) {
	t.Parallel()

	metadata := taggingMetadata()
	metadata.ArtistNames = []string{"Daft Punk", "Pharrell Williams", "Nile Rodgers"}

	tag := id3v2.NewEmptyTag()
	tp := new(TagProcessorImpl)
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	tp.addMP3Tags(context.Background(), tag, &WriteTagsRequest{Metadata: metadata})

	assert.Equal(t, "Daft Punk feat. Pharrell Williams, Nile Rodgers", tag.Artist())
}

// TestAddMP3Tags_SoloArtist tests that a lone artist gets no featuring suffix.
func TestAddMP3Tags_SoloArtist(t *testing.T) {
	t.Parallel()

	tag := id3v2.NewEmptyTag()
	tp := new(TagProcessorImpl)
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	tp.addMP3Tags(context.Background(), tag, &WriteTagsRequest{Metadata: taggingMetadata()})

	assert.Equal(t, "Daft Punk", tag.Artist())
}

// TestAddMP3Tags_DiscFrame tests the "Part of a set" frame: a lone disc is
// written without a total, a multi-disc release with one.
func TestAddMP3Tags_DiscFrame(t *testing.T) {
	t.Parallel()

	tp := new(TagProcessorImpl)

	singleDisc := id3v2.NewEmptyTag()
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	tp.addMP3Tags(context.Background(), singleDisc, &WriteTagsRequest{Metadata: taggingMetadata()})
	assert.Equal(t, "1", singleDisc.GetTextFrame(singleDisc.CommonID("Part of a set")).Text)

	metadata := taggingMetadata()
	metadata.DiscNumber = 2
	metadata.TotalDiscs = 3

	multiDisc := id3v2.NewEmptyTag()
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	tp.addMP3Tags(context.Background(), multiDisc, &WriteTagsRequest{Metadata: metadata})
	assert.Equal(t, "2/3", multiDisc.GetTextFrame(multiDisc.CommonID("Part of a set")).Text)
}

// TestAddFLACTags_FeaturedArtists tests the ARTIST comment with multiple
// contributors.
func TestAddFLACTags_FeaturedArtists(t *testing.T) {
	t.Parallel()

	metadata := taggingMetadata()
	metadata.ArtistNames = []string{"Daft Punk", "Pharrell Williams"}

	tag := flacvorbis.New()
	tp := new(TagProcessorImpl)
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	require.NoError(t, tp.addFLACTags(tag, &WriteTagsRequest{Metadata: metadata}))

	assert.Equal(t, "Daft Punk feat. Pharrell Williams", flacTagValue(t, tag, "ARTIST"))
	assert.Equal(t, "Discovery", flacTagValue(t, tag, "ALBUM"))
}

// TestAddFLACTags_DiscTotals tests that TOTALDISCS appears only for
// multi-disc releases.
func TestAddFLACTags_DiscTotals(t *testing.T) {
	t.Parallel()

	tp := new(TagProcessorImpl)

	singleDisc := flacvorbis.New()
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	require.NoError(t, tp.addFLACTags(singleDisc, &WriteTagsRequest{Metadata: taggingMetadata()}))

	assert.Empty(t, flacTagValue(t, singleDisc, "TOTALDISCS"))
	assert.Equal(t, "1", flacTagValue(t, singleDisc, "DISCNUMBER"))

	metadata := taggingMetadata()
	metadata.DiscNumber = 2
	metadata.TotalDiscs = 3

	multiDisc := flacvorbis.New()
	//nolint:exhaustruct // Lyrics and cover fields are irrelevant here.
	require.NoError(t, tp.addFLACTags(multiDisc, &WriteTagsRequest{Metadata: metadata}))

	assert.Equal(t, "3", flacTagValue(t, multiDisc, "TOTALDISCS"))
	assert.Equal(t, "2", flacTagValue(t, multiDisc, "DISCNUMBER"))
}
