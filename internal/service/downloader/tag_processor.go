package downloader

//go:generate $MOCKGEN -source=tag_processor.go -destination=mocks/tag_processor_mock.go

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
	"github.com/oshokin/id3v2/v2"

	"github.com/deegrab/deegrab/internal/logger"
)

// TagProcessor defines the interface for writing metadata tags to audio files.
type TagProcessor interface {
	WriteTags(ctx context.Context, req *WriteTagsRequest) error
}

// WriteTagsRequest contains parameters for writing metadata to audio files.
type WriteTagsRequest struct {
	// TrackPath is the file path of the audio track.
	TrackPath string
	// CoverPath is the file path of the cover art image, empty to skip embedding.
	CoverPath string
	// Quality selects the container the tags are written into.
	Quality Quality
	// Metadata is the resolved track metadata.
	Metadata *TrackMetadata
	// AlbumArtist is the resolved album-level artist.
	AlbumArtist string
	// Lyrics is the parsed lyrics payload, nil when none were fetched.
	Lyrics *ParsedLyrics
	// EmbedSyncedLyrics enables embedding timed lyrics frames.
	EmbedSyncedLyrics bool
	// EmbedPlainLyrics enables embedding the unsynced lyrics text.
	EmbedPlainLyrics bool
	// SyncedLyricsOffset shifts embedded timestamps, in milliseconds.
	SyncedLyricsOffset int64
}

// TagProcessorImpl provides the default implementation of TagProcessor.
type TagProcessorImpl struct{}

// imageMetadata contains image data and its MIME type.
type imageMetadata struct {
	// data contains the raw image bytes.
	data []byte
	// mimeType specifies the image format (e.g., "image/jpeg").
	mimeType string
}

// extractFLACCommentResult contains the result of extracting FLAC comment metadata.
type extractFLACCommentResult struct {
	// Comment is the FLAC Vorbis comment metadata block.
	Comment *flacvorbis.MetaDataBlockVorbisComment
	// Index is the index of the comment block in the FLAC file metadata (-1 if not found).
	Index int
}

// NewTagProcessor creates a new TagProcessor instance.
func NewTagProcessor() TagProcessor {
	return new(TagProcessorImpl)
}

// WriteTags writes metadata to audio files based on the provided request.
func (tp *TagProcessorImpl) WriteTags(ctx context.Context, req *WriteTagsRequest) error {
	if req.TrackPath == "" {
		return ErrEmptyTrackPath
	}

	var image *imageMetadata

	if req.CoverPath != "" {
		imageData, err := os.ReadFile(filepath.Clean(req.CoverPath))
		if err != nil {
			return err
		}

		image = &imageMetadata{
			data:     imageData,
			mimeType: mime.TypeByExtension(filepath.Ext(req.CoverPath)),
		}
	}

	if req.Quality == QualityFLAC {
		return tp.writeFLACTags(ctx, req, image)
	}

	return tp.writeMP3Tags(ctx, req, image)
}

func (tp *TagProcessorImpl) writeFLACTags(ctx context.Context, req *WriteTagsRequest, image *imageMetadata) error {
	f, err := flac.ParseFile(filepath.Clean(req.TrackPath))
	if err != nil {
		return err
	}

	commentResult, err := tp.extractFLACComment(req.TrackPath)
	if err != nil {
		return err
	}

	tag := commentResult.Comment
	if tag == nil {
		tag = flacvorbis.New()
	}

	if err = tp.addFLACTags(tag, req); err != nil {
		return err
	}

	tagMeta := tag.Marshal()
	if commentResult.Index >= 0 {
		f.Meta[commentResult.Index] = &tagMeta
	} else {
		f.Meta = append(f.Meta, &tagMeta)
	}

	tp.embedFLACCover(ctx, f, image)

	return f.Save(req.TrackPath)
}

func (tp *TagProcessorImpl) extractFLACComment(filename string) (*extractFLACCommentResult, error) {
	f, err := flac.ParseFile(filepath.Clean(filename))
	if err != nil {
		return nil, err
	}

	for idx, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}

		var comment *flacvorbis.MetaDataBlockVorbisComment

		comment, err = flacvorbis.ParseFromMetaDataBlock(*meta)
		if err == nil {
			return &extractFLACCommentResult{
				Comment: comment,
				Index:   idx,
			}, nil
		}
	}

	return &extractFLACCommentResult{
		Comment: nil,
		Index:   -1,
	}, nil
}

func (tp *TagProcessorImpl) addFLACTags(tag *flacvorbis.MetaDataBlockVorbisComment, req *WriteTagsRequest) error {
	metadata := req.Metadata

	flacTags := map[string]string{
		"ALBUM":        metadata.Album,
		"ALBUMARTIST":  req.AlbumArtist,
		"ARTIST":       metadata.TaggedArtist(),
		"COMPOSER":     metadata.Composer,
		"DATE":         metadata.ReleaseDate,
		"DISCNUMBER":   formatPosition(metadata.DiscNumber),
		"GENRE":        metadata.Genre,
		"ISRC":         metadata.ISRC,
		"ORGANIZATION": metadata.Publisher,
		"TITLE":        metadata.Title,
		"TOTALTRACKS":  formatPosition(metadata.TotalTracks),
		"TRACKNUMBER":  formatPosition(metadata.TrackNumber),
		"TRACK_ID":     metadata.ID,
		"YEAR":         metadata.Year(),
	}

	// A total of one disc carries no information, so it stays out of the tags.
	if metadata.TotalDiscs > 1 {
		flacTags["TOTALDISCS"] = formatPosition(metadata.TotalDiscs)
	}

	if req.Lyrics != nil && req.EmbedPlainLyrics && strings.TrimSpace(req.Lyrics.PlainText) != "" {
		flacTags["LYRICS"] = req.Lyrics.PlainText
	}

	for k, v := range flacTags {
		if v == "" || v == "0" {
			continue
		}

		if err := tag.Add(k, v); err != nil {
			return err
		}
	}

	return nil
}

func (tp *TagProcessorImpl) embedFLACCover(ctx context.Context, f *flac.File, image *imageMetadata) {
	if image == nil {
		return
	}

	picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "", image.data, image.mimeType)
	if err != nil {
		logger.Errorf(ctx, "Failed to embed image to FLAC: %v", err)

		return
	}

	pictureMeta := picture.Marshal()
	f.Meta = append(f.Meta, &pictureMeta)
}

func (tp *TagProcessorImpl) writeMP3Tags(ctx context.Context, req *WriteTagsRequest, image *imageMetadata) error {
	//nolint:exhaustruct // ParseFrames intentionally omitted when Parse=false (parsing disabled).
	tag, err := id3v2.Open(req.TrackPath, id3v2.Options{Parse: false})
	if err != nil {
		return err
	}

	defer tag.Close()

	tp.addMP3Tags(ctx, tag, req)

	if image != nil {
		//nolint:exhaustruct // Description field intentionally empty for cover images.
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    image.mimeType,
			PictureType: id3v2.PTFrontCover,
			Picture:     image.data,
		})
	}

	return tag.Save()
}

func (tp *TagProcessorImpl) addMP3Tags(ctx context.Context, tag *id3v2.Tag, req *WriteTagsRequest) {
	metadata := req.Metadata

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	tag.SetAlbum(metadata.Album)
	tag.SetArtist(metadata.TaggedArtist())
	tag.SetGenre(metadata.Genre)
	tag.SetTitle(metadata.Title)
	tag.SetYear(metadata.Year())

	trackNumber := fmt.Sprintf("%02d", metadata.TrackNumber)
	if metadata.TotalTracks > 0 {
		trackNumber += "/" + formatPosition(metadata.TotalTracks)
	}

	tag.AddTextFrame(tag.CommonID("Track number/Position in set"), tag.DefaultEncoding(), trackNumber)

	if metadata.DiscNumber > 0 {
		discNumber := formatPosition(metadata.DiscNumber)
		if metadata.TotalDiscs > 1 {
			discNumber += "/" + formatPosition(metadata.TotalDiscs)
		}

		tag.AddTextFrame(tag.CommonID("Part of a set"), tag.DefaultEncoding(), discNumber)
	}

	tp.addOptionalMP3Frame(tag, "Band/Orchestra/Accompaniment", req.AlbumArtist)
	tp.addOptionalMP3Frame(tag, "Composer", metadata.Composer)
	tp.addOptionalMP3Frame(tag, "Publisher", metadata.Publisher)
	tp.addOptionalMP3Frame(tag, "ISRC", metadata.ISRC)

	tp.addMP3Lyrics(ctx, tag, req)
}

func (tp *TagProcessorImpl) addOptionalMP3Frame(tag *id3v2.Tag, description, value string) {
	if value == "" {
		return
	}

	tag.AddTextFrame(tag.CommonID(description), tag.DefaultEncoding(), value)
}

func (tp *TagProcessorImpl) addMP3Lyrics(ctx context.Context, tag *id3v2.Tag, req *WriteTagsRequest) {
	lyrics := req.Lyrics
	if lyrics == nil {
		return
	}

	// Timed lyrics take precedence over the plain text when both are enabled.
	if req.EmbedSyncedLyrics && lyrics.HasSync {
		rendered := RenderLRC(lyrics, req.Metadata.Title, req.Metadata.Artist, req.Metadata.Album, req.SyncedLyricsOffset)

		result, err := id3v2.ParseLRCFile(strings.NewReader(rendered))
		if err != nil {
			logger.Errorf(ctx, "Failed to parse LRC content: %v", err)
		}

		sylf := id3v2.SynchronisedLyricsFrame{
			Encoding: id3v2.EncodingUTF8,
			// Field is required, so we just use lingua franca.
			Language: id3v2.EnglishISO6392Code,
			// Use absolute timestamps.
			TimestampFormat: id3v2.SYLTAbsoluteMillisecondsTimestampFormat,
			// Mark as lyrics.
			ContentType: id3v2.SYLTLyricsContentType,
			// Descriptor for lyrics.
			ContentDescriptor: "Lyrics",
			// The actual synchronized lyrics.
			SynchronizedTexts: result.SynchronizedTexts,
		}

		tag.AddSynchronisedLyricsFrame(sylf)

		return
	}

	plain := strings.TrimSpace(lyrics.PlainText)
	if !req.EmbedPlainLyrics || plain == "" {
		return
	}

	tag.AddUnsynchronisedLyricsFrame(
		//nolint:exhaustruct // ContentDescriptor not available in source data.
		id3v2.UnsynchronisedLyricsFrame{
			Encoding: id3v2.EncodingUTF8,
			Lyrics:   plain,
			// Field is required, so we just use lingua franca.
			Language: id3v2.EnglishISO6392Code,
		})
}

// formatPosition renders a positive count as a decimal string, empty for zero.
func formatPosition(value int64) string {
	if value <= 0 {
		return ""
	}

	return fmt.Sprintf("%d", value)
}
