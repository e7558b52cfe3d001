package downloader

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deegrab/deegrab/internal/client/deezer"
	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/constants"
)

// SyncedLine is a single timed lyrics line.
type SyncedLine struct {
	// Milliseconds is the absolute offset of the line from track start.
	Milliseconds int64
	// Text is the line's text, may be empty for breath gaps.
	Text string
}

// ParsedLyrics is the normalized lyrics payload used for embedding and
// LRC file export.
type ParsedLyrics struct {
	// SyncLines holds the timed lines, in ascending timestamp order.
	SyncLines []SyncedLine
	// PlainText is the full unsynced text.
	PlainText string
	// HasSync reports whether timed lines are available.
	HasSync bool
	// Language is an ISO 639-2 language code, empty when unknown.
	Language string
}

// ParseLyrics converts the raw gateway lyrics payload into ParsedLyrics.
// When the plain text is missing it is synthesized by joining the synced
// lines.
func ParseLyrics(raw *deezer.Lyrics) *ParsedLyrics {
	if raw == nil {
		return nil
	}

	parsed := &ParsedLyrics{PlainText: raw.Text}

	for _, line := range raw.SyncJSON {
		if line == nil {
			continue
		}

		milliseconds, err := strconv.ParseInt(line.Milliseconds, 10, 64)
		if err != nil || milliseconds < 0 {
			continue
		}

		parsed.SyncLines = append(parsed.SyncLines, SyncedLine{
			Milliseconds: milliseconds,
			Text:         line.Line,
		})
	}

	parsed.HasSync = len(parsed.SyncLines) > 0

	if parsed.PlainText == "" && parsed.HasSync {
		texts := make([]string, 0, len(parsed.SyncLines))
		for _, line := range parsed.SyncLines {
			texts = append(texts, line.Text)
		}

		parsed.PlainText = strings.Join(texts, "\n")
	}

	if parsed.PlainText == "" && !parsed.HasSync {
		return nil
	}

	return parsed
}

// RenderLRC renders the lyrics as an LRC document with ti/ar/al/by headers and
// optional offset metadata. offsetMilliseconds shifts every timestamp; lines
// that would land before track start are clamped to zero.
func RenderLRC(lyrics *ParsedLyrics, title, artist, album string, offsetMilliseconds int64) string {
	var builder strings.Builder

	if title != "" {
		fmt.Fprintf(&builder, "[ti:%s]\n", title)
	}

	if artist != "" {
		fmt.Fprintf(&builder, "[ar:%s]\n", artist)
	}

	if album != "" {
		fmt.Fprintf(&builder, "[al:%s]\n", album)
	}

	builder.WriteString("[by:deegrab]\n")

	if offsetMilliseconds != 0 {
		fmt.Fprintf(&builder, "[offset:%d]\n", offsetMilliseconds)
	}

	for _, line := range lyrics.SyncLines {
		milliseconds := line.Milliseconds + offsetMilliseconds
		if milliseconds < 0 {
			milliseconds = 0
		}

		fmt.Fprintf(&builder, "[%s]%s\n", formatLRCTimestamp(milliseconds), line.Text)
	}

	return builder.String()
}

// formatLRCTimestamp renders milliseconds as "mm:ss.xx".
func formatLRCTimestamp(milliseconds int64) string {
	minutes := milliseconds / 60000
	seconds := (milliseconds % 60000) / 1000
	hundredths := (milliseconds % 1000) / 10

	return fmt.Sprintf("%02d:%02d.%02d", minutes, seconds, hundredths)
}

// LyricsFilePath returns the destination of the exported LRC file for an
// audio file. The stem always matches the audio filename; the directory is
// either the audio file's own or the configured custom folder.
func LyricsFilePath(cfg *config.Config, audioPath string) string {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	filename := stem + constants.ExtensionLRC

	if cfg.LyricsLocation == config.LyricsLocationCustomFolder && cfg.LyricsFolder != "" {
		return filepath.Join(cfg.LyricsFolder, filename)
	}

	return filepath.Join(filepath.Dir(audioPath), filename)
}
