package downloader

import (
	"regexp"
	"strings"
)

// VariousArtists is the album artist attributed to compilations.
const VariousArtists = "Various Artists"

const compilationDominanceThreshold = 0.6

// Album-level artist names that signal a compilation rather than a real artist.
//
//nolint:gochecknoglobals // Immutable lookup set.
var compilationArtistNames = map[string]struct{}{
	"various artists": {},
	"various":         {},
	"compilation":     {},
}

//nolint:gochecknoglobals // Immutable, pre-compiled regex used as a constant.
var featuredSuffixPattern = regexp.MustCompile(
	`(?i)\s+(?:feat\.?|ft\.?|featuring|with|&|x)\s+.+$`,
)

// ResolveAlbumArtist picks the album artist for tagging and folder naming.
// Precedence: the album object's own artist, the cached album details artist,
// the first main-role contributor, the first contributor of any role, the
// legacy flat artist field, then the track's primary artist. The winner has
// trailing featured-artist suffixes stripped.
func ResolveAlbumArtist(track *TrackMetadata, album *AlbumDetails) string {
	candidates := make([]string, 0, 4)

	if album != nil {
		candidates = append(candidates, album.ArtistName)
	}

	if track != nil {
		if len(track.MainArtists) > 0 {
			candidates = append(candidates, track.MainArtists[0])
		}

		if len(track.ArtistNames) > 0 {
			candidates = append(candidates, track.ArtistNames[0])
		}

		candidates = append(candidates, track.AlbumArtist, track.Artist)
	}

	for _, candidate := range candidates {
		if isUsableArtistName(candidate) {
			return StripFeaturedArtists(candidate)
		}
	}

	return UnknownArtist
}

// isUsableArtistName reports whether a candidate is non-empty and not a
// placeholder.
func isUsableArtistName(name string) bool {
	trimmed := strings.TrimSpace(name)

	return trimmed != "" && !strings.EqualFold(trimmed, UnknownArtist)
}

// StripFeaturedArtists removes a trailing "feat. X" style suffix from an
// artist name. The original name is returned when stripping would leave it
// empty.
func StripFeaturedArtists(name string) string {
	stripped := strings.TrimSpace(featuredSuffixPattern.ReplaceAllString(name, ""))
	if stripped == "" {
		return strings.TrimSpace(name)
	}

	return stripped
}

// IsCompilation reports whether an album should be treated as a
// various-artists compilation. An album qualifies when its album-level artist
// is absent or a generic compilation name, its tracks come from more than
// three distinct artists, and no single artist accounts for more than 60% of
// the tracks.
func IsCompilation(albumArtist string, trackArtists []string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(albumArtist))
	if trimmed != "" {
		if _, generic := compilationArtistNames[trimmed]; !generic {
			return false
		}
	}

	if len(trackArtists) == 0 {
		return false
	}

	counts := make(map[string]int, len(trackArtists))
	total := 0

	for _, artist := range trackArtists {
		key := strings.ToLower(strings.TrimSpace(artist))
		if key == "" {
			continue
		}

		counts[key]++
		total++
	}

	if len(counts) <= 3 || total == 0 {
		return false
	}

	for _, count := range counts {
		if float64(count)/float64(total) > compilationDominanceThreshold {
			return false
		}
	}

	return true
}
