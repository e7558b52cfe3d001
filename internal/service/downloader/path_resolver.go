package downloader

//go:generate $MOCKGEN -source=path_resolver.go -destination=mocks/path_resolver_mock.go

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/logger"
	"github.com/deegrab/deegrab/internal/utils"
)

// PathResolver turns track metadata plus configured templates into a
// sanitized, filesystem-safe destination path.
type PathResolver interface {
	// Resolve computes the directory components and filename for a track.
	Resolve(ctx context.Context, req *ResolvePathRequest) *ResolvedPath
}

// ResolvePathRequest carries everything path resolution depends on.
type ResolvePathRequest struct {
	// Track is the resolved track metadata.
	Track *TrackMetadata
	// Album is the owning album's details, nil when unknown.
	Album *AlbumDetails
	// PlaylistTitle is the owning playlist's title, empty for non-playlist tasks.
	PlaylistTitle string
	// Kind selects the filename template and position source.
	Kind DownloadKind
	// IsCompilation switches album tracks to the compilation filename template.
	IsCompilation bool
	// Quality determines the output extension.
	Quality Quality
}

// ResolvedPath is the resolver's output: ordered directory components under
// the output root plus the final filename.
type ResolvedPath struct {
	// DirectoryComponents are the sanitized folder names, in nesting order.
	DirectoryComponents []string
	// ArtistDirectoryComponents are the folder names up to and including the
	// artist folder, empty when no artist or album folder exists.
	ArtistDirectoryComponents []string
	// Filename is the sanitized filename including extension.
	Filename string
}

// FullPath joins the resolved path under the given output root.
func (p *ResolvedPath) FullPath(root string) string {
	parts := make([]string, 0, len(p.DirectoryComponents)+2)
	parts = append(parts, root)
	parts = append(parts, p.DirectoryComponents...)
	parts = append(parts, p.Filename)

	return filepath.Join(parts...)
}

// Directory joins only the directory components under the given output root.
func (p *ResolvedPath) Directory(root string) string {
	parts := make([]string, 0, len(p.DirectoryComponents)+1)
	parts = append(parts, root)
	parts = append(parts, p.DirectoryComponents...)

	return filepath.Join(parts...)
}

// ArtistDirectory joins the artist-level components under the given output
// root, falling back to the full directory when no artist folder exists.
func (p *ResolvedPath) ArtistDirectory(root string) string {
	if len(p.ArtistDirectoryComponents) == 0 {
		return p.Directory(root)
	}

	parts := make([]string, 0, len(p.ArtistDirectoryComponents)+1)
	parts = append(parts, root)
	parts = append(parts, p.ArtistDirectoryComponents...)

	return filepath.Join(parts...)
}

// PathResolverImpl implements the PathResolver interface.
type PathResolverImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
}

// Template placeholder patterns: "{key}" with an optional ":0Nd" zero-padding
// suffix, and the legacy "%key%" form.
//
//nolint:gochecknoglobals // Immutable, pre-compiled regex patterns used as constants.
var (
	bracePlaceholderPattern   = regexp.MustCompile(`\{([a-z_]+)(?::0(\d+)d)?\}`)
	percentPlaceholderPattern = regexp.MustCompile(`%([a-z_]+)%`)
)

// NewPathResolver creates and returns a new instance of PathResolverImpl.
func NewPathResolver(cfg *config.Config) PathResolver {
	return &PathResolverImpl{cfg: cfg}
}

// Resolve computes the directory components and filename for a track.
func (r *PathResolverImpl) Resolve(ctx context.Context, req *ResolvePathRequest) *ResolvedPath {
	values := r.placeholderValues(req)

	components, artistComponents := r.resolveDirectories(ctx, req, values)

	return &ResolvedPath{
		DirectoryComponents:       components,
		ArtistDirectoryComponents: artistComponents,
		Filename:                  r.resolveFilename(ctx, req, values) + req.Quality.Extension(),
	}
}

// resolveDirectories builds the folder chain: playlist folder (playlist tracks
// only), then artist, album and per-disc folders, each gated by its config flag.
// The second return value is the prefix ending at the artist folder, so
// artist-level files land beside the artist's albums instead of inside each one.
func (r *PathResolverImpl) resolveDirectories(
	ctx context.Context,
	req *ResolvePathRequest,
	values map[string]string,
) (components, artistComponents []string) {
	if req.Kind == KindPlaylistTrack && r.cfg.CreatePlaylistFolder {
		folder := r.renderWithFallback(ctx, r.cfg.PlaylistFolderTemplate, config.DefaultPlaylistFolderTemplate, values)

		return append(components, utils.SanitizePathComponent(folder)), nil
	}

	if r.cfg.CreateArtistFolder {
		folder := r.renderWithFallback(ctx, r.cfg.ArtistFolderTemplate, config.DefaultArtistFolderTemplate, values)
		components = append(components, utils.SanitizePathComponent(folder))
		artistComponents = components[:len(components):len(components)]
	}

	if r.cfg.CreateAlbumFolder {
		folder := r.renderWithFallback(ctx, r.cfg.AlbumFolderTemplate, config.DefaultAlbumFolderTemplate, values)
		components = append(components, utils.SanitizePathComponent(folder))
	}

	if r.cfg.CreateCDFolder && req.Album != nil && req.Album.TotalDiscs > 1 {
		folder := r.renderWithFallback(ctx, r.cfg.CDFolderTemplate, config.DefaultCDFolderTemplate, values)
		components = append(components, utils.SanitizePathComponent(folder))
	}

	return components, artistComponents
}

// resolveFilename renders the filename template keyed by item kind.
func (r *PathResolverImpl) resolveFilename(
	ctx context.Context,
	req *ResolvePathRequest,
	values map[string]string,
) string {
	var custom, fallback string

	switch {
	case req.Kind == KindPlaylistTrack:
		custom, fallback = r.cfg.PlaylistTrackFilenameTemplate, config.DefaultPlaylistTrackFilenameTemplate
	case req.Kind == KindAlbumTrack && req.IsCompilation:
		custom, fallback = r.cfg.CompilationTrackFilenameTemplate, config.DefaultCompilationTrackFilenameTemplate
	case req.Kind == KindAlbumTrack:
		custom, fallback = r.cfg.AlbumTrackFilenameTemplate, config.DefaultAlbumTrackFilenameTemplate
	default:
		custom, fallback = r.cfg.TrackFilenameTemplate, config.DefaultTrackFilenameTemplate
	}

	return utils.SanitizePathComponent(r.renderWithFallback(ctx, custom, fallback, values))
}

// renderWithFallback renders the custom template, falling back to the
// hard-coded default when the custom one references unknown placeholders or
// renders empty.
func (r *PathResolverImpl) renderWithFallback(ctx context.Context, custom, fallback string, values map[string]string) string {
	rendered, ok := renderTemplate(custom, values)
	if ok {
		return rendered
	}

	logger.Warnf(ctx, "Template %q has unresolved placeholders, using default %q", custom, fallback)

	rendered, _ = renderTemplate(fallback, values)

	return rendered
}

// renderTemplate substitutes "{key}", "{key:0Nd}" and "%key%" placeholders.
// It reports false when any placeholder stays unresolved or the result is blank.
func renderTemplate(template string, values map[string]string) (string, bool) {
	resolved := true

	rendered := bracePlaceholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := bracePlaceholderPattern.FindStringSubmatch(match)

		value, ok := values[groups[1]]
		if !ok {
			resolved = false

			return match
		}

		if groups[2] != "" {
			value = zeroPad(value, groups[2])
		}

		return value
	})

	rendered = percentPlaceholderPattern.ReplaceAllStringFunc(rendered, func(match string) string {
		groups := percentPlaceholderPattern.FindStringSubmatch(match)

		value, ok := values[groups[1]]
		if !ok {
			resolved = false

			return match
		}

		return value
	})

	if strings.TrimSpace(rendered) == "" {
		return rendered, false
	}

	return rendered, resolved
}

// zeroPad left-pads a digit string to the requested width.
func zeroPad(value, width string) string {
	var n int
	if _, err := fmt.Sscanf(width, "%d", &n); err != nil {
		return value
	}

	for len(value) < n {
		value = "0" + value
	}

	return value
}

// placeholderValues builds the substitution map for a request.
// For playlist tracks the playlist position replaces the track number in both
// the displayed number and the sort-relevant digit.
func (r *PathResolverImpl) placeholderValues(req *ResolvePathRequest) map[string]string {
	track := req.Track

	trackNumber := track.TrackNumber
	if req.Kind == KindPlaylistTrack && track.PlaylistPosition > 0 {
		trackNumber = track.PlaylistPosition
	}

	albumArtist := track.AlbumArtist
	if req.Album != nil && req.Album.ArtistName != "" {
		albumArtist = req.Album.ArtistName
	}

	if req.IsCompilation {
		albumArtist = VariousArtists
	}

	if albumArtist == "" {
		albumArtist = track.Artist
	}

	album := track.Album
	if req.Album != nil && req.Album.Title != "" {
		album = req.Album.Title
	}

	values := map[string]string{
		"artist":            track.Artist,
		"album":             album,
		"title":             track.Title,
		"track_number":      fmt.Sprintf("%d", trackNumber),
		"playlist_position": fmt.Sprintf("%d", track.PlaylistPosition),
		"disc_number":       fmt.Sprintf("%d", track.DiscNumber),
		"year":              track.Year(),
		"album_artist":      albumArtist,
		"albumartist":       albumArtist,
		"playlist":          req.PlaylistTitle,
		"playlist_name":     req.PlaylistTitle,
		"genre":             track.Genre,
		"isrc":              track.ISRC,
	}

	if track.PlaylistPosition == 0 {
		// A playlist template rendered outside a playlist context still gets a
		// sensible number.
		values["playlist_position"] = fmt.Sprintf("%d", trackNumber)
	}

	return values
}
