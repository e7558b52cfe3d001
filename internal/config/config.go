package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/deegrab/deegrab/internal/constants"
	"github.com/deegrab/deegrab/internal/logger"
	"github.com/deegrab/deegrab/internal/utils"
)

// Config holds all configuration settings.
type Config struct {
	// ARL is the authentication cookie value used for API access.
	ARL string `mapstructure:"arl"`
	// Quality specifies the preferred audio quality (MP3_128, MP3_320 or FLAC).
	Quality string `mapstructure:"quality"`
	// OutputPath is the root directory where downloaded files will be saved.
	OutputPath string `mapstructure:"output_path"`
	// MaxConcurrentDownloads is the maximum number of tracks to download simultaneously.
	MaxConcurrentDownloads int64 `mapstructure:"max_concurrent_downloads"`

	// CreatePlaylistFolder indicates whether playlist tracks get their own playlist folder.
	CreatePlaylistFolder bool `mapstructure:"create_playlist_folder"`
	// CreateArtistFolder indicates whether an artist folder is created under the output root.
	CreateArtistFolder bool `mapstructure:"create_artist_folder"`
	// CreateAlbumFolder indicates whether an album folder is created.
	CreateAlbumFolder bool `mapstructure:"create_album_folder"`
	// CreateCDFolder indicates whether a per-disc folder is created for multi-disc albums.
	CreateCDFolder bool `mapstructure:"create_cd_folder"`

	// PlaylistFolderTemplate is the template for naming playlist folders.
	PlaylistFolderTemplate string `mapstructure:"playlist_folder_template"`
	// ArtistFolderTemplate is the template for naming artist folders.
	ArtistFolderTemplate string `mapstructure:"artist_folder_template"`
	// AlbumFolderTemplate is the template for naming album folders.
	AlbumFolderTemplate string `mapstructure:"album_folder_template"`
	// CDFolderTemplate is the template for naming per-disc folders.
	CDFolderTemplate string `mapstructure:"cd_folder_template"`

	// TrackFilenameTemplate is the template for naming standalone track files.
	TrackFilenameTemplate string `mapstructure:"track_filename_template"`
	// AlbumTrackFilenameTemplate is the template for naming tracks downloaded as part of an album.
	AlbumTrackFilenameTemplate string `mapstructure:"album_track_filename_template"`
	// CompilationTrackFilenameTemplate is the template for tracks on compilation albums.
	CompilationTrackFilenameTemplate string `mapstructure:"compilation_track_filename_template"`
	// PlaylistTrackFilenameTemplate is the template for tracks downloaded as part of a playlist.
	PlaylistTrackFilenameTemplate string `mapstructure:"playlist_track_filename_template"`

	// EmbedArtwork indicates whether cover art is embedded into audio tags.
	EmbedArtwork bool `mapstructure:"embed_artwork"`
	// SaveAlbumCover indicates whether the album cover is saved as a separate file per directory.
	SaveAlbumCover bool `mapstructure:"save_album_cover"`
	// SaveArtistImage indicates whether the artist image is saved as a separate file.
	SaveArtistImage bool `mapstructure:"save_artist_image"`
	// EmbeddedArtworkSize is the preferred pixel size for embedded cover art.
	EmbeddedArtworkSize int64 `mapstructure:"embedded_artwork_size"`
	// SavedArtworkSize is the preferred pixel size for artwork saved to disk.
	SavedArtworkSize int64 `mapstructure:"saved_artwork_size"`
	// AlbumCoverFilename is the filename stem for saved album covers.
	AlbumCoverFilename string `mapstructure:"album_cover_filename"`
	// ArtistImageFilename is the filename stem for saved artist images.
	ArtistImageFilename string `mapstructure:"artist_image_filename"`
	// ArtworkFormat is the image format for saved artwork files (jpg or png).
	ArtworkFormat string `mapstructure:"artwork_format"`

	// DownloadLyrics indicates whether an LRC file is written next to the track.
	DownloadLyrics bool `mapstructure:"download_lyrics"`
	// EmbedSyncedLyrics indicates whether synchronized lyrics are embedded into tags.
	EmbedSyncedLyrics bool `mapstructure:"embed_synced_lyrics"`
	// EmbedPlainLyrics indicates whether plain lyrics are embedded when no synced ones exist.
	EmbedPlainLyrics bool `mapstructure:"embed_plain_lyrics"`
	// LyricsLocation selects where LRC files are written ("with_audio" or "custom_folder").
	LyricsLocation string `mapstructure:"lyrics_location"`
	// LyricsFolder is the directory for LRC files when LyricsLocation is "custom_folder".
	LyricsFolder string `mapstructure:"lyrics_folder"`
	// SyncedLyricsOffset shifts synchronized lyrics timestamps by the given milliseconds.
	SyncedLyricsOffset int64 `mapstructure:"synced_lyrics_offset"`

	// ReplaceTracks indicates whether existing audio files are downloaded again.
	ReplaceTracks bool `mapstructure:"replace_tracks"`
	// ReplaceCovers indicates whether existing artwork files are written again.
	ReplaceCovers bool `mapstructure:"replace_covers"`
	// ReplaceLyrics indicates whether existing LRC files are written again.
	ReplaceLyrics bool `mapstructure:"replace_lyrics"`

	// LogLevel specifies the logging verbosity level.
	LogLevel string `mapstructure:"log_level"`
	// DownloadSpeedLimit sets the maximum download speed (e.g., "1MB", "500KB").
	DownloadSpeedLimit string `mapstructure:"download_speed_limit"`

	// DeezerBaseURL is the base URL for the Deezer website and APIs (set automatically).
	DeezerBaseURL string
	// ParsedDownloadSpeedLimit is the parsed download speed limit in bytes.
	ParsedDownloadSpeedLimit int64
	// ParsedLogLevel is the parsed zap log level.
	ParsedLogLevel zapcore.Level
}

// Supported quality names.
const (
	QualityMP3128 = "MP3_128"
	QualityMP3320 = "MP3_320"
	QualityFLAC   = "FLAC"
)

// Lyrics location modes.
const (
	LyricsLocationWithAudio    = "with_audio"
	LyricsLocationCustomFolder = "custom_folder"
)

const (
	// DeezerBaseURL is the base URL for the Deezer service.
	DeezerBaseURL = "https://www.deezer.com"

	// DefaultConfigFilename is the default name of the configuration file.
	DefaultConfigFilename = ".deegrab.yaml"

	// DefaultTrackFilenameTemplate is the default template for naming standalone track files.
	DefaultTrackFilenameTemplate = "{artist} - {title}"

	// DefaultAlbumTrackFilenameTemplate is the default template for naming album track files.
	DefaultAlbumTrackFilenameTemplate = "{track_number:02d} - {title}"

	// DefaultCompilationTrackFilenameTemplate is the default template for compilation track files.
	DefaultCompilationTrackFilenameTemplate = "{track_number:02d} - {artist} - {title}"

	// DefaultPlaylistTrackFilenameTemplate is the default template for playlist track files.
	DefaultPlaylistTrackFilenameTemplate = "{playlist_position:02d} - {artist} - {title}"

	// DefaultPlaylistFolderTemplate is the default template for naming playlist folders.
	DefaultPlaylistFolderTemplate = "{playlist}"

	// DefaultArtistFolderTemplate is the default template for naming artist folders.
	DefaultArtistFolderTemplate = "{album_artist}"

	// DefaultAlbumFolderTemplate is the default template for naming album folders.
	DefaultAlbumFolderTemplate = "{album}"

	// DefaultCDFolderTemplate is the default template for naming per-disc folders.
	DefaultCDFolderTemplate = "CD {disc_number}"

	// DefaultMaxLogLength is the default maximum size (in bytes) for dumped HTTP payloads in logs.
	DefaultMaxLogLength = 1 * 1024 * 1024 // 1 MB

	// DefaultMaxConcurrentDownloads is the pool size used when none is configured.
	DefaultMaxConcurrentDownloads = 3

	// MaxConcurrentDownloadsCap is the hard upper bound on the pool size.
	MaxConcurrentDownloadsCap = 10
)

// Static error definitions for better error handling.
var (
	// ErrEmptyARL indicates that the authentication cookie value is missing.
	ErrEmptyARL = errors.New("arl cannot be empty")
	// ErrInvalidQuality indicates that the quality setting is invalid.
	ErrInvalidQuality = errors.New("invalid quality")
	// ErrUnknownLogLevel indicates that the log level is not recognized.
	ErrUnknownLogLevel = errors.New("unknown log level")
	// ErrInvalidConcurrentDownloads indicates that the concurrent downloads count is invalid.
	ErrInvalidConcurrentDownloads = errors.New("max concurrent downloads must be a positive integer")
	// ErrInvalidLyricsLocation indicates that the lyrics location mode is not recognized.
	ErrInvalidLyricsLocation = errors.New("unknown lyrics location")
	// ErrEmptyLyricsFolder indicates that a custom lyrics folder is required but not set.
	ErrEmptyLyricsFolder = errors.New("lyrics_folder cannot be empty when lyrics_location is custom_folder")
	// ErrInvalidArtworkFormat indicates that the artwork format is not supported.
	ErrInvalidArtworkFormat = errors.New("artwork format must be jpg or png")
)

// LoadConfig loads configuration settings from a YAML file.
func LoadConfig(configFilename string) (*Config, error) {
	if configFilename == "" {
		configFilename = DefaultConfigFilename
	}

	viper.SetConfigFile(configFilename)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// ValidateConfig checks the configuration for validity, fills in defaults and sets derived fields.
//
//nolint:cyclop // Validation functions naturally have high complexity due to sequential checks.
func ValidateConfig(cfg *Config) error {
	arl := strings.TrimSpace(cfg.ARL)
	if arl == "" {
		return ErrEmptyARL
	}

	cfg.DeezerBaseURL = DeezerBaseURL

	switch cfg.Quality {
	case QualityMP3128, QualityMP3320, QualityFLAC:
	default:
		return fmt.Errorf("%w: '%s', must be one of %s, %s, %s",
			ErrInvalidQuality, cfg.Quality, QualityMP3128, QualityMP3320, QualityFLAC)
	}

	if cfg.MaxConcurrentDownloads == 0 {
		cfg.MaxConcurrentDownloads = DefaultMaxConcurrentDownloads
	}

	if cfg.MaxConcurrentDownloads < 0 {
		return ErrInvalidConcurrentDownloads
	}

	if cfg.MaxConcurrentDownloads > MaxConcurrentDownloadsCap {
		cfg.MaxConcurrentDownloads = MaxConcurrentDownloadsCap
	}

	applyTemplateDefaults(cfg)

	switch cfg.LyricsLocation {
	case "", LyricsLocationWithAudio:
		cfg.LyricsLocation = LyricsLocationWithAudio
	case LyricsLocationCustomFolder:
		if strings.TrimSpace(cfg.LyricsFolder) == "" {
			return ErrEmptyLyricsFolder
		}
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidLyricsLocation, cfg.LyricsLocation)
	}

	switch strings.ToLower(cfg.ArtworkFormat) {
	case "":
		cfg.ArtworkFormat = "jpg"
	case "jpg", "jpeg", "png":
		cfg.ArtworkFormat = strings.ToLower(cfg.ArtworkFormat)
	default:
		return fmt.Errorf("%w: '%s'", ErrInvalidArtworkFormat, cfg.ArtworkFormat)
	}

	parsedLogLevel, isLogLevelCorrect := logger.ParseLogLevel(cfg.LogLevel)
	if !isLogLevelCorrect {
		return fmt.Errorf("%w: '%s'", ErrUnknownLogLevel, cfg.LogLevel)
	}

	cfg.ParsedLogLevel = parsedLogLevel

	var parsedDownloadSpeedLimit uint64

	downloadSpeedLimit := strings.TrimSpace(cfg.DownloadSpeedLimit)
	if downloadSpeedLimit != "" && downloadSpeedLimit != "0" {
		var err error

		parsedDownloadSpeedLimit, err = humanize.ParseBytes(downloadSpeedLimit)
		if err != nil {
			return fmt.Errorf("failed to parse download speed limit: %w", err)
		}
	}

	// io.CopyN accepts only int64 so we transform it safely in order to use it later.
	cfg.ParsedDownloadSpeedLimit = utils.SafeUint64ToInt64(parsedDownloadSpeedLimit)

	return nil
}

// applyTemplateDefaults fills empty folder and filename templates with their defaults.
func applyTemplateDefaults(cfg *Config) {
	if cfg.PlaylistFolderTemplate == "" {
		cfg.PlaylistFolderTemplate = DefaultPlaylistFolderTemplate
	}

	if cfg.ArtistFolderTemplate == "" {
		cfg.ArtistFolderTemplate = DefaultArtistFolderTemplate
	}

	if cfg.AlbumFolderTemplate == "" {
		cfg.AlbumFolderTemplate = DefaultAlbumFolderTemplate
	}

	if cfg.CDFolderTemplate == "" {
		cfg.CDFolderTemplate = DefaultCDFolderTemplate
	}

	if cfg.TrackFilenameTemplate == "" {
		cfg.TrackFilenameTemplate = DefaultTrackFilenameTemplate
	}

	if cfg.AlbumTrackFilenameTemplate == "" {
		cfg.AlbumTrackFilenameTemplate = DefaultAlbumTrackFilenameTemplate
	}

	if cfg.CompilationTrackFilenameTemplate == "" {
		cfg.CompilationTrackFilenameTemplate = DefaultCompilationTrackFilenameTemplate
	}

	if cfg.PlaylistTrackFilenameTemplate == "" {
		cfg.PlaylistTrackFilenameTemplate = DefaultPlaylistTrackFilenameTemplate
	}
}

// SaveConfig saves the configuration to the file while preserving the original format and order.
func SaveConfig(cfg *Config) error {
	configFile := getConfigFilePath()

	// Read the original file content.
	originalContent, err := os.ReadFile(configFile)
	if err != nil {
		return handleMissingConfigFile(configFile, cfg.ARL, err)
	}

	// Parse YAML while preserving order using yaml.Node.
	var node yaml.Node
	if err = yaml.Unmarshal(originalContent, &node); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Update the arl value in the node tree.
	updateARLInNode(&node, cfg.ARL)

	// Marshal back to YAML (preserves order).
	newContent, err := yaml.Marshal(&node)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	// Write the file back with preserved order.
	if err = os.WriteFile(configFile, newContent, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigFilePath returns the config file path from viper or the default.
func getConfigFilePath() string {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		return DefaultConfigFilename
	}

	return configFile
}

// handleMissingConfigFile creates a new config file if it doesn't exist.
func handleMissingConfigFile(configFile, arl string, err error) error {
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// File doesn't exist, create it with viper.
	viper.Set("arl", arl)

	if err = viper.SafeWriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	return nil
}

// updateARLInNode updates the arl value in the YAML node tree.
func updateARLInNode(node *yaml.Node, arl string) {
	// The root node is a document node, content[0] is the actual map.
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return
	}

	mapNode := node.Content[0]

	// Iterate through key-value pairs (stored as alternating nodes).
	for i := 0; i < len(mapNode.Content); i += 2 {
		keyNode := mapNode.Content[i]
		valueNode := mapNode.Content[i+1]

		if keyNode.Value == "arl" {
			// Update the value while preserving style.
			valueNode.Value = arl

			// Ensure it's quoted if it contains special characters.
			if valueNode.Style == 0 {
				valueNode.Style = yaml.DoubleQuotedStyle
			}

			break
		}
	}
}
