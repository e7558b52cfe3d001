package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/deegrab/deegrab/internal/constants"
)

// TestConfigStruct tests the Config struct fields.
func TestConfigStruct(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ARL:                    "test_arl",
		Quality:                QualityFLAC,
		OutputPath:             "/tmp/downloads",
		MaxConcurrentDownloads: 3,
		CreateArtistFolder:     true,
		CreateAlbumFolder:      true,
		CreateCDFolder:         true,
		CreatePlaylistFolder:   false,
		TrackFilenameTemplate:  "{artist} - {title}",
		EmbedArtwork:           true,
		SaveAlbumCover:         true,
		EmbeddedArtworkSize:    1000,
		DownloadLyrics:         true,
		EmbedSyncedLyrics:      true,
		LyricsLocation:         LyricsLocationWithAudio,
		SyncedLyricsOffset:     -250,
		LogLevel:               "info",
		DownloadSpeedLimit:     "1MB",
	}

	assert.Equal(t, "test_arl", cfg.ARL)
	assert.Equal(t, QualityFLAC, cfg.Quality)
	assert.Equal(t, "/tmp/downloads", cfg.OutputPath)
	assert.Equal(t, int64(3), cfg.MaxConcurrentDownloads)
	assert.True(t, cfg.CreateArtistFolder)
	assert.True(t, cfg.CreateAlbumFolder)
	assert.True(t, cfg.CreateCDFolder)
	assert.False(t, cfg.CreatePlaylistFolder)
	assert.Equal(t, "{artist} - {title}", cfg.TrackFilenameTemplate)
	assert.True(t, cfg.EmbedArtwork)
	assert.Equal(t, int64(1000), cfg.EmbeddedArtworkSize)
	assert.Equal(t, int64(-250), cfg.SyncedLyricsOffset)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "1MB", cfg.DownloadSpeedLimit)
}

// TestConstants tests the constants.
func TestConstants(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1024*1024, DefaultMaxLogLength)
	assert.Equal(t, 3, DefaultMaxConcurrentDownloads)
	assert.Equal(t, 10, MaxConcurrentDownloadsCap)
	assert.Equal(t, "https://www.deezer.com", DeezerBaseURL)
}

// TestLoadConfig tests the LoadConfig function.
//
//nolint:tparallel // It's a test function and it's not parallel to avoid race conditions.
func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		configFilename string
		configContent  string
		expectError    bool
		expectedError  string
	}{
		{
			name:           "valid config file",
			configFilename: "valid_config.yaml",
			configContent: `
arl: "test_arl"
quality: "FLAC"
output_path: "/tmp/downloads"
max_concurrent_downloads: 3
create_artist_folder: true
create_album_folder: true
download_lyrics: true
replace_tracks: true
log_level: "info"
download_speed_limit: "1MB"
`,
			expectError: false,
		},
		{
			name:           "non-existent file",
			configFilename: "non_existent.yaml",
			expectError:    true,
			expectedError:  "failed to read config from file",
		},
		{
			name:           "invalid yaml",
			configFilename: "invalid_config.yaml",
			configContent:  "arl: [unclosed",
			expectError:    true,
			expectedError:  "failed to read config from file",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()

			configPath := tc.configFilename
			if tc.configContent != "" {
				configPath = filepath.Join(t.TempDir(), tc.configFilename)
				require.NoError(t,
					os.WriteFile(configPath, []byte(tc.configContent), constants.DefaultFilePermissions))
			}

			cfg, err := LoadConfig(configPath)
			if tc.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedError)

				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, "test_arl", cfg.ARL)
			assert.Equal(t, QualityFLAC, cfg.Quality)
			assert.Equal(t, int64(3), cfg.MaxConcurrentDownloads)
			assert.True(t, cfg.ReplaceTracks)
			assert.False(t, cfg.ReplaceCovers)
		})
	}
}

// validConfig returns a minimal configuration that passes validation.
func validConfig() *Config {
	return &Config{
		ARL:                    "test_arl",
		Quality:                QualityMP3320,
		OutputPath:             "/tmp/downloads",
		MaxConcurrentDownloads: 3,
		LogLevel:               "info",
	}
}

// TestValidateConfig tests the ValidateConfig function.
func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		mutate        func(cfg *Config)
		expectedError error
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:          "empty arl",
			mutate:        func(cfg *Config) { cfg.ARL = "   " },
			expectedError: ErrEmptyARL,
		},
		{
			name:          "invalid quality",
			mutate:        func(cfg *Config) { cfg.Quality = "OGG" },
			expectedError: ErrInvalidQuality,
		},
		{
			name:          "empty quality",
			mutate:        func(cfg *Config) { cfg.Quality = "" },
			expectedError: ErrInvalidQuality,
		},
		{
			name:          "negative concurrent downloads",
			mutate:        func(cfg *Config) { cfg.MaxConcurrentDownloads = -1 },
			expectedError: ErrInvalidConcurrentDownloads,
		},
		{
			name:          "unknown log level",
			mutate:        func(cfg *Config) { cfg.LogLevel = "chatty" },
			expectedError: ErrUnknownLogLevel,
		},
		{
			name:          "unknown lyrics location",
			mutate:        func(cfg *Config) { cfg.LyricsLocation = "somewhere" },
			expectedError: ErrInvalidLyricsLocation,
		},
		{
			name: "custom lyrics folder without path",
			mutate: func(cfg *Config) {
				cfg.LyricsLocation = LyricsLocationCustomFolder
				cfg.LyricsFolder = ""
			},
			expectedError: ErrEmptyLyricsFolder,
		},
		{
			name:          "invalid artwork format",
			mutate:        func(cfg *Config) { cfg.ArtworkFormat = "bmp" },
			expectedError: ErrInvalidArtworkFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(cfg)

			err := ValidateConfig(cfg)
			if tc.expectedError != nil {
				require.ErrorIs(t, err, tc.expectedError)

				return
			}

			require.NoError(t, err)
		})
	}
}

// TestValidateConfig_Defaults verifies defaults and derived fields set by validation.
func TestValidateConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MaxConcurrentDownloads = 0
	cfg.DownloadSpeedLimit = "1MB"

	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, DeezerBaseURL, cfg.DeezerBaseURL)
	assert.Equal(t, int64(DefaultMaxConcurrentDownloads), cfg.MaxConcurrentDownloads)
	assert.Equal(t, DefaultTrackFilenameTemplate, cfg.TrackFilenameTemplate)
	assert.Equal(t, DefaultAlbumTrackFilenameTemplate, cfg.AlbumTrackFilenameTemplate)
	assert.Equal(t, DefaultCompilationTrackFilenameTemplate, cfg.CompilationTrackFilenameTemplate)
	assert.Equal(t, DefaultPlaylistTrackFilenameTemplate, cfg.PlaylistTrackFilenameTemplate)
	assert.Equal(t, DefaultPlaylistFolderTemplate, cfg.PlaylistFolderTemplate)
	assert.Equal(t, DefaultArtistFolderTemplate, cfg.ArtistFolderTemplate)
	assert.Equal(t, DefaultAlbumFolderTemplate, cfg.AlbumFolderTemplate)
	assert.Equal(t, DefaultCDFolderTemplate, cfg.CDFolderTemplate)
	assert.Equal(t, LyricsLocationWithAudio, cfg.LyricsLocation)
	assert.Equal(t, "jpg", cfg.ArtworkFormat)
	assert.Equal(t, zapcore.InfoLevel, cfg.ParsedLogLevel)
	assert.Equal(t, int64(1000*1000), cfg.ParsedDownloadSpeedLimit)
}

// TestValidateConfig_ConcurrencyCap verifies oversized pool sizes are clamped.
func TestValidateConfig_ConcurrencyCap(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.MaxConcurrentDownloads = 64

	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, int64(MaxConcurrentDownloadsCap), cfg.MaxConcurrentDownloads)
}

// TestValidateConfig_InvalidSpeedLimit verifies unparsable speed limits are rejected.
func TestValidateConfig_InvalidSpeedLimit(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.DownloadSpeedLimit = "fast"

	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse download speed limit")
}

// TestSaveConfig tests updating the arl value while preserving key order and comments structure.
//
//nolint:paralleltest // Mutates the global viper instance.
func TestSaveConfig(t *testing.T) {
	viper.Reset()

	configPath := filepath.Join(t.TempDir(), DefaultConfigFilename)
	originalContent := `arl: "old_arl"
quality: "FLAC"
output_path: "/tmp/downloads"
log_level: "info"
`
	require.NoError(t, os.WriteFile(configPath, []byte(originalContent), constants.DefaultFilePermissions))

	viper.SetConfigFile(configPath)
	require.NoError(t, viper.ReadInConfig())

	cfg := &Config{ARL: "new_arl"}
	require.NoError(t, SaveConfig(cfg))

	updatedContent, err := os.ReadFile(configPath)
	require.NoError(t, err)

	updated := string(updatedContent)
	assert.Contains(t, updated, `"new_arl"`)
	assert.NotContains(t, updated, "old_arl")

	// Key order survives the rewrite.
	arlIndex := strings.Index(updated, "arl:")
	qualityIndex := strings.Index(updated, "quality:")
	outputIndex := strings.Index(updated, "output_path:")
	require.GreaterOrEqual(t, arlIndex, 0)
	assert.Less(t, arlIndex, qualityIndex)
	assert.Less(t, qualityIndex, outputIndex)
}

// TestSaveConfig_CreatesMissingFile verifies a new config file is created when none exists.
//
//nolint:paralleltest // Mutates the global viper instance.
func TestSaveConfig_CreatesMissingFile(t *testing.T) {
	viper.Reset()

	configPath := filepath.Join(t.TempDir(), DefaultConfigFilename)
	viper.SetConfigFile(configPath)

	cfg := &Config{ARL: "fresh_arl"}
	require.NoError(t, SaveConfig(cfg))

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "fresh_arl")
}
