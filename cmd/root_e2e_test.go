package cmd_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// testBinaryName is the name of the test binary for E2E tests.
	testBinaryName = "deegrab-test"
)

// TestMain builds the binary before running E2E tests.
func TestMain(m *testing.M) {
	// Build the binary for testing.
	//nolint:noctx // TestMain doesn't have access to context, and build is needed before tests run.
	buildCmd := exec.Command("go", "build", "-o", testBinaryName, "../.")
	if err := buildCmd.Run(); err != nil {
		os.Exit(1)
	}

	// Run tests.
	code := m.Run()

	// Cleanup.
	_ = os.Remove(testBinaryName)

	os.Exit(code)
}

// TestE2E_FlagOverrides_Quality tests that --quality flag overrides config.
func TestE2E_FlagOverrides_Quality(t *testing.T) {
	t.Parallel()

	baseConfig := `
arl: "test_arl_123"
quality: "MP3_128"
output_path: "/tmp/test-output"
download_lyrics: false
download_speed_limit: "500KB"
log_level: "info"
max_concurrent_downloads: 1
`

	tests := []struct {
		name            string
		flags           []string
		expectedQuality string
	}{
		{
			name:            "quality flag overrides to MP3_320",
			flags:           []string{"--quality", "MP3_320"},
			expectedQuality: "MP3_320",
		},
		{
			name:            "quality flag overrides to FLAC",
			flags:           []string{"--quality", "FLAC"},
			expectedQuality: "FLAC",
		},
		{
			name:            "no quality flag uses config",
			flags:           []string{},
			expectedQuality: "MP3_128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Create temp directory and config file.
			tempDir := t.TempDir()
			configPath := filepath.Join(tempDir, "test-config.yaml")
			err := os.WriteFile(configPath, []byte(baseConfig), 0o644) //nolint:gosec // It's a test file.
			require.NoError(t, err)

			// Run and get config dump.
			config := runWithConfigDump(t, configPath, tt.flags)
			require.NotNil(t, config, "Failed to get config dump")

			// Verify quality was set correctly.
			assert.Equal(t, tt.expectedQuality, config.Quality,
				"Quality should be %s", tt.expectedQuality)
		})
	}
}

// TestE2E_FlagOverrides_AllFlags tests all flags together.
//
//nolint:funlen // It's a comprehensive E2E test.
func TestE2E_FlagOverrides_AllFlags(t *testing.T) {
	t.Parallel()

	baseConfig := `
arl: "test_arl_123"
quality: "MP3_128"
output_path: "/config/output"
download_lyrics: false
download_speed_limit: "500KB"
log_level: "debug"
max_concurrent_downloads: 1
`

	tests := []struct {
		name             string
		flags            []string
		expectedQuality  string
		expectedOutput   string
		expectedLyrics   bool
		expectedSpeedLim string
	}{
		{
			name:             "no flags - use config",
			flags:            []string{},
			expectedQuality:  "MP3_128",
			expectedOutput:   "/config/output",
			expectedLyrics:   false,
			expectedSpeedLim: "500KB",
		},
		{
			name:             "quality only",
			flags:            []string{"--quality", "MP3_320"},
			expectedQuality:  "MP3_320",
			expectedOutput:   "/config/output",
			expectedLyrics:   false,
			expectedSpeedLim: "500KB",
		},
		{
			name:             "output only",
			flags:            []string{"--output", "/flag/output"},
			expectedQuality:  "MP3_128",
			expectedOutput:   "/flag/output",
			expectedLyrics:   false,
			expectedSpeedLim: "500KB",
		},
		{
			name:             "lyrics only",
			flags:            []string{"--lyrics"},
			expectedQuality:  "MP3_128",
			expectedOutput:   "/config/output",
			expectedLyrics:   true,
			expectedSpeedLim: "500KB",
		},
		{
			name:             "speed-limit only",
			flags:            []string{"--speed-limit", "1MB"},
			expectedQuality:  "MP3_128",
			expectedOutput:   "/config/output",
			expectedLyrics:   false,
			expectedSpeedLim: "1MB",
		},
		{
			name:             "all flags",
			flags:            []string{"--quality", "FLAC", "--output", "/all/flags", "--lyrics", "--speed-limit", "2MB"},
			expectedQuality:  "FLAC",
			expectedOutput:   "/all/flags",
			expectedLyrics:   true,
			expectedSpeedLim: "2MB",
		},
		{
			name:             "quality and output",
			flags:            []string{"--quality", "MP3_320", "--output", "/combo/output"},
			expectedQuality:  "MP3_320",
			expectedOutput:   "/combo/output",
			expectedLyrics:   false,
			expectedSpeedLim: "500KB",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Create temp directory and config file.
			tempDir := t.TempDir()
			configPath := filepath.Join(tempDir, "test-config.yaml")
			err := os.WriteFile(configPath, []byte(baseConfig), 0o644) //nolint:gosec // It's a test file.
			require.NoError(t, err)

			// Run and get config dump.
			config := runWithConfigDump(t, configPath, tt.flags)
			require.NotNil(t, config, "Failed to get config dump")

			// Verify all expected values.
			assert.Equal(t, tt.expectedQuality, config.Quality,
				"Quality should be %s", tt.expectedQuality)
			assert.Equal(t, tt.expectedOutput, config.OutputPath,
				"Output path should be %s", tt.expectedOutput)
			assert.Equal(t, tt.expectedLyrics, config.DownloadLyrics,
				"Download lyrics should be %t", tt.expectedLyrics)
			assert.Equal(t, tt.expectedSpeedLim, config.DownloadSpeedLimit,
				"Speed limit should be %s", tt.expectedSpeedLim)
		})
	}
}

// TestE2E_FlagOverrides_InvalidValues tests that invalid flag values are rejected.
func TestE2E_FlagOverrides_InvalidValues(t *testing.T) {
	t.Parallel()

	baseConfig := `
arl: "test_arl_123"
quality: "MP3_128"
output_path: "/tmp/test-output"
download_lyrics: false
download_speed_limit: "500KB"
log_level: "info"
max_concurrent_downloads: 1
`

	tests := []struct {
		name             string
		flags            []string
		expectedErrorMsg string
	}{
		{
			name:             "invalid quality - unknown name",
			flags:            []string{"--quality", "OGG_VORBIS"},
			expectedErrorMsg: "invalid quality",
		},
		{
			name:             "invalid quality - lowercase",
			flags:            []string{"--quality", "flac"},
			expectedErrorMsg: "invalid quality",
		},
		{
			name:             "invalid speed limit",
			flags:            []string{"--speed-limit", "invalid-speed"},
			expectedErrorMsg: "failed to parse download speed limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Create temp directory and config file.
			tempDir := t.TempDir()
			configPath := filepath.Join(tempDir, "test-config.yaml")
			err := os.WriteFile(configPath, []byte(baseConfig), 0o644) //nolint:gosec // It's a test file.
			require.NoError(t, err)

			// Prepare arguments.
			args := []string{
				"--config", configPath,
				"https://www.deezer.com/track/3135556",
			}
			args = append(args, tt.flags...)

			// Run the binary.
			//nolint:gosec,noctx // Test binary name is a constant, not user input. No context available in test.
			cmd := exec.Command("./"+testBinaryName, args...)
			output, err := cmd.CombinedOutput()

			// Should fail with error.
			require.Error(t, err)

			outputStr := string(output)

			// Verify error message.
			assert.Contains(t, strings.ToLower(outputStr), strings.ToLower(tt.expectedErrorMsg),
				"Expected error message about '%s' but got: %s", tt.expectedErrorMsg, outputStr)
		})
	}
}

// ConfigDump represents the config dump structure.
type ConfigDump struct {
	// Quality is the configured audio quality name.
	Quality string `json:"quality"`
	// OutputPath is the directory path for downloads.
	OutputPath string `json:"output_path"`
	// DownloadLyrics indicates whether lyrics should be downloaded.
	DownloadLyrics bool `json:"download_lyrics"`
	// DownloadSpeedLimit is the speed limit for downloads.
	DownloadSpeedLimit string `json:"download_speed_limit"`
}

// runWithConfigDump runs the app with config dump enabled and parses the output.
func runWithConfigDump(t *testing.T, configPath string, flags []string) *ConfigDump {
	t.Helper()

	args := []string{
		"--config", configPath,
		"https://www.deezer.com/track/3135556",
	}
	args = append(args, flags...)

	//nolint:gosec,noctx // Test binary name is a constant, not user input. No context available in test.
	cmd := exec.Command("./"+testBinaryName, args...)

	cmd.Env = append(os.Environ(), "DEEGRAB_DUMP_CONFIG=1")

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Logf("Command failed: %v, output: %s", err, string(output))
		return nil
	}

	// Parse JSON config dump from output.
	var config ConfigDump
	if err := json.Unmarshal(output, &config); err != nil {
		t.Logf("Failed to parse config: %v, output: %s", err, string(output))
		return nil
	}

	return &config
}
