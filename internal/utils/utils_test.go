package utils

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSanitizePathComponent tests filesystem-safe sanitization rules.
func TestSanitizePathComponent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "clean name unchanged",
			input:    "Album X",
			expected: "Album X",
		},
		{
			name:     "path separators become hyphens",
			input:    "AC/DC",
			expected: "AC-DC",
		},
		{
			name:     "backslashes become hyphens",
			input:    `a\b\c`,
			expected: "a-b-c",
		},
		{
			name:     "illegal characters stripped",
			input:    `What *is* this: "a test"?<|>`,
			expected: "What is this a test",
		},
		{
			name:     "whitespace runs collapse",
			input:    "too   many\t\tspaces",
			expected: "too many spaces",
		},
		{
			name:     "empty becomes untitled",
			input:    "",
			expected: "untitled",
		},
		{
			name:     "only illegal characters becomes untitled",
			input:    `:*?"<>|`,
			expected: "untitled",
		},
		{
			name:     "trailing dots trimmed",
			input:    "name...",
			expected: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, SanitizePathComponent(tt.input))
		})
	}
}

// TestSanitizePathComponent_Idempotent tests that sanitizing twice equals sanitizing once.
func TestSanitizePathComponent_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"plain",
		"AC/DC: Back In Black?",
		`a\b/c*d`,
		"   spaced   out   ",
		`:*?"<>|`,
		"ünïcødé / næme",
	}

	for i, input := range inputs {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			t.Parallel()

			once := SanitizePathComponent(input)
			assert.Equal(t, once, SanitizePathComponent(once))
		})
	}
}

// TestSetFileExtension tests extension handling.
func TestSetFileExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "track.mp3", SetFileExtension("track", ".mp3", true))
	assert.Equal(t, "track.mp3", SetFileExtension("track.mp3", ".mp3", true))
	assert.Equal(t, "track.flac", SetFileExtension("track.mp3", ".flac", true))
	assert.Equal(t, "track.mp3.lrc", SetFileExtension("track.mp3", "lrc", false))
}

// TestIsFileExist tests file existence checks.
func TestIsFileExist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "exists.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	exists, err := IsFileExist(path)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = IsFileExist(filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.False(t, exists)

	// Directories do not count as files.
	exists, err = IsFileExist(dir)
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestReadUniqueLinesFromFile tests batch-file line reading.
func TestReadUniqueLinesFromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "urls.txt")
	content := "one\n\ntwo\none\n  three  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	lines, err := ReadUniqueLinesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

// TestExtractNamedGroup tests named regex group extraction.
func TestExtractNamedGroup(t *testing.T) {
	t.Parallel()

	re := regexp.MustCompile(`/track/(?P<id>\d+)`)

	assert.Equal(t, "123", ExtractNamedGroup(re, "id", "https://www.deezer.com/track/123"))
	assert.Empty(t, ExtractNamedGroup(re, "id", "https://www.deezer.com/album/123"))
	assert.Empty(t, ExtractNamedGroup(re, "missing", "/track/123"))
}

// TestMap tests the generic slice transform.
func TestMap(t *testing.T) {
	t.Parallel()

	result := Map([]int{1, 2, 3}, strconv.Itoa)
	assert.Equal(t, []string{"1", "2", "3"}, result)
}

func TestIsTextContentType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		contentType string
		expected    bool
	}{
		{name: "plain text", contentType: "text/plain", expected: true},
		{name: "html with utf-8", contentType: "text/html; charset=utf-8", expected: true},
		{name: "json", contentType: "application/json", expected: true},
		{name: "xml", contentType: "application/xml", expected: true},
		{name: "binary audio", contentType: "audio/flac", expected: false},
		{name: "octet stream", contentType: "application/octet-stream", expected: false},
		{name: "unsupported charset", contentType: "text/plain; charset=koi8-r", expected: false},
		{name: "malformed", contentType: ";;;", expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, IsTextContentType(tc.contentType))
		})
	}
}
