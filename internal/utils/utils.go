package utils

import (
	"bufio"
	"math"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// pathSeparatorPattern matches characters that would split a component into
	// extra directories (both Unix and Windows separators).
	//nolint:gochecknoglobals // This is immutable, pre-compiled regex pattern and used as a constant.
	pathSeparatorPattern = regexp.MustCompile(`[/\\]+`)

	// illegalCharsPattern includes characters rejected by common filesystems
	// and ASCII control characters (0-31).
	//nolint:gochecknoglobals // This is immutable, pre-compiled regex pattern and used as a constant.
	illegalCharsPattern = regexp.MustCompile(`[:*?"<>|\x00-\x1F]`)

	// whitespaceRunPattern matches runs of whitespace to collapse into one space.
	//nolint:gochecknoglobals // This is immutable, pre-compiled regex pattern and used as a constant.
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
)

// emptyComponentFallback is used when sanitization leaves nothing usable.
const emptyComponentFallback = "untitled"

// SafeUint64ToInt64 converts a uint64 value to an int64 safely,
// ensuring that the value does not exceed the maximum limit of int64.
func SafeUint64ToInt64(val uint64) int64 {
	if val > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(val)
}

// SanitizePathComponent makes a single path component safe on common
// filesystems. Path separators become hyphens, illegal characters are
// stripped, whitespace runs collapse to one space, and an empty result
// becomes "untitled". The function is idempotent.
func SanitizePathComponent(name string) string {
	result := pathSeparatorPattern.ReplaceAllString(name, "-")
	result = illegalCharsPattern.ReplaceAllString(result, "")
	result = whitespaceRunPattern.ReplaceAllString(result, " ")
	result = strings.TrimSpace(result)

	// Trailing dots confuse Windows; a lone dot would also alias the
	// current directory.
	result = strings.TrimRight(result, ".")

	if result == "" {
		return emptyComponentFallback
	}

	return result
}

// SetFileExtension ensures the file has the specified extension.
// If the filename already has the correct extension, it is returned unchanged.
// If the filename has a different extension, the old extension is replaced with the new one.
// If the filename has no extension, the new extension is appended.
func SetFileExtension(filename, extension string, isExtensionReplaced bool) string {
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	currentExt := filepath.Ext(filename)
	if currentExt == extension {
		return filename
	}

	if isExtensionReplaced {
		// Remove existing extension if present.
		filename = strings.TrimSuffix(filename, currentExt)
	}

	return filename + extension
}

// IsFileExist checks if a file exists at the specified path.
// It returns true if the file exists and is not a directory, false if the file does not exist,
// and an error if there was an issue accessing the file.
func IsFileExist(path string) (bool, error) {
	stat, err := os.Stat(path)
	if err == nil {
		return !stat.IsDir(), nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// ReadUniqueLinesFromFile reads a text file and returns a slice of unique non-empty lines.
// It skips empty lines and ensures that each line in the returned slice is unique.
func ReadUniqueLinesFromFile(path string) ([]string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer file.Close() //nolint:errcheck // Error on close is not critical here.

	var (
		uniqueLines = make(map[string]struct{})
		lines       []string
		scanner     = bufio.NewScanner(file)
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if _, exists := uniqueLines[line]; !exists {
			uniqueLines[line] = struct{}{}

			lines = append(lines, line)
		}
	}

	if err = scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// ExtractNamedGroup extracts the value of a named capturing group from a regex match.
// It returns an empty string if the group is not found or if there is no match.
func ExtractNamedGroup(re *regexp.Regexp, groupName, input string) string {
	match := re.FindStringSubmatch(input)
	if match == nil {
		return ""
	}

	// Map group names to their corresponding values.
	for i, name := range re.SubexpNames() {
		if name == groupName {
			return match[i]
		}
	}

	return ""
}

// Map applies a transformation function to each element of a slice and returns a new slice with the results.
func Map[E, S any](v []E, transformFunc func(E) S) []S {
	result := make([]S, len(v))
	for i := range v {
		result[i] = transformFunc(v[i])
	}

	return result
}

// textContentTypePatterns is a slice of regular expressions that match content
// types considered to be text-based.
//
//nolint:gochecknoglobals // These are immutable, pre-compiled regex patterns and used as constants.
var textContentTypePatterns = []*regexp.Regexp{
	regexp.MustCompile("^text/.+"),
	regexp.MustCompile("^application/json$"),
	regexp.MustCompile(`^application/xml$`),
}

// IsTextContentType checks if the given content type represents a text-based format.
// It supports common text content types like "text/*", "application/json", and "application/xml".
// It also checks that the charset, if present, is either "utf-8" or "us-ascii".
func IsTextContentType(contentType string) bool {
	parsedType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	for _, pattern := range textContentTypePatterns {
		if !pattern.MatchString(parsedType) {
			continue
		}

		charset := strings.ToLower(params["charset"])

		return charset == "" || charset == "utf-8" || charset == "us-ascii"
	}

	return false
}
