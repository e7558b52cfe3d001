package deezer

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// parseResult extracts the JSON value at path from a gateway results payload
// and unmarshals it into T. A missing path yields (nil, nil).
func parseResult[T any](results []byte, path string) (*T, error) {
	value := gjson.GetBytes(results, path)
	if !value.Exists() {
		return nil, nil //nolint:nilnil // Absence is not an error at this layer.
	}

	var parsed T
	if err := json.Unmarshal([]byte(value.Raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &parsed, nil
}

// parseTrackList extracts an ordered track list from a gateway results payload.
func parseTrackList(results []byte, path string) ([]*Track, error) {
	value := gjson.GetBytes(results, path)
	if !value.Exists() {
		return nil, nil
	}

	var tracks []*Track
	if err := json.Unmarshal([]byte(value.Raw), &tracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return tracks, nil
}

// parseAlbumGenre extracts the album's primary genre name from an album page
// response. Different page versions nest the genre list differently.
func parseAlbumGenre(results []byte) string {
	if genre := gjson.GetBytes(results, "DATA.GENRES.data.0.NAME"); genre.Exists() {
		return genre.String()
	}

	return gjson.GetBytes(results, "GENRES.data.0.NAME").String()
}
