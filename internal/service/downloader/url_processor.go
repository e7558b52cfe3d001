package downloader

//go:generate $MOCKGEN -source=url_processor.go -destination=mocks/url_processor_mock.go

import (
	"context"
	"regexp"
	"strings"

	"github.com/deegrab/deegrab/internal/logger"
	"github.com/deegrab/deegrab/internal/utils"
)

// URLProcessor defines the interface for processing URLs and extracting downloadable items.
type URLProcessor interface {
	// ExtractDownloadItems processes a list of URLs and categorizes them into tracks and collections.
	ExtractDownloadItems(ctx context.Context, urls []string) (*ExtractDownloadItemsResponse, error)
	// DeduplicateDownloadItems removes duplicate DownloadItems based on their category and ItemID.
	DeduplicateDownloadItems(items []*DownloadItem) []*DownloadItem
}

// ExtractDownloadItemsResponse represents the result of processing URLs.
type ExtractDownloadItemsResponse struct {
	// Tracks contains individual track download items.
	Tracks []*DownloadItem
	// Collections contains album and playlist download items.
	Collections []*DownloadItem
}

// URLProcessorImpl implements the URLProcessor interface.
type URLProcessorImpl struct{}

// defaultTextExtension is the default file extension for text files.
const defaultTextExtension = ".txt"

// categoriesByPatterns maps URL patterns to download categories.
// Locale segments and trailing query strings are tolerated, so both
// "deezer.com/track/123" and "deezer.com/en/track/123?host=..." match.
//
//nolint:gochecknoglobals,lll // This is a justified global variable: immutable data, performance optimization, and reusability.
var categoriesByPatterns = []struct {
	// Pattern is the regex pattern to match URLs.
	Pattern *regexp.Regexp
	// Category is the download category for matched URLs.
	Category DownloadCategory
}{
	{regexp.MustCompile(`/track/(?<ID>\d+)(?:\?.*)?$`), DownloadCategoryTrack},
	{regexp.MustCompile(`/album/(?<ID>\d+)(?:\?.*)?$`), DownloadCategoryAlbum},
	{regexp.MustCompile(`/playlist/(?<ID>\d+)(?:\?.*)?$`), DownloadCategoryPlaylist},
}

// NewURLProcessor creates and returns a new instance of URLProcessorImpl.
func NewURLProcessor() URLProcessor {
	return &URLProcessorImpl{}
}

// ExtractDownloadItems processes a list of URLs and categorizes them into tracks and collections.
func (up *URLProcessorImpl) ExtractDownloadItems(
	ctx context.Context,
	urls []string,
) (*ExtractDownloadItemsResponse, error) {
	// Flatten text files containing multiple URLs into the working list.
	urls, err := up.processAndFlattenURLs(urls)
	if err != nil {
		return nil, err
	}

	var (
		tracks      []*DownloadItem
		collections []*DownloadItem
		parsedURLs  = make(map[string]struct{}, len(urls))
	)

	for _, url := range urls {
		// Skip already parsed URLs to avoid duplicates.
		if _, ok := parsedURLs[url]; ok {
			continue
		}

		item := up.parseDownloadItem(url)
		parsedURLs[url] = struct{}{}

		switch item.Category {
		case DownloadCategoryTrack:
			tracks = append(tracks, item)
		case DownloadCategoryAlbum, DownloadCategoryPlaylist:
			collections = append(collections, item)
		case DownloadCategoryUnknown:
			logger.Warnf(ctx, "Unknown URL: %s", url)
		}
	}

	return &ExtractDownloadItemsResponse{
		Tracks:      tracks,
		Collections: collections,
	}, nil
}

// DeduplicateDownloadItems removes duplicate DownloadItems based on their category and ItemID.
func (up *URLProcessorImpl) DeduplicateDownloadItems(items []*DownloadItem) []*DownloadItem {
	uniqueItems := make(map[ShortDownloadItem]struct{}, len(items))
	result := make([]*DownloadItem, 0, len(items))

	for _, item := range items {
		key := ShortDownloadItem{Category: item.Category, ItemID: item.ItemID}
		if _, ok := uniqueItems[key]; ok {
			continue
		}

		uniqueItems[key] = struct{}{}

		result = append(result, item)
	}

	return result
}

func (up *URLProcessorImpl) parseDownloadItem(url string) *DownloadItem {
	for _, p := range categoriesByPatterns {
		if itemID := utils.ExtractNamedGroup(p.Pattern, "ID", url); itemID != "" {
			return &DownloadItem{Category: p.Category, URL: url, ItemID: itemID}
		}
	}

	return &DownloadItem{
		Category: DownloadCategoryUnknown,
		URL:      url,
		ItemID:   "",
	}
}

func (up *URLProcessorImpl) processAndFlattenURLs(urls []string) ([]string, error) {
	var (
		processedSet       = make(map[string]struct{})
		processedTextFiles = make(map[string]struct{})
		processedURLs      []string
	)

	for _, url := range urls {
		// Non-file arguments pass through as-is.
		if !strings.HasSuffix(url, defaultTextExtension) {
			if _, ok := processedSet[url]; ok {
				continue
			}

			processedSet[url] = struct{}{}

			processedURLs = append(processedURLs, url)

			continue
		}

		if _, exists := processedTextFiles[url]; exists {
			continue
		}

		lines, err := utils.ReadUniqueLinesFromFile(url)
		if err != nil {
			return nil, err
		}

		for _, line := range lines {
			if _, ok := processedSet[line]; ok {
				continue
			}

			processedSet[line] = struct{}{}

			processedURLs = append(processedURLs, line)
		}

		processedTextFiles[url] = struct{}{}
	}

	return processedURLs, nil
}
