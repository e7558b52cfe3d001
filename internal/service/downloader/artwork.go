package downloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/deegrab/deegrab/internal/client/deezer"
	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/constants"
	"github.com/deegrab/deegrab/internal/logger"
)

const (
	artworkCDNBaseURL = "https://cdn-images.dzcdn.net/images"

	artworkFormatJPEG = "jpg"
	artworkFormatPNG  = "png"
)

// Artwork size tiers served by the image CDN. Requested sizes snap to the
// nearest tier from below.
//
//nolint:gochecknoglobals // Immutable tier list.
var artworkSizeTiers = []int64{1000, 500, 250}

// ArtworkManager fetches cover and artist images and saves them next to
// downloaded audio, at most once per destination directory.
type ArtworkManager interface {
	// FetchCover downloads the album cover into a temporary file and returns
	// its path. The caller removes the file when done.
	FetchCover(ctx context.Context, coverHash string) (string, error)
	// SaveAlbumCover writes the album cover into the destination directory
	// unless one was already saved there.
	SaveAlbumCover(ctx context.Context, directory, coverHash string)
	// SaveArtistImage writes the artist image into the destination directory
	// unless one was already saved there.
	SaveArtistImage(ctx context.Context, directory, artistPictureHash string)
}

// ArtworkManagerImpl implements the ArtworkManager interface.
type ArtworkManagerImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// client is the streaming service client used to fetch images.
	client deezer.Client

	// savedMutex guards savedPaths.
	savedMutex sync.Mutex
	// savedPaths tracks destination files already written this run.
	savedPaths map[string]struct{}
}

// NewArtworkManager creates and returns a new instance of ArtworkManagerImpl.
func NewArtworkManager(cfg *config.Config, client deezer.Client) ArtworkManager {
	return &ArtworkManagerImpl{
		cfg:        cfg,
		client:     client,
		savedPaths: make(map[string]struct{}),
	}
}

// CoverURL builds the CDN URL of an album cover image.
func CoverURL(coverHash string, size int64, format string) string {
	return artworkURL("cover", coverHash, size, format)
}

// ArtistImageURL builds the CDN URL of an artist image.
func ArtistImageURL(artistPictureHash string, size int64, format string) string {
	return artworkURL("artist", artistPictureHash, size, format)
}

func artworkURL(kind, hash string, size int64, format string) string {
	tier := nearestArtworkTier(size)

	if format == artworkFormatPNG {
		return fmt.Sprintf("%s/%s/%s/%dx%d-none-100-0-0.png", artworkCDNBaseURL, kind, hash, tier, tier)
	}

	return fmt.Sprintf("%s/%s/%s/%dx%d-000000-80-0-0.jpg", artworkCDNBaseURL, kind, hash, tier, tier)
}

// nearestArtworkTier snaps a requested size to the closest CDN tier.
func nearestArtworkTier(size int64) int64 {
	if size <= 0 {
		return artworkSizeTiers[0]
	}

	best := artworkSizeTiers[0]
	bestDistance := absInt64(size - best)

	for _, tier := range artworkSizeTiers[1:] {
		if distance := absInt64(size - tier); distance < bestDistance {
			best, bestDistance = tier, distance
		}
	}

	return best
}

func absInt64(value int64) int64 {
	if value < 0 {
		return -value
	}

	return value
}

// FetchCover downloads the album cover into a temporary file and returns its path.
func (m *ArtworkManagerImpl) FetchCover(ctx context.Context, coverHash string) (string, error) {
	if coverHash == "" {
		return "", nil
	}

	url := CoverURL(coverHash, m.cfg.EmbeddedArtworkSize, m.cfg.ArtworkFormat)

	body, err := m.client.DownloadFromURL(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to download cover: %w", err)
	}

	defer body.Close()

	file, err := os.CreateTemp("", "deegrab-cover-*"+artworkExtension(m.cfg.ArtworkFormat))
	if err != nil {
		return "", fmt.Errorf("failed to create cover file: %w", err)
	}

	if _, err = io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(file.Name())

		return "", fmt.Errorf("failed to write cover file: %w", err)
	}

	if err = file.Close(); err != nil {
		os.Remove(file.Name())

		return "", fmt.Errorf("failed to close cover file: %w", err)
	}

	return file.Name(), nil
}

// SaveAlbumCover writes the album cover into the destination directory.
func (m *ArtworkManagerImpl) SaveAlbumCover(ctx context.Context, directory, coverHash string) {
	if !m.cfg.SaveAlbumCover || coverHash == "" {
		return
	}

	url := CoverURL(coverHash, m.cfg.SavedArtworkSize, m.cfg.ArtworkFormat)
	destination := filepath.Join(directory, m.cfg.AlbumCoverFilename+artworkExtension(m.cfg.ArtworkFormat))

	m.saveImage(ctx, url, destination)
}

// SaveArtistImage writes the artist image into the destination directory.
func (m *ArtworkManagerImpl) SaveArtistImage(ctx context.Context, directory, artistPictureHash string) {
	if !m.cfg.SaveArtistImage || artistPictureHash == "" {
		return
	}

	url := ArtistImageURL(artistPictureHash, m.cfg.SavedArtworkSize, m.cfg.ArtworkFormat)
	destination := filepath.Join(directory, m.cfg.ArtistImageFilename+artworkExtension(m.cfg.ArtworkFormat))

	m.saveImage(ctx, url, destination)
}

// saveImage downloads an image to a destination path, skipping paths already
// written this run or, unless covers are replaced, present on disk. Failures
// are logged and absorbed.
func (m *ArtworkManagerImpl) saveImage(ctx context.Context, url, destination string) {
	m.savedMutex.Lock()

	if _, done := m.savedPaths[destination]; done {
		m.savedMutex.Unlock()

		return
	}

	m.savedPaths[destination] = struct{}{}
	m.savedMutex.Unlock()

	if !m.cfg.ReplaceCovers {
		if _, err := os.Stat(destination); err == nil {
			return
		}
	}

	body, err := m.client.DownloadFromURL(ctx, url)
	if err != nil {
		logger.Warnf(ctx, "Failed to download image '%s': %v", url, err)

		return
	}

	defer body.Close()

	file, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.DefaultFilePermissions)
	if err != nil {
		logger.Warnf(ctx, "Failed to create image file '%s': %v", destination, err)

		return
	}

	if _, err = io.Copy(file, body); err != nil {
		file.Close()
		os.Remove(destination)
		logger.Warnf(ctx, "Failed to write image file '%s': %v", destination, err)

		return
	}

	if err = file.Close(); err != nil {
		logger.Warnf(ctx, "Failed to close image file '%s': %v", destination, err)
	}
}

// artworkExtension maps a configured artwork format to a file extension.
func artworkExtension(format string) string {
	if format == artworkFormatPNG {
		return constants.ExtensionPNG
	}

	return constants.ExtensionJPG
}
