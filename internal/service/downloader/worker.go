package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/deegrab/deegrab/internal/client/deezer"
	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/constants"
	"github.com/deegrab/deegrab/internal/decrypt"
	"github.com/deegrab/deegrab/internal/logger"
)

// WorkerState names a stage of the per-track download pipeline.
type WorkerState string

// Worker pipeline states, in execution order.
const (
	StateCreated           WorkerState = "created"
	StateResolvingMetadata WorkerState = "resolving_metadata"
	StateAcquiringURL      WorkerState = "acquiring_url"
	StateDownloading       WorkerState = "downloading"
	StateDecrypting        WorkerState = "decrypting"
	StateTaggingAndArtwork WorkerState = "tagging_and_artwork"
	StateFinalizing        WorkerState = "finalizing"
	StateSucceeded         WorkerState = "succeeded"
	StateFailed            WorkerState = "failed"
)

const (
	// downloadChunkSize is the copy granularity of the download loop. The stop
	// flag is checked between chunks, so this bounds cancellation latency.
	downloadChunkSize = 1024 * 1024

	percentTotal = 100
)

// workerReporter receives worker lifecycle notifications. The download
// manager implements it and decides which ones become observer events.
type workerReporter interface {
	trackStarted(task *DownloadTask, metadata *TrackMetadata)
	trackProgress(task *DownloadTask, percent float64)
	trackSucceeded(task *DownloadTask, finalPath string)
	trackFailed(task *DownloadTask, message string)
}

// trackWorker drives a single track through the download pipeline.
type trackWorker struct {
	cfg          *config.Config
	client       deezer.Client
	pathResolver PathResolver
	tagProcessor TagProcessor
	artwork      ArtworkManager
	reporter     workerReporter
	stats        *Statistics

	task    *DownloadTask
	quality Quality

	// stopped requests a silent exit. Checked at every stage boundary and
	// inside the download loop.
	stopped atomic.Bool

	stateMutex sync.Mutex
	state      WorkerState
}

// newTrackWorker creates a worker for one download task.
func newTrackWorker(
	cfg *config.Config,
	client deezer.Client,
	pathResolver PathResolver,
	tagProcessor TagProcessor,
	artwork ArtworkManager,
	reporter workerReporter,
	stats *Statistics,
	task *DownloadTask,
) *trackWorker {
	return &trackWorker{
		cfg:          cfg,
		client:       client,
		pathResolver: pathResolver,
		tagProcessor: tagProcessor,
		artwork:      artwork,
		reporter:     reporter,
		stats:        stats,
		task:         task,
		quality:      Quality(cfg.Quality),
		state:        StateCreated,
	}
}

// Stop requests a silent exit. The worker finishes its current chunk, removes
// its temporary files and emits no further events.
func (w *trackWorker) Stop() {
	w.stopped.Store(true)
}

// State returns the worker's current pipeline state.
func (w *trackWorker) State() WorkerState {
	w.stateMutex.Lock()
	defer w.stateMutex.Unlock()

	return w.state
}

func (w *trackWorker) setState(state WorkerState) {
	w.stateMutex.Lock()
	w.state = state
	w.stateMutex.Unlock()
}

// Run executes the full pipeline for the worker's task.
func (w *trackWorker) Run(ctx context.Context) {
	if w.stopped.Load() {
		return
	}

	w.setState(StateResolvingMetadata)

	metadata, rawTrack := w.resolveMetadata(ctx)
	album, playlistTitle := w.resolveGroupContext(ctx, metadata)

	if w.stopped.Load() {
		return
	}

	// The started event carries resolved metadata, so it fires only after
	// the lookup settled.
	w.reporter.trackStarted(w.task, metadata)

	quality := w.effectiveQuality(rawTrack)
	resolved := w.resolvePath(ctx, metadata, album, playlistTitle, quality)
	finalPath := resolved.FullPath(w.cfg.OutputPath)

	// An already downloaded track succeeds without touching the network or
	// the filesystem again, unless replacement is requested.
	if !w.cfg.ReplaceTracks {
		if _, err := os.Stat(finalPath); err == nil {
			logger.Infof(ctx, "Track '%s' already exists, skipping download", finalPath)
			w.stats.TrackSkippedExists()
			w.setState(StateSucceeded)
			w.reporter.trackSucceeded(w.task, finalPath)

			return
		}
	}

	w.setState(StateAcquiringURL)

	downloadURL, failure := w.acquireURL(ctx, quality)
	if failure != "" {
		w.fail(ctx, failure)

		return
	}

	if w.stopped.Load() {
		return
	}

	w.setState(StateDownloading)

	encryptedPath, failure := w.downloadToTemp(ctx, downloadURL)
	if failure != "" {
		w.fail(ctx, failure)

		return
	}

	defer w.removeTemp(ctx, encryptedPath)

	if w.stopped.Load() {
		return
	}

	w.setState(StateDecrypting)

	decryptedPath, failure := w.decryptToTemp(ctx, encryptedPath, metadata.SongID)
	if failure != "" {
		w.fail(ctx, failure)

		return
	}

	defer w.removeTemp(ctx, decryptedPath)

	if w.stopped.Load() {
		return
	}

	w.setState(StateTaggingAndArtwork)

	lyrics := w.fetchLyrics(ctx)
	w.applyTags(ctx, decryptedPath, metadata, album, quality, lyrics)

	if w.stopped.Load() {
		return
	}

	w.setState(StateFinalizing)

	if failure = w.finalize(ctx, decryptedPath, finalPath, resolved, metadata, lyrics); failure != "" {
		w.fail(ctx, failure)

		return
	}

	w.setState(StateSucceeded)
	w.reporter.trackSucceeded(w.task, finalPath)
}

// fail marks the worker failed and reports the failure message.
func (w *trackWorker) fail(ctx context.Context, message string) {
	w.setState(StateFailed)
	logger.Errorf(ctx, "Download of track %s failed: %s", w.task.TrackID, message)
	w.reporter.trackFailed(w.task, message)
}

// resolveMetadata fetches track details, degrading to caller-supplied or
// placeholder metadata when the lookup fails. It never blocks the pipeline.
func (w *trackWorker) resolveMetadata(ctx context.Context) (*TrackMetadata, *deezer.Track) {
	rawTrack, err := w.client.GetTrackDetails(ctx, w.task.TrackID)
	if err != nil {
		logger.Warnf(ctx, "Failed to resolve metadata for track %s: %v", w.task.TrackID, err)

		if w.task.Metadata != nil && w.task.Metadata.HasUsableIdentity() {
			return w.task.Metadata, nil
		}

		return PlaceholderMetadata(w.task.TrackID), nil
	}

	metadata := TrackMetadataFromClient(rawTrack)
	metadata.PlaylistPosition = w.task.PlaylistPosition

	return metadata, rawTrack
}

// resolveGroupContext loads the owning album's details and the playlist title
// when the task belongs to a group. Failures are absorbed.
func (w *trackWorker) resolveGroupContext(
	ctx context.Context,
	metadata *TrackMetadata,
) (*AlbumDetails, string) {
	var playlistTitle string
	if w.task.Kind == KindPlaylistTrack {
		playlistTitle = w.task.GroupTitle
	}

	albumID := w.task.AlbumID
	if albumID == "" {
		albumID = metadata.AlbumID
	}

	if albumID == "" || albumID == "0" {
		return nil, playlistTitle
	}

	rawAlbum, err := w.client.GetAlbumDetails(ctx, albumID)
	if err != nil {
		logger.Warnf(ctx, "Failed to resolve album %s for track %s: %v", albumID, w.task.TrackID, err)

		return nil, playlistTitle
	}

	album := AlbumDetailsFromClient(rawAlbum)

	if metadata.TotalTracks == 0 {
		metadata.TotalTracks = album.TotalTracks
	}

	if metadata.TotalDiscs == 0 {
		metadata.TotalDiscs = album.TotalDiscs
	}

	if metadata.Genre == "" {
		metadata.Genre = album.Genre
	}

	return album, playlistTitle
}

// effectiveQuality downgrades the configured quality when the track is not
// served in it.
func (w *trackWorker) effectiveQuality(rawTrack *deezer.Track) Quality {
	if rawTrack == nil {
		return w.quality
	}

	available := func(size string) bool {
		return size != "" && size != "0"
	}

	switch w.quality {
	case QualityFLAC:
		if available(rawTrack.FilesizeFLAC) {
			return QualityFLAC
		}

		if available(rawTrack.FilesizeMP3320) {
			return QualityMP3320
		}

		return QualityMP3128
	case QualityMP3320:
		if available(rawTrack.FilesizeMP3320) {
			return QualityMP3320
		}

		return QualityMP3128
	default:
		return w.quality
	}
}

// resolvePath runs the path resolver with the compilation flag computed from
// the album's track listing.
func (w *trackWorker) resolvePath(
	ctx context.Context,
	metadata *TrackMetadata,
	album *AlbumDetails,
	playlistTitle string,
	quality Quality,
) *ResolvedPath {
	isCompilation := false

	if album != nil && w.task.Kind == KindAlbumTrack {
		trackArtists := make([]string, 0, len(album.Tracks))
		for _, albumTrack := range album.Tracks {
			trackArtists = append(trackArtists, albumTrack.Artist)
		}

		isCompilation = IsCompilation(album.ArtistName, trackArtists)
	}

	if metadata.AlbumArtist == "" {
		metadata.AlbumArtist = ResolveAlbumArtist(metadata, album)
	}

	return w.pathResolver.Resolve(ctx, &ResolvePathRequest{
		Track:         metadata,
		Album:         album,
		PlaylistTitle: playlistTitle,
		Kind:          w.task.Kind,
		IsCompilation: isCompilation,
		Quality:       quality,
	})
}

// acquireURL negotiates the media URL for the track. It returns either the
// URL or a terminal failure message.
func (w *trackWorker) acquireURL(ctx context.Context, quality Quality) (string, string) {
	result, err := w.client.GetDownloadURL(ctx, w.task.TrackID, string(quality))
	if err != nil {
		return "", fmt.Sprintf("failed to acquire download URL: %v", err)
	}

	// Rights restrictions are terminal, not retryable.
	if deezer.IsRightsError(result) {
		return "", fmt.Sprintf("track is not downloadable: %s", deezer.RightsErrorCategory(result))
	}

	return result, ""
}

// downloadToTemp streams the encrypted payload into a temporary file in the
// output root. It returns the temp path or a failure message. A stop request
// aborts mid-stream, leaving cleanup to the caller's deferred remove.
func (w *trackWorker) downloadToTemp(ctx context.Context, downloadURL string) (string, string) {
	fetchResult, err := w.client.FetchTrack(ctx, downloadURL)
	if err != nil {
		return "", fmt.Sprintf("failed to fetch track: %v", err)
	}

	defer fetchResult.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if err = os.MkdirAll(w.cfg.OutputPath, constants.DefaultFolderPermissions); err != nil {
		return "", fmt.Sprintf("failed to create output directory: %v", err)
	}

	tempPath := filepath.Join(w.cfg.OutputPath, uuid.NewString()+constants.ExtensionPart)

	f, err := os.OpenFile(filepath.Clean(tempPath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.DefaultFilePermissions)
	if err != nil {
		return "", fmt.Sprintf("failed to create temporary file: %v", err)
	}

	var succeeded bool

	defer func() {
		closeErr := f.Close()

		if !succeeded {
			if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
				logger.Warnf(ctx, "Failed to clean up temporary file '%s': %v (close error: %v)",
					tempPath, removeErr, closeErr)
			}
		}
	}()

	// Progress bars are disabled when downloading concurrently to avoid
	// terminal output conflicts.
	var writer io.Writer = f

	if logger.Level() <= zap.InfoLevel && w.cfg.MaxConcurrentDownloads == 1 && fetchResult.TotalBytes > 0 {
		bar := progressbar.DefaultBytes(fetchResult.TotalBytes, "Downloading")
		writer = io.MultiWriter(f, bar)
	}

	bytesWritten, copyErr := w.copyChunked(ctx, writer, fetchResult.Body, fetchResult.TotalBytes)

	if w.stopped.Load() {
		return "", ""
	}

	if copyErr != nil {
		return "", fmt.Sprintf("failed to write file: %v", copyErr)
	}

	if fetchResult.TotalBytes > 0 && bytesWritten != fetchResult.TotalBytes {
		return "", fmt.Sprintf("incomplete download: wrote %d bytes, expected %d bytes",
			bytesWritten, fetchResult.TotalBytes)
	}

	succeeded = true
	w.stats.AddBytesDownloaded(bytesWritten)

	return tempPath, ""
}

// copyChunked copies src to dst in fixed chunks, honoring the stop flag, the
// configured speed limit and progress reporting. With a speed limit the chunk
// shrinks to the limit and each full chunk is followed by a one-second pause,
// pacing the transfer at limit bytes per second.
func (w *trackWorker) copyChunked(ctx context.Context, dst io.Writer, src io.Reader, totalBytes int64) (int64, error) {
	limit := w.cfg.ParsedDownloadSpeedLimit

	chunkSize := int64(downloadChunkSize)
	if limit > 0 {
		chunkSize = limit
	}

	var bytesWritten int64

	for {
		if w.stopped.Load() {
			return bytesWritten, nil
		}

		if err := ctx.Err(); err != nil {
			return bytesWritten, err
		}

		n, err := io.CopyN(dst, src, chunkSize)
		bytesWritten += n

		if totalBytes > 0 && n > 0 {
			w.reporter.trackProgress(w.task, float64(bytesWritten)/float64(totalBytes)*percentTotal)
		}

		if errors.Is(err, io.EOF) {
			return bytesWritten, nil
		}

		if err != nil {
			return bytesWritten, err
		}

		if limit > 0 {
			time.Sleep(time.Second)
		}
	}
}

// decryptToTemp decrypts the striped payload into a second temporary file
// keyed by the track's song ID.
func (w *trackWorker) decryptToTemp(ctx context.Context, encryptedPath, songID string) (string, string) {
	if songID == "" {
		songID = w.task.TrackID
	}

	key, err := decrypt.DeriveTrackKey(songID)
	if err != nil {
		return "", fmt.Sprintf("failed to derive track key: %v", err)
	}

	src, err := os.Open(filepath.Clean(encryptedPath))
	if err != nil {
		return "", fmt.Sprintf("failed to open downloaded file: %v", err)
	}

	defer src.Close()

	decryptedPath := filepath.Join(w.cfg.OutputPath, uuid.NewString()+constants.ExtensionPart)

	dst, err := os.OpenFile(
		filepath.Clean(decryptedPath),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		constants.DefaultFilePermissions,
	)
	if err != nil {
		return "", fmt.Sprintf("failed to create decrypted file: %v", err)
	}

	if _, err = decrypt.DecryptStream(ctx, dst, src, key); err != nil {
		dst.Close()
		os.Remove(decryptedPath)

		return "", fmt.Sprintf("failed to decrypt track: %v", err)
	}

	if err = dst.Close(); err != nil {
		os.Remove(decryptedPath)

		return "", fmt.Sprintf("failed to close decrypted file: %v", err)
	}

	return decryptedPath, ""
}

// fetchLyrics loads lyrics when enabled. Failures are absorbed.
func (w *trackWorker) fetchLyrics(ctx context.Context) *ParsedLyrics {
	wantLyrics := w.cfg.DownloadLyrics || w.cfg.EmbedSyncedLyrics || w.cfg.EmbedPlainLyrics
	if !wantLyrics {
		return nil
	}

	raw, err := w.client.GetLyrics(ctx, w.task.TrackID)
	if err != nil {
		logger.Warnf(ctx, "Failed to get lyrics for track %s: %v", w.task.TrackID, err)

		return nil
	}

	return ParseLyrics(raw)
}

// applyTags writes metadata, lyrics and embedded artwork into the decrypted
// file. Failures are absorbed; an untagged file is still worth keeping.
func (w *trackWorker) applyTags(
	ctx context.Context,
	trackPath string,
	metadata *TrackMetadata,
	album *AlbumDetails,
	quality Quality,
	lyrics *ParsedLyrics,
) {
	var coverPath string

	if w.cfg.EmbedArtwork {
		fetched, err := w.artwork.FetchCover(ctx, w.coverHash(metadata, album))
		if err != nil {
			logger.Warnf(ctx, "Failed to fetch cover for track %s: %v", w.task.TrackID, err)
		} else {
			coverPath = fetched
		}
	}

	if coverPath != "" {
		defer w.removeTemp(ctx, coverPath)
	}

	err := w.tagProcessor.WriteTags(ctx, &WriteTagsRequest{
		TrackPath:          trackPath,
		CoverPath:          coverPath,
		Quality:            quality,
		Metadata:           metadata,
		AlbumArtist:        metadata.AlbumArtist,
		Lyrics:             lyrics,
		EmbedSyncedLyrics:  w.cfg.EmbedSyncedLyrics,
		EmbedPlainLyrics:   w.cfg.EmbedPlainLyrics,
		SyncedLyricsOffset: w.cfg.SyncedLyricsOffset,
	})
	if err != nil {
		logger.Warnf(ctx, "Failed to write tags for track %s: %v", w.task.TrackID, err)
	}
}

// finalize creates the destination directories, moves the decrypted file into
// place and saves side artifacts. It returns a failure message on error.
func (w *trackWorker) finalize(
	ctx context.Context,
	decryptedPath, finalPath string,
	resolved *ResolvedPath,
	metadata *TrackMetadata,
	lyrics *ParsedLyrics,
) string {
	if w.stopped.Load() {
		return ""
	}

	directory := resolved.Directory(w.cfg.OutputPath)

	if err := os.MkdirAll(directory, constants.DefaultFolderPermissions); err != nil {
		return fmt.Sprintf("failed to create destination directory: %v", err)
	}

	if err := moveFile(decryptedPath, finalPath); err != nil {
		return fmt.Sprintf("failed to move track into place: %v", err)
	}

	if w.cfg.DownloadLyrics && lyrics != nil && lyrics.HasSync {
		w.saveLyricsFile(ctx, finalPath, metadata, lyrics)
	}

	w.artwork.SaveAlbumCover(ctx, directory, w.coverHash(metadata, nil))

	// The artist image belongs next to the artist folder, not inside every
	// album directory.
	w.artwork.SaveArtistImage(ctx, resolved.ArtistDirectory(w.cfg.OutputPath), metadata.ArtistPictureHash)

	return ""
}

// saveLyricsFile writes the LRC file next to the finalized audio file.
// Failures are absorbed.
func (w *trackWorker) saveLyricsFile(
	ctx context.Context,
	finalPath string,
	metadata *TrackMetadata,
	lyrics *ParsedLyrics,
) {
	lyricsPath := LyricsFilePath(w.cfg, finalPath)

	if !w.cfg.ReplaceLyrics {
		if _, err := os.Stat(lyricsPath); err == nil {
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(lyricsPath), constants.DefaultFolderPermissions); err != nil {
		logger.Warnf(ctx, "Failed to create lyrics directory: %v", err)

		return
	}

	content := RenderLRC(lyrics, metadata.Title, metadata.Artist, metadata.Album, w.cfg.SyncedLyricsOffset)

	if err := os.WriteFile(lyricsPath, []byte(content), constants.DefaultFilePermissions); err != nil {
		logger.Warnf(ctx, "Failed to save lyrics file '%s': %v", lyricsPath, err)
	}
}

// coverHash picks the album cover hash, preferring the track's own.
func (w *trackWorker) coverHash(metadata *TrackMetadata, album *AlbumDetails) string {
	if metadata.CoverHash != "" {
		return metadata.CoverHash
	}

	if album != nil {
		return album.CoverHash
	}

	return ""
}

// removeTemp deletes a temporary file, absorbing not-exist errors.
func (w *trackWorker) removeTemp(ctx context.Context, path string) {
	if path == "" {
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warnf(ctx, "Failed to clean up temporary file '%s': %v", path, err)
	}
}

// moveFile renames src to dst, falling back to copy-and-remove when the
// rename fails, e.g. across filesystem boundaries.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer in.Close()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.DefaultFilePermissions)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)

		return err
	}

	if err = out.Close(); err != nil {
		return err
	}

	return os.Remove(src)
}
