package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"

	"github.com/deegrab/deegrab/internal/constants"
	"github.com/deegrab/deegrab/internal/logger"
)

const (
	// snapshotDebounceInterval batches bursts of queue changes into a single
	// write. At most one follow-up write is scheduled while a write is
	// pending, so the file converges without a write per mutation.
	snapshotDebounceInterval = 2 * time.Second

	// selfWriteEchoWindow is how long after an own write the watcher keeps
	// discarding events. The notification for a write can arrive after the
	// write call has already returned, so a flag flipped around the write
	// would miss it.
	selfWriteEchoWindow = 500 * time.Millisecond

	snapshotAppDirectory = "deegrab"
	snapshotFilename     = "queue.json"
)

// QueueSnapshot is the persisted shape of the download queue. Completed and
// failed lists are transient diagnostics; only unfinished groups are
// re-enqueued on startup.
type QueueSnapshot struct {
	// UnfinishedDownloads holds the groups that still have queued tracks.
	UnfinishedDownloads []*SnapshotGroup `json:"unfinished_downloads"`
	// CompletedDownloads lists tracks finished during the current run.
	CompletedDownloads []*SnapshotTrack `json:"completed_downloads,omitempty"`
	// FailedDownloads lists tracks failed during the current run.
	FailedDownloads []*SnapshotTrack `json:"failed_downloads,omitempty"`
	// CompletedTrackIDs is the durable set of finished track IDs.
	CompletedTrackIDs []string `json:"completed_track_ids"`
	// CompletedAlbums is the durable set of fully finished album IDs.
	CompletedAlbums []string `json:"completed_albums"`
}

// SnapshotGroup is a persisted album or playlist with its remaining tracks.
type SnapshotGroup struct {
	// AlbumID identifies an album group, empty for playlists.
	AlbumID string `json:"album_id,omitempty"`
	// PlaylistID identifies a playlist group, empty for albums.
	PlaylistID string `json:"playlist_id,omitempty"`
	// Title is the group's display title.
	Title string `json:"title"`
	// Artist is the group's display artist, empty for playlists.
	Artist string `json:"artist,omitempty"`
	// QueuedTracks holds the group's not-yet-finished tracks.
	QueuedTracks []*SnapshotTrack `json:"queued_tracks"`
}

// SnapshotTrack is a persisted queue entry.
type SnapshotTrack struct {
	// TrackID is the track's identifier.
	TrackID string `json:"track_id"`
	// Title is the track's display title, may be empty.
	Title string `json:"title,omitempty"`
}

// ID returns the group's identifier regardless of kind.
func (g *SnapshotGroup) ID() string {
	if g.AlbumID != "" {
		return g.AlbumID
	}

	return g.PlaylistID
}

// QueueStore persists queue snapshots to a single JSON file and watches it
// for external edits. All writes go through the store, which discards the
// watch notifications its own writes produce.
type QueueStore interface {
	// Load reads the snapshot from disk. A missing file yields an empty
	// snapshot without error.
	Load(ctx context.Context) (*QueueSnapshot, error)
	// RequestWrite schedules a debounced snapshot write.
	RequestWrite()
	// WriteNow writes the snapshot immediately, bypassing the debounce.
	WriteNow(ctx context.Context) error
	// Reset deletes the snapshot file and writes a fresh empty one.
	Reset(ctx context.Context) error
	// Watch invokes onChange for external modifications of the snapshot file
	// until the context is canceled.
	Watch(ctx context.Context, onChange func()) error
	// Close flushes any scheduled write and releases the watcher.
	Close(ctx context.Context) error
}

// QueueStoreImpl implements the QueueStore interface.
type QueueStoreImpl struct {
	// path is the snapshot file location.
	path string
	// snapshotFn produces the current snapshot at write time.
	snapshotFn func() *QueueSnapshot

	// timerMutex guards the debounce state below.
	timerMutex sync.Mutex
	// timer is the armed debounce timer, nil when idle.
	timer *time.Timer
	// followUp records that changes arrived while a write was pending.
	followUp bool

	// lastSelfWrite is the UnixNano time of the latest own write, used to
	// discard the watcher's echo of that write.
	lastSelfWrite atomic.Int64

	watcher *fsnotify.Watcher
}

// DefaultSnapshotPath returns the per-user location of the queue snapshot.
func DefaultSnapshotPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}

	return filepath.Join(configDir, snapshotAppDirectory, snapshotFilename), nil
}

// NewQueueStore creates a store persisting to the given path. snapshotFn is
// called at write time to capture the current queue state.
func NewQueueStore(path string, snapshotFn func() *QueueSnapshot) QueueStore {
	return &QueueStoreImpl{
		path:       path,
		snapshotFn: snapshotFn,
	}
}

// Load reads the snapshot from disk.
func (s *QueueStoreImpl) Load(_ context.Context) (*QueueSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}

		return nil, fmt.Errorf("failed to read queue snapshot: %w", err)
	}

	var snapshot QueueSnapshot
	if err = json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse queue snapshot: %w", err)
	}

	normalizeSnapshot(&snapshot)

	return &snapshot, nil
}

// RequestWrite schedules a debounced snapshot write. Requests arriving while
// a write is already scheduled coalesce into a single deferred follow-up.
func (s *QueueStoreImpl) RequestWrite() {
	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()

	if s.timer != nil {
		s.followUp = true

		return
	}

	s.timer = time.AfterFunc(snapshotDebounceInterval, s.flushScheduled)
}

func (s *QueueStoreImpl) flushScheduled() {
	ctx := context.Background()

	if err := s.write(ctx); err != nil {
		logger.Errorf(ctx, "Failed to write queue snapshot: %v", err)
	}

	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()

	if s.followUp {
		s.followUp = false
		s.timer = time.AfterFunc(snapshotDebounceInterval, s.flushScheduled)

		return
	}

	s.timer = nil
}

// WriteNow writes the snapshot immediately and cancels any scheduled write.
func (s *QueueStoreImpl) WriteNow(ctx context.Context) error {
	s.cancelScheduled()

	return s.write(ctx)
}

// Reset deletes the snapshot file and writes a fresh empty one.
func (s *QueueStoreImpl) Reset(ctx context.Context) error {
	s.cancelScheduled()

	s.markSelfWrite()
	defer s.markSelfWrite()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete queue snapshot: %w", err)
	}

	return s.writeSnapshot(ctx, emptySnapshot())
}

func (s *QueueStoreImpl) cancelScheduled() {
	s.timerMutex.Lock()
	defer s.timerMutex.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.followUp = false
}

func (s *QueueStoreImpl) write(ctx context.Context) error {
	s.markSelfWrite()
	defer s.markSelfWrite()

	return s.writeSnapshot(ctx, s.snapshotFn())
}

func (s *QueueStoreImpl) markSelfWrite() {
	s.lastSelfWrite.Store(time.Now().UnixNano())
}

// withinSelfWriteEcho reports whether an event arrived close enough to an own
// write to be its echo.
func (s *QueueStoreImpl) withinSelfWriteEcho() bool {
	last := s.lastSelfWrite.Load()

	return last != 0 && time.Since(time.Unix(0, last)) < selfWriteEchoWindow
}

// writeSnapshot writes atomically: a temp file in the same directory is
// renamed over the destination.
func (s *QueueStoreImpl) writeSnapshot(_ context.Context, snapshot *QueueSnapshot) error {
	normalizeSnapshot(snapshot)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal queue snapshot: %w", err)
	}

	directory := filepath.Dir(s.path)
	if err = os.MkdirAll(directory, constants.DefaultFolderPermissions); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempPath := s.path + constants.ExtensionPart
	if err = os.WriteFile(tempPath, data, constants.DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write queue snapshot: %w", err)
	}

	if err = os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)

		return fmt.Errorf("failed to replace queue snapshot: %w", err)
	}

	return nil
}

// Watch invokes onChange for external modifications of the snapshot file.
func (s *QueueStoreImpl) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create snapshot watcher: %w", err)
	}

	directory := filepath.Dir(s.path)
	if err = os.MkdirAll(directory, constants.DefaultFolderPermissions); err != nil {
		watcher.Close()

		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	if err = watcher.Add(directory); err != nil {
		watcher.Close()

		return fmt.Errorf("failed to watch snapshot directory: %w", err)
	}

	s.watcher = watcher

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}

				if event.Name != s.path || s.withinSelfWriteEcho() {
					continue
				}

				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logger.Warnf(ctx, "Snapshot watcher error: %v", watchErr)
			}
		}
	}()

	return nil
}

// Close flushes any scheduled write and releases the watcher.
func (s *QueueStoreImpl) Close(ctx context.Context) error {
	err := s.WriteNow(ctx)

	if s.watcher != nil {
		if closeErr := s.watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		s.watcher = nil
	}

	return err
}

func emptySnapshot() *QueueSnapshot {
	return &QueueSnapshot{
		UnfinishedDownloads: []*SnapshotGroup{},
		CompletedTrackIDs:   []string{},
		CompletedAlbums:     []string{},
	}
}

// normalizeSnapshot makes slices non-nil so the persisted JSON always carries
// the expected keys.
func normalizeSnapshot(snapshot *QueueSnapshot) {
	if snapshot.UnfinishedDownloads == nil {
		snapshot.UnfinishedDownloads = []*SnapshotGroup{}
	}

	if snapshot.CompletedTrackIDs == nil {
		snapshot.CompletedTrackIDs = []string{}
	}

	if snapshot.CompletedAlbums == nil {
		snapshot.CompletedAlbums = []string{}
	}
}
