package downloader

//go:generate $MOCKGEN -source=manager.go -destination=mocks/manager_mock.go

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deegrab/deegrab/internal/client/deezer"
	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/logger"
)

// clearCooldown is the window after ClearAll during which new enqueues are
// rejected, so stragglers from the cleared batch cannot sneak back in.
const clearCooldown = time.Second

// Manager coordinates download workers, the persisted queue and observers.
type Manager interface {
	// EnqueueTrack queues a single track for download.
	EnqueueTrack(ctx context.Context, task *DownloadTask) error
	// DownloadAlbum queues every track of an album.
	DownloadAlbum(ctx context.Context, albumID string) error
	// DownloadPlaylist queues every track of a playlist.
	DownloadPlaylist(ctx context.Context, playlistID string) error
	// DownloadItems dispatches parsed download items to the matching queue operation.
	DownloadItems(ctx context.Context, items []*DownloadItem) error
	// RetryFailed re-enqueues every failed track and returns how many were queued.
	RetryFailed(ctx context.Context) (int, error)
	// ClearAll stops all workers, empties the queue and resets the snapshot.
	ClearAll(ctx context.Context) error
	// ClearCompleted drops finished tracks from the bookkeeping and snapshot.
	ClearCompleted(ctx context.Context) error
	// FailureMessage returns the recorded failure message of a track.
	FailureMessage(trackID string) (string, bool)
	// RegisterObserver subscribes an observer to download lifecycle events.
	RegisterObserver(observer Observer)
	// RestoreQueue re-enqueues unfinished downloads from the persisted snapshot.
	RestoreQueue(ctx context.Context) error
	// WatchQueue reloads the snapshot whenever something else edits the file.
	WatchQueue(ctx context.Context) error
	// Statistics returns the manager's run counters.
	Statistics() *Statistics
	// Wait blocks until all queued downloads have finished.
	Wait()
	// Close drains workers, flushes the snapshot and releases resources.
	Close(ctx context.Context) error
}

// groupState is the manager's in-memory record of an enqueued album or playlist.
type groupState struct {
	albumID    string
	playlistID string
	title      string
	artist     string
	// trackIDs preserves enqueue order.
	trackIDs    []string
	trackTitles map[string]string
}

// ManagerImpl implements the Manager interface.
type ManagerImpl struct {
	cfg          *config.Config
	client       deezer.Client
	pathResolver PathResolver
	tagProcessor TagProcessor
	artwork      ArtworkManager
	store        QueueStore
	hub          observerHub
	stats        *Statistics

	// sem bounds the number of concurrently running workers.
	sem chan struct{}
	wg  sync.WaitGroup

	// mu guards all queue bookkeeping below.
	mu sync.Mutex
	// active maps track IDs to their running or queued workers.
	active map[string]*trackWorker
	// activeGroupCounts tracks remaining active workers per group.
	activeGroupCounts map[string]int
	// completedTrackIDs is the durable set of finished tracks.
	completedTrackIDs map[string]struct{}
	// completedAlbums is the durable set of fully finished albums.
	completedAlbums map[string]struct{}
	// sessionCompleted lists tracks finished during this run, in order.
	sessionCompleted []*SnapshotTrack
	// sessionFailed lists tracks failed during this run, in order.
	sessionFailed []*SnapshotTrack
	// failureMessages holds the last failure message per track.
	failureMessages map[string]string
	// failedTasks keeps failed tasks for RetryFailed.
	failedTasks map[string]*DownloadTask
	// groups records enqueued albums and playlists for the snapshot.
	groups map[string]*groupState
	// clearing suppresses terminal bookkeeping while ClearAll runs.
	clearing bool
	// lastClear stamps the cooldown window start.
	lastClear time.Time
	closed    bool
}

// NewManager creates a download manager. The queue store is created lazily
// against the default per-user snapshot location.
func NewManager(
	cfg *config.Config,
	client deezer.Client,
	pathResolver PathResolver,
	tagProcessor TagProcessor,
	artwork ArtworkManager,
	snapshotPath string,
) *ManagerImpl {
	m := &ManagerImpl{
		cfg:               cfg,
		client:            client,
		pathResolver:      pathResolver,
		tagProcessor:      tagProcessor,
		artwork:           artwork,
		stats:             NewStatistics(),
		sem:               make(chan struct{}, cfg.MaxConcurrentDownloads),
		active:            make(map[string]*trackWorker),
		activeGroupCounts: make(map[string]int),
		completedTrackIDs: make(map[string]struct{}),
		completedAlbums:   make(map[string]struct{}),
		failureMessages:   make(map[string]string),
		failedTasks:       make(map[string]*DownloadTask),
		groups:            make(map[string]*groupState),
	}

	m.store = NewQueueStore(snapshotPath, m.buildSnapshot)

	return m
}

// RegisterObserver subscribes an observer to download lifecycle events.
func (m *ManagerImpl) RegisterObserver(observer Observer) {
	m.hub.register(observer)
}

// Statistics returns the manager's run counters.
func (m *ManagerImpl) Statistics() *Statistics {
	return m.stats
}

// EnqueueTrack queues a single track for download.
func (m *ManagerImpl) EnqueueTrack(ctx context.Context, task *DownloadTask) error {
	if task == nil || task.TrackID == "" {
		return ErrEmptyTrackID
	}

	m.mu.Lock()

	if err := m.admitLocked(task.TrackID); err != nil {
		m.mu.Unlock()

		return err
	}

	worker := newTrackWorker(m.cfg, m.client, m.pathResolver, m.tagProcessor, m.artwork, m, m.stats, task)
	m.active[task.TrackID] = worker

	if groupID := taskGroupID(task); groupID != "" {
		m.activeGroupCounts[groupID]++
	}

	m.mu.Unlock()

	m.stats.TrackEnqueued()
	m.store.RequestWrite()

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		m.sem <- struct{}{}
		defer func() { <-m.sem }()

		if worker.stopped.Load() {
			return
		}

		worker.Run(ctx)
	}()

	return nil
}

// admitLocked enforces the enqueue preconditions. Callers hold m.mu.
func (m *ManagerImpl) admitLocked(trackID string) error {
	if m.closed {
		return ErrManagerClosed
	}

	if m.clearing || (!m.lastClear.IsZero() && time.Since(m.lastClear) < clearCooldown) {
		return ErrClearCooldown
	}

	if _, exists := m.active[trackID]; exists {
		return ErrDuplicateDownload
	}

	return nil
}

// DownloadAlbum queues every track of an album. The group announcement is
// emitted before any track enters the queue.
func (m *ManagerImpl) DownloadAlbum(ctx context.Context, albumID string) error {
	rawAlbum, err := m.client.GetAlbumDetails(ctx, albumID)
	if err != nil {
		return fmt.Errorf("failed to fetch album %s: %w", albumID, err)
	}

	album := AlbumDetailsFromClient(rawAlbum)

	m.registerGroup(&groupState{
		albumID:     album.ID,
		title:       album.Title,
		artist:      album.ArtistName,
		trackIDs:    trackIDsOf(album.Tracks),
		trackTitles: trackTitlesOf(album.Tracks),
	})

	m.hub.notifyGroupEnqueued(&GroupEnqueuedEvent{
		GroupID:     album.ID,
		Title:       album.Title,
		Kind:        KindAlbumTrack,
		TotalTracks: int64(len(album.Tracks)),
		CoverURL:    groupCoverURL(m.cfg, album.CoverHash),
		ArtistName:  album.ArtistName,
	})

	for _, track := range album.Tracks {
		task := &DownloadTask{
			TrackID:    track.ID,
			Kind:       KindAlbumTrack,
			AlbumID:    album.ID,
			GroupTitle: album.Title,
			GroupTotal: int64(len(album.Tracks)),
			Metadata:   track,
		}

		if enqueueErr := m.EnqueueTrack(ctx, task); enqueueErr != nil {
			logger.Warnf(ctx, "Skipping track %s of album %s: %v", track.ID, album.ID, enqueueErr)
		}
	}

	return nil
}

// DownloadPlaylist queues every track of a playlist with its playlist position.
func (m *ManagerImpl) DownloadPlaylist(ctx context.Context, playlistID string) error {
	playlist, err := m.client.GetPlaylistTracks(ctx, playlistID)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist %s: %w", playlistID, err)
	}

	tracks := make([]*TrackMetadata, 0, len(playlist.Tracks))
	for position, rawTrack := range playlist.Tracks {
		track := TrackMetadataFromClient(rawTrack)
		track.PlaylistPosition = int64(position) + 1
		tracks = append(tracks, track)
	}

	m.registerGroup(&groupState{
		playlistID:  playlist.ID,
		title:       playlist.Title,
		trackIDs:    trackIDsOf(tracks),
		trackTitles: trackTitlesOf(tracks),
	})

	m.hub.notifyGroupEnqueued(&GroupEnqueuedEvent{
		GroupID:     playlist.ID,
		Title:       playlist.Title,
		Kind:        KindPlaylistTrack,
		TotalTracks: int64(len(tracks)),
		CoverURL:    groupCoverURL(m.cfg, playlist.Picture),
	})

	for _, track := range tracks {
		task := &DownloadTask{
			TrackID:          track.ID,
			Kind:             KindPlaylistTrack,
			PlaylistID:       playlist.ID,
			GroupTitle:       playlist.Title,
			GroupTotal:       int64(len(tracks)),
			PlaylistPosition: track.PlaylistPosition,
			Metadata:         track,
		}

		if enqueueErr := m.EnqueueTrack(ctx, task); enqueueErr != nil {
			logger.Warnf(ctx, "Skipping track %s of playlist %s: %v", track.ID, playlist.ID, enqueueErr)
		}
	}

	return nil
}

// DownloadItems dispatches parsed download items to the matching queue
// operation. Collections are resolved concurrently; a failed item is logged
// and does not stop the rest of the batch.
func (m *ManagerImpl) DownloadItems(ctx context.Context, items []*DownloadItem) error {
	// The caller's context is kept as-is: workers enqueued here outlive
	// this call and must not be tied to the fan-out group.
	var group errgroup.Group

	group.SetLimit(int(m.cfg.MaxConcurrentDownloads))

	for _, item := range items {
		group.Go(func() error {
			var err error

			switch item.Category {
			case DownloadCategoryTrack:
				err = m.EnqueueTrack(ctx, &DownloadTask{TrackID: item.ItemID, Kind: KindTrack})
			case DownloadCategoryAlbum:
				err = m.DownloadAlbum(ctx, item.ItemID)
			case DownloadCategoryPlaylist:
				err = m.DownloadPlaylist(ctx, item.ItemID)
			case DownloadCategoryUnknown:
				logger.Warnf(ctx, "Skipping unrecognized download item: %s", item.URL)
			}

			if err != nil {
				logger.Errorf(ctx, "Failed to queue '%s': %v", item.URL, err)
			}

			return nil
		})
	}

	return group.Wait()
}

// RetryFailed re-enqueues every failed track recorded this run.
func (m *ManagerImpl) RetryFailed(ctx context.Context) (int, error) {
	m.mu.Lock()

	tasks := make([]*DownloadTask, 0, len(m.failedTasks))
	for _, task := range m.failedTasks {
		tasks = append(tasks, task)
	}

	m.failedTasks = make(map[string]*DownloadTask)
	m.failureMessages = make(map[string]string)
	m.sessionFailed = nil
	m.mu.Unlock()

	if len(tasks) == 0 {
		return 0, ErrNothingToRetry
	}

	queued := 0

	for _, task := range tasks {
		if err := m.EnqueueTrack(ctx, task); err != nil {
			logger.Warnf(ctx, "Failed to re-enqueue track %s: %v", task.TrackID, err)

			continue
		}

		queued++
	}

	return queued, nil
}

// ClearAll stops all workers, empties the queue and resets the snapshot.
// Terminal reports from stopped workers are suppressed; enqueues are rejected
// for a short cooldown afterwards.
func (m *ManagerImpl) ClearAll(ctx context.Context) error {
	m.mu.Lock()
	m.clearing = true

	for _, worker := range m.active {
		worker.Stop()
	}

	m.active = make(map[string]*trackWorker)
	m.activeGroupCounts = make(map[string]int)
	m.completedTrackIDs = make(map[string]struct{})
	m.completedAlbums = make(map[string]struct{})
	m.sessionCompleted = nil
	m.sessionFailed = nil
	m.failureMessages = make(map[string]string)
	m.failedTasks = make(map[string]*DownloadTask)
	m.groups = make(map[string]*groupState)

	m.lastClear = time.Now()
	m.clearing = false
	m.mu.Unlock()

	return m.store.Reset(ctx)
}

// ClearCompleted drops finished tracks from the bookkeeping and snapshot.
// Active and failed downloads are left untouched.
func (m *ManagerImpl) ClearCompleted(ctx context.Context) error {
	m.mu.Lock()

	for trackID := range m.completedTrackIDs {
		for _, group := range m.groups {
			delete(group.trackTitles, trackID)
		}
	}

	for groupID, group := range m.groups {
		if m.groupFinishedLocked(group) {
			delete(m.groups, groupID)
		}
	}

	m.completedTrackIDs = make(map[string]struct{})
	m.completedAlbums = make(map[string]struct{})
	m.sessionCompleted = nil
	m.mu.Unlock()

	m.store.RequestWrite()

	return nil
}

// FailureMessage returns the recorded failure message of a track.
func (m *ManagerImpl) FailureMessage(trackID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	message, ok := m.failureMessages[trackID]

	return message, ok
}

// RestoreQueue re-enqueues unfinished downloads from the persisted snapshot.
func (m *ManagerImpl) RestoreQueue(ctx context.Context) error {
	snapshot, err := m.store.Load(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()

	for _, trackID := range snapshot.CompletedTrackIDs {
		m.completedTrackIDs[trackID] = struct{}{}
	}

	for _, albumID := range snapshot.CompletedAlbums {
		m.completedAlbums[albumID] = struct{}{}
	}

	m.mu.Unlock()

	m.enqueueSnapshotGroups(ctx, snapshot)

	return nil
}

// enqueueSnapshotGroups queues the not-yet-completed tracks of every valid
// snapshot group.
func (m *ManagerImpl) enqueueSnapshotGroups(ctx context.Context, snapshot *QueueSnapshot) {
	for _, group := range snapshot.UnfinishedDownloads {
		if group.ID() == "" {
			continue
		}

		kind := KindAlbumTrack
		if group.PlaylistID != "" {
			kind = KindPlaylistTrack
		}

		state := &groupState{
			albumID:     group.AlbumID,
			playlistID:  group.PlaylistID,
			title:       group.Title,
			artist:      group.Artist,
			trackTitles: make(map[string]string, len(group.QueuedTracks)),
		}

		for _, track := range group.QueuedTracks {
			state.trackIDs = append(state.trackIDs, track.TrackID)
			state.trackTitles[track.TrackID] = track.Title
		}

		m.registerGroup(state)

		for position, track := range group.QueuedTracks {
			m.mu.Lock()
			_, done := m.completedTrackIDs[track.TrackID]
			m.mu.Unlock()

			if done {
				continue
			}

			task := &DownloadTask{
				TrackID:    track.TrackID,
				Kind:       kind,
				AlbumID:    group.AlbumID,
				PlaylistID: group.PlaylistID,
				GroupTitle: group.Title,
				GroupTotal: int64(len(group.QueuedTracks)),
			}
			if kind == KindPlaylistTrack {
				task.PlaylistPosition = int64(position) + 1
			}

			if err := m.EnqueueTrack(ctx, task); err != nil {
				logger.Warnf(ctx, "Failed to restore track %s: %v", track.TrackID, err)
			}
		}
	}
}

// WatchQueue re-reads the snapshot whenever something else edits the file.
func (m *ManagerImpl) WatchQueue(ctx context.Context) error {
	return m.store.Watch(ctx, func() {
		logger.Info(ctx, "Queue snapshot changed externally, reloading")

		if err := m.RestoreQueue(ctx); err != nil {
			logger.Errorf(ctx, "Failed to reload queue snapshot: %v", err)
		}
	})
}

// Wait blocks until all queued downloads have finished.
func (m *ManagerImpl) Wait() {
	m.wg.Wait()
}

// Close drains workers, flushes the snapshot and releases resources.
func (m *ManagerImpl) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.wg.Wait()

	return m.store.Close(ctx)
}

// trackStarted implements workerReporter. The worker passes the metadata it
// resolved; caller-supplied metadata is the fallback.
func (m *ManagerImpl) trackStarted(task *DownloadTask, metadata *TrackMetadata) {
	m.mu.Lock()
	_, isActive := m.active[task.TrackID]
	m.mu.Unlock()

	if !isActive {
		return
	}

	event := &StartedEvent{
		TrackID:    task.TrackID,
		Kind:       task.Kind,
		AlbumID:    task.AlbumID,
		PlaylistID: task.PlaylistID,
		GroupTotal: task.GroupTotal,
	}

	if metadata == nil {
		metadata = task.Metadata
	}

	if metadata != nil {
		event.Title = metadata.Title
		event.Artist = metadata.Artist
		event.Album = metadata.Album
	}

	m.hub.notifyStarted(event)
}

// trackProgress implements workerReporter.
func (m *ManagerImpl) trackProgress(task *DownloadTask, percent float64) {
	m.mu.Lock()
	_, isActive := m.active[task.TrackID]
	m.mu.Unlock()

	if !isActive {
		return
	}

	m.hub.notifyProgress(task.TrackID, percent)
}

// trackSucceeded implements workerReporter. Reports from evicted workers and
// reports arriving during a clear are dropped.
func (m *ManagerImpl) trackSucceeded(task *DownloadTask, finalPath string) {
	m.mu.Lock()

	worker, isActive := m.active[task.TrackID]
	if !isActive || worker.stopped.Load() || m.clearing {
		m.mu.Unlock()

		return
	}

	delete(m.active, task.TrackID)
	m.completedTrackIDs[task.TrackID] = struct{}{}
	m.sessionCompleted = append(m.sessionCompleted, &SnapshotTrack{
		TrackID: task.TrackID,
		Title:   taskTitle(task),
	})

	if groupID := taskGroupID(task); groupID != "" {
		m.activeGroupCounts[groupID]--
		if m.activeGroupCounts[groupID] <= 0 {
			delete(m.activeGroupCounts, groupID)

			if task.AlbumID != "" {
				m.completedAlbums[task.AlbumID] = struct{}{}
			}
		}
	}

	m.mu.Unlock()

	m.stats.TrackSucceeded()
	m.hub.notifyFinished(task.TrackID, finalPath)
	m.store.RequestWrite()
}

// trackFailed implements workerReporter. The failed track is removed from the
// active set and is not retried automatically; its message stays retrievable.
func (m *ManagerImpl) trackFailed(task *DownloadTask, message string) {
	m.mu.Lock()

	worker, isActive := m.active[task.TrackID]
	if !isActive || worker.stopped.Load() || m.clearing {
		m.mu.Unlock()

		return
	}

	delete(m.active, task.TrackID)

	if groupID := taskGroupID(task); groupID != "" {
		m.activeGroupCounts[groupID]--
		if m.activeGroupCounts[groupID] <= 0 {
			delete(m.activeGroupCounts, groupID)
		}
	}

	m.failureMessages[task.TrackID] = message
	m.failedTasks[task.TrackID] = task
	m.sessionFailed = append(m.sessionFailed, &SnapshotTrack{
		TrackID: task.TrackID,
		Title:   taskTitle(task),
	})

	m.mu.Unlock()

	m.stats.TrackFailed()
	m.hub.notifyFailed(task.TrackID, message)
	m.store.RequestWrite()
}

// registerGroup records a group for snapshot bookkeeping.
func (m *ManagerImpl) registerGroup(state *groupState) {
	id := state.albumID
	if id == "" {
		id = state.playlistID
	}

	if id == "" {
		return
	}

	m.mu.Lock()
	m.groups[id] = state
	m.mu.Unlock()
}

// groupFinishedLocked reports whether every track of a group is completed.
// Callers hold m.mu.
func (m *ManagerImpl) groupFinishedLocked(group *groupState) bool {
	for _, trackID := range group.trackIDs {
		if _, done := m.completedTrackIDs[trackID]; !done {
			return false
		}
	}

	return true
}

// buildSnapshot captures the current queue state for persistence. Groups
// without a valid identifier and groups whose tracks are all completed are
// filtered out.
func (m *ManagerImpl) buildSnapshot() *QueueSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := emptySnapshot()

	for _, group := range m.groups {
		if group.albumID == "" && group.playlistID == "" {
			continue
		}

		if m.groupFinishedLocked(group) {
			continue
		}

		persisted := &SnapshotGroup{
			AlbumID:      group.albumID,
			PlaylistID:   group.playlistID,
			Title:        group.title,
			Artist:       group.artist,
			QueuedTracks: []*SnapshotTrack{},
		}

		for _, trackID := range group.trackIDs {
			if _, done := m.completedTrackIDs[trackID]; done {
				continue
			}

			persisted.QueuedTracks = append(persisted.QueuedTracks, &SnapshotTrack{
				TrackID: trackID,
				Title:   group.trackTitles[trackID],
			})
		}

		snapshot.UnfinishedDownloads = append(snapshot.UnfinishedDownloads, persisted)
	}

	for trackID := range m.completedTrackIDs {
		snapshot.CompletedTrackIDs = append(snapshot.CompletedTrackIDs, trackID)
	}

	for albumID := range m.completedAlbums {
		snapshot.CompletedAlbums = append(snapshot.CompletedAlbums, albumID)
	}

	snapshot.CompletedDownloads = append(snapshot.CompletedDownloads, m.sessionCompleted...)
	snapshot.FailedDownloads = append(snapshot.FailedDownloads, m.sessionFailed...)

	return snapshot
}

// taskGroupID returns the owning group identifier of a task, empty for singles.
func taskGroupID(task *DownloadTask) string {
	if task.AlbumID != "" && task.Kind == KindAlbumTrack {
		return task.AlbumID
	}

	if task.PlaylistID != "" && task.Kind == KindPlaylistTrack {
		return task.PlaylistID
	}

	return ""
}

// taskTitle returns the best-known track title of a task.
func taskTitle(task *DownloadTask) string {
	if task.Metadata != nil {
		return task.Metadata.Title
	}

	return ""
}

// trackIDsOf extracts the track IDs of a listing, in order.
func trackIDsOf(tracks []*TrackMetadata) []string {
	ids := make([]string, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}

	return ids
}

// trackTitlesOf maps the track IDs of a listing to their titles.
func trackTitlesOf(tracks []*TrackMetadata) map[string]string {
	titles := make(map[string]string, len(tracks))
	for _, track := range tracks {
		titles[track.ID] = track.Title
	}

	return titles
}

// groupCoverURL builds the saved-size cover URL of a group, empty without a hash.
func groupCoverURL(cfg *config.Config, coverHash string) string {
	if coverHash == "" {
		return ""
	}

	return CoverURL(coverHash, cfg.SavedArtworkSize, cfg.ArtworkFormat)
}
