package downloader

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/deegrab/deegrab/internal/config"
)

// newTestConfig returns a config with default templates and an isolated
// output directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	//nolint:exhaustruct // Only the fields relevant to downloads matter here.
	return &config.Config{
		Quality:                          config.QualityMP3320,
		OutputPath:                       t.TempDir(),
		MaxConcurrentDownloads:           2,
		CreatePlaylistFolder:             true,
		CreateArtistFolder:               true,
		CreateAlbumFolder:                true,
		CreateCDFolder:                   true,
		PlaylistFolderTemplate:           config.DefaultPlaylistFolderTemplate,
		ArtistFolderTemplate:             config.DefaultArtistFolderTemplate,
		AlbumFolderTemplate:              config.DefaultAlbumFolderTemplate,
		CDFolderTemplate:                 config.DefaultCDFolderTemplate,
		TrackFilenameTemplate:            config.DefaultTrackFilenameTemplate,
		AlbumTrackFilenameTemplate:       config.DefaultAlbumTrackFilenameTemplate,
		CompilationTrackFilenameTemplate: config.DefaultCompilationTrackFilenameTemplate,
		PlaylistTrackFilenameTemplate:    config.DefaultPlaylistTrackFilenameTemplate,
		ArtworkFormat:                    "jpg",
		LyricsLocation:                   config.LyricsLocationWithAudio,
	}
}

// snapshotPathFor returns a queue snapshot location inside a test directory.
func snapshotPathFor(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "queue.json")
}

// recordedEvent is one observer callback captured by recordingObserver.
type recordedEvent struct {
	kind    string
	trackID string
	path    string
	message string
	started *StartedEvent
	group   *GroupEnqueuedEvent
}

// recordingObserver captures observer callbacks in arrival order.
type recordingObserver struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (o *recordingObserver) DownloadStarted(event *StartedEvent) {
	o.record(recordedEvent{kind: "started", trackID: event.TrackID, started: event})
}

func (o *recordingObserver) DownloadProgress(trackID string, _ float64) {
	o.record(recordedEvent{kind: "progress", trackID: trackID})
}

func (o *recordingObserver) DownloadFinished(trackID, finalPath string) {
	o.record(recordedEvent{kind: "finished", trackID: trackID, path: finalPath})
}

func (o *recordingObserver) DownloadFailed(trackID, message string) {
	o.record(recordedEvent{kind: "failed", trackID: trackID, message: message})
}

func (o *recordingObserver) GroupEnqueued(event *GroupEnqueuedEvent) {
	o.record(recordedEvent{kind: "group_enqueued", group: event})
}

func (o *recordingObserver) record(event recordedEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.events = append(o.events, event)
}

func (o *recordingObserver) snapshot() []recordedEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	events := make([]recordedEvent, len(o.events))
	copy(events, o.events)

	return events
}

// eventsOfKind filters captured events by kind.
func (o *recordingObserver) eventsOfKind(kind string) []recordedEvent {
	var matched []recordedEvent

	for _, event := range o.snapshot() {
		if event.kind == kind {
			matched = append(matched, event)
		}
	}

	return matched
}
