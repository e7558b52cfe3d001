package downloader

import "sync"

// StartedEvent describes a track whose download just began.
type StartedEvent struct {
	// TrackID is the track's identifier.
	TrackID string
	// Title is the best-known track title at start time.
	Title string
	// Artist is the best-known artist name at start time.
	Artist string
	// Album is the best-known album title at start time.
	Album string
	// Kind is the download context of the track.
	Kind DownloadKind
	// AlbumID is the owning album id, empty for non-album tasks.
	AlbumID string
	// PlaylistID is the owning playlist id, empty for non-playlist tasks.
	PlaylistID string
	// GroupTotal is the number of tracks expected in the owning group, 0 for singles.
	GroupTotal int64
}

// GroupEnqueuedEvent announces an album or playlist before its tracks are queued,
// letting observers render a placeholder immediately.
type GroupEnqueuedEvent struct {
	// GroupID is the album or playlist identifier.
	GroupID string
	// Title is the album or playlist title.
	Title string
	// Kind is KindAlbumTrack or KindPlaylistTrack.
	Kind DownloadKind
	// TotalTracks is the number of tracks about to be queued.
	TotalTracks int64
	// CoverURL is the group's cover image URL, possibly empty.
	CoverURL string
	// ArtistName is the group's artist name, empty for playlists.
	ArtistName string
}

// Observer receives download lifecycle events.
// Callbacks are invoked from worker goroutines and must be safe for
// concurrent use; each track produces at most one terminal callback.
type Observer interface {
	// DownloadStarted fires when a worker begins processing a track.
	DownloadStarted(event *StartedEvent)
	// DownloadProgress fires on best-effort progress updates, percent in [0, 100].
	DownloadProgress(trackID string, percent float64)
	// DownloadFinished fires exactly once when a track succeeds.
	DownloadFinished(trackID, finalPath string)
	// DownloadFailed fires exactly once when a track fails.
	DownloadFailed(trackID, message string)
	// GroupEnqueued fires before any track of an album or playlist is queued.
	GroupEnqueued(event *GroupEnqueuedEvent)
}

// observerHub fans events out to registered observers.
type observerHub struct {
	mu        sync.RWMutex
	observers []Observer
}

func (h *observerHub) register(observer Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers = append(h.observers, observer)
}

func (h *observerHub) snapshot() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	observers := make([]Observer, len(h.observers))
	copy(observers, h.observers)

	return observers
}

func (h *observerHub) notifyStarted(event *StartedEvent) {
	for _, observer := range h.snapshot() {
		observer.DownloadStarted(event)
	}
}

func (h *observerHub) notifyProgress(trackID string, percent float64) {
	for _, observer := range h.snapshot() {
		observer.DownloadProgress(trackID, percent)
	}
}

func (h *observerHub) notifyFinished(trackID, finalPath string) {
	for _, observer := range h.snapshot() {
		observer.DownloadFinished(trackID, finalPath)
	}
}

func (h *observerHub) notifyFailed(trackID, message string) {
	for _, observer := range h.snapshot() {
		observer.DownloadFailed(trackID, message)
	}
}

func (h *observerHub) notifyGroupEnqueued(event *GroupEnqueuedEvent) {
	for _, observer := range h.snapshot() {
		observer.GroupEnqueued(event)
	}
}
