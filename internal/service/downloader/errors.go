package downloader

import "errors"

// Static error definitions for better error handling.
var (
	// ErrDuplicateDownload indicates the track is already being downloaded.
	ErrDuplicateDownload = errors.New("track is already queued")
	// ErrClearCooldown indicates an enqueue arrived during the post-clear cooldown window.
	ErrClearCooldown = errors.New("queue was just cleared, enqueue rejected")
	// ErrManagerClosed indicates the manager has been shut down.
	ErrManagerClosed = errors.New("download manager is closed")
	// ErrEmptyTrackID indicates a task without a track identifier.
	ErrEmptyTrackID = errors.New("track id cannot be empty")
	// ErrNothingToRetry indicates a retry request with no failed tracks recorded.
	ErrNothingToRetry = errors.New("no failed tracks to retry")
	// ErrEmptyTrackPath indicates that the track file path is empty.
	ErrEmptyTrackPath = errors.New("track path cannot be empty")
	// ErrUnsupportedImageFormat indicates a cover image in a format the tagger cannot embed.
	ErrUnsupportedImageFormat = errors.New("unsupported image format")
)
