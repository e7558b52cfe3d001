package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/deegrab/deegrab/internal/logger"
)

// Statistics accumulates counters over a download run.
type Statistics struct {
	mu sync.Mutex

	// TracksEnqueued counts tracks admitted to the queue.
	TracksEnqueued int64
	// TracksSucceeded counts tracks that reached their final path.
	TracksSucceeded int64
	// TracksSkippedExists counts tracks that already existed on disk.
	TracksSkippedExists int64
	// TracksFailed counts tracks that ended in a failure.
	TracksFailed int64
	// BytesDownloaded counts raw payload bytes fetched from the network.
	BytesDownloaded int64

	// StartTime stamps the first enqueue of the run.
	StartTime time.Time
	// EndTime stamps the last terminal report of the run.
	EndTime time.Time
}

// NewStatistics creates an empty statistics accumulator.
func NewStatistics() *Statistics {
	return new(Statistics)
}

// TrackEnqueued records a track admitted to the queue.
func (s *Statistics) TrackEnqueued() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TracksEnqueued++

	if s.StartTime.IsZero() {
		s.StartTime = time.Now()
	}
}

// TrackSucceeded records a finished track.
func (s *Statistics) TrackSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TracksSucceeded++
	s.EndTime = time.Now()
}

// TrackSkippedExists records a track that already existed on disk.
func (s *Statistics) TrackSkippedExists() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TracksSkippedExists++
}

// TrackFailed records a failed track.
func (s *Statistics) TrackFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TracksFailed++
	s.EndTime = time.Now()
}

// AddBytesDownloaded records payload bytes fetched from the network.
func (s *Statistics) AddBytesDownloaded(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.BytesDownloaded += bytes
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}

// PrintDownloadSummary prints a formatted summary of download statistics.
func (s *Statistics) PrintDownloadSummary(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// If nothing was processed, don't print summary.
	if s.TracksEnqueued == 0 {
		return
	}

	wasInterrupted := ctx.Err() != nil

	logger.Info(ctx, "")
	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")

	if wasInterrupted {
		logger.Info(ctx, "           DOWNLOAD SUMMARY (Interrupted)")
	} else {
		logger.Info(ctx, "                     DOWNLOAD SUMMARY")
	}

	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")
	logger.Infof(ctx, "Tracks:           %d total processed", s.TracksEnqueued)

	if s.TracksSucceeded > 0 {
		logger.Infof(ctx, "  Downloaded:      %d", s.TracksSucceeded)
	}

	if s.TracksSkippedExists > 0 {
		logger.Infof(ctx, "  Already Exist:   %d", s.TracksSkippedExists)
	}

	if s.TracksFailed > 0 {
		logger.Infof(ctx, "  Failed:          %d", s.TracksFailed)
	}

	if s.TracksEnqueued > 0 {
		successRate := float64(s.TracksSucceeded+s.TracksSkippedExists) / float64(s.TracksEnqueued) * 100
		logger.Infof(ctx, "  Success Rate:    %.1f%%", successRate)
	}

	s.printDataTransfer(ctx, wasInterrupted)

	logger.Info(ctx, "═══════════════════════════════════════════════════════════════")

	switch {
	case wasInterrupted:
		logger.Info(ctx, "")
		logger.Warn(ctx, "Download interrupted by user (CTRL+C).")

		if s.TracksSucceeded > 0 {
			logger.Infof(ctx, "Successfully downloaded %d track(s) before interruption.", s.TracksSucceeded)
		}
	case s.TracksFailed > 0:
		logger.Info(ctx, "")
		logger.Warnf(ctx, "%d track(s) failed. Use the retry command to requeue them.", s.TracksFailed)
	case s.TracksSucceeded > 0:
		logger.Info(ctx, "")
		logger.Info(ctx, "All downloads completed successfully!")
	case s.TracksSkippedExists > 0:
		logger.Info(ctx, "")
		logger.Info(ctx, "All tracks already exist in the output directory.")
	}
}

// printDataTransfer prints transfer volume, duration and average speed.
// Callers hold s.mu.
func (s *Statistics) printDataTransfer(ctx context.Context, wasInterrupted bool) {
	if s.BytesDownloaded > 0 {
		logger.Info(ctx, "")
		//nolint:gosec // BytesDownloaded is always positive, no overflow risk.
		logger.Infof(ctx, "Data Downloaded:  %s", humanize.Bytes(uint64(s.BytesDownloaded)))
	}

	if wasInterrupted || s.StartTime.IsZero() || s.EndTime.IsZero() {
		return
	}

	duration := s.EndTime.Sub(s.StartTime)

	// Only show if duration is meaningful (> 100ms).
	if duration <= 100*time.Millisecond {
		return
	}

	logger.Infof(ctx, "Duration:         %s", formatDuration(duration))

	if s.BytesDownloaded > 0 {
		bytesPerSecond := float64(s.BytesDownloaded) / duration.Seconds()
		logger.Infof(ctx, "Average Speed:    %s/s", humanize.Bytes(uint64(bytesPerSecond)))
	}
}
