package app

import (
	"context"
	"os"

	json "github.com/goccy/go-json"

	"github.com/deegrab/deegrab/internal/client/deezer"
	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/logger"
	"github.com/deegrab/deegrab/internal/service/downloader"
)

// dumpConfigEnvVar makes the application print the effective configuration as
// JSON and exit. Used by the end-to-end tests to verify flag handling.
const dumpConfigEnvVar = "DEEGRAB_DUMP_CONFIG"

// ExecuteRootCommand is the entry point for the application.
// It initializes the Deezer client, sets up the download manager,
// restores the persisted queue and downloads the provided URLs.
func ExecuteRootCommand(ctx context.Context, cfg *config.Config, urls []string) {
	if os.Getenv(dumpConfigEnvVar) != "" {
		dumpConfig(ctx, cfg)

		return
	}

	deezerClient, err := deezer.NewClient(cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize deezer client: %v", err)
	}

	snapshotPath, err := downloader.DefaultSnapshotPath()
	if err != nil {
		logger.Fatalf(ctx, "Failed to resolve queue snapshot location: %v", err)
	}

	urlProcessor := downloader.NewURLProcessor()
	pathResolver := downloader.NewPathResolver(cfg)
	tagProcessor := downloader.NewTagProcessor()
	artworkManager := downloader.NewArtworkManager(cfg, deezerClient)

	manager := downloader.NewManager(cfg, deezerClient, pathResolver, tagProcessor, artworkManager, snapshotPath)

	// Ensure statistics are ALWAYS printed, even on panic.
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(ctx, "Panic recovered: %v", r)
		}

		manager.Statistics().PrintDownloadSummary(ctx)
	}()

	// Pick up whatever a previous run left unfinished.
	if err = manager.RestoreQueue(ctx); err != nil {
		logger.Warnf(ctx, "Failed to restore download queue: %v", err)
	}

	if err = manager.WatchQueue(ctx); err != nil {
		logger.Warnf(ctx, "Failed to watch download queue: %v", err)
	}

	items, err := urlProcessor.ExtractDownloadItems(ctx, urls)
	if err != nil {
		logger.Fatalf(ctx, "Failed to process URLs: %v", err)
	}

	if err = manager.DownloadItems(ctx, append(items.Tracks, items.Collections...)); err != nil {
		logger.Errorf(ctx, "Failed to queue downloads: %v", err)
	}

	manager.Wait()

	if err = manager.Close(ctx); err != nil {
		logger.Warnf(ctx, "Failed to flush download queue: %v", err)
	}
}

// dumpConfig prints the effective configuration as JSON.
func dumpConfig(ctx context.Context, cfg *config.Config) {
	dump := map[string]any{
		"quality":              cfg.Quality,
		"output_path":          cfg.OutputPath,
		"download_lyrics":      cfg.DownloadLyrics,
		"download_speed_limit": cfg.DownloadSpeedLimit,
	}

	encoded, err := json.Marshal(dump)
	if err != nil {
		logger.Fatalf(ctx, "Failed to dump configuration: %v", err)
	}

	// The dump must be plain JSON on stdout, not a log line.
	_, _ = os.Stdout.Write(append(encoded, '\n'))
}
