package app

import (
	"context"

	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/logger"
	"github.com/deegrab/deegrab/internal/service/auth"
)

// ExecuteAuthLoginCommand executes the auth login command.
// It opens a browser, waits for the user to log in, extracts the arl cookie,
// and saves it to the configuration file.
func ExecuteAuthLoginCommand(ctx context.Context, cfg *config.Config) {
	logger.Info(ctx, "Starting authentication process")

	// Create browser authentication service.
	authService, err := auth.NewService(cfg)
	if err != nil {
		logger.Fatalf(ctx, "Failed to initialize authentication service: %v", err)
		return
	}

	// Perform login and extract the cookie.
	token, err := authService.LoginAndExtractToken(ctx)
	if err != nil {
		logger.Fatalf(ctx, "Authentication failed: %v", err)
		return
	}

	// Update configuration with the new cookie value.
	cfg.ARL = token

	// Save configuration to file.
	if err = config.SaveConfig(cfg); err != nil {
		logger.Fatalf(ctx, "Failed to save configuration: %v", err)
		return
	}

	// Print success message.
	logger.Info(ctx, "Configuration updated successfully!")
	logger.Info(ctx, "Authentication complete! You can now download music.")
	logger.Info(ctx, "")
	logger.Info(ctx, "Try downloading an album:")
	logger.Info(ctx, "deegrab https://www.deezer.com/album/302127")
	logger.Info(ctx, "")
	logger.Info(ctx, "Or a playlist:")
	logger.Info(ctx, "deegrab https://www.deezer.com/playlist/908622995")
}
