package auth

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/deegrab/deegrab/internal/logger"
)

// waitForUserLogin navigates to the login page and waits for successful authentication.
//
//nolint:funlen // Login instructions require many log statements and monitoring logic.
func (s *ServiceImpl) waitForUserLogin(ctx context.Context) (string, error) {
	logger.Info(ctx, "Opening Deezer login page...")

	logger.Debugf(ctx, "Navigating to %s", deezerLoginURL)

	// Add random delay before navigation to appear more human.
	randomHumanDelay()

	s.page.MustNavigate(deezerLoginURL)

	// Wait for page to fully load with random delay.
	randomHumanDelay()

	// Perform some human-like mouse movements after page load.
	s.simulateHumanBehavior(ctx)

	currentURL := s.page.MustInfo().URL
	logger.Debugf(ctx, "Navigation complete. Current URL: %s", currentURL)

	logger.Info(ctx, "")
	logger.Info(ctx, "╔══════════════════════════════════════════════════════════════════╗")
	logger.Info(ctx, "║                      LOGIN INSTRUCTIONS                          ║")
	logger.Info(ctx, "╚══════════════════════════════════════════════════════════════════╝")
	logger.Info(ctx, "")
	logger.Info(ctx, "Please complete the login in the browser:")
	logger.Info(ctx, "")
	logger.Info(ctx, "1. Log in with your email and password,")
	logger.Info(ctx, "   or use the Google / Facebook / Apple buttons")
	logger.Info(ctx, "")
	logger.Info(ctx, "2. Complete any captcha or two-factor prompt if asked")
	logger.Info(ctx, "")
	logger.Info(ctx, "3. Wait until the Deezer homepage shows your account")
	logger.Info(ctx, "")
	logger.Info(ctx, "4. DO NOT CLOSE THE BROWSER - let it complete automatically")
	logger.Info(ctx, "")
	logger.Info(ctx, "CRITICAL RULES:")
	logger.Info(ctx, "- ONLY interact with login forms")
	logger.Info(ctx, "- Do NOT close browser manually")
	logger.Info(ctx, "- Do NOT navigate away from Deezer or the login provider")
	logger.Info(ctx, "- Tool will auto-detect when login completes")
	logger.Info(ctx, "")
	logger.Info(ctx, "Waiting for login to complete...")
	logger.Info(ctx, "")

	// Wait for login by monitoring the process.
	token, err := s.waitForLoginComplete(ctx)
	if err != nil {
		return "", err
	}

	logger.Info(ctx, "Login completed successfully!")

	// Give the session a moment to fully establish.
	time.Sleep(sessionEstablishDelay)

	return token, nil
}

// waitForLoginComplete monitors the login process and validates success by
// checking for the arl cookie and the account menu.
//
//nolint:gocognit,cyclop // The login flow requires monitoring and conditional logic.
func (s *ServiceImpl) waitForLoginComplete(ctx context.Context) (string, error) {
	var (
		startTime = time.Now()
		lastURL   string
		// Track if we've entered a third-party OAuth flow.
		inOAuthFlow bool
	)

	for {
		// Check context cancellation.
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		// Check timeout.
		if time.Since(startTime) > maxLoginWaitTime {
			return "", fmt.Errorf("%w: waited for %v", ErrLoginTimeout, maxLoginWaitTime)
		}

		// Check if browser was closed.
		if !s.isBrowserAlive(ctx) {
			return "", ErrBrowserClosed
		}

		// Get current URL safely.
		currentURL, err := s.getCurrentURL(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get current URL: %w", err)
		}

		// Log URL changes for debugging.
		if currentURL != lastURL {
			s.logURLChange(ctx, currentURL)
			lastURL = currentURL
		}

		// Track OAuth flow entry.
		if isOAuthProviderURL(currentURL) && !inOAuthFlow {
			logger.Info(ctx, "Third-party login flow started")
			logger.Info(ctx, "Waiting for the provider to redirect back to Deezer...")

			inOAuthFlow = true
		}

		// Once the provider redirects back to Deezer, the session cookie may
		// take a moment to appear.
		if inOAuthFlow && strings.Contains(currentURL, deezerDomain) {
			time.Sleep(oauthCookieWaitDelay)

			if authCookie := s.getAuthCookie(ctx); authCookie != "" {
				logger.Info(ctx, "Auth cookie detected - login successful!")
				return authCookie, nil
			}

			logger.Debug(ctx, "No arl cookie yet, continuing to wait...")
		}

		// For the plain email/password flow, poll for the cookie directly.
		if !inOAuthFlow && strings.Contains(currentURL, deezerDomain) {
			if authCookie := s.getAuthCookie(ctx); authCookie != "" {
				logger.Info(ctx, "Auth cookie detected - login successful!")
				return authCookie, nil
			}

			if loggedIn, checkErr := s.checkIfLoggedIn(ctx); checkErr == nil && loggedIn {
				return "", nil
			}
		}

		// Validate user hasn't navigated away.
		if err = s.validateLoginURL(currentURL); err != nil {
			return "", err
		}

		// Simulate human behavior to avoid bot detection.
		s.simulateHumanBehavior(ctx)

		// Occasionally add extra random interactions.
		//nolint:gosec // Weak random is fine for simulating human behavior.
		if rand.IntN(interactionProbability) == 0 {
			s.simulateRandomPageInteraction(ctx)
		}

		// Wait before checking again with some randomness.
		randomHumanDelay()
	}
}

// logURLChange logs URL changes and page details in debug mode.
func (s *ServiceImpl) logURLChange(ctx context.Context, currentURL string) {
	logger.Debugf(ctx, "URL changed: %s", currentURL)

	if !logger.IsDebugLevel() {
		return
	}

	// Show page title.
	pageInfo, err := s.page.Info()
	if err == nil {
		logger.Debugf(ctx, "Page title: %s", pageInfo.Title)
	}

	// Get full page HTML.
	html, err := s.page.HTML()
	if err == nil {
		logger.Debugf(ctx, "Page HTML (full):\n%s", html)
	}
}

// checkIfLoggedIn checks if the user is logged in by looking for the account menu.
func (s *ServiceImpl) checkIfLoggedIn(ctx context.Context) (bool, error) {
	logger.Debug(ctx, "On deezer.com - checking for successful login...")

	// Try to find the account menu (appears only when logged in).
	avatarExists, _, err := s.page.Has(avatarButtonSelector)
	if err == nil && avatarExists {
		logger.Debug(ctx, "Account menu found - login successful!")
		return true, nil
	}

	// Also check if the login button still exists (not logged in).
	loginButtonExists, _, err := s.page.Has(loginButtonSelector)
	if err == nil && loginButtonExists {
		logger.Debug(ctx, "Still see login button - not logged in yet, waiting...")
	}

	return false, err
}

// isOAuthProviderURL reports whether the URL belongs to a supported social
// login provider.
func isOAuthProviderURL(currentURL string) bool {
	return strings.Contains(currentURL, googleOAuthDomain) ||
		strings.Contains(currentURL, facebookOAuthDomain) ||
		strings.Contains(currentURL, appleOAuthDomain)
}

// validateLoginURL validates that the user hasn't navigated away from allowed domains.
func (s *ServiceImpl) validateLoginURL(currentURL string) error {
	if !strings.Contains(currentURL, deezerDomain) && !isOAuthProviderURL(currentURL) {
		return fmt.Errorf("%w to: %s", ErrNavigatedAway, currentURL)
	}

	return nil
}
