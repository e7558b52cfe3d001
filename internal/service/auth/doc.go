// Package auth provides browser-based authentication services for Deezer.
//
// This package implements automated authentication cookie extraction
// using browser automation via go-rod. It opens the Deezer login page,
// waits for the user to sign in (directly or through a social login
// provider) and extracts the arl session cookie from the browser.
package auth
