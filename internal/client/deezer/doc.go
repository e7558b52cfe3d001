// Package deezer provides a Go client for Deezer's private gateway APIs.
// It handles cookie-based authentication from an ARL session cookie,
// CSRF/license token negotiation with a single refresh-and-retry on
// staleness, and signed media URL acquisition for encrypted streams.
// Key features include track/album/playlist metadata retrieval, lyrics
// fetching and content downloading. Track and album metadata is cached
// to keep sibling downloads from repeating gateway calls.
package deezer
