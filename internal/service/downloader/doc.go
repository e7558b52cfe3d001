// Package downloader provides the core functionality for downloading audio
// content from the Deezer service. It drives per-track workers through
// metadata resolution, chunked download, stream decryption, tagging and
// atomic finalization, persists the queue between runs and fans lifecycle
// events out to observers.
package downloader
