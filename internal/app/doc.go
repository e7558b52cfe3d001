// Package app provides the main application logic for downloading audio from Deezer URLs.
// It initializes the necessary components, such as the Deezer client, URL processor,
// path resolver, and download manager, and orchestrates the download process.
package app
