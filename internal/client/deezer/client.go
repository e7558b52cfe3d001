package deezer

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/deegrab/deegrab/internal/config"
	"github.com/deegrab/deegrab/internal/logger"
	http_transport "github.com/deegrab/deegrab/internal/transport/http"
	"github.com/deegrab/deegrab/internal/utils"
)

// Client defines the interface for interacting with Deezer's APIs.
type Client interface {
	// DownloadFromURL downloads content from the specified URL.
	DownloadFromURL(ctx context.Context, url string) (io.ReadCloser, error)
	// FetchTrack opens an audio stream from the specified signed media URL.
	FetchTrack(ctx context.Context, trackURL string) (*FetchTrackResult, error)
	// GetTrackDetails retrieves authoritative metadata for a single track.
	GetTrackDetails(ctx context.Context, trackID string) (*Track, error)
	// GetAlbumDetails retrieves album metadata including its ordered track list.
	GetAlbumDetails(ctx context.Context, albumID string) (*Album, error)
	// GetPlaylistTracks retrieves playlist metadata including its ordered track list.
	GetPlaylistTracks(ctx context.Context, playlistID string) (*Playlist, error)
	// GetDownloadURL negotiates a signed stream URL for the given track and quality.
	// A result carrying RightsErrorPrefix is a terminal rights/geo restriction,
	// not a transport failure.
	GetDownloadURL(ctx context.Context, trackID, quality string) (string, error)
	// GetLyrics retrieves lyrics for a specific track; both return values are nil
	// when the track has none.
	GetLyrics(ctx context.Context, trackID string) (*Lyrics, error)
	// GetUserProfile retrieves the authenticated account's profile.
	GetUserProfile(ctx context.Context) (*UserProfile, error)
	// GetBaseURL returns the base URL of the Deezer website.
	GetBaseURL() string
}

// ClientImpl implements the Client interface for interacting with Deezer's APIs.
type ClientImpl struct {
	// cfg contains the application configuration.
	cfg *config.Config
	// baseURL is the base URL for gateway requests.
	baseURL string
	// mediaURL is the endpoint that exchanges tokens for signed stream URLs.
	mediaURL string
	// httpClient is the HTTP client for making requests.
	httpClient *http.Client
	// sessionMu guards session.
	sessionMu sync.Mutex
	// session holds the negotiated gateway and license tokens.
	session session
	// albumsCache caches album metadata so sibling-track workers share one fetch.
	albumsCache *lru.Cache[string, *Album]
	// tracksCache caches track metadata to reduce duplicate gateway calls.
	tracksCache *lru.Cache[string, *Track]
	// now returns the current time; replaced in tests to pin token expiry checks.
	now func() time.Time
}

// NewClient creates and returns a new instance of ClientImpl.
// It initializes the HTTP client with the ARL session cookie attached.
func NewClient(cfg *config.Config) (Client, error) {
	// Create a cookie jar to manage cookies for the HTTP client.
	cookies, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	baseURL, err := url.Parse(cfg.DeezerBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid host URL: %w", err)
	}

	// Set the long-lived session cookie.
	cookie := &http.Cookie{
		Name:  arlCookieName,
		Value: cfg.ARL,
	}
	cookies.SetCookies(baseURL, []*http.Cookie{cookie})

	// Initialize the HTTP client with custom transport and timeout.
	httpClient := &http.Client{
		Transport: http_transport.NewUserAgentInjector(
			http_transport.NewLogTransport(http.DefaultTransport, 0),
			utils.NewSimpleUserAgentProvider(http_transport.DefaultUserAgent)),
		Jar:     cookies,
		Timeout: http_transport.DefaultTimeout,
	}

	// Initialize LRU caches for metadata to reduce redundant gateway calls.
	albumsCache, err := lru.New[string, *Album](albumsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create albums cache: %w", err)
	}

	tracksCache, err := lru.New[string, *Track](tracksCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracks cache: %w", err)
	}

	client := &ClientImpl{
		cfg:         cfg,
		baseURL:     baseURL.String(),
		mediaURL:    mediaURL,
		httpClient:  httpClient,
		albumsCache: albumsCache,
		tracksCache: tracksCache,
		now:         time.Now,
	}

	return client, nil
}

// DownloadFromURL downloads content from the specified URL.
func (c *ClientImpl) DownloadFromURL(ctx context.Context, url string) (io.ReadCloser, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		response.Body.Close() //nolint:gosec // Error on close is not critical here.

		return nil, fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	return response.Body, nil
}

// FetchTrack opens an audio stream from the specified signed media URL.
func (c *ClientImpl) FetchTrack(ctx context.Context, trackURL string) (*FetchTrackResult, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	// Add a Range header to request partial content.
	request.Header.Add("Range", "bytes=0-")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusPartialContent {
		response.Body.Close() //nolint:gosec // Error on close is not critical here.

		return nil, fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	return &FetchTrackResult{
		Body:       response.Body,
		TotalBytes: response.ContentLength,
	}, nil
}

// GetTrackDetails retrieves authoritative metadata for a single track.
// Uses an LRU cache; a cached entry with an expired rights token is refetched.
func (c *ClientImpl) GetTrackDetails(ctx context.Context, trackID string) (*Track, error) {
	if cached, ok := c.tracksCache.Get(trackID); ok {
		if !c.isTrackTokenStale(cached) {
			logger.Debugf(ctx, "Track cache hit for ID: %s", trackID)

			return cached, nil
		}

		logger.Debugf(ctx, "Track %s cached with stale rights token, refetching", trackID)
		c.tracksCache.Remove(trackID)
	}

	results, err := c.callGatewayAuthed(ctx, methodPageTrack, map[string]any{"SNG_ID": trackID})
	if err != nil {
		return nil, err
	}

	track, err := parseResult[Track](results, "DATA")
	if err != nil {
		return nil, err
	}

	if track == nil || track.ID == "" || track.ID == "0" {
		return nil, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
	}

	c.tracksCache.Add(trackID, track)

	return track, nil
}

// GetAlbumDetails retrieves album metadata including its ordered track list.
// Uses an LRU cache so sibling-track workers share one fetch; entries live for
// the process lifetime unless evicted by capacity.
func (c *ClientImpl) GetAlbumDetails(ctx context.Context, albumID string) (*Album, error) {
	if cached, ok := c.albumsCache.Get(albumID); ok {
		logger.Debugf(ctx, "Album cache hit for ID: %s", albumID)

		return cached, nil
	}

	params := map[string]any{
		"ALB_ID": albumID,
		"lang":   "en",
		"header": true,
		"tab":    "",
	}

	results, err := c.callGatewayAuthed(ctx, methodPageAlbum, params)
	if err != nil {
		return nil, err
	}

	album, err := parseResult[Album](results, "DATA")
	if err != nil {
		return nil, err
	}

	if album == nil || album.ID == "" || album.ID == "0" {
		return nil, fmt.Errorf("%w: %s", ErrAlbumNotFound, albumID)
	}

	album.Tracks, err = parseTrackList(results, "SONGS.data")
	if err != nil {
		return nil, err
	}

	album.Genre = parseAlbumGenre(results)

	c.albumsCache.Add(albumID, album)

	return album, nil
}

// GetPlaylistTracks retrieves playlist metadata including its ordered track list.
// Playlists are never cached so that freshly edited ones stay accurate.
func (c *ClientImpl) GetPlaylistTracks(ctx context.Context, playlistID string) (*Playlist, error) {
	params := map[string]any{
		"PLAYLIST_ID": playlistID,
		"lang":        "en",
		"nb":          -1,
		"start":       0,
		"tab":         "tracks",
		"tags":        true,
		"header":      true,
	}

	results, err := c.callGatewayAuthed(ctx, methodPagePlaylist, params)
	if err != nil {
		return nil, err
	}

	playlist, err := parseResult[Playlist](results, "DATA")
	if err != nil {
		return nil, err
	}

	if playlist == nil || playlist.ID == "" || playlist.ID == "0" {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, playlistID)
	}

	playlist.Tracks, err = parseTrackList(results, "SONGS.data")
	if err != nil {
		return nil, err
	}

	return playlist, nil
}

// GetDownloadURL negotiates a signed stream URL for the given track and quality.
// The negotiation chain is: session tokens (CSRF + license) → per-track rights
// token → media URL. An expired license token triggers exactly one session
// refresh before giving up.
func (c *ClientImpl) GetDownloadURL(ctx context.Context, trackID, quality string) (string, error) {
	track, err := c.GetTrackDetails(ctx, trackID)
	if err != nil {
		return "", err
	}

	if track.TrackToken == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyTrackToken, trackID)
	}

	result, err := c.requestMediaURL(ctx, track.TrackToken, quality)
	if !errors.Is(err, ErrStaleAPIToken) {
		return result, err
	}

	logger.Debugf(ctx, "License token rejected for track %s, refreshing session once", trackID)

	if err = c.ensureSession(ctx, true); err != nil {
		return "", err
	}

	// The refetch also renews the per-track rights token.
	c.tracksCache.Remove(trackID)

	track, err = c.GetTrackDetails(ctx, trackID)
	if err != nil {
		return "", err
	}

	return c.requestMediaURL(ctx, track.TrackToken, quality)
}

// GetLyrics retrieves lyrics for a specific track.
// Tracks without lyrics yield (nil, nil) rather than an error.
func (c *ClientImpl) GetLyrics(ctx context.Context, trackID string) (*Lyrics, error) {
	results, err := c.callGatewayAuthed(ctx, methodGetLyrics, map[string]any{"SNG_ID": trackID})
	if err != nil {
		// The gateway reports missing lyrics as a data error, not an empty result.
		if errors.Is(err, ErrGatewayError) {
			return nil, nil
		}

		return nil, err
	}

	var lyrics Lyrics
	if err = json.Unmarshal(results, &lyrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lyrics: %w", err)
	}

	if lyrics.Text == "" && len(lyrics.SyncJSON) == 0 {
		return nil, nil
	}

	return &lyrics, nil
}

// GetUserProfile retrieves the authenticated account's profile.
func (c *ClientImpl) GetUserProfile(ctx context.Context) (*UserProfile, error) {
	if err := c.ensureSession(ctx, false); err != nil {
		return nil, err
	}

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	return c.session.profile, nil
}

// GetBaseURL returns the base URL of the Deezer website.
func (c *ClientImpl) GetBaseURL() string {
	return c.baseURL
}

// isTrackTokenStale reports whether a track's rights token has expired.
func (c *ClientImpl) isTrackTokenStale(track *Track) bool {
	if track.TrackTokenExpire == 0 {
		return false
	}

	return c.now().Unix() >= track.TrackTokenExpire
}

// requestMediaURL exchanges a rights token for a signed stream URL.
func (c *ClientImpl) requestMediaURL(ctx context.Context, trackToken, quality string) (string, error) {
	_, licenseToken := c.currentTokens()

	payload := mediaRequest{
		LicenseToken: licenseToken,
		Media: []mediaRequestEntry{{
			Type: mediaTypeFull,
			Formats: []mediaRequestFormat{{
				Cipher: streamCipher,
				Format: quality,
			}},
		}},
		TrackTokens: []string{trackToken},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal media request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.mediaURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}

	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", err
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	var parsed mediaResponse
	if err = json.NewDecoder(response.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode media response: %w", err)
	}

	if len(parsed.Data) == 0 {
		return "", ErrNoMediaSources
	}

	data := parsed.Data[0]
	if len(data.Errors) > 0 {
		return mediaErrorResult(data.Errors[0])
	}

	for _, media := range data.Media {
		for _, source := range media.Sources {
			if source.URL != "" {
				return source.URL, nil
			}
		}
	}

	return "", ErrNoMediaSources
}

// mediaErrorResult maps a media endpoint error to either a stale-token error
// (retryable once via session refresh) or a terminal rights error result.
func mediaErrorResult(mediaError mediaResponseError) (string, error) {
	switch mediaError.Code {
	case mediaErrorCodeLicenseInvalid:
		return "", fmt.Errorf("%w: %s", ErrStaleAPIToken, mediaError.Message)
	case mediaErrorCodeGeoRestricted:
		return RightsErrorPrefix + RightsErrorGeoRestricted, nil
	case mediaErrorCodeSubscriptionRequired:
		return RightsErrorPrefix + RightsErrorSubscriptionRequired, nil
	default:
		return RightsErrorPrefix + RightsErrorUnavailable, nil
	}
}
