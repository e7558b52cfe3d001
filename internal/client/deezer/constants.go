package deezer

const (
	// gatewayURI is the URI path for the gw-light JSON RPC endpoint.
	gatewayURI = "ajax/gw-light.php"
	// mediaURL is the endpoint that exchanges tokens for signed stream URLs.
	mediaURL = "https://media.deezer.com/v1/get_url"

	// gatewayAPIVersion is the api_version query parameter value.
	gatewayAPIVersion = "1.0"
	// gatewayInput is the input query parameter value.
	gatewayInput = "3"

	// Gateway method names.
	methodGetUserData  = "deezer.getUserData"
	methodPageTrack    = "deezer.pageTrack"
	methodPageAlbum    = "deezer.pageAlbum"
	methodPagePlaylist = "deezer.pagePlaylist"
	methodGetLyrics    = "song.getLyrics"

	// streamCipher is the only stream encryption scheme this client understands.
	streamCipher = "BF_CBC_STRIPE"

	// mediaTypeFull requests a complete stream rather than a preview.
	mediaTypeFull = "FULL"

	// arlCookieName is the name of the long-lived session cookie.
	arlCookieName = "arl"
)

const (
	// mediaErrorCodeLicenseInvalid means the license token expired mid-session.
	mediaErrorCodeLicenseInvalid = 1000
	// mediaErrorCodeGeoRestricted means the track is not licensed for the account's country.
	mediaErrorCodeGeoRestricted = 2002
	// mediaErrorCodeSubscriptionRequired means the requested quality needs a paid plan.
	mediaErrorCodeSubscriptionRequired = 2001
)

const (
	// albumsCacheSize defines the maximum number of album entries to cache.
	// Sized to hold every album of a large batch download session.
	albumsCacheSize = 5000
	// tracksCacheSize defines the maximum number of track entries to cache.
	// Sized to hold recently accessed tracks.
	tracksCacheSize = 10000
)
