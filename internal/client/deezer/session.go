package deezer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/deegrab/deegrab/internal/logger"
)

// session holds the short-lived tokens negotiated from the ARL cookie.
// The gateway CSRF token ("checkForm") authorizes gw-light calls, the license
// token authorizes media URL requests. Both are refreshed together.
type session struct {
	// apiToken is the gateway CSRF token.
	apiToken string
	// licenseToken is the account's media license token.
	licenseToken string
	// profile is the account data captured during the last refresh.
	profile *UserProfile
}

// ensureSession makes sure valid session tokens exist, refreshing them when
// force is set or no tokens were negotiated yet.
func (c *ClientImpl) ensureSession(ctx context.Context, force bool) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	if !force && c.session.apiToken != "" {
		return nil
	}

	return c.refreshSessionLocked(ctx)
}

// refreshSessionLocked renegotiates session tokens from the ARL cookie.
// Callers must hold sessionMu.
func (c *ClientImpl) refreshSessionLocked(ctx context.Context) error {
	// getUserData is the only gateway method that accepts an empty CSRF token.
	results, err := c.callGateway(ctx, methodGetUserData, "", nil)
	if err != nil {
		return fmt.Errorf("failed to fetch user data: %w", err)
	}

	userID := gjson.GetBytes(results, "USER.USER_ID").Int()
	if userID == 0 {
		return ErrInvalidARL
	}

	apiToken := gjson.GetBytes(results, "checkForm").String()
	if apiToken == "" {
		return fmt.Errorf("%w: empty checkForm", ErrGatewayError)
	}

	c.session.apiToken = apiToken
	c.session.licenseToken = gjson.GetBytes(results, "USER.OPTIONS.license_token").String()
	c.session.profile = &UserProfile{
		UserID:            userID,
		UserName:          gjson.GetBytes(results, "USER.BLOG_NAME").String(),
		Country:           gjson.GetBytes(results, "COUNTRY").String(),
		OfferName:         gjson.GetBytes(results, "OFFER_NAME").String(),
		CanStreamLossless: gjson.GetBytes(results, "USER.OPTIONS.web_lossless").Bool(),
		CanStreamHQ:       gjson.GetBytes(results, "USER.OPTIONS.web_hq").Bool(),
	}

	logger.Debugf(ctx, "Negotiated session tokens for user %d", userID)

	return nil
}

// currentTokens returns the session tokens under lock.
func (c *ClientImpl) currentTokens() (apiToken, licenseToken string) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	return c.session.apiToken, c.session.licenseToken
}

// callGatewayAuthed performs a gateway call with a valid CSRF token.
// A stale token triggers exactly one synchronous refresh-and-retry.
func (c *ClientImpl) callGatewayAuthed(ctx context.Context, method string, params any) ([]byte, error) {
	if err := c.ensureSession(ctx, false); err != nil {
		return nil, err
	}

	apiToken, _ := c.currentTokens()

	results, err := c.callGateway(ctx, method, apiToken, params)
	if !errors.Is(err, ErrStaleAPIToken) {
		return results, err
	}

	logger.Debugf(ctx, "Gateway rejected the api token, refreshing session once")

	if err = c.ensureSession(ctx, true); err != nil {
		return nil, err
	}

	apiToken, _ = c.currentTokens()

	return c.callGateway(ctx, method, apiToken, params)
}

// callGateway performs a raw gw-light call and returns the raw "results" JSON.
func (c *ClientImpl) callGateway(ctx context.Context, method, apiToken string, params any) ([]byte, error) {
	route, err := url.JoinPath(c.baseURL, gatewayURI)
	if err != nil {
		return nil, err
	}

	body := []byte("{}")
	if params != nil {
		if body, err = json.Marshal(params); err != nil {
			return nil, fmt.Errorf("failed to marshal gateway params: %w", err)
		}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, route, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("method", method)
	query.Set("input", gatewayInput)
	query.Set("api_version", gatewayAPIVersion)
	query.Set("api_token", apiToken)
	request.URL.RawQuery = query.Encode()
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if err = gatewayError(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return []byte(gjson.GetBytes(raw, "results").Raw), nil
}

// gatewayError inspects the envelope's "error" field, whose shape varies
// between an empty array and an object of code → message pairs.
func gatewayError(raw []byte) error {
	errField := gjson.GetBytes(raw, "error")
	if !errField.Exists() || !errField.IsObject() {
		return nil
	}

	if errField.Get("VALID_TOKEN_REQUIRED").Exists() {
		return ErrStaleAPIToken
	}

	var first string

	errField.ForEach(func(key, value gjson.Result) bool {
		first = fmt.Sprintf("%s: %s", key.String(), value.String())

		return false
	})

	return fmt.Errorf("%w: %s", ErrGatewayError, first)
}
