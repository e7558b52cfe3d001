package utils

//go:generate $MOCKGEN -source=user_agent_provider.go -destination=mocks/user_agent_provider_mock.go

// UserAgentProvider supplies the User-Agent string attached to outgoing HTTP requests.
type UserAgentProvider interface {
	// GetUserAgent returns a User-Agent string.
	GetUserAgent() string
}

// SimpleUserAgentProvider is a UserAgentProvider that always returns
// the fixed string it was created with.
type SimpleUserAgentProvider struct {
	// userAgent is the User-Agent string to return.
	userAgent string
}

// NewSimpleUserAgentProvider creates a provider around a static User-Agent string.
func NewSimpleUserAgentProvider(userAgent string) UserAgentProvider {
	return &SimpleUserAgentProvider{userAgent: userAgent}
}

// GetUserAgent returns a User-Agent string.
func (p *SimpleUserAgentProvider) GetUserAgent() string {
	return p.userAgent
}
