// Package http provides custom HTTP transport utilities,
// including request/response logging and User-Agent header injection.
// It enhances HTTP client functionality with debugging capabilities
// and per-request customization.
package http
