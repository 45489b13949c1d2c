package modelrunner

import (
	"fmt"
	"net/url"
)

// providerBase carries the configuration every provider shares. The
// model name is fixed at construction, so no synchronization is needed.
type providerBase struct {
	model string
}

// GetModel returns the model name the provider was built with.
func (b *providerBase) GetModel() string { return b.model }

// validateBaseURL checks that an endpoint override is an absolute
// http(s) URL before it is handed to a provider SDK.
func validateBaseURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("base URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("base URL host cannot be empty")
	}
	return parsed.String(), nil
}
