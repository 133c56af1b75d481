package health

import (
	"context"
	"net/http"
)

// ProviderChecker checks reachability of an external payment provider API.
// It only verifies the host answers HTTP; auth failures still count as up.
type ProviderChecker struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewProviderChecker creates a reachability checker for one provider host.
func NewProviderChecker(name, baseURL string, client *http.Client) *ProviderChecker {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &ProviderChecker{name: name, baseURL: baseURL, client: client}
}

// Name returns the provider tag.
func (c *ProviderChecker) Name() string {
	return c.name
}

// Check issues a HEAD request against the provider base URL.
func (c *ProviderChecker) Check(ctx context.Context) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return Down("%v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Down("unreachable: %v", err)
	}
	defer resp.Body.Close()

	return Up()
}
