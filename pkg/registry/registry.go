package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bearops/shepherd/pkg/config"
)

// ImageEntry is one tag of an app repository as the registry reports it:
// the layer id (the image's identity) and the tag name.
type ImageEntry struct {
	Layer string `json:"layer"`
	Name  string `json:"name"`
}

// Client fetches image listings from the private registry. A single
// registry is configured at startup; credentials ride on every request.
type Client struct {
	base     string
	username string
	password string
	http     *http.Client
}

// NewClient creates a registry client from the worker config.
func NewClient(cfg config.RegistryConfig) *Client {
	return &Client{
		base:     strings.TrimRight(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListImages returns the registry's current image list for an app: one
// entry per tag, each carrying the layer id the tag points at.
func (c *Client) ListImages(ctx context.Context, app string) ([]ImageEntry, error) {
	url := fmt.Sprintf("%s/v1/repositories/%s/%s/tags", c.base, c.username, app)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned %s for %s", resp.Status, app)
	}

	var entries []ImageEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("malformed registry response for %s: %w", app, err)
	}
	return entries, nil
}
