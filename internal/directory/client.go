// Package directory reads user records from the external account service.
// The engine never manages accounts; it only resolves ids for display and
// for rejecting bookings by unknown users.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"dorm-booking-backend/config"
	"dorm-booking-backend/internal/alloc"
)

// User is the slice of the account record this engine cares about.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Room        string `json:"room"`
}

// Directory resolves user ids.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*User, error)
}

// Client is an HTTP Directory backed by the user service, with a small
// cache in front since lookups are read-mostly.
type Client struct {
	baseURL string
	client  *http.Client
	cache   *cache.Cache
	ttl     time.Duration
}

// NewClient creates a directory client from configuration.
func NewClient(cfg *config.DirectoryConfig) *Client {
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	return &Client{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

// Lookup fetches a user by id. Unknown ids map to alloc.ErrNotFound;
// transport failures map to alloc.ErrStorage and are safe to retry.
func (c *Client) Lookup(ctx context.Context, userID string) (*User, error) {
	if cached, found := c.cache.Get(userID); found {
		u := cached.(User)
		return &u, nil
	}

	url := fmt.Sprintf("%s/users/%s", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("directory request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory lookup for %s: %v: %w", userID, err, alloc.ErrStorage)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("user %s: %w", userID, alloc.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("directory lookup for %s returned %d: %w", userID, resp.StatusCode, alloc.ErrStorage)
	}

	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("directory lookup for %s: decode: %v: %w", userID, err, alloc.ErrStorage)
	}

	c.cache.Set(userID, u, c.ttl)
	return &u, nil
}
