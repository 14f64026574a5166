// Package client runs render passes for one controller entry.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/render"
	"github.com/user/netmap/internal/unifi"
)

// DefaultCacheWindow is how long a cached render stays fresh.
const DefaultCacheWindow = 600 * time.Second

type cachedRender struct {
	data     *model.RenderResult
	cachedAt time.Time
}

// Client holds the connection parameters of one entry and its render cache.
// It is not safe for concurrent use; the coordinator serializes calls.
type Client struct {
	entry    model.Entry
	settings model.RenderSettings
	adapter  render.Adapter
	renderer render.Renderer

	cacheWindow time.Duration
	now         func() time.Time
	cached      *cachedRender
}

// Option configures a Client.
type Option func(*Client)

// WithAdapter replaces the controller adapter.
func WithAdapter(a render.Adapter) Option {
	return func(c *Client) { c.adapter = a }
}

// WithClock replaces the time source used for cache freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithCacheWindow sets the render cache window.
func WithCacheWindow(d time.Duration) Option {
	return func(c *Client) { c.cacheWindow = d }
}

// New builds a client for the entry. warnInsecure is passed to the adapter
// and may be nil.
func New(entry model.Entry, warnInsecure func(), opts ...Option) *Client {
	c := &Client{
		entry:       entry,
		settings:    entry.Options.RenderSettings(),
		cacheWindow: DefaultCacheWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.adapter == nil {
		c.adapter = unifi.NewClient(unifi.Config{
			BaseURL:      entry.BaseURL,
			Site:         entry.Site,
			Username:     entry.Username,
			Password:     entry.Password,
			VerifySSL:    entry.VerifySSL,
			Timeout:      entry.Options.RequestTimeout(),
			WarnInsecure: warnInsecure,
		})
	}
	return c
}

// Settings returns the render settings in use.
func (c *Client) Settings() model.RenderSettings {
	return c.settings
}

// FetchMap renders the current topology. With use_cache set, a result
// younger than the cache window is returned as is and must not be modified.
func (c *Client) FetchMap(ctx context.Context) (*model.RenderResult, error) {
	if c.settings.UseCache && c.cached != nil && c.now().Sub(c.cached.cachedAt) < c.cacheWindow {
		return c.cached.data, nil
	}

	res, err := c.renderer.Render(ctx, c.adapter, c.settings)
	if err != nil {
		return nil, MapError(err)
	}

	if c.settings.UseCache {
		c.cached = &cachedRender{data: res, cachedAt: c.now()}
	}
	return res, nil
}

// MapError converts adapter errors into the error taxonomy.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var me *model.Error
	if errors.As(err, &me) {
		return err
	}

	var authErr *unifi.AuthError
	if errors.As(err, &authErr) {
		return model.ErrInvalidAuth(err)
	}

	var httpErr *unifi.HTTPError
	if errors.As(err, &httpErr) && httpErr.RateLimited() {
		return model.ErrCannotConnect("Rate limited by controller (HTTP 429)", err)
	}

	return model.ErrCannotConnect("", err)
}
