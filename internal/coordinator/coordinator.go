// Package coordinator drives periodic refreshes of one controller entry.
package coordinator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/user/netmap/internal/client"
	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/util"
)

// Backoff bounds for auth and rate limit failures.
const (
	BaseBackoff = 30 * time.Second
	MaxBackoff  = 600 * time.Second
)

// RefreshCalls is the number of controller requests one render may make.
const RefreshCalls = 4

// Fetcher produces one render result.
type Fetcher interface {
	FetchMap(ctx context.Context) (*model.RenderResult, error)
}

// FetcherFactory builds the fetcher for an entry.
type FetcherFactory func(entry model.Entry) Fetcher

// Listener is called after every successful refresh.
type Listener func(*model.RenderResult)

type listener struct {
	fn     Listener
	active atomic.Bool
}

// Coordinator keeps at most one fetch in flight and fans results out to
// listeners in registration order.
type Coordinator struct {
	factory FetcherFactory
	now     func() time.Time
	group   singleflight.Group

	mu           sync.RWMutex
	entry        model.Entry
	fetcher      Fetcher
	data         *model.RenderResult
	lastErr      error
	lastSuccess  bool
	lastUpdate   time.Time
	backoffUntil time.Time
	backoffDelay time.Duration

	lmu       sync.Mutex
	listeners []*listener
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the time source used for backoff windows.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator for the entry.
func New(entry model.Entry, factory FetcherFactory, opts ...Option) *Coordinator {
	c := &Coordinator{
		factory:      factory,
		now:          time.Now,
		entry:        entry,
		backoffDelay: BaseBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fetcher = factory(entry)
	return c
}

// ClientFactory builds real clients, sharing the insecure TLS warning hook.
func ClientFactory(warnInsecure func()) FetcherFactory {
	return func(entry model.Entry) Fetcher {
		return client.New(entry, warnInsecure)
	}
}

// EntryID returns the entry this coordinator refreshes.
func (c *Coordinator) EntryID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry.ID
}

// Entry returns the entry as last configured.
func (c *Coordinator) Entry() model.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry
}

// Interval is the poll interval for the external scheduler.
func (c *Coordinator) Interval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entry.Options.ScanIntervalDuration()
}

// FirstRefresh performs the mandatory initial refresh.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	if err := c.RequestRefresh(ctx); err != nil {
		return model.ErrSetupFailed(err)
	}
	return nil
}

// RequestRefresh refreshes now, joining a refresh already in flight. The
// fetch outlives any single caller; ctx only bounds this caller's wait.
func (c *Coordinator) RequestRefresh(ctx context.Context) error {
	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout())
		defer cancel()
		return nil, c.refresh(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshTimeout bounds a whole render: login plus the three stat calls.
func (c *Coordinator) refreshTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return RefreshCalls * c.entry.Options.RequestTimeout()
}

func (c *Coordinator) refresh(ctx context.Context) error {
	c.mu.RLock()
	until := c.backoffUntil
	fetcher := c.fetcher
	entryID := c.entry.ID
	c.mu.RUnlock()

	if now := c.now(); !until.IsZero() && now.Before(until) {
		secs := int(math.Ceil(until.Sub(now).Seconds()))
		err := model.ErrUpdateFailed(fmt.Sprintf("Auth backoff active, retrying in %ds", secs), nil)
		c.setError(err)
		util.Debug("Entry %s: skipping refresh, backoff active for %ds", entryID, secs)
		return err
	}

	res, err := fetcher.FetchMap(ctx)
	if err != nil {
		wrapped := model.ErrUpdateFailed("", err)
		c.mu.Lock()
		c.lastErr = wrapped
		c.lastSuccess = false
		if ShouldBackoff(err) {
			c.backoffUntil = c.now().Add(c.backoffDelay)
			util.Warn("Entry %s: %v; backing off for %s", entryID, err, c.backoffDelay)
			c.backoffDelay = min(2*c.backoffDelay, MaxBackoff)
		} else {
			util.Warn("Entry %s: refresh failed: %v", entryID, err)
		}
		c.mu.Unlock()
		return wrapped
	}

	c.mu.Lock()
	c.data = res
	c.lastErr = nil
	c.lastSuccess = true
	c.lastUpdate = c.now()
	c.backoffUntil = time.Time{}
	c.backoffDelay = BaseBackoff
	c.mu.Unlock()

	util.Debug("Entry %s: refreshed, %d nodes, %d edges", entryID, len(res.Payload.NodeTypes), len(res.Payload.Edges))
	c.notify(res)
	return nil
}

func (c *Coordinator) setError(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.lastSuccess = false
	c.mu.Unlock()
}

func (c *Coordinator) notify(res *model.RenderResult) {
	c.lmu.Lock()
	snapshot := append([]*listener(nil), c.listeners...)
	c.lmu.Unlock()

	for _, l := range snapshot {
		if l.active.Load() {
			l.fn(res)
		}
	}
}

// AddListener registers fn and returns its idempotent unsubscribe func.
func (c *Coordinator) AddListener(fn Listener) func() {
	l := &listener{fn: fn}
	l.active.Store(true)

	c.lmu.Lock()
	c.listeners = append(c.listeners, l)
	c.lmu.Unlock()

	return func() {
		if !l.active.CompareAndSwap(true, false) {
			return
		}
		c.lmu.Lock()
		defer c.lmu.Unlock()
		for i, x := range c.listeners {
			if x == l {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				break
			}
		}
	}
}

// Data returns the latest result, or nil before the first success.
func (c *Coordinator) Data() *model.RenderResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// LastError returns the error of the last refresh, nil after a success.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastUpdateSuccess reports whether the last refresh succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSuccess
}

// LastUpdate returns the time of the last successful refresh.
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

// AuthBackoffUntil returns the end of the backoff window, if one is open.
func (c *Coordinator) AuthBackoffUntil() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backoffUntil, !c.backoffUntil.IsZero()
}

// BackoffDelay returns the window length the next auth failure will open.
func (c *Coordinator) BackoffDelay() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backoffDelay
}

// UpdateSettings rebuilds the fetcher from the entry. The next refresh uses it.
func (c *Coordinator) UpdateSettings(entry model.Entry) {
	f := c.factory(entry)
	c.mu.Lock()
	c.entry = entry
	c.fetcher = f
	c.mu.Unlock()
}

// ShouldBackoff reports whether err opens or extends a backoff window.
func ShouldBackoff(err error) bool {
	switch {
	case model.IsKind(err, model.KindInvalidAuth):
		return true
	case model.IsKind(err, model.KindCannotConnect):
		return strings.Contains(strings.ToLower(err.Error()), "rate limited")
	default:
		return false
	}
}
