package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
)

type scriptedFetcher struct {
	mu      sync.Mutex
	results []error
	calls   int
	block   chan struct{}
}

func (f *scriptedFetcher) FetchMap(context.Context) (*model.RenderResult, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var err error
	if len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	if err != nil {
		return nil, err
	}
	return &model.RenderResult{SVG: "<svg/>", Payload: model.NewPayload()}, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(sec int64) {
	c.mu.Lock()
	c.now = time.Unix(sec, 0)
	c.mu.Unlock()
}

func newTestCoordinator(f *scriptedFetcher, clock *fakeClock) *Coordinator {
	entry := model.Entry{ID: "e1", Options: model.DefaultOptions()}
	return New(entry, func(model.Entry) Fetcher { return f }, WithClock(clock.Now))
}

func invalidAuth() error {
	return model.ErrInvalidAuth(errors.New("401"))
}

func TestAuthBackoffAndRecovery(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(100)
	f := &scriptedFetcher{results: []error{invalidAuth(), invalidAuth()}}
	c := newTestCoordinator(f, clock)
	ctx := context.Background()

	err := c.RequestRefresh(ctx)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindUpdateFailed))
	until, active := c.AuthBackoffUntil()
	require.True(t, active)
	assert.Equal(t, time.Unix(130, 0), until)
	assert.Equal(t, 60*time.Second, c.BackoffDelay())

	clock.Set(115)
	err = c.RequestRefresh(ctx)
	require.Error(t, err)
	assert.Equal(t, "Auth backoff active, retrying in 15s", err.Error())
	assert.Equal(t, 1, f.callCount())
	assert.Equal(t, err, c.LastError())

	clock.Set(131)
	f.results = nil
	require.NoError(t, c.RequestRefresh(ctx))
	_, active = c.AuthBackoffUntil()
	assert.False(t, active)
	assert.Equal(t, BaseBackoff, c.BackoffDelay())
	assert.NotNil(t, c.Data())
	assert.True(t, c.LastUpdateSuccess())
	assert.NoError(t, c.LastError())
}

func TestBackoffSequence(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(0)
	f := &scriptedFetcher{}
	c := newTestCoordinator(f, clock)

	var windows []time.Duration
	now := int64(0)
	for i := 0; i < 7; i++ {
		f.results = []error{invalidAuth()}
		require.Error(t, c.RequestRefresh(context.Background()))
		until, active := c.AuthBackoffUntil()
		require.True(t, active)
		windows = append(windows, until.Sub(time.Unix(now, 0)))
		now = until.Unix()
		clock.Set(now)
	}

	assert.Equal(t, []time.Duration{
		30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second,
		480 * time.Second, 600 * time.Second, 600 * time.Second,
	}, windows)
}

func TestNonAuthErrorDoesNotBackoff(t *testing.T) {
	clock := &fakeClock{}
	clock.Set(0)
	f := &scriptedFetcher{results: []error{model.ErrCannotConnect("", errors.New("timeout"))}}
	c := newTestCoordinator(f, clock)

	require.Error(t, c.RequestRefresh(context.Background()))
	_, active := c.AuthBackoffUntil()
	assert.False(t, active)
	assert.Equal(t, "cannot connect: timeout", c.LastError().Error())
	assert.True(t, model.IsKind(c.LastError(), model.KindUpdateFailed))

	require.NoError(t, c.RequestRefresh(context.Background()))
	assert.Equal(t, 2, f.callCount())
}

func TestFirstRefresh(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{results: []error{invalidAuth()}}
	c := newTestCoordinator(f, clock)

	err := c.FirstRefresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.KindSetupFailed, model.KindOf(err))
	assert.True(t, model.IsKind(err, model.KindInvalidAuth))
	assert.Nil(t, c.Data())
}

func TestListeners(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{}
	c := newTestCoordinator(f, clock)

	var order []string
	var unsubB func()
	c.AddListener(func(*model.RenderResult) { order = append(order, "a") })
	unsubB = c.AddListener(func(*model.RenderResult) {
		order = append(order, "b")
		unsubB()
		unsubB()
	})
	c.AddListener(func(res *model.RenderResult) {
		assert.Same(t, res, c.Data())
		order = append(order, "c")
	})

	require.NoError(t, c.RequestRefresh(context.Background()))
	require.NoError(t, c.RequestRefresh(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "a", "c"}, order)

	f.results = []error{errors.New("boom")}
	require.Error(t, c.RequestRefresh(context.Background()))
	assert.Len(t, order, 5)
}

func TestRequestRefreshSingleFlight(t *testing.T) {
	clock := &fakeClock{}
	f := &scriptedFetcher{block: make(chan struct{})}
	c := newTestCoordinator(f, clock)

	var notified int32
	c.AddListener(func(*model.RenderResult) { atomic.AddInt32(&notified, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.RequestRefresh(context.Background()))
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.block)
	wg.Wait()

	assert.Equal(t, 1, f.callCount())
	assert.EqualValues(t, 1, atomic.LoadInt32(&notified))
}

type gatedFetcher struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (f *gatedFetcher) FetchMap(ctx context.Context) (*model.RenderResult, error) {
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
		return &model.RenderResult{SVG: "<svg/>", Payload: model.NewPayload()}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRequestRefresh_CallerCancelDoesNotAbortSharedFetch(t *testing.T) {
	f := &gatedFetcher{started: make(chan struct{}), release: make(chan struct{})}
	c := New(model.Entry{ID: "e1", Options: model.DefaultOptions()}, func(model.Entry) Fetcher { return f })

	reqCtx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() { first <- c.RequestRefresh(reqCtx) }()
	<-f.started

	joined := make(chan error, 1)
	go func() { joined <- c.RequestRefresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(f.release)
	require.NoError(t, <-joined)
	assert.NotNil(t, c.Data())
	assert.NoError(t, c.LastError())
	assert.True(t, c.LastUpdateSuccess())
}

func TestUpdateSettings(t *testing.T) {
	var built []model.Entry
	factory := func(e model.Entry) Fetcher {
		built = append(built, e)
		return &scriptedFetcher{}
	}
	c := New(model.Entry{ID: "e1", Options: model.DefaultOptions()}, factory)
	assert.Equal(t, 10*time.Minute, c.Interval())

	e := c.Entry()
	e.Options.ScanInterval = 2
	c.UpdateSettings(e)
	assert.Len(t, built, 2)
	assert.Equal(t, 2*time.Minute, c.Interval())
}

func TestShouldBackoff(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"invalid auth":   {err: invalidAuth(), want: true},
		"rate limited":   {err: model.ErrCannotConnect("Rate limited by controller (HTTP 429)", nil), want: true},
		"cannot connect": {err: model.ErrCannotConnect("", errors.New("refused")), want: false},
		"render failed":  {err: model.ErrRenderFailed(errors.New("x")), want: false},
		"plain":          {err: errors.New("rate limited"), want: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, ShouldBackoff(test.err))
		})
	}
}
