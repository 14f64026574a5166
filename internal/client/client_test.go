package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/unifi"
)

type countingAdapter struct {
	calls int
	err   error
}

func (a *countingAdapter) FetchDevices(context.Context, bool) ([]unifi.Record, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return []unifi.Record{{"mac": "11:00:00:00:00:01", "name": "G", "type": "ugw"}}, nil
}

func (a *countingAdapter) FetchClients(context.Context) ([]unifi.Record, error) {
	return nil, nil
}

func (a *countingAdapter) FetchNetworks(context.Context) ([]unifi.Record, error) {
	return nil, nil
}

func entryWith(useCache bool) model.Entry {
	opts := model.DefaultOptions()
	opts.UseCache = useCache
	return model.Entry{ID: "e1", BaseURL: "https://unifi", Site: "default", Options: opts}
}

func TestFetchMap_Cache(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	tests := map[string]struct {
		useCache  bool
		advance   time.Duration
		wantCalls int
		wantSame  bool
	}{
		"cache disabled":  {useCache: false, advance: time.Second, wantCalls: 2},
		"fresh cache hit": {useCache: true, advance: time.Minute, wantCalls: 1, wantSame: true},
		"stale cache":     {useCache: true, advance: DefaultCacheWindow, wantCalls: 2},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			now = time.Unix(1000, 0)
			a := &countingAdapter{}
			c := New(entryWith(test.useCache), nil, WithAdapter(a), WithClock(clock))

			first, err := c.FetchMap(context.Background())
			require.NoError(t, err)
			now = now.Add(test.advance)
			second, err := c.FetchMap(context.Background())
			require.NoError(t, err)

			assert.Equal(t, test.wantCalls, a.calls)
			if test.wantSame {
				assert.Same(t, first, second)
			} else {
				assert.NotSame(t, first, second)
			}
		})
	}
}

func TestFetchMap_ErrorsNotCached(t *testing.T) {
	a := &countingAdapter{err: &unifi.AuthError{StatusCode: 401}}
	c := New(entryWith(true), nil, WithAdapter(a))

	_, err := c.FetchMap(context.Background())
	assert.True(t, model.IsKind(err, model.KindInvalidAuth))
	_, err = c.FetchMap(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, a.calls)
}

func TestMapError(t *testing.T) {
	tests := map[string]struct {
		err      error
		wantKind model.Kind
		wantMsg  string
	}{
		"auth": {
			err:      &unifi.AuthError{StatusCode: 403},
			wantKind: model.KindInvalidAuth,
		},
		"rate limited": {
			err:      &unifi.HTTPError{StatusCode: 429, Path: "/x"},
			wantKind: model.KindCannotConnect,
			wantMsg:  "Rate limited by controller (HTTP 429)",
		},
		"server error": {
			err:      &unifi.HTTPError{StatusCode: 502, Path: "/x"},
			wantKind: model.KindCannotConnect,
		},
		"transport": {
			err:      errors.New("dial tcp: connection refused"),
			wantKind: model.KindCannotConnect,
		},
		"render failure kept": {
			err:      model.ErrRenderFailed(errors.New("bad")),
			wantKind: model.KindRenderFailed,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := MapError(test.err)
			assert.Equal(t, test.wantKind, model.KindOf(err))
			assert.ErrorIs(t, err, test.err)
			if test.wantMsg != "" {
				assert.Contains(t, err.Error(), test.wantMsg)
			}
		})
	}

	assert.NoError(t, MapError(nil))
}

func TestNew_WarnInsecure(t *testing.T) {
	var warned int
	e := entryWith(false)
	e.VerifySSL = false
	New(e, func() { warned++ })
	assert.Equal(t, 1, warned)
}
