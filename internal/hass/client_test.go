package hass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/entity"
)

type fakeHA struct {
	t        *testing.T
	token    string
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	entities []map[string]any
	lists    int
}

func (f *fakeHA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/websocket" {
		http.NotFound(w, r)
		return
	}
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	f.send(map[string]any{"type": "auth_required"})
	var auth map[string]any
	if conn.ReadJSON(&auth) != nil {
		return
	}
	if auth["access_token"] != f.token {
		f.send(map[string]any{"type": "auth_invalid"})
		return
	}
	f.send(map[string]any{"type": "auth_ok"})

	for {
		var cmd map[string]any
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		var result any
		switch cmd["type"] {
		case "config/entity_registry/list":
			f.mu.Lock()
			result = f.entities
			f.lists++
			f.mu.Unlock()
		case "config/device_registry/list":
			result = []map[string]any{{
				"id":             "dev1",
				"identifiers":    [][]any{{"unifi", "aa:bb:cc:00:00:01"}},
				"connections":    [][]any{{"mac", "aa:bb:cc:00:00:01"}},
				"config_entries": []string{"ce1"},
				"name":           "Office AP",
			}}
		case "config_entries/get":
			result = []map[string]any{{"entry_id": "ce1", "domain": "unifi"}}
		case "get_states":
			result = []map[string]any{{
				"entity_id":    "device_tracker.phone",
				"state":        "home",
				"attributes":   map[string]any{"mac": "aa:bb:cc:00:00:02"},
				"last_changed": "2024-05-01T10:00:00.123456+00:00",
			}}
		}
		f.send(map[string]any{"id": cmd["id"], "type": "result", "success": true, "result": result})
	}
}

func (f *fakeHA) send(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NoError(f.t, f.conn.WriteJSON(v))
}

type recordingWatcher struct {
	mu     sync.Mutex
	events []entity.EntityEvent
}

func (w *recordingWatcher) OnEntityUpdated(ev entity.EntityEvent) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.mu.Unlock()
}

func (w *recordingWatcher) OnDeviceUpdated(entity.DeviceEvent) {}

func (w *recordingWatcher) Unsubscribe() {}

func (w *recordingWatcher) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func TestClient_LoadsRegistries(t *testing.T) {
	ha := &fakeHA{t: t, token: "secret", entities: []map[string]any{
		{"entity_id": "sensor.ap_clients", "unique_id": "clients-aa:bb:cc:00:00:01", "platform": "unifi", "device_id": "dev1", "disabled_by": nil},
	}}
	srv := httptest.NewServer(ha)
	defer srv.Close()

	c, err := New(srv.URL, "secret")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	require.Len(t, c.Entities(), 1)
	assert.True(t, c.Entities()[0].Enabled())
	require.Len(t, c.Devices(), 1)
	assert.Equal(t, [2]string{"unifi", "aa:bb:cc:00:00:01"}, c.Devices()[0].Identifiers[0])
	assert.Equal(t, "unifi", c.ConfigEntryDomain("ce1"))

	st, ok := c.State("device_tracker.phone")
	require.True(t, ok)
	assert.Equal(t, "home", st.State)
	assert.Equal(t, 2024, st.LastChanged.Year())

	cache := entity.NewCache(c)
	assert.Equal(t, "sensor.ap_clients", cache.Primary()["aa:bb:cc:00:00:01"])
	assert.Equal(t, "device_tracker.phone", cache.Primary()["aa:bb:cc:00:00:02"])
}

func TestClient_RegistryEvents(t *testing.T) {
	ha := &fakeHA{t: t, token: "secret"}
	srv := httptest.NewServer(ha)
	defer srv.Close()

	c, err := New(srv.URL, "secret")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	w := &recordingWatcher{}
	c.Watch(w)

	ha.mu.Lock()
	ha.entities = []map[string]any{{"entity_id": "sensor.new", "platform": "unifi"}}
	ha.mu.Unlock()
	ha.send(map[string]any{"id": 4, "type": "event", "event": map[string]any{
		"event_type": "entity_registry_updated",
		"data":       map[string]any{"action": "create", "entity_id": "sensor.new"},
	}})

	require.Eventually(t, func() bool { return w.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "sensor.new", w.events[0].EntityID)
	assert.Len(t, c.Entities(), 1)

	ha.send(map[string]any{"id": 6, "type": "event", "event": map[string]any{
		"event_type": "state_changed",
		"data":       map[string]any{"entity_id": "device_tracker.phone", "new_state": nil},
	}})
	require.Eventually(t, func() bool {
		_, ok := c.State("device_tracker.phone")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClient_RegistryEventsInOrder(t *testing.T) {
	ha := &fakeHA{t: t, token: "secret"}
	srv := httptest.NewServer(ha)
	defer srv.Close()

	c, err := New(srv.URL, "secret")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	w := &recordingWatcher{}
	c.Watch(w)

	ids := []string{"sensor.a", "sensor.b", "sensor.c"}
	for i, id := range ids {
		ha.mu.Lock()
		ha.entities = nil
		for _, prev := range ids[:i+1] {
			ha.entities = append(ha.entities, map[string]any{"entity_id": prev, "platform": "unifi"})
		}
		ha.mu.Unlock()
		ha.send(map[string]any{"id": 10 + i, "type": "event", "event": map[string]any{
			"event_type": "entity_registry_updated",
			"data":       map[string]any{"action": "create", "entity_id": id},
		}})
	}

	require.Eventually(t, func() bool { return w.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	w.mu.Lock()
	for i, id := range ids {
		assert.Equal(t, id, w.events[i].EntityID)
	}
	w.mu.Unlock()
	assert.Len(t, c.Entities(), 3)

	ha.mu.Lock()
	defer ha.mu.Unlock()
	// one load at start plus at most one per event
	assert.LessOrEqual(t, ha.lists, 4)
}

func TestClient_InvalidToken(t *testing.T) {
	srv := httptest.NewServer(&fakeHA{t: t, token: "secret"})
	defer srv.Close()

	c, err := New(srv.URL, "wrong")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Start(context.Background()), ErrAuthInvalid)
}

func TestNew_URL(t *testing.T) {
	c, err := New("https://ha.local:8123/", "t")
	require.NoError(t, err)
	assert.Equal(t, "wss://ha.local:8123/api/websocket", c.wsURL)

	_, err = New("ftp://ha.local", "t")
	assert.Error(t, err)
}
