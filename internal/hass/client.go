// Package hass reads the Home Assistant entity and device registries over
// the websocket API and keeps them current from registry events.
package hass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mitchellh/mapstructure"

	"github.com/user/netmap/internal/entity"
	"github.com/user/netmap/internal/util"
)

// ErrAuthInvalid is returned when Home Assistant rejects the access token.
var ErrAuthInvalid = errors.New("home assistant rejected the access token")

const (
	minReconnect = time.Second
	maxReconnect = 60 * time.Second
	callTimeout  = 30 * time.Second
)

type message struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success bool            `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Event   *event          `json:"event,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Client is an entity.Registry backed by a Home Assistant instance.
type Client struct {
	wsURL string
	token string

	conn    *websocket.Conn
	writeMu sync.Mutex
	nextID  atomic.Int64
	pmu     sync.Mutex
	pending map[int64]chan message

	mu           sync.RWMutex
	entities     []entity.RegistryEntity
	devices      []entity.RegistryDevice
	states       map[string]entity.State
	entryDomains map[string]string
	watchers     map[int]entity.RegistryWatcher
	nextWatcher  int

	// registry reloads run one at a time, in event order
	qmu      sync.Mutex
	queue    []any
	draining bool
}

// New creates a client for the Home Assistant base URL (http or https).
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse home assistant url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported home assistant url scheme %q", u.Scheme)
	}
	u.Path += "/api/websocket"

	return &Client{
		wsURL:        u.String(),
		token:        token,
		pending:      make(map[int64]chan message),
		states:       make(map[string]entity.State),
		entryDomains: make(map[string]string),
		watchers:     make(map[int]entity.RegistryWatcher),
	}, nil
}

// Start connects, loads the registries and keeps the connection alive until
// ctx is done. Only the first connection attempt is reported.
func (c *Client) Start(ctx context.Context) error {
	done, err := c.connect(ctx)
	if err != nil {
		return err
	}
	go c.maintain(ctx, done)
	return nil
}

func (c *Client) maintain(ctx context.Context, done <-chan struct{}) {
	backoff := minReconnect
	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case <-done:
		}

		util.Warn("Home Assistant connection lost, reconnecting in %s", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		var err error
		done, err = c.connect(ctx)
		if err != nil {
			util.Warn("Home Assistant reconnect failed: %v", err)
			backoff = min(backoff*2, maxReconnect)
			closed := make(chan struct{})
			close(closed)
			done = closed
			continue
		}
		backoff = minReconnect
		// anything may have changed while disconnected
		c.emitEntity(entity.EntityEvent{Action: "reconnect"})
		c.emitDevice(entity.DeviceEvent{Action: "reconnect"})
	}
}

func (c *Client) connect(ctx context.Context) (<-chan struct{}, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial home assistant: %w", err)
	}

	if err := c.authenticate(conn); err != nil {
		conn.Close()
		return nil, err
	}

	c.writeMu.Lock()
	c.conn = conn
	c.writeMu.Unlock()

	done := make(chan struct{})
	go c.readLoop(conn, done)

	if err := c.loadAll(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	for _, typ := range []string{"entity_registry_updated", "device_registry_updated", "state_changed"} {
		if _, err := c.call(ctx, map[string]any{"type": "subscribe_events", "event_type": typ}); err != nil {
			conn.Close()
			return nil, fmt.Errorf("subscribe %s: %w", typ, err)
		}
	}
	util.Info("Connected to Home Assistant at %s", c.wsURL)
	return done, nil
}

func (c *Client) authenticate(conn *websocket.Conn) error {
	var msg message
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", msg.Type)
	}
	if err := conn.WriteJSON(map[string]string{"type": "auth", "access_token": c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return ErrAuthInvalid
	default:
		return fmt.Errorf("unexpected auth response %q", msg.Type)
	}
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			c.failPending()
			return
		}
		switch msg.Type {
		case "result":
			c.pmu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.pmu.Unlock()
			if ok {
				ch <- msg
			}
		case "event":
			if msg.Event != nil {
				c.handleEvent(*msg.Event)
			}
		}
	}
}

func (c *Client) failPending() {
	c.pmu.Lock()
	defer c.pmu.Unlock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends a command and waits for its result.
func (c *Client) call(ctx context.Context, cmd map[string]any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	cmd["id"] = id
	ch := make(chan message, 1)

	c.pmu.Lock()
	c.pending[id] = ch
	c.pmu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(cmd)
	c.writeMu.Unlock()
	if err != nil {
		c.pmu.Lock()
		delete(c.pending, id)
		c.pmu.Unlock()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, errors.New("connection closed")
		}
		if !msg.Success {
			if msg.Error != nil {
				return nil, fmt.Errorf("%s: %s", msg.Error.Code, msg.Error.Message)
			}
			return nil, fmt.Errorf("command %v failed", cmd["type"])
		}
		return msg.Result, nil
	case <-ctx.Done():
		c.pmu.Lock()
		delete(c.pending, id)
		c.pmu.Unlock()
		return nil, ctx.Err()
	}
}

func (c *Client) loadAll(ctx context.Context) error {
	if err := c.loadEntities(ctx); err != nil {
		return err
	}
	if err := c.loadDevices(ctx); err != nil {
		return err
	}

	raw, err := c.call(ctx, map[string]any{"type": "config_entries/get"})
	if err != nil {
		return fmt.Errorf("config entries: %w", err)
	}
	var entries []struct {
		EntryID string `json:"entry_id"`
		Domain  string `json:"domain"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("decode config entries: %w", err)
	}

	raw, err = c.call(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return fmt.Errorf("states: %w", err)
	}
	var states []entity.State
	if err := json.Unmarshal(raw, &states); err != nil {
		return fmt.Errorf("decode states: %w", err)
	}

	c.mu.Lock()
	c.entryDomains = make(map[string]string, len(entries))
	for _, e := range entries {
		c.entryDomains[e.EntryID] = e.Domain
	}
	c.states = make(map[string]entity.State, len(states))
	for _, s := range states {
		c.states[s.EntityID] = s
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) loadEntities(ctx context.Context) error {
	raw, err := c.call(ctx, map[string]any{"type": "config/entity_registry/list"})
	if err != nil {
		return fmt.Errorf("entity registry: %w", err)
	}
	var list []entity.RegistryEntity
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("decode entity registry: %w", err)
	}
	c.mu.Lock()
	c.entities = list
	c.mu.Unlock()
	return nil
}

func (c *Client) loadDevices(ctx context.Context) error {
	raw, err := c.call(ctx, map[string]any{"type": "config/device_registry/list"})
	if err != nil {
		return fmt.Errorf("device registry: %w", err)
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err != nil {
		return fmt.Errorf("decode device registry: %w", err)
	}
	devices := make([]entity.RegistryDevice, 0, len(list))
	for _, item := range list {
		var d entity.RegistryDevice
		if err := decodeDevice(item, &d); err != nil {
			util.Debug("Skipping device registry entry: %v", err)
			continue
		}
		devices = append(devices, d)
	}
	c.mu.Lock()
	c.devices = devices
	c.mu.Unlock()
	return nil
}

// decodeDevice tolerates non-string identifier parts.
func decodeDevice(in map[string]any, out *entity.RegistryDevice) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func (c *Client) handleEvent(ev event) {
	switch ev.EventType {
	case "entity_registry_updated":
		var data map[string]any
		var ee entity.EntityEvent
		if json.Unmarshal(ev.Data, &data) != nil || mapstructure.Decode(data, &ee) != nil {
			return
		}
		c.enqueueReload(ee)

	case "device_registry_updated":
		var data map[string]any
		var de entity.DeviceEvent
		if json.Unmarshal(ev.Data, &data) != nil || mapstructure.Decode(data, &de) != nil {
			return
		}
		c.enqueueReload(de)

	case "state_changed":
		var data struct {
			EntityID string        `json:"entity_id"`
			NewState *entity.State `json:"new_state"`
		}
		if json.Unmarshal(ev.Data, &data) != nil {
			return
		}
		c.mu.Lock()
		if data.NewState == nil {
			delete(c.states, data.EntityID)
		} else {
			c.states[data.EntityID] = *data.NewState
		}
		c.mu.Unlock()
	}
}

// enqueueReload queues a registry event. The read loop must not block on a
// call, so reloads happen on a drain goroutine started when the queue fills.
func (c *Client) enqueueReload(ev any) {
	c.qmu.Lock()
	c.queue = append(c.queue, ev)
	start := !c.draining
	c.draining = true
	c.qmu.Unlock()
	if start {
		go c.drainReloads()
	}
}

// drainReloads reloads each registry once per batch of queued events, then
// emits the batch in arrival order.
func (c *Client) drainReloads() {
	for {
		c.qmu.Lock()
		batch := c.queue
		c.queue = nil
		if len(batch) == 0 {
			c.draining = false
			c.qmu.Unlock()
			return
		}
		c.qmu.Unlock()

		var entities, devices bool
		for _, ev := range batch {
			switch ev.(type) {
			case entity.EntityEvent:
				entities = true
			case entity.DeviceEvent:
				devices = true
			}
		}
		if entities {
			if err := c.loadEntities(context.Background()); err != nil {
				util.Warn("Reloading entity registry: %v", err)
			}
		}
		if devices {
			if err := c.loadDevices(context.Background()); err != nil {
				util.Warn("Reloading device registry: %v", err)
			}
		}
		for _, ev := range batch {
			switch ev := ev.(type) {
			case entity.EntityEvent:
				c.emitEntity(ev)
			case entity.DeviceEvent:
				c.emitDevice(ev)
			}
		}
	}
}

func (c *Client) close() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
}

func (c *Client) Entities() []entity.RegistryEntity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]entity.RegistryEntity(nil), c.entities...)
}

func (c *Client) Devices() []entity.RegistryDevice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]entity.RegistryDevice(nil), c.devices...)
}

func (c *Client) States() []entity.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.State, 0, len(c.states))
	for _, s := range c.states {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

func (c *Client) State(entityID string) (entity.State, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.states[entityID]
	return s, ok
}

func (c *Client) ConfigEntryDomain(configEntryID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entryDomains[configEntryID]
}

func (c *Client) Watch(w entity.RegistryWatcher) func() {
	c.mu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = w
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.watchers, id)
		c.mu.Unlock()
	}
}

func (c *Client) snapshotWatchers() []entity.RegistryWatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]int, 0, len(c.watchers))
	for id := range c.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]entity.RegistryWatcher, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.watchers[id])
	}
	return out
}

func (c *Client) emitEntity(ev entity.EntityEvent) {
	for _, w := range c.snapshotWatchers() {
		w.OnEntityUpdated(ev)
	}
}

func (c *Client) emitDevice(ev entity.DeviceEvent) {
	for _, w := range c.snapshotWatchers() {
		w.OnDeviceUpdated(ev)
	}
}
