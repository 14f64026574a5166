package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/user/netmap/internal/coordinator"
	"github.com/user/netmap/internal/entity"
	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/presence"
	"github.com/user/netmap/internal/storage"
	"github.com/user/netmap/internal/util"
)

// SetupRetryInterval spaces attempts to set up an entry whose first refresh failed.
const SetupRetryInterval = time.Minute

type loadedEntry struct {
	coord    *coordinator.Coordinator
	tracker  *presence.Tracker
	unlisten []func()
}

func refreshJobName(id string) string { return "refresh:" + id }
func setupJobName(id string) string   { return "setup:" + id }

// SetupEntry validates the entry, awaits its first refresh and schedules it.
// When the first refresh fails the setup is retried by the scheduler.
func (d *Daemon) SetupEntry(ctx context.Context, ec util.EntryConfig) error {
	if err := util.ValidateEntry(ec); err != nil {
		return err
	}
	if _, ok := d.Coordinator(ec.ID); ok {
		return fmt.Errorf("entry %s is already loaded", ec.ID)
	}

	entry := ec.Entry()
	coord := coordinator.New(entry, d.factory)
	if err := coord.FirstRefresh(ctx); err != nil {
		d.scheduler.AddJob(&Job{
			Name:     setupJobName(entry.ID),
			Interval: SetupRetryInterval,
			Run:      d.retrySetup(ec),
		}, SetupRetryInterval)
		return err
	}

	d.load(coord)
	util.Info("Entry %s loaded (%s, site %s)", entry.ID, entry.BaseURL, entry.Site)
	return nil
}

func (d *Daemon) retrySetup(ec util.EntryConfig) func(context.Context) error {
	return func(ctx context.Context) error {
		entry := ec.Entry()
		coord := coordinator.New(entry, d.factory)
		if err := coord.FirstRefresh(ctx); err != nil {
			return err
		}
		d.scheduler.RemoveJob(setupJobName(entry.ID))
		d.load(coord)
		util.Info("Entry %s loaded after retry", entry.ID)
		return nil
	}
}

func (d *Daemon) load(coord *coordinator.Coordinator) {
	entry := coord.Entry()
	le := &loadedEntry{coord: coord, tracker: presence.NewTracker(entry.ID, entry.Options.TrackedMACs())}
	d.attach(le)

	d.saveSnapshot(entry.ID, coord.Data())
	d.payloads.SetTTL(entry.Options.PayloadCacheTTL)

	d.emu.Lock()
	d.entries[entry.ID] = le
	d.order = append(d.order, entry.ID)
	if d.entities == nil && d.registry != nil {
		d.entities = entity.NewCache(d.registry)
	}
	d.emu.Unlock()

	d.scheduler.AddJob(&Job{
		Name:     refreshJobName(entry.ID),
		Interval: coord.Interval(),
		Run:      coord.RequestRefresh,
	}, coord.Interval())
}

// attach feeds the current data to the tracker and registers the per-refresh listeners.
func (d *Daemon) attach(le *loadedEntry) {
	id := le.coord.EntryID()
	le.tracker.Update(le.coord.Data())
	le.unlisten = []func(){
		le.coord.AddListener(le.tracker.Update),
		le.coord.AddListener(func(res *model.RenderResult) { d.saveSnapshot(id, res) }),
	}
}

func (le *loadedEntry) detach() {
	for _, fn := range le.unlisten {
		fn()
	}
	le.unlisten = nil
}

func (d *Daemon) saveSnapshot(entryID string, res *model.RenderResult) {
	if res == nil || d.snapshots == nil {
		return
	}
	if err := d.snapshots.Save(storage.NewSnapshot(entryID, res, time.Now().UTC())); err != nil {
		util.Warn("Entry %s: failed to save snapshot: %v", entryID, err)
	}
}

// UnloadEntry drops the entry's coordinator and cached payloads. The shared
// entity cache is released with the last entry.
func (d *Daemon) UnloadEntry(id string) bool {
	d.scheduler.RemoveJob(setupJobName(id))

	d.emu.Lock()
	le, ok := d.entries[id]
	if ok {
		delete(d.entries, id)
		for i, x := range d.order {
			if x == id {
				d.order = append(d.order[:i:i], d.order[i+1:]...)
				break
			}
		}
	}
	var released *entity.Cache
	if len(d.entries) == 0 {
		released, d.entities = d.entities, nil
	}
	d.emu.Unlock()

	if released != nil {
		released.Unsubscribe()
	}
	if !ok {
		return false
	}

	d.scheduler.RemoveJob(refreshJobName(id))
	le.detach()
	d.payloads.Invalidate(id)
	util.Info("Entry %s unloaded", id)
	return true
}

// UpdateOptions applies new options to a loaded entry. The next refresh uses them.
func (d *Daemon) UpdateOptions(id string, opts model.Options) error {
	d.emu.Lock()
	le, ok := d.entries[id]
	d.emu.Unlock()
	if !ok {
		return fmt.Errorf("unknown entry_id: %s", id)
	}

	opts = opts.Normalized()
	entry := le.coord.Entry()
	entry.Options = opts
	le.coord.UpdateSettings(entry)

	le.detach()
	le.tracker.SetTracked(opts.TrackedMACs())
	d.attach(le)

	d.payloads.Invalidate(id)
	d.payloads.SetTTL(opts.PayloadCacheTTL)
	if job := d.scheduler.GetJob(refreshJobName(id)); job != nil {
		job.SetInterval(le.coord.Interval())
	}
	return nil
}

// Refresh requests a refresh of one entry, or of all entries when id is empty.
func (d *Daemon) Refresh(ctx context.Context, id string) error {
	if id != "" {
		coord, ok := d.Coordinator(id)
		if !ok {
			return fmt.Errorf("unknown entry_id: %s", id)
		}
		return coord.RequestRefresh(ctx)
	}
	var firstErr error
	for _, coord := range d.Coordinators() {
		if err := coord.RequestRefresh(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EntryIDs returns the loaded entries in setup order.
func (d *Daemon) EntryIDs() []string {
	d.emu.RLock()
	defer d.emu.RUnlock()
	return append([]string(nil), d.order...)
}

// Coordinator returns the coordinator of a loaded entry.
func (d *Daemon) Coordinator(id string) (*coordinator.Coordinator, bool) {
	d.emu.RLock()
	defer d.emu.RUnlock()
	le, ok := d.entries[id]
	if !ok {
		return nil, false
	}
	return le.coord, true
}

// Coordinators returns every loaded coordinator in setup order.
func (d *Daemon) Coordinators() []*coordinator.Coordinator {
	d.emu.RLock()
	defer d.emu.RUnlock()
	out := make([]*coordinator.Coordinator, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.entries[id].coord)
	}
	return out
}

// Presence returns the projection tracker of a loaded entry.
func (d *Daemon) Presence(id string) (*presence.Tracker, bool) {
	d.emu.RLock()
	defer d.emu.RUnlock()
	le, ok := d.entries[id]
	if !ok {
		return nil, false
	}
	return le.tracker, true
}

// Entities returns the shared entity cache, or nil when no entry is loaded.
func (d *Daemon) Entities() *entity.Cache {
	d.emu.RLock()
	defer d.emu.RUnlock()
	return d.entities
}

// EntryStatus summarizes one loaded entry.
type EntryStatus struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	LastError    string    `json:"last_error,omitempty"`
	LastUpdate   time.Time `json:"last_update"`
	Nodes        int       `json:"nodes"`
	Edges        int       `json:"edges"`
	BackoffUntil time.Time `json:"backoff_until,omitempty"`
}

func (d *Daemon) entryStatuses() []EntryStatus {
	coords := d.Coordinators()
	out := make([]EntryStatus, 0, len(coords))
	for _, c := range coords {
		st := EntryStatus{ID: c.EntryID(), State: "ready", LastUpdate: c.LastUpdate()}
		if res := c.Data(); res != nil && res.Payload != nil {
			st.Nodes = len(res.Payload.NodeTypes)
			st.Edges = len(res.Payload.Edges)
		} else {
			st.State = "error"
		}
		if err := c.LastError(); err != nil {
			st.LastError = err.Error()
		}
		if until, ok := c.AuthBackoffUntil(); ok {
			st.BackoffUntil = until
		}
		out = append(out, st)
	}
	return out
}
