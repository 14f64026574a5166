package tui

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/storage"
)

func samplePayload() *model.Payload {
	p := model.NewPayload()
	p.Edges = []model.Edge{{Left: "Main GW", Right: "Office AP"}, {Left: "Office AP", Right: "Laptop", Wireless: true}}
	p.NodeTypes = map[string]model.NodeType{"Main GW": model.NodeGateway, "Office AP": model.NodeAP, "Laptop": model.NodeClient}
	p.VLANInfo = map[int]model.VLANInfo{
		30: {ID: 30, Name: "Cameras", ClientCount: 0},
		10: {ID: 10, Name: "IoT", ClientCount: 1, Clients: []string{"Laptop"}},
	}
	p.APClientCounts = map[string]int{"Office AP": 1}
	return p
}

func TestFetchDashboardData(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, storage.DBFile))
	require.NoError(t, err)
	defer db.Close()

	snaps := storage.NewSnapshotStorage(db)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"home", "office"} {
		res := &model.RenderResult{SVG: "<svg/>", Payload: samplePayload()}
		require.NoError(t, snaps.Save(storage.NewSnapshot(id, res, ts)))
	}

	data, err := fetchDashboardData(db, dir)
	require.NoError(t, err)
	assert.Zero(t, data.DaemonPID)
	require.Len(t, data.Entries, 2)
	assert.Equal(t, 3, data.Entries[0].Snapshot.Nodes)
	assert.Empty(t, data.Entries[0].State)
}

func TestDashboard(t *testing.T) {
	data := &DashboardData{Entries: []EntryInfo{
		{Snapshot: model.Snapshot{EntryID: "home", Nodes: 3, Payload: samplePayload()}, State: "ready"},
		{Snapshot: model.Snapshot{EntryID: "office"}},
	}}
	d := NewDashboard(data, 100, 40)

	view := d.View()
	assert.Contains(t, view, "UniFi Network Map")
	assert.Contains(t, view, "VLANs: home")
	assert.Less(t, strings.Index(view, "IoT"), strings.Index(view, "Cameras"))
	assert.Contains(t, view, "Office AP")

	d.Move(5)
	assert.Equal(t, 1, d.selected)
	assert.Contains(t, d.View(), "No VLANs")

	d.SetData(&DashboardData{Entries: data.Entries[:1]})
	assert.Equal(t, 0, d.selected)

	d.SetData(&DashboardData{})
	d.Move(-1)
	assert.Equal(t, 0, d.selected)
	assert.Contains(t, d.View(), "No snapshots recorded yet")
}

func TestRenderBar(t *testing.T) {
	tests := map[string]struct {
		value, total int
		filled       int
	}{
		"half":     {value: 5, total: 10, filled: 5},
		"over":     {value: 20, total: 10, filled: 10},
		"no total": {value: 0, total: 0, filled: 0},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			bar := RenderBar(tt.value, tt.total, 10)
			assert.Equal(t, tt.filled, strings.Count(bar, "█"))
			assert.Equal(t, 10-tt.filled, strings.Count(bar, "░"))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
