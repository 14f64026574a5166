package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/netmap/internal/model"
)

func openTestDB(t *testing.T) *SnapshotStorage {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), DBFile))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSnapshotStorage(db)
}

func result(nodes ...string) *model.RenderResult {
	p := model.NewPayload()
	p.NodeTypes = map[string]model.NodeType{"GW": model.NodeGateway, "AP": model.NodeAP, "Laptop": model.NodeClient}
	p.Edges = []model.Edge{{Left: "GW", Right: "AP"}, {Left: "AP", Right: "Laptop", Wireless: true}}
	p.VLANInfo = map[int]model.VLANInfo{10: {ID: 10, Name: "IoT", ClientCount: 1, Clients: []string{"Laptop"}}}
	for _, n := range nodes {
		p.NodeTypes[n] = model.NodeOther
	}
	return &model.RenderResult{SVG: "<svg/>", Payload: p}
}

func TestNewSnapshot(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	snap := NewSnapshot("e1", result("Modem"), ts)

	assert.Equal(t, 4, snap.Nodes)
	assert.Equal(t, 2, snap.Edges)
	assert.Equal(t, 2, snap.Devices)
	assert.Equal(t, 1, snap.Clients)
	assert.Equal(t, 1, snap.VLANs)
	assert.Len(t, snap.SourceHash, 64)
	assert.Equal(t, ts, snap.Timestamp)
}

func TestSnapshotStorage(t *testing.T) {
	s := openTestDB(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	latest, err := s.Latest("e1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := 0; i < 3; i++ {
		snap := NewSnapshot("e1", result(), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Save(snap))
		assert.NotZero(t, snap.ID)
	}
	require.NoError(t, s.Save(NewSnapshot("e2", result("Modem"), base)))

	latest, err = s.Latest("e1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Timestamp.Equal(base.Add(2*time.Hour)))
	assert.Equal(t, "<svg/>", latest.SVG)
	require.NotNil(t, latest.Payload)
	assert.Equal(t, "IoT", latest.Payload.VLANInfo[10].Name)
	assert.Equal(t, model.NodeClient, latest.Payload.NodeTypes["Laptop"])

	history, err := s.History("e1", base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, history, 2)

	perEntry, err := s.LatestPerEntry()
	require.NoError(t, err)
	require.Len(t, perEntry, 2)
	assert.Equal(t, "e1", perEntry[0].EntryID)
	assert.Equal(t, 4, perEntry[1].Nodes)

	removed, err := s.Prune(base.Add(90 * time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	count, err := s.Count("e1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.DeleteEntry("e1"))
	count, err = s.Count("e1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
