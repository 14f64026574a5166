// Package report generates topology reports from stored snapshots.
package report

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/storage"
)

// ErrNoSnapshot is returned when the entry has never refreshed successfully.
var ErrNoSnapshot = errors.New("no snapshot stored for entry")

// Generator creates topology reports.
type Generator struct {
	snapshots *storage.SnapshotStorage
	now       func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(db *storage.DB) *Generator {
	return &Generator{
		snapshots: storage.NewSnapshotStorage(db),
		now:       time.Now,
	}
}

// ReportData holds all data for a report.
type ReportData struct {
	GeneratedAt time.Time
	EntryID     string
	Since       time.Time

	Latest    *model.Snapshot
	History   []model.Snapshot
	Changes   []TopologyChange
	Refreshes int
}

// TopologyChange lists nodes that appeared or vanished between two snapshots.
type TopologyChange struct {
	Added     []string  `json:"added"`
	Removed   []string  `json:"removed"`
	Timestamp time.Time `json:"timestamp"`
}

// Generate creates a report of the entry's snapshots since a given time.
func (g *Generator) Generate(entryID string, since time.Time) (*ReportData, error) {
	latest, err := g.snapshots.Latest(entryID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("%s: %w", entryID, ErrNoSnapshot)
	}

	history, err := g.snapshots.History(entryID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot history: %w", err)
	}

	return &ReportData{
		GeneratedAt: g.now(),
		EntryID:     entryID,
		Since:       since,
		Latest:      latest,
		History:     history,
		Changes:     detectChanges(history),
		Refreshes:   len(history),
	}, nil
}

// detectChanges compares consecutive snapshots ordered newest first.
func detectChanges(history []model.Snapshot) []TopologyChange {
	var changes []TopologyChange

	for i := 0; i < len(history)-1; i++ {
		curr, prev := history[i], history[i+1]
		if curr.SourceHash == prev.SourceHash || curr.Payload == nil || prev.Payload == nil {
			continue
		}
		added, removed := diffNodes(prev.Payload.NodeTypes, curr.Payload.NodeTypes)
		if len(added) == 0 && len(removed) == 0 {
			continue
		}
		changes = append(changes, TopologyChange{
			Added:     added,
			Removed:   removed,
			Timestamp: curr.Timestamp,
		})
	}

	return changes
}

func diffNodes(old, new map[string]model.NodeType) (added, removed []string) {
	for name := range new {
		if _, ok := old[name]; !ok {
			added = append(added, name)
		}
	}
	for name := range old {
		if _, ok := new[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return
}
