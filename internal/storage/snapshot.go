package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/payloadcache"
)

// SnapshotStorage handles snapshot persistence.
type SnapshotStorage struct {
	db *DB
}

// NewSnapshotStorage creates a new snapshot storage handler.
func NewSnapshotStorage(db *DB) *SnapshotStorage {
	return &SnapshotStorage{db: db}
}

// NewSnapshot summarizes a render result taken at ts.
func NewSnapshot(entryID string, res *model.RenderResult, ts time.Time) *model.Snapshot {
	s := &model.Snapshot{EntryID: entryID, SVG: res.SVG, Payload: res.Payload, Timestamp: ts}
	if p := res.Payload; p != nil {
		s.SourceHash = payloadcache.ComputeHash(p)
		s.Nodes = len(p.NodeTypes)
		s.Edges = len(p.Edges)
		s.VLANs = len(p.VLANInfo)
		for _, typ := range p.NodeTypes {
			switch {
			case typ == model.NodeClient:
				s.Clients++
			case typ.IsInfrastructure():
				s.Devices++
			}
		}
	}
	return s
}

// Save stores a snapshot.
func (s *SnapshotStorage) Save(snap *model.Snapshot) error {
	payload, err := json.Marshal(snap.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	query := `INSERT INTO snapshots (entry_id, source_hash, nodes, edges, devices, clients, vlans, payload, svg, timestamp)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.Exec(query,
		snap.EntryID, snap.SourceHash, snap.Nodes, snap.Edges, snap.Devices,
		snap.Clients, snap.VLANs, string(payload), snap.SVG, snap.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	snap.ID = id
	return nil
}

const snapshotColumns = `id, entry_id, source_hash, nodes, edges, devices, clients, vlans, payload, svg, timestamp`

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*model.Snapshot, error) {
	var (
		snap    model.Snapshot
		payload string
		svg     sql.NullString
	)
	if err := row.Scan(&snap.ID, &snap.EntryID, &snap.SourceHash, &snap.Nodes, &snap.Edges,
		&snap.Devices, &snap.Clients, &snap.VLANs, &payload, &svg, &snap.Timestamp); err != nil {
		return nil, err
	}
	snap.SVG = svg.String
	if payload != "" && payload != "null" {
		snap.Payload = model.NewPayload()
		if err := json.Unmarshal([]byte(payload), snap.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload of snapshot %d: %w", snap.ID, err)
		}
	}
	return &snap, nil
}

// Latest returns the most recent snapshot of the entry, or nil.
func (s *SnapshotStorage) Latest(entryID string) (*model.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots
			  WHERE entry_id = ? ORDER BY timestamp DESC, id DESC LIMIT 1`

	snap, err := scanSnapshot(s.db.QueryRow(query, entryID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return snap, nil
}

// History returns the entry's snapshots since a given time, newest first.
func (s *SnapshotStorage) History(entryID string, since time.Time) ([]model.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots
			  WHERE entry_id = ? AND timestamp >= ? ORDER BY timestamp DESC, id DESC`
	return s.query(query, entryID, since)
}

// LatestPerEntry returns the newest snapshot of every entry, ordered by entry ID.
func (s *SnapshotStorage) LatestPerEntry() ([]model.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots
			  WHERE id IN (SELECT MAX(id) FROM snapshots GROUP BY entry_id)
			  ORDER BY entry_id`
	return s.query(query)
}

func (s *SnapshotStorage) query(query string, args ...any) ([]model.Snapshot, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// Count returns the number of stored snapshots of the entry.
func (s *SnapshotStorage) Count(entryID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE entry_id = ?`, entryID).Scan(&count)
	return count, err
}

// Prune deletes snapshots older than before and returns how many were removed.
func (s *SnapshotStorage) Prune(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM snapshots WHERE timestamp < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}

// DeleteEntry removes every snapshot of the entry.
func (s *SnapshotStorage) DeleteEntry(entryID string) error {
	if _, err := s.db.Exec(`DELETE FROM snapshots WHERE entry_id = ?`, entryID); err != nil {
		return fmt.Errorf("failed to delete snapshots of %s: %w", entryID, err)
	}
	return nil
}
