package model

import "time"

// Snapshot is one stored successful refresh.
type Snapshot struct {
	ID         int64     `json:"id"`
	EntryID    string    `json:"entry_id"`
	SourceHash string    `json:"source_hash"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	Devices    int       `json:"devices"`
	Clients    int       `json:"clients"`
	VLANs      int       `json:"vlans"`
	Payload    *Payload  `json:"payload,omitempty"`
	SVG        string    `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}
