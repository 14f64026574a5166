package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/netmap/internal/report"
	"github.com/user/netmap/internal/storage"
)

// DefaultHistoryWindow is used when no since parameter is given.
const DefaultHistoryWindow = 24 * time.Hour

// HistoryHandlers serve the recorded snapshots of an entry.
type HistoryHandlers struct {
	host      Host
	snapshots *storage.SnapshotStorage
	reports   *report.Generator
	now       func() time.Time
}

// NewHistoryHandlers creates history handlers over db.
func NewHistoryHandlers(host Host, db *storage.DB) *HistoryHandlers {
	return &HistoryHandlers{
		host:      host,
		snapshots: storage.NewSnapshotStorage(db),
		reports:   report.NewGenerator(db),
		now:       time.Now,
	}
}

// HistoryPoint is one refresh's counts.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Devices   int       `json:"devices"`
	Clients   int       `json:"clients"`
	VLANs     int       `json:"vlans"`
}

func (h *HistoryHandlers) since(r *http.Request) time.Time {
	window := DefaultHistoryWindow
	if s := r.URL.Query().Get("since"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			window = d
		}
	}
	return h.now().Add(-window).UTC()
}

// History returns the entry's refresh counts since ?since= (a duration), oldest first.
func (h *HistoryHandlers) History(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	snaps, err := h.snapshots.History(entryID, h.since(r))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	points := make([]HistoryPoint, len(snaps))
	for i, s := range snaps {
		points[len(snaps)-1-i] = HistoryPoint{
			Timestamp: s.Timestamp,
			Nodes:     s.Nodes,
			Edges:     s.Edges,
			Devices:   s.Devices,
			Clients:   s.Clients,
			VLANs:     s.VLANs,
		}
	}
	writeJSON(w, points)
}

// Changes returns nodes added and removed between consecutive refreshes, newest first.
func (h *HistoryHandlers) Changes(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	data, err := h.reports.Generate(entryID, h.since(r))
	if errors.Is(err, report.ErrNoSnapshot) {
		writeJSON(w, []report.TopologyChange{})
		return
	}
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if data.Changes == nil {
		data.Changes = []report.TopologyChange{}
	}
	writeJSON(w, data.Changes)
}

// Mermaid renders the live topology as a Mermaid flowchart.
func (h *HistoryHandlers) Mermaid(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")

	coord, ok := h.host.Coordinator(entryID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	res := coord.Data()
	if res == nil || res.Payload == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(report.GenerateTopologyDiagram(res.Payload)))
}
