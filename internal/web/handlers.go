package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/user/netmap/internal/coordinator"
	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/presence"
	"github.com/user/netmap/internal/render"
	"github.com/user/netmap/internal/svg"
	"github.com/user/netmap/internal/util"
)

// ThemeBackgroundHeader carries the background colour of a re-themed SVG.
const ThemeBackgroundHeader = "X-Theme-Background"

// Handlers contains HTTP handlers.
type Handlers struct {
	host     Host
	enricher *Enricher
}

// StatusResponse is the body of the status endpoint.
type StatusResponse struct {
	State             string     `json:"state"`
	LastError         string     `json:"last_error,omitempty"`
	LastUpdateSuccess bool       `json:"last_update_success"`
	LastUpdate        *time.Time `json:"last_update,omitempty"`
	BackoffUntil      *time.Time `json:"backoff_until,omitempty"`
}

// data returns the coordinator and its latest result, or writes a 404.
func (h *Handlers) data(w http.ResponseWriter, r *http.Request) (*coordinator.Coordinator, *model.RenderResult, bool) {
	coord, ok := h.host.Coordinator(chi.URLParam(r, "entryID"))
	if !ok {
		http.NotFound(w, r)
		return nil, nil, false
	}
	res := coord.Data()
	if res == nil {
		http.NotFound(w, r)
		return nil, nil, false
	}
	return coord, res, true
}

// SVG serves the rendered map, re-themed when svg_theme or icon_set is given.
func (h *Handlers) SVG(w http.ResponseWriter, r *http.Request) {
	coord, res, ok := h.data(w, r)
	if !ok {
		return
	}

	settings := coord.Entry().Options.RenderSettings()
	theme, iconSet, override := themeOverride(r, settings)

	body := res.SVG
	if override {
		w.Header().Set(ThemeBackgroundHeader, svg.ThemeBackground(theme))
		if p := res.Payload; p != nil && len(p.Edges) > 0 && len(p.NodeTypes) > 0 {
			wan := res.WanInfo
			if !settings.ShowWAN {
				wan = nil
			}
			body = render.SVG(p.Edges, p.NodeTypes, settings, theme, iconSet, wan)
		}
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write([]byte(body))
}

// themeOverride reads the query overrides; unknown values are ignored.
func themeOverride(r *http.Request, s model.RenderSettings) (theme, iconSet string, override bool) {
	theme, iconSet = s.SVGTheme, s.IconSet
	if theme == "" {
		theme = svg.DefaultTheme
	}
	if iconSet == "" {
		iconSet = svg.DefaultIconSet
	}
	q := r.URL.Query()
	if t := q.Get("svg_theme"); t != "" {
		if _, known := svg.LookupTheme(t); known {
			theme, override = t, true
		}
	}
	if i := q.Get("icon_set"); i != "" && svg.KnownIconSet(i) {
		iconSet, override = i, true
	}
	return theme, iconSet, override
}

// Payload serves the enriched payload.
func (h *Handlers) Payload(w http.ResponseWriter, r *http.Request) {
	coord, res, ok := h.data(w, r)
	if !ok || res.Payload == nil {
		if ok {
			http.NotFound(w, r)
		}
		return
	}
	writeJSON(w, h.enricher.Enrich(coord.EntryID(), res.Payload))
}

// Status reports whether the entry has data.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	coord, ok := h.host.Coordinator(chi.URLParam(r, "entryID"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, statusOf(coord))
}

func statusOf(coord *coordinator.Coordinator) StatusResponse {
	resp := StatusResponse{State: "ready", LastUpdateSuccess: coord.LastUpdateSuccess()}
	if coord.Data() == nil {
		resp.State = "error"
		if err := coord.LastError(); err != nil {
			resp.LastError = err.Error()
		}
	}
	if t := coord.LastUpdate(); !t.IsZero() {
		resp.LastUpdate = &t
	}
	if until, ok := coord.AuthBackoffUntil(); ok {
		resp.BackoffUntil = &until
	}
	return resp
}

// Sensors serves the presence and aggregate projections.
func (h *Handlers) Sensors(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	coord, ok := h.host.Coordinator(entryID)
	if !ok {
		http.NotFound(w, r)
		return
	}
	tracker, ok := h.host.Presence(entryID)
	if !ok {
		tracker = presence.NewTracker(entryID, coord.Entry().Options.TrackedMACs())
	}
	writeJSON(w, tracker.Snapshot(coord.Data()))
}

// RefreshResponse is the body of the refresh service.
type RefreshResponse struct {
	Refreshed []string          `json:"refreshed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// Refresh requests a refresh of one entry (entry_id) or of all entries.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var targets []*coordinator.Coordinator
	if id := r.URL.Query().Get("entry_id"); id != "" {
		coord, ok := h.host.Coordinator(id)
		if !ok {
			writeError(w, fmt.Errorf("unknown entry_id: %s", id), http.StatusNotFound)
			return
		}
		targets = append(targets, coord)
	} else {
		targets = h.host.Coordinators()
	}

	resp := RefreshResponse{Refreshed: []string{}}
	for _, coord := range targets {
		if err := coord.RequestRefresh(r.Context()); err != nil {
			util.Warn("Refresh of %s failed: %v", coord.EntryID(), err)
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[coord.EntryID()] = err.Error()
			continue
		}
		resp.Refreshed = append(resp.Refreshed, coord.EntryID())
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.Debug("Encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
