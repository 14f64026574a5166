package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/user/netmap/internal/model"
	"github.com/user/netmap/internal/util"
)

// Subscription termination codes.
var (
	ErrNotFound = errors.New("not_found")
	ErrNoData   = errors.New("no_data")
)

const writeWait = 10 * time.Second

// Message is one frame sent to a subscriber.
type Message struct {
	Payload *model.EnrichedPayload `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Subscription streams enriched payloads of one entry. Only the latest
// undelivered payload is kept.
type Subscription struct {
	C <-chan *model.EnrichedPayload

	ch          chan *model.EnrichedPayload
	mu          sync.Mutex
	unsubscribe func()
	done        chan struct{}
	once        sync.Once
}

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close detaches from the coordinator. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.unsubscribe()
		close(s.done)
	})
}

// push replaces any pending payload with p.
func (s *Subscription) push(p *model.EnrichedPayload) {
	for {
		select {
		case s.ch <- p:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Subscribe sends the current enriched payload and then one per successful refresh
// until ctx is done or Close is called.
func Subscribe(ctx context.Context, host Host, enricher *Enricher, entryID string) (*Subscription, error) {
	coord, ok := host.Coordinator(entryID)
	if !ok {
		return nil, ErrNotFound
	}
	if res := coord.Data(); res == nil || res.Payload == nil {
		return nil, ErrNoData
	}

	ch := make(chan *model.EnrichedPayload, 1)
	sub := &Subscription{C: ch, ch: ch, done: make(chan struct{})}

	// Holding mu while sending the initial payload orders it before any refresh.
	sub.mu.Lock()
	sub.unsubscribe = coord.AddListener(func(res *model.RenderResult) {
		if res == nil || res.Payload == nil {
			return
		}
		sub.mu.Lock()
		defer sub.mu.Unlock()
		sub.push(enricher.Enrich(entryID, res.Payload))
	})
	sub.push(enricher.Enrich(entryID, coord.Data().Payload))
	sub.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Subscribe upgrades to a websocket and streams {payload: ...} messages.
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Debug("Websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	entryID := chi.URLParam(r, "entryID")
	sub, err := Subscribe(ctx, h.host, h.enricher, entryID)
	if err != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(Message{Error: err.Error()})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, err.Error()))
		return
	}
	defer sub.Close()

	// Reads only detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Payload: p}); err != nil {
				util.Debug("Subscriber %s for %s gone: %v", r.RemoteAddr, entryID, err)
				return
			}
		}
	}
}
