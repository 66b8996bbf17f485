package broadcast

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"PrimeBoard/internal/observability"
	"PrimeBoard/internal/state"
)

// Source yields the current aggregate snapshot for newly connected viewers.
type Source interface {
	Snapshot() state.Snapshot
}

// wireMessage is the push frame viewers receive: the socket-level event name
// plus the full aggregate snapshot.
type wireMessage struct {
	Event string         `json:"event"`
	Data  state.Snapshot `json:"data"`
}

// PushEventName is the event label on every frame pushed to viewers.
const PushEventName = "updateLeaderboard"

// Hub owns the set of connected viewers and fans the latest snapshot out to
// all of them. All viewer-set mutations and all writes into viewer send
// queues happen on the single Run goroutine, so a send never races a close.
// Delivery is monotonic-latest: a slow viewer's stale pending frame is
// replaced by the newest one, never queued without bound.
type Hub struct {
	source     Source
	register   chan *Viewer
	unregister chan *Viewer
	publish    chan state.Snapshot
	viewers    map[uuid.UUID]*Viewer
	done       chan struct{}
	log        zerolog.Logger
	metrics    *observability.Metrics
}

func NewHub(source Source, log zerolog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		source:     source,
		register:   make(chan *Viewer),
		unregister: make(chan *Viewer),
		publish:    make(chan state.Snapshot, 16),
		viewers:    make(map[uuid.UUID]*Viewer),
		done:       make(chan struct{}),
		log:        log,
		metrics:    metrics,
	}
}

// Publish hands a new snapshot to the hub for fan-out. Called by the
// aggregator after every state-changing apply.
func (h *Hub) Publish(snap state.Snapshot) {
	select {
	case h.publish <- snap:
	case <-h.done:
	}
}

// Attach registers a WebSocket connection as a viewer and starts its pumps.
// The viewer immediately receives the current snapshot, even before any
// mutation has happened.
func (h *Hub) Attach(conn *websocket.Conn) *Viewer {
	v := newViewer(h, conn)
	select {
	case h.register <- v:
	case <-h.done:
		conn.Close()
		return v
	}
	go v.writePump()
	go v.readPump()
	return v
}

// Run services register/unregister/publish until ctx is canceled.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		for id, v := range h.viewers {
			delete(h.viewers, id)
			close(v.send)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case v := <-h.register:
			h.viewers[v.id] = v
			v.offer(h.marshal(h.source.Snapshot()))
			h.log.Info().Str("viewer", v.id.String()).Int("viewers", len(h.viewers)).Msg("viewer connected")
			if h.metrics != nil {
				h.metrics.ViewersConnected.Set(float64(len(h.viewers)))
			}

		case v := <-h.unregister:
			if _, ok := h.viewers[v.id]; !ok {
				continue
			}
			delete(h.viewers, v.id)
			close(v.send)
			h.log.Info().Str("viewer", v.id.String()).Int("viewers", len(h.viewers)).Msg("viewer disconnected")
			if h.metrics != nil {
				h.metrics.ViewersConnected.Set(float64(len(h.viewers)))
				h.metrics.ViewersDropped.Inc()
			}

		case snap := <-h.publish:
			payload := h.marshal(snap)
			for _, v := range h.viewers {
				v.offer(payload)
				if h.metrics != nil {
					h.metrics.ViewerSends.Inc()
				}
			}
		}
	}
}

func (h *Hub) marshal(snap state.Snapshot) []byte {
	payload, err := json.Marshal(wireMessage{Event: PushEventName, Data: snap})
	if err != nil {
		// Snapshot is plain data; marshal cannot realistically fail.
		h.log.Error().Err(err).Msg("snapshot marshal failed")
		return []byte("{}")
	}
	return payload
}

// requestRemove asks the hub to drop a viewer. Safe to call more than once
// and after the hub has stopped.
func (h *Hub) requestRemove(v *Viewer) {
	select {
	case h.unregister <- v:
	case <-h.done:
	}
}
