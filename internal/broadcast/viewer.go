package broadcast

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a viewer.
	writeWait = 10 * time.Second

	// pongWait is how long a viewer may stay silent before it is dropped.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = 30 * time.Second

	// maxInboundSize caps inbound frames; viewers are push-only.
	maxInboundSize = 512
)

// Viewer is one downstream WebSocket connection receiving pushed snapshots.
type Viewer struct {
	id   uuid.UUID
	hub  *Hub
	conn *websocket.Conn

	// send carries at most one pending frame; the hub replaces a stale
	// pending frame instead of queueing (monotonic-latest delivery).
	send chan []byte
}

func newViewer(h *Hub, conn *websocket.Conn) *Viewer {
	return &Viewer{
		id:   uuid.New(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, 1),
	}
}

// ID returns the viewer's connection identity.
func (v *Viewer) ID() uuid.UUID {
	return v.id
}

// offer queues a frame for the viewer without ever blocking the hub: if a
// stale frame is still pending it is discarded in favor of the new one.
// Only called from the hub's Run goroutine.
func (v *Viewer) offer(payload []byte) {
	select {
	case v.send <- payload:
		return
	default:
	}

	select {
	case <-v.send:
	default:
	}

	select {
	case v.send <- payload:
	default:
	}
}

// writePump drains the send queue onto the connection and keeps the
// connection alive with pings. A write failure drops only this viewer.
func (v *Viewer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				v.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				v.hub.requestRemove(v)
				return
			}

		case <-ticker.C:
			v.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				v.hub.requestRemove(v)
				return
			}
		}
	}
}

// readPump discards inbound frames and detects closure; viewers never send
// application data.
func (v *Viewer) readPump() {
	defer func() {
		v.hub.requestRemove(v)
		v.conn.Close()
	}()

	v.conn.SetReadLimit(maxInboundSize)
	v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		v.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}
