/*
ws.go - WebSocket snapshot push

PURPOSE:
  Bridges the notification bus onto WebSocket connections so the browser
  receives fresh slot and history snapshots without polling. Each
  connection gets its own bus subscriptions; closing the socket (or the
  client going away) unsubscribes it.

WIRE FORMAT:
  One JSON message per snapshot:
    {"type": "slots",   "data": [ ...SlotDTO ]}
    {"type": "history", "data": [ ...HistoryRecordDTO ]}
    {"type": "status",  "data": "connecting" | "connected" | "offline"}
  The status message carries the connection-state signal: a store outage
  shows up here, never as a booking failure.

CONCURRENCY:
  gorilla/websocket allows one concurrent writer per connection. All
  writes funnel through a single writer goroutine fed by a channel; bus
  callbacks only enqueue.

SEE ALSO:
  - parking/bus.go: The subscription source
  - server.go: Route registration
*/
package api

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/warp/parking-engine/parking"
)

var upgrader = websocket.Upgrader{
	// The API already sits behind CORS; the socket accepts the same
	// browser origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ServeWS upgrades the request and streams snapshots until the client
// disconnects.
// GET /api/ws
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	viewer := identityFrom(r)
	outbound := make(chan wsMessage, 8)
	done := make(chan struct{})

	unsubSlots := h.Bus.SubscribeSlots(func(slots []parking.Slot) {
		enqueue(outbound, done, wsMessage{Type: "slots", Data: toSlotDTOs(slots, viewer)})
	})
	unsubHistory := h.Bus.SubscribeHistory(func(records []parking.HistoryRecord) {
		enqueue(outbound, done, wsMessage{Type: "history", Data: toHistoryDTOs(records)})
	})
	unsubStatus := h.Bus.SubscribeStatus(func(state parking.ConnectionState) {
		enqueue(outbound, done, wsMessage{Type: "status", Data: string(state)})
	})

	cleanup := func() {
		unsubSlots()
		unsubHistory()
		unsubStatus()
		conn.Close()
	}

	// Writer: the only goroutine touching the connection for writes.
	go func() {
		defer cleanup()
		for {
			select {
			case <-done:
				return
			case msg := <-outbound:
				if err := conn.WriteJSON(msg); err != nil {
					log.Printf("ws: write failed: %v", err)
					return
				}
			}
		}
	}()

	// Reader: drains control frames and detects disconnect.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("ws: read failed: %v", err)
				}
				return
			}
		}
	}()
}

// enqueue drops the message when the connection cannot keep up; the next
// snapshot supersedes it anyway.
func enqueue(out chan wsMessage, done chan struct{}, msg wsMessage) {
	select {
	case <-done:
	case out <- msg:
	default:
	}
}
