package websocket

import (
	"bytes"
	"encoding/json"
	"sync"

	"costsim/pkg/logging"
)

// jsonBufferPool reuses encode buffers across Broadcast calls instead
// of allocating one per published Result.
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub fans a stream of simulator.Result snapshots out to every
// connected WebSocket subscriber.
//
// Responsibilities:
// - register/unregister WebSocket clients as they connect and disconnect
// - broadcast each new Result to every registered client
// - drop clients whose send buffer is full rather than block the broadcaster
// - guard the client set with a RWMutex for concurrent register/unregister/count
//
// Usage:
// 1. hub := NewHub()
// 2. go hub.Run()
// 3. hub.BroadcastResultUpdate(result)
type Hub struct {
	clients map[*Client]bool

	broadcast chan []byte

	register chan *Client

	unregister chan *Client

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the Hub's event loop; it must run in its own goroutine
// (go hub.Run()). Slow clients are identified under a read lock and
// removed under a write lock so a full send buffer never blocks
// register/unregister.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			logging.L().Info("websocket client connected", logging.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			logging.L().Info("websocket client disconnected", logging.Int("total_clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				count := len(h.clients)
				h.mu.Unlock()
				logging.L().Warn("dropped slow websocket clients",
					logging.Int("removed", len(toRemove)),
					logging.Int("total_clients", count))
			}
		}
	}
}

// Broadcast encodes message once into a pooled buffer and fans it out
// to every connected client.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		logging.L().Error("failed to marshal broadcast message", logging.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)

	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastResultUpdate отправляет последний Result всем подписчикам.
func (h *Hub) BroadcastResultUpdate(result interface{}) {
	h.Broadcast(NewResultUpdateMessage(result))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
