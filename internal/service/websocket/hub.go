package websocket

import (
	"context"
	"sync"
	"time"

	"camnet/internal/logger"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// HubService keeps the set of connected viewers and broadcasts messages to
// them. All writes to viewer connections happen on the Run goroutine.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	logger     *logger.Logger

	greeting func() []byte
	onCount  func(n int)
	done     chan struct{}
}

// NewHubService creates a hub. Run must be started before viewers connect.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// SetGreeting sets the message sent to each viewer as it connects. It must
// be called before Run.
func (h *HubService) SetGreeting(fn func() []byte) {
	h.greeting = fn
}

// OnViewerCount registers fn to be called with the new viewer count whenever
// a viewer connects or leaves. It must be called before Run.
func (h *HubService) OnViewerCount(fn func(n int)) {
	h.onCount = fn
}

// Run serves registrations and broadcasts until ctx is done, then
// disconnects every viewer.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

			if h.greeting != nil {
				if msg := h.greeting(); msg != nil {
					h.write(client, msg)
				}
			}
			h.countChanged(count)

		case client := <-h.unregister:
			h.mutex.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			if ok {
				h.logger.Info("Viewer disconnected. Total: %d", count)
				h.countChanged(count)
			}

		case message := <-h.broadcast:
			h.mutex.RLock()
			clients := make([]*websocket.Conn, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mutex.RUnlock()

			for _, client := range clients {
				h.write(client, message)
			}

		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return
		}
	}
}

// write sends message to client and drops the client if that fails.
func (h *HubService) write(client *websocket.Conn, message []byte) {
	client.SetWriteDeadline(time.Now().Add(writeWait))
	if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
		h.logger.Error("Error sending message: %v", err)

		h.mutex.Lock()
		_, ok := h.clients[client]
		delete(h.clients, client)
		count := len(h.clients)
		h.mutex.Unlock()

		client.Close()
		if ok {
			h.countChanged(count)
		}
	}
}

func (h *HubService) countChanged(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}

// Register adds a viewer. After the hub has stopped the connection is
// closed instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for every viewer.
func (h *HubService) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
