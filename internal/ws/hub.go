package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// screenEvent routes an event to a preparation screen's room. A zero ScreenID
// means every room.
type screenEvent struct {
	ScreenID uuid.UUID
	Event    Event
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients join the room of their preparation screen; clients without a screen
// (admins, expediters) join the global room and receive everything.
type Hub struct {
	// Registered clients by preparation screen ID; uuid.Nil is the global room
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *screenEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *screenEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.screenID] == nil {
				h.rooms[client.screenID] = make(map[*Client]bool)
			}
			h.rooms[client.screenID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.screenID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.screenID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			if event.ScreenID == uuid.Nil {
				for roomID := range h.rooms {
					h.sendToRoom(roomID, message)
				}
			} else {
				h.sendToRoom(event.ScreenID, message)
				// The global room hears every screen
				h.sendToRoom(uuid.Nil, message)
			}
			h.mu.Unlock()
		}
	}
}

// sendToRoom delivers a marshaled message to every client in a room.
// Callers must hold h.mu.
func (h *Hub) sendToRoom(roomID uuid.UUID, message []byte) {
	for client := range h.rooms[roomID] {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, close and unregister
			close(client.send)
			delete(h.rooms[roomID], client)
			if len(h.rooms[roomID]) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

// BroadcastToScreen sends an event to the clients watching one preparation
// screen plus the global room.
func (h *Hub) BroadcastToScreen(screenID uuid.UUID, event Event) {
	h.broadcast <- &screenEvent{
		ScreenID: screenID,
		Event:    event,
	}
}

// BroadcastAll sends an event to every connected client, e.g. when a new
// order enters the kitchen.
func (h *Hub) BroadcastAll(event Event) {
	h.broadcast <- &screenEvent{Event: event}
}
