// Package ws is the realtime transport: one hub, one goroutine pair per
// connection, room subscriptions fed by full snapshots.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/presence"
	"github.com/agora/internal/service"
	"github.com/agora/internal/storage"
)

type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	total    int
	maxConns int

	core    *service.Core
	tracker *presence.Tracker

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(core *service.Core, tracker *presence.Tracker, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		core:       core,
		tracker:    tracker,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.detach()
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	if _, ok := h.clients[c.userID]; !ok {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Connecting counts as a heartbeat.
	h.tracker.Heartbeat(ctx, c.userID, c.userName)

	unsub, err := h.tracker.SubscribeOnline(ctx, func(users []model.PresenceRecord) {
		h.sendToClient(c, OutgoingMessage{Type: EventOnlineUsers, Payload: OnlinePayload{Users: users}})
	})
	if err != nil {
		logger.Errorf("ws online subscribe user=%s: %v", c.userID, err)
		return
	}
	c.subsMu.Lock()
	c.onlineSub = unsub
	c.subsMu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	lastClient := len(clients) == 0
	if lastClient {
		delete(h.clients, c.userID)
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.detach()
	c.Close()

	// The lease lapses on its own either way; dropping it now just makes the
	// roster honest sooner. Only when the user's last tab is gone.
	if lastClient {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.tracker.Leave(ctx, c.userID)
	}
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventJoinRoom:
		h.handleJoinRoom(ctx, c, msg)
	case EventLeaveRoom:
		h.handleLeaveRoom(c, msg)
	case EventNewMessage:
		h.handleNewMessage(ctx, c, msg)
	case EventEditMessage:
		h.handleEditMessage(ctx, c, msg)
	case EventDeleteMsg:
		h.handleDeleteMessage(ctx, c, msg)
	case EventHeartbeat:
		h.handleHeartbeat(ctx, c)
	case EventOpenDirect:
		h.handleOpenDirect(c, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

func (h *Hub) handleJoinRoom(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleJoinRoom", time.Now())()
	room, err := model.ParseRoomID(msg.RoomID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "invalid room_id"})
		return
	}
	roomID := room.ID()

	c.subsMu.Lock()
	_, already := c.roomSubs[roomID]
	c.subsMu.Unlock()
	if already {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	unsub, err := h.core.SubscribeRoom(ctx, room, func(msgs []model.Message) {
		h.sendToClient(c, OutgoingMessage{
			Type:    EventRoomSnapshot,
			Payload: RoomSnapshotPayload{RoomID: roomID, Messages: msgs},
		})
	})
	if err != nil {
		logger.Errorf("ws join room=%s user=%s: %v", roomID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to join room"})
		return
	}

	c.subsMu.Lock()
	if _, raced := c.roomSubs[roomID]; raced {
		c.subsMu.Unlock()
		unsub()
		return
	}
	c.roomSubs[roomID] = unsub
	c.subsMu.Unlock()
}

func (h *Hub) handleLeaveRoom(c *Client, msg IncomingMessage) {
	c.subsMu.Lock()
	unsub, ok := c.roomSubs[msg.RoomID]
	if ok {
		delete(c.roomSubs, msg.RoomID)
	}
	c.subsMu.Unlock()
	if ok {
		unsub()
	}
}

func (h *Hub) handleNewMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewMessage", time.Now())()
	room, err := model.ParseRoomID(msg.RoomID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "invalid room_id"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := h.core.SendMessage(ctx, room, c.userID, c.userName, msg.Body); err != nil {
		if errors.Is(err, service.ErrEmptyBody) {
			h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "body required"})
			return
		}
		logger.Errorf("ws send room=%s user=%s: %v", msg.RoomID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "failed to send message"})
	}
}

func (h *Hub) handleEditMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleEditMessage", time.Now())()
	if msg.MessageID == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := h.core.EditMessage(ctx, msg.MessageID, c.userID, msg.Body, c.moderator); err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: editError(err)})
	}
}

func (h *Hub) handleDeleteMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleDeleteMessage", time.Now())()
	if msg.MessageID == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "message_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.core.DeleteMessage(ctx, msg.MessageID, c.userID, c.moderator); err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: editError(err)})
	}
}

func (h *Hub) handleHeartbeat(ctx context.Context, c *Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	h.tracker.Heartbeat(ctx, c.userID, c.userName)
}

func (h *Hub) handleOpenDirect(c *Client, msg IncomingMessage) {
	room, err := h.core.OpenDirect(c.userID, msg.PeerID)
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "invalid peer_id"})
		return
	}
	h.sendToClient(c, OutgoingMessage{
		Type:    EventDirectOpened,
		Payload: DirectOpenedPayload{RoomID: room.ID(), ThreadKey: room.ThreadKey},
	})
}

func editError(err error) string {
	switch {
	case errors.Is(err, service.ErrNotOwner):
		return "can only edit own messages"
	case errors.Is(err, service.ErrEmptyBody):
		return "body required"
	case errors.Is(err, storage.ErrNotFound):
		return "message not found"
	}
	return "internal error"
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
