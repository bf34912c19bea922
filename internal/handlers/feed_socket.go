package handlers

import (
	"log"
	"time"

	"pathfinder/internal/models"
	"pathfinder/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	feedSocketReadTimeout = 90 * time.Second
	feedSocketPingEvery   = 30 * time.Second
)

// FeedSocketHandler pushes feed reload events to websocket clients
type FeedSocketHandler struct {
	connManager *services.ConnectionManager
}

// NewFeedSocketHandler creates a new feed websocket handler
func NewFeedSocketHandler(connManager *services.ConnectionManager) *FeedSocketHandler {
	return &FeedSocketHandler{connManager: connManager}
}

// Handle serves one connection until the client goes away. Client messages
// are read only to keep the deadline fresh.
// GET /ws/feed
func (h *FeedSocketHandler) Handle(c *websocket.Conn) {
	userID, _ := c.Locals("user_id").(string)
	clientIP, _ := c.Locals("client_ip").(string)

	sub := &models.FeedSubscriber{
		ConnID:    uuid.New().String(),
		UserID:    userID,
		ClientIP:  clientIP,
		WriteChan: make(chan models.FeedEvent, 16),
		CreatedAt: time.Now(),
	}

	done := make(chan struct{})
	h.connManager.Add(sub)
	defer func() {
		close(done)
		h.connManager.Remove(sub.ConnID)
	}()

	c.SetReadDeadline(time.Now().Add(feedSocketReadTimeout))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(feedSocketReadTimeout))
		return nil
	})

	if err := c.WriteJSON(models.FeedEvent{Type: "connected", At: time.Now().UTC()}); err != nil {
		return
	}

	go h.writeLoop(c, sub, done)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
		c.SetReadDeadline(time.Now().Add(feedSocketReadTimeout))
	}
}

// writeLoop is the only writer after the greeting; it sends queued events and pings
func (h *FeedSocketHandler) writeLoop(c *websocket.Conn, sub *models.FeedSubscriber, done <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Panic in feed writeLoop: %v", r)
		}
	}()

	ticker := time.NewTicker(feedSocketPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-sub.WriteChan:
			if !ok {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				log.Printf("❌ Feed websocket write error for %s: %v", sub.ConnID, err)
				return
			}
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
