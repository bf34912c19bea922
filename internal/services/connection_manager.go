package services

import (
	"log"
	"sync"

	"pathfinder/internal/models"
)

// ConnectionManager tracks open feed websocket subscribers
type ConnectionManager struct {
	connections map[string]*models.FeedSubscriber
	mutex       sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*models.FeedSubscriber),
	}
}

// Add registers a subscriber
func (cm *ConnectionManager) Add(conn *models.FeedSubscriber) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.connections[conn.ConnID] = conn
	log.Printf("✅ Feed subscriber added: %s (Total: %d)", conn.ConnID, len(cm.connections))
}

// Remove unregisters a subscriber and closes its write channel
func (cm *ConnectionManager) Remove(connID string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	if conn, exists := cm.connections[connID]; exists {
		close(conn.WriteChan)
		delete(cm.connections, connID)
		log.Printf("❌ Feed subscriber removed: %s (Total: %d)", connID, len(cm.connections))
	}
}

// Count returns the number of open subscribers
func (cm *ConnectionManager) Count() int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return len(cm.connections)
}

// Broadcast queues event for every subscriber. Subscribers whose buffer is
// full miss the event; it returns how many were reached.
func (cm *ConnectionManager) Broadcast(event models.FeedEvent) int {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	sent := 0
	for _, conn := range cm.connections {
		select {
		case conn.WriteChan <- event:
			sent++
		default:
			log.Printf("⚠️  Feed subscriber %s is slow, dropping %s event", conn.ConnID, event.Type)
		}
	}
	return sent
}
