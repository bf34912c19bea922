package services

import (
	"testing"
	"time"

	"pathfinder/internal/models"
)

func TestConnectionManagerBroadcast(t *testing.T) {
	cm := NewConnectionManager()

	fast := &models.FeedSubscriber{ConnID: "fast", WriteChan: make(chan models.FeedEvent, 4)}
	slow := &models.FeedSubscriber{ConnID: "slow", WriteChan: make(chan models.FeedEvent)}
	cm.Add(fast)
	cm.Add(slow)

	if cm.Count() != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", cm.Count())
	}

	sent := cm.Broadcast(models.FeedEvent{Type: "feed_reloaded", Count: 3, At: time.Now()})
	if sent != 1 {
		t.Errorf("Expected 1 delivery (slow subscriber dropped), got %d", sent)
	}

	select {
	case event := <-fast.WriteChan:
		if event.Type != "feed_reloaded" || event.Count != 3 {
			t.Errorf("Unexpected event: %+v", event)
		}
	default:
		t.Fatal("Expected an event on the fast subscriber")
	}

	cm.Remove("fast")
	if _, ok := <-fast.WriteChan; ok {
		t.Error("Expected write channel to be closed after Remove")
	}
	cm.Remove("fast")
	if cm.Count() != 1 {
		t.Errorf("Expected 1 subscriber after removal, got %d", cm.Count())
	}
}
