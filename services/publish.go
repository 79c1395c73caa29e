package services

import (
	"context"
	"log"
	"time"

	"kyoolAPI/internal/events"
)

// publishEvent runs after a commit; a failed publish is logged and dropped.
func publishEvent(p events.Publisher, name, userID string, payload map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Publish(ctx, events.New(name, userID, payload)); err != nil {
		log.Printf("Events: Failed to publish %s for %s: %v", name, userID, err)
	}
}
