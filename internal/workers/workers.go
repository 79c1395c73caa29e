// Package workers runs the periodic background jobs of the API.
package workers

import (
	"context"
	"log"
	"time"
)

// IdleSessionFlusher is implemented by services.WaterService.
type IdleSessionFlusher interface {
	FlushIdleSessions(ctx context.Context) (int, error)
}

// StartSessionFlusher flushes idle water sessions every interval until ctx is
// done, so a friend's finished session reaches the feed without another log.
func StartSessionFlusher(ctx context.Context, flusher IdleSessionFlusher, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				flushIdleSessions(ctx, flusher)
			}
		}
	}()
	return done
}

func flushIdleSessions(ctx context.Context, flusher IdleSessionFlusher) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	n, err := flusher.FlushIdleSessions(ctx)
	if err != nil {
		log.Printf("Error flushing idle water sessions: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Flushed %d idle water sessions", n)
	}
}
