// Package live delivers in-app events to connected websocket clients. The
// Broker interface decouples event producers from delivery: the in-process
// Hub serves a single-process deployment, and RedisBroker fans events out
// across processes so any instance can reach any connected client.
package live

import (
	"context"
	"time"
)

type Event struct {
	UserID    int64     `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	RelatedID *int64    `json:"related_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Broker interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
