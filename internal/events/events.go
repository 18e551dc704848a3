// Package events defines the redis pub/sub payloads that carry queue and
// session row changes to the push layer. Delivery is best-effort: the poll
// endpoint and the sweeper guarantee progress even if every publish is lost.
package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/chainduel/backend/internal/models"
)

const (
	ChannelQueue   = "queue_events"
	ChannelSession = "session_events"
)

// Queue event types.
const (
	QueueWaiting   = "queue_waiting"
	QueueMatched   = "queue_matched"
	QueueLeft      = "queue_left"
	QueueCancelled = "queue_cancelled"
)

// Session event types.
const (
	SessionCreated   = "session_created"
	SessionMove      = "session_move"
	SessionPendingTx = "session_pending_tx"
	SessionFinished  = "session_finished"
	SessionTimeout   = "session_timeout"
	SessionCancelled = "session_cancelled"
)

type QueueEvent struct {
	Type  string             `json:"type"`
	Entry *models.QueueEntry `json:"entry"`
}

type SessionEvent struct {
	Type    string              `json:"type"`
	Session *models.GameSession `json:"session"`
}

// PublishQueue sends a queue event; failures are logged and swallowed.
func PublishQueue(ctx context.Context, rdb *redis.Client, ev QueueEvent) {
	if rdb == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] marshal queue event failed: %v", err)
		return
	}
	if err := rdb.Publish(ctx, ChannelQueue, b).Err(); err != nil {
		log.Printf("[EVENTS] publish queue event failed: %v", err)
	}
}

// PublishSession sends a session event; failures are logged and swallowed.
func PublishSession(ctx context.Context, rdb *redis.Client, ev SessionEvent) {
	if rdb == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] marshal session event failed: %v", err)
		return
	}
	if err := rdb.Publish(ctx, ChannelSession, b).Err(); err != nil {
		log.Printf("[EVENTS] publish session event failed: %v", err)
	}
}
