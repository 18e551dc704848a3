package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/chainduel/backend/internal/events"
)

// StartEventSubscriber bridges the redis event channels into the hub. The
// subscription is the push half of the sync layer; if it drops, clients fall
// back to polling and re-attach.
func StartEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, events.ChannelQueue, events.ChannelSession)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] queue_events/session_events subscriber started")
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					log.Println("[WS] event subscription closed")
					return
				}
				dispatch(hub, msg)
			}
		}
	}()
}

func dispatch(hub *Hub, msg *redis.Message) {
	switch msg.Channel {
	case events.ChannelQueue:
		var ev events.QueueEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("[WS] invalid queue event payload: %v", err)
			return
		}
		hub.DispatchQueueEvent(ev)
	case events.ChannelSession:
		var ev events.SessionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			log.Printf("[WS] invalid session event payload: %v", err)
			return
		}
		hub.DispatchSessionEvent(ev)
	default:
		log.Printf("[WS] unknown event channel: %s", msg.Channel)
	}
}
