package delivery

import (
	"context"
	"log"

	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
)

// Engine pushes events to every open connection of a target user. Pushes are
// fire-and-forget: a slow or broken connection is closed and dropped without
// stalling the caller or the remaining connections, and a failed fan-out
// never fails the request that triggered it.
type Engine struct {
	registry *presence.Registry
}

// NewEngine wires the engine to the registry.
func NewEngine(registry *presence.Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry exposes the underlying presence registry.
func (e *Engine) Registry() *presence.Registry {
	return e.registry
}

// Fanout pushes (event, payload) to each of the user's connections and
// reports whether at least one push succeeded.
func (e *Engine) Fanout(userID int64, event string, payload any) bool {
	reached := false
	for _, conn := range e.registry.Connections(userID) {
		if err := conn.Push(event, payload); err != nil {
			log.Printf("fanout push failed user=%d event=%s: %v", userID, event, err)
			observability.IncFanoutPush(event, "error")
			e.registry.Unregister(conn)
			_ = conn.Close()
			_ = observability.PublishEvent(context.Background(), "realtime.fanout", observability.EventEnvelope{
				EventType: "fanout_events",
				EventName: "push_failed",
				Payload: map[string]any{
					"user_id": userID,
					"event":   event,
					"reason":  err.Error(),
				},
			}, nil)
			continue
		}
		observability.IncFanoutPush(event, "ok")
		reached = true
	}
	return reached
}

// FanoutMany pushes the same event to every listed user.
func (e *Engine) FanoutMany(userIDs []int64, event string, payload any) {
	for _, id := range userIDs {
		e.Fanout(id, event, payload)
	}
}
