package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"realtime-service/internal/chat"
	"realtime-service/internal/delivery"
	"realtime-service/internal/middleware"
	"realtime-service/internal/models"
	"realtime-service/internal/observability"
	"realtime-service/internal/presence"
)

// Handler owns the single realtime websocket endpoint. One connection covers
// every conversation of the authenticated user; the server pushes events and
// reads only transient client signals such as typing.
type Handler struct {
	registry  *presence.Registry
	engine    *delivery.Engine
	chat      chat.API
	lastSeen  *presence.LastSeenStore
	jwtSecret string
}

// NewHandler constructs a Handler.
func NewHandler(registry *presence.Registry, engine *delivery.Engine, chatAPI chat.API, lastSeen *presence.LastSeenStore, jwtSecret string) *Handler {
	return &Handler{registry: registry, engine: engine, chat: chatAPI, lastSeen: lastSeen, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is the envelope read from the socket.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handle authenticates, upgrades and registers the connection. The first
// connection of a user announces them online to their contacts; closing the
// last one stamps last-seen and announces them offline.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("realtime-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	userID, err := middleware.ParseUserID(h.jwtSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	wc := &conn{sock: sock}
	first := h.registry.Register(userID, wc)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	_ = observability.PublishEvent(ctx, observability.RoutingKey("ws_events"), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsPayload(info, "ws_connect", 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	// The request context dies when this handler returns; the connection
	// outlives it, so the read loop gets a detached copy.
	connCtx := context.WithoutCancel(ctx)

	if first {
		h.broadcastPresence(connCtx, userID, models.EventContactConnected, nil)
	}
	if err := h.chat.FlushQueue(connCtx, userID); err != nil {
		log.Printf("ws: queue flush failed user=%d: %v", userID, err)
	}

	go h.readLoop(connCtx, wc, info)
}

// readLoop consumes client frames until the socket errors, then tears the
// connection down.
func (h *Handler) readLoop(ctx context.Context, wc *conn, info ConnInfo) {
	var closeReason string
	defer func() {
		h.teardown(ctx, wc, info, closeReason)
	}()
	for {
		_, raw, err := wc.sock.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				_ = observability.PublishEvent(ctx, observability.RoutingKey("ws_events"), observability.EventEnvelope{
					EventType: "ws_events",
					EventName: "ws_error",
					Payload:   wsPayload(info, "ws_error", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
				}, observability.BuildHeaders(info.RequestID, info.TraceID))
			}
			return
		}
		h.handleFrame(ctx, info.UserID, raw)
	}
}

// handleFrame dispatches one client frame. Unknown events are dropped.
func (h *Handler) handleFrame(ctx context.Context, userID int64, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return
	}
	switch frame.Event {
	case models.EventNotifyTyping:
		var t models.TypingEvent
		if err := json.Unmarshal(frame.Data, &t); err != nil {
			return
		}
		observability.IncWSEvent(models.EventNotifyTyping)
		if err := h.chat.Typing(ctx, t.ConversationID, userID, t.IsTyping); err != nil {
			log.Printf("ws: typing relay failed user=%d conv=%d: %v", userID, t.ConversationID, err)
		}
	}
}

func (h *Handler) teardown(ctx context.Context, wc *conn, info ConnInfo, closeReason string) {
	userID, last, ok := h.registry.Unregister(wc)
	_ = wc.Close()

	observability.DecWSActive()
	observability.IncWSEvent("ws_disconnect")
	_ = observability.PublishEvent(ctx, observability.RoutingKey("ws_events"), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_disconnect",
		Payload:   wsPayload(info, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
	}, observability.BuildHeaders(info.RequestID, info.TraceID))

	if !ok || !last {
		return
	}
	now := time.Now().UTC()
	if err := h.lastSeen.Touch(ctx, userID, now); err != nil {
		log.Printf("ws: last-seen update failed user=%d: %v", userID, err)
	}
	h.broadcastPresence(ctx, userID, models.EventContactDisconnected, &now)
}

// broadcastPresence tells every contact of the user that they went on- or
// offline.
func (h *Handler) broadcastPresence(ctx context.Context, userID int64, event string, lastSeenAt *time.Time) {
	ids, err := h.chat.ContactIDs(ctx, userID)
	if err != nil {
		log.Printf("ws: contact lookup failed user=%d: %v", userID, err)
		return
	}
	h.engine.FanoutMany(ids, event, models.PresenceEvent{ID: userID, LastSeenAt: lastSeenAt})
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 {
			return parts[1]
		}
		return header
	}
	return c.Query("token")
}

func wsPayload(info ConnInfo, event string, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "realtime",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
