// Package observability carries the realtime service's prometheus metrics
// and the AMQP lifecycle event stream consumed by the analytics pipeline.
package observability

// EventEnvelope is the wire shape of one realtime lifecycle event.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// RoutingKey namespaces a stream under this service's topic space, so
// consumers can bind `*.realtime` across services.
func RoutingKey(stream string) string {
	return stream + ".realtime"
}

// BuildHeaders propagates request correlation onto the published event.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
