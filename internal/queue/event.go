// Package queue carries domain events over RabbitMQ.  Events are published
// to a durable topic exchange after the originating transaction commits;
// the activity consumer binds a queue to every routing key and appends one
// line per event to an activity log.
package queue

import (
    "encoding/json"
    "time"
)

// Envelope wraps every event on the wire.  Type is the routing key (for
// example "booking.reserved"); Data is the event payload as produced by the
// service package.
type Envelope struct {
    ID         string          `json:"id"`
    Type       string          `json:"type"`
    OccurredAt time.Time       `json:"occurred_at"`
    Data       json.RawMessage `json:"data"`
}
