// Package realtime is the server side of the dashboard real-time channel: a
// WebSocket hub that broadcasts named events to every connection and runs a
// set of per-connection emitters for the lifetime of each connection.
package realtime

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals event and data into a frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
