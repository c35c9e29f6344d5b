// Package events defines the messages exchanged over the /ws endpoint.
package events

import (
	"time"

	"pharmapulse/pkg/contracts/domain"
)

// Server to client message types.
const (
	TypeConnection      = "connection"
	TypePong            = "pong"
	TypeIngestCompleted = "ingest.completed"
	TypeIngestFailed    = "ingest.failed"
	TypeSnapshotRebuilt = "snapshot.rebuilt"
)

// Client to server message types. Anything else is ignored.
const (
	TypePing      = "ping"
	TypeHeartbeat = "heartbeat"
)

// Envelope wraps every server message.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"` // RFC 3339, UTC
	TraceID   string      `json:"trace_id,omitempty"`
}

// ClientMessage is the only shape a client may send.
type ClientMessage struct {
	Type string `json:"type"`
}

// Connected is the payload of the first message on every connection.
type Connected struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// IngestFailed is the payload of ingest.failed. The manifest covers the
// files processed before the failure.
type IngestFailed struct {
	Error    string                `json:"error"`
	Manifest domain.IngestManifest `json:"manifest"`
}

// SnapshotRebuilt is the payload of snapshot.rebuilt.
type SnapshotRebuilt struct {
	Trigger string    `json:"trigger"`
	Outcome string    `json:"outcome"`
	Rows    int       `json:"rows"`
	BuiltAt time.Time `json:"built_at,omitempty"`
}
