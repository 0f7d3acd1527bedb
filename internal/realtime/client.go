package realtime

import (
	"time"
)

// Conn is the transport surface the registry needs from a websocket
// connection. *websocket.Conn satisfies it via a thin wrapper; tests use a
// fake.
type Conn interface {
	WriteJSON(v any) error
	Ping(deadline time.Time) error
	Close() error
}

// client is one connected dashboard session.
type client struct {
	id             string
	organizationID string
	userID         string
	role           string
	conn           Conn

	topics        map[string]struct{}
	lastHeartbeat time.Time
	closed        bool
}
