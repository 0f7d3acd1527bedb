package realtime

import (
	"encoding/json"
	"time"
)

// Message is the websocket wire frame, both directions.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Inbound message types (client -> server).
const (
	MsgSubscribe          = "subscribe"
	MsgUnsubscribe        = "unsubscribe"
	MsgPing               = "ping"
	MsgGetCampaignMetrics = "get_campaign_metrics"
	MsgGetActiveCalls     = "get_active_calls"
	MsgGetQualifiedLeads  = "get_qualified_leads"
	MsgTriggerExport      = "trigger_export"
)

// Outbound message types (server -> client).
const (
	MsgConnected          = "connected"
	MsgSubscribed         = "subscribed"
	MsgUnsubscribed       = "unsubscribed"
	MsgSubscriptionDenied = "subscription_denied"
	MsgPong               = "pong"
	MsgError              = "error"
)

func newMessage(typ string, data any, now time.Time) (Message, error) {
	m := Message{Type: typ, Timestamp: now.UTC().Format(time.RFC3339)}
	if data == nil {
		return m, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	m.Data = raw
	return m, nil
}

// subscribePayload is the Data shape of subscribe/unsubscribe frames. Clients
// send either a resource reference ({"type":"campaign","resourceId":"..."})
// or a pre-built topic string; the two are equivalent.
type subscribePayload struct {
	Type       string `json:"type"`
	ResourceID string `json:"resourceId"`
	Topic      string `json:"topic"`
}

// topic resolves the payload to a topic name, preferring the explicit topic
// form when both are present.
func (p subscribePayload) topic() string {
	if p.Topic != "" {
		return p.Topic
	}
	if p.Type != "" && p.ResourceID != "" {
		return p.Type + ":" + p.ResourceID
	}
	return ""
}

// queryPayload carries the optional filters on get_* frames.
type queryPayload struct {
	CampaignID string `json:"campaign_id,omitempty"`
}

// exportPayload is the Data shape of trigger_export frames.
type exportPayload struct {
	Kind       string `json:"kind"`
	CampaignID string `json:"campaign_id,omitempty"`
}
