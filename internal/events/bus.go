package events

import "context"

// Channel names are part of the external contract: operational tooling and
// other services subscribe to these exact strings.
const (
	ChannelCalls      = "events:calls"
	ChannelLeads      = "events:leads"
	ChannelCampaigns  = "events:campaigns"
	ChannelCompliance = "events:compliance"
	ChannelExports    = "events:exports"
	ChannelAnalytics  = "events:analytics"
)

// Handler receives the raw payload published on a channel.
type Handler func(channel string, payload []byte)

// Subscription is a live channel subscription. Close unregisters the handler
// and stops delivery; it is safe to call more than once.
type Subscription interface {
	Close() error
}

// Bus is the pub/sub fabric between the call pipeline and the realtime layer.
//
// Delivery is at-most-once and fire-and-forget: the bus never blocks a
// publisher on a slow consumer.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error)
}
