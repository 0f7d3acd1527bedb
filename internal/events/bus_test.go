package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"outreach-platform/internal/calls"
	"outreach-platform/internal/leads"
)

func TestMemoryBus_DeliversToSubscribedChannelOnly(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	var got []string
	sub, err := bus.Subscribe(ctx, ChannelCalls, func(channel string, payload []byte) {
		got = append(got, channel+":"+string(payload))
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, ChannelCalls, []byte("a")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Publish(ctx, ChannelLeads, []byte("b")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(got) != 1 || got[0] != "events:calls:a" {
		t.Fatalf("got %v", got)
	}
}

func TestMemoryBus_CloseStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	count := 0
	sub, _ := bus.Subscribe(ctx, ChannelCalls, func(string, []byte) { count++ })

	_ = bus.Publish(ctx, ChannelCalls, []byte("x"))
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil { // idempotent
		t.Fatalf("second close: %v", err)
	}
	_ = bus.Publish(ctx, ChannelCalls, []byte("y"))

	if count != 1 {
		t.Fatalf("delivered %d, want 1", count)
	}
}

func TestPublisher_CallUpdateEnvelope(t *testing.T) {
	bus := NewMemoryBus()
	p := NewPublisher(bus)
	ctx := context.Background()

	var env Envelope
	delivered := 0
	sub, _ := bus.Subscribe(ctx, ChannelCalls, func(_ string, payload []byte) {
		delivered++
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
	})
	defer sub.Close()

	p.CallUpdated(ctx, calls.Call{
		ID: "c1", OrganizationID: "org", CampaignID: "camp", LeadID: "lead",
	})

	if delivered != 1 {
		t.Fatalf("delivered %d", delivered)
	}
	if env.Type != TypeCallUpdate || env.OrganizationID != "org" ||
		env.CampaignID != "camp" || env.CallID != "c1" || env.LeadID != "lead" {
		t.Fatalf("envelope %+v", env)
	}
	if env.Timestamp.IsZero() {
		t.Fatalf("missing timestamp")
	}

	var c calls.Call
	if err := json.Unmarshal(env.Payload, &c); err != nil || c.ID != "c1" {
		t.Fatalf("payload: %v %+v", err, c)
	}
}

func TestPublisher_ChannelRouting(t *testing.T) {
	bus := NewMemoryBus()
	p := NewPublisher(bus)
	ctx := context.Background()

	seen := map[string]string{} // channel -> envelope type
	for _, ch := range []string{ChannelLeads, ChannelCampaigns, ChannelCompliance, ChannelExports, ChannelAnalytics} {
		ch := ch
		sub, _ := bus.Subscribe(ctx, ch, func(channel string, payload []byte) {
			var env Envelope
			_ = json.Unmarshal(payload, &env)
			seen[channel] = env.Type
		})
		defer sub.Close()
	}

	p.LeadUpdated(ctx, leads.Lead{ID: "l1", OrganizationID: "org"})
	p.CampaignMetrics(ctx, "org", "camp", map[string]int{"calls": 3})
	p.ComplianceAlert(ctx, "org", "c1", "prospect requested do-not-call")
	p.ExportStatus(ctx, "org", "e1", "queued")
	p.AnalyticsUpdate(ctx, "org", map[string]int{"active": 2})

	want := map[string]string{
		ChannelLeads:      TypeLeadUpdate,
		ChannelCampaigns:  TypeCampaignMetrics,
		ChannelCompliance: TypeComplianceAlert,
		ChannelExports:    TypeExportUpdate,
		ChannelAnalytics:  TypeAnalyticsUpdate,
	}
	for ch, typ := range want {
		if seen[ch] != typ {
			t.Fatalf("channel %s carried %q, want %q", ch, seen[ch], typ)
		}
	}
}

func TestPublisher_PublishFailureIsDropped(t *testing.T) {
	p := NewPublisher(failBus{})
	// Must not panic or return; fire-and-forget.
	p.CallUpdated(context.Background(), calls.Call{ID: "c1", OrganizationID: "org"})
}

type failBus struct{}

func (failBus) Publish(ctx context.Context, channel string, payload []byte) error {
	return errors.New("broker down")
}

func (failBus) Subscribe(ctx context.Context, channel string, h Handler) (Subscription, error) {
	return nil, errors.New("broker down")
}
