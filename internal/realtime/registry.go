package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"outreach-platform/internal/auth"
	"outreach-platform/internal/config"
	"outreach-platform/internal/events"
	"outreach-platform/pkg/logger"

	"github.com/google/uuid"
)

var (
	ErrClientNotFound = errors.New("realtime: client not found")
	ErrTooManyConns   = errors.New("realtime: organization connection limit reached")
)

// Topic name builders. Topics are the routing unit between domain events and
// connected clients.
func AccountTopic(organizationID string) string { return "account:" + organizationID }
func CampaignTopic(campaignID string) string    { return "campaign:" + campaignID }
func CallTopic(callID string) string            { return "call:" + callID }

// CampaignFromTopic extracts the campaign id from a campaign topic.
func CampaignFromTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, "campaign:")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Authorizer decides whether a client may subscribe to a topic. The registry
// always enforces that account topics match the client's own organization;
// the hook can only tighten further.
type Authorizer func(organizationID, role, topic string) bool

// SnapshotFunc produces the immediate state snapshot sent right after a
// successful subscribe. ok=false means no snapshot for this topic.
type SnapshotFunc func(ctx context.Context, organizationID, topic string) (msgType string, data any, ok bool)

// QueryService answers the get_* and trigger_export frames. Wired from the
// reporting/calls/leads services at startup.
type QueryService interface {
	ActiveCalls(ctx context.Context, organizationID string) (any, error)
	QualifiedLeads(ctx context.Context, organizationID, campaignID string) (any, error)
	CampaignMetrics(ctx context.Context, organizationID, campaignID string) (any, error)
	TriggerExport(ctx context.Context, organizationID, userID, kind, campaignID string) (exportID string, err error)
}

// Registry tracks every live websocket session and fans domain events out to
// topic subscribers.
//
// One mutex guards both the client map and the topic index; every mutation of
// the two is atomic, so a disconnect can never leave a dangling topic entry.
type Registry struct {
	cfg      config.RealtimeConfig
	bus      events.Bus
	authz    Authorizer
	snapshot SnapshotFunc
	queries  QueryService

	mu      sync.Mutex
	clients map[string]*client
	topics  map[string]map[string]struct{} // topic -> client ids
	perOrg  map[string]int

	subs   []events.Subscription
	stopCh chan struct{}
	wg     sync.WaitGroup
	opened bool
	closed bool

	clock func() time.Time
	newID func() string
}

func NewRegistry(cfg config.RealtimeConfig, bus events.Bus) *Registry {
	return &Registry{
		cfg:     cfg,
		bus:     bus,
		clients: map[string]*client{},
		topics:  map[string]map[string]struct{}{},
		perOrg:  map[string]int{},
		stopCh:  make(chan struct{}),
		clock:   time.Now,
		newID:   uuid.NewString,
	}
}

// SetAuthorizer installs a subscription authorization hook.
func (r *Registry) SetAuthorizer(a Authorizer) { r.authz = a }

// SetSnapshot installs the subscribe-time snapshot provider.
func (r *Registry) SetSnapshot(s SnapshotFunc) { r.snapshot = s }

// SetQueries installs the query/export backend.
func (r *Registry) SetQueries(q QueryService) { r.queries = q }

// Open starts the heartbeat and idle-cleanup loops and attaches the registry
// to the event bus. Call once.
func (r *Registry) Open(ctx context.Context) error {
	r.mu.Lock()
	if r.opened || r.closed {
		r.mu.Unlock()
		return errors.New("realtime: registry already opened")
	}
	r.opened = true
	r.mu.Unlock()

	if r.bus != nil {
		channels := []string{
			events.ChannelCalls, events.ChannelLeads, events.ChannelCampaigns,
			events.ChannelCompliance, events.ChannelExports, events.ChannelAnalytics,
		}
		for _, ch := range channels {
			sub, err := r.bus.Subscribe(ctx, ch, r.routeEvent)
			if err != nil {
				r.closeSubs()
				return fmt.Errorf("realtime: subscribe %s: %w", ch, err)
			}
			r.subs = append(r.subs, sub)
		}
	}

	r.wg.Add(2)
	go r.heartbeatLoop(ctx)
	go r.cleanupLoop(ctx)
	return nil
}

// Close stops the timers, detaches from the bus, then disconnects every
// client. Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()
	r.closeSubs()

	for _, id := range r.clientIDs() {
		r.Disconnect(id)
	}
}

func (r *Registry) closeSubs() {
	for _, s := range r.subs {
		_ = s.Close()
	}
	r.subs = nil
}

// Connect registers an authenticated connection and sends the connected ack.
// The client is auto-subscribed to its account topic and, when campaignID is
// set, to that campaign's topic.
func (r *Registry) Connect(ctx context.Context, claims auth.Claims, conn Conn, campaignID string) (string, error) {
	if conn == nil || claims.OrganizationID == "" {
		return "", errors.New("realtime: invalid connection")
	}

	c := &client{
		id:             r.newID(),
		organizationID: claims.OrganizationID,
		userID:         claims.UserID,
		role:           claims.Role,
		conn:           conn,
		topics:         map[string]struct{}{},
		lastHeartbeat:  r.clock(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", errors.New("realtime: registry closed")
	}
	if r.cfg.MaxConnsPerOrg > 0 && r.perOrg[c.organizationID] >= r.cfg.MaxConnsPerOrg {
		r.mu.Unlock()
		return "", ErrTooManyConns
	}
	r.clients[c.id] = c
	r.perOrg[c.organizationID]++
	r.addTopicLocked(c, AccountTopic(c.organizationID))
	if campaignID != "" {
		r.addTopicLocked(c, CampaignTopic(campaignID))
	}
	topics := topicList(c)
	r.mu.Unlock()

	ack := map[string]any{
		"client_id": c.id,
		"topics":    topics,
		"features":  []string{"campaign_metrics", "active_calls", "qualified_leads", "exports"},
	}
	if err := r.send(c.id, MsgConnected, ack); err != nil {
		r.Disconnect(c.id)
		return "", err
	}
	logger.From(ctx).Info("websocket client connected",
		"client_id", c.id, "organization_id", c.organizationID, "user_id", c.userID)
	return c.id, nil
}

// Subscribe adds the client to a topic and, when a snapshot provider is set,
// immediately pushes the current state for that topic.
func (r *Registry) Subscribe(ctx context.Context, clientID, topic string) error {
	topic = strings.TrimSpace(topic)

	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return ErrClientNotFound
	}
	if topic == "" {
		r.mu.Unlock()
		return r.send(clientID, MsgSubscriptionDenied, map[string]string{
			"topic":  topic,
			"reason": "subscribe payload names no topic",
		})
	}
	if !r.allowed(c, topic) {
		r.mu.Unlock()
		return r.send(clientID, MsgSubscriptionDenied, map[string]string{
			"topic":  topic,
			"reason": "not authorized for topic",
		})
	}
	r.addTopicLocked(c, topic)
	r.mu.Unlock()

	if err := r.send(clientID, MsgSubscribed, map[string]string{"topic": topic}); err != nil {
		return err
	}
	if r.snapshot != nil {
		if typ, data, ok := r.snapshot(ctx, c.organizationID, topic); ok {
			return r.send(clientID, typ, data)
		}
	}
	return nil
}

func (r *Registry) Unsubscribe(clientID, topic string) error {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return ErrClientNotFound
	}
	r.removeTopicLocked(c, topic)
	r.mu.Unlock()

	return r.send(clientID, MsgUnsubscribed, map[string]string{"topic": topic})
}

// Broadcast writes a message to every subscriber of the topic. Write failures
// disconnect the offending client; a client marked closed is skipped.
func (r *Registry) Broadcast(topic, msgType string, data any) {
	msg, err := newMessage(msgType, data, r.clock())
	if err != nil {
		return
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.topics[topic]))
	for id := range r.topics[topic] {
		if c, ok := r.clients[id]; ok && !c.closed {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.write(id, msg); err != nil {
			r.Disconnect(id)
		}
	}
}

// Disconnect removes the client from the registry, prunes its topic entries,
// and closes the transport. Safe to call repeatedly for the same id.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.clients, clientID)
	r.perOrg[c.organizationID]--
	if r.perOrg[c.organizationID] <= 0 {
		delete(r.perOrg, c.organizationID)
	}
	for topic := range c.topics {
		r.removeTopicIndexLocked(topic, clientID)
	}
	c.closed = true
	r.mu.Unlock()

	_ = c.conn.Close()
}

// Heartbeat records liveness for a client, normally from a pong frame.
func (r *Registry) Heartbeat(clientID string) {
	r.mu.Lock()
	if c, ok := r.clients[clientID]; ok {
		c.lastHeartbeat = r.clock()
	}
	r.mu.Unlock()
}

// HandleMessage dispatches one inbound frame for a client. Unknown types get
// an error frame rather than a disconnect.
func (r *Registry) HandleMessage(ctx context.Context, clientID string, msg Message) {
	c := r.lookup(clientID)
	if c == nil {
		return
	}

	switch msg.Type {
	case MsgPing:
		r.Heartbeat(clientID)
		_ = r.send(clientID, MsgPong, nil)

	case MsgSubscribe:
		var p subscribePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			_ = r.send(clientID, MsgError, map[string]string{"error": "malformed subscribe payload"})
			return
		}
		_ = r.Subscribe(ctx, clientID, p.topic())

	case MsgUnsubscribe:
		var p subscribePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			_ = r.send(clientID, MsgError, map[string]string{"error": "malformed unsubscribe payload"})
			return
		}
		_ = r.Unsubscribe(clientID, p.topic())

	case MsgGetActiveCalls:
		r.answer(ctx, clientID, events.TypeAnalyticsUpdate, func(ctx context.Context) (any, error) {
			return r.queries.ActiveCalls(ctx, c.organizationID)
		})

	case MsgGetQualifiedLeads:
		var p queryPayload
		_ = json.Unmarshal(msg.Data, &p)
		r.answer(ctx, clientID, events.TypeLeadUpdate, func(ctx context.Context) (any, error) {
			return r.queries.QualifiedLeads(ctx, c.organizationID, p.CampaignID)
		})

	case MsgGetCampaignMetrics:
		var p queryPayload
		_ = json.Unmarshal(msg.Data, &p)
		r.answer(ctx, clientID, events.TypeCampaignMetrics, func(ctx context.Context) (any, error) {
			return r.queries.CampaignMetrics(ctx, c.organizationID, p.CampaignID)
		})

	case MsgTriggerExport:
		var p exportPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.Kind == "" {
			_ = r.send(clientID, MsgError, map[string]string{"error": "malformed export payload"})
			return
		}
		r.answer(ctx, clientID, events.TypeExportUpdate, func(ctx context.Context) (any, error) {
			if r.queries == nil {
				return nil, errors.New("exports unavailable")
			}
			id, err := r.queries.TriggerExport(ctx, c.organizationID, c.userID, p.Kind, p.CampaignID)
			if err != nil {
				return nil, err
			}
			return map[string]string{"export_id": id, "status": "queued"}, nil
		})

	default:
		_ = r.send(clientID, MsgError, map[string]string{"error": "unknown message type: " + msg.Type})
	}
}

func (r *Registry) answer(ctx context.Context, clientID, msgType string, fn func(context.Context) (any, error)) {
	if r.queries == nil {
		_ = r.send(clientID, MsgError, map[string]string{"error": "queries unavailable"})
		return
	}
	data, err := fn(ctx)
	if err != nil {
		logger.From(ctx).Warn("realtime query failed", "client_id", clientID, "type", msgType, "error", err)
		_ = r.send(clientID, MsgError, map[string]string{"error": "query failed"})
		return
	}
	_ = r.send(clientID, msgType, data)
}

// routeEvent maps a bus envelope onto topics: the call topic, the campaign
// topic, and the account-wide topic. De-duplicates clients subscribed to more
// than one of them.
func (r *Registry) routeEvent(channel string, payload []byte) {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil || env.OrganizationID == "" {
		return
	}

	topics := []string{AccountTopic(env.OrganizationID)}
	if env.CampaignID != "" {
		topics = append(topics, CampaignTopic(env.CampaignID))
	}
	if env.CallID != "" {
		topics = append(topics, CallTopic(env.CallID))
	}

	msg, err := newMessage(env.Type, json.RawMessage(env.Payload), r.clock())
	if err != nil {
		return
	}

	r.mu.Lock()
	targets := map[string]struct{}{}
	for _, topic := range topics {
		for id := range r.topics[topic] {
			if c, ok := r.clients[id]; ok && !c.closed && c.organizationID == env.OrganizationID {
				targets[id] = struct{}{}
			}
		}
	}
	r.mu.Unlock()

	for id := range targets {
		if err := r.write(id, msg); err != nil {
			r.Disconnect(id)
		}
	}
}

func (r *Registry) heartbeatLoop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			deadline := r.clock().Add(r.cfg.HeartbeatInterval / 2)
			for _, id := range r.clientIDs() {
				c := r.lookup(id)
				if c == nil {
					continue
				}
				if err := c.conn.Ping(deadline); err != nil {
					logger.From(ctx).Info("heartbeat ping failed, disconnecting",
						"client_id", id, "error", err)
					r.Disconnect(id)
				}
			}
		}
	}
}

func (r *Registry) cleanupLoop(ctx context.Context) {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.sweepIdle(ctx)
		}
	}
}

func (r *Registry) sweepIdle(ctx context.Context) {
	cutoff := r.clock().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	stale := make([]string, 0)
	for id, c := range r.clients {
		if c.lastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		logger.From(ctx).Info("disconnecting idle websocket client", "client_id", id)
		r.Disconnect(id)
	}
}

// ClientCount reports the number of live clients.
func (r *Registry) ClientCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// TopicCount reports the number of indexed topics.
func (r *Registry) TopicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func (r *Registry) allowed(c *client, topic string) bool {
	if strings.HasPrefix(topic, "account:") && topic != AccountTopic(c.organizationID) {
		return false
	}
	if r.authz != nil && !r.authz(c.organizationID, c.role, topic) {
		return false
	}
	return true
}

func (r *Registry) addTopicLocked(c *client, topic string) {
	c.topics[topic] = struct{}{}
	if r.topics[topic] == nil {
		r.topics[topic] = map[string]struct{}{}
	}
	r.topics[topic][c.id] = struct{}{}
}

func (r *Registry) removeTopicLocked(c *client, topic string) {
	delete(c.topics, topic)
	r.removeTopicIndexLocked(topic, c.id)
}

func (r *Registry) removeTopicIndexLocked(topic, clientID string) {
	if set, ok := r.topics[topic]; ok {
		delete(set, clientID)
		if len(set) == 0 {
			delete(r.topics, topic)
		}
	}
}

func (r *Registry) lookup(clientID string) *client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clients[clientID]
}

func (r *Registry) clientIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.clients))
	for id := range r.clients {
		out = append(out, id)
	}
	return out
}

func (r *Registry) send(clientID, msgType string, data any) error {
	msg, err := newMessage(msgType, data, r.clock())
	if err != nil {
		return err
	}
	return r.write(clientID, msg)
}

func (r *Registry) write(clientID string, msg Message) error {
	r.mu.Lock()
	c, ok := r.clients[clientID]
	if !ok || c.closed {
		r.mu.Unlock()
		return nil // closed socket is a no-op, not an error
	}
	conn := c.conn
	r.mu.Unlock()

	return conn.WriteJSON(msg)
}

func topicList(c *client) []string {
	out := make([]string, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	return out
}
