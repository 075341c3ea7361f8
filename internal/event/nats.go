// Package event publishes console events to NATS JetStream: a channel was
// saved on the engine, or a workspace changed.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Event types, also used as subjects.
const (
	TypeChannelSaved     = "console.channel.saved"
	TypeWorkspaceChanged = "console.workspace.changed"
)

// Publisher publishes console events.
type Publisher interface {
	PublishChannelSaved(ctx context.Context, e ChannelSaved) error
	PublishWorkspaceChanged(ctx context.Context, e WorkspaceChanged) error
	// Close closes the publisher connection
	Close() error
}

// ChannelSaved is the payload of TypeChannelSaved.
type ChannelSaved struct {
	ChannelID  string `json:"channelId"`
	Name       string `json:"name"`
	Revision   int64  `json:"revision"`
	Subject    string `json:"subject"`
	SnapshotID string `json:"snapshotId,omitempty"`
}

// WorkspaceChanged is the payload of TypeWorkspaceChanged.
type WorkspaceChanged struct {
	Subject   string `json:"subject"`
	Revision  uint64 `json:"revision"`
	ChannelID string `json:"channelId,omitempty"`
	Dirty     bool   `json:"dirty"`
	List      string `json:"list"`
	Persist   string `json:"persist"`
	Create    string `json:"create"`
}

// EventEnvelope represents the standard event envelope structure.
// All events published to NATS are wrapped in this envelope for consistency.
type EventEnvelope struct {
	Type          string      `json:"type"`          // Event type identifier
	Version       string      `json:"version"`       // Event schema version
	OccurredAt    time.Time   `json:"occurredAt"`    // When the event occurred
	CorrelationID string      `json:"correlationId"` // Correlation ID for tracing
	Payload       interface{} `json:"payload"`       // Event-specific data
}

type correlationKey struct{}

// WithCorrelationID returns a context whose events carry id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// correlationID returns the id stored in ctx, or a fresh one.
func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// noop is a no-op implementation of Publisher for when NATS is not configured.
type noop struct{}

// NewNoop returns a Publisher that drops every event.
func NewNoop() Publisher { return &noop{} }

func (n *noop) Close() error { return nil }

func (n *noop) PublishChannelSaved(ctx context.Context, e ChannelSaved) error { return nil }

func (n *noop) PublishWorkspaceChanged(ctx context.Context, e WorkspaceChanged) error { return nil }

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc  *nats.Conn // nil in tests
	js  jetStream
	now func() time.Time

	// Deduplication of repeated events for the same key
	dedup map[string]time.Time
	mutex sync.Mutex
}

// dedupWindow is how long a published key suppresses identical events.
const dedupWindow = 2 * time.Minute

// NewPublisher connects to url and prepares the console streams. An empty
// url, or any connection failure, yields a no-op publisher.
func NewPublisher(url string, logger *slog.Logger) Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url, nats.Name("channel-console"))
	if err != nil {
		logger.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		logger.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStreams(js); err != nil {
		logger.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return newNatsPub(nc, js)
}

func newNatsPub(nc *nats.Conn, js jetStream) *natsPub {
	return &natsPub{nc: nc, js: js, now: time.Now, dedup: make(map[string]time.Time)}
}

// initStreams creates the CONSOLE_CHANNELS and CONSOLE_WORKSPACES streams.
func initStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{Name: "CONSOLE_CHANNELS", Subjects: []string{"console.channel.*"}, MaxAge: 7 * 24 * time.Hour},
		// Workspace changes are only interesting while fresh.
		{Name: "CONSOLE_WORKSPACES", Subjects: []string{"console.workspace.*"}, MaxAge: time.Hour},
	}
	for i := range streams {
		cfg := streams[i]
		cfg.Retention = nats.LimitsPolicy
		cfg.Discard = nats.DiscardOld
		cfg.Storage = nats.FileStorage
		if _, err := js.AddStream(&cfg); err != nil {
			return fmt.Errorf("failed to create %s stream: %w", cfg.Name, err)
		}
	}
	return nil
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// claim reports whether key may be published now and marks it. Entries older
// than the window are pruned on the way.
func (p *natsPub) claim(key string) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	now := p.now()
	for k, t := range p.dedup {
		if now.Sub(t) >= dedupWindow {
			delete(p.dedup, k)
		}
	}
	if _, seen := p.dedup[key]; seen {
		return false
	}
	p.dedup[key] = now
	return true
}

func (p *natsPub) release(key string) {
	p.mutex.Lock()
	delete(p.dedup, key)
	p.mutex.Unlock()
}

func (p *natsPub) publish(ctx context.Context, typ, key string, payload interface{}) error {
	if !p.claim(key) {
		return nil
	}

	envelope := EventEnvelope{
		Type:          typ,
		Version:       "1.0.0",
		OccurredAt:    p.now().UTC(),
		CorrelationID: correlationID(ctx),
		Payload:       payload,
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		p.release(key)
		return err
	}
	if _, err := p.js.Publish(typ, b, nats.MsgId(key)); err != nil {
		p.release(key)
		return err
	}
	return nil
}

// PublishChannelSaved publishes one event per channel revision.
func (p *natsPub) PublishChannelSaved(ctx context.Context, e ChannelSaved) error {
	return p.publish(ctx, TypeChannelSaved, fmt.Sprintf("saved:%s:%d", e.ChannelID, e.Revision), e)
}

// PublishWorkspaceChanged publishes one event per workspace revision.
func (p *natsPub) PublishWorkspaceChanged(ctx context.Context, e WorkspaceChanged) error {
	return p.publish(ctx, TypeWorkspaceChanged, fmt.Sprintf("workspace:%s:%d", e.Subject, e.Revision), e)
}

// Observer records publish outcomes.
type Observer interface {
	ObservePublish(eventType string, err error, d time.Duration)
}

type observed struct {
	Publisher
	obs Observer
}

// WithObserver returns p reporting every publish to obs.
func WithObserver(p Publisher, obs Observer) Publisher {
	if obs == nil {
		return p
	}
	return &observed{Publisher: p, obs: obs}
}

func (o *observed) PublishChannelSaved(ctx context.Context, e ChannelSaved) error {
	start := time.Now()
	err := o.Publisher.PublishChannelSaved(ctx, e)
	o.obs.ObservePublish(TypeChannelSaved, err, time.Since(start))
	return err
}

func (o *observed) PublishWorkspaceChanged(ctx context.Context, e WorkspaceChanged) error {
	start := time.Now()
	err := o.Publisher.PublishWorkspaceChanged(ctx, e)
	o.obs.ObservePublish(TypeWorkspaceChanged, err, time.Since(start))
	return err
}
