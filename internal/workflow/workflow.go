// Package workflow runs the console's fetch/reconcile workflows against the
// engine: listing channels with statistics and status enrichment, persisting a
// channel and adopting the engine's canonical copy, and creating channels.
//
// Each workflow reports its progress through a State that moves from idle to
// pending and then to fulfilled or rejected. Hard failures reject; failed
// enrichment steps are logged and skipped.
package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/relaycore/channel-console/internal/model"
)

// Status is the phase of a workflow run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
)

// State is the observable state of one workflow slice.
type State struct {
	Status  Status    `json:"status"`
	Loading bool      `json:"loading"`
	Error   string    `json:"error,omitempty"`
	Updated time.Time `json:"updated,omitempty"`
}

// Idle is the state before the first run.
func Idle() State { return State{Status: StatusIdle} }

// Pending marks a run in flight. The previous error is cleared.
func (s State) Pending(now time.Time) State {
	return State{Status: StatusPending, Loading: true, Updated: now}
}

// Settle ends a run with err, fulfilling it when err is nil.
func (s State) Settle(err error, now time.Time) State {
	if err != nil {
		return State{Status: StatusRejected, Error: err.Error(), Updated: now}
	}
	return State{Status: StatusFulfilled, Updated: now}
}

// Engine is the part of the engine API the workflows call.
type Engine interface {
	ListChannels(ctx context.Context) ([]model.ChannelListItem, error)
	Statistics(ctx context.Context) ([]model.ChannelStatistics, error)
	Statuses(ctx context.Context) ([]model.DashboardStatus, error)
	GetChannel(ctx context.Context, id string) (*model.Channel, error)
	CreateChannel(ctx context.Context, ch *model.Channel) error
	UpdateChannel(ctx context.Context, ch *model.Channel, startEdit time.Time) (json.RawMessage, error)
}

// Validator checks a channel document before it is sent to the engine.
type Validator interface {
	ValidateChannel(ch *model.Channel) error
}

// Recorder observes workflow outcomes.
type Recorder interface {
	ObserveWorkflow(workflow, status string, d time.Duration)
}

// Runner runs workflows against one engine.
type Runner struct {
	engine    Engine
	validator Validator
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithValidator checks documents before create and persist.
func WithValidator(v Validator) Option { return func(r *Runner) { r.validator = v } }

// WithRecorder reports run outcomes to rec.
func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// WithLogger sets the logger used for soft failures.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// NewRunner creates a Runner.
func NewRunner(engine Engine, opts ...Option) *Runner {
	r := &Runner{engine: engine, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

var tracer = otel.Tracer("github.com/relaycore/channel-console/internal/workflow")

// observe wraps one run in a span and reports its outcome.
func (r *Runner) observe(ctx context.Context, name string, attrs []attribute.KeyValue, run func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "workflow."+name)
	defer span.End()
	span.SetAttributes(attrs...)

	start := r.now()
	err := run(ctx)
	status := string(StatusFulfilled)
	if err != nil {
		status = string(StatusRejected)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if r.recorder != nil {
		r.recorder.ObserveWorkflow(name, status, r.now().Sub(start))
	}
	return err
}
