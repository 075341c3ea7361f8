package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

type published struct {
	subject string
	data    []byte
}

type fakeJS struct {
	msgs []published
	err  error
}

func (f *fakeJS) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, published{subj, data})
	return &nats.PubAck{Stream: "CONSOLE_CHANNELS", Sequence: uint64(len(f.msgs))}, nil
}

func TestPublishChannelSaved(t *testing.T) {
	js := &fakeJS{}
	p := newNatsPub(nil, js)
	ctx := WithCorrelationID(context.Background(), "corr-1")

	e := ChannelSaved{ChannelID: "c1", Name: "Lab", Revision: 3, Subject: "alice"}
	if err := p.PublishChannelSaved(ctx, e); err != nil {
		t.Fatal(err)
	}
	if len(js.msgs) != 1 || js.msgs[0].subject != TypeChannelSaved {
		t.Fatalf("published = %+v", js.msgs)
	}

	var env struct {
		Type          string       `json:"type"`
		CorrelationID string       `json:"correlationId"`
		Payload       ChannelSaved `json:"payload"`
	}
	if err := json.Unmarshal(js.msgs[0].data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Type != TypeChannelSaved || env.CorrelationID != "corr-1" || env.Payload != e {
		t.Errorf("envelope = %+v", env)
	}
}

func TestPublishDedup(t *testing.T) {
	js := &fakeJS{}
	p := newNatsPub(nil, js)
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	e := WorkspaceChanged{Subject: "alice", Revision: 7}
	p.PublishWorkspaceChanged(ctx, e)
	p.PublishWorkspaceChanged(ctx, e)
	if len(js.msgs) != 1 {
		t.Fatalf("published %d copies of one revision, want 1", len(js.msgs))
	}

	e.Revision = 8
	p.PublishWorkspaceChanged(ctx, e)
	if len(js.msgs) != 2 {
		t.Fatalf("next revision not published")
	}

	now = now.Add(dedupWindow)
	e.Revision = 7
	p.PublishWorkspaceChanged(ctx, e)
	if len(js.msgs) != 3 {
		t.Errorf("key still suppressed after the window")
	}
}

func TestPublishFailureReleasesKey(t *testing.T) {
	js := &fakeJS{err: errors.New("no responders")}
	p := newNatsPub(nil, js)
	e := ChannelSaved{ChannelID: "c1", Revision: 1}

	if err := p.PublishChannelSaved(context.Background(), e); err == nil {
		t.Fatal("expected publish error")
	}
	js.err = nil
	if err := p.PublishChannelSaved(context.Background(), e); err != nil || len(js.msgs) != 1 {
		t.Errorf("retry after failure: err=%v published=%d", err, len(js.msgs))
	}
}

type obsRecorder struct {
	types []string
	errs  []error
}

func (o *obsRecorder) ObservePublish(eventType string, err error, d time.Duration) {
	o.types = append(o.types, eventType)
	o.errs = append(o.errs, err)
}

func TestWithObserver(t *testing.T) {
	obs := &obsRecorder{}
	p := WithObserver(NewNoop(), obs)
	ctx := context.Background()
	p.PublishChannelSaved(ctx, ChannelSaved{})
	p.PublishWorkspaceChanged(ctx, WorkspaceChanged{})

	if len(obs.types) != 2 || obs.types[0] != TypeChannelSaved || obs.types[1] != TypeWorkspaceChanged {
		t.Errorf("observed = %v", obs.types)
	}
	if WithObserver(NewNoop(), nil) == nil {
		t.Error("nil observer dropped the publisher")
	}
}

func TestNewPublisherWithoutURL(t *testing.T) {
	p := NewPublisher("", nil)
	if _, ok := p.(*noop); !ok {
		t.Errorf("NewPublisher(\"\") = %T, want noop", p)
	}
	if err := p.Close(); err != nil {
		t.Error(err)
	}
}
