package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relaycore/channel-console/internal/channel"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/workflow"
)

// stubEngine serves channels from a map. UpdateChannel waits on gate when set.
type stubEngine struct {
	mu       sync.Mutex
	channels map[string]*model.Channel
	items    []model.ChannelListItem
	listErr  error

	gate     chan struct{}
	entered  chan struct{}
	inflight int32
	maxSeen  int32
}

func newStub(chs ...*model.Channel) *stubEngine {
	e := &stubEngine{channels: map[string]*model.Channel{}}
	for _, c := range chs {
		e.channels[c.ID] = c
		e.items = append(e.items, model.ChannelListItem{ID: c.ID, Name: c.Name})
	}
	return e
}

func (e *stubEngine) ListChannels(context.Context) ([]model.ChannelListItem, error) {
	return e.items, e.listErr
}

func (e *stubEngine) Statistics(context.Context) ([]model.ChannelStatistics, error) {
	return nil, nil
}

func (e *stubEngine) Statuses(context.Context) ([]model.DashboardStatus, error) {
	return nil, nil
}

func (e *stubEngine) GetChannel(_ context.Context, id string) (*model.Channel, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.channels[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (e *stubEngine) CreateChannel(_ context.Context, c *model.Channel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels[c.ID] = c
	return nil
}

func (e *stubEngine) UpdateChannel(_ context.Context, c *model.Channel, _ time.Time) (json.RawMessage, error) {
	n := atomic.AddInt32(&e.inflight, 1)
	for {
		seen := atomic.LoadInt32(&e.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&e.maxSeen, seen, n) {
			break
		}
	}
	if e.entered != nil {
		e.entered <- struct{}{}
	}
	if e.gate != nil {
		<-e.gate
	}
	atomic.AddInt32(&e.inflight, -1)

	stored := *c
	stored.Revision++
	e.mu.Lock()
	e.channels[c.ID] = &stored
	e.mu.Unlock()
	return json.RawMessage(`{"boolean":true}`), nil
}

func newManager(e *stubEngine, hooks Hooks) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(workflow.NewRunner(e, workflow.WithLogger(logger)), e, hooks, logger)
}

func TestUpdateWithoutDocument(t *testing.T) {
	m := newManager(newStub(), Hooks{})
	_, err := m.Get("alice").Apply(context.Background(), channel.Action{Type: "channel.name", Value: json.RawMessage(`"x"`)})
	if !errors.Is(err, ErrNoDocument) {
		t.Errorf("Apply error = %v, want ErrNoDocument", err)
	}
}

func TestLoadApplyAndSubscribe(t *testing.T) {
	lab := model.NewChannel("Lab")
	var edits int
	m := newManager(newStub(lab), Hooks{OnEdit: func(context.Context, string, *model.Channel) { edits++ }})
	ctx := context.Background()

	s, err := m.Load(ctx, "alice", lab.ID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Channel.ID != lab.ID || s.Dirty {
		t.Fatalf("loaded snapshot = %s dirty=%v", s.Channel.ID, s.Dirty)
	}

	w := m.Get("alice")
	updates, cancel := w.Subscribe()
	defer cancel()

	s, err = w.Apply(ctx, channel.Action{Type: "channel.name", Value: json.RawMessage(`"Renamed"`)})
	if err != nil {
		t.Fatal(err)
	}
	if s.Channel.Name != "Renamed" || !s.Dirty {
		t.Errorf("after apply name = %q dirty = %v", s.Channel.Name, s.Dirty)
	}
	if edits != 1 {
		t.Errorf("OnEdit called %d times, want 1", edits)
	}

	select {
	case got := <-updates:
		if got.Revision != s.Revision {
			t.Errorf("streamed revision = %d, want %d", got.Revision, s.Revision)
		}
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	// Other workspaces are independent.
	if m.Get("bob").Snapshot().Channel != nil {
		t.Error("bob sees alice's document")
	}
}

func TestApplyNoOpKeepsRevision(t *testing.T) {
	lab := model.NewChannel("Lab")
	m := newManager(newStub(lab), Hooks{})
	ctx := context.Background()
	s, _ := m.Load(ctx, "alice", lab.ID)

	next, err := m.Get("alice").Apply(ctx, channel.Action{
		Type: "destination.name", MetaDataID: int64Ptr(99), Value: json.RawMessage(`"ghost"`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if next.Revision != s.Revision || next.Dirty {
		t.Errorf("no-op update changed the workspace: rev %d -> %d", s.Revision, next.Revision)
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestRefresh(t *testing.T) {
	e := newStub(model.NewChannel("A"), model.NewChannel("B"))
	m := newManager(e, Hooks{})
	ctx := context.Background()

	s, err := m.Refresh(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Channels) != 2 || s.List.Status != workflow.StatusFulfilled {
		t.Errorf("refresh = %d channels, %s", len(s.Channels), s.List.Status)
	}

	e.listErr = errors.New("connection refused")
	s, err = m.Refresh(ctx, "alice")
	if err == nil {
		t.Fatal("refresh succeeded with a failing engine")
	}
	if s.List.Status != workflow.StatusRejected || s.List.Error != "Failed to fetch channels: connection refused" {
		t.Errorf("list state = %+v", s.List)
	}
	if len(s.Channels) != 2 {
		t.Errorf("failed refresh dropped the previous list")
	}
}

func TestSaveAdoptsCanonicalCopy(t *testing.T) {
	lab := model.NewChannel("Lab")
	var saved []*model.Channel
	m := newManager(newStub(lab), Hooks{OnSaved: func(_ context.Context, _ string, c *model.Channel) { saved = append(saved, c) }})
	ctx := context.Background()
	m.Load(ctx, "alice", lab.ID)
	m.Get("alice").Apply(ctx, channel.Action{Type: "channel.description", Value: json.RawMessage(`"notes"`)})

	s, err := m.Save(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if s.Persist.Status != workflow.StatusFulfilled || s.Dirty {
		t.Errorf("persist = %+v dirty = %v", s.Persist, s.Dirty)
	}
	if s.Channel.Revision != lab.Revision+1 || s.Channel.Description != "notes" {
		t.Errorf("document = rev %d %q, want the stored copy", s.Channel.Revision, s.Channel.Description)
	}
	if len(saved) != 1 {
		t.Errorf("OnSaved called %d times, want 1", len(saved))
	}
}

func TestSaveAfterSwitchKeepsNewDocument(t *testing.T) {
	lab, adt := model.NewChannel("Lab"), model.NewChannel("ADT")
	e := newStub(lab, adt)
	e.gate = make(chan struct{})
	e.entered = make(chan struct{}, 1)
	var saved int
	m := newManager(e, Hooks{OnSaved: func(context.Context, string, *model.Channel) { saved++ }})
	ctx := context.Background()
	m.Load(ctx, "alice", lab.ID)

	done := make(chan Snapshot)
	go func() {
		s, _ := m.Save(ctx, "alice")
		done <- s
	}()
	<-e.entered
	m.Load(ctx, "alice", adt.ID)
	close(e.gate)

	s := <-done
	if s.Channel.ID != adt.ID {
		t.Errorf("document = %s, want the channel loaded during the save", s.Channel.Name)
	}
	if s.Persist.Status != workflow.StatusFulfilled {
		t.Errorf("persist = %+v", s.Persist)
	}
	if saved != 0 {
		t.Errorf("OnSaved called for a document no longer in the workspace")
	}
}

func TestSavesSerializedPerChannel(t *testing.T) {
	lab := model.NewChannel("Lab")
	e := newStub(lab)
	e.gate = make(chan struct{})
	m := newManager(e, Hooks{})
	ctx := context.Background()
	m.Load(ctx, "alice", lab.ID)
	m.Load(ctx, "bob", lab.ID)

	var wg sync.WaitGroup
	for _, who := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(who string) {
			defer wg.Done()
			m.Save(ctx, who)
		}(who)
	}
	go func() {
		for i := 0; i < 2; i++ {
			time.Sleep(20 * time.Millisecond)
			e.gate <- struct{}{}
		}
	}()
	wg.Wait()

	if got := atomic.LoadInt32(&e.maxSeen); got != 1 {
		t.Errorf("max concurrent saves of one channel = %d, want 1", got)
	}
}

func TestSaveWithoutDocument(t *testing.T) {
	m := newManager(newStub(), Hooks{})
	if _, err := m.Save(context.Background(), "alice"); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Save error = %v, want ErrNoDocument", err)
	}
}

func TestCreate(t *testing.T) {
	e := newStub(model.NewChannel("Lab"))
	m := newManager(e, Hooks{})
	ctx := context.Background()
	m.Refresh(ctx, "alice")

	if _, err := m.Create(ctx, "alice", "Lab"); !errors.Is(err, workflow.ErrNameTaken) {
		t.Errorf("Create(Lab) error = %v, want ErrNameTaken", err)
	}
	if s := m.Get("alice").Snapshot(); s.Create.Status != workflow.StatusRejected {
		t.Errorf("create state = %+v", s.Create)
	}

	s, err := m.Create(ctx, "alice", "ADT")
	if err != nil {
		t.Fatal(err)
	}
	if s.Channel == nil || s.Channel.Name != "ADT" || s.Create.Status != workflow.StatusFulfilled {
		t.Errorf("created snapshot = %+v", s.Create)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	if len(k.keys) != 0 {
		t.Errorf("keys = %d after unlock, want 0", len(k.keys))
	}
}
