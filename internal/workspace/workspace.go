// Package workspace holds the console state of each signed-in subject: the
// channel document being edited, the channel list, and the state of the
// workflows that fill them.
//
// Document updates run under the workspace lock and are atomic. Workflows
// release the lock while they wait on the engine. Saves are serialized per
// channel id across all workspaces, and a save that resolves after the
// workspace moved to another channel leaves the new document alone. List
// refreshes are last-write-wins on the channel list and never touch the
// document.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relaycore/channel-console/internal/channel"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/workflow"
)

// ErrNoDocument is returned by document operations before a channel is loaded.
var ErrNoDocument = errors.New("no channel loaded")

// Snapshot is a consistent copy of one workspace. Its document and list are
// shared with the workspace and must not be modified.
type Snapshot struct {
	Subject  string                 `json:"subject"`
	Revision uint64                 `json:"revision"` // bumped on every change
	Channel  *model.Channel         `json:"channel,omitempty"`
	Dirty    bool                   `json:"dirty"` // document edited since load or save
	Channels []model.ChannelSummary `json:"channels"`
	List     workflow.State         `json:"list"`
	Persist  workflow.State         `json:"persist"`
	Create   workflow.State         `json:"create"`
}

// Workspace is the state of one subject.
type Workspace struct {
	mgr  *Manager
	mu   sync.Mutex
	snap Snapshot
	subs map[int]chan Snapshot
	next int
}

// Snapshot returns the current state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap
}

// change applies fn under the lock and notifies subscribers and hooks when
// fn reports a change.
func (w *Workspace) change(ctx context.Context, fn func(s *Snapshot) (bool, error)) (Snapshot, error) {
	w.mu.Lock()
	changed, err := fn(&w.snap)
	if err != nil || !changed {
		s := w.snap
		w.mu.Unlock()
		return s, err
	}
	w.snap.Revision++
	s := w.snap
	for _, ch := range w.subs {
		select {
		case ch <- s:
		default:
			// Slow subscriber; drop the stale value and keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
	w.mu.Unlock()

	if w.mgr.hooks.OnChange != nil {
		w.mgr.hooks.OnChange(ctx, s)
	}
	return s, nil
}

// Update replaces the document with fn's result. fn receives the current
// document and must not modify it. Returning the same pointer is a no-op.
func (w *Workspace) Update(ctx context.Context, fn func(c *model.Channel) (*model.Channel, error)) (Snapshot, error) {
	var edited *model.Channel
	s, err := w.change(ctx, func(s *Snapshot) (bool, error) {
		if s.Channel == nil {
			return false, ErrNoDocument
		}
		next, err := fn(s.Channel)
		if err != nil {
			return false, err
		}
		if next == s.Channel {
			return false, nil
		}
		s.Channel = next
		s.Dirty = true
		edited = next
		return true, nil
	})
	if err == nil && edited != nil && w.mgr.hooks.OnEdit != nil {
		w.mgr.hooks.OnEdit(ctx, s.Subject, edited)
	}
	return s, err
}

// Apply dispatches one update action against the document.
func (w *Workspace) Apply(ctx context.Context, a channel.Action) (Snapshot, error) {
	return w.Update(ctx, func(c *model.Channel) (*model.Channel, error) {
		return channel.Apply(c, a)
	})
}

// SetSourceType replaces the source connector properties with the defaults of kind.
func (w *Workspace) SetSourceType(ctx context.Context, kind model.SourceKind) (Snapshot, error) {
	return w.Update(ctx, func(c *model.Channel) (*model.Channel, error) {
		if _, ok := model.SourceClass(kind); !ok {
			return nil, fmt.Errorf("%w: source type %q", channel.ErrInvalidValue, kind)
		}
		return channel.SetSourceType(c, kind), nil
	})
}

// SetDocument replaces the document wholesale, as loading does.
func (w *Workspace) SetDocument(ctx context.Context, c *model.Channel) Snapshot {
	s, _ := w.change(ctx, func(s *Snapshot) (bool, error) {
		s.Channel = model.Hydrate(c)
		s.Dirty = false
		return true, nil
	})
	return s
}

// Subscribe returns a channel receiving every later snapshot. Only the newest
// undelivered snapshot is kept. cancel must be called to release it.
func (w *Workspace) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	w.mu.Lock()
	id := w.next
	w.next++
	w.subs[id] = ch
	w.mu.Unlock()
	return ch, func() {
		w.mu.Lock()
		delete(w.subs, id)
		w.mu.Unlock()
	}
}

// Hooks are called after state changes, outside the workspace lock.
type Hooks struct {
	// OnChange sees every new snapshot.
	OnChange func(ctx context.Context, s Snapshot)
	// OnEdit sees the document after each applied update.
	OnEdit func(ctx context.Context, subject string, c *model.Channel)
	// OnSaved sees the canonical document adopted after a save.
	OnSaved func(ctx context.Context, subject string, c *model.Channel)
}

// Loader fetches a channel document by id.
type Loader interface {
	GetChannel(ctx context.Context, id string) (*model.Channel, error)
}

// Manager owns the workspaces of all subjects.
type Manager struct {
	runner *workflow.Runner
	loader Loader
	hooks  Hooks
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	spaces map[string]*Workspace
	saving *keyedMutex
}

// NewManager creates a Manager. loader is usually the engine client the
// runner was built with.
func NewManager(runner *workflow.Runner, loader Loader, hooks Hooks, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runner: runner,
		loader: loader,
		hooks:  hooks,
		logger: logger,
		now:    time.Now,
		spaces: make(map[string]*Workspace),
		saving: newKeyedMutex(),
	}
}

// Get returns the workspace of subject, creating it on first use.
func (m *Manager) Get(subject string) *Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.spaces[subject]
	if !ok {
		w = &Workspace{
			mgr: m,
			snap: Snapshot{
				Subject:  subject,
				Channels: []model.ChannelSummary{},
				List:     workflow.Idle(),
				Persist:  workflow.Idle(),
				Create:   workflow.Idle(),
			},
			subs: make(map[int]chan Snapshot),
		}
		m.spaces[subject] = w
	}
	return w
}

// Subjects lists the subjects with a workspace.
func (m *Manager) Subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.spaces))
	for s := range m.spaces {
		out = append(out, s)
	}
	return out
}

// Refresh runs the list workflow for subject.
func (m *Manager) Refresh(ctx context.Context, subject string) (Snapshot, error) {
	w := m.Get(subject)
	w.change(ctx, func(s *Snapshot) (bool, error) {
		s.List = s.List.Pending(m.now())
		return true, nil
	})

	channels, err := m.runner.ListChannels(ctx)

	s, _ := w.change(ctx, func(s *Snapshot) (bool, error) {
		s.List = s.List.Settle(err, m.now())
		if err == nil {
			s.Channels = channels
		}
		return true, nil
	})
	return s, err
}

// Load fetches channel id and makes it the document of subject.
func (m *Manager) Load(ctx context.Context, subject, id string) (Snapshot, error) {
	c, err := m.loader.GetChannel(ctx, id)
	if err != nil {
		return m.Get(subject).Snapshot(), err
	}
	return m.Get(subject).SetDocument(ctx, c), nil
}

// Save runs the persist workflow on the document of subject. The resolved
// copy replaces the document only if the workspace still holds the same
// channel.
func (m *Manager) Save(ctx context.Context, subject string) (Snapshot, error) {
	w := m.Get(subject)
	var doc *model.Channel
	if _, err := w.change(ctx, func(s *Snapshot) (bool, error) {
		if s.Channel == nil {
			return false, ErrNoDocument
		}
		doc = s.Channel
		s.Persist = s.Persist.Pending(m.now())
		return true, nil
	}); err != nil {
		return w.Snapshot(), err
	}

	unlock := m.saving.Lock(doc.ID)
	resolved, err := m.runner.PersistChannel(ctx, doc)
	unlock()

	var adopted *model.Channel
	s, _ := w.change(ctx, func(s *Snapshot) (bool, error) {
		s.Persist = s.Persist.Settle(err, m.now())
		if err != nil {
			return true, nil
		}
		if s.Channel != nil && s.Channel.ID == doc.ID {
			adopted = model.Hydrate(resolved)
			s.Channel = adopted
			s.Dirty = false
		} else {
			m.logger.Info("workspace moved on during save; keeping current document",
				"subject", subject, "saved_channel_id", doc.ID)
		}
		return true, nil
	})
	if adopted != nil && m.hooks.OnSaved != nil {
		m.hooks.OnSaved(ctx, subject, resolved)
	}
	return s, err
}

// Create runs the create workflow and loads the new channel into the workspace.
func (m *Manager) Create(ctx context.Context, subject, name string) (Snapshot, error) {
	w := m.Get(subject)
	var existing []model.ChannelSummary
	w.change(ctx, func(s *Snapshot) (bool, error) {
		existing = s.Channels
		s.Create = s.Create.Pending(m.now())
		return true, nil
	})

	created, err := m.runner.CreateChannel(ctx, name, existing)

	s, _ := w.change(ctx, func(s *Snapshot) (bool, error) {
		s.Create = s.Create.Settle(err, m.now())
		if err == nil {
			s.Channel = model.Hydrate(created)
			s.Dirty = false
		}
		return true, nil
	})
	return s, err
}
