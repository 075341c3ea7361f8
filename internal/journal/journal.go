// Package journal records what happens in the workspaces: drafts after each
// edit, revision snapshots and exports after each save, and change events.
// Failures are logged and never fail the edit or save that caused them.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaycore/channel-console/internal/archive"
	"github.com/relaycore/channel-console/internal/event"
	"github.com/relaycore/channel-console/internal/model"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/workspace"
)

// Exporter uploads canonical channel documents.
type Exporter interface {
	ExportChannel(ctx context.Context, c *model.Channel) (*archive.Export, error)
}

// StorageObserver records storage outcomes.
type StorageObserver interface {
	ObserveStorage(operation string, err error, d time.Duration)
}

// Journal turns workspace hooks into storage writes, events and exports.
type Journal struct {
	store    storage.Store
	pub      event.Publisher
	exporter Exporter
	obs      StorageObserver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Journal.
type Option func(*Journal)

// WithExporter uploads every saved channel through e.
func WithExporter(e Exporter) Option { return func(j *Journal) { j.exporter = e } }

// WithObserver reports storage calls to obs.
func WithObserver(obs StorageObserver) Option { return func(j *Journal) { j.obs = obs } }

// WithLogger sets the logger for soft failures.
func WithLogger(l *slog.Logger) Option { return func(j *Journal) { j.logger = l } }

// New creates a Journal. pub may be nil.
func New(store storage.Store, pub event.Publisher, opts ...Option) *Journal {
	j := &Journal{store: store, pub: pub, logger: slog.Default(), now: time.Now}
	if j.pub == nil {
		j.pub = event.NewNoop()
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Hooks returns the workspace hooks that feed the journal.
func (j *Journal) Hooks() workspace.Hooks {
	return workspace.Hooks{
		OnChange: j.changed,
		OnEdit:   j.edited,
		OnSaved:  j.saved,
	}
}

func (j *Journal) observe(op string, start time.Time, err error) {
	if j.obs != nil {
		j.obs.ObserveStorage(op, err, time.Since(start))
	}
}

func (j *Journal) edited(ctx context.Context, subject string, c *model.Channel) {
	doc, err := json.Marshal(c)
	if err != nil {
		j.logger.Warn("draft not encoded", "subject", subject, "channel_id", c.ID, "error", err)
		return
	}
	start := time.Now()
	err = j.store.SaveDraft(ctx, storage.Draft{
		Subject:   subject,
		ChannelID: c.ID,
		Name:      c.Name,
		Document:  doc,
		UpdatedAt: j.now().UTC(),
	})
	j.observe("save_draft", start, err)
	if err != nil {
		j.logger.Warn("draft not saved", "subject", subject, "channel_id", c.ID, "error", err)
	}
}

func (j *Journal) saved(ctx context.Context, subject string, c *model.Channel) {
	doc, err := json.Marshal(c)
	if err != nil {
		j.logger.Warn("snapshot not encoded", "subject", subject, "channel_id", c.ID, "error", err)
		return
	}

	at := j.now().UTC()
	snap := storage.Snapshot{
		ID:        storage.NewSnapshotID(at),
		ChannelID: c.ID,
		Subject:   subject,
		Name:      c.Name,
		Revision:  int64(c.Revision),
		Document:  doc,
		CreatedAt: at,
	}
	start := time.Now()
	err = j.store.CreateSnapshot(ctx, snap)
	j.observe("create_snapshot", start, err)
	if err != nil {
		j.logger.Warn("snapshot not recorded", "subject", subject, "channel_id", c.ID, "error", err)
		snap.ID = ""
	}

	start = time.Now()
	err = j.store.DeleteDraft(ctx, subject, c.ID)
	j.observe("delete_draft", start, err)
	if err != nil {
		j.logger.Warn("draft not cleared", "subject", subject, "channel_id", c.ID, "error", err)
	}

	if err := j.pub.PublishChannelSaved(ctx, event.ChannelSaved{
		ChannelID:  c.ID,
		Name:       c.Name,
		Revision:   int64(c.Revision),
		Subject:    subject,
		SnapshotID: snap.ID,
	}); err != nil {
		j.logger.Warn("channel saved event not published", "channel_id", c.ID, "error", err)
	}

	if j.exporter != nil {
		if exp, err := j.exporter.ExportChannel(ctx, c); err != nil {
			j.logger.Warn("channel export failed", "channel_id", c.ID, "error", err)
		} else {
			j.logger.Debug("channel exported", "channel_id", c.ID, "key", exp.Key)
		}
	}
}

func (j *Journal) changed(ctx context.Context, s workspace.Snapshot) {
	e := event.WorkspaceChanged{
		Subject:  s.Subject,
		Revision: s.Revision,
		Dirty:    s.Dirty,
		List:     string(s.List.Status),
		Persist:  string(s.Persist.Status),
		Create:   string(s.Create.Status),
	}
	if s.Channel != nil {
		e.ChannelID = s.Channel.ID
	}
	if err := j.pub.PublishWorkspaceChanged(ctx, e); err != nil {
		j.logger.Warn("workspace changed event not published", "subject", s.Subject, "error", err)
	}
}

// Draft returns the stored draft of subject for channelID.
func (j *Journal) Draft(ctx context.Context, subject, channelID string) (*model.Channel, error) {
	start := time.Now()
	d, err := j.store.GetDraft(ctx, subject, channelID)
	j.observe("get_draft", start, err)
	if err != nil {
		return nil, err
	}
	var c model.Channel
	if err := json.Unmarshal(d.Document, &c); err != nil {
		return nil, fmt.Errorf("draft of %s: %w", channelID, err)
	}
	return &c, nil
}

// Snapshots lists the recorded snapshots of a channel.
func (j *Journal) Snapshots(ctx context.Context, q storage.SnapshotQuery) (*storage.SnapshotPage, error) {
	start := time.Now()
	page, err := j.store.ListSnapshots(ctx, q)
	j.observe("list_snapshots", start, errIgnoringCursor(err))
	return page, err
}

// Snapshot returns one recorded snapshot.
func (j *Journal) Snapshot(ctx context.Context, channelID, id string) (*storage.Snapshot, error) {
	start := time.Now()
	s, err := j.store.GetSnapshot(ctx, channelID, id)
	j.observe("get_snapshot", start, err)
	return s, err
}

// A bad cursor is the caller's fault, not a storage failure.
func errIgnoringCursor(err error) error {
	if errors.Is(err, storage.ErrInvalidCursor) {
		return nil
	}
	return err
}
