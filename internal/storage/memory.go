package storage

import (
	"context"
	"sort"
	"sync"
)

type draftKey struct{ subject, channelID string }

// memory implements the Store interface using in-memory storage.
// It's intended for development and testing purposes.
type memory struct {
	mu        sync.RWMutex
	drafts    map[draftKey]Draft
	snapshots map[string][]Snapshot // channel id to snapshots, oldest first
	ids       map[string]struct{}
}

// NewMemory creates a new in-memory storage implementation.
func NewMemory() Store {
	return &memory{
		drafts:    make(map[draftKey]Draft),
		snapshots: make(map[string][]Snapshot),
		ids:       make(map[string]struct{}),
	}
}

func (m *memory) SaveDraft(ctx context.Context, d Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.Document = append([]byte(nil), d.Document...)
	m.drafts[draftKey{d.Subject, d.ChannelID}] = d
	return nil
}

func (m *memory) GetDraft(ctx context.Context, subject, channelID string) (*Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[draftKey{subject, channelID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *memory) DeleteDraft(ctx context.Context, subject, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, draftKey{subject, channelID})
	return nil
}

func (m *memory) CreateSnapshot(ctx context.Context, s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ids[s.ID]; exists {
		return ErrConflict
	}
	s.Document = append([]byte(nil), s.Document...)
	m.ids[s.ID] = struct{}{}
	list := append(m.snapshots[s.ChannelID], s)
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	m.snapshots[s.ChannelID] = list
	return nil
}

func (m *memory) GetSnapshot(ctx context.Context, channelID, id string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.snapshots[channelID] {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memory) ListSnapshots(ctx context.Context, q SnapshotQuery) (*SnapshotPage, error) {
	var before string
	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		before = c.LastID
	}
	limit := clampLimit(q.Limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.snapshots[q.ChannelID]
	page := &SnapshotPage{Snapshots: []Snapshot{}}
	for i := len(all) - 1; i >= 0; i-- {
		s := all[i]
		if before != "" && s.ID >= before {
			continue
		}
		if len(page.Snapshots) == limit {
			page.NextCursor = encodeCursor(page.Snapshots[limit-1].ID)
			break
		}
		s.Document = nil
		page.Snapshots = append(page.Snapshots, s)
	}
	return page, nil
}

func (m *memory) Ping(ctx context.Context) error { return nil }

func (m *memory) Close() {}
