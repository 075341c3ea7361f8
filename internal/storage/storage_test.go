package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDrafts(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.GetDraft(ctx, "alice", "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetDraft on empty store: %v", err)
	}

	doc := json.RawMessage(`{"id":"c1","name":"Lab"}`)
	if err := s.SaveDraft(ctx, Draft{Subject: "alice", ChannelID: "c1", Name: "Lab", Document: doc}); err != nil {
		t.Fatal(err)
	}
	doc[2] = 'X' // stored copy must not alias the caller's buffer

	d, err := s.GetDraft(ctx, "alice", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if string(d.Document) != `{"id":"c1","name":"Lab"}` {
		t.Errorf("document = %s", d.Document)
	}
	if _, err := s.GetDraft(ctx, "bob", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bob sees alice's draft")
	}

	s.SaveDraft(ctx, Draft{Subject: "alice", ChannelID: "c1", Name: "Lab 2", Document: json.RawMessage(`{}`)})
	d, _ = s.GetDraft(ctx, "alice", "c1")
	if d.Name != "Lab 2" {
		t.Errorf("draft not replaced: %q", d.Name)
	}

	s.DeleteDraft(ctx, "alice", "c1")
	if _, err := s.GetDraft(ctx, "alice", "c1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("draft survived delete")
	}
}

func TestSnapshotsPagination(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		id := NewSnapshotID(at)
		ids = append(ids, id)
		err := s.CreateSnapshot(ctx, Snapshot{
			ID: id, ChannelID: "c1", Subject: "alice", Revision: int64(i + 1),
			Document: json.RawMessage(`{}`), CreatedAt: at,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	s.CreateSnapshot(ctx, Snapshot{ID: NewSnapshotID(base), ChannelID: "c2"})

	page, err := s.ListSnapshots(ctx, SnapshotQuery{ChannelID: "c1", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Snapshots) != 2 || page.Snapshots[0].ID != ids[4] || page.Snapshots[1].ID != ids[3] {
		t.Fatalf("first page = %+v", page.Snapshots)
	}
	if page.Snapshots[0].Document != nil {
		t.Error("listing carries documents")
	}
	if page.NextCursor == "" {
		t.Fatal("no cursor on a partial listing")
	}

	var seen []string
	cursor := page.NextCursor
	for cursor != "" {
		p, err := s.ListSnapshots(ctx, SnapshotQuery{ChannelID: "c1", Limit: 2, Cursor: cursor})
		if err != nil {
			t.Fatal(err)
		}
		for _, snap := range p.Snapshots {
			seen = append(seen, snap.ID)
		}
		cursor = p.NextCursor
	}
	want := []string{ids[2], ids[1], ids[0]}
	if len(seen) != len(want) {
		t.Fatalf("remaining pages = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %s, want %s", i, seen[i], want[i])
		}
	}

	got, err := s.GetSnapshot(ctx, "c1", ids[1])
	if err != nil || got.Revision != 2 || string(got.Document) != `{}` {
		t.Errorf("GetSnapshot = %+v, %v", got, err)
	}
	if _, err := s.GetSnapshot(ctx, "c2", ids[1]); !errors.Is(err, ErrNotFound) {
		t.Errorf("snapshot found under another channel")
	}
}

func TestSnapshotConflict(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	id := NewSnapshotID(time.Now())
	if err := s.CreateSnapshot(ctx, Snapshot{ID: id, ChannelID: "c1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateSnapshot(ctx, Snapshot{ID: id, ChannelID: "c1"}); !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate id error = %v, want ErrConflict", err)
	}
}

func TestInvalidCursor(t *testing.T) {
	s := NewMemory()
	for _, c := range []string{"%%%", "bm90IGpzb24=", encodeCursor("not-a-ulid")} {
		if _, err := s.ListSnapshots(context.Background(), SnapshotQuery{ChannelID: "c1", Cursor: c}); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("cursor %q: err = %v, want ErrInvalidCursor", c, err)
		}
	}
}

func TestSnapshotIDsAreMonotonic(t *testing.T) {
	at := time.Now()
	a, b := NewSnapshotID(at), NewSnapshotID(at)
	if !(a < b) {
		t.Errorf("ids at the same instant not increasing: %s, %s", a, b)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 25, -3: 25, 10: 10, 100: 100, 500: 100} {
		if got := clampLimit(in); got != want {
			t.Errorf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
