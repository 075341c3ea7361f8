// Package storage persists the console's working drafts and the revision
// snapshots recorded after each save. It has in-memory and PostgreSQL
// implementations of the Store interface.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Standard errors returned by the storage layer
var (
	ErrNotFound      = errors.New("not found")      // Returned when a draft or snapshot is not found
	ErrConflict      = errors.New("conflict")       // Returned when a snapshot id already exists
	ErrInvalidCursor = errors.New("invalid cursor") // Returned for a cursor this store did not issue
)

// Draft is the working copy of a channel document for one subject.
type Draft struct {
	Subject   string          `json:"subject"`
	ChannelID string          `json:"channelId"`
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshot is a canonical channel document as stored on the engine after a
// save. IDs are ULIDs, so they sort by creation time.
type Snapshot struct {
	ID        string          `json:"id"`
	ChannelID string          `json:"channelId"`
	Subject   string          `json:"subject"`
	Name      string          `json:"name"`
	Revision  int64           `json:"revision"`
	Document  json.RawMessage `json:"document,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// SnapshotQuery selects one page of a channel's snapshots, newest first.
type SnapshotQuery struct {
	ChannelID string
	Cursor    string
	Limit     int
}

// SnapshotPage is one page of snapshots.
type SnapshotPage struct {
	Snapshots  []Snapshot `json:"snapshots"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// Store interface defines the storage operations required by the console.
type Store interface {
	SaveDraft(ctx context.Context, d Draft) error                                  // Create or replace a draft
	GetDraft(ctx context.Context, subject, channelID string) (*Draft, error)       // Get the draft of a subject
	DeleteDraft(ctx context.Context, subject, channelID string) error              // Drop a draft after save
	CreateSnapshot(ctx context.Context, s Snapshot) error                          // Record a snapshot
	GetSnapshot(ctx context.Context, channelID, id string) (*Snapshot, error)      // Get one snapshot
	ListSnapshots(ctx context.Context, q SnapshotQuery) (*SnapshotPage, error)     // List snapshots, newest first
	Ping(ctx context.Context) error                                                // Check the backend is reachable
	Close()                                                                        // Release resources
}

// Page size bounds for ListSnapshots.
const (
	defaultLimit = 25
	maxLimit     = 100
)

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSnapshotID returns a ULID for a snapshot taken at t.
func NewSnapshotID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// cursorData represents the data encoded in a pagination cursor
type cursorData struct {
	LastID string `json:"lastId"` // ID of the last snapshot returned
}

// encodeCursor encodes cursor data into a base64 string
func encodeCursor(lastID string) string {
	jsonBytes, _ := json.Marshal(cursorData{LastID: lastID})
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// decodeCursor decodes a base64 cursor string into cursor data
func decodeCursor(cursor string) (*cursorData, error) {
	dataBytes, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	var data cursorData
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if _, err := ulid.ParseStrict(data.LastID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return &data, nil
}
