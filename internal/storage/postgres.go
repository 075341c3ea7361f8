// Package storage provides PostgreSQL implementation of the Store interface.
// This implementation is intended for production use with persistent data storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgres keeps drafts and snapshots in PostgreSQL.
type postgres struct {
	db *pgxpool.Pool // Connection pool to PostgreSQL database
}

// NewPostgres creates a new PostgreSQL storage implementation.
// It establishes a connection pool to the database and initializes the schema.
func NewPostgres(dsn string) (Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid database DSN: %w", err)
	}

	// Connection pool settings
	config.MaxConns = 20
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &postgres{db: pool}, nil
}

// initSchema creates the tables and indexes if they don't already exist.
func initSchema(ctx context.Context, db *pgxpool.Pool) error {
	schema := `
		-- Working copies, one per subject and channel
		CREATE TABLE IF NOT EXISTS channel_drafts (
		    subject TEXT NOT NULL,
		    channel_id TEXT NOT NULL,
		    name TEXT NOT NULL,
		    document JSONB NOT NULL,
		    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		    PRIMARY KEY (subject, channel_id)
		);

		-- Canonical documents recorded after each save (append-only)
		CREATE TABLE IF NOT EXISTS channel_snapshots (
		    id TEXT PRIMARY KEY,                     -- ULID
		    channel_id TEXT NOT NULL,
		    subject TEXT NOT NULL,
		    name TEXT NOT NULL,
		    revision BIGINT NOT NULL,
		    document JSONB NOT NULL,
		    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_channel_snapshots_channel_id ON channel_snapshots(channel_id, id DESC);
	`

	_, err := db.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool
func (p *postgres) Close() {
	p.db.Close()
}

// Ping checks the database connection
func (p *postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// SaveDraft creates or replaces the draft of a subject
func (p *postgres) SaveDraft(ctx context.Context, d Draft) error {
	query := `INSERT INTO channel_drafts (subject, channel_id, name, document, updated_at)
	          VALUES ($1, $2, $3, $4, $5)
	          ON CONFLICT (subject, channel_id)
	          DO UPDATE SET name = EXCLUDED.name, document = EXCLUDED.document, updated_at = EXCLUDED.updated_at`
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	if _, err := p.db.Exec(ctx, query, d.Subject, d.ChannelID, d.Name, []byte(d.Document), updated); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// GetDraft retrieves the draft of a subject
func (p *postgres) GetDraft(ctx context.Context, subject, channelID string) (*Draft, error) {
	query := `SELECT subject, channel_id, name, document, updated_at
	          FROM channel_drafts WHERE subject = $1 AND channel_id = $2`
	var d Draft
	var doc []byte
	err := p.db.QueryRow(ctx, query, subject, channelID).Scan(&d.Subject, &d.ChannelID, &d.Name, &doc, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	d.Document = doc
	return &d, nil
}

// DeleteDraft removes the draft of a subject
func (p *postgres) DeleteDraft(ctx context.Context, subject, channelID string) error {
	query := `DELETE FROM channel_drafts WHERE subject = $1 AND channel_id = $2`
	if _, err := p.db.Exec(ctx, query, subject, channelID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// CreateSnapshot records a snapshot
func (p *postgres) CreateSnapshot(ctx context.Context, s Snapshot) error {
	query := `INSERT INTO channel_snapshots (id, channel_id, subject, name, revision, document, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := p.db.Exec(ctx, query, s.ID, s.ChannelID, s.Subject, s.Name, s.Revision, []byte(s.Document), s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves one snapshot of a channel
func (p *postgres) GetSnapshot(ctx context.Context, channelID, id string) (*Snapshot, error) {
	query := `SELECT id, channel_id, subject, name, revision, document, created_at
	          FROM channel_snapshots WHERE channel_id = $1 AND id = $2`
	var s Snapshot
	var doc []byte
	err := p.db.QueryRow(ctx, query, channelID, id).Scan(&s.ID, &s.ChannelID, &s.Subject, &s.Name, &s.Revision, &doc, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	s.Document = doc
	return &s, nil
}

// ListSnapshots lists the snapshots of a channel, newest first, with
// cursor-based pagination. Documents are left out of the listing.
func (p *postgres) ListSnapshots(ctx context.Context, q SnapshotQuery) (*SnapshotPage, error) {
	baseQuery := `SELECT id, channel_id, subject, name, revision, created_at
	              FROM channel_snapshots WHERE channel_id = $1`
	args := []interface{}{q.ChannelID}
	argIndex := 2

	if q.Cursor != "" {
		c, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		baseQuery += fmt.Sprintf(" AND id < $%d", argIndex)
		args = append(args, c.LastID)
		argIndex++
	}

	limit := clampLimit(q.Limit)
	baseQuery += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra row to detect a next page

	rows, err := p.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	page := &SnapshotPage{Snapshots: []Snapshot{}}
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.ChannelID, &s.Subject, &s.Name, &s.Revision, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		page.Snapshots = append(page.Snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	if len(page.Snapshots) > limit {
		page.Snapshots = page.Snapshots[:limit]
		page.NextCursor = encodeCursor(page.Snapshots[limit-1].ID)
	}
	return page, nil
}
