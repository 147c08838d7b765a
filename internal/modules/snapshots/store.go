package snapshots

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/database"
)

// ErrNotFound is returned when a snapshot id is absent from the store.
var ErrNotFound = errors.New("snapshot not found")

// ListItem is a stored snapshot's identity without its payload.
type ListItem struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists snapshots in SQLite. Payloads are msgpack-encoded blobs;
// the schema stays trivial and the report shape can evolve freely.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a snapshot store and ensures its schema exists.
func NewStore(db *database.DB, log zerolog.Logger) (*Store, error) {
	store := &Store{
		db:  db,
		log: log.With().Str("component", "snapshot_store").Logger(),
	}
	if err := store.initSchema(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Conn().Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id         TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			payload    BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshots schema: %w", err)
	}
	return nil
}

// Save persists a snapshot. Snapshots are immutable: saving an existing id
// is an error.
func (s *Store) Save(snapshot *Snapshot) error {
	payload, err := msgpack.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", snapshot.ID, err)
	}

	_, err = s.db.Conn().Exec(
		`INSERT INTO snapshots (id, created_at, payload) VALUES (?, ?, ?)`,
		snapshot.ID,
		snapshot.Metadata.Timestamp.UTC().Format(time.RFC3339Nano),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", snapshot.ID, err)
	}

	s.log.Debug().Str("snapshot_id", snapshot.ID).Int("bytes", len(payload)).Msg("Stored snapshot")
	return nil
}

// Get loads a snapshot by id.
func (s *Store) Get(id string) (*Snapshot, error) {
	var payload []byte
	err := s.db.Conn().QueryRow(`SELECT payload FROM snapshots WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", id, err)
	}

	var snapshot Snapshot
	if err := msgpack.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", id, err)
	}
	return &snapshot, nil
}

// List returns stored snapshot ids, newest first.
func (s *Store) List(limit int) ([]ListItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Conn().Query(
		`SELECT id, created_at FROM snapshots ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	items := make([]ListItem, 0)
	for rows.Next() {
		var item ListItem
		var createdAt string
		if err := rows.Scan(&item.ID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse snapshot timestamp: %w", err)
		}
		item.CreatedAt = ts
		items = append(items, item)
	}
	return items, rows.Err()
}

// Prune deletes snapshots older than the cutoff and returns how many were
// removed.
func (s *Store) Prune(olderThan time.Time) (int64, error) {
	result, err := s.db.Conn().Exec(
		`DELETE FROM snapshots WHERE created_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Time("older_than", olderThan).Msg("Pruned snapshots")
	}
	return deleted, nil
}
