package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/spanpanel/span-go/pkg/options"
)

// Store provides SQLite persistence for panel entries.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	reloadHooks []func(uniqueID string)
}

// NewStore creates a new store with the given database path.
// Use ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys and WAL mode for better performance
	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		unique_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		host TEXT NOT NULL,
		access_token TEXT,
		options_json TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_entries_host ON entries(host);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// OnReload registers a hook invoked when RequestReload fires for an entry.
func (s *Store) OnReload(fn func(uniqueID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloadHooks = append(s.reloadHooks, fn)
}

// FindByUniqueID retrieves an entry by unique ID.
// Returns nil without error when no entry matches.
func (s *Store) FindByUniqueID(uniqueID string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanEntry(s.db.QueryRow(`
		SELECT unique_id, title, host, access_token, options_json, created_at, updated_at
		FROM entries WHERE unique_id = ?
	`, uniqueID))
}

// FindByHost retrieves the entry configured for the given host.
// Returns nil without error when no entry matches.
func (s *Store) FindByHost(host string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.scanEntry(s.db.QueryRow(`
		SELECT unique_id, title, host, access_token, options_json, created_at, updated_at
		FROM entries WHERE host = ?
	`, host))
}

// All retrieves all entries, ordered by creation time.
func (s *Store) All() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT unique_id, title, host, access_token, options_json, created_at, updated_at
		FROM entries
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var accessToken, optionsJSON sql.NullString
		var createdAt, updatedAt sql.NullTime

		if err := rows.Scan(
			&entry.UniqueID, &entry.Title, &entry.Host,
			&accessToken, &optionsJSON, &createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}

		if err := fillEntry(&entry, accessToken, optionsJSON, createdAt, updatedAt); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Create stores a new entry.
func (s *Store) Create(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM entries WHERE unique_id = ?`, entry.UniqueID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, entry.UniqueID)
	}
	if err != sql.ErrNoRows {
		return err
	}

	optionsJSON, err := marshalOptions(entry.Options)
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = s.db.Exec(`
		INSERT INTO entries (unique_id, title, host, access_token, options_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.UniqueID, entry.Title, entry.Host, entry.AccessToken, optionsJSON, now, now)

	return err
}

// Update rewrites an existing entry's host and access token.
func (s *Store) Update(entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE entries SET host = ?, access_token = ?, updated_at = ?
		WHERE unique_id = ?
	`, entry.Host, entry.AccessToken, time.Now(), entry.UniqueID)
	if err != nil {
		return err
	}

	return checkAffected(res, entry.UniqueID)
}

// UpdateHost updates only the host of an existing entry.
func (s *Store) UpdateHost(uniqueID, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE entries SET host = ?, updated_at = ?
		WHERE unique_id = ?
	`, host, time.Now(), uniqueID)
	if err != nil {
		return err
	}

	return checkAffected(res, uniqueID)
}

// UpdateOptions rewrites the options of an existing entry.
func (s *Store) UpdateOptions(uniqueID string, opts options.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	optionsJSON, err := marshalOptions(opts)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE entries SET options_json = ?, updated_at = ?
		WHERE unique_id = ?
	`, optionsJSON, time.Now(), uniqueID)
	if err != nil {
		return err
	}

	return checkAffected(res, uniqueID)
}

// Delete removes an entry.
func (s *Store) Delete(uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM entries WHERE unique_id = ?", uniqueID)
	return err
}

// RequestReload asks consumers of the entry to reload it.
// Hooks run on the calling goroutine, outside the store lock.
func (s *Store) RequestReload(uniqueID string) error {
	s.mu.RLock()
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM entries WHERE unique_id = ?`, uniqueID).Scan(&exists)
	hooks := make([]func(string), len(s.reloadHooks))
	copy(hooks, s.reloadHooks)
	s.mu.RUnlock()

	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}
	if err != nil {
		return err
	}

	for _, hook := range hooks {
		hook(uniqueID)
	}
	return nil
}

// scanEntry scans a single entry row. Returns nil, nil on sql.ErrNoRows.
func (s *Store) scanEntry(row *sql.Row) (*Entry, error) {
	var entry Entry
	var accessToken, optionsJSON sql.NullString
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&entry.UniqueID, &entry.Title, &entry.Host,
		&accessToken, &optionsJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := fillEntry(&entry, accessToken, optionsJSON, createdAt, updatedAt); err != nil {
		return nil, err
	}

	return &entry, nil
}

// fillEntry applies nullable columns to a scanned entry.
func fillEntry(entry *Entry, accessToken, optionsJSON sql.NullString, createdAt, updatedAt sql.NullTime) error {
	if accessToken.Valid {
		entry.AccessToken = accessToken.String
	}
	if createdAt.Valid {
		entry.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		entry.UpdatedAt = updatedAt.Time
	}

	if optionsJSON.Valid && optionsJSON.String != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(optionsJSON.String), &m); err != nil {
			return fmt.Errorf("failed to unmarshal options: %w", err)
		}
		opts, err := options.FromMap(m)
		if err != nil {
			return fmt.Errorf("stored options invalid: %w", err)
		}
		entry.Options = opts
	} else {
		entry.Options = options.Defaults()
	}

	return nil
}

// marshalOptions serializes options in the form-map shape.
func marshalOptions(opts options.Options) (string, error) {
	data, err := json.Marshal(opts.ToMap())
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// checkAffected converts a zero-row update into ErrNotFound.
func checkAffected(res sql.Result, uniqueID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uniqueID)
	}
	return nil
}

// Ensure Store implements Repository interface.
var _ Repository = (*Store)(nil)
