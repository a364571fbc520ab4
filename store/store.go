// Package store is the crash-recovery ground truth for the merge scheduler:
// a single SQLite table mapping (repo, pr number) to the persisted status and
// speculative merge commit. Everything else about a PR is ephemeral and is
// reconstructed at startup by replaying comments.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Row is one persisted (repo, num) record.
type Row struct {
	Repo     string
	Num      int
	Status   string
	MergeSHA string
}

// Store is the durable state(repo, num, status, merge_sha) table.
type Store struct {
	db *sql.DB
}

// Open opens (and, if necessary, creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %v", err)
	}
	// The event loop is the only writer; one connection keeps SQLite's
	// single-writer semantics from ever surfacing as SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		repo TEXT NOT NULL,
		num INTEGER NOT NULL,
		status TEXT NOT NULL,
		merge_sha TEXT,
		UNIQUE(repo, num)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertStatus records a PR's current status, leaving merge_sha untouched if
// the row already exists.
func (s *Store) UpsertStatus(repo string, num int, status string) error {
	_, err := s.db.Exec(`INSERT INTO state (repo, num, status, merge_sha)
		VALUES (?, ?, ?, COALESCE((SELECT merge_sha FROM state WHERE repo = ? AND num = ?), ''))
		ON CONFLICT(repo, num) DO UPDATE SET status = excluded.status`,
		repo, num, status, repo, num)
	return err
}

// UpdateMergeSHA records the speculative merge commit for an existing row.
func (s *Store) UpdateMergeSHA(repo string, num int, mergeSHA string) error {
	_, err := s.db.Exec(`UPDATE state SET merge_sha = ? WHERE repo = ? AND num = ?`, mergeSHA, repo, num)
	return err
}

// Delete removes a row, used when a PR closes or vanishes from the platform.
func (s *Store) Delete(repo string, num int) error {
	_, err := s.db.Exec(`DELETE FROM state WHERE repo = ? AND num = ?`, repo, num)
	return err
}

// ScanAll returns every persisted row, for startup replay.
func (s *Store) ScanAll() ([]Row, error) {
	rows, err := s.db.Query(`SELECT repo, num, status, merge_sha FROM state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var mergeSHA sql.NullString
		if err := rows.Scan(&r.Repo, &r.Num, &r.Status, &mergeSHA); err != nil {
			return nil, err
		}
		r.MergeSHA = mergeSHA.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a single row, or ok=false if it doesn't exist.
func (s *Store) Get(repo string, num int) (Row, bool, error) {
	var r Row
	var mergeSHA sql.NullString
	err := s.db.QueryRow(`SELECT repo, num, status, merge_sha FROM state WHERE repo = ? AND num = ?`, repo, num).
		Scan(&r.Repo, &r.Num, &r.Status, &mergeSHA)
	if err == sql.ErrNoRows {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, err
	}
	r.MergeSHA = mergeSHA.String
	return r, true, nil
}
