// Package index implements the metadata store on SQLite. Full-text search
// uses FTS5, so the binary must be built with the sqlite_fts5 tag.
package index

import (
	"database/sql"
	"errors"
	"fmt"

	"homedrive/internal/drive"
	"homedrive/internal/index/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteIndex implements drive.Index using SQLite.
type SQLiteIndex struct {
	db   *sql.DB
	path string
}

var _ drive.Index = (*SQLiteIndex)(nil)

// New opens (creating if necessary) the index database at path and migrates
// it to the latest schema. path can be ":memory:" for an in-memory index.
func New(path string) (*SQLiteIndex, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating index database: %w", err)
	}
	if err := migrations.CheckStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying index schema: %w", err)
	}

	return &SQLiteIndex{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the index relies on. Exported for tools and tests that need a raw,
// properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Foreign keys default to OFF in SQLite; note_tags depends on them.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Close closes the underlying database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// File operations

func (s *SQLiteIndex) GetFile(path string) (*drive.FileRecord, error) {
	row := s.db.QueryRow(`
		SELECT path, digest, size, mtime, created_at, updated_at, is_deleted
		FROM files WHERE path = ?`, path)

	var rec drive.FileRecord
	err := row.Scan(&rec.Path, &rec.Digest, &rec.Size, &rec.MTime,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting file %q: %w: %w", path, drive.ErrStorage, err)
	}
	return &rec, nil
}

func (s *SQLiteIndex) ListFiles(since *int64) ([]drive.FileRecord, error) {
	query := `
		SELECT path, digest, size, mtime, created_at, updated_at, is_deleted
		FROM files`
	args := []any{}
	if since != nil {
		query += ` WHERE updated_at > ?`
		args = append(args, *since)
	}
	query += ` ORDER BY path`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w: %w", drive.ErrStorage, err)
	}
	defer rows.Close()

	var records []drive.FileRecord
	for rows.Next() {
		var rec drive.FileRecord
		if err := rows.Scan(&rec.Path, &rec.Digest, &rec.Size, &rec.MTime,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.IsDeleted); err != nil {
			return nil, fmt.Errorf("scanning file row: %w: %w", drive.ErrStorage, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing files: %w: %w", drive.ErrStorage, err)
	}
	return records, nil
}

func (s *SQLiteIndex) UpsertFile(rec drive.FileRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO files (path, digest, size, mtime, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			digest = excluded.digest,
			size = excluded.size,
			mtime = excluded.mtime,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted`,
		rec.Path, rec.Digest, rec.Size, rec.MTime,
		rec.CreatedAt, rec.UpdatedAt, rec.IsDeleted)
	if err != nil {
		return fmt.Errorf("upserting file %q: %w: %w", rec.Path, drive.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteIndex) MarkFileDeleted(path string, now int64) error {
	res, err := s.db.Exec(`
		UPDATE files SET is_deleted = 1, updated_at = ? WHERE path = ?`,
		now, path)
	if err != nil {
		return fmt.Errorf("marking file %q deleted: %w: %w", path, drive.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking file %q deleted: %w: %w", path, drive.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("file %q: %w", path, drive.ErrNotFound)
	}
	return nil
}

// Note operations

const noteColumns = `id, path, title, digest, created_at, updated_at, is_deleted`

func (s *SQLiteIndex) GetNote(id string) (*drive.NoteRecord, error) {
	return s.getNoteWhere(`id = ?`, id)
}

func (s *SQLiteIndex) GetNoteByPath(path string) (*drive.NoteRecord, error) {
	return s.getNoteWhere(`path = ?`, path)
}

func (s *SQLiteIndex) getNoteWhere(where string, arg any) (*drive.NoteRecord, error) {
	row := s.db.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE `+where, arg)

	var rec drive.NoteRecord
	err := row.Scan(&rec.ID, &rec.Path, &rec.Title, &rec.Digest,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.IsDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting note: %w: %w", drive.ErrStorage, err)
	}

	tags, err := s.noteTags(rec.ID)
	if err != nil {
		return nil, err
	}
	rec.Tags = tags
	return &rec, nil
}

func (s *SQLiteIndex) ListNotes() ([]drive.NoteRecord, error) {
	return s.listNotesQuery(`
		SELECT `+noteColumns+` FROM notes
		WHERE is_deleted = 0
		ORDER BY updated_at DESC`)
}

func (s *SQLiteIndex) ListNotesByTag(tag string) ([]drive.NoteRecord, error) {
	return s.listNotesQuery(`
		SELECT n.id, n.path, n.title, n.digest, n.created_at, n.updated_at, n.is_deleted
		FROM notes n
		JOIN note_tags nt ON nt.note_id = n.id
		JOIN tags t ON t.id = nt.tag_id
		WHERE t.name = ? AND n.is_deleted = 0
		ORDER BY n.updated_at DESC`, tag)
}

func (s *SQLiteIndex) SearchNotes(query string) ([]drive.NoteRecord, error) {
	return s.listNotesQuery(`
		SELECT n.id, n.path, n.title, n.digest, n.created_at, n.updated_at, n.is_deleted
		FROM notes_fts f
		JOIN notes n ON n.id = f.note_id
		WHERE notes_fts MATCH ? AND n.is_deleted = 0
		ORDER BY rank`, query)
}

func (s *SQLiteIndex) listNotesQuery(query string, args ...any) ([]drive.NoteRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w: %w", drive.ErrStorage, err)
	}
	defer rows.Close()

	var records []drive.NoteRecord
	for rows.Next() {
		var rec drive.NoteRecord
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Title, &rec.Digest,
			&rec.CreatedAt, &rec.UpdatedAt, &rec.IsDeleted); err != nil {
			return nil, fmt.Errorf("scanning note row: %w: %w", drive.ErrStorage, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing notes: %w: %w", drive.ErrStorage, err)
	}

	for i := range records {
		tags, err := s.noteTags(records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Tags = tags
	}
	return records, nil
}

func (s *SQLiteIndex) noteTags(noteID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT t.name FROM tags t
		JOIN note_tags nt ON nt.tag_id = t.id
		WHERE nt.note_id = ?
		ORDER BY t.name`, noteID)
	if err != nil {
		return nil, fmt.Errorf("listing tags for note %q: %w: %w", noteID, drive.ErrStorage, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w: %w", drive.ErrStorage, err)
		}
		tags = append(tags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tags for note %q: %w: %w", noteID, drive.ErrStorage, err)
	}
	return tags, nil
}

func (s *SQLiteIndex) UpsertNote(rec drive.NoteRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("upserting note %q: %w: %w", rec.ID, drive.ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO notes (id, path, title, digest, created_at, updated_at, is_deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			digest = excluded.digest,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			is_deleted = excluded.is_deleted`,
		rec.ID, rec.Path, rec.Title, rec.Digest,
		rec.CreatedAt, rec.UpdatedAt, rec.IsDeleted)
	if err != nil {
		return fmt.Errorf("upserting note %q: %w: %w", rec.ID, drive.ErrStorage, err)
	}

	if _, err := tx.Exec(`DELETE FROM note_tags WHERE note_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clearing tags for note %q: %w: %w", rec.ID, drive.ErrStorage, err)
	}

	for _, tag := range rec.Tags {
		if _, err := tx.Exec(`
			INSERT INTO tags (name) VALUES (?)
			ON CONFLICT(name) DO NOTHING`, tag); err != nil {
			return fmt.Errorf("inserting tag %q: %w: %w", tag, drive.ErrStorage, err)
		}
		if _, err := tx.Exec(`
			INSERT INTO note_tags (note_id, tag_id)
			SELECT ?, id FROM tags WHERE name = ?`, rec.ID, tag); err != nil {
			return fmt.Errorf("associating tag %q with note %q: %w: %w", tag, rec.ID, drive.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upserting note %q: %w: %w", rec.ID, drive.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteIndex) DeleteNote(id string, now int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("deleting note %q: %w: %w", id, drive.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE notes SET is_deleted = 1, updated_at = ? WHERE id = ?`,
		now, id)
	if err != nil {
		return fmt.Errorf("deleting note %q: %w: %w", id, drive.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting note %q: %w: %w", id, drive.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("note %q: %w", id, drive.ErrNotFound)
	}

	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("deindexing note %q: %w: %w", id, drive.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("deleting note %q: %w: %w", id, drive.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteIndex) ListTags() ([]drive.TagInfo, error) {
	rows, err := s.db.Query(`
		SELECT t.name, COUNT(n.id)
		FROM tags t
		LEFT JOIN note_tags nt ON nt.tag_id = t.id
		LEFT JOIN notes n ON n.id = nt.note_id AND n.is_deleted = 0
		GROUP BY t.name
		HAVING COUNT(n.id) > 0
		ORDER BY COUNT(n.id) DESC, t.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w: %w", drive.ErrStorage, err)
	}
	defer rows.Close()

	var tags []drive.TagInfo
	for rows.Next() {
		var info drive.TagInfo
		if err := rows.Scan(&info.Name, &info.Count); err != nil {
			return nil, fmt.Errorf("scanning tag row: %w: %w", drive.ErrStorage, err)
		}
		tags = append(tags, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tags: %w: %w", drive.ErrStorage, err)
	}
	return tags, nil
}

func (s *SQLiteIndex) IndexNoteText(id, title, body string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("indexing note %q: %w: %w", id, drive.ErrStorage, err)
	}
	defer tx.Rollback()

	// Delete-then-insert keeps re-indexing idempotent.
	if _, err := tx.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("indexing note %q: %w: %w", id, drive.ErrStorage, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO notes_fts (note_id, title, body) VALUES (?, ?, ?)`,
		id, title, body); err != nil {
		return fmt.Errorf("indexing note %q: %w: %w", id, drive.ErrStorage, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexing note %q: %w: %w", id, drive.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteIndex) DeindexNoteText(id string) error {
	if _, err := s.db.Exec(`DELETE FROM notes_fts WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("deindexing note %q: %w: %w", id, drive.ErrStorage, err)
	}
	return nil
}

// Auth state

func (s *SQLiteIndex) StoreToken(token string, createdAt, expiresAt int64) error {
	_, err := s.db.Exec(`
		INSERT INTO auth_tokens (token, created_at, expires_at) VALUES (?, ?, ?)`,
		token, createdAt, expiresAt)
	if err != nil {
		return fmt.Errorf("storing token: %w: %w", drive.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteIndex) ValidateToken(token string, now int64) (bool, error) {
	// A single conditional UPDATE both checks the token and stamps last_used.
	res, err := s.db.Exec(`
		UPDATE auth_tokens SET last_used = ?
		WHERE token = ? AND expires_at > ?`,
		now, token, now)
	if err != nil {
		return false, fmt.Errorf("validating token: %w: %w", drive.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("validating token: %w: %w", drive.ErrStorage, err)
	}
	return n > 0, nil
}

func (s *SQLiteIndex) SweepExpiredTokens(now int64) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, fmt.Errorf("sweeping expired tokens: %w: %w", drive.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweeping expired tokens: %w: %w", drive.ErrStorage, err)
	}
	return n, nil
}

func (s *SQLiteIndex) StoreChallenge(challenge, publicKey string, expiresAt int64) error {
	_, err := s.db.Exec(`
		INSERT INTO auth_challenges (challenge, public_key, expires_at) VALUES (?, ?, ?)`,
		challenge, publicKey, expiresAt)
	if err != nil {
		return fmt.Errorf("storing challenge: %w: %w", drive.ErrStorage, err)
	}
	return nil
}

func (s *SQLiteIndex) ValidateAndConsumeChallenge(challenge, publicKey string, now int64) (bool, error) {
	// The conditional DELETE is the check: a mismatched key or an expired
	// challenge deletes nothing and validates nothing.
	res, err := s.db.Exec(`
		DELETE FROM auth_challenges
		WHERE challenge = ? AND public_key = ? AND expires_at > ?`,
		challenge, publicKey, now)
	if err != nil {
		return false, fmt.Errorf("consuming challenge: %w: %w", drive.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consuming challenge: %w: %w", drive.ErrStorage, err)
	}
	return n > 0, nil
}
