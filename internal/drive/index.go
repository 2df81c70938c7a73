package drive

// Index is the authoritative metadata store: file and note rows, tag
// associations, the note search index, and authentication state. Operations
// are synchronous and may block on storage I/O; each returns a value or an
// error wrapping ErrStorage (or ErrNotFound where documented). Per-row writes
// are atomic: a concurrent read never observes a half-written row.
type Index interface {
	// File operations

	// GetFile returns the record for path, or nil if the path has never
	// been indexed. Tombstoned records are returned as-is.
	GetFile(path string) (*FileRecord, error)

	// ListFiles returns all file records, tombstones included. A non-nil
	// since restricts the result to records with UpdatedAt > *since.
	ListFiles(since *int64) ([]FileRecord, error)

	// UpsertFile inserts or replaces the record keyed by path. All supplied
	// fields overwrite the existing row, CreatedAt included; preserving the
	// original CreatedAt is the caller's job.
	UpsertFile(rec FileRecord) error

	// MarkFileDeleted tombstones the row for path and bumps UpdatedAt to
	// now. Fails with ErrNotFound if no row exists: a tombstone requires a
	// prior row.
	MarkFileDeleted(path string, now int64) error

	// Note operations

	// GetNote returns the note row with its tags, or nil if the id has
	// never been indexed.
	GetNote(id string) (*NoteRecord, error)

	// GetNoteByPath is GetNote keyed by storage path.
	GetNoteByPath(path string) (*NoteRecord, error)

	// ListNotes returns all live notes, newest update first.
	ListNotes() ([]NoteRecord, error)

	// ListNotesByTag returns live notes carrying the tag, newest update
	// first.
	ListNotesByTag(tag string) ([]NoteRecord, error)

	// SearchNotes returns live notes matching the full-text query, ordered
	// by relevance.
	SearchNotes(query string) ([]NoteRecord, error)

	// UpsertNote inserts or replaces the note row and atomically replaces
	// its tag associations with rec.Tags.
	UpsertNote(rec NoteRecord) error

	// DeleteNote tombstones the note and removes it from the search index.
	// Fails with ErrNotFound if no row exists.
	DeleteNote(id string, now int64) error

	// ListTags returns tags referenced by at least one live note with their
	// live-reference counts, ordered by count descending then name ascending.
	ListTags() ([]TagInfo, error)

	// IndexNoteText (re)indexes a note's searchable text. Any previous entry
	// for the id is removed first, so re-indexing never duplicates.
	IndexNoteText(id, title, body string) error

	// DeindexNoteText removes a note from the search index. Removing an
	// unindexed id is a no-op.
	DeindexNoteText(id string) error

	// Auth state

	// StoreToken persists a bearer token.
	StoreToken(token string, createdAt, expiresAt int64) error

	// ValidateToken reports whether the token exists and is unexpired at
	// now. On success it also stamps the token's last_used.
	ValidateToken(token string, now int64) (bool, error)

	// SweepExpiredTokens removes tokens with ExpiresAt <= now and returns
	// how many were removed.
	SweepExpiredTokens(now int64) (int64, error)

	// StoreChallenge persists a one-time challenge bound to a public key.
	StoreChallenge(challenge, publicKey string, expiresAt int64) error

	// ValidateAndConsumeChallenge atomically checks that the challenge
	// exists, is bound to publicKey, and is unexpired at now, then deletes
	// it. Returns false, without deleting, when the key does not match or
	// the challenge is expired or absent.
	ValidateAndConsumeChallenge(challenge, publicKey string, now int64) (bool, error)

	// Close closes the underlying engine.
	Close() error
}
