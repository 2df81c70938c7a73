package drive

// FileRecord is the index row for one logical path in the file namespace.
// Timestamps are Unix milliseconds.
type FileRecord struct {
	Path      string `json:"path"`
	Digest    string `json:"digest"`
	Size      int64  `json:"size"`
	MTime     int64  `json:"mtime"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	IsDeleted bool   `json:"is_deleted"`
}

// NoteRecord is the index row for a note. ID is the stable identity; Path is
// where the serialized document lives in the note content store. Tags mirror
// the tags embedded in the note's current content.
type NoteRecord struct {
	ID        string   `json:"id"`
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	Digest    string   `json:"digest"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
	IsDeleted bool     `json:"is_deleted"`
}

// Note is a full note as returned to clients: metadata plus body text.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// NoteListItem is the compact listing form of a note. Preview is derived from
// the body and degrades to "" when the content store cannot be read.
type NoteListItem struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	Preview   string   `json:"preview"`
	UpdatedAt int64    `json:"updated_at"`
}

// NoteCreateRequest creates a new note. Title is required.
type NoteCreateRequest struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Tags  []string `json:"tags"`
}

// NoteUpdateRequest applies a partial update: nil fields keep their current
// value, non-nil fields replace it.
type NoteUpdateRequest struct {
	Title *string   `json:"title"`
	Body  *string   `json:"body"`
	Tags  *[]string `json:"tags"`
}

// ListOptions selects one listing mode. Search and Tag are mutually
// exclusive; with neither set all live notes are listed. Limit of 0 means
// the default page size.
type ListOptions struct {
	Search string
	Tag    string
	Offset int
	Limit  int
}

// NoteList is one page of notes plus the unpaginated total for that mode.
type NoteList struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}

// TagInfo reports one tag and how many live notes reference it.
type TagInfo struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Challenge is an issued authentication challenge bound to a public key.
type Challenge struct {
	Challenge string `json:"challenge"`
	PublicKey string `json:"public_key"`
	ExpiresAt int64  `json:"expires_at"`
}

// Token is an issued bearer credential.
type Token struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

// SyncState is the point-in-time (or incremental) view of the file index a
// client uses to reconcile. ServerTime is the value to pass as the next
// "since". Tombstoned records are included so deletions propagate.
type SyncState struct {
	ServerTime int64        `json:"server_time"`
	Files      []FileRecord `json:"files"`
}

// SkippedItem records one entry a bulk scan could not index, and why.
type SkippedItem struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ScanResult reports the outcome of a bulk scan. A scan only fails outright
// when the content-store enumeration itself fails; per-item failures land in
// Skipped.
type ScanResult struct {
	Indexed int           `json:"indexed"`
	Skipped []SkippedItem `json:"skipped"`
}
