package drive

// ContentStore is the byte-content collaborator backing a namespace (files or
// notes). Paths are slash-separated and relative to the store's root; any
// path that escapes the root fails with an error wrapping ErrContent.
type ContentStore interface {
	// Read returns the full content at path.
	Read(path string) ([]byte, error)

	// Write stores content at path, creating parent directories as needed.
	Write(path string, content []byte) error

	// Remove deletes the content at path.
	Remove(path string) error

	// Exists reports whether path holds content.
	Exists(path string) bool

	// MTime returns the content's modification time in Unix milliseconds.
	MTime(path string) (int64, error)

	// SetMTime sets the content's modification time (Unix milliseconds).
	SetMTime(path string, mtime int64) error

	// List returns the relative paths of entries directly under the root.
	List() ([]string, error)

	// ListRecursive returns the relative paths of all entries under the
	// root, at any depth.
	ListRecursive() ([]string, error)

	// Size returns the stored size in bytes of the content at path.
	Size(path string) (int64, error)
}
