package drive

import "errors"

// The closed set of error kinds crossing the public contract. Every error
// returned by a service or store wraps exactly one of these; callers classify
// with errors.Is and never by message. The HTTP layer maps kinds to status
// codes at the boundary.
var (
	// ErrNotFound marks a missing path, note id, or live record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks a malformed request: missing required field,
	// unparseable public key, conflicting list selectors.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized marks any authentication failure: unknown key, bad or
	// consumed challenge, bad signature, dead token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStorage marks a failure of the underlying index engine.
	ErrStorage = errors.New("storage error")

	// ErrContent marks a content-store failure, including path traversal.
	ErrContent = errors.New("content error")
)
