package drive

import (
	"fmt"
	"strings"
)

// FileService implements the file namespace: opaque byte content plus the
// index rows that drive sync. The index is authoritative for existence; the
// content store holds the bytes.
//
// Writes are last-write-wins. Two concurrent puts to the same path both
// succeed and the later index write determines the surviving record.
type FileService struct {
	index Index
	store ContentStore
	clock Clock
	log   Logger
}

// NewFileService creates a FileService.
func NewFileService(index Index, store ContentStore, clock Clock, log Logger) *FileService {
	return &FileService{
		index: index,
		store: store,
		clock: clock,
		log:   log,
	}
}

// Get returns the content and index record for a live file. A path that was
// never indexed or carries a tombstone fails with ErrNotFound.
func (s *FileService) Get(path string) ([]byte, *FileRecord, error) {
	rec, err := s.index.GetFile(path)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil || rec.IsDeleted {
		return nil, nil, fmt.Errorf("file %q: %w", path, ErrNotFound)
	}

	content, err := s.store.Read(rec.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading file %q: %w", path, err)
	}
	return content, rec, nil
}

// Put stores content at path and upserts the index record. A non-nil
// clientMTime is recorded as the file's modification time and applied to the
// stored content, so a client's local timestamp survives the round trip.
// CreatedAt is preserved across overwrites; a put over a tombstone revives
// the path and keeps its original CreatedAt.
func (s *FileService) Put(path string, content []byte, clientMTime *int64) (*FileRecord, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("file path is required: %w", ErrInvalidInput)
	}

	now := s.clock.Now().UnixMilli()

	if err := s.store.Write(path, content); err != nil {
		return nil, fmt.Errorf("storing file %q: %w", path, err)
	}

	mtime := now
	if clientMTime != nil {
		mtime = *clientMTime
		if err := s.store.SetMTime(path, mtime); err != nil {
			s.log.Warn("failed to set content mtime", "path", path, "error", err)
		}
	}

	createdAt := now
	existing, err := s.index.GetFile(path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		createdAt = existing.CreatedAt
	}

	rec := FileRecord{
		Path:      path,
		Digest:    Digest(content),
		Size:      int64(len(content)),
		MTime:     mtime,
		CreatedAt: createdAt,
		UpdatedAt: now,
		IsDeleted: false,
	}
	if err := s.index.UpsertFile(rec); err != nil {
		return nil, err
	}

	s.log.Debug("file stored", "path", path, "size", rec.Size)
	return &rec, nil
}

// Delete removes the content and tombstones the index record so the deletion
// propagates to sync clients. Content removal is best effort: a failure is
// logged and the tombstone is written regardless, since the index is what
// clients reconcile against.
func (s *FileService) Delete(path string) error {
	rec, err := s.index.GetFile(path)
	if err != nil {
		return err
	}
	if rec == nil || rec.IsDeleted {
		return fmt.Errorf("file %q: %w", path, ErrNotFound)
	}

	if err := s.store.Remove(rec.Path); err != nil {
		s.log.Warn("failed to remove file content", "path", path, "error", err)
	}

	now := s.clock.Now().UnixMilli()
	if err := s.index.MarkFileDeleted(path, now); err != nil {
		return err
	}

	s.log.Debug("file deleted", "path", path)
	return nil
}

// List returns file records, tombstones included. A non-nil since restricts
// the result to records updated after that time.
func (s *FileService) List(since *int64) ([]FileRecord, error) {
	return s.index.ListFiles(since)
}

// ScanAndIndex walks the content store and brings the index in line with
// what is on disk. Entries whose digest already matches their live index row
// are left untouched. A per-entry failure lands in the result's Skipped list;
// the scan itself only fails when the store cannot be enumerated.
func (s *FileService) ScanAndIndex() (*ScanResult, error) {
	paths, err := s.store.ListRecursive()
	if err != nil {
		return nil, fmt.Errorf("scanning file store: %w", err)
	}

	result := &ScanResult{}
	now := s.clock.Now().UnixMilli()

	for _, path := range paths {
		content, err := s.store.Read(path)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}

		digest := Digest(content)
		existing, err := s.index.GetFile(path)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}
		if existing != nil && !existing.IsDeleted && existing.Digest == digest {
			continue
		}

		mtime, err := s.store.MTime(path)
		if err != nil {
			mtime = now
		}

		createdAt := now
		if existing != nil {
			createdAt = existing.CreatedAt
		}

		rec := FileRecord{
			Path:      path,
			Digest:    digest,
			Size:      int64(len(content)),
			MTime:     mtime,
			CreatedAt: createdAt,
			UpdatedAt: now,
			IsDeleted: false,
		}
		if err := s.index.UpsertFile(rec); err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}
		result.Indexed++
	}

	s.log.Info("file scan complete", "indexed", result.Indexed, "skipped", len(result.Skipped))
	return result, nil
}
