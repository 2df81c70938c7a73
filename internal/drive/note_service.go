package drive

import (
	"fmt"
	"strings"

	"homedrive/internal/notefmt"
)

// noteExt is the extension of serialized note documents in the note store.
// A note's id is its storage path minus the extension.
const noteExt = ".md"

// defaultNoteListLimit is the page size used when a listing request does not
// specify one.
const defaultNoteListLimit = 50

// NoteService implements the note namespace. Notes are stored as frontmatter
// documents in the content store; the index holds the queryable metadata and
// the full-text search entries. The document content is the source of truth
// for title, tags, and body; the index mirrors it.
type NoteService struct {
	index Index
	store ContentStore
	clock Clock
	ids   IDGenerator
	log   Logger
}

// NewNoteService creates a NoteService.
func NewNoteService(index Index, store ContentStore, clock Clock, ids IDGenerator, log Logger) *NoteService {
	return &NoteService{
		index: index,
		store: store,
		clock: clock,
		ids:   ids,
		log:   log,
	}
}

func notePath(id string) string { return id + noteExt }

// Create stores a new note and indexes it. Title is required.
func (s *NoteService) Create(req NoteCreateRequest) (*Note, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("note title is required: %w", ErrInvalidInput)
	}

	id := s.ids.New()
	now := s.clock.Now().UnixMilli()

	doc := notefmt.Document{Title: req.Title, Tags: req.Tags, Body: req.Body}
	return s.write(id, doc, now, now)
}

// Get returns a live note with its body. Title, tags, and body come from the
// stored document; timestamps come from the index.
func (s *NoteService) Get(id string) (*Note, error) {
	rec, err := s.liveRecord(id)
	if err != nil {
		return nil, err
	}

	doc, err := s.readDocument(rec.Path)
	if err != nil {
		return nil, err
	}

	return &Note{
		ID:        rec.ID,
		Title:     doc.Title,
		Body:      doc.Body,
		Tags:      doc.Tags,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// Update applies a partial update: nil request fields keep their current
// value. The whole document is rewritten and re-indexed.
func (s *NoteService) Update(id string, req NoteUpdateRequest) (*Note, error) {
	rec, err := s.liveRecord(id)
	if err != nil {
		return nil, err
	}

	doc, err := s.readDocument(rec.Path)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return nil, fmt.Errorf("note title is required: %w", ErrInvalidInput)
		}
		doc.Title = *req.Title
	}
	if req.Body != nil {
		doc.Body = *req.Body
	}
	if req.Tags != nil {
		doc.Tags = *req.Tags
	}

	now := s.clock.Now().UnixMilli()
	return s.write(id, doc, rec.CreatedAt, now)
}

// Delete removes the note document and tombstones the index row. Content
// removal is best effort; the tombstone is written regardless.
func (s *NoteService) Delete(id string) error {
	rec, err := s.liveRecord(id)
	if err != nil {
		return err
	}

	if err := s.store.Remove(rec.Path); err != nil {
		s.log.Warn("failed to remove note content", "id", id, "error", err)
	}

	now := s.clock.Now().UnixMilli()
	if err := s.index.DeleteNote(id, now); err != nil {
		return err
	}

	s.log.Debug("note deleted", "id", id)
	return nil
}

// List returns one page of notes in the mode selected by opts: full-text
// search, tag filter, or all live notes. Search and Tag are mutually
// exclusive. Previews degrade to "" when a note's document cannot be read.
func (s *NoteService) List(opts ListOptions) (*NoteList, error) {
	if opts.Search != "" && opts.Tag != "" {
		return nil, fmt.Errorf("search and tag filters are mutually exclusive: %w", ErrInvalidInput)
	}

	var records []NoteRecord
	var err error
	switch {
	case opts.Search != "":
		records, err = s.index.SearchNotes(opts.Search)
	case opts.Tag != "":
		records, err = s.index.ListNotesByTag(opts.Tag)
	default:
		records, err = s.index.ListNotes()
	}
	if err != nil {
		return nil, err
	}

	total := len(records)

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultNoteListLimit
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	records = records[offset:end]

	items := make([]NoteListItem, 0, len(records))
	for _, rec := range records {
		items = append(items, NoteListItem{
			ID:        rec.ID,
			Title:     rec.Title,
			Tags:      rec.Tags,
			Preview:   s.preview(rec),
			UpdatedAt: rec.UpdatedAt,
		})
	}

	return &NoteList{Notes: items, Total: total}, nil
}

// Tags returns the tags referenced by live notes with their counts.
func (s *NoteService) Tags() ([]TagInfo, error) {
	return s.index.ListTags()
}

// ScanAndIndex walks the note store and brings the index in line with the
// documents on disk. Only entries with the note extension are considered;
// anything else is reported as skipped. Documents whose digest matches their
// live index row are left untouched.
func (s *NoteService) ScanAndIndex() (*ScanResult, error) {
	paths, err := s.store.ListRecursive()
	if err != nil {
		return nil, fmt.Errorf("scanning note store: %w", err)
	}

	result := &ScanResult{}
	now := s.clock.Now().UnixMilli()

	for _, path := range paths {
		if !strings.HasSuffix(path, noteExt) {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: "not a note document"})
			continue
		}
		id := strings.TrimSuffix(path, noteExt)

		content, err := s.store.Read(path)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}

		doc, err := notefmt.Parse(string(content))
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}

		digest := Digest(content)
		existing, err := s.index.GetNote(id)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}
		if existing != nil && !existing.IsDeleted && existing.Digest == digest {
			continue
		}

		createdAt := now
		if existing != nil {
			createdAt = existing.CreatedAt
		}

		rec := NoteRecord{
			ID:        id,
			Path:      path,
			Title:     doc.Title,
			Digest:    digest,
			Tags:      doc.Tags,
			CreatedAt: createdAt,
			UpdatedAt: now,
			IsDeleted: false,
		}
		if err := s.index.UpsertNote(rec); err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}
		if err := s.index.IndexNoteText(id, doc.Title, doc.Body); err != nil {
			result.Skipped = append(result.Skipped, SkippedItem{Path: path, Reason: err.Error()})
			continue
		}
		result.Indexed++
	}

	s.log.Info("note scan complete", "indexed", result.Indexed, "skipped", len(result.Skipped))
	return result, nil
}

// liveRecord returns the index row for a live note or ErrNotFound.
func (s *NoteService) liveRecord(id string) (*NoteRecord, error) {
	rec, err := s.index.GetNote(id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.IsDeleted {
		return nil, fmt.Errorf("note %q: %w", id, ErrNotFound)
	}
	return rec, nil
}

// readDocument reads and parses a note document from the store.
func (s *NoteService) readDocument(path string) (notefmt.Document, error) {
	content, err := s.store.Read(path)
	if err != nil {
		return notefmt.Document{}, fmt.Errorf("reading note document %q: %w", path, err)
	}
	doc, err := notefmt.Parse(string(content))
	if err != nil {
		return notefmt.Document{}, fmt.Errorf("parsing note document %q: %w: %w", path, ErrContent, err)
	}
	return doc, nil
}

// write serializes and stores a note document, then updates the index row
// and the search entry.
func (s *NoteService) write(id string, doc notefmt.Document, createdAt, updatedAt int64) (*Note, error) {
	content, err := notefmt.Serialize(doc)
	if err != nil {
		return nil, fmt.Errorf("serializing note: %w: %v", ErrInvalidInput, err)
	}

	path := notePath(id)
	if err := s.store.Write(path, []byte(content)); err != nil {
		return nil, fmt.Errorf("storing note %q: %w", id, err)
	}

	rec := NoteRecord{
		ID:        id,
		Path:      path,
		Title:     doc.Title,
		Digest:    Digest([]byte(content)),
		Tags:      doc.Tags,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		IsDeleted: false,
	}
	if err := s.index.UpsertNote(rec); err != nil {
		return nil, err
	}
	if err := s.index.IndexNoteText(id, doc.Title, doc.Body); err != nil {
		return nil, err
	}

	return &Note{
		ID:        id,
		Title:     doc.Title,
		Body:      doc.Body,
		Tags:      doc.Tags,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// preview reads a note's document and condenses its body. Failures degrade
// to an empty preview rather than failing the listing.
func (s *NoteService) preview(rec NoteRecord) string {
	content, err := s.store.Read(rec.Path)
	if err != nil {
		s.log.Debug("failed to read note for preview", "id", rec.ID, "error", err)
		return ""
	}
	doc, err := notefmt.Parse(string(content))
	if err != nil {
		s.log.Debug("failed to parse note for preview", "id", rec.ID, "error", err)
		return ""
	}
	return notefmt.Preview(doc.Body)
}
