package drive_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"homedrive/internal/content"
	"homedrive/internal/drive"
	"homedrive/internal/testutil"
)

func newNoteService(t *testing.T) (*drive.NoteService, *content.MemStore, *testutil.StubClock) {
	t.Helper()

	idx := testutil.NewTestIndex(t)
	store := content.NewMemStore()
	clock := testutil.FixedClock()
	svc := drive.NewNoteService(idx, store, clock, testutil.NewStubIDGenerator(), drive.NewNopLogger())
	return svc, store, clock
}

func strptr(s string) *string        { return &s }
func tagsptr(tags ...string) *[]string { return &tags }

func TestNoteService_CreateAndGet(t *testing.T) {
	svc, store, clock := newNoteService(t)

	created, err := svc.Create(drive.NoteCreateRequest{
		Title: "Groceries",
		Body:  "milk\neggs\n",
		Tags:  []string{"home", "errands"},
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	now := clock.Now().UnixMilli()
	if created.ID != "note-1" {
		t.Errorf("Create() id = %q, want note-1", created.ID)
	}
	if created.CreatedAt != now || created.UpdatedAt != now {
		t.Errorf("Create() timestamps = %d/%d, want %d", created.CreatedAt, created.UpdatedAt, now)
	}

	if !store.Exists("note-1.md") {
		t.Error("note document missing from store")
	}

	got, err := svc.Get("note-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Title != "Groceries" || got.Body != "milk\neggs\n" {
		t.Errorf("Get() = %+v, want created note", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"home", "errands"}) {
		t.Errorf("Get() tags = %v, want [home errands]", got.Tags)
	}
}

func TestNoteService_CreateRequiresTitle(t *testing.T) {
	svc, _, _ := newNoteService(t)

	_, err := svc.Create(drive.NoteCreateRequest{Title: "  ", Body: "body"})
	if !errors.Is(err, drive.ErrInvalidInput) {
		t.Errorf("Create() error = %v, want ErrInvalidInput", err)
	}
}

func TestNoteService_Update(t *testing.T) {
	t.Run("partial update keeps unset fields", func(t *testing.T) {
		svc, _, clock := newNoteService(t)

		created, err := svc.Create(drive.NoteCreateRequest{
			Title: "Draft",
			Body:  "original body",
			Tags:  []string{"wip"},
		})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		clock.Advance(time.Minute)

		updated, err := svc.Update(created.ID, drive.NoteUpdateRequest{
			Body: strptr("revised body"),
		})
		if err != nil {
			t.Fatalf("Update() error: %v", err)
		}

		if updated.Title != "Draft" {
			t.Errorf("Update() title = %q, want Draft", updated.Title)
		}
		if updated.Body != "revised body" {
			t.Errorf("Update() body = %q, want revised body", updated.Body)
		}
		if !reflect.DeepEqual(updated.Tags, []string{"wip"}) {
			t.Errorf("Update() tags = %v, want [wip]", updated.Tags)
		}
		if updated.CreatedAt != created.CreatedAt {
			t.Errorf("Update() changed CreatedAt: %d -> %d", created.CreatedAt, updated.CreatedAt)
		}
		if updated.UpdatedAt <= created.UpdatedAt {
			t.Errorf("Update() did not bump UpdatedAt: %d -> %d", created.UpdatedAt, updated.UpdatedAt)
		}
	})

	t.Run("tags replace wholesale", func(t *testing.T) {
		svc, _, _ := newNoteService(t)

		created, err := svc.Create(drive.NoteCreateRequest{Title: "T", Tags: []string{"old"}})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		updated, err := svc.Update(created.ID, drive.NoteUpdateRequest{Tags: tagsptr("new", "fresh")})
		if err != nil {
			t.Fatalf("Update() error: %v", err)
		}
		if !reflect.DeepEqual(updated.Tags, []string{"new", "fresh"}) {
			t.Errorf("Update() tags = %v, want [new fresh]", updated.Tags)
		}
	})

	t.Run("empty title rejected", func(t *testing.T) {
		svc, _, _ := newNoteService(t)

		created, err := svc.Create(drive.NoteCreateRequest{Title: "T"})
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		_, err = svc.Update(created.ID, drive.NoteUpdateRequest{Title: strptr(" ")})
		if !errors.Is(err, drive.ErrInvalidInput) {
			t.Errorf("Update() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("missing note", func(t *testing.T) {
		svc, _, _ := newNoteService(t)

		_, err := svc.Update("ghost", drive.NoteUpdateRequest{Body: strptr("x")})
		if !errors.Is(err, drive.ErrNotFound) {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})
}

func TestNoteService_Delete(t *testing.T) {
	svc, store, _ := newNoteService(t)

	created, err := svc.Create(drive.NoteCreateRequest{Title: "Doomed"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if err := svc.Delete(created.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if store.Exists("note-1.md") {
		t.Error("note document still present after delete")
	}
	if _, err := svc.Get(created.ID); !errors.Is(err, drive.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete(created.ID); !errors.Is(err, drive.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestNoteService_List(t *testing.T) {
	svc, _, clock := newNoteService(t)

	titles := []string{"First", "Second", "Third"}
	for i, title := range titles {
		tags := []string{"all"}
		if i == 1 {
			tags = append(tags, "special")
		}
		_, err := svc.Create(drive.NoteCreateRequest{
			Title: title,
			Body:  "body of " + title,
			Tags:  tags,
		})
		if err != nil {
			t.Fatalf("Create(%q) error: %v", title, err)
		}
		clock.Advance(time.Minute)
	}

	t.Run("newest first with previews", func(t *testing.T) {
		list, err := svc.List(drive.ListOptions{})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if list.Total != 3 {
			t.Errorf("List() total = %d, want 3", list.Total)
		}

		var got []string
		for _, item := range list.Notes {
			got = append(got, item.Title)
		}
		want := []string{"Third", "Second", "First"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("List() order = %v, want %v", got, want)
		}

		if list.Notes[0].Preview != "body of Third" {
			t.Errorf("List() preview = %q, want %q", list.Notes[0].Preview, "body of Third")
		}
	})

	t.Run("pagination", func(t *testing.T) {
		list, err := svc.List(drive.ListOptions{Offset: 1, Limit: 1})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if list.Total != 3 {
			t.Errorf("List() total = %d, want 3", list.Total)
		}
		if len(list.Notes) != 1 || list.Notes[0].Title != "Second" {
			t.Errorf("List() page = %+v, want [Second]", list.Notes)
		}
	})

	t.Run("offset past end", func(t *testing.T) {
		list, err := svc.List(drive.ListOptions{Offset: 10})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(list.Notes) != 0 || list.Total != 3 {
			t.Errorf("List() = %+v, want empty page with total 3", list)
		}
	})

	t.Run("tag filter", func(t *testing.T) {
		list, err := svc.List(drive.ListOptions{Tag: "special"})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(list.Notes) != 1 || list.Notes[0].Title != "Second" {
			t.Errorf("List(tag=special) = %+v, want [Second]", list.Notes)
		}
	})

	t.Run("search", func(t *testing.T) {
		list, err := svc.List(drive.ListOptions{Search: "Third"})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(list.Notes) != 1 || list.Notes[0].Title != "Third" {
			t.Errorf("List(search=Third) = %+v, want [Third]", list.Notes)
		}
	})

	t.Run("search and tag are exclusive", func(t *testing.T) {
		_, err := svc.List(drive.ListOptions{Search: "x", Tag: "y"})
		if !errors.Is(err, drive.ErrInvalidInput) {
			t.Errorf("List() error = %v, want ErrInvalidInput", err)
		}
	})
}

func TestNoteService_ListPreviewDegrades(t *testing.T) {
	svc, store, _ := newNoteService(t)

	created, err := svc.Create(drive.NoteCreateRequest{Title: "T", Body: "body"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	// Document lost out of band: listing still works, preview is empty.
	if err := store.Remove(created.ID + ".md"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	list, err := svc.List(drive.ListOptions{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list.Notes) != 1 || list.Notes[0].Preview != "" {
		t.Errorf("List() = %+v, want one note with empty preview", list.Notes)
	}
}

func TestNoteService_Tags(t *testing.T) {
	svc, _, _ := newNoteService(t)

	if _, err := svc.Create(drive.NoteCreateRequest{Title: "A", Tags: []string{"shared", "only-a"}}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if _, err := svc.Create(drive.NoteCreateRequest{Title: "B", Tags: []string{"shared"}}); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	tags, err := svc.Tags()
	if err != nil {
		t.Fatalf("Tags() error: %v", err)
	}
	want := []drive.TagInfo{
		{Name: "shared", Count: 2},
		{Name: "only-a", Count: 1},
	}
	if !reflect.DeepEqual(tags, want) {
		t.Errorf("Tags() = %+v, want %+v", tags, want)
	}
}

func TestNoteService_ScanAndIndex(t *testing.T) {
	svc, store, _ := newNoteService(t)

	docs := map[string]string{
		"imported.md": "---\ntitle: Imported\ntags: legacy\n---\nbrought in from disk\n",
		"plain.md":    "no frontmatter here\n",
	}
	for path, content := range docs {
		if err := store.Write(path, []byte(content)); err != nil {
			t.Fatalf("Write(%q) error: %v", path, err)
		}
	}
	if err := store.Write("stray.txt", []byte("not a note")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if err := store.Write("broken.md", []byte("---\ntitle: Broken\n")); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	result, err := svc.ScanAndIndex()
	if err != nil {
		t.Fatalf("ScanAndIndex() error: %v", err)
	}
	if result.Indexed != 2 {
		t.Errorf("ScanAndIndex() indexed = %d, want 2", result.Indexed)
	}
	if len(result.Skipped) != 2 {
		t.Errorf("ScanAndIndex() skipped = %+v, want 2 entries", result.Skipped)
	}

	t.Run("scanned note is searchable", func(t *testing.T) {
		list, err := svc.List(drive.ListOptions{Search: "disk"})
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(list.Notes) != 1 || list.Notes[0].ID != "imported" {
			t.Errorf("List(search=disk) = %+v, want [imported]", list.Notes)
		}
	})

	t.Run("scanned note readable by id", func(t *testing.T) {
		note, err := svc.Get("imported")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if note.Title != "Imported" || !reflect.DeepEqual(note.Tags, []string{"legacy"}) {
			t.Errorf("Get() = %+v, want imported note", note)
		}
	})

	t.Run("rescan skips unchanged", func(t *testing.T) {
		again, err := svc.ScanAndIndex()
		if err != nil {
			t.Fatalf("ScanAndIndex() error: %v", err)
		}
		if again.Indexed != 0 {
			t.Errorf("second scan indexed %d, want 0", again.Indexed)
		}
	})
}
