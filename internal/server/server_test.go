package server_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"homedrive/internal/content"
	"homedrive/internal/drive"
	"homedrive/internal/server"
	"homedrive/internal/testutil"
)

// testServer is a fully wired server over in-memory stores, plus the client
// key and a valid bearer token.
type testServer struct {
	url   string
	token string
	key   *testutil.KeyPair
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	idx := testutil.NewTestIndex(t)
	clock := testutil.FixedClock()
	log := drive.NewNopLogger()
	kp := testutil.NewKeyPair(t)

	auth, err := drive.NewAuthService(idx, clock, log, testutil.WriteAuthorizedKeys(t, kp), 86400, 300)
	if err != nil {
		t.Fatalf("NewAuthService() error: %v", err)
	}

	srv := server.New(
		drive.NewFileService(idx, content.NewMemStore(), clock, log),
		drive.NewNoteService(idx, content.NewMemStore(), clock, testutil.NewStubIDGenerator(), log),
		drive.NewSyncService(idx, clock),
		auth,
		log,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	// Run the handshake directly to get a token for authenticated requests.
	challenge, err := auth.CreateChallenge(kp.Public)
	if err != nil {
		t.Fatalf("CreateChallenge() error: %v", err)
	}
	token, err := auth.VerifyChallenge(kp.Public, challenge.Challenge, kp.Sign(challenge.Challenge))
	if err != nil {
		t.Fatalf("VerifyChallenge() error: %v", err)
	}

	return &testServer{url: ts.URL, token: token.Token, key: kp}
}

// do sends an authenticated request and returns the response.
func (ts *testServer) do(t *testing.T, method, path string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.url+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+ts.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// doJSON sends an authenticated JSON request and decodes the response into
// out when it is non-nil.
func (ts *testServer) doJSON(t *testing.T, method, path string, in, out any) int {
	t.Helper()

	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			t.Fatalf("Marshal() error: %v", err)
		}
	}

	resp := ts.do(t, method, path, body)
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestServer_AuthHandshake(t *testing.T) {
	ts := newTestServer(t)

	t.Run("challenge and verify over HTTP", func(t *testing.T) {
		var challenge drive.Challenge
		body, _ := json.Marshal(map[string]string{"public_key": ts.key.Public})
		resp, err := http.Post(ts.url+"/api/v1/auth/challenge", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("challenge request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("challenge status = %d, want 200", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&challenge); err != nil {
			t.Fatalf("decoding challenge: %v", err)
		}

		var token drive.Token
		body, _ = json.Marshal(map[string]string{
			"public_key": ts.key.Public,
			"challenge":  challenge.Challenge,
			"signature":  ts.key.Sign(challenge.Challenge),
		})
		resp, err = http.Post(ts.url+"/api/v1/auth/verify", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("verify request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("verify status = %d, want 200", resp.StatusCode)
		}
		if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
			t.Fatalf("decoding token: %v", err)
		}
		if token.Token == "" {
			t.Error("verify returned empty token")
		}
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		stranger := testutil.NewKeyPair(t)
		body, _ := json.Marshal(map[string]string{"public_key": stranger.Public})
		resp, err := http.Post(ts.url+"/api/v1/auth/challenge", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("challenge request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("challenge status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestServer_RequiresToken(t *testing.T) {
	ts := newTestServer(t)

	paths := []string{"/api/v1/sync/state", "/api/v1/files/a.txt", "/api/v1/notes/"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.url + path)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestServer_Files(t *testing.T) {
	ts := newTestServer(t)

	payload := []byte("file payload")

	t.Run("put", func(t *testing.T) {
		resp := ts.do(t, http.MethodPut, "/api/v1/files/docs/a.txt", payload)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("put status = %d, want 200", resp.StatusCode)
		}

		var rec drive.FileRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			t.Fatalf("decoding record: %v", err)
		}
		if rec.Path != "docs/a.txt" || rec.Size != int64(len(payload)) {
			t.Errorf("put record = %+v", rec)
		}
	})

	t.Run("get", func(t *testing.T) {
		resp := ts.do(t, http.MethodGet, "/api/v1/files/docs/a.txt", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get status = %d, want 200", resp.StatusCode)
		}
		got, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("get body = %q, want %q", got, payload)
		}
		if resp.Header.Get("ETag") == "" {
			t.Error("get response missing ETag")
		}
	})

	t.Run("put with client mtime", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPut, ts.url+"/api/v1/files/b.txt", bytes.NewReader(payload))
		if err != nil {
			t.Fatalf("NewRequest() error: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+ts.token)
		req.Header.Set("X-Client-Mtime", "1600000000000")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var rec drive.FileRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			t.Fatalf("decoding record: %v", err)
		}
		if rec.MTime != 1600000000000 {
			t.Errorf("mtime = %d, want 1600000000000", rec.MTime)
		}
	})

	t.Run("list", func(t *testing.T) {
		var records []drive.FileRecord
		status := ts.doJSON(t, http.MethodGet, "/api/v1/files/", nil, &records)
		if status != http.StatusOK {
			t.Fatalf("list status = %d, want 200", status)
		}
		if len(records) != 2 {
			t.Errorf("list = %+v, want 2 records", records)
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, "/api/v1/files/docs/a.txt", nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete status = %d, want 204", resp.StatusCode)
		}

		resp = ts.do(t, http.MethodGet, "/api/v1/files/docs/a.txt", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
		}
	})
}

func TestServer_Notes(t *testing.T) {
	ts := newTestServer(t)

	var created drive.Note
	status := ts.doJSON(t, http.MethodPost, "/api/v1/notes/", drive.NoteCreateRequest{
		Title: "Meeting notes",
		Body:  "discuss the roadmap",
		Tags:  []string{"work"},
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", status)
	}
	if created.ID == "" {
		t.Fatal("create returned empty id")
	}

	t.Run("get", func(t *testing.T) {
		var note drive.Note
		status := ts.doJSON(t, http.MethodGet, "/api/v1/notes/"+created.ID, nil, &note)
		if status != http.StatusOK {
			t.Fatalf("get status = %d, want 200", status)
		}
		if note.Title != "Meeting notes" || note.Body != "discuss the roadmap" {
			t.Errorf("get note = %+v", note)
		}
	})

	t.Run("update", func(t *testing.T) {
		body := map[string]any{"body": "revised agenda"}
		var note drive.Note
		status := ts.doJSON(t, http.MethodPut, "/api/v1/notes/"+created.ID, body, &note)
		if status != http.StatusOK {
			t.Fatalf("update status = %d, want 200", status)
		}
		if note.Body != "revised agenda" || note.Title != "Meeting notes" {
			t.Errorf("update note = %+v", note)
		}
	})

	t.Run("list", func(t *testing.T) {
		var list drive.NoteList
		status := ts.doJSON(t, http.MethodGet, "/api/v1/notes/?tag=work", nil, &list)
		if status != http.StatusOK {
			t.Fatalf("list status = %d, want 200", status)
		}
		if list.Total != 1 || len(list.Notes) != 1 {
			t.Errorf("list = %+v, want one note", list)
		}
	})

	t.Run("search", func(t *testing.T) {
		var list drive.NoteList
		status := ts.doJSON(t, http.MethodGet, "/api/v1/notes/search?q=agenda", nil, &list)
		if status != http.StatusOK {
			t.Fatalf("search status = %d, want 200", status)
		}
		if len(list.Notes) != 1 || list.Notes[0].ID != created.ID {
			t.Errorf("search = %+v, want created note", list)
		}
	})

	t.Run("search requires query", func(t *testing.T) {
		status := ts.doJSON(t, http.MethodGet, "/api/v1/notes/search", nil, nil)
		if status != http.StatusBadRequest {
			t.Errorf("search status = %d, want 400", status)
		}
	})

	t.Run("tags", func(t *testing.T) {
		var tags []drive.TagInfo
		status := ts.doJSON(t, http.MethodGet, "/api/v1/notes/tags", nil, &tags)
		if status != http.StatusOK {
			t.Fatalf("tags status = %d, want 200", status)
		}
		if len(tags) != 1 || tags[0].Name != "work" {
			t.Errorf("tags = %+v, want [work]", tags)
		}
	})

	t.Run("delete", func(t *testing.T) {
		resp := ts.do(t, http.MethodDelete, "/api/v1/notes/"+created.ID, nil)
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("delete status = %d, want 204", resp.StatusCode)
		}

		status := ts.doJSON(t, http.MethodGet, "/api/v1/notes/"+created.ID, nil, nil)
		if status != http.StatusNotFound {
			t.Errorf("get after delete status = %d, want 404", status)
		}
	})

	t.Run("create without title", func(t *testing.T) {
		status := ts.doJSON(t, http.MethodPost, "/api/v1/notes/", drive.NoteCreateRequest{Body: "x"}, nil)
		if status != http.StatusBadRequest {
			t.Errorf("create status = %d, want 400", status)
		}
	})
}

func TestServer_SyncState(t *testing.T) {
	ts := newTestServer(t)

	if resp := ts.do(t, http.MethodPut, "/api/v1/files/a.txt", []byte("a")); resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	var state drive.SyncState
	status := ts.doJSON(t, http.MethodGet, "/api/v1/sync/state", nil, &state)
	if status != http.StatusOK {
		t.Fatalf("sync status = %d, want 200", status)
	}
	if len(state.Files) != 1 || state.ServerTime == 0 {
		t.Errorf("sync state = %+v, want one file", state)
	}

	t.Run("since filters", func(t *testing.T) {
		var incremental drive.SyncState
		path := fmt.Sprintf("/api/v1/sync/state?since=%d", state.ServerTime)
		status := ts.doJSON(t, http.MethodGet, path, nil, &incremental)
		if status != http.StatusOK {
			t.Fatalf("sync status = %d, want 200", status)
		}
		if len(incremental.Files) != 0 {
			t.Errorf("incremental files = %+v, want none", incremental.Files)
		}
	})

	t.Run("bad since rejected", func(t *testing.T) {
		status := ts.doJSON(t, http.MethodGet, "/api/v1/sync/state?since=soon", nil, nil)
		if status != http.StatusBadRequest {
			t.Errorf("sync status = %d, want 400", status)
		}
	})
}
