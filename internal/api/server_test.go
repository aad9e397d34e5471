package api

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Vincenzoferrara/metadata-remote/internal/auth"
	"github.com/Vincenzoferrara/metadata-remote/internal/events"
	"github.com/Vincenzoferrara/metadata-remote/internal/library"
	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/internal/storage/local"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "error", Format: "console"})
	os.Exit(m.Run())
}

var fixtureBase = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func folder(path string) models.Node {
	return models.Node{Path: path, IsDir: true, ModTime: fixtureBase}
}

func file(path string, size int64) models.Node {
	return models.Node{Path: path, Size: size, ModTime: fixtureBase}
}

// fixture holds independent subtrees so each test mutates its own corner.
func fixture() []models.Node {
	return []models.Node{
		folder("docs"),
		folder("docs/reports"),
		file("docs/reports/q1.pdf", 100),
		file("docs/a.txt", 1024),
		file("docs/b.txt", 2048),
		folder("music"),
		file("music/song.mp3", 999),
		folder("pics"),
		file("pics/song.mp3", 500),
		file("pics/cat.jpg", 555),
		folder("inbox"),
		folder("inbox/drafts"),
		file("inbox/drafts/memo.txt", 10),
		folder("outbox"),
		folder("attic"),
		file("attic/old.log", 7),
		folder("archive"),
		folder("trash"),
		file("trash/junk.txt", 1),
		folder("scratch"),
		file("scratch/tmp.bin", 2),
	}
}

type testEnv struct {
	srv         *httptest.Server
	lib         *library.Library
	backend     *local.Backend
	broadcaster *events.Broadcaster
	token       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	lib := library.New(nil)
	if err := lib.ReplaceAll(context.Background(), fixture()); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	backend, err := local.New(local.Config{RootPath: t.TempDir(), CreateDirs: true})
	if err != nil {
		t.Fatalf("local backend: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	authHandler := auth.New(map[string]string{"alice": string(hash)}, "test-secret")

	broadcaster := events.NewBroadcaster()

	env := &testEnv{
		srv:         httptest.NewServer(NewServer(lib, backend, authHandler, broadcaster).Handler()),
		lib:         lib,
		backend:     backend,
		broadcaster: broadcaster,
	}
	t.Cleanup(env.srv.Close)

	env.token = env.login(t)
	return env
}

func (e *testEnv) login(t *testing.T) string {
	t.Helper()
	body := `{"username":"alice","password":"correct horse"}`
	resp, err := http.Post(e.srv.URL+"/api/v1/auth/token", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var login protocol.LoginResponse
	decodeBody(t, resp, &login)
	if login.Token == "" {
		t.Fatal("login returned empty token")
	}
	return login.Token
}

// do sends an authenticated request with an optional JSON body.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func itemNames(items []models.Node) []string {
	names := make([]string, len(items))
	for i, n := range items {
		names[i] = n.Name
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var health protocol.HealthResponse
	decodeBody(t, resp, &health)
	if health.Status != "ok" {
		t.Errorf("expected status ok, got %q", health.Status)
	}
	if health.CatalogNodes != len(fixture()) {
		t.Errorf("expected %d catalog nodes, got %d", len(fixture()), health.CatalogNodes)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		token string
	}{
		{"no token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "GET", "/api/v1/tree", tt.token, nil)
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestListRootFolders(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/v1/tree", env.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var list protocol.ListResponse
	decodeBody(t, resp, &list)

	want := []string{"archive", "attic", "docs", "inbox", "music", "outbox", "pics", "scratch", "trash"}
	if got := itemNames(list.Items); !equalStrings(got, want) {
		t.Errorf("root folders = %v, want %v", got, want)
	}
}

func TestListSubfoldersAndFiles(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		url  string
		want []string
	}{
		{"subfolders of docs", "/api/v1/tree/docs", []string{"reports"}},
		{"files of docs", "/api/v1/files/docs", []string{"a.txt", "b.txt"}},
		{"files of nested folder", "/api/v1/files/docs/reports", []string{"q1.pdf"}},
		{"files of empty folder", "/api/v1/files/outbox", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "GET", tt.url, env.token, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			var list protocol.ListResponse
			decodeBody(t, resp, &list)
			if got := itemNames(list.Items); !equalStrings(got, tt.want) {
				t.Errorf("items = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListUnknownFolder(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "GET", "/api/v1/files/no-such-folder", env.token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	var apiErr protocol.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != http.StatusNotFound {
		t.Errorf("expected code 404 in body, got %d", apiErr.Code)
	}
}

func TestListingsAreGzippedOnRequest(t *testing.T) {
	env := newTestEnv(t)

	// Setting the header explicitly disables the transport's transparent
	// decompression, so the raw gzip body comes through.
	req, _ := http.NewRequest("GET", env.srv.URL+"/api/v1/tree", nil)
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if enc := resp.Header.Get("Content-Encoding"); enc != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", enc)
	}
	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var list protocol.ListResponse
	if err := json.NewDecoder(gz).Decode(&list); err != nil {
		t.Fatalf("decode gzipped body: %v", err)
	}
	if len(list.Items) == 0 {
		t.Error("expected non-empty listing")
	}
}

func TestFolderStats(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		url       string
		folders   int
		files     int
		totalSize int64
	}{
		{"subtree", "/api/v1/stats/docs", 1, 3, 3172},
		{"whole library", "/api/v1/stats/", 11, 10, 5246},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "GET", tt.url, env.token, nil)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.StatusCode)
			}
			var stats protocol.StatsResponse
			decodeBody(t, resp, &stats)
			if stats.Status != protocol.StatusOK {
				t.Errorf("status = %q", stats.Status)
			}
			if stats.FolderCount != tt.folders || stats.FileCount != tt.files || stats.TotalSizeBytes != tt.totalSize {
				t.Errorf("stats = {%d %d %d}, want {%d %d %d}",
					stats.FolderCount, stats.FileCount, stats.TotalSizeBytes,
					tt.folders, tt.files, tt.totalSize)
			}
		})
	}
}

func TestRenameFile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/file/rename", env.token,
		protocol.RenameFileRequest{Path: "docs/a.txt", NewName: "notes.txt"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rename protocol.RenameResponse
	decodeBody(t, resp, &rename)
	if rename.NewPath != "docs/notes.txt" {
		t.Errorf("newPath = %q", rename.NewPath)
	}
	if _, ok := env.lib.Get("docs/notes.txt"); !ok {
		t.Error("renamed file missing from catalog")
	}
	if _, ok := env.lib.Get("docs/a.txt"); ok {
		t.Error("old path still in catalog")
	}
}

func TestRenameFileErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		req      protocol.RenameFileRequest
		wantCode int
	}{
		{"slash in name", protocol.RenameFileRequest{Path: "docs/a.txt", NewName: "x/y.txt"}, http.StatusBadRequest},
		{"missing file", protocol.RenameFileRequest{Path: "docs/nope.txt", NewName: "x.txt"}, http.StatusNotFound},
		{"name taken", protocol.RenameFileRequest{Path: "docs/a.txt", NewName: "b.txt"}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, "POST", "/api/v1/file/rename", env.token, tt.req)
			resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, resp.StatusCode)
			}
		})
	}
}

func TestRenameFolderConflictWithoutMerge(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/folder/rename", env.token,
		protocol.RenameFolderRequest{Path: "music", NewName: "pics"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var apiErr protocol.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Error != protocol.ErrMsgFolderExists {
		t.Errorf("error = %q, want %q", apiErr.Error, protocol.ErrMsgFolderExists)
	}
	if _, ok := env.lib.Get("music"); !ok {
		t.Error("rejected rename must leave the source in place")
	}
}

func TestRenameFolderMergeConflictsListed(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/folder/rename", env.token,
		protocol.RenameFolderRequest{Path: "music", NewName: "pics", Merge: true})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var apiErr protocol.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Error != protocol.ErrMsgMergeConflicts {
		t.Errorf("error = %q, want %q", apiErr.Error, protocol.ErrMsgMergeConflicts)
	}
	want := []string{"pics/song.mp3"}
	if !equalStrings(apiErr.Conflicts, want) {
		t.Errorf("conflicts = %v, want %v", apiErr.Conflicts, want)
	}
	if _, ok := env.lib.Get("music/song.mp3"); !ok {
		t.Error("conflicted merge must not move anything")
	}
}

func TestRenameFolderMergeSucceeds(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/folder/rename", env.token,
		protocol.RenameFolderRequest{Path: "attic", NewName: "archive", Merge: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rename protocol.RenameResponse
	decodeBody(t, resp, &rename)
	if rename.NewPath != "archive" {
		t.Errorf("newPath = %q", rename.NewPath)
	}
	if !rename.Merged {
		t.Error("expected merged flag")
	}
	if _, ok := env.lib.Get("archive/old.log"); !ok {
		t.Error("merged file missing from destination")
	}
	if _, ok := env.lib.Get("attic"); ok {
		t.Error("merge source should be gone")
	}
}

func TestMoveFile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/file/move", env.token,
		protocol.MoveFileRequest{Path: "inbox/drafts/memo.txt", Destination: "outbox"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var move protocol.MoveResponse
	decodeBody(t, resp, &move)
	if move.NewPath != "outbox/memo.txt" {
		t.Errorf("newPath = %q", move.NewPath)
	}
	if _, ok := env.lib.Get("inbox/drafts/memo.txt"); ok {
		t.Error("source still present after move")
	}
}

func TestMoveFileCopyKeepsSource(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/file/move", env.token,
		protocol.MoveFileRequest{Path: "docs/b.txt", Destination: "outbox", Copy: true})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var move protocol.MoveResponse
	decodeBody(t, resp, &move)
	if move.NewPath != "outbox/b.txt" {
		t.Errorf("newPath = %q", move.NewPath)
	}
	if _, ok := env.lib.Get("docs/b.txt"); !ok {
		t.Error("copy must keep the source")
	}
	if _, ok := env.lib.Get("outbox/b.txt"); !ok {
		t.Error("copy destination missing")
	}
}

func TestMoveFolderIntoOwnSubtreeRejected(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "POST", "/api/v1/folder/move", env.token,
		protocol.MoveFolderRequest{Path: "inbox", Destination: "inbox/drafts"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestMoveRelocatesStoredObjects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	content := []byte("quarterly numbers")
	if err := env.backend.PutObject(ctx, "docs/a.txt", bytes.NewReader(content), int64(len(content))); err != nil {
		t.Fatalf("seed object: %v", err)
	}

	resp := env.do(t, "POST", "/api/v1/file/rename", env.token,
		protocol.RenameFileRequest{Path: "docs/a.txt", NewName: "notes.txt"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if ok, _ := env.backend.ObjectExists(ctx, "docs/notes.txt"); !ok {
		t.Error("object not found at the new key")
	}
	if ok, _ := env.backend.ObjectExists(ctx, "docs/a.txt"); ok {
		t.Error("object still present at the old key")
	}
}

func TestDeleteFile(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "DELETE", "/api/v1/file/trash/junk.txt", env.token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var del protocol.DeleteResponse
	decodeBody(t, resp, &del)
	if del.Path != "trash/junk.txt" {
		t.Errorf("path = %q", del.Path)
	}

	resp = env.do(t, "DELETE", "/api/v1/file/trash/junk.txt", env.token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteFolderNonRecursiveRequiresEmpty(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, "DELETE", "/api/v1/folder/trash", env.token, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.do(t, "DELETE", "/api/v1/folder/trash?recursive=true", env.token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recursive delete: expected 200, got %d", resp.StatusCode)
	}
	if _, ok := env.lib.Get("trash"); ok {
		t.Error("folder still present after recursive delete")
	}
}

func TestRecursiveDeleteRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	// Hand-signed token without the admin claim.
	claims := &auth.Claims{
		Username: "bob",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "metadata-remote",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp := env.do(t, "DELETE", "/api/v1/folder/scratch?recursive=true", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}

	// Non-recursive deletes stay open to every authenticated user.
	resp = env.do(t, "DELETE", "/api/v1/folder/scratch", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for non-empty folder, got %d", resp.StatusCode)
	}
}

func TestEventsStreamPublishesMutations(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Token travels in the query string, the way EventSource clients send it.
	req, err := http.NewRequestWithContext(ctx, "GET", env.srv.URL+"/api/v1/events?token="+env.token, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	// The subscription registers shortly after the headers arrive.
	deadline := time.Now().Add(2 * time.Second)
	for env.broadcaster.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	mutate := env.do(t, "POST", "/api/v1/file/rename", env.token,
		protocol.RenameFileRequest{Path: "docs/a.txt", NewName: "notes.txt"})
	mutate.Body.Close()
	if mutate.StatusCode != http.StatusOK {
		t.Fatalf("rename failed: %d", mutate.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event protocol.ChangeEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if event.Type != protocol.EventMoved {
			t.Errorf("event type = %q, want %q", event.Type, protocol.EventMoved)
		}
		if event.Path != "docs/a.txt" || event.NewPath != "docs/notes.txt" {
			t.Errorf("event paths = %q -> %q", event.Path, event.NewPath)
		}
		return
	}
	t.Fatalf("stream ended without an event: %v", scanner.Err())
}
