package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
	"github.com/Vincenzoferrara/metadata-remote/pkg/retry"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     5 * time.Millisecond,
			Multiplier:  2.0,
		},
	})
}

func TestListChildren(t *testing.T) {
	var gotPath string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(protocol.ListResponse{
			Items: nil,
		})
	}))

	if _, err := c.ListChildren(context.Background(), "docs/sub folder"); err != nil {
		t.Fatalf("ListChildren error: %v", err)
	}
	// Segments are escaped individually; the separating slashes survive.
	if gotPath != "/api/v1/tree/docs/sub%20folder" && gotPath != "/api/v1/tree/docs/sub folder" {
		t.Errorf("request path = %q", gotPath)
	}
}

func TestRenameFolderConflictTyped(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{
			Error: protocol.ErrMsgFolderExists,
			Code:  http.StatusConflict,
		})
	}))

	_, err := c.RenameFolder(context.Background(), "music", "Music", false)
	if err == nil {
		t.Fatal("RenameFolder should fail with a conflict")
	}
	if _, ok := AsFolderExists(err); !ok {
		t.Errorf("error %v is not a FolderExistsError", err)
	}
	if _, ok := AsMergeConflict(err); ok {
		t.Errorf("error %v wrongly matches MergeConflictError", err)
	}
}

func TestRenameFolderMergeConflicts(t *testing.T) {
	attempts := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{
			Error:     protocol.ErrMsgMergeConflicts,
			Code:      http.StatusConflict,
			Conflicts: []string{"Music/a.mp3"},
		})
	}))

	_, err := c.RenameFolder(context.Background(), "music", "Music", true)
	me, ok := AsMergeConflict(err)
	if !ok {
		t.Fatalf("error %v is not a MergeConflictError", err)
	}
	if len(me.Conflicts) != 1 || me.Conflicts[0] != "Music/a.mp3" {
		t.Errorf("Conflicts = %v, want [Music/a.mp3]", me.Conflicts)
	}
	// Domain conflicts must not be retried.
	if attempts != 1 {
		t.Errorf("server saw %d attempts, want 1", attempts)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	attempts := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(protocol.RenameResponse{Status: protocol.StatusOK, NewPath: "docs2"})
	}))

	newPath, err := c.RenameFolder(context.Background(), "docs", "docs2", false)
	if err != nil {
		t.Fatalf("RenameFolder error after retries: %v", err)
	}
	if newPath != "docs2" {
		t.Errorf("newPath = %q, want %q", newPath, "docs2")
	}
	if attempts != 3 {
		t.Errorf("server saw %d attempts, want 3", attempts)
	}
}

func TestDeleteFolderRecursiveFlag(t *testing.T) {
	var gotQuery string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(protocol.DeleteResponse{Status: protocol.StatusOK, Path: "docs"})
	}))

	if err := c.DeleteFolder(context.Background(), "docs", true); err != nil {
		t.Fatalf("DeleteFolder error: %v", err)
	}
	if gotQuery != "recursive=true" {
		t.Errorf("query = %q, want recursive=true", gotQuery)
	}
}

func TestOnlineTracking(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "not found", Code: 404})
	}))

	if _, err := c.ListChildren(context.Background(), "nope"); err == nil {
		t.Fatal("ListChildren of missing folder should fail")
	}
	// A 404 is a server answer, so the client stays online.
	if !c.IsOnline() {
		t.Error("client marked offline after a 404")
	}
}

func TestAuthHeaderSent(t *testing.T) {
	var gotAuth string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(protocol.ListResponse{})
	}))
	c.SetAuthToken("tok123")

	if _, err := c.ListRoot(context.Background()); err != nil {
		t.Fatalf("ListRoot error: %v", err)
	}
	if gotAuth != "Bearer tok123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok123")
	}
}
