// Package client provides an HTTP client for the metadata-remote API with
// retry, offline tracking, and auth.
package client

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vincenzoferrara/metadata-remote/internal/logging"
	"github.com/Vincenzoferrara/metadata-remote/pkg/models"
	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
	"github.com/Vincenzoferrara/metadata-remote/pkg/retry"
)

// Client talks to the metadata-remote server. It satisfies the remote
// service interface consumed by the browser engine.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config

	mu        sync.RWMutex
	online    bool
	lastPing  time.Time
	authToken string
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config
	AuthToken   string
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		retryConfig: cfg.RetryConfig,
		online:      true,
		authToken:   cfg.AuthToken,
	}
}

// SetAuthToken sets the JWT auth token for requests.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

// applyAuth adds the auth header to a request if a token is set.
func (c *Client) applyAuth(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

// IsOnline returns true if the server is reachable.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("server is back online")
		} else {
			logging.Warn("server is offline")
		}
	}
	c.online = online
	c.lastPing = time.Now()
}

// Ping checks if the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setOnline(false)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.setOnline(false)
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	c.setOnline(true)
	return nil
}

// escapePath percent-escapes each path segment while keeping the slashes
// that separate them.
func escapePath(p string) string {
	if p == "" {
		return ""
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// doJSON performs one request with auth, online tracking, and gzip handling,
// decoding a JSON body into out (which may be nil). Transport failures and
// 5xx responses are marked retryable. A 409 is mapped to the typed conflict
// errors and never retried.
func (c *Client) doJSON(ctx context.Context, method, urlPath string, body, out interface{}) error {
	return retry.Do(ctx, c.retryConfig, func() error {
		var reqBody io.Reader
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reqBody = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+urlPath, reqBody)
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept-Encoding", "gzip")
		req.Header.Set("X-Request-ID", uuid.NewString())
		c.applyAuth(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.setOnline(false)
			return retry.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusConflict {
			// The server is healthy; the operation hit a domain conflict.
			c.setOnline(true)
			return decodeConflict(resp.Body, urlPath)
		}

		if resp.StatusCode >= 500 {
			c.setOnline(false)
			return retry.Retryable(fmt.Errorf("server error: %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			c.setOnline(true)
			var errResp protocol.ErrorResponse
			if json.NewDecoder(resp.Body).Decode(&errResp) == nil && errResp.Error != "" {
				return fmt.Errorf("%s %s failed: %s", method, urlPath, errResp.Error)
			}
			return fmt.Errorf("%s %s failed: %d", method, urlPath, resp.StatusCode)
		}

		c.setOnline(true)

		if out == nil {
			return nil
		}

		var reader io.Reader = resp.Body
		if resp.Header.Get("Content-Encoding") == "gzip" {
			gr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return err
			}
			defer gr.Close()
			reader = gr
		}
		return json.NewDecoder(reader).Decode(out)
	})
}

// decodeConflict turns a 409 body into the typed error the engine matches on.
func decodeConflict(body io.Reader, urlPath string) error {
	var errResp protocol.ErrorResponse
	if json.NewDecoder(body).Decode(&errResp) == nil {
		switch errResp.Error {
		case protocol.ErrMsgFolderExists:
			return &FolderExistsError{Path: urlPath}
		case protocol.ErrMsgMergeConflicts:
			return &MergeConflictError{Path: urlPath, Conflicts: errResp.Conflicts}
		}
		if errResp.Error != "" {
			return fmt.Errorf("conflict: %s", errResp.Error)
		}
	}
	return fmt.Errorf("conflict on %s", urlPath)
}

// ListRoot fetches the root folder listing.
func (c *Client) ListRoot(ctx context.Context) ([]models.Node, error) {
	var resp protocol.ListResponse
	if err := c.doJSON(ctx, "GET", "/api/v1/tree", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListChildren fetches the direct subfolders of a folder.
func (c *Client) ListChildren(ctx context.Context, path string) ([]models.Node, error) {
	var resp protocol.ListResponse
	if err := c.doJSON(ctx, "GET", "/api/v1/tree/"+escapePath(path), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ListFiles fetches the files directly inside a folder.
func (c *Client) ListFiles(ctx context.Context, folderPath string) ([]models.Node, error) {
	var resp protocol.ListResponse
	if err := c.doJSON(ctx, "GET", "/api/v1/files/"+escapePath(folderPath), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// FolderStats fetches recursive counts and total size for a folder.
func (c *Client) FolderStats(ctx context.Context, path string) (models.FolderStats, error) {
	var resp protocol.StatsResponse
	if err := c.doJSON(ctx, "GET", "/api/v1/stats/"+escapePath(path), nil, &resp); err != nil {
		return models.FolderStats{}, err
	}
	return models.FolderStats{
		FolderCount:    resp.FolderCount,
		FileCount:      resp.FileCount,
		TotalSizeBytes: resp.TotalSizeBytes,
	}, nil
}

// RenameFile renames a file in place and returns its new path.
func (c *Client) RenameFile(ctx context.Context, path, newName string) (string, error) {
	var resp protocol.RenameResponse
	req := protocol.RenameFileRequest{Path: path, NewName: newName}
	if err := c.doJSON(ctx, "POST", "/api/v1/file/rename", req, &resp); err != nil {
		return "", err
	}
	return resp.NewPath, nil
}

// RenameFolder renames a folder and returns its new path. With merge set,
// a name collision merges the folder into the existing one instead of
// failing.
func (c *Client) RenameFolder(ctx context.Context, path, newName string, merge bool) (string, error) {
	var resp protocol.RenameResponse
	req := protocol.RenameFolderRequest{Path: path, NewName: newName, Merge: merge}
	if err := c.doJSON(ctx, "POST", "/api/v1/folder/rename", req, &resp); err != nil {
		return "", err
	}
	return resp.NewPath, nil
}

// MoveFile moves (or with copy set, copies) a file into the destination
// folder and returns the resulting path.
func (c *Client) MoveFile(ctx context.Context, path, destination string, copy bool) (string, error) {
	var resp protocol.MoveResponse
	req := protocol.MoveFileRequest{Path: path, Destination: destination, Copy: copy}
	if err := c.doJSON(ctx, "POST", "/api/v1/file/move", req, &resp); err != nil {
		return "", err
	}
	return resp.NewPath, nil
}

// MoveFolder moves (or copies) a folder into the destination folder.
func (c *Client) MoveFolder(ctx context.Context, path, destination string, merge, copy bool) (string, error) {
	var resp protocol.MoveResponse
	req := protocol.MoveFolderRequest{Path: path, Destination: destination, Merge: merge, Copy: copy}
	if err := c.doJSON(ctx, "POST", "/api/v1/folder/move", req, &resp); err != nil {
		return "", err
	}
	return resp.NewPath, nil
}

// DeleteFile deletes a single file.
func (c *Client) DeleteFile(ctx context.Context, path string) error {
	return c.doJSON(ctx, "DELETE", "/api/v1/file/"+escapePath(path), nil, nil)
}

// DeleteFolder deletes a folder. Non-recursive deletes fail on non-empty
// folders.
func (c *Client) DeleteFolder(ctx context.Context, path string, recursive bool) error {
	urlPath := "/api/v1/folder/" + escapePath(path)
	if recursive {
		urlPath += "?recursive=true"
	}
	return c.doJSON(ctx, "DELETE", urlPath, nil, nil)
}
