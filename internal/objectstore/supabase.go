package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies the credential attached to each storage request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential such as a service-role key
type StaticToken string

// Token returns the key itself
func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("storage token is empty")
	}
	return string(t), nil
}

// TokenFunc adapts a function to TokenSource
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// SupabaseStore talks to the Supabase Storage REST API
type SupabaseStore struct {
	baseURL    string
	bucket     string
	tokens     TokenSource
	httpClient *http.Client
}

// SupabaseOption configures the store
type SupabaseOption func(*SupabaseStore)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) SupabaseOption {
	return func(s *SupabaseStore) {
		s.httpClient = client
	}
}

// NewSupabaseStore creates a store for bucket at baseURL (the project URL)
func NewSupabaseStore(baseURL, bucket string, tokens TokenSource, opts ...SupabaseOption) *SupabaseStore {
	s := &SupabaseStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// storageError is the error body returned by the storage API
type storageError struct {
	StatusCode string `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// listEntry is one row of a list response; folders have no id
type listEntry struct {
	Name string  `json:"name"`
	ID   *string `json:"id"`
}

// Upload creates the object; an existing object is an error
func (s *SupabaseStore) Upload(ctx context.Context, p, contentType string, r io.Reader) error {
	key, err := CleanPath(p)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.objectURL(key), r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	if _, err := s.do(req); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ListFolders lists the folders directly below prefix
func (s *SupabaseStore) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	dir, err := CleanPath(prefix)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]interface{}{
		"prefix": dir,
		"limit":  1000,
		"offset": 0,
		"sortBy": map[string]string{"column": "name", "order": "asc"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, fmt.Sprintf("%s/storage/v1/object/list/%s", s.baseURL, s.bucket), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var entries []listEntry
	if err := json.Unmarshal(resp, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal list response: %w", err)
	}

	folders := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.ID == nil && e.Name != "" {
			folders = append(folders, e.Name)
		}
	}
	return folders, nil
}

// Delete removes objects in a single request
func (s *SupabaseStore) Delete(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		key, err := CleanPath(p)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}

	body, err := json.Marshal(map[string][]string{"prefixes": keys})
	if err != nil {
		return fmt.Errorf("failed to marshal delete request: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/storage/v1/object/%s", s.baseURL, s.bucket), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if _, err := s.do(req); err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	return nil
}

// Ping checks that the bucket is reachable with the current credential
func (s *SupabaseStore) Ping(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, fmt.Sprintf("%s/storage/v1/bucket/%s", s.baseURL, s.bucket), nil)
	if err != nil {
		return err
	}
	_, err = s.do(req)
	return err
}

func (s *SupabaseStore) objectURL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, strings.Join(segments, "/"))
}

// newRequest builds a request carrying a freshly obtained token
func (s *SupabaseStore) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain storage token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", token)
	return req, nil
}

func (s *SupabaseStore) do(req *http.Request) ([]byte, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var se storageError
		if json.Unmarshal(respBody, &se) == nil && se.Message != "" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, se.Message)
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
