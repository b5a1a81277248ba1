// Package netx is an HTTP client for the filevault files API.
package netx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/sethvargo/go-retry"
)

const filesPath = "/api/files/"

// FileInfo mirrors the JSON shape the server returns for a file.
type FileInfo struct {
	ID               string    `json:"id"`
	FileURL          string    `json:"file_url"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	FileHash         string    `json:"file_hash"`
	IsReference      bool      `json:"is_reference"`
}

// Stats mirrors the storage statistics response.
type Stats struct {
	TotalFiles          int64   `json:"total_files"`
	OriginalStorageUsed int64   `json:"original_storage_used"`
	LogicalStorageUsed  int64   `json:"logical_storage_used"`
	SpaceSaved          int64   `json:"space_saved"`
	QuotaLimit          int64   `json:"quota_limit"`
	UsedPercentage      float64 `json:"used_percentage"`
	SavingsPercentage   float64 `json:"savings_percentage"`
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to one server on behalf of one owner.
type Client struct {
	base    *url.URL
	ownerID string
	http    *http.Client
	backoff func() retry.Backoff
}

// NewClient validates baseURL and returns a client that sends ownerID with
// every request.
func NewClient(baseURL, ownerID string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, errors.New("owner id is required")
	}
	return &Client{
		base:    u,
		ownerID: ownerID,
		http:    &http.Client{Timeout: timeout},
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
		},
	}, nil
}

func (c *Client) endpoint(p string, q url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + filesPath + p
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Upload streams r as the multipart field "file" without buffering it.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*FileInfo, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("", nil), pr)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out FileInfo
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the owner's files matching q (search, file_type, min_size,
// max_size, start_date, end_date).
func (c *Client) List(ctx context.Context, q url.Values) ([]FileInfo, error) {
	var out []FileInfo
	if err := c.getJSON(ctx, c.endpoint("", q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id string) (*FileInfo, error) {
	var out FileInfo
	if err := c.getJSON(ctx, c.endpoint(url.PathEscape(id)+"/", nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.getJSON(ctx, c.endpoint("storage_stats/", nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FileTypes(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, c.endpoint("file_types/", nil), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Download copies the file's bytes into w and returns how many were written.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(url.PathEscape(id)+"/download/", nil), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.send(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}
	return io.Copy(w, resp.Body)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(url.PathEscape(id)+"/", nil), nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusNoContent, nil)
}

// getJSON retries rate-limited reads with exponential backoff.
func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		err = c.do(req, http.StatusOK, out)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	req.Header.Set(common.UserIDHeaderName, c.ownerID)
	return c.http.Do(req)
}

func (c *Client) do(req *http.Request, want int, out any) error {
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
