package bridge

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

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/netx"
)

const defaultTimeout = 10 * time.Second

// Client calls the companion HTTP API. Transport failures are returned
// wrapping common.ErrBridgeUnavailable; a reply with an unexpected status
// is a *netx.StatusError.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient = &http.Client{Timeout: d}
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: bridge url %q", common.ErrValidation, baseURL)
	}

	c := &Client{baseURL: trimmed, httpClient: &http.Client{Timeout: defaultTimeout}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBridgeUnavailable, err)
	}
	if err := netx.CheckResponse(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.getJSON(ctx, PathStatus, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Changes returns files added or modified since the previous call.
func (c *Client) Changes(ctx context.Context) ([]FileInfo, error) {
	var l FileList
	if err := c.getJSON(ctx, PathChanges, &l); err != nil {
		return nil, err
	}
	return l.Files, nil
}

// ImportAll returns every file in the watched folder.
func (c *Client) ImportAll(ctx context.Context) ([]FileInfo, error) {
	var l FileList
	if err := c.getJSON(ctx, PathImportAll, &l); err != nil {
		return nil, err
	}
	return l.Files, nil
}

// File opens the content of file id. The caller closes the reader.
func (c *Client) File(ctx context.Context, id string) (io.ReadCloser, *FileInfo, error) {
	resp, err := c.do(ctx, http.MethodGet, PathFile+url.PathEscape(id), nil)
	if err != nil {
		return nil, nil, err
	}

	info := &FileInfo{
		ID:   id,
		Name: resp.Header.Get(HeaderFileName),
		Type: resp.Header.Get("Content-Type"),
		Size: resp.ContentLength,
	}
	if v := resp.Header.Get(HeaderFileID); v != "" {
		info.ID = v
	}
	if v := resp.Header.Get(HeaderLastModified); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			info.LastModified = t.UTC()
		}
	}
	if info.Size < 0 {
		info.Size = 0
	}
	return resp.Body, info, nil
}

// Watch points the companion at another folder.
func (c *Client) Watch(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodPost, PathWatch, WatchRequest{Path: path})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
