package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gridworm/gridworm/internal/netx"
)

// URLFetcher opens local paths, file:// and data: URLs directly and
// http(s):// URLs with Client.
type URLFetcher struct {
	Client *http.Client
}

func NewURLFetcher(timeout time.Duration) *URLFetcher {
	return &URLFetcher{Client: &http.Client{Timeout: timeout}}
}

func (f *URLFetcher) Fetch(ctx context.Context, raw string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(raw, "data:"):
		data, err := decodeDataURL(raw)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return f.fetchHTTP(ctx, raw)
	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", raw, err)
		}
		return os.Open(u.Path)
	default:
		return os.Open(raw)
	}
}

func (f *URLFetcher) fetchHTTP(ctx context.Context, raw string) (io.ReadCloser, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := netx.CheckResponse(resp); err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func decodeDataURL(raw string) ([]byte, error) {
	comma := strings.IndexByte(raw, ',')
	if comma < 0 {
		return nil, errors.New("malformed data URL")
	}
	meta, payload := raw[len("data:"):comma], raw[comma+1:]
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}
