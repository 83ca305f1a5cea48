// Package fetch implements the Fetcher interface.
// It loads assets (the header logo, remote inputs) from http(s) URLs,
// data: URIs, or local paths.
package fetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "policypipe/1.0"
	defaultMaxBytes  = 20 << 20
)

// AssetFetcher fetches assets by location.
type AssetFetcher struct {
	client   *http.Client
	maxBytes int64
}

// New creates an AssetFetcher with a sensible timeout.
func New() *AssetFetcher {
	return &AssetFetcher{
		client:   &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
	}
}

// Fetch retrieves the bytes behind location.
func (f *AssetFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("empty location")
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return f.fetchHTTP(ctx, location)
	case strings.HasPrefix(location, "data:"):
		return decodeDataURI(location)
	case strings.HasPrefix(location, "file://"):
		u, err := url.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", location, err)
		}
		return f.readFile(u.Path)
	default:
		return f.readFile(location)
	}
}

func (f *AssetFetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, location)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", location, f.maxBytes)
	}
	return body, nil
}

func (f *AssetFetcher) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, f.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// decodeDataURI handles data:[<mediatype>][;base64],<data>.
func decodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data URI: %w", err)
		}
		return data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI: %w", err)
	}
	return []byte(text), nil
}
