// Package objectstore fetches uploaded files from an S3-compatible object
// store over plain HTTP GET.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Object is one fetched upload: its bytes plus the user metadata the
// uploader attached.
type Object struct {
	Body          []byte
	ContentType   string
	ContentLength int64
	// DocumentID and OriginalFilename come from the x-amz-meta-* headers
	// set at upload time; either may be empty.
	DocumentID       string
	OriginalFilename string
}

// HTTPFetcher retrieves objects from <origin>/<bucket>/<key>.
type HTTPFetcher struct {
	origin string
	client *http.Client
}

// NewHTTPFetcher builds a fetcher against the given object-store origin,
// for example "https://s3.amazonaws.com".
func NewHTTPFetcher(origin string) *HTTPFetcher {
	return &HTTPFetcher{
		origin: strings.TrimRight(strings.TrimSpace(origin), "/"),
		client: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

// Fetch downloads one object.
func (f *HTTPFetcher) Fetch(ctx context.Context, bucket, key string) (*Object, error) {
	if f == nil || f.origin == "" {
		return nil, fmt.Errorf("object store fetcher is not configured")
	}

	url := f.origin + "/" + bucket + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building object request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("object store returned %d for %s/%s", resp.StatusCode, bucket, key)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object body: %w", err)
	}

	return &Object{
		Body:             body,
		ContentType:      resp.Header.Get("Content-Type"),
		ContentLength:    int64(len(body)),
		DocumentID:       resp.Header.Get("x-amz-meta-document-id"),
		OriginalFilename: resp.Header.Get("x-amz-meta-original-filename"),
	}, nil
}

// ObjectURL returns the public URL an object is served from.
func (f *HTTPFetcher) ObjectURL(bucket, key string) string {
	if f == nil {
		return ""
	}
	return f.origin + "/" + bucket + "/" + key
}
