// Package extract calls the Tika extraction service for transcript text and
// raw document metadata.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// TikaClient talks to a Tika server over its multipart form endpoints.
type TikaClient struct {
	baseURL string
	client  *http.Client
}

// NewTikaClient builds a client for the given Tika base URL.
func NewTikaClient(baseURL string) *TikaClient {
	return &TikaClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// ExtractText returns the plain-text transcript of the file bytes.
func (c *TikaClient) ExtractText(ctx context.Context, data []byte, fileName string) ([]byte, error) {
	return c.extract(ctx, "/tika/form", "text/plain", data, fileName)
}

// ExtractMetadata returns the raw metadata record for the file bytes as a
// JSON key/value payload.
func (c *TikaClient) ExtractMetadata(ctx context.Context, data []byte, fileName string) ([]byte, error) {
	return c.extract(ctx, "/meta/form", "application/json", data, fileName)
}

func (c *TikaClient) extract(ctx context.Context, path, accept string, data []byte, fileName string) ([]byte, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("tika client is not configured")
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	if fileName == "" {
		fileName = "upload"
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("building multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("writing multipart payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &form)
	if err != nil {
		return nil, fmt.Errorf("building extraction request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", accept)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling extraction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extraction service returned %d for %s: %s",
			resp.StatusCode, path, strings.TrimSpace(string(snippet)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading extraction response: %w", err)
	}
	return body, nil
}
