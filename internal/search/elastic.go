// Package search pushes ingested documents into the full-text index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Fields is the indexed shape of one document.
type Fields struct {
	Title            string     `json:"title,omitempty"`
	Text             string     `json:"text"`
	FileURL          string     `json:"fileUrl,omitempty"`
	OrganizationID   string     `json:"organizationId"`
	OrganizationName string     `json:"organizationName,omitempty"`
	UploadDate       time.Time  `json:"uploadDate"`
	ContentLength    int64      `json:"contentLength"`
	ContentType      string     `json:"contentType,omitempty"`
	PublicationDate  *time.Time `json:"publicationDate,omitempty"`
	Language         string     `json:"language,omitempty"`
}

// ElasticIndexer writes documents to an Elasticsearch index.
type ElasticIndexer struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticIndexer connects to the cluster at the given address.
func NewElasticIndexer(address, index string) (*ElasticIndexer, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{address},
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &ElasticIndexer{client: client, index: index}, nil
}

// Index upserts one document by id.
func (e *ElasticIndexer) Index(ctx context.Context, documentID string, fields Fields) error {
	if e == nil || e.client == nil {
		return fmt.Errorf("search indexer is not configured")
	}

	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding index document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: documentID,
		Body:       bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("indexing document %s: %w", documentID, err)
	}
	defer resp.Body.Close()

	if resp.IsError() {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("index upsert for %s returned %s: %s", documentID, resp.Status(), snippet)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// DisabledIndexer is used when no search cluster is configured; every upsert
// is a silent no-op.
type DisabledIndexer struct{}

func (DisabledIndexer) Index(context.Context, string, Fields) error { return nil }
