package reindex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/archivist/internal/assertion"
	"horse.fit/archivist/internal/cas"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/metadata"
	"horse.fit/archivist/internal/search"
)

type fakeRecords struct {
	items []db.DocumentAssertion
}

func (f *fakeRecords) ListDocumentAssertions(_ context.Context, offset, limit int) ([]db.DocumentAssertion, error) {
	if offset >= len(f.items) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.items) {
		end = len(f.items)
	}
	return f.items[offset:end], nil
}

func (f *fakeRecords) GetOrganization(_ context.Context, id string) (*db.Organization, error) {
	return &db.Organization{ID: id, Slug: "org", Name: "Test Organization"}, nil
}

type captureIndexer struct {
	fields map[string]search.Fields
	err    error
}

func (c *captureIndexer) Index(_ context.Context, documentID string, fields search.Fields) error {
	if c.err != nil {
		return c.err
	}
	c.fields[documentID] = fields
	return nil
}

func storedAssertion(t *testing.T, content *cas.Service, documentID string) string {
	t.Helper()
	ctx := context.Background()

	transcriptCID, err := content.Store(ctx, []byte("hello world"))
	if err != nil {
		t.Fatalf("store transcript: %v", err)
	}
	fileCID, err := content.Store(ctx, []byte("file bytes"))
	if err != nil {
		t.Fatalf("store file: %v", err)
	}
	metadataCID, err := content.StoreStructured(ctx, map[string]any{"title": "Report"})
	if err != nil {
		t.Fatalf("store metadata: %v", err)
	}

	builder := assertion.Builder{
		GatewayBase:     "https://gateway.ipfs.io/ipfs",
		DocumentURIBase: "http://archivist.horse.fit/doc",
		DocumentURLBase: "https://archivist.horse.fit/doc",
	}
	serialized, err := builder.Build(assertion.Input{
		DocumentID:     documentID,
		OrganizationID: "org-1",
		EventTime:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		GeneratedAt:    time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC),
		FileCID:        fileCID,
		TranscriptCID:  transcriptCID,
		MetadataCID:    metadataCID,
		FileSize:       10,
		TranscriptSize: 11,
		Metadata:       metadata.Record{Known: metadata.Known{Title: "Report"}},
	})
	if err != nil {
		t.Fatalf("build assertion: %v", err)
	}
	assertionCID, err := content.Store(ctx, serialized)
	if err != nil {
		t.Fatalf("store assertion: %v", err)
	}
	return assertionCID
}

func TestRunRebuildsIndexFromStoredAssertions(t *testing.T) {
	t.Parallel()

	content := cas.New(cas.NewMemoryBlobstore(), 1<<20)
	assertionCID := storedAssertion(t, content, "doc-1")

	title := "Report"
	records := &fakeRecords{items: []db.DocumentAssertion{{
		Document: db.Document{ID: "doc-1", OrganizationID: "org-1", Title: &title},
		Assertion: db.Assertion{
			ID:         "a-1",
			DocumentID: "doc-1",
			CID:        assertionCID,
			CreatedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		},
	}}}
	indexer := &captureIndexer{fields: make(map[string]search.Fields)}

	stats, err := New(content, records, indexer, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Indexed != 1 || stats.Skipped != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	fields, ok := indexer.fields["doc-1"]
	if !ok {
		t.Fatal("document not indexed")
	}
	if fields.Text != "hello world" {
		t.Errorf("text = %q", fields.Text)
	}
	if fields.Title != "Report" || fields.OrganizationName != "Test Organization" {
		t.Errorf("fields = %+v", fields)
	}
}

func TestRunSkipsUnresolvableDocuments(t *testing.T) {
	t.Parallel()

	content := cas.New(cas.NewMemoryBlobstore(), 1<<20)
	records := &fakeRecords{items: []db.DocumentAssertion{{
		Document:  db.Document{ID: "doc-missing", OrganizationID: "org-1"},
		Assertion: db.Assertion{ID: "a-1", DocumentID: "doc-missing", CID: "bafkmissing"},
	}}}
	indexer := &captureIndexer{fields: make(map[string]search.Fields)}

	stats, err := New(content, records, indexer, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Indexed != 0 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRunAbortsOnIndexFailure(t *testing.T) {
	t.Parallel()

	content := cas.New(cas.NewMemoryBlobstore(), 1<<20)
	assertionCID := storedAssertion(t, content, "doc-1")
	records := &fakeRecords{items: []db.DocumentAssertion{{
		Document:  db.Document{ID: "doc-1", OrganizationID: "org-1"},
		Assertion: db.Assertion{ID: "a-1", DocumentID: "doc-1", CID: assertionCID},
	}}}
	indexer := &captureIndexer{err: errors.New("cluster red")}

	if _, err := New(content, records, indexer, zerolog.Nop()).Run(context.Background()); err == nil {
		t.Fatal("expected index failure to abort the run")
	}
}
