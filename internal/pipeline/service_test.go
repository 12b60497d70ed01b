package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/archivist/internal/assertion"
	"horse.fit/archivist/internal/cas"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/objectstore"
	"horse.fit/archivist/internal/search"
)

type fakeFetcher struct {
	objects map[string]*objectstore.Object
}

func (f *fakeFetcher) Fetch(_ context.Context, bucket, key string) (*objectstore.Object, error) {
	object, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return object, nil
}

func (f *fakeFetcher) ObjectURL(bucket, key string) string {
	return "https://objects.test/" + bucket + "/" + key
}

type fakeExtractor struct {
	text     string
	metadata string
	textErr  error
	metaErr  error

	mu        sync.Mutex
	textCalls int
	metaCalls int
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte, _ string) ([]byte, error) {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.textErr != nil {
		return nil, f.textErr
	}
	return []byte(f.text), nil
}

func (f *fakeExtractor) ExtractMetadata(_ context.Context, _ []byte, _ string) ([]byte, error) {
	f.mu.Lock()
	f.metaCalls++
	f.mu.Unlock()
	if f.metaErr != nil {
		return nil, f.metaErr
	}
	return []byte(f.metadata), nil
}

type fakeRecords struct {
	mu         sync.Mutex
	documents  map[string]db.Document
	assertions []db.Assertion
	persistErr error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{documents: make(map[string]db.Document)}
}

func (f *fakeRecords) FindAssertionByFileCID(_ context.Context, organizationID, fileCID string) (*db.Assertion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.assertions {
		if a.OrganizationID == organizationID && a.FileCID == fileCID {
			found := a
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeRecords) FindDocument(_ context.Context, id string) (*db.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.documents[id]; ok {
		found := doc
		return &found, nil
	}
	return nil, nil
}

func (f *fakeRecords) GetOrganization(_ context.Context, id string) (*db.Organization, error) {
	return &db.Organization{ID: id, Slug: "org", Name: "Test Organization"}, nil
}

func (f *fakeRecords) PersistIngestion(_ context.Context, doc db.Document, patch db.DocumentPatch, a db.Assertion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return f.persistErr
	}
	stored, exists := f.documents[doc.ID]
	if !exists {
		stored = doc
	}
	if patch.Title != nil {
		stored.Title = patch.Title
	}
	if patch.Language != nil {
		stored.Language = patch.Language
	}
	if patch.PublicationDate != nil {
		stored.PublicationDate = patch.PublicationDate
	}
	if patch.FileURL != nil {
		stored.FileURL = patch.FileURL
	}
	if patch.FileName != nil {
		stored.FileName = patch.FileName
	}
	if patch.ContentType != nil {
		stored.ContentType = patch.ContentType
	}
	f.documents[doc.ID] = stored
	f.assertions = append(f.assertions, a)
	return nil
}

type fakeIndexer struct {
	mu     sync.Mutex
	err    error
	fields map[string]search.Fields
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{fields: make(map[string]search.Fields)}
}

func (f *fakeIndexer) Index(_ context.Context, documentID string, fields search.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.fields[documentID] = fields
	return nil
}

type harness struct {
	service *Service
	fetcher *fakeFetcher
	extract *fakeExtractor
	records *fakeRecords
	indexer *fakeIndexer
	blobs   *cas.MemoryBlobstore
}

func newHarness() *harness {
	blobs := cas.NewMemoryBlobstore()
	fetcher := &fakeFetcher{objects: map[string]*objectstore.Object{
		"bucket-1/uploads/org-1/file-1.pdf": {
			Body:          []byte("%PDF-1.4 file content"),
			ContentType:   "application/pdf",
			ContentLength: int64(len("%PDF-1.4 file content")),
			DocumentID:    "doc-1",
		},
	}}
	extract := &fakeExtractor{
		text:     "hello world",
		metadata: `{"title":"Report","dc:creator":"Jane"}`,
	}
	records := newFakeRecords()
	indexer := newFakeIndexer()

	var idCounter int
	var idMu sync.Mutex
	service := New(Options{
		Content: cas.New(blobs, 1<<20),
		Extract: extract,
		Fetcher: fetcher,
		Records: records,
		Indexer: indexer,
		Builder: assertion.Builder{
			GatewayBase:     "https://gateway.ipfs.io/ipfs",
			DocumentURIBase: "http://archivist.horse.fit/doc",
			DocumentURLBase: "https://archivist.horse.fit/doc",
		},
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			idCounter++
			return fmt.Sprintf("00000000-0000-0000-0000-%012d", idCounter)
		},
		Logger: zerolog.Nop(),
	})
	return &harness{service: service, fetcher: fetcher, extract: extract, records: records, indexer: indexer, blobs: blobs}
}

func testEvent() Event {
	return Event{
		EventTime:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Bucket:         "bucket-1",
		Key:            "uploads/org-1/file-1.pdf",
		Size:           21,
		OrganizationID: "org-1",
		FileID:         "file-1",
	}
}

func TestIngestOneHappyPath(t *testing.T) {
	t.Parallel()

	h := newHarness()
	result, err := h.service.IngestOne(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("IngestOne: %v", err)
	}
	if result.Deduplicated {
		t.Fatal("first ingestion reported as duplicate")
	}
	if result.DocumentID != "doc-1" {
		t.Errorf("document id = %q", result.DocumentID)
	}
	if result.IndexErr != nil {
		t.Errorf("unexpected index error: %v", result.IndexErr)
	}

	doc, ok := h.records.documents["doc-1"]
	if !ok {
		t.Fatal("document row not written")
	}
	if doc.Title == nil || *doc.Title != "Report" {
		t.Errorf("title = %v", doc.Title)
	}
	if len(h.records.assertions) != 1 {
		t.Fatalf("assertion rows = %d, want 1", len(h.records.assertions))
	}
	row := h.records.assertions[0]
	if row.DocumentID != "doc-1" || row.FileCID != result.FileCID || row.CID != result.AssertionCID {
		t.Errorf("assertion row = %+v", row)
	}

	serialized, err := cas.New(h.blobs, 1<<20).Get(context.Background(), result.AssertionCID)
	if err != nil {
		t.Fatalf("fetch stored assertion: %v", err)
	}
	out := string(serialized)
	if !strings.Contains(out, "<http://schema.org/transcript>") {
		t.Error("assertion missing transcript link")
	}
	if !strings.Contains(out, `<http://purl.org/dc/elements/1.1/creator> "Jane"`) {
		t.Error("assertion missing foreign dc:creator statement")
	}

	fields, ok := h.indexer.fields["doc-1"]
	if !ok {
		t.Fatal("document not indexed")
	}
	if fields.Text != "hello world" || fields.Title != "Report" {
		t.Errorf("indexed fields = %+v", fields)
	}
	if fields.OrganizationName != "Test Organization" {
		t.Errorf("organization name = %q", fields.OrganizationName)
	}
}

func TestIngestOneDedupSkipsExtraction(t *testing.T) {
	t.Parallel()

	h := newHarness()
	first, err := h.service.IngestOne(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("first ingestion: %v", err)
	}

	// Same bytes uploaded under a different key and document id.
	h.fetcher.objects["bucket-1/uploads/org-1/file-2.pdf"] = &objectstore.Object{
		Body:          []byte("%PDF-1.4 file content"),
		ContentType:   "application/pdf",
		ContentLength: int64(len("%PDF-1.4 file content")),
		DocumentID:    "doc-2",
	}
	event := testEvent()
	event.Key = "uploads/org-1/file-2.pdf"
	event.FileID = "file-2"

	second, err := h.service.IngestOne(context.Background(), event)
	if err != nil {
		t.Fatalf("second ingestion: %v", err)
	}
	if !second.Deduplicated {
		t.Fatal("duplicate content not detected")
	}
	if second.DocumentID != first.DocumentID || second.AssertionCID != first.AssertionCID {
		t.Errorf("dedup returned %+v, want prior %+v", second, first)
	}
	if h.extract.textCalls != 1 || h.extract.metaCalls != 1 {
		t.Errorf("extraction ran for duplicate: text=%d meta=%d", h.extract.textCalls, h.extract.metaCalls)
	}
	if len(h.records.assertions) != 1 {
		t.Errorf("assertion rows = %d, want 1", len(h.records.assertions))
	}
}

func TestIngestOneExtractionFailureWritesNothing(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.extract.metaErr = errors.New("tika timeout")

	_, err := h.service.IngestOne(context.Background(), testEvent())
	var ingestErr *Error
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ingestErr.Kind != KindExtraction || ingestErr.State != StateExtracted {
		t.Errorf("error = %v", ingestErr)
	}
	if !ingestErr.Retryable() {
		t.Error("extraction failure should be retryable")
	}
	if len(h.records.assertions) != 0 || len(h.records.documents) != 0 {
		t.Error("rows written despite extraction failure")
	}

	// The stored file content id stays valid for a later retry.
	if h.blobs.Len() != 1 {
		t.Errorf("stored blobs = %d, want 1 (the file)", h.blobs.Len())
	}
	h.extract.metaErr = nil
	if _, err := h.service.IngestOne(context.Background(), testEvent()); err != nil {
		t.Fatalf("retry after extraction failure: %v", err)
	}
}

func TestIngestOneMalformedMetadataIsFatal(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.extract.metadata = `{"title": `

	_, err := h.service.IngestOne(context.Background(), testEvent())
	var ingestErr *Error
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ingestErr.Kind != KindMetadataParse || ingestErr.State != StateNormalized {
		t.Errorf("error = %v", ingestErr)
	}
	if ingestErr.Retryable() {
		t.Error("metadata parse failure should not be retryable")
	}
	if len(h.records.documents) != 0 {
		t.Error("document row written despite parse failure")
	}
}

func TestIngestOneIndexFailureIsSurfacedNotFatal(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.indexer.err = errors.New("cluster red")

	result, err := h.service.IngestOne(context.Background(), testEvent())
	if err != nil {
		t.Fatalf("IngestOne: %v", err)
	}
	if result.IndexErr == nil {
		t.Fatal("index failure not surfaced on result")
	}
	var ingestErr *Error
	if !errors.As(result.IndexErr, &ingestErr) || ingestErr.State != StateIndexed {
		t.Errorf("index error = %v", result.IndexErr)
	}
	if len(h.records.assertions) != 1 {
		t.Error("ingestion should still persist when indexing fails")
	}
}

func TestIngestOnePersistFailure(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.records.persistErr = errors.New("connection refused")

	_, err := h.service.IngestOne(context.Background(), testEvent())
	var ingestErr *Error
	if !errors.As(err, &ingestErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if ingestErr.State != StatePersisted || ingestErr.Kind != KindStorage {
		t.Errorf("error = %v", ingestErr)
	}
	if !ingestErr.Retryable() {
		t.Error("storage failure should be retryable")
	}
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	t.Parallel()

	h := newHarness()
	events := []Event{testEvent(), testEvent()}
	events[1].Key = "uploads/org-1/missing.pdf"
	events[1].FileID = "missing"

	results := h.service.ProcessBatch(context.Background(), events)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Failed() {
		t.Errorf("first record failed: %v", results[0].Err)
	}
	if !results[1].Failed() {
		t.Error("missing object should fail its record")
	}
	var ingestErr *Error
	if !errors.As(results[1].Err, &ingestErr) || ingestErr.Kind != KindFetch {
		t.Errorf("second record error = %v", results[1].Err)
	}
}
