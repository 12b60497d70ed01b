package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchReadsBodyAndUserMetadata(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bucket-1/uploads/org-1/file-1.pdf" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("x-amz-meta-document-id", "doc-1")
		w.Header().Set("x-amz-meta-original-filename", "Annual Report.pdf")
		w.Write([]byte("%PDF-1.4 content"))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL)
	object, err := fetcher.Fetch(context.Background(), "bucket-1", "uploads/org-1/file-1.pdf")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(object.Body) != "%PDF-1.4 content" {
		t.Errorf("body = %q", object.Body)
	}
	if object.ContentType != "application/pdf" {
		t.Errorf("content type = %q", object.ContentType)
	}
	if object.ContentLength != int64(len("%PDF-1.4 content")) {
		t.Errorf("content length = %d", object.ContentLength)
	}
	if object.DocumentID != "doc-1" {
		t.Errorf("document id = %q", object.DocumentID)
	}
	if object.OriginalFilename != "Annual Report.pdf" {
		t.Errorf("original filename = %q", object.OriginalFilename)
	}
}

func TestFetchMissingObject(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL)
	if _, err := fetcher.Fetch(context.Background(), "bucket-1", "missing"); err == nil {
		t.Fatal("expected error for missing object")
	}
}

func TestObjectURL(t *testing.T) {
	t.Parallel()

	fetcher := NewHTTPFetcher("https://s3.amazonaws.com/")
	got := fetcher.ObjectURL("bucket-1", "uploads/org-1/file-1.pdf")
	if got != "https://s3.amazonaws.com/bucket-1/uploads/org-1/file-1.pdf" {
		t.Fatalf("url = %q", got)
	}
}
