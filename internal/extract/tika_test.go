package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractTextSendsMultipartForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotAccept, gotFileName string
	var gotPayload []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFileName = header.Filename
		gotPayload, _ = io.ReadAll(file)
		w.Write([]byte("hello world"))
	}))
	defer server.Close()

	client := NewTikaClient(server.URL)
	text, err := client.ExtractText(context.Background(), []byte("%PDF-1.4"), "report.pdf")
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if string(text) != "hello world" {
		t.Errorf("text = %q", text)
	}
	if gotPath != "/tika/form" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAccept != "text/plain" {
		t.Errorf("accept = %q", gotAccept)
	}
	if gotFileName != "report.pdf" {
		t.Errorf("file name = %q", gotFileName)
	}
	if string(gotPayload) != "%PDF-1.4" {
		t.Errorf("payload = %q", gotPayload)
	}
}

func TestExtractMetadataAcceptsJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meta/form" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "application/json" {
			t.Errorf("accept = %q", accept)
		}
		w.Write([]byte(`{"title":"Report"}`))
	}))
	defer server.Close()

	client := NewTikaClient(server.URL)
	meta, err := client.ExtractMetadata(context.Background(), []byte("bytes"), "report.pdf")
	if err != nil {
		t.Fatalf("ExtractMetadata: %v", err)
	}
	if string(meta) != `{"title":"Report"}` {
		t.Errorf("metadata = %q", meta)
	}
}

func TestExtractServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "parser blew up", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewTikaClient(server.URL)
	if _, err := client.ExtractText(context.Background(), []byte("bytes"), "x.bin"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
