// Package reindex rebuilds the search index from persisted assertions. It is
// the recovery path for best-effort index writes that were dropped during
// ingestion.
package reindex

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/archivist/internal/assertion"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/search"
)

// ContentGetter fetches stored payloads by content id.
type ContentGetter interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// Records pages the documents to reindex.
type Records interface {
	ListDocumentAssertions(ctx context.Context, offset, limit int) ([]db.DocumentAssertion, error)
	GetOrganization(ctx context.Context, id string) (*db.Organization, error)
}

// Indexer upserts one document into the search index.
type Indexer interface {
	Index(ctx context.Context, documentID string, fields search.Fields) error
}

// Stats counts one reindex run.
type Stats struct {
	Indexed int
	Skipped int
}

// Service walks every document with an assertion and re-upserts it.
type Service struct {
	content  ContentGetter
	records  Records
	indexer  Indexer
	pageSize int
	logger   zerolog.Logger
}

func New(content ContentGetter, records Records, indexer Indexer, logger zerolog.Logger) *Service {
	return &Service{
		content:  content,
		records:  records,
		indexer:  indexer,
		pageSize: 100,
		logger:   logger,
	}
}

// Run reindexes everything. Documents whose stored artifacts cannot be
// resolved are skipped and logged, not fatal; index write failures abort the
// run so a broken cluster is noticed immediately.
func (s *Service) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	offset := 0
	for {
		page, err := s.records.ListDocumentAssertions(ctx, offset, s.pageSize)
		if err != nil {
			return stats, fmt.Errorf("listing documents: %w", err)
		}
		if len(page) == 0 {
			return stats, nil
		}

		for _, item := range page {
			fields, err := s.resolveFields(ctx, item)
			if err != nil {
				s.logger.Warn().Err(err).
					Str("document_id", item.Document.ID).
					Msg("skipping document during reindex")
				stats.Skipped++
				continue
			}
			if err := s.indexer.Index(ctx, item.Document.ID, *fields); err != nil {
				return stats, fmt.Errorf("indexing document %s: %w", item.Document.ID, err)
			}
			stats.Indexed++
		}
		offset += len(page)
	}
}

// resolveFields rebuilds the indexed shape from the stored assertion: parse
// the serialized graph, follow the transcript link, fetch the transcript
// bytes, and combine them with the document row.
func (s *Service) resolveFields(ctx context.Context, item db.DocumentAssertion) (*search.Fields, error) {
	serialized, err := s.content.Get(ctx, item.Assertion.CID)
	if err != nil {
		return nil, fmt.Errorf("fetching assertion %s: %w", item.Assertion.CID, err)
	}
	quads, err := assertion.ParseQuads(serialized)
	if err != nil {
		return nil, fmt.Errorf("parsing assertion %s: %w", item.Assertion.CID, err)
	}
	transcriptCID, ok := assertion.TranscriptContentID(quads)
	if !ok {
		return nil, fmt.Errorf("assertion %s has no transcript link", item.Assertion.CID)
	}
	transcript, err := s.content.Get(ctx, transcriptCID)
	if err != nil {
		return nil, fmt.Errorf("fetching transcript %s: %w", transcriptCID, err)
	}

	doc := item.Document
	fields := &search.Fields{
		Text:            string(transcript),
		OrganizationID:  doc.OrganizationID,
		UploadDate:      item.Assertion.CreatedAt.UTC(),
		ContentLength:   int64(len(transcript)),
		PublicationDate: doc.PublicationDate,
	}
	if doc.Title != nil {
		fields.Title = *doc.Title
	}
	if doc.Language != nil {
		fields.Language = *doc.Language
	}
	if doc.FileURL != nil {
		fields.FileURL = *doc.FileURL
	}
	if doc.ContentType != nil {
		fields.ContentType = *doc.ContentType
	}
	if org, err := s.records.GetOrganization(ctx, doc.OrganizationID); err == nil && org != nil {
		fields.OrganizationName = org.Name
	}
	return fields, nil
}
