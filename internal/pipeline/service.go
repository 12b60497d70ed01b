// Package pipeline orchestrates one document ingestion end to end: fetch,
// content-address, dedup-check, extract, normalize, assemble, persist, index.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/archivist/internal/assertion"
	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/globaltime"
	"horse.fit/archivist/internal/language"
	"horse.fit/archivist/internal/metadata"
	"horse.fit/archivist/internal/objectstore"
	"horse.fit/archivist/internal/search"
)

// ContentStore stores payloads by content id.
type ContentStore interface {
	Store(ctx context.Context, data []byte) (string, error)
	StoreStructured(ctx context.Context, record any) (string, error)
}

// Extractor produces a transcript and a raw metadata payload from file bytes.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte, fileName string) ([]byte, error)
	ExtractMetadata(ctx context.Context, data []byte, fileName string) ([]byte, error)
}

// ObjectFetcher retrieves uploaded files from the external object store.
type ObjectFetcher interface {
	Fetch(ctx context.Context, bucket, key string) (*objectstore.Object, error)
	ObjectURL(bucket, key string) string
}

// Records is the relational store surface the pipeline needs.
type Records interface {
	FindAssertionByFileCID(ctx context.Context, organizationID, fileCID string) (*db.Assertion, error)
	FindDocument(ctx context.Context, id string) (*db.Document, error)
	GetOrganization(ctx context.Context, id string) (*db.Organization, error)
	PersistIngestion(ctx context.Context, doc db.Document, patch db.DocumentPatch, assertion db.Assertion) error
}

// Indexer upserts one document into the search index.
type Indexer interface {
	Index(ctx context.Context, documentID string, fields search.Fields) error
}

// IDGenerator mints assertion row ids. Injected so tests stay deterministic.
type IDGenerator func() string

// Event is one decoded upload notification.
type Event struct {
	EventTime      time.Time
	Bucket         string
	Key            string
	Size           int64
	OrganizationID string
	FileID         string
}

// Result reports one successful (or benignly deduplicated) ingestion.
type Result struct {
	DocumentID   string
	AssertionCID string
	FileCID      string
	Deduplicated bool
	// IndexErr carries a best-effort index upsert failure. The ingestion
	// itself succeeded; the index is behind until reindexed.
	IndexErr error
}

// Service runs ingestions against injected collaborators.
type Service struct {
	content ContentStore
	extract Extractor
	fetcher ObjectFetcher
	records Records
	indexer Indexer
	builder assertion.Builder
	newID   IDGenerator
	logger  zerolog.Logger
}

// Options bundles the Service collaborators.
type Options struct {
	Content ContentStore
	Extract Extractor
	Fetcher ObjectFetcher
	Records Records
	Indexer Indexer
	Builder assertion.Builder
	NewID   IDGenerator
	Logger  zerolog.Logger
}

func New(opts Options) *Service {
	return &Service{
		content: opts.Content,
		extract: opts.Extract,
		fetcher: opts.Fetcher,
		records: opts.Records,
		indexer: opts.Indexer,
		builder: opts.Builder,
		newID:   opts.NewID,
		logger:  opts.Logger,
	}
}

// IngestOne runs the full state machine for one upload event.
func (s *Service) IngestOne(ctx context.Context, event Event) (*Result, error) {
	logger := s.logger.With().
		Str("organization_id", event.OrganizationID).
		Str("key", event.Key).
		Logger()

	// Fetched.
	object, err := s.fetcher.Fetch(ctx, event.Bucket, event.Key)
	if err != nil {
		return nil, stateError(StateFetched, KindFetch, err)
	}

	documentID := object.DocumentID
	if documentID == "" {
		documentID = event.FileID
	}
	fileName := object.OriginalFilename
	if fileName == "" {
		fileName = path.Base(event.Key)
	}
	fileURL := s.fetcher.ObjectURL(event.Bucket, event.Key)

	// Addressed.
	fileCID, err := s.content.Store(ctx, object.Body)
	if err != nil {
		return nil, stateError(StateAddressed, KindStorage, err)
	}

	// DedupChecked. Read-before-write: a concurrent duplicate may slip
	// past this check, which is tolerated — both inserts carry the same
	// file content id and readers converge on the earliest row.
	prior, err := s.records.FindAssertionByFileCID(ctx, event.OrganizationID, fileCID)
	if err != nil {
		return nil, stateError(StateDedupChecked, KindStorage, err)
	}
	if prior != nil {
		logger.Info().
			Str("document_id", prior.DocumentID).
			Str("file_cid", fileCID).
			Msg("duplicate upload, returning prior assertion")
		return &Result{
			DocumentID:   prior.DocumentID,
			AssertionCID: prior.CID,
			FileCID:      fileCID,
			Deduplicated: true,
		}, nil
	}

	// Extracted. Transcript and metadata extraction run concurrently and
	// both must succeed.
	var transcript, rawMetadata []byte
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		transcript, err = s.extract.ExtractText(groupCtx, object.Body, fileName)
		if err != nil {
			return fmt.Errorf("transcript extraction: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		var err error
		rawMetadata, err = s.extract.ExtractMetadata(groupCtx, object.Body, fileName)
		if err != nil {
			return fmt.Errorf("metadata extraction: %w", err)
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, stateError(StateExtracted, KindExtraction, err)
	}

	// Normalized.
	pairs, err := metadata.Parse(rawMetadata)
	if err != nil {
		return nil, stateError(StateNormalized, KindMetadataParse, err)
	}
	record := metadata.Normalize(pairs)
	record.Known.Language = language.Resolve(record.Known.Language, string(transcript))

	transcriptCID, err := s.content.Store(ctx, transcript)
	if err != nil {
		return nil, stateError(StateNormalized, KindStorage, err)
	}
	metadataCID, err := s.content.StoreStructured(ctx, metadata.StructuredRecord(pairs))
	if err != nil {
		return nil, stateError(StateNormalized, KindStorage, err)
	}

	// Assembled.
	generatedAt := globaltime.Now()
	serialized, err := s.builder.Build(assertion.Input{
		DocumentID:     documentID,
		OrganizationID: event.OrganizationID,
		EventTime:      event.EventTime,
		GeneratedAt:    generatedAt,
		FileCID:        fileCID,
		TranscriptCID:  transcriptCID,
		MetadataCID:    metadataCID,
		FileSize:       object.ContentLength,
		TranscriptSize: int64(len(transcript)),
		ContentType:    object.ContentType,
		FileName:       fileName,
		FileURL:        fileURL,
		Metadata:       record,
	})
	if err != nil {
		return nil, stateError(StateAssembled, KindIncompleteAssertion, err)
	}
	assertionCID, err := s.content.Store(ctx, serialized)
	if err != nil {
		return nil, stateError(StateAssembled, KindStorage, err)
	}

	// Persisted. Document upsert and assertion insert share one
	// transaction; stored blobs are content-addressed and safe to leave
	// behind if this fails.
	existing, err := s.records.FindDocument(ctx, documentID)
	if err != nil {
		return nil, stateError(StatePersisted, KindStorage, err)
	}

	doc := db.Document{ID: documentID, OrganizationID: event.OrganizationID}
	patch := documentPatch(record.Known, object.ContentType, fileName, fileURL)
	assertionRow := db.Assertion{
		ID:             s.newID(),
		DocumentID:     documentID,
		OrganizationID: event.OrganizationID,
		CID:            assertionCID,
		FileCID:        fileCID,
	}
	if err := s.records.PersistIngestion(ctx, doc, patch, assertionRow); err != nil {
		return nil, stateError(StatePersisted, KindStorage, err)
	}

	result := &Result{
		DocumentID:   documentID,
		AssertionCID: assertionCID,
		FileCID:      fileCID,
	}

	// Indexed. Best-effort: a failure here is surfaced on the result, not
	// returned as an ingestion failure.
	fields := search.Fields{
		Title:           indexTitle(record.Known.Title, existing),
		Text:            string(transcript),
		FileURL:         fileURL,
		OrganizationID:  event.OrganizationID,
		UploadDate:      event.EventTime.UTC(),
		ContentLength:   object.ContentLength,
		ContentType:     object.ContentType,
		PublicationDate: record.Known.Date,
		Language:        record.Known.Language,
	}
	if org, err := s.records.GetOrganization(ctx, event.OrganizationID); err == nil && org != nil {
		fields.OrganizationName = org.Name
	}
	if err := s.indexer.Index(ctx, documentID, fields); err != nil {
		logger.Warn().Err(err).
			Str("document_id", documentID).
			Msg("search index upsert failed, record store is authoritative")
		result.IndexErr = stateError(StateIndexed, KindStorage, err)
	}

	logger.Info().
		Str("document_id", documentID).
		Str("assertion_cid", assertionCID).
		Str("file_cid", fileCID).
		Msg("ingestion complete")
	return result, nil
}

func documentPatch(known metadata.Known, contentType, fileName, fileURL string) db.DocumentPatch {
	patch := db.DocumentPatch{}
	if known.Title != "" {
		title := known.Title
		patch.Title = &title
	}
	if known.Language != "" {
		lang := known.Language
		patch.Language = &lang
	}
	if known.Date != nil {
		date := known.Date.UTC()
		patch.PublicationDate = &date
	}
	if contentType != "" {
		patch.ContentType = &contentType
	}
	if fileName != "" {
		patch.FileName = &fileName
	}
	if fileURL != "" {
		patch.FileURL = &fileURL
	}
	return patch
}

// indexTitle prefers the freshly extracted title, then whatever the document
// row already carried, then the empty string.
func indexTitle(extracted string, existing *db.Document) string {
	if strings.TrimSpace(extracted) != "" {
		return extracted
	}
	if existing != nil && existing.Title != nil {
		return *existing.Title
	}
	return ""
}
