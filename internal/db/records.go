package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"horse.fit/archivist/internal/globaltime"
)

// RecordStore is the relational side of the ingestion pipeline: documents,
// assertions, and organization lookups. All writes for one ingestion happen
// in PersistIngestion so that the document upsert and the assertion insert
// commit or fail together.
type RecordStore struct {
	pool *Pool
}

func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// DocumentPatch carries the latest known metadata for a document. Nil fields
// leave the stored value untouched.
type DocumentPatch struct {
	Title           *string
	Language        *string
	PublicationDate *time.Time
	FileURL         *string
	FileName        *string
	ContentType     *string
}

// FindAssertionByFileCID is the dedup gate read. Returns nil when no prior
// assertion exists for this (organization, file content) pair. When the
// benign duplicate race produced more than one row, the earliest one wins so
// every reader converges on the same answer.
func (s *RecordStore) FindAssertionByFileCID(ctx context.Context, organizationID, fileCID string) (*Assertion, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("record store is not initialized")
	}

	const q = `
SELECT id, document_id, organization_id, cid, file_cid, created_at
FROM archive.assertions
WHERE organization_id = $1
  AND file_cid = $2
ORDER BY created_at ASC, id ASC
LIMIT 1
`
	var a Assertion
	err := s.pool.QueryRow(ctx, q, organizationID, fileCID).Scan(
		&a.ID,
		&a.DocumentID,
		&a.OrganizationID,
		&a.CID,
		&a.FileCID,
		&a.CreatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find assertion organization_id=%s: %w", organizationID, err)
	}
	return &a, nil
}

// FindDocument returns nil when the document does not exist yet.
func (s *RecordStore) FindDocument(ctx context.Context, id string) (*Document, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("record store is not initialized")
	}

	const q = `
SELECT id, organization_id, title, language, publication_date, file_url, file_name, content_type, created_at, updated_at
FROM archive.documents
WHERE id = $1
`
	var d Document
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&d.ID,
		&d.OrganizationID,
		&d.Title,
		&d.Language,
		&d.PublicationDate,
		&d.FileURL,
		&d.FileName,
		&d.ContentType,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find document id=%s: %w", id, err)
	}
	return &d, nil
}

func (s *RecordStore) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("record store is not initialized")
	}

	const q = `
SELECT id, slug, name, email, created_at, updated_at
FROM archive.organizations
WHERE id = $1
`
	var o Organization
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&o.ID,
		&o.Slug,
		&o.Name,
		&o.Email,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get organization id=%s: %w", id, err)
	}
	return &o, nil
}

// PersistIngestion creates the document if absent, applies the metadata
// patch, and inserts the assertion row, all in one transaction.
func (s *RecordStore) PersistIngestion(ctx context.Context, doc Document, patch DocumentPatch, assertion Assertion) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not initialized")
	}
	if strings.TrimSpace(doc.ID) == "" || strings.TrimSpace(assertion.ID) == "" {
		return fmt.Errorf("document and assertion ids are required")
	}

	now := globaltime.UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if assertion.CreatedAt.IsZero() {
		assertion.CreatedAt = now
	}

	tx, err := s.pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		return fmt.Errorf("begin persist tx: %w", err)
	}

	if err := insertDocumentIfAbsentTx(ctx, tx, doc); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := patchDocumentTx(ctx, tx, doc.ID, patch, assertion.CreatedAt); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := insertAssertionTx(ctx, tx, assertion); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit persist tx: %w", err)
	}
	return nil
}

func insertDocumentIfAbsentTx(ctx context.Context, tx Tx, doc Document) error {
	const q = `
INSERT INTO archive.documents (id, organization_id, title, language, publication_date, file_url, file_name, content_type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
ON CONFLICT (id) DO NOTHING
`
	_, err := tx.Exec(
		ctx,
		q,
		doc.ID,
		doc.OrganizationID,
		doc.Title,
		doc.Language,
		doc.PublicationDate,
		doc.FileURL,
		doc.FileName,
		doc.ContentType,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document id=%s: %w", doc.ID, err)
	}
	return nil
}

func patchDocumentTx(ctx context.Context, tx Tx, id string, patch DocumentPatch, now time.Time) error {
	const q = `
UPDATE archive.documents
SET
	title = COALESCE($2, title),
	language = COALESCE($3, language),
	publication_date = COALESCE($4, publication_date),
	file_url = COALESCE($5, file_url),
	file_name = COALESCE($6, file_name),
	content_type = COALESCE($7, content_type),
	updated_at = $8
WHERE id = $1
`
	_, err := tx.Exec(
		ctx,
		q,
		id,
		patch.Title,
		patch.Language,
		patch.PublicationDate,
		patch.FileURL,
		patch.FileName,
		patch.ContentType,
		now,
	)
	if err != nil {
		return fmt.Errorf("patch document id=%s: %w", id, err)
	}
	return nil
}

func insertAssertionTx(ctx context.Context, tx Tx, a Assertion) error {
	const q = `
INSERT INTO archive.assertions (id, document_id, organization_id, cid, file_cid, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
`
	_, err := tx.Exec(ctx, q, a.ID, a.DocumentID, a.OrganizationID, a.CID, a.FileCID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assertion document_id=%s: %w", a.DocumentID, err)
	}
	return nil
}

// DocumentAssertion pairs a document with its newest assertion, for the
// reindex job.
type DocumentAssertion struct {
	Document  Document
	Assertion Assertion
}

// ListDocumentAssertions pages documents that have at least one assertion,
// newest assertion per document, ordered by document id for stable paging.
func (s *RecordStore) ListDocumentAssertions(ctx context.Context, offset, limit int) ([]DocumentAssertion, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("record store is not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	const q = `
SELECT
	d.id, d.organization_id, d.title, d.language, d.publication_date, d.file_url, d.file_name, d.content_type, d.created_at, d.updated_at,
	a.id, a.document_id, a.organization_id, a.cid, a.file_cid, a.created_at
FROM archive.documents d
JOIN LATERAL (
	SELECT id, document_id, organization_id, cid, file_cid, created_at
	FROM archive.assertions
	WHERE document_id = d.id
	ORDER BY created_at DESC, id DESC
	LIMIT 1
) a ON TRUE
ORDER BY d.id
OFFSET $1
LIMIT $2
`
	rows, err := s.pool.Query(ctx, q, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list document assertions: %w", err)
	}
	defer rows.Close()

	results := make([]DocumentAssertion, 0, limit)
	for rows.Next() {
		var da DocumentAssertion
		if err := rows.Scan(
			&da.Document.ID,
			&da.Document.OrganizationID,
			&da.Document.Title,
			&da.Document.Language,
			&da.Document.PublicationDate,
			&da.Document.FileURL,
			&da.Document.FileName,
			&da.Document.ContentType,
			&da.Document.CreatedAt,
			&da.Document.UpdatedAt,
			&da.Assertion.ID,
			&da.Assertion.DocumentID,
			&da.Assertion.OrganizationID,
			&da.Assertion.CID,
			&da.Assertion.FileCID,
			&da.Assertion.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document assertion: %w", err)
		}
		results = append(results, da)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document assertions: %w", err)
	}
	return results, nil
}

// CountRecords returns row counts for the stats endpoint.
func (s *RecordStore) CountRecords(ctx context.Context) (documents, assertions, organizations int64, err error) {
	if s == nil || s.pool == nil {
		return 0, 0, 0, fmt.Errorf("record store is not initialized")
	}

	const q = `
SELECT
	(SELECT COUNT(*) FROM archive.documents),
	(SELECT COUNT(*) FROM archive.assertions),
	(SELECT COUNT(*) FROM archive.organizations)
`
	if scanErr := s.pool.QueryRow(ctx, q).Scan(&documents, &assertions, &organizations); scanErr != nil {
		return 0, 0, 0, fmt.Errorf("count records: %w", scanErr)
	}
	return documents, assertions, organizations, nil
}
