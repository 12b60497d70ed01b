package db

import "time"

// Document maps archive.documents. One row per documentId; the ingestion
// pipeline creates it on first sight and refreshes the mutable fields on
// every later successful ingestion. Rows are never deleted by the pipeline.
type Document struct {
	ID              string     `gorm:"column:id;type:uuid;primaryKey"`
	OrganizationID  string     `gorm:"column:organization_id;type:uuid;not null"`
	Title           *string    `gorm:"column:title;type:text"`
	Language        *string    `gorm:"column:language;type:text"`
	PublicationDate *time.Time `gorm:"column:publication_date;type:timestamptz"`
	FileURL         *string    `gorm:"column:file_url;type:text"`
	FileName        *string    `gorm:"column:file_name;type:text"`
	ContentType     *string    `gorm:"column:content_type;type:text"`
	CreatedAt       time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Document) TableName() string { return "archive.documents" }

// Assertion maps archive.assertions. Immutable once created; many assertions
// may reference one document. The (organization_id, file_cid) pair is the
// dedup key but is intentionally not unique: concurrent duplicate uploads may
// both insert, and readers converge on the earliest row.
type Assertion struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey"`
	DocumentID     string    `gorm:"column:document_id;type:uuid;not null"`
	OrganizationID string    `gorm:"column:organization_id;type:uuid;not null"`
	CID            string    `gorm:"column:cid;type:text;not null"`
	FileCID        string    `gorm:"column:file_cid;type:text;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Assertion) TableName() string { return "archive.assertions" }

// Organization maps archive.organizations. Owned by the account system; the
// pipeline only reads it.
type Organization struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey"`
	Slug      string    `gorm:"column:slug;type:text;not null;unique"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Email     *string   `gorm:"column:email;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Organization) TableName() string { return "archive.organizations" }

func autoMigrateModels() []any {
	return []any{
		&Organization{},
		&Document{},
		&Assertion{},
	}
}
