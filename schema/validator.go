// Package eventschema validates upload event batches against the embedded
// JSON schema and decodes object keys into their tenant parts.
package eventschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed upload_event.schema.json
var uploadEventSchemaJSON string

// UploadEvent is one S3-style object-created notification batch.
type UploadEvent struct {
	Records []UploadRecord `json:"Records"`
}

// UploadRecord is one created object within a batch.
type UploadRecord struct {
	EventTime string `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
		} `json:"object"`
	} `json:"s3"`
}

// Time returns the record's parsed event time.
func (r UploadRecord) Time() (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(r.EventTime))
	if err != nil {
		return time.Time{}, fmt.Errorf("eventTime must be RFC3339: %w", err)
	}
	return parsed.UTC(), nil
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateUploadEvent checks the payload against the schema and decodes it.
func ValidateUploadEvent(payload json.RawMessage) (*UploadEvent, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var event UploadEvent
	if err := json.Unmarshal(normalized, &event); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	for i, record := range event.Records {
		if _, err := record.Time(); err != nil {
			return nil, fmt.Errorf("records[%d]: %w", i, err)
		}
	}

	return &event, nil
}

// DecodeKey splits "uploads/<organizationId>/<fileId>.<ext>" into its tenant
// parts.
func DecodeKey(key string) (organizationID, fileID string, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "uploads" {
		return "", "", fmt.Errorf("key %q does not match uploads/<org>/<file>.<ext>", key)
	}
	organizationID = parts[1]
	fileName := parts[2]
	dot := strings.LastIndexByte(fileName, '.')
	if organizationID == "" || dot <= 0 || dot == len(fileName)-1 {
		return "", "", fmt.Errorf("key %q does not match uploads/<org>/<file>.<ext>", key)
	}
	return organizationID, fileName[:dot], nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("upload_event.schema.json", strings.NewReader(uploadEventSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("upload_event.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
