// Package metadata turns raw extraction-service output into a typed record.
// Extraction services emit every value as text; coercion resolves each value
// as boolean, then number, then timestamp, then plain text — in that order,
// so a bare year like "2020" is a number, never a date.
package metadata

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrParse reports a malformed metadata payload. Normalization is
// all-or-nothing: when parsing fails, neither partition is populated.
var ErrParse = errors.New("malformed metadata payload")

// Kind discriminates the coerced value type.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindNumber
	KindTime
)

// Value is the coercion result for one metadata field.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Time   time.Time
	Text   string
}

func Text(s string) Value       { return Value{Kind: KindText, Text: s} }
func Bool(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func Number(n float64) Value    { return Value{Kind: KindNumber, Number: n} }
func Timestamp(t time.Time) Value { return Value{Kind: KindTime, Time: t.UTC()} }
func (v Value) IsTime() bool    { return v.Kind == KindTime }
func (v Value) IsText() bool    { return v.Kind == KindText }

// Native returns the value as a plain Go type, for structured storage.
func (v Value) Native() any {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return v.Text
	}
}

// String renders the value the way it entered, for display fields.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindTime:
		return v.Time.UTC().Format(time.RFC3339)
	default:
		return v.Text
	}
}

// Pair is one raw (key, value) line from the extraction service, in arrival
// order.
type Pair struct {
	Key   string
	Value string
}

// Known holds the fields that map to first-class document columns.
type Known struct {
	Title        string
	Language     string
	Date         *time.Time
	DateCreated  *time.Time
	DateModified *time.Time
}

// Record is the normalizer output: the known partition plus the foreign
// namespaced properties that survived the prefix filter.
type Record struct {
	Known   Known
	Foreign map[string]Value
}

// HasForeign reports whether any foreign-namespaced key survived.
func (r Record) HasForeign() bool { return len(r.Foreign) > 0 }

// Namespaces maps registered vocabulary prefixes to their base IRIs. A key
// routes to the foreign partition when it starts with "<prefix>:".
var Namespaces = map[string]string{
	"dc":                  "http://purl.org/dc/elements/1.1/",
	"dcterms":             "http://purl.org/dc/terms/",
	"pdf":                 "http://ns.adobe.com/pdf/1.3/",
	"xmp":                 "http://ns.adobe.com/xap/1.0/",
	"xmpTPg":              "http://ns.adobe.com/xap/1.0/t/pg/",
	"xmpMM":               "http://ns.adobe.com/xap/1.0/mm/",
	"tiff":                "http://ns.adobe.com/tiff/1.0/",
	"exif":                "http://ns.adobe.com/exif/1.0/",
	"cp":                  "http://schemas.openxmlformats.org/package/2006/metadata/core-properties/",
	"extended-properties": "http://schemas.openxmlformats.org/officeDocument/2006/extended-properties/",
	"meta":                "urn:oasis:names:tc:opendocument:xmlns:meta:1.0#",
	"custom":              "urn:tika:custom:",
}

// ExpandKey resolves a registered "prefix:local" key to its full IRI. The
// second result is false when the prefix is not registered.
func ExpandKey(key string) (string, bool) {
	colon := strings.IndexByte(key, ':')
	if colon <= 0 || colon == len(key)-1 {
		return "", false
	}
	base, ok := Namespaces[key[:colon]]
	if !ok {
		return "", false
	}
	return base + key[colon+1:], true
}

// Parse decodes the raw extraction payload into ordered pairs. The payload
// is either a JSON object or tabular "key,value" CSV lines.
func Parse(raw []byte) ([]Pair, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrParse)
	}
	if trimmed[0] == '{' {
		return parseJSONPairs(trimmed)
	}
	return parseCSVPairs(trimmed)
}

func parseJSONPairs(raw []byte) ([]Pair, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	// Walk the object token by token so the pairs keep arrival order.
	open, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected JSON object", ErrParse)
	}

	var pairs []Pair
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("%w: non-string key", ErrParse)
		}

		var value any
		if err := decoder.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: value for %q: %v", ErrParse, key, err)
		}
		pairs = append(pairs, Pair{Key: key, Value: jsonValueString(value)})
	}
	if _, err := decoder.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return pairs, nil
}

func jsonValueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, jsonValueString(item))
		}
		return strings.Join(parts, ", ")
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

func parseCSVPairs(raw []byte) ([]Pair, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var pairs []Pair
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if len(record) == 0 {
			continue
		}
		key := strings.TrimSpace(record[0])
		if key == "" {
			continue
		}
		value := ""
		if len(record) > 1 {
			value = strings.Join(record[1:], ",")
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no key/value rows", ErrParse)
	}
	return pairs, nil
}

// Normalize partitions coerced pairs into known and foreign fields. Keys
// matching neither a known column nor a registered namespace prefix are
// dropped.
func Normalize(pairs []Pair) Record {
	record := Record{Foreign: make(map[string]Value)}

	for _, pair := range pairs {
		value := Coerce(pair.Value)

		if _, registered := ExpandKey(pair.Key); registered {
			record.Foreign[pair.Key] = value
			continue
		}

		switch pair.Key {
		case "title":
			record.Known.Title = value.String()
		case "language":
			record.Known.Language = strings.TrimSpace(value.String())
		case "date":
			if value.IsTime() {
				t := value.Time
				record.Known.Date = &t
			}
		case "created":
			if value.IsTime() {
				t := value.Time
				record.Known.DateCreated = &t
			}
		case "modified":
			if value.IsTime() {
				t := value.Time
				record.Known.DateModified = &t
			}
		}
	}

	if len(record.Foreign) == 0 {
		record.Foreign = nil
	}
	return record
}

// StructuredRecord returns every pair with its coerced native value, for
// content-addressed storage of the full extraction output.
func StructuredRecord(pairs []Pair) map[string]any {
	structured := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		structured[pair.Key] = Coerce(pair.Value).Native()
	}
	return structured
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
}

// Coerce resolves a raw string as bool, then number, then timestamp, then
// text. The precedence is deliberate and load-bearing.
func Coerce(raw string) Value {
	trimmed := strings.TrimSpace(raw)

	switch trimmed {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}

	if number, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(number)
	}

	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return Timestamp(parsed)
		}
	}

	return Text(raw)
}
