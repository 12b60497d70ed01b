package metadata

import (
	"testing"
	"time"
)

func TestCoercePrecedence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		kind Kind
	}{
		{"true", KindBool},
		{"false", KindBool},
		{"42", KindNumber},
		{"3.14", KindNumber},
		{"2020", KindNumber},
		{"2020-06-01", KindTime},
		{"2020-06-01T12:00:00Z", KindTime},
		{"hello world", KindText},
		{"truely", KindText},
	}
	for _, c := range cases {
		if got := Coerce(c.raw).Kind; got != c.kind {
			t.Errorf("Coerce(%q): kind = %v, want %v", c.raw, got, c.kind)
		}
	}
}

func TestCoerceBareYearIsNumber(t *testing.T) {
	t.Parallel()

	value := Coerce("2020")
	if value.Kind != KindNumber {
		t.Fatalf("Coerce(2020): kind = %v, want number", value.Kind)
	}
	if value.Number != 2020 {
		t.Fatalf("Coerce(2020): number = %v", value.Number)
	}
}

func TestParseCSV(t *testing.T) {
	t.Parallel()

	raw := []byte("title,Annual Report\ndc:creator,Jane\nresourceName,\"report, final.pdf\"\n")
	pairs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("len(pairs) = %d, want 3", len(pairs))
	}
	if pairs[0].Key != "title" || pairs[0].Value != "Annual Report" {
		t.Errorf("pairs[0] = %+v", pairs[0])
	}
	if pairs[2].Value != "report, final.pdf" {
		t.Errorf("quoted comma value = %q", pairs[2].Value)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"title":"Annual Report","pdf:encrypted":"false","authors":["Jane","John"]}`)
	pairs, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("len(pairs) = %d, want 3", len(pairs))
	}
	if pairs[1].Key != "pdf:encrypted" {
		t.Errorf("pairs[1].Key = %q", pairs[1].Key)
	}
	if pairs[2].Value != "Jane, John" {
		t.Errorf("array value = %q", pairs[2].Value)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", `{"title": `} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Parse(%q): expected error", raw)
		}
	}
}

func TestNormalizePartitions(t *testing.T) {
	t.Parallel()

	pairs := []Pair{
		{Key: "title", Value: "Annual Report"},
		{Key: "language", Value: "en"},
		{Key: "created", Value: "2020-06-01T12:00:00Z"},
		{Key: "dc:creator", Value: "Jane"},
		{Key: "pdf:encrypted", Value: "false"},
		{Key: "X-Parsed-By", Value: "SomeParser"},
	}
	record := Normalize(pairs)

	if record.Known.Title != "Annual Report" {
		t.Errorf("title = %q", record.Known.Title)
	}
	if record.Known.Language != "en" {
		t.Errorf("language = %q", record.Known.Language)
	}
	want := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	if record.Known.DateCreated == nil || !record.Known.DateCreated.Equal(want) {
		t.Errorf("created = %v", record.Known.DateCreated)
	}
	if len(record.Foreign) != 2 {
		t.Fatalf("len(foreign) = %d, want 2", len(record.Foreign))
	}
	if record.Foreign["pdf:encrypted"].Kind != KindBool {
		t.Errorf("pdf:encrypted not coerced to bool")
	}
	if _, kept := record.Foreign["X-Parsed-By"]; kept {
		t.Errorf("unregistered key kept in foreign partition")
	}
}

func TestNormalizeDateNotCoercedStaysOut(t *testing.T) {
	t.Parallel()

	record := Normalize([]Pair{{Key: "date", Value: "sometime in June"}})
	if record.Known.Date != nil {
		t.Fatalf("non-date value entered known date: %v", record.Known.Date)
	}
}

func TestExpandKey(t *testing.T) {
	t.Parallel()

	iri, ok := ExpandKey("dc:creator")
	if !ok || iri != "http://purl.org/dc/elements/1.1/creator" {
		t.Fatalf("ExpandKey(dc:creator) = %q, %v", iri, ok)
	}
	if _, ok := ExpandKey("unknown:thing"); ok {
		t.Fatal("unregistered prefix expanded")
	}
	if _, ok := ExpandKey("noprefix"); ok {
		t.Fatal("bare key expanded")
	}
}
