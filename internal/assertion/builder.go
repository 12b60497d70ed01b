// Package assertion assembles the canonical provenance graph for one
// ingestion and serializes it as sorted N-Quads. The serialized form is
// content-addressed, so building twice from identical inputs must produce
// byte-identical output.
package assertion

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"horse.fit/archivist/internal/metadata"
)

// ErrIncompleteInput reports a missing required build input. This is a
// contract violation, not a transient condition.
var ErrIncompleteInput = errors.New("incomplete assertion input")

// Builder carries the deployment-level bases that node identifiers and
// display URLs are derived from.
type Builder struct {
	// GatewayBase is the public content gateway, for example
	// "https://gateway.ipfs.io/ipfs".
	GatewayBase string
	// DocumentURIBase is the identifier namespace for document nodes.
	// Identifiers are names, not locations, so this stays on plain http
	// with no www.
	DocumentURIBase string
	// DocumentURLBase is where a browser can see the document.
	DocumentURLBase string
	// ExtractorRef identifies the extraction service description; empty
	// means DefaultExtractorRef.
	ExtractorRef string
}

// Input is everything one assertion is built from.
type Input struct {
	DocumentID     string
	OrganizationID string
	EventTime      time.Time
	GeneratedAt    time.Time
	FileCID        string
	TranscriptCID  string
	MetadataCID    string
	FileSize       int64
	TranscriptSize int64
	ContentType    string
	FileName       string
	FileURL        string
	Metadata       metadata.Record
}

func (in Input) validate() error {
	required := []struct {
		name  string
		empty bool
	}{
		{"document id", in.DocumentID == ""},
		{"organization id", in.OrganizationID == ""},
		{"file content id", in.FileCID == ""},
		{"transcript content id", in.TranscriptCID == ""},
		{"metadata content id", in.MetadataCID == ""},
		{"event time", in.EventTime.IsZero()},
		{"generation time", in.GeneratedAt.IsZero()},
	}
	for _, field := range required {
		if field.empty {
			return fmt.Errorf("%w: missing %s", ErrIncompleteInput, field.name)
		}
	}
	return nil
}

// Build assembles and serializes the provenance graph.
func (b Builder) Build(in Input) ([]byte, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	extractorRef := b.ExtractorRef
	if extractorRef == "" {
		extractorRef = DefaultExtractorRef
	}
	agent := extractorRef + agentFragment
	textRole := extractorRef + textRoleFragment
	metaRole := extractorRef + metaRoleFragment

	docURI := b.DocumentURIBase + "/" + in.DocumentID
	fileURI := ContentURI(in.FileCID)
	transcriptURI := ContentURI(in.TranscriptCID)
	metadataURI := ContentURI(in.MetadataCID)

	g := NewGraph()

	// Document node and its media links, both directions.
	g.AddIRI(docURI, rdfType, schemaDigitalDocument)
	g.AddIRI(docURI, schemaMainEntity, fileURI)
	g.AddIRI(docURI, schemaTranscript, transcriptURI)
	g.AddTerm(docURI, schemaURL, Literal(b.DocumentURLBase+"/"+in.DocumentID))
	for _, media := range []string{fileURI, transcriptURI, metadataURI} {
		g.AddIRI(docURI, schemaAssociatedMedia, media)
		g.AddIRI(media, schemaEncodesCreativeWork, docURI)
	}

	// Known metadata becomes first-class statements about the document.
	known := in.Metadata.Known
	if known.Title != "" {
		g.AddTerm(docURI, schemaName, Literal(known.Title))
	}
	if known.Language != "" {
		g.AddTerm(docURI, schemaInLanguage, Literal(known.Language))
	}
	if known.Date != nil {
		g.AddTerm(docURI, schemaDatePublished, timeLiteral(*known.Date))
	}
	if known.DateCreated != nil {
		g.AddTerm(docURI, schemaDateCreated, timeLiteral(*known.DateCreated))
	}
	if known.DateModified != nil {
		g.AddTerm(docURI, schemaDateModified, timeLiteral(*known.DateModified))
	}
	if in.ContentType != "" {
		g.AddTerm(docURI, schemaEncodingFormat, Literal(in.ContentType))
	}

	// File node.
	g.AddIRI(fileURI, rdfType, provEntity)
	g.AddIRI(fileURI, rdfType, schemaMediaObject)
	g.AddIRI(fileURI, schemaMainEntityOfPage, docURI)
	g.AddTerm(fileURI, schemaContentSize, Literal(byteSize(in.FileSize)))
	g.AddTerm(fileURI, schemaContentURL, Literal(b.gatewayURL(in.FileCID)))
	if in.FileURL != "" {
		g.AddTerm(fileURI, schemaContentURL, Literal(in.FileURL))
	}
	if in.FileName != "" {
		g.AddTerm(fileURI, schemaName, Literal(in.FileName))
	}
	g.AddTerm(fileURI, schemaUploadDate, timeLiteral(in.EventTime))

	// Transcript node, with full generation provenance.
	g.AddIRI(transcriptURI, rdfType, schemaMediaObject)
	g.AddTerm(transcriptURI, schemaContentSize, Literal(byteSize(in.TranscriptSize)))
	g.AddTerm(transcriptURI, schemaContentURL, Literal(b.gatewayURL(in.TranscriptCID)))
	g.AddTerm(transcriptURI, schemaEncodingFormat, Literal("text/plain"))
	b.addGeneration(g, transcriptURI, fileURI, agent, textRole, in.GeneratedAt)

	// Metadata node.
	b.addGeneration(g, metadataURI, fileURI, agent, metaRole, in.GeneratedAt)

	// Foreign-namespaced properties live in their own named graph, attributed
	// to the extractor and derived from the stored metadata record. The graph
	// is omitted entirely when no foreign key survived normalization.
	if in.Metadata.HasForeign() {
		foreignGraph := metadataURI + "#foreign"
		g.AddIRI(foreignGraph, provWasAttributedTo, agent)
		g.AddIRI(foreignGraph, provWasDerivedFrom, metadataURI)
		for key, value := range in.Metadata.Foreign {
			predicate, ok := metadata.ExpandKey(key)
			if !ok {
				continue
			}
			g.AddToNamed(foreignGraph, fileURI, predicate, valueTerm(value))
		}
	}

	return g.NQuads(), nil
}

// addGeneration attaches the four provenance statements for a derived entity:
// attribution, generation time, the producing activity, and its qualified
// role. Activity and association identifiers are derived from the entity URI
// so the graph stays blank-node-free.
func (b Builder) addGeneration(g *Graph, entityURI, sourceURI, agent, role string, generatedAt time.Time) {
	activityURI := entityURI + "#activity"
	associationURI := entityURI + "#association"

	g.AddIRI(entityURI, rdfType, provEntity)
	g.AddIRI(entityURI, provWasAttributedTo, agent)
	g.AddTerm(entityURI, provGeneratedAtTime, timeLiteral(generatedAt))
	g.AddIRI(entityURI, provWasGeneratedBy, activityURI)

	g.AddIRI(activityURI, rdfType, provActivity)
	g.AddIRI(activityURI, provGenerated, entityURI)
	g.AddIRI(activityURI, provUsed, sourceURI)
	g.AddIRI(activityURI, provWasAssociatedWith, agent)
	g.AddIRI(activityURI, provQualifiedAssociation, associationURI)

	g.AddIRI(associationURI, rdfType, provAssociation)
	g.AddIRI(associationURI, provAgent, agent)
	g.AddIRI(associationURI, provHadRole, role)
}

func (b Builder) gatewayURL(contentID string) string {
	return b.GatewayBase + "/" + contentID
}

func byteSize(n int64) string {
	return strconv.FormatInt(n, 10) + "B"
}

func timeLiteral(t time.Time) Term {
	return TypedLiteral(t.UTC().Format(time.RFC3339), xsdDateTime)
}

func valueTerm(value metadata.Value) Term {
	switch value.Kind {
	case metadata.KindBool:
		return TypedLiteral(strconv.FormatBool(value.Bool), xsdBoolean)
	case metadata.KindNumber:
		return TypedLiteral(strconv.FormatFloat(value.Number, 'f', -1, 64), xsdDouble)
	case metadata.KindTime:
		return TypedLiteral(value.Time.UTC().Format(time.RFC3339), xsdDateTime)
	default:
		return Literal(value.Text)
	}
}
