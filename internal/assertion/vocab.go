package assertion

// Vocabulary IRIs used across the provenance graph.
const (
	rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	xsdBoolean  = "http://www.w3.org/2001/XMLSchema#boolean"
	xsdDouble   = "http://www.w3.org/2001/XMLSchema#double"
	xsdDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"

	schemaNS                  = "http://schema.org/"
	schemaDigitalDocument     = schemaNS + "DigitalDocument"
	schemaMediaObject         = schemaNS + "MediaObject"
	schemaMainEntity          = schemaNS + "mainEntity"
	schemaMainEntityOfPage    = schemaNS + "mainEntityOfPage"
	schemaTranscript          = schemaNS + "transcript"
	schemaURL                 = schemaNS + "url"
	schemaAssociatedMedia     = schemaNS + "associatedMedia"
	schemaEncodesCreativeWork = schemaNS + "encodesCreativeWork"
	schemaName                = schemaNS + "name"
	schemaInLanguage          = schemaNS + "inLanguage"
	schemaDatePublished       = schemaNS + "datePublished"
	schemaDateCreated         = schemaNS + "dateCreated"
	schemaDateModified        = schemaNS + "dateModified"
	schemaContentSize         = schemaNS + "contentSize"
	schemaContentURL          = schemaNS + "contentUrl"
	schemaEncodingFormat      = schemaNS + "encodingFormat"
	schemaUploadDate          = schemaNS + "uploadDate"

	provNS                   = "http://www.w3.org/ns/prov#"
	provEntity               = provNS + "Entity"
	provActivity             = provNS + "Activity"
	provAssociation          = provNS + "Association"
	provWasAttributedTo      = provNS + "wasAttributedTo"
	provWasDerivedFrom       = provNS + "wasDerivedFrom"
	provGeneratedAtTime      = provNS + "generatedAtTime"
	provWasGeneratedBy       = provNS + "wasGeneratedBy"
	provGenerated            = provNS + "generated"
	provUsed                 = provNS + "used"
	provWasAssociatedWith    = provNS + "wasAssociatedWith"
	provQualifiedAssociation = provNS + "qualifiedAssociation"
	provAgent                = provNS + "agent"
	provHadRole              = provNS + "hadRole"
)

// DefaultExtractorRef points at the published description of the extraction
// service. The fragment identifiers below address the software agent and the
// two extraction roles within that description.
const DefaultExtractorRef = "dweb:/ipfs/QmYyRieED9hv4cVH3aQcxTC6xegDZ9kXK2zLxqHAjtBvc7"

const (
	agentFragment    = "#_:c14n29"
	textRoleFragment = "#_:c14n21"
	metaRoleFragment = "#_:c14n61"
)

// ContentURIScheme prefixes content ids when embedded as node identifiers.
const ContentURIScheme = "dweb:/ipfs/"

// ContentURI builds the node identifier for a stored payload.
func ContentURI(contentID string) string {
	return ContentURIScheme + contentID
}
