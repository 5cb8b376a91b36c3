package model

// Identifier is an opaque AAS identifier, typically a URN or URL. Two forms
// coexist in storage: the raw value (canonical) and its Base64URL form used
// as an indexed lookup key and URL-path token.
type Identifier string

// Reference is either an ExternalReference (to an IRI) or a ModelReference
// (a chain of typed keys into a specific element).
type Reference struct {
	Type               ReferenceType `json:"type"`
	Keys               []Key         `json:"keys"`
	ReferredSemanticID *Reference    `json:"referredSemanticId,omitempty"`
}

type ReferenceType string

const (
	ExternalReference ReferenceType = "ExternalReference"
	ModelReference     ReferenceType = "ModelReference"
)

// Key is one segment of a Reference's key chain.
type Key struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// LastKeyValue returns the value of the final key in the chain, used for the
// semanticId secondary-index filter column.
func (r Reference) LastKeyValue() string {
	if len(r.Keys) == 0 {
		return ""
	}
	return r.Keys[len(r.Keys)-1].Value
}

// LangString is one language/text pair, e.g. for displayName or description.
type LangString struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

// AssetKind enumerates how an AssetInformation's asset is realized.
type AssetKind string

const (
	AssetKindType     AssetKind = "Type"
	AssetKindInstance AssetKind = "Instance"
	AssetKindNotApplicable AssetKind = "NotApplicableAssetKind"
)

// SpecificAssetID is a domain-specific identifier for an asset (serial
// number, batch number, customer part number, ...).
type SpecificAssetID struct {
	Name              string     `json:"name"`
	Value             string     `json:"value"`
	SubjectID         *Reference `json:"subjectId,omitempty"`
	ExternalSubjectID *Reference `json:"externalSubjectId,omitempty"`
	SemanticID        *Reference `json:"semanticId,omitempty"`
}

// AssetInformation describes the real-world asset a Shell represents.
type AssetInformation struct {
	AssetKind        AssetKind         `json:"assetKind"`
	GlobalAssetID    string            `json:"globalAssetId,omitempty"`
	SpecificAssetIDs []SpecificAssetID `json:"specificAssetIds,omitempty"`
}

// AdministrativeInformation carries versioning metadata for Shells,
// Submodels, and Concept Descriptions.
type AdministrativeInformation struct {
	Version    string `json:"version,omitempty"`
	Revision   string `json:"revision,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
}

// Extension is a free-form key/value extension point carried by most
// top-level entities.
type Extension struct {
	Name           string     `json:"name"`
	ValueType      string     `json:"valueType,omitempty"`
	Value          string     `json:"value,omitempty"`
	SemanticID     *Reference `json:"semanticId,omitempty"`
	RefersTo       []Reference `json:"refersTo,omitempty"`
}

// Qualifier constrains or refines the value of a qualifiable element.
type Qualifier struct {
	Type       string     `json:"type"`
	ValueType  string     `json:"valueType"`
	Value      string     `json:"value,omitempty"`
	ValueID    *Reference `json:"valueId,omitempty"`
	SemanticID *Reference `json:"semanticId,omitempty"`
	Kind       string     `json:"kind,omitempty"`
}

// EmbeddedDataSpecification attaches a structured, standardized content
// specification to a Concept Description.
type EmbeddedDataSpecification struct {
	DataSpecification  Reference   `json:"dataSpecification"`
	DataSpecificationContent map[string]any `json:"dataSpecificationContent,omitempty"`
}
