package model

// Shell is an Asset Administration Shell: the top-level descriptor of an
// industrial asset's digital twin. Identified by ID (unique across the
// repository).
type Shell struct {
	ID               Identifier                 `json:"id"`
	IDShort          string                     `json:"idShort,omitempty"`
	AssetInformation AssetInformation           `json:"assetInformation"`
	Administration   *AdministrativeInformation `json:"administration,omitempty"`
	Description      []LangString               `json:"description,omitempty"`
	DisplayName      []LangString               `json:"displayName,omitempty"`
	Submodels        []Reference                `json:"submodels,omitempty"`
	DerivedFrom      *Reference                 `json:"derivedFrom,omitempty"`
	Extensions       []Extension                `json:"extensions,omitempty"`
}

// SubmodelKind distinguishes a reusable template from a concrete instance.
type SubmodelKind string

const (
	KindInstance SubmodelKind = "Instance"
	KindTemplate SubmodelKind = "Template"
)

// Submodel is a typed subtree of an AAS describing one aspect of the asset
// (technical data, documentation, battery passport, ...).
type Submodel struct {
	ID              Identifier                 `json:"id"`
	IDShort         string                     `json:"idShort,omitempty"`
	Kind            SubmodelKind               `json:"kind,omitempty"`
	SemanticID      *Reference                 `json:"semanticId,omitempty"`
	Administration  *AdministrativeInformation `json:"administration,omitempty"`
	Description     []LangString               `json:"description,omitempty"`
	DisplayName     []LangString               `json:"displayName,omitempty"`
	SubmodelElements SubmodelElementSlice      `json:"submodelElements,omitempty"`
	Qualifiers      []Qualifier                `json:"qualifiers,omitempty"`
	Extensions      []Extension                `json:"extensions,omitempty"`
}

// SemanticIDFilterValue returns the value stored in the secondary indexed
// column used by findBySemanticId: the submodel's semanticId's last key.
func (s Submodel) SemanticIDFilterValue() string {
	if s.SemanticID == nil {
		return ""
	}
	return s.SemanticID.LastKeyValue()
}

// ConceptDescription is the semantic type definition pointed to by a
// submodel or element's semanticId.
type ConceptDescription struct {
	ID                        Identifier                  `json:"id"`
	IDShort                   string                      `json:"idShort,omitempty"`
	Category                  string                      `json:"category,omitempty"`
	IsCaseOf                  []Reference                 `json:"isCaseOf,omitempty"`
	EmbeddedDataSpecifications []EmbeddedDataSpecification `json:"embeddedDataSpecifications,omitempty"`
	Administration            *AdministrativeInformation  `json:"administration,omitempty"`
	Description               []LangString                `json:"description,omitempty"`
	DisplayName               []LangString                `json:"displayName,omitempty"`
}
