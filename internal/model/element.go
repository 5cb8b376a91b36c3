package model

import (
	"encoding/json"
	"fmt"
)

// ModelType is the discriminator carried by every SubmodelElement variant.
type ModelType string

const (
	TypeProperty                    ModelType = "Property"
	TypeMultiLanguageProperty        ModelType = "MultiLanguageProperty"
	TypeRange                        ModelType = "Range"
	TypeBlob                         ModelType = "Blob"
	TypeFile                         ModelType = "File"
	TypeReferenceElement             ModelType = "ReferenceElement"
	TypeRelationshipElement          ModelType = "RelationshipElement"
	TypeAnnotatedRelationshipElement ModelType = "AnnotatedRelationshipElement"
	TypeSubmodelElementCollection    ModelType = "SubmodelElementCollection"
	TypeSubmodelElementList          ModelType = "SubmodelElementList"
	TypeEntity                       ModelType = "Entity"
	TypeBasicEventElement            ModelType = "BasicEventElement"
	TypeOperation                    ModelType = "Operation"
	TypeCapability                   ModelType = "Capability"
)

// SubmodelElement is the common interface implemented by all 14 tagged
// variants. Concrete types embed Base for the shared idShort/qualifiers/
// extensions fields every variant carries.
type SubmodelElement interface {
	ElementModelType() ModelType
	ElementIDShort() string
	setElementIDShort(string)
}

// Base holds the fields shared by every SubmodelElement variant.
type Base struct {
	IDShort     string       `json:"idShort,omitempty"`
	DisplayName []LangString `json:"displayName,omitempty"`
	Description []LangString `json:"description,omitempty"`
	Category    string       `json:"category,omitempty"`
	SemanticID  *Reference   `json:"semanticId,omitempty"`
	Qualifiers  []Qualifier  `json:"qualifiers,omitempty"`
	Extensions  []Extension  `json:"extensions,omitempty"`
}

func (b *Base) ElementIDShort() string    { return b.IDShort }
func (b *Base) setElementIDShort(s string) { b.IDShort = s }

type Property struct {
	Base
	ModelType ModelType  `json:"modelType"`
	ValueType string     `json:"valueType"`
	Value     string     `json:"value,omitempty"`
	ValueID   *Reference `json:"valueId,omitempty"`
}

func (e *Property) ElementModelType() ModelType { return TypeProperty }

type MultiLanguageProperty struct {
	Base
	ModelType ModelType    `json:"modelType"`
	Value     []LangString `json:"value,omitempty"`
	ValueID   *Reference   `json:"valueId,omitempty"`
}

func (e *MultiLanguageProperty) ElementModelType() ModelType { return TypeMultiLanguageProperty }

type Range struct {
	Base
	ModelType ModelType `json:"modelType"`
	ValueType string    `json:"valueType"`
	Min       string    `json:"min,omitempty"`
	Max       string    `json:"max,omitempty"`
}

func (e *Range) ElementModelType() ModelType { return TypeRange }

type Blob struct {
	Base
	ModelType   ModelType `json:"modelType"`
	ContentType string    `json:"contentType"`
	Value       string    `json:"value,omitempty"` // base64-encoded binary content
}

func (e *Blob) ElementModelType() ModelType { return TypeBlob }

type File struct {
	Base
	ModelType   ModelType `json:"modelType"`
	ContentType string    `json:"contentType"`
	Value       string    `json:"value,omitempty"` // path or URI
}

func (e *File) ElementModelType() ModelType { return TypeFile }

type ReferenceElement struct {
	Base
	ModelType ModelType  `json:"modelType"`
	Value     *Reference `json:"value,omitempty"`
}

func (e *ReferenceElement) ElementModelType() ModelType { return TypeReferenceElement }

type RelationshipElement struct {
	Base
	ModelType ModelType `json:"modelType"`
	First     Reference `json:"first"`
	Second    Reference `json:"second"`
}

func (e *RelationshipElement) ElementModelType() ModelType { return TypeRelationshipElement }

type AnnotatedRelationshipElement struct {
	Base
	ModelType   ModelType         `json:"modelType"`
	First       Reference         `json:"first"`
	Second      Reference         `json:"second"`
	Annotations SubmodelElementSlice `json:"annotations,omitempty"`
}

func (e *AnnotatedRelationshipElement) ElementModelType() ModelType {
	return TypeAnnotatedRelationshipElement
}

type SubmodelElementCollection struct {
	Base
	ModelType ModelType            `json:"modelType"`
	Value     SubmodelElementSlice `json:"value,omitempty"`
}

func (e *SubmodelElementCollection) ElementModelType() ModelType { return TypeSubmodelElementCollection }

type SubmodelElementList struct {
	Base
	ModelType              ModelType            `json:"modelType"`
	OrderRelevant          bool                 `json:"orderRelevant"`
	SemanticIDListElement  *Reference           `json:"semanticIdListElement,omitempty"`
	TypeValueListElement   ModelType            `json:"typeValueListElement"`
	ValueTypeListElement   string               `json:"valueTypeListElement,omitempty"`
	Value                  SubmodelElementSlice `json:"value,omitempty"`
}

func (e *SubmodelElementList) ElementModelType() ModelType { return TypeSubmodelElementList }

type EntityType string

const (
	EntityTypeSelf       EntityType = "SelfManagedEntity"
	EntityTypeCoManaged  EntityType = "CoManagedEntity"
)

type Entity struct {
	Base
	ModelType        ModelType            `json:"modelType"`
	EntityType       EntityType           `json:"entityType"`
	GlobalAssetID    string               `json:"globalAssetId,omitempty"`
	SpecificAssetIDs []SpecificAssetID    `json:"specificAssetIds,omitempty"`
	Statements       SubmodelElementSlice `json:"statements,omitempty"`
}

func (e *Entity) ElementModelType() ModelType { return TypeEntity }

type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

type StateOfEvent string

const (
	StateOn  StateOfEvent = "on"
	StateOff StateOfEvent = "off"
)

type BasicEventElement struct {
	Base
	ModelType      ModelType    `json:"modelType"`
	Observed       Reference    `json:"observed"`
	Direction      Direction    `json:"direction"`
	State          StateOfEvent `json:"state"`
	MessageTopic   string       `json:"messageTopic,omitempty"`
	MessageBroker  *Reference   `json:"messageBroker,omitempty"`
	LastUpdate     string       `json:"lastUpdate,omitempty"`
	MinInterval    string       `json:"minInterval,omitempty"`
	MaxInterval    string       `json:"maxInterval,omitempty"`
}

func (e *BasicEventElement) ElementModelType() ModelType { return TypeBasicEventElement }

// OperationVariable wraps a SubmodelElement describing one operation
// parameter (input, output, or inoutput).
type OperationVariable struct {
	Value SubmodelElement `json:"value"`
}

func (v OperationVariable) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Value SubmodelElement `json:"value"`
	}{v.Value})
}

func (v *OperationVariable) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}
	el, err := UnmarshalSubmodelElement(wrapper.Value)
	if err != nil {
		return err
	}
	v.Value = el
	return nil
}

type Operation struct {
	Base
	ModelType          ModelType           `json:"modelType"`
	InputVariables     []OperationVariable `json:"inputVariables,omitempty"`
	OutputVariables    []OperationVariable `json:"outputVariables,omitempty"`
	InoutputVariables  []OperationVariable `json:"inoutputVariables,omitempty"`
}

func (e *Operation) ElementModelType() ModelType { return TypeOperation }

type Capability struct {
	Base
	ModelType ModelType `json:"modelType"`
}

func (e *Capability) ElementModelType() ModelType { return TypeCapability }

// SubmodelElementSlice is an ordered list of heterogeneous SubmodelElement
// values that (de)serializes through the modelType discriminator.
type SubmodelElementSlice []SubmodelElement

func (s SubmodelElementSlice) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(s))
	for _, el := range s {
		b, err := json.Marshal(el)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (s *SubmodelElementSlice) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(SubmodelElementSlice, 0, len(raw))
	for _, r := range raw {
		el, err := UnmarshalSubmodelElement(r)
		if err != nil {
			return err
		}
		out = append(out, el)
	}
	*s = out
	return nil
}

// decodeModelType resolves the modelType discriminator from a raw element
// object, tolerating the external camelCase alias and a snake_case fallback
// the way the original parser did.
func decodeModelType(raw json.RawMessage) (ModelType, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", fmt.Errorf("decode element envelope: %w", err)
	}
	var mt string
	if v, ok := probe["modelType"]; ok {
		if err := json.Unmarshal(v, &mt); err != nil {
			return "", fmt.Errorf("decode modelType: %w", err)
		}
	} else if v, ok := probe["model_type"]; ok {
		if err := json.Unmarshal(v, &mt); err != nil {
			return "", fmt.Errorf("decode model_type: %w", err)
		}
	}
	if mt == "" {
		return "", fmt.Errorf("missing modelType discriminator")
	}
	return ModelType(mt), nil
}

// UnmarshalSubmodelElement resolves the concrete variant for a single
// element object in O(1) from its modelType discriminator. Unknown
// modelType values are a hard validation error.
func UnmarshalSubmodelElement(raw json.RawMessage) (SubmodelElement, error) {
	mt, err := decodeModelType(raw)
	if err != nil {
		return nil, err
	}

	var target SubmodelElement
	switch mt {
	case TypeProperty:
		target = &Property{}
	case TypeMultiLanguageProperty:
		target = &MultiLanguageProperty{}
	case TypeRange:
		target = &Range{}
	case TypeBlob:
		target = &Blob{}
	case TypeFile:
		target = &File{}
	case TypeReferenceElement:
		target = &ReferenceElement{}
	case TypeRelationshipElement:
		target = &RelationshipElement{}
	case TypeAnnotatedRelationshipElement:
		target = &AnnotatedRelationshipElement{}
	case TypeSubmodelElementCollection:
		target = &SubmodelElementCollection{}
	case TypeSubmodelElementList:
		target = &SubmodelElementList{}
	case TypeEntity:
		target = &Entity{}
	case TypeBasicEventElement:
		target = &BasicEventElement{}
	case TypeOperation:
		target = &Operation{}
	case TypeCapability:
		target = &Capability{}
	default:
		return nil, fmt.Errorf("unknown modelType %q", mt)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", mt, err)
	}
	return target, nil
}
