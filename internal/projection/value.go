package projection

import (
	"fmt"

	"titan-aas/internal/model"
)

// ExtractValue produces the $value representation of a single element:
// scalars for leaf elements, nested maps/slices for containers, keyed the
// way the AAS $value serialization does (idShort -> value for collections,
// positional array for lists).
func ExtractValue(el model.SubmodelElement) (any, error) {
	switch t := el.(type) {
	case *model.Property:
		return t.Value, nil
	case *model.MultiLanguageProperty:
		out := make([]map[string]string, 0, len(t.Value))
		for _, ls := range t.Value {
			out = append(out, map[string]string{ls.Language: ls.Text})
		}
		return out, nil
	case *model.Range:
		return map[string]string{"min": t.Min, "max": t.Max}, nil
	case *model.Blob:
		return t.Value, nil
	case *model.File:
		return t.Value, nil
	case *model.ReferenceElement:
		return t.Value, nil
	case *model.RelationshipElement:
		return map[string]model.Reference{"first": t.First, "second": t.Second}, nil
	case *model.AnnotatedRelationshipElement:
		annotations, err := extractValueSlice(t.Annotations)
		if err != nil {
			return nil, err
		}
		return map[string]any{"first": t.First, "second": t.Second, "annotations": annotations}, nil
	case *model.SubmodelElementCollection:
		return extractValueMap(t.Value)
	case *model.SubmodelElementList:
		return extractValueSlice(t.Value)
	case *model.Entity:
		statements, err := extractValueMap(t.Statements)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"entityType":       t.EntityType,
			"globalAssetId":    t.GlobalAssetID,
			"specificAssetIds": t.SpecificAssetIDs,
			"statements":       statements,
		}, nil
	case *model.BasicEventElement:
		return map[string]any{
			"observed":  t.Observed,
			"direction": t.Direction,
			"state":     t.State,
		}, nil
	case *model.Operation, *model.Capability:
		return map[string]any{}, nil
	default:
		return nil, fmt.Errorf("projection: no $value mapping for %T", el)
	}
}

func extractValueMap(els model.SubmodelElementSlice) (map[string]any, error) {
	out := make(map[string]any, len(els))
	for _, el := range els {
		v, err := ExtractValue(el)
		if err != nil {
			return nil, err
		}
		out[el.ElementIDShort()] = v
	}
	return out, nil
}

func extractValueSlice(els model.SubmodelElementSlice) ([]any, error) {
	out := make([]any, 0, len(els))
	for _, el := range els {
		v, err := ExtractValue(el)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// elementMetadata is the $metadata projection of one element: identifying
// and descriptive fields, no value payload.
type elementMetadata struct {
	IDShort     string             `json:"idShort,omitempty"`
	ModelType   model.ModelType    `json:"modelType"`
	Category    string             `json:"category,omitempty"`
	DisplayName []model.LangString `json:"displayName,omitempty"`
	Description []model.LangString `json:"description,omitempty"`
	SemanticID  *model.Reference   `json:"semanticId,omitempty"`
	Qualifiers  []model.Qualifier  `json:"qualifiers,omitempty"`
	Value       []elementMetadata  `json:"value,omitempty"`
}

// ExtractMetadata produces the $metadata projection of an element tree:
// every descriptive field is kept, every value field is dropped, and
// container children are recursed into so their metadata is kept too.
func ExtractMetadata(el model.SubmodelElement) any {
	base := elementBase(el)
	meta := elementMetadata{
		IDShort:     base.IDShort,
		ModelType:   el.ElementModelType(),
		Category:    base.Category,
		DisplayName: base.DisplayName,
		Description: base.Description,
		SemanticID:  base.SemanticID,
		Qualifiers:  base.Qualifiers,
	}
	for _, child := range children(el) {
		m := ExtractMetadata(child)
		if em, ok := m.(elementMetadata); ok {
			meta.Value = append(meta.Value, em)
		}
	}
	return meta
}

func elementBase(el model.SubmodelElement) model.Base {
	switch t := el.(type) {
	case *model.Property:
		return t.Base
	case *model.MultiLanguageProperty:
		return t.Base
	case *model.Range:
		return t.Base
	case *model.Blob:
		return t.Base
	case *model.File:
		return t.Base
	case *model.ReferenceElement:
		return t.Base
	case *model.RelationshipElement:
		return t.Base
	case *model.AnnotatedRelationshipElement:
		return t.Base
	case *model.SubmodelElementCollection:
		return t.Base
	case *model.SubmodelElementList:
		return t.Base
	case *model.Entity:
		return t.Base
	case *model.BasicEventElement:
		return t.Base
	case *model.Operation:
		return t.Base
	case *model.Capability:
		return t.Base
	default:
		return model.Base{}
	}
}

// ExtractReference builds the ModelReference pointing at one element,
// addressed by submodel identifier plus the idShort chain of its path.
func ExtractReference(el model.SubmodelElement, submodelID model.Identifier, idShortPath string) model.Reference {
	keys := []model.Key{{Type: "Submodel", Value: string(submodelID)}}
	segments, err := ParsePath(idShortPath)
	if err == nil {
		for _, seg := range segments {
			keys = append(keys, model.Key{Type: string(el.ElementModelType()), Value: seg.IDShort})
		}
	}
	return model.Reference{Type: model.ModelReference, Keys: keys}
}

// PathResult is the $path projection response: the element's idShortPath
// and, for containers, its children's paths one level down.
type PathResult struct {
	IDShortPath string   `json:"idShortPath"`
	Children    []string `json:"children,omitempty"`
}

// ExtractPath builds the $path projection for one element.
func ExtractPath(el model.SubmodelElement, idShortPath string) PathResult {
	result := PathResult{IDShortPath: idShortPath}
	_, isList := el.(*model.SubmodelElementList)
	for i, child := range children(el) {
		if isList {
			result.Children = append(result.Children, fmt.Sprintf("%s[%d]", idShortPath, i))
			continue
		}
		result.Children = append(result.Children, idShortPath+"."+child.ElementIDShort())
	}
	return result
}
