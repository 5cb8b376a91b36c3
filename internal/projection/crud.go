package projection

import (
	"encoding/json"
	"fmt"

	"titan-aas/internal/model"
	"titan-aas/internal/titanerr"
)

// container abstracts over "the Submodel's top-level elements" and "one
// element's nested children" so Replace/Delete/Insert can share a single
// implementation for both depths. isList marks a SubmodelElementList
// container, whose members are addressed positionally rather than by
// idShort uniqueness.
type container struct {
	get    func() model.SubmodelElementSlice
	set    func(model.SubmodelElementSlice) error
	isList bool
}

func topLevelContainer(sm *model.Submodel) container {
	return container{
		get: func() model.SubmodelElementSlice { return sm.SubmodelElements },
		set: func(v model.SubmodelElementSlice) error { sm.SubmodelElements = v; return nil },
	}
}

func nestedContainer(parent model.SubmodelElement) container {
	_, isList := parent.(*model.SubmodelElementList)
	return container{
		get:    func() model.SubmodelElementSlice { return children(parent) },
		set:    func(v model.SubmodelElementSlice) error { return setChildren(parent, v) },
		isList: isList,
	}
}

// resolveContainer locates the container that directly holds the element
// named by the final path segment.
func resolveContainer(sm *model.Submodel, parentSegments []Segment) (container, error) {
	if len(parentSegments) == 0 {
		return topLevelContainer(sm), nil
	}
	parent, err := Navigate(sm.SubmodelElements, parentSegments)
	if err != nil {
		return container{}, err
	}
	return nestedContainer(parent), nil
}

// InsertElement adds a new element under parentPath (or at the Submodel's
// top level if parentPath is empty). For a SubmodelElementList, parentPath
// may name the list itself to append, or the list with a trailing index
// (idShort[i]) to insert at that position.
func InsertElement(sm *model.Submodel, parentPath string, el model.SubmodelElement) error {
	var segments []Segment
	if parentPath != "" {
		var err error
		segments, err = ParsePath(parentPath)
		if err != nil {
			return err
		}
	}

	if len(segments) > 0 && segments[len(segments)-1].Index != nil {
		return insertAtListIndex(sm, segments[:len(segments)-1], segments[len(segments)-1], el)
	}

	c, err := resolveContainer(sm, segments)
	if err != nil {
		return err
	}
	current := c.get()
	if !c.isList {
		for _, existing := range current {
			if existing.ElementIDShort() == el.ElementIDShort() {
				return titanerr.New(titanerr.Conflict, "Element.DuplicateIDShort", fmt.Sprintf("element %q already exists under %q", el.ElementIDShort(), parentPath))
			}
		}
	}
	return c.set(append(current, el))
}

// insertAtListIndex inserts el at position listSeg.Index within the
// SubmodelElementList named by listSeg.IDShort, shifting later elements up.
// Index may equal the list's current length to append.
func insertAtListIndex(sm *model.Submodel, parentSegments []Segment, listSeg Segment, el model.SubmodelElement) error {
	c, err := resolveContainer(sm, parentSegments)
	if err != nil {
		return err
	}
	list, err := findList(c.get(), listSeg.IDShort)
	if err != nil {
		return err
	}
	idx := *listSeg.Index
	if idx < 0 || idx > len(list.Value) {
		return titanerr.New(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("insert index %d out of range for %q", idx, listSeg.IDShort))
	}
	value := append(list.Value, nil)
	copy(value[idx+1:], value[idx:])
	value[idx] = el
	list.Value = value
	return nil
}

// ReplaceElement overwrites the element addressed by path with replacement.
func ReplaceElement(sm *model.Submodel, path string, replacement model.SubmodelElement) error {
	segments, err := ParsePath(path)
	if err != nil {
		return err
	}
	parentSegments, lastSeg := splitParent(segments)

	c, err := resolveContainer(sm, parentSegments)
	if err != nil {
		return err
	}

	if lastSeg.Index != nil {
		list, err := findList(c.get(), lastSeg.IDShort)
		if err != nil {
			return err
		}
		if *lastSeg.Index < 0 || *lastSeg.Index >= len(list.Value) {
			return titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("index %d out of range for %q", *lastSeg.Index, lastSeg.IDShort))
		}
		list.Value[*lastSeg.Index] = replacement
		return nil
	}

	current := c.get()
	for i, el := range current {
		if el.ElementIDShort() == lastSeg.IDShort {
			current[i] = replacement
			return c.set(current)
		}
	}
	return titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("no element with idShort %q", lastSeg.IDShort))
}

// PatchElement merges partial's top-level fields onto the element addressed
// by path. The merge is rejected if partial names a different modelType
// than the existing element.
func PatchElement(sm *model.Submodel, path string, partial json.RawMessage) error {
	segments, err := ParsePath(path)
	if err != nil {
		return err
	}
	parentSegments, lastSeg := splitParent(segments)

	c, err := resolveContainer(sm, parentSegments)
	if err != nil {
		return err
	}

	if lastSeg.Index != nil {
		list, err := findList(c.get(), lastSeg.IDShort)
		if err != nil {
			return err
		}
		if *lastSeg.Index < 0 || *lastSeg.Index >= len(list.Value) {
			return titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("index %d out of range for %q", *lastSeg.Index, lastSeg.IDShort))
		}
		merged, err := mergeElementPatch(list.Value[*lastSeg.Index], partial)
		if err != nil {
			return err
		}
		list.Value[*lastSeg.Index] = merged
		return nil
	}

	current := c.get()
	for i, el := range current {
		if el.ElementIDShort() == lastSeg.IDShort {
			merged, err := mergeElementPatch(el, partial)
			if err != nil {
				return err
			}
			current[i] = merged
			return c.set(current)
		}
	}
	return titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("no element with idShort %q", lastSeg.IDShort))
}

// mergeElementPatch overlays partial's top-level JSON fields onto existing's
// own encoding and decodes the merged object back into a concrete
// SubmodelElement. A modelType field in partial must match existing's.
func mergeElementPatch(existing model.SubmodelElement, partial json.RawMessage) (model.SubmodelElement, error) {
	var partialFields map[string]json.RawMessage
	if err := json.Unmarshal(partial, &partialFields); err != nil {
		return nil, titanerr.Wrap(titanerr.BadRequest, "Element.InvalidPatch", "malformed patch body", err)
	}

	if raw, ok := partialFields["modelType"]; ok {
		var mt string
		if err := json.Unmarshal(raw, &mt); err != nil {
			return nil, titanerr.Wrap(titanerr.BadRequest, "Element.InvalidPatch", "malformed modelType in patch", err)
		}
		if model.ModelType(mt) != existing.ElementModelType() {
			return nil, titanerr.New(titanerr.BadRequest, "Element.ModelTypeImmutable",
				fmt.Sprintf("cannot change modelType from %q to %q", existing.ElementModelType(), mt))
		}
	}

	existingBytes, err := json.Marshal(existing)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.Internal, "Element.PatchFailed", "encode existing element", err)
	}
	var existingFields map[string]json.RawMessage
	if err := json.Unmarshal(existingBytes, &existingFields); err != nil {
		return nil, titanerr.Wrap(titanerr.Internal, "Element.PatchFailed", "decode existing element", err)
	}
	for k, v := range partialFields {
		existingFields[k] = v
	}

	mergedBytes, err := json.Marshal(existingFields)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.Internal, "Element.PatchFailed", "encode merged element", err)
	}
	merged, err := model.UnmarshalSubmodelElement(mergedBytes)
	if err != nil {
		return nil, titanerr.Wrap(titanerr.BadRequest, "Element.InvalidPatch", "merged element failed to decode", err)
	}
	return merged, nil
}

// DeleteElement removes the element addressed by path.
func DeleteElement(sm *model.Submodel, path string) error {
	segments, err := ParsePath(path)
	if err != nil {
		return err
	}
	parentSegments, lastSeg := splitParent(segments)

	c, err := resolveContainer(sm, parentSegments)
	if err != nil {
		return err
	}

	if lastSeg.Index != nil {
		list, err := findList(c.get(), lastSeg.IDShort)
		if err != nil {
			return err
		}
		if *lastSeg.Index < 0 || *lastSeg.Index >= len(list.Value) {
			return titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("index %d out of range for %q", *lastSeg.Index, lastSeg.IDShort))
		}
		list.Value = append(list.Value[:*lastSeg.Index], list.Value[*lastSeg.Index+1:]...)
		return nil
	}

	current := c.get()
	for i, el := range current {
		if el.ElementIDShort() == lastSeg.IDShort {
			return c.set(append(current[:i], current[i+1:]...))
		}
	}
	return titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("no element with idShort %q", lastSeg.IDShort))
}

func findList(pool model.SubmodelElementSlice, idShort string) (*model.SubmodelElementList, error) {
	el, err := findByIDShort(pool, idShort)
	if err != nil {
		return nil, err
	}
	list, ok := el.(*model.SubmodelElementList)
	if !ok {
		return nil, titanerr.New(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("%q is not a SubmodelElementList", idShort))
	}
	return list, nil
}

// UpdateElementValue sets the scalar value of the leaf element addressed by
// path. Supported only for variants that carry a single settable value
// (Property, Blob, File).
func UpdateElementValue(sm *model.Submodel, path string, value string) error {
	el, err := NavigateSubmodel(sm, path)
	if err != nil {
		return err
	}
	switch t := el.(type) {
	case *model.Property:
		t.Value = value
	case *model.Blob:
		t.Value = value
	case *model.File:
		t.Value = value
	default:
		return titanerr.New(titanerr.BadRequest, "Element.UnsupportedValueUpdate", fmt.Sprintf("%s does not support direct value update", el.ElementModelType()))
	}
	return nil
}

// splitParent separates the final path segment (the element to act on)
// from the segments identifying its parent container.
func splitParent(segments []Segment) ([]Segment, Segment) {
	return segments[:len(segments)-1], segments[len(segments)-1]
}
