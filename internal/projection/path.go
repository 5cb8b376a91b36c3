// Package projection implements idShortPath navigation and the $value,
// $metadata, $reference, $path query-modifier projections over Submodel
// element trees, plus element CRUD as pure transformations.
package projection

import (
	"fmt"
	"strconv"
	"strings"

	"titan-aas/internal/model"
	"titan-aas/internal/titanerr"
)

// Segment is one step of a parsed idShortPath: either a plain idShort or an
// indexed access into a SubmodelElementList (idShort[index]).
type Segment struct {
	IDShort string
	Index   *int
}

// ParsePath splits a raw idShortPath ("Collection1.Item2[3].Sub") into its
// ordered segments.
func ParsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, titanerr.New(titanerr.BadRequest, "Element.InvalidPath", "empty idShortPath")
	}
	parts := strings.Split(path, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, titanerr.New(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("empty path segment in %q", path))
		}
		idShort := part
		var index *int
		if open := strings.IndexByte(part, '['); open >= 0 {
			if !strings.HasSuffix(part, "]") {
				return nil, titanerr.New(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("malformed index segment %q", part))
			}
			idShort = part[:open]
			n, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				return nil, titanerr.Wrap(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("invalid index in %q", part), err)
			}
			index = &n
		}
		segments = append(segments, Segment{IDShort: idShort, Index: index})
	}
	return segments, nil
}

// children returns the element's own nested SubmodelElementSlice, or nil if
// the variant has none.
func children(el model.SubmodelElement) model.SubmodelElementSlice {
	switch t := el.(type) {
	case *model.SubmodelElementCollection:
		return t.Value
	case *model.SubmodelElementList:
		return t.Value
	case *model.Entity:
		return t.Statements
	case *model.AnnotatedRelationshipElement:
		return t.Annotations
	default:
		return nil
	}
}

func setChildren(el model.SubmodelElement, value model.SubmodelElementSlice) error {
	switch t := el.(type) {
	case *model.SubmodelElementCollection:
		t.Value = value
	case *model.SubmodelElementList:
		t.Value = value
	case *model.Entity:
		t.Statements = value
	case *model.AnnotatedRelationshipElement:
		t.Annotations = value
	default:
		return titanerr.New(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("%s has no addressable children", el.ElementModelType()))
	}
	return nil
}

// Navigate resolves a parsed idShortPath against a root element slice,
// returning the target element or an error if any segment cannot be
// resolved.
func Navigate(root model.SubmodelElementSlice, segments []Segment) (model.SubmodelElement, error) {
	var current model.SubmodelElement
	pool := root

	for i, seg := range segments {
		var found model.SubmodelElement
		if seg.Index != nil {
			// Indexed access addresses a SubmodelElementList by position;
			// the idShort segment preceding it must resolve first.
			listEl, err := findByIDShort(pool, seg.IDShort)
			if err != nil {
				return nil, titanerr.Wrap(titanerr.KindOf(err), "Element.NotFound", fmt.Sprintf("segment %d (%q)", i, seg.IDShort), err)
			}
			list, ok := listEl.(*model.SubmodelElementList)
			if !ok {
				return nil, titanerr.New(titanerr.BadRequest, "Element.InvalidPath", fmt.Sprintf("segment %d (%q) is not a SubmodelElementList", i, seg.IDShort))
			}
			if *seg.Index < 0 || *seg.Index >= len(list.Value) {
				return nil, titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("index %d out of range for %q", *seg.Index, seg.IDShort))
			}
			found = list.Value[*seg.Index]
		} else {
			var err error
			found, err = findByIDShort(pool, seg.IDShort)
			if err != nil {
				return nil, titanerr.Wrap(titanerr.KindOf(err), "Element.NotFound", fmt.Sprintf("segment %d (%q)", i, seg.IDShort), err)
			}
		}
		current = found
		pool = children(found)
	}
	return current, nil
}

// NavigateSubmodel navigates from a Submodel's top-level elements.
func NavigateSubmodel(sm *model.Submodel, path string) (model.SubmodelElement, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return Navigate(sm.SubmodelElements, segments)
}

func findByIDShort(pool model.SubmodelElementSlice, idShort string) (model.SubmodelElement, error) {
	for _, el := range pool {
		if el.ElementIDShort() == idShort {
			return el, nil
		}
	}
	return nil, titanerr.New(titanerr.NotFound, "Element.NotFound", fmt.Sprintf("no element with idShort %q", idShort))
}

// CollectIDShortPaths walks the full element tree of a Submodel and returns
// the idShortPath of every element, in depth-first order, for the $path
// projection over a whole submodel.
func CollectIDShortPaths(sm *model.Submodel) []string {
	var out []string
	var walk func(prefix string, els model.SubmodelElementSlice)
	walk = func(prefix string, els model.SubmodelElementSlice) {
		for i, el := range els {
			p := el.ElementIDShort()
			if prefix != "" {
				p = prefix + "." + p
			}
			out = append(out, p)
			if list, ok := el.(*model.SubmodelElementList); ok {
				for idx, item := range list.Value {
					itemPath := fmt.Sprintf("%s[%d]", p, idx)
					out = append(out, itemPath)
					walk(itemPath, children(item))
				}
				continue
			}
			_ = i
			walk(p, children(el))
		}
	}
	walk("", sm.SubmodelElements)
	return out
}
