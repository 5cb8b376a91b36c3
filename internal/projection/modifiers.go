package projection

import (
	"encoding/json"
	"fmt"

	"titan-aas/internal/model"
)

// Level selects how deep the "normal" content projection recurses into
// container elements.
type Level string

const (
	LevelDeep Level = "deep"
	LevelCore Level = "core"
)

// Extent controls whether large binary payloads are included.
type Extent string

const (
	ExtentWithBlobValue    Extent = "withBlobValue"
	ExtentWithoutBlobValue Extent = "withoutBlobValue"
)

// Content selects which representation of an element or Submodel a request
// wants: the full normal document, or one of the $value/$metadata/
// $reference/$path projections.
type Content string

const (
	ContentNormal   Content = "normal"
	ContentValue    Content = "value"
	ContentMetadata Content = "metadata"
	ContentReference Content = "reference"
	ContentPath     Content = "path"
)

// Modifiers bundles the three query-modifier axes a repository read
// applies together.
type Modifiers struct {
	Level  Level
	Extent Extent
	Content Content
}

// ApplyLevelExtent returns sm with the level/extent modifiers applied:
// level=core truncates every container element's children to empty, and
// extent=withoutBlobValue clears every Blob's value. With the defaults
// (deep, withBlobValue) sm itself is returned; otherwise mutation is
// performed on a deep copy (round-tripped through encoding/json) so the
// caller's in-memory document is never altered.
func ApplyLevelExtent(sm *model.Submodel, level Level, extent Extent) (*model.Submodel, error) {
	if level == "" {
		level = LevelDeep
	}
	if extent == "" {
		extent = ExtentWithBlobValue
	}
	if level == LevelDeep && extent == ExtentWithBlobValue {
		return sm, nil
	}

	raw, err := json.Marshal(sm)
	if err != nil {
		return nil, fmt.Errorf("projection: clone submodel: %w", err)
	}
	var clone model.Submodel
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, fmt.Errorf("projection: clone submodel: %w", err)
	}

	if level == LevelCore {
		truncateChildren(clone.SubmodelElements)
	}
	if extent == ExtentWithoutBlobValue {
		clearBlobValues(clone.SubmodelElements)
	}
	return &clone, nil
}

func truncateChildren(els model.SubmodelElementSlice) {
	for _, el := range els {
		_ = setChildren(el, nil)
	}
}

func clearBlobValues(els model.SubmodelElementSlice) {
	for _, el := range els {
		if blob, ok := el.(*model.Blob); ok {
			blob.Value = ""
		}
		for _, child := range children(el) {
			clearBlobValues(model.SubmodelElementSlice{child})
		}
	}
}
