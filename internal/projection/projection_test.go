package projection

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titan-aas/internal/model"
	"titan-aas/internal/titanerr"
)

func sampleSubmodel() *model.Submodel {
	temp := model.NewProperty("Temperature", "xs:double", "21.5")
	list := model.NewSubmodelElementList("Readings", model.TypeProperty,
		model.SubmodelElementSlice{
			model.NewProperty("", "xs:double", "1"),
			model.NewProperty("", "xs:double", "2"),
		})
	coll := model.NewSubmodelElementCollection("Diagnostics", model.SubmodelElementSlice{
		model.NewBlob("Waveform", "application/octet-stream", "AQID"),
	})
	return &model.Submodel{
		ID:              "https://example.com/submodels/1",
		IDShort:         "Sensor",
		SubmodelElements: model.SubmodelElementSlice{temp, list, coll},
	}
}

func TestParsePath(t *testing.T) {
	segs, err := ParsePath("Diagnostics.Readings[2].Sub")
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "Diagnostics", segs[0].IDShort)
	assert.Nil(t, segs[0].Index)
	assert.Equal(t, "Readings", segs[1].IDShort)
	require.NotNil(t, segs[1].Index)
	assert.Equal(t, 2, *segs[1].Index)
	assert.Equal(t, "Sub", segs[2].IDShort)
}

func TestParsePath_RejectsEmpty(t *testing.T) {
	_, err := ParsePath("")
	assert.Error(t, err)
}

func TestNavigateSubmodel_TopLevel(t *testing.T) {
	sm := sampleSubmodel()
	el, err := NavigateSubmodel(sm, "Temperature")
	require.NoError(t, err)
	assert.Equal(t, "Temperature", el.ElementIDShort())
}

func TestNavigateSubmodel_IndexedList(t *testing.T) {
	sm := sampleSubmodel()
	el, err := NavigateSubmodel(sm, "Readings[1]")
	require.NoError(t, err)
	prop, ok := el.(*model.Property)
	require.True(t, ok)
	assert.Equal(t, "2", prop.Value)
}

func TestNavigateSubmodel_NestedCollection(t *testing.T) {
	sm := sampleSubmodel()
	el, err := NavigateSubmodel(sm, "Diagnostics.Waveform")
	require.NoError(t, err)
	assert.Equal(t, "Waveform", el.ElementIDShort())
}

func TestNavigateSubmodel_NotFound(t *testing.T) {
	sm := sampleSubmodel()
	_, err := NavigateSubmodel(sm, "DoesNotExist")
	assert.Error(t, err)
}

func TestExtractValue_Property(t *testing.T) {
	v, err := ExtractValue(model.NewProperty("X", "xs:string", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestExtractValue_Collection(t *testing.T) {
	sm := sampleSubmodel()
	el, err := NavigateSubmodel(sm, "Diagnostics")
	require.NoError(t, err)
	v, err := ExtractValue(el)
	require.NoError(t, err)
	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "Waveform")
}

func TestInsertReplaceDeleteElement(t *testing.T) {
	sm := sampleSubmodel()

	require.NoError(t, InsertElement(sm, "", model.NewProperty("NewProp", "xs:string", "v")))
	el, err := NavigateSubmodel(sm, "NewProp")
	require.NoError(t, err)
	assert.Equal(t, "NewProp", el.ElementIDShort())

	require.NoError(t, ReplaceElement(sm, "NewProp", model.NewProperty("NewProp", "xs:string", "v2")))
	el, err = NavigateSubmodel(sm, "NewProp")
	require.NoError(t, err)
	assert.Equal(t, "v2", el.(*model.Property).Value)

	require.NoError(t, DeleteElement(sm, "NewProp"))
	_, err = NavigateSubmodel(sm, "NewProp")
	assert.Error(t, err)
}

func TestInsertElement_RejectsDuplicateIDShort(t *testing.T) {
	sm := sampleSubmodel()
	err := InsertElement(sm, "", model.NewProperty("Temperature", "xs:double", "1"))
	assert.Error(t, err)
}

func TestInsertElement_AllowsDuplicateIDShortInList(t *testing.T) {
	sm := sampleSubmodel()
	// List members are addressed positionally, not by idShort uniqueness,
	// so two appended elements sharing an (empty) idShort must not conflict.
	require.NoError(t, InsertElement(sm, "Readings", model.NewProperty("", "xs:double", "3")))
	list, err := NavigateSubmodel(sm, "Readings")
	require.NoError(t, err)
	assert.Len(t, list.(*model.SubmodelElementList).Value, 3)
}

func TestInsertElement_AtListIndex(t *testing.T) {
	sm := sampleSubmodel()
	require.NoError(t, InsertElement(sm, "Readings[1]", model.NewProperty("", "xs:double", "1.5")))

	list, err := NavigateSubmodel(sm, "Readings")
	require.NoError(t, err)
	values := list.(*model.SubmodelElementList).Value
	require.Len(t, values, 3)
	assert.Equal(t, "1", values[0].(*model.Property).Value)
	assert.Equal(t, "1.5", values[1].(*model.Property).Value)
	assert.Equal(t, "2", values[2].(*model.Property).Value)
}

func TestInsertElement_AtListIndex_OutOfRange(t *testing.T) {
	sm := sampleSubmodel()
	err := InsertElement(sm, "Readings[5]", model.NewProperty("", "xs:double", "1"))
	require.Error(t, err)
	assert.Equal(t, titanerr.BadRequest, titanerr.KindOf(err))
}

func TestInsertElement_RejectsDuplicateIDShort_TypedKind(t *testing.T) {
	sm := sampleSubmodel()
	err := InsertElement(sm, "", model.NewProperty("Temperature", "xs:double", "1"))
	require.Error(t, err)
	assert.Equal(t, titanerr.Conflict, titanerr.KindOf(err))
}

func TestNavigateSubmodel_NotFound_TypedKind(t *testing.T) {
	sm := sampleSubmodel()
	_, err := NavigateSubmodel(sm, "DoesNotExist")
	require.Error(t, err)
	assert.Equal(t, titanerr.NotFound, titanerr.KindOf(err))
}

func TestParsePath_RejectsEmpty_TypedKind(t *testing.T) {
	_, err := ParsePath("")
	require.Error(t, err)
	assert.Equal(t, titanerr.BadRequest, titanerr.KindOf(err))
}

func TestPatchElement_MergesFields(t *testing.T) {
	sm := sampleSubmodel()
	partial, err := json.Marshal(map[string]any{
		"modelType": "Property",
		"value":     "99.9",
		"category":  "PARAMETER",
	})
	require.NoError(t, err)

	require.NoError(t, PatchElement(sm, "Temperature", partial))

	el, err := NavigateSubmodel(sm, "Temperature")
	require.NoError(t, err)
	prop := el.(*model.Property)
	assert.Equal(t, "99.9", prop.Value)
	assert.Equal(t, "PARAMETER", prop.Category)
}

func TestPatchElement_RejectsModelTypeChange(t *testing.T) {
	sm := sampleSubmodel()
	partial, err := json.Marshal(map[string]any{"modelType": "Range"})
	require.NoError(t, err)

	err = PatchElement(sm, "Temperature", partial)
	require.Error(t, err)
	assert.Equal(t, titanerr.BadRequest, titanerr.KindOf(err))

	el, err := NavigateSubmodel(sm, "Temperature")
	require.NoError(t, err)
	assert.Equal(t, model.TypeProperty, el.ElementModelType())
}

func TestPatchElement_IndexedListEntry(t *testing.T) {
	sm := sampleSubmodel()
	partial, err := json.Marshal(map[string]any{"value": "42"})
	require.NoError(t, err)

	require.NoError(t, PatchElement(sm, "Readings[0]", partial))

	el, err := NavigateSubmodel(sm, "Readings[0]")
	require.NoError(t, err)
	assert.Equal(t, "42", el.(*model.Property).Value)
}

func TestPatchElement_NotFound(t *testing.T) {
	sm := sampleSubmodel()
	partial, err := json.Marshal(map[string]any{"value": "42"})
	require.NoError(t, err)

	err = PatchElement(sm, "DoesNotExist", partial)
	require.Error(t, err)
	assert.Equal(t, titanerr.NotFound, titanerr.KindOf(err))
}

func TestReplaceElement_IndexedListEntry(t *testing.T) {
	sm := sampleSubmodel()
	require.NoError(t, ReplaceElement(sm, "Readings[0]", model.NewProperty("", "xs:double", "99")))
	el, err := NavigateSubmodel(sm, "Readings[0]")
	require.NoError(t, err)
	assert.Equal(t, "99", el.(*model.Property).Value)
}

func TestDeleteElement_IndexedListEntry(t *testing.T) {
	sm := sampleSubmodel()
	require.NoError(t, DeleteElement(sm, "Readings[1]"))
	list, err := NavigateSubmodel(sm, "Readings")
	require.NoError(t, err)
	assert.Len(t, list.(*model.SubmodelElementList).Value, 1)
}

func TestUpdateElementValue(t *testing.T) {
	sm := sampleSubmodel()
	require.NoError(t, UpdateElementValue(sm, "Temperature", "30.0"))
	el, err := NavigateSubmodel(sm, "Temperature")
	require.NoError(t, err)
	assert.Equal(t, "30.0", el.(*model.Property).Value)
}

func TestUpdateElementValue_RejectsUnsupportedVariant(t *testing.T) {
	sm := sampleSubmodel()
	err := UpdateElementValue(sm, "Readings", "x")
	assert.Error(t, err)
}

func TestCollectIDShortPaths(t *testing.T) {
	sm := sampleSubmodel()
	paths := CollectIDShortPaths(sm)
	assert.Contains(t, paths, "Temperature")
	assert.Contains(t, paths, "Readings")
	assert.Contains(t, paths, "Readings[0]")
	assert.Contains(t, paths, "Diagnostics.Waveform")
}

func TestApplyLevelExtent_CoreTruncatesChildren(t *testing.T) {
	sm := sampleSubmodel()
	projected, err := ApplyLevelExtent(sm, LevelCore, ExtentWithBlobValue)
	require.NoError(t, err)

	coll, err := NavigateSubmodel(projected, "Diagnostics")
	require.NoError(t, err)
	assert.Empty(t, coll.(*model.SubmodelElementCollection).Value)

	// Original untouched.
	origColl, err := NavigateSubmodel(sm, "Diagnostics")
	require.NoError(t, err)
	assert.NotEmpty(t, origColl.(*model.SubmodelElementCollection).Value)
}

func TestApplyLevelExtent_WithoutBlobValueClearsBlobs(t *testing.T) {
	sm := sampleSubmodel()
	projected, err := ApplyLevelExtent(sm, LevelDeep, ExtentWithoutBlobValue)
	require.NoError(t, err)

	blob, err := NavigateSubmodel(projected, "Diagnostics.Waveform")
	require.NoError(t, err)
	assert.Empty(t, blob.(*model.Blob).Value)
}
