package federation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titan-aas/internal/ident"
	"titan-aas/internal/model"
)

type fakeStore struct {
	docs map[string][2]string // idB64 -> [doc, etag]
}

func (f *fakeStore) GetBytes(ctx context.Context, idB64 string) ([]byte, string, error) {
	entry, ok := f.docs[idB64]
	if !ok {
		return nil, "", fmt.Errorf("not found")
	}
	return []byte(entry[0]), entry[1], nil
}

func TestRepositoryReader_GetLocal_EncodesIdentifierAndReturnsFound(t *testing.T) {
	store := &fakeStore{docs: map[string][2]string{
		ident.Encode("urn:x:sm:1"): {`{"id":"urn:x:sm:1"}`, `"etag-1"`},
	}}
	reader := NewRepositoryReader(nil, store, nil, nil, nil, nil, nil)

	doc, etag, found, err := reader.GetLocal(context.Background(), model.EntitySubmodel, "urn:x:sm:1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `"etag-1"`, etag)
	assert.JSONEq(t, `{"id":"urn:x:sm:1"}`, string(doc))
}

func TestRepositoryReader_GetLocal_MissingReturnsNotFoundNotError(t *testing.T) {
	reader := NewRepositoryReader(nil, &fakeStore{docs: map[string][2]string{}}, nil, nil, nil, nil, nil)

	_, _, found, err := reader.GetLocal(context.Background(), model.EntitySubmodel, "urn:x:sm:missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepositoryReader_CreateLocal_DispatchesByEntityType(t *testing.T) {
	var submodelDoc []byte
	reader := NewRepositoryReader(nil, nil, nil, nil,
		func(ctx context.Context, doc []byte) error { submodelDoc = doc; return nil },
		nil, nil)

	err := reader.CreateLocal(context.Background(), model.EntitySubmodel, []byte(`{"id":"sm-1"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"sm-1"}`, string(submodelDoc))
}

func TestRepositoryReader_ListRemoteCandidates_FetchesListThenHeadsEachETag(t *testing.T) {
	var headPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"result":[{"id":"sm-1"},{"id":"sm-2"}]}`))
		case http.MethodHead:
			headPaths = append(headPaths, r.URL.Path)
			w.Header().Set("ETag", `"etag-for-`+r.URL.Path+`"`)
		}
	}))
	defer server.Close()

	reader := NewRepositoryReader(nil, nil, nil, nil, nil, nil, server.Client())
	peer := &model.Peer{ID: "peer-1", URL: server.URL}

	entities, err := reader.ListRemoteCandidates(context.Background(), peer, model.EntitySubmodel)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Len(t, headPaths, 2)
	assert.NotEmpty(t, entities[0].ETag)
}
