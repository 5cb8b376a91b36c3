package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"titan-aas/internal/ident"
	"titan-aas/internal/model"
)

// documentStore is the subset of the three document repositories an
// EntityReader needs: fast-path bytes get keyed by Base64URL
// identifier. repository.ShellRepository, SubmodelRepository, and
// ConceptDescriptionRepository each already satisfy it.
type documentStore interface {
	GetBytes(ctx context.Context, idB64 string) ([]byte, string, error)
}

// RepositoryReader implements EntityReader over the three document
// repositories, round-tripping remote peer exchanges over plain HTTP the
// same way pushOne/fetchRemoteDoc do. It is the composition root's bridge
// between federation sync and the document repository component; nothing
// in the federation package depends on it directly.
type RepositoryReader struct {
	shells    documentStore
	submodels documentStore
	concepts  documentStore

	createShell    func(ctx context.Context, doc []byte) error
	createSubmodel func(ctx context.Context, doc []byte) error
	createConcept  func(ctx context.Context, doc []byte) error

	client *http.Client
}

// NewRepositoryReader builds a reader around the three repositories' Create
// functions. Each create func is expected to unmarshal doc into its typed
// entity and persist it, matching repository.*Repository.Create's
// contract once given a concrete type.
func NewRepositoryReader(
	shells, submodels, concepts documentStore,
	createShell, createSubmodel, createConcept func(ctx context.Context, doc []byte) error,
	client *http.Client,
) *RepositoryReader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RepositoryReader{
		shells: shells, submodels: submodels, concepts: concepts,
		createShell: createShell, createSubmodel: createSubmodel, createConcept: createConcept,
		client: client,
	}
}

func (r *RepositoryReader) storeFor(entityType model.ChangeEntityType) documentStore {
	switch entityType {
	case model.EntityAas:
		return r.shells
	case model.EntitySubmodel:
		return r.submodels
	case model.EntityConceptDescription:
		return r.concepts
	default:
		return nil
	}
}

// GetLocal implements EntityReader.
func (r *RepositoryReader) GetLocal(ctx context.Context, entityType model.ChangeEntityType, entityID string) ([]byte, string, bool, error) {
	store := r.storeFor(entityType)
	if store == nil {
		return nil, "", false, fmt.Errorf("federation: unsupported entity type %q", entityType)
	}
	doc, etag, err := store.GetBytes(ctx, ident.Encode(entityID))
	if err != nil {
		return nil, "", false, nil
	}
	return doc, etag, true, nil
}

// CreateLocal implements EntityReader.
func (r *RepositoryReader) CreateLocal(ctx context.Context, entityType model.ChangeEntityType, doc []byte) error {
	switch entityType {
	case model.EntityAas:
		return r.createShell(ctx, doc)
	case model.EntitySubmodel:
		return r.createSubmodel(ctx, doc)
	case model.EntityConceptDescription:
		return r.createConcept(ctx, doc)
	default:
		return fmt.Errorf("federation: unsupported entity type %q", entityType)
	}
}

// remoteListPage mirrors the paged-list envelope repository.PagedResult
// serializes, just enough to read back each entry's raw identifier.
type remoteListPage struct {
	Result []struct {
		ID string `json:"id"`
	} `json:"result"`
}

// ListRemoteCandidates implements EntityReader by GETting peer's entity
// list, then issuing one HEAD per entry to read its current ETag without
// transferring the full document body.
func (r *RepositoryReader) ListRemoteCandidates(ctx context.Context, peer *model.Peer, entityType model.ChangeEntityType) ([]RemoteEntity, error) {
	segment := entityPathSegment(entityType)
	listURL := fmt.Sprintf("%s/%s", peer.URL, segment)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("federation: list %s from peer %s: %w", segment, peer.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("federation: peer %s responded %d listing %s", peer.ID, resp.StatusCode, segment)
	}

	var page remoteListPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("federation: decode %s list from peer %s: %w", segment, peer.ID, err)
	}

	out := make([]RemoteEntity, 0, len(page.Result))
	for _, entry := range page.Result {
		if entry.ID == "" {
			continue
		}
		etag, err := r.headETag(ctx, peer, segment, entry.ID)
		if err != nil {
			continue
		}
		out = append(out, RemoteEntity{ID: entry.ID, ETag: etag})
	}
	return out, nil
}

func (r *RepositoryReader) headETag(ctx context.Context, peer *model.Peer, segment, entityID string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s", peer.URL, segment, ident.Encode(entityID))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("peer responded %d", resp.StatusCode)
	}
	return resp.Header.Get("ETag"), nil
}
