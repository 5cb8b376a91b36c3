// Package repository implements the document repository component: CRUD and
// zero-copy paginated listing for Shells, Submodels, and Concept
// Descriptions, backed by PostgreSQL via pgx.
//
// The Shell and Submodel repositories expose a fast path (bytes operations,
// no Go struct hydration - the hot path for reads that only need to stream
// a document back to a client) and a slow path (typed operations, used when
// a caller needs to apply a projection or otherwise inspect fields).
// ConceptDescriptionRepository offers the bytes operations only.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"titan-aas/internal/canonical"
	"titan-aas/internal/ident"
	"titan-aas/internal/model"
	"titan-aas/internal/titanerr"
)

// PagedResult is a complete, already-serialized paginated response produced
// entirely inside PostgreSQL: {"result": [...], "paging_metadata": {...}}.
type PagedResult struct {
	ResponseBytes []byte
	NextCursor    string
	Count         int
}

// ShellRepository persists Asset Administration Shells.
type ShellRepository struct {
	pool *pgxpool.Pool
}

func NewShellRepository(pool *pgxpool.Pool) *ShellRepository {
	return &ShellRepository{pool: pool}
}

// GetBytes is the fast path: canonical document bytes and ETag, looked up
// by the Base64URL-encoded identifier carried in the URL path.
func (r *ShellRepository) GetBytes(ctx context.Context, idB64 string) ([]byte, string, error) {
	var docBytes []byte
	var etag string
	err := r.pool.QueryRow(ctx,
		`SELECT doc_bytes, etag FROM shells WHERE identifier_b64 = $1`, idB64,
	).Scan(&docBytes, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", titanerr.New(titanerr.NotFound, "ShellNotFound", "shell not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("repository: get shell bytes: %w", err)
	}
	return docBytes, etag, nil
}

// GetTyped is the slow path: hydrates the stored document into a Shell for
// callers that need to project or transform it.
func (r *ShellRepository) GetTyped(ctx context.Context, idB64 string) (*model.Shell, string, error) {
	docBytes, etag, err := r.GetBytes(ctx, idB64)
	if err != nil {
		return nil, "", err
	}
	var shell model.Shell
	if err := json.Unmarshal(docBytes, &shell); err != nil {
		return nil, "", fmt.Errorf("repository: decode shell: %w", err)
	}
	return &shell, etag, nil
}

// Create inserts a new Shell, canonicalizing its document and computing the
// ETag. Returns titanerr.Conflict if the identifier already exists.
func (r *ShellRepository) Create(ctx context.Context, shell *model.Shell) ([]byte, string, error) {
	docBytes, err := canonical.EncodeValue(shell)
	if err != nil {
		return nil, "", fmt.Errorf("repository: canonicalize shell: %w", err)
	}
	etag := canonical.ETag(docBytes)
	idB64 := ident.Encode(string(shell.ID))

	_, err = r.pool.Exec(ctx,
		`INSERT INTO shells (identifier, identifier_b64, doc_bytes, etag, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		shell.ID, idB64, docBytes, etag,
	)
	if isUniqueViolation(err) {
		return nil, "", titanerr.New(titanerr.Conflict, "ShellAlreadyExists", "shell already exists")
	}
	if err != nil {
		return nil, "", fmt.Errorf("repository: create shell: %w", err)
	}
	return docBytes, etag, nil
}

// Update replaces an existing Shell's document in place.
func (r *ShellRepository) Update(ctx context.Context, idB64 string, shell *model.Shell) ([]byte, string, error) {
	docBytes, err := canonical.EncodeValue(shell)
	if err != nil {
		return nil, "", fmt.Errorf("repository: canonicalize shell: %w", err)
	}
	etag := canonical.ETag(docBytes)

	tag, err := r.pool.Exec(ctx,
		`UPDATE shells SET doc_bytes = $1, etag = $2, identifier = $3 WHERE identifier_b64 = $4`,
		docBytes, etag, shell.ID, idB64,
	)
	if err != nil {
		return nil, "", fmt.Errorf("repository: update shell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, "", titanerr.New(titanerr.NotFound, "ShellNotFound", "shell not found")
	}
	return docBytes, etag, nil
}

// Delete removes a Shell. Returns titanerr.NotFound if it did not exist.
func (r *ShellRepository) Delete(ctx context.Context, idB64 string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shells WHERE identifier_b64 = $1`, idB64)
	if err != nil {
		return fmt.Errorf("repository: delete shell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return titanerr.New(titanerr.NotFound, "ShellNotFound", "shell not found")
	}
	return nil
}

func (r *ShellRepository) Exists(ctx context.Context, idB64 string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM shells WHERE identifier_b64 = $1)`, idB64,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: shell exists: %w", err)
	}
	return exists, nil
}

// ListPagedBytes assembles the complete paginated response - the result
// array and paging_metadata envelope - inside PostgreSQL in one query, so
// the handler streams the bytes straight through with no per-item Go
// object hydration.
func (r *ShellRepository) ListPagedBytes(ctx context.Context, limit int, cursor string) (*PagedResult, error) {
	var cursorArg any
	if cursor != "" {
		cursorArg = cursor
	}
	return listPagedBytes(ctx, r.pool, shellPageQuery, limit, cursorArg, nil)
}

// SubmodelRepository persists Submodels.
type SubmodelRepository struct {
	pool *pgxpool.Pool
}

func NewSubmodelRepository(pool *pgxpool.Pool) *SubmodelRepository {
	return &SubmodelRepository{pool: pool}
}

func (r *SubmodelRepository) GetBytes(ctx context.Context, idB64 string) ([]byte, string, error) {
	var docBytes []byte
	var etag string
	err := r.pool.QueryRow(ctx,
		`SELECT doc_bytes, etag FROM submodels WHERE identifier_b64 = $1`, idB64,
	).Scan(&docBytes, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", titanerr.New(titanerr.NotFound, "SubmodelNotFound", "submodel not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("repository: get submodel bytes: %w", err)
	}
	return docBytes, etag, nil
}

func (r *SubmodelRepository) GetTyped(ctx context.Context, idB64 string) (*model.Submodel, string, error) {
	docBytes, etag, err := r.GetBytes(ctx, idB64)
	if err != nil {
		return nil, "", err
	}
	var sm model.Submodel
	if err := json.Unmarshal(docBytes, &sm); err != nil {
		return nil, "", fmt.Errorf("repository: decode submodel: %w", err)
	}
	return &sm, etag, nil
}

func (r *SubmodelRepository) Create(ctx context.Context, sm *model.Submodel) ([]byte, string, error) {
	docBytes, err := canonical.EncodeValue(sm)
	if err != nil {
		return nil, "", fmt.Errorf("repository: canonicalize submodel: %w", err)
	}
	etag := canonical.ETag(docBytes)
	idB64 := ident.Encode(string(sm.ID))

	_, err = r.pool.Exec(ctx,
		`INSERT INTO submodels (identifier, identifier_b64, semantic_id, doc_bytes, etag, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		sm.ID, idB64, nullableString(sm.SemanticIDFilterValue()), docBytes, etag,
	)
	if isUniqueViolation(err) {
		return nil, "", titanerr.New(titanerr.Conflict, "SubmodelAlreadyExists", "submodel already exists")
	}
	if err != nil {
		return nil, "", fmt.Errorf("repository: create submodel: %w", err)
	}
	return docBytes, etag, nil
}

func (r *SubmodelRepository) Update(ctx context.Context, idB64 string, sm *model.Submodel) ([]byte, string, error) {
	docBytes, err := canonical.EncodeValue(sm)
	if err != nil {
		return nil, "", fmt.Errorf("repository: canonicalize submodel: %w", err)
	}
	etag := canonical.ETag(docBytes)

	tag, err := r.pool.Exec(ctx,
		`UPDATE submodels SET doc_bytes = $1, etag = $2, identifier = $3, semantic_id = $4 WHERE identifier_b64 = $5`,
		docBytes, etag, sm.ID, nullableString(sm.SemanticIDFilterValue()), idB64,
	)
	if err != nil {
		return nil, "", fmt.Errorf("repository: update submodel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, "", titanerr.New(titanerr.NotFound, "SubmodelNotFound", "submodel not found")
	}
	return docBytes, etag, nil
}

func (r *SubmodelRepository) Delete(ctx context.Context, idB64 string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM submodels WHERE identifier_b64 = $1`, idB64)
	if err != nil {
		return fmt.Errorf("repository: delete submodel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return titanerr.New(titanerr.NotFound, "SubmodelNotFound", "submodel not found")
	}
	return nil
}

func (r *SubmodelRepository) Exists(ctx context.Context, idB64 string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM submodels WHERE identifier_b64 = $1)`, idB64,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: submodel exists: %w", err)
	}
	return exists, nil
}

// FindBySemanticID returns all Submodels whose semanticId's last key
// matches semanticID (fast path, bytes only).
func (r *SubmodelRepository) FindBySemanticID(ctx context.Context, semanticID string, limit int) ([][2]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT doc_bytes, etag FROM submodels WHERE semantic_id = $1 ORDER BY created_at LIMIT $2`,
		semanticID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: find submodels by semantic id: %w", err)
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var docBytes []byte
		var etag string
		if err := rows.Scan(&docBytes, &etag); err != nil {
			return nil, fmt.Errorf("repository: scan submodel row: %w", err)
		}
		out = append(out, [2]string{string(docBytes), etag})
	}
	return out, rows.Err()
}

// ListPagedBytes lists Submodels, optionally filtered by semanticId, with
// the same SQL-level pagination envelope as ShellRepository.
func (r *SubmodelRepository) ListPagedBytes(ctx context.Context, limit int, cursor, semanticID string) (*PagedResult, error) {
	var cursorArg, semanticArg any
	if cursor != "" {
		cursorArg = cursor
	}
	if semanticID != "" {
		semanticArg = semanticID
	}
	return listPagedBytes(ctx, r.pool, submodelPageQuery, limit, cursorArg, semanticArg)
}

// ConceptDescriptionRepository persists Concept Descriptions.
type ConceptDescriptionRepository struct {
	pool *pgxpool.Pool
}

func NewConceptDescriptionRepository(pool *pgxpool.Pool) *ConceptDescriptionRepository {
	return &ConceptDescriptionRepository{pool: pool}
}

func (r *ConceptDescriptionRepository) GetBytes(ctx context.Context, idB64 string) ([]byte, string, error) {
	var docBytes []byte
	var etag string
	err := r.pool.QueryRow(ctx,
		`SELECT doc_bytes, etag FROM concept_descriptions WHERE identifier_b64 = $1`, idB64,
	).Scan(&docBytes, &etag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", titanerr.New(titanerr.NotFound, "ConceptDescriptionNotFound", "concept description not found")
	}
	if err != nil {
		return nil, "", fmt.Errorf("repository: get concept description bytes: %w", err)
	}
	return docBytes, etag, nil
}

func (r *ConceptDescriptionRepository) Create(ctx context.Context, cd *model.ConceptDescription) ([]byte, string, error) {
	docBytes, err := canonical.EncodeValue(cd)
	if err != nil {
		return nil, "", fmt.Errorf("repository: canonicalize concept description: %w", err)
	}
	etag := canonical.ETag(docBytes)
	idB64 := ident.Encode(string(cd.ID))

	_, err = r.pool.Exec(ctx,
		`INSERT INTO concept_descriptions (identifier, identifier_b64, doc_bytes, etag, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		cd.ID, idB64, docBytes, etag,
	)
	if isUniqueViolation(err) {
		return nil, "", titanerr.New(titanerr.Conflict, "ConceptDescriptionAlreadyExists", "concept description already exists")
	}
	if err != nil {
		return nil, "", fmt.Errorf("repository: create concept description: %w", err)
	}
	return docBytes, etag, nil
}

func (r *ConceptDescriptionRepository) Delete(ctx context.Context, idB64 string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM concept_descriptions WHERE identifier_b64 = $1`, idB64)
	if err != nil {
		return fmt.Errorf("repository: delete concept description: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return titanerr.New(titanerr.NotFound, "ConceptDescriptionNotFound", "concept description not found")
	}
	return nil
}

func (r *ConceptDescriptionRepository) ListPagedBytes(ctx context.Context, limit int, cursor string) (*PagedResult, error) {
	var cursorArg any
	if cursor != "" {
		cursorArg = cursor
	}
	return listPagedBytes(ctx, r.pool, conceptDescriptionPageQuery, limit, cursorArg, nil)
}

const shellPageQuery = `
WITH page AS (
	SELECT doc_bytes, created_at
	FROM shells
	WHERE ($2::timestamptz IS NULL OR created_at > $2::timestamptz)
	  AND ($3::text IS NULL OR TRUE)
	ORDER BY created_at
	LIMIT $1
),
next_cursor AS (
	SELECT created_at::text AS cursor FROM page ORDER BY created_at DESC LIMIT 1
),
has_more AS (
	SELECT EXISTS(
		SELECT 1 FROM shells WHERE created_at > (SELECT MAX(created_at) FROM page)
	) AS more
)
SELECT json_build_object(
	'result', COALESCE((SELECT json_agg(doc_bytes::json) FROM page), '[]'::json),
	'paging_metadata', CASE
		WHEN (SELECT more FROM has_more) THEN json_build_object('cursor', (SELECT cursor FROM next_cursor))
		ELSE NULL
	END
)::text AS response
`

const submodelPageQuery = `
WITH page AS (
	SELECT doc_bytes, created_at
	FROM submodels
	WHERE ($2::timestamptz IS NULL OR created_at > $2::timestamptz)
	  AND ($3::text IS NULL OR semantic_id = $3::text)
	ORDER BY created_at
	LIMIT $1
),
next_cursor AS (
	SELECT created_at::text AS cursor FROM page ORDER BY created_at DESC LIMIT 1
),
has_more AS (
	SELECT EXISTS(
		SELECT 1 FROM submodels
		WHERE created_at > (SELECT MAX(created_at) FROM page)
		  AND ($3::text IS NULL OR semantic_id = $3::text)
	) AS more
)
SELECT json_build_object(
	'result', COALESCE((SELECT json_agg(doc_bytes::json) FROM page), '[]'::json),
	'paging_metadata', CASE
		WHEN (SELECT more FROM has_more) THEN json_build_object('cursor', (SELECT cursor FROM next_cursor))
		ELSE NULL
	END
)::text AS response
`

const conceptDescriptionPageQuery = `
WITH page AS (
	SELECT doc_bytes, created_at
	FROM concept_descriptions
	WHERE ($2::timestamptz IS NULL OR created_at > $2::timestamptz)
	  AND ($3::text IS NULL OR TRUE)
	ORDER BY created_at
	LIMIT $1
),
next_cursor AS (
	SELECT created_at::text AS cursor FROM page ORDER BY created_at DESC LIMIT 1
),
has_more AS (
	SELECT EXISTS(
		SELECT 1 FROM concept_descriptions WHERE created_at > (SELECT MAX(created_at) FROM page)
	) AS more
)
SELECT json_build_object(
	'result', COALESCE((SELECT json_agg(doc_bytes::json) FROM page), '[]'::json),
	'paging_metadata', CASE
		WHEN (SELECT more FROM has_more) THEN json_build_object('cursor', (SELECT cursor FROM next_cursor))
		ELSE NULL
	END
)::text AS response
`

// pagingMetadata mirrors the JSON shape emitted by the *PageQuery
// statements, used only to extract the next cursor without re-hydrating
// the result array.
type pagingMetadata struct {
	Cursor string `json:"cursor"`
}

type pagedEnvelope struct {
	Result         []json.RawMessage `json:"result"`
	PagingMetadata *pagingMetadata    `json:"paging_metadata"`
}

func listPagedBytes(ctx context.Context, pool *pgxpool.Pool, query string, limit int, cursor, extra any) (*PagedResult, error) {
	var response string
	err := pool.QueryRow(ctx, query, limit, cursor, extra).Scan(&response)
	if err != nil {
		return nil, fmt.Errorf("repository: list paged: %w", err)
	}

	var env pagedEnvelope
	if err := json.Unmarshal([]byte(response), &env); err != nil {
		return nil, fmt.Errorf("repository: decode paged envelope: %w", err)
	}

	result := &PagedResult{ResponseBytes: []byte(response), Count: len(env.Result)}
	if env.PagingMetadata != nil {
		result.NextCursor = env.PagingMetadata.Cursor
	}
	return result, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
