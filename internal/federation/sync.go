package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"titan-aas/internal/ident"
	"titan-aas/internal/model"
)

// Mode selects which direction(s) a sync run exchanges changes in.
type Mode string

const (
	ModePull          Mode = "pull"
	ModePush          Mode = "push"
	ModeBidirectional Mode = "bidirectional"
)

// Topology selects how sync peers are chosen.
type Topology string

const (
	TopologyMesh     Topology = "mesh"
	TopologyHubSpoke Topology = "hubSpoke"
)

// Config controls one sync loop's behavior.
type Config struct {
	Mode             Mode
	Topology         Topology
	HubPeerID        string // only meaningful when Topology == TopologyHubSpoke
	DeltaSyncEnabled bool
}

// EntityReader loads the local document and ETag for an entity by type and
// identifier, and the full entity listing for pull sync. The sync loop
// depends on this instead of a concrete repository so it can drive any of
// the three repository kinds.
type EntityReader interface {
	GetLocal(ctx context.Context, entityType model.ChangeEntityType, entityID string) (doc []byte, etag string, found bool, err error)
	ListRemoteCandidates(ctx context.Context, peer *model.Peer, entityType model.ChangeEntityType) ([]RemoteEntity, error)
	CreateLocal(ctx context.Context, entityType model.ChangeEntityType, doc []byte) error
}

// RemoteEntity is one entry from a peer's entity listing, just enough to
// decide whether a local pull is needed.
type RemoteEntity struct {
	ID   string
	ETag string
}

// Summary reports the outcome of one syncOnce call.
type Summary struct {
	Peers     int
	Pushed    int
	Pulled    int
	Conflicts int
	Errors    []string
	Status    string
}

// Loop drives federation sync runs against a peer Registry, replaying a
// ChangeQueue on push and detecting ETag divergence on pull, handing
// divergences to a conflict Manager.
type Loop struct {
	config    Config
	registry  *Registry
	queue     *ChangeQueue
	conflicts *Manager
	reader    EntityReader
	client    *http.Client
	graph     GraphMirror
}

// NewLoop builds a sync loop. client is used for all peer HTTP exchange;
// if nil, a client with a 30s timeout is used.
func NewLoop(config Config, registry *Registry, queue *ChangeQueue, conflicts *Manager, reader EntityReader, client *http.Client) *Loop {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loop{config: config, registry: registry, queue: queue, conflicts: conflicts, reader: reader, client: client}
}

// SetGraphMirror attaches an optional graph mirror: once set, every entity
// pulled from a peer for the first time has its reference edges mirrored
// into it. Passing nil disables mirroring again.
func (l *Loop) SetGraphMirror(graph GraphMirror) {
	l.graph = graph
}

// SyncPeers returns the peers this loop should exchange with this run,
// per the configured topology.
func (l *Loop) SyncPeers() []*model.Peer {
	switch l.config.Topology {
	case TopologyHubSpoke:
		if l.config.HubPeerID != "" {
			hub, err := l.registry.Get(l.config.HubPeerID)
			if err != nil || hub.Status != model.PeerOnline {
				return nil
			}
			return []*model.Peer{hub}
		}
		return l.registry.Healthy() // this instance is the hub
	default: // mesh
		return l.registry.Healthy()
	}
}

// SyncOnce runs one push/pull exchange against every current sync peer,
// collecting a combined summary. A failure exchanging with one peer is
// recorded in Summary.Errors and does not abort the remaining peers.
func (l *Loop) SyncOnce(ctx context.Context) Summary {
	peers := l.SyncPeers()
	summary := Summary{Peers: len(peers), Status: "ok"}

	for _, peer := range peers {
		if l.config.Mode == ModePush || l.config.Mode == ModeBidirectional {
			n, err := l.pushTo(ctx, peer)
			summary.Pushed += n
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("push to %s: %v", peer.ID, err))
			}
		}
		if l.config.Mode == ModePull || l.config.Mode == ModeBidirectional {
			n, c, err := l.pullFrom(ctx, peer)
			summary.Pulled += n
			summary.Conflicts += c
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("pull from %s: %v", peer.ID, err))
			}
		}
	}

	if len(summary.Errors) > 0 {
		summary.Status = "partial"
	}
	return summary
}

// pushTo replays tracked changes to peer since its last successful sync
// (or all tracked changes, when delta sync is disabled).
func (l *Loop) pushTo(ctx context.Context, peer *model.Peer) (int, error) {
	var since *model.Change
	if l.config.DeltaSyncEnabled && peer.LastSync != nil {
		since = &model.Change{Timestamp: *peer.LastSync}
	}
	changes := l.queue.Since(since)

	pushed := 0
	for _, change := range changes {
		if !CanReceive(peer, change.EntityType) {
			continue
		}
		if err := l.pushOne(ctx, peer, change); err != nil {
			return pushed, err
		}
		pushed++
		ts := change.Timestamp
		peer.LastSync = &ts
	}
	return pushed, nil
}

func (l *Loop) pushOne(ctx context.Context, peer *model.Peer, change model.Change) error {
	url := fmt.Sprintf("%s/%s/%s", peer.URL, entityPathSegment(change.EntityType), ident.Encode(change.EntityID))

	var method string
	switch change.Operation {
	case model.ChangeCreate:
		method = http.MethodPost
	case model.ChangeUpdate:
		method = http.MethodPut
	case model.ChangeDelete:
		method = http.MethodDelete
	default:
		return fmt.Errorf("unsupported change operation %q", change.Operation)
	}

	var body io.Reader
	if change.Operation != model.ChangeDelete {
		body = bytes.NewReader(change.Doc)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if change.Operation == model.ChangeUpdate && change.ETag != "" {
		req.Header.Set("If-Match", change.ETag)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("peer responded %d", resp.StatusCode)
	}
	return nil
}

// pullFrom compares peer's entity listing against local state, creating
// absent entities locally and handing ETag divergences to the conflict
// manager.
func (l *Loop) pullFrom(ctx context.Context, peer *model.Peer) (pulled, conflicts int, err error) {
	for _, entityType := range []model.ChangeEntityType{model.EntityAas, model.EntitySubmodel, model.EntityConceptDescription} {
		if !CanReceive(peer, entityType) {
			continue
		}
		remoteEntities, rerr := l.reader.ListRemoteCandidates(ctx, peer, entityType)
		if rerr != nil {
			return pulled, conflicts, rerr
		}

		for _, remote := range remoteEntities {
			localDoc, localETag, found, gerr := l.reader.GetLocal(ctx, entityType, remote.ID)
			if gerr != nil {
				return pulled, conflicts, gerr
			}
			if !found {
				doc, fetchErr := l.fetchRemoteDoc(ctx, peer, entityType, remote.ID)
				if fetchErr != nil {
					return pulled, conflicts, fetchErr
				}
				if cerr := l.reader.CreateLocal(ctx, entityType, doc); cerr != nil {
					return pulled, conflicts, cerr
				}
				l.mirrorEntity(ctx, entityType, doc)
				pulled++
				continue
			}
			if localETag == remote.ETag {
				continue
			}

			remoteDoc, fetchErr := l.fetchRemoteDoc(ctx, peer, entityType, remote.ID)
			if fetchErr != nil {
				return pulled, conflicts, fetchErr
			}

			l.conflicts.Record(model.Conflict{
				ID:         fmt.Sprintf("%s:%s:%s", peer.ID, entityType, remote.ID),
				PeerID:     peer.ID,
				EntityType: entityType,
				EntityID:   remote.ID,
				LocalDoc:   localDoc,
				LocalETag:  localETag,
				RemoteDoc:  remoteDoc,
				RemoteETag: remote.ETag,
				DetectedAt: time.Now(),
			})
			conflicts++
		}
	}
	return pulled, conflicts, nil
}

func (l *Loop) fetchRemoteDoc(ctx context.Context, peer *model.Peer, entityType model.ChangeEntityType, entityID string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s", peer.URL, entityPathSegment(entityType), ident.Encode(entityID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("peer responded %d fetching %s/%s", resp.StatusCode, entityType, entityID)
	}
	return io.ReadAll(resp.Body)
}

// mirrorEntity records doc's reference edges into the attached graph
// mirror, if any. Unmarshal or mirror failures are swallowed: the graph is
// an optional, best-effort view, never a gate on federation sync itself.
func (l *Loop) mirrorEntity(ctx context.Context, entityType model.ChangeEntityType, doc []byte) {
	if l.graph == nil {
		return
	}
	switch entityType {
	case model.EntityAas:
		var shell model.Shell
		if err := json.Unmarshal(doc, &shell); err != nil {
			return
		}
		for _, ref := range shell.Submodels {
			submodelID := ref.LastKeyValue()
			if submodelID == "" {
				continue
			}
			_ = l.graph.MirrorShellSubmodel(ctx, shell.ID, model.Identifier(submodelID))
		}
	case model.EntitySubmodel:
		var sm model.Submodel
		if err := json.Unmarshal(doc, &sm); err != nil {
			return
		}
		_ = l.graph.MirrorSubmodelSemanticID(ctx, sm.ID, sm.SemanticID)
	}
}

func entityPathSegment(entityType model.ChangeEntityType) string {
	switch entityType {
	case model.EntityAas:
		return "shells"
	case model.EntitySubmodel:
		return "submodels"
	case model.EntityConceptDescription:
		return "concept-descriptions"
	default:
		return string(entityType)
	}
}
