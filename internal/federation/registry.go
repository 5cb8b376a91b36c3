// Package federation implements peer-to-peer replication between Titan
// instances: a peer registry with health probing, a bounded change queue,
// a push/pull/bidirectional sync loop over mesh or hub-spoke topology, and
// a conflict manager with pluggable resolution strategies.
//
// Unlike registry.Registry this registry is constructed explicitly per
// server instance — there is no package-level DefaultRegistry/sync.Once
// singleton. A federation peer set is server-local configuration, not a
// process-wide resource multiple unrelated call sites should share, and a
// singleton would make two servers in the same test binary bleed peers
// into each other.
package federation

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"titan-aas/internal/model"
)

// probeRateLimit caps how many health probes the registry issues per
// second across all peers combined, so CheckHealthAll against a large peer
// set cannot burst a flood of outbound requests at once.
const probeRateLimit = 20

// Registry tracks every known federation peer and its last observed
// health, guarded by a single mutex the way registry.Registry guards its
// service map.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*model.Peer

	httpClient   *http.Client
	probeLimiter *rate.Limiter
}

// NewRegistry builds an empty peer registry. httpClient is used for health
// probes; if nil, a client with a 5s timeout is used (matching the
// timeout registry.Registry.HealthCheck uses for its probe).
func NewRegistry(httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &Registry{
		peers:        make(map[string]*model.Peer),
		httpClient:   httpClient,
		probeLimiter: rate.NewLimiter(rate.Limit(probeRateLimit), probeRateLimit),
	}
}

// Upsert adds or replaces a peer.
func (r *Registry) Upsert(p *model.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID] = p
}

// Remove deletes a peer from the registry.
func (r *Registry) Remove(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, peerID)
}

// Get returns one peer by ID.
func (r *Registry) Get(peerID string) (*model.Peer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerID]
	if !ok {
		return nil, fmt.Errorf("federation: peer %q not registered", peerID)
	}
	return p, nil
}

// List returns every registered peer.
func (r *Registry) List() []*model.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Healthy returns every peer whose Status is online.
func (r *Registry) Healthy() []*model.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Peer
	for _, p := range r.peers {
		if p.Status == model.PeerOnline {
			out = append(out, p)
		}
	}
	return out
}

// CheckHealth probes peer's health endpoint ("<url>/health") and updates
// its Status and LastSeen in place. A non-2xx response or a transport
// error marks the peer offline; it never removes the peer. The probe is
// throttled by the registry's shared rate limiter, so a caller probing
// peers in a tight loop cannot outrun probeRateLimit.
func (r *Registry) CheckHealth(ctx context.Context, peer *model.Peer) {
	if err := r.probeLimiter.Wait(ctx); err != nil {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peer.URL+"/health", nil)
	now := time.Now()
	if err != nil {
		r.markStatus(peer.ID, model.PeerOffline, &now)
		return
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.markStatus(peer.ID, model.PeerOffline, &now)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		r.markStatus(peer.ID, model.PeerOnline, &now)
		return
	}
	r.markStatus(peer.ID, model.PeerOffline, &now)
}

// CheckHealthAll probes every registered peer concurrently.
func (r *Registry) CheckHealthAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range r.List() {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckHealth(ctx, p)
		}()
	}
	wg.Wait()
}

func (r *Registry) markStatus(peerID string, status model.PeerStatus, seenAt *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[peerID]
	if !ok {
		return
	}
	p.Status = status
	p.LastSeen = seenAt
}

// CanReceive reports whether peer advertises the capability required for
// entityType, guarding push targets the way registry.Registry's
// FindByCapability guards routing.
func CanReceive(peer *model.Peer, entityType model.ChangeEntityType) bool {
	switch entityType {
	case model.EntityAas:
		return peer.Capabilities.ShellRepository
	case model.EntitySubmodel:
		return peer.Capabilities.SubmodelRepository
	case model.EntityConceptDescription:
		return peer.Capabilities.ConceptDescriptions
	default:
		return false
	}
}
