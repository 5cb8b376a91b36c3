package federation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"titan-aas/internal/model"
)

// ResolutionStrategy names a conflict resolution policy.
type ResolutionStrategy string

const (
	LastWriteWins    ResolutionStrategy = "lastWriteWins"
	LocalPreferred   ResolutionStrategy = "localPreferred"
	RemotePreferred  ResolutionStrategy = "remotePreferred"
)

// ApplyFunc persists the winning document (local or remote) for one
// conflict and emits the corresponding update event. The federation
// package has no repository/event dependency of its own; the caller
// supplies this so the conflict manager stays storage-agnostic.
type ApplyFunc func(conflict model.Conflict, winner Winner) error

// Winner identifies which side of a conflict a resolution picked.
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
)

// Manager tracks unresolved conflicts and applies resolution strategies to
// them.
type Manager struct {
	mu        sync.Mutex
	unresolved map[string]*model.Conflict
}

// NewManager builds an empty conflict manager.
func NewManager() *Manager {
	return &Manager{unresolved: make(map[string]*model.Conflict)}
}

// Record stores a newly detected conflict and returns it.
func (m *Manager) Record(conflict model.Conflict) *model.Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := conflict
	m.unresolved[c.ID] = &c
	return &c
}

// Unresolved returns every conflict awaiting resolution, optionally
// filtered to one peer.
func (m *Manager) Unresolved(peerID string) []model.Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Conflict
	for _, c := range m.unresolved {
		if peerID != "" && c.PeerID != peerID {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// Resolve applies strategy to one conflict by ID, invoking apply with the
// chosen winner and removing the conflict from the unresolved set on
// success.
func (m *Manager) Resolve(conflictID string, strategy ResolutionStrategy, resolvedBy string, apply ApplyFunc) error {
	m.mu.Lock()
	conflict, ok := m.unresolved[conflictID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("federation: conflict %q not found", conflictID)
	}
	return m.resolveOne(conflict, strategy, resolvedBy, apply)
}

// ResolveBatch applies strategy to every unresolved conflict, optionally
// filtered to one peer, stopping at the first apply error but leaving
// conflicts resolved before the failure marked resolved.
func (m *Manager) ResolveBatch(peerID string, strategy ResolutionStrategy, resolvedBy string, apply ApplyFunc) (int, error) {
	m.mu.Lock()
	var targets []*model.Conflict
	for _, c := range m.unresolved {
		if peerID != "" && c.PeerID != peerID {
			continue
		}
		targets = append(targets, c)
	}
	m.mu.Unlock()

	resolved := 0
	for _, c := range targets {
		if err := m.resolveOne(c, strategy, resolvedBy, apply); err != nil {
			return resolved, err
		}
		resolved++
	}
	return resolved, nil
}

func (m *Manager) resolveOne(conflict *model.Conflict, strategy ResolutionStrategy, resolvedBy string, apply ApplyFunc) error {
	winner, err := decideWinner(*conflict, strategy)
	if err != nil {
		return err
	}

	if err := apply(*conflict, winner); err != nil {
		return fmt.Errorf("federation: apply resolution for conflict %q: %w", conflict.ID, err)
	}

	now := time.Now()
	m.mu.Lock()
	conflict.ResolvedAt = &now
	conflict.ResolutionStrategy = string(strategy)
	conflict.ResolvedBy = resolvedBy
	delete(m.unresolved, conflict.ID)
	m.mu.Unlock()
	return nil
}

func decideWinner(conflict model.Conflict, strategy ResolutionStrategy) (Winner, error) {
	switch strategy {
	case LocalPreferred:
		return WinnerLocal, nil
	case RemotePreferred:
		return WinnerRemote, nil
	case LastWriteWins:
		return lastWriteWinsWinner(conflict), nil
	default:
		return "", fmt.Errorf("federation: unknown resolution strategy %q", strategy)
	}
}

// administrativeRevision is the subset of a Shell/Submodel/ConceptDescription
// document this package needs to compare revisions, decoded generically so
// the conflict manager does not depend on which of the three entity kinds
// the document represents.
type administrativeRevision struct {
	Administration *struct {
		Revision string `json:"revision"`
	} `json:"administration"`
}

// lastWriteWinsWinner picks the side with the later administration.revision;
// when revisions are equal (or absent on both sides) it tie-breaks on the
// lexicographically greater ETag, deterministically and without trusting
// wall-clock time from either side.
func lastWriteWinsWinner(conflict model.Conflict) Winner {
	localRev := extractRevision(conflict.LocalDoc)
	remoteRev := extractRevision(conflict.RemoteDoc)

	switch compareRevisions(localRev, remoteRev) {
	case 1:
		return WinnerLocal
	case -1:
		return WinnerRemote
	}

	if conflict.LocalETag > conflict.RemoteETag {
		return WinnerLocal
	}
	return WinnerRemote
}

func extractRevision(doc []byte) string {
	var rev administrativeRevision
	if err := json.Unmarshal(doc, &rev); err != nil || rev.Administration == nil {
		return ""
	}
	return rev.Administration.Revision
}

// compareRevisions returns 1 if a > b, -1 if a < b, 0 if equal or
// incomparable. Revisions are compared numerically when both parse as
// integers (AAS revision strings are conventionally numeric), falling back
// to a lexicographic comparison otherwise.
func compareRevisions(a, b string) int {
	if a == "" && b == "" {
		return 0
	}
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)
	if aerr == nil && berr == nil {
		switch {
		case an > bn:
			return 1
		case an < bn:
			return -1
		default:
			return 0
		}
	}
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}
