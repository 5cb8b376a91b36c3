package model

import "time"

// PeerStatus reflects the last observed health of a federation peer.
type PeerStatus string

const (
	PeerOnline   PeerStatus = "online"
	PeerOffline  PeerStatus = "offline"
	PeerDegraded PeerStatus = "degraded"
)

// PeerCapabilities gates which entity types may be pushed to a peer.
type PeerCapabilities struct {
	ShellRepository      bool `json:"shellRepository"`
	SubmodelRepository    bool `json:"submodelRepository"`
	ConceptDescriptions  bool `json:"conceptDescriptions"`
	AASXPackages         bool `json:"aasxPackages"`
	EventSubscription    bool `json:"eventSubscription"`
	ConflictResolution   bool `json:"conflictResolution"`
}

// Peer is one federation counterpart instance.
type Peer struct {
	ID           string           `json:"id"`
	URL          string           `json:"url"`
	Name         string           `json:"name,omitempty"`
	Status       PeerStatus       `json:"status"`
	Capabilities PeerCapabilities `json:"capabilities"`
	LastSeen     *time.Time       `json:"lastSeen,omitempty"`
	LastSync     *time.Time       `json:"lastSync,omitempty"`
	Version      string           `json:"version,omitempty"`
}

// ChangeOp enumerates the mutation kinds tracked by the federation change
// queue.
type ChangeOp string

const (
	ChangeCreate ChangeOp = "create"
	ChangeUpdate ChangeOp = "update"
	ChangeDelete ChangeOp = "delete"
)

// ChangeEntityType names the kind of entity a Change/Conflict/Event refers
// to. Distinct from the AAS Entity element's EntityType (SelfManagedEntity/
// CoManagedEntity).
type ChangeEntityType string

const (
	EntityAas                ChangeEntityType = "aas"
	EntitySubmodel           ChangeEntityType = "submodel"
	EntityElement            ChangeEntityType = "element"
	EntityConceptDescription ChangeEntityType = "concept_description"
)

// Change is one federation delta record, replayed to peers during push sync.
type Change struct {
	ID         string           `json:"id"`
	EntityType ChangeEntityType `json:"entityType"`
	EntityID   string           `json:"entityId"`
	Operation  ChangeOp         `json:"operation"`
	Doc        []byte           `json:"doc,omitempty"`
	ETag       string           `json:"etag,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Conflict records an unresolved ETag divergence discovered during a pull
// sync.
type Conflict struct {
	ID                 string           `json:"id"`
	PeerID             string           `json:"peerId"`
	EntityType         ChangeEntityType `json:"entityType"`
	EntityID           string           `json:"entityId"`
	LocalDoc           []byte           `json:"localDoc"`
	LocalETag          string           `json:"localEtag"`
	RemoteDoc          []byte           `json:"remoteDoc"`
	RemoteETag         string           `json:"remoteEtag"`
	DetectedAt         time.Time        `json:"detectedAt"`
	ResolvedAt         *time.Time       `json:"resolvedAt,omitempty"`
	ResolutionStrategy string           `json:"resolutionStrategy,omitempty"`
	ResolvedBy         string           `json:"resolvedBy,omitempty"`
}

// JobStatus is the lifecycle state of a queued job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
	JobDead      JobStatus = "dead"
)

// Job is one unit of asynchronous work on the Redis-backed job queue.
type Job struct {
	ID          string          `json:"id"`
	Task        string          `json:"task"`
	Payload     []byte          `json:"payload"`
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxRetries  int             `json:"maxRetries"`
	Priority    int             `json:"priority"`
	CreatedAt   time.Time       `json:"createdAt"`
	StartedAt   *time.Time      `json:"startedAt,omitempty"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Result      []byte          `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// AASXPackageRecord describes one ingested AASX package and its contents.
type AASXPackageRecord struct {
	PackageID               string    `json:"packageId"`
	Filename                 string    `json:"filename"`
	StorageURI               string    `json:"storageUri"`
	SizeBytes                int64     `json:"sizeBytes"`
	ContentHash              string    `json:"contentHash"`
	ShellCount                int       `json:"shellCount"`
	SubmodelCount             int       `json:"submodelCount"`
	ConceptDescriptionCount  int       `json:"conceptDescriptionCount"`
	PackageInfo               PackageInfo `json:"packageInfo"`
	Version                    int       `json:"version"`
	PreviousVersionID         string    `json:"previousVersionId,omitempty"`
	CreatedAt                  time.Time `json:"createdAt"`
	CreatedBy                  string    `json:"createdBy,omitempty"`
	VersionComment             string    `json:"versionComment,omitempty"`
}

// PackageInfo lists the identifiers an AASX package contributed.
type PackageInfo struct {
	ShellIDs              []string `json:"shellIds"`
	SubmodelIDs            []string `json:"submodelIds"`
	ConceptDescriptionIDs []string `json:"conceptDescriptionIds"`
}
