package relstore

import "time"

// ArtifactRevision mirrors the artifact_revision table (spec.md §3).
type ArtifactRevision struct {
	ArtifactUID     string
	RevisionID      string
	ArtifactID      string
	ArtifactType    string
	SourceSystem    string
	SourceID        string
	SourceTS        *time.Time
	ContentHash     string
	TokenCount      int
	IsChunked       bool
	ChunkCount      int
	Sensitivity     string
	VisibilityScope string
	RetentionPolicy string
	IsLatest        bool
	IngestedAt      time.Time
}

// Job status values (event_jobs.status).
const (
	JobPending    = "PENDING"
	JobProcessing = "PROCESSING"
	JobDone       = "DONE"
	JobFailed     = "FAILED"
)

const JobTypeExtractEvents = "extract_events"

// Job mirrors the event_jobs table.
type Job struct {
	JobID             string
	ArtifactUID       string
	RevisionID        string
	JobType           string
	Status            string
	Attempts          int
	MaxAttempts       int
	NextRunAt         time.Time
	LockedAt          *time.Time
	LockedBy          string
	LastErrorCode     string
	LastErrorMessage  string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Event mirrors semantic_event plus its joined actor/subject/evidence rows.
type Event struct {
	EventID          string
	ArtifactUID      string
	RevisionID       string
	Category         string
	EventTime        *time.Time
	Narrative        string
	SubjectType      string
	SubjectRef       string
	Confidence       float64
	ExtractionRunID  string
	CreatedAt        time.Time

	// SubjectEntityID is the resolved entity_id backing SubjectRef, written
	// to event_subject alongside the event. Empty when the subject could
	// not be resolved to an entity (still carried on the event as text via
	// SubjectRef).
	SubjectEntityID string

	Actors   []Actor
	Evidence []Evidence
}

// Actor mirrors one event_actor row joined to its entity.
type Actor struct {
	EntityID string
	Ref      string
	Role     string
}

// Evidence mirrors one event_evidence row.
type Evidence struct {
	EvidenceID  string
	EventID     string
	ArtifactUID string
	RevisionID  string
	ChunkID     string
	StartChar   int
	EndChar     int
	Quote       string
}

// Entity mirrors the entity table.
type Entity struct {
	EntityID     string
	EntityType   string
	CanonicalName string
	NormalizedName string
	Role         string
	Organization string
	Email        string
	FirstUID     string
	FirstRev     string
	NeedsReview  bool
	CreatedAt    time.Time
}
