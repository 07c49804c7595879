package index

import (
	"time"

	"kasal/app/client/vectorsearch"
)

// Identity uniquely identifies a remote index. Immutable once created.
type Identity struct {
	// Dot-qualified catalog.schema.table name
	Name string
	// Vector search endpoint serving the index
	EndpointName string
}

// Spec is the creation-time descriptor of a direct-access index. The remote
// API has no alter operation, schema changes require delete and recreate.
type Spec struct {
	PrimaryKey         string
	EmbeddingColumn    string
	EmbeddingDimension int
	SchemaDefinition   map[string]string
}

// Observation is a transient view of a remote index, produced fresh on
// every describe call. The remote system is the source of truth, so nothing
// here is ever cached across calls.
type Observation struct {
	vectorsearch.Result

	Identity           Identity
	State              vectorsearch.IndexState
	Ready              bool
	RowCount           uint64
	IndexedRowCount    uint64
	EmbeddingDimension int
	EmbeddingColumn    string
	PrimaryKey         string
	SchemaJSON         string
}

// EmptyStep marks how far an empty-via-recreate transaction progressed.
// Each transition's failure is reported distinctly so an operator can tell
// which side of the transaction did not complete.
type EmptyStep string

const (
	StepDescribed EmptyStep = "DESCRIBED"
	StepDeleted   EmptyStep = "DELETED"
	StepRecreated EmptyStep = "RECREATED"
	StepReady     EmptyStep = "READY"
	StepTimedOut  EmptyStep = "TIMED_OUT"
)

type EmptyResult struct {
	vectorsearch.Result

	// Furthest step that completed
	Step         EmptyStep
	DeletedCount uint64
}

type WaitResult struct {
	Success  bool
	Ready    bool
	State    vectorsearch.IndexState
	Elapsed  time.Duration
	Attempts int
	TimedOut bool
	Message  string
}
