package memory

import (
	"kasal/app/client/vectorsearch"
	"kasal/app/config"
	"kasal/app/service/search"
)

// CreateIndexResponse reports a provisioned index. The caller applies it to
// its own config instead of this service mutating shared state behind its
// back.
type CreateIndexResponse struct {
	vectorsearch.Result

	MemoryType   search.MemoryType
	IndexName    string
	EndpointName string
	State        vectorsearch.IndexState
	Ready        bool
}

// Apply records the created index name in the config, only on unambiguous
// success. The config object is owned by the caller, who must serialize
// concurrent access to it.
func (r *CreateIndexResponse) Apply(mem *config.Memory) {
	if !r.Success || r.IndexName == "" {
		return
	}

	switch r.MemoryType {
	case search.ShortTerm:
		mem.ShortTermIndex = r.IndexName
	case search.LongTerm:
		mem.LongTermIndex = r.IndexName
	case search.Entity:
		mem.EntityIndex = r.IndexName
	case search.Document:
		mem.DocumentIndex = r.IndexName
	}
}

type ProvisionResult struct {
	Created []CreateIndexResponse
	Skipped []string
}
