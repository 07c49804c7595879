package search

import "kasal/app/client/vectorsearch"

// MemoryType selects one of the four fixed record schemas sharing the query
// endpoint.
type MemoryType string

const (
	ShortTerm MemoryType = "short_term"
	LongTerm  MemoryType = "long_term"
	Entity    MemoryType = "entity"
	Document  MemoryType = "document"
)

func (m MemoryType) Valid() bool {
	switch m {
	case ShortTerm, LongTerm, Entity, Document:
		return true
	}
	return false
}

// Columns returns the memory type's column-position mapping. Order is
// significant: positional rows are decoded by zipping values against it.
func (m MemoryType) Columns() []string {
	switch m {
	case ShortTerm:
		return []string{"id", "content", "query_text", "session_id", "interaction_sequence", "timestamp", "crew_id", "agent_id", "metadata"}
	case LongTerm:
		return []string{"id", "content", "task_description", "task_hash", "quality", "importance", "timestamp", "crew_id", "agent_id", "metadata"}
	case Entity:
		return []string{"id", "entity_name", "entity_type", "description", "relationships", "attributes", "confidence_score", "timestamp", "crew_id", "agent_id"}
	case Document:
		return []string{"id", "content", "title", "source", "document_type", "section", "chunk_index", "created_at", "doc_metadata"}
	}
	return nil
}

type SearchRequest struct {
	IndexName   string
	MemoryType  MemoryType
	QueryVector []float32
	NumResults  int
	Filters     map[string]any
}

// Record is one decoded search hit. Whatever the memory type, it carries a
// stable id and a text projection used uniformly downstream.
type Record struct {
	ID         string
	Text       string
	MemoryType MemoryType
	Score      float64
	Fields     map[string]any
}

type SearchResponse struct {
	vectorsearch.Result

	Records []Record
	// populated for entity-type searches only
	Graph *EntityGraph
}

type GraphEntity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

type GraphRelationship struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Type     string  `json:"type"`
	Label    string  `json:"label"`
	Strength float64 `json:"strength"`
}

// EntityGraph is built once per query and discarded, never persisted here.
// Every relationship target resolves to an entity in Entities.
type EntityGraph struct {
	Entities      []GraphEntity       `json:"entities"`
	Relationships []GraphRelationship `json:"relationships"`
}

type SaveResponse struct {
	vectorsearch.Result

	SavedCount int
	IDs        []string
}

type DeleteResponse struct {
	vectorsearch.Result

	DeletedCount int
}
