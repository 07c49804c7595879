package memory

import "kasal/app/service/search"

// Fixed schema definitions per memory type. These are the only schemas the
// system ever creates, changing one requires delete and recreate of the
// index.
var schemas = map[search.MemoryType]map[string]string{
	search.ShortTerm: {
		"id":                   "string",
		"content":              "string",
		"query_text":           "string",
		"session_id":           "string",
		"interaction_sequence": "int",
		"timestamp":            "string",
		"crew_id":              "string",
		"agent_id":             "string",
		"metadata":             "string",
		"embedding":            "array<float>",
	},
	search.LongTerm: {
		"id":               "string",
		"content":          "string",
		"task_description": "string",
		"task_hash":        "string",
		"quality":          "double",
		"importance":       "double",
		"timestamp":        "string",
		"crew_id":          "string",
		"agent_id":         "string",
		"metadata":         "string",
		"embedding":        "array<float>",
	},
	search.Entity: {
		"id":               "string",
		"entity_name":      "string",
		"entity_type":      "string",
		"description":      "string",
		"relationships":    "string",
		"attributes":       "string",
		"confidence_score": "double",
		"timestamp":        "string",
		"crew_id":          "string",
		"agent_id":         "string",
		"embedding":        "array<float>",
	},
	search.Document: {
		"id":            "string",
		"content":       "string",
		"title":         "string",
		"source":        "string",
		"document_type": "string",
		"section":       "string",
		"chunk_index":   "int",
		"created_at":    "string",
		"doc_metadata":  "string",
		"embedding":     "array<float>",
	},
}

// default table names used by ProvisionAll
var defaultTables = map[search.MemoryType]string{
	search.ShortTerm: "short_term_memory",
	search.LongTerm:  "long_term_memory",
	search.Entity:    "entity_memory",
	search.Document:  "document_memory",
}

func schemaFor(memoryType search.MemoryType) map[string]string {
	return schemas[memoryType]
}
