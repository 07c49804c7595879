package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"kasal/app/service/search"

	"github.com/tmc/langchaingo/tools"
)

type agentTool struct {
	name        string
	description string
	call        func(ctx context.Context, input string) (string, error)
}

func (m *agentTool) Name() string {
	return m.name
}

func (m *agentTool) Description() string {
	return m.description
}

func (m *agentTool) Call(ctx context.Context, input string) (string, error) {
	return m.call(ctx, input)
}

// Tools exposes the memory system as langchaingo tools.
func (s *Service) Tools() []tools.Tool {
	return []tools.Tool{
		&agentTool{
			name:        "memory_search",
			description: "Similarity search over agent memory. Input must be a JSON object with memory_type (short_term|long_term|entity|document), query_vector (float[]), and optional num_results (int) and filters (object) fields.",
			call:        s.searchTool,
		},
		&agentTool{
			name:        "memory_save",
			description: "Save records into agent memory. Input must be a JSON object with memory_type (string) and records (object[]) fields. Missing record ids and timestamps are generated.",
			call:        s.saveTool,
		},
		&agentTool{
			name:        "memory_entity_graph",
			description: "Query entity memory and return the extracted entity graph. Input must be a JSON object with query_vector (float[]) and optional num_results (int) fields.",
			call:        s.graphTool,
		},
		&agentTool{
			name:        "memory_index_status",
			description: "Report the readiness state of a memory index. Input must be a JSON object with memory_type (string) field.",
			call:        s.statusTool,
		},
	}
}

type searchToolInput struct {
	MemoryType  search.MemoryType `json:"memory_type"`
	QueryVector []float32         `json:"query_vector"`
	NumResults  int               `json:"num_results"`
	Filters     map[string]any    `json:"filters"`
}

func (s *Service) searchTool(ctx context.Context, input string) (string, error) {
	var req searchToolInput
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return "", fmt.Errorf("invalid search input JSON: %w", err)
	}

	indexName, err := s.memorySvc.IndexNameFor(req.MemoryType)
	if err != nil {
		return "", err
	}

	response, err := s.searchSvc.Search(ctx, search.SearchRequest{
		IndexName:   indexName,
		MemoryType:  req.MemoryType,
		QueryVector: req.QueryVector,
		NumResults:  req.NumResults,
		Filters:     req.Filters,
	})
	if err != nil {
		return "", err
	}

	if !response.Success {
		return "", fmt.Errorf("search failed: %s", response.Message)
	}

	out := make([]map[string]any, 0, len(response.Records))
	for _, record := range response.Records {
		out = append(out, map[string]any{
			"id":    record.ID,
			"text":  record.Text,
			"score": record.Score,
		})
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

type saveToolInput struct {
	MemoryType search.MemoryType `json:"memory_type"`
	Records    []map[string]any  `json:"records"`
}

func (s *Service) saveTool(ctx context.Context, input string) (string, error) {
	var req saveToolInput
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return "", fmt.Errorf("invalid save input JSON: %w", err)
	}

	indexName, err := s.memorySvc.IndexNameFor(req.MemoryType)
	if err != nil {
		return "", err
	}

	response, err := s.searchSvc.Save(ctx, indexName, req.MemoryType, req.Records)
	if err != nil {
		return "", err
	}

	if !response.Success {
		return "", fmt.Errorf("save failed: %s", response.Message)
	}

	return fmt.Sprintf("saved %d records", response.SavedCount), nil
}

type graphToolInput struct {
	QueryVector []float32 `json:"query_vector"`
	NumResults  int       `json:"num_results"`
}

func (s *Service) graphTool(ctx context.Context, input string) (string, error) {
	var req graphToolInput
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return "", fmt.Errorf("invalid graph input JSON: %w", err)
	}

	indexName, err := s.memorySvc.IndexNameFor(search.Entity)
	if err != nil {
		return "", err
	}

	response, err := s.searchSvc.Search(ctx, search.SearchRequest{
		IndexName:   indexName,
		MemoryType:  search.Entity,
		QueryVector: req.QueryVector,
		NumResults:  req.NumResults,
	})
	if err != nil {
		return "", err
	}

	if !response.Success {
		return "", fmt.Errorf("entity search failed: %s", response.Message)
	}

	encoded, err := json.Marshal(response.Graph)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

type statusToolInput struct {
	MemoryType search.MemoryType `json:"memory_type"`
}

func (s *Service) statusTool(ctx context.Context, input string) (string, error) {
	var req statusToolInput
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return "", fmt.Errorf("invalid status input JSON: %w", err)
	}

	obs, err := s.memorySvc.DescribeIndex(ctx, req.MemoryType)
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(map[string]any{
		"state":     obs.State,
		"ready":     obs.Ready,
		"row_count": obs.RowCount,
	})
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}
