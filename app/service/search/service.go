package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"kasal/app/client/vectorsearch"
	"kasal/app/config"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

// Service is the query and mutation facade over memory indexes: similarity
// search with per-memory-type row decoding, entity-graph extraction, and
// upsert/delete passthroughs.
type Service struct {
	cfg    *config.Config
	client *vectorsearch.Client

	inferEntityType EntityTypeHeuristic
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:             do.MustInvoke[*config.Config](di),
		client:          do.MustInvoke[*vectorsearch.Client](di),
		inferEntityType: defaultEntityType,
	}, nil
}

// Search runs one similarity search and decodes the hits into records. For
// entity searches the response also carries the extracted entity graph.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if !req.MemoryType.Valid() {
		return nil, oops.Errorf("unknown memory type: %s", req.MemoryType)
	}

	query := vectorsearch.QueryRequest{
		QueryVector: req.QueryVector,
		Columns:     req.MemoryType.Columns(),
		NumResults:  req.NumResults,
		Filters:     req.Filters,
	}

	result, err := s.client.QueryIndex(ctx, req.IndexName, query)
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return &SearchResponse{Result: result.Result}, nil
	}

	rows := result.Rows()

	if len(rows) == 0 && len(req.Filters) > 0 {
		s.logUnfilteredDiagnostic(ctx, req)
	}

	records := decodeRows(rows, req.MemoryType)

	response := &SearchResponse{
		Result:  result.Result,
		Records: records,
	}

	if req.MemoryType == Entity {
		response.Graph = extractEntityGraph(records, s.inferEntityType)
	}

	return response, nil
}

// logUnfilteredDiagnostic re-runs the query without filters purely for
// visibility when a filtered search comes back empty. Its result is only
// observed, never returned.
func (s *Service) logUnfilteredDiagnostic(ctx context.Context, req SearchRequest) {
	diag, err := s.client.QueryIndex(ctx, req.IndexName, vectorsearch.QueryRequest{
		QueryVector: req.QueryVector,
		Columns:     req.MemoryType.Columns(),
		NumResults:  req.NumResults,
	})
	if err != nil || !diag.Success {
		return
	}

	slog.Debug("Filtered search returned no rows",
		"index", req.IndexName,
		"memory_type", req.MemoryType,
		"filters", req.Filters,
		"unfiltered_rows", len(diag.Rows()),
	)
}

// Save upserts records, synthesizing a uuid id and an RFC3339 timestamp for
// any record missing them.
func (s *Service) Save(ctx context.Context, indexName string, memoryType MemoryType, records []map[string]any) (*SaveResponse, error) {
	if !memoryType.Valid() {
		return nil, oops.Errorf("unknown memory type: %s", memoryType)
	}

	timestampColumn := "timestamp"
	if memoryType == Document {
		timestampColumn = "created_at"
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		id, _ := record["id"].(string)
		if id == "" {
			id = uuid.NewString()
			record["id"] = id
		}
		ids = append(ids, id)

		if ts, _ := record[timestampColumn].(string); ts == "" {
			record[timestampColumn] = time.Now().UTC().Format(time.RFC3339)
		}
	}

	result, err := s.client.UpsertRecords(ctx, indexName, records)
	if err != nil {
		return nil, err
	}

	return &SaveResponse{
		Result:     result.Result,
		SavedCount: result.UpsertedCount,
		IDs:        ids,
	}, nil
}

// Delete removes records by primary key.
func (s *Service) Delete(ctx context.Context, indexName string, ids []string) (*DeleteResponse, error) {
	result, err := s.client.DeleteRecords(ctx, indexName, ids)
	if err != nil {
		return nil, err
	}

	return &DeleteResponse{
		Result:       result.Result,
		DeletedCount: result.DeletedCount,
	}, nil
}

// DeleteAll purges an index record by record: one wide query for primary
// keys, then a single delete-data call. Cheaper than the delete/recreate
// cycle when the index should stay online.
func (s *Service) DeleteAll(ctx context.Context, indexName string, memoryType MemoryType) (*DeleteResponse, error) {
	if !memoryType.Valid() {
		return nil, oops.Errorf("unknown memory type: %s", memoryType)
	}

	// zero vector: ranking is irrelevant, only the keys matter
	probe := make([]float32, s.cfg.Databricks.EmbeddingDimension)

	result, err := s.client.QueryIndex(ctx, indexName, vectorsearch.QueryRequest{
		QueryVector: probe,
		Columns:     []string{"id"},
		NumResults:  10000,
	})
	if err != nil {
		return nil, err
	}

	if !result.Success {
		return &DeleteResponse{Result: result.Result}, nil
	}

	var ids []string
	for _, raw := range result.Rows() {
		var values []any
		if err := json.Unmarshal(raw, &values); err == nil {
			if len(values) > 0 {
				if id, ok := values[0].(string); ok && id != "" {
					ids = append(ids, id)
				}
			}
			continue
		}

		var object map[string]any
		if err := json.Unmarshal(raw, &object); err == nil {
			if id, ok := object["id"].(string); ok && id != "" {
				ids = append(ids, id)
			}
		}
	}

	return s.Delete(ctx, indexName, ids)
}
