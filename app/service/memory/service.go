package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kasal/app/client/vectorsearch"
	"kasal/app/config"
	"kasal/app/service/index"
	"kasal/app/service/search"

	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// Service is the top-level memory index management API: index naming,
// per-memory-type endpoint and schema selection, provisioning and the
// empty/wait passthroughs.
type Service struct {
	cfg      *config.Config
	client   *vectorsearch.Client
	indexSvc *index.Service
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:      do.MustInvoke[*config.Config](di),
		client:   do.MustInvoke[*vectorsearch.Client](di),
		indexSvc: do.MustInvoke[*index.Service](di),
	}, nil
}

// endpointFor picks the document-optimized endpoint for document indexes
// when one is configured, the default endpoint otherwise.
func (s *Service) endpointFor(memoryType search.MemoryType) string {
	if memoryType == search.Document && s.cfg.Databricks.DocEndpoint != "" {
		return s.cfg.Databricks.DocEndpoint
	}
	return s.cfg.Databricks.Endpoint
}

func (s *Service) embeddingDimension() int {
	if s.cfg.Databricks.EmbeddingDimension > 0 {
		return s.cfg.Databricks.EmbeddingDimension
	}
	return config.DefaultEmbeddingDimension
}

// IndexNameFor resolves the configured index name of a memory type.
func (s *Service) IndexNameFor(memoryType search.MemoryType) (string, error) {
	var name string
	switch memoryType {
	case search.ShortTerm:
		name = s.cfg.Memory.ShortTermIndex
	case search.LongTerm:
		name = s.cfg.Memory.LongTermIndex
	case search.Entity:
		name = s.cfg.Memory.EntityIndex
	case search.Document:
		name = s.cfg.Memory.DocumentIndex
	default:
		return "", oops.Errorf("unknown memory type: %s", memoryType)
	}

	if name == "" {
		return "", oops.Errorf("no %s index configured: set memory.%s_index or provision one", memoryType, memoryType)
	}
	return name, nil
}

// CreateIndex provisions a memory index named catalog.schema.table and
// returns the result for the caller to apply to its config.
func (s *Service) CreateIndex(ctx context.Context, memoryType search.MemoryType, catalog, schema, tableName string) (*CreateIndexResponse, error) {
	if !memoryType.Valid() {
		return nil, oops.Errorf("unknown memory type: %s", memoryType)
	}
	if catalog == "" || schema == "" || tableName == "" {
		return nil, oops.Errorf("catalog, schema and table name are required")
	}

	identity := index.Identity{
		Name:         fmt.Sprintf("%s.%s.%s", catalog, schema, tableName),
		EndpointName: s.endpointFor(memoryType),
	}

	spec := index.Spec{
		PrimaryKey:         "id",
		EmbeddingColumn:    "embedding",
		EmbeddingDimension: s.embeddingDimension(),
		SchemaDefinition:   schemaFor(memoryType),
	}

	obs, err := s.indexSvc.Create(ctx, identity, spec)
	if err != nil {
		return nil, err
	}

	response := &CreateIndexResponse{
		Result:     obs.Result,
		MemoryType: memoryType,
	}

	if !obs.Success {
		return response, nil
	}

	response.IndexName = identity.Name
	response.EndpointName = identity.EndpointName
	response.State = obs.State
	response.Ready = obs.Ready

	slog.Info("Provisioned memory index",
		"memory_type", memoryType,
		"name", identity.Name,
		"endpoint", identity.EndpointName,
		"state", obs.State,
	)

	return response, nil
}

// DescribeIndex reports the current observation of a memory type's index.
func (s *Service) DescribeIndex(ctx context.Context, memoryType search.MemoryType) (*index.Observation, error) {
	name, err := s.IndexNameFor(memoryType)
	if err != nil {
		return nil, err
	}

	return s.indexSvc.Describe(ctx, index.Identity{
		Name:         name,
		EndpointName: s.endpointFor(memoryType),
	})
}

// EmptyIndex clears the configured index of a memory type via the
// delete-and-recreate cycle.
func (s *Service) EmptyIndex(ctx context.Context, memoryType search.MemoryType) (*index.EmptyResult, error) {
	name, err := s.IndexNameFor(memoryType)
	if err != nil {
		return nil, err
	}

	return s.indexSvc.Empty(ctx, index.Identity{
		Name:         name,
		EndpointName: s.endpointFor(memoryType),
	}, s.embeddingDimension())
}

// WaitForReady blocks until the configured index of a memory type reports
// ready or the budget runs out.
func (s *Service) WaitForReady(ctx context.Context, memoryType search.MemoryType, maxWait, checkInterval time.Duration) (*index.WaitResult, error) {
	name, err := s.IndexNameFor(memoryType)
	if err != nil {
		return nil, err
	}

	return s.indexSvc.WaitForReady(ctx, index.Identity{
		Name:         name,
		EndpointName: s.endpointFor(memoryType),
	}, maxWait, checkInterval)
}

// ProvisionAll creates the index of every memory type under the configured
// catalog and schema, skipping ones that already exist on their endpoint.
// Creations run concurrently, results are returned for the caller to apply.
func (s *Service) ProvisionAll(ctx context.Context) (*ProvisionResult, error) {
	existing := make(map[string]bool)

	endpoints := map[string]bool{s.cfg.Databricks.Endpoint: true}
	if s.cfg.Databricks.DocEndpoint != "" {
		endpoints[s.cfg.Databricks.DocEndpoint] = true
	}

	for endpoint := range endpoints {
		listed, err := s.client.ListIndexes(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if !listed.Success {
			slog.Warn("Could not list indexes, assuming none exist",
				"endpoint", endpoint,
				"message", listed.Message,
			)
			continue
		}
		for _, idx := range listed.Indexes {
			existing[idx.Name] = true
		}
	}

	result := &ProvisionResult{}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)

	for _, memoryType := range []search.MemoryType{search.ShortTerm, search.LongTerm, search.Entity, search.Document} {
		name := fmt.Sprintf("%s.%s.%s", s.cfg.Databricks.Catalog, s.cfg.Databricks.Schema, defaultTables[memoryType])

		if existing[name] {
			mu.Lock()
			result.Skipped = append(result.Skipped, name)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			created, err := s.CreateIndex(ctx, memoryType, s.cfg.Databricks.Catalog, s.cfg.Databricks.Schema, defaultTables[memoryType])
			if err != nil {
				return err
			}

			mu.Lock()
			result.Created = append(result.Created, *created)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}
