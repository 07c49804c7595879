package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"kasal/app/client/vectorsearch"
	"kasal/app/config"

	"github.com/samber/do"
)

const (
	defaultEmbeddingColumn = "embedding"
	defaultPrimaryKey      = "id"
)

// Service orchestrates the lifecycle of direct-access vector indexes:
// create, describe, empty-via-recreate and poll-until-ready. It composes
// single-shot transport calls, retries and multi-step compensation live
// here and nowhere below.
type Service struct {
	cfg    *config.Config
	client *vectorsearch.Client

	// delete is eventually consistent remotely, recreation waits this long
	deleteGracePeriod time.Duration
	// bounded best-effort poll after recreation
	recreatePollAttempts int
	recreatePollInterval time.Duration
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:                  do.MustInvoke[*config.Config](di),
		client:               do.MustInvoke[*vectorsearch.Client](di),
		deleteGracePeriod:    5 * time.Second,
		recreatePollAttempts: 10,
		recreatePollInterval: 3 * time.Second,
	}, nil
}

// Create provisions a direct-access index and returns a fully populated
// observation. The creation response does not reliably carry readiness
// fields, so the observation comes from an immediate describe instead.
func (s *Service) Create(ctx context.Context, identity Identity, spec Spec) (*Observation, error) {
	req, err := buildCreateRequest(identity, spec)
	if err != nil {
		return nil, err
	}

	created, err := s.client.CreateIndex(ctx, *req)
	if err != nil {
		return nil, err
	}

	if !created.Success {
		return &Observation{
			Result:   created.Result,
			Identity: identity,
			State:    vectorsearch.StateUnknown,
		}, nil
	}

	slog.Info("Created vector index", "name", identity.Name, "endpoint", identity.EndpointName)

	obs, err := s.Describe(ctx, identity)
	if err != nil {
		return nil, err
	}

	// index exists even if the follow-up describe hiccuped
	obs.Success = true
	if obs.Message == "" {
		obs.Message = created.Message
	}
	return obs, nil
}

// Describe fetches the current state of an index. A missing index is a
// valid outcome reported as NOT_FOUND, distinct from a transport failure.
func (s *Service) Describe(ctx context.Context, identity Identity) (*Observation, error) {
	got, err := s.client.GetIndex(ctx, identity.Name)
	if err != nil {
		return nil, err
	}

	if got.NotFound {
		return &Observation{
			Result:   got.Result,
			Identity: identity,
			State:    vectorsearch.StateNotFound,
		}, nil
	}

	if !got.Success {
		return &Observation{
			Result:   got.Result,
			Identity: identity,
			State:    vectorsearch.StateUnknown,
		}, nil
	}

	return observe(identity, got), nil
}

func observe(identity Identity, got *vectorsearch.GetIndexResult) *Observation {
	payload := got.Index
	state := vectorsearch.Normalize(payload)

	obs := &Observation{
		Result:   got.Result,
		Identity: identity,
		State:    state,
		Ready:    state == vectorsearch.StateReady,
	}

	if payload == nil {
		return obs
	}

	obs.RowCount = payload.RowCount()
	obs.IndexedRowCount = payload.IndexedRows()
	obs.PrimaryKey = payload.PrimaryKey

	if spec := payload.DirectAccessIndexSpec; spec != nil {
		obs.SchemaJSON = spec.SchemaJSON
		if len(spec.EmbeddingVectorColumns) > 0 {
			obs.EmbeddingColumn = spec.EmbeddingVectorColumns[0].Name
			obs.EmbeddingDimension = spec.EmbeddingVectorColumns[0].EmbeddingDimension
		}
	}

	return obs
}

// Empty clears an index. Direct-access indexes have no bulk delete, so this
// is a compensating transaction: describe, delete, wait out the propagation
// grace period, recreate with the captured spec, then poll a bounded number
// of attempts. A recreated index that is not yet fully ready still counts
// as success, only full readiness is uncertain at that point.
func (s *Service) Empty(ctx context.Context, identity Identity, embeddingDimension int) (*EmptyResult, error) {
	obs, err := s.Describe(ctx, identity)
	if err != nil {
		return nil, err
	}

	if !obs.Success {
		return &EmptyResult{
			Result: vectorsearch.Result{
				Message: fmt.Sprintf("Cannot empty index %s: %s", identity.Name, obs.Message),
				Err:     obs.Err,
			},
		}, nil
	}

	deletedCount := obs.IndexedRowCount
	req, err := buildCreateRequest(identity, capturedSpec(obs, embeddingDimension))
	if err != nil {
		return nil, err
	}

	result := &EmptyResult{Step: StepDescribed, DeletedCount: deletedCount}

	deleted, err := s.client.DeleteIndex(ctx, identity.Name)
	if err != nil {
		return nil, err
	}
	if !deleted.Success {
		// do not recreate after a failed delete, the old index is still there
		result.Message = fmt.Sprintf("Delete failed for index %s: %s", identity.Name, deleted.Message)
		result.Err = deleted.Err
		return result, nil
	}
	result.Step = StepDeleted

	slog.Info("Deleted index for recreation",
		"name", identity.Name,
		"rows", deletedCount,
	)

	if err := sleepCtx(ctx, s.deleteGracePeriod); err != nil {
		return nil, err
	}

	recreated, err := s.client.CreateIndex(ctx, *req)
	if err != nil {
		return nil, err
	}
	if !recreated.Success {
		// known degraded state: the old index is gone and no new one exists
		result.Message = fmt.Sprintf("Recreation failed for index %s: %s", identity.Name, recreated.Message)
		result.Err = recreated.Err
		return result, nil
	}
	result.Step = StepRecreated

	for attempt := 0; attempt < s.recreatePollAttempts; attempt++ {
		check, err := s.Describe(ctx, identity)
		if err != nil {
			return nil, err
		}
		if check.Ready {
			result.Step = StepReady
			result.Success = true
			result.Message = fmt.Sprintf("Emptied index %s (%d records deleted)", identity.Name, deletedCount)
			return result, nil
		}

		if err := sleepCtx(ctx, s.recreatePollInterval); err != nil {
			return nil, err
		}
	}

	// best effort: the index exists, readiness may lag behind
	result.Step = StepTimedOut
	result.Success = true
	result.Message = fmt.Sprintf("Emptied index %s (%d records deleted), the index may take a moment to be fully ready", identity.Name, deletedCount)
	return result, nil
}

// WaitForReady polls until the index reports ready or maxWait elapses.
// Expiring the budget is a timeout, not an error: the index may still
// become ready later. Transient poll failures count as "not ready yet".
func (s *Service) WaitForReady(ctx context.Context, identity Identity, maxWait, checkInterval time.Duration) (*WaitResult, error) {
	start := time.Now()
	attempts := 0
	lastState := vectorsearch.StateUnknown

	for {
		elapsed := time.Since(start)
		if elapsed >= maxWait {
			return &WaitResult{
				Success:  false,
				Ready:    false,
				State:    lastState,
				Elapsed:  elapsed,
				Attempts: attempts,
				TimedOut: true,
				Message:  fmt.Sprintf("Index %s not ready after %s (%d attempts)", identity.Name, elapsed.Round(time.Millisecond), attempts),
			}, nil
		}

		attempts++

		obs, err := s.Describe(ctx, identity)
		if err != nil {
			return nil, err
		}

		if obs.Success {
			lastState = obs.State
		} else {
			slog.Warn("Poll attempt failed, treating as not ready",
				"name", identity.Name,
				"attempt", attempts,
				"message", obs.Message,
			)
		}

		ready := obs.Ready
		if !ready {
			// The two status sources have been seen to disagree while an
			// index comes online. A positive answer from the richer
			// describe is authoritative.
			second, err := s.Describe(ctx, identity)
			if err != nil {
				return nil, err
			}
			if second.Success && second.Ready {
				ready = true
				lastState = second.State
			}
		}

		if ready {
			return &WaitResult{
				Success:  true,
				Ready:    true,
				State:    lastState,
				Elapsed:  time.Since(start),
				Attempts: attempts,
				Message:  fmt.Sprintf("Index %s is ready", identity.Name),
			}, nil
		}

		// never oversleep the remaining budget
		sleep := checkInterval
		if remaining := maxWait - time.Since(start); remaining < sleep {
			sleep = remaining
		}
		if sleep > 0 {
			if err := sleepCtx(ctx, sleep); err != nil {
				return nil, err
			}
		}
	}
}

// capturedSpec rebuilds the creation spec from a describe response so an
// emptied index can be recreated faithfully. Missing embedding metadata is
// replaced by a single default column with the caller-supplied dimension.
func capturedSpec(obs *Observation, embeddingDimension int) Spec {
	spec := Spec{
		PrimaryKey:         obs.PrimaryKey,
		EmbeddingColumn:    obs.EmbeddingColumn,
		EmbeddingDimension: obs.EmbeddingDimension,
	}

	if spec.PrimaryKey == "" {
		spec.PrimaryKey = defaultPrimaryKey
	}
	if spec.EmbeddingColumn == "" {
		spec.EmbeddingColumn = defaultEmbeddingColumn
	}
	if spec.EmbeddingDimension == 0 {
		spec.EmbeddingDimension = embeddingDimension
	}

	if obs.SchemaJSON != "" {
		var schema map[string]string
		if err := json.Unmarshal([]byte(obs.SchemaJSON), &schema); err == nil {
			spec.SchemaDefinition = schema
		}
	}

	return spec
}

func buildCreateRequest(identity Identity, spec Spec) (*vectorsearch.CreateIndexRequest, error) {
	column := spec.EmbeddingColumn
	if column == "" {
		column = defaultEmbeddingColumn
	}

	primaryKey := spec.PrimaryKey
	if primaryKey == "" {
		primaryKey = defaultPrimaryKey
	}

	schemaJSON := "{}"
	if len(spec.SchemaDefinition) > 0 {
		data, err := json.Marshal(spec.SchemaDefinition)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema definition: %w", err)
		}
		schemaJSON = string(data)
	}

	return &vectorsearch.CreateIndexRequest{
		Name:         identity.Name,
		EndpointName: identity.EndpointName,
		PrimaryKey:   primaryKey,
		IndexType:    vectorsearch.IndexTypeDirectAccess,
		DirectAccessIndexSpec: &vectorsearch.DirectAccessIndexSpec{
			EmbeddingVectorColumns: []vectorsearch.EmbeddingVectorColumn{
				{Name: column, EmbeddingDimension: spec.EmbeddingDimension},
			},
			SchemaJSON: schemaJSON,
		},
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
