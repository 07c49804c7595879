package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"kasal/app/client/vectorsearch"
	"kasal/app/config"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdentity = Identity{
	Name:         "ml.agents.test_memory",
	EndpointName: "test-endpoint",
}

func newTestService(t *testing.T, handler http.Handler) *Service {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Databricks: config.Databricks{
			WorkspaceURL:       server.URL,
			Token:              "test-token",
			Endpoint:           "test-endpoint",
			Catalog:            "ml",
			Schema:             "agents",
			EmbeddingDimension: 1024,
		},
	}

	di := do.New()
	t.Cleanup(func() { _ = di.Shutdown() })
	do.ProvideValue(di, cfg)

	client, err := vectorsearch.NewClient(di)
	require.NoError(t, err)

	return &Service{
		cfg:                  cfg,
		client:               client,
		deleteGracePeriod:    time.Millisecond,
		recreatePollAttempts: 3,
		recreatePollInterval: time.Millisecond,
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

const readyPayload = `{
	"name": "ml.agents.test_memory",
	"endpoint_name": "test-endpoint",
	"primary_key": "id",
	"status": {"ready": true, "detailed_state": "ONLINE_DIRECT_ACCESS", "indexed_row_count": 42, "num_rows": 42},
	"direct_access_index_spec": {
		"embedding_vector_columns": [{"name": "embedding", "embedding_dimension": 1024}],
		"schema_json": "{\"id\":\"string\",\"content\":\"string\",\"embedding\":\"array<float>\"}"
	}
}`

const provisioningPayload = `{
	"name": "ml.agents.test_memory",
	"primary_key": "id",
	"status": {"ready": false, "detailed_state": "PROVISIONING"}
}`

func TestCreateReturnsObservationFromDescribe(t *testing.T) {
	var mu sync.Mutex
	var createBody map[string]any

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			mu.Lock()
			require.NoError(t, json.NewDecoder(r.Body).Decode(&createBody))
			mu.Unlock()
			writeJSON(w, http.StatusCreated, `{"name":"ml.agents.test_memory"}`)
		case r.Method == http.MethodGet:
			writeJSON(w, http.StatusOK, readyPayload)
		}
	})

	svc := newTestService(t, handler)

	obs, err := svc.Create(context.Background(), testIdentity, Spec{
		PrimaryKey:         "id",
		EmbeddingColumn:    "embedding",
		EmbeddingDimension: 1024,
		SchemaDefinition:   map[string]string{"id": "string"},
	})
	require.NoError(t, err)

	assert.True(t, obs.Success)
	assert.Equal(t, vectorsearch.StateReady, obs.State)
	assert.True(t, obs.Ready)
	assert.Equal(t, "id", obs.PrimaryKey)

	// the creation payload pins the direct-access variant and the embedding column
	assert.Equal(t, "DIRECT_ACCESS", createBody["index_type"])
	spec := createBody["direct_access_index_spec"].(map[string]any)
	columns := spec["embedding_vector_columns"].([]any)
	require.Len(t, columns, 1)
	column := columns[0].(map[string]any)
	assert.Equal(t, "embedding", column["name"])
	assert.Equal(t, float64(1024), column["embedding_dimension"])
}

func TestDescribeNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	svc := newTestService(t, handler)

	obs, err := svc.Describe(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, vectorsearch.StateNotFound, obs.State)
	assert.False(t, obs.Ready)
	assert.Zero(t, obs.RowCount)
}

func TestDescribeIdempotent(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, provisioningPayload)
	})

	svc := newTestService(t, handler)

	first, err := svc.Describe(context.Background(), testIdentity)
	require.NoError(t, err)
	second, err := svc.Describe(context.Background(), testIdentity)
	require.NoError(t, err)

	assert.Equal(t, first.State, second.State)
	assert.Equal(t, vectorsearch.StateProvisioning, first.State)
}

// fakeLifecycle scripts a delete-then-recreate control plane.
type fakeLifecycle struct {
	mu           sync.Mutex
	deleted      bool
	recreated    bool
	failDelete   bool
	failCreate   bool
	readyAfter   int // GETs after recreation before reporting ready, -1 means never
	getsAfter    int
	deleteCalls  int
	createCalls  int
	recreateBody map[string]any
}

func (f *fakeLifecycle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		if f.deleted && !f.recreated {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if f.recreated {
			f.getsAfter++
			if f.readyAfter >= 0 && f.getsAfter > f.readyAfter {
				writeJSON(w, http.StatusOK, readyPayload)
				return
			}
			writeJSON(w, http.StatusOK, provisioningPayload)
			return
		}
		writeJSON(w, http.StatusOK, readyPayload)

	case http.MethodDelete:
		f.deleteCalls++
		if f.failDelete {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.deleted = true
		w.WriteHeader(http.StatusOK)

	case http.MethodPost:
		f.createCalls++
		if f.failCreate {
			writeJSON(w, http.StatusInternalServerError, `{"message":"endpoint busy"}`)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&f.recreateBody)
		f.recreated = true
		writeJSON(w, http.StatusCreated, `{"name":"ml.agents.test_memory"}`)
	}
}

func TestEmptyHappyPath(t *testing.T) {
	fake := &fakeLifecycle{readyAfter: 0}
	svc := newTestService(t, fake)

	result, err := svc.Empty(context.Background(), testIdentity, 1024)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, StepReady, result.Step)
	assert.Equal(t, uint64(42), result.DeletedCount)

	// the captured spec round-trips through delete and recreate
	assert.Equal(t, "id", fake.recreateBody["primary_key"])
	spec := fake.recreateBody["direct_access_index_spec"].(map[string]any)
	columns := spec["embedding_vector_columns"].([]any)
	column := columns[0].(map[string]any)
	assert.Equal(t, "embedding", column["name"])
	assert.Equal(t, float64(1024), column["embedding_dimension"])
	assert.Contains(t, spec["schema_json"], `"content":"string"`)
}

func TestEmptyDeleteFailureAborts(t *testing.T) {
	fake := &fakeLifecycle{failDelete: true}
	svc := newTestService(t, fake)

	result, err := svc.Empty(context.Background(), testIdentity, 1024)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, StepDescribed, result.Step)
	assert.Contains(t, result.Message, "Delete failed")

	// recreation must not be attempted after a failed delete
	assert.Zero(t, fake.createCalls)
}

func TestEmptyRecreationFailureReported(t *testing.T) {
	fake := &fakeLifecycle{failCreate: true}
	svc := newTestService(t, fake)

	result, err := svc.Empty(context.Background(), testIdentity, 1024)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, StepDeleted, result.Step)
	assert.Contains(t, result.Message, "Recreation failed")
}

func TestEmptyNeverReadyIsStillSuccess(t *testing.T) {
	fake := &fakeLifecycle{readyAfter: -1}
	svc := newTestService(t, fake)

	result, err := svc.Empty(context.Background(), testIdentity, 1024)
	require.NoError(t, err)

	// best effort: the index exists, only full readiness is uncertain
	assert.True(t, result.Success)
	assert.Equal(t, StepTimedOut, result.Step)
	assert.Equal(t, uint64(42), result.DeletedCount)
	assert.Contains(t, result.Message, "may take a moment")
}

func TestEmptyMissingIndexFailsWithoutSideEffects(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	svc := newTestService(t, handler)

	result, err := svc.Empty(context.Background(), testIdentity, 1024)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "Cannot empty index")
}

func TestWaitForReadyBoundedTermination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, provisioningPayload)
	})

	svc := newTestService(t, handler)

	start := time.Now()
	result, err := svc.WaitForReady(context.Background(), testIdentity, 100*time.Millisecond, 10*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.False(t, result.Ready)
	assert.True(t, result.TimedOut)
	assert.Greater(t, result.Attempts, 0)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForReadySecondarySourceWins(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		// primary poll sees a stale not-ready answer, the follow-up sees ready
		if n == 1 {
			writeJSON(w, http.StatusOK, provisioningPayload)
			return
		}
		writeJSON(w, http.StatusOK, readyPayload)
	})

	svc := newTestService(t, handler)

	result, err := svc.WaitForReady(context.Background(), testIdentity, time.Second, 10*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Ready)
	assert.Equal(t, 1, result.Attempts)
}

func TestWaitForReadyTransientErrorsContinue(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, readyPayload)
	})

	svc := newTestService(t, handler)

	result, err := svc.WaitForReady(context.Background(), testIdentity, time.Second, time.Millisecond)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.Ready)
}
