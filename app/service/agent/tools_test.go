package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"kasal/app/client/vectorsearch"
	"kasal/app/config"
	"kasal/app/service/index"
	"kasal/app/service/memory"
	"kasal/app/service/search"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgentService(t *testing.T, handler http.Handler) *Service {
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
			EmbeddingDimension: 4,
		},
		Memory: config.Memory{
			ShortTermIndex: "ml.agents.short_term_memory",
			EntityIndex:    "ml.agents.entity_memory",
		},
	}

	di := do.New()
	t.Cleanup(func() { _ = di.Shutdown() })
	do.ProvideValue(di, cfg)
	do.Provide(di, vectorsearch.NewClient)
	do.Provide(di, index.New)
	do.Provide(di, search.New)
	do.Provide(di, memory.New)

	svc, err := New(di)
	require.NoError(t, err)
	return svc
}

func TestToolsExposeMemoryOperations(t *testing.T) {
	svc := newTestAgentService(t, http.NotFoundHandler())

	names := make([]string, 0)
	for _, tool := range svc.Tools() {
		names = append(names, tool.Name())
	}

	assert.ElementsMatch(t, names, []string{
		"memory_search", "memory_save", "memory_entity_graph", "memory_index_status",
	})
}

func TestSearchTool(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"row_count": 1, "data_array": [
			["m1","remembered text","","",1,"","","","{}",0.9]
		]}}`))
	})

	svc := newTestAgentService(t, handler)

	out, err := svc.searchTool(context.Background(), `{
		"memory_type": "short_term",
		"query_vector": [0.1, 0.2, 0.3, 0.4],
		"num_results": 3
	}`)
	require.NoError(t, err)

	var hits []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0]["id"])
	assert.Equal(t, "remembered text", hits[0]["text"])
}

func TestSearchToolUnconfiguredIndex(t *testing.T) {
	svc := newTestAgentService(t, http.NotFoundHandler())

	_, err := svc.searchTool(context.Background(), `{
		"memory_type": "long_term",
		"query_vector": [0.1]
	}`)
	require.Error(t, err)
}

func TestSaveTool(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	svc := newTestAgentService(t, handler)

	out, err := svc.saveTool(context.Background(), `{
		"memory_type": "short_term",
		"records": [{"content": "new fact"}]
	}`)
	require.NoError(t, err)
	assert.Equal(t, "saved 1 records", out)
}

func TestSaveToolRejectsInvalidJSON(t *testing.T) {
	svc := newTestAgentService(t, http.NotFoundHandler())

	_, err := svc.saveTool(context.Background(), `not json`)
	require.Error(t, err)
}
