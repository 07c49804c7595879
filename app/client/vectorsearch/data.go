package vectorsearch

import "encoding/json"

// Result is the uniform envelope every control-plane operation returns.
// Remote failures land in Err/Message instead of a Go error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Err     string `json:"error,omitempty"`
}

func failure(message, err string) Result {
	return Result{Success: false, Message: message, Err: err}
}

func success(message string) Result {
	return Result{Success: true, Message: message}
}

type EmbeddingVectorColumn struct {
	Name               string `json:"name"`
	EmbeddingDimension int    `json:"embedding_dimension"`
}

type DirectAccessIndexSpec struct {
	EmbeddingVectorColumns []EmbeddingVectorColumn `json:"embedding_vector_columns"`
	SchemaJSON             string                  `json:"schema_json"`
}

type CreateIndexRequest struct {
	Name                  string                 `json:"name"`
	EndpointName          string                 `json:"endpoint_name"`
	PrimaryKey            string                 `json:"primary_key"`
	IndexType             string                 `json:"index_type"`
	DirectAccessIndexSpec *DirectAccessIndexSpec `json:"direct_access_index_spec,omitempty"`
}

// IndexStatus carries the readiness fields of a remote index. Any of them
// may be absent, state inference lives in Normalize.
type IndexStatus struct {
	State           string `json:"state,omitempty"`
	DetailedState   string `json:"detailed_state,omitempty"`
	Ready           *bool  `json:"ready,omitempty"`
	NumRows         uint64 `json:"num_rows,omitempty"`
	IndexedRowCount uint64 `json:"indexed_row_count,omitempty"`
}

// IndexPayload is the remote representation of an index. Older API versions
// return the status fields at the top level instead of under "status".
type IndexPayload struct {
	Name                  string                 `json:"name,omitempty"`
	EndpointName          string                 `json:"endpoint_name,omitempty"`
	PrimaryKey            string                 `json:"primary_key,omitempty"`
	IndexType             string                 `json:"index_type,omitempty"`
	Status                *IndexStatus           `json:"status,omitempty"`
	State                 string                 `json:"state,omitempty"`
	DetailedState         string                 `json:"detailed_state,omitempty"`
	Ready                 *bool                  `json:"ready,omitempty"`
	NumRows               uint64                 `json:"num_rows,omitempty"`
	IndexedRowCount       uint64                 `json:"indexed_row_count,omitempty"`
	DirectAccessIndexSpec *DirectAccessIndexSpec `json:"direct_access_index_spec,omitempty"`
}

// RowCount prefers num_rows and falls back to indexed_row_count.
func (p *IndexPayload) RowCount() uint64 {
	if p.Status != nil && p.Status.NumRows != 0 {
		return p.Status.NumRows
	}
	if p.NumRows != 0 {
		return p.NumRows
	}
	if p.Status != nil && p.Status.IndexedRowCount != 0 {
		return p.Status.IndexedRowCount
	}
	return p.IndexedRowCount
}

func (p *IndexPayload) IndexedRows() uint64 {
	if p.Status != nil && p.Status.IndexedRowCount != 0 {
		return p.Status.IndexedRowCount
	}
	return p.IndexedRowCount
}

type CreateIndexResult struct {
	Result
	Index *IndexPayload
}

type GetIndexResult struct {
	Result
	NotFound bool
	Index    *IndexPayload
}

type ListIndexesResult struct {
	Result
	Indexes []IndexPayload
}

type DeleteIndexResult struct {
	Result
	NotFound bool
}

type QueryRequest struct {
	QueryVector []float32      `json:"query_vector"`
	Columns     []string       `json:"columns"`
	NumResults  int            `json:"num_results"`
	Filters     map[string]any `json:"filters,omitempty"`
}

type QueryColumn struct {
	Name string `json:"name"`
}

type QueryManifest struct {
	ColumnCount int           `json:"column_count,omitempty"`
	Columns     []QueryColumn `json:"columns,omitempty"`
}

// QueryData keeps rows raw: the API returns either positional arrays or
// objects keyed by column name, callers decode per row.
type QueryData struct {
	RowCount  int               `json:"row_count,omitempty"`
	DataArray []json.RawMessage `json:"data_array,omitempty"`
}

type QueryResponse struct {
	Manifest *QueryManifest `json:"manifest,omitempty"`
	Result   *QueryData     `json:"result,omitempty"`
}

type QueryResult struct {
	Result
	Response *QueryResponse
}

func (q *QueryResult) Rows() []json.RawMessage {
	if q.Response == nil || q.Response.Result == nil {
		return nil
	}
	return q.Response.Result.DataArray
}

type UpsertResult struct {
	Result
	UpsertedCount int
}

type DeleteRecordsResult struct {
	Result
	DeletedCount int
}
