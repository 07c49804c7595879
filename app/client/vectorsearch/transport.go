package vectorsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samber/oops"
)

const (
	// IndexTypeDirectAccess is the only index variant this system supports.
	IndexTypeDirectAccess = "DIRECT_ACCESS"

	maxNumResults     = 10000
	defaultNumResults = 10
)

// CreateIndex issues the create call. The returned Go error is non-nil only
// for programmer misuse.
func (c *Client) CreateIndex(ctx context.Context, req CreateIndexRequest) (*CreateIndexResult, error) {
	if req.Name == "" || req.EndpointName == "" {
		return nil, oops.Errorf("index name and endpoint name are required")
	}

	res := &CreateIndexResult{}

	rt, err := c.roundTrip(ctx, http.MethodPost, indexesPath, nil, req)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to create index %s: %v", req.Name, err), err.Error())
		return res, nil
	}

	if !rt.is(http.StatusOK, http.StatusCreated) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to create index %s: %s", req.Name, remote), remote)
		return res, nil
	}

	var payload IndexPayload
	if err := json.Unmarshal(rt.body, &payload); err == nil && payload.Name != "" {
		res.Index = &payload
	}

	res.Result = success(fmt.Sprintf("Index %s created", req.Name))
	return res, nil
}

// GetIndex fetches the current remote representation of an index. A 404 is
// reported via NotFound, not as a transport failure: callers branch on it.
func (c *Client) GetIndex(ctx context.Context, name string) (*GetIndexResult, error) {
	if name == "" {
		return nil, oops.Errorf("index name is required")
	}

	res := &GetIndexResult{}

	rt, err := c.roundTrip(ctx, http.MethodGet, indexPath(name), nil, nil)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to get index %s: %v", name, err), err.Error())
		return res, nil
	}

	if rt.status == http.StatusNotFound {
		res.NotFound = true
		res.Result = failure(fmt.Sprintf("Index %s not found", name), "")
		return res, nil
	}

	if !rt.is(http.StatusOK) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to get index %s: %s", name, remote), remote)
		return res, nil
	}

	var payload IndexPayload
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		res.Result = failure(fmt.Sprintf("Failed to decode index %s: %v", name, err), err.Error())
		return res, nil
	}

	res.Index = &payload
	res.Result = success(fmt.Sprintf("Index %s retrieved", name))
	return res, nil
}

// ListIndexes lists the indexes served by one endpoint.
func (c *Client) ListIndexes(ctx context.Context, endpointName string) (*ListIndexesResult, error) {
	if endpointName == "" {
		return nil, oops.Errorf("endpoint name is required")
	}

	res := &ListIndexesResult{}

	query := url.Values{}
	query.Set("endpoint_name", endpointName)

	rt, err := c.roundTrip(ctx, http.MethodGet, indexesPath, query, nil)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to list indexes on %s: %v", endpointName, err), err.Error())
		return res, nil
	}

	if !rt.is(http.StatusOK) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to list indexes on %s: %s", endpointName, remote), remote)
		return res, nil
	}

	var payload struct {
		VectorIndexes []IndexPayload `json:"vector_indexes"`
	}
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		res.Result = failure(fmt.Sprintf("Failed to decode index list: %v", err), err.Error())
		return res, nil
	}

	res.Indexes = payload.VectorIndexes
	res.Result = success(fmt.Sprintf("Listed %d indexes on %s", len(payload.VectorIndexes), endpointName))
	return res, nil
}

// DeleteIndex deletes an index. Deletion is physical and eventually
// consistent on the remote side.
func (c *Client) DeleteIndex(ctx context.Context, name string) (*DeleteIndexResult, error) {
	if name == "" {
		return nil, oops.Errorf("index name is required")
	}

	res := &DeleteIndexResult{}

	rt, err := c.roundTrip(ctx, http.MethodDelete, indexPath(name), nil, nil)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to delete index %s: %v", name, err), err.Error())
		return res, nil
	}

	if rt.status == http.StatusNotFound {
		res.NotFound = true
		res.Result = failure(fmt.Sprintf("Index %s not found", name), "")
		return res, nil
	}

	if !rt.is(http.StatusOK, http.StatusNoContent) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to delete index %s: %s", name, remote), remote)
		return res, nil
	}

	res.Result = success(fmt.Sprintf("Index %s deleted", name))
	return res, nil
}

// QueryIndex runs one similarity-search call. No client-side retry.
func (c *Client) QueryIndex(ctx context.Context, name string, req QueryRequest) (*QueryResult, error) {
	if name == "" {
		return nil, oops.Errorf("index name is required")
	}
	if len(req.QueryVector) == 0 {
		return nil, oops.Errorf("query vector is required")
	}

	if req.NumResults <= 0 {
		req.NumResults = defaultNumResults
	}
	if req.NumResults > maxNumResults {
		req.NumResults = maxNumResults
	}

	res := &QueryResult{}

	rt, err := c.roundTrip(ctx, http.MethodPost, indexPath(name)+"/query", nil, req)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to query index %s: %v", name, err), err.Error())
		return res, nil
	}

	if !rt.is(http.StatusOK) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to query index %s: %s", name, remote), remote)
		return res, nil
	}

	var payload QueryResponse
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		res.Result = failure(fmt.Sprintf("Failed to decode query response from %s: %v", name, err), err.Error())
		return res, nil
	}

	res.Response = &payload

	rowCount := 0
	if payload.Result != nil {
		rowCount = len(payload.Result.DataArray)
	}
	res.Result = success(fmt.Sprintf("Query returned %d rows", rowCount))
	return res, nil
}

// UpsertRecords writes records into a direct-access index. The wire format
// expects inputs_json to carry the records as a JSON-encoded string, not as
// a bare array. That quirk is part of the protocol and must be preserved.
func (c *Client) UpsertRecords(ctx context.Context, name string, records []map[string]any) (*UpsertResult, error) {
	if name == "" {
		return nil, oops.Errorf("index name is required")
	}

	res := &UpsertResult{}

	if len(records) == 0 {
		res.Result = success("No records to upsert")
		return res, nil
	}

	inputs, err := json.Marshal(records)
	if err != nil {
		return nil, oops.Errorf("failed to encode upsert records: %w", err)
	}

	body := map[string]any{
		"inputs_json": string(inputs),
	}

	rt, err := c.roundTrip(ctx, http.MethodPost, indexPath(name)+"/upsert-data", nil, body)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to upsert into index %s: %v", name, err), err.Error())
		return res, nil
	}

	if !rt.is(http.StatusOK, http.StatusCreated) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to upsert into index %s: %s", name, remote), remote)
		return res, nil
	}

	res.UpsertedCount = len(records)
	res.Result = success(fmt.Sprintf("Upserted %d records into %s", len(records), name))
	return res, nil
}

// DeleteRecords removes records by primary key.
func (c *Client) DeleteRecords(ctx context.Context, name string, primaryKeys []string) (*DeleteRecordsResult, error) {
	if name == "" {
		return nil, oops.Errorf("index name is required")
	}

	res := &DeleteRecordsResult{}

	if len(primaryKeys) == 0 {
		res.Result = success("No records to delete")
		return res, nil
	}

	body := map[string]any{
		"primary_keys": primaryKeys,
	}

	rt, err := c.roundTrip(ctx, http.MethodPost, indexPath(name)+"/delete-data", nil, body)
	if err != nil {
		res.Result = failure(fmt.Sprintf("Failed to delete records from index %s: %v", name, err), err.Error())
		return res, nil
	}

	if !rt.is(http.StatusOK, http.StatusNoContent) {
		remote := remoteMessage(rt)
		res.Result = failure(fmt.Sprintf("Failed to delete records from index %s: %s", name, remote), remote)
		return res, nil
	}

	res.DeletedCount = len(primaryKeys)
	res.Result = success(fmt.Sprintf("Deleted %d records from %s", len(primaryKeys), name))
	return res, nil
}
