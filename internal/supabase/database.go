package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// DatabaseClient handles PostgREST operations.
type DatabaseClient struct {
	client *Client
}

// From starts a query builder for a table.
func (d *DatabaseClient) From(table string) *QueryBuilder {
	return &QueryBuilder{
		client:  d.client,
		table:   table,
		method:  "GET",
		columns: "*",
		headers: make(map[string]string),
	}
}

// QueryBuilder builds and executes PostgREST queries.
type QueryBuilder struct {
	client      *Client
	table       string
	method      string
	columns     string
	filters     []string
	orders      []string
	limitVal    *int
	body        []byte
	headers     map[string]string
	accessToken string
	useService  bool
	buildErr    error
}

// Select specifies the columns (and nested relation embeddings) to return.
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.columns = columns
	return q
}

// Insert stages an insert of data, returning the representation.
func (q *QueryBuilder) Insert(data interface{}) *QueryBuilder {
	q.method = "POST"
	q.body, q.buildErr = json.Marshal(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Update stages a PATCH of data for the filtered rows.
func (q *QueryBuilder) Update(data interface{}) *QueryBuilder {
	q.method = "PATCH"
	q.body, q.buildErr = json.Marshal(data)
	q.headers["Prefer"] = "return=representation"
	return q
}

// Delete stages a delete of the filtered rows.
func (q *QueryBuilder) Delete() *QueryBuilder {
	q.method = "DELETE"
	return q
}

// Eq adds an equality filter.
func (q *QueryBuilder) Eq(column string, value interface{}) *QueryBuilder {
	q.filters = append(q.filters, fmt.Sprintf("%s=eq.%v", column, value))
	return q
}

// Order adds an order clause; desc=true sorts descending.
func (q *QueryBuilder) Order(column string, desc bool) *QueryBuilder {
	dir := "asc"
	if desc {
		dir = "desc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of returned rows.
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.limitVal = &n
	return q
}

// Single shapes the result as exactly one object. PostgREST answers with
// code PGRST116 when no row matches.
func (q *QueryBuilder) Single() *QueryBuilder {
	q.headers["Accept"] = "application/vnd.pgrst.object+json"
	return q
}

// WithToken executes the query as the token's identity (RLS applies).
func (q *QueryBuilder) WithToken(token string) *QueryBuilder {
	q.accessToken = token
	return q
}

// AsService executes the query with the service role key, bypassing RLS.
func (q *QueryBuilder) AsService() *QueryBuilder {
	q.useService = true
	return q
}

// Execute runs the query and returns the raw response body.
func (q *QueryBuilder) Execute(ctx context.Context) ([]byte, error) {
	if q.buildErr != nil {
		return nil, fmt.Errorf("marshal body: %w", q.buildErr)
	}

	urlStr := q.buildURL()

	var resp *response
	var err error
	if q.useService {
		resp, err = q.client.requestWithServiceKey(ctx, q.method, urlStr, q.body, q.headers)
	} else {
		resp, err = q.client.request(ctx, q.method, urlStr, q.body, q.headers, q.accessToken)
	}
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, parseError(resp.Body, resp.StatusCode)
	}
	return resp.Body, nil
}

// ExecuteInto runs the query and decodes the response into dest.
func (q *QueryBuilder) ExecuteInto(ctx context.Context, dest interface{}) error {
	data, err := q.Execute(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (q *QueryBuilder) buildURL() string {
	urlStr := q.client.baseURL + "/rest/v1/" + url.PathEscape(q.table)

	params := make([]string, 0, len(q.filters)+3)
	if q.columns != "" {
		params = append(params, "select="+url.QueryEscape(q.columns))
	}
	params = append(params, q.filters...)
	if len(q.orders) > 0 {
		params = append(params, "order="+strings.Join(q.orders, ","))
	}
	if q.limitVal != nil {
		params = append(params, fmt.Sprintf("limit=%d", *q.limitVal))
	}

	if len(params) > 0 {
		urlStr += "?" + strings.Join(params, "&")
	}
	return urlStr
}
