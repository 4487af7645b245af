package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/intellisql/intellisql/internal/core"
	"github.com/intellisql/intellisql/internal/core/types"
)

// SearchConnector is the document-index connector of spec.md §4.3, speaking
// the Elasticsearch/OpenSearch-family REST+JSON wire protocol: mapping
// introspection via GET /<index>/_mapping and row scans via a single
// search request (no scroll or search_after paging).
//
// No example repo or pack dependency ships a document-index client (unlike
// the SQL drivers, which come straight from the pack's own require blocks),
// so this talks the wire protocol directly over net/http and encoding/json
// rather than importing an unrelated library just to say a dependency was
// used; see DESIGN.md.
type SearchConnector struct {
	Client *http.Client
	Types  TypeMapping
}

// NewSearchConnector returns a SearchConnector with a sane default HTTP
// client timeout.
func NewSearchConnector() *SearchConnector {
	return &SearchConnector{
		Client: &http.Client{Timeout: 30 * time.Second},
		Types:  DocumentIndexTypeMapping,
	}
}

type searchPool struct {
	baseURL string
	client  *http.Client
}

func (p *searchPool) Close() error { return nil }

// Open validates reachability with a cluster health request; it does not
// hold a persistent connection since the wire protocol is stateless HTTP.
func (c *SearchConnector) Open(ctx context.Context, cfg PoolConfig) (Pool, error) {
	pool := &searchPool{baseURL: "http://" + cfg.URL, client: c.Client}
	if err := c.ping(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (c *SearchConnector) ping(ctx context.Context, pool *searchPool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pool.baseURL+"/_cluster/health", nil)
	if err != nil {
		return core.Wrapf(core.KindConnectTimeout, err, "building health request")
	}
	resp, err := pool.client.Do(req)
	if err != nil {
		return core.Wrapf(core.KindConnectTimeout, err, "reaching document index")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return core.NewErrorf(core.KindConnectTimeout, "document index returned %d", resp.StatusCode)
	}
	return nil
}

type mappingResponse map[string]struct {
	Mappings struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	} `json:"mappings"`
}

// DiscoverSchema maps every index's field mapping onto IntelliSql's logical
// schema shape, treating each index as one table under a fixed "default"
// schema (document stores have no native schema/database layering).
func (c *SearchConnector) DiscoverSchema(ctx context.Context, pool Pool) (*DiscoveredSchema, error) {
	p := pool.(*searchPool)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/_all/_mapping", nil)
	if err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "building mapping request")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, core.Wrapf(core.KindSourceUnavailable, err, "fetching index mappings")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "reading mapping response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewErrorf(core.KindSourceUnavailable, "mapping request failed: %d %s", resp.StatusCode, string(body))
	}

	var parsed mappingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, core.Wrapf(core.KindInternalError, err, "parsing mapping response")
	}

	out := &DiscoveredSchema{Schemas: []string{"default"}}
	for index, m := range parsed {
		var columns core.Schema
		ordinal := 0
		for field, prop := range m.Mappings.Properties {
			kind, err := c.Types.MapType(prop.Type)
			if err != nil {
				return nil, err
			}
			columns = append(columns, &core.Column{
				Name:     field,
				Ordinal:  ordinal,
				Kind:     kind,
				Nullable: true, // document stores carry no NOT NULL constraint
				Source:   "search",
				Table:    index,
			})
			ordinal++
		}
		out.Tables = append(out.Tables, DiscoveredTable{Schema: "default", Name: index, Columns: columns})
	}
	return out, nil
}

// searchRequestBody is the subset of the _search request DSL this connector
// renders pushdown into.
type searchRequestBody struct {
	Query  map[string]interface{} `json:"query,omitempty"`
	Source []string               `json:"_source,omitempty"`
	Sort   []map[string]string    `json:"sort,omitempty"`
	Size   int                    `json:"size,omitempty"`
}

type searchResponseHit struct {
	Source map[string]interface{} `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []searchResponseHit `json:"hits"`
	} `json:"hits"`
}

// Scan renders the pushed filter/projection/sort/limit into one _search
// request and returns all hits eagerly; document-index query results are
// expected to already be limit-bounded by the optimiser, so no scroll
// cursor is needed for the sizes this connector targets.
func (c *SearchConnector) Scan(ctx context.Context, pool Pool, schema, table string, pushdown Pushdown) (Iterator, Handle, error) {
	p := pool.(*searchPool)

	body := searchRequestBody{Source: pushdown.Projection}
	if !pushdown.Filter.Empty() {
		q, ok := renderSearchQuery(pushdown.Filter)
		if ok {
			body.Query = q
		} else {
			pushdown.Unpushed.Filter = true
			body.Query = map[string]interface{}{"match_all": map[string]interface{}{}}
		}
	}
	for _, k := range pushdown.SortBy {
		order := "asc"
		if k.Descending {
			order = "desc"
		}
		body.Sort = append(body.Sort, map[string]string{k.Column: order})
	}
	if pushdown.Limit > 0 {
		body.Size = pushdown.Limit
	} else {
		body.Size = 10000
	}
	if pushdown.Aggregate != nil {
		pushdown.Unpushed.Aggregate = true
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, core.Wrapf(core.KindInternalError, err, "encoding search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/%s/_search", p.baseURL, table), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, core.Wrapf(core.KindInternalError, err, "building search request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, nil, core.Wrapf(core.KindSourceUnavailable, err, "querying %s", table)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, core.Wrapf(core.KindInternalError, err, "reading search response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, core.NewErrorf(core.KindSourceUnavailable, "search request failed: %d %s", resp.StatusCode, string(respBody))
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, nil, core.Wrapf(core.KindInternalError, err, "parsing search response")
	}

	return &searchIterator{hits: parsed.Hits.Hits, projection: pushdown.Projection}, nil, nil
}

type searchIterator struct {
	hits       []searchResponseHit
	projection []string
	pos        int
}

func (it *searchIterator) Next(ctx context.Context) (core.Row, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if it.pos >= len(it.hits) {
		return nil, errEOF
	}
	hit := it.hits[it.pos]
	it.pos++

	fields := it.projection
	if len(fields) == 0 {
		for f := range hit.Source {
			fields = append(fields, f)
		}
	}
	row := make(core.Row, len(fields))
	for i, f := range fields {
		v, ok := hit.Source[f]
		if !ok || v == nil {
			row[i] = types.NullValue(types.Unknown)
			continue
		}
		row[i] = types.NewValue(inferJSONKind(v), v)
	}
	return row, nil
}

func (it *searchIterator) Close() error { return nil }

func inferJSONKind(v interface{}) types.Kind {
	switch v.(type) {
	case string:
		return types.String
	case bool:
		return types.Boolean
	case float64:
		return types.Float64
	default:
		return types.JSON
	}
}

// renderSearchQuery renders a connector-agnostic Predicate into the
// Elasticsearch query DSL, mirroring renderPredicate's SQL rendering in
// sqlcommon.go for the relational connectors.
func renderSearchQuery(p Predicate) (map[string]interface{}, bool) {
	if len(p.And) > 0 {
		var clauses []map[string]interface{}
		for _, sub := range p.And {
			q, ok := renderSearchQuery(sub)
			if !ok {
				return nil, false
			}
			clauses = append(clauses, q)
		}
		return map[string]interface{}{"bool": map[string]interface{}{"must": clauses}}, true
	}
	if len(p.Or) > 0 {
		var clauses []map[string]interface{}
		for _, sub := range p.Or {
			q, ok := renderSearchQuery(sub)
			if !ok {
				return nil, false
			}
			clauses = append(clauses, q)
		}
		return map[string]interface{}{"bool": map[string]interface{}{"should": clauses}}, true
	}

	switch p.Operator {
	case "=":
		return map[string]interface{}{"term": map[string]interface{}{p.Column: p.Value}}, true
	case "LIKE":
		return map[string]interface{}{"wildcard": map[string]interface{}{p.Column: p.Value}}, true
	case "IN":
		return map[string]interface{}{"terms": map[string]interface{}{p.Column: p.Values}}, true
	case "<", "<=", ">", ">=":
		op := map[string]string{"<": "lt", "<=": "lte", ">": "gt", ">=": "gte"}[p.Operator]
		return map[string]interface{}{"range": map[string]interface{}{p.Column: map[string]interface{}{op: p.Value}}}, true
	default:
		return nil, false
	}
}

func (c *SearchConnector) HealthProbe(ctx context.Context, pool Pool, timeoutSeconds int) error {
	p, ok := pool.(*searchPool)
	if !ok || p == nil {
		return core.NewErrorf(core.KindConnectTimeout, "nil or wrong-kind pool")
	}
	probeCtx := ctx
	if timeoutSeconds > 0 {
		var cancel func()
		probeCtx, cancel = contextWithTimeoutSeconds(ctx, timeoutSeconds)
		defer cancel()
	}
	return c.ping(probeCtx, p)
}

func (c *SearchConnector) Cancel(handle Handle) error { return nil }
