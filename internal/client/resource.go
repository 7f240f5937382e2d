package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"marketplace/internal/domain"
)

// ListParams mirrors the query parameters accepted by GET /<resource>.
type ListParams struct {
	Search    string
	Status    string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.SortOrder != "" {
		q.Set("sortOrder", p.SortOrder)
	}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	return q
}

// Pagination is the optional block returned next to list data.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type listEnvelope[R any] struct {
	Data       []R         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Resource is a typed view of one REST collection. Every decoded record is
// validated against its kind before it is handed to the caller.
type Resource[R domain.Record] struct {
	client *Client
	name   string
}

// NewResource binds a collection name such as "categories" to its record type.
func NewResource[R domain.Record](c *Client, name string) *Resource[R] {
	return &Resource[R]{client: c, name: name}
}

func (r *Resource[R]) Name() string {
	return r.name
}

// List fetches one page, or everything when params carry no pagination.
func (r *Resource[R]) List(ctx context.Context, params ListParams) ([]R, *Pagination, error) {
	var env listEnvelope[R]
	err := r.client.do(ctx, request{
		method: http.MethodGet,
		path:   r.name,
		query:  params.values(),
	}, &env)
	if err != nil {
		return nil, nil, err
	}

	for _, rec := range env.Data {
		if err := r.check(rec); err != nil {
			return nil, nil, err
		}
	}
	if env.Data == nil {
		env.Data = []R{}
	}
	return env.Data, env.Pagination, nil
}

// All fetches the whole collection in backend order.
func (r *Resource[R]) All(ctx context.Context) ([]R, error) {
	records, _, err := r.List(ctx, ListParams{})
	return records, err
}

// Get fetches one record and validates it like every other response.
func (r *Resource[R]) Get(ctx context.Context, id string) (R, error) {
	return r.single(ctx, request{
		method: http.MethodGet,
		path:   r.name + "/" + url.PathEscape(id),
	})
}

// Create posts v as JSON and returns the stored record.
func (r *Resource[R]) Create(ctx context.Context, v any) (R, error) {
	body, err := json.Marshal(v)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("failed to encode %s: %w", r.name, err)
	}
	return r.single(ctx, request{
		method:      http.MethodPost,
		path:        r.name,
		body:        bytes.NewReader(body),
		contentType: "application/json",
	})
}

// Update replaces the record at id. Last write wins; there is no version check.
func (r *Resource[R]) Update(ctx context.Context, id string, v any) (R, error) {
	body, err := json.Marshal(v)
	if err != nil {
		var zero R
		return zero, fmt.Errorf("failed to encode %s: %w", r.name, err)
	}
	return r.single(ctx, request{
		method:      http.MethodPut,
		path:        r.name + "/" + url.PathEscape(id),
		body:        bytes.NewReader(body),
		contentType: "application/json",
	})
}

func (r *Resource[R]) Delete(ctx context.Context, id string) error {
	return r.client.do(ctx, request{
		method: http.MethodDelete,
		path:   r.name + "/" + url.PathEscape(id),
	}, nil)
}

func (r *Resource[R]) single(ctx context.Context, req request) (R, error) {
	var rec R
	if err := r.client.do(ctx, req, &rec); err != nil {
		var zero R
		return zero, err
	}
	if err := r.check(rec); err != nil {
		var zero R
		return zero, err
	}
	return rec, nil
}

func (r *Resource[R]) check(rec R) error {
	if isNil(rec) {
		return fmt.Errorf("%w: empty %s record", ErrMalformedResponse, r.name)
	}
	if _, ok := domain.LookupKind(r.name); !ok {
		return nil
	}
	if err := domain.Validate(r.name, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil())
}
