package iconic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"
)

func itoa(v int) string { return strconv.Itoa(v) }

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequestSpec describes one API call. It is immutable once constructed and
// created per call by the endpoint wrappers.
type RequestSpec struct {
	Method string
	Path   string
	Query  url.Values

	// Body is either a typed request struct (validated before sending) or
	// a raw map[string]any of fields. Nil means no body.
	Body any

	// ContentType overrides the application/json default, for the few
	// endpoints that consume multipart uploads. Body must be []byte then.
	ContentType string

	// NeedsAuth attaches a bearer token, refreshing it first if stale.
	NeedsAuth bool

	// Sign attaches an HMAC signature for endpoints that require one.
	Sign bool

	// Idempotent marks the request safe to retry automatically. Reads are
	// idempotent; mutations default to false unless the caller opts in.
	Idempotent bool
}

// RawResponse is the classified 2xx outcome of a Transport call, handed to
// the caller for deserialization.
type RawResponse struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// normalizePayload reduces the request-struct-or-map union to one canonical
// JSON-marshalable value. Typed structs are validated against their tags;
// raw maps pass through untouched.
func normalizePayload(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.(type) {
	case map[string]any, json.RawMessage, []byte:
		return v, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if err := validate.Struct(rv.Interface()); err != nil {
			return nil, fmt.Errorf("validating request payload: %w", err)
		}
	}
	return v, nil
}

// PageRequest carries offset pagination plus endpoint filters. Limit is
// positive and bounded by the server maximum; zero means the default.
type PageRequest struct {
	Limit   int
	Offset  int
	Filters url.Values
}

func (p PageRequest) normLimit() int {
	switch {
	case p.Limit <= 0:
		return defaultPageSize
	case p.Limit > maxPageSize:
		return maxPageSize
	default:
		return p.Limit
	}
}

// query renders the page request as URL parameters.
func (p PageRequest) query() url.Values {
	q := url.Values{}
	for k, vs := range p.Filters {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("limit", fmt.Sprintf("%d", p.normLimit()))
	q.Set("offset", fmt.Sprintf("%d", p.Offset))
	return q
}

// Page is one page of a listing. Item order is server-defined and treated
// as opaque. Total is -1 when the server does not report a count.
type Page[T any] struct {
	Items   []T
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

type pageMeta struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalCount int `json:"totalCount"`
}

// decodePage handles both response shapes the platform uses: an
// {items, pagination} envelope, and a bare JSON array for endpoints that
// never grew an envelope. Bare arrays have no total, so HasMore is true
// only when the page came back full.
func decodePage[T any](body []byte, req PageRequest) (*Page[T], error) {
	limit := req.normLimit()
	trimmed := bytes.TrimSpace(body)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decoding listing: %w", err)
		}
		return &Page[T]{
			Items:   items,
			Total:   -1,
			Limit:   limit,
			Offset:  req.Offset,
			HasMore: len(items) == limit,
		}, nil
	}

	var env struct {
		Items      []T       `json:"items"`
		Pagination *pageMeta `json:"pagination"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding listing envelope: %w", err)
	}

	page := &Page[T]{
		Items:  env.Items,
		Total:  -1,
		Limit:  limit,
		Offset: req.Offset,
	}
	if env.Pagination != nil {
		if env.Pagination.Limit > 0 {
			page.Limit = env.Pagination.Limit
		}
		page.Offset = env.Pagination.Offset
		page.Total = env.Pagination.TotalCount
		page.HasMore = page.Offset+len(page.Items) < page.Total
	} else {
		page.HasMore = len(page.Items) == page.Limit
	}
	return page, nil
}
