package iconic_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iconic "github.com/sellerkit/iconic-go"
)

// newBrandServer serves /v2/brands as a paginated envelope over n brands,
// counting page fetches. failAtOffset >= 0 makes that offset answer 500.
func newBrandServer(t *testing.T, n int, failAtOffset int, fetches *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/brands", r.URL.Path)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		require.Positive(t, limit)

		if fetches != nil {
			fetches.Add(1)
		}
		if failAtOffset >= 0 && offset == failAtOffset {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var items []map[string]any
		for i := offset; i < n && i < offset+limit; i++ {
			items = append(items, map[string]any{
				"id":   i + 1,
				"name": fmt.Sprintf("Brand %d", i+1),
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": items,
			"pagination": map[string]any{
				"limit":      limit,
				"offset":     offset,
				"totalCount": n,
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBrands_Paginate(t *testing.T) {
	t.Parallel()

	srv := newBrandServer(t, 5, -1, nil)
	c := newTestClient(t, srv.URL)

	p := c.Brands.Paginate(iconic.ListBrandsRequest{Limit: 2})
	ctx := context.Background()

	var sizes []int
	for p.HasNext() {
		page, err := p.Next(ctx)
		require.NoError(t, err)
		sizes = append(sizes, len(page.Items))
		assert.Equal(t, 5, page.Total)
		if len(sizes) < 3 {
			assert.True(t, page.HasMore)
		} else {
			assert.False(t, page.HasMore)
		}
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)

	// Past the final page the pager reports exhaustion.
	assert.False(t, p.HasNext())
	_, err := p.Next(ctx)
	assert.ErrorIs(t, err, iconic.ErrNoMorePages)
}

func TestBrands_AllMatchesPagedUnion(t *testing.T) {
	t.Parallel()

	srv := newBrandServer(t, 5, -1, nil)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	all, err := c.Brands.All(ctx, iconic.ListBrandsRequest{Limit: 2})
	require.NoError(t, err)

	var paged []iconic.Brand
	p := c.Brands.Paginate(iconic.ListBrandsRequest{Limit: 2})
	for p.HasNext() {
		page, err := p.Next(ctx)
		require.NoError(t, err)
		paged = append(paged, page.Items...)
	}

	assert.Equal(t, paged, all)
	require.Len(t, all, 5)
	for i, b := range all {
		assert.Equal(t, i+1, b.ID)
	}
}

func TestBrands_IterStopsFetchingOnBreak(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	srv := newBrandServer(t, 50, -1, &fetches)
	c := newTestClient(t, srv.URL)

	seen := 0
	for b, err := range c.Brands.Iter(context.Background(), iconic.ListBrandsRequest{Limit: 10}) {
		require.NoError(t, err)
		assert.NotZero(t, b.ID)
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestBrands_IterYieldsEarlierItemsBeforePageError(t *testing.T) {
	t.Parallel()

	srv := newBrandServer(t, 5, 2, nil)
	c := newTestClient(t, srv.URL, iconic.WithMaxAttempts(1))

	var ids []int
	var gotErr error
	for b, err := range c.Brands.Iter(context.Background(), iconic.ListBrandsRequest{Limit: 2}) {
		if err != nil {
			gotErr = err
			break
		}
		ids = append(ids, b.ID)
	}

	// The first page's items arrive intact; the failure surfaces at the
	// point the second page would have been fetched.
	assert.Equal(t, []int{1, 2}, ids)
	var trErr *iconic.TransientError
	require.ErrorAs(t, gotErr, &trErr)
}

func TestBrands_Stream(t *testing.T) {
	t.Parallel()

	srv := newBrandServer(t, 5, -1, nil)
	c := newTestClient(t, srv.URL)

	var ids []int
	for item := range c.Brands.Stream(context.Background(), iconic.ListBrandsRequest{Limit: 2}) {
		require.NoError(t, item.Err)
		ids = append(ids, item.Value.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
}

func TestFinance_BareArrayListing(t *testing.T) {
	t.Parallel()

	// Some endpoints answer with a bare JSON array and no pagination
	// envelope. A full page means there may be more; a short page ends
	// the listing.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		if offset >= 3 {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		var items []map[string]any
		for i := offset; i < 3 && i < offset+2; i++ {
			items = append(items, map[string]any{"id": i + 1, "type": "marketplace"})
		}
		_ = json.NewEncoder(w).Encode(items)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	page, err := c.Finance.Statements(ctx, iconic.ListStatementsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, -1, page.Total)
	assert.True(t, page.HasMore)

	page, err = c.Finance.Statements(ctx, iconic.ListStatementsRequest{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)

	var ids []int
	for st, err := range c.Finance.StatementsIter(ctx, iconic.ListStatementsRequest{Limit: 2}) {
		require.NoError(t, err)
		ids = append(ids, st.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestHandle_NavigationAndMutation(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/product-set/7", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": 7, "name": "Runner", "price": 99.5}`))
	})
	mux.HandleFunc("PUT /v2/product-set/7", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Runner v2", body["name"])
		_, _ = w.Write([]byte(`{"id": 7, "name": "Runner v2", "price": 99.5}`))
	})
	mux.HandleFunc("GET /v2/product-set/7/products", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"id": 71, "sellerSku": "SKU-71"},
				{"id": 72, "sellerSku": "SKU-72"},
			},
			"pagination": map[string]any{"limit": 100, "offset": 0, "totalCount": 2},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	set, err := c.ProductSets.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "/v2/product-set/7", set.Path())
	assert.Equal(t, "Runner", set.Attrs.Name)

	// Fetching again with no intervening mutation is attribute-identical.
	again, err := c.ProductSets.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, set.Attrs, again.Attrs)

	// Navigation scopes the listing under the owning item's path.
	products, err := c.ProductSets.Products(ctx, set)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "SKU-71", products[0].SellerSKU)

	// A mutation refreshes the handle's snapshot from the response.
	err = c.ProductSets.Update(ctx, set, map[string]any{"name": "Runner v2"})
	require.NoError(t, err)
	assert.Equal(t, "Runner v2", set.Attrs.Name)
}

func TestHandle_MutationWithNoContentResponse(t *testing.T) {
	t.Parallel()

	// Mutation endpoints that answer 204 must not wipe the snapshot; the
	// handle re-fetches instead.
	var name atomic.Value
	name.Store("Runner")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/product-set/7", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": name.Load(), "price": 99.5})
	})
	mux.HandleFunc("PUT /v2/product-set/7", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		name.Store(body["name"])
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	set, err := c.ProductSets.Get(ctx, 7)
	require.NoError(t, err)

	err = c.ProductSets.Update(ctx, set, map[string]any{"name": "Runner v2"})
	require.NoError(t, err)
	assert.Equal(t, 7, set.Attrs.ID)
	assert.Equal(t, "Runner v2", set.Attrs.Name)
	assert.InDelta(t, 99.5, set.Attrs.Price, 1e-9)
}

func TestWebhooks_UpdateWithNoContentResponse(t *testing.T) {
	t.Parallel()

	var hookURL atomic.Value
	hookURL.Store("https://example.test/hook")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/webhooks/wh-1", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "wh-1", "url": hookURL.Load(), "status": "active"})
	})
	mux.HandleFunc("PUT /v2/webhooks/wh-1", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		hookURL.Store(body["callbackUrl"])
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, iconic.WithSigningKey([]byte("signing-key")))
	ctx := context.Background()

	wh, err := c.Webhooks.Get(ctx, "wh-1")
	require.NoError(t, err)

	err = c.Webhooks.Update(ctx, wh, map[string]any{
		"callbackUrl": "https://example.test/hook-v2",
		"events":      []string{"onOrderCreated"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wh-1", wh.Attrs.ID)
	assert.Equal(t, "https://example.test/hook-v2", wh.Attrs.URL)
}

func TestHandle_RefreshSurfacesDeletion(t *testing.T) {
	t.Parallel()

	var deleted atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/webhooks/wh-1", func(w http.ResponseWriter, _ *http.Request) {
		if deleted.Load() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": "wh-1", "url": "https://example.test/hook", "status": "active"}`))
	})
	mux.HandleFunc("DELETE /v2/webhooks/wh-1", func(w http.ResponseWriter, _ *http.Request) {
		deleted.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL, iconic.WithSigningKey([]byte("signing-key")))
	ctx := context.Background()

	wh, err := c.Webhooks.Get(ctx, "wh-1")
	require.NoError(t, err)
	require.NoError(t, c.Webhooks.Delete(ctx, wh))

	// The handle stays usable as a value; the stale identifier surfaces
	// as not-found on the next fetch.
	assert.Equal(t, "wh-1", wh.Attrs.ID)
	err = wh.Refresh(ctx)
	var nfErr *iconic.NotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestPageRequest_LimitNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		limit     int
		wantLimit string
	}{
		{name: "zero means default", limit: 0, wantLimit: "100"},
		{name: "negative means default", limit: -3, wantLimit: "100"},
		{name: "in range passes through", limit: 50, wantLimit: "50"},
		{name: "above max is capped", limit: 9000, wantLimit: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotLimit atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotLimit.Store(r.URL.Query().Get("limit"))
				_, _ = w.Write([]byte(`{"items": [], "pagination": {"limit": 0, "offset": 0, "totalCount": 0}}`))
			}))
			t.Cleanup(srv.Close)

			c := newTestClient(t, srv.URL)
			_, err := c.Brands.List(context.Background(), iconic.ListBrandsRequest{Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, gotLimit.Load())
		})
	}
}
