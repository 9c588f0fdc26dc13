package iconic

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
)

// Brand is a platform brand.
type Brand struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	NameEn    string `json:"nameEn,omitempty"`
	IsPremium bool   `json:"isPremium,omitempty"`
}

// BrandAttribute is a mapped attribute option for a brand.
type BrandAttribute struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Option string `json:"option,omitempty"`
}

// ListBrandsRequest filters the brands listing.
type ListBrandsRequest struct {
	Name     string
	BrandIDs []int
	Limit    int
	Offset   int
}

func (r ListBrandsRequest) page() PageRequest {
	f := url.Values{}
	if r.Name != "" {
		f.Set("name", r.Name)
	}
	for _, id := range r.BrandIDs {
		f.Add("brandIds[]", strconv.Itoa(id))
	}
	return PageRequest{Limit: r.Limit, Offset: r.Offset, Filters: f}
}

// BrandsService maps the /v2/brands endpoints.
type BrandsService struct {
	client *Client
}

func (s *BrandsService) res() resource[Brand] {
	return resource[Brand]{client: s.client, path: "/v2/brands"}
}

// List fetches one page of brands.
func (s *BrandsService) List(ctx context.Context, req ListBrandsRequest) (*Page[Brand], error) {
	return s.res().list(ctx, req.page())
}

// Paginate returns a Pager retaining continuation state across pages.
func (s *BrandsService) Paginate(req ListBrandsRequest) *Pager[Brand] {
	return s.res().pager(req.page())
}

// All materializes the complete listing.
func (s *BrandsService) All(ctx context.Context, req ListBrandsRequest) ([]Brand, error) {
	return s.res().all(ctx, req.page())
}

// Iter lazily yields brands one page at a time.
func (s *BrandsService) Iter(ctx context.Context, req ListBrandsRequest) iter.Seq2[Brand, error] {
	return s.res().iterate(ctx, req.page())
}

// Stream is the channel-driven form of Iter.
func (s *BrandsService) Stream(ctx context.Context, req ListBrandsRequest) <-chan StreamItem[Brand] {
	return s.res().stream(ctx, req.page())
}

// Get fetches a single brand by ID.
func (s *BrandsService) Get(ctx context.Context, id int) (*Handle[Brand], error) {
	return s.res().get(ctx, fmt.Sprintf("/v2/brands/%d", id))
}

// Attributes returns the mapped attribute options for a brand handle.
func (s *BrandsService) Attributes(ctx context.Context, brand *Handle[Brand]) ([]BrandAttribute, error) {
	var attrs []BrandAttribute
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       brand.Path() + "/attributes",
		NeedsAuth:  true,
		Idempotent: true,
	}, &attrs)
	return attrs, err
}
