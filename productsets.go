package iconic

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ProductSet groups the variants of one listed product.
type ProductSet struct {
	ID                int     `json:"id"`
	UUID              string  `json:"uuid,omitempty"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	SellerSKU         string  `json:"sellerSku"`
	BrandID           int     `json:"brandId"`
	PrimaryCategoryID int     `json:"primaryCategoryId"`
	Description       string  `json:"description,omitempty"`
	Status            string  `json:"status,omitempty"`
}

// ProductSetImage is one image attached to a product set.
type ProductSetImage struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Position int    `json:"position"`
	IsCover  bool   `json:"isCover,omitempty"`
}

// CreateProductSetRequest creates a new product set.
type CreateProductSetRequest struct {
	Name              string         `json:"name" validate:"required"`
	Price             float64        `json:"price" validate:"required,gt=0"`
	SellerSKU         string         `json:"sellerSku" validate:"required"`
	BrandID           int            `json:"brandId" validate:"required"`
	PrimaryCategoryID int            `json:"primaryCategoryId" validate:"required"`
	Description       string         `json:"description,omitempty"`
	Attributes        map[string]any `json:"attributes,omitempty"`
}

// UpdateProductSetRequest updates a product set's mutable fields.
type UpdateProductSetRequest struct {
	Name        string         `json:"name,omitempty"`
	Price       float64        `json:"price,omitempty" validate:"omitempty,gt=0"`
	Description string         `json:"description,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`

	// RetrySafe marks this update idempotent-safe so transient failures
	// retry automatically.
	RetrySafe bool `json:"-"`
}

// CreateProductRequest creates a variant inside a product set.
type CreateProductRequest struct {
	SellerSKU         string `json:"sellerSku" validate:"required"`
	Variation         string `json:"variation,omitempty"`
	Status            string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
	Name              string `json:"name,omitempty"`
	ProductIdentifier string `json:"productIdentifier,omitempty"`
}

// UpdatePriceRequest updates pricing, optionally with a sale window.
type UpdatePriceRequest struct {
	Price         float64    `json:"price" validate:"required,gt=0"`
	SalePrice     *float64   `json:"salePrice,omitempty"`
	SaleStartDate *time.Time `json:"saleStartDate,omitempty"`
	SaleEndDate   *time.Time `json:"saleEndDate,omitempty"`
}

// AddImageRequest attaches an image by URL.
type AddImageRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Position int    `json:"position,omitempty"`
	IsCover  bool   `json:"isCover,omitempty"`
}

// ListProductSetsRequest filters the product sets listing.
type ListProductSetsRequest struct {
	Status     string
	BrandIDs   []int
	CategoryID int
	SellerSKU  string
	Name       string
	Limit      int
	Offset     int
}

func (r ListProductSetsRequest) page() PageRequest {
	f := url.Values{}
	if r.Status != "" {
		f.Set("status", r.Status)
	}
	for _, id := range r.BrandIDs {
		f.Add("brandIds[]", strconv.Itoa(id))
	}
	if r.CategoryID != 0 {
		f.Set("categoryId", strconv.Itoa(r.CategoryID))
	}
	if r.SellerSKU != "" {
		f.Set("sellerSku", r.SellerSKU)
	}
	if r.Name != "" {
		f.Set("name", r.Name)
	}
	return PageRequest{Limit: r.Limit, Offset: r.Offset, Filters: f}
}

// ProductSetsService maps the /v2/product-set endpoints.
type ProductSetsService struct {
	client *Client
}

func (s *ProductSetsService) res() resource[ProductSet] {
	return resource[ProductSet]{client: s.client, path: "/v2/product-sets"}
}

// Create creates a product set. body is a CreateProductSetRequest or a raw
// map of fields. Creation is not retried automatically.
func (s *ProductSetsService) Create(ctx context.Context, body any) (*Handle[ProductSet], error) {
	var v ProductSet
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPost,
		Path:      "/v2/product-set",
		Body:      body,
		NeedsAuth: true,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &Handle[ProductSet]{
		client: s.client,
		path:   fmt.Sprintf("/v2/product-set/%d", v.ID),
		Attrs:  v,
	}, nil
}

// Get fetches a single product set by ID.
func (s *ProductSetsService) Get(ctx context.Context, id int) (*Handle[ProductSet], error) {
	return s.res().get(ctx, fmt.Sprintf("/v2/product-set/%d", id))
}

// List fetches one page of product sets.
func (s *ProductSetsService) List(ctx context.Context, req ListProductSetsRequest) (*Page[ProductSet], error) {
	return s.res().list(ctx, req.page())
}

// Paginate returns a Pager retaining continuation state across pages.
func (s *ProductSetsService) Paginate(req ListProductSetsRequest) *Pager[ProductSet] {
	return s.res().pager(req.page())
}

// All materializes the complete listing. Memory cost scales with the total
// result size; use Iter for very large collections.
func (s *ProductSetsService) All(ctx context.Context, req ListProductSetsRequest) ([]ProductSet, error) {
	return s.res().all(ctx, req.page())
}

// Iter lazily yields product sets one page at a time.
func (s *ProductSetsService) Iter(ctx context.Context, req ListProductSetsRequest) iter.Seq2[ProductSet, error] {
	return s.res().iterate(ctx, req.page())
}

// Stream is the channel-driven form of Iter.
func (s *ProductSetsService) Stream(ctx context.Context, req ListProductSetsRequest) <-chan StreamItem[ProductSet] {
	return s.res().stream(ctx, req.page())
}

// Update mutates a product set and refreshes the handle's snapshot in
// place. body is an UpdateProductSetRequest or a raw map of fields.
func (s *ProductSetsService) Update(ctx context.Context, set *Handle[ProductSet], body any) error {
	idem := false
	if req, ok := body.(UpdateProductSetRequest); ok {
		idem = req.RetrySafe
	}
	return set.update(ctx, http.MethodPut, body, idem)
}

// Products lists all products of a product set. Identical to a top-level
// product listing filtered by the set's ID.
func (s *ProductSetsService) Products(ctx context.Context, set *Handle[ProductSet]) ([]Product, error) {
	r := resource[Product]{client: s.client, path: set.Path() + "/products"}
	return r.all(ctx, PageRequest{})
}

// ProductsIter lazily yields the products of a product set.
func (s *ProductSetsService) ProductsIter(ctx context.Context, set *Handle[ProductSet]) iter.Seq2[Product, error] {
	r := resource[Product]{client: s.client, path: set.Path() + "/products"}
	return r.iterate(ctx, PageRequest{})
}

// CreateProduct creates a variant inside the product set. body is a
// CreateProductRequest or a raw map of fields.
func (s *ProductSetsService) CreateProduct(ctx context.Context, set *Handle[ProductSet], body any) (*Handle[Product], error) {
	var v Product
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPost,
		Path:      set.Path() + "/products",
		Body:      body,
		NeedsAuth: true,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &Handle[Product]{
		client: s.client,
		path:   fmt.Sprintf("/v2/products/%d", v.ID),
		Attrs:  v,
	}, nil
}

// UpdatePrice updates the product set's pricing and refreshes the handle.
func (s *ProductSetsService) UpdatePrice(ctx context.Context, set *Handle[ProductSet], req UpdatePriceRequest) error {
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      set.Path() + "/price",
		Body:      req,
		NeedsAuth: true,
	}, nil)
	if err != nil {
		return err
	}
	return set.Refresh(ctx)
}

// UpdateStatus changes the product set's listing status and refreshes the
// handle.
func (s *ProductSetsService) UpdateStatus(ctx context.Context, set *Handle[ProductSet], status string) error {
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      set.Path() + "/status",
		Body:      map[string]any{"status": status},
		NeedsAuth: true,
	}, nil)
	if err != nil {
		return err
	}
	return set.Refresh(ctx)
}

// Images lists the product set's images.
func (s *ProductSetsService) Images(ctx context.Context, set *Handle[ProductSet]) ([]ProductSetImage, error) {
	var images []ProductSetImage
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       set.Path() + "/images",
		NeedsAuth:  true,
		Idempotent: true,
	}, &images)
	return images, err
}

// AddImage attaches an image to the product set.
func (s *ProductSetsService) AddImage(ctx context.Context, set *Handle[ProductSet], req AddImageRequest) (*ProductSetImage, error) {
	var img ProductSetImage
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPost,
		Path:      set.Path() + "/images",
		Body:      req,
		NeedsAuth: true,
	}, &img)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// RejectedProductSet is a quality-control rejection record.
type RejectedProductSet struct {
	ProductSetID int      `json:"productSetId"`
	Status       string   `json:"status,omitempty"`
	Reasons      []string `json:"reasons,omitempty"`
}

// Rejected returns quality-control rejection details for product sets.
func (s *ProductSetsService) Rejected(ctx context.Context, productSetIDs []int) ([]RejectedProductSet, error) {
	q := url.Values{}
	for _, id := range productSetIDs {
		q.Add("productSetIds[]", strconv.Itoa(id))
	}
	var rejected []RejectedProductSet
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/product-quality-control/rejected",
		Query:      q,
		NeedsAuth:  true,
		Idempotent: true,
	}, &rejected)
	return rejected, err
}

// UpdateImage replaces an image's URL, position or cover flag.
func (s *ProductSetsService) UpdateImage(ctx context.Context, set *Handle[ProductSet], imageID int, req AddImageRequest) (*ProductSetImage, error) {
	var img ProductSetImage
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      set.Path() + "/images/" + itoa(imageID),
		Body:      req,
		NeedsAuth: true,
	}, &img)
	if err != nil {
		return nil, err
	}
	return &img, nil
}
