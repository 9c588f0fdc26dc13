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

// Product is a single sellable variant belonging to a product set.
type Product struct {
	ID                int    `json:"id"`
	UUID              string `json:"uuid,omitempty"`
	Name              string `json:"name"`
	SellerSKU         string `json:"sellerSku"`
	ShopSKU           string `json:"shopSku,omitempty"`
	Variation         string `json:"variation,omitempty"`
	Status            string `json:"status"`
	ProductSetID      int    `json:"productSetId,omitempty"`
	ProductIdentifier string `json:"productIdentifier,omitempty"`
}

// ListProductsRequest filters the products listing.
type ListProductsRequest struct {
	ProductUUIDs []string
	ProductIDs   []int
	SellerID     int
	SKU          string
	Name         string
	SellerSKU    string
	ProductSetID int
	Limit        int
	Offset       int
}

func (r ListProductsRequest) page() PageRequest {
	f := url.Values{}
	for _, u := range r.ProductUUIDs {
		f.Add("productUuids[]", u)
	}
	for _, id := range r.ProductIDs {
		f.Add("productIds[]", strconv.Itoa(id))
	}
	if r.SellerID != 0 {
		f.Set("sellerId", strconv.Itoa(r.SellerID))
	}
	if r.SKU != "" {
		f.Set("sku", r.SKU)
	}
	if r.Name != "" {
		f.Set("name", r.Name)
	}
	if r.SellerSKU != "" {
		f.Set("sellerSku", r.SellerSKU)
	}
	if r.ProductSetID != 0 {
		f.Set("productSetId", strconv.Itoa(r.ProductSetID))
	}
	return PageRequest{Limit: r.Limit, Offset: r.Offset, Filters: f}
}

// UpdateProductRequest updates a product's mutable fields.
type UpdateProductRequest struct {
	Name              string `json:"name,omitempty"`
	Variation         string `json:"variation,omitempty"`
	Status            string `json:"status,omitempty" validate:"omitempty,oneof=active inactive deleted"`
	ProductIdentifier string `json:"productIdentifier,omitempty"`

	// RetrySafe marks this update idempotent-safe so transient failures
	// retry automatically.
	RetrySafe bool `json:"-"`
}

// ProductsService maps the /v2/product and /v2/products endpoints.
type ProductsService struct {
	client *Client
}

func (s *ProductsService) res() resource[Product] {
	return resource[Product]{client: s.client, path: "/v2/products"}
}

// GetByShopSKU fetches a product by its shop SKU.
func (s *ProductsService) GetByShopSKU(ctx context.Context, shopSKU string) (*Handle[Product], error) {
	return s.res().get(ctx, "/v2/product/shop-sku/"+url.PathEscape(shopSKU))
}

// GetBySellerSKU fetches a product by its seller SKU.
func (s *ProductsService) GetBySellerSKU(ctx context.Context, sellerSKU string) (*Handle[Product], error) {
	return s.res().get(ctx, "/v2/product/seller-sku/"+url.PathEscape(sellerSKU))
}

// BySellerSKUs fetches products for up to 100 seller SKUs, paginated.
func (s *ProductsService) BySellerSKUs(ctx context.Context, sellerSKUs []string, req PageRequest) (*Page[Product], error) {
	if req.Filters == nil {
		req.Filters = url.Values{}
	}
	for _, sku := range sellerSKUs {
		req.Filters.Add("sellerSkus[]", sku)
	}
	r := resource[Product]{client: s.client, path: "/v2/product/seller-skus"}
	return r.list(ctx, req)
}

// List fetches one page of products.
func (s *ProductsService) List(ctx context.Context, req ListProductsRequest) (*Page[Product], error) {
	return s.res().list(ctx, req.page())
}

// Paginate returns a Pager retaining continuation state across pages.
func (s *ProductsService) Paginate(req ListProductsRequest) *Pager[Product] {
	return s.res().pager(req.page())
}

// All materializes the complete listing.
func (s *ProductsService) All(ctx context.Context, req ListProductsRequest) ([]Product, error) {
	return s.res().all(ctx, req.page())
}

// Iter lazily yields products one page at a time.
func (s *ProductsService) Iter(ctx context.Context, req ListProductsRequest) iter.Seq2[Product, error] {
	return s.res().iterate(ctx, req.page())
}

// Stream is the channel-driven form of Iter.
func (s *ProductsService) Stream(ctx context.Context, req ListProductsRequest) <-chan StreamItem[Product] {
	return s.res().stream(ctx, req.page())
}

// Update mutates a product and refreshes the handle's snapshot in place.
// body is an UpdateProductRequest or a raw map of fields.
func (s *ProductsService) Update(ctx context.Context, product *Handle[Product], body any) error {
	idem := false
	if req, ok := body.(UpdateProductRequest); ok {
		idem = req.RetrySafe
	}
	return product.update(ctx, http.MethodPut, body, idem)
}

// ProductPrice is the per-country pricing of a product.
type ProductPrice struct {
	Country       string     `json:"country,omitempty"`
	Price         float64    `json:"price"`
	SalePrice     *float64   `json:"salePrice,omitempty"`
	SaleStartDate *time.Time `json:"saleStartDate,omitempty"`
	SaleEndDate   *time.Time `json:"saleEndDate,omitempty"`
	Status        string     `json:"status,omitempty"`
}

// UpdateProductPriceRequest updates a product's pricing in one country.
type UpdateProductPriceRequest struct {
	Price         float64    `json:"price,omitempty" validate:"omitempty,gt=0"`
	SalePrice     *float64   `json:"salePrice,omitempty"`
	SaleStartDate *time.Time `json:"saleStartDate,omitempty"`
	SaleEndDate   *time.Time `json:"saleEndDate,omitempty"`
	Status        string     `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// UpdatePrice updates the product's pricing for a country.
func (s *ProductsService) UpdatePrice(ctx context.Context, productID int, country string, req UpdateProductPriceRequest) (*ProductPrice, error) {
	var price ProductPrice
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      "/v2/product/" + itoa(productID) + "/prices/" + url.PathEscape(country),
		Body:      req,
		NeedsAuth: true,
	}, &price)
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// UpdatePriceStatus enables or disables the product's price in a country.
func (s *ProductsService) UpdatePriceStatus(ctx context.Context, productID int, country, status string) error {
	return s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      "/v2/product/" + itoa(productID) + "/prices/" + url.PathEscape(country) + "/status",
		Body:      map[string]any{"status": status},
		NeedsAuth: true,
	}, nil)
}

// ProductSetOf navigates from a product to its owning product set.
func (s *ProductsService) ProductSetOf(ctx context.Context, product *Handle[Product]) (*Handle[ProductSet], error) {
	if product.Attrs.ProductSetID == 0 {
		return nil, fmt.Errorf("iconic: product %d has no product set", product.Attrs.ID)
	}
	return s.client.ProductSets.Get(ctx, product.Attrs.ProductSetID)
}
