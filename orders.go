package iconic

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Order is a customer order as seen by the seller.
type Order struct {
	ID                int       `json:"id"`
	OrderNumber       string    `json:"orderNumber"`
	Status            string    `json:"status"`
	CustomerFirstName string    `json:"customerFirstName,omitempty"`
	CustomerLastName  string    `json:"customerLastName,omitempty"`
	GrandTotal        string    `json:"grandTotal,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt,omitempty"`
}

// OrderItem is one line item of an order.
type OrderItem struct {
	ID             int    `json:"id"`
	OrderID        int    `json:"orderId"`
	SellerSKU      string `json:"sellerSku"`
	ShopSKU        string `json:"shopSku,omitempty"`
	Name           string `json:"name,omitempty"`
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	PackageID      string `json:"packageId,omitempty"`
}

// StatusResult reports which order items a status transition touched.
type StatusResult struct {
	OrderItemIDs []int `json:"orderItemIds"`
}

// ListOrdersRequest filters the orders listing.
type ListOrdersRequest struct {
	Section         string // e.g. "status_pending", "group_express"
	DateStart       time.Time
	DateEnd         time.Time
	UpdateDateStart time.Time
	UpdateDateEnd   time.Time
	OrderNumbers    []string
	OrderIDs        []int
	ProductSKUs     []string
	Tags            []string
	Packed          *bool
	ShipmentType    string
	Outlet          bool
	Sort            string // "createdAt" or "updatedAt"
	SortDir         string // "asc" or "desc"
	Limit           int
	Offset          int
}

func (r ListOrdersRequest) page() PageRequest {
	f := url.Values{}
	if r.Section != "" {
		f.Set("section", r.Section)
	}
	if !r.DateStart.IsZero() {
		f.Set("dateStart", r.DateStart.Format(time.RFC3339))
	}
	if !r.DateEnd.IsZero() {
		f.Set("dateEnd", r.DateEnd.Format(time.RFC3339))
	}
	if !r.UpdateDateStart.IsZero() {
		f.Set("updateDateStart", r.UpdateDateStart.Format(time.RFC3339))
	}
	if !r.UpdateDateEnd.IsZero() {
		f.Set("updateDateEnd", r.UpdateDateEnd.Format(time.RFC3339))
	}
	for _, n := range r.OrderNumbers {
		f.Add("orderNumbers[]", n)
	}
	for _, id := range r.OrderIDs {
		f.Add("orderIds[]", strconv.Itoa(id))
	}
	for _, sku := range r.ProductSKUs {
		f.Add("productSku[]", sku)
	}
	for _, t := range r.Tags {
		f.Add("tags[]", t)
	}
	if r.Packed != nil {
		f.Set("packed", strconv.FormatBool(*r.Packed))
	}
	if r.ShipmentType != "" {
		f.Set("shipmentType", r.ShipmentType)
	}
	if r.Outlet {
		f.Set("outlet", "true")
	}
	if r.Sort != "" {
		f.Set("sort", r.Sort)
	}
	if r.SortDir != "" {
		f.Set("sortDir", r.SortDir)
	}
	return PageRequest{Limit: r.Limit, Offset: r.Offset, Filters: f}
}

// SetInvoiceNumberRequest attaches an invoice number to an order item.
type SetInvoiceNumberRequest struct {
	OrderItemID   int    `json:"orderItemId" validate:"required"`
	InvoiceNumber string `json:"invoiceNumber" validate:"required"`
}

// ReadyToShipRequest moves order items to ready-to-ship.
type ReadyToShipRequest struct {
	OrderItemIDs       []int  `json:"orderItemIds" validate:"required,min=1"`
	DeliveryType       string `json:"deliveryType" validate:"required,oneof=dropship pickup send_to_warehouse"`
	ShipmentProviderID int    `json:"shipmentProviderId,omitempty"`
	TrackingNumber     string `json:"trackingNumber,omitempty"`

	// RetrySafe marks this transition idempotent-safe so transient
	// failures retry automatically.
	RetrySafe bool `json:"-"`
}

// CancelItemsRequest cancels order items with a reason.
type CancelItemsRequest struct {
	OrderItemIDs []int  `json:"orderItemIds" validate:"required,min=1"`
	Reason       string `json:"reason" validate:"required"`
	ReasonDetail string `json:"reasonDetail,omitempty"`
}

// OrdersService maps the /v2/orders endpoints.
type OrdersService struct {
	client *Client
}

func (s *OrdersService) res() resource[Order] {
	return resource[Order]{client: s.client, path: "/v2/orders"}
}

// List fetches one page of orders.
func (s *OrdersService) List(ctx context.Context, req ListOrdersRequest) (*Page[Order], error) {
	return s.res().list(ctx, req.page())
}

// Paginate returns a Pager retaining continuation state across pages.
func (s *OrdersService) Paginate(req ListOrdersRequest) *Pager[Order] {
	return s.res().pager(req.page())
}

// All materializes the complete listing. Memory cost scales with the total
// result size; use Iter for very large collections.
func (s *OrdersService) All(ctx context.Context, req ListOrdersRequest) ([]Order, error) {
	return s.res().all(ctx, req.page())
}

// Iter lazily yields orders one page at a time.
func (s *OrdersService) Iter(ctx context.Context, req ListOrdersRequest) iter.Seq2[Order, error] {
	return s.res().iterate(ctx, req.page())
}

// Stream is the channel-driven form of Iter.
func (s *OrdersService) Stream(ctx context.Context, req ListOrdersRequest) <-chan StreamItem[Order] {
	return s.res().stream(ctx, req.page())
}

// Get fetches a single order by ID.
func (s *OrdersService) Get(ctx context.Context, id int) (*Handle[Order], error) {
	return s.res().get(ctx, fmt.Sprintf("/v2/orders/%d", id))
}

// Items lists the line items of an order handle. Identical to a top-level
// item listing scoped by the order's ID.
func (s *OrdersService) Items(ctx context.Context, order *Handle[Order]) ([]OrderItem, error) {
	r := resource[OrderItem]{client: s.client, path: order.Path() + "/items"}
	return r.all(ctx, PageRequest{})
}

// SetInvoiceNumber attaches an invoice number to an order item.
func (s *OrdersService) SetInvoiceNumber(ctx context.Context, req SetInvoiceNumberRequest) error {
	return s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPost,
		Path:      "/v2/orders/set-invoice-number",
		Body:      req,
		NeedsAuth: true,
	}, nil)
}

// SetReadyToShip moves order items to ready-to-ship.
func (s *OrdersService) SetReadyToShip(ctx context.Context, req ReadyToShipRequest) (*StatusResult, error) {
	return s.setStatus(ctx, "ready-to-ship", req, req.RetrySafe)
}

// SetShipped marks order items shipped.
func (s *OrdersService) SetShipped(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "shipped", itemIDsPayload(orderItemIDs), false)
}

// SetDelivered marks order items delivered.
func (s *OrdersService) SetDelivered(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "delivered", itemIDsPayload(orderItemIDs), false)
}

// SetDeliveryFailed marks delivery as failed for order items.
func (s *OrdersService) SetDeliveryFailed(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "delivery-failed", itemIDsPayload(orderItemIDs), false)
}

// SetPackedByMarketplace marks order items packed by the marketplace.
func (s *OrdersService) SetPackedByMarketplace(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "packed-by-marketplace", itemIDsPayload(orderItemIDs), false)
}

// SetReturnReceived marks returned order items as received.
func (s *OrdersService) SetReturnReceived(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "return-received", itemIDsPayload(orderItemIDs), false)
}

// SetReturnApproved approves a return for order items.
func (s *OrdersService) SetReturnApproved(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "return-approved", itemIDsPayload(orderItemIDs), false)
}

// SetReturnRejected rejects a return for order items.
func (s *OrdersService) SetReturnRejected(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "return-rejected", itemIDsPayload(orderItemIDs), false)
}

// SetReturned marks order items as returned.
func (s *OrdersService) SetReturned(ctx context.Context, orderItemIDs []int) (*StatusResult, error) {
	return s.setStatus(ctx, "returned", itemIDsPayload(orderItemIDs), false)
}

// Cancel cancels order items with a reason.
func (s *OrdersService) Cancel(ctx context.Context, req CancelItemsRequest) (*StatusResult, error) {
	return s.setStatus(ctx, "cancelled", req, false)
}

// UploadDocument attaches a sales-order document (e.g. an invoice PDF) to a
// package as a multipart upload. It returns the created document's ID.
func (s *OrdersService) UploadDocument(ctx context.Context, packageID, documentType, filename string, file io.Reader) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("documentType", documentType); err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}
	part, err := mw.CreateFormFile("documentFile", filename)
	if err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return 0, fmt.Errorf("reading document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("building upload form: %w", err)
	}

	var created struct {
		ID int `json:"id"`
	}
	err = s.client.Do(ctx, RequestSpec{
		Method:      http.MethodPost,
		Path:        "/v2/order/document/package/" + url.PathEscape(packageID),
		Body:        buf.Bytes(),
		ContentType: mw.FormDataContentType(),
		NeedsAuth:   true,
	}, &created)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// ShippingLabel fetches the shipping label document for a package.
func (s *OrdersService) ShippingLabel(ctx context.Context, packageID string) ([]byte, error) {
	resp, err := s.client.send(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/order/document/package/" + url.PathEscape(packageID),
		NeedsAuth:  true,
		Idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (s *OrdersService) setStatus(ctx context.Context, status string, payload any, idempotent bool) (*StatusResult, error) {
	var res StatusResult
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodPost,
		Path:       "/v2/orders/statuses/set-to-" + status,
		Body:       payload,
		NeedsAuth:  true,
		Idempotent: idempotent,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func itemIDsPayload(ids []int) map[string]any {
	return map[string]any{"orderItemIds": ids}
}
