package iconic

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// InvoiceFilesRequest filters the invoice archive download. All filters are
// optional; an empty request fetches every available document.
type InvoiceFilesRequest struct {
	OrderNumbers   []string
	InvoiceNumbers []string
	PONumbers      []string
	DocumentTypes  []string // e.g. "invoice", "credit_note"
	StartDate      time.Time
	EndDate        time.Time
}

func (r InvoiceFilesRequest) query() url.Values {
	q := url.Values{}
	for _, n := range r.OrderNumbers {
		q.Add("orderNumbers[]", n)
	}
	for _, n := range r.InvoiceNumbers {
		q.Add("invoiceNumbers[]", n)
	}
	for _, n := range r.PONumbers {
		q.Add("poNumbers[]", n)
	}
	for _, dt := range r.DocumentTypes {
		q.Add("documentTypes[]", dt)
	}
	if !r.StartDate.IsZero() {
		q.Set("startDate", r.StartDate.Format(time.DateOnly))
	}
	if !r.EndDate.IsZero() {
		q.Set("endDate", r.EndDate.Format(time.DateOnly))
	}
	return q
}

// InvoicesService maps the /v2/invoices endpoints.
type InvoicesService struct {
	client *Client
}

// Files downloads the matching tax documents as a zip archive.
func (s *InvoicesService) Files(ctx context.Context, req InvoiceFilesRequest) ([]byte, error) {
	resp, err := s.client.send(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/invoices",
		Query:      req.query(),
		NeedsAuth:  true,
		Idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
