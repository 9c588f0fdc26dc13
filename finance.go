package iconic

import (
	"context"
	"iter"
	"net/http"
	"net/url"
	"time"
)

// FinanceStatement is a payout statement summary.
type FinanceStatement struct {
	ID        int       `json:"id"`
	Type      string    `json:"type"` // "marketplace" or "consignment"
	StartDate time.Time `json:"startDate,omitempty"`
	EndDate   time.Time `json:"endDate,omitempty"`
	Balance   float64   `json:"balance,omitempty"`
	Paid      bool      `json:"paid,omitempty"`
}

// ListStatementsRequest filters the statements listing.
type ListStatementsRequest struct {
	Type      string // "marketplace" or "consignment"
	DateStart time.Time
	DateEnd   time.Time
	Limit     int
	Offset    int
}

func (r ListStatementsRequest) page() PageRequest {
	f := url.Values{}
	if r.Type != "" {
		f.Set("type", r.Type)
	}
	if !r.DateStart.IsZero() {
		f.Set("dateStart", r.DateStart.Format(time.RFC3339))
	}
	if !r.DateEnd.IsZero() {
		f.Set("dateEnd", r.DateEnd.Format(time.RFC3339))
	}
	return PageRequest{Limit: r.Limit, Offset: r.Offset, Filters: f}
}

// FinanceService maps the /v2/finance endpoints.
type FinanceService struct {
	client *Client
}

func (s *FinanceService) res() resource[FinanceStatement] {
	return resource[FinanceStatement]{client: s.client, path: "/v2/finance/statements"}
}

// Statements fetches one page of finance statements.
func (s *FinanceService) Statements(ctx context.Context, req ListStatementsRequest) (*Page[FinanceStatement], error) {
	return s.res().list(ctx, req.page())
}

// StatementsIter lazily yields finance statements.
func (s *FinanceService) StatementsIter(ctx context.Context, req ListStatementsRequest) iter.Seq2[FinanceStatement, error] {
	return s.res().iterate(ctx, req.page())
}

// GetStatement fetches a single statement by ID.
func (s *FinanceService) GetStatement(ctx context.Context, id int) (*FinanceStatement, error) {
	var st FinanceStatement
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/finance/statements/" + itoa(id),
		NeedsAuth:  true,
		Idempotent: true,
	}, &st)
	if err != nil {
		return nil, err
	}
	return &st, nil
}
