package iconic_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iconic "github.com/sellerkit/iconic-go"
)

func TestInvoices_Files(t *testing.T) {
	t.Parallel()

	archive := []byte("PK\x03\x04 fake zip")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/invoices", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, []string{"ORD-1", "ORD-2"}, q["orderNumbers[]"])
		assert.Equal(t, []string{"invoice"}, q["documentTypes[]"])
		assert.Equal(t, "2026-01-01", q.Get("startDate"))
		assert.Equal(t, "2026-01-31", q.Get("endDate"))
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(archive)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	got, err := c.Invoices.Files(context.Background(), iconic.InvoiceFilesRequest{
		OrderNumbers:  []string{"ORD-1", "ORD-2"},
		DocumentTypes: []string{"invoice"},
		StartDate:     time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, archive, got)
}

func TestInvoices_FilesEmptyRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("startDate"))
		_, _ = w.Write([]byte("PK"))
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, srv.URL)
	got, err := c.Invoices.Files(context.Background(), iconic.InvoiceFilesRequest{})
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), got)
}
