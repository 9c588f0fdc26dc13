package iconic

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"
)

// Webhook is a registered callback subscription. Webhook management
// endpoints require request signing.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Events    []string  `json:"events,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// WebhookEntity groups the events available for one entity type.
type WebhookEntity struct {
	Name   string         `json:"name"`
	Events []WebhookEvent `json:"events"`
}

// WebhookEvent is a subscribable event.
type WebhookEvent struct {
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// WebhookCallback is one delivery attempt record.
type WebhookCallback struct {
	ID         int       `json:"id"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	URL        string    `json:"url,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	LastCallAt time.Time `json:"lastCallAt,omitempty"`
}

// CreateWebhookRequest registers a callback URL for a set of event aliases.
type CreateWebhookRequest struct {
	CallbackURL string   `json:"callbackUrl" validate:"required,url"`
	Events      []string `json:"events" validate:"required,min=1"`
}

// UpdateWebhookRequest replaces a webhook's callback URL and events.
type UpdateWebhookRequest struct {
	CallbackURL string   `json:"callbackUrl" validate:"required,url"`
	Events      []string `json:"events" validate:"required,min=1"`
}

// WebhooksService maps the /v2/webhooks endpoints.
type WebhooksService struct {
	client *Client
}

func (s *WebhooksService) res() resource[Webhook] {
	return resource[Webhook]{client: s.client, path: "/v2/webhooks"}
}

// Entities returns the catalog of entity types and their subscribable
// events.
func (s *WebhooksService) Entities(ctx context.Context) ([]WebhookEntity, error) {
	var out struct {
		Events []WebhookEntity `json:"events"`
	}
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/webhook/entities",
		NeedsAuth:  true,
		Idempotent: true,
	}, &out)
	return out.Events, err
}

// Create registers a webhook. body is a CreateWebhookRequest or a raw map
// of fields.
func (s *WebhooksService) Create(ctx context.Context, body any) (*Handle[Webhook], error) {
	var v Webhook
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPost,
		Path:      "/v2/webhooks",
		Body:      body,
		NeedsAuth: true,
		Sign:      true,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &Handle[Webhook]{
		client: s.client,
		path:   "/v2/webhooks/" + url.PathEscape(v.ID),
		Attrs:  v,
	}, nil
}

// List fetches one page of webhooks, optionally restricted to specific
// public IDs.
func (s *WebhooksService) List(ctx context.Context, publicIDs ...string) (*Page[Webhook], error) {
	f := url.Values{}
	for _, id := range publicIDs {
		f.Add("publicIds[]", id)
	}
	return s.res().list(ctx, PageRequest{Filters: f})
}

// All materializes the complete webhook listing.
func (s *WebhooksService) All(ctx context.Context) ([]Webhook, error) {
	return s.res().all(ctx, PageRequest{})
}

// Get fetches a single webhook by its public ID.
func (s *WebhooksService) Get(ctx context.Context, publicID string) (*Handle[Webhook], error) {
	return s.res().get(ctx, "/v2/webhooks/"+url.PathEscape(publicID))
}

// Update replaces the webhook's callback URL and events, refreshing the
// handle's snapshot in place. body is an UpdateWebhookRequest or a raw map.
func (s *WebhooksService) Update(ctx context.Context, webhook *Handle[Webhook], body any) error {
	resp, err := s.client.send(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      webhook.Path(),
		Body:      body,
		NeedsAuth: true,
		Sign:      true,
	})
	if err != nil {
		return err
	}
	if len(resp.Body) == 0 {
		return webhook.Refresh(ctx)
	}
	var v Webhook
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	webhook.Attrs = v
	return nil
}

// UpdateStatus enables or disables a webhook.
func (s *WebhooksService) UpdateStatus(ctx context.Context, webhook *Handle[Webhook], enabled bool) error {
	err := s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPut,
		Path:      webhook.Path() + "/status",
		Body:      map[string]any{"isEnabled": enabled},
		NeedsAuth: true,
		Sign:      true,
	}, nil)
	if err != nil {
		return err
	}
	return webhook.Refresh(ctx)
}

// Delete removes a webhook. The handle remains usable as a value; further
// operations on the deleted identifier surface *NotFoundError.
func (s *WebhooksService) Delete(ctx context.Context, webhook *Handle[Webhook]) error {
	return s.client.Do(ctx, RequestSpec{
		Method:    http.MethodDelete,
		Path:      webhook.Path(),
		NeedsAuth: true,
		Sign:      true,
	}, nil)
}

// CallbacksByURL pages through the delivery records for a callback URL.
func (s *WebhooksService) CallbacksByURL(ctx context.Context, callbackURL string, req PageRequest) (*Page[WebhookCallback], error) {
	if req.Filters == nil {
		req.Filters = url.Values{}
	}
	req.Filters.Set("callbackUrl", callbackURL)
	r := resource[WebhookCallback]{client: s.client, path: "/v2/webhook/callbacks"}
	return r.list(ctx, req)
}

// CallbacksIter lazily yields the delivery records for a callback URL.
func (s *WebhooksService) CallbacksIter(ctx context.Context, callbackURL string) iter.Seq2[WebhookCallback, error] {
	f := url.Values{}
	f.Set("callbackUrl", callbackURL)
	r := resource[WebhookCallback]{client: s.client, path: "/v2/webhook/callbacks"}
	return r.iterate(ctx, PageRequest{Filters: f})
}

// GetCallback fetches one delivery record.
func (s *WebhooksService) GetCallback(ctx context.Context, id int) (*WebhookCallback, error) {
	var cb WebhookCallback
	err := s.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       "/v2/webhook/callbacks/" + itoa(id),
		NeedsAuth:  true,
		Idempotent: true,
	}, &cb)
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

// RetryCallback re-delivers a failed callback.
func (s *WebhooksService) RetryCallback(ctx context.Context, id int) error {
	return s.client.Do(ctx, RequestSpec{
		Method:    http.MethodPost,
		Path:      "/v2/webhook/callbacks/" + itoa(id) + "/retry",
		NeedsAuth: true,
		Sign:      true,
	}, nil)
}
