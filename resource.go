package iconic

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
)

// resource is the generic listing/pagination/navigation base every domain
// wrapper builds on. path is the collection endpoint; navigation creates a
// new resource scoped under the owning item's path.
type resource[T any] struct {
	client *Client
	path   string
}

// list fetches one page.
func (r resource[T]) list(ctx context.Context, req PageRequest) (*Page[T], error) {
	resp, err := r.client.send(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       r.path,
		Query:      req.query(),
		NeedsAuth:  true,
		Idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	return decodePage[T](resp.Body, req)
}

// pager returns an iterator that retains continuation state across pages.
func (r resource[T]) pager(req PageRequest) *Pager[T] {
	req.Limit = req.normLimit()
	return &Pager[T]{res: r, req: req}
}

// all materializes the complete listing. Memory cost scales with the total
// result size; prefer iterate for very large collections.
func (r resource[T]) all(ctx context.Context, req PageRequest) ([]T, error) {
	p := r.pager(req)
	var items []T
	for p.HasNext() {
		page, err := p.Next(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

// iterate yields items one at a time, fetching the next page only when the
// current one is exhausted. Breaking out of the loop stops fetching without
// error; a page failure is yielded at the point the next page would have
// been fetched, after all earlier items.
func (r resource[T]) iterate(ctx context.Context, req PageRequest) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		p := r.pager(req)
		for p.HasNext() {
			page, err := p.Next(ctx)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// StreamItem carries one streamed item or the error that ended the stream.
type StreamItem[T any] struct {
	Value T
	Err   error
}

// stream is the channel-driven form of iterate. The channel is closed when
// the listing ends, an error is delivered, or ctx is cancelled.
func (r resource[T]) stream(ctx context.Context, req PageRequest) <-chan StreamItem[T] {
	ch := make(chan StreamItem[T])
	go func() {
		defer close(ch)
		for item, err := range r.iterate(ctx, req) {
			select {
			case ch <- StreamItem[T]{Value: item, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return ch
}

// get fetches a single item and wraps it in a handle for further calls.
func (r resource[T]) get(ctx context.Context, itemPath string) (*Handle[T], error) {
	var v T
	err := r.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       itemPath,
		NeedsAuth:  true,
		Idempotent: true,
	}, &v)
	if err != nil {
		return nil, err
	}
	return &Handle[T]{client: r.client, path: itemPath, Attrs: v}, nil
}

// Pager pages through a listing without the caller re-specifying offsets.
// Page N+1 is requested only after page N completes, because continuation
// offsets depend on the prior page.
type Pager[T any] struct {
	res  resource[T]
	req  PageRequest
	done bool
}

// HasNext reports whether another page may exist.
func (p *Pager[T]) HasNext() bool {
	return !p.done
}

// Next fetches the next page. After the final page it returns
// ErrNoMorePages.
func (p *Pager[T]) Next(ctx context.Context) (*Page[T], error) {
	if p.done {
		return nil, ErrNoMorePages
	}
	page, err := p.res.list(ctx, p.req)
	if err != nil {
		return nil, err
	}
	p.req.Offset += len(page.Items)
	// An exhausted page size on the server side changes page.Limit; keep
	// requesting with ours, offsets stay consistent either way.
	if !page.HasMore || len(page.Items) == 0 {
		p.done = true
	}
	return page, nil
}

// Handle is a lightweight reference to a remote entity: its canonical path,
// the last-fetched attribute snapshot, and a non-owning reference to the
// client for further calls. Mutations through other handles of the same
// identity do not invalidate this one; call Refresh to re-fetch.
type Handle[T any] struct {
	client *Client
	path   string
	Attrs  T
}

// Path returns the handle's canonical API path.
func (h *Handle[T]) Path() string { return h.path }

// Refresh re-fetches the attribute snapshot. A deleted identifier surfaces
// as *NotFoundError.
func (h *Handle[T]) Refresh(ctx context.Context) error {
	var v T
	err := h.client.Do(ctx, RequestSpec{
		Method:     http.MethodGet,
		Path:       h.path,
		NeedsAuth:  true,
		Idempotent: true,
	}, &v)
	if err != nil {
		return err
	}
	h.Attrs = v
	return nil
}

// update sends a mutation against the handle's path and refreshes the
// snapshot in place: from the response body when the server echoes the
// entity, otherwise by re-fetching. Some mutations answer 204.
func (h *Handle[T]) update(ctx context.Context, method string, payload any, idempotent bool) error {
	resp, err := h.client.send(ctx, RequestSpec{
		Method:     method,
		Path:       h.path,
		Body:       payload,
		NeedsAuth:  true,
		Idempotent: idempotent,
	})
	if err != nil {
		return err
	}
	if len(resp.Body) == 0 {
		return h.Refresh(ctx)
	}
	var v T
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	h.Attrs = v
	return nil
}
