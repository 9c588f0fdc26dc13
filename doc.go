// Package iconic is a client for the seller-platform REST API: product
// catalog, product sets, orders, brands, categories, webhooks and finance
// statements.
//
// A Client owns the OAuth2 client-credentials token lifecycle, a shared
// leaky-bucket rate limiter, retry/backoff for transient failures and
// request signing. Every domain wrapper is a thin layer over a generic
// resource base that provides paginated listing, full materialization,
// lazy iteration and parent/child navigation.
//
// All operations are blocking and context-aware. Non-blocking variants are
// built from the same code path: wrap any call with Go to obtain a
// Future, or use a service's Stream method for channel-driven iteration.
package iconic
