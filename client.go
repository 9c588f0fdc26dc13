package iconic

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxAttempts = 4
	defaultBackoffBase = 500 * time.Millisecond
	defaultMaxElapsed  = 2 * time.Minute
)

// Client is a seller-platform API client. All domain services share its
// token lifecycle, rate limiter and retry policy; one Client per set of
// credentials is the intended usage.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	bucket     *Bucket
	signer     *Signer
	logger     *log.Logger

	timeout     time.Duration
	maxAttempts int
	backoffBase time.Duration
	maxElapsed  time.Duration

	rateCapacity float64
	rateRefill   float64

	closed atomic.Bool
	done   chan struct{}

	// Domain services.
	Products    *ProductsService
	ProductSets *ProductSetsService
	Orders      *OrdersService
	Brands      *BrandsService
	Categories  *CategoriesService
	Webhooks    *WebhooksService
	Finance     *FinanceService
	Invoices    *InvoicesService
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call wire timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit overrides the default bucket capacity and refill rate
// (tokens per second). The platform default is 25 requests per second.
func WithRateLimit(capacity, refillPerSecond float64) Option {
	return func(c *Client) {
		c.rateCapacity = capacity
		c.rateRefill = refillPerSecond
	}
}

// WithBucket injects a pre-built rate limiter, e.g. one shared between
// clients or using a test clock.
func WithBucket(b *Bucket) Option {
	return func(c *Client) {
		c.bucket = b
	}
}

// WithMaxAttempts bounds the retry loop for idempotent-safe requests.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryPolicy sets the initial backoff interval and the maximum total
// elapsed time across retries.
func WithRetryPolicy(initial, maxElapsed time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = initial
		c.maxElapsed = maxElapsed
	}
}

// WithSigningKey supplies the key material for endpoints flagged as
// requiring a request signature.
func WithSigningKey(key []byte) Option {
	return func(c *Client) {
		c.signer = NewSigner(key)
	}
}

// WithLogger sets the logger. Nil (the default) is silent.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBaseURL overrides the instance base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithTokenProvider injects a custom token provider.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) {
		c.tokens = tp
	}
}

// New creates a Client for the given instance domain and credentials.
func New(clientID, clientSecret, instanceDomain string, opts ...Option) *Client {
	c := &Client{
		baseURL:     "https://" + instanceDomain,
		httpClient:  &http.Client{},
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		maxElapsed:  defaultMaxElapsed,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		authOpts := []AuthOption{WithAuthHTTPClient(c.httpClient)}
		c.tokens = NewClientCredentialsProvider(clientID, clientSecret, instanceDomain, authOpts...)
	}
	if c.bucket == nil {
		c.bucket = NewBucket(c.rateCapacity, c.rateRefill)
	}

	c.Products = &ProductsService{client: c}
	c.ProductSets = &ProductSetsService{client: c}
	c.Orders = &OrdersService{client: c}
	c.Brands = &BrandsService{client: c}
	c.Categories = &CategoriesService{client: c}
	c.Webhooks = &WebhooksService{client: c}
	c.Finance = &FinanceService{client: c}
	c.Invoices = &InvoicesService{client: c}

	return c
}

// Close releases the cached credential and makes all further operations
// fail fast with ErrClientClosed. In-flight wire calls may complete or
// fail; callers waiting on retry backoff are released immediately.
func (c *Client) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
		if p, ok := c.tokens.(*ClientCredentialsProvider); ok {
			p.forget()
		}
	}
	return nil
}

func (c *Client) check() error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return nil
}

func (c *Client) logDebug(msg string, keyvals ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, keyvals...)
	}
}

func (c *Client) logWarn(msg string, keyvals ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, keyvals...)
	}
}
