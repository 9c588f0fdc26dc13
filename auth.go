package iconic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sellerkit/iconic-go/internal/metrics"
)

const (
	tokenPath = "/oauth/client-credentials"

	// refreshMargin is the safety margin before expiry: a cached token is
	// usable only while now < expiry - refreshMargin.
	refreshMargin = 60 * time.Second
)

// TokenProvider obtains access tokens for outgoing requests.
type TokenProvider interface {
	// Token returns a valid access token, refreshing if necessary.
	Token(ctx context.Context) (string, error)

	// Invalidate drops the cached token if it is still the given one,
	// forcing the next Token call to refresh. Used after a 401.
	Invalidate(token string)
}

// ClientCredentialsProvider implements TokenProvider using the OAuth2
// client credentials flow against the instance's authorization endpoint.
// Concurrent refreshes collapse into a single in-flight token request.
type ClientCredentialsProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client

	mu      sync.Mutex
	token   string
	expiry  time.Time
	nowFunc func() time.Time
	group   singleflight.Group
}

// AuthOption configures the ClientCredentialsProvider.
type AuthOption func(*ClientCredentialsProvider)

// WithTokenURL overrides the default token endpoint.
func WithTokenURL(u string) AuthOption {
	return func(p *ClientCredentialsProvider) {
		p.tokenURL = u
	}
}

// WithAuthHTTPClient overrides the default HTTP client.
func WithAuthHTTPClient(c *http.Client) AuthOption {
	return func(p *ClientCredentialsProvider) {
		p.client = c
	}
}

// WithAuthNowFunc overrides the time function for testing.
func WithAuthNowFunc(f func() time.Time) AuthOption {
	return func(p *ClientCredentialsProvider) {
		p.nowFunc = f
	}
}

// NewClientCredentialsProvider creates a token provider for the given
// instance domain and credentials.
func NewClientCredentialsProvider(
	clientID, clientSecret, instanceDomain string,
	opts ...AuthOption,
) *ClientCredentialsProvider {
	p := &ClientCredentialsProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     "https://" + instanceDomain + tokenPath,
		client:       &http.Client{Timeout: 10 * time.Second},
		nowFunc:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Token returns the cached token while fresh, otherwise refreshes. Callers
// arriving during a refresh wait on the single in-flight request instead of
// issuing duplicates.
func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	if tok, ok := p.cached(); ok {
		return tok, nil
	}

	v, err, _ := p.group.Do("token", func() (any, error) {
		// A caller queued behind the refresh that just completed can use
		// its result directly.
		if tok, ok := p.cached(); ok {
			return tok, nil
		}
		// The refresh serves every waiter collapsed onto it, so it must
		// not die with the first arriving caller's context. The HTTP
		// client's own timeout still bounds it.
		return p.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate clears the cached token if it matches. A token already
// replaced by a newer refresh is left alone.
func (p *ClientCredentialsProvider) Invalidate(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == token {
		p.token = ""
		p.expiry = time.Time{}
	}
}

// forget wipes the cached token and secret. Called on client close.
func (p *ClientCredentialsProvider) forget() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
	p.expiry = time.Time{}
	p.clientSecret = ""
}

func (p *ClientCredentialsProvider) cached() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.nowFunc().Before(p.expiry.Add(-refreshMargin)) {
		return p.token, true
	}
	return "", false
}

func (p *ClientCredentialsProvider) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type": {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.tokenURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	creds := base64.StdEncoding.EncodeToString(
		[]byte(p.clientID + ":" + p.clientSecret),
	)
	req.Header.Set("Authorization", "Basic "+creds)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(body, &errResp) //nolint:errcheck // best-effort error parsing
		return "", &AuthError{
			Message: fmt.Sprintf(
				"token request failed (status %d): %s - %s",
				resp.StatusCode,
				errResp.Error,
				errResp.ErrorDescription,
			),
		}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", &AuthError{Message: "malformed token response", Err: err}
	}
	if tokenResp.AccessToken == "" || tokenResp.ExpiresIn <= 0 {
		return "", &AuthError{Message: "token response missing access_token or expires_in"}
	}

	p.mu.Lock()
	p.token = tokenResp.AccessToken
	p.expiry = p.nowFunc().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	p.mu.Unlock()

	metrics.TokenRefreshesTotal.Inc()

	return tokenResp.AccessToken, nil
}
