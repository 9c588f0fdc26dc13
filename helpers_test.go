package iconic_test

import (
	"context"
	"sync"
	"testing"
	"time"

	iconic "github.com/sellerkit/iconic-go"
)

// staticTokens is a TokenProvider serving a fixed sequence of tokens.
// Invalidate advances to the next token in the sequence.
type staticTokens struct {
	mu            sync.Mutex
	tokens        []string
	idx           int
	invalidations int
}

func newStaticTokens(tokens ...string) *staticTokens {
	if len(tokens) == 0 {
		tokens = []string{"test-token"}
	}
	return &staticTokens{tokens: tokens}
}

func (s *staticTokens) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[s.idx], nil
}

func (s *staticTokens) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidations++
	if s.tokens[s.idx] == token && s.idx < len(s.tokens)-1 {
		s.idx++
	}
}

func (s *staticTokens) invalidated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidations
}

// newTestClient builds a client pointed at a test server, with a bucket
// large enough to never block and an aggressive retry policy so failing
// tests stay fast.
func newTestClient(t *testing.T, baseURL string, opts ...iconic.Option) *iconic.Client {
	t.Helper()
	base := []iconic.Option{
		iconic.WithBaseURL(baseURL),
		iconic.WithTokenProvider(newStaticTokens()),
		iconic.WithBucket(iconic.NewBucket(10000, 10000)),
		iconic.WithRetryPolicy(time.Millisecond, 30*time.Second),
	}
	c := iconic.New("client-id", "client-secret", "example.test", append(base, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
