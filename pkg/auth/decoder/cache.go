package decoder

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/ssobridge/ssobridge/pkg/logger"
	"github.com/ssobridge/ssobridge/pkg/metrics"
)

// DefaultFetchTimeout bounds the key set fetch performed while constructing a decoder.
const DefaultFetchTimeout = 5 * time.Second

// Factory constructs the decoder for a registration.
type Factory func(ctx context.Context, registrationID, jwksURI string) (Decoder, error)

// Validation holds the per-registration claim checks applied by the default factory.
type Validation struct {
	Issuer   string
	Audience string
}

// Cache maps registration IDs to decoders. Each decoder is constructed at most
// once, on first use, and kept for the lifetime of the process.
//
// Concurrent first calls for the same registration share one construction.
// A failed construction is reported to the callers waiting on it and is not
// remembered; the next call tries again.
type Cache struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	flights  singleflight.Group
	// keySets serializes jwk.Cache registration per JWKS URL, which several
	// registrations may share.
	keySets singleflight.Group

	factory      Factory
	fetchTimeout time.Duration
	leeway       time.Duration
	validation   map[string]Validation
	httpClient   *http.Client
	keys         *jwk.Cache
	metrics      *metrics.Metrics
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the client used to fetch key sets.
func WithHTTPClient(c *http.Client) Option {
	return func(cache *Cache) {
		cache.httpClient = c
	}
}

// WithFetchTimeout bounds each decoder construction.
func WithFetchTimeout(d time.Duration) Option {
	return func(cache *Cache) {
		if d > 0 {
			cache.fetchTimeout = d
		}
	}
}

// WithLeeway sets the clock skew tolerated by constructed decoders.
func WithLeeway(d time.Duration) Option {
	return func(cache *Cache) {
		cache.leeway = d
	}
}

// WithValidation sets the issuer and audience checks for one registration.
func WithValidation(registrationID string, v Validation) Option {
	return func(cache *Cache) {
		cache.validation[registrationID] = v
	}
}

// WithFactory replaces decoder construction.
func WithFactory(f Factory) Option {
	return func(cache *Cache) {
		cache.factory = f
	}
}

// WithMetrics records constructions and cache size on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cache *Cache) {
		cache.metrics = m
	}
}

// NewCache creates an empty cache. ctx bounds the lifetime of the background
// key set refresher; cancel it on shutdown.
func NewCache(ctx context.Context, opts ...Option) (*Cache, error) {
	c := &Cache{
		decoders:     make(map[string]Decoder),
		fetchTimeout: DefaultFetchTimeout,
		validation:   make(map[string]Validation),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.factory == nil {
		client := c.httpClient
		if client == nil {
			client = &http.Client{Timeout: c.fetchTimeout}
		}
		keys, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(client)))
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
		}
		c.keys = keys
		c.factory = c.newJWKSDecoder
	}
	return c, nil
}

// Resolve returns the decoder for registrationID, constructing it from jwksURI
// on first use. Later calls return the same instance regardless of jwksURI.
//
// The caller stops waiting when ctx is done and gets ctx.Err(). The construction
// itself is detached from ctx and bounded by the fetch timeout, so callers
// sharing the flight are not affected.
func (c *Cache) Resolve(ctx context.Context, registrationID, jwksURI string) (Decoder, error) {
	if d, ok := c.get(registrationID); ok {
		return d, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := c.flights.DoChan(registrationID, func() (any, error) {
		// a previous flight may have stored it between get and DoChan
		if d, ok := c.get(registrationID); ok {
			return d, nil
		}
		return c.construct(context.WithoutCancel(ctx), registrationID, jwksURI)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Decoder), nil
	}
}

// Len returns the number of cached decoders.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.decoders)
}

func (c *Cache) get(registrationID string) (Decoder, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.decoders[registrationID]
	return d, ok
}

func (c *Cache) construct(ctx context.Context, registrationID, jwksURI string) (Decoder, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	log := logger.With("registration", registrationID, "jwks_uri", jwksURI)

	start := time.Now()
	d, err := c.factory(ctx, registrationID, jwksURI)
	elapsed := time.Since(start)
	c.metrics.ObserveConstruction(registrationID, elapsed, err)
	if err != nil {
		log.Warn("failed to construct token decoder", "error", err)
		return nil, err
	}

	c.mu.Lock()
	c.decoders[registrationID] = d
	n := len(c.decoders)
	c.mu.Unlock()

	c.metrics.SetCached(n)
	log.Info("token decoder ready", "elapsed", elapsed)
	return d, nil
}

func (c *Cache) newJWKSDecoder(ctx context.Context, registrationID, jwksURI string) (Decoder, error) {
	_, err, _ := c.keySets.Do(jwksURI, func() (any, error) {
		return nil, RegisterKeySet(ctx, c.keys, jwksURI)
	})
	if err != nil {
		return nil, err
	}

	v := c.validation[registrationID]
	d, err := NewJWKSDecoder(ctx, c.keys, Config{
		JWKSURL:  jwksURI,
		Issuer:   v.Issuer,
		Audience: v.Audience,
		Leeway:   c.leeway,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
