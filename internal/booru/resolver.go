package booru

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jellydator/ttlcache/v3"

	"derpisync/internal/logging"
)

// ErrDuplicateCycle reports a duplicate_of chain that returns to an image it
// already visited.
var ErrDuplicateCycle = errors.New("duplicate chain cycle")

// ImageFetcher is the subset of Client used by Resolver.
type ImageFetcher interface {
	Image(ctx context.Context, id uint64) (*Image, error)
}

var _ ImageFetcher = (*Client)(nil)

// Resolution is the outcome of following a duplicate chain.
type Resolution struct {
	// Chain lists every image visited, starting with the requested id.
	Chain []uint64
	// Tags is nil when no image in the chain carries a tag list.
	Tags []string
}

// Found reports whether a tag list was located.
func (r *Resolution) Found() bool {
	return r != nil && r.Tags != nil
}

// ResolvedID is the image whose tags were used, or the last image visited.
func (r *Resolution) ResolvedID() uint64 {
	if r == nil || len(r.Chain) == 0 {
		return 0
	}
	return r.Chain[len(r.Chain)-1]
}

// Resolver follows duplicate_of links to the image that owns the tags.
type Resolver struct {
	fetcher       ImageFetcher
	cacheTTL      time.Duration
	cacheCapacity uint64
	cache         *ttlcache.Cache[uint64, *Image]
	cacheDone     chan struct{}
	closeOnce     sync.Once
	logger        *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL keeps fetched records for ttl so repeated lookups of the same
// image skip the network. Zero disables caching.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

// WithCacheCapacity bounds the number of cached records; the least recently
// used record is evicted first. Zero leaves the cache unbounded.
func WithCacheCapacity(capacity uint64) ResolverOption {
	return func(r *Resolver) {
		r.cacheCapacity = capacity
	}
}

// WithResolverLogger sets the logger used for chain diagnostics.
func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver wraps fetcher.
func NewResolver(fetcher ImageFetcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{fetcher: fetcher}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "resolver")
	if r.cacheTTL > 0 {
		cacheOpts := []ttlcache.Option[uint64, *Image]{
			ttlcache.WithTTL[uint64, *Image](r.cacheTTL),
			ttlcache.WithDisableTouchOnHit[uint64, *Image](),
		}
		if r.cacheCapacity > 0 {
			cacheOpts = append(cacheOpts, ttlcache.WithCapacity[uint64, *Image](r.cacheCapacity))
		}
		r.cache = ttlcache.New(cacheOpts...)
		r.cacheDone = make(chan struct{})
		go func() {
			defer close(r.cacheDone)
			r.cache.Start()
		}()
	}
	return r
}

// Close stops the cache's expiry loop. The resolver must not be used after.
func (r *Resolver) Close() {
	if r == nil || r.cache == nil {
		return
	}
	r.closeOnce.Do(func() {
		// Stop is a no-op until Start has begun running.
		for {
			r.cache.Stop()
			select {
			case <-r.cacheDone:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	})
}

// Resolve fetches id and walks duplicate_of links while the current record has
// no tag list. It stops at the first record with tags, or at a record with
// neither tags nor a duplicate link.
func (r *Resolver) Resolve(ctx context.Context, id uint64) (*Resolution, error) {
	if r == nil || r.fetcher == nil {
		return nil, errors.New("image fetcher unavailable")
	}
	visited := mapset.NewThreadUnsafeSet[uint64]()
	res := &Resolution{}

	current := id
	for {
		if !visited.Add(current) {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateCycle, append(res.Chain, current))
		}
		res.Chain = append(res.Chain, current)

		image, err := r.lookup(ctx, current)
		if err != nil {
			return nil, err
		}
		if image.HasTags() {
			res.Tags = image.Tags
			return res, nil
		}
		if image.DuplicateOf == nil {
			return res, nil
		}
		r.logger.Debug("following duplicate link",
			logging.Uint64("image_id", current),
			logging.Uint64("duplicate_of", *image.DuplicateOf),
		)
		current = *image.DuplicateOf
	}
}

func (r *Resolver) lookup(ctx context.Context, id uint64) (*Image, error) {
	if r.cache != nil {
		if item := r.cache.Get(id); item != nil {
			return item.Value(), nil
		}
	}
	image, err := r.fetcher.Image(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Set(id, image, ttlcache.DefaultTTL)
	}
	return image, nil
}

// Tags resolves id and reports the tag list, if one was found.
func (r *Resolver) Tags(ctx context.Context, id uint64) ([]string, bool, error) {
	res, err := r.Resolve(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return res.Tags, res.Found(), nil
}
