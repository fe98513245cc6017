package qr

import (
	"bytes"
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jackielii/heritage/internal/metrics"
)

// CachedEncoder memoizes successful encodes by text and options. Failures
// are not cached. Every call records exactly one encode outcome: cached on
// a hit, ok or error otherwise.
type CachedEncoder struct {
	next  Encoder
	cache *cache.Cache
}

// NewCachedEncoder wraps next. A ttl of zero keeps entries forever.
func NewCachedEncoder(next Encoder, ttl time.Duration) *CachedEncoder {
	exp := ttl
	if exp <= 0 {
		exp = cache.NoExpiration
	}
	return &CachedEncoder{next: next, cache: cache.New(exp, 10*time.Minute)}
}

func (c *CachedEncoder) Encode(ctx context.Context, text string, opts Options) ([]byte, error) {
	key := text + "|" + opts.key()
	if v, ok := c.cache.Get(key); ok {
		metrics.RecordQREncode("cached")
		return bytes.Clone(v.([]byte)), nil
	}
	data, err := c.next.Encode(ctx, text, opts)
	if err != nil {
		metrics.RecordQREncode("error")
		return nil, err
	}
	metrics.RecordQREncode("ok")
	c.cache.SetDefault(key, bytes.Clone(data))
	return data, nil
}

// Len reports the number of cached images.
func (c *CachedEncoder) Len() int {
	return c.cache.ItemCount()
}
