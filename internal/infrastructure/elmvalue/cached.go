package elmvalue

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

type parsed struct {
	value domain.Value
	err   error
}

// CachedParser memoizes another parser in a bounded LRU. Construct one per
// process and pass it to every runner that needs it.
type CachedParser struct {
	inner ports.ValueParser
	cache *lru.Cache[string, parsed]
}

// NewCachedParser wraps inner with an LRU holding up to size entries.
func NewCachedParser(inner ports.ValueParser, size int) (*CachedParser, error) {
	if size <= 0 {
		size = domain.DefaultParserCacheSize
	}
	cache, err := lru.New[string, parsed](size)
	if err != nil {
		return nil, err
	}
	return &CachedParser{inner: inner, cache: cache}, nil
}

// Parse returns the cached outcome for text, parsing it on a miss.
// Failures are cached too; the input determines the outcome.
func (c *CachedParser) Parse(text string) (domain.Value, error) {
	if hit, ok := c.cache.Get(text); ok {
		return hit.value, hit.err
	}
	v, err := c.inner.Parse(text)
	c.cache.Add(text, parsed{value: v, err: err})
	return v, err
}

// Len reports the number of cached entries.
func (c *CachedParser) Len() int {
	return c.cache.Len()
}

var _ ports.ValueParser = (*CachedParser)(nil)
