package resolve

import (
	"context"

	"github.com/peachmeow/peachmeow/pkg/types"
)

// Key identifies one resolution.
type Key struct {
	Source string
	Mode   string
}

func (k Key) String() string {
	return k.Source + "@" + k.Mode
}

// Cache memoises resolutions for the lifetime of one run. Each key is
// resolved at most once; failures are not cached.
type Cache struct {
	resolver *Resolver
	entries  map[Key]types.ResolvedVersion
}

// NewCache returns an empty cache in front of resolver.
func NewCache(resolver *Resolver) *Cache {
	return &Cache{
		resolver: resolver,
		entries:  make(map[Key]types.ResolvedVersion),
	}
}

// Resolve returns the cached resolution of (source, mode), resolving it on first use.
func (c *Cache) Resolve(ctx context.Context, source, mode string) (types.ResolvedVersion, error) {
	key := Key{Source: source, Mode: mode}
	if rv, ok := c.entries[key]; ok {
		return rv, nil
	}

	rv, err := c.resolver.Resolve(ctx, source, mode)
	if err != nil {
		return types.ResolvedVersion{}, err
	}
	c.entries[key] = rv
	return rv, nil
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	return len(c.entries)
}
