package conflict

import (
	"sort"
	"strings"
	"sync"
)

// SeenCache remembers which member sets a caller has already been notified about.
// It is owned by the caller; the detector never consults it.
type SeenCache struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewSeenCache returns an empty cache.
func NewSeenCache() *SeenCache {
	return &SeenCache{seen: make(map[string]struct{})}
}

// Mark records the conflict's members under its type.
func (c *SeenCache) Mark(conflicts ...Conflict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cf := range conflicts {
		c.seen[seenKey(cf)] = struct{}{}
	}
}

// Seen reports whether cf was marked before.
func (c *SeenCache) Seen(cf Conflict) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[seenKey(cf)]
	return ok
}

// Keys returns the remembered entries in sorted order, for persisting.
func (c *SeenCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.seen))
	for k := range c.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Restore re-adds entries previously returned by Keys.
func (c *SeenCache) Restore(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			c.seen[k] = struct{}{}
		}
	}
}

// FilterUnseen returns conflicts not yet marked.
func (c *SeenCache) FilterUnseen(conflicts []Conflict) []Conflict {
	out := make([]Conflict, 0, len(conflicts))
	for _, cf := range conflicts {
		if !c.Seen(cf) {
			out = append(out, cf)
		}
	}
	return out
}

func seenKey(cf Conflict) string {
	keys := make([]string, 0, len(cf.Activities))
	for _, a := range cf.Activities {
		keys = append(keys, a.Key().String())
	}
	sort.Strings(keys)
	return string(cf.Type) + "|" + strings.Join(keys, "|")
}
