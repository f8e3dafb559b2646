package progress

import (
	"sync"

	"github.com/fatih/color"
)

type colorFn = func(format string, a ...interface{}) string

func terminalPackageColors() []colorFn {
	return []colorFn{color.CyanString, color.MagentaString, color.GreenString, color.YellowString, color.BlueString}
}

// ColorCache assigns each package a stable, cycling terminal color so a
// task's interleaved output stays visually distinguishable from its
// siblings' across a run.
type ColorCache struct {
	mu     sync.Mutex
	index  int
	colors []colorFn
	cache  map[string]colorFn
}

// NewColorCache constructs an empty ColorCache.
func NewColorCache() *ColorCache {
	return &ColorCache{colors: terminalPackageColors(), cache: make(map[string]colorFn)}
}

func (c *ColorCache) colorForKey(key string) colorFn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn, ok := c.cache[key]; ok {
		return fn
	}
	fn := c.colors[c.index%len(c.colors)]
	c.index++
	c.cache[key] = fn
	return fn
}

// PrefixWithColor returns prefix rendered in a color assigned deterministically
// (in first-seen order) to cacheKey.
func (c *ColorCache) PrefixWithColor(cacheKey, prefix string) string {
	return c.colorForKey(cacheKey)("%s", prefix)
}
