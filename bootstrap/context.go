package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"exchangegw/config"
)

// Context carries the loaded config plus whatever each hook wants to
// hand off to the next one (the venue adapter, the constructed Gateway,
// the metrics registry) through the shared Data map.
type Context struct {
	Config config.File
	Data   map[string]any
	ctx    context.Context
	mu     sync.RWMutex
}

// NewContext builds a bootstrap context for the given loaded config.
func NewContext(cfg config.File) *Context {
	return &Context{
		Config: cfg,
		Data:   make(map[string]any),
		ctx:    context.Background(),
	}
}

// Set stores a value under key, for a later hook to pick up.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Data[key] = value
}

// Get retrieves a value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.Data[key]
	return val, ok
}

// MustGet retrieves a value, panicking if the key was never set — used
// for hooks that assume an earlier, higher-priority hook ran first.
func (c *Context) MustGet(key string) any {
	val, ok := c.Get(key)
	if !ok {
		panic(fmt.Sprintf("bootstrap: context key %q not found", key))
	}
	return val
}
