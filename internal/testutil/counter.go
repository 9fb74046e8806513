package testutil

import (
	"context"
	"sync"

	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Counter wraps formulas and records how often each argument tuple was
// actually computed.
type Counter struct {
	mu    sync.Mutex
	calls map[string]int
	total int
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{calls: make(map[string]int)}
}

// Wrap returns f with every call counted under name.
func (c *Counter) Wrap(name string, f space.Formula) space.Formula {
	return func(ctx context.Context, s space.Scope, args []cty.Value) (cty.Value, error) {
		key := name + value.Format(args)
		c.mu.Lock()
		c.calls[key]++
		c.total++
		c.mu.Unlock()
		return f(ctx, s, args)
	}
}

// Calls returns how often name ran for args.
func (c *Counter) Calls(name string, args ...cty.Value) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name+value.Format(args)]
}

// Total returns the number of formula runs across all names.
func (c *Counter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
