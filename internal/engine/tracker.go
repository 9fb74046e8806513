package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// chain is one top-level evaluation request and everything it computes.
type chain struct {
	id string
}

func newChain() *chain {
	return &chain{id: uuid.NewString()}
}

// frame is one entry being computed. Frames link to their caller, forming
// the chain's evaluation stack.
type frame struct {
	id     string
	parent *frame
	chain  *chain
	depth  int

	mu   sync.Mutex
	deps map[string]struct{}
}

type frameKey struct{}

// currentFrame returns the frame the caller is computing, or nil at top level.
func currentFrame(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// push starts computing id on behalf of parent. A nil parent starts a new chain.
func push(ctx context.Context, parent *frame, id string) (context.Context, *frame) {
	f := &frame{id: id, parent: parent, depth: 1}
	if parent != nil {
		f.chain = parent.chain
		f.depth = parent.depth + 1
	} else {
		f.chain = newChain()
	}
	return context.WithValue(ctx, frameKey{}, f), f
}

// read records that f depended on id.
func (f *frame) read(id string) {
	if f == nil || f.id == id {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deps == nil {
		f.deps = make(map[string]struct{})
	}
	f.deps[id] = struct{}{}
}

func (f *frame) dependencies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.deps))
	for id := range f.deps {
		out = append(out, id)
	}
	return out
}

// onStack reports whether id is being computed by f or one of its callers.
func (f *frame) onStack(id string) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.id == id {
			return true
		}
	}
	return false
}

// cycle lists the stack from the frame computing id down to f, then id again.
func (f *frame) cycle(id string) []string {
	var rev []string
	for cur := f; cur != nil; cur = cur.parent {
		rev = append(rev, cur.id)
		if cur.id == id {
			break
		}
	}
	out := make([]string, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return append(out, id)
}

// stack lists every frame from the outermost caller down to f.
func (f *frame) stack() []string {
	var rev []string
	for cur := f; cur != nil; cur = cur.parent {
		rev = append(rev, cur.id)
	}
	out := make([]string, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out
}

// chainOf returns f's chain, or nil at top level.
func chainOf(f *frame) *chain {
	if f == nil {
		return nil
	}
	return f.chain
}

// tracker is the wait-for graph between evaluation chains. An edge a -> b
// means some goroutine of chain a is blocked on an entry chain b computes.
type tracker struct {
	mu    sync.Mutex
	waits map[*chain]map[*chain]int
}

func newTracker() *tracker {
	return &tracker{waits: make(map[*chain]map[*chain]int)}
}

// wait registers waiter -> owner unless owner already (transitively) waits on
// waiter, in which case blocking would deadlock and false is returned.
func (t *tracker) wait(waiter, owner *chain) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.reaches(owner, waiter, make(map[*chain]bool)) {
		return false
	}
	if t.waits[waiter] == nil {
		t.waits[waiter] = make(map[*chain]int)
	}
	t.waits[waiter][owner]++
	return true
}

// release removes one waiter -> owner edge.
func (t *tracker) release(waiter, owner *chain) {
	t.mu.Lock()
	defer t.mu.Unlock()

	edges := t.waits[waiter]
	if edges == nil {
		return
	}
	if edges[owner]--; edges[owner] <= 0 {
		delete(edges, owner)
	}
	if len(edges) == 0 {
		delete(t.waits, waiter)
	}
}

func (t *tracker) reaches(from, to *chain, seen map[*chain]bool) bool {
	if from == to {
		return true
	}
	if seen[from] {
		return false
	}
	seen[from] = true
	for next := range t.waits[from] {
		if t.reaches(next, to, seen) {
			return true
		}
	}
	return false
}
