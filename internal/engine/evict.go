package engine

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/inmemorystore"
)

// evict queues an instance the bounded store evicted or refused to keep. It
// runs on the store's goroutine while a caller may hold r.mu, so the actual
// cleanup happens in detachEvicted.
func (r *Registry) evict(inst *Instance) {
	if inst == nil {
		return
	}
	r.evictMu.Lock()
	r.evicted = append(r.evicted, inst)
	r.evictMu.Unlock()
}

// detachEvicted detaches every queued instance the registry no longer holds.
func (r *Registry) detachEvicted(ctx context.Context) {
	r.evictMu.Lock()
	queued := r.evicted
	r.evicted = nil
	r.evictMu.Unlock()

	m := r.parent.model
	logger := ctxlog.FromContext(ctx)
	for _, inst := range queued {
		if held, ok := r.Lookup(inst.key...); ok && held == inst {
			continue
		}
		m.metrics.Evicted(r.def.Name)
		if err := m.detach(ctx, inst); err != nil {
			logger.Warn("Failed to forget evicted instance.", "instance", inst.id, "error", err)
			continue
		}
		logger.Debug("Dynamic instance evicted.", "instance", inst.id)
	}
}

// retire swaps a bounded store for a plain map and stops the cache. The
// registry belongs to a detached instance, whose children are dropped with it.
func (r *Registry) retire() {
	r.mu.Lock()
	if c, ok := r.store.(interface{ Close() }); ok {
		c.Close()
		r.store = inmemorystore.New[*Instance]()
	}
	r.mu.Unlock()

	r.evictMu.Lock()
	r.evicted = nil
	r.evictMu.Unlock()
}

// isDetached reports whether i or one of its ancestors was let go by its
// registry.
func (i *Instance) isDetached() bool {
	return i.detachedRoot() != nil
}

// detachedRoot returns the outermost detached instance enclosing i, or nil.
func (i *Instance) detachedRoot() *Instance {
	var top *Instance
	for cur := i; cur != nil; cur = cur.parent {
		if cur.detached.Load() {
			top = cur
		}
	}
	return top
}

// within reports whether i is root or nested under it.
func (i *Instance) within(root *Instance) bool {
	for cur := i; cur != nil; cur = cur.parent {
		if cur == root {
			return true
		}
	}
	return false
}

// markRead records that f read node id of i. Nodes of a detached instance
// are not tracked, so the reader depends on what its key mapping read.
func (i *Instance) markRead(f *frame, id string) {
	if f == nil {
		return
	}
	if top := i.detachedRoot(); top != nil {
		for _, dep := range top.deps {
			f.read(dep)
		}
		return
	}
	f.read(id)
}

// owner is the instance a node belongs to.
func (r nodeRef) owner() *Instance {
	if r.cell != nil {
		return r.cell.inst
	}
	return r.inst
}

// detach forgets every node recorded for inst and the instances nested in
// it. Outside readers of those nodes are linked to the nodes inst's mapping
// read, so invalidating a mapping input still reaches them. Nothing computed
// in inst afterwards is recorded.
func (m *Model) detach(ctx context.Context, inst *Instance) error {
	inst.detached.Store(true)

	prefix := inst.id + "."
	owned := make(map[string]nodeRef)
	retiring := inst.registries()
	m.nodes.Range(func(k, v any) bool {
		id, ref := k.(string), v.(nodeRef)
		if id != inst.id && !strings.HasPrefix(id, prefix) {
			return true
		}
		if owner := ref.owner(); owner.within(inst) {
			owned[id] = ref
			if ref.cell == nil && owner != inst {
				retiring = append(retiring, owner.registries()...)
			}
		}
		return true
	})

	var errs *multierror.Error
	readers := make(map[string]struct{})
	for id := range owned {
		dependents, err := m.topo.DependentsOf(ctx, id)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		for _, d := range dependents {
			if _, inside := owned[d]; !inside {
				readers[d] = struct{}{}
			}
		}
	}
	for reader := range readers {
		deps := make([]string, 0, len(inst.deps))
		for _, dep := range inst.deps {
			if dep != reader {
				deps = append(deps, dep)
			}
		}
		if len(deps) == 0 {
			continue
		}
		if err := m.topo.AddDependencies(ctx, reader, deps...); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for id, ref := range owned {
		m.nodes.CompareAndDelete(id, ref)
		if _, err := m.topo.RemoveNode(ctx, id); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, reg := range retiring {
		reg.retire()
	}
	return errs.ErrorOrNil()
}

// registries lists the child registries of i.
func (i *Instance) registries() []*Registry {
	out := make([]*Registry, 0, len(i.children))
	for _, reg := range i.children {
		out = append(out, reg)
	}
	return out
}
