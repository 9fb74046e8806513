package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/specialistvlad/cellgridgo/internal/boundedstore"
	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/inmemorystore"
	"github.com/specialistvlad/cellgridgo/internal/nodestore"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Registry creates and remembers the instances of one child space of one
// parent instance, one per distinct key.
type Registry struct {
	parent *Instance
	def    *space.ChildDef
	prefix string
	store  nodestore.Store[*Instance]

	mu      sync.Mutex
	flights map[string]*flight

	evictMu sync.Mutex
	evicted []*Instance
}

func newRegistry(parent *Instance, def *space.ChildDef) (*Registry, error) {
	r := &Registry{
		parent:  parent,
		def:     def,
		prefix:  parent.id + "." + def.Name,
		flights: make(map[string]*flight),
	}
	if capacity := parent.model.capacity; capacity > 0 && !def.Static() && !parent.isDetached() {
		store, err := boundedstore.New(capacity, r.evict)
		if err != nil {
			return nil, fmt.Errorf("registry %s: %w", r.prefix, err)
		}
		r.store = store
	} else {
		r.store = inmemorystore.New[*Instance]()
	}
	return r, nil
}

// Name returns the child name.
func (r *Registry) Name() string { return r.def.Name }

// Len returns the number of instances currently held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Len()
}

// Lookup returns the instance for key if it exists, without creating it.
func (r *Registry) Lookup(key ...cty.Value) (*Instance, bool) {
	k, err := value.Key(key)
	if err != nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Get(k)
}

func (r *Registry) instanceID(key []cty.Value) string {
	if len(key) == 0 {
		return r.prefix
	}
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = value.FormatValue(k)
	}
	return r.prefix + "[" + strings.Join(parts, ", ") + "]"
}

// GetOrCreate returns the instance for key. The first request for a key runs
// the child's mapping against the parent instance and builds the instance;
// every later request gets the same instance back. The mapping runs at most
// once per key at a time, and a failed mapping caches nothing.
func (r *Registry) GetOrCreate(ctx context.Context, key ...cty.Value) (*Instance, error) {
	if want := len(r.def.KeyParams); len(key) != want {
		return nil, &ArityError{Name: r.prefix, Want: want, Got: len(key)}
	}
	k, err := value.Key(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.prefix, err)
	}
	id := r.instanceID(key)
	caller := currentFrame(ctx)
	m := r.parent.model

	r.mu.Lock()
	if inst, ok := r.store.Get(k); ok {
		r.mu.Unlock()
		inst.markRead(caller, id)
		return inst, nil
	}
	if f, ok := r.flights[k]; ok {
		r.mu.Unlock()
		if err := m.await(ctx, caller, id, f); err != nil {
			return nil, err
		}
		if f.err == nil {
			f.inst.markRead(caller, id)
		}
		return f.inst, f.err
	}
	if err := ctx.Err(); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	ctx, self := push(ctx, caller, id)
	f := newFlight(self)
	r.flights[k] = f
	r.mu.Unlock()

	inst, err := r.create(ctx, id, key)
	if err == nil {
		inst.deps = self.dependencies()
		err = m.recordEntry(ctx, self, nodeRef{reg: r, key: k, inst: inst})
	}

	r.mu.Lock()
	delete(r.flights, k)
	if err == nil {
		r.store.Set(k, inst)
	}
	f.inst, f.err = inst, err
	close(f.done)
	r.mu.Unlock()

	// A bounded store may have let go of other instances, or of this one.
	r.detachEvicted(ctx)

	if err != nil {
		return nil, err
	}
	inst.markRead(caller, id)
	return inst, nil
}

func (r *Registry) create(ctx context.Context, id string, key []cty.Value) (inst *Instance, err error) {
	logger := ctxlog.FromContext(ctx)
	m := r.parent.model

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("mapping panicked: %v", p)
		}
		if err != nil {
			m.metrics.MappingFailed(r.def.Name)
			logger.Debug("Key mapping failed.", "instance", id, "error", err)
			err = &KeyMappingError{Child: r.prefix, Key: strings.TrimSuffix(strings.TrimPrefix(id, r.prefix+"["), "]"), Err: err}
		}
	}()

	var params space.Params
	if r.def.Param != nil {
		params, err = r.def.Param(ctx, r.parent, key)
		if err != nil {
			return nil, err
		}
	}

	addr := r.parent.addr.Child(r.def.Name, key...)
	inst, err = newInstance(m, r.def.Space, addr, r.parent, key, params)
	if err != nil {
		return nil, err
	}

	m.metrics.InstanceCreated(r.def.Name)
	logger.Debug("Space instance created.", "instance", id, "space", r.def.Space.Name(), "refs", len(params.Refs), "overrides", len(params.Overrides))
	return inst, nil
}

// drop forgets the instance stored under the canonical key k, provided it is
// still want. A newer instance created for the same key is left alone.
func (r *Registry) drop(k string, want *Instance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.store.Get(k)
	if !ok || inst != want {
		return false
	}
	r.store.Delete(k)
	return true
}
