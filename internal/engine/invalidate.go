package engine

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
)

// invalidate clears ids and, breadth first, every node that read them. A
// dropped instance takes everything stored under its address with it. It
// returns the number of cleared cache entries and instances.
func (m *Model) invalidate(ctx context.Context, ids ...string) (int, error) {
	// Computations already running when the epoch moves finish but do not cache.
	m.epoch.Add(1)

	var (
		errs    *multierror.Error
		cleared int
		dropped []string
		seen    = make(map[string]bool)
		queue   = append([]string(nil), ids...)
	)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		dependents, err := m.topo.DependentsOf(ctx, id)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		queue = append(queue, dependents...)

		if v, ok := m.nodes.LoadAndDelete(id); ok {
			ref := v.(nodeRef)
			switch {
			case ref.cell != nil:
				if ref.cell.clear(ref.key) {
					cleared++
				}
			case ref.reg != nil:
				if ref.reg.drop(ref.key, ref.inst) {
					cleared++
				}
				queue = append(queue, m.nodesUnder(id)...)
				dropped = append(dropped, id)
			}
		}

		if _, err := m.topo.RemoveNode(ctx, id); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for _, id := range dropped {
		if _, err := m.topo.RemoveSubtree(ctx, id); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	m.metrics.Invalidated(cleared)
	ctxlog.FromContext(ctx).Debug("Invalidation finished.", "roots", len(ids), "visited", len(seen), "cleared", cleared)
	return cleared, errs.ErrorOrNil()
}

// nodesUnder lists every known node nested under the instance id.
func (m *Model) nodesUnder(id string) []string {
	prefix := id + "."
	var out []string
	m.nodes.Range(func(k, _ any) bool {
		if s := k.(string); strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
		return true
	})
	return out
}
