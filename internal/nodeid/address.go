package nodeid

import (
	"strings"

	"github.com/specialistvlad/cellgridgo/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Root returns an address with a single key-less segment.
func Root(name string) *Address {
	return &Address{Path: []PathSegment{NewPathSegment(name)}}
}

// String serializes the Address into its canonical path string representation.
func (a *Address) String() string {
	if a == nil {
		return ""
	}

	var sb strings.Builder
	for i, segment := range a.Path {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(segment.Name)
		if segment.HasKeys() {
			sb.WriteRune('[')
			for j, k := range segment.Keys {
				if j > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(value.FormatValue(k))
			}
			sb.WriteRune(']')
		}
	}

	return sb.String()
}

// Equal checks for equality between two Address pointers. Keys compare by
// canonical form, so 3 and 3.0 are the same key.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.String() == other.String()
}

// Child returns a new address one segment below a.
func (a *Address) Child(name string, keys ...cty.Value) *Address {
	seg := NewPathSegment(name)
	if len(keys) > 0 {
		seg = NewPathSegmentWithKeys(name, keys...)
	}
	path := make([]PathSegment, 0, len(a.Path)+1)
	path = append(path, a.Path...)
	return &Address{Path: append(path, seg)}
}

// Parent returns the address without its last segment, or nil for a root.
func (a *Address) Parent() *Address {
	if a == nil || len(a.Path) <= 1 {
		return nil
	}
	return &Address{Path: a.Path[:len(a.Path)-1]}
}

// Last returns the final segment. It panics on an empty address.
func (a *Address) Last() PathSegment {
	return a.Path[len(a.Path)-1]
}

// Split separates the address into the space part and its final name, the
// usual shape of a cell or reference address.
func (a *Address) Split() (*Address, string) {
	return a.Parent(), a.Last().Name
}
