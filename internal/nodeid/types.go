package nodeid

import "github.com/zclconf/go-cty/cty"

// PathSegment represents a single component of an address path, e.g. `name` or `name[key]`.
type PathSegment struct {
	Name string
	Keys []cty.Value // nil when the segment has no key.
}

// NewPathSegment creates a new path segment without a key.
func NewPathSegment(name string) PathSegment {
	return PathSegment{Name: name}
}

// NewPathSegmentWithKeys creates a path segment addressing one dynamic instance.
func NewPathSegmentWithKeys(name string, keys ...cty.Value) PathSegment {
	return PathSegment{Name: name, Keys: keys}
}

// HasKeys returns true if the path segment carries an explicit key.
func (ps PathSegment) HasKeys() bool {
	return ps.Keys != nil
}

// Address is the structured representation of a space, instance or cell
// location inside a model.
type Address struct {
	Path []PathSegment
}
