package engine

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/cellgridgo/internal/nodeid"
	"github.com/specialistvlad/cellgridgo/internal/space"
	"github.com/specialistvlad/cellgridgo/internal/value"
)

// UndefinedNameError is returned when a name is not found in a space's
// inheritance chain.
type UndefinedNameError = space.UndefinedNameError

// RefError is returned for a malformed dotted reference.
type RefError = nodeid.ParseError

// TypeError is returned when an argument or value has the wrong shape.
type TypeError = value.TypeError

// CircularReferenceError is returned when a cell entry is requested while it
// is already being computed by the same evaluation chain, or when two chains
// would wait on each other forever.
type CircularReferenceError struct {
	// Chain lists the entries involved, from the first occurrence of the
	// repeated entry to the request that closed the loop.
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return "circular reference: " + strings.Join(e.Chain, " -> ")
}

// KeyMappingError is returned when a child's mapping fails for a key.
type KeyMappingError struct {
	Child string
	Key   string
	Err   error
}

func (e *KeyMappingError) Error() string {
	return fmt.Sprintf("mapping %s[%s] failed: %v", e.Child, e.Key, e.Err)
}

func (e *KeyMappingError) Unwrap() error { return e.Err }

// ArityError is returned when a cell or child is called with the wrong number
// of arguments.
type ArityError struct {
	Name string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s takes %d argument(s), got %d", e.Name, e.Want, e.Got)
}

// KindError is returned when a name resolves to a different sort of member
// than the caller asked for, e.g. reading a cell as a reference.
type KindError struct {
	Space string
	Name  string
	Want  space.Kind
	Got   space.Kind
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%q in space %q is a %s, not a %s", e.Name, e.Space, e.Got, e.Want)
}

// RecursionLimitError is returned when an evaluation nests deeper than the
// model allows, typically a recursive formula that never reaches its base
// case.
type RecursionLimitError struct {
	Entry string
	Limit int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("%s: evaluation nested deeper than %d entries", e.Entry, e.Limit)
}
