package space

import (
	"context"
	"fmt"

	"github.com/specialistvlad/cellgridgo/internal/nodeid"
	"github.com/zclconf/go-cty/cty"
)

// Scope is the view a formula has of the space instance it runs in.
// Every read made through a Scope is recorded as a dependency of the
// calling cell entry.
type Scope interface {
	// Path is the address of the instance, e.g. RealisticTerm.PrudentTerm[3].
	Path() *nodeid.Address
	// Cell evaluates a cell of this instance, resolved through inheritance.
	Cell(ctx context.Context, name string, args ...cty.Value) (cty.Value, error)
	// Ref reads a reference value of this instance.
	Ref(ctx context.Context, name string) (cty.Value, error)
	// Child returns the child instance for key, creating it on first use.
	// Static children take no key.
	Child(ctx context.Context, name string, key ...cty.Value) (Scope, error)
	// Lookup reads an external table through the model's value source.
	Lookup(ctx context.Context, table string, key cty.Value) (cty.Value, error)
}

// Formula computes one cell value for one argument tuple.
type Formula func(ctx context.Context, s Scope, args []cty.Value) (cty.Value, error)

// Params is what a child mapping produces for one key: the reference values
// and formula overrides the new instance starts with.
type Params struct {
	Refs      map[string]cty.Value
	Overrides map[string]Formula
}

// ParamFunc maps a dynamic child key to the parameters of its instance. It
// runs against the parent instance's scope.
type ParamFunc func(ctx context.Context, parent Scope, key []cty.Value) (Params, error)

// CellDef declares one cell.
type CellDef struct {
	Name    string
	Params  []string
	Formula Formula
}

// Arity is the number of arguments the cell takes.
func (c *CellDef) Arity() int { return len(c.Params) }

// ChildDef declares a child space. With a nil Param and no KeyParams it is a
// static child: a single instance shared by every caller.
type ChildDef struct {
	Name      string
	Space     *Definition
	KeyParams []string
	Param     ParamFunc
}

// Static reports whether the child has exactly one instance.
func (c *ChildDef) Static() bool {
	return c.Param == nil && len(c.KeyParams) == 0
}

// RefDef declares one named reference value.
type RefDef struct {
	Name  string
	Value cty.Value
}

// Kind tells which sort of member a name resolves to.
type Kind int

const (
	KindCell Kind = iota
	KindRef
	KindChild
)

func (k Kind) String() string {
	switch k {
	case KindCell:
		return "cell"
	case KindRef:
		return "ref"
	case KindChild:
		return "child"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Member is the result of resolving a name in a definition.
type Member struct {
	Kind  Kind
	Name  string
	Cell  *CellDef
	Ref   cty.Value
	Child *ChildDef
	// Owner is the definition layer the member was found in.
	Owner *Definition
}

// UndefinedNameError is returned when a name resolves nowhere in a space's
// inheritance chain.
type UndefinedNameError struct {
	Space string
	Name  string
}

func (e *UndefinedNameError) Error() string {
	return fmt.Sprintf("name %q is not defined in space %q or its bases", e.Name, e.Space)
}
