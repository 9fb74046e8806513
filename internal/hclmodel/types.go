package hclmodel

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/specialistvlad/cellgridgo/internal/source"
	"github.com/specialistvlad/cellgridgo/internal/space"
)

// fileRoot is a struct used to decode all possible top-level blocks from any
// file. Anything else is a decode error.
type fileRoot struct {
	Spaces []*spaceBlock `hcl:"space,block"`
	Tables []*tableBlock `hcl:"table,block"`
}

type spaceBlock struct {
	Name     string         `hcl:"name,label"`
	Base     *string        `hcl:"base,optional"`
	Refs     hcl.Expression `hcl:"refs,optional"`
	Cells    []*cellBlock   `hcl:"cell,block"`
	Children []*childBlock  `hcl:"child,block"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type cellBlock struct {
	Name     string         `hcl:"name,label"`
	Params   []string       `hcl:"params,optional"`
	Formula  hcl.Expression `hcl:"formula"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type childBlock struct {
	Name     string         `hcl:"name,label"`
	Space    string         `hcl:"space"`
	Params   []string       `hcl:"params,optional"`
	Refs     hcl.Expression `hcl:"refs,optional"`
	Cells    []*cellBlock   `hcl:"cell,block"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type tableBlock struct {
	Name     string             `hcl:"name,label"`
	Rows     map[string]float64 `hcl:"rows"`
	DefRange hcl.Range          `hcl:",def_range"`
}

// Model is the result of loading: immutable space definitions plus the
// tables the files declared.
type Model struct {
	// Order lists the space names in the order they were declared.
	Order  []string
	Spaces map[string]*space.Definition
	Tables *source.Tables
}

// Space returns the definition called name.
func (m *Model) Space(name string) (*space.Definition, bool) {
	d, ok := m.Spaces[name]
	return d, ok
}
