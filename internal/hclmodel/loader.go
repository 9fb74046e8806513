package hclmodel

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/cellgridgo/internal/ctxlog"
	"github.com/specialistvlad/cellgridgo/internal/engine"
	"github.com/specialistvlad/cellgridgo/internal/fsutil"
)

// Load parses every .hcl file found under paths and builds one model from
// all of them. Blocks may reference spaces declared in other files.
func Load(ctx context.Context, paths ...string) (*Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.Collect(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	parser := hclparse.NewParser()
	b := newBuilder()
	var tables []*tableBlock
	for _, file := range files {
		f, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		root, err := decode(f, file)
		if err != nil {
			return nil, err
		}
		for _, blk := range root.Spaces {
			b.add(blk)
		}
		tables = append(tables, root.Tables...)
		logger.Debug("Decoded HCL file.", "file", file, "spaces", len(root.Spaces), "tables", len(root.Tables))
	}
	return b.build(ctx, tables)
}

// Parse builds a model from a single in-memory source. filename only
// appears in error messages.
func Parse(ctx context.Context, src []byte, filename string) (*Model, error) {
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	root, err := decode(f, filename)
	if err != nil {
		return nil, err
	}

	b := newBuilder()
	for _, blk := range root.Spaces {
		b.add(blk)
	}
	return b.build(ctx, root.Tables)
}

func decode(f *hcl.File, filename string) (*fileRoot, error) {
	var root fileRoot
	if diags := gohcl.DecodeBody(f.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return &root, nil
}

// Instantiate adds the named spaces to eng as root instances, or every
// declared space when names is empty.
func (m *Model) Instantiate(ctx context.Context, eng *engine.Model, names ...string) error {
	if len(names) == 0 {
		names = m.Order
	}
	for _, name := range names {
		def, ok := m.Space(name)
		if !ok {
			return fmt.Errorf("space %q is not declared", name)
		}
		if _, err := eng.AddSpace(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
