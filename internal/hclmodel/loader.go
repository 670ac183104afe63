package hclmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/blockflow/internal/ctxlog"
	"github.com/vk/blockflow/internal/model"
	"github.com/vk/blockflow/internal/registry"
)

// File holds the composite blocks loaded from one model file, in
// declaration order.
type File struct {
	Blocks []*model.Block
}

// Block returns the loaded block with the given name.
func (f *File) Block(name string) (*model.Block, bool) {
	for _, b := range f.Blocks {
		if b.Name == name {
			return b, true
		}
	}
	return nil, false
}

// Root returns the last block in the file, by convention the top-level
// model when no explicit name is requested.
func (f *File) Root() (*model.Block, bool) {
	if len(f.Blocks) == 0 {
		return nil, false
	}
	return f.Blocks[len(f.Blocks)-1], true
}

// Loader translates HCL model files into model.Block trees, stamping
// elementary instances from the registry's definitions.
type Loader struct {
	parser *hclparse.Parser
}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{parser: hclparse.NewParser()}
}

// LoadFile parses and translates one model file from disk.
func (l *Loader) LoadFile(ctx context.Context, path string, reg *registry.Registry) (*File, error) {
	hclFile, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, diags)
	}
	return l.translate(ctx, hclFile, reg)
}

// Load parses and translates model source held in memory; filename is used
// for diagnostics only.
func (l *Loader) Load(ctx context.Context, filename string, src []byte, reg *registry.Registry) (*File, error) {
	hclFile, diags := l.parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model source %s: %w", filename, diags)
	}
	return l.translate(ctx, hclFile, reg)
}

func (l *Loader) translate(ctx context.Context, hclFile *hcl.File, reg *registry.Registry) (*File, error) {
	logger := ctxlog.FromContext(ctx)

	var raw modelFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode model file: %w", diags)
	}

	defs := make(map[string]*blockDef, len(raw.Blocks))
	for _, bd := range raw.Blocks {
		if _, dup := defs[bd.Name]; dup {
			return nil, fmt.Errorf("block %q defined twice", bd.Name)
		}
		defs[bd.Name] = bd
	}

	built := make(map[string]*model.Block, len(raw.Blocks))
	building := make(map[string]bool)

	var buildBlock func(name string) (*model.Block, error)
	buildBlock = func(name string) (*model.Block, error) {
		if b, ok := built[name]; ok {
			return b, nil
		}
		if building[name] {
			return nil, fmt.Errorf("block %q contains itself, directly or indirectly", name)
		}
		building[name] = true
		defer delete(building, name)

		bd, ok := defs[name]
		if !ok {
			return nil, fmt.Errorf("no block named %q in this file", name)
		}
		b, err := l.translateBlock(ctx, bd, reg, buildBlock)
		if err != nil {
			return nil, err
		}
		built[name] = b
		return b, nil
	}

	file := &File{}
	for _, bd := range raw.Blocks {
		b, err := buildBlock(bd.Name)
		if err != nil {
			return nil, err
		}
		file.Blocks = append(file.Blocks, b)
	}
	logger.Debug("Model file translated.", "blocks", len(file.Blocks))
	return file, nil
}

// translateBlock converts one block definition. resolve builds composite
// children defined elsewhere in the same file.
func (l *Loader) translateBlock(ctx context.Context, bd *blockDef, reg *registry.Registry, resolve func(string) (*model.Block, error)) (*model.Block, error) {
	b := &model.Block{
		Name:        bd.Name,
		Type:        bd.Name,
		Kind:        model.Composite,
		Description: bd.Description,
	}

	for _, cd := range bd.Inputs {
		conn, err := translateConnector(ctx, cd, model.Input, bd.Name)
		if err != nil {
			return nil, err
		}
		b.Inputs = append(b.Inputs, conn)
	}
	for _, cd := range bd.Outputs {
		conn, err := translateConnector(ctx, cd, model.Output, bd.Name)
		if err != nil {
			return nil, err
		}
		b.Outputs = append(b.Outputs, conn)
	}

	for _, id := range bd.Instances {
		child, err := l.translateInstance(id, bd.Name, reg, resolve)
		if err != nil {
			return nil, err
		}
		b.Children = append(b.Children, child)
	}

	for _, cd := range bd.Connects {
		from, err := parseEndpoint(cd.From)
		if err != nil {
			return nil, fmt.Errorf("in block %q: connect from: %w", bd.Name, err)
		}
		to, err := parseEndpoint(cd.To)
		if err != nil {
			return nil, fmt.Errorf("in block %q: connect to: %w", bd.Name, err)
		}
		b.Connections = append(b.Connections, model.Connection{
			From: from, To: to, Description: cd.Description,
		})
	}
	return b, nil
}

func (l *Loader) translateInstance(id *instanceDef, owner string, reg *registry.Registry, resolve func(string) (*model.Block, error)) (*model.Block, error) {
	switch {
	case id.Type != "" && id.Block != "":
		return nil, fmt.Errorf("in block %q: instance %q sets both type and block", owner, id.Name)
	case id.Type != "":
		overrides, err := paramOverrides(id)
		if err != nil {
			return nil, fmt.Errorf("in block %q: %w", owner, err)
		}
		child, err := reg.Instantiate(id.Type, id.Name, overrides)
		if err != nil {
			return nil, fmt.Errorf("in block %q: %w", owner, err)
		}
		return child, nil
	case id.Block != "":
		if id.Params != nil {
			return nil, fmt.Errorf("in block %q: instance %q: composite instances take no params", owner, id.Name)
		}
		def, err := resolve(id.Block)
		if err != nil {
			return nil, fmt.Errorf("in block %q: instance %q: %w", owner, id.Name, err)
		}
		// Children are addressed by instance name, so the shared
		// definition is rebadged without mutating the original.
		child := *def
		child.Name = id.Name
		return &child, nil
	default:
		return nil, fmt.Errorf("in block %q: instance %q sets neither type nor block", owner, id.Name)
	}
}

func paramOverrides(id *instanceDef) (map[string]cty.Value, error) {
	if id.Params == nil {
		return nil, nil
	}
	v := *id.Params
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("instance %q: params must be an object", id.Name)
	}
	return v.AsValueMap(), nil
}

func translateConnector(ctx context.Context, cd *connectorDef, causality model.Causality, owner string) (model.Connector, error) {
	t, err := typeKeyword(ctx, cd.Type)
	if err != nil {
		return model.Connector{}, fmt.Errorf("in block %q, connector %q: %w", owner, cd.Name, err)
	}
	conn := model.Connector{
		Name:          cd.Name,
		Type:          t,
		Causality:     causality,
		Quantity:      cd.Quantity,
		Unit:          cd.Unit,
		AllowedValues: cd.Values,
		Description:   cd.Description,
	}
	if cd.Min != nil {
		conn.Min = *cd.Min
	}
	if cd.Max != nil {
		conn.Max = *cd.Max
	}
	if cd.Nominal != nil {
		conn.Nominal = *cd.Nominal
	}
	if cd.Start != nil {
		conn.Start = *cd.Start
	}
	return conn, nil
}

// typeKeyword decodes a bare type keyword expression (real, integer,
// boolean, string, enumeration) into the model taxonomy.
func typeKeyword(ctx context.Context, expr hcl.Expression) (model.Type, error) {
	logger := ctxlog.FromContext(ctx)
	traversal, ok := expr.(*hclsyntax.ScopeTraversalExpr)
	if !ok || len(traversal.Traversal) != 1 {
		return "", fmt.Errorf("type must be a bare keyword: real, integer, boolean, string, or enumeration")
	}
	keyword := traversal.Traversal.RootName()
	logger.Debug("Parsing connector type keyword.", "keyword", keyword)
	switch keyword {
	case "real":
		return model.Real, nil
	case "integer":
		return model.Integer, nil
	case "boolean":
		return model.Boolean, nil
	case "string":
		return model.String, nil
	case "enumeration":
		return model.Enumeration, nil
	default:
		return "", fmt.Errorf("unknown type keyword %q", keyword)
	}
}

// parseEndpoint splits "instance.connector" notation; a bare name is the
// enclosing composite's own boundary connector.
func parseEndpoint(s string) (model.Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Endpoint{}, fmt.Errorf("endpoint is empty")
	}
	parts := strings.SplitN(s, ".", 2)
	if len(parts) == 1 {
		return model.Endpoint{Connector: parts[0]}, nil
	}
	if parts[0] == "" || parts[1] == "" {
		return model.Endpoint{}, fmt.Errorf("malformed endpoint %q", s)
	}
	return model.Endpoint{Instance: parts[0], Connector: parts[1]}, nil
}
