// Package stage builds small scene-description layers and writes them in the
// USD text format (usda).
package stage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrInvalidPath = errors.New("invalid prim path")

// Stage is an in-memory layer holding a tree of prims.
type Stage struct {
	path string
	root *Prim
	doc  string
}

// Prim is one node of the scene tree. A prim defined only as the ancestor of
// another has an empty Kind.
type Prim struct {
	name     string
	path     string
	kind     string
	metadata map[string]any
	attrs    []attribute
	children []*Prim
}

type attribute struct {
	typeName string
	name     string
	value    any
}

// CreateStage returns an empty stage. path is recorded in the layer header
// and is where Save writes the layer.
func CreateStage(path string) *Stage {
	return &Stage{path: path, root: &Prim{path: "/"}}
}

func (s *Stage) Path() string { return s.path }

// SetDoc sets the layer's doc string.
func (s *Stage) SetDoc(doc string) { s.doc = doc }

// DefinePrim defines the prim at an absolute path such as "/world/ball" with
// the given kind ("Xform", "Sphere", ...). Missing ancestors are defined
// without a kind. Redefining a prim updates its kind and keeps its contents.
func (s *Stage) DefinePrim(path, kind string) (*Prim, error) {
	names, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	p := s.root
	for _, name := range names {
		p = p.child(name)
	}
	if kind != "" {
		p.kind = kind
	}
	return p, nil
}

// Prim returns the prim at path, if defined.
func (s *Stage) Prim(path string) (*Prim, bool) {
	names, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	p := s.root
	for _, name := range names {
		i := slices.IndexFunc(p.children, func(c *Prim) bool { return c.name == name })
		if i < 0 {
			return nil, false
		}
		p = p.children[i]
	}
	return p, true
}

func (p *Prim) Name() string { return p.name }
func (p *Prim) Path() string { return p.path }
func (p *Prim) Kind() string { return p.kind }

// SetMetadata sets a metadata field such as "comment" or "kind".
func (p *Prim) SetMetadata(key string, value any) {
	if p.metadata == nil {
		p.metadata = make(map[string]any)
	}
	p.metadata[key] = value
}

// Metadata returns a metadata field.
func (p *Prim) Metadata(key string) (any, bool) {
	v, ok := p.metadata[key]
	return v, ok
}

// SetAttribute sets a typed attribute, e.g. ("double", "radius", 0.5).
// Setting an existing attribute replaces its value.
func (p *Prim) SetAttribute(typeName, name string, value any) {
	for i := range p.attrs {
		if p.attrs[i].name == name {
			p.attrs[i] = attribute{typeName: typeName, name: name, value: value}
			return
		}
	}
	p.attrs = append(p.attrs, attribute{typeName: typeName, name: name, value: value})
}

// SetTranslate adds a translate op to an Xform prim.
func (p *Prim) SetTranslate(x, y, z float64) {
	p.SetAttribute("double3", "xformOp:translate", [3]float64{x, y, z})
	p.SetAttribute("uniform token[]", "xformOpOrder", []string{"xformOp:translate"})
}

func (p *Prim) child(name string) *Prim {
	for _, c := range p.children {
		if c.name == name {
			return c
		}
	}
	c := &Prim{name: name, path: strings.TrimSuffix(p.path, "/") + "/" + name}
	p.children = append(p.children, c)
	return c
}

func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") || path == "/" {
		return nil, fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	names := strings.Split(path[1:], "/")
	for _, name := range names {
		if !validName(name) {
			return nil, fmt.Errorf("%q: bad segment %q: %w", path, name, ErrInvalidPath)
		}
	}
	return names, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
