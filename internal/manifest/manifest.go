// Package manifest reads ahead-of-time module manifests.
//
// A module is a directory (or a zip archive of one) holding a manifest file
// and the kernel artifacts it names. The manifest is decoded according to its
// extension: module.toml, module.yaml, module.yml or metadata.json.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/taichi/capi"
)

// SupportedVersion is the newest manifest version this package understands.
const SupportedVersion = 1

// Manifest errors.
var (
	// ErrNotFound is returned when the module or its manifest does not exist.
	ErrNotFound = errors.New("manifest: module not found")

	// ErrCorrupted is returned when the manifest cannot be decoded or is
	// internally inconsistent.
	ErrCorrupted = errors.New("manifest: corrupted module")

	// ErrIncompatible is returned for manifests written for a newer format
	// or for a different architecture.
	ErrIncompatible = errors.New("manifest: incompatible module")
)

// Names lists the accepted manifest file names in lookup order.
var Names = []string{"module.toml", "module.yaml", "module.yml", "metadata.json"}

// Module is a decoded module manifest.
type Module struct {
	Version int      `json:"version" yaml:"version" toml:"version"`
	Arch    string   `json:"arch" yaml:"arch" toml:"arch"`
	Kernels []Kernel `json:"kernels" yaml:"kernels" toml:"kernels"`
	Graphs  []Graph  `json:"graphs" yaml:"graphs" toml:"graphs"`
}

// Kernel describes one kernel of a module.
type Kernel struct {
	Name string `json:"name" yaml:"name" toml:"name"`
	// Source is the WGSL artifact path relative to the module root.
	Source string `json:"source" yaml:"source" toml:"source"`
	// Entry is the shader entry point, "main" when empty.
	Entry string `json:"entry" yaml:"entry" toml:"entry"`
	// Host is the symbol of the host program implementing the kernel.
	Host          string   `json:"host" yaml:"host" toml:"host"`
	WorkgroupSize []uint32 `json:"workgroup_size" yaml:"workgroup_size" toml:"workgroup_size"`
	// Dispatch fixes the workgroup grid. When empty the grid is derived from
	// the shape of the first ND-array argument.
	Dispatch []uint32 `json:"dispatch" yaml:"dispatch" toml:"dispatch"`
	Args     []Arg    `json:"args" yaml:"args" toml:"args"`
}

// Graph describes a compute graph: named parameters and an ordered list of
// kernel dispatches.
type Graph struct {
	Name       string     `json:"name" yaml:"name" toml:"name"`
	Args       []Arg      `json:"args" yaml:"args" toml:"args"`
	Dispatches []Dispatch `json:"dispatches" yaml:"dispatches" toml:"dispatches"`
}

// Dispatch launches a kernel with graph parameters bound by name, in the
// kernel's parameter order.
type Dispatch struct {
	Kernel string   `json:"kernel" yaml:"kernel" toml:"kernel"`
	Args   []string `json:"args" yaml:"args" toml:"args"`
}

// Arg describes a kernel or graph parameter.
type Arg struct {
	Name      string   `json:"name" yaml:"name" toml:"name"`
	Kind      string   `json:"kind" yaml:"kind" toml:"kind"`
	DType     string   `json:"dtype" yaml:"dtype" toml:"dtype"`
	NDim      int      `json:"ndim" yaml:"ndim" toml:"ndim"`
	ElemShape []uint32 `json:"elem_shape" yaml:"elem_shape" toml:"elem_shape"`
}

// Type resolves the argument kind.
func (a Arg) Type() (capi.ArgumentType, error) {
	t, ok := capi.ParseArgumentType(strings.ToLower(a.Kind))
	if !ok {
		return 0, fmt.Errorf("%w: arg %q: unknown kind %q", ErrCorrupted, a.Name, a.Kind)
	}
	return t, nil
}

// DataType resolves the element type. Arguments without a dtype report
// DataTypeUnknown, which matches any element type.
func (a Arg) DataType() (capi.DataType, error) {
	if a.DType == "" {
		return capi.DataTypeUnknown, nil
	}
	d, ok := capi.ParseDataType(strings.ToLower(a.DType))
	if !ok {
		return 0, fmt.Errorf("%w: arg %q: unknown dtype %q", ErrCorrupted, a.Name, a.DType)
	}
	return d, nil
}

// Decode parses manifest bytes according to the extension of name.
func Decode(name string, data []byte) (*Module, error) {
	var m Module
	var err error
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: unsupported manifest extension %q", ErrCorrupted, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, name, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for internal consistency.
func (m *Module) Validate() error {
	if m.Version < 1 {
		return fmt.Errorf("%w: missing version", ErrCorrupted)
	}
	if m.Version > SupportedVersion {
		return fmt.Errorf("%w: version %d is newer than %d", ErrIncompatible, m.Version, SupportedVersion)
	}

	kernels := make(map[string]*Kernel, len(m.Kernels))
	for i := range m.Kernels {
		k := &m.Kernels[i]
		if k.Name == "" {
			return fmt.Errorf("%w: kernel %d has no name", ErrCorrupted, i)
		}
		if _, dup := kernels[k.Name]; dup {
			return fmt.Errorf("%w: duplicate kernel %q", ErrCorrupted, k.Name)
		}
		if len(k.WorkgroupSize) > 3 || len(k.Dispatch) > 3 {
			return fmt.Errorf("%w: kernel %q: more than 3 grid dimensions", ErrCorrupted, k.Name)
		}
		if err := validateArgs(k.Args); err != nil {
			return fmt.Errorf("kernel %q: %w", k.Name, err)
		}
		kernels[k.Name] = k
	}

	graphs := make(map[string]struct{}, len(m.Graphs))
	for i := range m.Graphs {
		g := &m.Graphs[i]
		if g.Name == "" {
			return fmt.Errorf("%w: graph %d has no name", ErrCorrupted, i)
		}
		if _, dup := graphs[g.Name]; dup {
			return fmt.Errorf("%w: duplicate graph %q", ErrCorrupted, g.Name)
		}
		graphs[g.Name] = struct{}{}
		if err := validateArgs(g.Args); err != nil {
			return fmt.Errorf("graph %q: %w", g.Name, err)
		}
		params := make(map[string]struct{}, len(g.Args))
		for _, a := range g.Args {
			params[a.Name] = struct{}{}
		}
		for _, d := range g.Dispatches {
			k, ok := kernels[d.Kernel]
			if !ok {
				return fmt.Errorf("%w: graph %q dispatches unknown kernel %q", ErrCorrupted, g.Name, d.Kernel)
			}
			if len(d.Args) != len(k.Args) {
				return fmt.Errorf("%w: graph %q: kernel %q takes %d args, dispatch binds %d",
					ErrCorrupted, g.Name, d.Kernel, len(k.Args), len(d.Args))
			}
			for _, name := range d.Args {
				if _, ok := params[name]; !ok {
					return fmt.Errorf("%w: graph %q: dispatch of %q binds unknown parameter %q",
						ErrCorrupted, g.Name, d.Kernel, name)
				}
			}
		}
	}
	return nil
}

func validateArgs(args []Arg) error {
	seen := make(map[string]struct{}, len(args))
	for i, a := range args {
		if a.Name == "" {
			return fmt.Errorf("%w: arg %d has no name", ErrCorrupted, i)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: duplicate arg %q", ErrCorrupted, a.Name)
		}
		seen[a.Name] = struct{}{}
		if _, err := a.Type(); err != nil {
			return err
		}
		if _, err := a.DataType(); err != nil {
			return err
		}
		if a.NDim < 0 || a.NDim > capi.MaxNdShapeDims {
			return fmt.Errorf("%w: arg %q: ndim %d out of range", ErrCorrupted, a.Name, a.NDim)
		}
	}
	return nil
}

// CompatibleWith reports whether a module built for m.Arch runs on arch.
// An empty arch or "any" marks a portable module.
func (m *Module) CompatibleWith(arch capi.Arch) error {
	switch m.Arch {
	case "", "any":
		return nil
	}
	if strings.EqualFold(m.Arch, arch.String()) {
		return nil
	}
	return fmt.Errorf("%w: built for %s, runtime is %s", ErrIncompatible, m.Arch, arch)
}

// Kernel returns the kernel with the given name.
func (m *Module) Kernel(name string) (*Kernel, bool) {
	for i := range m.Kernels {
		if m.Kernels[i].Name == name {
			return &m.Kernels[i], true
		}
	}
	return nil, false
}

// Graph returns the graph with the given name.
func (m *Module) Graph(name string) (*Graph, bool) {
	for i := range m.Graphs {
		if m.Graphs[i].Name == name {
			return &m.Graphs[i], true
		}
	}
	return nil, false
}

// Arg returns the graph parameter with the given name.
func (g *Graph) Arg(name string) (Arg, bool) {
	for _, a := range g.Args {
		if a.Name == name {
			return a, true
		}
	}
	return Arg{}, false
}
