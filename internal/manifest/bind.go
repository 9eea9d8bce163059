package manifest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/taichi/capi"
)

// Binding errors.
var (
	// ErrArgumentCount is returned when the number of bound arguments differs
	// from the number of parameters.
	ErrArgumentCount = errors.New("manifest: argument count mismatch")

	// ErrArgumentMissing is returned when a parameter has no bound argument.
	ErrArgumentMissing = errors.New("manifest: argument not bound")

	// ErrArgumentMismatch is returned when an argument does not fit its
	// parameter.
	ErrArgumentMismatch = errors.New("manifest: argument does not match parameter")
)

// Check verifies that arg can be bound to the parameter.
func (a Arg) Check(arg capi.Argument) error {
	kind, err := a.Type()
	if err != nil {
		return err
	}
	if arg.Type != kind {
		return fmt.Errorf("%w: %q wants %s, got %s", ErrArgumentMismatch, a.Name, kind, arg.Type)
	}
	dtype, err := a.DataType()
	if err != nil {
		return err
	}

	switch kind {
	case capi.ArgumentTypeNdArray:
		nd := arg.NdArray
		if dtype != capi.DataTypeUnknown && nd.ElemType != dtype {
			return fmt.Errorf("%w: %q wants %s elements, got %s", ErrArgumentMismatch, a.Name, dtype, nd.ElemType)
		}
		if a.NDim > 0 && int(nd.Shape.DimCount) != a.NDim {
			return fmt.Errorf("%w: %q wants %d dimensions, got %d", ErrArgumentMismatch, a.Name, a.NDim, nd.Shape.DimCount)
		}
		if len(a.ElemShape) > 0 && !slices.Equal(nd.ElemShape.Slice(), a.ElemShape) {
			return fmt.Errorf("%w: %q wants element shape %v, got %v", ErrArgumentMismatch, a.Name, a.ElemShape, nd.ElemShape.Slice())
		}
		if nd.Memory == capi.Null {
			return fmt.Errorf("%w: %q has a null memory", ErrArgumentMismatch, a.Name)
		}
	case capi.ArgumentTypeScalar:
		if dtype != capi.DataTypeUnknown && arg.Scalar.Type != dtype {
			return fmt.Errorf("%w: %q wants a %s scalar, got %s", ErrArgumentMismatch, a.Name, dtype, arg.Scalar.Type)
		}
	case capi.ArgumentTypeTexture:
		if arg.Texture.Image == capi.Null {
			return fmt.Errorf("%w: %q has a null image", ErrArgumentMismatch, a.Name)
		}
	}
	return nil
}

// CheckArgs verifies positional kernel arguments.
func (k *Kernel) CheckArgs(args []capi.Argument) error {
	if len(args) != len(k.Args) {
		return fmt.Errorf("%w: kernel %q takes %d, got %d", ErrArgumentCount, k.Name, len(k.Args), len(args))
	}
	for i, p := range k.Args {
		if err := p.Check(args[i]); err != nil {
			return fmt.Errorf("kernel %q arg %d: %w", k.Name, i, err)
		}
	}
	return nil
}

// Bind resolves named graph arguments. The argument set must match the
// parameter set exactly.
func (g *Graph) Bind(args []capi.NamedArgument) (map[string]capi.Argument, error) {
	if len(args) != len(g.Args) {
		return nil, fmt.Errorf("%w: graph %q takes %d, got %d", ErrArgumentCount, g.Name, len(g.Args), len(args))
	}
	bound := make(map[string]capi.Argument, len(args))
	for _, na := range args {
		if _, dup := bound[na.Name]; dup {
			return nil, fmt.Errorf("%w: graph %q: %q bound twice", ErrArgumentMismatch, g.Name, na.Name)
		}
		bound[na.Name] = na.Argument
	}
	for _, p := range g.Args {
		arg, ok := bound[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: graph %q: %q", ErrArgumentMissing, g.Name, p.Name)
		}
		if err := p.Check(arg); err != nil {
			return nil, fmt.Errorf("graph %q: %w", g.Name, err)
		}
	}
	return bound, nil
}

// DispatchArgs returns the positional arguments of dispatch d.
func (d Dispatch) DispatchArgs(bound map[string]capi.Argument) []capi.Argument {
	out := make([]capi.Argument, len(d.Args))
	for i, name := range d.Args {
		out[i] = bound[name]
	}
	return out
}
