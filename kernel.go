package taichi

import (
	"github.com/gogpu/taichi/capi"
)

// Kernel is a single compute kernel inside a module, launched with
// positional arguments.
type Kernel struct {
	handle
	module *moduleInner
	h      capi.Kernel
	name   string
	args   []Argument
}

// Kernel looks up a kernel by name. The kernel keeps the module alive.
func (m *Module) Kernel(name string) (*Kernel, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	mi := m.m
	lib := mi.rt.lib
	h, err := callValue(lib, func() capi.Kernel { return lib.GetAotModuleKernel(mi.handle, name) })
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorNameNotFound, "kernel %q", name)
	}
	mi.ref.acquire()
	return &Kernel{module: mi, h: h, name: name}, nil
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Handle returns the raw kernel handle.
func (k *Kernel) Handle() capi.Kernel { return k.h }

// SetArg binds arg to the parameter at index, growing the argument list as
// needed.
func (k *Kernel) SetArg(index int, arg Argument) error {
	if k.isClosed() {
		return errClosed("kernel")
	}
	if index < 0 {
		return newError(capi.ErrorArgumentOutOfRange, "argument index %d", index)
	}
	if arg == nil {
		return newError(capi.ErrorArgumentNull, "argument %d is nil", index)
	}
	held, err := arg.retain()
	if err != nil {
		return err
	}
	if index >= len(k.args) {
		k.args = append(k.args, make([]Argument, index+1-len(k.args))...)
	}
	if old := k.args[index]; old != nil {
		old.release()
	}
	k.args[index] = held
	return nil
}

// SetArgI32 binds a 32-bit integer.
func (k *Kernel) SetArgI32(index int, v int32) error { return k.SetArg(index, I32(v)) }

// SetArgF32 binds a 32-bit float.
func (k *Kernel) SetArgF32(index int, v float32) error { return k.SetArg(index, F32(v)) }

// SetArgScalar binds a scalar of any element type.
func (k *Kernel) SetArgScalar(index int, s Scalar) error { return k.SetArg(index, s) }

// SetArgNdArray binds an ND-array.
func (k *Kernel) SetArgNdArray(index int, a NdArrayLike) error {
	if a == nil || a.Memory() == nil {
		return newError(capi.ErrorArgumentNull, "argument %d is nil", index)
	}
	return k.SetArg(index, NdArrayArgument(a))
}

// SetArgTexture binds a texture.
func (k *Kernel) SetArgTexture(index int, t *Texture) error {
	if t == nil {
		return newError(capi.ErrorArgumentNull, "argument %d is nil", index)
	}
	return k.SetArg(index, TextureArgument(t))
}

// Args returns the bound arguments in position order. Unset positions are
// InvalidArgument.
func (k *Kernel) Args() ([]capi.Argument, error) {
	out := make([]capi.Argument, len(k.args))
	for i, a := range k.args {
		if a == nil {
			return nil, newError(capi.ErrorInvalidArgument, "kernel %q: argument %d is not set", k.name, i)
		}
		out[i] = a.value()
	}
	return out, nil
}

// ResetArgs unbinds every argument.
func (k *Kernel) ResetArgs() {
	for _, a := range k.args {
		if a != nil {
			a.release()
		}
	}
	k.args = nil
}

// Launch records one dispatch of the kernel with the bound arguments.
func (k *Kernel) Launch() error {
	if k.isClosed() {
		return errClosed("kernel")
	}
	args, err := k.Args()
	if err != nil {
		return err
	}
	r := k.module.rt
	if err := call(r.lib, func() { r.lib.LaunchKernel(r.handle, k.h, args) }); err != nil {
		return err
	}
	r.stats.kernelLaunches.Add(1)
	Logger().Debug("taichi: kernel launched", "kernel", k.name, "args", len(args))
	return nil
}

// Close releases the bound arguments and the module reference. Further calls
// are no-ops.
func (k *Kernel) Close() {
	if !k.close() {
		return
	}
	k.ResetArgs()
	k.module.ref.drop()
}
