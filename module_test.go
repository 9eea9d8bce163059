package taichi

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/gogpu/taichi/capi"
)

const mathModule = `version: 1
arch: x64
kernels:
  - name: scale
    host: scale
    args:
      - {name: arr, kind: ndarray, dtype: f32, ndim: 1}
      - {name: factor, kind: f32}
  - name: add
    host: add
    args:
      - {name: dst, kind: ndarray, dtype: f32, ndim: 1}
      - {name: lhs, kind: ndarray, dtype: f32, ndim: 1}
      - {name: rhs, kind: ndarray, dtype: f32, ndim: 1}
  - name: fill
    host: fill
    args:
      - {name: arr, kind: ndarray, ndim: 1}
      - {name: value, kind: scalar, dtype: f64}
graphs:
  - name: axpy
    args:
      - {name: y, kind: ndarray, dtype: f32, ndim: 1}
      - {name: x, kind: ndarray, dtype: f32, ndim: 1}
      - {name: out, kind: ndarray, dtype: f32, ndim: 1}
      - {name: a, kind: f32}
    dispatches:
      - {kernel: scale, args: [x, a]}
      - {kernel: add, args: [out, x, y]}
`

func writeMathModule(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "module.yaml"), []byte(mathModule), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return dir
}

func newF32(t *testing.T, rt *Runtime, values ...float32) *NdArray[float32] {
	t.Helper()
	arr, err := NewNdArray[float32](rt).Shape(uint32(len(values))).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	t.Cleanup(arr.Close)
	if err := arr.Write(values); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return arr
}

// checkChessBoard verifies arr[i, j] = (j*(w+1) + i) % 2.
func checkChessBoard(t *testing.T, arr *NdArray[int32]) {
	t.Helper()
	data, err := arr.ToSlice()
	if err != nil {
		t.Fatalf("ToSlice() error = %v", err)
	}
	shape := arr.Shape()
	w, h := int(shape[0]), int(shape[1])
	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			want := int32((j*(w+1) + i) % 2)
			if got := data[i*h+j]; got != want {
				t.Fatalf("arr[%d, %d] = %d, want %d", i, j, got, want)
			}
		}
	}
}

func TestChessBoardGraph(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mod, err := rt.LoadModule(chessBoardModule)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	defer mod.Close()
	g, err := mod.ComputeGraph("g_run")
	if err != nil {
		t.Fatalf("ComputeGraph() error = %v", err)
	}
	defer g.Close()

	arr, err := NewNdArray[int32](rt).Shape(16, 16).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer arr.Close()

	if err := g.SetArgNdArray("arr", arr); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	if err := g.Launch(); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	checkChessBoard(t, arr)

	if got := rt.Stats().GraphLaunches; got != 1 {
		t.Errorf("GraphLaunches = %d, want 1", got)
	}
}

func TestChessBoardKernelFromArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"module.toml", "chess_board.wgsl"} {
		data, err := os.ReadFile(filepath.Join(chessBoardModule, name))
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		w, err := zw.Create("chess_board/" + name)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rt, _ := newHostRuntime(t)
	mod, err := rt.CreateModule(buf.Bytes())
	if err != nil {
		t.Fatalf("CreateModule() error = %v", err)
	}
	defer mod.Close()
	k, err := mod.Kernel("chess_board")
	if err != nil {
		t.Fatalf("Kernel() error = %v", err)
	}
	defer k.Close()

	arr, err := NewNdArray[int32](rt).Shape(5, 3).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer arr.Close()
	if err := k.SetArgNdArray(0, arr); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	if err := k.Launch(); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	checkChessBoard(t, arr)
}

func TestModuleErrors(t *testing.T) {
	rt, _ := newHostRuntime(t)

	_, err := rt.LoadModule(filepath.Join(t.TempDir(), "missing"))
	wantCode(t, err, capi.ErrorNameNotFound)

	_, err = rt.LoadModule("bad\x00path")
	wantCode(t, err, capi.ErrorInvalidArgument)

	_, err = rt.CreateModule(nil)
	wantCode(t, err, capi.ErrorArgumentNull)

	_, err = rt.CreateModule([]byte("not a zip"))
	wantCode(t, err, capi.ErrorCorruptedData)

	mod, err := rt.LoadModule(chessBoardModule)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	defer mod.Close()

	_, err = mod.Kernel("nope")
	wantCode(t, err, capi.ErrorNameNotFound)
	_, err = mod.ComputeGraph("nope")
	wantCode(t, err, capi.ErrorNameNotFound)
	_, err = mod.ComputeGraph("")
	wantCode(t, err, capi.ErrorNameNotFound)
	_, err = mod.Kernel("chess\x00board")
	wantCode(t, err, capi.ErrorInvalidArgument)
}

func TestModuleIncompatibleArch(t *testing.T) {
	_, lib := newHostRuntime(t)
	arm, err := NewRuntime(capi.ArchArm64, WithLibrary(lib))
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	defer arm.Close()

	_, err = arm.LoadModule(writeMathModule(t))
	wantCode(t, err, capi.ErrorIncompatibleModule)
}

func TestGraphArgs(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mod, err := rt.LoadModule(writeMathModule(t))
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	defer mod.Close()
	g, err := mod.ComputeGraph("axpy")
	if err != nil {
		t.Fatalf("ComputeGraph() error = %v", err)
	}
	defer g.Close()

	x := newF32(t, rt, 1, 2, 3)
	y := newF32(t, rt, 10, 20, 30)
	out := newF32(t, rt, 0, 0, 0)

	if err := g.SetArgNdArray("y", y); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	if err := g.SetArgNdArray("x", x); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	if err := g.SetArgF32("a", 1); err != nil {
		t.Fatalf("SetArgF32() error = %v", err)
	}
	// Replacing keeps one entry per name.
	if err := g.SetArgF32("a", 2); err != nil {
		t.Fatalf("SetArgF32() error = %v", err)
	}

	// Three of four parameters bound.
	wantCode(t, g.Launch(), capi.ErrorArgumentOutOfRange)

	if err := g.SetArgNdArray("out", out); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	var names []string
	for _, a := range g.Args() {
		names = append(names, a.Name)
	}
	if !slices.Equal(names, []string{"a", "out", "x", "y"}) {
		t.Errorf("Args() names = %v, want sorted", names)
	}
	if a, ok := g.Arg("a"); !ok || a.(F32) != 2 {
		t.Errorf("Arg(a) = %v, %v", a, ok)
	}

	if err := g.Launch(); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	got, err := out.ToSlice()
	if err != nil {
		t.Fatalf("ToSlice() error = %v", err)
	}
	if !slices.Equal(got, []float32{12, 24, 36}) {
		t.Errorf("out = %v, want [12 24 36]", got)
	}
}

func TestGraphArgErrors(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mod, err := rt.LoadModule(writeMathModule(t))
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	defer mod.Close()
	g, err := mod.ComputeGraph("axpy")
	if err != nil {
		t.Fatalf("ComputeGraph() error = %v", err)
	}
	defer g.Close()

	x := newF32(t, rt, 1)
	ints, err := NewNdArray[int32](rt).Shape(1).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer ints.Close()

	for _, name := range []string{"x", "y", "out"} {
		if err := g.SetArgNdArray(name, x); err != nil {
			t.Fatalf("SetArgNdArray(%s) error = %v", name, err)
		}
	}
	if err := g.SetArgF32("b", 1); err != nil {
		t.Fatalf("SetArgF32() error = %v", err)
	}
	wantCode(t, g.Launch(), capi.ErrorArgumentNotFound)

	g.ResetArgs()
	if len(g.Args()) != 0 {
		t.Fatalf("Args() after ResetArgs = %v", g.Args())
	}
	for _, name := range []string{"x", "y"} {
		if err := g.SetArgNdArray(name, x); err != nil {
			t.Fatalf("SetArgNdArray(%s) error = %v", name, err)
		}
	}
	if err := g.SetArgNdArray("out", ints); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	if err := g.SetArgF32("a", 1); err != nil {
		t.Fatalf("SetArgF32() error = %v", err)
	}
	wantCode(t, g.Launch(), capi.ErrorInvalidArgument)

	wantCode(t, g.SetArg("a", nil), capi.ErrorArgumentNull)
	wantCode(t, g.SetArg("a\x00b", I32(1)), capi.ErrorInvalidArgument)

	// A nil array behind the interface is a null argument, not a crash.
	var missing *NdArray[float32]
	wantCode(t, g.SetArgNdArray("x", missing), capi.ErrorArgumentNull)
	wantCode(t, g.SetArg("x", NdArrayArgument(missing)), capi.ErrorArgumentNull)
	var noTexture *Texture
	wantCode(t, g.SetArgTexture("x", noTexture), capi.ErrorArgumentNull)
	wantCode(t, g.SetArg("x", TextureArgument(noTexture)), capi.ErrorArgumentNull)

	// An empty name is a valid C string.
	if err := g.SetArg("", I32(1)); err != nil {
		t.Fatalf("SetArg(\"\") error = %v", err)
	}
	if _, ok := g.Arg(""); !ok {
		t.Error("Arg(\"\") not bound")
	}
}

// Bound arguments keep their memory alive until the graph lets go of them.
func TestGraphRetainsArguments(t *testing.T) {
	rt, lib := newHostRuntime(t)
	mod, err := rt.LoadModule(chessBoardModule)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	defer mod.Close()
	g, err := mod.ComputeGraph("g_run")
	if err != nil {
		t.Fatalf("ComputeGraph() error = %v", err)
	}

	arr, err := NewNdArray[int32](rt).Shape(4, 4).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := g.SetArgNdArray("arr", arr); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	arr.Close()
	if got := lib.Stats().MemoryFrees; got != 0 {
		t.Fatalf("MemoryFrees = %d, want 0 while bound", got)
	}
	if err := g.Launch(); err != nil {
		t.Fatalf("Launch() after closing the array error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	g.Close()
	if got := lib.Stats().MemoryFrees; got != 1 {
		t.Errorf("MemoryFrees = %d, want 1", got)
	}
	wantCode(t, g.Launch(), capi.ErrorInvalidState)

	// A closed array cannot be bound.
	wantCode(t, func() error {
		g2, err := mod.ComputeGraph("g_run")
		if err != nil {
			return err
		}
		defer g2.Close()
		return g2.SetArgNdArray("arr", arr)
	}(), capi.ErrorInvalidState)
}

func TestKernelArgs(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mod, err := rt.LoadModule(writeMathModule(t))
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	defer mod.Close()
	k, err := mod.Kernel("fill")
	if err != nil {
		t.Fatalf("Kernel() error = %v", err)
	}
	defer k.Close()
	arr := newF32(t, rt, 0, 0, 0, 0)

	// Position 0 left unset.
	if err := k.SetArgScalar(1, ScalarOf(2.5)); err != nil {
		t.Fatalf("SetArgScalar() error = %v", err)
	}
	wantCode(t, k.Launch(), capi.ErrorInvalidArgument)

	if err := k.SetArgNdArray(0, arr); err != nil {
		t.Fatalf("SetArgNdArray() error = %v", err)
	}
	args, err := k.Args()
	if err != nil {
		t.Fatalf("Args() error = %v", err)
	}
	if args[0].Type != capi.ArgumentTypeNdArray || args[1].Type != capi.ArgumentTypeScalar {
		t.Errorf("Args() types = %s, %s", args[0].Type, args[1].Type)
	}
	if err := k.Launch(); err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	got, err := arr.ToSlice()
	if err != nil {
		t.Fatalf("ToSlice() error = %v", err)
	}
	if !slices.Equal(got, []float32{2.5, 2.5, 2.5, 2.5}) {
		t.Errorf("arr = %v", got)
	}

	// Wrong scalar type.
	if err := k.SetArgScalar(1, ScalarOf(float32(1))); err != nil {
		t.Fatalf("SetArgScalar() error = %v", err)
	}
	wantCode(t, k.Launch(), capi.ErrorInvalidArgument)

	// Too many arguments.
	if err := k.SetArgI32(2, 1); err != nil {
		t.Fatalf("SetArgI32() error = %v", err)
	}
	wantCode(t, k.Launch(), capi.ErrorArgumentOutOfRange)

	wantCode(t, k.SetArgI32(-1, 1), capi.ErrorArgumentOutOfRange)
	wantCode(t, k.SetArgNdArray(0, nil), capi.ErrorArgumentNull)
	var missing *NdArray[float32]
	wantCode(t, k.SetArgNdArray(0, missing), capi.ErrorArgumentNull)
	wantCode(t, k.SetArg(0, NdArrayArgument(missing)), capi.ErrorArgumentNull)

	k.ResetArgs()
	if args, err := k.Args(); err != nil || len(args) != 0 {
		t.Errorf("Args() after ResetArgs = %v, %v", args, err)
	}
	if got := rt.Stats().KernelLaunches; got != 1 {
		t.Errorf("KernelLaunches = %d, want 1", got)
	}
}

func TestScalarOf(t *testing.T) {
	tests := []struct {
		s    Scalar
		typ  capi.DataType
		bits uint64
	}{
		{ScalarOf(int8(-1)), capi.DataTypeI8, 0xff},
		{ScalarOf(int32(-2)), capi.DataTypeI32, 0xfffffffe},
		{ScalarOf(uint16(7)), capi.DataTypeU16, 7},
		{ScalarOf(float32(1)), capi.DataTypeF32, 0x3f800000},
		{ScalarOf(1.0), capi.DataTypeF64, 0x3ff0000000000000},
	}
	for _, tt := range tests {
		v := tt.s.value()
		if v.Type != capi.ArgumentTypeScalar || v.Scalar.Type != tt.typ || v.Scalar.Bits != tt.bits {
			t.Errorf("ScalarOf() = %+v, want %s bits %#x", v.Scalar, tt.typ, tt.bits)
		}
	}
}
