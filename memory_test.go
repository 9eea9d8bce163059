package taichi

import (
	"slices"
	"testing"

	"github.com/x448/float16"

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/capi/host"
)

func TestMemoryBuilderDefaults(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mem, err := rt.AllocateMemory().Size(16).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer mem.Close()

	if mem.Size() != 16 {
		t.Errorf("Size() = %d, want 16", mem.Size())
	}
	if mem.HostRead() || mem.HostWrite() || mem.ExportSharing() {
		t.Error("default memory has host access or export sharing")
	}
	if mem.Usage() != capi.MemoryUsageStorage {
		t.Errorf("Usage() = %v, want storage", mem.Usage())
	}
}

func TestMemoryReadWrite(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mem, err := rt.AllocateMemory().Size(16).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer mem.Close()

	src := []float32{1, 2, 3, 4}
	if err := Write(mem, src); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	dst := make([]float32, 4)
	if err := Read(mem, dst); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !slices.Equal(dst, src) {
		t.Errorf("Read() = %v, want %v", dst, src)
	}

	if err := Read(mem, make([]float32, 3)); !IsCode(err, capi.ErrorInvalidArgument) {
		t.Errorf("short Read() error = %v, want invalid argument", err)
	}
	if err := Read(mem, make([]float64, 1)); !IsCode(err, capi.ErrorInvalidArgument) {
		t.Errorf("mistyped Read() error = %v, want invalid argument", err)
	}
}

func TestMemoryHostAccessFlags(t *testing.T) {
	rt, _ := newHostRuntime(t)

	wo, err := rt.AllocateMemory().Size(4).HostWrite(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer wo.Close()
	if err := wo.WriteBytes([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("WriteBytes() error = %v", err)
	}
	wantCode(t, wo.ReadBytes(make([]byte, 4)), capi.ErrorInvalidState)

	none, err := rt.AllocateMemory().Size(4).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer none.Close()
	_, err = Map[uint8](none)
	wantCode(t, err, capi.ErrorInvalidState)
}

func TestMemoryOutOfBudget(t *testing.T) {
	rt, _ := newHostRuntime(t, host.WithMemoryBudget(64))
	mem, err := rt.AllocateMemory().Size(48).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer mem.Close()

	_, err = rt.AllocateMemory().Size(32).Build()
	wantCode(t, err, capi.ErrorOutOfMemory)
	if got := rt.Stats().Memories; got != 1 {
		t.Errorf("Memories = %d, want 1", got)
	}
}

func TestMapped(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mem, err := rt.AllocateMemory().Size(8).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer mem.Close()

	v, err := Map[uint16](mem)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if v.Len() != 4 || len(v.Bytes()) != 8 {
		t.Fatalf("Len() = %d, Bytes() = %d, want 4 and 8", v.Len(), len(v.Bytes()))
	}
	copy(v.Data(), []uint16{7, 8, 9, 10})

	// A second live mapping is rejected.
	if _, err := Map[uint16](mem); !IsCode(err, capi.ErrorInvalidState) {
		t.Errorf("second Map() error = %v, want invalid state", err)
	}
	v.Close()
	v.Close()

	err = WithMapped(mem, func(data []uint16) error {
		if !slices.Equal(data, []uint16{7, 8, 9, 10}) {
			t.Errorf("mapped data = %v", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithMapped() error = %v", err)
	}

	w, err := Map[uint64](mem)
	if err != nil {
		t.Fatalf("Map() after WithMapped error = %v", err)
	}
	w.Close()
}

func TestMappedSizeMismatch(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mem, err := rt.AllocateMemory().Size(6).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer mem.Close()
	_, err = Map[float32](mem)
	wantCode(t, err, capi.ErrorInvalidArgument)
}

func TestWithMappedUnmapsOnPanic(t *testing.T) {
	rt, _ := newHostRuntime(t)
	mem, err := rt.AllocateMemory().Size(4).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer mem.Close()

	func() {
		defer func() { _ = recover() }()
		_ = WithMapped(mem, func([]uint8) error { panic("boom") })
	}()
	if err := mem.WriteBytes([]byte{1, 2, 3, 4}); err != nil {
		t.Errorf("WriteBytes() after panic error = %v, memory left mapped", err)
	}
}

func TestCopyMemory(t *testing.T) {
	rt, _ := newHostRuntime(t)
	src, err := rt.AllocateMemory().Size(8).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer src.Close()
	dst, err := rt.AllocateMemory().Size(8).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer dst.Close()

	if err := src.WriteBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8}); err != nil {
		t.Fatalf("WriteBytes() error = %v", err)
	}
	if err := rt.CopyMemory(dst.Region(4, 4), src.Region(0, 4)); err != nil {
		t.Fatalf("CopyMemory() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	got := make([]byte, 8)
	if err := dst.ReadBytes(got); err != nil {
		t.Fatalf("ReadBytes() error = %v", err)
	}
	if !slices.Equal(got, []byte{0, 0, 0, 0, 1, 2, 3, 4}) {
		t.Errorf("dst = %v", got)
	}

	wantCode(t, rt.CopyMemory(dst.Region(0, 8), src.Region(4, 4)), capi.ErrorInvalidArgument)
	wantCode(t, rt.CopyMemory(dst.Region(4, 8), src.Region(0, 8)), capi.ErrorArgumentOutOfRange)
	wantCode(t, rt.CopyMemory(MemoryRegion{}, src.Region(0, 8)), capi.ErrorArgumentNull)
}

func TestNdArray(t *testing.T) {
	rt, _ := newHostRuntime(t)
	arr, err := NewNdArray[float32](rt).Shape(2, 3).ElemShape(2).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer arr.Close()

	if arr.Memory().Size() != 4*2*3*2 {
		t.Errorf("memory size = %d, want 48", arr.Memory().Size())
	}
	if arr.ElemCount() != 6 || arr.ScalarCount() != 12 {
		t.Errorf("ElemCount() = %d, ScalarCount() = %d", arr.ElemCount(), arr.ScalarCount())
	}
	if arr.ElemType() != capi.DataTypeF32 {
		t.Errorf("ElemType() = %s", arr.ElemType())
	}

	d := arr.Descriptor()
	if d.Memory != arr.Memory().Handle() || d.ElemType != capi.DataTypeF32 {
		t.Errorf("Descriptor() = %+v", d)
	}
	if !slices.Equal(d.Shape.Slice(), []uint32{2, 3}) || !slices.Equal(d.ElemShape.Slice(), []uint32{2}) {
		t.Errorf("Descriptor() shapes = %v, %v", d.Shape.Slice(), d.ElemShape.Slice())
	}

	// Returned shapes are copies.
	s := arr.Shape()
	s[0] = 99
	if arr.Shape()[0] != 2 {
		t.Error("Shape() aliases the array")
	}

	in := make([]float32, 12)
	for i := range in {
		in[i] = float32(i) / 2
	}
	if err := arr.Write(in); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out, err := arr.ToSlice()
	if err != nil {
		t.Fatalf("ToSlice() error = %v", err)
	}
	if !slices.Equal(out, in) {
		t.Errorf("ToSlice() = %v, want %v", out, in)
	}
}

func TestNdArrayFloat16(t *testing.T) {
	rt, _ := newHostRuntime(t)
	arr, err := NewNdArray[float16.Float16](rt).Shape(3).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer arr.Close()

	in := []float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2), float16.Fromfloat32(1024)}
	if err := arr.Write(in); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	v, err := arr.Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	defer v.Close()
	if got := v.Data()[1].Float32(); got != -2 {
		t.Errorf("Data()[1] = %v, want -2", got)
	}
}

func TestNdArrayBuildErrors(t *testing.T) {
	rt, _ := newHostRuntime(t)

	dims := make([]uint32, capi.MaxNdShapeDims+1)
	for i := range dims {
		dims[i] = 1
	}
	_, err := NewNdArray[int32](rt).Shape(dims...).Build()
	wantCode(t, err, capi.ErrorInvalidArgument)

	_, err = NewNdArray[int64](rt).Shape(1<<31, 1<<31, 1<<31).Build()
	wantCode(t, err, capi.ErrorArgumentOutOfRange)

	_, err = NewNdArray[int32](rt).Shape(0).Build()
	wantCode(t, err, capi.ErrorInvalidArgument)
}

func TestDataTypeOf(t *testing.T) {
	tests := []struct {
		got, want capi.DataType
	}{
		{DataTypeOf[int8](), capi.DataTypeI8},
		{DataTypeOf[uint16](), capi.DataTypeU16},
		{DataTypeOf[int32](), capi.DataTypeI32},
		{DataTypeOf[uint64](), capi.DataTypeU64},
		{DataTypeOf[float16.Float16](), capi.DataTypeF16},
		{DataTypeOf[float32](), capi.DataTypeF32},
		{DataTypeOf[float64](), capi.DataTypeF64},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("DataTypeOf = %s, want %s", tt.got, tt.want)
		}
	}
}
