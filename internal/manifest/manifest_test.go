package manifest

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/gogpu/taichi/capi"
)

const tomlManifest = `version = 1
arch = "vulkan"

[[kernels]]
name = "fill"
source = "fill.wgsl"
host = "fill"
workgroup_size = [64]

[[kernels.args]]
name = "arr"
kind = "ndarray"
dtype = "f32"
ndim = 1

[[kernels.args]]
name = "value"
kind = "f32"

[[graphs]]
name = "run"

[[graphs.args]]
name = "arr"
kind = "ndarray"
dtype = "f32"
ndim = 1

[[graphs.args]]
name = "v"
kind = "f32"

[[graphs.dispatches]]
kernel = "fill"
args = ["arr", "v"]
`

const yamlManifest = `version: 1
kernels:
  - name: fill
    host: fill
    args:
      - {name: arr, kind: ndarray, dtype: F32, ndim: 1}
      - {name: value, kind: f32}
`

const jsonManifest = `{"version": 1, "arch": "any", "kernels": [{"name": "fill", "host": "fill",
"args": [{"name": "arr", "kind": "ndarray", "dtype": "f32", "ndim": 1}, {"name": "value", "kind": "f32"}]}]}`

func TestDecodeFormats(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"module.toml", tomlManifest},
		{"module.yaml", yamlManifest},
		{"module.yml", yamlManifest},
		{"metadata.json", jsonManifest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Decode(tt.name, []byte(tt.data))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			k, ok := m.Kernel("fill")
			if !ok {
				t.Fatal("Kernel(fill) not found")
			}
			if k.Host != "fill" || len(k.Args) != 2 {
				t.Errorf("kernel = %+v", k)
			}
			dt, err := k.Args[0].DataType()
			if err != nil || dt != capi.DataTypeF32 {
				t.Errorf("DataType() = %v, %v", dt, err)
			}
		})
	}
}

func TestDecodeTOMLDetails(t *testing.T) {
	m, err := Decode("module.toml", []byte(tomlManifest))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if m.Arch != "vulkan" || m.Version != 1 {
		t.Errorf("header = %q v%d", m.Arch, m.Version)
	}
	k, _ := m.Kernel("fill")
	if k.Source != "fill.wgsl" || len(k.WorkgroupSize) != 1 || k.WorkgroupSize[0] != 64 {
		t.Errorf("kernel = %+v", k)
	}
	g, ok := m.Graph("run")
	if !ok {
		t.Fatal("Graph(run) not found")
	}
	if len(g.Dispatches) != 1 || g.Dispatches[0].Kernel != "fill" {
		t.Errorf("dispatches = %+v", g.Dispatches)
	}
	if a, ok := g.Arg("v"); !ok || a.Kind != "f32" {
		t.Errorf("Arg(v) = %+v, %v", a, ok)
	}
	if _, ok := m.Graph("missing"); ok {
		t.Error("Graph(missing) found")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
		want error
	}{
		{"extension", "module.ini", "version = 1", ErrCorrupted},
		{"syntax", "module.toml", "version = [", ErrCorrupted},
		{"no version", "module.yaml", "kernels: []", ErrCorrupted},
		{"future version", "module.yaml", "version: 9", ErrIncompatible},
		{"unnamed kernel", "module.yaml", "version: 1\nkernels: [{host: fill}]", ErrCorrupted},
		{"duplicate kernel", "module.yaml", "version: 1\nkernels: [{name: a}, {name: a}]", ErrCorrupted},
		{"bad kind", "module.yaml", "version: 1\nkernels: [{name: a, args: [{name: x, kind: matrix}]}]", ErrCorrupted},
		{"bad dtype", "module.yaml", "version: 1\nkernels: [{name: a, args: [{name: x, kind: ndarray, dtype: q8}]}]", ErrCorrupted},
		{"duplicate arg", "module.yaml", "version: 1\nkernels: [{name: a, args: [{name: x, kind: i32}, {name: x, kind: i32}]}]", ErrCorrupted},
		{"ndim", "module.yaml", "version: 1\nkernels: [{name: a, args: [{name: x, kind: ndarray, ndim: 17}]}]", ErrCorrupted},
		{"grid", "module.yaml", "version: 1\nkernels: [{name: a, dispatch: [1, 1, 1, 1]}]", ErrCorrupted},
		{"unknown kernel", "module.yaml", "version: 1\ngraphs: [{name: g, dispatches: [{kernel: a}]}]", ErrCorrupted},
		{"dispatch arity", "module.yaml", "version: 1\nkernels: [{name: a, args: [{name: x, kind: i32}]}]\ngraphs: [{name: g, args: [{name: x, kind: i32}], dispatches: [{kernel: a}]}]", ErrCorrupted},
		{"unknown param", "module.yaml", "version: 1\nkernels: [{name: a, args: [{name: x, kind: i32}]}]\ngraphs: [{name: g, dispatches: [{kernel: a, args: [y]}]}]", ErrCorrupted},
		{"duplicate graph", "module.yaml", "version: 1\ngraphs: [{name: g}, {name: g}]", ErrCorrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.file, []byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompatibleWith(t *testing.T) {
	tests := []struct {
		arch    string
		runtime capi.Arch
		ok      bool
	}{
		{"", capi.ArchX64, true},
		{"any", capi.ArchVulkan, true},
		{"vulkan", capi.ArchVulkan, true},
		{"Vulkan", capi.ArchVulkan, true},
		{"vulkan", capi.ArchX64, false},
	}
	for _, tt := range tests {
		m := &Module{Version: 1, Arch: tt.arch}
		err := m.CompatibleWith(tt.runtime)
		if (err == nil) != tt.ok {
			t.Errorf("CompatibleWith(%q, %s) = %v, want ok=%v", tt.arch, tt.runtime, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrIncompatible) {
			t.Errorf("CompatibleWith() error = %v, want ErrIncompatible", err)
		}
	}
}

func TestFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"module.toml": {Data: []byte(tomlManifest)},
		"fill.wgsl":   {Data: []byte("// shader")},
	}
	b, err := FromFS(fsys)
	if err != nil {
		t.Fatalf("FromFS() error = %v", err)
	}
	if b.ManifestName != "module.toml" {
		t.Errorf("ManifestName = %q", b.ManifestName)
	}
	src, err := b.ReadFile("./fill.wgsl")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(src) != "// shader" {
		t.Errorf("ReadFile() = %q", src)
	}

	for _, name := range []string{"../fill.wgsl", "/etc/passwd", "missing.wgsl"} {
		if _, err := b.ReadFile(name); !errors.Is(err, ErrCorrupted) {
			t.Errorf("ReadFile(%q) error = %v, want ErrCorrupted", name, err)
		}
	}

	if _, err := FromFS(fstest.MapFS{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("FromFS(empty) error = %v, want ErrNotFound", err)
	}
}

func TestFromFSLookupOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"metadata.json": {Data: []byte(jsonManifest)},
		"module.yaml":   {Data: []byte(yamlManifest)},
	}
	b, err := FromFS(fsys)
	if err != nil {
		t.Fatalf("FromFS() error = %v", err)
	}
	if b.ManifestName != "module.yaml" {
		t.Errorf("ManifestName = %q, want module.yaml", b.ManifestName)
	}
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := w.Write([]byte(data)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.Bytes()
}

func TestFromArchive(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  error
	}{
		{"root", map[string]string{"module.yaml": yamlManifest}, nil},
		{"nested", map[string]string{"mod/module.yaml": yamlManifest, "mod/fill.wgsl": ""}, nil},
		{"two dirs", map[string]string{"a/module.yaml": yamlManifest, "b/x": ""}, ErrCorrupted},
		{"no manifest", map[string]string{"mod/readme": ""}, ErrCorrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := FromArchive(zipOf(t, tt.files))
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("FromArchive() error = %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromArchive() error = %v", err)
			}
			if _, ok := b.Kernel("fill"); !ok {
				t.Error("Kernel(fill) not found")
			}
		})
	}

	if _, err := FromArchive([]byte("garbage")); !errors.Is(err, ErrCorrupted) {
		t.Errorf("FromArchive(garbage) error = %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "module.yaml"), []byte(yamlManifest), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Open(dir); err != nil {
		t.Fatalf("Open(dir) error = %v", err)
	}

	archive := filepath.Join(t.TempDir(), "module.zip")
	if err := os.WriteFile(archive, zipOf(t, map[string]string{"module.yaml": yamlManifest}), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Open(archive); err != nil {
		t.Fatalf("Open(archive) error = %v", err)
	}

	if _, err := Open(filepath.Join(dir, "missing")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := Open(""); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(\"\") error = %v, want ErrNotFound", err)
	}
}
