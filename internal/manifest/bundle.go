package manifest

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
)

// Bundle is a decoded manifest together with the file system holding the
// module artifacts.
type Bundle struct {
	*Module
	// ManifestName is the manifest file the module was decoded from.
	ManifestName string

	fsys fs.FS
}

// Open loads a module from a directory or from a zip archive file.
func Open(p string) (*Bundle, error) {
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, err
	}
	if fi.IsDir() {
		return FromFS(os.DirFS(p))
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return FromArchive(data)
}

// FromArchive loads a module from zip archive bytes. The manifest may sit at
// the archive root or inside a single top-level directory.
func FromArchive(data []byte) (*Bundle, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a module archive: %v", ErrCorrupted, err)
	}
	b, err := FromFS(zr)
	if !errors.Is(err, ErrNotFound) {
		return b, err
	}

	entries, rerr := fs.ReadDir(zr, ".")
	if rerr != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, rerr)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil, fmt.Errorf("%w: archive has no manifest", ErrCorrupted)
	}
	sub, err := fs.Sub(zr, entries[0].Name())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	b, err = FromFS(sub)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: archive has no manifest", ErrCorrupted)
	}
	return b, err
}

// FromFS loads a module whose root is fsys.
func FromFS(fsys fs.FS) (*Bundle, error) {
	for _, name := range Names {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, name, err)
		}
		m, err := Decode(name, data)
		if err != nil {
			return nil, err
		}
		return &Bundle{Module: m, ManifestName: name, fsys: fsys}, nil
	}
	return nil, fmt.Errorf("%w: no manifest (want one of %v)", ErrNotFound, Names)
}

// ReadFile reads a module artifact by its manifest-relative path.
func (b *Bundle) ReadFile(name string) ([]byte, error) {
	name = path.Clean(name)
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: invalid artifact path %q", ErrCorrupted, name)
	}
	data, err := fs.ReadFile(b.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: artifact %s: %v", ErrCorrupted, name, err)
	}
	return data, nil
}
