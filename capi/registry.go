package capi

import (
	"errors"
	"slices"
	"sync"
)

// Library names used for registration.
const (
	LibraryNative = "native"
	LibraryWGPU   = "wgpu"
	LibraryHost   = "host"
)

// ErrLibraryNotAvailable is returned when no registered library serves an
// architecture.
var ErrLibraryNotAvailable = errors.New("capi: no library available for arch")

// LibraryFactory creates a library instance. A factory returning an error
// marks the library as unusable on this machine.
type LibraryFactory func() (Library, error)

type registration struct {
	archs   []Arch
	factory LibraryFactory

	once sync.Once
	lib  Library
	err  error
}

func (r *registration) get() (Library, error) {
	r.once.Do(func() {
		r.lib, r.err = r.factory()
	})
	return r.lib, r.err
}

var (
	registryMu sync.RWMutex
	libraries  = make(map[string]*registration)
	// Priority order for library selection (first match wins).
	// The vendor library is preferred when it was built in, the pure Go
	// device last.
	libraryPriority = []string{LibraryNative, LibraryWGPU, LibraryHost}
)

// Register registers a library factory under name for the given
// architectures. It is typically called from init() functions in backend
// packages. Registering an existing name replaces it.
//
// Each factory runs at most once; the resulting library is shared by every
// runtime created through the registry.
func Register(name string, archs []Arch, factory LibraryFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	libraries[name] = &registration{archs: slices.Clone(archs), factory: factory}
}

// Unregister removes a library from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(libraries, name)
}

// Registered returns the names of registered libraries.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(libraries))
	for name := range libraries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a library with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := libraries[name]
	return ok
}

// Get returns the library registered under name.
func Get(name string) (Library, error) {
	registryMu.RLock()
	r, ok := libraries[name]
	registryMu.RUnlock()
	if !ok {
		return nil, ErrLibraryNotAvailable
	}
	return r.get()
}

// ForArch returns the highest priority library serving arch.
// Libraries whose factory fails are skipped.
func ForArch(arch Arch) (Library, error) {
	registryMu.RLock()
	candidates := make([]*registration, 0, len(libraries))
	for _, name := range libraryPriority {
		if r, ok := libraries[name]; ok && slices.Contains(r.archs, arch) {
			candidates = append(candidates, r)
		}
	}
	for name, r := range libraries {
		if !slices.Contains(libraryPriority, name) && slices.Contains(r.archs, arch) {
			candidates = append(candidates, r)
		}
	}
	registryMu.RUnlock()

	var lastErr error
	for _, r := range candidates {
		lib, err := r.get()
		if err == nil && lib != nil {
			return lib, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, errors.Join(ErrLibraryNotAvailable, lastErr)
	}
	return nil, ErrLibraryNotAvailable
}

// AvailableArchs returns the union of GetAvailableArchs over every usable
// registered library, sorted.
func AvailableArchs() []Arch {
	registryMu.RLock()
	regs := make([]*registration, 0, len(libraries))
	for _, r := range libraries {
		regs = append(regs, r)
	}
	registryMu.RUnlock()

	var archs []Arch
	for _, r := range regs {
		lib, err := r.get()
		if err != nil || lib == nil {
			continue
		}
		for _, a := range lib.GetAvailableArchs() {
			if !slices.Contains(archs, a) {
				archs = append(archs, a)
			}
		}
	}
	slices.Sort(archs)
	return archs
}
