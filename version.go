package taichi

import "fmt"

// Version is a backend library version.
type Version struct {
	Major, Minor, Patch uint32
}

// VersionFromUint32 decodes the packed major*1000000 + minor*1000 + patch
// form used by libraries.
func VersionFromUint32(v uint32) Version {
	return Version{Major: v / 1_000_000, Minor: v / 1_000 % 1_000, Patch: v % 1_000}
}

// Uint32 returns the packed form.
func (v Version) Uint32() uint32 {
	return v.Major*1_000_000 + v.Minor*1_000 + v.Patch
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}
