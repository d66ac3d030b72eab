//go:build !linux

package capability

import "github.com/standardbeagle/bfind/internal/types"

// New returns the capability.Set for the current platform. cmd/bfind
// calls this one tag-free name rather than choosing between
// NewLinuxSet/NewOtherSet itself.
func New() Set {
	return NewOtherSet()
}

// NewOtherSet returns an all-stub capability.Set for platforms this
// module has no syscall adapter for. Every probe reports
// ErrUnsupportedProbe rather than guessing.
func NewOtherSet() Set {
	return Set{
		ACL:          StubACL{},
		Capabilities: StubCapabilities{},
		Xattr:        StubXattr{},
		Mounts:       stubMounts{},
		Identity:     stubIdentity{},
	}
}

type stubMounts struct{ unsupported }

func (stubMounts) DeviceOf(string) (uint64, error) { return 0, ErrUnsupportedProbe }
func (stubMounts) IsMountPoint(string) (types.Tristate, error) {
	return types.Indeterminate, ErrUnsupportedProbe
}

type stubIdentity struct{ unsupported }

func (stubIdentity) UIDForName(string) (uint32, error) { return 0, ErrUnsupportedProbe }
func (stubIdentity) GIDForName(string) (uint32, error) { return 0, ErrUnsupportedProbe }
func (stubIdentity) UserExists(uint32) bool            { return false }
func (stubIdentity) GroupExists(uint32) bool           { return false }
