//go:build linux

package capability

import (
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/standardbeagle/bfind/internal/types"
)

// LinuxSet wires every probe family against golang.org/x/sys/unix and
// os/user, matching what real find(1)/bfs implementations can actually
// inspect on Linux: xattr presence via listxattr, mount boundaries via
// stat's device id, user/group names via the standard NSS-backed
// lookups. ACL and capability detection need libacl/libcap, which this
// module does not link against (see DESIGN.md); those two probes report
// ErrUnsupportedProbe instead of faking an answer.
type LinuxSet struct {
	StubACL
	StubCapabilities
	xattrProbe
	mountProbe
	identityProbe
}

// New returns the capability.Set for the current platform. cmd/bfind
// calls this one tag-free name rather than choosing between
// NewLinuxSet/NewOtherSet itself.
func New() Set {
	return NewLinuxSet()
}

// NewLinuxSet returns the capability.Set backed by LinuxSet's probes.
func NewLinuxSet() Set {
	l := LinuxSet{}
	return Set{
		ACL:          l.StubACL,
		Capabilities: l.StubCapabilities,
		Xattr:        l.xattrProbe,
		Mounts:       l.mountProbe,
		Identity:     l.identityProbe,
	}
}

type xattrProbe struct{ unsupported }

func (xattrProbe) Supported() bool { return true }

func (xattrProbe) HasXattr(path string) (types.Tristate, error) {
	buf := make([]byte, 0)
	n, err := unix.Listxattr(path, buf)
	if err != nil {
		if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
			return types.Indeterminate, ErrUnsupportedProbe
		}
		return types.Indeterminate, err
	}
	if n > 0 {
		return types.Yes, nil
	}
	return types.No, nil
}

type mountProbe struct{ unsupported }

func (mountProbe) Supported() bool { return true }

func (mountProbe) DeviceOf(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Dev), nil
}

func (p mountProbe) IsMountPoint(path string) (types.Tristate, error) {
	dev, err := p.DeviceOf(path)
	if err != nil {
		return types.Indeterminate, err
	}
	parentDev, err := p.DeviceOf(path + "/..")
	if err != nil {
		return types.Indeterminate, err
	}
	if dev != parentDev {
		return types.Yes, nil
	}
	return types.No, nil
}

type identityProbe struct{ unsupported }

func (identityProbe) Supported() bool { return true }

func (identityProbe) UIDForName(name string) (uint32, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(u.Uid, 10, 32)
	return uint32(n), err
}

func (identityProbe) GIDForName(name string) (uint32, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(g.Gid, 10, 32)
	return uint32(n), err
}

func (identityProbe) UserExists(uid uint32) bool {
	_, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	return err == nil
}

func (identityProbe) GroupExists(gid uint32) bool {
	_, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	return err == nil
}
