// Package capability defines the trait-style platform-probe
// interfaces: ACL, Linux
// capability, extended attribute, mount-table, and user/group lookups,
// each returning a types.Tristate rather than a bare bool so that "the
// platform doesn't support this check" is distinguishable from "no".
package capability

import "github.com/standardbeagle/bfind/internal/types"

// Prober is satisfied by every platform-specific probe family: it can
// always report whether the underlying check is backed by something real
// on the current platform, so that a missing probe surfaces as a
// configuration-time error rather than a silent false.
type Prober interface {
	Supported() bool
}

// ACL answers -acl: does the named file carry an access control list
// beyond the traditional owner/group/other bits.
type ACL interface {
	Prober
	HasACL(path string) (types.Tristate, error)
}

// Capabilities answers -capable: does the named file carry Linux
// filesystem capabilities (getcap(8)-visible xattrs).
type Capabilities interface {
	Prober
	HasCapabilities(path string) (types.Tristate, error)
}

// Xattr answers -xattr (any extended attribute present) and backs
// -xtype's occasional need to distinguish "no xattr support" from "none
// set".
type Xattr interface {
	Prober
	HasXattr(path string) (types.Tristate, error)
}

// MountTable answers -xdev/-mount: which device id a given path's
// filesystem root resides on, and whether a device id names a distinct
// mount from its parent.
type MountTable interface {
	Prober
	DeviceOf(path string) (uint64, error)
	IsMountPoint(path string) (types.Tristate, error)
}

// IdentityResolver answers -user/-group/-nouser/-nogroup: name-to-id and
// id-to-name lookups, each cached by the caller (internal/config) since
// the underlying NSS calls are not cheap to repeat per file.
type IdentityResolver interface {
	Prober
	UIDForName(name string) (uint32, error)
	GIDForName(name string) (uint32, error)
	UserExists(uid uint32) bool
	GroupExists(gid uint32) bool
}

// Set bundles every probe family a Context needs. A platform adapter
// package (built per-OS with build tags) provides one concrete Set; a
// test build can substitute a fake.
type Set struct {
	ACL          ACL
	Capabilities Capabilities
	Xattr        Xattr
	Mounts       MountTable
	Identity     IdentityResolver
}

// unsupported is the zero-cost Prober embedded in every stub below.
type unsupported struct{}

func (unsupported) Supported() bool { return false }

// ErrUnsupportedProbe is returned by every method of a stub adapter.
// internal/predicate maps it to a configuration-kind SearchError rather
// than treating the query as a benign "no".
var ErrUnsupportedProbe = unsupportedError("capability probe not supported on this platform")

type unsupportedError string

func (e unsupportedError) Error() string { return string(e) }

// StubACL is returned by platform adapters that have no ACL probe.
type StubACL struct{ unsupported }

func (StubACL) HasACL(string) (types.Tristate, error) {
	return types.Indeterminate, ErrUnsupportedProbe
}

// StubCapabilities is returned by platform adapters with no capability probe.
type StubCapabilities struct{ unsupported }

func (StubCapabilities) HasCapabilities(string) (types.Tristate, error) {
	return types.Indeterminate, ErrUnsupportedProbe
}

// StubXattr is returned by platform adapters with no xattr probe.
type StubXattr struct{ unsupported }

func (StubXattr) HasXattr(string) (types.Tristate, error) {
	return types.Indeterminate, ErrUnsupportedProbe
}
