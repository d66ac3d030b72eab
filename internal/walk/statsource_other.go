//go:build !linux

package walk

import (
	"os"

	"github.com/standardbeagle/bfind/internal/types"
)

// fillSysInfo is the no-syscall fallback for platforms this module has
// no Stat_t layout for: dev/inode/ownership stay zero for every file, so
// -inum/-uid/-gid/-samefile/-unique compare against that zero rather
// than the real values, instead of failing the build. Mirrors internal/capability's stub-per-platform split.
func fillSysInfo(*types.StatInfo, os.FileInfo) {}
