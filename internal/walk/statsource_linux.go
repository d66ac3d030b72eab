//go:build linux

package walk

import (
	"os"
	"syscall"

	"github.com/standardbeagle/bfind/internal/types"
)

// fillSysInfo copies the fields os.FileInfo's portable surface doesn't
// expose — device, inode, link count, ownership, atime/ctime, allocated
// blocks — out of the raw Stat_t. Field names here (Atim/Ctim) are the
// Linux spellings; other platforms get their own build-tagged variant.
func fillSysInfo(info *types.StatInfo, fi os.FileInfo) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return
	}
	info.Dev = uint64(st.Dev)
	info.Ino = uint64(st.Ino)
	info.Nlink = uint64(st.Nlink)
	info.UID = st.Uid
	info.GID = st.Gid
	info.ATimeUnix = st.Atim.Sec
	info.CTimeUnix = st.Ctim.Sec
	info.BlockSize512 = st.Blocks
}
