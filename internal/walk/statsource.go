package walk

import (
	"os"

	"github.com/standardbeagle/bfind/internal/types"
)

// pathStatSource implements types.StatSource against a plain filesystem
// path, used as the File record's lazy stat backend. It
// deliberately revisits the path rather than an open directory fd:
// bfind's Dir handles are still closed and reused breadth-first, so by
// the time most predicates demand a stat the parent directory handle
// may already be gone; a path-based stat keeps the cache's "at most one
// underlying call per mode" contract without pinning every ancestor fd
// open for the life of a deep walk.
type pathStatSource struct {
	path string
}

// NewStatSource returns the types.StatSource a FileRecord attaches for
// path, honoring the follow/nofollow/try_follow stat modes.
func NewStatSource(path string) types.StatSource {
	return pathStatSource{path: path}
}

func (s pathStatSource) Stat(mode types.StatMode) (types.StatInfo, error) {
	var fi os.FileInfo
	var err error
	switch mode {
	case types.NoFollow:
		fi, err = os.Lstat(s.path)
	default:
		fi, err = os.Stat(s.path)
	}
	if err != nil {
		return types.StatInfo{}, err
	}
	return fromFileInfo(fi), nil
}

func fromFileInfo(fi os.FileInfo) types.StatInfo {
	info := types.StatInfo{
		Size:      fi.Size(),
		MTimeUnix: fi.ModTime().Unix(),
		Type:      classify(fi.Mode()),
		Mode:      uint32(fi.Mode().Perm()),
	}
	if fi.Mode()&os.ModeSetuid != 0 {
		info.Mode |= 04000
	}
	if fi.Mode()&os.ModeSetgid != 0 {
		info.Mode |= 02000
	}
	if fi.Mode()&os.ModeSticky != 0 {
		info.Mode |= 01000
	}
	fillSysInfo(&info, fi)
	return info
}

func classify(mode os.FileMode) types.FileType {
	switch {
	case mode&os.ModeSymlink != 0:
		return types.Symlink
	case mode.IsDir():
		return types.Dir
	case mode&os.ModeDevice != 0 && mode&os.ModeCharDevice != 0:
		return types.CharDev
	case mode&os.ModeDevice != 0:
		return types.BlockDev
	case mode&os.ModeNamedPipe != 0:
		return types.FIFO
	case mode&os.ModeSocket != 0:
		return types.Socket
	case mode.IsRegular():
		return types.Regular
	default:
		return types.Unknown
	}
}
