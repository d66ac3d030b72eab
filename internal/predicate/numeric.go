package predicate

import (
	"github.com/standardbeagle/bfind/internal/config"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

func evalIntCmp(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.IntCmpPayload)

	var actual int64
	switch p.Field {
	case expr.FieldDepth:
		actual = int64(rec.Depth)
	default:
		info, err := statOf(ctx, rec, types.NoFollow)
		if err != nil {
			return false, types.ContinueWalk, err
		}
		switch p.Field {
		case expr.FieldSize:
			// Round the raw byte count up to the operand's unit before
			// comparing: a 10-byte file is one 1 KiB unit, so `-size 1k`
			// matches it.
			unit := p.SizeUnit.Bytes()
			actual = (info.Size + unit - 1) / unit
		case expr.FieldLinks:
			actual = int64(info.Nlink)
		case expr.FieldInode:
			actual = int64(info.Ino)
		case expr.FieldUID:
			actual = int64(info.UID)
		case expr.FieldGID:
			actual = int64(info.GID)
		case expr.FieldATime:
			actual = (ctx.StartTime.Unix() - info.ATimeUnix) / secondsPerUnit(p.TimeUnit)
		case expr.FieldMTime:
			actual = (ctx.StartTime.Unix() - info.MTimeUnix) / secondsPerUnit(p.TimeUnit)
		case expr.FieldCTime:
			actual = (ctx.StartTime.Unix() - info.CTimeUnix) / secondsPerUnit(p.TimeUnit)
		case expr.FieldUsedSince:
			actual = (info.CTimeUnix - info.ATimeUnix) / 86400
		}
	}
	return expr.Cmp(p.Op, actual, p.Value), types.ContinueWalk, nil
}

func secondsPerUnit(u expr.TimeUnit) int64 {
	switch u {
	case expr.UnitMinutes:
		return 60
	case expr.UnitSeconds:
		return 1
	default:
		return 86400
	}
}

func evalModeCmp(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.ModeCmpPayload)
	info, err := statOf(ctx, rec, types.NoFollow)
	if err != nil {
		return false, types.ContinueWalk, err
	}
	perm := info.Mode & 07777
	switch p.Flavor {
	case expr.ModeAll:
		return perm&p.Mode == p.Mode, types.ContinueWalk, nil
	case expr.ModeAny:
		if p.Mode == 0 {
			return true, types.ContinueWalk, nil
		}
		return perm&p.Mode != 0, types.ContinueWalk, nil
	default:
		return perm == p.Mode, types.ContinueWalk, nil
	}
}

func evalTypeTest(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.TypeTestPayload)
	mode := types.NoFollow
	if p.FollowLinks {
		mode = types.Follow
	}
	info, err := statOf(ctx, rec, mode)
	if err != nil {
		return false, types.ContinueWalk, err
	}
	return info.Type.Mask()&uint16(p.Mask) != 0, types.ContinueWalk, nil
}

func evalAccess(ctx *config.Context, n *expr.Node, rec *types.FileRecord) (bool, types.Control, error) {
	p := n.Payload.(*expr.AccessPayload)
	info, err := statOf(ctx, rec, types.Follow)
	if err != nil {
		return false, types.ContinueWalk, err
	}

	var classShift uint32 // 6 for owner, 3 for group, 0 for other
	switch {
	case info.UID == currentUID():
		classShift = 6
	case info.GID == currentGID():
		classShift = 3
	default:
		classShift = 0
	}

	var bit uint32
	switch p.Mode {
	case expr.AccessRead:
		bit = 4
	case expr.AccessWrite:
		bit = 2
	default:
		bit = 1
	}
	return info.Mode&(bit<<classShift) != 0, types.ContinueWalk, nil
}
