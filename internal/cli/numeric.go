package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/types"
)

// parseSignedInt splits find(1)'s "+n / n / -n" numeric-argument
// grammar into a CmpOp and a bare magnitude.
func parseSignedInt(tok string) (expr.CmpOp, int64, error) {
	op := expr.CmpEq
	rest := tok
	switch {
	case strings.HasPrefix(tok, "+"):
		op = expr.CmpGt
		rest = tok[1:]
	case strings.HasPrefix(tok, "-"):
		op = expr.CmpLt
		rest = tok[1:]
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return op, 0, fmt.Errorf("expected a number, got %q", tok)
	}
	return op, n, nil
}

// parseDepthOperand parses -depth's optional numeric operand: "+N" is
// "deeper than N", a bare (possibly negative) integer is an exact depth.
// Not-a-number means the token belongs to the next atom and bare -depth
// is the post-order option.
func parseDepthOperand(tok string) (expr.CmpOp, int64, bool) {
	op := expr.CmpEq
	rest := tok
	if strings.HasPrefix(tok, "+") {
		op = expr.CmpGt
		rest = tok[1:]
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return op, 0, false
	}
	return op, n, true
}

// sizeUnitOf maps -size's trailing unit letter to the SizeUnit the
// payload records; the evaluator derives the byte multiplier from it.
// The default (no suffix) is find(1)'s 512-byte block.
func sizeUnitOf(suffix byte) (expr.SizeUnit, bool) {
	switch suffix {
	case 'b':
		return expr.Unit512, true
	case 'c':
		return expr.UnitBytes, true
	case 'w':
		return expr.UnitWords2, true
	case 'k':
		return expr.UnitKiB, true
	case 'M':
		return expr.UnitMiB, true
	case 'G':
		return expr.UnitGiB, true
	default:
		return 0, false
	}
}

// parseSize parses -size's operand, e.g. "+10k", "100c", "-1G". The
// returned value is a count of units, not bytes: the evaluator rounds a
// file's byte size up to the unit before comparing.
func parseSize(tok string) (expr.CmpOp, int64, expr.SizeUnit, error) {
	op := expr.CmpEq
	rest := tok
	switch {
	case strings.HasPrefix(tok, "+"):
		op = expr.CmpGt
		rest = tok[1:]
	case strings.HasPrefix(tok, "-"):
		op = expr.CmpLt
		rest = tok[1:]
	}

	unit := expr.Unit512
	if len(rest) > 0 {
		if u, ok := sizeUnitOf(rest[len(rest)-1]); ok {
			unit = u
			rest = rest[:len(rest)-1]
		}
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return op, 0, 0, fmt.Errorf("-size: expected a number, got %q", tok)
	}
	return op, n, unit, nil
}

// parsePerm parses -perm's operand: an optional "-" (all-bits) or "/"
// (any-bit) flavor prefix, followed by octal permission digits.
// Symbolic mode strings ("u+w") are not supported: only the numeric
// form find(1) also accepts.
func parsePerm(tok string) (expr.ModeCmpMode, uint32, error) {
	flavor := expr.ModeExact
	rest := tok
	switch {
	case strings.HasPrefix(tok, "-"):
		flavor = expr.ModeAll
		rest = tok[1:]
	case strings.HasPrefix(tok, "/"):
		flavor = expr.ModeAny
		rest = tok[1:]
	}
	mode, err := strconv.ParseUint(rest, 8, 32)
	if err != nil {
		return flavor, 0, fmt.Errorf("-perm: expected an octal mode, got %q", tok)
	}
	return flavor, uint32(mode), nil
}

// typeLetters maps -type/-xtype's single-letter codes to the FileType
// they select, matching internal/format's typeLetter rendering so a
// round trip through -printf %y agrees with what -type accepts.
var typeLetters = map[byte]types.FileType{
	'b': types.BlockDev,
	'c': types.CharDev,
	'd': types.Dir,
	'p': types.FIFO,
	'l': types.Symlink,
	'f': types.Regular,
	's': types.Socket,
	'D': types.Door,
}

// parseTypeMask parses -type/-xtype's comma-separated letter list into
// a file-type bitmask.
func parseTypeMask(tok string) (uint32, error) {
	var mask uint32
	for _, part := range strings.Split(tok, ",") {
		if len(part) != 1 {
			return 0, fmt.Errorf("-type: expected a single letter, got %q", part)
		}
		ft, ok := typeLetters[part[0]]
		if !ok {
			return 0, fmt.Errorf("-type: unknown type letter %q", part)
		}
		mask |= uint32(ft.Mask())
	}
	return mask, nil
}
