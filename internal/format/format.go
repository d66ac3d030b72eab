// Package format implements the printf-style directive grammar: a
// fixed alphabet of `%`-verbs interleaved with literal
// text and backslash escapes, compiled once at parse time and rendered
// once per matched file.
package format

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/standardbeagle/bfind/internal/types"
	"github.com/standardbeagle/bfind/pkg/pathutil"
)

// Program is a compiled -printf/-fprintf directive string: an ordered
// list of literal runs and verb directives.
type Program struct {
	steps []step
}

type step struct {
	literal   string // non-empty for a literal-text step
	verb      byte   // 0 for a literal-only step
	width     int    // 0 means unpadded
	precision int    // -1 means none; otherwise a maximum rendered length
	zeroPad   bool
	leftJust  bool
}

// CallsStat reports whether rendering this program needs stat metadata
// at all (the optimizer's annotation pass uses this to set calls_stat on
// the owning Print node).
func (p *Program) CallsStat() bool {
	for _, s := range p.steps {
		if statVerbs[s.verb] {
			return true
		}
	}
	return false
}

var statVerbs = map[byte]bool{
	's': true, 'i': true, 'n': true, 'u': true, 'g': true,
	'm': true, 'M': true, 'y': true, 'D': true, 'b': true, 'k': true,
	'A': true, 'T': true, 'C': true,
}

// Compile parses a -printf format string into a Program. Recognized
// verbs: p (path), P (path with the starting-point prefix stripped), f
// (basename), h (leading directories), d (depth), s (size in bytes), i
// (inode), n (link count), u/g (numeric uid/gid), m (octal permission
// bits), M (ls -l style mode string), y (type letter), D (device id),
// b/k (allocated 512-byte/1KiB blocks), l (symlink target), and
// A@/T@/C@ (access/modify/change time as a Unix timestamp). Unknown
// verbs are a parse-time error, surfaced by the caller as a parse-kind
// SearchError.
func Compile(spec string) (*Program, error) {
	p := &Program{}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			p.steps = append(p.steps, step{literal: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(spec)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) {
				lit.WriteRune('\\')
				continue
			}
			i++
			lit.WriteByte(unescape(byte(runes[i])))
		case '%':
			if i+1 >= len(runes) {
				return nil, fmt.Errorf("format: dangling %% at end of directive")
			}
			flush()
			i++
			var zeroPad, leftJust, numericFlag bool
		flagLoop:
			for i < len(runes) {
				switch runes[i] {
				case '0':
					zeroPad, numericFlag = true, true
				case '-':
					leftJust = true
				case '#', '+', ' ':
					numericFlag = true
				default:
					break flagLoop
				}
				i++
			}
			width := 0
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				width = width*10 + int(runes[i]-'0')
				i++
			}
			precision := -1
			if i < len(runes) && runes[i] == '.' {
				i++
				precision = 0
				for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
					precision = precision*10 + int(runes[i]-'0')
					i++
				}
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("format: dangling %% directive at end of string")
			}
			verb := byte(runes[i])
			if verb == '%' {
				lit.WriteByte('%')
				continue
			}
			if verb == 'A' || verb == 'T' || verb == 'C' {
				if i+1 >= len(runes) || runes[i+1] != '@' {
					return nil, fmt.Errorf("format: %%%c must be followed by @ (only epoch-seconds time output is supported)", verb)
				}
				i++
			}
			if !knownVerbs[verb] {
				return nil, fmt.Errorf("format: unknown directive %%%c", verb)
			}
			if numericFlag && !numericVerbs[verb] {
				return nil, fmt.Errorf("format: numeric flag on non-numeric directive %%%c", verb)
			}
			p.steps = append(p.steps, step{verb: verb, width: width, precision: precision, zeroPad: zeroPad, leftJust: leftJust})
		default:
			lit.WriteRune(runes[i])
		}
	}
	flush()
	return p, nil
}

var knownVerbs = map[byte]bool{
	'p': true, 'P': true, 'f': true, 'h': true, 'd': true,
	's': true, 'i': true, 'n': true, 'u': true, 'g': true,
	'm': true, 'M': true, 'y': true, 'D': true,
	'b': true, 'k': true, 'l': true,
	'A': true, 'T': true, 'C': true,
}

// numericVerbs gates the "numeric flags require a numeric directive"
// constraint: `%08s` is fine, `%0p` is a parse error.
var numericVerbs = map[byte]bool{
	'd': true, 's': true, 'i': true, 'n': true, 'u': true, 'g': true,
	'm': true, 'D': true, 'b': true, 'k': true,
	'A': true, 'T': true, 'C': true,
}

func unescape(b byte) byte {
	switch b {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case '\\':
		return '\\'
	default:
		return b
	}
}

// Render produces the formatted line for rec, querying stat metadata in
// the given mode only if the program actually needs it.
func (p *Program) Render(rec *types.FileRecord, mode types.StatMode) (string, error) {
	var out strings.Builder
	var info types.StatInfo
	var statErr error
	haveStat := false

	ensureStat := func() (types.StatInfo, error) {
		if !haveStat {
			if rec.Src != nil {
				info, statErr = rec.Stat.Get(mode, rec.Src)
			} else {
				statErr = fmt.Errorf("format: no stat source for %s", rec.Path)
			}
			haveStat = true
		}
		return info, statErr
	}

	for _, s := range p.steps {
		if s.verb == 0 {
			out.WriteString(s.literal)
			continue
		}
		val, err := renderVerb(s.verb, rec, ensureStat)
		if err != nil {
			return "", err
		}
		if s.precision >= 0 && len(val) > s.precision {
			val = val[:s.precision]
		}
		out.WriteString(pad(val, s.width, s.zeroPad, s.leftJust))
	}
	return out.String(), nil
}

func pad(s string, width int, zero, left bool) string {
	if width == 0 || len(s) >= width {
		return s
	}
	if left {
		return s + strings.Repeat(" ", width-len(s))
	}
	fill := " "
	if zero {
		fill = "0"
	}
	return strings.Repeat(fill, width-len(s)) + s
}

func renderVerb(verb byte, rec *types.FileRecord, stat func() (types.StatInfo, error)) (string, error) {
	switch verb {
	case 'p':
		return rec.Path, nil
	case 'P':
		return pathutil.ToRelative(rec.Path, rec.Root), nil
	case 'f':
		return rec.Name(), nil
	case 'h':
		if rec.NameOffset == 0 {
			return ".", nil
		}
		dir := rec.Path[:rec.NameOffset]
		return strings.TrimSuffix(dir, string(os.PathSeparator)), nil
	case 'd':
		return strconv.Itoa(rec.Depth), nil
	case 's':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(info.Size, 10), nil
	case 'i':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(info.Ino, 10), nil
	case 'n':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(info.Nlink, 10), nil
	case 'u':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(info.UID), 10), nil
	case 'g':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(info.GID), 10), nil
	case 'm':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(uint64(info.Mode&07777), 8), nil
	case 'M':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return symbolicMode(info), nil
	case 'y':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return typeLetter(info.Type), nil
	case 'D':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(info.Dev, 10), nil
	case 'b':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(info.BlockSize512, 10), nil
	case 'k':
		info, err := stat()
		if err != nil {
			return "", err
		}
		return strconv.FormatInt((info.BlockSize512+1)/2, 10), nil
	case 'l':
		// Symlink target; empty for anything that isn't a link, same as
		// find(1)'s %l.
		target, err := os.Readlink(rec.Path)
		if err != nil {
			return "", nil
		}
		return target, nil
	case 'A', 'T', 'C':
		info, err := stat()
		if err != nil {
			return "", err
		}
		var sec int64
		switch verb {
		case 'A':
			sec = info.ATimeUnix
		case 'T':
			sec = info.MTimeUnix
		case 'C':
			sec = info.CTimeUnix
		}
		return strconv.FormatInt(time.Unix(sec, 0).Unix(), 10), nil
	default:
		return "", fmt.Errorf("format: unhandled directive %%%c", verb)
	}
}

func typeLetter(t types.FileType) string {
	switch t {
	case types.Dir:
		return "d"
	case types.Symlink:
		return "l"
	case types.Regular:
		return "f"
	case types.BlockDev:
		return "b"
	case types.CharDev:
		return "c"
	case types.FIFO:
		return "p"
	case types.Socket:
		return "s"
	case types.Door:
		return "D"
	default:
		return "U"
	}
}

func symbolicMode(info types.StatInfo) string {
	const rwx = "rwxrwxrwx"
	var b strings.Builder
	b.WriteString(typeLetter(info.Type))
	for i := 0; i < 9; i++ {
		bit := uint32(1) << uint(8-i)
		if info.Mode&bit != 0 {
			b.WriteByte(rwx[i])
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}
