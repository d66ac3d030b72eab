package cli

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/standardbeagle/bfind/internal/exec"
	"github.com/standardbeagle/bfind/internal/expr"
	"github.com/standardbeagle/bfind/internal/format"
	"github.com/standardbeagle/bfind/internal/types"
	"github.com/standardbeagle/bfind/internal/walk"
)

// atomFn parses one expression-atom primitive, starting at p.pos with
// p.peek() equal to the atom's own flag token; it must advance past
// that token (and every operand it consumes) before returning.
type atomFn func(p *parser) (*expr.Node, error)

// atomParsers dispatches every primitive in predicate.primitiveNames to
// its parser. Grouped to match internal/predicate's own file layout
// (numeric.go/stringmatch.go/identity.go/control.go/samefile.go/
// delete.go/execute.go/print.go/regex.go) so the two can be read side
// by side.
var atomParsers map[string]atomFn

func init() {
	atomParsers = map[string]atomFn{}
	registerStringAtoms(atomParsers)
	registerNumericAtoms(atomParsers)
	registerTypeAtoms(atomParsers)
	registerIdentityAtoms(atomParsers)
	registerTristateAtoms(atomParsers)
	registerRefFileAtoms(atomParsers)
	registerActionAtoms(atomParsers)
}

func (p *parser) parseAtom() (*expr.Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.errf("expected an expression atom, got end of input")
	}
	fn, ok := atomParsers[tok]
	if !ok {
		return nil, p.errf("unknown primary %q", tok)
	}
	start := p.pos
	n, err := fn(p)
	if err != nil {
		return nil, err
	}
	n.ArgvSpan = p.toks[start:p.pos]
	return n, nil
}

// operand consumes and returns the next token as the current atom's
// required argument.
func (p *parser) operand(atom string) (string, error) {
	if p.pos >= len(p.toks) {
		return "", p.errf("%s: expected an argument", atom)
	}
	v := p.toks[p.pos]
	p.pos++
	return v, nil
}

func registerStringAtoms(m map[string]atomFn) {
	str := func(field expr.StringField, fold bool) atomFn {
		return func(p *parser) (*expr.Node, error) {
			atom := p.advance()
			pattern, err := p.operand(atom)
			if err != nil {
				return nil, err
			}
			n := p.arena.New(expr.StringMatch, nil)
			n.Payload = &expr.StringMatchPayload{Field: field, Pattern: pattern, FoldCase: fold}
			return n, nil
		}
	}
	m["-name"] = str(expr.FieldName, false)
	m["-iname"] = str(expr.FieldName, true)
	m["-path"] = str(expr.FieldPath, false)
	m["-ipath"] = str(expr.FieldPath, true)
	m["-wholename"] = str(expr.FieldPath, false)
	m["-iwholename"] = str(expr.FieldPath, true)
	m["-lname"] = str(expr.FieldLName, false)
	m["-ilname"] = str(expr.FieldLName, true)

	regex := func(fold bool) atomFn {
		return func(p *parser) (*expr.Node, error) {
			atom := p.advance()
			source, err := p.operand(atom)
			if err != nil {
				return nil, err
			}
			n := p.arena.New(expr.Regex, nil)
			payload := &expr.RegexPayload{Source: source, Dialect: p.regexDialect, WholePath: true}
			// RE2 syntax covers the POSIX-extended dialect -E selects
			// (minus backreferences, which ERE doesn't have either), so
			// both compile here; BRE/emacs stay uncompiled and surface a
			// configuration error if ever evaluated.
			if payload.Dialect == expr.RegexDialectGo || payload.Dialect == expr.RegexDialectPOSIXExtended {
				pattern := source
				if fold {
					pattern = "(?i)" + pattern
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, p.errf("%s: %v", atom, err)
				}
				payload.Compiled = re
			}
			n.Payload = payload
			return n, nil
		}
	}
	m["-regex"] = regex(false)
	m["-iregex"] = regex(true)
}

func registerNumericAtoms(m map[string]atomFn) {
	intField := func(field expr.IntField, unit expr.TimeUnit) atomFn {
		return func(p *parser) (*expr.Node, error) {
			atom := p.advance()
			v, err := p.operand(atom)
			if err != nil {
				return nil, err
			}
			op, n, err := parseSignedInt(v)
			if err != nil {
				return nil, p.errf("%s: %v", atom, err)
			}
			node := p.arena.New(expr.IntCmp, nil)
			node.Payload = &expr.IntCmpPayload{Field: field, Op: op, Value: n, TimeUnit: unit}
			return node, nil
		}
	}
	m["-atime"] = intField(expr.FieldATime, expr.UnitDays)
	m["-mtime"] = intField(expr.FieldMTime, expr.UnitDays)
	m["-ctime"] = intField(expr.FieldCTime, expr.UnitDays)
	m["-amin"] = intField(expr.FieldATime, expr.UnitMinutes)
	m["-mmin"] = intField(expr.FieldMTime, expr.UnitMinutes)
	m["-cmin"] = intField(expr.FieldCTime, expr.UnitMinutes)
	m["-asec"] = intField(expr.FieldATime, expr.UnitSeconds)
	m["-msec"] = intField(expr.FieldMTime, expr.UnitSeconds)
	m["-csec"] = intField(expr.FieldCTime, expr.UnitSeconds)
	m["-used"] = intField(expr.FieldUsedSince, expr.UnitDays)
	m["-links"] = intField(expr.FieldLinks, expr.UnitDays)
	m["-inum"] = intField(expr.FieldInode, expr.UnitDays)

	// -depth doubles as find(1)'s post-order option (bare) and a depth
	// test (with a number). The operand is a plain integer with an
	// optional "+" for "deeper than"; a negative literal is accepted and
	// left for the optimizer to prove always-false, since no file sits
	// at a negative depth ("fewer than N deep" is -maxdepth's job).
	m["-depth"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		if tok, ok := p.peek(); ok {
			if op, v, isNum := parseDepthOperand(tok); isNum {
				p.advance()
				n := p.arena.New(expr.IntCmp, nil)
				n.Payload = &expr.IntCmpPayload{Field: expr.FieldDepth, Op: op, Value: v}
				return n, nil
			}
		}
		if p.walkCfg != nil {
			p.walkCfg.PostOrder = true
		}
		return p.arena.New(expr.True, nil), nil
	}

	m["-size"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		v, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		op, value, unit, err := parseSize(v)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		n := p.arena.New(expr.IntCmp, nil)
		n.Payload = &expr.IntCmpPayload{Field: expr.FieldSize, Op: op, Value: value, SizeUnit: unit}
		return n, nil
	}

	m["-perm"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		v, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		flavor, mode, err := parsePerm(v)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		n := p.arena.New(expr.ModeCmp, nil)
		n.Payload = &expr.ModeCmpPayload{Mode: mode, Flavor: flavor}
		return n, nil
	}
}

func registerTypeAtoms(m map[string]atomFn) {
	typ := func(followLinks bool) atomFn {
		return func(p *parser) (*expr.Node, error) {
			atom := p.advance()
			v, err := p.operand(atom)
			if err != nil {
				return nil, err
			}
			mask, err := parseTypeMask(v)
			if err != nil {
				return nil, p.errf("%v", err)
			}
			n := p.arena.New(expr.TypeTest, nil)
			n.Payload = &expr.TypeTestPayload{Mask: mask, FollowLinks: followLinks}
			return n, nil
		}
	}
	m["-type"] = typ(false)
	m["-xtype"] = typ(true)

	access := func(mode expr.AccessMode) atomFn {
		return func(p *parser) (*expr.Node, error) {
			p.advance()
			n := p.arena.New(expr.Access, nil)
			n.Payload = &expr.AccessPayload{Mode: mode}
			return n, nil
		}
	}
	m["-readable"] = access(expr.AccessRead)
	m["-writable"] = access(expr.AccessWrite)
	m["-executable"] = access(expr.AccessExecute)
}

func registerIdentityAtoms(m map[string]atomFn) {
	uidGid := func(field expr.IntField, resolve func(p *parser, name string) (int64, error)) atomFn {
		return func(p *parser) (*expr.Node, error) {
			atom := p.advance()
			v, err := p.operand(atom)
			if err != nil {
				return nil, err
			}
			var op expr.CmpOp
			var value int64
			if _, convErr := strconv.ParseInt(stripSign(v), 10, 64); convErr == nil {
				op, value, err = parseSignedInt(v)
				if err != nil {
					return nil, p.errf("%s: %v", atom, err)
				}
			} else {
				op = expr.CmpEq
				value, err = resolve(p, v)
				if err != nil {
					return nil, p.errf("%s: %v", atom, err)
				}
			}
			node := p.arena.New(expr.IntCmp, nil)
			node.Payload = &expr.IntCmpPayload{Field: field, Op: op, Value: value}
			return node, nil
		}
	}
	m["-uid"] = uidGid(expr.FieldUID, func(p *parser, name string) (int64, error) {
		uid, err := p.ctx.ResolveUID(name)
		return int64(uid), err
	})
	m["-user"] = m["-uid"]
	m["-gid"] = uidGid(expr.FieldGID, func(p *parser, name string) (int64, error) {
		gid, err := p.ctx.ResolveGID(name)
		return int64(gid), err
	})
	m["-group"] = m["-gid"]
}

// stripSign removes a leading "+"/"-" so a bare numeric uid/gid argument
// ("-uid +500", "-uid 500") can be distinguished from a username by
// attempting a numeric parse on the unsigned remainder first.
func stripSign(v string) string {
	if strings.HasPrefix(v, "+") || strings.HasPrefix(v, "-") {
		return v[1:]
	}
	return v
}

func registerTristateAtoms(m map[string]atomFn) {
	tri := func(test expr.TristateTest) atomFn {
		return func(p *parser) (*expr.Node, error) {
			p.advance()
			n := p.arena.New(expr.Tristate, nil)
			n.Payload = &expr.TristatePayload{Test: test}
			return n, nil
		}
	}
	m["-empty"] = tri(expr.TestEmpty)
	m["-hidden"] = tri(expr.TestHidden)
	m["-acl"] = tri(expr.TestACL)
	m["-capable"] = tri(expr.TestCapable)
	m["-nouser"] = tri(expr.TestNoUser)
	m["-nogroup"] = tri(expr.TestNoGroup)
	m["-sparse"] = tri(expr.TestSparse)
	m["-xattr"] = tri(expr.TestXattr)

	m["-true"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		return p.arena.New(expr.True, nil), nil
	}
	m["-false"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		return p.arena.New(expr.False, nil), nil
	}
}

func registerRefFileAtoms(m map[string]atomFn) {
	m["-samefile"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		ref, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		info, err := walk.NewStatSource(ref).Stat(types.NoFollow)
		if err != nil {
			return nil, p.errf("-samefile: %v", err)
		}
		n := p.arena.New(expr.SameFile, nil)
		n.Payload = &expr.SameFilePayload{Dev: info.Dev, Ino: info.Ino}
		return n, nil
	}

	m["-newer"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		ref, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		info, err := walk.NewStatSource(ref).Stat(types.Follow)
		if err != nil {
			return nil, p.errf("-newer: %v", err)
		}
		n := p.arena.New(expr.Newer, nil)
		n.Payload = &expr.NewerPayload{RefMTimeUnix: info.MTimeUnix}
		return n, nil
	}
}

func registerActionAtoms(m map[string]atomFn) {
	m["-print"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		n := p.arena.New(expr.Print, nil)
		n.Payload = &expr.PrintPayload{NulTerminated: p.ctx.NulDefault}
		return n, nil
	}
	m["-print0"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		n := p.arena.New(expr.Print, nil)
		n.Payload = &expr.PrintPayload{NulTerminated: true}
		return n, nil
	}
	m["-printf"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		spec, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		return p.buildPrintf(spec, "")
	}
	m["-fprint"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		file, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		n := p.arena.New(expr.Print, nil)
		n.Payload = &expr.PrintPayload{ToFile: file}
		return n, nil
	}
	m["-fprint0"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		file, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		n := p.arena.New(expr.Print, nil)
		n.Payload = &expr.PrintPayload{ToFile: file, NulTerminated: true}
		return n, nil
	}
	m["-fprintf"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		file, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		spec, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		return p.buildPrintf(spec, file)
	}
	m["-fls"] = func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		file, err := p.operand(atom)
		if err != nil {
			return nil, err
		}
		return p.buildPrintf("%M %3n %-8u %-8g %8s %p\n", file)
	}

	m["-delete"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		return p.arena.New(expr.Delete, nil), nil
	}
	m["-prune"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		return p.arena.New(expr.Prune, nil), nil
	}
	m["-quit"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		return p.arena.New(expr.Quit, nil), nil
	}
	m["-exit"] = func(p *parser) (*expr.Node, error) {
		p.advance()
		code := 0
		if tok, ok := p.peek(); ok {
			if n, err := strconv.Atoi(tok); err == nil {
				code = n
				p.advance()
			}
		}
		n := p.arena.New(expr.Exit, nil)
		n.Payload = &expr.ExitPayload{Code: code}
		return n, nil
	}

	m["-exec"] = execAtom(expr.ExecPlain)
	m["-execdir"] = execAtom(expr.ExecDir)
	m["-ok"] = execAtom(expr.ExecConfirm)
	m["-okdir"] = execAtom(expr.ExecDirConfirm)
}

// buildPrintf compiles a -printf/-fprintf/-fls directive string,
// recording a single aggregate expr.FormatDirective so the optimizer's
// annotation pass can see whether rendering needs stat data (format.
// Program.CallsStat already computes the real per-verb answer; the
// expr layer only needs the aggregate bit, not the full per-step list,
// since it never re-derives the program itself).
func (p *parser) buildPrintf(spec, toFile string) (*expr.Node, error) {
	prog, err := format.Compile(spec)
	if err != nil {
		return nil, p.errf("-printf: %v", err)
	}
	n := p.arena.New(expr.Print, nil)
	n.Payload = &expr.PrintPayload{
		ToFile:     toFile,
		Compiled:   prog,
		Directives: []expr.FormatDirective{{CallsStat: prog.CallsStat()}},
	}
	return n, nil
}

// execAtom parses -exec/-execdir/-ok/-okdir: an argv template up to a
// lone ";" (single spawn) or "+" (batch), matching find(1)'s own
// terminator grammar. -ok/-okdir never accept "+": confirmation is
// meaningless for a batch the user can't review file-by-file.
func execAtom(action expr.ExecAction) atomFn {
	batchAllowed := action == expr.ExecPlain || action == expr.ExecDir
	return func(p *parser) (*expr.Node, error) {
		atom := p.advance()
		var argv []string
		argIndex := -1
		batch := false
		for {
			tok, ok := p.peek()
			if !ok {
				return nil, p.errf("%s: missing terminating \";\" or \"+\"", atom)
			}
			if tok == ";" {
				p.advance()
				break
			}
			if tok == "+" && batchAllowed && argIndex >= 0 {
				p.advance()
				batch = true
				break
			}
			p.advance()
			if tok == "{}" && argIndex < 0 {
				argIndex = len(argv)
			}
			argv = append(argv, tok)
		}
		n := p.arena.New(expr.Execute, nil)
		n.Payload = &expr.ExecPayload{Argv: argv, Action: action, Batch: batch, ArgIndex: argIndex}

		confirm := action == expr.ExecConfirm || action == expr.ExecDirConfirm
		chdir := action == expr.ExecDir || action == expr.ExecDirConfirm
		spawner := exec.OSSpawner{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
		n.Runtime = exec.NewMachine(argv, argIndex, batch, confirm, chdir, spawner)
		return n, nil
	}
}
