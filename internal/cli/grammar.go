package cli

import "github.com/standardbeagle/bfind/internal/expr"

// This file implements the expression grammar in find(1)'s own
// precedence order
// (loosest to tightest): comma, or, and (explicit "-a"/"-and" or bare
// juxtaposition), not, primary (parenthesized group or atom).

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos], true
}

func (p *parser) peekOr(def string) string {
	if tok, ok := p.peek(); ok {
		return tok
	}
	return def
}

func (p *parser) at(tok string) bool {
	got, ok := p.peek()
	return ok && got == tok
}

func (p *parser) advance() string {
	tok := p.toks[p.pos]
	p.pos++
	return tok
}

// parseExpr is the grammar's entry point: a comma-separated list.
func (p *parser) parseExpr() (*expr.Node, error) {
	return p.parseComma()
}

func (p *parser) parseComma() (*expr.Node, error) {
	first, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.at(",") {
		return first, nil
	}
	n := p.arena.New(expr.Comma, nil)
	n.Append(first)
	for p.at(",") {
		p.advance()
		child, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		n.Append(child)
	}
	return n, nil
}

func (p *parser) parseOr() (*expr.Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if !p.atOr() {
		return first, nil
	}
	n := p.arena.New(expr.Or, nil)
	n.Append(first)
	for p.atOr() {
		p.advance()
		child, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		n.Append(child)
	}
	return n, nil
}

func (p *parser) atOr() bool {
	tok, ok := p.peek()
	return ok && (tok == "-o" || tok == "-or")
}

func (p *parser) atAnd() bool {
	tok, ok := p.peek()
	return ok && (tok == "-a" || tok == "-and")
}

// parseAnd handles both explicit "-a"/"-and" and find(1)'s implicit
// juxtaposition: two adjacent primaries with no connective between them
// are an AND, exactly as if "-a" had been written.
func (p *parser) parseAnd() (*expr.Node, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if !p.startsOperand() {
		return first, nil
	}
	n := p.arena.New(expr.And, nil)
	n.Append(first)
	for p.startsOperand() {
		if p.atAnd() {
			p.advance()
		}
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		n.Append(child)
	}
	return n, nil
}

// startsOperand reports whether the next token could begin another
// and-level operand: either an explicit "-a"/"-and", or any token that
// isn't a closer/connective the caller above is waiting for (",", ")",
// "-o"/"-or", end of input).
func (p *parser) startsOperand() bool {
	tok, ok := p.peek()
	if !ok {
		return false
	}
	switch tok {
	case ",", ")", "-o", "-or":
		return false
	}
	return true
}

func (p *parser) parseNot() (*expr.Node, error) {
	negate := false
	for {
		tok, ok := p.peek()
		if !ok || (tok != "!" && tok != "-not") {
			break
		}
		p.advance()
		negate = !negate
	}
	child, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !negate {
		return child, nil
	}
	n := p.arena.New(expr.Not, nil)
	n.Append(child)
	return n, nil
}

func (p *parser) parsePrimary() (*expr.Node, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, p.errf("expected an expression, got end of input")
	}
	if tok == "(" {
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.at(")") {
			return nil, p.errf("expected ')'")
		}
		p.advance()
		return inner, nil
	}
	return p.parseAtom()
}
