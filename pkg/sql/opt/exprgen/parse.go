// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package exprgen

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
	"unicode"

	"github.com/cockroachdb/errors"
)

// node is an element of a parsed s-expression: either an atom or a
// parenthesized list.
type node struct {
	pos scanner.Position

	// list is non-nil for a parenthesized list.
	list []*node
	// tok is the scanner token of an atom: Ident, Int, Float or String.
	tok  rune
	text string
}

func (n *node) isList() bool { return n.list != nil }

func (n *node) isIdent() bool { return n.list == nil && n.tok == scanner.Ident }

func (n *node) String() string {
	if !n.isList() {
		return n.text
	}
	var sb strings.Builder
	sb.WriteByte('(')
	for i, c := range n.list {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// head returns the identifier at the start of a list, or "".
func (n *node) head() string {
	if !n.isList() || len(n.list) == 0 || !n.list[0].isIdent() {
		return ""
	}
	return n.list[0].text
}

// parser is an LL(1) parser over text/scanner tokens.
type parser struct {
	src     scanner.Scanner
	la      rune
	lavalid bool
	err     error
}

// isIdentRune accepts names such as inner-join, a.x and count-rows. A leading
// sign is allowed so that orderings (+a.x, -a.y) and negative numbers scan as
// single tokens.
func isIdentRune(ch rune, i int) bool {
	switch {
	case ch == '_' || unicode.IsLetter(ch):
		return true
	case i == 0:
		return ch == '+' || ch == '-'
	default:
		return unicode.IsDigit(ch) || ch == '-' || ch == '.'
	}
}

// parse reads exactly one s-expression from the input.
func parse(input string) (*node, error) {
	var p parser
	p.src.Init(strings.NewReader(input))
	p.src.Filename = "input"
	p.src.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats |
		scanner.ScanStrings | scanner.ScanComments | scanner.SkipComments
	p.src.IsIdentRune = isIdentRune
	p.src.Error = func(s *scanner.Scanner, msg string) {
		p.errorf(s.Position, "%s", msg)
	}

	n := p.value()
	if p.err == nil && p.peek() != scanner.EOF {
		p.errorf(p.src.Position, "unexpected %q after expression", p.src.TokenText())
	}
	if p.err != nil {
		return nil, p.err
	}
	return n, nil
}

func (p *parser) errorf(pos scanner.Position, format string, args ...interface{}) {
	if p.err == nil {
		p.err = errors.Newf("%s: %s", pos, fmt.Sprintf(format, args...))
	}
}

func (p *parser) peek() rune {
	if !p.lavalid {
		p.la = p.src.Scan()
		p.lavalid = true
	}
	return p.la
}

func (p *parser) next() rune {
	r := p.peek()
	p.lavalid = false
	return r
}

func (p *parser) value() *node {
	r := p.next()
	pos := p.src.Position
	switch r {
	case '(':
		list := make([]*node, 0, 4)
		for p.err == nil {
			switch p.peek() {
			case ')':
				p.next()
				return &node{pos: pos, list: list}
			case scanner.EOF:
				p.errorf(pos, "unterminated list")
				return nil
			}
			list = append(list, p.value())
		}
		return nil

	case scanner.Ident, scanner.Int, scanner.Float:
		return &node{pos: pos, tok: r, text: p.src.TokenText()}

	case scanner.String:
		s, err := strconv.Unquote(p.src.TokenText())
		if err != nil {
			p.errorf(pos, "invalid string %s", p.src.TokenText())
			return nil
		}
		return &node{pos: pos, tok: r, text: s}

	case scanner.EOF:
		p.errorf(pos, "unexpected end of input")
		return nil

	default:
		p.errorf(pos, "unexpected %s", scanner.TokenString(r))
		return nil
	}
}
