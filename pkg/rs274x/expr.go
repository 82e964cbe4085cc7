package rs274x

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// evalExpr evaluates a macro arithmetic expression. Variables are $n, the
// operators are + - x / with the usual precedence, and parentheses group.
func evalExpr(s string, vars map[int]float64) (float64, error) {
	p := &exprParser{src: strings.ReplaceAll(s, " ", ""), vars: vars}
	v, err := p.sum()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("unexpected %q in expression %q", p.src[p.pos:], s)
	}
	return v, nil
}

type exprParser struct {
	src  string
	pos  int
	vars map[int]float64
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *exprParser) sum() (float64, error) {
	v, err := p.product()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			r, err := p.product()
			if err != nil {
				return 0, err
			}
			v += r
		case '-':
			p.pos++
			r, err := p.product()
			if err != nil {
				return 0, err
			}
			v -= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) product() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case 'x', 'X':
			p.pos++
			r, err := p.unary()
			if err != nil {
				return 0, err
			}
			v *= r
		case '/':
			p.pos++
			r, err := p.unary()
			if err != nil {
				return 0, err
			}
			if r == 0 {
				return 0, fmt.Errorf("division by zero in %q", p.src)
			}
			v /= r
		default:
			return v, nil
		}
	}
}

func (p *exprParser) unary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case '+':
		p.pos++
		return p.unary()
	}
	return p.atom()
}

func (p *exprParser) atom() (float64, error) {
	switch c := p.peek(); {
	case c == '(':
		p.pos++
		v, err := p.sum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing ')' in %q", p.src)
		}
		p.pos++
		return v, nil
	case c == '$':
		p.pos++
		start := p.pos
		for p.pos < len(p.src) && unicode.IsDigit(rune(p.src[p.pos])) {
			p.pos++
		}
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return 0, fmt.Errorf("bad variable in %q", p.src)
		}
		// Undefined variables are zero.
		return p.vars[n], nil
	case c == '.' || unicode.IsDigit(rune(c)):
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] == '.' || unicode.IsDigit(rune(p.src[p.pos]))) {
			p.pos++
		}
		return strconv.ParseFloat(p.src[start:p.pos], 64)
	case c == 0:
		return 0, fmt.Errorf("unexpected end of expression %q", p.src)
	default:
		return 0, fmt.Errorf("unexpected %q in expression %q", c, p.src)
	}
}
