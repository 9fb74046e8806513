package nodeid

import (
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// nameRegex validates a segment name: an identifier as HCL would accept it.
var nameRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

// ParseError describes a malformed address.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Input, e.Reason)
}

// IsValidName reports whether name can be used as a path segment.
func IsValidName(name string) bool {
	return nameRegex.MatchString(name)
}

// Parse creates a new Address struct by parsing its canonical string representation.
func Parse(rawID string) (*Address, error) {
	if strings.TrimSpace(rawID) == "" {
		return nil, &ParseError{Input: rawID, Reason: "identifier cannot be empty"}
	}

	p := &parser{in: rawID}
	addr := &Address{}
	for {
		seg, err := p.segment()
		if err != nil {
			return nil, err
		}
		addr.Path = append(addr.Path, seg)

		if p.eof() {
			return addr, nil
		}
		if p.peek() != '.' {
			return nil, p.fail("expected '.' after segment %q", seg.Name)
		}
		p.pos++
	}
}

// MustParse is Parse for literal addresses known to be valid.
func MustParse(rawID string) *Address {
	a, err := Parse(rawID)
	if err != nil {
		panic(err)
	}
	return a
}

type parser struct {
	in  string
	pos int
}

func (p *parser) eof() bool  { return p.pos >= len(p.in) }
func (p *parser) peek() byte { return p.in[p.pos] }

func (p *parser) fail(format string, args ...any) error {
	return &ParseError{Input: p.in, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() && p.peek() == ' ' {
		p.pos++
	}
}

func (p *parser) segment() (PathSegment, error) {
	start := p.pos
	for !p.eof() && p.peek() != '.' && p.peek() != '[' {
		p.pos++
	}
	name := p.in[start:p.pos]
	if name == "" {
		return PathSegment{}, p.fail("identifier path contains empty segment")
	}
	if !IsValidName(name) {
		return PathSegment{}, p.fail("invalid segment name %q", name)
	}

	if p.eof() || p.peek() != '[' {
		return NewPathSegment(name), nil
	}
	p.pos++

	keys := []cty.Value{}
	for {
		p.skipSpace()
		if p.eof() {
			return PathSegment{}, p.fail("unterminated key in segment %q", name)
		}
		if p.peek() == ']' && len(keys) == 0 {
			return PathSegment{}, p.fail("empty key in segment %q", name)
		}
		k, err := p.literal()
		if err != nil {
			return PathSegment{}, err
		}
		keys = append(keys, k)

		p.skipSpace()
		if p.eof() {
			return PathSegment{}, p.fail("unterminated key in segment %q", name)
		}
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return NewPathSegmentWithKeys(name, keys...), nil
		default:
			return PathSegment{}, p.fail("unexpected %q in key of segment %q", p.peek(), name)
		}
	}
}

func (p *parser) literal() (cty.Value, error) {
	if p.peek() == '"' {
		return p.quoted()
	}
	start := p.pos
	for !p.eof() && !strings.ContainsRune(",] ", rune(p.peek())) {
		p.pos++
	}
	tok := p.in[start:p.pos]
	switch tok {
	case "true":
		return cty.True, nil
	case "false":
		return cty.False, nil
	}
	f, _, err := big.ParseFloat(tok, 10, 512, big.ToNearestEven)
	if err != nil || f.IsInf() {
		return cty.NilVal, p.fail("invalid key literal %q", tok)
	}
	return cty.NumberVal(f), nil
}

func (p *parser) quoted() (cty.Value, error) {
	start := p.pos
	p.pos++
	for !p.eof() {
		switch p.peek() {
		case '\\':
			p.pos += 2
			continue
		case '"':
			p.pos++
			s, err := strconv.Unquote(p.in[start:p.pos])
			if err != nil {
				return cty.NilVal, p.fail("invalid string key %s", p.in[start:p.pos])
			}
			return cty.StringVal(s), nil
		}
		p.pos++
	}
	return cty.NilVal, p.fail("unterminated string key")
}
