// Package pattern compiles wildcard byte signatures ("48 8B 0D ?? ?? ?? ??")
// into immutable token sequences and matches them against byte slices.
package pattern

import (
	"fmt"
	"strings"
)

// Token is one position of a pattern: an exact byte or a wildcard.
type Token struct {
	Value    byte
	Wildcard bool
}

// Exact returns a token matching only b.
func Exact(b byte) Token {
	return Token{Value: b}
}

// Any returns a wildcard token.
func Any() Token {
	return Token{Wildcard: true}
}

// Matches reports whether b satisfies the token.
func (t Token) Matches(b byte) bool {
	return t.Wildcard || t.Value == b
}

func (t Token) String() string {
	if t.Wildcard {
		return "??"
	}
	return fmt.Sprintf("%02X", t.Value)
}

// Pattern is a compiled, non-empty token sequence. The zero value is empty
// and matches nothing; build patterns with Compile or New.
type Pattern struct {
	tokens []Token
}

// New builds a pattern from tokens. It fails on an empty sequence.
func New(tokens ...Token) (Pattern, error) {
	if len(tokens) == 0 {
		return Pattern{}, &CompileError{Index: -1, Reason: "empty pattern"}
	}
	return Pattern{tokens: append([]Token(nil), tokens...)}, nil
}

// Len is the number of tokens.
func (p Pattern) Len() int {
	return len(p.tokens)
}

// Tokens returns a copy of the token sequence.
func (p Pattern) Tokens() []Token {
	return append([]Token(nil), p.tokens...)
}

// At returns the token at index i.
func (p Pattern) At(i int) Token {
	return p.tokens[i]
}

// Equal reports whether both patterns have the same tokens in the same order.
func (p Pattern) Equal(other Pattern) bool {
	if len(p.tokens) != len(other.tokens) {
		return false
	}
	for i := range p.tokens {
		if p.tokens[i] != other.tokens[i] {
			return false
		}
	}
	return true
}

// MatchAt reports whether the pattern matches data starting at offset.
// Positions without Len bytes of data after them never match.
func (p Pattern) MatchAt(data []byte, offset int) bool {
	if len(p.tokens) == 0 || offset < 0 || offset > len(data)-len(p.tokens) {
		return false
	}
	for i, t := range p.tokens {
		if !t.Wildcard && data[offset+i] != t.Value {
			return false
		}
	}
	return true
}

// Index returns the first offset in data where the pattern matches, or -1.
func (p Pattern) Index(data []byte) int {
	return p.IndexFrom(data, 0)
}

// IndexFrom is Index starting the search at from.
func (p Pattern) IndexFrom(data []byte, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i <= len(data)-len(p.tokens); i++ {
		if p.MatchAt(data, i) {
			return i
		}
	}
	return -1
}

// Mask returns the value/mask pair of the AOB form: mask is 0xFF for exact
// bytes and 0x00 for wildcards.
func (p Pattern) Mask() (values, mask []byte) {
	values = make([]byte, len(p.tokens))
	mask = make([]byte, len(p.tokens))
	for i, t := range p.tokens {
		if !t.Wildcard {
			values[i] = t.Value
			mask[i] = 0xFF
		}
	}
	return values, mask
}

// String renders the canonical text form, which compiles back to an equal pattern.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, t := range p.tokens {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.String())
	}
	return sb.String()
}
