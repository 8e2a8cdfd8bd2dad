package pattern

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrCompile is matched by every *CompileError.
var ErrCompile = errors.New("malformed pattern")

// CompileError describes the first malformed token. Index is -1 when the
// pattern as a whole is at fault (empty input).
type CompileError struct {
	Index  int
	Token  string
	Reason string
}

func (e *CompileError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("compile pattern: %s", e.Reason)
	}
	return fmt.Sprintf("compile pattern: token %d %q: %s", e.Index, e.Token, e.Reason)
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

// Compile parses whitespace (or comma) separated tokens. Each token is two
// hex digits or a wildcard, written "?" or "??".
func Compile(text string) (Pattern, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	if len(fields) == 0 {
		return Pattern{}, &CompileError{Index: -1, Reason: "empty pattern"}
	}

	tokens := make([]Token, 0, len(fields))
	for i, field := range fields {
		if field == "?" || field == "??" {
			tokens = append(tokens, Any())
			continue
		}

		if len(field) != 2 {
			return Pattern{}, &CompileError{Index: i, Token: field, Reason: "want two hex digits or a wildcard"}
		}

		val, err := strconv.ParseUint(field, 16, 8)
		if err != nil {
			return Pattern{}, &CompileError{Index: i, Token: field, Reason: "not a hex byte"}
		}
		tokens = append(tokens, Exact(byte(val)))
	}

	return Pattern{tokens: tokens}, nil
}

// MustCompile is Compile that panics, for package-level pattern tables.
func MustCompile(text string) Pattern {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}
