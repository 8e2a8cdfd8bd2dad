package pattern

import (
	"errors"
	"math/rand"
	"testing"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []Token
	}{
		{"single byte", "90", []Token{Exact(0x90)}},
		{"mixed case", "4c 8B 05", []Token{Exact(0x4C), Exact(0x8B), Exact(0x05)}},
		{"double wildcard", "48 ?? 0D", []Token{Exact(0x48), Any(), Exact(0x0D)}},
		{"single wildcard", "A1 ? ? ? ? 8B", []Token{Exact(0xA1), Any(), Any(), Any(), Any(), Exact(0x8B)}},
		{"commas and extra space", " 00,ba  ad,??,f0 ", []Token{Exact(0x00), Exact(0xBA), Exact(0xAD), Any(), Exact(0xF0)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, err := Compile(tt.text)
			if err != nil {
				t.Fatalf("Compile(%q) error = %v", tt.text, err)
			}
			want, _ := New(tt.want...)
			if !p.Equal(want) {
				t.Errorf("Compile(%q) = %s, want %s", tt.text, p, want)
			}
			if p.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", p.Len(), len(tt.want))
			}
		})
	}
}

func TestCompile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		text  string
		index int
	}{
		{"empty", "", -1},
		{"blank", "  \t ", -1},
		{"odd length", "48 8 0D", 1},
		{"three digits", "488 0D", 0},
		{"non hex", "48 ZZ", 1},
		{"triple wildcard", "48 ???", 1},
		{"sign", "+1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Compile(tt.text)
			if !errors.Is(err, ErrCompile) {
				t.Fatalf("Compile(%q) error = %v, want ErrCompile", tt.text, err)
			}
			var compileErr *CompileError
			if !errors.As(err, &compileErr) {
				t.Fatalf("error %T is not *CompileError", err)
			}
			if compileErr.Index != tt.index {
				t.Errorf("Index = %d, want %d", compileErr.Index, tt.index)
			}
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	t.Parallel()

	const text = "48 8B 0D ?? ?? ?? ?? 48 85 C9 74 ?? 48 8B 01"
	a := MustCompile(text)
	b := MustCompile(text)
	if !a.Equal(b) {
		t.Fatalf("two compilations differ: %s vs %s", a, b)
	}

	// the canonical text round-trips
	if c := MustCompile(a.String()); !c.Equal(a) {
		t.Errorf("String() round trip: %s vs %s", c, a)
	}
	if a.String() != text {
		t.Errorf("String() = %q, want %q", a.String(), text)
	}
}

func TestTokens_ReturnsCopy(t *testing.T) {
	t.Parallel()

	p := MustCompile("AA BB")
	tokens := p.Tokens()
	tokens[0] = Any()

	if p.At(0).Wildcard {
		t.Error("mutating Tokens() result changed the pattern")
	}
}

func TestIndex_ExactLiteral(t *testing.T) {
	t.Parallel()

	data := []byte{0x00, 0x11, 0x22, 0x48, 0x8B, 0x0D, 0x33}
	p := MustCompile("48 8B 0D")

	if got := p.Index(data); got != 3 {
		t.Errorf("Index() = %d, want 3", got)
	}
	if got := p.IndexFrom(data, 4); got != -1 {
		t.Errorf("IndexFrom(4) = %d, want -1", got)
	}
}

func TestMatchAt_WildcardMiddle(t *testing.T) {
	t.Parallel()

	p := MustCompile("AA ?? BB")
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 64; i++ {
		middle := byte(rng.Intn(256))
		if !p.MatchAt([]byte{0xAA, middle, 0xBB}, 0) {
			t.Errorf("AA %02X BB did not match", middle)
		}
	}

	if p.MatchAt([]byte{0xAA, 0x00, 0xBC}, 0) {
		t.Error("AA 00 BC matched")
	}
	// fewer than Len bytes available never matches
	if p.MatchAt([]byte{0xAA, 0x00}, 0) {
		t.Error("short buffer matched")
	}
}

func TestMask(t *testing.T) {
	t.Parallel()

	values, mask := MustCompile("8B ?? 81").Mask()
	if values[0] != 0x8B || values[2] != 0x81 {
		t.Errorf("values = %x", values)
	}
	if mask[0] != 0xFF || mask[1] != 0x00 || mask[2] != 0xFF {
		t.Errorf("mask = %x", mask)
	}
}
