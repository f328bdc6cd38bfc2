package callgrind

import "fmt"

// Kind is the lexical class of a token.
type Kind int

const (
	KindEOF Kind = iota
	KindNewline
	KindKeyword
	KindName
	KindDecimal
	KindHex
	KindSubPosition
	KindPositionMarker
	KindRest
	KindError

	// kindSkip marks input consumed without producing a token (comments).
	kindSkip
)

var kindNames = [...]string{
	KindEOF:            "EOF",
	KindNewline:        "Newline",
	KindKeyword:        "Keyword",
	KindName:           "Name",
	KindDecimal:        "Decimal",
	KindHex:            "Hex",
	KindSubPosition:    "SubPosition",
	KindPositionMarker: "PositionMarker",
	KindRest:           "Rest",
	KindError:          "Error",
	kindSkip:           "Skip",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is one lexical unit of a callgrind dump.
type Token struct {
	Kind Kind
	// Text is the keyword without its ':' or '=' suffix, the name, the
	// trimmed line remainder or the offending character.
	Text string
	// Value is the decoded number of Decimal, Hex, SubPosition and
	// PositionMarker tokens.
	Value uint64
	// Sign is '+', '-' or '*' for relative sub-positions, 0 otherwise.
	Sign byte
	// Overflow is set when a numeric literal did not fit and was clamped.
	Overflow bool
	Line     int
}

// IsNumber reports whether the token is an absolute number.
func (t Token) IsNumber() bool {
	return t.Kind == KindDecimal || t.Kind == KindHex
}

// IsPosition reports whether the token can appear as a sub-position.
func (t Token) IsPosition() bool {
	return t.IsNumber() || t.Kind == KindSubPosition
}

// String formats the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case KindDecimal, KindHex, KindPositionMarker:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Value)
	case KindSubPosition:
		if t.Sign == '*' {
			return "SubPosition(*)"
		}
		return fmt.Sprintf("SubPosition(%c%d)", t.Sign, t.Value)
	case KindNewline, KindEOF:
		return t.Kind.String()
	default:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	}
}
