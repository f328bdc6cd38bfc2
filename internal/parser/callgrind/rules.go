package callgrind

import (
	"bytes"
	"math"
	"math/bits"
)

// TokenRule recognizes one token class at a position of the current line.
// Rules are checked in priority order, most specific first.
type TokenRule interface {
	// Anchored rules only apply when nothing but whitespace precedes pos
	// on the current line.
	Anchored() bool
	// Match returns the token found at src[pos:] and the number of bytes
	// it consumed.
	Match(src []byte, pos int) (tok Token, n int, ok bool)
}

// DefaultRules returns the rule set used for callgrind dumps.
func DefaultRules() []TokenRule {
	return []TokenRule{
		commentRule{},
		keywordRule{},
		hexRule{},
		decimalRule{},
		subPositionRule{},
		nameRule{},
	}
}

type commentRule struct{}

func (commentRule) Anchored() bool { return true }

func (commentRule) Match(src []byte, pos int) (Token, int, bool) {
	if src[pos] != '#' {
		return Token{}, 0, false
	}
	return Token{Kind: kindSkip}, len(src) - pos, true
}

type keywordRule struct{}

func (keywordRule) Anchored() bool { return true }

func (keywordRule) Match(src []byte, pos int) (Token, int, bool) {
	rest := src[pos:]
	for _, kw := range keywords {
		if bytes.HasPrefix(rest, []byte(kw.literal)) {
			return Token{Kind: KindKeyword, Text: kw.name}, len(kw.literal), true
		}
	}
	return Token{}, 0, false
}

type hexRule struct{}

func (hexRule) Anchored() bool { return false }

func (hexRule) Match(src []byte, pos int) (Token, int, bool) {
	if pos+2 >= len(src) || src[pos] != '0' || (src[pos+1] != 'x' && src[pos+1] != 'X') || !isHexDigit(src[pos+2]) {
		return Token{}, 0, false
	}
	end := pos + 2
	for end < len(src) && isHexDigit(src[end]) {
		end++
	}
	value, overflow := parseUint(src[pos+2:end], 16)
	return Token{Kind: KindHex, Text: string(src[pos:end]), Value: value, Overflow: overflow}, end - pos, true
}

type decimalRule struct{}

func (decimalRule) Anchored() bool { return false }

func (decimalRule) Match(src []byte, pos int) (Token, int, bool) {
	end := pos
	for end < len(src) && isDigit(src[end]) {
		end++
	}
	if end == pos {
		return Token{}, 0, false
	}
	value, overflow := parseUint(src[pos:end], 10)
	return Token{Kind: KindDecimal, Text: string(src[pos:end]), Value: value, Overflow: overflow}, end - pos, true
}

// subPositionRule matches the relative forms "+N", "-N" and "*".
type subPositionRule struct{}

func (subPositionRule) Anchored() bool { return false }

func (subPositionRule) Match(src []byte, pos int) (Token, int, bool) {
	switch src[pos] {
	case '*':
		return Token{Kind: KindSubPosition, Text: "*", Sign: '*'}, 1, true
	case '+', '-':
		if pos+1 >= len(src) {
			return Token{}, 0, false
		}
		var num Token
		var n int
		var ok bool
		if num, n, ok = (hexRule{}).Match(src, pos+1); !ok {
			num, n, ok = (decimalRule{}).Match(src, pos+1)
		}
		if !ok {
			return Token{}, 0, false
		}
		return Token{
			Kind:     KindSubPosition,
			Text:     string(src[pos : pos+1+n]),
			Value:    num.Value,
			Sign:     src[pos],
			Overflow: num.Overflow,
		}, n + 1, true
	}
	return Token{}, 0, false
}

type nameRule struct{}

func (nameRule) Anchored() bool { return false }

func (nameRule) Match(src []byte, pos int) (Token, int, bool) {
	if !isAlpha(src[pos]) {
		return Token{}, 0, false
	}
	end := pos + 1
	for end < len(src) && (isAlpha(src[end]) || isDigit(src[end])) {
		end++
	}
	return Token{Kind: KindName, Text: string(src[pos:end])}, end - pos, true
}

// matchPositionMarker matches "(id)" with optional inner spaces.
func matchPositionMarker(src []byte, pos int) (Token, int, bool) {
	if pos >= len(src) || src[pos] != '(' {
		return Token{}, 0, false
	}
	i := skipSpace(src, pos+1)
	if i >= len(src) {
		return Token{}, 0, false
	}
	num, n, ok := (hexRule{}).Match(src, i)
	if !ok {
		num, n, ok = (decimalRule{}).Match(src, i)
	}
	if !ok {
		return Token{}, 0, false
	}
	i = skipSpace(src, i+n)
	if i >= len(src) || src[i] != ')' {
		return Token{}, 0, false
	}
	return Token{
		Kind:     KindPositionMarker,
		Text:     string(src[pos : i+1]),
		Value:    num.Value,
		Overflow: num.Overflow,
	}, i + 1 - pos, true
}

// parseUint decodes digits in base 10 or 16, clamping to MaxUint64.
func parseUint(digits []byte, base uint64) (uint64, bool) {
	var value uint64
	for _, c := range digits {
		hi, lo := bits.Mul64(value, base)
		if hi != 0 {
			return math.MaxUint64, true
		}
		sum, carry := bits.Add64(lo, uint64(digitValue(c)), 0)
		if carry != 0 {
			return math.MaxUint64, true
		}
		value = sum
	}
	return value, false
}

func digitValue(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func skipSpace(src []byte, pos int) int {
	for pos < len(src) && isSpace(src[pos]) {
		pos++
	}
	return pos
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' }

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
