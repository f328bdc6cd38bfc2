package callgrind

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"unicode/utf8"
)

const defaultReaderSize = 64 * 1024

// Scanner turns a callgrind dump into tokens, one at a time. Only the
// current line is held in memory.
type Scanner struct {
	reader *bufio.Reader
	rules  []TokenRule

	line        []byte
	pos         int
	terminated  bool // current line ended with '\n'
	loaded      bool
	lineNo      int
	atLineStart bool
	mode        scanMode

	eof bool
	err error
}

// NewScanner creates a scanner with the default rule set.
func NewScanner(r io.Reader) *Scanner {
	return NewScannerWithRules(r, DefaultRules())
}

// NewScannerWithRules creates a scanner with a custom rule priority list.
func NewScannerWithRules(r io.Reader, rules []TokenRule) *Scanner {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, defaultReaderSize)
	}
	return &Scanner{reader: br, rules: rules}
}

// Line returns the number of the line being scanned (1-based).
func (s *Scanner) Line() int { return s.lineNo }

// Err returns the first read error other than io.EOF.
func (s *Scanner) Err() error { return s.err }

// Next returns the next token. After the input is exhausted it keeps
// returning an EOF token.
func (s *Scanner) Next() Token {
	for {
		if !s.loaded {
			if !s.loadLine() {
				return Token{Kind: KindEOF, Line: s.lineNo}
			}
		}

		s.pos = skipSpace(s.line, s.pos)
		if s.pos >= len(s.line) {
			s.loaded = false
			if s.terminated {
				return Token{Kind: KindNewline, Line: s.lineNo}
			}
			continue
		}

		tok, ok := s.scanModal()
		if !ok {
			tok = s.scanRules()
		}
		if tok.Kind == kindSkip {
			continue
		}
		tok.Line = s.lineNo
		return tok
	}
}

// scanModal handles the line remainder after keywords that take free text.
func (s *Scanner) scanModal() (Token, bool) {
	switch s.mode {
	case modePosition:
		s.mode = modeRest
		if tok, n, ok := matchPositionMarker(s.line, s.pos); ok {
			s.pos += n
			return tok, true
		}
		return s.scanModal()
	case modeRest:
		s.mode = modeGeneric
		text := bytes.TrimRight(s.line[s.pos:], " \t\r")
		s.pos = len(s.line)
		return Token{Kind: KindRest, Text: string(text)}, true
	}
	return Token{}, false
}

func (s *Scanner) scanRules() Token {
	for _, rule := range s.rules {
		if rule.Anchored() && !s.atLineStart {
			continue
		}
		tok, n, ok := rule.Match(s.line, s.pos)
		if !ok {
			continue
		}
		s.pos += n
		s.atLineStart = false
		if tok.Kind == KindKeyword {
			if kw, found := lookupKeyword(tok.Text); found {
				s.mode = kw.mode
			}
		}
		return tok
	}

	// Unrecognized character: report it and resume after it.
	r, size := utf8.DecodeRune(s.line[s.pos:])
	text := string(r)
	if r == utf8.RuneError {
		text = string(s.line[s.pos : s.pos+size])
	}
	s.pos += size
	s.atLineStart = false
	return Token{Kind: KindError, Text: text}
}

func (s *Scanner) loadLine() bool {
	if s.eof {
		return false
	}
	data, err := s.reader.ReadBytes('\n')
	if err != nil {
		s.eof = true
		if !errors.Is(err, io.EOF) {
			s.err = err
		}
		if len(data) == 0 {
			return false
		}
	}

	s.terminated = len(data) > 0 && data[len(data)-1] == '\n'
	if s.terminated {
		data = data[:len(data)-1]
	}
	s.line = data
	s.pos = 0
	s.lineNo++
	s.loaded = true
	s.atLineStart = true
	s.mode = modeGeneric
	return true
}
