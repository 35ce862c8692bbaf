package instance

import (
	"bufio"
	"io"
	"strconv"
	"unicode"

	"github.com/kilianp07/rcpsched/core/model"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokString
	tokChar
)

type token struct {
	kind tokenKind
	text string
	line int
}

// integer returns the value of an integer token, saturated at Inf.
func (t token) integer() int {
	if t.text == "inf" {
		return model.Inf
	}
	n, err := strconv.Atoi(t.text)
	if err != nil {
		if t.text != "" && t.text[0] == '-' {
			return -model.Inf
		}
		return model.Inf
	}
	return min(max(n, -model.Inf), model.Inf)
}

// wordRune reports whether r may appear in a name.
func wordRune(r rune) bool {
	switch {
	case r >= 0x80:
		return true
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return true
	case r >= 0x40 && r <= 0x7e:
		return true
	}
	return false
}

// tokenize splits text input into integers, names and single characters.
// Comments run from '#' to the end of the line.
func tokenize(r io.Reader) ([]token, error) {
	br := bufio.NewReader(r)
	var (
		toks []token
		line = 1
	)
	word := func(prefix []rune) string {
		buf := prefix
		for {
			c, _, err := br.ReadRune()
			if err != nil {
				break
			}
			if !wordRune(c) {
				_ = br.UnreadRune()
				break
			}
			buf = append(buf, c)
		}
		return string(buf)
	}
	digits := func(prefix []rune) []rune {
		buf := prefix
		for {
			c, _, err := br.ReadRune()
			if err != nil {
				break
			}
			if c < '0' || c > '9' {
				_ = br.UnreadRune()
				break
			}
			buf = append(buf, c)
		}
		return buf
	}

	for {
		c, _, err := br.ReadRune()
		if err == io.EOF {
			return append(toks, token{kind: tokEOF, text: "EOF", line: line}), nil
		}
		if err != nil {
			return nil, err
		}
		switch {
		case c == '\n':
			line++
		case unicode.IsSpace(c):
		case c == '#':
			if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
				return nil, err
			}
			line++
		case c == '-' || c == '+':
			nc, _, err := br.ReadRune()
			if err == nil && nc >= '0' && nc <= '9' {
				toks = append(toks, token{kind: tokInt, text: string(digits([]rune{c, nc})), line: line})
				continue
			}
			if err == nil {
				_ = br.UnreadRune()
			}
			toks = append(toks, token{kind: tokChar, text: string(c), line: line})
		case c >= '0' && c <= '9':
			num := digits([]rune{c})
			if s := word(num); len(s) > len(string(num)) {
				toks = append(toks, token{kind: tokString, text: s, line: line})
			} else {
				toks = append(toks, token{kind: tokInt, text: s, line: line})
			}
		case wordRune(c):
			s := word([]rune{c})
			kind := tokString
			if s == "inf" {
				kind = tokInt
			}
			toks = append(toks, token{kind: kind, text: s, line: line})
		default:
			toks = append(toks, token{kind: tokChar, text: string(c), line: line})
		}
	}
}
