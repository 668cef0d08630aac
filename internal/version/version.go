// Package version orders heterogeneous release/file name strings. Upstream
// projects mix numeric and textual fragments ("lua-5.1.10.tar.gz",
// "LuaJIT-1.1.7.zip", "beta10"), so names are tokenized into digit runs and
// literal fragments and compared element-wise, with digit runs compared
// numerically.
package version

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/luamill/luamill/internal/model"
)

// knownExtensions are archive suffixes stripped before tokenizing. They are
// independent optional strips applied repeatedly, so "x.tar.gz" loses both.
var knownExtensions = []string{".gz", ".tar", ".tgz", ".zip"}

// Token is one comparable fragment of a version string: either a number
// (a maximal decimal digit run) or a literal string.
type Token struct {
	raw     string
	num     int64
	numeric bool
}

// Numeric reports whether the token is a digit run.
func (t Token) Numeric() bool { return t.numeric }

// String returns the literal fragment the token was built from.
func (t Token) String() string { return t.raw }

// StripExtensions removes known archive suffixes from the end of s, applying
// every strip that matches in sequence.
func StripExtensions(s string) string {
	for {
		stripped := false
		for _, ext := range knownExtensions {
			if strings.HasSuffix(s, ext) {
				s = s[:len(s)-len(ext)]
				stripped = true
			}
		}
		if !stripped {
			return s
		}
	}
}

// Tokenize splits s into tokens: maximal decimal digit runs become numeric
// tokens, everything between and around them becomes literal tokens. With
// stripExts the known archive suffixes are removed first.
func Tokenize(s string, stripExts bool) []Token {
	if stripExts {
		s = StripExtensions(s)
	}

	var tokens []Token
	start := 0
	inDigits := false

	flush := func(end int) {
		if end == start {
			return
		}
		raw := s[start:end]
		if inDigits {
			// Digit runs of real-world release names fit an int64.
			n, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				tokens = append(tokens, Token{raw: raw, num: n, numeric: true})
				return
			}
		}
		tokens = append(tokens, Token{raw: raw})
	}

	for i := 0; i < len(s); i++ {
		isDigit := s[i] >= '0' && s[i] <= '9'
		if isDigit != inDigits {
			flush(i)
			start = i
			inDigits = isDigit
		}
	}
	flush(len(s))

	return tokens
}

// Compare orders two token sequences element-wise. A missing trailing element
// sorts lower than any present token. Tokens of different kinds at the same
// position fall back to comparing both as strings. Returns -1, 0 or 1.
func Compare(a, b []Token) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		switch {
		case i >= len(a):
			return -1
		case i >= len(b):
			return 1
		}

		ta, tb := a[i], b[i]
		var c int
		if ta.numeric && tb.numeric {
			switch {
			case ta.num < tb.num:
				c = -1
			case ta.num > tb.num:
				c = 1
			}
		} else {
			c = strings.Compare(ta.raw, tb.raw)
		}

		if c != 0 {
			return c
		}
	}

	return 0
}

// CompareStrings tokenizes both strings and compares them.
func CompareStrings(a, b string, stripExts bool) int {
	return Compare(Tokenize(a, stripExts), Tokenize(b, stripExts))
}

// SelectMax returns the highest candidate under the token comparator.
func SelectMax(candidates []string, stripExts bool) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no candidates to select from: %w", model.ErrEmptyInput)
	}

	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return CompareStrings(sorted[i], sorted[j], stripExts) < 0
	})

	return sorted[len(sorted)-1], nil
}
