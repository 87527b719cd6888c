package alg

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

// DefaultContextSize is the number of characters taken on either side
// of a match when the caller does not say otherwise.
const DefaultContextSize = 20

var (
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Match is a regex match within a text.
// Start and End are rune offsets, End is exclusive.
type Match struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Context is the window of text around a match.
type Context struct {
	Start int
	End   int
	Text  string
}

// Compile compiles pattern or returns an error wrapping ErrInvalidPattern.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// FindFirstMatch returns the leftmost match of re in text.
// The boolean is false when there is no match.
func FindFirstMatch(text string, re *regexp.Regexp) (Match, bool) {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return Match{}, false
	}

	start := utf8.RuneCountInString(text[:loc[0]])
	end := start + utf8.RuneCountInString(text[loc[0]:loc[1]])
	return Match{Start: start, End: end, Text: text[loc[0]:loc[1]]}, true
}

// CountMatches returns the number of non-overlapping matches of re in text.
func CountMatches(text string, re *regexp.Regexp) int {
	return len(re.FindAllStringIndex(text, -1))
}

// BuildContext returns the text spanning before runes ahead of the match to
// after runes past it, clamped to the bounds of text. text must be valid UTF-8.
func BuildContext(text string, m Match, before, after int) (Context, error) {
	if before < 0 || after < 0 {
		return Context{}, fmt.Errorf("%w: before and after must be non-negative, got %d and %d",
			ErrInvalidParameter, before, after)
	}
	if !utf8.ValidString(text) {
		return Context{}, fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidParameter)
	}

	runes := []rune(text)
	size := len(runes)

	start := max(0, min(m.Start-before, size))
	end := min(size, m.End+after)
	if end < start {
		end = start
	}

	return Context{Start: start, End: end, Text: string(runes[start:end])}, nil
}
