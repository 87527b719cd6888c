package search

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abiiranathan/pdfmatch/alg"
)

// ScanState tracks how far a Scanner has progressed through a document.
type ScanState int

const (
	// No page seen so far has matched.
	StateNoMatch ScanState = iota

	// The first match has been recorded. Later pages only add to the hit count.
	StateFirstRecorded
)

func (s ScanState) String() string {
	switch s {
	case StateNoMatch:
		return "no-match"
	case StateFirstRecorded:
		return "first-recorded"
	default:
		return fmt.Sprintf("ScanState(%d)", int(s))
	}
}

// Scanner consumes page texts in order, counting every match and
// remembering the first one.
type Scanner struct {
	re     *regexp.Regexp
	before int
	after  int

	state ScanState
	total int
	first FirstMatch
}

func NewScanner(re *regexp.Regexp, before, after int) (*Scanner, error) {
	if before < 0 || after < 0 {
		return nil, fmt.Errorf("%w: before and after must be non-negative", alg.ErrInvalidParameter)
	}
	return &Scanner{re: re, before: before, after: after}, nil
}

// Feed scans the text of page pageNum. Invalid UTF-8 is dropped first.
func (s *Scanner) Feed(pageNum int, text string) error {
	text = strings.ToValidUTF8(text, "")

	hits := alg.CountMatches(text, s.re)
	s.total += hits

	if hits == 0 || s.state == StateFirstRecorded {
		return nil
	}

	m, ok := alg.FindFirstMatch(text, s.re)
	if !ok {
		return nil
	}

	c, err := alg.BuildContext(text, m, s.before, s.after)
	if err != nil {
		return err
	}

	s.first = FirstMatch{Page: pageNum, Text: c.Text, Match: m, Context: c}
	s.state = StateFirstRecorded
	return nil
}

func (s *Scanner) State() ScanState {
	return s.state
}

func (s *Scanner) Result() Result {
	res := Result{TotalHits: s.total}
	if s.state == StateFirstRecorded {
		first := s.first
		res.FirstMatch = &first
	}
	return res
}
