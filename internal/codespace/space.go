// Package codespace enumerates the finite universe of candidate codes.
//
// Codes are fixed-width base36 strings. The sequence is lazy, finite,
// and fully deterministic: re-iterating from the start always yields the
// same codes in the same order, which is what makes resume correctness
// possible without a saved cursor.
package codespace

import (
	"fmt"
	"strings"
)

// Alphabet is the base36 code alphabet, in enumeration order.
const Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Class describes one contiguous run of fixed-width codes, bounded
// inclusively by First and Last, with an optional skip list for
// placeholder codes the target site never allocates.
type Class struct {
	Width int
	First string
	Last  string
	Skip  []string
}

// ShortCodes is the 3-digit class: every base36 triple except the "000"
// placeholder.
func ShortCodes() Class {
	return Class{Width: 3, First: "000", Last: "zzz", Skip: []string{"000"}}
}

// LongCodes is the 4-digit class, the contiguous range 1000..3zzz.
func LongCodes() Class {
	return Class{Width: 4, First: "1000", Last: "3zzz"}
}

// Space is a lazy, restartable iterator over a set of classes, shorter
// widths first in the order given. The zero value is exhausted.
type Space struct {
	classes []Class
	skip    map[string]struct{}
	idx     int
	cur     uint64
	end     uint64
	active  bool
}

// New builds a Space over the given classes. Class bounds must be valid
// codes of the class width with First <= Last.
func New(classes ...Class) (*Space, error) {
	skip := make(map[string]struct{})
	for _, c := range classes {
		lo, err := Decode(c.First)
		if err != nil {
			return nil, fmt.Errorf("class width %d: first bound: %w", c.Width, err)
		}
		hi, err := Decode(c.Last)
		if err != nil {
			return nil, fmt.Errorf("class width %d: last bound: %w", c.Width, err)
		}
		if len(c.First) != c.Width || len(c.Last) != c.Width {
			return nil, fmt.Errorf("class width %d: bounds %q..%q do not match width", c.Width, c.First, c.Last)
		}
		if lo > hi {
			return nil, fmt.Errorf("class width %d: first bound %q after last %q", c.Width, c.First, c.Last)
		}
		for _, s := range c.Skip {
			skip[s] = struct{}{}
		}
	}
	return &Space{classes: classes, skip: skip}, nil
}

// Next returns the next code in the sequence, or false once exhausted.
func (s *Space) Next() (string, bool) {
	for {
		if !s.active {
			if s.idx >= len(s.classes) {
				return "", false
			}
			c := s.classes[s.idx]
			s.cur, _ = Decode(c.First)
			s.end, _ = Decode(c.Last)
			s.active = true
		}
		c := s.classes[s.idx]
		if s.cur > s.end {
			s.active = false
			s.idx++
			continue
		}
		code := Encode(s.cur, c.Width)
		s.cur++
		if _, skipped := s.skip[code]; skipped {
			continue
		}
		return code, true
	}
}

// Size returns the total number of codes the space will yield.
func (s *Space) Size() uint64 {
	var total uint64
	for _, c := range s.classes {
		lo, _ := Decode(c.First)
		hi, _ := Decode(c.Last)
		total += hi - lo + 1
		total -= uint64(len(c.Skip))
	}
	return total
}

// Encode renders n as a fixed-width base36 code.
func Encode(n uint64, width int) string {
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = Alphabet[n%36]
		n /= 36
	}
	return string(buf)
}

// Decode parses a base36 code back to its numeric position.
func Decode(code string) (uint64, error) {
	if code == "" {
		return 0, fmt.Errorf("empty code")
	}
	var n uint64
	for _, r := range code {
		d := strings.IndexRune(Alphabet, r)
		if d < 0 {
			return 0, fmt.Errorf("code %q contains %q outside the base36 alphabet", code, r)
		}
		n = n*36 + uint64(d)
	}
	return n, nil
}
