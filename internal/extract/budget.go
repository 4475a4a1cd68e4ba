package extract

import (
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended once when a budget runs out.
const TruncationMarker = "\n\n...[TRUNCATED: extraction budget exceeded]...\n"

// Budget accumulates text up to a ceiling counted in code points. Blocks are
// consumed greedily in the order they are offered; the first block that does
// not fit is cut at the ceiling, the marker is appended and every later block
// is dropped. The result never exceeds limit plus the marker length.
type Budget struct {
	limit     int
	used      int
	exhausted bool
	sb        strings.Builder
}

func NewBudget(limit int) *Budget {
	return &Budget{limit: limit}
}

// Add offers s to the budget and reports whether it was taken in full.
func (b *Budget) Add(s string) bool {
	if b.exhausted {
		return false
	}
	n := utf8.RuneCountInString(s)
	if b.used+n <= b.limit {
		b.sb.WriteString(s)
		b.used += n
		return true
	}
	if rest := b.limit - b.used; rest > 0 {
		b.sb.WriteString(Truncate(s, rest))
		b.used += rest
	}
	b.sb.WriteString(TruncationMarker)
	b.exhausted = true
	return false
}

// Remaining is the number of code points that still fit.
func (b *Budget) Remaining() int {
	if b.exhausted {
		return 0
	}
	return b.limit - b.used
}

func (b *Budget) Exhausted() bool { return b.exhausted }

func (b *Budget) String() string { return b.sb.String() }

// Truncate returns at most n code points of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Clip truncates s and marks the cut, keeping the whole result within n code
// points when n is larger than the marker.
func Clip(s string, n int) string {
	const marker = "\n\n...[TRUNCATED]..."
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	m := utf8.RuneCountInString(marker)
	if n <= m {
		return Truncate(s, n)
	}
	return Truncate(s, n-m) + marker
}
