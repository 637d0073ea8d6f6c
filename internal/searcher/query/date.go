package query

import (
	"regexp"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/segment"
)

var datePattern = regexp.MustCompile(`^(\d+)(?:/(\d+))?(?:/(\d+))?`)

type date struct {
	y, m, d int
}

func (a date) compare(b date) int {
	switch {
	case a.y != b.y:
		return a.y - b.y
	case a.m != b.m:
		return a.m - b.m
	}
	return a.d - b.d
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// parseDate reads Y, Y/M or Y/M/D. Years are clamped to 1970..2037. A
// malformed date is the zero date.
func parseDate(s string) date {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return date{}
	}
	var dt date
	y, _ := strconv.Atoi(m[1])
	dt.y = clamp(y, 1970, 2037)
	if m[2] != "" {
		v, _ := strconv.Atoi(m[2])
		dt.m = clamp(v, 1, 12)
	}
	if m[3] != "" {
		v, _ := strconv.Atoi(m[3])
		dt.d = clamp(v, 1, 31)
	}
	return dt
}

// DateKeys expands date expressions into the date feature keys covering them.
// An expression is a date (2024, 2024/5, 2024/5/17) or a range A-B of dates; a
// range is covered by whole days, then months, then years. Expressions that do
// not parse, and empty ranges, are ignored.
func DateKeys(exprs []string) []string {
	var keys []string
	addRange := func(a, b date) {
		switch {
		case a.d != 0 && b.d != 0:
			for d := a.d; d <= b.d; d++ {
				keys = append(keys, segment.DateKey(a.y, a.m, d))
			}
		case a.m != 0 && b.m != 0:
			for m := a.m; m <= b.m; m++ {
				keys = append(keys, segment.DateKey(a.y, m, 0))
			}
		case a.y != 0 && b.y != 0:
			for y := a.y; y <= b.y; y++ {
				keys = append(keys, segment.DateKey(y, 0, 0))
			}
		}
	}
	for _, expr := range exprs {
		from, to, isRange := cutRange(expr)
		if !isRange {
			dt := parseDate(expr)
			addRange(dt, dt)
			continue
		}
		a, b := parseDate(from), parseDate(to)
		if b.compare(a) <= 0 {
			continue
		}
		if a.y == b.y && a.m == b.m && a.d != 0 && b.d != 0 {
			addRange(a, b)
			continue
		}
		if a.d != 0 {
			addRange(a, date{a.y, a.m, 31})
			a.m++
		}
		if b.d != 0 {
			addRange(date{b.y, b.m, 1}, b)
			b.m--
		}
		if a.y == b.y && a.m != 0 && b.m != 0 {
			addRange(date{a.y, a.m, 0}, date{b.y, b.m, 0})
			continue
		}
		if a.m != 0 {
			addRange(date{a.y, a.m, 0}, date{a.y, 12, 0})
			a.y++
		}
		if b.m != 0 {
			addRange(date{b.y, 1, 0}, date{b.y, b.m, 0})
			b.y--
		}
		addRange(date{a.y, 0, 0}, date{b.y, 0, 0})
	}
	return keys
}

// cutRange splits A-B. An expression with more than one dash is neither a date
// nor a range.
func cutRange(expr string) (string, string, bool) {
	n := 0
	at := -1
	for i := range len(expr) {
		if expr[i] == '-' {
			n++
			at = i
		}
	}
	switch n {
	case 0:
		return expr, "", false
	case 1:
		return expr[:at], expr[at+1:], true
	}
	return "", "", true
}
