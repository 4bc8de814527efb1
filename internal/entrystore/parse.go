package entrystore

import (
	"strconv"
	"strings"
	"time"
)

// Accepted race date layouts, tried in order
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006年1月2日",
	time.RFC3339,
}

// ParseRank parses a finishing position. Scratches, DNFs ("中止", "除外",
// "取消", "DNF") and anything non-numeric are missing. Demotion marks
// such as "3(降)" keep the leading number.
func ParseRank(raw string) *int {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "(（"); i > 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

// ParseDistance parses a distance in metres such as "1600", "1600m" or
// "芝1600". Returns 0 when missing.
func ParseDistance(raw string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// ParseDate parses a race date. Returns the zero time when missing.
func ParseDate(raw string) time.Time {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseElapsed parses a race time into seconds. Both "1:34.5" and "94.5"
// are accepted. Returns nil when missing.
func ParseElapsed(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	minutes := 0.0
	if i := strings.Index(s, ":"); i >= 0 {
		m, err := strconv.Atoi(s[:i])
		if err != nil || m < 0 {
			return nil
		}
		minutes = float64(m)
		s = s[i+1:]
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil || sec < 0 || (minutes > 0 && sec >= 60) {
		return nil
	}
	total := minutes*60 + sec
	if total <= 0 {
		return nil
	}
	return &total
}

// ParseFloat parses an optional decimal value. Returns nil when missing.
func ParseFloat(raw string) *float64 {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "+"))
	if s == "" || s == "-" || s == "--" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseInt parses an optional integer. Returns 0 when missing.
func ParseInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseBodyWeight parses a body weight such as "480(+4)" and returns the
// weight before the bracketed change.
func ParseBodyWeight(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "(（"); i >= 0 {
		s = s[:i]
	}
	return ParseFloat(s)
}

var marginWords = map[string]float64{
	"同着":   0,
	"ハナ":   0.05,
	"nose": 0.05,
	"アタマ":  0.1,
	"head": 0.1,
	"クビ":   0.25,
	"neck": 0.25,
	"大":    10,
	"dist": 10,
}

// ParseMargin parses a winning margin in lengths. Accepts numeric values,
// fractions ("3/4"), mixed fractions ("1.1/2") and the usual margin words.
func ParseMargin(raw string) *float64 {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	if v, ok := marginWords[s]; ok {
		return &v
	}
	whole := 0.0
	if i := strings.Index(s, "."); i >= 0 && strings.Contains(s[i+1:], "/") {
		w, err := strconv.Atoi(s[:i])
		if err != nil {
			return nil
		}
		whole = float64(w)
		s = s[i+1:]
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, errN := strconv.Atoi(num)
		d, errD := strconv.Atoi(den)
		if errN != nil || errD != nil || d == 0 {
			return nil
		}
		v := whole + float64(n)/float64(d)
		return &v
	}
	return ParseFloat(s)
}
