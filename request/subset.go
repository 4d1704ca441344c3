package request

import (
	"strconv"
	"strings"

	"github.com/nvidia-uda/uda/wire"
)

// MaxRank bounds subset.rank (spec.md §4.3 "Subset grammar").
const MaxRank = 8

// stripSubset detaches a trailing `[...]` or `{...}` subset expression from
// signal and returns the remaining signal plus the raw expression (without
// brackets), or ok=false if none is present.
func stripSubset(signal string) (rest, expr string, ok bool) {
	signal = strings.TrimSpace(signal)
	if signal == "" {
		return signal, "", false
	}
	last := signal[len(signal)-1]
	var open, close byte
	switch last {
	case ']':
		open, close = '[', ']'
	case '}':
		open, close = '{', '}'
	default:
		return signal, "", false
	}
	depth := 0
	for i := len(signal) - 1; i >= 0; i-- {
		switch signal[i] {
		case close:
			depth++
		case open:
			depth--
			if depth == 0 {
				return signal[:i], signal[i+1 : len(signal)-1], true
			}
		}
	}
	return signal, "", false
}

// parseSubset parses the comma-separated per-dimension grammar of spec.md
// §4.3: `*`/empty, `a`, `a:b`, `a:` / `a:*`, `a:b:c`.
func parseSubset(expr string) (wire.DataSubset, error) {
	parts := splitTopLevel(expr, ',')
	if len(parts) > MaxRank {
		return wire.DataSubset{}, fails(BadSubset, "rank %d exceeds MAX_RANK %d", len(parts), MaxRank)
	}
	s := wire.DataSubset{
		Rank:       len(parts),
		Start:      make([]int64, len(parts)),
		Stop:       make([]int64, len(parts)),
		Count:      make([]int64, len(parts)),
		Stride:     make([]int64, len(parts)),
		SubsetFlag: make([]bool, len(parts)),
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		start, stop, stride, flag, err := parseSubsetDim(p)
		if err != nil {
			return wire.DataSubset{}, err
		}
		s.Start[i], s.Stop[i], s.Stride[i], s.SubsetFlag[i] = start, stop, stride, flag
		if stop >= 0 {
			count := (stop - start + 1 + stride - 1) / stride
			if count < 0 {
				count = 0
			}
			s.Count[i] = count
		} else {
			s.Count[i] = -1
		}
	}
	return s, nil
}

func parseSubsetDim(p string) (start, stop, stride int64, flag bool, err error) {
	if p == "" || p == "*" {
		return 0, -1, 1, false, nil
	}
	fields := strings.Split(p, ":")
	switch len(fields) {
	case 1:
		v, e := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if e != nil || v < 0 {
			return 0, 0, 0, false, fails(BadSubset, "invalid index %q", p)
		}
		return v, v, 1, true, nil
	case 2:
		a, e1 := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if e1 != nil || a < 0 {
			return 0, 0, 0, false, fails(BadSubset, "invalid start %q", p)
		}
		rest := strings.TrimSpace(fields[1])
		if rest == "" || rest == "*" {
			return a, -1, 1, true, nil
		}
		b, e2 := strconv.ParseInt(rest, 10, 64)
		if e2 != nil || b < a {
			return 0, 0, 0, false, fails(BadSubset, "invalid range %q", p)
		}
		return a, b, 1, true, nil
	case 3:
		a, e1 := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if e1 != nil || a < 0 {
			return 0, 0, 0, false, fails(BadSubset, "invalid start %q", p)
		}
		bStr := strings.TrimSpace(fields[1])
		c, e3 := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
		if e3 != nil || c < 1 {
			return 0, 0, 0, false, fails(BadSubset, "invalid stride %q", p)
		}
		if bStr == "" || bStr == "*" {
			return a, -1, c, true, nil
		}
		b, e2 := strconv.ParseInt(bStr, 10, 64)
		if e2 != nil || b < a {
			return 0, 0, 0, false, fails(BadSubset, "invalid range %q", p)
		}
		return a, b, c, true, nil
	default:
		return 0, 0, 0, false, fails(BadSubset, "too many ':' fields in %q", p)
	}
}

// splitTopLevel splits s on sep, ignoring occurrences nested inside
// brackets/parens/quotes (used by both subset and name-value parsing).
func splitTopLevel(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	var (
		out   []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == sep && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
