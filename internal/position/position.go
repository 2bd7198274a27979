// Package position parses the heterogeneous track-position labels found in
// external catalogs (vinyl sides like "A1", plain digital numbering like "12",
// disc-dash-track forms like "2-05") into a canonical representation with a
// deterministic total order.
package position

import (
	"regexp"
	"strconv"
	"strings"
)

// None marks an absent number or subnumber.
const None = -1

// Position is the canonical form of a raw track-position label.
type Position struct {
	Normalized string
	Prefix     string
	Number     int
	Sub        int
}

var (
	leadingWordRe = regexp.MustCompile(`(?i)^(side|disc|track)\s+`)
	separatorRe   = regexp.MustCompile("[-–—:]")
	dotSpacingRe  = regexp.MustCompile(`\s*\.\s*`)
	prefixedRe    = regexp.MustCompile(`^([A-Z]+)(\d+)(?:\.(\d+))?$`)
	numericRe     = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)
	letterRunRe   = regexp.MustCompile(`[A-Z]+`)
	digitRunRe    = regexp.MustCompile(`\d+`)
)

// Parse converts a raw position label into its canonical Position.
// Parsing is idempotent: Parse(Parse(x).Normalized) equals Parse(x).
func Parse(raw string) Position {
	p := Position{Number: None, Sub: None}

	s := strings.TrimSpace(raw)
	if s == "" {
		return p
	}

	s = leadingWordRe.ReplaceAllString(s, "")
	s = separatorRe.ReplaceAllString(s, ".")
	s = dotSpacingRe.ReplaceAllString(s, ".")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToUpper(s)

	if m := prefixedRe.FindStringSubmatch(s); m != nil {
		p.Prefix = m[1]
		p.Number = mustAtoi(m[2])
		if m[3] != "" {
			p.Sub = mustAtoi(m[3])
		}
		p.Normalized = format(p)
		return p
	}

	if m := numericRe.FindStringSubmatch(s); m != nil {
		p.Number = mustAtoi(m[1])
		if m[2] != "" {
			p.Sub = mustAtoi(m[2])
		}
		p.Normalized = format(p)
		return p
	}

	// Fallback: first letter run and first digit run, wherever they appear.
	p.Prefix = letterRunRe.FindString(s)
	if d := digitRunRe.FindString(s); d != "" {
		p.Number = mustAtoi(d)
	}
	switch {
	case p.Prefix != "" && p.Number != None:
		p.Normalized = p.Prefix + strconv.Itoa(p.Number)
	case p.Number != None:
		p.Normalized = strconv.Itoa(p.Number)
	default:
		p.Normalized = s
	}
	return p
}

// format renders the canonical label for a fully parsed position.
func format(p Position) string {
	s := p.Prefix + strconv.Itoa(p.Number)
	if p.Sub != None {
		s += "." + strconv.Itoa(p.Sub)
	}
	return s
}

// Compare orders two positions by (prefix, number, sub). The empty prefix
// sorts before lettered sides, so unlettered digital numbering precedes
// vinyl side labels. Absent numbers sort first. Returns -1, 0, or 1.
func Compare(a, b Position) int {
	if c := strings.Compare(a.Prefix, b.Prefix); c != 0 {
		return c
	}
	if a.Number != b.Number {
		if a.Number < b.Number {
			return -1
		}
		return 1
	}
	if a.Sub != b.Sub {
		if a.Sub < b.Sub {
			return -1
		}
		return 1
	}
	return 0
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
