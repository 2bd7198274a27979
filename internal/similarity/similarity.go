package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Weights for composing an album match score. Title dominates because artist
// credit strings vary far more across catalogs (featured artists,
// romanization, "Various Artists" credits).
const (
	artistWeight = 0.3
	titleWeight  = 0.7
)

// Normalize lower-cases, strips punctuation and diacritics, and collapses
// whitespace. All similarity scoring happens on normalized strings.
func Normalize(s string) string {
	decomposed := norm.NFKD.String(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.Is(unicode.Mn, r):
			// combining mark left over from NFKD, drop it
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// EditDistance computes the Levenshtein distance between a and b with unit
// cost for insertion, deletion, and substitution. Inputs are compared as-is;
// callers normalize first.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Single-row DP
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Score returns a similarity score in [0, 1] between two strings after
// normalization. Two empty strings are identical (1); an empty string against
// a non-empty one never matches (0).
func Score(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	longest := max(len([]rune(na)), len([]rune(nb)))
	return 1 - float64(EditDistance(na, nb))/float64(longest)
}

// AlbumScore composes per-field scores into a single album match score:
// 0.3 x artist similarity + 0.7 x title similarity.
func AlbumScore(artistA, titleA, artistB, titleB string) float64 {
	return artistWeight*Score(artistA, artistB) + titleWeight*Score(titleA, titleB)
}
