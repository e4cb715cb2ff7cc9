// Package songtext provides the title normalization and fuzzy scoring
// primitives shared by playlist deduplication and cross-provider track
// search.
package songtext

import (
	"html"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// stopwords are dropped from titles before comparison. They carry no
// identity: platform noise ("official", "mv") and feature markers.
var stopwords = map[string]struct{}{
	"feat": {}, "featuring": {}, "official": {}, "music": {}, "video": {},
	"audio": {}, "topic": {}, "ft": {}, "mv": {}, "ver": {}, "lyrics": {},
	"live": {}, "album": {}, "cover": {},
}

// Tokenize lowercases s and splits it into word tokens (runs of letters,
// digits, and underscores).
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// Normalize cleans a title for deduplication and search queries:
// HTML-entity decode, lowercase, strip punctuation, drop stop words and
// any token that equals an artist-name token of the same track. The
// result is the space-joined remaining tokens. Normalize is idempotent.
func Normalize(title string, artists ...string) string {
	title = html.UnescapeString(title)
	drop := make(map[string]struct{}, len(stopwords))
	for w := range stopwords {
		drop[w] = struct{}{}
	}
	for _, a := range artists {
		for _, tok := range Tokenize(a) {
			drop[tok] = struct{}{}
		}
	}
	var kept []string
	for _, tok := range Tokenize(title) {
		if _, skip := drop[tok]; skip {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// Ratio is an edit-distance similarity in [0,100]: 100 means equal
// strings, 0 means nothing in common.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	d := fuzzy.LevenshteinDistance(a, b)
	r := ((la + lb - d) * 100) / (la + lb)
	if r < 0 {
		return 0
	}
	return r
}

// PartialRatio slides the shorter string over the longer one and returns
// the best Ratio of any equal-length window.
func PartialRatio(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(ra) == 0 {
		return 0
	}
	if len(ra) == len(rb) {
		return Ratio(string(ra), string(rb))
	}
	best := 0
	for i := 0; i+len(ra) <= len(rb); i++ {
		if r := Ratio(string(ra), string(rb[i:i+len(ra)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// TokenSetRatio compares the sorted unique-token intersection and
// differences of both strings, which makes it order- and
// duplication-insensitive.
func TokenSetRatio(a, b string) int {
	sa, sb := tokenSet(a), tokenSet(b)
	var inter, onlyA, onlyB []string
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range sb {
		if _, ok := sa[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(inter)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	base := strings.Join(inter, " ")
	s1 := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	s2 := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))
	best := Ratio(base, s1)
	if r := Ratio(base, s2); r > best {
		best = r
	}
	if r := Ratio(s1, s2); r > best {
		best = r
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range Tokenize(s) {
		out[t] = struct{}{}
	}
	return out
}

// FuzzyScore blends the three measures into one similarity in [0,100].
// A token-set ratio of 90 or better overrides the blend entirely.
func FuzzyScore(a, b string) int {
	ts := TokenSetRatio(a, b)
	if ts >= 90 {
		return 100
	}
	r := Ratio(a, b)
	p := PartialRatio(a, b)
	return int(0.2*float64(r) + 0.2*float64(p) + 0.6*float64(ts))
}
