package songtext

import "strings"

// Candidate is one search result from a target provider, before scoring.
type Candidate struct {
	ID     string
	Title  string
	Artist string
}

// Scores holds the per-axis similarity of a candidate against a source
// track.
type Scores struct {
	Title  int
	Artist int
}

// Combined weighs title similarity over artist similarity.
func (s Scores) Combined() float64 {
	return 0.7*float64(s.Title) + 0.3*float64(s.Artist)
}

// Acceptable reports whether the candidate clears the match thresholds:
// a solid title with a plausible artist, or a near-exact title alone.
func (s Scores) Acceptable() bool {
	return (s.Title >= 60 && s.Artist >= 40) || s.Title >= 80
}

// titleSuffixes are provider-added tails stripped before one of the
// title comparisons.
var titleSuffixes = []string{" official video", " official audio", " music video", " mv", " lyrics"}

var artistSuffixes = []string{" official", " vevo", " records", " music"}

// ScoreCandidate computes the composite title and artist scores of a
// candidate against the source track. Each axis takes the maximum over
// several measures so that one representation mismatch (feature tags,
// platform suffixes, token order) does not sink a true match.
func ScoreCandidate(trackName, artist string, c Candidate) Scores {
	srcLower := strings.ToLower(trackName)
	candLower := strings.ToLower(c.Title)

	titleScores := []int{
		FuzzyScore(candLower, srcLower),
		FuzzyScore(Normalize(c.Title, c.Artist), Normalize(trackName, artist)),
	}
	if strings.Contains(srcLower, "(feat") || strings.Contains(srcLower, "(ft") {
		main := strings.TrimSpace(strings.SplitN(trackName, "(", 2)[0])
		titleScores = append(titleScores, FuzzyScore(candLower, strings.ToLower(main)))
	}
	stripped := candLower
	for _, suf := range titleSuffixes {
		stripped = strings.TrimSpace(strings.TrimSuffix(stripped, suf))
	}
	titleScores = append(titleScores, FuzzyScore(stripped, srcLower))
	titleScores = append(titleScores, tokenOverlap(candLower, srcLower))

	artistLower := strings.ToLower(artist)
	candArtist := strings.ToLower(c.Artist)
	artistScores := []int{FuzzyScore(candArtist, artistLower)}
	if artistLower != "" && strings.Contains(candLower, artistLower) {
		artistScores = append(artistScores, 90)
	}
	for _, word := range strings.Fields(artistLower) {
		if len(word) <= 2 {
			continue
		}
		if strings.Contains(candLower, word) {
			artistScores = append(artistScores, 85)
		}
		if strings.Contains(candArtist, word) {
			artistScores = append(artistScores, 75)
		}
	}
	cleanArtist := candArtist
	for _, suf := range artistSuffixes {
		cleanArtist = strings.TrimSpace(strings.TrimSuffix(cleanArtist, suf))
	}
	artistScores = append(artistScores, FuzzyScore(cleanArtist, artistLower))
	if strings.Contains(artistLower, ",") {
		for _, a := range strings.Split(artistLower, ",") {
			a = strings.TrimSpace(a)
			if a != "" && (strings.Contains(candArtist, a) || strings.Contains(candLower, a)) {
				artistScores = append(artistScores, 80)
			}
		}
	}

	return Scores{Title: maxOf(titleScores), Artist: maxOf(artistScores)}
}

// BestCandidate scores every candidate and returns the index of the best
// acceptable one, or -1 when no candidate clears the thresholds. Ties on
// the combined score keep the earlier candidate, which makes matching
// deterministic for a fixed candidate ordering.
func BestCandidate(trackName, artist string, cands []Candidate) (int, Scores) {
	bestIdx := -1
	var bestScores Scores
	for i, c := range cands {
		s := ScoreCandidate(trackName, artist, c)
		if !s.Acceptable() {
			continue
		}
		if bestIdx == -1 || s.Combined() > bestScores.Combined() {
			bestIdx = i
			bestScores = s
		}
	}
	return bestIdx, bestScores
}

// tokenOverlap is the shared-word proportion of the two titles, with
// parentheses treated as separators.
func tokenOverlap(a, b string) int {
	clean := func(s string) map[string]struct{} {
		s = strings.NewReplacer("(", " ", ")", " ").Replace(s)
		out := map[string]struct{}{}
		for _, w := range strings.Fields(s) {
			out[w] = struct{}{}
		}
		return out
	}
	sa, sb := clean(a), clean(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	common := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			common++
		}
	}
	longer := len(sa)
	if len(sb) > longer {
		longer = len(sb)
	}
	return common * 100 / longer
}

func maxOf(xs []int) int {
	best := 0
	for _, x := range xs {
		if x > best {
			best = x
		}
	}
	return best
}
