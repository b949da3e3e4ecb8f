package req

import "unicode"

// SegmentType classifies a run of a word diff.
type SegmentType string

const (
	SegmentEqual   SegmentType = "equal"
	SegmentRemoved SegmentType = "removed"
	SegmentAdded   SegmentType = "added"
)

// Segment is a maximal run of tokens with the same diff type.
type Segment struct {
	Type SegmentType `json:"type" yaml:"type"`
	Text string      `json:"text" yaml:"text"`
}

// WordDiff computes a minimal word-level edit script from a to b.
// Whitespace runs are tokens of their own so spacing is preserved exactly.
// Concatenating equal+removed segments yields a; equal+added yields b.
// Where both sides have skipped tokens, removed runs come before added ones.
func WordDiff(a, b string) []Segment {
	at := tokenize(a)
	bt := tokenize(b)

	// lcs[i][j] is the LCS length of at[i:] and bt[j:].
	lcs := make([][]int, len(at)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(bt)+1)
	}
	for i := len(at) - 1; i >= 0; i-- {
		for j := len(bt) - 1; j >= 0; j-- {
			if at[i] == bt[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	segments := []Segment{}
	emit := func(t SegmentType, text string) {
		if n := len(segments); n > 0 && segments[n-1].Type == t {
			segments[n-1].Text += text
			return
		}
		segments = append(segments, Segment{Type: t, Text: text})
	}

	i, j := 0, 0
	for i < len(at) && j < len(bt) {
		switch {
		case at[i] == bt[j]:
			emit(SegmentEqual, at[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			emit(SegmentRemoved, at[i])
			i++
		default:
			emit(SegmentAdded, bt[j])
			j++
		}
	}
	for ; i < len(at); i++ {
		emit(SegmentRemoved, at[i])
	}
	for ; j < len(bt); j++ {
		emit(SegmentAdded, bt[j])
	}

	return segments
}

// tokenize splits s into alternating runs of whitespace and non-whitespace.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range s {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = space
		}
	}
	if start < len(s) {
		tokens = append(tokens, s[start:])
	}
	return tokens
}
