// Package search finds and trims query highlights for note previews.
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/notekeep/notekeep/internal/model"
)

// Defaults used by note previews.
const (
	// Ellipsis is prepended when a preview is trimmed at the start.
	Ellipsis = "…"

	// DefaultStartThreshold is how far into the text the first match may sit
	// before the preview is trimmed.
	DefaultStartThreshold = 20

	// DefaultMinContext is the minimum number of characters kept between the
	// ellipsis and the first match.
	DefaultMinContext = 10

	// Per-region match caps.
	MaxTitleMatches   = 2
	MaxContentMatches = 10
	MaxItemMatches    = 2
)

// Match is a [Start,End) highlight span in a string.
type Match struct {
	Start, End int
}

// FindMatches returns up to max case-insensitive substring matches of query
// in text, in order. An empty query matches nothing. Matches do not overlap;
// scanning resumes after each match. Spans are byte offsets into text itself,
// so case pairs whose encodings differ in length stay addressable.
func FindMatches(text, query string, max int) []Match {
	query = strings.TrimSpace(query)
	if query == "" || max <= 0 {
		return nil
	}
	var matches []Match
	for from := 0; from < len(text) && len(matches) < max; {
		if n, ok := foldPrefixLen(text[from:], query); ok {
			matches = append(matches, Match{Start: from, End: from + n})
			from += n
			continue
		}
		_, size := utf8.DecodeRuneInString(text[from:])
		from += size
	}
	return matches
}

// foldPrefixLen reports whether s starts with query under rune case folding
// and returns the byte length of that prefix in s.
func foldPrefixLen(s, query string) (int, bool) {
	n := 0
	for _, qr := range query {
		r, size := utf8.DecodeRuneInString(s[n:])
		if size == 0 || unicode.ToLower(r) != unicode.ToLower(qr) {
			return 0, false
		}
		n += size
	}
	return n, true
}

// Ellipsize trims text so the first match stays visible: when the match
// starts beyond threshold, the text is cut to minContext characters before
// it and a leading ellipsis inserted, with all match spans shifted to the
// trimmed string. Without matches, or with an early first match, the input
// is returned untouched.
func Ellipsize(text string, matches []Match, threshold, minContext int) (string, []Match) {
	if len(matches) == 0 || matches[0].Start <= threshold {
		return text, matches
	}
	cut := matches[0].Start
	for i := 0; i < minContext && cut > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:cut])
		cut -= size
	}
	if cut <= 0 {
		return text, matches
	}
	shift := cut - len(Ellipsis)
	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match{Start: m.Start - shift, End: m.End - shift}
	}
	return Ellipsis + text[cut:], out
}

// ItemPreview is the outcome of selecting list items for a bounded preview.
type ItemPreview struct {
	// Shown holds the indices of displayed items, in original order.
	Shown []int
	// Overflow is the number of items left out.
	Overflow int
	// OverflowAllChecked reports whether every left-out item is checked.
	OverflowAllChecked bool
}

// SelectPreviewItems picks which of a list note's items a bounded preview
// shows: as many highlighted items as fit, in original order, padded with
// leading non-highlighted items. Without highlights at most minCount items
// are shown, with highlights up to maxCount.
func SelectPreviewItems(items []model.ListItem, highlighted []bool, minCount, maxCount int) ItemPreview {
	if minCount < 0 {
		minCount = 0
	}
	if maxCount < minCount {
		maxCount = minCount
	}

	var hits []int
	for i := range items {
		if i < len(highlighted) && highlighted[i] {
			hits = append(hits, i)
		}
	}

	limit := minCount
	if len(hits) > 0 {
		limit = maxCount
	}
	if limit > len(items) {
		limit = len(items)
	}

	selected := make(map[int]bool, limit)
	for _, i := range hits {
		if len(selected) == limit {
			break
		}
		selected[i] = true
	}
	for i := 0; i < len(items) && len(selected) < limit; i++ {
		selected[i] = true
	}

	p := ItemPreview{Shown: make([]int, 0, len(selected)), OverflowAllChecked: true}
	for i := range items {
		if selected[i] {
			p.Shown = append(p.Shown, i)
			continue
		}
		p.Overflow++
		if !items[i].Checked {
			p.OverflowAllChecked = false
		}
	}
	if p.Overflow == 0 {
		p.OverflowAllChecked = false
	}
	return p
}
