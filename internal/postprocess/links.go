// Package postprocess turns generated replies into safe, navigable text.
package postprocess

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stupiduntilnot/pharmassist/internal/domain"
)

var (
	markdownLink  = regexp.MustCompile(`\[([^\[\]]+)\]\(([^()\s]+)\)`)
	bareURL       = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	labelBrackets = strings.NewReplacer("[", "(", "]", ")")
)

// LinkLabel turns square brackets in s into parentheses so s can be used as
// a markdown link label.
func LinkLabel(s string) string {
	return labelBrackets.Replace(s)
}

// Segment is a piece of a reply: plain text, or a link when URL is set.
type Segment struct {
	Text string
	URL  string
}

func (s Segment) IsLink() bool { return s.URL != "" }

// ExtractLinks splits text into plain and link segments, in order. Joining
// the Text of every segment yields the visible text.
func ExtractLinks(text string) []Segment {
	var out []Segment
	last := 0
	for _, m := range markdownLink.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > last {
			out = append(out, Segment{Text: text[last:m[0]]})
		}
		out = append(out, Segment{Text: text[m[2]:m[3]], URL: text[m[4]:m[5]]})
		last = m[1]
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}

// VisibleText is the text a reader sees once links are rendered.
func VisibleText(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

type linkTarget struct {
	name    string
	url     string
	bounded bool
}

// AutoLink wraps mentions of known product names in markdown links to their
// product pages. Matching is case-insensitive and longest name first, so
// "Paracetamol Extra" wins over "Paracetamol". Names that start and end with
// a letter or digit only match on word boundaries. Text already inside a
// markdown link or a bare URL is left alone.
func AutoLink(text string, products []domain.ProductSummary) string {
	targets := linkTargets(products)
	if len(targets) == 0 || text == "" {
		return text
	}

	protected := protectedSpans(text)
	var b strings.Builder
	i := 0
	for i < len(text) {
		if len(protected) > 0 && i >= protected[0][0] {
			end := protected[0][1]
			b.WriteString(text[i:end])
			i = end
			protected = protected[1:]
			continue
		}
		if t, n := matchAt(text, i, targets, protected); n > 0 {
			b.WriteString("[")
			b.WriteString(LinkLabel(text[i : i+n]))
			b.WriteString("](")
			b.WriteString(t.url)
			b.WriteString(")")
			i += n
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		b.WriteString(text[i : i+size])
		i += size
	}
	return b.String()
}

// protectedSpans returns the sorted, non-overlapping byte ranges of markdown
// links and bare URLs in text.
func protectedSpans(text string) [][]int {
	spans := append(markdownLink.FindAllStringIndex(text, -1), bareURL.FindAllStringIndex(text, -1)...)
	slices.SortFunc(spans, func(a, b []int) int { return a[0] - b[0] })
	var merged [][]int
	for _, sp := range spans {
		if n := len(merged); n > 0 && sp[0] < merged[n-1][1] {
			merged[n-1][1] = max(merged[n-1][1], sp[1])
			continue
		}
		merged = append(merged, []int{sp[0], sp[1]})
	}
	return merged
}

func linkTargets(products []domain.ProductSummary) []linkTarget {
	seen := make(map[string]bool, len(products))
	var targets []linkTarget
	for _, p := range products {
		name := strings.TrimSpace(p.Name)
		key := strings.ToLower(name)
		if name == "" || p.URL == "" || seen[key] {
			continue
		}
		seen[key] = true
		first, _ := utf8.DecodeRuneInString(name)
		last, _ := utf8.DecodeLastRuneInString(name)
		targets = append(targets, linkTarget{
			name:    name,
			url:     p.URL,
			bounded: isAlnum(first) && isAlnum(last),
		})
	}
	slices.SortStableFunc(targets, func(a, b linkTarget) int {
		return len(b.name) - len(a.name)
	})
	return targets
}

// matchAt returns the longest target matching at byte offset i, and its
// length in bytes. A match may not run into a protected link span.
func matchAt(text string, i int, targets []linkTarget, protected [][]int) (linkTarget, int) {
	for _, t := range targets {
		n := len(t.name)
		if i+n > len(text) || !strings.EqualFold(text[i:i+n], t.name) {
			continue
		}
		if len(protected) > 0 && i+n > protected[0][0] {
			continue
		}
		if t.bounded && !atBoundary(text, i, i+n) {
			continue
		}
		return t, n
	}
	return linkTarget{}, 0
}

func atBoundary(text string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:start])
		if isAlnum(r) {
			return false
		}
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isAlnum(r) {
			return false
		}
	}
	return true
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
