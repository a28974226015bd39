package ocr

import (
	"iter"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var (
	digitRE      = regexp.MustCompile(`\d`)
	mainStatRE   = regexp.MustCompile(`([A-Za-z\s%]+)\s+([-+]?\d+(?:\.\d+)?)`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// subValuePattern follows a sub-stat label; a trailing percent sign is tolerated.
const subValuePattern = `\s+([-+]?\d+(?:\.\d+)?)%?`

// subPatterns caches the compiled "<term> <number>" pattern per term.
var subPatterns sync.Map

func subPattern(term string) *regexp.Regexp {
	if re, ok := subPatterns.Load(term); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := subPatterns.LoadOrStore(term, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(term)+subValuePattern))
	return re.(*regexp.Regexp)
}

// MainLine returns the first line of normalized text that contains a digit.
func MainLine(text string) (string, bool) {
	for _, l := range strings.Split(text, "\n") {
		if digitRE.MatchString(l) {
			return l, true
		}
	}
	return "", false
}

// ExtractMain parses the main stat from the first digit-bearing line.
// It returns nil when no line has a digit or the line does not look like "<name> <number>".
func ExtractMain(text string) *ParsedStat {
	line, ok := MainLine(text)
	if !ok {
		return nil
	}
	return parseMainLine(line)
}

func parseMainLine(line string) *ParsedStat {
	m := mainStatRE.FindStringSubmatch(line)
	if len(m) < 3 {
		return nil
	}
	v, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil
	}
	return &ParsedStat{Name: strings.TrimSpace(m[1]), Value: &v}
}

// withoutMainLine removes the main-stat line (if any) from text.
func withoutMainLine(text string) string {
	line, ok := MainLine(text)
	if !ok {
		return text
	}
	return strings.TrimSpace(strings.Replace(text, line, "", 1))
}

// SubResult is the outcome of one ExtractSub step.
type SubResult struct {
	Stat      ParsedStat
	Found     bool
	Remaining string
}

// ExtractSub finds the earliest vocabulary term in text and the number that
// follows it. Ties on position go to the longer term, then to the earlier term
// in terms. When the term has no number after it the value is nil and the text
// is returned unchanged.
func ExtractSub(text string, terms []string) SubResult {
	text = whitespaceRE.ReplaceAllString(text, " ")
	best, bestIdx := "", -1
	for _, t := range terms {
		if t == "" {
			continue
		}
		idx := strings.Index(text, t)
		if idx == -1 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(t) > len(best)) {
			best, bestIdx = t, idx
		}
	}
	if bestIdx == -1 {
		return SubResult{Remaining: text}
	}

	loc := subPattern(best).FindStringSubmatchIndex(text[bestIdx:])
	if loc == nil {
		return SubResult{Stat: ParsedStat{Name: best}, Found: true, Remaining: text}
	}
	v, err := strconv.ParseFloat(text[bestIdx+loc[2]:bestIdx+loc[3]], 64)
	if err != nil {
		return SubResult{Stat: ParsedStat{Name: best}, Found: true, Remaining: text}
	}
	start, end := bestIdx+loc[0], bestIdx+loc[1]
	rest := strings.TrimSpace(text[:start] + text[end:])
	return SubResult{Stat: ParsedStat{Name: best, Value: &v}, Found: true, Remaining: rest}
}

// SubStats lazily yields up to MaxSubStats sub-stats from text, stopping at the
// first step that finds no term. text is never modified.
func SubStats(text string, terms []string) iter.Seq[ParsedStat] {
	return func(yield func(ParsedStat) bool) {
		rest := text
		for i := 0; i < MaxSubStats; i++ {
			res := ExtractSub(rest, terms)
			if !res.Found {
				return
			}
			if !yield(res.Stat) {
				return
			}
			rest = res.Remaining
		}
	}
}

// ParseReading extracts the main stat and sub-stats from normalized text.
func ParseReading(text string, terms []string) Reading {
	r := Reading{Main: ExtractMain(text), Subs: []ParsedStat{}}
	for s := range SubStats(withoutMainLine(text), terms) {
		r.Subs = append(r.Subs, s)
	}
	return r
}
