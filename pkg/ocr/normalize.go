package ocr

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// noiseReplacer drops glyphs Tesseract tends to hallucinate around the relic panel icons.
var noiseReplacer = strings.NewReplacer(
	"%", "", "#", "", "&", "", "»", "", "@", "", "®", "", "£", "",
)

var multiNewlineRE = regexp.MustCompile(`\n{2,}`)

// minLineRunes is the length a cleaned line must exceed to be kept.
const minLineRunes = 2

// Normalize removes OCR noise characters and short/blank lines, returning one
// trimmed line per recognized text row joined with "\n".
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(raw string) string {
	t := noiseReplacer.Replace(raw)
	t = strings.ReplaceAll(t, "\r\n", "\n")
	t = multiNewlineRE.ReplaceAllString(t, "\n")
	lines := strings.Split(t, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if utf8.RuneCountInString(l) <= minLineRunes {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}

// snippet returns a shortened version of text for logging.
func snippet(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "…"
}
