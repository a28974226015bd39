// Package ocr reads relic stats from in-game screenshots: it sharpens the
// screenshot, hands it to a text recognizer, cleans the recognized text and
// parses the main stat and up to four sub-stats out of it.
package ocr

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Options tune a Pipeline.
type Options struct {
	Language      string        // recognizer language, "eng" by default
	SharpenPasses int           // how many times Sharpen runs before recognition
	Timeout       time.Duration // per-image recognition timeout, 0 disables it
}

// DefaultOptions sharpen twice and recognize English text without a timeout.
func DefaultOptions() Options {
	return Options{
		Language:      "eng",
		SharpenPasses: 2,
	}
}

// Pipeline wires the preprocessing, recognition and extraction stages.
type Pipeline struct {
	recognizer Recognizer
	vocab      *Vocabulary
	opts       Options
}

// NewPipeline returns a Pipeline. Both recognizer and vocab are required.
func NewPipeline(recognizer Recognizer, vocab *Vocabulary, opts Options) (*Pipeline, error) {
	if recognizer == nil {
		return nil, errors.New("ocr: nil recognizer")
	}
	if vocab == nil {
		return nil, errors.New("ocr: nil vocabulary")
	}
	if opts.Language == "" {
		opts.Language = "eng"
	}
	if opts.SharpenPasses < 0 {
		opts.SharpenPasses = 0
	}
	return &Pipeline{recognizer: recognizer, vocab: vocab, opts: opts}, nil
}

// Vocabulary returns the vocabulary the pipeline extracts against.
func (p *Pipeline) Vocabulary() *Vocabulary { return p.vocab }

// Scan reads one screenshot from disk. Decode failures are *DecodeError and
// recognizer failures are *OracleError; an empty extraction is not an error.
func (p *Pipeline) Scan(ctx context.Context, path string) (Scan, error) {
	img, err := LoadImage(path)
	if err != nil {
		return Scan{}, err
	}
	buf, err := EncodePNG(SharpenN(img, p.opts.SharpenPasses))
	if err != nil {
		return Scan{}, &DecodeError{Path: path, Err: err}
	}
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	raw, err := p.recognizer.Recognize(ctx, buf, p.opts.Language)
	if err != nil {
		var oe *OracleError
		if !errors.As(err, &oe) {
			err = &OracleError{Engine: "recognizer", Err: err}
		}
		return Scan{}, err
	}
	s := p.ParseText(raw)
	log.Debug().Str("path", path).Str("text", snippet(s.CleanText, 180)).Int("subs", len(s.Reading.Subs)).Msg("ocr scan")
	return s, nil
}

// ParseText normalizes raw recognizer output, drops the inactive-relic marker
// and extracts the reading.
func (p *Pipeline) ParseText(raw string) Scan {
	clean := Normalize(raw)
	if m := p.vocab.InactiveMarker(); m != "" && strings.Contains(clean, m) {
		clean = strings.TrimSpace(strings.Replace(clean, m, "", 1))
	}
	return Scan{
		RawText:   raw,
		CleanText: clean,
		Reading:   ParseReading(clean, p.vocab.SearchTerms()),
	}
}
