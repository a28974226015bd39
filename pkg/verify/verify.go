// Package verify runs the OCR pipeline over a folder of screenshots with known
// stats and reports which ones were read correctly.
package verify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"reliclog/pkg/ocr"
)

// ValueTolerance is the largest absolute difference between an extracted and
// an expected value that still counts as equal (exclusive).
const ValueTolerance = 0.01

// Sample is one screenshot and the reading it should produce.
type Sample struct {
	File     string
	Expected ocr.Reading
}

// LoadExpected reads an expected-results file keyed by image file name.
// Samples are returned sorted by file name.
func LoadExpected(path string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read expected: %w", err)
	}
	raw := map[string]ocr.Reading{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse expected %s: %w", path, err)
	}
	samples := make([]Sample, 0, len(raw))
	for file, r := range raw {
		samples = append(samples, Sample{File: file, Expected: r})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].File < samples[j].File })
	return samples, nil
}

// Result is the verdict for one sample.
type Result struct {
	File     string
	Scan     ocr.Scan
	Expected ocr.Reading
	MainOK   bool
	SubsOK   bool
	Err      error // set when the image could not be decoded
}

// Passed reports whether both the main stat and the sub-stats matched.
func (r Result) Passed() bool { return r.Err == nil && r.MainOK && r.SubsOK }

// Report collects the results of a run in sample order.
type Report struct {
	Results []Result
}

// Passed counts passing samples.
func (r Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Passed() {
			n++
		}
	}
	return n
}

// Failed counts failing samples.
func (r Report) Failed() int { return len(r.Results) - r.Passed() }

// OK reports whether every sample passed.
func (r Report) OK() bool { return r.Failed() == 0 }

// Driver verifies samples one at a time.
type Driver struct {
	Pipeline   *ocr.Pipeline
	ImageDir   string
	Samples    []Sample
	Retries    int           // extra attempts after a recognizer failure
	RetryDelay time.Duration // wait between attempts
}

// Run scans every sample in order. Images that cannot be decoded are recorded
// as failures and the run continues. A recognizer failure that persists after
// Retries extra attempts aborts the run; the partial report is returned with
// the error.
func (d *Driver) Run(ctx context.Context) (Report, error) {
	if d.Pipeline == nil {
		return Report{}, errors.New("verify: nil pipeline")
	}
	var rep Report
	for _, s := range d.Samples {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		path := filepath.Join(d.ImageDir, s.File)
		scan, err := d.scan(ctx, path)
		switch {
		case errors.Is(err, ocr.ErrDecode):
			log.Error().Err(err).Str("file", s.File).Msg("cannot decode screenshot")
			rep.Results = append(rep.Results, Result{File: s.File, Expected: s.Expected, Err: err})
			continue
		case err != nil:
			return rep, fmt.Errorf("verify %s: %w", s.File, err)
		}

		res := Compare(s.File, scan, s.Expected)
		logResult(res)
		rep.Results = append(rep.Results, res)
	}
	return rep, nil
}

func (d *Driver) scan(ctx context.Context, path string) (ocr.Scan, error) {
	var lastErr error
	for attempt := 0; attempt <= max(d.Retries, 0); attempt++ {
		if attempt > 0 {
			log.Warn().Err(lastErr).Str("path", path).Int("attempt", attempt).Msg("retrying recognition")
			if err := sleep(ctx, d.RetryDelay); err != nil {
				return ocr.Scan{}, err
			}
		}
		s, err := d.Pipeline.Scan(ctx, path)
		if err == nil || !errors.Is(err, ocr.ErrOracle) {
			return s, err
		}
		if ctx.Err() != nil {
			return ocr.Scan{}, err
		}
		lastErr = err
	}
	return ocr.Scan{}, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Compare judges a scan against the expected reading. The main stat name is
// fuzzy matched against the expected name; sub-stats must have the same count
// and match position by position.
func Compare(file string, scan ocr.Scan, want ocr.Reading) Result {
	got := scan.Reading
	res := Result{File: file, Scan: scan, Expected: want}

	switch {
	case want.Main == nil:
		res.MainOK = got.Main == nil
	case got.Main != nil:
		res.MainOK = statMatches(*got.Main, *want.Main)
	}

	res.SubsOK = len(got.Subs) == len(want.Subs)
	for i := 0; res.SubsOK && i < len(got.Subs); i++ {
		res.SubsOK = statMatches(got.Subs[i], want.Subs[i])
	}
	return res
}

func statMatches(got, want ocr.ParsedStat) bool {
	if _, ok := ocr.FuzzyMatch(got.Name, []string{want.Name}); !ok {
		return false
	}
	return valuesMatch(got.Value, want.Value)
}

func valuesMatch(got, want *float64) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	return math.Abs(*got-*want) < ValueTolerance
}

func logResult(r Result) {
	ev := log.Info()
	if !r.Passed() {
		ev = log.Warn()
	}
	ev.Str("file", r.File).
		Bool("passed", r.Passed()).
		Bool("main_ok", r.MainOK).
		Bool("subs_ok", r.SubsOK).
		Str("text", r.Scan.CleanText).
		Interface("ocr_main", r.Scan.Reading.Main).
		Interface("expected_main", r.Expected.Main).
		Interface("ocr_subs", r.Scan.Reading.Subs).
		Interface("expected_subs", r.Expected.Subs).
		Msg("verified sample")
}
