// Command verify_ocr runs the OCR pipeline over a folder of relic screenshots
// and compares each reading with expected.json.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"reliclog/pkg/logging"
	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
	"reliclog/pkg/verify"
)

const (
	exitError    = 1
	exitMismatch = 3
)

func main() {
	dir := flag.String("dir", "testdata/ocr-images", "folder with the screenshots")
	expected := flag.String("expected", "", "expected results JSON (default <dir>/expected.json)")
	vocab := flag.String("vocab", "", "vocabulary YAML (default: built-in)")
	lang := flag.String("lang", "eng", "tesseract language")
	passes := flag.Int("passes", 2, "sharpen passes before recognition")
	timeout := flag.Duration("timeout", 30*time.Second, "per-image recognition timeout (0 disables)")
	retries := flag.Int("retries", 1, "extra attempts when the recognizer fails")
	strict := flag.Bool("strict", false, "exit with status 3 when any sample mismatches")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	if err := logging.Init(*level, true); err != nil {
		log.Error().Err(err).Msg("bad log level")
		os.Exit(exitError)
	}
	if *expected == "" {
		*expected = filepath.Join(*dir, "expected.json")
	}

	v, err := refdata.LoadVocabulary(*vocab)
	if err != nil {
		log.Error().Err(err).Msg("load vocabulary")
		os.Exit(exitError)
	}
	samples, err := verify.LoadExpected(*expected)
	if err != nil {
		log.Error().Err(err).Msg("load expected results")
		os.Exit(exitError)
	}
	p, err := ocr.NewPipeline(ocr.NewTesseractRecognizer(), v, ocr.Options{
		Language:      *lang,
		SharpenPasses: *passes,
		Timeout:       *timeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("build pipeline")
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	d := &verify.Driver{Pipeline: p, ImageDir: *dir, Samples: samples, Retries: *retries, RetryDelay: time.Second}
	rep, err := d.Run(ctx)
	log.Info().Int("samples", len(samples)).Int("checked", len(rep.Results)).Int("passed", rep.Passed()).Int("failed", rep.Failed()).Msg("verification finished")
	if err != nil {
		log.Error().Err(err).Msg("verification aborted")
		stop()
		os.Exit(exitError)
	}
	if *strict && !rep.OK() {
		stop()
		os.Exit(exitMismatch)
	}
}
