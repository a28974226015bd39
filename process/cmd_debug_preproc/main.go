// Command cmd_debug_preproc writes the sharpened image the recognizer would
// see, and optionally runs the recognizer on it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/ocr"
)

func main() {
	out := flag.String("out", "", "output PNG (default <input>.sharpened.png next to the input)")
	passes := flag.Int("passes", -1, "sharpen passes (default from config)")
	runOCR := flag.Bool("ocr", false, "also recognize the sharpened image and print the reading")
	cfgPath := flag.String("config", "", "config file")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cmd_debug_preproc [flags] <screenshot>")
		os.Exit(2)
	}
	in := flag.Arg(0)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.LogLevel, true); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	n := cfg.OCR.SharpenPasses
	if *passes >= 0 {
		n = *passes
	}

	img, err := ocr.LoadImage(in)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	proc := ocr.SharpenN(img, n)
	dst := *out
	if dst == "" {
		dst = strings.TrimSuffix(in, filepath.Ext(in)) + ".sharpened.png"
	}
	if err := imaging.Save(proc, dst); err != nil {
		log.Fatal().Err(err).Msg("save")
	}
	fmt.Printf("wrote %s (%dx%d, %d passes)\n", dst, proc.Bounds().Dx(), proc.Bounds().Dy(), n)

	if !*runOCR {
		return
	}
	opts := cfg.OCROptions()
	opts.SharpenPasses = 0
	base, err := cfg.NewPipeline()
	if err != nil {
		log.Fatal().Err(err).Msg("ocr pipeline init failed")
	}
	p, err := ocr.NewPipeline(ocr.NewTesseractRecognizer(), base.Vocabulary(), opts)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
	scan, err := p.Scan(context.Background(), dst)
	if err != nil {
		log.Fatal().Err(err).Msg("ocr")
	}
	fmt.Printf("text=%q\n", scan.CleanText)
	if m := scan.Reading.Main; m != nil && m.Value != nil {
		fmt.Printf("main %s=%g\n", m.Name, *m.Value)
	}
	for _, s := range scan.Reading.Subs {
		v := "?"
		if s.Value != nil {
			v = fmt.Sprintf("%g", *s.Value)
		}
		fmt.Printf("sub  %s=%s\n", s.Name, v)
	}
}
