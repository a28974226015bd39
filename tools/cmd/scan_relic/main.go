package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"reliclog/pkg/config"
	"reliclog/pkg/logging"
	"reliclog/pkg/ocr"
)

type output struct {
	File      string       `json:"file"`
	Scan      ocr.Scan     `json:"scan"`
	Piece     any          `json:"piece,omitempty"`
	Slot      string       `json:"slot,omitempty"`
	Validated *ocr.Reading `json:"validated,omitempty"`
	Problems  []string     `json:"problems,omitempty"`
}

// scan_relic prints what the server would extract from each screenshot.
func main() {
	slot := flag.String("slot", "", "slot to validate against when no piece is recognized")
	flag.Parse()
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = logging.Init(cfg.LogLevel, true)

	p, err := cfg.NewPipeline()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	lookup, err := cfg.NewLookup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	failed := false
	for _, path := range flag.Args() {
		scan, err := p.Scan(context.Background(), path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		out := output{File: path, Scan: scan, Slot: *slot}
		if rec, ok := lookup.Identify(scan.CleanText); ok {
			out.Piece, out.Slot = rec, rec.Slot
		}
		valid, err := p.Vocabulary().Validate(scan.Reading, out.Slot)
		if ve, ok := err.(*ocr.ValidationError); ok {
			out.Problems = ve.Problems
		} else {
			out.Validated = &valid
		}
		b, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(b))
	}
	if failed {
		os.Exit(1)
	}
}
