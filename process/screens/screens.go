// Package screens logs relics from a folder of screenshots: every image is
// scanned, identified against the relic lookup, validated and stored once,
// then moved out of the inbox.
package screens

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"reliclog/models"
	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
)

// Sink stores logged relics. *store.Store satisfies it.
type Sink interface {
	HasSource(ctx context.Context, userID uint, source string) (bool, error)
	CreateRelic(ctx context.Context, r *models.LoggedRelic) error
}

// Outcome is what happened to one screenshot.
type Outcome int

const (
	Logged Outcome = iota
	Duplicate
	DryRun
	Invalid
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Logged:
		return "logged"
	case Duplicate:
		return "duplicate"
	case DryRun:
		return "dry-run"
	case Invalid:
		return "invalid"
	default:
		return "failed"
	}
}

// Processor turns screenshots in Dir into logged relics owned by UserID.
// With a nil Sink nothing is written and files stay where they are.
type Processor struct {
	Pipeline     *ocr.Pipeline
	Lookup       *refdata.Lookup
	Sink         Sink
	UserID       uint
	Dir          string
	ProcessedDir string // empty keeps processed files in place
	MaxBytes     int64  // processed images above this size are downscaled, 0 disables
	Slot         string // used when the screenshot names no known piece

	// KeepIllegible logs relics whose only problems are unreadable values,
	// leaving those values empty for a later rescan.
	KeepIllegible bool

	Now func() time.Time
}

// Stats counts outcomes of a run.
type Stats struct {
	mu     sync.Mutex
	counts map[Outcome]int
}

func (s *Stats) add(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = map[Outcome]int{}
	}
	s.counts[o]++
}

// Count returns how many files ended with o.
func (s *Stats) Count(o Outcome) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[o]
}

// Total returns the number of files handled.
func (s *Stats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.counts {
		n += c
	}
	return n
}

func (s *Stats) String() string {
	return fmt.Sprintf("logged=%d duplicate=%d dry-run=%d invalid=%d failed=%d",
		s.Count(Logged), s.Count(Duplicate), s.Count(DryRun), s.Count(Invalid), s.Count(Failed))
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ProcessFile handles one screenshot by name relative to Dir.
func (p *Processor) ProcessFile(ctx context.Context, name string) (Outcome, error) {
	path := filepath.Join(p.Dir, name)
	if p.Sink != nil {
		exists, err := p.Sink.HasSource(ctx, p.UserID, name)
		if err != nil {
			return Failed, fmt.Errorf("check %s: %w", name, err)
		}
		if exists {
			return Duplicate, nil
		}
	}

	scan, err := p.Pipeline.Scan(ctx, path)
	if err != nil {
		return Failed, err
	}
	vocab := p.Pipeline.Vocabulary()
	slot := p.Slot
	piece, ok := p.Lookup.Identify(scan.CleanText)
	if ok {
		slot = piece.Slot
	}
	valid, err := vocab.Validate(scan.Reading, slot)
	if err != nil {
		var ve *ocr.ValidationError
		if !p.KeepIllegible || !errors.As(err, &ve) || !ve.OnlyIllegible() {
			return Invalid, err
		}
		log.Info().Str("file", name).Strs("problems", ve.Problems).Msg("logging relic with illegible values")
	}
	if slot == "" {
		if slots := vocab.SlotsForMain(valid.Main.Name); len(slots) == 1 {
			slot = slots[0]
		} else {
			return Invalid, fmt.Errorf("%s: cannot tell the slot of main stat %q", name, valid.Main.Name)
		}
	}

	if p.Sink == nil {
		log.Info().Str("file", name).Str("piece", piece.Name).Str("slot", slot).
			Str("main", valid.Main.Name).Int("subs", len(valid.Subs)).Msg("dry-run")
		return DryRun, nil
	}

	relic := models.NewLoggedRelic(p.UserID, p.now(), slot, piece, valid)
	relic.SourceFile = name
	relic.RawText = scan.RawText
	if err := p.Sink.CreateRelic(ctx, &relic); err != nil {
		return Failed, fmt.Errorf("log %s: %w", name, err)
	}
	log.Info().Uint("id", relic.ID).Str("file", name).Str("piece", relic.Piece).Str("slot", relic.Slot).Msg("relic logged")

	if p.ProcessedDir != "" {
		if err := MoveToProcessed(path, p.ProcessedDir, p.MaxBytes); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("failed to move processed file")
		}
	}
	return Logged, nil
}

// EffectiveWorkers maps a non-positive worker count to NumCPU.
func EffectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

// Run processes names from files with the given number of workers until the
// channel is closed or ctx is done.
func (p *Processor) Run(ctx context.Context, files <-chan string, workers int) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup
	for i := 0; i < EffectiveWorkers(workers); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case name, ok := <-files:
					if !ok {
						return
					}
					out, err := p.ProcessFile(ctx, name)
					stats.add(out)
					if err != nil {
						ev := log.Warn()
						if errors.Is(err, ocr.ErrOracle) {
							ev = log.Error()
						}
						ev.Err(err).Str("file", name).Str("outcome", out.String()).Msg("screenshot skipped")
					}
				}
			}
		}()
	}
	wg.Wait()
	return stats
}

// ProcessAll processes the given names and returns once all are done.
func (p *Processor) ProcessAll(ctx context.Context, names []string, workers int) *Stats {
	ch := make(chan string, len(names))
	for _, n := range names {
		ch <- n
	}
	close(ch)
	return p.Run(ctx, ch, workers)
}

// IsSupported reports whether name looks like a screenshot we can decode.
func IsSupported(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return true
	}
	return false
}

// ListImages returns the supported files directly inside dir, sorted.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsSupported(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
