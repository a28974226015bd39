// Package rescan re-reads screenshots of logged relics whose values came out
// illegible, with stronger preprocessing, and fills in what it can.
package rescan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"reliclog/models"
	"reliclog/pkg/ocr"
)

// Store is the part of *store.Store a rescan needs.
type Store interface {
	IncompleteRelics(ctx context.Context, userID *uint) ([]models.LoggedRelic, error)
	UpdateRelicStats(ctx context.Context, id uint, mainValue *float64, subs []models.LoggedSubStat) error
}

// Rescanner re-runs the pipeline on the source screenshots found in Dirs.
type Rescanner struct {
	Pipeline *ocr.Pipeline
	Store    Store
	Dirs     []string
	Contrast float64 // applied before the pipeline's own sharpening
	DryRun   bool
}

// Result summarises a Run.
type Result struct {
	Checked, Updated, Missing, Unchanged int
}

// Run rescans every incomplete relic of userID (every user when nil).
func (r *Rescanner) Run(ctx context.Context, userID *uint) (Result, error) {
	var res Result
	relics, err := r.Store.IncompleteRelics(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("list incomplete relics: %w", err)
	}
	for _, relic := range relics {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Checked++
		path, ok := r.find(relic.SourceFile)
		if !ok {
			res.Missing++
			log.Warn().Uint("id", relic.ID).Str("file", relic.SourceFile).Msg("screenshot not found")
			continue
		}
		reading, err := r.reread(ctx, path, relic.Slot)
		if err != nil {
			if errors.Is(err, ocr.ErrOracle) {
				return res, err
			}
			res.Unchanged++
			log.Info().Err(err).Uint("id", relic.ID).Msg("rescan gave no usable reading")
			continue
		}
		mainValue, subs, changed := Merge(relic, reading)
		if !changed {
			res.Unchanged++
			continue
		}
		if r.DryRun {
			log.Info().Uint("id", relic.ID).Str("file", relic.SourceFile).Msg("would update")
			res.Updated++
			continue
		}
		if err := r.Store.UpdateRelicStats(ctx, relic.ID, mainValue, subs); err != nil {
			return res, fmt.Errorf("update relic %d: %w", relic.ID, err)
		}
		res.Updated++
		log.Info().Uint("id", relic.ID).Str("file", relic.SourceFile).Msg("relic updated")
	}
	return res, nil
}

func (r *Rescanner) find(name string) (string, bool) {
	for _, dir := range r.Dirs {
		p := filepath.Join(dir, filepath.Base(name))
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func (r *Rescanner) reread(ctx context.Context, path, slot string) (ocr.Reading, error) {
	scanPath := path
	if r.Contrast != 0 {
		img, err := ocr.LoadImage(path)
		if err != nil {
			return ocr.Reading{}, err
		}
		tmp, err := os.CreateTemp("", "rescan-*.png")
		if err != nil {
			return ocr.Reading{}, err
		}
		tmp.Close()
		defer os.Remove(tmp.Name())
		if err := imaging.Save(imaging.AdjustContrast(img, r.Contrast), tmp.Name()); err != nil {
			return ocr.Reading{}, err
		}
		scanPath = tmp.Name()
	}
	scan, err := r.Pipeline.Scan(ctx, scanPath)
	if err != nil {
		return ocr.Reading{}, err
	}
	valid, err := r.Pipeline.Vocabulary().Validate(scan.Reading, slot)
	var ve *ocr.ValidationError
	if errors.As(err, &ve) && ve.OnlyIllegible() {
		return valid, nil
	}
	return valid, err
}

// Merge fills illegible values of relic from a fresh reading. Stats are only
// taken over when the new reading has the same main stat and the same sub-stat
// names in the same order; known values are never replaced.
func Merge(relic models.LoggedRelic, fresh ocr.Reading) (*float64, []models.LoggedSubStat, bool) {
	mainValue := relic.MainValue
	subs := append([]models.LoggedSubStat(nil), relic.SubStats...)
	if fresh.Main == nil || fresh.Main.Name != relic.MainStat || len(fresh.Subs) != len(subs) {
		return mainValue, subs, false
	}
	for i, s := range fresh.Subs {
		if s.Name != subs[i].Stat {
			return relic.MainValue, relic.SubStats, false
		}
	}
	changed := false
	if mainValue == nil && fresh.Main.Value != nil {
		v := *fresh.Main.Value
		mainValue, changed = &v, true
	}
	for i, s := range fresh.Subs {
		if subs[i].Value == nil && s.Value != nil {
			v := *s.Value
			subs[i].Value, changed = &v, true
		}
	}
	return mainValue, subs, changed
}
