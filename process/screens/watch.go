package screens

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Settle is how long a new file must stay unchanged before it is processed.
const Settle = 300 * time.Millisecond

// Watch processes screenshots created in Dir until ctx is done.
func (p *Processor) Watch(ctx context.Context, workers int) (*Stats, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	defer w.Close()
	if err := w.Add(p.Dir); err != nil {
		return nil, err
	}
	log.Info().Str("dir", p.Dir).Msg("watching for screenshots")

	names := make(chan string, 256)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("watch error")
			}
		}
	}()
	go debounce(ctx, createdFiles(ctx, w.Events), Settle, names)
	return p.Run(ctx, names, workers), nil
}

// createdFiles forwards base names of supported files that were created or
// written.
func createdFiles(ctx context.Context, events <-chan fsnotify.Event) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				name := filepath.Base(ev.Name)
				if !IsSupported(name) {
					continue
				}
				select {
				case out <- name:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// debounce emits a name once no event for it arrived for settle. It closes out
// when in is closed (after flushing) or ctx is done.
func debounce(ctx context.Context, in <-chan string, settle time.Duration, out chan<- string) {
	defer close(out)
	pending := map[string]time.Time{}
	ticker := time.NewTicker(settle / 2)
	defer ticker.Stop()

	flush := func(all bool) bool {
		now := time.Now()
		for name, t := range pending {
			if !all && now.Sub(t) < settle {
				continue
			}
			select {
			case out <- name:
				delete(pending, name)
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case name, ok := <-in:
			if !ok {
				flush(true)
				return
			}
			pending[name] = time.Now()
		case <-ticker.C:
			if !flush(false) {
				return
			}
		}
	}
}
