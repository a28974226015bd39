package screens

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliclog/models"
	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
)

type memorySink struct {
	mu     sync.Mutex
	relics []models.LoggedRelic
	failOn string
}

func (m *memorySink) HasSource(_ context.Context, userID uint, source string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.relics {
		if r.UserID == userID && r.SourceFile == source {
			return true, nil
		}
	}
	return false, nil
}

func (m *memorySink) CreateRelic(_ context.Context, r *models.LoggedRelic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.SourceFile == m.failOn {
		return errors.New("insert failed")
	}
	r.ID = uint(len(m.relics) + 1)
	m.relics = append(m.relics, *r)
	return nil
}

var screenTexts = map[int]string{
	10: "Musketeer's Wild Wheat Felt Hat\nHP 705\nCRIT DMG 5.8%\nSPD 2\n",
	11: "Hunter's Lizard Gloves\nATK 352\nHP 38\n",
	12: "Unreadable\nLuck 9\n",
	13: "Some Trinket\nEnergy Regeneration Rate 19.4%\nATK 19\n",
	14: "Hunter's Artaius Hood\nHP 705\nSPD 2\nHP 38\nATK 19\nDEF ..\n",
	15: "Hunter's Artaius Hood\nHP 705\nATK 19\nSPD ??\nDEF 21\n",
}

func newProcessor(t *testing.T, dir string, sink Sink) *Processor {
	t.Helper()
	rec := ocr.RecognizerFunc(func(_ context.Context, img []byte, _ string) (string, error) {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
		if err != nil {
			return "", err
		}
		return screenTexts[cfg.Width], nil
	})
	vocab, err := refdata.DefaultVocabulary()
	require.NoError(t, err)
	p, err := ocr.NewPipeline(rec, vocab, ocr.Options{SharpenPasses: 1})
	require.NoError(t, err)
	lookup, err := refdata.DefaultLookup()
	require.NoError(t, err)
	return &Processor{
		Pipeline: p,
		Lookup:   lookup,
		Sink:     sink,
		UserID:   7,
		Dir:      dir,
		Now:      func() time.Time { return time.Date(2025, 8, 3, 12, 0, 0, 0, time.UTC) },
	}
}

func writeScreen(t *testing.T, dir, name string, width int) {
	t.Helper()
	img := imaging.New(width, 6, color.NRGBA{R: 10, G: 10, B: 10, A: 255})
	require.NoError(t, imaging.Save(img, filepath.Join(dir, name)))
}

func TestProcessFileLogsIdentifiedRelic(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "hat.png", 10)
	sink := &memorySink{}
	p := newProcessor(t, dir, sink)
	p.ProcessedDir = filepath.Join(dir, "processed")

	out, err := p.ProcessFile(context.Background(), "hat.png")
	require.NoError(t, err)
	assert.Equal(t, Logged, out)

	require.Len(t, sink.relics, 1)
	r := sink.relics[0]
	assert.Equal(t, uint(7), r.UserID)
	assert.Equal(t, "Musketeer of Wild Wheat", r.Set)
	assert.Equal(t, "Head", r.Slot)
	assert.Equal(t, "HP", r.MainStat)
	assert.Equal(t, "hat.png", r.SourceFile)
	require.Len(t, r.SubStats, 2)
	assert.Equal(t, "Crit DMG%", r.SubStats[0].Stat)
	assert.Equal(t, "Speed", r.SubStats[1].Stat)

	assert.NoFileExists(t, filepath.Join(dir, "hat.png"))
	assert.FileExists(t, filepath.Join(dir, "processed", "hat.png"))

	// a second pass over the same name is a duplicate
	writeScreen(t, dir, "hat.png", 10)
	out, err = p.ProcessFile(context.Background(), "hat.png")
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)
	assert.Len(t, sink.relics, 1)
}

func TestProcessFileInfersSlotFromMainStat(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "rope.png", 13)
	sink := &memorySink{}
	p := newProcessor(t, dir, sink)

	out, err := p.ProcessFile(context.Background(), "rope.png")
	require.NoError(t, err)
	assert.Equal(t, Logged, out)
	require.Len(t, sink.relics, 1)
	assert.Equal(t, "Link Rope", sink.relics[0].Slot)
	assert.Empty(t, sink.relics[0].Piece)
	assert.FileExists(t, filepath.Join(dir, "rope.png"), "kept without a processed dir")
}

func TestProcessFileOutcomes(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "junk.png", 12)
	writeScreen(t, dir, "gloves.png", 11)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("nope"), 0o644))

	sink := &memorySink{failOn: "gloves.png"}
	p := newProcessor(t, dir, sink)

	out, err := p.ProcessFile(context.Background(), "junk.png")
	assert.Equal(t, Invalid, out)
	var ve *ocr.ValidationError
	assert.True(t, errors.As(err, &ve))

	out, err = p.ProcessFile(context.Background(), "broken.png")
	assert.Equal(t, Failed, out)
	assert.True(t, errors.Is(err, ocr.ErrDecode))

	out, err = p.ProcessFile(context.Background(), "gloves.png")
	assert.Equal(t, Failed, out)
	assert.ErrorContains(t, err, "insert failed")
}

func TestProcessFileKeepIllegible(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "hood.png", 14)
	sink := &memorySink{}
	p := newProcessor(t, dir, sink)

	out, err := p.ProcessFile(context.Background(), "hood.png")
	assert.Equal(t, Invalid, out)
	assert.Error(t, err)

	p.KeepIllegible = true
	out, err = p.ProcessFile(context.Background(), "hood.png")
	require.NoError(t, err)
	assert.Equal(t, Logged, out)
	require.Len(t, sink.relics, 1)
	subs := sink.relics[0].SubStats
	require.Len(t, subs, 4)
	assert.Equal(t, "Speed", subs[0].Stat)
	assert.Equal(t, "DEF", subs[3].Stat)
	assert.Nil(t, subs[3].Value)
}

func TestProcessFileKeepIllegibleRefusesShortenedSubs(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "hood.png", 15)
	sink := &memorySink{}
	p := newProcessor(t, dir, sink)
	p.KeepIllegible = true

	out, err := p.ProcessFile(context.Background(), "hood.png")
	assert.Equal(t, Invalid, out)
	var ve *ocr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.Truncated)
	assert.ErrorContains(t, err, "could not be read")
	assert.NotContains(t, err.Error(), "duplicate")
	assert.Empty(t, sink.relics)
	assert.FileExists(t, filepath.Join(dir, "hood.png"))
}

func TestProcessFileDryRun(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "hat.png", 10)
	p := newProcessor(t, dir, nil)
	p.ProcessedDir = filepath.Join(dir, "processed")

	out, err := p.ProcessFile(context.Background(), "hat.png")
	require.NoError(t, err)
	assert.Equal(t, DryRun, out)
	assert.FileExists(t, filepath.Join(dir, "hat.png"))
}

func TestProcessAll(t *testing.T) {
	dir := t.TempDir()
	writeScreen(t, dir, "a.png", 10)
	writeScreen(t, dir, "b.png", 11)
	writeScreen(t, dir, "c.png", 12)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	names, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, names)

	sink := &memorySink{}
	stats := newProcessor(t, dir, sink).ProcessAll(context.Background(), names, 2)
	assert.Equal(t, 3, stats.Total())
	assert.Equal(t, 2, stats.Count(Logged))
	assert.Equal(t, 1, stats.Count(Invalid))
	assert.Len(t, sink.relics, 2)
	assert.Contains(t, stats.String(), "logged=2")
}

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("shot.PNG"))
	assert.True(t, IsSupported("shot.webp"))
	assert.False(t, IsSupported("notes.txt"))
	assert.False(t, IsSupported(".hidden.png"))
}

func TestDebounceWaitsForQuiet(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan string)
	out := make(chan string, 8)
	go debounce(ctx, in, 40*time.Millisecond, out)

	in <- "a.png"
	in <- "a.png"
	in <- "b.png"

	got := map[string]int{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case n := <-out:
			got[n]++
		case <-deadline:
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, map[string]int{"a.png": 1, "b.png": 1}, got)
}

func TestDebounceFlushesOnClose(t *testing.T) {
	in := make(chan string, 1)
	out := make(chan string, 1)
	in <- "a.png"
	close(in)
	debounce(context.Background(), in, time.Hour, out)
	assert.Equal(t, "a.png", <-out)
	_, open := <-out
	assert.False(t, open)
}

func TestWatchProcessesNewFiles(t *testing.T) {
	dir := t.TempDir()
	sink := &memorySink{}
	p := newProcessor(t, dir, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *Stats)
	go func() {
		stats, err := p.Watch(ctx, 1)
		assert.NoError(t, err)
		done <- stats
	}()

	time.Sleep(100 * time.Millisecond)
	writeScreen(t, dir, "hat.png", 10)
	assert.Eventually(t, func() bool {
		ok, _ := sink.HasSource(context.Background(), 7, "hat.png")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	stats := <-done
	assert.GreaterOrEqual(t, stats.Count(Logged), 1)
}

func TestMoveToProcessedDownscales(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "big.png")
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 31)
	}
	require.NoError(t, imaging.Save(img, src))
	fi, err := os.Stat(src)
	require.NoError(t, err)

	dst := filepath.Join(dir, "done")
	require.NoError(t, MoveToProcessed(src, dst, fi.Size()/2))
	assert.NoFileExists(t, src)

	out, err := imaging.Open(filepath.Join(dst, "big.png"))
	require.NoError(t, err)
	assert.Less(t, out.Bounds().Dx(), 200)
}
