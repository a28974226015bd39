package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMain(t *testing.T) {
	got := ExtractMain("Passerby's Wooden Hairstick\nCRIT DMG 64.8\nATK 3.8")
	require.NotNil(t, got)
	assert.Equal(t, "CRIT DMG", got.Name)
	require.NotNil(t, got.Value)
	assert.InDelta(t, 64.8, *got.Value, 1e-9)

	got = ExtractMain("HP -705")
	require.NotNil(t, got)
	assert.Equal(t, "HP", got.Name)
	assert.InDelta(t, -705, *got.Value, 1e-9)
}

func TestExtractMainMisses(t *testing.T) {
	assert.Nil(t, ExtractMain("no digits here\nnone at all"))
	assert.Nil(t, ExtractMain("+15\nHP 705"), "the first digit line wins even if it does not parse")
	assert.Nil(t, ExtractMain(""))
}

func TestExtractSubEarliestMatchWins(t *testing.T) {
	text := "ab DEF 16 ATK 21"
	res := ExtractSub(text, []string{"ATK", "DEF"})
	require.True(t, res.Found)
	assert.Equal(t, "DEF", res.Stat.Name)
	assert.InDelta(t, 16, *res.Stat.Value, 1e-9)
	assert.Equal(t, "ab  ATK 21", res.Remaining)
}

func TestExtractSubLongerTermWinsTie(t *testing.T) {
	res := ExtractSub("Effect Hit Rate 4.3", []string{"Effect", "Effect Hit Rate"})
	require.True(t, res.Found)
	assert.Equal(t, "Effect Hit Rate", res.Stat.Name)
	assert.InDelta(t, 4.3, *res.Stat.Value, 1e-9)
	assert.Equal(t, "", res.Remaining)
}

func TestExtractSubCollapsesWhitespaceAndToleratesPercent(t *testing.T) {
	res := ExtractSub("CRIT Rate\t 2.9%\n\nATK   19", []string{"ATK", "CRIT Rate"})
	require.True(t, res.Found)
	assert.Equal(t, "CRIT Rate", res.Stat.Name)
	assert.InDelta(t, 2.9, *res.Stat.Value, 1e-9)
	assert.Equal(t, "ATK 19", res.Remaining)
}

func TestExtractSubLabelWithoutValue(t *testing.T) {
	res := ExtractSub("SPD ?? DEF 19", []string{"SPD", "DEF"})
	require.True(t, res.Found)
	assert.Equal(t, "SPD", res.Stat.Name)
	assert.Nil(t, res.Stat.Value)
	assert.Equal(t, "SPD ?? DEF 19", res.Remaining)
}

func TestExtractSubNothingFound(t *testing.T) {
	res := ExtractSub("nothing to see", []string{"HP", "ATK"})
	assert.False(t, res.Found)
	assert.Equal(t, "", res.Stat.Name)
}

func TestSubStatsCapsAtFour(t *testing.T) {
	var got []float64
	for s := range SubStats("HP 1 HP 2 HP 3 HP 4 HP 5 HP 6", []string{"HP"}) {
		got = append(got, *s.Value)
	}
	assert.Equal(t, []float64{1, 2, 3, 4}, got)
}

func TestSubStatsStopsEarlyAndIsLazy(t *testing.T) {
	n := 0
	for range SubStats("ATK 19 DEF 21", []string{"ATK", "DEF", "HP"}) {
		n++
	}
	assert.Equal(t, 2, n)

	n = 0
	for range SubStats("ATK 19 DEF 21", []string{"ATK", "DEF"}) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestParseReadingEndToEnd(t *testing.T) {
	v := newTestVocabulary(t)
	terms := []string{"ATK%", "DEF", "Speed", "Crit DMG%", "SPD"}
	r := ParseReading("CRIT DMG 6.4\nATK% 3.8\nDEF 19\nSPD 2", terms)

	require.NotNil(t, r.Main)
	assert.Equal(t, "CRIT DMG", r.Main.Name)
	assert.InDelta(t, 6.4, *r.Main.Value, 1e-9)

	require.Len(t, r.Subs, 3)
	want := []struct {
		label, canonical string
		value            float64
	}{
		{"ATK%", "ATK%", 3.8},
		{"DEF", "DEF", 19},
		{"SPD", "Speed", 2},
	}
	for i, w := range want {
		assert.Equal(t, w.label, r.Subs[i].Name)
		assert.InDelta(t, w.value, *r.Subs[i].Value, 1e-9)
		name, ok := v.ResolveSub(r.Subs[i].Name, r.Subs[i].Value)
		assert.True(t, ok)
		assert.Equal(t, w.canonical, name)
	}

	speed, ok := FuzzyMatch("SPD", []string{"Speed"})
	assert.True(t, ok)
	assert.Equal(t, "Speed", speed)
}

func TestParseReadingWithoutDigits(t *testing.T) {
	r := ParseReading("Wooden Hairstick\nno values", []string{"HP"})
	assert.Nil(t, r.Main)
	assert.Empty(t, r.Subs)
	assert.NotNil(t, r.Subs)
}

func TestSubPatternIsCompiledOnce(t *testing.T) {
	first := subPattern("Break Effect")
	assert.Same(t, first, subPattern("Break Effect"))
	assert.NotSame(t, first, subPattern("DEF"))
	assert.True(t, first.MatchString("break effect 6.4%"))
}
