package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliclog/models"
)

func TestMonthRange(t *testing.T) {
	start, end, err := MonthRange("2025-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = MonthRange("2025-13")
	assert.Error(t, err)
	_, _, err = MonthRange("August")
	assert.ErrorContains(t, err, "YYYY-MM")
}

func TestPrint(t *testing.T) {
	spd := 2.0
	r := Report{
		Username: "trailblazer",
		Month:    "2025-08",
		Total:    3,
		BySet:    []Count{{Key: "Musketeer of Wild Wheat", Count: 2}, {Key: "", Count: 1}},
		BySlot:   []Count{{Key: "Head", Count: 3}},
		Relics: []models.LoggedRelic{{
			ID: 4, Date: time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC),
			Set: "Musketeer of Wild Wheat", Slot: "Head", MainStat: "HP",
			SubStats: []models.LoggedSubStat{{Stat: "Speed", Value: &spd}, {Stat: "ATK%"}},
		}},
	}
	var buf bytes.Buffer
	r.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "Report for trailblazer month=2025-08")
	assert.Contains(t, out, "relics=3")
	assert.Contains(t, out, "(unknown)")
	assert.NotContains(t, out, "by main stat")
	assert.Contains(t, out, "4|2025-08-03|Musketeer of Wild Wheat|Head|HP|Speed=2,ATK%=?")
}
