package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
)

func f(v float64) *float64 { return &v }

func TestNewLoggedRelicUsesPieceSlot(t *testing.T) {
	date := time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC)
	piece := refdata.Record{Name: "Eagle's Soaring Ring", Set: "Eagle of Twilight Line", Slot: "Hand", Domain: "Gelid Wind"}
	r := ocr.Reading{
		Main: &ocr.ParsedStat{Name: "ATK", Value: f(352)},
		Subs: []ocr.ParsedStat{{Name: "Speed", Value: f(2)}, {Name: "Crit Rate%", Value: f(2.9)}},
	}

	lr := NewLoggedRelic(7, date, "Head", piece, r)
	assert.Equal(t, uint(7), lr.UserID)
	assert.Equal(t, "Hand", lr.Slot)
	assert.Equal(t, "Eagle of Twilight Line", lr.Set)
	assert.Equal(t, "Gelid Wind", lr.Domain)
	assert.Equal(t, "ATK", lr.MainStat)
	require.Len(t, lr.SubStats, 2)
	assert.Equal(t, 1, lr.SubStats[1].Position)
	assert.Equal(t, "Crit Rate%", lr.SubStats[1].Stat)

	*r.Main.Value = 1
	assert.InDelta(t, 352, *lr.MainValue, 1e-9, "values are copied")

	back := lr.Reading()
	require.NotNil(t, back.Main)
	assert.Equal(t, "ATK", back.Main.Name)
	assert.Len(t, back.Subs, 2)
}

func TestNewLoggedRelicWithoutPiece(t *testing.T) {
	lr := NewLoggedRelic(1, time.Now(), "Feet", refdata.Record{}, ocr.Reading{})
	assert.Equal(t, "Feet", lr.Slot)
	assert.Empty(t, lr.MainStat)
	assert.Nil(t, lr.Reading().Main)
}

func TestSessionActive(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, s.Active(now))
	assert.False(t, s.Active(now.Add(2*time.Hour)))
	s.RevokedAt = &now
	assert.False(t, s.Active(now))
}
