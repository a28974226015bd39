package models

import (
	"time"

	"reliclog/pkg/ocr"
	"reliclog/pkg/refdata"
)

// LoggedRelic is one farmed relic with its rolled stats.
type LoggedRelic struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time       `json:"createdAt"`
	UserID     uint            `gorm:"index;not null" json:"userId"`
	Date       time.Time       `gorm:"index;not null" json:"date"`
	Domain     string          `gorm:"size:255" json:"domain"`
	Set        string          `gorm:"size:255;index" json:"set"`
	Slot       string          `gorm:"size:64;index;not null" json:"slot"`
	Piece      string          `gorm:"size:255" json:"piece"`
	MainStat   string          `gorm:"size:64;not null" json:"mainStat"`
	MainValue  *float64        `json:"mainValue"`
	SubStats   []LoggedSubStat `gorm:"foreignKey:RelicID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"subStats"`
	SourceFile string          `gorm:"size:512;index" json:"sourceFile,omitempty"` // screenshot the relic was read from
	RawText    string          `gorm:"type:text" json:"-"`
}

// LoggedSubStat is one sub-stat of a LoggedRelic, in screen order.
type LoggedSubStat struct {
	ID       uint     `gorm:"primaryKey" json:"-"`
	RelicID  uint     `gorm:"index;not null" json:"-"`
	Position int      `gorm:"not null" json:"-"`
	Stat     string   `gorm:"size:64;not null" json:"stat"`
	Value    *float64 `json:"value"`
}

// NewLoggedRelic builds a relic from a validated reading. piece may be the
// zero Record when the screenshot did not name a known piece; slot then has to
// be given by the caller.
func NewLoggedRelic(userID uint, date time.Time, slot string, piece refdata.Record, r ocr.Reading) LoggedRelic {
	if piece.Slot != "" {
		slot = piece.Slot
	}
	lr := LoggedRelic{
		UserID: userID,
		Date:   date,
		Domain: piece.Domain,
		Set:    piece.Set,
		Slot:   slot,
		Piece:  piece.Name,
	}
	if r.Main != nil {
		lr.MainStat = r.Main.Name
		lr.MainValue = copyValue(r.Main.Value)
	}
	for i, s := range r.Subs {
		lr.SubStats = append(lr.SubStats, LoggedSubStat{Position: i, Stat: s.Name, Value: copyValue(s.Value)})
	}
	return lr
}

// Reading converts the relic back into the structure the validator works on.
func (lr LoggedRelic) Reading() ocr.Reading {
	r := ocr.Reading{Subs: make([]ocr.ParsedStat, 0, len(lr.SubStats))}
	if lr.MainStat != "" {
		r.Main = &ocr.ParsedStat{Name: lr.MainStat, Value: copyValue(lr.MainValue)}
	}
	for _, s := range lr.SubStats {
		r.Subs = append(r.Subs, ocr.ParsedStat{Name: s.Stat, Value: copyValue(s.Value)})
	}
	return r
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
