// Package report summarizes logged relics per month.
package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"gorm.io/gorm"

	"reliclog/models"
)

// Count is the number of relics for one group value.
type Count struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Report is the monthly summary of one user's relics, or of everyone's when
// Username is empty.
type Report struct {
	Username string               `json:"username,omitempty"`
	Month    string               `json:"month"`
	Total    int64                `json:"total"`
	BySet    []Count              `json:"bySet"`
	BySlot   []Count              `json:"bySlot"`
	ByMain   []Count              `json:"byMainStat"`
	Relics   []models.LoggedRelic `json:"relics,omitempty"`
}

// MonthRange parses YYYY-MM and returns the UTC half-open range it covers.
func MonthRange(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q, expected YYYY-MM: %w", month, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0), nil
}

// Options select what Monthly reports on.
type Options struct {
	User  *models.User // nil covers every user
	Month string       // YYYY-MM
	List  bool         // include the matching relics
}

// Monthly counts the relics logged in a month grouped by set, slot and main stat.
func Monthly(ctx context.Context, db *gorm.DB, opts Options) (Report, error) {
	start, end, err := MonthRange(opts.Month)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Month: opts.Month}
	scope := func() *gorm.DB {
		q := db.WithContext(ctx).Model(&models.LoggedRelic{}).Where("date >= ? AND date < ?", start, end)
		if opts.User != nil {
			q = q.Where("user_id = ?", opts.User.ID)
		}
		return q
	}
	if opts.User != nil {
		rep.Username = opts.User.Username
	}

	if err := scope().Count(&rep.Total).Error; err != nil {
		return Report{}, fmt.Errorf("count relics: %w", err)
	}
	for _, g := range []struct {
		column string
		out    *[]Count
	}{
		{`"set"`, &rep.BySet},
		{"slot", &rep.BySlot},
		{"main_stat", &rep.ByMain},
	} {
		err := scope().
			Select(g.column + " AS key, COUNT(*) AS count").
			Group(g.column).
			Order("count DESC, key").
			Scan(g.out).Error
		if err != nil {
			return Report{}, fmt.Errorf("group by %s: %w", g.column, err)
		}
	}
	if opts.List {
		err := scope().
			Preload("SubStats", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
			Order("date, id").
			Find(&rep.Relics).Error
		if err != nil {
			return Report{}, fmt.Errorf("list relics: %w", err)
		}
	}
	return rep, nil
}

// Print writes the report as plain text.
func (r Report) Print(w io.Writer) {
	who := r.Username
	if who == "" {
		who = "all users"
	}
	fmt.Fprintf(w, "Report for %s month=%s (UTC):\n", who, r.Month)
	fmt.Fprintf(w, "  relics=%d\n", r.Total)
	for _, sec := range []struct {
		title  string
		counts []Count
	}{
		{"by set", r.BySet},
		{"by slot", r.BySlot},
		{"by main stat", r.ByMain},
	} {
		if len(sec.counts) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %s:\n", sec.title)
		for _, c := range sec.counts {
			key := c.Key
			if key == "" {
				key = "(unknown)"
			}
			fmt.Fprintf(w, "    %-40s %d\n", key, c.Count)
		}
	}
	for _, rel := range r.Relics {
		fmt.Fprintf(w, "%d|%s|%s|%s|%s|%s\n", rel.ID, rel.Date.Format("2006-01-02"), rel.Set, rel.Slot, rel.MainStat, subSummary(rel.SubStats))
	}
}

func subSummary(subs []models.LoggedSubStat) string {
	out := ""
	for i, s := range subs {
		if i > 0 {
			out += ","
		}
		if s.Value == nil {
			out += s.Stat + "=?"
			continue
		}
		out += fmt.Sprintf("%s=%g", s.Stat, *s.Value)
	}
	return out
}
