package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"reliclog/models"
)

// DefaultListLimit caps ListRelics when the filter sets no limit.
const DefaultListLimit = 200

// RelicFilter narrows ListRelics. Zero fields do not filter.
type RelicFilter struct {
	UserID *uint // nil lists every user's relics
	Set    string
	Slot   string
	Since  time.Time // inclusive
	Until  time.Time // exclusive
	Limit  int
}

func (f RelicFilter) apply(q *gorm.DB) *gorm.DB {
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Set != "" {
		q = q.Where(`"set" = ?`, f.Set)
	}
	if f.Slot != "" {
		q = q.Where("slot = ?", f.Slot)
	}
	if !f.Since.IsZero() {
		q = q.Where("date >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		q = q.Where("date < ?", f.Until)
	}
	return q
}

// CreateRelic stores a relic together with its sub-stats.
func (s *Store) CreateRelic(ctx context.Context, r *models.LoggedRelic) error {
	if r.UserID == 0 {
		return errors.New("relic without owner")
	}
	if r.Date.IsZero() {
		r.Date = time.Now()
	}
	for i := range r.SubStats {
		r.SubStats[i].Position = i
	}
	return s.with(ctx).Create(r).Error
}

// HasSource reports whether userID already logged a relic from the screenshot source.
func (s *Store) HasSource(ctx context.Context, userID uint, source string) (bool, error) {
	var n int64
	err := s.with(ctx).Model(&models.LoggedRelic{}).
		Where("user_id = ? AND source_file = ?", userID, source).
		Count(&n).Error
	return n > 0, err
}

// ListRelics returns matching relics, newest first, with sub-stats in screen order.
func (s *Store) ListRelics(ctx context.Context, f RelicFilter) ([]models.LoggedRelic, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []models.LoggedRelic
	err := f.apply(s.with(ctx).Model(&models.LoggedRelic{})).
		Preload("SubStats", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("date desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ClearRelics deletes the relics of userID (every user when nil) logged before
// the given time, or all of them when before is zero. It returns how many
// relics were removed.
func (s *Store) ClearRelics(ctx context.Context, userID *uint, before time.Time) (int64, error) {
	var n int64
	err := s.with(ctx).Transaction(func(tx *gorm.DB) error {
		ids := RelicFilter{UserID: userID, Until: before}.apply(tx.Model(&models.LoggedRelic{})).Select("id")
		if err := tx.Where("relic_id IN (?)", ids).Delete(&models.LoggedSubStat{}).Error; err != nil {
			return err
		}
		res := RelicFilter{UserID: userID, Until: before}.apply(tx.Session(&gorm.Session{AllowGlobalUpdate: true})).
			Delete(&models.LoggedRelic{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

// IncompleteRelics returns relics read from a screenshot whose main value or
// any sub-stat value was illegible.
func (s *Store) IncompleteRelics(ctx context.Context, userID *uint) ([]models.LoggedRelic, error) {
	var out []models.LoggedRelic
	missing := s.with(ctx).Model(&models.LoggedSubStat{}).Select("relic_id").Where("value IS NULL")
	err := RelicFilter{UserID: userID}.apply(s.with(ctx).Model(&models.LoggedRelic{})).
		Where("source_file <> ''").
		Where("main_value IS NULL OR id IN (?)", missing).
		Preload("SubStats", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("id").
		Find(&out).Error
	return out, err
}

// UpdateRelicStats replaces the main value and sub-stats of relic id.
func (s *Store) UpdateRelicStats(ctx context.Context, id uint, mainValue *float64, subs []models.LoggedSubStat) error {
	return s.with(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.LoggedRelic{}).Where("id = ?", id).Update("main_value", mainValue)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if err := tx.Where("relic_id = ?", id).Delete(&models.LoggedSubStat{}).Error; err != nil {
			return err
		}
		if len(subs) == 0 {
			return nil
		}
		rows := make([]models.LoggedSubStat, len(subs))
		for i, sub := range subs {
			rows[i] = models.LoggedSubStat{RelicID: id, Position: i, Stat: sub.Stat, Value: sub.Value}
		}
		return tx.Create(&rows).Error
	})
}
