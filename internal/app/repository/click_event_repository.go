package repository

import (
	"context"
	"time"

	"github.com/sifan077/TrackPoint/internal/app/model"
)

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	Create(ctx context.Context, event *model.ClickEvent) error
	List(ctx context.Context, filter ClickFilter, limit, offset int) ([]model.ClickEvent, int64, error)
	Stats(ctx context.Context, dayStart, dayEnd time.Time) (*model.DashboardStats, error)
}

type clickEventRepository struct {
	store *Store
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(store *Store) ClickEventRepository {
	return &clickEventRepository{store: store}
}

func (r *clickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	db, cancel := r.store.conn(ctx)
	defer cancel()
	return wrapErr("insert click", db.Create(event).Error)
}

// List returns one page of filtered events, newest first, together with the filtered total.
func (r *clickEventRepository) List(ctx context.Context, filter ClickFilter, limit, offset int) ([]model.ClickEvent, int64, error) {
	db, cancel := r.store.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&model.ClickEvent{}).Scopes(filter.Scope).Count(&total).Error; err != nil {
		return nil, 0, wrapErr("count clicks", err)
	}

	events := make([]model.ClickEvent, 0, limit)
	err := db.Model(&model.ClickEvent{}).
		Scopes(filter.Scope).
		Order("clicked_at DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&events).Error
	if err != nil {
		return nil, 0, wrapErr("list clicks", err)
	}
	return events, total, nil
}

const statsQuery = `SELECT
	COUNT(*) AS total_clicks,
	COUNT(CASE WHEN latitude IS NOT NULL AND longitude IS NOT NULL THEN 1 END) AS gps_clicks,
	COUNT(DISTINCT ip_hash) AS unique_users,
	COUNT(CASE WHEN clicked_at >= ? AND clicked_at < ? THEN 1 END) AS today_clicks
FROM clicks_tracking`

// Stats aggregates the whole table. Clicks in [dayStart, dayEnd) count as today.
func (r *clickEventRepository) Stats(ctx context.Context, dayStart, dayEnd time.Time) (*model.DashboardStats, error) {
	db, cancel := r.store.conn(ctx)
	defer cancel()

	var stats model.DashboardStats
	if err := db.Raw(statsQuery, dayStart.UTC(), dayEnd.UTC()).Scan(&stats).Error; err != nil {
		return nil, wrapErr("click stats", err)
	}
	return &stats, nil
}
