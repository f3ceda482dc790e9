package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sifan077/TrackPoint/internal/app/model"
	"github.com/sifan077/TrackPoint/internal/app/privacy"
	"github.com/sifan077/TrackPoint/internal/app/repository"
	"go.uber.org/zap"
)

// ErrInvalidQuery is returned for unparseable date bounds.
var ErrInvalidQuery = errors.New("invalid query")

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	dateLayout      = "2006-01-02"
)

// AnalyticsService serves the admin read path.
type AnalyticsService interface {
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
	ListClicks(ctx context.Context, query ClickQuery) (*ClickPage, error)
}

// ClickQuery is the admin listing request. Dates are YYYY-MM-DD in server local time.
type ClickQuery struct {
	Page      int
	Limit     int
	StartDate string
	EndDate   string
	Location  string
}

type ClickPage struct {
	Clicks []model.ClickEvent `json:"clicks"`
	Total  int64              `json:"total"`
	Page   int                `json:"page"`
	Limit  int                `json:"limit"`
}

type analyticsService struct {
	repo   repository.ClickEventRepository
	cipher *privacy.Cipher
	log    *zap.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewAnalyticsService returns the admin read service. "Today" and date bounds use loc, or time.Local when nil.
func NewAnalyticsService(repo repository.ClickEventRepository, cipher *privacy.Cipher, loc *time.Location, log *zap.Logger) AnalyticsService {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &analyticsService{repo: repo, cipher: cipher, log: log, loc: loc, now: time.Now}
}

func (s *analyticsService) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	y, m, d := s.now().In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)

	stats, err := s.repo.Stats(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		s.log.Error("dashboard stats failed", zap.Error(err))
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

func (s *analyticsService) ListClicks(ctx context.Context, query ClickQuery) (*ClickPage, error) {
	page, limit := clampPage(query.Page, query.Limit)

	filter := repository.ClickFilter{Location: repository.ParseLocation(query.Location)}
	if query.StartDate != "" {
		since, err := time.ParseInLocation(dateLayout, query.StartDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: startDate", ErrInvalidQuery)
		}
		filter.Since = &since
	}
	if query.EndDate != "" {
		end, err := time.ParseInLocation(dateLayout, query.EndDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: endDate", ErrInvalidQuery)
		}
		// The whole end day is included.
		before := end.AddDate(0, 0, 1)
		filter.Before = &before
	}

	clicks, total, err := s.repo.List(ctx, filter, limit, (page-1)*limit)
	if err != nil {
		s.log.Error("list clicks failed",
			zap.String("location", filter.Location.String()),
			zap.Bool("since", filter.Since != nil),
			zap.Bool("before", filter.Before != nil),
			zap.Int("page", page),
			zap.Error(err),
		)
		return nil, fmt.Errorf("list clicks: %w", err)
	}

	for i := range clicks {
		s.revealIP(&clicks[i])
	}
	return &ClickPage{Clicks: clicks, Total: total, Page: page, Limit: limit}, nil
}

func (s *analyticsService) revealIP(event *model.ClickEvent) {
	if event.IPAddress == nil {
		return
	}
	ip, ok := s.cipher.OpenIP(*event.IPAddress)
	if !ok {
		s.log.Warn("stored ip could not be opened", zap.Int64("id", event.ID))
		event.IPAddress = nil
		return
	}
	event.IPAddress = &ip
	event.IPMasked = privacy.MaskIP(ip)
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return page, limit
}
