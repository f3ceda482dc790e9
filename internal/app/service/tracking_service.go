package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/user_agent"
	"github.com/sifan077/TrackPoint/internal/app/model"
	"github.com/sifan077/TrackPoint/internal/app/privacy"
	"github.com/sifan077/TrackPoint/internal/app/repository"
	"github.com/sifan077/TrackPoint/internal/infra/geo"
	"github.com/sifan077/TrackPoint/internal/infra/logger"
	metrics "github.com/sifan077/TrackPoint/internal/infra/prometheus"
	"go.uber.org/zap"
)

// TrackingService records click beacons under the consent policy.
type TrackingService interface {
	Record(ctx context.Context, input TrackInput) (*TrackResult, error)
}

// TrackInput is one beacon as received. ClientIP and UserAgent come from the request, not the body.
type TrackInput struct {
	RegistrationID *int64
	Latitude       *float64
	Longitude      *float64
	Accuracy       *float64
	Consent        bool
	ElementID      string
	ElementType    string
	PageURL        string
	ClientIP       string
	UserAgent      string
}

// TrackResult echoes the stored row id and, when enrichment worked, the coarse location.
type TrackResult struct {
	ID  int64
	Geo *GeoEcho
}

type GeoEcho struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// TrackingDeps wires a TrackingService. Locator, Notifier and Metrics are optional.
type TrackingDeps struct {
	Repo     repository.ClickEventRepository
	Cipher   *privacy.Cipher
	Locator  geo.Locator
	Notifier ClickNotifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	IPSalt   string
	UASalt   string
}

type trackingService struct {
	repo     repository.ClickEventRepository
	cipher   *privacy.Cipher
	locator  geo.Locator
	notifier ClickNotifier
	metrics  *metrics.Metrics
	log      *zap.Logger
	ipSalt   string
	uaSalt   string
	now      func() time.Time
}

func NewTrackingService(deps TrackingDeps) TrackingService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	locator := deps.Locator
	if locator == nil {
		locator = geo.Nop{}
	}
	return &trackingService{
		repo:     deps.Repo,
		cipher:   deps.Cipher,
		locator:  locator,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		log:      log,
		ipSalt:   deps.IPSalt,
		uaSalt:   deps.UASalt,
		now:      time.Now,
	}
}

func (s *trackingService) Record(ctx context.Context, input TrackInput) (*TrackResult, error) {
	now := s.now().UTC()
	ip := privacy.NormalizeIP(input.ClientIP)

	ipHash := privacy.Hash(ip, s.ipSalt)
	device, browser := classifyUserAgent(input.UserAgent)

	event := &model.ClickEvent{
		RegistrationID: input.RegistrationID,
		IPHash:         nullable(ipHash),
		UserAgent:      nullable(privacy.Hash(input.UserAgent, s.uaSalt)),
		DeviceType:     device,
		Browser:        browser,
		ConsentGiven:   input.Consent,
		ElementID:      nullable(input.ElementID),
		ElementType:    nullable(input.ElementType),
		PageURL:        nullable(input.PageURL),
		ClickedAt:      now,
		CreatedAt:      now,
	}

	location := s.lookup(ctx, ip, ipHash)
	if location != nil {
		event.Country = nullable(location.Country)
		event.City = nullable(location.City)
		event.Region = nullable(location.Region)
		event.Timezone = nullable(location.Timezone)
		event.ISP = nullable(location.ISP)
	}

	// Raw IP, GPS and the consent timestamp are written only with consent.
	if input.Consent {
		sealed, err := s.cipher.EncryptIP(ip, s.ipSalt)
		if err != nil {
			return nil, fmt.Errorf("seal client ip: %w", err)
		}
		event.ConsentTimestamp = &now
		event.IPAddress = nullable(sealed.Sealed())
		if lat, lng, acc, ok := gpsTriple(input.Latitude, input.Longitude, input.Accuracy); ok {
			event.Latitude, event.Longitude, event.Accuracy = &lat, &lng, &acc
		}
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.log.Error("click insert failed", logger.IPHash(ipHash), zap.Error(err))
		return nil, fmt.Errorf("record click: %w", err)
	}

	s.metrics.ClickRecorded(input.Consent)
	s.log.Info("click recorded",
		zap.Int64("id", event.ID),
		zap.Bool("consent", input.Consent),
		zap.Bool("gps", event.HasGPS()),
		logger.IPHash(ipHash),
	)
	s.notify(ctx, event)

	result := &TrackResult{ID: event.ID}
	if location != nil {
		result.Geo = &GeoEcho{City: location.City, Country: location.Country}
	}
	return result, nil
}

func (s *trackingService) lookup(ctx context.Context, ip, ipHash string) *geo.Result {
	if ip == "" || !geo.IsPublic(ip) {
		s.metrics.GeoLookup("skipped")
		return nil
	}
	res := s.locator.Lookup(ctx, ip)
	if res.Empty() {
		s.metrics.GeoLookup("miss")
		s.log.Debug("no geo enrichment", logger.IPHash(ipHash))
		return nil
	}
	s.metrics.GeoLookup("hit")
	return res
}

func (s *trackingService) notify(ctx context.Context, event *model.ClickEvent) {
	if s.notifier == nil {
		return
	}
	msg := model.ClickRecorded{
		ID:        event.ID,
		EventID:   uuid.NewString(),
		Consent:   event.ConsentGiven,
		HasGPS:    event.HasGPS(),
		Country:   deref(event.Country),
		City:      deref(event.City),
		Device:    event.DeviceType,
		ClickedAt: event.ClickedAt,
	}
	if err := s.notifier.PublishClick(ctx, msg); err != nil {
		s.log.Warn("click notification failed", zap.Int64("id", event.ID), zap.Error(err))
	}
}

// gpsTriple accepts the coordinates only when all three are present and in range.
func gpsTriple(lat, lng, acc *float64) (float64, float64, float64, bool) {
	if lat == nil || lng == nil || acc == nil {
		return 0, 0, 0, false
	}
	if !finite(*lat) || !finite(*lng) || !finite(*acc) {
		return 0, 0, 0, false
	}
	if *lat < -90 || *lat > 90 || *lng < -180 || *lng > 180 || *acc < 0 {
		return 0, 0, 0, false
	}
	return *lat, *lng, *acc, true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// classifyUserAgent keeps only the device class and browser family.
func classifyUserAgent(raw string) (device, browser string) {
	if strings.TrimSpace(raw) == "" {
		return "", ""
	}
	ua := user_agent.New(raw)
	switch {
	case ua.Bot():
		device = "Bot"
	case ua.Mobile():
		device = "Mobile"
	default:
		device = "Desktop"
	}
	browser, _ = ua.Browser()
	if len(browser) > 32 {
		browser = browser[:32]
	}
	return device, browser
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
