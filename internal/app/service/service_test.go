package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sifan077/TrackPoint/internal/app/model"
	"github.com/sifan077/TrackPoint/internal/app/privacy"
	"github.com/sifan077/TrackPoint/internal/app/repository"
	"github.com/sifan077/TrackPoint/internal/infra/geo"
)

const testKey = "8f1c2a3b4d5e6f708192a3b4c5d6e7f8091a2b3c4d5e6f708192a3b4c5d6e7f8"

type mockClickRepository struct {
	createFn func(ctx context.Context, event *model.ClickEvent) error
	listFn   func(ctx context.Context, filter repository.ClickFilter, limit, offset int) ([]model.ClickEvent, int64, error)
	statsFn  func(ctx context.Context, dayStart, dayEnd time.Time) (*model.DashboardStats, error)
}

func (m *mockClickRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, event)
	}
	event.ID = 1
	return nil
}

func (m *mockClickRepository) List(ctx context.Context, filter repository.ClickFilter, limit, offset int) ([]model.ClickEvent, int64, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter, limit, offset)
	}
	return nil, 0, nil
}

func (m *mockClickRepository) Stats(ctx context.Context, dayStart, dayEnd time.Time) (*model.DashboardStats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, dayStart, dayEnd)
	}
	return &model.DashboardStats{}, nil
}

type mockRegistrationRepository struct {
	createFn func(ctx context.Context, reg *model.Registration) error
}

func (m *mockRegistrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	if m.createFn != nil {
		return m.createFn(ctx, reg)
	}
	reg.ID = 7
	return nil
}

type stubLocator struct {
	result *geo.Result
	calls  int
}

func (s *stubLocator) Lookup(ctx context.Context, ip string) *geo.Result {
	s.calls++
	return s.result
}

type recordingNotifier struct {
	events []model.ClickRecorded
	err    error
}

func (r *recordingNotifier) PublishClick(ctx context.Context, event model.ClickRecorded) error {
	r.events = append(r.events, event)
	return r.err
}

func mustCipher(t *testing.T) *privacy.Cipher {
	t.Helper()
	c, err := privacy.NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}

func f64(v float64) *float64 { return &v }

func TestRegistrationService_Register(t *testing.T) {
	var stored *model.Registration
	repo := &mockRegistrationRepository{createFn: func(ctx context.Context, reg *model.Registration) error {
		stored = reg
		reg.ID = 42
		return nil
	}}
	svc := NewRegistrationService(repo, nil, nil)

	reg, err := svc.Register(context.Background(), RegistrationInput{
		Email:       " an@example.com ",
		Phone:       "0901234567",
		FullName:    "Trần Thị An",
		DOB:         "1995-08-20",
		Plate:       "59A-123.45",
		VehicleType: "motorbike",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if reg.ID != 42 || stored == nil {
		t.Fatalf("expected stored registration with id 42, got %+v", reg)
	}
	if stored.Email != "an@example.com" {
		t.Fatalf("expected trimmed email, got %q", stored.Email)
	}
	if !stored.DOB.Equal(time.Date(1995, 8, 20, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected dob %v", stored.DOB)
	}
	if stored.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}
}

func TestRegistrationService_Validation(t *testing.T) {
	called := false
	repo := &mockRegistrationRepository{createFn: func(ctx context.Context, reg *model.Registration) error {
		called = true
		return nil
	}}
	svc := NewRegistrationService(repo, nil, nil)

	valid := RegistrationInput{Email: "a@b.c", Phone: "1", FullName: "A", DOB: "20/08/1995", Plate: "P", VehicleType: "car"}
	cases := map[string]func(in *RegistrationInput){
		"missing email": func(in *RegistrationInput) { in.Email = "" },
		"blank phone":   func(in *RegistrationInput) { in.Phone = "   " },
		"missing plate": func(in *RegistrationInput) { in.Plate = "" },
		"bad dob":       func(in *RegistrationInput) { in.DOB = "yesterday" },
	}
	for name, mutate := range cases {
		in := valid
		mutate(&in)
		if _, err := svc.Register(context.Background(), in); !errors.Is(err, ErrInvalidRegistration) {
			t.Fatalf("%s: expected ErrInvalidRegistration, got %v", name, err)
		}
	}
	if called {
		t.Fatal("repository must not be called for invalid input")
	}

	if _, err := svc.Register(context.Background(), valid); err != nil {
		t.Fatalf("dd/mm/yyyy dob should be accepted: %v", err)
	}
}

func TestRegistrationService_StoreError(t *testing.T) {
	repo := &mockRegistrationRepository{createFn: func(ctx context.Context, reg *model.Registration) error {
		return repository.ErrStoreUnavailable
	}}
	svc := NewRegistrationService(repo, nil, nil)
	_, err := svc.Register(context.Background(), RegistrationInput{Email: "a", Phone: "b", FullName: "c", DOB: "2000-01-01", Plate: "d", VehicleType: "e"})
	if !errors.Is(err, repository.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestTrackingService_WithoutConsentRedacts(t *testing.T) {
	var stored *model.ClickEvent
	repo := &mockClickRepository{createFn: func(ctx context.Context, event *model.ClickEvent) error {
		stored = event
		event.ID = 99
		return nil
	}}
	locator := &stubLocator{result: &geo.Result{Country: "VN", City: "Da Nang", ISP: "FPT"}}
	svc := NewTrackingService(TrackingDeps{Repo: repo, Cipher: mustCipher(t), Locator: locator, IPSalt: "ip", UASalt: "ua"})

	res, err := svc.Record(context.Background(), TrackInput{
		Latitude:  f64(10.76),
		Longitude: f64(106.66),
		Accuracy:  f64(10),
		Consent:   false,
		ClientIP:  "203.0.113.7",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		ElementID: "register-btn",
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if res.ID != 99 {
		t.Fatalf("expected id 99, got %d", res.ID)
	}
	if stored.Latitude != nil || stored.Longitude != nil || stored.Accuracy != nil {
		t.Fatal("gps must not be stored without consent")
	}
	if stored.IPAddress != nil {
		t.Fatal("raw ip must not be stored without consent")
	}
	if stored.ConsentTimestamp != nil || stored.ConsentGiven {
		t.Fatal("consent fields must stay unset")
	}
	if stored.IPHash == nil || *stored.IPHash != privacy.Hash("203.0.113.7", "ip") {
		t.Fatal("ip hash must be stored unconditionally")
	}
	if stored.UserAgent == nil || len(*stored.UserAgent) != 64 {
		t.Fatal("user agent must be stored hashed")
	}
	if stored.DeviceType != "Mobile" || stored.Browser != "Safari" {
		t.Fatalf("unexpected classification %q/%q", stored.DeviceType, stored.Browser)
	}
	if stored.Country == nil || *stored.Country != "VN" || stored.ISP == nil {
		t.Fatal("geo enrichment must be stored regardless of consent")
	}
	if res.Geo == nil || res.Geo.City != "Da Nang" {
		t.Fatalf("expected geo echo, got %+v", res.Geo)
	}
	if stored.ElementID == nil || *stored.ElementID != "register-btn" || stored.PageURL != nil {
		t.Fatal("provenance fields not mapped")
	}
}

func TestTrackingService_WithConsentStores(t *testing.T) {
	var stored *model.ClickEvent
	repo := &mockClickRepository{createFn: func(ctx context.Context, event *model.ClickEvent) error {
		stored = event
		return nil
	}}
	cipher := mustCipher(t)
	notifier := &recordingNotifier{}
	svc := NewTrackingService(TrackingDeps{Repo: repo, Cipher: cipher, Notifier: notifier, IPSalt: "ip", UASalt: "ua"})

	_, err := svc.Record(context.Background(), TrackInput{
		Latitude:  f64(10.76),
		Longitude: f64(106.66),
		Accuracy:  f64(10),
		Consent:   true,
		ClientIP:  "::ffff:203.0.113.7",
	})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if stored.Latitude == nil || *stored.Latitude != 10.76 || *stored.Longitude != 106.66 || *stored.Accuracy != 10 {
		t.Fatal("gps triple must match the supplied values")
	}
	if stored.ConsentTimestamp == nil || !stored.ConsentGiven {
		t.Fatal("consent timestamp must be set")
	}
	if stored.IPAddress == nil || *stored.IPAddress == "203.0.113.7" {
		t.Fatal("raw ip must be stored sealed")
	}
	ip, ok := cipher.OpenIP(*stored.IPAddress)
	if !ok || ip != "203.0.113.7" {
		t.Fatalf("sealed ip does not open: %q %v", ip, ok)
	}
	if stored.Country != nil {
		t.Fatal("no locator configured, no geo expected")
	}
	if len(notifier.events) != 1 || !notifier.events[0].HasGPS || notifier.events[0].EventID == "" {
		t.Fatalf("expected one notification, got %+v", notifier.events)
	}
}

func TestTrackingService_PartialOrInvalidGPS(t *testing.T) {
	var stored *model.ClickEvent
	repo := &mockClickRepository{createFn: func(ctx context.Context, event *model.ClickEvent) error {
		stored = event
		return nil
	}}
	svc := NewTrackingService(TrackingDeps{Repo: repo, Cipher: mustCipher(t)})

	inputs := []TrackInput{
		{Consent: true, Latitude: f64(10), Longitude: f64(106)},
		{Consent: true, Latitude: f64(91), Longitude: f64(106), Accuracy: f64(5)},
		{Consent: true, Latitude: f64(10), Longitude: f64(106), Accuracy: f64(-1)},
	}
	for i, in := range inputs {
		if _, err := svc.Record(context.Background(), in); err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if stored.Latitude != nil || stored.Longitude != nil || stored.Accuracy != nil {
			t.Fatalf("case %d: gps must be stored as a complete valid triple only", i)
		}
		if stored.ConsentTimestamp == nil {
			t.Fatalf("case %d: consent timestamp still applies", i)
		}
	}
}

func TestTrackingService_PrivateIPSkipsLookup(t *testing.T) {
	locator := &stubLocator{result: &geo.Result{Country: "VN"}}
	svc := NewTrackingService(TrackingDeps{Repo: &mockClickRepository{}, Cipher: mustCipher(t), Locator: locator})

	res, err := svc.Record(context.Background(), TrackInput{ClientIP: "192.168.1.5"})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if locator.calls != 0 {
		t.Fatal("private addresses must not be looked up")
	}
	if res.Geo != nil {
		t.Fatal("no geo echo expected")
	}
}

func TestTrackingService_Failures(t *testing.T) {
	repo := &mockClickRepository{createFn: func(ctx context.Context, event *model.ClickEvent) error {
		return errors.New("insert failed")
	}}
	notifier := &recordingNotifier{}
	svc := NewTrackingService(TrackingDeps{Repo: repo, Cipher: mustCipher(t), Notifier: notifier})
	if _, err := svc.Record(context.Background(), TrackInput{ClientIP: "8.8.8.8"}); err == nil {
		t.Fatal("expected store error")
	}
	if len(notifier.events) != 0 {
		t.Fatal("nothing must be published for a failed insert")
	}

	failing := &recordingNotifier{err: errors.New("nats down")}
	svc = NewTrackingService(TrackingDeps{Repo: &mockClickRepository{}, Cipher: mustCipher(t), Notifier: failing})
	if _, err := svc.Record(context.Background(), TrackInput{ClientIP: "8.8.8.8"}); err != nil {
		t.Fatalf("publish failures must not fail the write: %v", err)
	}
}

func TestAnalyticsService_ListClicks(t *testing.T) {
	cipher := mustCipher(t)
	sealed, err := cipher.EncryptIP("198.51.100.23", "ip")
	if err != nil {
		t.Fatal(err)
	}
	stored := sealed.Sealed()
	legacy := "203.0.113.9"
	broken := "1.2.~nope"

	var gotFilter repository.ClickFilter
	var gotLimit, gotOffset int
	repo := &mockClickRepository{listFn: func(ctx context.Context, filter repository.ClickFilter, limit, offset int) ([]model.ClickEvent, int64, error) {
		gotFilter, gotLimit, gotOffset = filter, limit, offset
		return []model.ClickEvent{
			{ID: 3, IPAddress: &stored},
			{ID: 2, IPAddress: &legacy},
			{ID: 1, IPAddress: &broken},
		}, 43, nil
	}}
	loc := time.FixedZone("ICT", 7*3600)
	svc := NewAnalyticsService(repo, cipher, loc, nil)

	page, err := svc.ListClicks(context.Background(), ClickQuery{Page: 3, Limit: 20, StartDate: "2025-03-01", EndDate: "2025-03-02", Location: "gps"})
	if err != nil {
		t.Fatalf("ListClicks returned error: %v", err)
	}
	if gotLimit != 20 || gotOffset != 40 {
		t.Fatalf("expected limit 20 offset 40, got %d/%d", gotLimit, gotOffset)
	}
	if gotFilter.Location != repository.LocationGPS {
		t.Fatalf("expected gps filter, got %v", gotFilter.Location)
	}
	if !gotFilter.Since.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, loc)) || !gotFilter.Before.Equal(time.Date(2025, 3, 3, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected bounds %v %v", gotFilter.Since, gotFilter.Before)
	}
	if page.Total != 43 || page.Page != 3 || page.Limit != 20 {
		t.Fatalf("unexpected page metadata %+v", page)
	}
	if *page.Clicks[0].IPAddress != "198.51.100.23" || page.Clicks[0].IPMasked != "198.51.*.*" {
		t.Fatalf("sealed ip not revealed: %+v", page.Clicks[0])
	}
	if *page.Clicks[1].IPAddress != legacy {
		t.Fatal("legacy plaintext must pass through")
	}
	if page.Clicks[2].IPAddress != nil {
		t.Fatal("unopenable ip must be dropped")
	}
}

func TestAnalyticsService_ClampsAndValidates(t *testing.T) {
	var gotLimit, gotOffset int
	repo := &mockClickRepository{listFn: func(ctx context.Context, filter repository.ClickFilter, limit, offset int) ([]model.ClickEvent, int64, error) {
		gotLimit, gotOffset = limit, offset
		return nil, 0, nil
	}}
	svc := NewAnalyticsService(repo, mustCipher(t), time.UTC, nil)

	page, err := svc.ListClicks(context.Background(), ClickQuery{Page: -2, Limit: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if gotLimit != MaxPageSize || gotOffset != 0 || page.Page != 1 {
		t.Fatalf("expected clamp to page 1 limit %d, got %d/%d", MaxPageSize, gotLimit, gotOffset)
	}

	if _, err := svc.ListClicks(context.Background(), ClickQuery{}); err != nil || gotLimit != DefaultPageSize {
		t.Fatalf("expected default page size, got %d (%v)", gotLimit, err)
	}

	if _, err := svc.ListClicks(context.Background(), ClickQuery{StartDate: "03/01/2025"}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestAnalyticsService_DashboardStats(t *testing.T) {
	loc := time.FixedZone("ICT", 7*3600)
	var start, end time.Time
	repo := &mockClickRepository{statsFn: func(ctx context.Context, dayStart, dayEnd time.Time) (*model.DashboardStats, error) {
		start, end = dayStart, dayEnd
		return &model.DashboardStats{TotalClicks: 5}, nil
	}}
	svc := NewAnalyticsService(repo, mustCipher(t), loc, nil).(*analyticsService)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC) }

	stats, err := svc.DashboardStats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalClicks != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	// 20:00 UTC is already the next day at UTC+7.
	if !start.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, loc)) || end.Sub(start) != 24*time.Hour {
		t.Fatalf("unexpected day window %v - %v", start, end)
	}
}

func TestDecodeClickRecorded(t *testing.T) {
	ev, err := decodeClickRecorded([]byte(`{"id":5,"consent":true,"country":"VN"}`))
	if err != nil || ev.ID != 5 || !ev.Consent {
		t.Fatalf("unexpected decode %+v %v", ev, err)
	}
	if _, err := decodeClickRecorded([]byte(`{}`)); err == nil {
		t.Fatal("expected error for missing id")
	}
	if _, err := decodeClickRecorded([]byte(`nope`)); err == nil {
		t.Fatal("expected error for invalid json")
	}
}
