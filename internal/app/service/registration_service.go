package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/TrackPoint/internal/app/model"
	"github.com/sifan077/TrackPoint/internal/app/repository"
	metrics "github.com/sifan077/TrackPoint/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ErrInvalidRegistration is returned when a required field is missing or malformed.
var ErrInvalidRegistration = errors.New("invalid registration")

var dobLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02T15:04:05Z07:00"}

// RegistrationService stores sign-up submissions.
type RegistrationService interface {
	Register(ctx context.Context, input RegistrationInput) (*model.Registration, error)
}

// RegistrationInput is the raw form submission.
type RegistrationInput struct {
	Email       string
	Phone       string
	FullName    string
	DOB         string
	Plate       string
	VehicleType string
}

type registrationService struct {
	repo    repository.RegistrationRepository
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewRegistrationService(repo repository.RegistrationRepository, m *metrics.Metrics, log *zap.Logger) RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &registrationService{repo: repo, metrics: m, log: log, now: time.Now}
}

func (s *registrationService) Register(ctx context.Context, input RegistrationInput) (*model.Registration, error) {
	reg, err := input.validate()
	if err != nil {
		return nil, err
	}
	reg.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, reg); err != nil {
		s.log.Error("registration insert failed", zap.Error(err))
		return nil, fmt.Errorf("create registration: %w", err)
	}

	s.metrics.RegistrationStored()
	s.log.Info("registration stored", zap.Int64("id", reg.ID))
	return reg, nil
}

func (in RegistrationInput) validate() (*model.Registration, error) {
	fields := []string{in.Email, in.Phone, in.FullName, in.DOB, in.Plate, in.VehicleType}
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return nil, ErrInvalidRegistration
		}
	}

	dob, ok := parseDOB(strings.TrimSpace(in.DOB))
	if !ok {
		return nil, ErrInvalidRegistration
	}

	return &model.Registration{
		Email:       strings.TrimSpace(in.Email),
		Phone:       strings.TrimSpace(in.Phone),
		FullName:    strings.TrimSpace(in.FullName),
		DOB:         dob,
		Plate:       strings.TrimSpace(in.Plate),
		VehicleType: strings.TrimSpace(in.VehicleType),
	}, nil
}

func parseDOB(raw string) (time.Time, bool) {
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
