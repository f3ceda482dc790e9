package repository

import (
	"context"

	"github.com/sifan077/TrackPoint/internal/app/model"
)

// RegistrationRepository stores sign-up submissions.
type RegistrationRepository interface {
	Create(ctx context.Context, reg *model.Registration) error
}

type registrationRepository struct {
	store *Store
}

func NewRegistrationRepository(store *Store) RegistrationRepository {
	return &registrationRepository{store: store}
}

func (r *registrationRepository) Create(ctx context.Context, reg *model.Registration) error {
	db, cancel := r.store.conn(ctx)
	defer cancel()
	return wrapErr("insert registration", db.Create(reg).Error)
}
