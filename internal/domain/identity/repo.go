package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Repository errors. Services translate them into caller-facing kinds.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type PatientRepository interface {
	// Create assigns the ID and CreatedAt. It returns ErrDuplicate when the
	// national id is taken.
	Create(ctx context.Context, p *Patient) error
	GetByNationalID(ctx context.Context, nationalID string) (*Patient, error)
}

type DoctorRepository interface {
	// Create assigns the ID and CreatedAt. It returns ErrDuplicate when the
	// license number or email is taken.
	Create(ctx context.Context, d *Doctor) error
	GetByLicense(ctx context.Context, license string) (*Doctor, error)
	// ExistsByLicenseOrEmail reports whether any doctor holds license or email.
	ExistsByLicenseOrEmail(ctx context.Context, license, email string) (bool, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// List returns every doctor ordered by name.
	List(ctx context.Context) ([]*Doctor, error)
}
