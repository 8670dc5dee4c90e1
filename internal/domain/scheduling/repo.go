package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrSlotTaken is returned when the store's booking guard rejects a row
// because the doctor or patient already holds an active appointment at
// that time.
var ErrSlotTaken = errors.New("time slot already booked")

// ErrMissingParty is returned when the referenced doctor or patient row is
// gone by the time the appointment is written.
var ErrMissingParty = errors.New("referenced doctor or patient does not exist")

type AppointmentRepository interface {
	// Create assigns the ID and CreatedAt.
	Create(ctx context.Context, a *Appointment) error
	// FindActiveForDoctor returns the id of a non-cancelled appointment the
	// doctor holds at exactly at, if any.
	FindActiveForDoctor(ctx context.Context, doctorID uuid.UUID, at time.Time) (uuid.UUID, bool, error)
	FindActiveForPatient(ctx context.Context, patientID uuid.UUID, at time.Time) (uuid.UUID, bool, error)
	// List returns matching appointments, most recent first.
	List(ctx context.Context, f ListFilter) ([]*AppointmentView, error)
	// UpdateStatus and Delete report the number of rows affected.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, owner OwnerFilter) (int64, error)
	Delete(ctx context.Context, id uuid.UUID, owner OwnerFilter) (int64, error)
}
