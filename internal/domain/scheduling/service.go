package scheduling

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// Directory resolves the people an appointment refers to.
type Directory interface {
	// PatientIDByNationalID returns an apperr NotFound for unknown ids.
	PatientIDByNationalID(ctx context.Context, nationalID string) (uuid.UUID, error)
	DoctorExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Defaults applied to every new appointment.
type Defaults struct {
	DurationMinutes int
	InsurancePlanID int64
}

const (
	defaultDurationMinutes = 30
	defaultInsurancePlanID = 1
)

type Service struct {
	appointments AppointmentRepository
	directory    Directory
	defaults     Defaults
	logger       zerolog.Logger
}

func NewService(appts AppointmentRepository, dir Directory, defaults Defaults, logger zerolog.Logger) *Service {
	if defaults.DurationMinutes <= 0 {
		defaults.DurationMinutes = defaultDurationMinutes
	}
	if defaults.InsurancePlanID <= 0 {
		defaults.InsurancePlanID = defaultInsurancePlanID
	}
	return &Service{appointments: appts, directory: dir, defaults: defaults, logger: logger}
}

type CreateAppointmentInput struct {
	DoctorID          string
	PatientNationalID string
	ScheduledAt       string
	DesiredSpecialty  string
}

func (s *Service) CreateAppointment(ctx context.Context, p auth.Principal, in CreateAppointmentInput) (*Appointment, error) {
	specialty := strings.TrimSpace(in.DesiredSpecialty)
	if strings.TrimSpace(in.DoctorID) == "" || strings.TrimSpace(in.ScheduledAt) == "" || specialty == "" {
		return nil, apperr.Validation("doctor_id, scheduled_at and desired_specialty are required")
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(in.DoctorID))
	if err != nil {
		return nil, apperr.Validation("doctor_id is not a valid id")
	}
	at, err := ParseScheduledAt(in.ScheduledAt)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	target, err := bookingPolicy(p, in.PatientNationalID)
	if err != nil {
		return nil, err
	}
	patientID := target.PatientID
	if patientID == uuid.Nil {
		patientID, err = s.directory.PatientIDByNationalID(ctx, target.NationalID)
		if err != nil {
			return nil, err
		}
	}

	ok, err := s.directory.DoctorExists(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}

	if id, found, err := s.appointments.FindActiveForDoctor(ctx, doctorID, at); err != nil {
		return nil, err
	} else if found {
		return nil, apperr.Conflict("the doctor already has an appointment at this time").With("conflict_id", id)
	}
	if id, found, err := s.appointments.FindActiveForPatient(ctx, patientID, at); err != nil {
		return nil, err
	} else if found {
		return nil, apperr.Conflict("the patient already has an appointment at this time").With("conflict_id", id)
	}

	a := &Appointment{
		DoctorID:         doctorID,
		PatientID:        patientID,
		ScheduledAt:      at,
		DesiredSpecialty: specialty,
		Status:           StatusPending,
		DurationMinutes:  s.defaults.DurationMinutes,
		InsurancePlanID:  s.defaults.InsurancePlanID,
	}
	if err := s.appointments.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			s.logger.Info().
				Str("doctor_id", doctorID.String()).
				Time("scheduled_at", at).
				Msg("concurrent booking rejected by slot guard")
			return nil, apperr.Conflict("this time slot was just booked")
		case errors.Is(err, ErrMissingParty):
			return nil, apperr.NotFound("doctor or patient not found")
		}
		return nil, err
	}
	return a, nil
}

// ListQuery is the raw query-string filter set of ListAppointments.
type ListQuery struct {
	DoctorID string
	Status   string
	Date     string
}

func (q ListQuery) parse() (ListFilter, error) {
	var f ListFilter
	if raw := strings.TrimSpace(q.DoctorID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return f, apperr.Validation("doctor_id is not a valid id")
		}
		f.DoctorID = id
	}
	if raw := strings.TrimSpace(q.Status); raw != "" {
		st, ok := ParseStatus(raw)
		if !ok {
			return f, apperr.Validation("status must be one of Pending, Confirmed, Completed, Cancelled")
		}
		f.Status = st
	}
	if raw := strings.TrimSpace(q.Date); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return f, apperr.Validation("%s", err.Error())
		}
		f.Date = &d
	}
	return f, nil
}

// ListAppointments returns the caller's appointments, most recent first.
// Filters sent by the caller can narrow but never widen what they see.
func (s *Service) ListAppointments(ctx context.Context, p auth.Principal, q ListQuery) ([]*AppointmentView, error) {
	f, err := q.parse()
	if err != nil {
		return nil, err
	}
	return s.appointments.List(ctx, listPolicy(p, f))
}

func (s *Service) UpdateStatus(ctx context.Context, p auth.Principal, rawID, rawStatus string) error {
	owner, err := statusPolicy(p)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rawStatus) == "" {
		return apperr.Validation("status is required")
	}
	status, ok := ParseStatus(rawStatus)
	if !ok {
		return apperr.Validation("status must be one of Pending, Confirmed, Completed, Cancelled")
	}
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return errAppointmentNotFound
	}

	n, err := s.appointments.UpdateStatus(ctx, id, status, owner)
	if errors.Is(err, ErrSlotTaken) {
		return apperr.Conflict("another active appointment already holds this time slot")
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errAppointmentNotFound
	}
	return nil
}

// DeleteAppointment hard-deletes an appointment. Patients use it to cancel
// and doctors to remove; both are the same operation.
func (s *Service) DeleteAppointment(ctx context.Context, p auth.Principal, rawID string) error {
	id, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		return errAppointmentNotFound
	}
	n, err := s.appointments.Delete(ctx, id, deletePolicy(p))
	if err != nil {
		return err
	}
	if n == 0 {
		return errAppointmentNotFound
	}
	return nil
}

// Absent and not-owned appointments are reported the same way.
var errAppointmentNotFound = apperr.NotFound("appointment not found or not accessible")
