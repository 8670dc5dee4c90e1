package scheduling

import (
	"strings"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

// bookingTarget names the patient an appointment is booked for. Exactly
// one of PatientID and NationalID is set.
type bookingTarget struct {
	PatientID  uuid.UUID
	NationalID string
}

// bookingPolicy decides whose appointment is being created. Patients
// always book for themselves and any national id they send is ignored.
func bookingPolicy(p auth.Principal, nationalID string) (bookingTarget, error) {
	if p.IsPatient() {
		return bookingTarget{PatientID: p.ID}, nil
	}
	nationalID = strings.TrimSpace(nationalID)
	if nationalID == "" {
		return bookingTarget{}, apperr.Validation("patient_national_id is required when booking for a patient")
	}
	return bookingTarget{NationalID: nationalID}, nil
}

// listPolicy pins the ownership filter to the caller. A doctor's own id
// replaces any doctor_id filter they sent.
func listPolicy(p auth.Principal, f ListFilter) ListFilter {
	switch p.Role {
	case auth.RoleDoctor:
		f.DoctorID = p.ID
	case auth.RolePatient:
		f.PatientID = p.ID
	}
	return f
}

// statusPolicy allows only doctors, and only on their own appointments.
func statusPolicy(p auth.Principal) (OwnerFilter, error) {
	if !p.IsDoctor() {
		return OwnerFilter{}, apperr.Forbidden("only the doctor can change an appointment's status")
	}
	return OwnerFilter{DoctorID: p.ID}, nil
}

// deletePolicy restricts deletion to the appointment's patient or doctor.
func deletePolicy(p auth.Principal) OwnerFilter {
	switch p.Role {
	case auth.RolePatient:
		return OwnerFilter{PatientID: p.ID}
	case auth.RoleDoctor:
		return OwnerFilter{DoctorID: p.ID}
	default:
		return OwnerFilter{}
	}
}
