package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ParseStatus accepts the four status names exactly as spelled.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.TrimSpace(s))
	return st, validStatuses[st]
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool { return s != StatusCancelled }

// Appointment maps to the appointments table. ScheduledAt is a wall-clock
// time with no zone; it is always held in UTC so that pgx stores the same
// wall clock it was given.
type Appointment struct {
	ID               uuid.UUID `db:"id" json:"id"`
	DoctorID         uuid.UUID `db:"doctor_id" json:"doctor_id"`
	PatientID        uuid.UUID `db:"patient_id" json:"patient_id"`
	ScheduledAt      time.Time `db:"scheduled_at" json:"scheduled_at"`
	DesiredSpecialty string    `db:"desired_specialty" json:"desired_specialty"`
	Status           Status    `db:"status" json:"status"`
	DurationMinutes  int       `db:"duration_minutes" json:"duration_minutes"`
	InsurancePlanID  int64     `db:"insurance_plan_id" json:"insurance_plan_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// AppointmentView is one listed appointment joined with the doctor and
// patient it refers to.
type AppointmentView struct {
	ID                uuid.UUID `json:"id"`
	ScheduledAt       WallClock `json:"scheduled_at"`
	Status            Status    `json:"status"`
	DesiredSpecialty  string    `json:"desired_specialty"`
	DurationMinutes   int       `json:"duration_minutes"`
	DoctorID          uuid.UUID `json:"doctor_id"`
	DoctorName        string    `json:"doctor_name"`
	DoctorLicense     string    `json:"doctor_license_number"`
	PatientID         uuid.UUID `json:"patient_id"`
	PatientName       string    `json:"patient_name"`
	PatientNationalID string    `json:"patient_national_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// WallClockLayout is how scheduled times are rendered: no zone designator.
const WallClockLayout = "2006-01-02T15:04:05"

// WallClock renders a scheduled time without a zone.
type WallClock time.Time

func (w WallClock) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(w).Format(WallClockLayout) + `"`), nil
}

// OwnerFilter restricts a mutation to rows owned by a doctor or a patient.
// A nil id places no restriction on that column.
type OwnerFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
}

// ListFilter is the conjunction of filters applied to ListAppointments.
// Zero values mean "any".
type ListFilter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    Status
	// Date selects one calendar day; only its year, month and day are used.
	Date *time.Time
}

// DateLayout is the format of the date query filter.
const DateLayout = "2006-01-02"

var scheduledAtLayouts = []string{
	WallClockLayout,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseScheduledAt parses a requested appointment time. Zone-less layouts
// are read as wall clock; an RFC 3339 value keeps its wall clock and drops
// the offset. The result is truncated to the second and held in UTC.
func ParseScheduledAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range scheduledAtLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return wallClock(t), nil
	}
	return time.Time{}, fmt.Errorf("scheduled_at must look like %s", WallClockLayout)
}

// ParseDate parses the YYYY-MM-DD list filter.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must look like %s", DateLayout)
	}
	return t, nil
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// dayBounds returns the half-open [start, end) range covering t's day.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
