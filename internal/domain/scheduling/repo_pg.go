package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Partial unique indexes from migrations/002_booking_guards.sql.
const (
	doctorSlotIndex  = "appointments_doctor_slot_active"
	patientSlotIndex = "appointments_patient_slot_active"
)

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func isSlotViolation(err error) bool {
	return db.IsUniqueViolation(err, doctorSlotIndex) || db.IsUniqueViolation(err, patientSlotIndex)
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, scheduled_at, desired_specialty,
			status, duration_minutes, insurance_plan_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		a.ID, a.DoctorID, a.PatientID, a.ScheduledAt, a.DesiredSpecialty,
		string(a.Status), a.DurationMinutes, a.InsurancePlanID,
	).Scan(&a.CreatedAt)
	if isSlotViolation(err) {
		return ErrSlotTaken
	}
	if db.IsForeignKeyViolation(err) {
		return ErrMissingParty
	}
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) findActive(ctx context.Context, column string, owner uuid.UUID, at time.Time) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id FROM appointments
		WHERE `+column+` = $1 AND scheduled_at = $2 AND status <> $3
		LIMIT 1`,
		owner, at, string(StatusCancelled),
	).Scan(&id)
	if db.IsNoRows(err) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("find active appointment by %s: %w", column, err)
	}
	return id, true, nil
}

func (r *appointmentRepoPG) FindActiveForDoctor(ctx context.Context, doctorID uuid.UUID, at time.Time) (uuid.UUID, bool, error) {
	return r.findActive(ctx, "doctor_id", doctorID, at)
}

func (r *appointmentRepoPG) FindActiveForPatient(ctx context.Context, patientID uuid.UUID, at time.Time) (uuid.UUID, bool, error) {
	return r.findActive(ctx, "patient_id", patientID, at)
}

// whereBuilder accumulates AND-ed predicates with numbered placeholders.
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, arg interface{}) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (r *appointmentRepoPG) List(ctx context.Context, f ListFilter) ([]*AppointmentView, error) {
	var w whereBuilder
	if f.DoctorID != uuid.Nil {
		w.add("a.doctor_id = $%d", f.DoctorID)
	}
	if f.PatientID != uuid.Nil {
		w.add("a.patient_id = $%d", f.PatientID)
	}
	if f.Status != "" {
		w.add("a.status = $%d", string(f.Status))
	}
	if f.Date != nil {
		start, end := dayBounds(*f.Date)
		w.add("a.scheduled_at >= $%d", start)
		w.add("a.scheduled_at < $%d", end)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT a.id, a.scheduled_at, a.status, a.desired_specialty, a.duration_minutes, a.created_at,
			d.id, d.name, d.license_number,
			p.id, p.name, p.national_id
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id`+w.sql()+`
		ORDER BY a.scheduled_at DESC, a.created_at DESC`,
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := []*AppointmentView{}
	for rows.Next() {
		var v AppointmentView
		var at time.Time
		var status string
		if err := rows.Scan(&v.ID, &at, &status, &v.DesiredSpecialty, &v.DurationMinutes, &v.CreatedAt,
			&v.DoctorID, &v.DoctorName, &v.DoctorLicense,
			&v.PatientID, &v.PatientName, &v.PatientNationalID); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		v.ScheduledAt = WallClock(at)
		v.Status = Status(status)
		items = append(items, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return items, nil
}

func ownerClause(w *whereBuilder, owner OwnerFilter) {
	if owner.DoctorID != uuid.Nil {
		w.add("doctor_id = $%d", owner.DoctorID)
	}
	if owner.PatientID != uuid.Nil {
		w.add("patient_id = $%d", owner.PatientID)
	}
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, owner OwnerFilter) (int64, error) {
	w := whereBuilder{args: []interface{}{string(status)}}
	w.add("id = $%d", id)
	ownerClause(&w, owner)

	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointments SET status = $1`+w.sql(), w.args...)
	if isSlotViolation(err) {
		return 0, ErrSlotTaken
	}
	if err != nil {
		return 0, fmt.Errorf("update appointment status: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id uuid.UUID, owner OwnerFilter) (int64, error) {
	var w whereBuilder
	w.add("id = $%d", id)
	ownerClause(&w, owner)

	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments`+w.sql(), w.args...)
	if err != nil {
		return 0, fmt.Errorf("delete appointment: %w", err)
	}
	return tag.RowsAffected(), nil
}
