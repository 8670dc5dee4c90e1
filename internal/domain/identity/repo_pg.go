package identity

import (
	"context"
	"fmt"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, national_id, name, password_hash, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, national_id, name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		p.ID, p.NationalID, p.Name, p.PasswordHash,
	).Scan(&p.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByNationalID(ctx context.Context, nationalID string) (*Patient, error) {
	var p Patient
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE national_id = $1`, nationalID,
	).Scan(&p.ID, &p.NationalID, &p.Name, &p.PasswordHash, &p.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select patient by national id: %w", err)
	}
	return &p, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, license_number, name, specialties, email, password_hash, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.LicenseNumber, &d.Name, &d.Specialties, &d.Email, &d.PasswordHash, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, license_number, name, specialties, email, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		d.ID, d.LicenseNumber, d.Name, d.Specialties, d.Email, d.PasswordHash,
	).Scan(&d.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return fmt.Errorf("%w (%s)", ErrDuplicate, db.ConstraintName(err))
	}
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByLicense(ctx context.Context, license string) (*Doctor, error) {
	d, err := scanDoctor(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE license_number = $1`, license))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select doctor by license: %w", err)
	}
	return d, nil
}

func (r *doctorRepoPG) ExistsByLicenseOrEmail(ctx context.Context, license, email string) (bool, error) {
	var exists bool
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctors WHERE license_number = $1 OR lower(email) = lower($2))`,
		license, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check doctor uniqueness: %w", err)
	}
	return exists, nil
}

func (r *doctorRepoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check doctor exists: %w", err)
	}
	return exists, nil
}

func (r *doctorRepoPG) List(ctx context.Context) ([]*Doctor, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+doctorCols+` FROM doctors ORDER BY name, license_number`)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate doctors: %w", err)
	}
	return out, nil
}
