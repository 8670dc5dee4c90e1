package identity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// NationalIDLength is the number of digits in a normalized national id (CPF).
const NationalIDLength = 11

// Patient maps to the patients table. PasswordHash is nil for patients
// created by quick registration, who cannot log in.
type Patient struct {
	ID           uuid.UUID `db:"id" json:"id"`
	NationalID   string    `db:"national_id" json:"national_id"`
	Name         string    `db:"name" json:"name"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PatientSummary is the public projection of a patient. It never carries
// credentials.
type PatientSummary struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	NationalID string    `json:"national_id"`
}

func (p *Patient) Summary() PatientSummary {
	return PatientSummary{ID: p.ID, Name: p.Name, NationalID: p.NationalID}
}

func (p *Patient) HasCredential() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// Doctor maps to the doctors table.
type Doctor struct {
	ID            uuid.UUID `db:"id" json:"id"`
	LicenseNumber string    `db:"license_number" json:"license_number"`
	Name          string    `db:"name" json:"name"`
	Specialties   []string  `db:"specialties" json:"specialties"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// DoctorSummary is one entry of the doctor directory.
type DoctorSummary struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	LicenseNumber string    `json:"license_number"`
	Specialties   []string  `json:"specialties"`
	Email         string    `json:"email"`
}

func (d *Doctor) Summary() DoctorSummary {
	return DoctorSummary{
		ID:            d.ID,
		Name:          d.Name,
		LicenseNumber: d.LicenseNumber,
		Specialties:   d.Specialties,
		Email:         d.Email,
	}
}

// PlaceholderEmail is stored for self-registered doctors who give no email.
func PlaceholderEmail(license string) string {
	return license + "@crm.com.br"
}

// NormalizeNationalID strips everything but digits and checks the length.
// Check digits are not verified.
func NormalizeNationalID(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) != NationalIDLength {
		return "", fmt.Errorf("national_id must have %d digits", NationalIDLength)
	}
	return id, nil
}

// NormalizeSpecialties trims labels, drops empty ones and removes
// case-insensitive duplicates, keeping the first spelling seen.
func NormalizeSpecialties(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// SpecialtyList accepts either a JSON array of labels or a single
// comma-separated string, the form older clients send.
type SpecialtyList []string

func (l *SpecialtyList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("specialties must be a list of strings or a comma-separated string")
	}
	*l = strings.Split(joined, ",")
	return nil
}
