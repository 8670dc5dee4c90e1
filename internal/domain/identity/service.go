package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/cache"
)

const doctorDirectoryKey = "doctors:directory"

// errInvalidCredentials is shared by every login failure so the response
// does not reveal whether the identifier exists.
var errInvalidCredentials = apperr.Auth("invalid credentials")

// PasswordHasher is the credential capability the service relies on.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	Burn(password string)
}

type SessionIssuer interface {
	Issue(p auth.Principal) (string, time.Time, error)
}

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	hasher   PasswordHasher
	sessions SessionIssuer
	cache    cache.Store
	cacheTTL time.Duration
	logger   zerolog.Logger

	// dirMu orders directory cache writes against invalidations; dirGen
	// counts invalidations so a list read before one is never cached.
	dirMu  sync.Mutex
	dirGen uint64
}

type Option func(*Service)

// WithDirectoryCache serves ListDoctors from store for ttl.
func WithDirectoryCache(store cache.Store, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = store
		s.cacheTTL = ttl
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(patients PatientRepository, doctors DoctorRepository, hasher PasswordHasher, sessions SessionIssuer, opts ...Option) *Service {
	s := &Service{
		patients: patients,
		doctors:  doctors,
		hasher:   hasher,
		sessions: sessions,
		cache:    cache.NopStore{},
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoginResult is what a successful login returns to the client.
type LoginResult struct {
	Token      string
	ExpiresAt  time.Time
	ID         uuid.UUID
	Name       string
	Role       auth.Role
	NationalID string
}

// -- Patient --

type RegisterPatientInput struct {
	Name       string
	NationalID string
	Password   string
}

func (s *Service) RegisterPatient(ctx context.Context, in RegisterPatientInput) (*Patient, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(in.NationalID) == "" || in.Password == "" {
		return nil, apperr.Validation("name, national_id and password are required")
	}
	nid, err := NormalizeNationalID(in.NationalID)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	if _, err := s.patients.GetByNationalID(ctx, nid); err == nil {
		return nil, apperr.Conflict("national_id already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	p := &Patient{Name: name, NationalID: nid, PasswordHash: &hash}
	if err := s.patients.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("national_id already registered")
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) LoginPatient(ctx context.Context, nationalID, password string) (*LoginResult, error) {
	if strings.TrimSpace(nationalID) == "" || password == "" {
		return nil, apperr.Validation("national_id and password are required")
	}
	nid, err := NormalizeNationalID(nationalID)
	if err != nil {
		s.hasher.Burn(password)
		return nil, errInvalidCredentials
	}

	p, err := s.patients.GetByNationalID(ctx, nid)
	if errors.Is(err, ErrNotFound) {
		s.hasher.Burn(password)
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	hash := ""
	if p.HasCredential() {
		hash = *p.PasswordHash
	}
	if !s.hasher.Verify(password, hash) {
		return nil, errInvalidCredentials
	}

	principal := auth.Principal{ID: p.ID, Role: auth.RolePatient, NationalID: p.NationalID}
	token, exp, err := s.sessions.Issue(principal)
	if err != nil {
		return nil, fmt.Errorf("issue patient session: %w", err)
	}
	return &LoginResult{
		Token:      token,
		ExpiresAt:  exp,
		ID:         p.ID,
		Name:       p.Name,
		Role:       auth.RolePatient,
		NationalID: p.NationalID,
	}, nil
}

// FindPatientByNationalID returns the public projection of a patient.
func (s *Service) FindPatientByNationalID(ctx context.Context, raw string) (*PatientSummary, error) {
	nid, err := NormalizeNationalID(raw)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}
	p, err := s.patients.GetByNationalID(ctx, nid)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("no patient found with the given national_id")
	}
	if err != nil {
		return nil, err
	}
	sum := p.Summary()
	return &sum, nil
}

// PatientIDByNationalID resolves a booking target. Unknown ids are NotFound.
func (s *Service) PatientIDByNationalID(ctx context.Context, raw string) (uuid.UUID, error) {
	sum, err := s.FindPatientByNationalID(ctx, raw)
	if err != nil {
		// A malformed id cannot name anyone.
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
			return uuid.Nil, apperr.NotFound("patient not found")
		}
		return uuid.Nil, err
	}
	return sum.ID, nil
}

// QuickRegisterPatient creates a patient without a credential while a
// doctor books on their behalf.
func (s *Service) QuickRegisterPatient(ctx context.Context, name, nationalID string) (*Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(nationalID) == "" {
		return nil, apperr.Validation("name and national_id are required")
	}
	nid, err := NormalizeNationalID(nationalID)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	p := &Patient{Name: name, NationalID: nid}
	if err := s.patients.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("national_id already registered")
		}
		return nil, err
	}
	return p, nil
}

// -- Doctor --

type RegisterDoctorInput struct {
	Name          string
	LicenseNumber string
	Specialties   []string
	Email         string
	Password      string
}

func (in *RegisterDoctorInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.LicenseNumber = strings.TrimSpace(in.LicenseNumber)
	in.Email = strings.TrimSpace(in.Email)
	in.Specialties = NormalizeSpecialties(in.Specialties)
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email is not a valid address")
	}
	return nil
}

// RegisterDoctor is doctor self-registration. Email is optional and
// defaults to a placeholder derived from the license number.
func (s *Service) RegisterDoctor(ctx context.Context, in RegisterDoctorInput) (*Doctor, error) {
	in.normalize()
	if in.Name == "" || in.LicenseNumber == "" || len(in.Specialties) == 0 || in.Password == "" {
		return nil, apperr.Validation("name, license_number, specialties and password are required")
	}
	if in.Email == "" {
		in.Email = PlaceholderEmail(in.LicenseNumber)
	} else if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	if _, err := s.doctors.GetByLicense(ctx, in.LicenseNumber); err == nil {
		return nil, apperr.Conflict("license_number already registered")
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return s.createDoctor(ctx, in, "license_number or email already registered")
}

// CreateDoctor is administrative creation by an authenticated user. Email
// is required; the license number is the initial password when none is
// given.
func (s *Service) CreateDoctor(ctx context.Context, in RegisterDoctorInput) (*Doctor, error) {
	in.normalize()
	if in.Password == "" {
		in.Password = in.LicenseNumber
	}
	if in.Name == "" || in.LicenseNumber == "" || len(in.Specialties) == 0 || in.Email == "" {
		return nil, apperr.Validation("name, license_number, specialties and email are required")
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}

	exists, err := s.doctors.ExistsByLicenseOrEmail(ctx, in.LicenseNumber, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Conflict("license_number or email already registered to another doctor")
	}

	return s.createDoctor(ctx, in, "license_number or email already registered to another doctor")
}

func (s *Service) createDoctor(ctx context.Context, in RegisterDoctorInput, conflictMsg string) (*Doctor, error) {
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	d := &Doctor{
		Name:          in.Name,
		LicenseNumber: in.LicenseNumber,
		Specialties:   in.Specialties,
		Email:         in.Email,
		PasswordHash:  hash,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, apperr.Conflict("%s", conflictMsg)
		}
		return nil, err
	}

	s.invalidateDirectory(ctx)
	return d, nil
}

func (s *Service) LoginDoctor(ctx context.Context, license, password string) (*LoginResult, error) {
	license = strings.TrimSpace(license)
	if license == "" || password == "" {
		return nil, apperr.Validation("license_number and password are required")
	}

	d, err := s.doctors.GetByLicense(ctx, license)
	if errors.Is(err, ErrNotFound) {
		s.hasher.Burn(password)
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, d.PasswordHash) {
		return nil, errInvalidCredentials
	}

	token, exp, err := s.sessions.Issue(auth.Principal{ID: d.ID, Role: auth.RoleDoctor})
	if err != nil {
		return nil, fmt.Errorf("issue doctor session: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, ID: d.ID, Name: d.Name, Role: auth.RoleDoctor}, nil
}

// ListDoctors returns the doctor directory ordered by name. A cache
// failure is logged and the store is queried instead.
func (s *Service) ListDoctors(ctx context.Context) ([]DoctorSummary, error) {
	var cached []DoctorSummary
	ok, err := cache.LoadJSON(ctx, s.cache, doctorDirectoryKey, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Msg("doctor directory cache read failed")
	}
	if ok {
		return cached, nil
	}

	gen := s.directoryGeneration()
	doctors, err := s.doctors.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DoctorSummary, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, d.Summary())
	}

	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	if s.dirGen != gen {
		return out, nil
	}
	if err := cache.SaveJSON(ctx, s.cache, doctorDirectoryKey, out, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Msg("doctor directory cache write failed")
	}
	return out, nil
}

// DoctorExists reports whether id names a registered doctor.
func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.doctors.Exists(ctx, id)
}

func (s *Service) directoryGeneration() uint64 {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	return s.dirGen
}

func (s *Service) invalidateDirectory(ctx context.Context) {
	s.dirMu.Lock()
	defer s.dirMu.Unlock()
	s.dirGen++
	if err := s.cache.Delete(ctx, doctorDirectoryKey); err != nil {
		s.logger.Warn().Err(err).Msg("doctor directory cache invalidation failed")
	}
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", apperr.Validation("password must be at most %d bytes", auth.MaxPasswordBytes)
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}
