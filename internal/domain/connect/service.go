package connect

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/carelink/api/internal/domain/account"
	"github.com/carelink/api/internal/platform/auth"
)

var (
	ErrRequestNotFound = errors.New("connection request not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrNotADoctor      = errors.New("target account is not an approved doctor")
	ErrRequestExists   = errors.New("a pending request to this doctor already exists")
	ErrWrongDoctor     = errors.New("request is addressed to a different doctor")
	ErrRequestClosed   = errors.New("request is no longer pending")
	ErrCodeInvalid     = errors.New("confirmation code is invalid")
	ErrCodeExpired     = errors.New("confirmation code has expired")
)

// RequestTTL is how long a confirmation code stays usable. The TOTP
// validation window below must cover the same span.
const RequestTTL = 5 * time.Minute

const codePeriod = 30

var codeValidateOpts = totp.ValidateOpts{
	Period:    codePeriod,
	Skew:      uint(RequestTTL/time.Second) / codePeriod,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// Directory resolves and searches accounts. Satisfied by the account
// repository.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error)
	ListByRole(ctx context.Context, role string, limit, offset int) ([]*account.Account, int, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*account.Account, int, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string) error
}

type Mailer interface {
	SendTemplate(ctx context.Context, templateID string, data map[string]string, to string) error
}

type Service struct {
	repo      Repository
	directory Directory
	notifier  Notifier
	mailer    Mailer
}

func NewService(repo Repository, directory Directory, notifier Notifier, mailer Mailer) *Service {
	return &Service{repo: repo, directory: directory, notifier: notifier, mailer: mailer}
}

// RequestConnection opens a pending doctor link and mails the patient a
// six digit code. The patient hands the code to the doctor, who
// confirms it.
func (s *Service) RequestConnection(ctx context.Context, patientID, doctorID uuid.UUID) (*ConnectionRequest, error) {
	patient, err := s.directory.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.directory.GetByID(ctx, doctorID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, err
	}
	if doctor.Role != auth.RoleDoctor {
		return nil, ErrNotADoctor
	}
	if _, err := s.repo.FindPending(ctx, patientID, doctorID); err == nil {
		return nil, ErrRequestExists
	} else if !errors.Is(err, ErrRequestNotFound) {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "carelink",
		AccountName: patient.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("generating confirmation secret: %w", err)
	}
	code, err := totp.GenerateCodeCustom(key.Secret(), time.Now(), codeValidateOpts)
	if err != nil {
		return nil, fmt.Errorf("deriving confirmation code: %w", err)
	}

	req := &ConnectionRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		Secret:    key.Secret(),
		Status:    StatusPending,
		ExpiresAt: time.Now().Add(RequestTTL),
	}
	if err := s.repo.Create(ctx, req); err != nil {
		return nil, err
	}

	if err := s.mailer.SendTemplate(ctx, "connect-code", map[string]string{
		"patient_name": patient.Name,
		"doctor_name":  doctor.Name,
		"code":         code,
		"expires_in":   strconv.Itoa(int(RequestTTL / time.Minute)),
	}, patient.Email); err != nil {
		return nil, fmt.Errorf("mailing confirmation code: %w", err)
	}
	_ = s.notifier.Notify(ctx, doctorID, patientID, "connection_request",
		"New patient connection",
		fmt.Sprintf("%s wants to connect with you", patient.Name))

	return req, nil
}

// ConfirmConnection validates the code against the request's secret
// within the allowed window.
func (s *Service) ConfirmConnection(ctx context.Context, doctorID, requestID uuid.UUID, code string) (*ConnectionRequest, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.DoctorID != doctorID {
		return nil, ErrWrongDoctor
	}
	if req.Status != StatusPending {
		return nil, ErrRequestClosed
	}
	if time.Now().After(req.ExpiresAt) {
		_ = s.repo.UpdateStatus(ctx, req.ID, StatusExpired, nil)
		return nil, ErrCodeExpired
	}

	ok, err := totp.ValidateCustom(code, req.Secret, time.Now(), codeValidateOpts)
	if err != nil || !ok {
		return nil, ErrCodeInvalid
	}

	now := time.Now()
	if err := s.repo.UpdateStatus(ctx, req.ID, StatusConfirmed, &now); err != nil {
		return nil, err
	}
	req.Status = StatusConfirmed
	req.ConfirmedAt = &now

	_ = s.notifier.Notify(ctx, req.PatientID, doctorID, "connection_request",
		"Doctor connected",
		"Your doctor confirmed the connection")

	return req, nil
}

// SearchDoctors finds approved doctors by name, email, or specialty.
// An empty query lists all doctors.
func (s *Service) SearchDoctors(ctx context.Context, query string, limit, offset int) ([]*account.Account, int, error) {
	if query == "" {
		return s.directory.ListByRole(ctx, auth.RoleDoctor, limit, offset)
	}
	matches, _, err := s.directory.Search(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	var doctors []*account.Account
	for _, a := range matches {
		if a.Role == auth.RoleDoctor {
			doctors = append(doctors, a)
		}
	}
	return doctors, len(doctors), nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*ConnectionRequest, error) {
	return s.repo.ListForPatient(ctx, patientID)
}

func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, status string) ([]*ConnectionRequest, error) {
	return s.repo.ListForDoctor(ctx, doctorID, status)
}
