package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/platform/auth"
	"github.com/carelink/api/internal/platform/realtime"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrResetInvalid       = errors.New("reset token is invalid or expired")
	ErrDemoDisabled       = errors.New("demo login is disabled")
)

// Mailer sends transactional email rendered from a named template.
type Mailer interface {
	SendTemplate(ctx context.Context, templateID string, data map[string]string, to string) error
}

type RegisterInput struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	Phone         *string `json:"phone,omitempty"`
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber *string `json:"license_number,omitempty"`
}

type UpdateProfileInput struct {
	Name          string  `json:"name"`
	Phone         *string `json:"phone,omitempty"`
	PhotoURL      *string `json:"photo_url,omitempty"`
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber *string `json:"license_number,omitempty"`
}

type Service struct {
	repo             Repository
	jwtCfg           auth.JWTConfig
	mailer           Mailer
	publisher        realtime.EventPublisher
	appURL           string
	demoLoginEnabled bool
}

func NewService(repo Repository, jwtCfg auth.JWTConfig, mailer Mailer, publisher realtime.EventPublisher, appURL string, demoLoginEnabled bool) *Service {
	return &Service{
		repo:             repo,
		jwtCfg:           jwtCfg,
		mailer:           mailer,
		publisher:        publisher,
		appURL:           appURL,
		demoLoginEnabled: demoLoginEnabled,
	}
}

// Register creates a new account. Self-registration is limited to the
// patient role; accounts registering as doctors start as pending_doctor
// until an admin approves them.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Session, error) {
	if input.Email == "" || input.Name == "" {
		return nil, fmt.Errorf("email and name are required")
	}
	role := input.Role
	switch role {
	case "", auth.RolePatient:
		role = auth.RolePatient
	case auth.RoleDoctor:
		role = auth.RolePendingDoctor
	default:
		return nil, fmt.Errorf("invalid role: %s", input.Role)
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Email:         input.Email,
		Name:          input.Name,
		PasswordHash:  hash,
		Role:          role,
		Phone:         input.Phone,
		Specialty:     input.Specialty,
		LicenseNumber: input.LicenseNumber,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return s.sessionFor(a)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	a, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.sessionFor(a)
}

// DemoLogin signs in a pre-seeded demo account by email without a
// password check. Refused unless explicitly enabled in configuration.
func (s *Service) DemoLogin(ctx context.Context, email string) (*Session, error) {
	if !s.demoLoginEnabled {
		return nil, ErrDemoDisabled
	}
	a, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	return s.sessionFor(a)
}

func (s *Service) sessionFor(a *Account) (*Session, error) {
	token, err := auth.IssueToken(s.jwtCfg, a.ID, a.Email, a.Name, a.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return &Session{Token: token, Account: a}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != "" {
		a.Name = input.Name
	}
	if input.Phone != nil {
		a.Phone = input.Phone
	}
	if input.PhotoURL != nil {
		a.PhotoURL = input.PhotoURL
	}
	if input.Specialty != nil {
		a.Specialty = input.Specialty
	}
	if input.LicenseNumber != nil {
		a.LicenseNumber = input.LicenseNumber
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(a.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.repo.UpdatePassword(ctx, id, hash)
}

// RequestPasswordReset issues a single-use reset token valid for one
// hour and mails it to the account. Unknown emails are silently
// accepted so the endpoint does not reveal which addresses exist.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	a, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generating reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	pr := &PasswordReset{
		AccountID: a.ID,
		TokenHash: hashToken(token),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.repo.CreatePasswordReset(ctx, pr); err != nil {
		return err
	}
	return s.mailer.SendTemplate(ctx, "password-reset", map[string]string{
		"reset_link": fmt.Sprintf("%s/reset-password?token=%s", s.appURL, token),
	}, a.Email)
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	pr, err := s.repo.GetPasswordReset(ctx, hashToken(token))
	if err != nil {
		return err
	}
	if pr.UsedAt != nil || time.Now().After(pr.ExpiresAt) {
		return ErrResetInvalid
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, pr.AccountID, hash); err != nil {
		return err
	}
	return s.repo.MarkResetUsed(ctx, pr.ID)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) SetPresence(ctx context.Context, id uuid.UUID, online bool) error {
	if err := s.repo.SetPresence(ctx, id, online); err != nil {
		return err
	}
	s.publisher.Publish(realtime.NewEvent(realtime.EventPresenceChanged, realtime.UserTopic(id), map[string]interface{}{
		"account_id": id,
		"online":     online,
	}))
	return nil
}

// ApproveDoctor promotes a pending_doctor account to doctor.
func (s *Service) ApproveDoctor(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Role != auth.RolePendingDoctor {
		return nil, fmt.Errorf("account %s is not awaiting approval", id)
	}
	if err := s.repo.UpdateRole(ctx, id, auth.RoleDoctor); err != nil {
		return nil, err
	}
	a.Role = auth.RoleDoctor
	s.publisher.Publish(realtime.NewEvent(realtime.EventNotificationNew, realtime.UserTopic(id), map[string]interface{}{
		"kind": "doctor_approved",
	}))
	// Approval already committed; a failed email should not undo it.
	_ = s.mailer.SendTemplate(ctx, "doctor-approved", map[string]string{
		"doctor_name": a.Name,
	}, a.Email)
	return a, nil
}

func (s *Service) ListPendingDoctors(ctx context.Context, limit, offset int) ([]*Account, int, error) {
	return s.repo.ListByRole(ctx, auth.RolePendingDoctor, limit, offset)
}

func (s *Service) ListByRole(ctx context.Context, role string, limit, offset int) ([]*Account, int, error) {
	if !auth.ValidRoles[role] {
		return nil, 0, fmt.Errorf("invalid role: %s", role)
	}
	return s.repo.ListByRole(ctx, role, limit, offset)
}

func (s *Service) Search(ctx context.Context, query string, limit, offset int) ([]*Account, int, error) {
	if query == "" {
		return nil, 0, fmt.Errorf("search query is required")
	}
	return s.repo.Search(ctx, query, limit, offset)
}
