package account

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/platform/auth"
	"github.com/carelink/api/internal/platform/realtime"
)

type mockRepo struct {
	store  map[uuid.UUID]*Account
	resets map[string]*PasswordReset
}

func newMockRepo() *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Account), resets: make(map[string]*PasswordReset)}
}

func (m *mockRepo) Create(ctx context.Context, a *Account) error {
	for _, existing := range m.store {
		if existing.Email == strings.ToLower(a.Email) {
			return ErrEmailTaken
		}
	}
	a.ID = uuid.New()
	a.Email = strings.ToLower(a.Email)
	m.store[a.ID] = a
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*Account, error) {
	for _, a := range m.store {
		if a.Email == strings.ToLower(email) {
			return a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(ctx context.Context, a *Account) error { m.store[a.ID] = a; return nil }

func (m *mockRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	m.store[id].PasswordHash = hash
	return nil
}

func (m *mockRepo) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	m.store[id].Role = role
	return nil
}

func (m *mockRepo) SetPresence(ctx context.Context, id uuid.UUID, online bool) error {
	m.store[id].Online = online
	return nil
}

func (m *mockRepo) ListByRole(ctx context.Context, role string, limit, offset int) ([]*Account, int, error) {
	var items []*Account
	for _, a := range m.store {
		if a.Role == role {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) Search(ctx context.Context, query string, limit, offset int) ([]*Account, int, error) {
	var items []*Account
	for _, a := range m.store {
		if strings.Contains(a.Email, query) || strings.Contains(strings.ToLower(a.Name), strings.ToLower(query)) {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) CreatePasswordReset(ctx context.Context, pr *PasswordReset) error {
	pr.ID = uuid.New()
	m.resets[pr.TokenHash] = pr
	return nil
}

func (m *mockRepo) GetPasswordReset(ctx context.Context, tokenHash string) (*PasswordReset, error) {
	pr, ok := m.resets[tokenHash]
	if !ok {
		return nil, ErrResetInvalid
	}
	return pr, nil
}

func (m *mockRepo) MarkResetUsed(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	for _, pr := range m.resets {
		if pr.ID == id {
			pr.UsedAt = &now
		}
	}
	return nil
}

type mockMailer struct {
	sent []string
	data []map[string]string
}

func (m *mockMailer) SendTemplate(ctx context.Context, templateID string, data map[string]string, to string) error {
	m.sent = append(m.sent, templateID)
	m.data = append(m.data, data)
	return nil
}

type mockPublisher struct{ events []realtime.Event }

func (m *mockPublisher) Publish(ev realtime.Event) { m.events = append(m.events, ev) }

func newTestService(demoEnabled bool) (*Service, *mockRepo, *mockMailer, *mockPublisher) {
	repo := newMockRepo()
	mail := &mockMailer{}
	pub := &mockPublisher{}
	cfg := auth.JWTConfig{Issuer: "carelink-test", SigningKey: []byte("test-secret"), TTL: time.Hour}
	svc := NewService(repo, cfg, mail, pub, "https://portal.example.com", demoEnabled)
	return svc, repo, mail, pub
}

func TestRegister_PatientDefault(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	session, err := svc.Register(context.Background(), RegisterInput{
		Email:    "Pat@Example.com",
		Password: "secret-password",
		Name:     "Pat Smith",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if session.Account.Role != auth.RolePatient {
		t.Errorf("expected patient role, got %s", session.Account.Role)
	}
	if session.Account.Email != "pat@example.com" {
		t.Errorf("expected lowercased email, got %s", session.Account.Email)
	}
	if session.Token == "" {
		t.Error("expected a session token")
	}
}

func TestRegister_DoctorStartsPending(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	session, err := svc.Register(context.Background(), RegisterInput{
		Email:    "doc@example.com",
		Password: "secret-password",
		Name:     "Dr. Doe",
		Role:     auth.RoleDoctor,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if session.Account.Role != auth.RolePendingDoctor {
		t.Errorf("expected pending_doctor role, got %s", session.Account.Role)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	input := RegisterInput{Email: "dup@example.com", Password: "secret-password", Name: "First"}
	if _, err := svc.Register(context.Background(), input); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := svc.Register(context.Background(), input); err != ErrEmailTaken {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	if _, err := svc.Register(context.Background(), RegisterInput{
		Email: "login@example.com", Password: "secret-password", Name: "Login",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	session, err := svc.Login(context.Background(), "login@example.com", "secret-password")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if session.Token == "" {
		t.Error("expected a session token")
	}

	if _, err := svc.Login(context.Background(), "login@example.com", "wrong-password"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "secret-password"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestDemoLogin_Disabled(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	if _, err := svc.DemoLogin(context.Background(), "demo@example.com"); err != ErrDemoDisabled {
		t.Errorf("expected ErrDemoDisabled, got %v", err)
	}
}

func TestDemoLogin_Enabled(t *testing.T) {
	svc, _, _, _ := newTestService(true)

	if _, err := svc.Register(context.Background(), RegisterInput{
		Email: "demo@example.com", Password: "secret-password", Name: "Demo",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	session, err := svc.DemoLogin(context.Background(), "demo@example.com")
	if err != nil {
		t.Fatalf("DemoLogin failed: %v", err)
	}
	if session.Token == "" {
		t.Error("expected a session token")
	}
}

func TestChangePassword(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	session, err := svc.Register(context.Background(), RegisterInput{
		Email: "pw@example.com", Password: "old-password", Name: "PW",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), session.Account.ID, "wrong", "new-password"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), session.Account.ID, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "pw@example.com", "new-password"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo, mail, _ := newTestService(false)

	if _, err := svc.Register(context.Background(), RegisterInput{
		Email: "reset@example.com", Password: "old-password", Name: "Reset",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.RequestPasswordReset(context.Background(), "reset@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "password-reset" {
		t.Fatalf("expected one password-reset email, got %v", mail.sent)
	}
	link := mail.data[0]["reset_link"]
	token := link[strings.Index(link, "token=")+len("token="):]

	if err := svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if _, err := svc.Login(context.Background(), "reset@example.com", "new-password"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}

	// Tokens are single use.
	if err := svc.ResetPassword(context.Background(), token, "another-password"); err != ErrResetInvalid {
		t.Errorf("expected ErrResetInvalid on reuse, got %v", err)
	}
	if len(repo.resets) != 1 {
		t.Errorf("expected exactly one reset record, got %d", len(repo.resets))
	}
}

func TestRequestPasswordReset_UnknownEmailSilent(t *testing.T) {
	svc, _, mail, _ := newTestService(false)

	if err := svc.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("expected silent accept, got %v", err)
	}
	if len(mail.sent) != 0 {
		t.Errorf("expected no email for unknown address, got %v", mail.sent)
	}
}

func TestResetPassword_Expired(t *testing.T) {
	svc, repo, _, _ := newTestService(false)

	a := &Account{Email: "exp@example.com", Name: "Exp", Role: auth.RolePatient}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	pr := &PasswordReset{AccountID: a.ID, TokenHash: hashToken("stale"), ExpiresAt: time.Now().Add(-time.Minute)}
	if err := repo.CreatePasswordReset(context.Background(), pr); err != nil {
		t.Fatal(err)
	}

	if err := svc.ResetPassword(context.Background(), "stale", "new-password"); err != ErrResetInvalid {
		t.Errorf("expected ErrResetInvalid for expired token, got %v", err)
	}
}

func TestSetPresence_PublishesEvent(t *testing.T) {
	svc, _, _, pub := newTestService(false)

	session, err := svc.Register(context.Background(), RegisterInput{
		Email: "online@example.com", Password: "secret-password", Name: "Online",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := svc.SetPresence(context.Background(), session.Account.ID, true); err != nil {
		t.Fatalf("SetPresence failed: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	if pub.events[0].Type != realtime.EventPresenceChanged {
		t.Errorf("expected presence event, got %s", pub.events[0].Type)
	}
	if pub.events[0].Topic != realtime.UserTopic(session.Account.ID) {
		t.Errorf("unexpected topic %s", pub.events[0].Topic)
	}
}

func TestApproveDoctor(t *testing.T) {
	svc, _, mail, _ := newTestService(false)

	session, err := svc.Register(context.Background(), RegisterInput{
		Email: "newdoc@example.com", Password: "secret-password", Name: "New Doc", Role: auth.RoleDoctor,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	a, err := svc.ApproveDoctor(context.Background(), session.Account.ID)
	if err != nil {
		t.Fatalf("ApproveDoctor failed: %v", err)
	}
	if a.Role != auth.RoleDoctor {
		t.Errorf("expected doctor role, got %s", a.Role)
	}
	if len(mail.sent) != 1 || mail.sent[0] != "doctor-approved" {
		t.Errorf("expected doctor-approved email, got %v", mail.sent)
	}

	// Already approved accounts cannot be approved again.
	if _, err := svc.ApproveDoctor(context.Background(), session.Account.ID); err == nil {
		t.Error("expected error approving an already approved doctor")
	}
}

func TestListPendingDoctors(t *testing.T) {
	svc, _, _, _ := newTestService(false)

	for _, email := range []string{"d1@example.com", "d2@example.com"} {
		if _, err := svc.Register(context.Background(), RegisterInput{
			Email: email, Password: "secret-password", Name: "Doc", Role: auth.RoleDoctor,
		}); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	items, total, err := svc.ListPendingDoctors(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("ListPendingDoctors failed: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Errorf("expected 2 pending doctors, got total=%d len=%d", total, len(items))
	}
}
