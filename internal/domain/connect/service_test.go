package connect

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carelink/api/internal/domain/account"
	"github.com/carelink/api/internal/platform/auth"
)

type mockRepo struct{ store map[uuid.UUID]*ConnectionRequest }

func newMockRepo() *mockRepo { return &mockRepo{store: make(map[uuid.UUID]*ConnectionRequest)} }

func (m *mockRepo) Create(ctx context.Context, req *ConnectionRequest) error {
	req.ID = uuid.New()
	req.CreatedAt = time.Now()
	m.store[req.ID] = req
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id uuid.UUID) (*ConnectionRequest, error) {
	req, ok := m.store[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

func (m *mockRepo) FindPending(ctx context.Context, patientID, doctorID uuid.UUID) (*ConnectionRequest, error) {
	for _, req := range m.store {
		if req.PatientID == patientID && req.DoctorID == doctorID && req.Status == StatusPending {
			return req, nil
		}
	}
	return nil, ErrRequestNotFound
}

func (m *mockRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, confirmedAt *time.Time) error {
	req, ok := m.store[id]
	if !ok {
		return ErrRequestNotFound
	}
	req.Status = status
	req.ConfirmedAt = confirmedAt
	return nil
}

func (m *mockRepo) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*ConnectionRequest, error) {
	var items []*ConnectionRequest
	for _, req := range m.store {
		if req.PatientID == patientID {
			items = append(items, req)
		}
	}
	return items, nil
}

func (m *mockRepo) ListForDoctor(ctx context.Context, doctorID uuid.UUID, status string) ([]*ConnectionRequest, error) {
	var items []*ConnectionRequest
	for _, req := range m.store {
		if req.DoctorID == doctorID && (status == "" || req.Status == status) {
			items = append(items, req)
		}
	}
	return items, nil
}

type mockDirectory struct{ accounts map[uuid.UUID]*account.Account }

func (m *mockDirectory) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return a, nil
}

func (m *mockDirectory) ListByRole(ctx context.Context, role string, limit, offset int) ([]*account.Account, int, error) {
	var items []*account.Account
	for _, a := range m.accounts {
		if a.Role == role {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

func (m *mockDirectory) Search(ctx context.Context, query string, limit, offset int) ([]*account.Account, int, error) {
	var items []*account.Account
	for _, a := range m.accounts {
		if strings.Contains(strings.ToLower(a.Name), strings.ToLower(query)) {
			items = append(items, a)
		}
	}
	return items, len(items), nil
}

type mockNotifier struct{ kinds []string }

func (m *mockNotifier) Notify(ctx context.Context, recipientID, senderID uuid.UUID, kind, title, message string) error {
	m.kinds = append(m.kinds, kind)
	return nil
}

type mockMailer struct {
	templates []string
	lastData  map[string]string
	lastTo    string
}

func (m *mockMailer) SendTemplate(ctx context.Context, templateID string, data map[string]string, to string) error {
	m.templates = append(m.templates, templateID)
	m.lastData = data
	m.lastTo = to
	return nil
}

type testEnv struct {
	svc       *Service
	repo      *mockRepo
	mail      *mockMailer
	patient   *account.Account
	doctor    *account.Account
	pendingID uuid.UUID
}

func newTestEnv() *testEnv {
	repo := newMockRepo()
	patient := &account.Account{ID: uuid.New(), Email: "pat@example.com", Name: "Pat", Role: auth.RolePatient}
	doctor := &account.Account{ID: uuid.New(), Email: "doc@example.com", Name: "Dr. Gregory", Role: auth.RoleDoctor}
	pending := &account.Account{ID: uuid.New(), Email: "pend@example.com", Name: "Dr. Pending", Role: auth.RolePendingDoctor}
	dir := &mockDirectory{accounts: map[uuid.UUID]*account.Account{
		patient.ID: patient, doctor.ID: doctor, pending.ID: pending,
	}}
	mail := &mockMailer{}
	svc := NewService(repo, dir, &mockNotifier{}, mail)
	return &testEnv{svc: svc, repo: repo, mail: mail, patient: patient, doctor: doctor, pendingID: pending.ID}
}

func TestRequestConnection(t *testing.T) {
	env := newTestEnv()

	req, err := env.svc.RequestConnection(context.Background(), env.patient.ID, env.doctor.ID)
	if err != nil {
		t.Fatalf("RequestConnection failed: %v", err)
	}
	if req.Status != StatusPending || req.Secret == "" {
		t.Errorf("request not initialized: %+v", req)
	}
	if env.mail.lastTo != "pat@example.com" {
		t.Errorf("code mailed to %s, want the patient", env.mail.lastTo)
	}
	code := env.mail.lastData["code"]
	if len(code) != 6 {
		t.Errorf("expected a 6 digit code, got %q", code)
	}

	if _, err := env.svc.RequestConnection(context.Background(), env.patient.ID, env.doctor.ID); err != ErrRequestExists {
		t.Errorf("expected ErrRequestExists, got %v", err)
	}
}

func TestRequestConnection_TargetValidation(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.RequestConnection(context.Background(), env.patient.ID, uuid.New()); err != ErrDoctorNotFound {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
	if _, err := env.svc.RequestConnection(context.Background(), env.patient.ID, env.pendingID); err != ErrNotADoctor {
		t.Errorf("expected ErrNotADoctor for pending doctor, got %v", err)
	}
}

func TestConfirmConnection(t *testing.T) {
	env := newTestEnv()

	req, err := env.svc.RequestConnection(context.Background(), env.patient.ID, env.doctor.ID)
	if err != nil {
		t.Fatalf("RequestConnection failed: %v", err)
	}
	code := env.mail.lastData["code"]

	if _, err := env.svc.ConfirmConnection(context.Background(), uuid.New(), req.ID, code); err != ErrWrongDoctor {
		t.Errorf("expected ErrWrongDoctor, got %v", err)
	}
	if _, err := env.svc.ConfirmConnection(context.Background(), env.doctor.ID, req.ID, "000000"); err != ErrCodeInvalid {
		t.Errorf("expected ErrCodeInvalid, got %v", err)
	}

	confirmed, err := env.svc.ConfirmConnection(context.Background(), env.doctor.ID, req.ID, code)
	if err != nil {
		t.Fatalf("ConfirmConnection failed: %v", err)
	}
	if confirmed.Status != StatusConfirmed || confirmed.ConfirmedAt == nil {
		t.Errorf("request not confirmed: %+v", confirmed)
	}

	if _, err := env.svc.ConfirmConnection(context.Background(), env.doctor.ID, req.ID, code); err != ErrRequestClosed {
		t.Errorf("expected ErrRequestClosed on reuse, got %v", err)
	}
}

func TestConfirmConnection_Expired(t *testing.T) {
	env := newTestEnv()

	req, err := env.svc.RequestConnection(context.Background(), env.patient.ID, env.doctor.ID)
	if err != nil {
		t.Fatalf("RequestConnection failed: %v", err)
	}
	env.repo.store[req.ID].ExpiresAt = time.Now().Add(-time.Minute)

	if _, err := env.svc.ConfirmConnection(context.Background(), env.doctor.ID, req.ID, env.mail.lastData["code"]); err != ErrCodeExpired {
		t.Errorf("expected ErrCodeExpired, got %v", err)
	}
	if env.repo.store[req.ID].Status != StatusExpired {
		t.Errorf("expired request not flagged: %+v", env.repo.store[req.ID])
	}
}

func TestSearchDoctors(t *testing.T) {
	env := newTestEnv()

	all, total, err := env.svc.SearchDoctors(context.Background(), "", 20, 0)
	if err != nil {
		t.Fatalf("SearchDoctors failed: %v", err)
	}
	if total != 1 || all[0].Role != auth.RoleDoctor {
		t.Errorf("expected only approved doctors, got %v", all)
	}

	// Name search excludes non-doctor matches.
	byName, total, err := env.svc.SearchDoctors(context.Background(), "Dr.", 20, 0)
	if err != nil {
		t.Fatalf("SearchDoctors failed: %v", err)
	}
	if total != 1 || byName[0].ID != env.doctor.ID {
		t.Errorf("expected the approved doctor only, got %v", byName)
	}
}
