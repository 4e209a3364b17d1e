package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRole(e *echo.Echo, role string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRoleKey, role)
	req = req.WithContext(ctx)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	called := false
	handler := RequireRole(RoleDoctor)(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})

	if err := handler(requestWithRole(e, RoleDoctor)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
}

func TestRequireRole_AdminOverride(t *testing.T) {
	e := echo.New()
	handler := RequireRole(RoleDoctor)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	if err := handler(requestWithRole(e, RoleAdmin)); err != nil {
		t.Fatalf("expected admin to pass doctor check, got %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	e := echo.New()
	handler := RequireRole(RoleAdmin)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(requestWithRole(e, RolePatient))
	if err == nil {
		t.Fatal("expected error for wrong role")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 HTTPError, got %v", err)
	}
}

func TestRequireRole_PendingDoctorDenied(t *testing.T) {
	e := echo.New()
	handler := RequireRole(RoleDoctor)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(requestWithRole(e, RolePendingDoctor))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403 for pending doctor, got %v", err)
	}
}

func TestValidRoles(t *testing.T) {
	for _, role := range []string{RolePatient, RoleDoctor, RoleAdmin, RolePendingDoctor, RoleStaff} {
		if !ValidRoles[role] {
			t.Errorf("expected role %s to be valid", role)
		}
	}
	if ValidRoles["superuser"] {
		t.Error("unexpected role accepted")
	}
}
