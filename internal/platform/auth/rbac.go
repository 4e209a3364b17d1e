package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Account roles. A pending doctor has registered but has not been approved by
// an admin yet and carries no doctor privileges.
const (
	RolePatient       = "patient"
	RoleDoctor        = "doctor"
	RoleAdmin         = "admin"
	RolePendingDoctor = "pending_doctor"
	RoleStaff         = "staff"
)

// ValidRoles is the set of roles an account may hold.
var ValidRoles = map[string]bool{
	RolePatient:       true,
	RoleDoctor:        true,
	RoleAdmin:         true,
	RolePendingDoctor: true,
	RoleStaff:         true,
}

// RequireRole returns middleware that checks if the caller has at least one of
// the specified roles. Admins pass every role check.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleAdmin {
				return next(c)
			}
			for _, required := range roles {
				if role == required {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
