package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	apperrors "github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/errors"
)

const identityContextKey = "identity"

// bearerToken extracts the token from the Authorization header or, for
// transports without a header channel, the token query parameter.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.QueryParam("token")
}

// requireAuth resolves the caller's identity from its bearer token and
// stashes it in the request context.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity, err := s.tokens.Verify(bearerToken(c))
		if err != nil {
			return err
		}
		c.Set(identityContextKey, identity)
		return next(c)
	}
}

// requireStaff rejects cadet-role callers. Must run after requireAuth.
func (s *Server) requireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !currentIdentity(c).Staff() {
			return apperrors.ForbiddenError("staff role required")
		}
		return next(c)
	}
}

func currentIdentity(c echo.Context) domain.Identity {
	identity, _ := c.Get(identityContextKey).(domain.Identity)
	return identity
}
