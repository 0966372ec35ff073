package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// acting user in the request context.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.RequireAuth")
		defer span.End()

		token := BearerToken(c)
		if token == "" {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or invalid token"})
		}

		actor, err := m.auth.Verify(ctx, token)
		if err != nil {
			span.RecordError(errors.Wrap(err, "token verification failed"))
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		span.SetAttributes(attribute.String("ActorId", actor.ID))
		ctx = context.WithValue(ctx, domain.ActorCtxKey, actor)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// BearerToken extracts the token from the Authorization header, falling back
// to the "token" query parameter for transports that cannot set headers
// (the websocket stream).
func BearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && scheme == "Bearer" {
			return token
		}
		return ""
	}
	return c.QueryParam("token")
}

// ActorFrom retrieves the authenticated actor stored by RequireAuth.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(domain.ActorCtxKey).(domain.Actor)
	return actor, ok
}
