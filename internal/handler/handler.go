package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"library/internal/auth"
	"library/internal/errors"
	"library/internal/model"
)

// ContextKeyClaims is where the JWT middleware stores the caller's claims.
const ContextKeyClaims = "user"

// Error codes produced by the HTTP layer itself.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeInternal       = "INTERNAL_ERROR"
)

// respondError converts a service error into an echo HTTP error.
func respondError(c echo.Context, err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(message string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  CodeInvalidRequest,
	})
}

func forbidden(message string) error {
	return echo.NewHTTPError(http.StatusForbidden, errors.ErrorResponse{
		Error: message,
		Code:  CodeForbidden,
	})
}

// bind decodes the request body and runs the struct validator.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  errors.CodeValidation,
		})
	}
	return nil
}

func pathID(c echo.Context, name string) (model.ID, error) {
	id, err := model.ParseID(c.Param(name))
	if err != nil || id == 0 {
		return 0, badRequest("invalid " + name)
	}
	return id, nil
}

// CurrentClaims returns the authenticated caller's token claims.
func CurrentClaims(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(ContextKeyClaims).(*auth.Claims)
	if !ok || claims == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "missing or invalid token",
			Code:  CodeUnauthorized,
		})
	}
	return claims, nil
}

// CurrentUser builds the caller's identity and role from the token claims.
func CurrentUser(c echo.Context) (model.User, error) {
	claims, err := CurrentClaims(c)
	if err != nil {
		return model.User{}, err
	}
	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.User{}, forbidden("unknown role")
	}
	return model.User{
		ID:       model.Assigned(model.ID(claims.UserID)),
		Username: claims.Username,
		Role:     role,
	}, nil
}

// RequireRole rejects callers whose token does not carry the given role.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, err := CurrentUser(c)
			if err != nil {
				return err
			}
			if user.Role != role {
				return forbidden(role.String() + " role required")
			}
			return next(c)
		}
	}
}
