package router

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"library/internal/auth"
	"library/internal/errors"
	"library/internal/handler"
	"library/internal/model"
)

var errTokenRevoked = errors.New("token revoked")

// Handlers groups the HTTP handlers mounted under /api.
type Handlers struct {
	Auth  *handler.AuthHandler
	Books *handler.BookHandler
	Loans *handler.LoanHandler
	Users *handler.UserHandler
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	h Handlers,
	health HealthCheck,
) {
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}
	e.JSONSerializer = JSONSerializer{}

	e.GET("/healthz", func(c echo.Context) error {
		if health != nil {
			if err := health(c.Request().Context()); err != nil {
				return c.JSON(http.StatusServiceUnavailable, errors.ErrorResponse{
					Error: err.Error(),
					Code:  "UNHEALTHY",
				})
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("", JWTMiddleware(jwtService, tokenStore))
	librarian := handler.RequireRole(model.RoleLibrarian)
	student := handler.RequireRole(model.RoleStudent)

	secured.GET("/books", h.Books.ListBooks)
	secured.GET("/books/:id", h.Books.GetBook)
	secured.POST("/books", h.Books.CreateBook, librarian)
	secured.PUT("/books/:id", h.Books.ReplaceBook, librarian)
	secured.PATCH("/books/:id", h.Books.UpdateBook, librarian)
	secured.DELETE("/books/:id", h.Books.DeleteBook, librarian)

	secured.GET("/loans", h.Loans.ListLoans)
	secured.GET("/loans/:id", h.Loans.GetLoan)
	secured.POST("/loans", h.Loans.CreateLoan, student)
	secured.PATCH("/loans/:id/return", h.Loans.ReturnLoan, librarian)
	secured.DELETE("/loans/:id", h.Loans.DeleteLoan, librarian)

	secured.GET("/users/me", h.Users.Me)
	secured.GET("/users", h.Users.ListUsers, librarian)
	secured.GET("/users/by-username/:username", h.Users.GetUserByUsername, librarian)
	secured.GET("/users/:id", h.Users.GetUser, librarian)
	secured.POST("/users", h.Users.CreateUser, librarian)
	secured.PUT("/users/:id", h.Users.ReplaceUser, librarian)
	secured.PATCH("/users/:id", h.Users.UpdateUser, librarian)
	secured.DELETE("/users/:id", h.Users.DeleteUser, librarian)
}

// JWTMiddleware accepts unrevoked access tokens and stores their claims
// under handler.ContextKeyClaims.
func JWTMiddleware(jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  handler.ContextKeyClaims,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := jwtService.ValidateAccessToken(token)
			if err != nil {
				return nil, err
			}
			revoked, err := tokenStore.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, errTokenRevoked
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: "missing or invalid token",
				Code:  handler.CodeUnauthorized,
			})
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
