package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/quizhive/api/domain"
)

var (
	ErrMissingTokenStr          = "missing-token"
	ErrExpiredTokenStr          = "expired-token"
	ErrServerTimeoutStr         = "server-timeout"
	ErrInvalidRequestFormatStr  = "bad-request-format"
	ErrInvalidCredentialsStr    = "invalid-credentials"
	ErrUnknownStr               = "unknown-error"
	ErrUsernameAlreadyExistsStr = "username-already-exists"
	ErrWeakPasswordStr          = "weak-password"
	ErrPasswordTooLongStr       = "password-too-long"
	ErrInvalidUsernameFormatStr = "invalid-username-format"
	ErrAccountCreatedButNoToken = "account-created-but-no-token"
)

type authHandler struct {
	authService  AuthService
	cookieMaxAge time.Duration
}

func NewAuthHandler(service AuthService, cookieMaxAge time.Duration) *authHandler {
	return &authHandler{authService: service, cookieMaxAge: cookieMaxAge}
}

// redactToken keeps enough of a JWT to grep logs for it without ever
// logging a usable credential.
func redactToken(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return token
	}
	r := []rune(parts[2])
	if len(r) < 10 {
		return token
	}
	return parts[0] + "." + parts[1] + "." + string(r[:10]) + strings.Repeat("*", len(r)-10)
}

// RequireAuthMiddleware authenticates the token cookie and stores the user
// id in the gin context. Forged-token attempts get a deliberate slow 500 so
// probing costs the attacker time and learns them nothing.
func (ah *authHandler) RequireAuthMiddleware(trollTime time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie("token")
		if err != nil {
			ctx.String(http.StatusUnauthorized, ErrMissingTokenStr)
			ctx.Abort()
			return
		}

		id, err := ah.authService.VerifyToken(token)

		if err != nil {
			clientIP := ctx.ClientIP()

			switch {
			case errors.Is(err, domain.ErrInvalidSigningAlg),
				errors.Is(err, domain.ErrInvalidTokenSignature),
				errors.Is(err, domain.ErrCorruptedToken):

				slog.Warn("RequireAuthMiddleware: suspicious token attempt",
					"ip", clientIP,
					"user_agent", ctx.Request.UserAgent(),
					"error", err.Error(),
					"token", redactToken(token),
				)

				time.Sleep(trollTime)
				ctx.Status(http.StatusInternalServerError)
				ctx.Abort()

			case errors.Is(err, domain.ErrExpiredToken):
				slog.Info("RequireAuthMiddleware: token expired", "ip", clientIP, "token", redactToken(token))
				ctx.String(http.StatusUnauthorized, ErrExpiredTokenStr)
				ctx.Abort()

			default:
				slog.Error("RequireAuthMiddleware: internal auth error",
					"ip", clientIP,
					"error", err.Error(),
					"token", redactToken(token),
				)
				ctx.String(http.StatusUnauthorized, ErrUnknownStr)
				ctx.Abort()
			}

			return
		}
		ctx.Set("id", id)
		ctx.Next()
	}
}

func (ah *authHandler) LoginHandler(ctx *gin.Context) {
	var loginCredentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := ctx.ShouldBindJSON(&loginCredentials); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	token, err := ah.authService.Login(ctx.Request.Context(), loginCredentials.Username, loginCredentials.Password)

	if err != nil {
		clientIP := ctx.ClientIP()
		switch {
		case errors.Is(err, ErrIncorrectPassword), errors.Is(err, domain.ErrUserNotFound):
			// one answer for both, usernames are not enumerable here
			ctx.String(http.StatusUnauthorized, ErrInvalidCredentialsStr)
		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)
		case errors.Is(err, context.Canceled):
			ctx.Status(499)
		case errors.Is(err, domain.UnexpectedDatabaseError):
			slog.Error("Login: Database returned an unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", ctx.Request.UserAgent(),
				"username", loginCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		default:
			slog.Error("Login: Unknown unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", ctx.Request.UserAgent(),
				"username", loginCredentials.Username,
				"password_len", utf8.RuneCountInString(loginCredentials.Password),
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}

	ctx.SetCookie("token", token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.Status(http.StatusOK)
}

func (ah *authHandler) SignupHandler(ctx *gin.Context) {
	var signupCredentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := ctx.ShouldBindJSON(&signupCredentials); err != nil {
		ctx.String(http.StatusBadRequest, ErrInvalidRequestFormatStr)
		ctx.Abort()
		return
	}

	token, err := ah.authService.Signup(ctx.Request.Context(), signupCredentials.Username, signupCredentials.Password)

	if err != nil {
		clientIP := ctx.ClientIP()

		switch {
		case errors.Is(err, domain.ErrDuplicateUsername):
			ctx.String(http.StatusConflict, ErrUsernameAlreadyExistsStr)

		case errors.Is(err, ErrWeakPassword):
			ctx.String(http.StatusBadRequest, ErrWeakPasswordStr)

		case errors.Is(err, ErrPasswordTooLong):
			ctx.String(http.StatusBadRequest, ErrPasswordTooLongStr)

		case errors.Is(err, ErrInvalidUsernameFormat):
			ctx.String(http.StatusBadRequest, ErrInvalidUsernameFormatStr)

		case errors.Is(err, context.DeadlineExceeded):
			ctx.String(http.StatusGatewayTimeout, ErrServerTimeoutStr)

		case errors.Is(err, context.Canceled):
			ctx.Status(499)

		case errors.Is(err, domain.UnexpectedDatabaseError):
			slog.Error("Signup: Database returned an unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", ctx.Request.UserAgent(),
				"username", signupCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		case errors.Is(err, domain.UnexpectedPasswordHashingError):
			slog.Error("Signup: Password hashing error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", ctx.Request.UserAgent(),
				"username", signupCredentials.Username,
				"password_len", utf8.RuneCountInString(signupCredentials.Password),
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)

		case errors.Is(err, domain.UnexpectedTokenGenerationError):
			slog.Error("Signup: Token generation error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", ctx.Request.UserAgent(),
				"username", signupCredentials.Username,
			)
			ctx.String(http.StatusInternalServerError, ErrAccountCreatedButNoToken)

		default:
			slog.Error("Signup: Unknown unexpected error",
				"error", err.Error(),
				"ip", clientIP,
				"user_agent", ctx.Request.UserAgent(),
				"username", signupCredentials.Username,
				"password_len", utf8.RuneCountInString(signupCredentials.Password),
			)
			ctx.String(http.StatusInternalServerError, ErrUnknownStr)
		}
		ctx.Abort()
		return
	}

	ctx.SetCookie("token", token, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.Status(http.StatusCreated)
}

func (ah *authHandler) RefreshSessionHandler(ctx *gin.Context) {
	token, err := ctx.Cookie("token")
	if err != nil {
		ctx.String(http.StatusUnauthorized, "unauthenticated")
		return
	}

	id, err := ah.authService.VerifyToken(token)
	if err != nil {
		slog.Warn("Refresh: Invalid token provided",
			"ip", ctx.ClientIP(),
			"user_agent", ctx.Request.UserAgent(),
			"error", err.Error(),
			"token", redactToken(token),
		)
		ctx.String(http.StatusUnauthorized, "bad-token")
		return
	}

	newToken, err := ah.authService.GenerateToken(id)
	if err != nil {
		slog.Error("Refresh: Failed to generate new token",
			"ip", ctx.ClientIP(),
			"error", err.Error(),
			"user_id", id,
		)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	ctx.SetCookie("token", newToken, int(ah.cookieMaxAge.Seconds()), "/", "", true, true)
	ctx.SetSameSite(http.SameSiteNoneMode)
	ctx.Status(http.StatusOK)
}

func (ah *authHandler) LogoutHandler(ctx *gin.Context) {
	ctx.SetCookie("token", "", -1, "/", "", true, true)
}
