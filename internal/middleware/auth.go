package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Aromatic05/CurioBox-sub000/internal/app/auth"
	apperrors "github.com/Aromatic05/CurioBox-sub000/internal/errors"
	"github.com/Aromatic05/CurioBox-sub000/internal/httputil"
	"github.com/Aromatic05/CurioBox-sub000/pkg/logger"
)

// Authenticator resolves a bearer token to the caller's claims.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthMiddleware attaches JWT identities to requests.
type AuthMiddleware struct {
	auth   Authenticator
	logger *logger.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(a Authenticator, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{auth: a, logger: log}
}

// Required rejects requests without a valid token.
func (m *AuthMiddleware) Required(next http.Handler) http.Handler {
	return m.handler(next, true, false)
}

// Optional attaches the caller when a valid token is present and lets
// anonymous requests through. A bad token is still an error.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return m.handler(next, false, false)
}

// RequiredWithQuery is Required but also accepts ?token=, for websocket
// upgrades where browsers cannot set headers.
func (m *AuthMiddleware) RequiredWithQuery(next http.Handler) http.Handler {
	return m.handler(next, true, true)
}

func (m *AuthMiddleware) handler(next http.Handler, required, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r, allowQuery)
		if err != nil {
			m.respondError(w, r, err)
			return
		}
		if token == "" {
			if required {
				m.respondError(w, r, apperrors.Unauthorized("missing Authorization header"))
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		m.logger.WithFields(logrus.Fields{
			"trace_id": GetTraceID(r.Context()),
			"user_id":  claims.UserID,
		}).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// RequireAdmin allows only administrators. It must run after Required.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case GetClaims(r.Context()) == nil:
			httputil.WriteError(w, apperrors.Unauthorized(""))
		case !IsAdmin(r.Context()):
			httputil.WriteError(w, apperrors.Forbidden("admin role required"))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func bearerToken(r *http.Request, allowQuery bool) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if allowQuery {
			return strings.TrimSpace(r.URL.Query().Get("token")), nil
		}
		return "", nil
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.Unauthorized("invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := apperrors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = apperrors.InvalidToken(err)
	}
	httputil.WriteError(w, serviceErr)

	m.logger.WithError(err).WithFields(logrus.Fields{
		"trace_id": GetTraceID(r.Context()),
		"path":     r.URL.Path,
		"method":   r.Method,
		"status":   serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}
