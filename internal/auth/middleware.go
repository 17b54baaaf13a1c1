package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-bank/internal/domain"
)

// UserLoader loads user records while authenticating requests.
type UserLoader interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// Middleware validates bearer tokens and attaches the principal to the
// request context. The user record is loaded fresh on every request so a
// deactivated user is locked out immediately, not at token expiry.
type Middleware struct {
	tokens *TokenManager
	users  UserLoader
	logger zerolog.Logger

	// onError writes the error response; set by the handler package.
	onError func(w http.ResponseWriter, r *http.Request, err error)
}

// NewMiddleware constructs authentication middleware.
func NewMiddleware(tokens *TokenManager, users UserLoader, logger zerolog.Logger, onError func(http.ResponseWriter, *http.Request, error)) *Middleware {
	return &Middleware{
		tokens:  tokens,
		users:   users,
		logger:  logger.With().Str("component", "auth").Logger(),
		onError: onError,
	}
}

// Authenticate enforces authentication for protected routes.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.principalFromRequest(r)
		if err != nil {
			m.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			m.onError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// principalFromRequest parses the bearer token and loads the caller.
func (m *Middleware) principalFromRequest(r *http.Request) (*Principal, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, ErrMissingAuthHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, ErrInvalidAuthHeader
	}

	claims, err := m.tokens.Parse(parts[1])
	if err != nil {
		return nil, err
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := m.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	if !user.CanAuthenticate() {
		return nil, ErrForbidden
	}

	return &Principal{User: user}, nil
}
