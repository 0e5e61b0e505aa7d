package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/config"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
	"github.com/linesmerrill/ambulance-dispatch-api/realtime"
)

// ErrNoCredential is returned when a request carries no bearer token
var ErrNoCredential = errors.New("no credential")

// TokenVerifier checks HS256 tokens issued by the identity service
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for the shared secret
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Claims is the payload of a credential. Older tokens carry the user id in
// "id", newer ones in "sub".
type Claims struct {
	ID   string      `json:"id,omitempty"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verify parses token and returns the identity it carries
func (v *TokenVerifier) Verify(token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrNoCredential
	}
	if len(v.secret) == 0 {
		return models.Identity{}, errors.New("token verification is not configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %w", err)
	}

	id := claims.ID
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return models.Identity{}, errors.New("token has no subject")
	}
	return models.Identity{ID: id, Role: claims.Role}, nil
}

// Authenticator caches verified credentials with go-guardian. It serves both
// the REST middleware and the websocket gateway.
type Authenticator struct {
	authenticator auth.Authenticator
	parser        *jwt.Parser
	now           func() time.Time
}

// NewAuthenticator wraps verifier in a cached bearer strategy. Verified tokens
// are remembered for ttl, and never past their own expiry.
func NewAuthenticator(verifier *TokenVerifier, ttl time.Duration) *Authenticator {
	cache := store.NewFIFO(context.Background(), ttl)
	strategy := bearer.New(func(ctx context.Context, r *http.Request, token string) (auth.Info, error) {
		identity, err := verifier.Verify(token)
		if err != nil {
			return nil, err
		}
		return auth.NewDefaultUser(identity.ID, identity.ID, []string{string(identity.Role)}, nil), nil
	}, cache)

	authenticator := auth.New()
	authenticator.EnableStrategy(bearer.CachedStrategyKey, strategy)
	return &Authenticator{
		authenticator: authenticator,
		parser:        jwt.NewParser(),
		now:           time.Now,
	}
}

// Verify implements realtime.Verifier
func (a *Authenticator) Verify(token string) (models.Identity, error) {
	if token == "" {
		return models.Identity{}, ErrNoCredential
	}
	r, err := http.NewRequest(http.MethodGet, "/", nil)
	if err != nil {
		return models.Identity{}, err
	}
	r.Header.Set("Authorization", "Bearer "+token)

	info, err := a.authenticator.Authenticate(r)
	if err != nil {
		return models.Identity{}, err
	}
	if err := a.checkExpiry(token); err != nil {
		return models.Identity{}, err
	}
	identity := models.Identity{ID: info.ID()}
	if groups := info.Groups(); len(groups) > 0 {
		identity.Role = models.Role(groups[0])
	}
	return identity, nil
}

// checkExpiry rejects a cached token whose exp has passed. The signature was
// checked when the token entered the cache.
func (a *Authenticator) checkExpiry(token string) error {
	claims := &Claims{}
	if _, _, err := a.parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	if claims.ExpiresAt != nil && !a.now().Before(claims.ExpiresAt.Time) {
		return errors.New("invalid token: token has expired")
	}
	return nil
}

// Middleware rejects requests without a valid credential and stores the
// caller's identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := a.Verify(realtime.TokenFromRequest(r))
		if err != nil {
			zap.S().Infow("unauthorized", "url", r.URL.String(), "error", err)
			config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
			return
		}
		zap.S().Debugw("authenticated", "user", identity.ID, "role", identity.Role)
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireRole lets through callers holding one of roles. Administrators pass
// every role check.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFrom(r.Context())
			if !ok {
				config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
				return
			}
			if identity.Role == models.RoleAdministrator {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if identity.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			config.ErrorStatus("insufficient role", http.StatusForbidden, w, nil)
		})
	}
}
