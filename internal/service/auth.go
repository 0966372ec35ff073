package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"

	"github.com/acbops/tracker"
	"github.com/acbops/tracker/internal/domain"
	"github.com/acbops/tracker/internal/usecase"
)

var tracer = otel.Tracer("auth")

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid session")
)

// TokenStore records revoked token ids until their natural expiry.
type TokenStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type sessionClaims struct {
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and verifies session tokens and resolves the current
// user, with a short-lived in-process cache in front of the user store.
type AuthService struct {
	users  usecase.UserRepository
	tokens TokenStore
	secret []byte
	ttl    time.Duration
	cache  *gocache.Cache
}

func NewAuthService(users usecase.UserRepository, tokens TokenStore, secret string, ttl time.Duration) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		secret: []byte(secret),
		ttl:    ttl,
		cache:  gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Login checks the password and issues a signed session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, domain.User, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Login")
	defer span.End()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, ErrInvalidCredentials
	}

	now := time.Now()
	claims := sessionClaims{
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		span.RecordError(err)
		return "", domain.User{}, errors.Wrap(err, "sign session token")
	}
	return token, user, nil
}

// Verify parses a session token and returns the acting user. Revoked tokens
// are rejected even before their expiry.
func (s *AuthService) Verify(ctx context.Context, token string) (domain.Actor, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Verify")
	defer span.End()

	claims, err := s.parse(token)
	if err != nil {
		span.RecordError(err)
		return domain.Actor{}, ErrInvalidSession
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		span.RecordError(errors.Wrap(err, "revocation lookup"))
		return domain.Actor{}, errors.Wrap(err, "revocation lookup")
	}
	if revoked {
		return domain.Actor{}, ErrInvalidSession
	}

	return domain.Actor{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
		Role:        tracker.Role(claims.Role),
	}, nil
}

// Logout revokes the token's id for the remainder of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	ctx, span := tracer.Start(ctx, "Auth.Service.Logout")
	defer span.End()

	claims, err := s.parse(token)
	if err != nil {
		// An invalid or expired token has nothing left to revoke.
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return errors.Wrap(s.tokens.Revoke(ctx, claims.ID, remaining), "revoke session")
}

// CurrentUser resolves the acting user, serving repeat lookups from the
// in-process cache. Inactive or deleted accounts are invalid sessions.
func (s *AuthService) CurrentUser(ctx context.Context, actorID string) (domain.User, error) {
	if cached, found := s.cache.Get(actorID); found {
		return cached.(domain.User), nil
	}

	user, err := s.users.GetByID(ctx, actorID)
	if err != nil {
		return domain.User{}, ErrInvalidSession
	}
	if !user.IsActive {
		return domain.User{}, ErrInvalidSession
	}

	s.cache.Set(actorID, user, gocache.DefaultExpiration)
	return user, nil
}

func (s *AuthService) parse(token string) (*sessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
