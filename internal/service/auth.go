package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"ngdi-portal/internal/audit"
	"ngdi-portal/internal/config"
	"ngdi-portal/internal/crypto"
	"ngdi-portal/internal/models"
	"ngdi-portal/internal/ratelimit"
	"ngdi-portal/internal/repository"
	"ngdi-portal/internal/token"
)

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many login attempts")
)

// Session is what the session read endpoint returns: the authenticated user
// view plus the token expiry.
type Session struct {
	User    *models.Claims `json:"user"`
	Expires *time.Time     `json:"expires"`
}

type AuthService interface {
	Register(email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password, ip string, rememberMe bool) (string, *models.Claims, error)
	Session(ctx context.Context, tokenString string) (*Session, error)
	SyncExternalIdentity(ctx context.Context, identity models.ExternalIdentity) (string, *models.User, error)
	SignOut(ctx context.Context, claims *models.Claims, ip string)
	RetryAfter(ctx context.Context, email string) time.Duration
}

type authService struct {
	users    repository.UserRepository
	limiter  *ratelimit.Limiter
	issuer   *token.Issuer
	trail    audit.Recorder
	notifier Notifier
	cfg      *config.Config
	logger   *zap.Logger
}

func NewAuthService(users repository.UserRepository, limiter *ratelimit.Limiter, issuer *token.Issuer, trail audit.Recorder, notifier Notifier, cfg *config.Config, logger *zap.Logger) AuthService {
	if notifier == nil {
		notifier = NoOpNotifier{}
	}
	return &authService{
		users:    users,
		limiter:  limiter,
		issuer:   issuer,
		trail:    trail,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

func (s *authService) Register(email, password, name string) (*models.User, error) {
	passwordHash, err := crypto.HashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: &passwordHash,
		Name:         name,
		Role:         models.RoleUser,
	}

	if err := s.users.CreateUser(user); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrUserAlreadyExists
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.notifier.UserRegistered(user)

	return user, nil
}

// Login runs the credential sign-in flow. Ordering is fixed: rate-limit gate,
// then credential verification, then token issuance, then rate-limit reset.
func (s *authService) Login(ctx context.Context, email, password, ip string, rememberMe bool) (string, *models.Claims, error) {
	if err := s.limiter.Allow(ctx, email); err != nil {
		if errors.Is(err, ratelimit.ErrRateLimited) {
			return "", nil, ErrTooManyAttempts
		}
		s.logger.Error("Rate limit check failed", zap.Error(err))
		return "", nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	user, err := s.verifyCredentials(ctx, email, password, ip)
	if err != nil {
		return "", nil, err
	}

	ttl := time.Duration(0)
	if rememberMe {
		ttl = s.cfg.Auth.RememberMeTTL
	}

	deviceID := uuid.NewString()
	signed, claims, err := s.issuer.Issue(user, deviceID, time.Time{}, ttl)
	if err != nil {
		s.logger.Error("Failed to sign session token", zap.Error(err))
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		// The sign-in already succeeded; a stale counter only shortens the
		// next failure budget.
		s.logger.Warn("Failed to reset login counter", zap.Error(err))
	}

	s.trail.Record(ctx, audit.Event{
		EventType: audit.EventSessionCreated,
		UserID:    user.ID,
		Email:     user.Email,
		IP:        ip,
		Success:   true,
		Metadata:  map[string]string{"device_id": deviceID},
	})

	return signed, claims, nil
}

// verifyCredentials looks up the user and compares the password. A missing
// user, an OAuth-only account and a wrong password are indistinguishable to
// the caller.
func (s *authService) verifyCredentials(ctx context.Context, email, password, ip string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.registerFailure(ctx, email, ip, "unknown email")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Failed to look up user", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	if user.PasswordHash == nil {
		s.registerFailure(ctx, email, ip, "no password credential")
		return nil, ErrInvalidCredentials
	}

	ok, err := crypto.VerifyPassword(*user.PasswordHash, password)
	if err != nil {
		s.logger.Error("Stored password hash is unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		s.registerFailure(ctx, email, ip, "password mismatch")
		return nil, ErrInvalidCredentials
	}

	if user.Disabled {
		s.registerFailure(ctx, email, ip, "account disabled")
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

func (s *authService) registerFailure(ctx context.Context, email, ip, reason string) {
	if err := s.limiter.RegisterFailure(ctx, email); err != nil && !errors.Is(err, ratelimit.ErrRateLimited) {
		s.logger.Warn("Failed to record login failure", zap.Error(err))
	}

	s.trail.Record(ctx, audit.Event{
		EventType: audit.EventLoginFailed,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		IP:        ip,
		Success:   false,
		Error:     reason,
	})
}

// Session resolves a session token into the session read shape. An errored or
// invalid token yields an anonymous session rather than an error.
func (s *authService) Session(ctx context.Context, tokenString string) (*Session, error) {
	if tokenString == "" {
		return &Session{}, nil
	}

	claims, err := s.issuer.Parse(tokenString)
	if err != nil {
		return &Session{}, nil
	}

	_, claims, err = s.issuer.Ensure(ctx, claims, s.refreshTokenFor(claims.Subject))
	if err != nil {
		return nil, err
	}
	if claims.RefreshError != "" && claims.ProviderExpiresAt != 0 {
		// An errored OAuth session reads as anonymous for protected use.
		return &Session{}, nil
	}

	expires := claims.ExpiresAt.Time
	return &Session{User: claims, Expires: &expires}, nil
}

// refreshTokenFor returns the stored upstream refresh token for the user's
// first linked account that carries one.
func (s *authService) refreshTokenFor(userID string) string {
	accounts, err := s.users.ListAccountsByUser(userID)
	if err != nil {
		s.logger.Warn("Failed to list linked accounts", zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	for _, account := range accounts {
		if account.RefreshToken != nil && *account.RefreshToken != "" {
			return *account.RefreshToken
		}
	}
	return ""
}

// SyncExternalIdentity persists an externally-authenticated identity and
// issues a session token for it. The underlying upsert is transactional and
// idempotent.
func (s *authService) SyncExternalIdentity(ctx context.Context, identity models.ExternalIdentity) (string, *models.User, error) {
	user, err := s.users.SyncExternalIdentity(identity)
	if err != nil {
		s.logger.Error("Failed to sync external identity",
			zap.String("provider", identity.Provider),
			zap.Error(err))
		return "", nil, fmt.Errorf("failed to sync identity: %w", err)
	}

	signed, _, err := s.issuer.Issue(user, uuid.NewString(), time.Now().Add(time.Hour), 0)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.trail.Record(ctx, audit.Event{
		EventType: audit.EventIdentitySynced,
		UserID:    user.ID,
		Email:     user.Email,
		Success:   true,
		Metadata:  map[string]string{"provider": identity.Provider},
	})

	return signed, user, nil
}

// SignOut records the sign-out event. Sign-out must always appear to succeed,
// so nothing here returns an error.
func (s *authService) SignOut(ctx context.Context, claims *models.Claims, ip string) {
	event := audit.Event{
		EventType: audit.EventSignOut,
		IP:        ip,
		Success:   true,
	}
	if claims != nil {
		event.UserID = claims.Subject
		event.Email = claims.Email
	}
	s.trail.Record(ctx, event)
}

// RetryAfter exposes the remaining lockout window for the 429 header. Errors
// degrade to the zero duration; the handler falls back to the full window.
func (s *authService) RetryAfter(ctx context.Context, email string) time.Duration {
	d, err := s.limiter.RetryAfter(ctx, email)
	if err != nil {
		s.logger.Warn("Failed to read rate limit TTL", zap.Error(err))
		return 0
	}
	return d
}
