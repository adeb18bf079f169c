package token

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"ngdi-portal/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Refresher exchanges a refresh token for a new upstream access token. The
// returned expiry may be zero when the provider does not report one.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken string, expiresAt time.Time, err error)
}

// Config holds signing and lifetime parameters for session tokens.
type Config struct {
	Secret []byte
	// AccessTTL bounds the JWT itself.
	AccessTTL time.Duration
	// RefreshExtension is the fallback validity extension applied after a
	// successful upstream refresh when the provider reports no expiry.
	RefreshExtension time.Duration
}

// Issuer creates, verifies and refreshes signed session tokens.
type Issuer struct {
	config    Config
	refresher Refresher
	logger    *zap.Logger
	now       func() time.Time
}

func NewIssuer(cfg Config, refresher Refresher, logger *zap.Logger) *Issuer {
	return &Issuer{
		config:    cfg,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// Issue signs a session token for the user. Claims are always derived from
// the user row; providerExpiresAt is non-zero only for OAuth sessions.
func (i *Issuer) Issue(user *models.User, deviceID string, providerExpiresAt time.Time, ttl time.Duration) (string, *models.Claims, error) {
	if ttl <= 0 {
		ttl = i.config.AccessTTL
	}

	now := i.now()
	claims := &models.Claims{
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		DeviceID:      deviceID,
		EmailVerified: user.EmailVerifiedAt != nil,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if !providerExpiresAt.IsZero() {
		claims.ProviderExpiresAt = providerExpiresAt.Unix()
	}

	signed, err := i.sign(claims)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Parse verifies the signature and validity of a session token.
func (i *Issuer) Parse(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, i.keyFunc, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Ensure implements the token lifecycle: while the upstream access token is
// unexpired the claims are reused unchanged; once expired a refresh is
// attempted. A failed refresh keeps the prior claims verbatim and only adds
// the refresh error flag, so nothing is lost while downstream consumers can
// treat the session as unauthenticated.
func (i *Issuer) Ensure(ctx context.Context, claims *models.Claims, refreshToken string) (string, *models.Claims, error) {
	if claims.ProviderExpiresAt == 0 || i.now().Unix() < claims.ProviderExpiresAt {
		signed, err := i.sign(claims)
		return signed, claims, err
	}

	if i.refresher == nil || refreshToken == "" {
		return i.markErrored(claims, "no refresh token available")
	}

	_, expiresAt, err := i.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		i.logger.Warn("Upstream token refresh failed", zap.Error(err))
		return i.markErrored(claims, "refresh failed")
	}

	refreshed := *claims
	refreshed.RefreshError = ""
	if !expiresAt.IsZero() {
		// Honor the provider-reported expiry when present.
		refreshed.ProviderExpiresAt = expiresAt.Unix()
	} else {
		refreshed.ProviderExpiresAt = i.now().Add(i.config.RefreshExtension).Unix()
	}

	signed, err := i.sign(&refreshed)
	return signed, &refreshed, err
}

func (i *Issuer) markErrored(claims *models.Claims, reason string) (string, *models.Claims, error) {
	errored := *claims
	errored.RefreshError = reason

	signed, err := i.sign(&errored)
	return signed, &errored, err
}

// Update enumerates the session fields a client may override on a session
// update trigger. Anything not listed here is ignored.
type Update struct {
	Name *string
}

// Merge applies an update to a copy of the claims. Identity and role claims
// are never client-overridable.
func Merge(claims models.Claims, update Update) models.Claims {
	if update.Name != nil {
		claims.Name = *update.Name
	}
	return claims
}

func (i *Issuer) sign(claims *models.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.config.Secret)
}

func (i *Issuer) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, jwt.ErrSignatureInvalid
	}
	return i.config.Secret, nil
}
