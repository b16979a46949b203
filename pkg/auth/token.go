package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// Admin tokens are HS256 only; any other alg in the header is rejected before the key is used.
var signingMethod = jwt.SigningMethodHS256

var (
	ErrMissingSecret = errors.New("jwt secret is required")
	ErrInvalidRole   = errors.New("invalid admin role")
)

// MintAdminToken issues a signed admin JWT valid for cfg.ExpirationMinutes from now.
func MintAdminToken(cfg config.JWTConfig, now time.Time, payload AdminTokenPayload) (string, error) {
	if err := checkMintable(cfg, payload); err != nil {
		return "", err
	}

	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	claims := AdminClaims{Role: payload.Role}
	claims.Subject = strings.TrimSpace(payload.Subject)
	claims.Issuer = cfg.Issuer
	claims.ID = id
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

func checkMintable(cfg config.JWTConfig, payload AdminTokenPayload) error {
	switch {
	case cfg.Secret == "":
		return ErrMissingSecret
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return errors.New("jwt expiration minutes must be positive")
	case strings.TrimSpace(payload.Subject) == "":
		return errors.New("jwt subject is required")
	case !payload.Role.IsValid():
		return fmt.Errorf("%w %q", ErrInvalidRole, payload.Role)
	}
	return nil
}

// ParseAdminToken verifies signature, issuer and expiry and returns the typed claims.
func ParseAdminToken(cfg config.JWTConfig, raw string) (*AdminClaims, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	claims := new(AdminClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("%w %q", ErrInvalidRole, claims.Role)
	}
	return claims, nil
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively; a bare token is accepted as-is.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if strings.EqualFold(header, "bearer") {
		return ""
	}
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}
