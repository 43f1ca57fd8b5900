package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

var (
	ErrSignerConfig  = errors.New("jwt signer misconfigured")
	ErrMissingBearer = errors.New("missing bearer token")
	ErrMissingUserID = errors.New("token missing user id")
)

var signingMethod = jwt.SigningMethodHS256

// AccessTokenPayload is what a caller asks MintAccessToken to sign.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims is the typed body of an access token. For suppliers the
// user id doubles as the supplier id.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

func checkConfig(cfg config.JWTConfig, minting bool) error {
	switch {
	case cfg.Secret == "":
		return fmt.Errorf("%w: secret is required", ErrSignerConfig)
	case minting && cfg.Issuer == "":
		return fmt.Errorf("%w: issuer is required", ErrSignerConfig)
	case minting && cfg.ExpirationMinutes <= 0:
		return fmt.Errorf("%w: expiration minutes must be positive", ErrSignerConfig)
	}
	return nil
}

// MintAccessToken signs an HS256 token that expires after the configured TTL.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if err := checkConfig(cfg, true); err != nil {
		return "", err
	}
	if _, err := enums.ParseActorRole(string(payload.Role)); err != nil {
		return "", err
	}
	if payload.UserID == uuid.Nil {
		return "", ErrMissingUserID
	}

	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	ttl := time.Duration(cfg.ExpirationMinutes) * time.Minute
	token := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then the
// marketplace claims on top of them.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if err := checkConfig(cfg, false); err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	claims := new(AccessTokenClaims)
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}); err != nil {
		return nil, err
	}

	if _, err := enums.ParseActorRole(string(claims.Role)); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively; a bare token is accepted too.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		header = strings.TrimSpace(rest)
	}
	if header == "" || strings.EqualFold(header, "bearer") {
		return "", ErrMissingBearer
	}
	return header, nil
}
