package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "marketplace", ExpirationMinutes: 30}

func mint(t *testing.T, cfg config.JWTConfig, at time.Time, role enums.ActorRole) string {
	t.Helper()
	token, err := MintAccessToken(cfg, at, AccessTokenPayload{UserID: uuid.New(), Role: role})
	require.NoError(t, err)
	return token
}

func TestAccessTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := MintAccessToken(jwtCfg, time.Now().UTC(), AccessTokenPayload{UserID: userID, Role: enums.ActorRoleSupplier, JTI: " fixed "})
	require.NoError(t, err)

	claims, err := ParseAccessToken(jwtCfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.ActorRoleSupplier, claims.Role)
	assert.Equal(t, "marketplace", claims.Issuer)
	assert.Equal(t, "fixed", claims.ID)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestMintValidatesInput(t *testing.T) {
	_, err := MintAccessToken(jwtCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleSystem})
	assert.Error(t, err, "system actors never hold tokens")

	_, err = MintAccessToken(jwtCfg, time.Now(), AccessTokenPayload{Role: enums.ActorRoleClient})
	assert.ErrorIs(t, err, ErrMissingUserID)

	noTTL := jwtCfg
	noTTL.ExpirationMinutes = 0
	_, err = MintAccessToken(noTTL, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleClient})
	assert.ErrorIs(t, err, ErrSignerConfig)

	_, err = ParseAccessToken(config.JWTConfig{}, "x")
	assert.ErrorIs(t, err, ErrSignerConfig)
}

func TestParseRejectsBadTokens(t *testing.T) {
	expired := mint(t, jwtCfg, time.Now().Add(-2*time.Hour), enums.ActorRoleClient)
	_, err := ParseAccessToken(jwtCfg, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreignCfg := jwtCfg
	foreignCfg.Issuer = "someone-else"
	_, err = ParseAccessToken(jwtCfg, mint(t, foreignCfg, time.Now(), enums.ActorRoleClient))
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	otherKey := jwtCfg
	otherKey.Secret = "other"
	_, err = ParseAccessToken(jwtCfg, mint(t, otherKey, time.Now(), enums.ActorRoleAdmin))
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtCfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(jwtCfg.Secret))
	require.NoError(t, err)
	_, err = ParseAccessToken(jwtCfg, hs512)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":    "abc",
		"bearer   abc ": "abc",
		"abc":           "abc",
	} {
		got, err := BearerToken(header)
		require.NoError(t, err, header)
		assert.Equal(t, want, got, header)
	}
	for _, header := range []string{"", "  ", "Bearer", "Bearer   "} {
		_, err := BearerToken(header)
		assert.ErrorIs(t, err, ErrMissingBearer, "%q", header)
	}
}

func TestActorHelpers(t *testing.T) {
	sys := System()
	assert.True(t, sys.IsSystem())
	assert.Nil(t, sys.IDPtr())

	id := uuid.New()
	actor := ActorFromClaims(&AccessTokenClaims{UserID: id, Role: enums.ActorRoleSupplier})
	assert.True(t, actor.IsSupplier())
	assert.False(t, actor.IsAdmin() || actor.IsClient())
	require.NotNil(t, actor.IDPtr())
	assert.Equal(t, id, *actor.IDPtr())
	assert.Equal(t, Actor{}, ActorFromClaims(nil))
}
