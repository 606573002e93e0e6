package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/societyhub/society-server/internal/config"
	"github.com/societyhub/society-server/internal/models"
)

type userMap map[uuid.UUID]*models.User

func (m userMap) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, assert.AnError
	}
	return u, nil
}

func newManager(users userMap) *JWTManager {
	return NewJWTManager(&config.JWTConfig{
		Secret:          "test-secret-0123456789",
		Issuer:          "society-server",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}, users)
}

func TestTokenRoundTrip(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@example.com", Role: models.RoleOwner, IsActive: true}
	m := newManager(userMap{user.ID: user})

	pair, err := m.GenerateTokenPair(user)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.Equal(t, 60, pair.ExpiresIn)

	claims, err := m.ValidateToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: user.ID, Role: models.RoleOwner}, claims.Actor())
	assert.Equal(t, "a@example.com", claims.Email)

	// refresh tokens are not access tokens
	_, err = m.ValidateToken(pair.RefreshToken)
	assert.Error(t, err)
}

func TestRefreshRereadsUser(t *testing.T) {
	ctx := context.Background()
	user := &models.User{ID: uuid.New(), Email: "a@example.com", Role: models.RoleTenant, IsActive: true}
	users := userMap{user.ID: user}
	m := newManager(users)

	pair, err := m.GenerateTokenPair(user)
	require.NoError(t, err)

	user.Role = models.RoleOwner
	refreshed, err := m.RefreshToken(ctx, pair.RefreshToken)
	require.NoError(t, err)

	claims, err := m.ValidateToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, claims.Role)

	user.IsActive = false
	_, err = m.RefreshToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInactiveUser)

	// an access token cannot be used to refresh
	_, err = m.RefreshToken(ctx, refreshed.AccessToken)
	assert.Error(t, err)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	m := newManager(userMap{})

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "society-server",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		UserID: uuid.New(),
		Role:   models.RoleAdmin,
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-000000"))
	require.NoError(t, err)

	_, err = m.ValidateToken(forged)
	assert.Error(t, err)

	expired := claims
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString([]byte("test-secret-0123456789"))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestClaimsContext(t *testing.T) {
	_, ok := ClaimsFrom(context.Background())
	assert.False(t, ok)

	claims := &Claims{UserID: uuid.New(), Role: models.RoleAdmin}
	got, ok := ClaimsFrom(WithClaims(context.Background(), claims))
	require.True(t, ok)
	assert.Same(t, claims, got)
}
