package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "havenkeep-test",
	}
}

func TestNewManagerValidation(t *testing.T) {
	cfg := testConfig()
	cfg.AccessSecret = nil
	_, err := NewManager(cfg)
	require.Error(t, err)

	cfg = testConfig()
	cfg.RefreshSecret = nil
	_, err = NewManager(cfg)
	require.Error(t, err)

	cfg = testConfig()
	cfg.AccessTTL = 0
	_, err = NewManager(cfg)
	require.Error(t, err)

	cfg = testConfig()
	cfg.Leeway = 5 * time.Minute
	_, err = NewManager(cfg)
	require.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	token, expiresAt, err := m.CreateAccess("user-1", "premium", "owner")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	claims, err := m.ParseAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "premium", claims.Plan)
	assert.Equal(t, "owner", claims.Role)
	assert.Equal(t, "havenkeep-test", claims.Issuer)
}

func TestRefreshTokenCarriesOnlySubject(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	token, _, err := m.CreateRefresh("user-1")
	require.NoError(t, err)

	claims, err := m.ParseRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	access, _, err := m.CreateAccess("user-1", "free", "member")
	require.NoError(t, err)
	refresh, _, err := m.CreateRefresh("user-1")
	require.NoError(t, err)

	_, err = m.ParseAccess(refresh)
	require.Error(t, err, "refresh token must not verify as access token")

	_, err = m.ParseRefresh(access)
	require.Error(t, err, "access token must not verify as refresh token")
}

func TestParseAccessExpired(t *testing.T) {
	cfg := testConfig()
	cfg.AccessTTL = time.Millisecond
	m, err := NewManager(cfg)
	require.NoError(t, err)

	token, _, err := m.CreateAccess("user-1", "free", "member")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = m.ParseAccess(token)
	require.Error(t, err)
	assert.True(t, IsExpired(err))
	assert.False(t, IsMalformed(err))
}

func TestParseAccessMalformed(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	_, err = m.ParseAccess("not-a-token")
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
}

func TestParseAccessWrongSecret(t *testing.T) {
	m, err := NewManager(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.AccessSecret = []byte("a-different-secret-entirely")
	m2, err := NewManager(other)
	require.NoError(t, err)

	token, _, err := m.CreateAccess("user-1", "free", "member")
	require.NoError(t, err)

	_, err = m2.ParseAccess(token)
	require.Error(t, err)
	assert.False(t, IsMalformed(err))
}
