package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/model"
)

func testManager() *TokenManager {
	return NewTokenManager(TokenConfig{
		Secret:        "test-secret",
		Issuer:        "eventhub",
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		RefreshWindow: 7 * 24 * time.Hour,
	})
}

func TestIssueAndParse(t *testing.T) {
	m := testManager()
	u := &model.User{ID: 42, IsStaff: true}

	pair, err := m.Issue(u)
	require.NoError(t, err)

	access, err := m.Parse(pair.Access, TokenAccess)
	require.NoError(t, err)
	id, err := access.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.True(t, access.IsAdmin)
	assert.NotEmpty(t, access.Id)

	_, err = m.Parse(pair.Access, TokenRefresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	refresh, err := m.Parse(pair.Refresh, TokenRefresh)
	require.NoError(t, err)
	assert.NotEqual(t, access.Id, refresh.Id)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	pair, err := testManager().Issue(&model.User{ID: 1})
	require.NoError(t, err)

	other := NewTokenManager(TokenConfig{Secret: "other", AccessTTL: time.Minute})
	_, err = other.Parse(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	m := testManager()
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	pair, err := m.Issue(&model.User{ID: 1})
	require.NoError(t, err)

	_, err = testManager().Parse(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshWindow(t *testing.T) {
	m := testManager()
	u := &model.User{ID: 7}
	pair, err := m.Issue(u)
	require.NoError(t, err)
	rc, err := m.Parse(pair.Refresh, TokenRefresh)
	require.NoError(t, err)

	access, err := m.Refresh(rc, u)
	require.NoError(t, err)
	ac, err := m.Parse(access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, rc.OriginalIssuedAt, ac.OriginalIssuedAt)

	m.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	_, err = m.Refresh(rc, u)
	assert.ErrorIs(t, err, ErrRefreshExpired)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestNumericCode(t *testing.T) {
	code, err := NumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}
