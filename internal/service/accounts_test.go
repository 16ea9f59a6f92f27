package service

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/model"
)

func registerBody(email string) map[string]string {
	return map[string]string{
		"email":            email,
		"password":         "correct-horse",
		"password_confirm": "correct-horse",
		"first_name":       "Ali",
		"last_name":        "Rezaei",
		"phone_number":     "09121234567",
	}
}

func TestRegisterCreatesInactiveUserAndMailsCode(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.svc.Register, http.MethodPost, "/register", "/register", registerBody("Ali@Example.com"), 0)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	u, err := h.store.GetUserByEmail(t.Context(), "ali@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ali@example.com", u.Email)
	assert.False(t, u.IsActive)
	require.NotNil(t, u.VerificationCode)
	assert.Len(t, *u.VerificationCode, 6)
	assert.Equal(t, testNow.Add(10*time.Minute), *u.VerificationExpiresAt)
	assert.True(t, auth.CheckPassword(u.PasswordHash, "correct-horse"))

	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "ali@example.com", h.mail.sent[0].To)
	assert.Contains(t, h.mail.sent[0].Text, *u.VerificationCode)
	assert.NotContains(t, w.Body.String(), "password_hash")
}

func TestRegisterRejectsActiveEmail(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.svc.Register, http.MethodPost, "/register", "/register", registerBody("leader@example.com"), 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.AlreadyRegistered, errorCode(t, w))
	assert.Empty(t, h.mail.sent)
}

func TestRegisterResendsCodeToInactiveEmail(t *testing.T) {
	h := newHarness(t)
	h.store.users[2] = &model.User{ID: 2, Email: "ali@example.com"}

	w := h.do(h.svc.Register, http.MethodPost, "/register", "/register", registerBody("ali@example.com"), 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, h.store.users[2].VerificationCode)
	require.Len(t, h.mail.sent, 1)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	mismatch := registerBody("ali@example.com")
	mismatch["password_confirm"] = "something-else"
	w := h.do(h.svc.Register, http.MethodPost, "/register", "/register", mismatch, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.FieldIncorrect, errorCode(t, w))

	badPhone := registerBody("ali@example.com")
	badPhone["phone_number"] = "12345"
	w = h.do(h.svc.Register, http.MethodPost, "/register", "/register", badPhone, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(h.svc.Register, http.MethodPost, "/register", "/register", "{not json", 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.FieldIncorrect, errorCode(t, w))
}

func TestVerifyEmail(t *testing.T) {
	code := "123456"

	t.Run("valid code activates", func(t *testing.T) {
		h := newHarness(t)
		exp := testNow.Add(5 * time.Minute)
		h.store.users[2] = &model.User{ID: 2, Email: "ali@example.com", VerificationCode: &code, VerificationExpiresAt: &exp}

		w := h.do(h.svc.VerifyEmail, http.MethodPost, "/verify", "/verify",
			map[string]string{"email": "ali@example.com", "code": code}, 0)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.True(t, h.store.users[2].IsActive)
		assert.Nil(t, h.store.users[2].VerificationCode)
	})

	t.Run("expired code", func(t *testing.T) {
		h := newHarness(t)
		exp := testNow.Add(-time.Minute)
		h.store.users[2] = &model.User{ID: 2, Email: "ali@example.com", VerificationCode: &code, VerificationExpiresAt: &exp}

		w := h.do(h.svc.VerifyEmail, http.MethodPost, "/verify", "/verify",
			map[string]string{"email": "ali@example.com", "code": code}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, h.store.users[2].IsActive)
	})

	t.Run("wrong code", func(t *testing.T) {
		h := newHarness(t)
		exp := testNow.Add(5 * time.Minute)
		h.store.users[2] = &model.User{ID: 2, Email: "ali@example.com", VerificationCode: &code, VerificationExpiresAt: &exp}

		w := h.do(h.svc.VerifyEmail, http.MethodPost, "/verify", "/verify",
			map[string]string{"email": "ali@example.com", "code": "654321"}, 0)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.FieldIncorrect, errorCode(t, w))
	})

	t.Run("unknown email", func(t *testing.T) {
		h := newHarness(t)
		w := h.do(h.svc.VerifyEmail, http.MethodPost, "/verify", "/verify",
			map[string]string{"email": "ghost@example.com", "code": code}, 0)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestObtainToken(t *testing.T) {
	h := newHarness(t)
	hash, err := auth.HashPassword("secret-pass")
	require.NoError(t, err)
	h.store.users[1].PasswordHash = hash
	h.store.users[2] = &model.User{ID: 2, Email: "new@example.com", PasswordHash: hash}

	w := h.do(h.svc.ObtainToken, http.MethodPost, "/token", "/token",
		map[string]string{"email": "leader@example.com", "password": "secret-pass"}, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pair := data[dto.TokenPairResponse](t, w)
	claims, err := h.tokens.Parse(pair.Access, auth.TokenAccess)
	require.NoError(t, err)
	uid, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), uid)
	_, err = h.tokens.Parse(pair.Refresh, auth.TokenRefresh)
	assert.NoError(t, err)

	w = h.do(h.svc.ObtainToken, http.MethodPost, "/token", "/token",
		map[string]string{"email": "leader@example.com", "password": "wrong"}, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.Unauthorized, errorCode(t, w))

	w = h.do(h.svc.ObtainToken, http.MethodPost, "/token", "/token",
		map[string]string{"email": "new@example.com", "password": "secret-pass"}, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.EmailNotVerified, errorCode(t, w))
}

func TestRefreshAndRevoke(t *testing.T) {
	h := newHarness(t)
	pair, err := h.tokens.Issue(h.store.users[1])
	require.NoError(t, err)
	body := map[string]string{"refresh": pair.Refresh}

	w := h.do(h.svc.RefreshToken, http.MethodPost, "/refresh", "/refresh", body, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	access := data[dto.AccessResponse](t, w).Access
	_, err = h.tokens.Parse(access, auth.TokenAccess)
	require.NoError(t, err)

	w = h.do(h.svc.RefreshToken, http.MethodPost, "/refresh", "/refresh", map[string]string{"refresh": pair.Access}, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(h.svc.RevokeToken, http.MethodPost, "/revoke", "/revoke", body, 0)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, h.store.revoked, 1)

	w = h.do(h.svc.RefreshToken, http.MethodPost, "/refresh", "/refresh", body, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotPassword(t *testing.T) {
	h := newHarness(t)
	h.store.users[1].PasswordHash = "old"

	w := h.do(h.svc.ForgotPassword, http.MethodPost, "/forgot", "/forgot",
		map[string]string{"email": "ghost@example.com"}, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, h.mail.sent)

	w = h.do(h.svc.ForgotPassword, http.MethodPost, "/forgot", "/forgot",
		map[string]string{"email": "leader@example.com"}, 0)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "Your temporary password", h.mail.sent[0].Subject)
	assert.NotEqual(t, "old", h.store.users[1].PasswordHash)
}

func TestProfileRequiresActiveUser(t *testing.T) {
	h := newHarness(t)

	w := h.do(h.svc.GetProfile, http.MethodGet, "/me", "/me", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	h.store.users[1].IsActive = false
	w = h.do(h.svc.GetProfile, http.MethodGet, "/me", "/me", nil, 1)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	h.store.users[1].IsActive = true
	w = h.do(h.svc.GetProfile, http.MethodGet, "/me", "/me", nil, 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "leader@example.com", data[model.User](t, w).Email)
}
