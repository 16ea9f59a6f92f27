package service

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

const (
	msgVerificationSent = "A verification code has been sent to your email."
	msgResetSent        = "If an account with this email exists, a temporary password has been sent to it."
	msgBadCredentials   = "No active account found with the given credentials"
)

// sendVerification issues a new code, stores it and mails it to u.
func (s *service) sendVerification(ctx *ginext.Context, u *model.User) error {
	code, err := auth.NumericCode(6)
	if err != nil {
		return err
	}
	if err := s.store.SetVerificationCode(ctx.Request.Context(), u.ID, code, s.now().Add(s.cfg.VerificationTTL)); err != nil {
		return err
	}
	s.mail.Send(ctx.Request.Context(), mailer.VerificationCode(u.Email, u.FirstName, code, int(s.cfg.VerificationTTL.Minutes())))
	return nil
}

func (s *service) Register(ctx *ginext.Context) {
	var req dto.RegisterRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.store.GetUserByEmail(ctx.Request.Context(), email)
	switch {
	case err == nil && existing.IsActive:
		dto.BadResponseError(ctx, dto.AlreadyRegistered, "A user with this email already exists.")
		return
	case err == nil:
		if err := s.sendVerification(ctx, existing); err != nil {
			s.fail(ctx, err, "failed to resend verification code")
			return
		}
		dto.SuccessMessage(ctx, http.StatusOK, msgVerificationSent)
		return
	case !errors.Is(err, repo.ErrUserNotFound):
		s.fail(ctx, err, "failed to look up user")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.fail(ctx, err, "failed to hash password")
		return
	}
	code, err := auth.NumericCode(6)
	if err != nil {
		s.fail(ctx, err, "failed to generate verification code")
		return
	}
	expires := s.now().Add(s.cfg.VerificationTTL)
	u := &model.User{
		Email:                 email,
		PasswordHash:          hash,
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		PhoneNumber:           req.PhoneNumber,
		VerificationCode:      &code,
		VerificationExpiresAt: &expires,
	}
	id, err := s.store.CreateUser(ctx.Request.Context(), u)
	if err != nil {
		s.fail(ctx, err, "failed to create user")
		return
	}
	u.ID = id
	s.mail.Send(ctx.Request.Context(), mailer.VerificationCode(u.Email, u.FirstName, code, int(s.cfg.VerificationTTL.Minutes())))

	s.log.Info().Int64("user_id", id).Msg("user registered")
	dto.SuccessCreatedResponse(ctx, u)
}

func (s *service) VerifyEmail(ctx *ginext.Context) {
	var req dto.VerifyEmailRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	u, err := s.store.GetUserByEmail(ctx.Request.Context(), req.Email)
	if err != nil {
		s.fail(ctx, err, "failed to look up user")
		return
	}
	if u.IsActive {
		dto.BadResponseError(ctx, dto.InvalidState, "Email is already verified.")
		return
	}
	if u.VerificationCode == nil || *u.VerificationCode != req.Code ||
		u.VerificationExpiresAt == nil || s.now().After(*u.VerificationExpiresAt) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid or expired verification code.")
		return
	}
	if err := s.store.ActivateUser(ctx.Request.Context(), u.ID); err != nil {
		s.fail(ctx, err, "failed to activate user")
		return
	}
	s.log.Info().Int64("user_id", u.ID).Msg("email verified")
	dto.SuccessMessage(ctx, http.StatusOK, "Email verified successfully.")
}

func (s *service) ResendVerification(ctx *ginext.Context) {
	var req dto.EmailRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	u, err := s.store.GetUserByEmail(ctx.Request.Context(), req.Email)
	if errors.Is(err, repo.ErrUserNotFound) {
		dto.SuccessMessage(ctx, http.StatusOK, "If an account with this email exists, a verification code has been sent.")
		return
	}
	if err != nil {
		s.fail(ctx, err, "failed to look up user")
		return
	}
	if u.IsActive {
		dto.BadResponseError(ctx, dto.InvalidState, "Email is already verified.")
		return
	}
	if err := s.sendVerification(ctx, u); err != nil {
		s.fail(ctx, err, "failed to resend verification code")
		return
	}
	dto.SuccessMessage(ctx, http.StatusOK, msgVerificationSent)
}

func (s *service) ObtainToken(ctx *ginext.Context) {
	var req dto.TokenRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	u, err := s.store.GetUserByEmail(ctx.Request.Context(), req.Email)
	if errors.Is(err, repo.ErrUserNotFound) {
		dto.UnauthorizedError(ctx, msgBadCredentials)
		return
	}
	if err != nil {
		s.fail(ctx, err, "failed to look up user")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		dto.UnauthorizedError(ctx, msgBadCredentials)
		return
	}
	if !u.IsActive {
		dto.ErrorResponse(ctx, http.StatusUnauthorized, dto.EmailNotVerified, "Email is not verified.", nil)
		return
	}
	pair, err := s.tokens.Issue(u)
	if err != nil {
		s.fail(ctx, err, "failed to issue tokens")
		return
	}
	dto.SuccessResponse(ctx, dto.TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// refreshClaims parses a refresh token that has not been revoked.
func (s *service) refreshClaims(ctx *ginext.Context, token string) (*auth.Claims, bool) {
	claims, err := s.tokens.Parse(token, auth.TokenRefresh)
	if err != nil {
		dto.UnauthorizedError(ctx, err.Error())
		return nil, false
	}
	revoked, err := s.store.IsTokenRevoked(ctx.Request.Context(), claims.Id)
	if err != nil {
		s.fail(ctx, err, "failed to check token blacklist")
		return nil, false
	}
	if revoked {
		dto.UnauthorizedError(ctx, repo.ErrTokenRevoked.Error())
		return nil, false
	}
	return claims, true
}

func (s *service) RefreshToken(ctx *ginext.Context) {
	var req dto.RefreshRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	claims, ok := s.refreshClaims(ctx, req.Refresh)
	if !ok {
		return
	}
	uid, err := claims.UserID()
	if err != nil {
		dto.UnauthorizedError(ctx, auth.ErrInvalidToken.Error())
		return
	}
	u, err := s.store.GetUserByID(ctx.Request.Context(), uid)
	if err != nil || !u.IsActive {
		dto.UnauthorizedError(ctx, msgBadCredentials)
		return
	}
	access, err := s.tokens.Refresh(claims, u)
	if errors.Is(err, auth.ErrRefreshExpired) {
		dto.UnauthorizedError(ctx, err.Error())
		return
	}
	if err != nil {
		s.fail(ctx, err, "failed to refresh token")
		return
	}
	dto.SuccessResponse(ctx, dto.AccessResponse{Access: access})
}

func (s *service) RevokeToken(ctx *ginext.Context) {
	var req dto.RefreshRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	claims, ok := s.refreshClaims(ctx, req.Refresh)
	if !ok {
		return
	}
	if err := s.store.RevokeToken(ctx.Request.Context(), claims.Id, auth.ExpiresAt(claims)); err != nil {
		s.fail(ctx, err, "failed to revoke token")
		return
	}
	dto.SuccessMessage(ctx, http.StatusOK, "Token revoked.")
}

func (s *service) GetProfile(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	dto.SuccessResponse(ctx, u)
}

func (s *service) UpdateProfile(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.ProfileRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	first, last, phone := u.FirstName, u.LastName, u.PhoneNumber
	if req.FirstName != nil {
		first = *req.FirstName
	}
	if req.LastName != nil {
		last = *req.LastName
	}
	if req.PhoneNumber != nil {
		phone = *req.PhoneNumber
	}
	updated, err := s.store.UpdateProfile(ctx.Request.Context(), u.ID, first, last, phone)
	if err != nil {
		s.fail(ctx, err, "failed to update profile")
		return
	}
	dto.SuccessResponse(ctx, updated)
}

func (s *service) ChangePassword(ctx *ginext.Context) {
	u, ok := s.currentUser(ctx)
	if !ok {
		return
	}
	var req dto.ChangePasswordRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Old password is incorrect.")
		return
	}
	if req.NewPassword == req.OldPassword {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "New password must differ from the old one.")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		s.fail(ctx, err, "failed to hash password")
		return
	}
	if err := s.store.SetPassword(ctx.Request.Context(), u.ID, hash); err != nil {
		s.fail(ctx, err, "failed to change password")
		return
	}
	s.log.Info().Int64("user_id", u.ID).Msg("password changed")
	dto.SuccessMessage(ctx, http.StatusOK, "Password changed successfully.")
}

// ForgotPassword answers the same way whether or not the email is known.
func (s *service) ForgotPassword(ctx *ginext.Context) {
	var req dto.EmailRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	if err := s.resetPassword(ctx, req.Email); err != nil && !errors.Is(err, repo.ErrUserNotFound) {
		s.log.Error().Err(err).Msg("failed to reset password")
	}
	dto.SuccessMessage(ctx, http.StatusOK, msgResetSent)
}

func (s *service) resetPassword(ctx *ginext.Context, email string) error {
	u, err := s.store.GetUserByEmail(ctx.Request.Context(), email)
	if err != nil {
		return err
	}
	pwd, err := auth.NumericCode(8)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(pwd)
	if err != nil {
		return err
	}
	if err := s.store.SetPassword(ctx.Request.Context(), u.ID, hash); err != nil {
		return err
	}
	s.mail.Send(ctx.Request.Context(), mailer.TemporaryPassword(u.Email, u.FirstName, pwd))
	return nil
}
