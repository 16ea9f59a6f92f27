package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/model"
)

// LoggingMiddleware writes one access log line per request.
func LoggingMiddleware(log *zerolog.Logger) func(*ginext.Context) {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= 500:
			ev = log.Error()
		case status >= 400:
			ev = log.Warn()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		ev.Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Int64("user_id", c.GetInt64(auth.CtxUserID)).
			Msg("request")
	}
}

// Auth requires a valid access token in the Authorization header.
func Auth(tokens *auth.TokenManager) func(*ginext.Context) {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			dto.UnauthorizedError(c, "Authentication credentials were not provided")
			c.Abort()
			return
		}
		claims, err := tokens.Parse(strings.TrimSpace(raw), auth.TokenAccess)
		if err != nil {
			dto.UnauthorizedError(c, err.Error())
			c.Abort()
			return
		}
		uid, err := claims.UserID()
		if err != nil {
			dto.UnauthorizedError(c, auth.ErrInvalidToken.Error())
			c.Abort()
			return
		}
		c.Set(auth.CtxUserID, uid)
		c.Set(auth.CtxIsAdmin, claims.IsAdmin)
		c.Next()
	}
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAdmin lets through active staff users. The token claim is rechecked against the database.
func RequireAdmin(users UserLookup, log *zerolog.Logger) func(*ginext.Context) {
	return func(c *ginext.Context) {
		if !c.GetBool(auth.CtxIsAdmin) {
			dto.ForbiddenError(c, "You do not have permission to perform this action.")
			c.Abort()
			return
		}
		u, err := users.GetUserByID(c.Request.Context(), c.GetInt64(auth.CtxUserID))
		if err != nil {
			log.Warn().Err(err).Int64("user_id", c.GetInt64(auth.CtxUserID)).Msg("admin lookup failed")
			dto.ForbiddenError(c, "You do not have permission to perform this action.")
			c.Abort()
			return
		}
		if !u.IsActive || !u.IsStaff {
			dto.ForbiddenError(c, "You do not have permission to perform this action.")
			c.Abort()
			return
		}
		c.Next()
	}
}
