package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/partypay/pkg/apperr"
	"github.com/fatflowers/partypay/pkg/logctx"
	"github.com/fatflowers/partypay/pkg/response"
	"github.com/fatflowers/partypay/pkg/types"
)

const actorKey = "actor"

var (
	ErrMissingCredentials = apperr.New(apperr.CodeUnauthorized, "missing credentials")
	ErrInvalidToken       = apperr.New(apperr.CodeUnauthorized, "invalid token")
	ErrAuthNotConfigured  = apperr.New(apperr.CodeConfig, "authentication is not configured")
	ErrRoleNotAllowed     = apperr.New(apperr.CodeForbidden, "role not allowed")
)

// Claims are issued by the account service: sub is the user id.
type Claims struct {
	Role types.UserRole `json:"role"`
	jwt.StandardClaims
}

// ParseToken validates an HS256 token and returns the caller it names.
func ParseToken(secret []byte, raw string) (types.Actor, error) {
	if len(secret) == 0 {
		return types.Actor{}, ErrAuthNotConfigured
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return types.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return types.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !lo.Contains([]types.UserRole{types.UserRoleClient, types.UserRoleProvider, types.UserRoleAdmin}, claims.Role) {
		return types.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return types.Actor{UserID: claims.Subject, Role: claims.Role}, nil
}

// AuthMiddleware requires a bearer token and stores the caller on the context.
func AuthMiddleware(secret string, base *zap.SugaredLogger) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}
		if raw == "" {
			response.Abort(c, ErrMissingCredentials)
			return
		}
		actor, err := ParseToken(key, raw)
		if err != nil {
			if !errors.Is(err, ErrAuthNotConfigured) {
				logctx.FromGin(c, base).Infow("auth_rejected", "error", err.Error())
			}
			response.Abort(c, err)
			return
		}

		c.Set(actorKey, actor)
		c.Set(logctx.UserIDKey, actor.UserID)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), actor.UserID))
		setLogger(c, logctx.FromGin(c, base).With("user_id", actor.UserID, "actor_role", actor.Role))
		c.Next()
	}
}

// RequireRole lets only the given roles through. It must run after AuthMiddleware.
func RequireRole(roles ...types.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Abort(c, ErrMissingCredentials)
			return
		}
		if !lo.Contains(roles, actor.Role) {
			response.Abort(c, fmt.Errorf("%w: %s", ErrRoleNotAllowed, actor.Role))
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated caller.
func ActorFrom(c *gin.Context) (types.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return types.Actor{}, false
	}
	actor, ok := v.(types.Actor)
	return actor, ok
}

// WithActor stores actor on c, for tests and internal callers.
func WithActor(c *gin.Context, actor types.Actor) {
	c.Set(actorKey, actor)
}
