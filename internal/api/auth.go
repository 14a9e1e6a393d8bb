package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	adminKeyHeader = "x-admin-key"
	bearerPrefix   = "Bearer "
)

var (
	errMissingCredential = errors.New("admin credential required")
	errForbiddenIdentity = errors.New("identity is not an admin")
)

// AuthConfig holds the accepted admin credentials. An empty field disables
// that credential kind.
type AuthConfig struct {
	AdminKey     string
	AllowedEmail string
	TokenSecret  string
}

// Principal is the authenticated admin behind a request
type Principal struct {
	Email  string
	Method string
}

// Actor names the principal in activity logs and events
func (p Principal) Actor() string {
	if p.Email != "" {
		return p.Email
	}
	return "admin-key"
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the authenticated admin, if any
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// identityClaims is the payload of an admin identity token
type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AdminAuth accepts either the shared admin key or a signed identity token
// for the allowed email.
func AdminAuth(cfg AuthConfig) gin.HandlerFunc {
	logger := util.GetLogger()

	return func(c *gin.Context) {
		principal, err := authenticate(cfg, c.GetHeader(adminKeyHeader), c.GetHeader("Authorization"))
		if err != nil {
			logger.Warn("Admin authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))

			code := http.StatusUnauthorized
			if errors.Is(err, errForbiddenIdentity) {
				code = http.StatusForbidden
			}
			c.AbortWithStatusJSON(code, gin.H{
				"error":   http.StatusText(code),
				"details": err.Error(),
			})
			return
		}

		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

func authenticate(cfg AuthConfig, adminKey, authorization string) (Principal, error) {
	if adminKey != "" {
		if cfg.AdminKey == "" || subtle.ConstantTimeCompare([]byte(adminKey), []byte(cfg.AdminKey)) != 1 {
			return Principal{}, errors.New("admin key rejected")
		}
		return Principal{Method: "key"}, nil
	}

	if !strings.HasPrefix(authorization, bearerPrefix) {
		return Principal{}, errMissingCredential
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix))
	if raw == "" || cfg.TokenSecret == "" {
		return Principal{}, errMissingCredential
	}

	claims := &identityClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.TokenSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Principal{}, errors.New("identity token rejected")
	}

	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" || cfg.AllowedEmail == "" || email != strings.ToLower(cfg.AllowedEmail) {
		return Principal{}, errForbiddenIdentity
	}
	return Principal{Email: email, Method: "token"}, nil
}

func actor(c *gin.Context) string {
	p, _ := PrincipalFrom(c.Request.Context())
	return p.Actor()
}
