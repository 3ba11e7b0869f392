package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v5"

	"github.com/bossboard/bossboard/internal/pkg/usercontext"
)

// Claims is the access token body issued by the identity provider.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTConfig configures bearer token authentication.
type JWTConfig struct {
	Secret     string
	AdminEmail string
}

// JWTAuth resolves the bearer token into a user context. Requests without a
// valid token continue as anonymous; RequireAuth decides whether that is fatal.
func JWTAuth(cfg JWTConfig) fiber.Handler {
	secret := []byte(cfg.Secret)
	adminEmail := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	return func(c *fiber.Ctx) error {
		raw := extractBearerToken(c)
		if raw == "" || len(secret) == 0 {
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		claims, err := parseToken(raw, secret)
		if err != nil {
			if !errors.Is(err, jwt.ErrTokenExpired) {
				log.Debugf("[Auth] Rejected bearer token: %v", err)
			}
			usercontext.Set(c, usercontext.UserContext{})
			return c.Next()
		}

		email := strings.TrimSpace(claims.Email)
		usercontext.Set(c, usercontext.UserContext{
			UserID:     claims.Subject,
			Email:      email,
			IsLoggedIn: true,
			IsAdmin:    adminEmail != "" && strings.EqualFold(email, adminEmail),
		})
		return c.Next()
	}
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// SignToken issues an HS256 access token, used by local tooling and tests.
func SignToken(secret, userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
