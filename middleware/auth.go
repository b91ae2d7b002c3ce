package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/config"
	"food-marketplace-api/models"
	"food-marketplace-api/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userKey = "user"

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserFinder loads the live user referenced by a token
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Tokens issues and verifies signed bearer tokens
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokens(cfg config.JWTConfig) *Tokens {
	return &Tokens{secret: []byte(cfg.Secret), ttl: cfg.TokenTTL, issuer: cfg.Issuer}
}

// Generate creates a signed JWT for a given user
func (t *Tokens) Generate(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    t.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies the signature before any claim is trusted
func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(tok *jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Unauthenticated("Token has expired")
		}
		return nil, apperr.Unauthenticated("Invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperr.Unauthenticated("Invalid token")
	}
	return claims, nil
}

// AuthRequired validates the bearer token and injects the live user into context
func AuthRequired(tokens *Tokens, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			response.Error(c, apperr.Unauthenticated("Authentication required"))
			return
		}
		claims, err := tokens.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			response.Error(c, err)
			return
		}
		user, err := users.FindByID(c.Request.Context(), claims.Subject)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				response.Error(c, apperr.Unauthenticated("User not found"))
				return
			}
			response.Error(c, err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Error(c, apperr.Unauthenticated("Authentication required"))
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		response.Error(c, apperr.Forbidden("Access denied. Required role(s): "+rolesString(roles)))
	}
}

// CurrentUser returns the authenticated user, or nil outside AuthRequired
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}

func rolesString(roles []models.UserRole) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}
