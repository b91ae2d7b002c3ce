package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/config"
	"food-marketplace-api/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type userMap map[string]*models.User

func (m userMap) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("User not found")
}

var jwtCfg = config.JWTConfig{Secret: "test-secret", TokenTTL: time.Hour, Issuer: "food-marketplace-api"}

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens(jwtCfg)
	tok, err := tokens.Generate(&models.User{ID: "u-1", Email: "a@example.com"})
	require.NoError(t, err)

	claims, err := tokens.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "food-marketplace-api", claims.Issuer)
}

func TestTokensRejectForgedAndExpired(t *testing.T) {
	tokens := NewTokens(jwtCfg)
	user := &models.User{ID: "u-1"}

	forged, err := NewTokens(config.JWTConfig{Secret: "other", TokenTTL: time.Hour, Issuer: jwtCfg.Issuer}).Generate(user)
	require.NoError(t, err)
	_, err = tokens.Parse(forged)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	foreign, err := NewTokens(config.JWTConfig{Secret: jwtCfg.Secret, TokenTTL: time.Hour, Issuer: "someone-else"}).Generate(user)
	require.NoError(t, err)
	_, err = tokens.Parse(foreign)
	assert.True(t, apperr.Is(err, apperr.KindUnauthenticated))

	expired, err := NewTokens(config.JWTConfig{Secret: jwtCfg.Secret, TokenTTL: -time.Minute, Issuer: jwtCfg.Issuer}).Generate(user)
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	require.Error(t, err)
	assert.Equal(t, "Token has expired", err.Error())
}

func guardedRouter(tokens *Tokens, users UserFinder, roles ...models.UserRole) *gin.Engine {
	r := gin.New()
	chain := []gin.HandlerFunc{AuthRequired(tokens, users)}
	if len(roles) > 0 {
		chain = append(chain, RoleRequired(roles...))
	}
	chain = append(chain, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID})
	})
	r.GET("/private", chain...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthRequired(t *testing.T) {
	tokens := NewTokens(jwtCfg)
	buyer := &models.User{ID: "u-1", Role: models.RoleCustomer}
	r := guardedRouter(tokens, userMap{buyer.ID: buyer})

	w := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authentication required", errorBody(t, w)["error"])

	tok, err := tokens.Generate(buyer)
	require.NoError(t, err)
	w = get(r, tok)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", errorBody(t, w)["id"])

	ghost, err := tokens.Generate(&models.User{ID: "deleted"})
	require.NoError(t, err)
	w = get(r, ghost)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", errorBody(t, w)["error"])
}

func TestRoleRequired(t *testing.T) {
	tokens := NewTokens(jwtCfg)
	buyer := &models.User{ID: "u-1", Role: models.RoleCustomer}
	admin := &models.User{ID: "u-2", Role: models.RoleAdmin}
	r := guardedRouter(tokens, userMap{buyer.ID: buyer, admin.ID: admin}, models.RoleRestaurantOwner, models.RoleAdmin)

	tok, _ := tokens.Generate(buyer)
	w := get(r, tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied. Required role(s): restaurant_owner, admin", errorBody(t, w)["error"])

	tok, _ = tokens.Generate(admin)
	assert.Equal(t, http.StatusOK, get(r, tok).Code)
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	r := gin.New()
	r.GET("/login", NewRateLimiter(2).Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 3)
	var last *httptest.ResponseRecorder
	for i := range codes {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/login", nil))
		codes[i] = last.Code
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "60", last.Header().Get("Retry-After"))
	assert.Equal(t, "RATE_LIMITED", errorBody(t, last)["code"])
}

func TestRequestIDAndRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))
	body := errorBody(t, w)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, w.Body.String(), "kaboom")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://shop.example.com"}}))
	r.GET("/api/restaurants", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/api/restaurants", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
