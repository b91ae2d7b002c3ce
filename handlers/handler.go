// Package handlers adapts HTTP requests onto the services layer.
package handlers

import (
	"strconv"

	"food-marketplace-api/apperr"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"
	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *services.Services
}

func New(svc *services.Services) *Handler {
	return &Handler{svc: svc}
}

// bind decodes the JSON body, writing a 400 envelope on failure
func bind(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, apperr.Validation("Invalid request body: "+err.Error()))
		return false
	}
	return true
}

// queryInt reads an integer query parameter; malformed values fall back
func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

func currentUser(c *gin.Context) *models.User {
	return middleware.CurrentUser(c)
}
