package handlers

import (
	"net/http"

	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LocationRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Address   string   `json:"address"`
}

// Signup creates a customer account and returns a token
func (h *Handler) Signup(c *gin.Context) {
	var req services.SignupInput
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Users.Signup(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"data": res, "message": "Account created successfully"})
}

// Login authenticates with email and password
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"data": res, "message": "Login successful"})
}

// GoogleSignIn links or creates an account from a verified Google identity
func (h *Handler) GoogleSignIn(c *gin.Context) {
	var req services.GoogleInput
	if !bind(c, &req) {
		return
	}
	res, err := h.svc.Users.Google(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"data": res, "message": "Google sign-in successful"})
}

// GetProfile returns the authenticated user's profile
func (h *Handler) GetProfile(c *gin.Context) {
	response.Data(c, http.StatusOK, gin.H{"user": currentUser(c)})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req services.ProfileInput
	if !bind(c, &req) {
		return
	}
	user, err := h.svc.Users.UpdateProfile(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"data": gin.H{"user": user}, "message": "Profile updated successfully"})
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	var req LocationRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.svc.Users.UpdateLocation(c.Request.Context(), currentUser(c), *req.Latitude, *req.Longitude, req.Address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"user": user, "message": "Location updated successfully"})
}
