package handlers

import (
	"net/http"

	"food-marketplace-api/models"
	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type UpdateAddressRequest struct {
	AddressID string `json:"addressId"`
	services.AddressInput
}

// ListAddresses returns the caller's address book; admins may pass userId
func (h *Handler) ListAddresses(c *gin.Context) {
	addrs, err := h.svc.Addresses.List(c.Request.Context(), currentUser(c), c.Query("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(addrs), "addresses": addrs})
}

func (h *Handler) CreateAddress(c *gin.Context) {
	var req services.AddressInput
	if !bind(c, &req) {
		return
	}
	addr, err := h.svc.Addresses.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Address saved successfully", "address": addr})
}

func (h *Handler) UpdateAddress(c *gin.Context) {
	var req UpdateAddressRequest
	if !bind(c, &req) {
		return
	}
	addr, err := h.svc.Addresses.Update(c.Request.Context(), currentUser(c), req.AddressID, req.AddressInput)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Address updated successfully", "address": addr})
}

func (h *Handler) DeleteAddress(c *gin.Context) {
	if err := h.svc.Addresses.Delete(c.Request.Context(), currentUser(c), c.Query("addressId")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Address deleted successfully"})
}

// ListFavorites returns the caller's favorites, optionally of one type
func (h *Handler) ListFavorites(c *gin.Context) {
	favs, err := h.svc.Favorites.List(c.Request.Context(), currentUser(c).ID, models.FavoriteType(c.Query("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(favs), "favorites": favs})
}

func (h *Handler) AddFavorite(c *gin.Context) {
	var req services.FavoriteInput
	if !bind(c, &req) {
		return
	}
	fav, err := h.svc.Favorites.Add(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Added to favorites", "favorite": fav})
}

// RemoveFavorite deletes by ?id or by ?itemType&itemId
func (h *Handler) RemoveFavorite(c *gin.Context) {
	err := h.svc.Favorites.Remove(c.Request.Context(), currentUser(c).ID,
		c.Query("id"), models.FavoriteType(c.Query("itemType")), c.Query("itemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Removed from favorites"})
}
