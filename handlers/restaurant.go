package handlers

import (
	"net/http"

	"food-marketplace-api/models"
	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// OwnerRestaurants lists the restaurants the caller operates
func (h *Handler) OwnerRestaurants(c *gin.Context) {
	restaurants, err := h.svc.Catalog.OwnerRestaurants(c.Request.Context(), currentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

func (h *Handler) AddMenuItem(c *gin.Context) {
	var req services.MenuItemInput
	if !bind(c, &req) {
		return
	}
	item, err := h.svc.Catalog.AddMenuItem(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Menu item added", "menuItem": item})
}

func (h *Handler) UpdateMenuItem(c *gin.Context) {
	var req services.MenuItemInput
	if !bind(c, &req) {
		return
	}
	item, err := h.svc.Catalog.UpdateMenuItem(c.Request.Context(), currentUser(c), c.Param("itemId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Menu item updated", "menuItem": item})
}

func (h *Handler) DeleteMenuItem(c *gin.Context) {
	if err := h.svc.Catalog.DeleteMenuItem(c.Request.Context(), currentUser(c), c.Param("itemId")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Menu item deleted"})
}

// OwnerOrders returns the incoming order queue of a restaurant
func (h *Handler) OwnerOrders(c *gin.Context) {
	res, err := h.svc.Analytics.OwnerOrders(c.Request.Context(), currentUser(c), services.OwnerOrderFilter{
		RestaurantID: c.Query("restaurantId"),
		Status:       models.OrderStatus(c.Query("status")),
		Page:         queryInt(c, "page", 1),
		Limit:        queryInt(c, "limit", 50),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"orders":     res.Orders,
		"pagination": res.Pagination,
		"stats":      res.Stats,
	})
}

// UpdateOrderStatus moves an order along its lifecycle
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req services.UpdateStatusInput
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Orders.UpdateStatus(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"message": "Order status updated to " + string(order.Status),
		"order":   order,
	})
}
