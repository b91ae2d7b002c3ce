package handlers

import (
	"net/http"

	"food-marketplace-api/models"
	"food-marketplace-api/response"
	"food-marketplace-api/services"
	"food-marketplace-api/statemachine"

	"github.com/gin-gonic/gin"
)

// ListRestaurants returns restaurants filtered by cuisine, name, or open state
func (h *Handler) ListRestaurants(c *gin.Context) {
	restaurants, err := h.svc.Catalog.Restaurants(c.Request.Context(), services.RestaurantFilter{
		Cuisine:  c.Query("cuisine"),
		Search:   c.Query("search"),
		OpenOnly: c.Query("open") == "true",
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}

func (h *Handler) GetRestaurant(c *gin.Context) {
	restaurant, err := h.svc.Catalog.Restaurant(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"restaurant": restaurant})
}

// GetMenu returns the available menu of a restaurant
func (h *Handler) GetMenu(c *gin.Context) {
	menu, err := h.svc.Catalog.Menu(c.Request.Context(), c.Param("restaurantId"), c.Query("category"), c.Query("isVeg") == "true")
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Data(c, http.StatusOK, menu)
}

// ComparePrices ranks the platform prices of a restaurant's items
func (h *Handler) ComparePrices(c *gin.Context) {
	cmp, err := h.svc.Catalog.ComparePrices(c.Request.Context(), c.Query("restaurantId"), c.Query("itemName"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Data(c, http.StatusOK, cmp)
}

// GetOrderLifecycle documents the order state machine
func (h *Handler) GetOrderLifecycle(c *gin.Context) {
	terminal := []models.OrderStatus{}
	for _, s := range models.OrderStatuses {
		if s.Terminal() {
			terminal = append(terminal, s)
		}
	}
	response.JSON(c, http.StatusOK, gin.H{
		"transitions":    statemachine.GetAllTransitions(),
		"statuses":       models.OrderStatuses,
		"terminalStates": terminal,
		"description":    "Food marketplace order lifecycle",
	})
}
