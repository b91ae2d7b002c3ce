package handlers

import (
	"net/http"

	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// CreatePayment opens a gateway order for an unpaid order
func (h *Handler) CreatePayment(c *gin.Context) {
	var req services.CreatePaymentInput
	if !bind(c, &req) {
		return
	}
	created, err := h.svc.Payments.CreateOrder(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"order": created.Order, "keyId": created.KeyID})
}

// VerifyPayment checks the gateway signature and settles the order
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req services.VerifyPaymentInput
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Payments.Verify(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Payment verified successfully", "order": order})
}
