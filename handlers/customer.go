package handlers

import (
	"net/http"

	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type RedeemRequest struct {
	Code    string  `json:"code" binding:"required"`
	Amount  float64 `json:"amount" binding:"required"`
	OrderID string  `json:"orderId" binding:"required"`
}

type GiftCardCheckRequest struct {
	Code string `json:"code"`
}

// PlaceOrder prices and creates an order for the caller
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req services.PlaceOrderInput
	if !bind(c, &req) {
		return
	}
	placed, err := h.svc.Orders.Place(c.Request.Context(), currentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{
		"message":     "Order placed successfully",
		"order":       placed.Order,
		"orderNumber": placed.Order.OrderNumber(),
		"tracking":    placed.Tracking,
	})
}

// GetMyOrders lists the caller's orders; admins may pass userId
func (h *Handler) GetMyOrders(c *gin.Context) {
	orders, err := h.svc.Orders.ListForUser(c.Request.Context(), currentUser(c), c.Query("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

func (h *Handler) GetOrderDetail(c *gin.Context) {
	order, err := h.svc.Orders.Get(c.Request.Context(), currentUser(c), c.Param("orderId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"order": order})
}

// CancelOrder cancels an order that the kitchen has not started
func (h *Handler) CancelOrder(c *gin.Context) {
	var req CancelOrderRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	order, err := h.svc.Orders.Cancel(c.Request.Context(), currentUser(c), c.Param("orderId"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Order cancelled successfully", "order": order})
}

// ValidateCoupon quotes a coupon against a cart without consuming it
func (h *Handler) ValidateCoupon(c *gin.Context) {
	var req services.CouponCheck
	if !bind(c, &req) {
		return
	}
	quote, err := h.svc.Coupons.Validate(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"coupon": quote})
}

func (h *Handler) CheckGiftCard(c *gin.Context) {
	var req GiftCardCheckRequest
	if !bind(c, &req) {
		return
	}
	card, err := h.svc.GiftCards.Check(c.Request.Context(), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"giftCard": card})
}

// RedeemGiftCard debits a gift card for an order
func (h *Handler) RedeemGiftCard(c *gin.Context) {
	var req RedeemRequest
	if !bind(c, &req) {
		return
	}
	r, err := h.svc.GiftCards.Redeem(c.Request.Context(), currentUser(c).ID, req.Code, req.Amount, req.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Gift card redeemed successfully", "giftCard": r})
}
