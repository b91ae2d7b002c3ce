package handlers

import (
	"fmt"
	"net/http"
	"time"

	"food-marketplace-api/models"
	"food-marketplace-api/response"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CommissionStatusRequest struct {
	OrderID string                    `json:"orderId" binding:"required"`
	Type    services.SettlementTarget `json:"type" binding:"required"`
	Status  models.SettlementStatus   `json:"status" binding:"required"`
}

type CommissionRateRequest struct {
	OrderID        string   `json:"orderId" binding:"required"`
	CommissionRate *float64 `json:"commissionRate" binding:"required"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func commissionFilter(c *gin.Context) services.CommissionFilter {
	return services.CommissionFilter{
		StartDate:    c.Query("startDate"),
		EndDate:      c.Query("endDate"),
		RestaurantID: c.Query("restaurantId"),
		Status:       models.SettlementStatus(c.Query("status")),
	}
}

// CommissionReport summarizes commission and payouts over paid orders
func (h *Handler) CommissionReport(c *gin.Context) {
	report, err := h.svc.Commission.Report(c.Request.Context(), commissionFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"summary":      report.Summary,
		"byRestaurant": report.ByRestaurant,
		"byDate":       report.ByDate,
	})
}

// SetCommissionStatus settles the commission or the payout of an order
func (h *Handler) SetCommissionStatus(c *gin.Context) {
	var req CommissionStatusRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Commission.SetStatus(c.Request.Context(), req.OrderID, req.Type, req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	msg := "Commission status updated"
	if req.Type == services.TargetPayout {
		msg = "Restaurant payout status updated"
	}
	response.JSON(c, http.StatusOK, gin.H{"message": msg, "order": order})
}

// SetCommissionRate recomputes an order's commission at a new rate
func (h *Handler) SetCommissionRate(c *gin.Context) {
	var req CommissionRateRequest
	if !bind(c, &req) {
		return
	}
	order, err := h.svc.Commission.SetRate(c.Request.Context(), req.OrderID, *req.CommissionRate)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Commission rate updated", "order": order})
}

// ExportCommission streams the commission report as an xlsx workbook
func (h *Handler) ExportCommission(c *gin.Context) {
	book, err := h.svc.Commission.ExportXLSX(c.Request.Context(), commissionFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer func() {
		if err := book.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close commission workbook")
		}
	}()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="commission-%s.xlsx"`, time.Now().Format("20060102")))
	c.Status(http.StatusOK)
	if err := book.Write(c.Writer); err != nil {
		log.Error().Err(err).Msg("Failed to write commission workbook")
	}
}

func (h *Handler) PlatformStats(c *gin.Context) {
	stats, err := h.svc.Analytics.PlatformStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Data(c, http.StatusOK, stats)
}

func (h *Handler) OrderTrends(c *gin.Context) {
	trends, err := h.svc.Analytics.OrderTrends(c.Request.Context(), queryInt(c, "days", 30), c.DefaultQuery("groupBy", "day"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Data(c, http.StatusOK, trends)
}

func (h *Handler) PopularItems(c *gin.Context) {
	items, err := h.svc.Analytics.PopularItems(c.Request.Context(), queryInt(c, "days", 30), queryInt(c, "limit", 20))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Data(c, http.StatusOK, items)
}

// ListUsers pages through accounts by role and name/email/phone search
func (h *Handler) ListUsers(c *gin.Context) {
	users, page, err := h.svc.Users.List(c.Request.Context(), services.UserFilter{
		Role:   models.UserRole(c.Query("role")),
		Search: c.Query("search"),
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Data(c, http.StatusOK, gin.H{"users": users, "pagination": page})
}

func (h *Handler) CreateRestaurant(c *gin.Context) {
	var req services.RestaurantInput
	if !bind(c, &req) {
		return
	}
	restaurant, err := h.svc.Catalog.CreateRestaurant(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Restaurant created", "restaurant": restaurant})
}

func (h *Handler) CreateCoupon(c *gin.Context) {
	var req services.CouponInput
	if !bind(c, &req) {
		return
	}
	coupon, err := h.svc.Coupons.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Coupon created", "coupon": coupon})
}

// IssueGiftCard creates a gift card purchased by the calling admin
func (h *Handler) IssueGiftCard(c *gin.Context) {
	var req services.GiftCardInput
	if !bind(c, &req) {
		return
	}
	card, err := h.svc.GiftCards.Issue(c.Request.Context(), currentUser(c).ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"message": "Gift card issued", "giftCard": card})
}

// GiftCardLedger returns a card with its transaction history
func (h *Handler) GiftCardLedger(c *gin.Context) {
	card, err := h.svc.GiftCards.Ledger(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"giftCard": card})
}
