package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"food-marketplace-api/handlers"
	"food-marketplace-api/internal/testutil"
	"food-marketplace-api/middleware"
	"food-marketplace-api/models"
	"food-marketplace-api/payment"
	"food-marketplace-api/routes"
	"food-marketplace-api/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type api struct {
	t          *testing.T
	db         *gorm.DB
	svc        *services.Services
	tokens     *middleware.Tokens
	router     *gin.Engine
	restaurant *models.Restaurant
	thali      *models.MenuItem
	buyer      *models.User
	owner      *models.User
	admin      *models.User
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.DB(t)
	cfg := testutil.Config()
	clock := testutil.NewClock()
	tokens := middleware.NewTokens(cfg.JWT)
	svc := services.New(db, cfg, services.Deps{Tokens: tokens, Clock: clock.Now})

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery())
	routes.SetupRoutes(r, handlers.New(svc), routes.Guards{
		Auth:      middleware.AuthRequired(tokens, svc.Users),
		AuthLimit: middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute).Middleware(),
	})

	a := &api{t: t, db: db, svc: svc, tokens: tokens, router: r}
	a.restaurant = testutil.Restaurant(t, db, "rest-001")
	a.thali = testutil.MenuItem(t, db, a.restaurant.ID, "Veg Thali", 500, "Main Course")
	a.buyer = testutil.User(t, db, models.RoleCustomer, "")
	a.owner = testutil.User(t, db, models.RoleRestaurantOwner, a.restaurant.ID)
	a.admin = testutil.User(t, db, models.RoleAdmin, "")
	return a
}

func (a *api) token(u *models.User) string {
	a.t.Helper()
	tok, err := a.tokens.Generate(u)
	require.NoError(a.t, err)
	return tok
}

// do sends a request as user (nil for anonymous) with an optional JSON body
func (a *api) do(method, path string, user *models.User, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(user))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (a *api) placeOrder() string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/orders", a.buyer, gin.H{
		"restaurantId": a.restaurant.ID,
		"items":        []gin.H{{"menuItemId": a.thali.ID, "quantity": 2}},
		"deliveryAddress": gin.H{
			"fullAddress": "12 MG Road",
			"city":        "Bengaluru",
			"pincode":     "560001",
			"phone":       "9876543210",
		},
		"platform": "swiggy",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(a.t, w)["order"].(map[string]any)
	return order["id"].(string)
}

func TestSignupThenProfile(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/auth/signup", nil, gin.H{
		"name": "Asha Rao", "email": "asha@example.com", "phone": "9123456780", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Account created successfully", body["message"])
	token := body["data"].(map[string]any)["token"].(string)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, "asha@example.com", user["email"])
	assert.Equal(t, "customer", user["role"])
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	w = a.do(http.MethodPost, "/api/auth/login", nil, gin.H{"email": "asha@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", decode(t, w)["code"])
}

func TestAuthGuards(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/admin/stats", a.buyer, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/owner/orders", a.buyer, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/admin/users", a.owner, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/owner/orders", a.owner, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/admin/stats", a.admin, nil).Code)
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token(a.buyer))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
}

func TestPublicCatalog(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/restaurants", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = a.do(http.MethodGet, "/api/menu/"+a.restaurant.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	menu := decode(t, w)["data"].(map[string]any)
	assert.Len(t, menu["menuItems"], 1)

	w = a.do(http.MethodGet, "/api/menu/price-comparison?restaurantId="+a.restaurant.ID, nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/restaurants/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/api/order-lifecycle", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["transitions"])
	assert.ElementsMatch(t, []any{"delivered", "cancelled"}, body["terminalStates"])
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	a := newAPI(t)
	orderID := a.placeOrder()

	w := a.do(http.MethodGet, "/api/orders/"+orderID, a.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode(t, w)["order"].(map[string]any)
	assert.EqualValues(t, 1000, order["subtotal"])

	w = a.do(http.MethodGet, "/api/orders/tracking?orderId="+orderID, a.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	tracking := decode(t, w)["tracking"].(map[string]any)
	assert.Equal(t, "pending", tracking["status"])

	w = a.do(http.MethodPatch, "/api/owner/orders", a.owner, gin.H{"orderId": orderID, "status": "delivered"})
	require.Equal(t, http.StatusConflict, w.Code)
	details := decode(t, w)["details"].(map[string]any)
	assert.Contains(t, details["validNextStates"], "confirmed")

	w = a.do(http.MethodPatch, "/api/owner/orders", a.owner, gin.H{"orderId": orderID, "status": "confirmed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Order status updated to confirmed", decode(t, w)["message"])

	w = a.do(http.MethodGet, "/api/orders/tracking?orderId="+orderID, a.buyer, nil)
	tracking = decode(t, w)["tracking"].(map[string]any)
	assert.Equal(t, "confirmed", tracking["status"])
	assert.Len(t, tracking["statusHistory"], 2)

	w = a.do(http.MethodGet, "/api/orders", a.buyer, nil)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = a.do(http.MethodGet, "/api/orders?userId="+a.owner.ID, a.buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCancelAndStreamTerminalTracking(t *testing.T) {
	a := newAPI(t)
	orderID := a.placeOrder()

	w := a.do(http.MethodPost, "/api/orders/"+orderID+"/cancel", a.buyer, gin.H{"reason": "ordered twice"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "cancelled", decode(t, w)["order"].(map[string]any)["status"])

	w = a.do(http.MethodGet, "/api/orders/tracking?stream=true&orderId="+orderID, a.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")
	frames := strings.Split(strings.TrimSpace(w.Body.String()), "\n\n")
	require.Len(t, frames, 1)
	assert.True(t, strings.HasPrefix(frames[0], "data:"), frames[0])
	assert.NotContains(t, frames[0], "event:")

	var ev struct {
		Type     string         `json:"type"`
		Tracking map[string]any `json:"tracking"`
	}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data:")), &ev))
	assert.Equal(t, "initial", ev.Type)
	assert.Equal(t, "cancelled", ev.Tracking["status"])
}

func TestStreamErrorsBeforeFirstEventAreJSON(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodGet, "/api/orders/tracking?stream=true&orderId=missing", a.buyer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestTrackingPingByOwner(t *testing.T) {
	a := newAPI(t)
	orderID := a.placeOrder()

	w := a.do(http.MethodPatch, "/api/orders/tracking", a.owner, gin.H{
		"orderId":        orderID,
		"location":       gin.H{"latitude": 12.97, "longitude": 77.59},
		"deliveryPerson": gin.H{"name": "Ravi"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Tracking updated", decode(t, w)["message"])

	w = a.do(http.MethodPatch, "/api/orders/tracking", a.buyer, gin.H{
		"orderId":  orderID,
		"location": gin.H{"latitude": 12.97, "longitude": 77.59},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/api/orders/tracking", a.buyer, gin.H{"orderId": orderID})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCouponAndGiftCardEndpoints(t *testing.T) {
	a := newAPI(t)
	testutil.Coupon(t, a.db, "SAVE50", models.CouponFixed, 50)
	testutil.GiftCard(t, a.db, "GIFT-100", 100)

	w := a.do(http.MethodPost, "/api/coupons/validate", a.buyer, gin.H{"code": "SAVE50", "orderAmount": 400})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 50, decode(t, w)["coupon"].(map[string]any)["discountAmount"])

	w = a.do(http.MethodPost, "/api/coupons/validate", a.buyer, gin.H{"code": "NOPE", "orderAmount": 400})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPost, "/api/gift-cards/check", a.buyer, gin.H{"code": "GIFT-100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 100, decode(t, w)["giftCard"].(map[string]any)["balance"])

	w = a.do(http.MethodPatch, "/api/gift-cards/check", a.buyer, gin.H{"code": "GIFT-100", "amount": 150, "orderId": "order-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", decode(t, w)["code"])

	w = a.do(http.MethodPatch, "/api/gift-cards/check", a.buyer, gin.H{"code": "GIFT-100", "amount": 40, "orderId": "order-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/api/admin/gift-cards/GIFT-100", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 60, decode(t, w)["giftCard"].(map[string]any)["balance"])
}

func TestAddressAndFavoriteEndpoints(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/addresses", a.buyer, gin.H{
		"label": "Home", "address": "12 MG Road", "city": "Bengaluru", "pincode": "560001", "phone": "9876543210",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	addressID := decode(t, w)["address"].(map[string]any)["id"].(string)

	w = a.do(http.MethodPatch, "/api/addresses", a.buyer, gin.H{"addressId": addressID, "city": "Mysuru"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Mysuru", decode(t, w)["address"].(map[string]any)["city"])

	w = a.do(http.MethodDelete, "/api/addresses?addressId="+addressID, a.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(http.MethodGet, "/api/addresses", a.buyer, nil)
	assert.EqualValues(t, 0, decode(t, w)["count"])

	fav := gin.H{"itemType": "restaurant", "itemId": a.restaurant.ID, "itemName": a.restaurant.Name}
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/favorites", a.buyer, fav).Code)
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/api/favorites", a.buyer, fav).Code)

	w = a.do(http.MethodDelete, "/api/favorites?itemType=restaurant&itemId="+a.restaurant.ID, a.buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Removed from favorites", decode(t, w)["message"])
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodDelete, "/api/favorites", a.buyer, nil).Code)
}

func TestOwnerMenuManagement(t *testing.T) {
	a := newAPI(t)

	w := a.do(http.MethodPost, "/api/owner/menu", a.owner, gin.H{
		"restaurantId": a.restaurant.ID, "name": "Masala Dosa", "price": 120, "category": "Breakfast",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	itemID := decode(t, w)["menuItem"].(map[string]any)["id"].(string)

	w = a.do(http.MethodPatch, "/api/owner/menu/"+itemID, a.owner, gin.H{"price": 140})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 140, decode(t, w)["menuItem"].(map[string]any)["price"])

	other := testutil.User(t, a.db, models.RoleRestaurantOwner, "rest-999")
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/api/owner/menu/"+itemID, other, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/api/owner/menu/"+itemID, a.owner, nil).Code)

	w = a.do(http.MethodGet, "/api/owner/restaurants", a.owner, nil)
	assert.EqualValues(t, 1, decode(t, w)["count"])
}

func TestAdminCommissionEndpoints(t *testing.T) {
	a := newAPI(t)
	orderID := a.placeOrder()
	require.NoError(t, a.db.Model(&models.Order{}).Where("id = ?", orderID).
		Update("payment_status", models.PaymentCompleted).Error)

	w := a.do(http.MethodGet, "/api/admin/commission", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode(t, w)["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["totalOrders"])

	w = a.do(http.MethodPatch, "/api/admin/commission", a.admin, gin.H{"orderId": orderID, "type": "payout", "status": "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Restaurant payout status updated", decode(t, w)["message"])

	w = a.do(http.MethodPost, "/api/admin/commission", a.admin, gin.H{"orderId": orderID, "commissionRate": 150})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/api/admin/commission/export", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestAdminAnalyticsEndpoints(t *testing.T) {
	a := newAPI(t)
	a.placeOrder()

	w := a.do(http.MethodGet, "/api/admin/analytics/order-trends?days=7", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decode(t, w)["data"].(map[string]any)["trends"])

	w = a.do(http.MethodGet, "/api/admin/analytics/order-trends?groupBy=hour", a.admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, "/api/admin/analytics/popular-items", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["data"].(map[string]any)["totalItems"])

	w = a.do(http.MethodGet, "/api/admin/users?role=customer", a.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Len(t, data["users"], 1)
}

func TestPaymentEndpoints(t *testing.T) {
	a := newAPI(t)
	orderID := a.placeOrder()

	w := a.do(http.MethodPost, "/api/payment/create-order", a.buyer, gin.H{"orderId": orderID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "key_test", body["keyId"])
	gatewayOrderID := body["order"].(map[string]any)["id"].(string)

	w = a.do(http.MethodPost, "/api/payment/verify", a.buyer, gin.H{
		"gatewayOrderId":   gatewayOrderID,
		"gatewayPaymentId": "pay_1",
		"gatewaySignature": "deadbeef",
		"orderId":          orderID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])

	paidID := a.placeOrder()
	w = a.do(http.MethodPost, "/api/payment/create-order", a.buyer, gin.H{"orderId": paidID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	gatewayOrderID = decode(t, w)["order"].(map[string]any)["id"].(string)

	w = a.do(http.MethodPost, "/api/payment/verify", a.buyer, gin.H{
		"gatewayOrderId":   gatewayOrderID,
		"gatewayPaymentId": "pay_2",
		"gatewaySignature": payment.Sign("pay-secret", gatewayOrderID, "pay_2"),
		"orderId":          paidID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decode(t, w)
	assert.Equal(t, "Payment verified successfully", body["message"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "confirmed", order["status"])
	assert.Equal(t, "completed", order["paymentStatus"])
}
