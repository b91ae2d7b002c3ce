package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/pricing"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AnalyticsService answers the read-only dashboards for admins and restaurant operators
type AnalyticsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAnalyticsService(db *gorm.DB, clock func() time.Time) *AnalyticsService {
	return &AnalyticsService{db: db, now: clock}
}

type UserStats struct {
	Total            int64   `json:"total"`
	Admins           int64   `json:"admins"`
	Customers        int64   `json:"customers"`
	RestaurantOwners int64   `json:"restaurantOwners"`
	Verified         int64   `json:"verified"`
	VerificationRate float64 `json:"verificationRate"`
}

type MenuStats struct {
	Total         int64 `json:"total"`
	Available     int64 `json:"available"`
	Unavailable   int64 `json:"unavailable"`
	Vegetarian    int64 `json:"vegetarian"`
	NonVegetarian int64 `json:"nonVegetarian"`
}

type RestaurantItemCount struct {
	RestaurantID string  `json:"restaurantId"`
	Count        int64   `json:"count"`
	AvgPrice     float64 `json:"avgPrice"`
}

type CategoryItemCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type PlatformStats struct {
	Users        UserStats             `json:"users"`
	Restaurants  int64                 `json:"restaurants"`
	MenuItems    MenuStats             `json:"menuItems"`
	RecentUsers  []models.PublicUser   `json:"recentUsers"`
	ByRestaurant []RestaurantItemCount `json:"itemsByRestaurant"`
	ByCategory   []CategoryItemCount   `json:"itemsByCategory"`
}

// PlatformStats runs the independent counts concurrently
func (s *AnalyticsService) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	out := &PlatformStats{}
	var recent []models.User
	g, gctx := errgroup.WithContext(ctx)

	count := func(model any, dest *int64, where ...any) {
		g.Go(func() error {
			q := s.db.WithContext(gctx).Model(model)
			if len(where) > 0 {
				q = q.Where(where[0], where[1:]...)
			}
			return q.Count(dest).Error
		})
	}
	count(&models.User{}, &out.Users.Total)
	count(&models.User{}, &out.Users.Admins, "role = ?", models.RoleAdmin)
	count(&models.User{}, &out.Users.Customers, "role = ?", models.RoleCustomer)
	count(&models.User{}, &out.Users.RestaurantOwners, "role = ?", models.RoleRestaurantOwner)
	count(&models.User{}, &out.Users.Verified, "is_email_verified = ?", true)
	count(&models.Restaurant{}, &out.Restaurants)
	count(&models.MenuItem{}, &out.MenuItems.Total)
	count(&models.MenuItem{}, &out.MenuItems.Available, "is_available = ?", true)
	count(&models.MenuItem{}, &out.MenuItems.Vegetarian, "is_veg = ?", true)

	g.Go(func() error {
		return s.db.WithContext(gctx).Order("created_at DESC").Limit(5).Find(&recent).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.MenuItem{}).
			Select("restaurant_id, COUNT(*) AS count, AVG(price) AS avg_price").
			Group("restaurant_id").Order("count DESC, restaurant_id ASC").
			Scan(&out.ByRestaurant).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).Model(&models.MenuItem{}).
			Select("category, COUNT(*) AS count").
			Group("category").Order("count DESC, category ASC").
			Scan(&out.ByCategory).Error
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.FromDB(err, "")
	}

	out.MenuItems.Unavailable = out.MenuItems.Total - out.MenuItems.Available
	out.MenuItems.NonVegetarian = out.MenuItems.Total - out.MenuItems.Vegetarian
	if out.Users.Total > 0 {
		rate := float64(out.Users.Verified) / float64(out.Users.Total) * 100
		out.Users.VerificationRate = math.Round(rate*10) / 10
	}
	out.RecentUsers = make([]models.PublicUser, 0, len(recent))
	for i := range recent {
		out.RecentUsers = append(out.RecentUsers, recent[i].Public())
	}
	for i := range out.ByRestaurant {
		out.ByRestaurant[i].AvgPrice = pricing.Round2(out.ByRestaurant[i].AvgPrice)
	}
	if out.ByRestaurant == nil {
		out.ByRestaurant = []RestaurantItemCount{}
	}
	if out.ByCategory == nil {
		out.ByCategory = []CategoryItemCount{}
	}
	return out, nil
}

type TrendBucket struct {
	Period          string  `json:"period"`
	TotalOrders     int     `json:"totalOrders"`
	TotalRevenue    float64 `json:"totalRevenue"`
	AvgOrderValue   float64 `json:"avgOrderValue"`
	CompletedOrders int     `json:"completedOrders"`
	CancelledOrders int     `json:"cancelledOrders"`
}

type TrendSummary struct {
	TotalOrders      int     `json:"totalOrders"`
	TotalRevenue     float64 `json:"totalRevenue"`
	CompletedOrders  int     `json:"completedOrders"`
	CancelledOrders  int     `json:"cancelledOrders"`
	AvgOrderValue    float64 `json:"avgOrderValue"`
	CompletionRate   float64 `json:"completionRate"`
	CancellationRate float64 `json:"cancellationRate"`
}

type Period struct {
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Days      int        `json:"days"`
}

type OrderTrends struct {
	Trends  []TrendBucket `json:"trends"`
	Summary TrendSummary  `json:"summary"`
	Period  Period        `json:"period"`
}

// bucketKey formats a timestamp as day (2006-01-02), ISO week (2006-W01) or month (2006-01)
func bucketKey(t time.Time, groupBy string) string {
	t = t.UTC()
	switch groupBy {
	case "week":
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case "month":
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func normalizeDays(days int) int {
	if days <= 0 {
		return 30
	}
	if days > 365 {
		return 365
	}
	return days
}

func (s *AnalyticsService) OrderTrends(ctx context.Context, days int, groupBy string) (*OrderTrends, error) {
	switch groupBy {
	case "":
		groupBy = "day"
	case "day", "week", "month":
	default:
		return nil, apperr.Validation(`groupBy must be "day", "week" or "month"`)
	}
	days = normalizeDays(days)
	end := s.now()
	start := end.AddDate(0, 0, -days)

	orders, err := s.ordersSince(ctx, start, false)
	if err != nil {
		return nil, err
	}

	buckets := map[string]*TrendBucket{}
	out := &OrderTrends{Trends: []TrendBucket{}, Period: Period{StartDate: start, EndDate: &end, Days: days}}
	sum := &out.Summary
	for i := range orders {
		o := &orders[i]
		if o.CreatedAt.After(end) {
			continue
		}
		key := bucketKey(o.CreatedAt, groupBy)
		b, ok := buckets[key]
		if !ok {
			b = &TrendBucket{Period: key}
			buckets[key] = b
		}
		b.TotalOrders++
		b.TotalRevenue += o.TotalAmount
		sum.TotalOrders++
		sum.TotalRevenue += o.TotalAmount
		switch o.Status {
		case models.StatusDelivered:
			b.CompletedOrders++
			sum.CompletedOrders++
		case models.StatusCancelled:
			b.CancelledOrders++
			sum.CancelledOrders++
		}
	}
	for _, b := range buckets {
		b.AvgOrderValue = pricing.Round2(b.TotalRevenue / float64(b.TotalOrders))
		b.TotalRevenue = pricing.Round2(b.TotalRevenue)
		out.Trends = append(out.Trends, *b)
	}
	sort.Slice(out.Trends, func(i, j int) bool { return out.Trends[i].Period < out.Trends[j].Period })

	sum.TotalRevenue = pricing.Round2(sum.TotalRevenue)
	if sum.TotalOrders > 0 {
		n := float64(sum.TotalOrders)
		sum.AvgOrderValue = pricing.Round2(sum.TotalRevenue / n)
		sum.CompletionRate = pricing.Round2(float64(sum.CompletedOrders) / n * 100)
		sum.CancellationRate = pricing.Round2(float64(sum.CancelledOrders) / n * 100)
	}
	return out, nil
}

type PopularItem struct {
	MenuItemID   string  `json:"menuItemId"`
	ItemName     string  `json:"itemName"`
	TotalOrders  int     `json:"totalOrders"`
	TotalRevenue float64 `json:"totalRevenue"`
	AvgPrice     float64 `json:"avgPrice"`
	Description  string  `json:"description,omitempty"`
	Price        float64 `json:"price,omitempty"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	Category     string  `json:"category,omitempty"`
	IsVeg        bool    `json:"isVeg"`

	priceSum   float64
	priceLines int
}

type CategoryShare struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Revenue  float64 `json:"revenue"`
}

type PopularItems struct {
	PopularItems         []PopularItem   `json:"popularItems"`
	CategoryDistribution []CategoryShare `json:"categoryDistribution"`
	TotalItems           int             `json:"totalItems"`
	Period               Period          `json:"period"`
}

// PopularItems ranks menu items by quantity ordered, ignoring cancelled orders
func (s *AnalyticsService) PopularItems(ctx context.Context, days, limit int) (*PopularItems, error) {
	days = normalizeDays(days)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	start := s.now().AddDate(0, 0, -days)
	orders, err := s.ordersSince(ctx, start, true)
	if err != nil {
		return nil, err
	}

	items := map[string]*PopularItem{}
	for i := range orders {
		for _, line := range orders[i].Items {
			it, ok := items[line.MenuItemID]
			if !ok {
				it = &PopularItem{MenuItemID: line.MenuItemID, ItemName: line.Name, Category: line.Category, IsVeg: line.IsVeg}
				items[line.MenuItemID] = it
			}
			it.TotalOrders += line.Quantity
			it.TotalRevenue += line.Price * float64(line.Quantity)
			it.priceSum += line.Price
			it.priceLines++
		}
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	var menu []models.MenuItem
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&menu).Error; err != nil {
			return nil, apperr.FromDB(err, "")
		}
	}
	for i := range menu {
		it := items[menu[i].ID]
		it.Description = menu[i].Description
		it.Price = menu[i].Price
		it.ImageURL = menu[i].ImageURL
		it.Category = menu[i].Category
		it.IsVeg = menu[i].IsVeg
	}

	categories := map[string]*CategoryShare{}
	ranked := make([]PopularItem, 0, len(items))
	for _, it := range items {
		it.AvgPrice = pricing.Round2(it.priceSum / float64(it.priceLines))
		it.TotalRevenue = pricing.Round2(it.TotalRevenue)
		if it.Category != "" {
			cs, ok := categories[it.Category]
			if !ok {
				cs = &CategoryShare{Category: it.Category}
				categories[it.Category] = cs
			}
			cs.Count += it.TotalOrders
			cs.Revenue = pricing.Round2(cs.Revenue + it.TotalRevenue)
		}
		ranked = append(ranked, *it)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].TotalOrders != ranked[j].TotalOrders {
			return ranked[i].TotalOrders > ranked[j].TotalOrders
		}
		return ranked[i].MenuItemID < ranked[j].MenuItemID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	dist := make([]CategoryShare, 0, len(categories))
	for _, cs := range categories {
		dist = append(dist, *cs)
	}
	sort.Slice(dist, func(i, j int) bool {
		if dist[i].Count != dist[j].Count {
			return dist[i].Count > dist[j].Count
		}
		return dist[i].Category < dist[j].Category
	})

	return &PopularItems{
		PopularItems:         ranked,
		CategoryDistribution: dist,
		TotalItems:           len(ranked),
		Period:               Period{StartDate: start, Days: days},
	}, nil
}

func (s *AnalyticsService) ordersSince(ctx context.Context, start time.Time, skipCancelled bool) ([]models.Order, error) {
	var orders []models.Order
	query := s.db.WithContext(ctx).Where("created_at >= ?", start.UTC()).Order("created_at ASC")
	if skipCancelled {
		query = query.Where("status <> ?", models.StatusCancelled)
	}
	if err := query.Find(&orders).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return orders, nil
}

type OwnerOrderFilter struct {
	RestaurantID string
	Status       models.OrderStatus
	Page         int
	Limit        int
}

type StatusStat struct {
	Status       models.OrderStatus `json:"status"`
	Count        int64              `json:"count"`
	TotalRevenue float64            `json:"totalRevenue"`
}

type OwnerOrders struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
	Stats      []StatusStat   `json:"stats"`
}

// OwnerOrders is the operator's order queue. Owners are pinned to their own
// restaurant; admins may filter by any restaurant or none.
func (s *AnalyticsService) OwnerOrders(ctx context.Context, user *models.User, f OwnerOrderFilter) (*OwnerOrders, error) {
	if !user.IsAdmin() {
		if user.RestaurantID == "" {
			return nil, apperr.Forbidden("No restaurant is linked to this account")
		}
		if f.RestaurantID == "" {
			f.RestaurantID = user.RestaurantID
		}
		if err := CanManageRestaurant(user, f.RestaurantID); err != nil {
			return nil, err
		}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("Invalid status")
	}
	page, limit := normalizePage(f.Page, f.Limit, 50)

	scope := func(db *gorm.DB) *gorm.DB {
		if f.RestaurantID != "" {
			db = db.Where("restaurant_id = ?", f.RestaurantID)
		}
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		return db
	}

	db := s.db.WithContext(ctx)
	out := &OwnerOrders{Orders: []models.Order{}, Stats: []StatusStat{}}
	var total int64
	if err := db.Model(&models.Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	err := db.Scopes(scope).Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&out.Orders).Error
	if err != nil {
		return nil, apperr.FromDB(err, "")
	}
	err = db.Model(&models.Order{}).Scopes(scope).
		Select("status, COUNT(*) AS count, SUM(total_amount) AS total_revenue").
		Group("status").Order("status ASC").Scan(&out.Stats).Error
	if err != nil {
		return nil, apperr.FromDB(err, "")
	}
	if out.Stats == nil {
		out.Stats = []StatusStat{}
	}
	for i := range out.Stats {
		out.Stats[i].TotalRevenue = pricing.Round2(out.Stats[i].TotalRevenue)
	}
	out.Pagination = newPagination(page, limit, total)
	return out, nil
}
