package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/pricing"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// CommissionService reports and settles the platform commission on paid orders
type CommissionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCommissionService(db *gorm.DB, clock func() time.Time) *CommissionService {
	return &CommissionService{db: db, now: clock}
}

type CommissionFilter struct {
	StartDate    string
	EndDate      string
	RestaurantID string
	Status       models.SettlementStatus
}

type CommissionSummary struct {
	TotalOrders           int     `json:"totalOrders"`
	TotalRevenue          float64 `json:"totalRevenue"`
	TotalCommission       float64 `json:"totalCommission"`
	TotalRestaurantPayout float64 `json:"totalRestaurantPayout"`
	PendingCommission     float64 `json:"pendingCommission"`
	PaidCommission        float64 `json:"paidCommission"`
	PendingPayout         float64 `json:"pendingPayout"`
	PaidPayout            float64 `json:"paidPayout"`
}

type RestaurantCommission struct {
	RestaurantID     string  `json:"restaurantId"`
	RestaurantName   string  `json:"restaurantName"`
	OrderCount       int     `json:"orderCount"`
	TotalRevenue     float64 `json:"totalRevenue"`
	CommissionEarned float64 `json:"commissionEarned"`
	RestaurantPayout float64 `json:"restaurantPayout"`
	PendingPayout    float64 `json:"pendingPayout"`
}

type DailyCommission struct {
	Date       string  `json:"date"`
	OrderCount int     `json:"orderCount"`
	Revenue    float64 `json:"revenue"`
	Commission float64 `json:"commission"`
}

type CommissionReport struct {
	Summary      CommissionSummary      `json:"summary"`
	ByRestaurant []RestaurantCommission `json:"byRestaurant"`
	ByDate       []DailyCommission      `json:"byDate"`
}

const (
	reportRestaurantLimit = 50
	reportDays            = 30
)

// Report aggregates orders whose payment completed. Dates are YYYY-MM-DD or
// RFC3339; a date-only end date covers that whole day.
func (s *CommissionService) Report(ctx context.Context, f CommissionFilter) (*CommissionReport, error) {
	from, to, err := parseRange(f.StartDate, f.EndDate)
	if err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation(`Status must be "pending", "paid", or "refunded"`)
	}

	query := s.db.WithContext(ctx).Where("payment_status = ?", models.PaymentCompleted)
	if f.RestaurantID != "" {
		query = query.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.Status != "" {
		query = query.Where("commission_status = ?", f.Status)
	}
	if !from.IsZero() {
		query = query.Where("created_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		query = query.Where("created_at < ?", to.UTC())
	}
	var orders []models.Order
	if err := query.Order("created_at ASC").Find(&orders).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}

	report := &CommissionReport{ByRestaurant: []RestaurantCommission{}, ByDate: []DailyCommission{}}
	byRestaurant := map[string]*RestaurantCommission{}
	byDate := map[string]*DailyCommission{}
	since := s.now().AddDate(0, 0, -reportDays)

	for i := range orders {
		o := &orders[i]
		sum := &report.Summary
		sum.TotalOrders++
		sum.TotalRevenue += o.TotalAmount
		sum.TotalCommission += o.Commission.Amount
		sum.TotalRestaurantPayout += o.RestaurantPayout.Amount
		switch o.Commission.Status {
		case models.SettlementPending:
			sum.PendingCommission += o.Commission.Amount
		case models.SettlementPaid:
			sum.PaidCommission += o.Commission.Amount
		}
		switch o.RestaurantPayout.Status {
		case models.SettlementPending:
			sum.PendingPayout += o.RestaurantPayout.Amount
		case models.SettlementPaid:
			sum.PaidPayout += o.RestaurantPayout.Amount
		}

		rc, ok := byRestaurant[o.RestaurantID]
		if !ok {
			rc = &RestaurantCommission{RestaurantID: o.RestaurantID, RestaurantName: o.RestaurantName}
			byRestaurant[o.RestaurantID] = rc
		}
		rc.OrderCount++
		rc.TotalRevenue += o.TotalAmount
		rc.CommissionEarned += o.Commission.Amount
		rc.RestaurantPayout += o.RestaurantPayout.Amount
		if o.RestaurantPayout.Status == models.SettlementPending {
			rc.PendingPayout += o.RestaurantPayout.Amount
		}

		if o.CreatedAt.Before(since) {
			continue
		}
		day := o.CreatedAt.UTC().Format("2006-01-02")
		dc, ok := byDate[day]
		if !ok {
			dc = &DailyCommission{Date: day}
			byDate[day] = dc
		}
		dc.OrderCount++
		dc.Revenue += o.TotalAmount
		dc.Commission += o.Commission.Amount
	}

	roundSummary(&report.Summary)
	for _, rc := range byRestaurant {
		rc.TotalRevenue = pricing.Round2(rc.TotalRevenue)
		rc.CommissionEarned = pricing.Round2(rc.CommissionEarned)
		rc.RestaurantPayout = pricing.Round2(rc.RestaurantPayout)
		rc.PendingPayout = pricing.Round2(rc.PendingPayout)
		report.ByRestaurant = append(report.ByRestaurant, *rc)
	}
	sort.Slice(report.ByRestaurant, func(i, j int) bool {
		a, b := report.ByRestaurant[i], report.ByRestaurant[j]
		if a.CommissionEarned != b.CommissionEarned {
			return a.CommissionEarned > b.CommissionEarned
		}
		return a.RestaurantID < b.RestaurantID
	})
	if len(report.ByRestaurant) > reportRestaurantLimit {
		report.ByRestaurant = report.ByRestaurant[:reportRestaurantLimit]
	}
	for _, dc := range byDate {
		dc.Revenue = pricing.Round2(dc.Revenue)
		dc.Commission = pricing.Round2(dc.Commission)
		report.ByDate = append(report.ByDate, *dc)
	}
	sort.Slice(report.ByDate, func(i, j int) bool { return report.ByDate[i].Date < report.ByDate[j].Date })
	return report, nil
}

func roundSummary(s *CommissionSummary) {
	s.TotalRevenue = pricing.Round2(s.TotalRevenue)
	s.TotalCommission = pricing.Round2(s.TotalCommission)
	s.TotalRestaurantPayout = pricing.Round2(s.TotalRestaurantPayout)
	s.PendingCommission = pricing.Round2(s.PendingCommission)
	s.PaidCommission = pricing.Round2(s.PaidCommission)
	s.PendingPayout = pricing.Round2(s.PendingPayout)
	s.PaidPayout = pricing.Round2(s.PaidPayout)
}

// parseRange returns [from, to); zero values mean unbounded
func parseRange(start, end string) (time.Time, time.Time, error) {
	var from, to time.Time
	if start != "" {
		t, _, err := parseDate(start)
		if err != nil {
			return from, to, apperr.Validation("Invalid startDate")
		}
		from = t
	}
	if end != "" {
		t, dateOnly, err := parseDate(end)
		if err != nil {
			return from, to, apperr.Validation("Invalid endDate")
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
		} else {
			t = t.Add(time.Nanosecond)
		}
		to = t
	}
	return from, to, nil
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}

// SettlementTarget selects which record SetStatus settles
type SettlementTarget string

const (
	TargetCommission SettlementTarget = "commission"
	TargetPayout     SettlementTarget = "payout"
)

// SetStatus settles the commission or the payout of an order. Paid stamps
// paidAt; any other status clears it.
func (s *CommissionService) SetStatus(ctx context.Context, orderID string, target SettlementTarget, status models.SettlementStatus) (*models.Order, error) {
	if orderID == "" || target == "" || status == "" {
		return nil, apperr.Validation("Missing required fields: orderId, type, status")
	}
	if target != TargetCommission && target != TargetPayout {
		return nil, apperr.Validation(`Type must be "commission" or "payout"`)
	}
	if !status.Valid() {
		return nil, apperr.Validation(`Status must be "pending", "paid", or "refunded"`)
	}

	prefix := "commission_"
	if target == TargetPayout {
		prefix = "payout_"
	}
	var paidAt *time.Time
	if status == models.SettlementPaid {
		now := s.now()
		paidAt = &now
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]any{
			prefix + "status":  status,
			prefix + "paid_at": paidAt,
		})
		if res.Error != nil {
			return apperr.FromDB(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Order not found")
		}
		return apperr.FromDB(tx.First(&order, "id = ?", orderID).Error, "Order not found")
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SetRate recomputes commission and payout at a new rate. A commission that
// was already paid out must be reconciled first.
func (s *CommissionService) SetRate(ctx context.Context, orderID string, rate float64) (*models.Order, error) {
	if orderID == "" {
		return nil, apperr.Validation("orderId is required")
	}
	if rate < 0 || rate > 100 {
		return nil, apperr.Validation("Commission rate must be between 0 and 100")
	}
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return apperr.FromDB(err, "Order not found")
		}
		if order.Commission.Status == models.SettlementPaid {
			return apperr.Conflict("Commission already paid; mark it pending or refunded before changing the rate")
		}
		pricing.Commission(order.TotalAmount, rate).Apply(&order)
		res := tx.Model(&models.Order{}).
			Where("id = ? AND commission_status = ?", order.ID, order.Commission.Status).
			Updates(map[string]any{
				"commission_rate":   order.Commission.Rate,
				"commission_amount": order.Commission.Amount,
				"payout_amount":     order.RestaurantPayout.Amount,
			})
		if res.Error != nil {
			return apperr.FromDB(res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Commission status changed concurrently, retry")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ExportXLSX renders the report as a workbook with one sheet per section
func (s *CommissionService) ExportXLSX(ctx context.Context, f CommissionFilter) (*excelize.File, error) {
	report, err := s.Report(ctx, f)
	if err != nil {
		return nil, err
	}

	x := excelize.NewFile()
	const summarySheet = "Summary"
	x.SetSheetName("Sheet1", summarySheet)

	bold, err := x.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, apperr.Internal("failed to build workbook", err)
	}

	sum := report.Summary
	summaryRows := [][]any{
		{"Metric", "Value"},
		{"Total orders", sum.TotalOrders},
		{"Total revenue", sum.TotalRevenue},
		{"Total commission", sum.TotalCommission},
		{"Total restaurant payout", sum.TotalRestaurantPayout},
		{"Pending commission", sum.PendingCommission},
		{"Paid commission", sum.PaidCommission},
		{"Pending payout", sum.PendingPayout},
		{"Paid payout", sum.PaidPayout},
	}
	if err := writeSheet(x, summarySheet, summaryRows, bold); err != nil {
		return nil, err
	}

	restaurantRows := [][]any{{"Restaurant ID", "Restaurant", "Orders", "Revenue", "Commission", "Payout", "Pending payout"}}
	for _, rc := range report.ByRestaurant {
		restaurantRows = append(restaurantRows, []any{
			rc.RestaurantID, rc.RestaurantName, rc.OrderCount, rc.TotalRevenue,
			rc.CommissionEarned, rc.RestaurantPayout, rc.PendingPayout,
		})
	}
	if _, err := x.NewSheet("By restaurant"); err != nil {
		return nil, apperr.Internal("failed to build workbook", err)
	}
	if err := writeSheet(x, "By restaurant", restaurantRows, bold); err != nil {
		return nil, err
	}

	dateRows := [][]any{{"Date", "Orders", "Revenue", "Commission"}}
	for _, dc := range report.ByDate {
		dateRows = append(dateRows, []any{dc.Date, dc.OrderCount, dc.Revenue, dc.Commission})
	}
	if _, err := x.NewSheet("By date"); err != nil {
		return nil, apperr.Internal("failed to build workbook", err)
	}
	if err := writeSheet(x, "By date", dateRows, bold); err != nil {
		return nil, err
	}
	return x, nil
}

func writeSheet(x *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return apperr.Internal("failed to build workbook", err)
		}
		if err := x.SetSheetRow(sheet, cell, &row); err != nil {
			return apperr.Internal(fmt.Sprintf("failed to write sheet %q", sheet), err)
		}
	}
	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err := x.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return apperr.Internal("failed to style sheet", err)
		}
		lastCol, _ := excelize.ColumnNumberToName(len(rows[0]))
		_ = x.SetColWidth(sheet, "A", lastCol, 18)
	}
	return nil
}
