package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/pricing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GiftCardService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGiftCardService(db *gorm.DB, clock func() time.Time) *GiftCardService {
	return &GiftCardService{db: db, now: clock}
}

// GiftCardBalance is the client view of a card
type GiftCardBalance struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Balance        float64   `json:"balance"`
	OriginalAmount float64   `json:"originalAmount"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type Redemption struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	Balance        float64 `json:"balance"`
	AmountRedeemed float64 `json:"amountRedeemed"`
}

// Check returns the live balance of a usable card
func (s *GiftCardService) Check(ctx context.Context, code string) (*GiftCardBalance, error) {
	card, err := s.usable(s.db.WithContext(ctx), code)
	if err != nil {
		return nil, err
	}
	if card.Balance <= 0 {
		return nil, apperr.Validation("Gift card has no balance")
	}
	return &GiftCardBalance{
		ID:             card.ID,
		Code:           card.Code,
		Balance:        card.Balance,
		OriginalAmount: card.OriginalAmount,
		ExpiresAt:      card.ExpiresAt,
	}, nil
}

// usable loads an active, unexpired card
func (s *GiftCardService) usable(db *gorm.DB, code string) (*models.GiftCard, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, apperr.Validation("Gift card code is required")
	}
	var card models.GiftCard
	if err := db.Where("code = ? AND is_active = ?", code, true).First(&card).Error; err != nil {
		return nil, apperr.FromDB(err, "Invalid gift card code")
	}
	if card.Expired(s.now()) {
		return nil, apperr.Expired("Gift card has expired")
	}
	return &card, nil
}

// Redeem deducts amount from the card and records the ledger entry atomically
func (s *GiftCardService) Redeem(ctx context.Context, userID, code string, amount float64, orderID string) (*Redemption, error) {
	if code == "" || amount <= 0 || orderID == "" {
		return nil, apperr.Validation("Code, amount, and orderId are required")
	}
	var out *Redemption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.usable(tx, code)
		if err != nil {
			return err
		}
		balance, err := s.debit(tx, card, userID, pricing.Round2(amount), orderID)
		if err != nil {
			return err
		}
		out = &Redemption{ID: card.ID, Code: card.Code, Balance: balance, AmountRedeemed: pricing.Round2(amount)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// debit is a single conditional decrement; when it matches no row the card
// is re-read to explain why. Returns the new balance.
func (s *GiftCardService) debit(tx *gorm.DB, card *models.GiftCard, userID string, amount float64, orderID string) (float64, error) {
	res := tx.Model(&models.GiftCard{}).
		Where("id = ? AND is_active = ? AND balance >= ?", card.ID, true, amount).
		UpdateColumns(map[string]any{
			"balance":    gorm.Expr("ROUND(balance - ?, 2)", amount),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return 0, apperr.FromDB(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return 0, s.explainRejection(tx, card.ID, amount)
	}

	entry := models.GiftCardTransaction{
		GiftCardID: card.ID,
		Type:       models.TxnRedemption,
		Amount:     -amount,
		OrderID:    orderID,
		UserID:     userID,
		Note:       "Redeemed for order #" + orderID,
		Timestamp:  s.now(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, apperr.FromDB(err, "")
	}

	var after models.GiftCard
	if err := tx.Select("balance").First(&after, "id = ?", card.ID).Error; err != nil {
		return 0, apperr.FromDB(err, "")
	}
	return after.Balance, nil
}

func (s *GiftCardService) explainRejection(tx *gorm.DB, id string, amount float64) error {
	var card models.GiftCard
	if err := tx.First(&card, "id = ?", id).Error; err != nil {
		return apperr.FromDB(err, "Invalid gift card code")
	}
	switch {
	case !card.IsActive:
		return apperr.NotFound("Invalid gift card code")
	case card.Expired(s.now()):
		return apperr.Expired("Gift card has expired")
	case card.Balance < amount:
		return apperr.InsufficientBalance("Insufficient gift card balance")
	}
	return apperr.Conflict("Gift card was modified concurrently, please retry")
}

// refund credits amount back to the card inside the caller's transaction
func (s *GiftCardService) refund(tx *gorm.DB, cardID, userID string, amount float64, orderID string) error {
	if amount <= 0 {
		return nil
	}
	res := tx.Model(&models.GiftCard{}).
		Where("id = ?", cardID).
		UpdateColumns(map[string]any{
			"balance":    gorm.Expr("ROUND(balance + ?, 2)", amount),
			"updated_at": s.now(),
		})
	if res.Error != nil {
		return apperr.FromDB(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Gift card not found")
	}
	entry := models.GiftCardTransaction{
		GiftCardID: cardID,
		Type:       models.TxnRefund,
		Amount:     amount,
		OrderID:    orderID,
		UserID:     userID,
		Note:       "Refunded for cancelled order #" + orderID,
		Timestamp:  s.now(),
	}
	return apperr.FromDB(tx.Create(&entry).Error, "")
}

type GiftCardInput struct {
	Code           string    `json:"code"`
	Amount         float64   `json:"amount"`
	RecipientEmail string    `json:"recipientEmail"`
	RecipientName  string    `json:"recipientName"`
	Message        string    `json:"message"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func (in GiftCardInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Code, validation.Length(6, 32)),
		validation.Field(&in.Amount, validation.Required, validation.Min(1.0), validation.Max(100000.0)),
		validation.Field(&in.RecipientEmail, is.EmailFormat),
		validation.Field(&in.Message, validation.Length(0, 500)),
	)
}

// Issue creates a card whose balance equals its original amount. Issuance
// writes no ledger entry; only redemptions and refunds move the balance.
func (s *GiftCardService) Issue(ctx context.Context, purchasedBy string, in GiftCardInput) (*models.GiftCard, error) {
	in.Code = normalizeCode(in.Code)
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}
	if in.Code == "" {
		in.Code = "GC" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	if in.ExpiresAt.IsZero() {
		in.ExpiresAt = s.now().AddDate(1, 0, 0)
	} else if !in.ExpiresAt.After(s.now()) {
		return nil, apperr.Validation("expiresAt must be in the future")
	}
	card := models.GiftCard{
		Code:           in.Code,
		Balance:        pricing.Round2(in.Amount),
		OriginalAmount: pricing.Round2(in.Amount),
		PurchasedBy:    purchasedBy,
		RecipientEmail: in.RecipientEmail,
		RecipientName:  in.RecipientName,
		Message:        in.Message,
		ExpiresAt:      in.ExpiresAt,
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(&card).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Gift card code already exists")
		}
		return nil, apperr.FromDB(err, "")
	}
	return &card, nil
}

// Ledger returns a card with its transactions, oldest first
func (s *GiftCardService) Ledger(ctx context.Context, code string) (*models.GiftCard, error) {
	var card models.GiftCard
	err := s.db.WithContext(ctx).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("timestamp asc") }).
		Where("code = ?", normalizeCode(code)).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("Invalid gift card code")
		}
		return nil, apperr.FromDB(err, "")
	}
	return &card, nil
}
