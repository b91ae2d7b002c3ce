package services

import (
	"context"
	"strings"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

type AddressService struct {
	db *gorm.DB
}

func NewAddressService(db *gorm.DB) *AddressService {
	return &AddressService{db: db}
}

// AddressInput carries both create and partial update fields. UserID is only honored for admins.
type AddressInput struct {
	UserID      string              `json:"userId"`
	Label       models.AddressLabel `json:"label"`
	CustomLabel string              `json:"customLabel"`
	Address     string              `json:"address"`
	Landmark    *string             `json:"landmark"`
	City        string              `json:"city"`
	Pincode     string              `json:"pincode"`
	Phone       string              `json:"phone"`
	IsDefault   *bool               `json:"isDefault"`
}

func (in AddressInput) rules(partial bool) error {
	required := func(rules ...validation.Rule) []validation.Rule {
		if partial {
			return rules
		}
		return append([]validation.Rule{validation.Required}, rules...)
	}
	return validation.ValidateStruct(&in,
		validation.Field(&in.Label, required(validation.In(models.LabelHome, models.LabelWork, models.LabelOther))...),
		validation.Field(&in.Address, required()...),
		validation.Field(&in.City, required()...),
		validation.Field(&in.Pincode, required(validation.Match(pincodePattern).Error("must be 6 digits"))...),
		validation.Field(&in.Phone, required(validation.Match(phonePattern).Error("must be 10 digits"))...),
	)
}

func (in AddressInput) Validate() error { return in.rules(false) }

// owner resolves whose address book the caller is touching
func (s *AddressService) owner(caller *models.User, requested string) string {
	if caller.IsAdmin() && requested != "" {
		return requested
	}
	return caller.ID
}

// List returns the default address first, then newest first
func (s *AddressService) List(ctx context.Context, caller *models.User, userID string) ([]models.Address, error) {
	addresses := []models.Address{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", s.owner(caller, userID)).
		Order("is_default DESC, created_at DESC").
		Find(&addresses).Error
	if err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return addresses, nil
}

func (s *AddressService) Create(ctx context.Context, caller *models.User, in AddressInput) (*models.Address, error) {
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}
	addr := models.Address{
		UserID:  s.owner(caller, in.UserID),
		Label:   in.Label,
		Address: strings.TrimSpace(in.Address),
		City:    in.City,
		Pincode: in.Pincode,
		Phone:   in.Phone,
	}
	if in.Label == models.LabelOther {
		addr.CustomLabel = in.CustomLabel
	}
	if in.Landmark != nil {
		addr.Landmark = *in.Landmark
	}
	addr.IsDefault = in.IsDefault != nil && *in.IsDefault

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if addr.IsDefault {
			if err := unsetDefaults(tx, addr.UserID, ""); err != nil {
				return err
			}
		}
		return apperr.FromDB(tx.Create(&addr).Error, "")
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (s *AddressService) Update(ctx context.Context, caller *models.User, addressID string, in AddressInput) (*models.Address, error) {
	if addressID == "" {
		return nil, apperr.Validation("Address ID is required")
	}
	if err := validationError(in.rules(true)); err != nil {
		return nil, err
	}
	var addr models.Address
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.findOwned(tx, caller, addressID, &addr); err != nil {
			return err
		}
		if in.Label != "" {
			addr.Label = in.Label
			if in.Label != models.LabelOther {
				addr.CustomLabel = ""
			}
		}
		if addr.Label == models.LabelOther && in.CustomLabel != "" {
			addr.CustomLabel = in.CustomLabel
		}
		if in.Address != "" {
			addr.Address = strings.TrimSpace(in.Address)
		}
		if in.Landmark != nil {
			addr.Landmark = *in.Landmark
		}
		if in.City != "" {
			addr.City = in.City
		}
		if in.Pincode != "" {
			addr.Pincode = in.Pincode
		}
		if in.Phone != "" {
			addr.Phone = in.Phone
		}
		if in.IsDefault != nil {
			if *in.IsDefault && !addr.IsDefault {
				if err := unsetDefaults(tx, addr.UserID, addr.ID); err != nil {
					return err
				}
			}
			addr.IsDefault = *in.IsDefault
		}
		return apperr.FromDB(tx.Save(&addr).Error, "")
	})
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (s *AddressService) Delete(ctx context.Context, caller *models.User, addressID string) error {
	if addressID == "" {
		return apperr.Validation("Address ID is required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var addr models.Address
		if err := s.findOwned(tx, caller, addressID, &addr); err != nil {
			return err
		}
		return apperr.FromDB(tx.Delete(&addr).Error, "")
	})
}

// findOwned hides other users' addresses behind NotFound
func (s *AddressService) findOwned(tx *gorm.DB, caller *models.User, id string, dest *models.Address) error {
	if err := tx.First(dest, "id = ?", id).Error; err != nil {
		return apperr.FromDB(err, "Address not found")
	}
	if dest.UserID != caller.ID && !caller.IsAdmin() {
		return apperr.NotFound("Address not found")
	}
	return nil
}

func unsetDefaults(tx *gorm.DB, userID, exceptID string) error {
	q := tx.Model(&models.Address{}).Where("user_id = ? AND is_default = ?", userID, true)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	return apperr.FromDB(q.Update("is_default", false).Error, "")
}
