package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AddressLabel string

const (
	LabelHome  AddressLabel = "Home"
	LabelWork  AddressLabel = "Work"
	LabelOther AddressLabel = "Other"
)

type Address struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	UserID      string       `json:"userId" gorm:"not null;index:idx_address_user_default"`
	Label       AddressLabel `json:"label" gorm:"not null;default:'Home'"`
	CustomLabel string       `json:"customLabel,omitempty"`
	Address     string       `json:"address" gorm:"not null"`
	Landmark    string       `json:"landmark,omitempty"`
	City        string       `json:"city" gorm:"not null"`
	Pincode     string       `json:"pincode" gorm:"not null"`
	Phone       string       `json:"phone" gorm:"not null"`
	IsDefault   bool         `json:"isDefault" gorm:"default:false;index:idx_address_user_default"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

type FavoriteType string

const (
	FavoriteRestaurant FavoriteType = "restaurant"
	FavoriteDish       FavoriteType = "dish"
)

type Favorite struct {
	ID             string       `json:"id" gorm:"primaryKey;size:36"`
	UserID         string       `json:"userId" gorm:"not null;uniqueIndex:idx_favorite_unique"`
	ItemType       FavoriteType `json:"itemType" gorm:"not null;uniqueIndex:idx_favorite_unique"`
	ItemID         string       `json:"itemId" gorm:"not null;uniqueIndex:idx_favorite_unique"`
	ItemName       string       `json:"itemName" gorm:"not null"`
	ItemImage      string       `json:"itemImage,omitempty"`
	RestaurantID   string       `json:"restaurantId,omitempty"`
	RestaurantName string       `json:"restaurantName,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
