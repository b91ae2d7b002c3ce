package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Platform is one of the third-party ordering channels whose prices are compared
type Platform string

const (
	PlatformSwiggy Platform = "swiggy"
	PlatformZomato Platform = "zomato"
	PlatformONDC   Platform = "ondc"
)

var Platforms = []Platform{PlatformSwiggy, PlatformZomato, PlatformONDC}

func (p Platform) Valid() bool {
	for _, known := range Platforms {
		if p == known {
			return true
		}
	}
	return false
}

// Restaurant is keyed by its public restaurant code rather than a generated id
type Restaurant struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"not null;index"`
	Cuisine   string    `json:"cuisine" gorm:"not null"`
	Location  string    `json:"location" gorm:"not null"`
	Rating    float64   `json:"rating" gorm:"default:0"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	IsOpen    bool      `json:"isOpen" gorm:"default:true"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type PlatformPrice struct {
	Platform Platform `json:"platform"`
	Price    float64  `json:"price"`
}

type MenuItem struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	RestaurantID    string          `json:"restaurantId" gorm:"not null;index:idx_menu_restaurant_category"`
	Name            string          `json:"name" gorm:"not null"`
	Description     string          `json:"description"`
	Price           float64         `json:"price" gorm:"not null"`
	Category        string          `json:"category" gorm:"not null;index:idx_menu_restaurant_category"`
	IsVeg           bool            `json:"isVeg" gorm:"default:false"`
	IsAvailable     bool            `json:"isAvailable" gorm:"default:true"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	Rating          float64         `json:"rating,omitempty"`
	PreparationTime int             `json:"preparationTime" gorm:"default:30"`
	SpiceLevel      string          `json:"spiceLevel,omitempty"`
	Tags            []string        `json:"tags" gorm:"serializer:json"`
	PlatformPrices  []PlatformPrice `json:"platformPrices,omitempty" gorm:"serializer:json"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (m *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// PriceOn returns the item's price on a platform, falling back to the base price
func (m *MenuItem) PriceOn(p Platform) float64 {
	for _, pp := range m.PlatformPrices {
		if pp.Platform == p {
			return pp.Price
		}
	}
	return m.Price
}
