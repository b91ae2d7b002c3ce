package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleCustomer        UserRole = "customer"
	RoleRestaurantOwner UserRole = "restaurant_owner"
	RoleAdmin           UserRole = "admin"
)

func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleRestaurantOwner, RoleAdmin:
		return true
	}
	return false
}

// GeoPoint is a latitude/longitude pair
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type UserLocation struct {
	GeoPoint
	Address   string    `json:"address,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type User struct {
	ID              string        `json:"id" gorm:"primaryKey;size:36"`
	Name            string        `json:"name" gorm:"not null"`
	Email           string        `json:"email" gorm:"uniqueIndex;not null"`
	Phone           string        `json:"phone" gorm:"index"`
	PasswordHash    string        `json:"-"`
	Role            UserRole      `json:"role" gorm:"not null;default:'customer';index"`
	RestaurantID    string        `json:"restaurantId,omitempty" gorm:"index"`
	GoogleID        string        `json:"googleId,omitempty"`
	ProfilePicture  string        `json:"profilePicture,omitempty"`
	IsEmailVerified bool          `json:"isEmailVerified" gorm:"default:false"`
	Location        *UserLocation `json:"location,omitempty" gorm:"serializer:json"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return nil
}

// IsAdmin reports whether the user has platform-wide privileges
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// PublicUser is the shape returned to clients alongside a token
type PublicUser struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Role           UserRole `json:"role"`
	ProfilePicture string   `json:"profilePicture,omitempty"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Phone:          u.Phone,
		Role:           u.Role,
		ProfilePicture: u.ProfilePicture,
	}
}
