package services

import (
	"context"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	"gorm.io/gorm"
)

type FavoriteService struct {
	db *gorm.DB
}

func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// List returns the caller's favorites, newest first. An empty itemType lists both kinds.
func (s *FavoriteService) List(ctx context.Context, userID string, itemType models.FavoriteType) ([]models.Favorite, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if itemType == models.FavoriteRestaurant || itemType == models.FavoriteDish {
		query = query.Where("item_type = ?", itemType)
	}
	favorites := []models.Favorite{}
	if err := query.Order("created_at DESC").Find(&favorites).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return favorites, nil
}

type FavoriteInput struct {
	ItemType       models.FavoriteType `json:"itemType"`
	ItemID         string              `json:"itemId"`
	ItemName       string              `json:"itemName"`
	ItemImage      string              `json:"itemImage"`
	RestaurantID   string              `json:"restaurantId"`
	RestaurantName string              `json:"restaurantName"`
}

func (s *FavoriteService) Add(ctx context.Context, userID string, in FavoriteInput) (*models.Favorite, error) {
	if in.ItemType == "" || in.ItemID == "" || in.ItemName == "" {
		return nil, apperr.Validation("Missing required fields: itemType, itemId, itemName")
	}
	if in.ItemType != models.FavoriteRestaurant && in.ItemType != models.FavoriteDish {
		return nil, apperr.Validation(`itemType must be "restaurant" or "dish"`)
	}
	if in.ItemType == models.FavoriteDish && in.RestaurantID == "" {
		return nil, apperr.Validation("restaurantId required for dish favorites")
	}

	fav := models.Favorite{
		UserID:         userID,
		ItemType:       in.ItemType,
		ItemID:         in.ItemID,
		ItemName:       in.ItemName,
		ItemImage:      in.ItemImage,
		RestaurantID:   in.RestaurantID,
		RestaurantName: in.RestaurantName,
	}
	if err := s.db.WithContext(ctx).Create(&fav).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Item already in favorites")
		}
		return nil, apperr.FromDB(err, "")
	}
	return &fav, nil
}

// Remove deletes by favorite id, or by (itemType, itemId) when id is empty
func (s *FavoriteService) Remove(ctx context.Context, userID, id string, itemType models.FavoriteType, itemID string) error {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	switch {
	case id != "":
		query = query.Where("id = ?", id)
	case itemType != "" && itemID != "":
		query = query.Where("item_type = ? AND item_id = ?", itemType, itemID)
	default:
		return apperr.Validation(`Provide either "id" or both "itemType" and "itemId"`)
	}
	res := query.Delete(&models.Favorite{})
	if res.Error != nil {
		return apperr.FromDB(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("Favorite not found")
	}
	return nil
}
