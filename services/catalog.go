package services

import (
	"context"
	"sort"
	"strings"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"
	"food-marketplace-api/pricing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/gorm"
)

// CatalogService serves restaurants and menus
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

type RestaurantFilter struct {
	Cuisine  string
	Search   string
	OpenOnly bool
}

func (s *CatalogService) Restaurants(ctx context.Context, f RestaurantFilter) ([]models.Restaurant, error) {
	query := s.db.WithContext(ctx).Model(&models.Restaurant{})
	if f.Cuisine != "" {
		query = query.Where("LOWER(cuisine) LIKE ?", "%"+strings.ToLower(f.Cuisine)+"%")
	}
	if f.Search != "" {
		term := "%" + strings.ToLower(f.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(cuisine) LIKE ?", term, term)
	}
	if f.OpenOnly {
		query = query.Where("is_open = ?", true)
	}
	restaurants := []models.Restaurant{}
	if err := query.Order("rating DESC, name ASC").Find(&restaurants).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return restaurants, nil
}

func (s *CatalogService) Restaurant(ctx context.Context, id string) (*models.Restaurant, error) {
	var r models.Restaurant
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "Restaurant not found")
	}
	return &r, nil
}

type Menu struct {
	MenuItems  []models.MenuItem `json:"menuItems"`
	Categories []string          `json:"categories"`
}

// Menu lists the available items of a restaurant. Category "All" disables the category filter.
func (s *CatalogService) Menu(ctx context.Context, restaurantID, category string, vegOnly bool) (*Menu, error) {
	db := s.db.WithContext(ctx)
	query := db.Where("restaurant_id = ? AND is_available = ?", restaurantID, true)
	if category != "" && category != "All" {
		query = query.Where("category = ?", category)
	}
	if vegOnly {
		query = query.Where("is_veg = ?", true)
	}
	items := []models.MenuItem{}
	if err := query.Order("category ASC, name ASC").Find(&items).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}

	var categories []string
	err := db.Model(&models.MenuItem{}).
		Where("restaurant_id = ? AND is_available = ?", restaurantID, true).
		Distinct().Order("category ASC").Pluck("category", &categories).Error
	if err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return &Menu{MenuItems: items, Categories: append([]string{"All"}, categories...)}, nil
}

type PlatformQuote struct {
	Platform   models.Platform `json:"platform"`
	Price      float64         `json:"price"`
	IsBestDeal bool            `json:"isBestDeal"`
	Savings    float64         `json:"savings"`
}

type BestDeal struct {
	Platform models.Platform `json:"platform"`
	Price    float64         `json:"price"`
}

type ItemComparison struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	BasePrice          float64         `json:"basePrice"`
	Category           string          `json:"category"`
	IsVeg              bool            `json:"isVeg"`
	ImageURL           string          `json:"imageUrl,omitempty"`
	HasPlatformPricing bool            `json:"hasPlatformPricing"`
	PlatformPrices     []PlatformQuote `json:"platformPrices"`
	BestDeal           *BestDeal       `json:"bestDeal"`
}

type PriceComparison struct {
	RestaurantID     string           `json:"restaurantId"`
	MenuItems        []ItemComparison `json:"menuItems"`
	TotalItems       int              `json:"totalItems"`
	ItemsWithPricing int              `json:"itemsWithPricing"`
}

// ComparePrices ranks each menu item's platform prices. A non-empty itemName
// narrows the result to items with that exact name.
func (s *CatalogService) ComparePrices(ctx context.Context, restaurantID, itemName string) (*PriceComparison, error) {
	if restaurantID == "" {
		return nil, apperr.Validation("Restaurant ID is required")
	}
	query := s.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if itemName != "" {
		query = query.Where("name = ?", itemName)
	}
	var items []models.MenuItem
	if err := query.Order("category ASC, name ASC").Find(&items).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	if len(items) == 0 {
		if itemName != "" {
			return nil, apperr.NotFound("No price data found for this item")
		}
		return nil, apperr.NotFound("No menu items found for this restaurant")
	}

	out := &PriceComparison{RestaurantID: restaurantID, TotalItems: len(items)}
	for i := range items {
		cmp := compareItem(&items[i])
		if cmp.HasPlatformPricing {
			out.ItemsWithPricing++
		}
		out.MenuItems = append(out.MenuItems, cmp)
	}
	return out, nil
}

func compareItem(item *models.MenuItem) ItemComparison {
	cmp := ItemComparison{
		ID:                 item.ID,
		Name:               item.Name,
		Description:        item.Description,
		BasePrice:          item.Price,
		Category:           item.Category,
		IsVeg:              item.IsVeg,
		ImageURL:           item.ImageURL,
		HasPlatformPricing: len(item.PlatformPrices) > 0,
		PlatformPrices:     []PlatformQuote{},
	}
	if !cmp.HasPlatformPricing {
		return cmp
	}

	best := item.PlatformPrices[0]
	for _, pp := range item.PlatformPrices[1:] {
		if pp.Price < best.Price {
			best = pp
		}
	}
	for _, pp := range item.PlatformPrices {
		cmp.PlatformPrices = append(cmp.PlatformPrices, PlatformQuote{
			Platform:   pp.Platform,
			Price:      pp.Price,
			IsBestDeal: pp.Price == best.Price,
			Savings:    pricing.Round2(pp.Price - best.Price),
		})
	}
	sort.SliceStable(cmp.PlatformPrices, func(i, j int) bool {
		return cmp.PlatformPrices[i].Price < cmp.PlatformPrices[j].Price
	})
	cmp.BestDeal = &BestDeal{Platform: best.Platform, Price: best.Price}
	return cmp
}

// OwnerRestaurants returns every restaurant for admins and the bound restaurant for owners
func (s *CatalogService) OwnerRestaurants(ctx context.Context, user *models.User) ([]models.Restaurant, error) {
	restaurants := []models.Restaurant{}
	query := s.db.WithContext(ctx).Order("name ASC")
	switch {
	case user.IsAdmin():
	case user.RestaurantID != "":
		query = query.Where("id = ?", user.RestaurantID)
	default:
		return restaurants, nil
	}
	if err := query.Find(&restaurants).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return restaurants, nil
}

type RestaurantInput struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Cuisine  string  `json:"cuisine"`
	Location string  `json:"location"`
	Rating   float64 `json:"rating"`
	ImageURL string  `json:"imageUrl"`
	IsOpen   *bool   `json:"isOpen"`
}

func (in RestaurantInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.Required, validation.Length(1, 64)),
		validation.Field(&in.Name, validation.Required),
		validation.Field(&in.Cuisine, validation.Required),
		validation.Field(&in.Location, validation.Required),
		validation.Field(&in.Rating, validation.Min(0.0), validation.Max(5.0)),
	)
}

func (s *CatalogService) CreateRestaurant(ctx context.Context, in RestaurantInput) (*models.Restaurant, error) {
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}
	r := models.Restaurant{
		ID:       strings.TrimSpace(in.ID),
		Name:     strings.TrimSpace(in.Name),
		Cuisine:  in.Cuisine,
		Location: in.Location,
		Rating:   in.Rating,
		ImageURL: in.ImageURL,
		IsOpen:   true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			if apperr.IsUniqueViolation(err) {
				return apperr.Conflict("Restaurant id already exists")
			}
			return apperr.FromDB(err, "")
		}
		if in.IsOpen != nil && !*in.IsOpen {
			r.IsOpen = false
			return apperr.FromDB(tx.Model(&r).Update("is_open", false).Error, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type MenuItemInput struct {
	RestaurantID    string                 `json:"restaurantId"`
	Name            *string                `json:"name"`
	Description     *string                `json:"description"`
	Price           *float64               `json:"price"`
	Category        *string                `json:"category"`
	IsVeg           *bool                  `json:"isVeg"`
	IsAvailable     *bool                  `json:"isAvailable"`
	ImageURL        *string                `json:"imageUrl"`
	PreparationTime *int                   `json:"preparationTime"`
	SpiceLevel      *string                `json:"spiceLevel"`
	Tags            []string               `json:"tags"`
	PlatformPrices  []models.PlatformPrice `json:"platformPrices"`
}

func (in MenuItemInput) validatePrices() error {
	if in.Price != nil && *in.Price <= 0 {
		return apperr.Validation("Price must be greater than 0")
	}
	for _, pp := range in.PlatformPrices {
		if !pp.Platform.Valid() {
			return apperr.Validation("Invalid platform: " + string(pp.Platform))
		}
		if pp.Price <= 0 {
			return apperr.Validation("Platform price must be greater than 0")
		}
	}
	return nil
}

func (s *CatalogService) AddMenuItem(ctx context.Context, user *models.User, in MenuItemInput) (*models.MenuItem, error) {
	if in.RestaurantID == "" && !user.IsAdmin() {
		in.RestaurantID = user.RestaurantID
	}
	if in.RestaurantID == "" || in.Name == nil || *in.Name == "" || in.Price == nil || in.Category == nil || *in.Category == "" {
		return nil, apperr.Validation("restaurantId, name, price and category are required")
	}
	if err := in.validatePrices(); err != nil {
		return nil, err
	}
	if err := CanManageRestaurant(user, in.RestaurantID); err != nil {
		return nil, err
	}

	item := models.MenuItem{
		RestaurantID:    in.RestaurantID,
		IsAvailable:     true,
		PreparationTime: 30,
		Tags:            in.Tags,
		PlatformPrices:  in.PlatformPrices,
	}
	applyMenuInput(&item, in)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&models.Restaurant{}, "id = ?", in.RestaurantID).Error; err != nil {
			return apperr.FromDB(err, "Restaurant not found")
		}
		if err := tx.Create(&item).Error; err != nil {
			return apperr.FromDB(err, "")
		}
		if in.IsAvailable != nil && !*in.IsAvailable {
			item.IsAvailable = false
			return apperr.FromDB(tx.Model(&item).Update("is_available", false).Error, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CatalogService) UpdateMenuItem(ctx context.Context, user *models.User, itemID string, in MenuItemInput) (*models.MenuItem, error) {
	if err := in.validatePrices(); err != nil {
		return nil, err
	}
	var item models.MenuItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return apperr.FromDB(err, "Menu item not found")
		}
		if err := CanManageRestaurant(user, item.RestaurantID); err != nil {
			return err
		}
		applyMenuInput(&item, in)
		if in.Tags != nil {
			item.Tags = in.Tags
		}
		if in.PlatformPrices != nil {
			item.PlatformPrices = in.PlatformPrices
		}
		// Save writes zero values too, so unsetting isVeg or isAvailable sticks
		return apperr.FromDB(tx.Save(&item).Error, "")
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *CatalogService) DeleteMenuItem(ctx context.Context, user *models.User, itemID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.MenuItem
		if err := tx.First(&item, "id = ?", itemID).Error; err != nil {
			return apperr.FromDB(err, "Menu item not found")
		}
		if err := CanManageRestaurant(user, item.RestaurantID); err != nil {
			return err
		}
		return apperr.FromDB(tx.Delete(&item).Error, "")
	})
}

func applyMenuInput(item *models.MenuItem, in MenuItemInput) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Price != nil {
		item.Price = *in.Price
	}
	if in.Category != nil {
		item.Category = *in.Category
	}
	if in.IsVeg != nil {
		item.IsVeg = *in.IsVeg
	}
	if in.IsAvailable != nil {
		item.IsAvailable = *in.IsAvailable
	}
	if in.ImageURL != nil {
		item.ImageURL = *in.ImageURL
	}
	if in.PreparationTime != nil {
		item.PreparationTime = *in.PreparationTime
	}
	if in.SpiceLevel != nil {
		item.SpiceLevel = *in.SpiceLevel
	}
}
