package services

import (
	"errors"
	"regexp"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	phonePattern   = regexp.MustCompile(`^[0-9]{10}$`)
	pincodePattern = regexp.MustCompile(`^[0-9]{6}$`)
)

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	pages := int(total) / limit
	if int(total)%limit != 0 {
		pages++
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// validationError turns ozzo field errors into a Validation error with per-field details
func validationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		details := make(map[string]any, len(errs))
		for field, fe := range errs {
			details[field] = fe.Error()
		}
		return apperr.Validation("Validation failed: " + errs.Error()).WithDetails(details)
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return apperr.Internal("validation failed", err)
	}
	return apperr.Validation(err.Error())
}

// CanManageRestaurant allows admins and the owner bound to the restaurant
func CanManageRestaurant(user *models.User, restaurantID string) error {
	if user == nil {
		return apperr.Unauthenticated("Authentication required")
	}
	if user.IsAdmin() {
		return nil
	}
	if user.Role == models.RoleRestaurantOwner && user.RestaurantID != "" && user.RestaurantID == restaurantID {
		return nil
	}
	return apperr.Forbidden("You do not manage this restaurant")
}
