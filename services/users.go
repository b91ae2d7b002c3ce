package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"food-marketplace-api/apperr"
	"food-marketplace-api/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db     *gorm.DB
	tokens TokenIssuer
}

func NewUserService(db *gorm.DB, tokens TokenIssuer) *UserService {
	return &UserService{db: db, tokens: tokens}
}

// AuthResult is returned by every sign-in flow
type AuthResult struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

type SignupInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (in SignupInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(3, 100)),
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Phone, validation.Required, validation.Match(phonePattern).Error("must be 10 digits")),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 128)),
	)
}

type GoogleInput struct {
	Email          string `json:"email"`
	Name           string `json:"name"`
	GoogleID       string `json:"googleId"`
	ProfilePicture string `json:"profilePicture"`
}

type ProfileInput struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	ProfilePicture *string `json:"profilePicture"`
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "User not found")
	}
	return &u, nil
}

func (s *UserService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validationError(in.Validate()); err != nil {
		return nil, err
	}

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ? OR phone = ?", in.Email, in.Phone).First(&existing).Error
	if err == nil {
		if existing.Email == in.Email {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, apperr.Conflict("Phone number already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.FromDB(err, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("Failed to hash password", err)
	}

	user := models.User{
		Name:         in.Name,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         models.RoleCustomer,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict("Email already registered")
		}
		return nil, apperr.FromDB(err, "")
	}
	return s.issue(&user)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("Invalid email or password")
		}
		return nil, apperr.FromDB(err, "")
	}
	if user.PasswordHash == "" {
		return nil, apperr.Unauthenticated("This account uses Google sign-in")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Unauthenticated("Invalid email or password")
	}
	return s.issue(&user)
}

// Google links a Google identity to an existing account by email, or creates a customer
func (s *UserService) Google(ctx context.Context, in GoogleInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.GoogleID == "" {
		return nil, apperr.Validation("Email and Google ID are required")
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]any{"is_email_verified": true}
		if user.GoogleID == "" {
			updates["google_id"] = in.GoogleID
		}
		if user.ProfilePicture == "" && in.ProfilePicture != "" {
			updates["profile_picture"] = in.ProfilePicture
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, apperr.FromDB(err, "")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = strings.Split(email, "@")[0]
		}
		user = models.User{
			Name:            name,
			Email:           email,
			GoogleID:        in.GoogleID,
			ProfilePicture:  in.ProfilePicture,
			IsEmailVerified: true,
			Role:            models.RoleCustomer,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, apperr.FromDB(err, "")
		}
	default:
		return nil, apperr.FromDB(err, "")
	}
	return s.issue(&user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	if s.tokens == nil {
		return nil, apperr.Internal("Failed to generate token", errors.New("no token issuer configured"))
	}
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, apperr.Internal("Failed to generate token", err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, user *models.User, in ProfileInput) (*models.User, error) {
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if len(name) < 3 {
			return nil, apperr.Validation("Name must be at least 3 characters")
		}
		updates["name"] = name
	}
	if in.Phone != nil && *in.Phone != user.Phone {
		if !phonePattern.MatchString(*in.Phone) {
			return nil, apperr.Validation("Phone number must be 10 digits")
		}
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("phone = ? AND id <> ?", *in.Phone, user.ID).Count(&count).Error; err != nil {
			return nil, apperr.FromDB(err, "")
		}
		if count > 0 {
			return nil, apperr.Conflict("Phone number already registered")
		}
		updates["phone"] = *in.Phone
	}
	if in.ProfilePicture != nil {
		updates["profile_picture"] = *in.ProfilePicture
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return s.FindByID(ctx, user.ID)
}

func (s *UserService) UpdateLocation(ctx context.Context, user *models.User, lat, lng float64, address string) (*models.User, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return nil, apperr.Validation("Invalid coordinates")
	}
	loc := &models.UserLocation{
		GeoPoint:  models.GeoPoint{Latitude: lat, Longitude: lng},
		Address:   address,
		UpdatedAt: time.Now(),
	}
	user.Location = loc
	if err := s.db.WithContext(ctx).Model(user).Select("location").Updates(user).Error; err != nil {
		return nil, apperr.FromDB(err, "")
	}
	return s.FindByID(ctx, user.ID)
}

type UserFilter struct {
	Role   models.UserRole
	Search string
	Page   int
	Limit  int
}

// List returns one page of users for the admin console
func (s *UserService) List(ctx context.Context, f UserFilter) ([]models.User, Pagination, error) {
	page, limit := normalizePage(f.Page, f.Limit, 20)
	q := s.db.WithContext(ctx).Model(&models.User{})
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, Pagination{}, apperr.FromDB(err, "")
	}
	var users []models.User
	if err := q.Order("created_at desc").Offset((page - 1) * limit).Limit(limit).Find(&users).Error; err != nil {
		return nil, Pagination{}, apperr.FromDB(err, "")
	}
	return users, newPagination(page, limit, total), nil
}
