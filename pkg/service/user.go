package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	db     *gorm.DB
	audit  AuditLogger
	logger *zap.Logger
}

func NewUserService(db *gorm.DB, audit AuditLogger, logger *zap.Logger) *UserService {
	return &UserService{
		db:     db,
		audit:  audit,
		logger: logger,
	}
}

type SignUpInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

func (s *UserService) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperr.Validation("name, email and password are required")
	}
	if in.Password != in.PasswordConfirmation {
		return nil, apperr.Validation("password and password confirmation do not match")
	}

	existing, err := s.GetByEmail(ctx, in.Email)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Validation("user already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     in.Name,
		Email:    in.Email,
		Password: hash,
		Role:     models.RoleUser,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, apperr.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	recordAudit(s.audit, s.logger, "sign_up", user.ID, map[string]interface{}{
		"email": user.Email,
	})

	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get user: %w", err))
	}
	return &user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get user by email: %w", err))
	}
	return &user, nil
}

func (s *UserService) List(ctx context.Context, p pagination.Params) (pagination.Page[models.User], error) {
	var zero pagination.Page[models.User]
	if err := p.Validate(); err != nil {
		return zero, err
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if p.Keyword != "" {
		pattern := "%" + p.Keyword + "%"
		query = query.Where("name LIKE ? OR email LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return zero, apperr.Internal(fmt.Errorf("failed to count users: %w", err))
	}

	var users []models.User
	if err := query.Order("created_at asc").Offset(p.Offset).Limit(p.Limit).Find(&users).Error; err != nil {
		return zero, apperr.Internal(fmt.Errorf("failed to list users: %w", err))
	}

	return pagination.New(p, total, users), nil
}

type UpdateUserInput struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"updated_at": time.Now(),
	}
	if in.Name != "" {
		updates["name"] = in.Name
	}
	if in.Email != "" {
		updates["email"] = in.Email
	}
	if in.Password != "" {
		if in.Password != in.PasswordConfirmation {
			return nil, apperr.Validation("password and password confirmation do not match")
		}
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		updates["password"] = hash
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to update user: %w", err))
	}

	return s.Get(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("failed to delete user: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user")
	}
	return nil
}

// Promote grants the user the ADMIN role.
func (s *UserService) Promote(ctx context.Context, id string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("role", models.RoleAdmin).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to promote user: %w", err))
	}

	recordAudit(s.audit, s.logger, "promote_user", user.ID, map[string]interface{}{
		"email": user.Email,
	})

	user.Role = models.RoleAdmin
	return user, nil
}

// AddToCart upserts the (user, product) cart line. A repeated add replaces
// the quantity (last write wins), it does not increment.
func (s *UserService) AddToCart(ctx context.Context, userID, productID string, quantity int) ([]models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be greater than zero")
	}

	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get product: %w", err))
	}

	item := models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to add to cart: %w", err))
	}

	return s.GetCart(ctx, userID)
}

func (s *UserService) RemoveFromCart(ctx context.Context, userID, productID string) error {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return apperr.Internal(fmt.Errorf("failed to remove from cart: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("cart item")
	}
	return nil
}

func (s *UserService) GetCart(ctx context.Context, userID string) ([]models.CartItem, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	var items []models.CartItem
	err := s.db.WithContext(ctx).
		Preload("Product").
		Where("user_id = ?", userID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to get cart: %w", err))
	}
	return items, nil
}
