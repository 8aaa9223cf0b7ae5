package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CatalogService struct {
	db     *gorm.DB
	cache  ProductCache
	logger *zap.Logger
}

func NewCatalogService(db *gorm.DB, cache ProductCache, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

type ProductInput struct {
	Name        string
	Description string
	Image       string
	Price       decimal.Decimal
	Stock       int
	CategoryIDs []string
}

func (in ProductInput) validate() error {
	if in.Name == "" {
		return apperr.Validation("product name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price must be zero or greater")
	}
	if in.Stock < 0 {
		return apperr.Validation("stock must be zero or greater")
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Price:       in.Price,
		Stock:       in.Stock,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories, err := fetchCategories(tx, in.CategoryIDs)
		if err != nil {
			return err
		}
		product.Categories = categories

		if err := tx.Create(product).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to create product: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	// Try cache first
	if s.cache != nil {
		cached, err := s.cache.GetProductCache(ctx, id)
		if err != nil {
			s.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	var product models.Product
	err := s.db.WithContext(ctx).Preload("Categories").First(&product, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("product")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get product: %w", err))
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, &product); err != nil {
			s.logger.Warn("Product cache write failed", zap.String("product_id", id), zap.Error(err))
		}
	}

	return &product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, p pagination.Params) (pagination.Page[models.Product], error) {
	var zero pagination.Page[models.Product]
	if err := p.Validate(); err != nil {
		return zero, err
	}

	query := s.db.WithContext(ctx).Model(&models.Product{})
	if p.Keyword != "" {
		query = query.Where("name LIKE ?", "%"+p.Keyword+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return zero, apperr.Internal(fmt.Errorf("failed to count products: %w", err))
	}

	var products []models.Product
	err := query.Preload("Categories").
		Order("created_at asc").
		Offset(p.Offset).Limit(p.Limit).
		Find(&products).Error
	if err != nil {
		return zero, apperr.Internal(fmt.Errorf("failed to list products: %w", err))
	}

	return pagination.New(p, total, products), nil
}

type UpdateProductInput struct {
	Name        string
	Description string
	Image       string
	Price       *decimal.Decimal
	Stock       *int
	// CategoryIDs nil means "leave associations untouched"; an empty,
	// non-nil slice clears them.
	CategoryIDs []string
}

func (s *CatalogService) UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (*models.Product, error) {
	if in.Price != nil && in.Price.IsNegative() {
		return nil, apperr.Validation("price must be zero or greater")
	}
	if in.Stock != nil && *in.Stock < 0 {
		return nil, apperr.Validation("stock must be zero or greater")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Preload("Categories").First(&product, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product")
			}
			return apperr.Internal(fmt.Errorf("failed to get product: %w", err))
		}

		updates := map[string]interface{}{
			"updated_at": time.Now(),
		}
		if in.Name != "" {
			updates["name"] = in.Name
		}
		if in.Description != "" {
			updates["description"] = in.Description
		}
		if in.Image != "" {
			updates["image"] = in.Image
		}
		if in.Price != nil {
			updates["price"] = *in.Price
		}
		if in.Stock != nil {
			updates["stock"] = *in.Stock
		}

		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to update product: %w", err))
		}

		if in.CategoryIDs == nil {
			return nil
		}

		desired, err := fetchCategories(tx, in.CategoryIDs)
		if err != nil {
			return err
		}

		// Symmetric difference between current and desired associations,
		// applied inside the same transaction as the field update.
		toAdd, toRemove := diffCategories(product.Categories, desired)
		if len(toAdd) > 0 {
			if err := tx.Model(&product).Association("Categories").Append(toAdd); err != nil {
				return apperr.Internal(fmt.Errorf("failed to attach categories: %w", err))
			}
		}
		if len(toRemove) > 0 {
			if err := tx.Model(&product).Association("Categories").Delete(toRemove); err != nil {
				return apperr.Internal(fmt.Errorf("failed to detach categories: %w", err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)

	// Re-read outside the cache so the response reflects the new state.
	var product models.Product
	if err := s.db.WithContext(ctx).Preload("Categories").First(&product, "id = ?", id).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to reload product: %w", err))
	}
	return &product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM product_categories WHERE product_id = ?", id).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to detach categories: %w", err))
		}
		res := tx.Delete(&models.Product{}, "id = ?", id)
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("failed to delete product: %w", res.Error))
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("product")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)
	return nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}

	category := &models.Category{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to create category: %w", err))
	}
	return category, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("category")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get category: %w", err))
	}
	return &category, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("name asc").Find(&categories).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list categories: %w", err))
	}
	return categories, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id, name string) (*models.Category, error) {
	if name == "" {
		return nil, apperr.Validation("category name is required")
	}

	category, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(category).Update("name", name).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to update category: %w", err))
	}
	category.Name = name
	return category, nil
}

func (s *CatalogService) DeleteCategory(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM product_categories WHERE category_id = ?", id).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to detach products: %w", err))
		}
		res := tx.Delete(&models.Category{}, "id = ?", id)
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("failed to delete category: %w", res.Error))
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("category")
		}
		return nil
	})
	return err
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.Strings("product_ids", ids), zap.Error(err))
	}
}

// fetchCategories resolves ids to rows and fails with "category not found"
// when any id is missing.
func fetchCategories(tx *gorm.DB, ids []string) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var categories []models.Category
	if err := tx.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to fetch categories: %w", err))
	}
	if len(categories) != len(uniqueStrings(ids)) {
		return nil, apperr.NotFound("category")
	}
	return categories, nil
}

func diffCategories(current, desired []models.Category) (toAdd, toRemove []models.Category) {
	currentIDs := make(map[string]bool, len(current))
	for _, c := range current {
		currentIDs[c.ID] = true
	}
	desiredIDs := make(map[string]bool, len(desired))
	for _, c := range desired {
		desiredIDs[c.ID] = true
	}

	for _, c := range desired {
		if !currentIDs[c.ID] {
			toAdd = append(toAdd, c)
		}
	}
	for _, c := range current {
		if !desiredIDs[c.ID] {
			toRemove = append(toRemove, c)
		}
	}
	return toAdd, toRemove
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
