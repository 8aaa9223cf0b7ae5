package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderService is the order engine: it validates and executes order
// creation, converts carts into orders at checkout, and drives the order
// status lifecycle. Every multi-record mutation runs in one transaction;
// stock is only ever decremented through a conditional update so it can
// never go negative, even under concurrent checkouts.
type OrderService struct {
	db     *gorm.DB
	cache  ProductCache
	audit  AuditLogger
	logger *zap.Logger
}

func NewOrderService(db *gorm.DB, cache ProductCache, audit AuditLogger, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:     db,
		cache:  cache,
		audit:  audit,
		logger: logger,
	}
}

type OrderLineInput struct {
	ProductID string
	Quantity  int
}

// Create validates the requested lines against the catalog and persists the
// order with unit prices captured at validation time. Stock is checked but
// deliberately not reserved here; only Checkout decrements stock.
func (s *OrderService) Create(ctx context.Context, userID string, lines []OrderLineInput) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("order must contain at least one line")
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be greater than zero")
		}
	}

	order := &models.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: models.OrderPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]string, len(lines))
		for i, line := range lines {
			ids[i] = line.ProductID
		}

		var products []models.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to fetch products: %w", err))
		}

		byID := make(map[string]*models.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		total := decimal.Zero
		orderLines := make([]models.OrderLine, 0, len(lines))
		for _, line := range lines {
			product, ok := byID[line.ProductID]
			if !ok {
				return apperr.NotFound("product")
			}
			if product.Stock < line.Quantity {
				return apperr.InsufficientStock(product.Name)
			}

			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
			orderLines = append(orderLines, models.OrderLine{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
		}

		order.TotalPrice = total
		order.Lines = orderLines

		if err := tx.Create(order).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to create order: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, s.logger, "create_order", order.ID, map[string]interface{}{
		"user_id":     userID,
		"total_price": order.TotalPrice.String(),
	})

	return order, nil
}

// Checkout converts the user's entire cart into an order atomically: read
// cart, re-validate stock, create order with price snapshots, conditionally
// decrement stock, clear the cart. Any failure rolls the whole thing back,
// leaving cart and stock untouched.
func (s *OrderService) Checkout(ctx context.Context, userID string) (*models.Order, error) {
	order := &models.Order{
		ID:     uuid.NewString(),
		UserID: userID,
		Status: models.OrderPending,
	}
	var productIDs []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		err := tx.Preload("Product").
			Where("user_id = ?", userID).
			Order("created_at asc").
			Find(&items).Error
		if err != nil {
			return apperr.Internal(fmt.Errorf("failed to read cart: %w", err))
		}
		if len(items) == 0 {
			return apperr.EmptyCart()
		}

		total := decimal.Zero
		orderLines := make([]models.OrderLine, 0, len(items))
		for _, item := range items {
			if item.Product.ID == "" {
				return apperr.NotFound("product")
			}
			if item.Product.Stock < item.Quantity {
				return apperr.InsufficientStock(item.Product.Name)
			}

			total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
			orderLines = append(orderLines, models.OrderLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.Product.Price,
			})
			productIDs = append(productIDs, item.ProductID)
		}

		order.TotalPrice = total
		order.Lines = orderLines

		if err := tx.Create(order).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to create order: %w", err))
		}

		// Conditional decrement: a concurrent checkout that consumed the
		// stock between our read and this update leaves zero rows affected,
		// which aborts the transaction instead of driving stock negative.
		for _, item := range items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", item.Quantity))
			if res.Error != nil {
				return apperr.Internal(fmt.Errorf("failed to decrement stock: %w", res.Error))
			}
			if res.RowsAffected == 0 {
				return apperr.Conflict("product %q stock changed concurrently", item.Product.Name)
			}
		}

		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to clear cart: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProducts(ctx, productIDs...); err != nil {
			s.logger.Warn("Product cache invalidation failed", zap.Error(err))
		}
	}

	recordAudit(s.audit, s.logger, "checkout", order.ID, map[string]interface{}{
		"user_id":     userID,
		"total_price": order.TotalPrice.String(),
		"line_count":  len(order.Lines),
	})

	return order, nil
}

// UpdateStatus advances the order along the lifecycle. The update is
// conditioned on the status we read, so two racing transitions cannot both
// apply.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, apperr.Validation("unknown order status %q", string(next))
	}

	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, apperr.Validation("cannot transition order from %s to %s", order.Status, next)
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Update("status", next)
	if res.Error != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to update order status: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("order status changed concurrently")
	}

	recordAudit(s.audit, s.logger, "update_order_status", orderID, map[string]interface{}{
		"from": string(order.Status),
		"to":   string(next),
	})

	order.Status = next
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Lines").First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, apperr.Internal(fmt.Errorf("failed to get order: %w", err))
	}
	return &order, nil
}

func (s *OrderService) List(ctx context.Context, p pagination.Params) (pagination.Page[models.Order], error) {
	var zero pagination.Page[models.Order]
	if err := p.Validate(); err != nil {
		return zero, err
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return zero, apperr.Internal(fmt.Errorf("failed to count orders: %w", err))
	}

	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Lines").
		Order("created_at asc").
		Offset(p.Offset).Limit(p.Limit).
		Find(&orders).Error
	if err != nil {
		return zero, apperr.Internal(fmt.Errorf("failed to list orders: %w", err))
	}

	return pagination.New(p, total, orders), nil
}

func (s *OrderService) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderLine{}).Error; err != nil {
			return apperr.Internal(fmt.Errorf("failed to delete order lines: %w", err))
		}
		res := tx.Delete(&models.Order{}, "id = ?", id)
		if res.Error != nil {
			return apperr.Internal(fmt.Errorf("failed to delete order: %w", res.Error))
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("order")
		}
		return nil
	})
}
