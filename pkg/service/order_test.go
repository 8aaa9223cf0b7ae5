package service_test

import (
	"testing"

	"github.com/example/storefront/pkg/apperr"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/pagination"
	"github.com/example/storefront/pkg/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type orderServiceSuite struct {
	suite.Suite

	db  *gorm.DB
	svc *service.OrderService
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(orderServiceSuite))
}

// fresh database per test so stock/cart state never leaks between cases
func (s *orderServiceSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.svc = service.NewOrderService(s.db, nil, nil, zap.NewNop())
}

func (s *orderServiceSuite) TestCreateComputesTotalFromCatalogPrices() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p1 := seedProduct(t, s.db, "keyboard", "49.90", 10)
	p2 := seedProduct(t, s.db, "mouse", "19.95", 10)

	order, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: p1.ID, Quantity: 2},
		{ProductID: p2.ID, Quantity: 3},
	})
	s.Require().NoError(err)

	// 2*49.90 + 3*19.95
	s.True(decimal.RequireFromString("159.65").Equal(order.TotalPrice),
		"got total %s", order.TotalPrice)
	s.Equal(models.OrderPending, order.Status)
	s.Len(order.Lines, 2)
	s.True(p1.Price.Equal(order.Lines[0].UnitPrice))
	s.True(p2.Price.Equal(order.Lines[1].UnitPrice))
}

func (s *orderServiceSuite) TestCreateDoesNotDecrementStock() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	product := seedProduct(t, s.db, "lamp", "10.00", 5)

	_, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: product.ID, Quantity: 3},
	})
	s.Require().NoError(err)

	// Direct creation validates stock but only checkout reserves it.
	s.Equal(5, productStock(t, s.db, product.ID))
}

func (s *orderServiceSuite) TestCreateUnknownProductWritesNothing() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	product := seedProduct(t, s.db, "lamp", "10.00", 5)

	_, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: product.ID, Quantity: 1},
		{ProductID: uuid.NewString(), Quantity: 1},
	})
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
	s.EqualValues(0, countRows(t, s.db, &models.Order{}))
	s.EqualValues(0, countRows(t, s.db, &models.OrderLine{}))
}

func (s *orderServiceSuite) TestCreateInsufficientStockWritesNothing() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	product := seedProduct(t, s.db, "lamp", "10.00", 2)

	_, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: product.ID, Quantity: 3},
	})
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindInsufficientStock))
	s.Contains(err.Error(), "lamp")
	s.EqualValues(0, countRows(t, s.db, &models.Order{}))
}

func (s *orderServiceSuite) TestCreateRejectsInvalidInput() {
	t := s.T()
	ctx := t.Context()
	user := seedUser(t, s.db)
	product := seedProduct(t, s.db, "lamp", "10.00", 5)

	_, err := s.svc.Create(ctx, user.ID, nil)
	s.True(apperr.IsKind(err, apperr.KindValidation))

	_, err = s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: product.ID, Quantity: 0},
	})
	s.True(apperr.IsKind(err, apperr.KindValidation))
}

func (s *orderServiceSuite) TestCheckoutEmptyCart() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)

	_, err := s.svc.Checkout(ctx, user.ID)
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindEmptyCart))
	s.EqualValues(0, countRows(t, s.db, &models.Order{}))
}

// The worked example: cart has P (price 10, stock 5) qty 2 and Q (price 3,
// stock 1) qty 1. Checkout yields total 23, stocks 3 and 0, empty cart.
func (s *orderServiceSuite) TestCheckoutConvertsCartAtomically() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	q := seedProduct(t, s.db, "Q", "3.00", 1)
	seedCartItem(t, s.db, user.ID, p.ID, 2)
	seedCartItem(t, s.db, user.ID, q.ID, 1)

	order, err := s.svc.Checkout(ctx, user.ID)
	s.Require().NoError(err)

	s.True(decimal.RequireFromString("23.00").Equal(order.TotalPrice),
		"got total %s", order.TotalPrice)
	s.Equal(3, productStock(t, s.db, p.ID))
	s.Equal(0, productStock(t, s.db, q.ID))

	var remaining []models.CartItem
	s.Require().NoError(s.db.Where("user_id = ?", user.ID).Find(&remaining).Error)
	s.Empty(remaining)

	s.EqualValues(1, countRows(t, s.db, &models.Order{}))
	persisted, err := s.svc.Get(ctx, order.ID)
	s.Require().NoError(err)
	s.Len(persisted.Lines, 2)
	s.Equal(user.ID, persisted.UserID)
}

func (s *orderServiceSuite) TestCheckoutInsufficientStockRollsBack() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	q := seedProduct(t, s.db, "Q", "3.00", 1)
	seedCartItem(t, s.db, user.ID, p.ID, 2)
	seedCartItem(t, s.db, user.ID, q.ID, 4) // exceeds Q's stock

	_, err := s.svc.Checkout(ctx, user.ID)
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindInsufficientStock))
	s.Contains(err.Error(), "Q")

	// nothing moved: no order, stock untouched, cart intact
	s.EqualValues(0, countRows(t, s.db, &models.Order{}))
	s.Equal(5, productStock(t, s.db, p.ID))
	s.Equal(1, productStock(t, s.db, q.ID))
	s.EqualValues(2, countRows(t, s.db, &models.CartItem{}))
}

// Simulates the lost-update race: another buyer consumes the stock after the
// cart read but before the decrement. The conditional update must see zero
// affected rows, abort with a conflict, and roll everything back.
func (s *orderServiceSuite) TestCheckoutLostRaceAbortsWithConflict() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	seedCartItem(t, s.db, user.ID, p.ID, 2)

	stolen := false
	err := s.db.Callback().Query().After("gorm:preload").Register("test:steal_stock", func(tx *gorm.DB) {
		if stolen || tx.Statement == nil || tx.Statement.Table != "shopping_carts" {
			return
		}
		stolen = true
		// runs on the transaction's connection, after the engine has read
		// the cart with its product stock
		err := tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE products SET stock = 0 WHERE id = ?", p.ID).Error
		if err != nil {
			t.Errorf("failed to steal stock: %v", err)
		}
	})
	s.Require().NoError(err)

	_, err = s.svc.Checkout(ctx, user.ID)
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindConflict), "got %v", err)
	s.True(stolen)

	// the rollback also undoes the simulated concurrent write, so the
	// observable invariant is simply: no partial state escaped
	s.EqualValues(0, countRows(t, s.db, &models.Order{}))
	s.EqualValues(1, countRows(t, s.db, &models.CartItem{}))
	s.Equal(5, productStock(t, s.db, p.ID))
}

func (s *orderServiceSuite) TestOrderLinesKeepPriceSnapshot() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	seedCartItem(t, s.db, user.ID, p.ID, 2)

	order, err := s.svc.Checkout(ctx, user.ID)
	s.Require().NoError(err)

	// catalog price changes after the sale
	s.Require().NoError(s.db.Model(&models.Product{}).
		Where("id = ?", p.ID).
		Update("price", decimal.RequireFromString("99.99")).Error)

	persisted, err := s.svc.Get(ctx, order.ID)
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("10.00").Equal(persisted.Lines[0].UnitPrice))
	s.True(decimal.RequireFromString("20.00").Equal(persisted.TotalPrice))
}

func (s *orderServiceSuite) TestUpdateStatusFollowsLifecycle() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	order, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: p.ID, Quantity: 1},
	})
	s.Require().NoError(err)

	for _, next := range []models.OrderStatus{
		models.OrderProcessing,
		models.OrderShipped,
		models.OrderDelivered,
	} {
		updated, err := s.svc.UpdateStatus(ctx, order.ID, next)
		s.Require().NoError(err)
		s.Equal(next, updated.Status)
	}

	// delivered is terminal
	_, err = s.svc.UpdateStatus(ctx, order.ID, models.OrderPending)
	s.True(apperr.IsKind(err, apperr.KindValidation))
}

func (s *orderServiceSuite) TestUpdateStatusRejectsSkippedStep() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	order, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: p.ID, Quantity: 1},
	})
	s.Require().NoError(err)

	_, err = s.svc.UpdateStatus(ctx, order.ID, models.OrderShipped)
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindValidation))

	_, err = s.svc.UpdateStatus(ctx, order.ID, models.OrderStatus("REFUNDED"))
	s.True(apperr.IsKind(err, apperr.KindValidation))
}

func (s *orderServiceSuite) TestUpdateStatusUnknownOrder() {
	_, err := s.svc.UpdateStatus(s.T().Context(), uuid.NewString(), models.OrderProcessing)
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
}

func (s *orderServiceSuite) TestListPaginates() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 100)
	for i := 0; i < 5; i++ {
		_, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
			{ProductID: p.ID, Quantity: 1},
		})
		s.Require().NoError(err)
	}

	page, err := s.svc.List(ctx, pagination.Params{Offset: 2, Limit: 2})
	s.Require().NoError(err)
	s.Equal(2, page.PageNumber)
	s.Equal(2, page.PageSize)
	s.EqualValues(5, page.TotalRecordCount)
	s.Len(page.Items, 2)

	_, err = s.svc.List(ctx, pagination.Params{Offset: 0, Limit: 0})
	s.True(apperr.IsKind(err, apperr.KindValidation))
}

func (s *orderServiceSuite) TestDeleteRemovesOrderAndLines() {
	t := s.T()
	ctx := t.Context()

	user := seedUser(t, s.db)
	p := seedProduct(t, s.db, "P", "10.00", 5)
	order, err := s.svc.Create(ctx, user.ID, []service.OrderLineInput{
		{ProductID: p.ID, Quantity: 1},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(ctx, order.ID))
	s.EqualValues(0, countRows(t, s.db, &models.Order{}))
	s.EqualValues(0, countRows(t, s.db, &models.OrderLine{}))

	err = s.svc.Delete(ctx, order.ID)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
}
