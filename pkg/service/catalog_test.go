package service_test

import (
	"context"
	"sync"
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

// fakeProductCache records cache traffic in memory.
type fakeProductCache struct {
	mu       sync.Mutex
	products map[string]*models.Product
}

func newFakeProductCache() *fakeProductCache {
	return &fakeProductCache{products: make(map[string]*models.Product)}
}

func (f *fakeProductCache) GetProductCache(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id], nil
}

func (f *fakeProductCache) CacheProduct(_ context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
	return nil
}

func (f *fakeProductCache) InvalidateProducts(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.products, id)
	}
	return nil
}

type catalogServiceSuite struct {
	suite.Suite

	db    *gorm.DB
	cache *fakeProductCache
	svc   *service.CatalogService
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(catalogServiceSuite))
}

func (s *catalogServiceSuite) SetupTest() {
	s.db = newTestDB(s.T())
	s.cache = newFakeProductCache()
	s.svc = service.NewCatalogService(s.db, s.cache, zap.NewNop())
}

func (s *catalogServiceSuite) TestCreateProductWithCategories() {
	t := s.T()
	ctx := t.Context()

	books := seedCategory(t, s.db, "books")
	gifts := seedCategory(t, s.db, "gifts")

	product, err := s.svc.CreateProduct(ctx, service.ProductInput{
		Name:        "atlas",
		Price:       decimal.RequireFromString("25.00"),
		Stock:       3,
		CategoryIDs: []string{books.ID, gifts.ID},
	})
	s.Require().NoError(err)
	s.Len(product.Categories, 2)

	got, err := s.svc.GetProduct(ctx, product.ID)
	s.Require().NoError(err)
	s.Len(got.Categories, 2)
}

func (s *catalogServiceSuite) TestCreateProductUnknownCategory() {
	t := s.T()
	ctx := t.Context()

	books := seedCategory(t, s.db, "books")

	_, err := s.svc.CreateProduct(ctx, service.ProductInput{
		Name:        "atlas",
		Price:       decimal.RequireFromString("25.00"),
		CategoryIDs: []string{books.ID, uuid.NewString()},
	})
	s.Require().Error(err)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
	s.EqualError(err, "category not found")
	s.EqualValues(0, countRows(t, s.db, &models.Product{}))
}

func (s *catalogServiceSuite) TestCreateProductValidation() {
	ctx := s.T().Context()

	_, err := s.svc.CreateProduct(ctx, service.ProductInput{
		Price: decimal.RequireFromString("1.00"),
	})
	s.True(apperr.IsKind(err, apperr.KindValidation))

	_, err = s.svc.CreateProduct(ctx, service.ProductInput{
		Name:  "atlas",
		Price: decimal.RequireFromString("-1.00"),
	})
	s.True(apperr.IsKind(err, apperr.KindValidation))

	_, err = s.svc.CreateProduct(ctx, service.ProductInput{
		Name:  "atlas",
		Price: decimal.RequireFromString("1.00"),
		Stock: -1,
	})
	s.True(apperr.IsKind(err, apperr.KindValidation))
}

func (s *catalogServiceSuite) TestGetProductUsesCache() {
	t := s.T()
	ctx := t.Context()

	product := seedProduct(t, s.db, "atlas", "25.00", 3)

	got, err := s.svc.GetProduct(ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(product.ID, got.ID)

	// first read populated the cache; a stale DB row proves the second
	// read is served from it
	s.Require().NoError(s.db.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("name", "renamed").Error)

	cached, err := s.svc.GetProduct(ctx, product.ID)
	s.Require().NoError(err)
	s.Equal("atlas", cached.Name)
}

func (s *catalogServiceSuite) TestUpdateProductInvalidatesCache() {
	t := s.T()
	ctx := t.Context()

	product := seedProduct(t, s.db, "atlas", "25.00", 3)
	_, err := s.svc.GetProduct(ctx, product.ID)
	s.Require().NoError(err)

	_, err = s.svc.UpdateProduct(ctx, product.ID, service.UpdateProductInput{Name: "globe"})
	s.Require().NoError(err)

	got, err := s.svc.GetProduct(ctx, product.ID)
	s.Require().NoError(err)
	s.Equal("globe", got.Name)
}

func (s *catalogServiceSuite) TestUpdateProductReplacesCategorySet() {
	t := s.T()
	ctx := t.Context()

	a := seedCategory(t, s.db, "a")
	b := seedCategory(t, s.db, "b")
	c := seedCategory(t, s.db, "c")

	product, err := s.svc.CreateProduct(ctx, service.ProductInput{
		Name:        "atlas",
		Price:       decimal.RequireFromString("25.00"),
		CategoryIDs: []string{a.ID, b.ID},
	})
	s.Require().NoError(err)

	// symmetric difference: drop a, keep b, add c
	updated, err := s.svc.UpdateProduct(ctx, product.ID, service.UpdateProductInput{
		CategoryIDs: []string{b.ID, c.ID},
	})
	s.Require().NoError(err)
	s.Require().Len(updated.Categories, 2)

	got := map[string]bool{}
	for _, cat := range updated.Categories {
		got[cat.ID] = true
	}
	s.True(got[b.ID])
	s.True(got[c.ID])
	s.False(got[a.ID])

	var joinRows int64
	s.Require().NoError(s.db.Table("product_categories").
		Where("product_id = ?", product.ID).
		Count(&joinRows).Error)
	s.EqualValues(2, joinRows)
}

func (s *catalogServiceSuite) TestUpdateProductUnknownCategoryRollsBack() {
	t := s.T()
	ctx := t.Context()

	a := seedCategory(t, s.db, "a")
	product, err := s.svc.CreateProduct(ctx, service.ProductInput{
		Name:        "atlas",
		Price:       decimal.RequireFromString("25.00"),
		CategoryIDs: []string{a.ID},
	})
	s.Require().NoError(err)

	_, err = s.svc.UpdateProduct(ctx, product.ID, service.UpdateProductInput{
		Name:        "globe",
		CategoryIDs: []string{uuid.NewString()},
	})
	s.Require().Error(err)
	s.EqualError(err, "category not found")

	// the field update in the same transaction rolled back with it
	got, err := s.svc.GetProduct(ctx, product.ID)
	s.Require().NoError(err)
	s.Equal("atlas", got.Name)
	s.Len(got.Categories, 1)
}

func (s *catalogServiceSuite) TestUpdateProductNilCategoriesLeavesAssociations() {
	t := s.T()
	ctx := t.Context()

	a := seedCategory(t, s.db, "a")
	product, err := s.svc.CreateProduct(ctx, service.ProductInput{
		Name:        "atlas",
		Price:       decimal.RequireFromString("25.00"),
		CategoryIDs: []string{a.ID},
	})
	s.Require().NoError(err)

	price := decimal.RequireFromString("30.00")
	updated, err := s.svc.UpdateProduct(ctx, product.ID, service.UpdateProductInput{Price: &price})
	s.Require().NoError(err)
	s.True(price.Equal(updated.Price))
	s.Len(updated.Categories, 1)
}

func (s *catalogServiceSuite) TestDeleteProduct() {
	t := s.T()
	ctx := t.Context()

	product := seedProduct(t, s.db, "atlas", "25.00", 3)
	s.Require().NoError(s.svc.DeleteProduct(ctx, product.ID))

	_, err := s.svc.GetProduct(ctx, product.ID)
	s.True(apperr.IsKind(err, apperr.KindNotFound))

	err = s.svc.DeleteProduct(ctx, product.ID)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
}

func (s *catalogServiceSuite) TestListProductsKeyword() {
	t := s.T()
	ctx := t.Context()

	seedProduct(t, s.db, "walnut desk", "100.00", 1)
	seedProduct(t, s.db, "oak desk", "120.00", 1)
	seedProduct(t, s.db, "chair", "40.00", 1)

	page, err := s.svc.ListProducts(ctx, pagination.Params{Offset: 0, Limit: 10, Keyword: "desk"})
	s.Require().NoError(err)
	s.EqualValues(2, page.TotalRecordCount)
	s.Len(page.Items, 2)
	s.Equal(1, page.PageNumber)
}

func (s *catalogServiceSuite) TestCategoryCRUD() {
	ctx := s.T().Context()

	category, err := s.svc.CreateCategory(ctx, "books")
	s.Require().NoError(err)

	_, err = s.svc.CreateCategory(ctx, "")
	s.True(apperr.IsKind(err, apperr.KindValidation))

	got, err := s.svc.GetCategory(ctx, category.ID)
	s.Require().NoError(err)
	s.Equal("books", got.Name)

	updated, err := s.svc.UpdateCategory(ctx, category.ID, "novels")
	s.Require().NoError(err)
	s.Equal("novels", updated.Name)

	all, err := s.svc.ListCategories(ctx)
	s.Require().NoError(err)
	s.Len(all, 1)

	s.Require().NoError(s.svc.DeleteCategory(ctx, category.ID))
	_, err = s.svc.GetCategory(ctx, category.ID)
	s.True(apperr.IsKind(err, apperr.KindNotFound))
}
