package service_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory database per test. The pool is
// pinned to one connection because every in-memory sqlite connection is a
// separate database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, repository.Migrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: "irrelevant-hash",
		Role:     models.RoleUser,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:    uuid.NewString(),
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func seedCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()

	category := &models.Category{
		ID:   uuid.NewString(),
		Name: name,
	}
	require.NoError(t, db.Create(category).Error)
	return category
}

func seedCartItem(t *testing.T, db *gorm.DB, userID, productID string, quantity int) {
	t.Helper()

	require.NoError(t, db.Create(&models.CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}).Error)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(model).Count(&count).Error)
	return count
}

func productStock(t *testing.T, db *gorm.DB, id string) int {
	t.Helper()

	var product models.Product
	require.NoError(t, db.First(&product, "id = ?", id).Error)
	return product.Stock
}
