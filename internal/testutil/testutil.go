package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/bookstore/internal/models"
	pkgdb "github.com/Skotchmaster/bookstore/pkg/db"
)

// NewDB returns a migrated in-memory sqlite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, pkgdb.Migrate(context.Background(), db, models.All()...))

	t.Cleanup(func() { _ = pkgdb.Close(db) })
	return db
}

func SeedProduct(t testing.TB, db *gorm.DB, title, price string, stock int64) *models.Product {
	t.Helper()

	p := &models.Product{
		Title:   title,
		Author:  "author of " + title,
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		InStock: stock > 0,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func ReloadProduct(t testing.TB, db *gorm.DB, p *models.Product) *models.Product {
	t.Helper()

	var out models.Product
	require.NoError(t, db.Where("id = ?", p.ID).First(&out).Error)
	return &out
}

func Address() models.ShippingAddress {
	return models.ShippingAddress{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Address:   "12 Analytical St",
		Country:   "UK",
		State:     "London",
		Zip:       "N1 9GU",
	}
}

// NewFileDB is NewDB backed by a file, for tests where a connection may be
// discarded mid-transaction.
func NewFileDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), "sqlite:"+filepath.Join(t.TempDir(), "orders.db"))
	require.NoError(t, err)
	require.NoError(t, pkgdb.Migrate(context.Background(), db, models.All()...))

	t.Cleanup(func() { _ = pkgdb.Close(db) })
	return db
}

func CountOrders(t testing.TB, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&models.Order{}).Count(&n).Error)
	return n
}
