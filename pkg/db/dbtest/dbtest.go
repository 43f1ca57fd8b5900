// Package dbtest opens throwaway sqlite databases carrying the service schema.
package dbtest

import (
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

// Open returns an in-memory database private to the calling test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_busy_timeout=5000"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusChange{},
		&models.Payout{},
		&models.PayoutOrder{},
		&models.SupplierWallet{},
		&models.PaymentAccount{},
		&models.PaymentLog{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	return conn
}

// Client wraps Open in the pkg/db client so services can run transactions.
func Client(t testing.TB) *dbpkg.Client {
	t.Helper()
	return dbpkg.FromConn(Open(t))
}
