//go:build integration
// +build integration

package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/checkout-next/internal/models"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 优先使用 TEST_POSTGRES_DSN，否则启动临时 PostgreSQL 容器。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		dsn = startPostgresContainer(t)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	all := models.AllModels()
	_ = db.Migrator().DropTable(all...)
	if err := db.AutoMigrate(all...); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(all...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func startPostgresContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "checkout",
			"POSTGRES_PASSWORD": "checkout",
			"POSTGRES_DB":       "checkout",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip postgres integration test: container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container failed: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host failed: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port failed: %v", err)
	}
	return fmt.Sprintf("postgres://checkout:checkout@%s:%s/checkout?sslmode=disable", host, port.Port())
}

func TestPostgresGiftCardConcurrentConsume(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	card := &models.GiftCard{
		Code:           "PG-CONCURRENT",
		Currency:       "USD",
		InitialBalance: mustMoney(t, "25.00"),
		CurrentBalance: mustMoney(t, "25.00"),
		IsActive:       true,
	}
	if err := db.Create(card).Error; err != nil {
		t.Fatalf("create card failed: %v", err)
	}

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				repo := NewGiftCardRepository(db).WithTx(tx)
				locked, err := repo.GetByIDForUpdate(card.ID)
				if err != nil {
					return err
				}
				ok, err := repo.ConsumeBalance(locked, mustMoney(t, "10.00"), time.Now())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("balance exhausted")
				}
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 2 {
		t.Fatalf("want exactly 2 successful consumptions got %d", succeeded)
	}
	loaded, err := NewGiftCardRepository(db).GetByID(card.ID)
	if err != nil {
		t.Fatalf("reload card failed: %v", err)
	}
	if loaded.CurrentBalance.String() != "5.00" {
		t.Fatalf("balance want 5.00 got %s", loaded.CurrentBalance.String())
	}
}

func TestPostgresSaleAndShippingQueries(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	now := time.Now().UTC()

	sale := &models.Sale{Name: "pg-sale", DiscountValueType: "percentage", StartDate: now.Add(-time.Hour), CategoryIDs: models.UintArray{3}}
	if err := db.Create(sale).Error; err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if err := db.Create(&models.SaleChannelListing{SaleID: sale.ID, Channel: "web", Currency: "USD", DiscountValue: mustMoney(t, "15")}).Error; err != nil {
		t.Fatalf("create sale listing failed: %v", err)
	}
	sales, err := NewSaleRepository(db).ListActiveByChannel("web", now)
	if err != nil || len(sales) != 1 || !sales[0].CategoryIDs.Contains(3) {
		t.Fatalf("list active sales failed: %+v %v", sales, err)
	}

	zone := &models.ShippingZone{Name: "pg-zone", Countries: models.StringArray{"PL"}}
	if err := db.Create(zone).Error; err != nil {
		t.Fatalf("create zone failed: %v", err)
	}
	zones, err := NewShippingRepository(db).ListZonesByChannel("web")
	if err != nil || len(zones) != 1 || !zones[0].Countries.ContainsFold("pl") {
		t.Fatalf("list zones failed: %+v %v", zones, err)
	}
}
