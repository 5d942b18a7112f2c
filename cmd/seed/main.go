package main

import (
	"context"
	"fmt"
	"time"

	"github.com/checkout-next/internal/cache"
	"github.com/checkout-next/internal/config"
	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
	"github.com/checkout-next/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	seedChannel  = "default-channel"
	seedCurrency = "USD"
)

type seedProduct struct {
	Slug      string
	Name      string
	Category  string
	Price     string
	Shipping  bool
	Stock     int
	Published bool
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBOptions{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
		LogLevel:               cfg.Database.LogLevel,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		stdLog.Printf("Redis unavailable, discount cache will not be invalidated: %v", err)
	}

	now := time.Now().UTC()
	db := models.DB

	// 分类
	categoryIDs := map[string]uint{}
	for _, cat := range []models.Category{
		{Slug: "books", Name: "Books"},
		{Slug: "apparel", Name: "Apparel"},
	} {
		var existing models.Category
		if err := db.Where("slug = ?", cat.Slug).First(&existing).Error; err != nil {
			if err := db.Create(&cat).Error; err != nil {
				stdLog.Printf("Failed to create category %s: %v", cat.Slug, err)
				continue
			}
			existing = cat
			stdLog.Printf("Created category: %s", cat.Slug)
		} else {
			stdLog.Printf("Category already exists: %s", cat.Slug)
		}
		categoryIDs[cat.Slug] = existing.ID
	}

	// 商品、规格、渠道定价与库存
	productIDs := map[string]uint{}
	for _, item := range []seedProduct{
		{Slug: "go-handbook-ebook", Name: "Go Handbook (e-book)", Category: "books", Price: "19.99", Shipping: false, Stock: 1000, Published: true},
		{Slug: "go-handbook-print", Name: "Go Handbook (print)", Category: "books", Price: "39.00", Shipping: true, Stock: 25, Published: true},
		{Slug: "gopher-tshirt", Name: "Gopher T-Shirt", Category: "apparel", Price: "24.50", Shipping: true, Stock: 40, Published: true},
		{Slug: "preorder-hoodie", Name: "Gopher Hoodie (pre-order)", Category: "apparel", Price: "59.00", Shipping: true, Stock: 0, Published: false},
	} {
		id, err := seedCatalogItem(db, item, categoryIDs[item.Category], now)
		if err != nil {
			stdLog.Printf("Failed to seed product %s: %v", item.Slug, err)
			continue
		}
		productIDs[item.Slug] = id
		stdLog.Printf("Seeded product: %s", item.Slug)
	}

	// 自动促销：T 恤 8 折
	var sale models.Sale
	if err := db.Where("name = ?", "Apparel week").First(&sale).Error; err != nil {
		sale = models.Sale{
			Name:              "Apparel week",
			DiscountValueType: constants.DiscountValueTypePercentage,
			StartDate:         now.Add(-time.Hour),
			CategoryIDs:       models.UintArray{categoryIDs["apparel"]},
		}
		if err := db.Create(&sale).Error; err != nil {
			stdLog.Printf("Failed to create sale: %v", err)
		} else if err := db.Create(&models.SaleChannelListing{
			SaleID:        sale.ID,
			Channel:       seedChannel,
			Currency:      seedCurrency,
			DiscountValue: mustMoney("20"),
		}).Error; err != nil {
			stdLog.Printf("Failed to create sale listing: %v", err)
		} else {
			stdLog.Println("Created sale: Apparel week")
		}
	}
	if err := cache.InvalidateChannelDiscounts(context.Background(), seedChannel); err != nil {
		stdLog.Printf("Failed to invalidate discount cache: %v", err)
	}

	// 优惠码
	limit := 100
	minSpent := mustMoney("30")
	for _, voucher := range []struct {
		model    models.Voucher
		value    string
		minSpent *models.Money
	}{
		{model: models.Voucher{Code: "WELCOME10", Name: "Welcome 10%", Type: constants.VoucherTypeEntireOrder, DiscountValueType: constants.DiscountValueTypePercentage, ApplyOncePerCustomer: true}, value: "10"},
		{model: models.Voucher{Code: "BOOKS5", Name: "5 off books", Type: constants.VoucherTypeSpecificProduct, DiscountValueType: constants.DiscountValueTypeFixed, CategoryIDs: models.UintArray{categoryIDs["books"]}, UsageLimit: &limit}, value: "5", minSpent: &minSpent},
		{model: models.Voucher{Code: "FREESHIP", Name: "Free shipping", Type: constants.VoucherTypeShipping, DiscountValueType: constants.DiscountValueTypePercentage, Countries: models.StringArray{"US"}}, value: "100"},
	} {
		var existing models.Voucher
		if err := db.Where("code = ?", voucher.model.Code).First(&existing).Error; err == nil {
			stdLog.Printf("Voucher already exists: %s", voucher.model.Code)
			continue
		}
		model := voucher.model
		model.StartDate = now.Add(-time.Hour)
		if err := db.Create(&model).Error; err != nil {
			stdLog.Printf("Failed to create voucher %s: %v", model.Code, err)
			continue
		}
		if err := db.Create(&models.VoucherChannelListing{
			VoucherID:     model.ID,
			Channel:       seedChannel,
			Currency:      seedCurrency,
			DiscountValue: mustMoney(voucher.value),
			MinSpent:      voucher.minSpent,
			IsActive:      true,
		}).Error; err != nil {
			stdLog.Printf("Failed to create voucher listing %s: %v", model.Code, err)
			continue
		}
		stdLog.Printf("Created voucher: %s", model.Code)
	}

	// 礼品卡
	for code, balance := range map[string]string{"GIFT-0001-DEMO": "50", "GIFT-0002-DEMO": "15"} {
		var existing models.GiftCard
		if err := db.Where("code = ?", code).First(&existing).Error; err == nil {
			stdLog.Printf("Gift card already exists: %s", code)
			continue
		}
		amount := mustMoney(balance)
		card := models.GiftCard{Code: code, Currency: seedCurrency, InitialBalance: amount, CurrentBalance: amount, IsActive: true}
		if err := db.Create(&card).Error; err != nil {
			stdLog.Printf("Failed to create gift card %s: %v", code, err)
			continue
		}
		stdLog.Printf("Created gift card: %s", code)
	}

	// 配送区域与方式
	var zone models.ShippingZone
	if err := db.Where("name = ?", "North America").First(&zone).Error; err != nil {
		zone = models.ShippingZone{
			Name:      "North America",
			Countries: models.StringArray{"US", "CA"},
			Channels:  models.StringArray{seedChannel},
		}
		if err := db.Create(&zone).Error; err != nil {
			stdLog.Printf("Failed to create shipping zone: %v", err)
		} else {
			freeOver := mustMoney("75")
			for _, method := range []struct {
				name    string
				price   string
				minimum *models.Money
			}{
				{name: "Standard", price: "5.00"},
				{name: "Free over 75", price: "0.00", minimum: &freeOver},
			} {
				record := models.ShippingMethod{ZoneID: zone.ID, Name: method.name, Type: constants.ShippingMethodTypePrice}
				if err := db.Create(&record).Error; err != nil {
					stdLog.Printf("Failed to create shipping method %s: %v", method.name, err)
					continue
				}
				if err := db.Create(&models.ShippingMethodChannelListing{
					ShippingMethodID:  record.ID,
					Channel:           seedChannel,
					Currency:          seedCurrency,
					Price:             mustMoney(method.price),
					MinimumOrderPrice: method.minimum,
				}).Error; err != nil {
					stdLog.Printf("Failed to create shipping listing %s: %v", method.name, err)
				}
			}
			stdLog.Println("Created shipping zone: North America")
		}
	}

	// 结算配置（经设置服务归一化后写入）
	settings := service.NewSettingService(repository.NewSettingRepository(db), service.CheckoutSettingsFromConfig(cfg.Checkout))
	if _, err := settings.Update(constants.SettingKeyCheckoutConfig, map[string]interface{}{
		constants.SettingFieldDisplayGrossPrices:   cfg.Checkout.DisplayGrossPrices,
		constants.SettingFieldVoucherRequiresEmail: cfg.Checkout.VoucherRequiresEmail,
		constants.SettingFieldMaxLineQuantity:      cfg.Checkout.MaxLineQuantity,
		constants.SettingFieldExpireAfterHours:     cfg.Checkout.ExpireAfterHours,
	}); err != nil {
		stdLog.Printf("Failed to update checkout settings: %v", err)
	} else {
		stdLog.Println("Updated checkout settings")
	}

	fmt.Println("\nSeed data created successfully!")
	fmt.Println("Summary:")
	fmt.Printf("- %d Categories\n", len(categoryIDs))
	fmt.Printf("- %d Products in channel %s\n", len(productIDs), seedChannel)
	fmt.Println("- 1 Sale, 3 Vouchers, 2 Gift cards")
	fmt.Println("- 1 Shipping zone with 2 methods")
	fmt.Println("- Checkout settings")
}

// seedCatalogItem 创建商品及其单一规格，已存在时直接返回商品ID
func seedCatalogItem(db *gorm.DB, item seedProduct, categoryID uint, now time.Time) (uint, error) {
	var existing models.Product
	if err := db.Where("slug = ?", item.Slug).First(&existing).Error; err == nil {
		return existing.ID, nil
	}
	var productID uint
	err := db.Transaction(func(tx *gorm.DB) error {
		product := models.Product{Slug: item.Slug, Name: item.Name, IsShippingRequired: item.Shipping, ChargeTaxes: true}
		if categoryID != 0 {
			product.CategoryID = &categoryID
		}
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		if !item.Shipping {
			// 带 default:true 的布尔列零值会被忽略
			if err := tx.Model(&product).Update("is_shipping_required", false).Error; err != nil {
				return err
			}
		}
		listing := models.ProductChannelListing{ProductID: product.ID, Channel: seedChannel, VisibleInListings: true}
		if item.Published {
			listing.IsPublished = true
			listing.PublishedAt = &now
			listing.AvailableForPurchaseAt = &now
		}
		if err := tx.Create(&listing).Error; err != nil {
			return err
		}
		variant := models.ProductVariant{ProductID: product.ID, SKU: item.Slug, Name: item.Name, TrackInventory: item.Shipping}
		if err := tx.Create(&variant).Error; err != nil {
			return err
		}
		if !item.Shipping {
			if err := tx.Model(&variant).Update("track_inventory", false).Error; err != nil {
				return err
			}
		}
		price := mustMoney(item.Price)
		if err := tx.Create(&models.VariantChannelListing{VariantID: variant.ID, Channel: seedChannel, Currency: seedCurrency, Price: &price}).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.Stock{VariantID: variant.ID, Warehouse: "main", Quantity: item.Stock}).Error; err != nil {
			return err
		}
		productID = product.ID
		return nil
	})
	return productID, err
}

func mustMoney(raw string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
}
