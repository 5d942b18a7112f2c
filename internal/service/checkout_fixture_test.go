package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/plugin"
	"github.com/checkout-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testChannel = "default-channel"

// countingPlugins 不计税，仅统计钩子调用次数
type countingPlugins struct {
	mu            sync.Mutex
	lineCalls     int
	shippingCalls int
	lineErr       error
}

func (p *countingPlugins) CalculateLineTotal(_ context.Context, input plugin.LineTotalInput) (models.TaxedPrice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lineCalls++
	if p.lineErr != nil {
		return models.TaxedPrice{}, p.lineErr
	}
	return models.UntaxedPrice(input.Total), nil
}

func (p *countingPlugins) CalculateShippingPrice(_ context.Context, input plugin.ShippingPriceInput) (models.TaxedPrice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shippingCalls++
	return models.UntaxedPrice(input.Price), nil
}

func (p *countingPlugins) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lineCalls = 0
	p.shippingCalls = 0
}

func (p *countingPlugins) calls() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lineCalls, p.shippingCalls
}

type checkoutFixture struct {
	t       *testing.T
	db      *gorm.DB
	svc     *CheckoutService
	plugins *countingPlugins
	clock   time.Time
	seq     int
}

func setupCheckoutServiceTest(t *testing.T) *checkoutFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	plugins := &countingPlugins{}
	settings := NewSettingService(repository.NewSettingRepository(db), CheckoutSettings{
		DisplayGrossPrices:   true,
		VoucherRequiresEmail: false,
		MaxLineQuantity:      50,
		ExpireAfterHours:     24,
	})
	svc := NewCheckoutService(CheckoutServiceDeps{
		CheckoutRepo:    repository.NewCheckoutRepository(db),
		ProductRepo:     repository.NewProductRepository(db),
		VoucherRepo:     repository.NewVoucherRepository(db),
		GiftCardRepo:    repository.NewGiftCardRepository(db),
		ShippingRepo:    repository.NewShippingRepository(db),
		StockRepo:       repository.NewStockRepository(db),
		OrderRepo:       repository.NewOrderRepository(db),
		PaymentRepo:     repository.NewPaymentRepository(db),
		Discounts:       NewDiscountService(repository.NewSaleRepository(db), time.Minute),
		Settings:        settings,
		Plugins:         plugins,
		DefaultCurrency: "USD",
	})
	f := &checkoutFixture{t: t, db: db, svc: svc, plugins: plugins, clock: time.Now().UTC().Truncate(time.Second)}
	svc.SetClock(func() time.Time { return f.clock })
	return f
}

func (f *checkoutFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func (f *checkoutFixture) next() int {
	f.seq++
	return f.seq
}

func money(raw string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(raw))
}

func usd(raw string) models.Price {
	return models.NewPrice(decimal.RequireFromString(raw), "USD")
}

func moneyPtr(raw string) *models.Money {
	m := money(raw)
	return &m
}

func assertPrice(t *testing.T, label string, got models.Price, want string) {
	t.Helper()
	if !got.Amount.Decimal.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", label, want, got.Amount.String())
	}
}

func assertCode(t *testing.T, err error, code string) CheckoutErrors {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code %s, got nil", code)
	}
	list, ok := AsCheckoutErrors(err)
	if !ok {
		t.Fatalf("expected checkout errors with code %s, got %v", code, err)
	}
	if !list.HasCode(code) {
		t.Fatalf("expected error code %s, got %v", code, list)
	}
	return list
}

type variantSeed struct {
	name     string
	price    string
	shipping bool
	stock    int
	category *uint
}

// seedVariant 创建已发布、可购买且定价的商品规格
func (f *checkoutFixture) seedVariant(seed variantSeed) *models.ProductVariant {
	f.t.Helper()
	n := f.next()
	available := f.clock.Add(-time.Hour)
	product := models.Product{
		CategoryID:         seed.category,
		Slug:               fmt.Sprintf("product-%d", n),
		Name:               seed.name,
		IsShippingRequired: seed.shipping,
		ChargeTaxes:        true,
	}
	if err := f.db.Create(&product).Error; err != nil {
		f.t.Fatalf("create product failed: %v", err)
	}
	if !seed.shipping {
		// 带 default:true 的布尔列零值会被忽略，需显式更新
		if err := f.db.Model(&product).Update("is_shipping_required", false).Error; err != nil {
			f.t.Fatalf("mark product digital failed: %v", err)
		}
	}
	listing := models.ProductChannelListing{
		ProductID:              product.ID,
		Channel:                testChannel,
		IsPublished:            true,
		PublishedAt:            &available,
		AvailableForPurchaseAt: &available,
		VisibleInListings:      true,
	}
	if err := f.db.Create(&listing).Error; err != nil {
		f.t.Fatalf("create product listing failed: %v", err)
	}
	variant := models.ProductVariant{
		ProductID:      product.ID,
		SKU:            fmt.Sprintf("SKU-%d", n),
		Name:           seed.name,
		TrackInventory: true,
	}
	if err := f.db.Create(&variant).Error; err != nil {
		f.t.Fatalf("create variant failed: %v", err)
	}
	variantListing := models.VariantChannelListing{
		VariantID: variant.ID,
		Channel:   testChannel,
		Currency:  "USD",
		Price:     moneyPtr(seed.price),
	}
	if err := f.db.Create(&variantListing).Error; err != nil {
		f.t.Fatalf("create variant listing failed: %v", err)
	}
	stock := seed.stock
	if stock == 0 {
		stock = 100
	}
	if err := f.db.Create(&models.Stock{VariantID: variant.ID, Warehouse: "main", Quantity: stock}).Error; err != nil {
		f.t.Fatalf("create stock failed: %v", err)
	}
	return &variant
}

type voucherSeed struct {
	code      string
	kind      string
	valueType string
	value     string
	minSpent  *string
	configure func(v *models.Voucher)
}

func (f *checkoutFixture) seedVoucher(seed voucherSeed) *models.Voucher {
	f.t.Helper()
	voucher := models.Voucher{
		Code:              seed.code,
		Name:              seed.code,
		Type:              seed.kind,
		DiscountValueType: seed.valueType,
		StartDate:         f.clock.Add(-24 * time.Hour),
	}
	if voucher.Type == "" {
		voucher.Type = constants.VoucherTypeEntireOrder
	}
	if voucher.DiscountValueType == "" {
		voucher.DiscountValueType = constants.DiscountValueTypeFixed
	}
	if seed.configure != nil {
		seed.configure(&voucher)
	}
	if err := f.db.Create(&voucher).Error; err != nil {
		f.t.Fatalf("create voucher failed: %v", err)
	}
	listing := models.VoucherChannelListing{
		VoucherID:     voucher.ID,
		Channel:       testChannel,
		Currency:      "USD",
		DiscountValue: money(seed.value),
		IsActive:      true,
	}
	if seed.minSpent != nil {
		listing.MinSpent = moneyPtr(*seed.minSpent)
	}
	if err := f.db.Create(&listing).Error; err != nil {
		f.t.Fatalf("create voucher listing failed: %v", err)
	}
	voucher.ChannelListings = []models.VoucherChannelListing{listing}
	return &voucher
}

func (f *checkoutFixture) seedGiftCard(code, balance string) *models.GiftCard {
	f.t.Helper()
	card := models.GiftCard{
		Code:           code,
		Currency:       "USD",
		InitialBalance: money(balance),
		CurrentBalance: money(balance),
		IsActive:       true,
	}
	if err := f.db.Create(&card).Error; err != nil {
		f.t.Fatalf("create gift card failed: %v", err)
	}
	return &card
}

// seedShippingMethod 创建覆盖指定国家的配送方式
func (f *checkoutFixture) seedShippingMethod(country, price string, minimum *string) *models.ShippingMethod {
	f.t.Helper()
	zone := models.ShippingZone{
		Name:      fmt.Sprintf("zone-%d", f.next()),
		Countries: models.StringArray{country},
		Channels:  models.StringArray{testChannel},
	}
	if err := f.db.Create(&zone).Error; err != nil {
		f.t.Fatalf("create shipping zone failed: %v", err)
	}
	method := models.ShippingMethod{ZoneID: zone.ID, Name: "Standard", Type: constants.ShippingMethodTypePrice}
	if err := f.db.Create(&method).Error; err != nil {
		f.t.Fatalf("create shipping method failed: %v", err)
	}
	listing := models.ShippingMethodChannelListing{
		ShippingMethodID: method.ID,
		Channel:          testChannel,
		Currency:         "USD",
		Price:            money(price),
	}
	if minimum != nil {
		listing.MinimumOrderPrice = moneyPtr(*minimum)
	}
	if err := f.db.Create(&listing).Error; err != nil {
		f.t.Fatalf("create shipping listing failed: %v", err)
	}
	return &method
}

func (f *checkoutFixture) seedSale(name, valueType, value string, productIDs ...uint) *models.Sale {
	f.t.Helper()
	sale := models.Sale{
		Name:              name,
		DiscountValueType: valueType,
		StartDate:         f.clock.Add(-time.Hour),
		ProductIDs:        models.UintArray(productIDs),
	}
	if err := f.db.Create(&sale).Error; err != nil {
		f.t.Fatalf("create sale failed: %v", err)
	}
	listing := models.SaleChannelListing{SaleID: sale.ID, Channel: testChannel, Currency: "USD", DiscountValue: money(value)}
	if err := f.db.Create(&listing).Error; err != nil {
		f.t.Fatalf("create sale listing failed: %v", err)
	}
	return &sale
}

func (f *checkoutFixture) createCheckout(email string, lines ...CheckoutLineInput) *PricedCheckoutResult {
	f.t.Helper()
	result, err := f.svc.Create(context.Background(), CreateCheckoutInput{
		Channel:  testChannel,
		Currency: "USD",
		Email:    email,
		Lines:    lines,
	})
	if err != nil {
		f.t.Fatalf("create checkout failed: %v", err)
	}
	return result
}

func (f *checkoutFixture) shipTo(token, country string) *PricedCheckoutResult {
	f.t.Helper()
	result, err := f.svc.UpdateShippingAddress(context.Background(), token, AddressInput{
		FirstName:      "Ada",
		StreetAddress1: "1 Main St",
		City:           "Springfield",
		PostalCode:     "12345",
		Country:        country,
	})
	if err != nil {
		f.t.Fatalf("update shipping address failed: %v", err)
	}
	return result
}

func (f *checkoutFixture) selectMethod(token string, methodID uint) *PricedCheckoutResult {
	f.t.Helper()
	result, err := f.svc.UpdateDeliveryMethod(context.Background(), token, fmt.Sprintf("%d", methodID))
	if err != nil {
		f.t.Fatalf("update delivery method failed: %v", err)
	}
	return result
}

func (f *checkoutFixture) reload(token string) *models.Checkout {
	f.t.Helper()
	checkout, err := repository.NewCheckoutRepository(f.db).GetByToken(token)
	if err != nil || checkout == nil {
		f.t.Fatalf("reload checkout failed: %v", err)
	}
	return checkout
}
