package repository

import (
	"testing"
	"time"

	"github.com/checkout-next/internal/models"
)

func TestVoucherRepositoryUsageLimit(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_usage")
	repo := NewVoucherRepository(db)
	limit := 1
	voucher := &models.Voucher{
		Code:       " summer ",
		Type:       "ENTIRE_ORDER",
		StartDate:  time.Now().UTC().Add(-time.Hour),
		UsageLimit: &limit,
	}
	if err := db.Create(voucher).Error; err != nil {
		t.Fatalf("create voucher failed: %v", err)
	}
	loaded, err := repo.GetByCode("Summer")
	if err != nil || loaded == nil {
		t.Fatalf("lookup should be case-insensitive: %v", err)
	}
	ok, err := repo.IncrementUsed(voucher.ID)
	if err != nil || !ok {
		t.Fatalf("first increment failed: %v %v", ok, err)
	}
	ok, err = repo.IncrementUsed(voucher.ID)
	if err != nil || ok {
		t.Fatalf("increment above limit should fail, got %v %v", ok, err)
	}
}

func TestVoucherRepositoryCustomerUsage(t *testing.T) {
	db := setupRepositoryTestDB(t, "voucher_customer")
	repo := NewVoucherRepository(db)
	used, err := repo.HasCustomerUsed(1, "A@Example.com")
	if err != nil || used {
		t.Fatalf("fresh customer should not be used: %v %v", used, err)
	}
	created, err := repo.CreateCustomer(1, "A@Example.com")
	if err != nil || !created {
		t.Fatalf("create customer failed: %v %v", created, err)
	}
	created, err = repo.CreateCustomer(1, "a@example.com ")
	if err != nil || created {
		t.Fatalf("duplicate customer should be ignored: %v %v", created, err)
	}
	used, _ = repo.HasCustomerUsed(1, "a@example.com")
	if !used {
		t.Fatalf("customer usage not recorded")
	}
}

func TestStockRepositoryDecreaseAcrossWarehouses(t *testing.T) {
	db := setupRepositoryTestDB(t, "stock_decrease")
	repo := NewStockRepository(db)
	stocks := []models.Stock{
		{VariantID: 1, Warehouse: "a", Quantity: 3, QuantityAllocated: 1},
		{VariantID: 1, Warehouse: "b", Quantity: 5},
		{VariantID: 2, Warehouse: "a", Quantity: 1},
	}
	if err := db.Create(&stocks).Error; err != nil {
		t.Fatalf("create stocks failed: %v", err)
	}
	available, err := repo.SumAvailable([]uint{1, 2, 3})
	if err != nil {
		t.Fatalf("sum available failed: %v", err)
	}
	if available[1] != 7 || available[2] != 1 {
		t.Fatalf("unexpected availability %v", available)
	}
	if _, ok := available[3]; ok {
		t.Fatalf("variant without stock rows should be absent")
	}

	if err := repo.Decrease(1, 4); err != nil {
		t.Fatalf("decrease failed: %v", err)
	}
	available, _ = repo.SumAvailable([]uint{1})
	if available[1] != 3 {
		t.Fatalf("available want 3 got %d", available[1])
	}
	if err := repo.Decrease(2, 2); err != ErrStockInsufficient {
		t.Fatalf("want ErrStockInsufficient got %v", err)
	}
}

func TestSaleRepositoryListActiveByChannel(t *testing.T) {
	db := setupRepositoryTestDB(t, "sale_active")
	repo := NewSaleRepository(db)
	now := time.Now().UTC()
	ended := now.Add(-time.Minute)
	sales := []models.Sale{
		{Name: "running", DiscountValueType: "percentage", StartDate: now.Add(-time.Hour), ProductIDs: models.UintArray{1}},
		{Name: "ended", DiscountValueType: "percentage", StartDate: now.Add(-time.Hour), EndDate: &ended},
		{Name: "future", DiscountValueType: "percentage", StartDate: now.Add(time.Hour)},
		{Name: "other-channel", DiscountValueType: "fixed", StartDate: now.Add(-time.Hour)},
	}
	if err := db.Create(&sales).Error; err != nil {
		t.Fatalf("create sales failed: %v", err)
	}
	listings := []models.SaleChannelListing{
		{SaleID: sales[0].ID, Channel: "web", Currency: "USD", DiscountValue: mustMoney(t, "10")},
		{SaleID: sales[0].ID, Channel: "app", Currency: "USD", DiscountValue: mustMoney(t, "20")},
		{SaleID: sales[1].ID, Channel: "web", Currency: "USD", DiscountValue: mustMoney(t, "10")},
		{SaleID: sales[2].ID, Channel: "web", Currency: "USD", DiscountValue: mustMoney(t, "10")},
		{SaleID: sales[3].ID, Channel: "app", Currency: "USD", DiscountValue: mustMoney(t, "1")},
	}
	if err := db.Create(&listings).Error; err != nil {
		t.Fatalf("create listings failed: %v", err)
	}

	active, err := repo.ListActiveByChannel("web", now)
	if err != nil {
		t.Fatalf("list active failed: %v", err)
	}
	if len(active) != 1 || active[0].Name != "running" {
		t.Fatalf("unexpected active sales %+v", active)
	}
	if len(active[0].ChannelListings) != 1 || active[0].ChannelListings[0].Channel != "web" {
		t.Fatalf("only the channel listing should be preloaded, got %+v", active[0].ChannelListings)
	}
	if !active[0].ProductIDs.Contains(1) {
		t.Fatalf("product ids not loaded")
	}
}

func TestShippingRepositoryListZonesByChannel(t *testing.T) {
	db := setupRepositoryTestDB(t, "shipping_zones")
	repo := NewShippingRepository(db)
	zones := []models.ShippingZone{
		{Name: "eu", Countries: models.StringArray{"DE", "FR"}, Channels: models.StringArray{"web"}},
		{Name: "app-only", Countries: models.StringArray{"US"}, Channels: models.StringArray{"app"}},
	}
	if err := db.Create(&zones).Error; err != nil {
		t.Fatalf("create zones failed: %v", err)
	}
	method := &models.ShippingMethod{ZoneID: zones[0].ID, Name: "dhl", Type: "price"}
	if err := db.Create(method).Error; err != nil {
		t.Fatalf("create method failed: %v", err)
	}
	if err := db.Create(&models.ShippingMethodChannelListing{
		ShippingMethodID: method.ID, Channel: "web", Currency: "EUR", Price: mustMoney(t, "4.99"),
	}).Error; err != nil {
		t.Fatalf("create listing failed: %v", err)
	}

	result, err := repo.ListZonesByChannel("web")
	if err != nil {
		t.Fatalf("list zones failed: %v", err)
	}
	if len(result) != 1 || result[0].Name != "eu" {
		t.Fatalf("unexpected zones %+v", result)
	}
	if len(result[0].Methods) != 1 || result[0].Methods[0].ListingFor("web") == nil {
		t.Fatalf("method listing not loaded: %+v", result[0].Methods)
	}

	loaded, err := repo.GetMethodByID(method.ID)
	if err != nil || loaded == nil || loaded.Zone == nil || loaded.Zone.Name != "eu" {
		t.Fatalf("get method failed: %+v %v", loaded, err)
	}
}
