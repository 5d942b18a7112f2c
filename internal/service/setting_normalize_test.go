package service

import (
	"testing"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
)

type mockSettingRepo struct {
	store map[string]models.JSON
}

func newMockSettingRepo() *mockSettingRepo {
	return &mockSettingRepo{store: map[string]models.JSON{}}
}

func (m *mockSettingRepo) GetByKey(key string) (*models.Setting, error) {
	value, ok := m.store[key]
	if !ok {
		return nil, nil
	}
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func (m *mockSettingRepo) Upsert(key string, value models.JSON) (*models.Setting, error) {
	m.store[key] = value
	return &models.Setting{Key: key, ValueJSON: value}, nil
}

func TestUpdateCheckoutSettingNormalized(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo, CheckoutSettings{})

	result, err := svc.Update(constants.SettingKeyCheckoutConfig, map[string]interface{}{
		constants.SettingFieldMaxLineQuantity:    "999999",
		constants.SettingFieldDisplayGrossPrices: "off",
		constants.SettingFieldExpireAfterHours:   -3,
		"extra":                                  "keep",
	})
	if err != nil {
		t.Fatalf("update checkout config failed: %v", err)
	}
	if result[constants.SettingFieldMaxLineQuantity] != checkoutMaxLineQuantityCeiling {
		t.Fatalf("max line quantity should be capped, got %v", result[constants.SettingFieldMaxLineQuantity])
	}
	if result[constants.SettingFieldDisplayGrossPrices] != false {
		t.Fatalf("display gross should be false, got %v", result[constants.SettingFieldDisplayGrossPrices])
	}
	if result[constants.SettingFieldVoucherRequiresEmail] != true {
		t.Fatalf("voucher requires email should default to true, got %v", result[constants.SettingFieldVoucherRequiresEmail])
	}
	if result[constants.SettingFieldExpireAfterHours] != checkoutDefaultExpireAfterHours {
		t.Fatalf("invalid expire hours should fall back, got %v", result[constants.SettingFieldExpireAfterHours])
	}
	if result["extra"] != "keep" {
		t.Fatalf("unexpected extra field: %v", result["extra"])
	}
}

func TestGetCheckoutSettingsOverridesDefaults(t *testing.T) {
	repo := newMockSettingRepo()
	svc := NewSettingService(repo, CheckoutSettings{
		DisplayGrossPrices:   true,
		VoucherRequiresEmail: true,
		MaxLineQuantity:      20,
	})

	settings, err := svc.GetCheckoutSettings()
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if !settings.DisplayGrossPrices || settings.MaxLineQuantity != 20 || settings.ExpireAfterHours != checkoutDefaultExpireAfterHours {
		t.Fatalf("unexpected defaults %+v", settings)
	}

	repo.store[constants.SettingKeyCheckoutConfig] = models.JSON{
		constants.SettingFieldVoucherRequiresEmail: false,
		constants.SettingFieldMaxLineQuantity:      float64(5),
	}
	settings, err = svc.GetCheckoutSettings()
	if err != nil {
		t.Fatalf("get settings failed: %v", err)
	}
	if settings.VoucherRequiresEmail || settings.MaxLineQuantity != 5 || !settings.DisplayGrossPrices {
		t.Fatalf("database values should override defaults, got %+v", settings)
	}
}
