package service

import (
	"strings"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
)

const (
	checkoutDefaultMaxLineQuantity  = 50
	checkoutMaxLineQuantityCeiling  = 10000
	checkoutDefaultExpireAfterHours = 720
	checkoutMaxExpireAfterHours     = 24 * 365
)

// normalizeSettingValueByKey 按设置键执行归一化，避免非法值入库。
func normalizeSettingValueByKey(key string, value map[string]interface{}) models.JSON {
	switch key {
	case constants.SettingKeyCheckoutConfig:
		return normalizeCheckoutSetting(value)
	default:
		return models.JSON(value)
	}
}

// normalizeCheckoutSetting 归一化结算设置，保留未知字段。
func normalizeCheckoutSetting(value map[string]interface{}) models.JSON {
	normalized := make(models.JSON, len(value)+4)
	for key, raw := range value {
		normalized[key] = raw
	}
	settings := checkoutSettingsFromJSON(models.JSON(value), normalizeCheckoutSettings(CheckoutSettings{
		DisplayGrossPrices:   true,
		VoucherRequiresEmail: true,
	}))
	normalized[constants.SettingFieldDisplayGrossPrices] = settings.DisplayGrossPrices
	normalized[constants.SettingFieldVoucherRequiresEmail] = settings.VoucherRequiresEmail
	normalized[constants.SettingFieldMaxLineQuantity] = settings.MaxLineQuantity
	normalized[constants.SettingFieldExpireAfterHours] = settings.ExpireAfterHours
	return normalized
}

func normalizeCheckoutSettings(settings CheckoutSettings) CheckoutSettings {
	if settings.MaxLineQuantity <= 0 {
		settings.MaxLineQuantity = checkoutDefaultMaxLineQuantity
	}
	if settings.MaxLineQuantity > checkoutMaxLineQuantityCeiling {
		settings.MaxLineQuantity = checkoutMaxLineQuantityCeiling
	}
	if settings.ExpireAfterHours <= 0 {
		settings.ExpireAfterHours = checkoutDefaultExpireAfterHours
	}
	if settings.ExpireAfterHours > checkoutMaxExpireAfterHours {
		settings.ExpireAfterHours = checkoutMaxExpireAfterHours
	}
	return settings
}

func parseSettingBool(raw interface{}) bool {
	switch value := raw.(type) {
	case bool:
		return value
	case int:
		return value != 0
	case int64:
		return value != 0
	case float64:
		return value != 0
	case string:
		normalized := strings.ToLower(strings.TrimSpace(value))
		return normalized == "1" || normalized == "true" || normalized == "yes" || normalized == "on"
	default:
		return false
	}
}
