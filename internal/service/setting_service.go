package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/checkout-next/internal/config"
	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
)

// CheckoutSettings 结算运行时设置
type CheckoutSettings struct {
	DisplayGrossPrices   bool `json:"display_gross_prices"`
	VoucherRequiresEmail bool `json:"voucher_requires_email"`
	MaxLineQuantity      int  `json:"max_line_quantity"`
	ExpireAfterHours     int  `json:"expire_after_hours"`
}

// CheckoutSettingsFromConfig 由静态配置生成默认设置
func CheckoutSettingsFromConfig(cfg config.CheckoutConfig) CheckoutSettings {
	return normalizeCheckoutSettings(CheckoutSettings{
		DisplayGrossPrices:   cfg.DisplayGrossPrices,
		VoucherRequiresEmail: cfg.VoucherRequiresEmail,
		MaxLineQuantity:      cfg.MaxLineQuantity,
		ExpireAfterHours:     cfg.ExpireAfterHours,
	})
}

// SettingService 设置业务服务
type SettingService struct {
	repo     repository.SettingRepository
	defaults CheckoutSettings
}

// NewSettingService 创建设置服务
func NewSettingService(repo repository.SettingRepository, defaults CheckoutSettings) *SettingService {
	return &SettingService{repo: repo, defaults: normalizeCheckoutSettings(defaults)}
}

// GetByKey 获取设置
func (s *SettingService) GetByKey(key string) (models.JSON, error) {
	setting, err := s.repo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	return setting.ValueJSON, nil
}

// Update 设置值
func (s *SettingService) Update(key string, value map[string]interface{}) (models.JSON, error) {
	normalized := normalizeSettingValueByKey(key, value)

	setting, err := s.repo.Upsert(key, normalized)
	if err != nil {
		return nil, err
	}
	return setting.ValueJSON, nil
}

// GetCheckoutSettings 获取结算设置（数据库覆盖配置默认值）
func (s *SettingService) GetCheckoutSettings() (CheckoutSettings, error) {
	if s == nil {
		return normalizeCheckoutSettings(CheckoutSettings{}), nil
	}
	if s.repo == nil {
		return s.defaults, nil
	}
	value, err := s.GetByKey(constants.SettingKeyCheckoutConfig)
	if err != nil {
		return s.defaults, err
	}
	if value == nil {
		return s.defaults, nil
	}
	return checkoutSettingsFromJSON(value, s.defaults), nil
}

func checkoutSettingsFromJSON(value models.JSON, fallback CheckoutSettings) CheckoutSettings {
	result := fallback
	if raw, ok := value[constants.SettingFieldDisplayGrossPrices]; ok {
		result.DisplayGrossPrices = parseSettingBool(raw)
	}
	if raw, ok := value[constants.SettingFieldVoucherRequiresEmail]; ok {
		result.VoucherRequiresEmail = parseSettingBool(raw)
	}
	if raw, ok := value[constants.SettingFieldMaxLineQuantity]; ok {
		if parsed, err := parseSettingInt(raw); err == nil {
			result.MaxLineQuantity = parsed
		}
	}
	if raw, ok := value[constants.SettingFieldExpireAfterHours]; ok {
		if parsed, err := parseSettingInt(raw); err == nil {
			result.ExpireAfterHours = parsed
		}
	}
	return normalizeCheckoutSettings(result)
}

func parseSettingInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), nil
		}
		if f, err := v.Float64(); err == nil {
			return int(f), nil
		}
		return 0, fmt.Errorf("invalid json number")
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0, fmt.Errorf("empty string")
		}
		parsed, err := strconv.Atoi(trimmed)
		if err != nil {
			return 0, err
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported value type")
	}
}
