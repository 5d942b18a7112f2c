package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/checkout-next/internal/config"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
)

const (
	hookLineTotal     = "calculate_line_total"
	hookShippingPrice = "calculate_shipping_price"
)

// LineTotalInput 行合计钩子输入
type LineTotalInput struct {
	CheckoutToken string
	Channel       string
	LineID        uint
	VariantID     uint
	ProductID     uint
	ChargeTaxes   bool
	Quantity      int
	Total         models.Price // 促销后、未税的行合计
	Address       *models.Address
}

// ShippingPriceInput 运费钩子输入
type ShippingPriceInput struct {
	CheckoutToken string
	Channel       string
	MethodID      uint
	MethodName    string
	Price         models.Price // 渠道配置的基础运费
	Address       *models.Address
}

// Manager 定价钩子集合，作为依赖注入到定价服务中
type Manager interface {
	CalculateLineTotal(ctx context.Context, input LineTotalInput) (models.TaxedPrice, error)
	CalculateShippingPrice(ctx context.Context, input ShippingPriceInput) (models.TaxedPrice, error)
}

// Plugin 单个插件：以前一个插件的结果为输入
type Plugin interface {
	ID() string
	CalculateLineTotal(ctx context.Context, input LineTotalInput, previous models.TaxedPrice) (models.TaxedPrice, error)
	CalculateShippingPrice(ctx context.Context, input ShippingPriceInput, previous models.TaxedPrice) (models.TaxedPrice, error)
}

// Factory 由原始配置构造插件
type Factory func(options map[string]interface{}) (Plugin, error)

// DefaultFactories 内置插件
func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		FlatRateTaxID: NewFlatRateTaxFromOptions,
		RemoteTaxID:   NewRemoteTaxFromOptions,
	}
}

// PluginManager 按配置顺序串联插件
type PluginManager struct {
	plugins []Plugin
}

// NewManager 创建插件管理器
func NewManager(plugins ...Plugin) *PluginManager {
	filtered := make([]Plugin, 0, len(plugins))
	for _, p := range plugins {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &PluginManager{plugins: filtered}
}

// NewManagerFromConfig 根据配置创建插件管理器，未启用的插件被跳过
func NewManagerFromConfig(cfgs []config.PluginConfig, factories map[string]Factory) (*PluginManager, error) {
	if factories == nil {
		factories = DefaultFactories()
	}
	plugins := make([]Plugin, 0, len(cfgs))
	for _, cfg := range cfgs {
		id := strings.TrimSpace(cfg.ID)
		if !cfg.Active {
			logger.Debugw("plugin_skip_inactive", "plugin", id)
			continue
		}
		factory, ok := factories[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown plugin %q", ErrConfigInvalid, id)
		}
		p, err := factory(cfg.Options)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", id, err)
		}
		plugins = append(plugins, p)
		logger.Infow("plugin_loaded", "plugin", id)
	}
	return NewManager(plugins...), nil
}

// Plugins 已加载插件ID
func (m *PluginManager) Plugins() []string {
	ids := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		ids = append(ids, p.ID())
	}
	return ids
}

// CalculateLineTotal 计算行合计（含税）
func (m *PluginManager) CalculateLineTotal(ctx context.Context, input LineTotalInput) (models.TaxedPrice, error) {
	result := models.UntaxedPrice(input.Total)
	for _, p := range m.plugins {
		next, err := p.CalculateLineTotal(ctx, input, result)
		if err != nil {
			return models.TaxedPrice{}, classify(p.ID(), hookLineTotal, err)
		}
		if err := ensureCurrency(next, input.Total.Currency); err != nil {
			return models.TaxedPrice{}, classify(p.ID(), hookLineTotal, Fatal(err))
		}
		result = next
	}
	return result, nil
}

// CalculateShippingPrice 计算运费（含税）
func (m *PluginManager) CalculateShippingPrice(ctx context.Context, input ShippingPriceInput) (models.TaxedPrice, error) {
	result := models.UntaxedPrice(input.Price)
	for _, p := range m.plugins {
		next, err := p.CalculateShippingPrice(ctx, input, result)
		if err != nil {
			return models.TaxedPrice{}, classify(p.ID(), hookShippingPrice, err)
		}
		if err := ensureCurrency(next, input.Price.Currency); err != nil {
			return models.TaxedPrice{}, classify(p.ID(), hookShippingPrice, Fatal(err))
		}
		result = next
	}
	return result, nil
}

func ensureCurrency(price models.TaxedPrice, currency string) error {
	if price.Net.Currency != currency || price.Gross.Currency != currency {
		return fmt.Errorf("%w: plugin returned %s/%s, expected %s", models.ErrCurrencyMismatch, price.Net.Currency, price.Gross.Currency, currency)
	}
	return nil
}
