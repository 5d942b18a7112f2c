package plugin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"

	"github.com/shopspring/decimal"
)

// FlatRateTaxID 固定税率插件标识
const FlatRateTaxID = constants.PluginFlatRateTax

var flatRateTaxSpecs = []OptionSpec{
	{Name: "rate", Kind: KindString, Required: true, Validate: validateRateOption},
	{Name: "country_rates", Kind: KindString, Default: "", Validate: validateCountryRatesOption},
	{Name: "prices_entered_with_tax", Kind: KindBoolean, Default: false},
	{Name: "include_shipping", Kind: KindBoolean, Default: true},
}

// FlatRateTax 按国家或默认税率计算税额
type FlatRateTax struct {
	defaultRate decimal.Decimal
	countryRates          map[string]decimal.Decimal
	pricesEnteredWithTax bool
	includeShipping      bool
}

// NewFlatRateTaxFromOptions 由原始配置创建
func NewFlatRateTaxFromOptions(raw map[string]interface{}) (Plugin, error) {
	options, err := ParseOptions(flatRateTaxSpecs, raw)
	if err != nil {
		return nil, err
	}
	return NewFlatRateTax(options)
}

// NewFlatRateTax 由已校验配置创建
func NewFlatRateTax(options Options) (*FlatRateTax, error) {
	rate, err := parseRate(options.String("rate"))
	if err != nil {
		return nil, fmt.Errorf("%w: rate: %v", ErrConfigInvalid, err)
	}
	countryRates, err := parseCountryRates(options.String("country_rates"))
	if err != nil {
		return nil, fmt.Errorf("%w: country_rates: %v", ErrConfigInvalid, err)
	}
	return &FlatRateTax{
		defaultRate:          rate,
		countryRates:         countryRates,
		pricesEnteredWithTax: options.Bool("prices_entered_with_tax"),
		includeShipping:      options.Bool("include_shipping"),
	}, nil
}

// ID 插件标识
func (p *FlatRateTax) ID() string {
	return FlatRateTaxID
}

// CalculateLineTotal 计算行税额
func (p *FlatRateTax) CalculateLineTotal(_ context.Context, input LineTotalInput, previous models.TaxedPrice) (models.TaxedPrice, error) {
	if !input.ChargeTaxes {
		return previous, nil
	}
	return p.apply(previous, p.rateFor(input.Address)), nil
}

// CalculateShippingPrice 计算运费税额
func (p *FlatRateTax) CalculateShippingPrice(_ context.Context, input ShippingPriceInput, previous models.TaxedPrice) (models.TaxedPrice, error) {
	if !p.includeShipping {
		return previous, nil
	}
	return p.apply(previous, p.rateFor(input.Address)), nil
}

func (p *FlatRateTax) rateFor(address *models.Address) decimal.Decimal {
	if rate, ok := p.countryRates[address.CountryCode()]; ok {
		return rate
	}
	return p.defaultRate
}

func (p *FlatRateTax) apply(previous models.TaxedPrice, rate decimal.Decimal) models.TaxedPrice {
	multiplier := decimal.NewFromInt(1).Add(rate.Div(decimal.NewFromInt(100)))
	currency := previous.Currency()
	if p.pricesEnteredWithTax {
		gross := previous.Gross
		net := models.NewPrice(gross.Amount.Decimal.Div(multiplier), currency)
		return models.NewTaxedPrice(net, gross)
	}
	net := previous.Net
	gross := models.NewPrice(net.Amount.Decimal.Mul(multiplier), currency)
	return models.NewTaxedPrice(net, gross)
}

func validateRateOption(option Option) error {
	value, _ := option.AsString()
	_, err := parseRate(value)
	return err
}

func validateCountryRatesOption(option Option) error {
	value, _ := option.AsString()
	_, err := parseCountryRates(value)
	return err
}

func parseRate(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, errors.New("rate must be a decimal percentage")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, errors.New("rate must be between 0 and 100")
	}
	return rate, nil
}

// parseCountryRates 解析形如 "DE:19,FR:20" 的国家税率
func parseCountryRates(raw string) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return result, nil
	}
	for _, part := range strings.Split(raw, ",") {
		pair := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(pair) != 2 || len(strings.TrimSpace(pair[0])) != 2 {
			return nil, fmt.Errorf("invalid country rate %q", part)
		}
		rate, err := parseRate(pair[1])
		if err != nil {
			return nil, err
		}
		result[strings.ToUpper(strings.TrimSpace(pair[0]))] = rate
	}
	return result, nil
}
