package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrCurrencyMismatch 币种不一致（编程错误，直接 panic）
var ErrCurrencyMismatch = errors.New("currency mismatch")

var hundred = decimal.NewFromInt(100)

// Price 带币种的不可变金额
type Price struct {
	Amount   Money  `json:"amount"`
	Currency string `json:"currency"`
}

// NewPrice 创建金额
func NewPrice(amount decimal.Decimal, currency string) Price {
	return Price{Amount: NewMoneyFromDecimal(amount), Currency: NormalizeCurrency(currency)}
}

// PriceOf 由 Money 创建金额
func PriceOf(amount Money, currency string) Price {
	return NewPrice(amount.Decimal, currency)
}

// ZeroPrice 指定币种的零金额
func ZeroPrice(currency string) Price {
	return NewPrice(decimal.Zero, currency)
}

// NormalizeCurrency 统一币种格式
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func (p Price) mustMatch(other Price) {
	if p.Currency != other.Currency {
		panic(fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, p.Currency, other.Currency))
	}
}

// Add 相加
func (p Price) Add(other Price) Price {
	p.mustMatch(other)
	return NewPrice(p.Amount.Decimal.Add(other.Amount.Decimal), p.Currency)
}

// Sub 相减，结果可能为负
func (p Price) Sub(other Price) Price {
	p.mustMatch(other)
	return NewPrice(p.Amount.Decimal.Sub(other.Amount.Decimal), p.Currency)
}

// SubFloor 相减并在零处截断
func (p Price) SubFloor(other Price) Price {
	return p.Sub(other).FloorZero()
}

// Mul 乘以数量
func (p Price) Mul(quantity int) Price {
	return NewPrice(p.Amount.Decimal.Mul(decimal.NewFromInt(int64(quantity))), p.Currency)
}

// Percentage 按百分比取值（10 表示 10%），四舍五入到分
func (p Price) Percentage(pct decimal.Decimal) Price {
	return NewPrice(p.Amount.Decimal.Mul(pct).Div(hundred), p.Currency)
}

// Min 取较小值
func (p Price) Min(other Price) Price {
	p.mustMatch(other)
	if other.Amount.Decimal.LessThan(p.Amount.Decimal) {
		return other
	}
	return p
}

// FloorZero 负数归零
func (p Price) FloorZero() Price {
	if p.Amount.Decimal.IsNegative() {
		return ZeroPrice(p.Currency)
	}
	return p
}

// IsZero 是否为零
func (p Price) IsZero() bool {
	return p.Amount.Decimal.IsZero()
}

// IsPositive 是否大于零
func (p Price) IsPositive() bool {
	return p.Amount.Decimal.IsPositive()
}

// LessThan 比较大小
func (p Price) LessThan(other Price) bool {
	p.mustMatch(other)
	return p.Amount.Decimal.LessThan(other.Amount.Decimal)
}

// GreaterThan 比较大小
func (p Price) GreaterThan(other Price) bool {
	p.mustMatch(other)
	return p.Amount.Decimal.GreaterThan(other.Amount.Decimal)
}

// Equal 金额与币种都相等
func (p Price) Equal(other Price) bool {
	return p.Currency == other.Currency && p.Amount.Decimal.Equal(other.Amount.Decimal)
}

// String 形如 "10.00 USD"
func (p Price) String() string {
	return p.Amount.String() + " " + p.Currency
}

// TaxedPrice 含税/未税金额对
type TaxedPrice struct {
	Net   Price `json:"net"`
	Gross Price `json:"gross"`
}

// NewTaxedPrice 创建含税金额
func NewTaxedPrice(net, gross Price) TaxedPrice {
	net.mustMatch(gross)
	return TaxedPrice{Net: net, Gross: gross}
}

// UntaxedPrice 未税金额（net == gross）
func UntaxedPrice(p Price) TaxedPrice {
	return TaxedPrice{Net: p, Gross: p}
}

// ZeroTaxedPrice 指定币种的零值
func ZeroTaxedPrice(currency string) TaxedPrice {
	return UntaxedPrice(ZeroPrice(currency))
}

// Currency 币种
func (t TaxedPrice) Currency() string {
	return t.Gross.Currency
}

// Tax 税额
func (t TaxedPrice) Tax() Price {
	return t.Gross.Sub(t.Net)
}

// Add 相加
func (t TaxedPrice) Add(other TaxedPrice) TaxedPrice {
	return TaxedPrice{Net: t.Net.Add(other.Net), Gross: t.Gross.Add(other.Gross)}
}

// SubFloor 从 net 与 gross 同时扣减并在零处截断
func (t TaxedPrice) SubFloor(amount Price) TaxedPrice {
	return TaxedPrice{Net: t.Net.SubFloor(amount), Gross: t.Gross.SubFloor(amount)}
}

// MarshalJSON 额外输出 tax 字段
func (t TaxedPrice) MarshalJSON() ([]byte, error) {
	type taxedPriceJSON struct {
		Net   Price `json:"net"`
		Gross Price `json:"gross"`
		Tax   Price `json:"tax"`
	}
	return json.Marshal(taxedPriceJSON{Net: t.Net, Gross: t.Gross, Tax: t.Tax()})
}
