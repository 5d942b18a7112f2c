package service

import (
	"context"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/logger"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/plugin"
)

// PricedLine 单行在各计算步骤中的金额
type PricedLine struct {
	Snapshot        LineSnapshot
	UnitPrice       models.Price // 促销后单价
	Sale            *DiscountInfo
	Total           models.Price // 促销后、优惠码前的行合计
	VoucherDiscount models.Price
	TaxedTotal      models.TaxedPrice
}

// PriceLines 对每行应用促销，不调用任何外部钩子
func PriceLines(lines []LineSnapshot, discounts []DiscountInfo) []PricedLine {
	priced := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		unit, sale := DiscountedUnitPrice(line, discounts)
		total := unit.Mul(line.Quantity)
		priced = append(priced, PricedLine{
			Snapshot:        line,
			UnitPrice:       unit,
			Sale:            sale,
			Total:           total,
			VoucherDiscount: models.ZeroPrice(total.Currency),
			TaxedTotal:      models.UntaxedPrice(total),
		})
	}
	return priced
}

// PricingInput 一次计算的全部输入
type PricingInput struct {
	Checkout  *models.Checkout
	Lines     []LineSnapshot
	Discounts []DiscountInfo
	Voucher   *models.Voucher
	GiftCards []models.GiftCard
	Settings  CheckoutSettings
}

// CheckoutPricing 计算结果
type CheckoutPricing struct {
	Lines                []PricedLine
	ShippingRequired     bool
	UndiscountedSubtotal models.Price
	Subtotal             models.TaxedPrice
	Discount             models.Price
	DiscountName         string
	ShippingBasis        models.Price // 配送方式订单金额门槛使用的金额
	Shipping             models.TaxedPrice
	ShippingMethod       *ShippingMethodOption
	TotalBeforeGiftCards models.TaxedPrice
	GiftCardOffset       models.Price
	GiftCards            []GiftCardSummary
	Total                models.TaxedPrice
	VoucherErrors        CheckoutErrors
	VoucherRemoved       bool
	ShippingCleared      bool
}

// CheckoutCalculator 按固定顺序计算结算单金额
type CheckoutCalculator struct {
	plugins  plugin.Manager
	vouchers *VoucherEngine
	shipping *ShippingService
	now      func() time.Time
}

// NewCheckoutCalculator 创建金额计算器
func NewCheckoutCalculator(plugins plugin.Manager, vouchers *VoucherEngine, shipping *ShippingService) *CheckoutCalculator {
	return &CheckoutCalculator{plugins: plugins, vouchers: vouchers, shipping: shipping, now: time.Now}
}

// Compute 计算结算单金额。失效的优惠码与配送方式会在 Checkout 上就地清除（仅内存），由调用方决定是否持久化
func (c *CheckoutCalculator) Compute(ctx context.Context, in PricingInput) (*CheckoutPricing, error) {
	checkout := in.Checkout
	currency := checkout.Currency
	now := c.now()
	result := &CheckoutPricing{
		ShippingRequired:     IsShippingRequired(in.Lines),
		UndiscountedSubtotal: models.ZeroPrice(currency),
		Subtotal:             models.ZeroTaxedPrice(currency),
		Discount:             models.ZeroPrice(currency),
		Shipping:             models.ZeroTaxedPrice(currency),
		ShippingBasis:        models.ZeroPrice(currency),
		GiftCardOffset:       models.ZeroPrice(currency),
	}

	// 1. 行单价应用促销
	result.Lines = PriceLines(in.Lines, in.Discounts)
	for _, line := range in.Lines {
		result.UndiscountedSubtotal = result.UndiscountedSubtotal.Add(line.UndiscountedTotal())
	}

	// 2-3. 小计与优惠码折扣
	voucher := in.Voucher
	if checkout.HasVoucher() {
		errs, err := c.vouchers.Validate(voucher, VoucherCheck{
			Checkout:         checkout,
			Lines:            result.Lines,
			Settings:         in.Settings,
			ShippingRequired: result.ShippingRequired,
			Now:              now,
		})
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			logger.Infow("checkout_voucher_removed_invalid",
				"token", checkout.Token,
				"voucher_code", *checkout.VoucherCode,
				"code", errs[0].Code,
			)
			checkout.ClearVoucher()
			result.VoucherErrors = errs
			result.VoucherRemoved = true
			voucher = nil
		}
	} else {
		voucher = nil
	}
	var listing *models.VoucherChannelListing
	if voucher != nil {
		listing = voucher.ListingFor(checkout.Channel)
		result.DiscountName = voucher.Name
		if result.DiscountName == "" {
			result.DiscountName = voucher.Code
		}
		discount, indexes := ComputeMerchandiseDiscount(voucher, listing, result.Lines, currency)
		shares := DistributeVoucherDiscount(result.Lines, indexes, discount)
		for i := range result.Lines {
			result.Lines[i].VoucherDiscount = shares[i]
		}
		result.Discount = discount
	}
	taxAddress := checkout.ShippingAddress
	if !result.ShippingRequired {
		taxAddress = checkout.BillingAddress
	}
	for i := range result.Lines {
		line := &result.Lines[i]
		taxed, err := c.plugins.CalculateLineTotal(ctx, plugin.LineTotalInput{
			CheckoutToken: checkout.Token,
			Channel:       checkout.Channel,
			LineID:        line.Snapshot.LineID,
			VariantID:     line.Snapshot.VariantID,
			ProductID:     line.Snapshot.ProductID,
			ChargeTaxes:   line.Snapshot.ChargeTaxes,
			Quantity:      line.Snapshot.Quantity,
			Total:         line.Total.SubFloor(line.VoucherDiscount),
			Address:       taxAddress,
		})
		if err != nil {
			return nil, err
		}
		line.TaxedTotal = taxed
		result.Subtotal = result.Subtotal.Add(taxed)
	}

	// 4. 运费：先按优惠码与礼品卡之后的商品金额重新校验配送方式
	merchandiseOffset := TotalOffset(in.GiftCards, result.Subtotal.Gross, now)
	result.ShippingBasis = result.Subtotal.Gross.SubFloor(merchandiseOffset)
	selected, cleared, err := c.shipping.Revalidate(ctx, checkout, result.ShippingRequired, result.ShippingBasis)
	if err != nil {
		return nil, err
	}
	result.ShippingCleared = cleared
	result.ShippingMethod = selected
	if selected != nil {
		input := plugin.ShippingPriceInput{
			CheckoutToken: checkout.Token,
			Channel:       checkout.Channel,
			MethodID:      selected.ID,
			MethodName:    selected.Name,
			Price:         selected.Price,
			Address:       checkout.ShippingAddress,
		}
		shipping, err := c.plugins.CalculateShippingPrice(ctx, input)
		if err != nil {
			return nil, err
		}
		if voucher != nil && voucher.Type == constants.VoucherTypeShipping {
			discount := ComputeShippingDiscount(voucher, listing, shipping.Gross)
			shipping = shipping.SubFloor(discount)
			result.Discount = discount
		}
		result.Shipping = shipping
	}

	// 5. 应付总额（礼品卡前）
	result.TotalBeforeGiftCards = result.Subtotal.Add(result.Shipping)

	// 6. 礼品卡抵扣
	result.GiftCardOffset = TotalOffset(in.GiftCards, result.TotalBeforeGiftCards.Gross, now)
	result.GiftCards = summarizeGiftCards(in.GiftCards, result.TotalBeforeGiftCards.Gross, now)
	result.Total = result.TotalBeforeGiftCards.SubFloor(result.GiftCardOffset)
	return result, nil
}
