package service

import (
	"strings"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/repository"
)

// VoucherCheck 校验优惠码所需的结算上下文
type VoucherCheck struct {
	Checkout         *models.Checkout
	Lines            []PricedLine
	Settings         CheckoutSettings
	ShippingRequired bool
	Now              time.Time
}

// VoucherEngine 优惠码校验与折扣计算
type VoucherEngine struct {
	repo repository.VoucherRepository
}

// NewVoucherEngine 创建优惠码引擎
func NewVoucherEngine(repo repository.VoucherRepository) *VoucherEngine {
	return &VoucherEngine{repo: repo}
}

// Validate 按顺序校验优惠码是否可用于当前结算单，返回第一个失败原因
func (e *VoucherEngine) Validate(voucher *models.Voucher, check VoucherCheck) (CheckoutErrors, error) {
	checkout := check.Checkout
	if voucher == nil || checkout == nil {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "promo code is invalid"), nil
	}
	listing := voucher.ListingFor(checkout.Channel)
	if listing == nil || !listing.IsActive || models.NormalizeCurrency(listing.Currency) != checkout.Currency {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "voucher is not available in this channel"), nil
	}
	if !voucher.IsActiveAt(check.Now) {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeInvalid, "voucher is expired or not started"), nil
	}

	email := strings.TrimSpace(checkout.Email)
	// 运费券不属于订单级优惠，不受 voucher_requires_email 约束
	orderScoped := voucher.Type != constants.VoucherTypeShipping
	if email == "" && ((check.Settings.VoucherRequiresEmail && orderScoped) || voucher.ApplyOncePerCustomer) {
		return domainError(constants.FieldPromoCode, constants.ErrorCodeEmailNotSet, "checkout email is required to use this voucher"), nil
	}
	if voucher.UsageLimit != nil && voucher.Used >= *voucher.UsageLimit {
		return notApplicable("voucher usage limit reached"), nil
	}
	if voucher.ApplyOncePerCustomer && e != nil && e.repo != nil {
		used, err := e.repo.HasCustomerUsed(voucher.ID, email)
		if err != nil {
			return nil, err
		}
		if used {
			return notApplicable("voucher has already been used by this customer"), nil
		}
	}

	scoped := check.Lines
	if voucher.Type == constants.VoucherTypeSpecificProduct {
		scoped = voucherScopedLines(voucher, check.Lines)
		if len(scoped) == 0 {
			return notApplicable("voucher is not applicable to any checkout line"), nil
		}
	}
	if voucher.MinCheckoutItemsQuantity > 0 && pricedQuantity(check.Lines) < voucher.MinCheckoutItemsQuantity {
		return notApplicable("checkout does not contain enough items for this voucher"), nil
	}
	if listing.MinSpent != nil {
		basis := minSpendBasis(scoped, checkout.Currency, check.Settings.DisplayGrossPrices)
		if basis.LessThan(models.PriceOf(*listing.MinSpent, checkout.Currency)) {
			return notApplicable("checkout subtotal is below the voucher minimum spend"), nil
		}
	}
	if voucher.Type == constants.VoucherTypeShipping {
		if !check.ShippingRequired {
			return notApplicable("checkout does not require shipping"), nil
		}
		if len(voucher.Countries) > 0 && !voucher.Countries.ContainsFold(checkout.ShippingAddress.CountryCode()) {
			return notApplicable("voucher is not applicable to the shipping country"), nil
		}
	}
	return nil, nil
}

// ComputeMerchandiseDiscount 计算整单或指定商品优惠码对商品部分的折扣，并返回受影响的行下标
func ComputeMerchandiseDiscount(voucher *models.Voucher, listing *models.VoucherChannelListing, lines []PricedLine, currency string) (models.Price, []int) {
	zero := models.ZeroPrice(currency)
	if voucher == nil || listing == nil {
		return zero, nil
	}
	switch voucher.Type {
	case constants.VoucherTypeEntireOrder:
		indexes := make([]int, 0, len(lines))
		base := zero
		for i := range lines {
			indexes = append(indexes, i)
			base = base.Add(lines[i].Total)
		}
		return applyVoucherValue(voucher.DiscountValueType, listing, base), indexes
	case constants.VoucherTypeSpecificProduct:
		indexes := make([]int, 0, len(lines))
		for i := range lines {
			if voucherMatchesLine(voucher, lines[i].Snapshot) {
				indexes = append(indexes, i)
			}
		}
		if len(indexes) == 0 {
			return zero, nil
		}
		if voucher.ApplyOncePerOrder {
			cheapest := indexes[0]
			for _, idx := range indexes[1:] {
				if lines[idx].UnitPrice.LessThan(lines[cheapest].UnitPrice) {
					cheapest = idx
				}
			}
			return applyVoucherValue(voucher.DiscountValueType, listing, lines[cheapest].UnitPrice), []int{cheapest}
		}
		base := zero
		for _, idx := range indexes {
			base = base.Add(lines[idx].Total)
		}
		return applyVoucherValue(voucher.DiscountValueType, listing, base), indexes
	default:
		return zero, nil
	}
}

// ComputeShippingDiscount 运费券折扣：以含税运费为基数并封顶
func ComputeShippingDiscount(voucher *models.Voucher, listing *models.VoucherChannelListing, shipping models.Price) models.Price {
	if voucher == nil || listing == nil || voucher.Type != constants.VoucherTypeShipping {
		return models.ZeroPrice(shipping.Currency)
	}
	return applyVoucherValue(voucher.DiscountValueType, listing, shipping)
}

// DistributeVoucherDiscount 按行金额比例分摊折扣，最后一行承担尾差，每行不超过行金额
func DistributeVoucherDiscount(lines []PricedLine, indexes []int, discount models.Price) []models.Price {
	shares := make([]models.Price, len(lines))
	for i := range lines {
		shares[i] = models.ZeroPrice(discount.Currency)
	}
	if len(indexes) == 0 || !discount.IsPositive() {
		return shares
	}
	base := models.ZeroPrice(discount.Currency)
	for _, idx := range indexes {
		base = base.Add(lines[idx].Total)
	}
	if !base.IsPositive() {
		return shares
	}
	remaining := discount
	for n, idx := range indexes {
		line := lines[idx].Total
		var share models.Price
		if n == len(indexes)-1 {
			share = remaining
		} else {
			ratio := line.Amount.Decimal.Div(base.Amount.Decimal)
			share = models.NewPrice(discount.Amount.Decimal.Mul(ratio), discount.Currency)
		}
		share = share.Min(line).FloorZero()
		share = share.Min(remaining)
		shares[idx] = share
		remaining = remaining.SubFloor(share)
	}
	for _, idx := range indexes {
		if !remaining.IsPositive() {
			break
		}
		extra := lines[idx].Total.Sub(shares[idx]).Min(remaining).FloorZero()
		shares[idx] = shares[idx].Add(extra)
		remaining = remaining.SubFloor(extra)
	}
	return shares
}

func applyVoucherValue(valueType string, listing *models.VoucherChannelListing, base models.Price) models.Price {
	if !base.IsPositive() {
		return models.ZeroPrice(base.Currency)
	}
	if valueType == constants.DiscountValueTypePercentage {
		return base.Percentage(listing.DiscountValue.Decimal).Min(base)
	}
	return models.PriceOf(listing.DiscountValue, base.Currency).FloorZero().Min(base)
}

func voucherMatchesLine(voucher *models.Voucher, line LineSnapshot) bool {
	if voucher.ProductIDs.Contains(line.ProductID) || voucher.VariantIDs.Contains(line.VariantID) {
		return true
	}
	if line.CategoryID != 0 && voucher.CategoryIDs.Contains(line.CategoryID) {
		return true
	}
	return voucher.CollectionIDs.Intersects(line.CollectionIDs)
}

func voucherScopedLines(voucher *models.Voucher, lines []PricedLine) []PricedLine {
	result := make([]PricedLine, 0, len(lines))
	for _, line := range lines {
		if voucherMatchesLine(voucher, line.Snapshot) {
			result = append(result, line)
		}
	}
	return result
}

// minSpendBasis 展示含税价时以促销后小计为准，否则以未打折小计为准
func minSpendBasis(lines []PricedLine, currency string, discounted bool) models.Price {
	total := models.ZeroPrice(currency)
	for _, line := range lines {
		if discounted {
			total = total.Add(line.Total)
		} else {
			total = total.Add(line.Snapshot.UndiscountedTotal())
		}
	}
	return total
}

func pricedQuantity(lines []PricedLine) int {
	total := 0
	for _, line := range lines {
		total += line.Snapshot.Quantity
	}
	return total
}

func notApplicable(message string) CheckoutErrors {
	return domainError(constants.FieldPromoCode, constants.ErrorCodeVoucherNotApplicable, message)
}
