package service

import (
	"time"

	"github.com/checkout-next/internal/models"
)

// PricedLineResult 结算行金额展示
type PricedLineResult struct {
	LineID                uint              `json:"line_id"`
	VariantID             uint              `json:"variant_id"`
	ProductName           string            `json:"product_name"`
	VariantName           string            `json:"variant_name"`
	SKU                   string            `json:"sku"`
	Quantity              int               `json:"quantity"`
	RequiresShipping      bool              `json:"requires_shipping"`
	UndiscountedUnitPrice models.Price      `json:"undiscounted_unit_price"`
	UnitPrice             models.Price      `json:"unit_price"`
	SaleName              string            `json:"sale_name,omitempty"`
	VoucherDiscount       models.Price      `json:"voucher_discount"`
	Total                 models.TaxedPrice `json:"total"`
}

// PricedCheckoutResult 一次计算后的结算单视图，不持久化
type PricedCheckoutResult struct {
	Token                string                `json:"token"`
	Channel              string                `json:"channel"`
	Currency             string                `json:"currency"`
	Email                string                `json:"email"`
	Lines                []PricedLineResult    `json:"lines"`
	IsShippingRequired   bool                  `json:"is_shipping_required"`
	ShippingAddress      *models.Address       `json:"shipping_address"`
	BillingAddress       *models.Address       `json:"billing_address"`
	DeliveryMethod       *ShippingMethodOption `json:"delivery_method"`
	UndiscountedSubtotal models.Price          `json:"undiscounted_subtotal"`
	Subtotal             models.TaxedPrice     `json:"subtotal"`
	ShippingPrice        models.TaxedPrice     `json:"shipping_price"`
	VoucherCode          *string               `json:"voucher_code"`
	Discount             models.Price          `json:"discount"`
	DiscountName         string                `json:"discount_name,omitempty"`
	GiftCards            []GiftCardSummary     `json:"gift_cards"`
	GiftCardOffset       models.Price          `json:"gift_card_offset"`
	Total                models.TaxedPrice     `json:"total"`
	LastChange           time.Time             `json:"last_change"`
	Errors               CheckoutErrors        `json:"errors"`
}

func buildPricedResult(checkout *models.Checkout, pricing *CheckoutPricing, warnings CheckoutErrors) *PricedCheckoutResult {
	result := &PricedCheckoutResult{
		Token:                checkout.Token,
		Channel:              checkout.Channel,
		Currency:             checkout.Currency,
		Email:                checkout.Email,
		Lines:                make([]PricedLineResult, 0, len(pricing.Lines)),
		IsShippingRequired:   pricing.ShippingRequired,
		ShippingAddress:      checkout.ShippingAddress,
		BillingAddress:       checkout.BillingAddress,
		DeliveryMethod:       pricing.ShippingMethod,
		UndiscountedSubtotal: pricing.UndiscountedSubtotal,
		Subtotal:             pricing.Subtotal,
		ShippingPrice:        pricing.Shipping,
		VoucherCode:          checkout.VoucherCode,
		Discount:             pricing.Discount,
		DiscountName:         pricing.DiscountName,
		GiftCards:            pricing.GiftCards,
		GiftCardOffset:       pricing.GiftCardOffset,
		Total:                pricing.Total,
		LastChange:           checkout.LastChange,
		Errors:               CheckoutErrors{},
	}
	for _, line := range pricing.Lines {
		item := PricedLineResult{
			LineID:                line.Snapshot.LineID,
			VariantID:             line.Snapshot.VariantID,
			ProductName:           line.Snapshot.ProductName,
			VariantName:           line.Snapshot.VariantName,
			SKU:                   line.Snapshot.SKU,
			Quantity:              line.Snapshot.Quantity,
			RequiresShipping:      line.Snapshot.RequiresShipping,
			UndiscountedUnitPrice: line.Snapshot.UnitPrice,
			UnitPrice:             line.UnitPrice,
			VoucherDiscount:       line.VoucherDiscount,
			Total:                 line.TaxedTotal,
		}
		if line.Sale != nil {
			item.SaleName = line.Sale.Name
		}
		result.Lines = append(result.Lines, item)
	}
	if result.GiftCards == nil {
		result.GiftCards = []GiftCardSummary{}
	}
	result.Errors = append(result.Errors, warnings...)
	result.Errors = append(result.Errors, pricing.VoucherErrors...)
	return result
}
