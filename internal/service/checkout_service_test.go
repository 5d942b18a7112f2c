package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/checkout-next/internal/constants"
	"github.com/checkout-next/internal/models"
	"github.com/checkout-next/internal/plugin"
	"github.com/checkout-next/internal/repository"
)

func strPtr(value string) *string {
	return &value
}

func TestCheckoutEntireOrderVoucherFloorsMerchandiseAtZero(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	variant := f.seedVariant(variantSeed{name: "Mug", price: "10.00", shipping: true})
	method := f.seedShippingMethod("US", "5.00", nil)
	f.seedVoucher(voucherSeed{code: "WHOLE30", value: "30.00"})

	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: variant.ID, Quantity: 3})
	f.shipTo(created.Token, "US")
	f.selectMethod(created.Token, method.ID)

	result, err := f.svc.AddPromoCode(ctx, created.Token, "whole30", Requester{})
	if err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}
	assertPrice(t, "discount", result.Discount, "30.00")
	assertPrice(t, "subtotal", result.Subtotal.Gross, "0.00")
	assertPrice(t, "shipping", result.ShippingPrice.Gross, "5.00")
	assertPrice(t, "total", result.Total.Gross, "5.00")
	if result.VoucherCode == nil || *result.VoucherCode != "WHOLE30" {
		t.Fatalf("expected voucher WHOLE30 attached, got %v", result.VoucherCode)
	}

	stored := f.reload(created.Token)
	if !stored.HasVoucher() || !stored.DiscountAmount.Decimal.Equal(money("30").Decimal) {
		t.Fatalf("expected persisted voucher and discount, got %+v", stored)
	}
}

func TestCheckoutSpecificProductVoucherAppliesAfterSale(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	shirt := f.seedVariant(variantSeed{name: "Shirt", price: "20.00"})
	ebook := f.seedVariant(variantSeed{name: "Ebook", price: "10.00"})
	f.seedSale("Summer", constants.DiscountValueTypePercentage, "25", shirt.ProductID)
	f.seedVoucher(voucherSeed{
		code:      "SHIRT10",
		kind:      constants.VoucherTypeSpecificProduct,
		valueType: constants.DiscountValueTypePercentage,
		value:     "10",
		configure: func(v *models.Voucher) {
			v.ProductIDs = models.UintArray{shirt.ProductID}
		},
	})

	created := f.createCheckout("buyer@example.com",
		CheckoutLineInput{VariantID: shirt.ID, Quantity: 2},
		CheckoutLineInput{VariantID: ebook.ID, Quantity: 1},
	)
	assertPrice(t, "sale subtotal", created.Subtotal.Gross, "40.00")

	result, err := f.svc.AddPromoCode(ctx, created.Token, "SHIRT10", Requester{})
	if err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}
	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(result.Lines))
	}
	line := result.Lines[0]
	assertPrice(t, "sale unit price", line.UnitPrice, "15.00")
	if line.SaleName != "Summer" {
		t.Fatalf("expected sale name Summer, got %q", line.SaleName)
	}
	// 10% of the post-sale 30.00, not of the undiscounted 40.00
	assertPrice(t, "voucher discount", result.Discount, "3.00")
	assertPrice(t, "line voucher share", line.VoucherDiscount, "3.00")
	assertPrice(t, "ebook share", result.Lines[1].VoucherDiscount, "0.00")
	assertPrice(t, "total", result.Total.Gross, "37.00")
	if result.IsShippingRequired {
		t.Fatalf("digital checkout should not require shipping")
	}
}

func TestCheckoutDigitalOnlyShipping(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	ebook := f.seedVariant(variantSeed{name: "Ebook", price: "12.00"})
	f.seedShippingMethod("US", "5.00", nil)
	created := f.createCheckout("", CheckoutLineInput{VariantID: ebook.ID, Quantity: 1})
	if created.IsShippingRequired {
		t.Fatalf("expected shipping not required")
	}

	f.advance(time.Minute)
	result := f.shipTo(created.Token, "us")
	assertPrice(t, "total", result.Total.Gross, "12.00")
	if result.ShippingAddress == nil || result.ShippingAddress.Country != "US" {
		t.Fatalf("expected stored shipping address, got %+v", result.ShippingAddress)
	}
	if !result.LastChange.Equal(created.LastChange) {
		t.Fatalf("digital address change should not touch last change")
	}
	stored := f.reload(created.Token)
	if stored.ShippingAddressID == nil {
		t.Fatalf("expected shipping address persisted")
	}

	_, err := f.svc.UpdateDeliveryMethod(ctx, created.Token, "1")
	assertCode(t, err, constants.ErrorCodeShippingNotRequired)
	_, err = f.svc.UpdateDeliveryMethod(ctx, created.Token, "app:courier")
	assertCode(t, err, constants.ErrorCodeShippingNotRequired)
	if f.reload(created.Token).ShippingMethodID != nil {
		t.Fatalf("delivery method must not be stored for digital checkout")
	}
}

func TestCheckoutShippingClearedWhenVoucherDropsBelowMinimum(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	lamp := f.seedVariant(variantSeed{name: "Lamp", price: "50.00", shipping: true})
	method := f.seedShippingMethod("US", "7.00", strPtr("40.00"))
	f.seedVoucher(voucherSeed{code: "TWENTY", value: "20.00"})

	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: lamp.ID, Quantity: 1})
	f.shipTo(created.Token, "US")
	selected := f.selectMethod(created.Token, method.ID)
	if selected.DeliveryMethod == nil {
		t.Fatalf("expected delivery method selected")
	}
	assertPrice(t, "total with shipping", selected.Total.Gross, "57.00")

	result, err := f.svc.AddPromoCode(ctx, created.Token, "TWENTY", Requester{})
	if err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}
	if result.DeliveryMethod != nil {
		t.Fatalf("expected delivery method cleared, got %+v", result.DeliveryMethod)
	}
	assertPrice(t, "shipping", result.ShippingPrice.Gross, "0.00")
	assertPrice(t, "total", result.Total.Gross, "30.00")
	if f.reload(created.Token).ShippingMethodID != nil {
		t.Fatalf("expected cleared delivery method persisted")
	}

	methods, err := f.svc.ShippingMethods(ctx, created.Token)
	if err != nil {
		t.Fatalf("list shipping methods failed: %v", err)
	}
	if len(methods) != 0 {
		t.Fatalf("expected no eligible methods below minimum, got %d", len(methods))
	}
}

func TestCheckoutShippingClearedWhenGiftCardDropsBelowMinimum(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	lamp := f.seedVariant(variantSeed{name: "Lamp", price: "50.00", shipping: true})
	method := f.seedShippingMethod("US", "7.00", strPtr("40.00"))
	f.seedGiftCard("GIFT-15", "15.00")

	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: lamp.ID, Quantity: 1})
	f.shipTo(created.Token, "US")
	f.selectMethod(created.Token, method.ID)

	result, err := f.svc.AddPromoCode(ctx, created.Token, "gift-15", Requester{})
	if err != nil {
		t.Fatalf("add gift card failed: %v", err)
	}
	if result.DeliveryMethod != nil {
		t.Fatalf("expected delivery method cleared after gift card")
	}
	assertPrice(t, "gift card offset", result.GiftCardOffset, "15.00")
	assertPrice(t, "total", result.Total.Gross, "35.00")
}

func TestCheckoutUpdateDeliveryMethodRejectsIneligible(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	lamp := f.seedVariant(variantSeed{name: "Lamp", price: "10.00", shipping: true})
	expensive := f.seedShippingMethod("US", "3.00", strPtr("100.00"))
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: lamp.ID, Quantity: 1})

	_, err := f.svc.UpdateDeliveryMethod(ctx, created.Token, "1")
	assertCode(t, err, constants.ErrorCodeShippingAddressNotSet)

	f.shipTo(created.Token, "US")
	_, err = f.svc.UpdateDeliveryMethod(ctx, created.Token, "abc")
	assertCode(t, err, constants.ErrorCodeGraphQLError)
	_, err = f.svc.UpdateDeliveryMethod(ctx, created.Token, "")
	assertCode(t, err, constants.ErrorCodeGraphQLError)

	_, err = f.svc.UpdateDeliveryMethod(ctx, created.Token, "9999")
	assertCode(t, err, constants.ErrorCodeShippingMethodNotApplicable)
	_, err = f.svc.UpdateDeliveryMethod(ctx, created.Token, strconv.FormatUint(uint64(expensive.ID), 10))
	assertCode(t, err, constants.ErrorCodeShippingMethodNotApplicable)
	if f.reload(created.Token).ShippingMethodID != nil {
		t.Fatalf("rejected delivery method must not be persisted")
	}
}

func TestCheckoutRemovePromoCodeIsIdempotent(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	voucher := f.seedVoucher(voucherSeed{code: "FIVE", value: "5.00"})
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})

	f.advance(time.Minute)
	added, err := f.svc.AddPromoCode(ctx, created.Token, "FIVE", Requester{})
	if err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}
	if !added.LastChange.After(created.LastChange) {
		t.Fatalf("expected last change to advance after applying voucher")
	}

	f.advance(time.Minute)
	for _, code := range []string{"UNKNOWN", "five-not-attached"} {
		result, err := f.svc.RemovePromoCode(ctx, created.Token, strPtr(code), nil)
		if err != nil {
			t.Fatalf("remove of non-attached code must succeed: %v", err)
		}
		if !result.LastChange.Equal(added.LastChange) {
			t.Fatalf("remove of non-attached code changed last change")
		}
	}
	result, err := f.svc.RemovePromoCode(ctx, created.Token, nil, strPtr("gift_card:4242"))
	if err != nil {
		t.Fatalf("remove of non-attached gift card id must succeed: %v", err)
	}
	if !result.LastChange.Equal(added.LastChange) || result.VoucherCode == nil {
		t.Fatalf("remove of non-attached id changed state")
	}

	removed, err := f.svc.RemovePromoCode(ctx, created.Token, nil, strPtr(PromoIDOf(PromoCodeVoucher, voucher.ID)))
	if err != nil {
		t.Fatalf("remove voucher by id failed: %v", err)
	}
	if removed.VoucherCode != nil {
		t.Fatalf("expected voucher detached")
	}
	assertPrice(t, "total", removed.Total.Gross, "10.00")

	again, err := f.svc.RemovePromoCode(ctx, created.Token, strPtr("FIVE"), nil)
	if err != nil {
		t.Fatalf("second remove must succeed: %v", err)
	}
	if !again.LastChange.Equal(removed.LastChange) {
		t.Fatalf("second remove changed last change")
	}
}

func TestCheckoutRemovePromoCodeInputShape(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	created := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})

	cases := []struct {
		name    string
		code    *string
		promoID *string
	}{
		{name: "neither", code: nil, promoID: nil},
		{name: "both", code: strPtr("FIVE"), promoID: strPtr("voucher:1")},
		{name: "unknown kind", promoID: strPtr("coupon:1")},
		{name: "bad id", promoID: strPtr("voucher:abc")},
		{name: "zero id", promoID: strPtr("gift_card:0")},
		{name: "missing separator", promoID: strPtr("voucher")},
	}
	for _, tc := range cases {
		_, err := f.svc.RemovePromoCode(ctx, created.Token, tc.code, tc.promoID)
		list := assertCode(t, err, constants.ErrorCodeGraphQLError)
		if !list.IsInputError() {
			t.Fatalf("%s: expected input error", tc.name)
		}
	}
}

func TestCheckoutKeepsAtMostOneVoucher(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	f.seedVoucher(voucherSeed{code: "FIRST", value: "1.00"})
	f.seedVoucher(voucherSeed{code: "BIGSPEND", value: "5.00", minSpent: strPtr("100.00")})
	f.seedVoucher(voucherSeed{code: "SECOND", value: "2.00"})
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 2})

	if _, err := f.svc.AddPromoCode(ctx, created.Token, "FIRST", Requester{}); err != nil {
		t.Fatalf("add FIRST failed: %v", err)
	}
	before := f.reload(created.Token)

	f.advance(time.Minute)
	_, err := f.svc.AddPromoCode(ctx, created.Token, "BIGSPEND", Requester{})
	assertCode(t, err, constants.ErrorCodeVoucherNotApplicable)
	after := f.reload(created.Token)
	if after.VoucherCode == nil || *after.VoucherCode != "FIRST" {
		t.Fatalf("failed application must keep FIRST, got %v", after.VoucherCode)
	}
	if !after.LastChange.Equal(before.LastChange) {
		t.Fatalf("failed application must not touch last change")
	}

	result, err := f.svc.AddPromoCode(ctx, created.Token, "SECOND", Requester{})
	if err != nil {
		t.Fatalf("add SECOND failed: %v", err)
	}
	if result.VoucherCode == nil || *result.VoucherCode != "SECOND" {
		t.Fatalf("expected SECOND attached, got %v", result.VoucherCode)
	}
	assertPrice(t, "discount", result.Discount, "2.00")
	assertPrice(t, "total", result.Total.Gross, "18.00")

	_, err = f.svc.AddPromoCode(ctx, created.Token, "NO-SUCH-CODE", Requester{})
	assertCode(t, err, constants.ErrorCodeInvalid)
}

func TestCheckoutVoucherValidationErrors(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	other := f.seedVariant(variantSeed{name: "Plate", price: "10.00"})
	f.seedVoucher(voucherSeed{code: "ONCE", value: "1.00", configure: func(v *models.Voucher) {
		v.ApplyOncePerCustomer = true
	}})
	f.seedVoucher(voucherSeed{code: "EXPIRED", value: "1.00", configure: func(v *models.Voucher) {
		end := f.clock.Add(-time.Hour)
		v.EndDate = &end
	}})
	f.seedVoucher(voucherSeed{code: "USEDUP", value: "1.00", configure: func(v *models.Voucher) {
		limit := 1
		v.UsageLimit = &limit
		v.Used = 1
	}})
	f.seedVoucher(voucherSeed{code: "PLATES", kind: constants.VoucherTypeSpecificProduct, value: "1.00", configure: func(v *models.Voucher) {
		v.ProductIDs = models.UintArray{other.ProductID}
	}})
	f.seedVoucher(voucherSeed{code: "BULK", value: "1.00", configure: func(v *models.Voucher) {
		v.MinCheckoutItemsQuantity = 5
	}})
	f.seedVoucher(voucherSeed{code: "FREESHIP", kind: constants.VoucherTypeShipping, valueType: constants.DiscountValueTypePercentage, value: "100"})

	created := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})
	cases := map[string]string{
		"ONCE":     constants.ErrorCodeEmailNotSet,
		"EXPIRED":  constants.ErrorCodeInvalid,
		"USEDUP":   constants.ErrorCodeVoucherNotApplicable,
		"PLATES":   constants.ErrorCodeVoucherNotApplicable,
		"BULK":     constants.ErrorCodeVoucherNotApplicable,
		"FREESHIP": constants.ErrorCodeVoucherNotApplicable,
	}
	for code, want := range cases {
		_, err := f.svc.AddPromoCode(ctx, created.Token, code, Requester{})
		list := assertCode(t, err, want)
		if list[0].Field != constants.FieldPromoCode {
			t.Fatalf("%s: expected field promoCode, got %s", code, list[0].Field)
		}
	}
	if f.reload(created.Token).HasVoucher() {
		t.Fatalf("no voucher may be attached after failures")
	}
}

func TestCheckoutShippingVoucherDiscountsShipping(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	lamp := f.seedVariant(variantSeed{name: "Lamp", price: "20.00", shipping: true})
	method := f.seedShippingMethod("DE", "8.00", nil)
	f.seedVoucher(voucherSeed{code: "HALFSHIP", kind: constants.VoucherTypeShipping, valueType: constants.DiscountValueTypePercentage, value: "50", configure: func(v *models.Voucher) {
		v.Countries = models.StringArray{"DE"}
	}})
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: lamp.ID, Quantity: 1})
	f.shipTo(created.Token, "DE")
	f.selectMethod(created.Token, method.ID)

	result, err := f.svc.AddPromoCode(ctx, created.Token, "HALFSHIP", Requester{})
	if err != nil {
		t.Fatalf("add shipping voucher failed: %v", err)
	}
	assertPrice(t, "shipping", result.ShippingPrice.Gross, "4.00")
	assertPrice(t, "discount", result.Discount, "4.00")
	assertPrice(t, "subtotal", result.Subtotal.Gross, "20.00")
	assertPrice(t, "total", result.Total.Gross, "24.00")
}

func TestCheckoutVoucherRemovedWhenLinesNoLongerQualify(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	f.seedVoucher(voucherSeed{code: "MIN30", value: "5.00", minSpent: strPtr("30.00")})
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 3})
	if _, err := f.svc.AddPromoCode(ctx, created.Token, "MIN30", Requester{}); err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}

	result, err := f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{{VariantID: mug.ID, Quantity: 1}})
	if err != nil {
		t.Fatalf("update lines failed: %v", err)
	}
	if result.VoucherCode != nil {
		t.Fatalf("expected voucher removed, still attached %s", *result.VoucherCode)
	}
	if !result.Errors.HasCode(constants.ErrorCodeVoucherNotApplicable) {
		t.Fatalf("expected voucher removal reported, got %v", result.Errors)
	}
	assertPrice(t, "total", result.Total.Gross, "10.00")
	stored := f.reload(created.Token)
	if stored.HasVoucher() || !stored.DiscountAmount.Decimal.IsZero() {
		t.Fatalf("expected voucher removal persisted, got %+v", stored)
	}
}

func TestCheckoutUpdateLines(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	plate := f.seedVariant(variantSeed{name: "Plate", price: "4.00", stock: 3})
	created := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})

	result, err := f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{
		{VariantID: mug.ID, Quantity: 2},
		{VariantID: plate.ID, Quantity: 2},
	})
	if err != nil {
		t.Fatalf("update lines failed: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[1].LineID == 0 {
		t.Fatalf("expected two persisted lines, got %+v", result.Lines)
	}
	assertPrice(t, "total", result.Total.Gross, "28.00")

	_, err = f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{{VariantID: plate.ID, Quantity: 5}})
	assertCode(t, err, constants.ErrorCodeInsufficientStock)
	_, err = f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{{VariantID: mug.ID, Quantity: 51}})
	assertCode(t, err, constants.ErrorCodeQuantityGreaterThanLimit)
	_, err = f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{{VariantID: mug.ID, Quantity: -1}})
	assertCode(t, err, constants.ErrorCodeZeroQuantity)
	_, err = f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{{VariantID: 99999, Quantity: 1}})
	list := assertCode(t, err, constants.ErrorCodeUnavailableVariantInChannel)
	if len(list[0].Variants) != 1 || list[0].Variants[0] != 99999 {
		t.Fatalf("expected offending variant reported, got %+v", list[0])
	}

	removed, err := f.svc.UpdateLines(ctx, created.Token, []CheckoutLineInput{{VariantID: mug.ID, Quantity: 0}})
	if err != nil {
		t.Fatalf("remove line failed: %v", err)
	}
	if len(removed.Lines) != 1 || removed.Lines[0].VariantID != plate.ID {
		t.Fatalf("expected only plate left, got %+v", removed.Lines)
	}
	if len(f.reload(created.Token).Lines) != 1 {
		t.Fatalf("expected line deletion persisted")
	}
}

func TestCheckoutUnavailableLineIsWarningOnRead(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	plate := f.seedVariant(variantSeed{name: "Plate", price: "4.00"})
	created := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1}, CheckoutLineInput{VariantID: plate.ID, Quantity: 1})

	if err := f.db.Model(&models.ProductChannelListing{}).
		Where("product_id = ?", plate.ProductID).
		Update("is_published", false).Error; err != nil {
		t.Fatalf("unpublish failed: %v", err)
	}
	result, err := f.svc.Get(ctx, created.Token)
	if err != nil {
		t.Fatalf("get checkout failed: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected unpublished line excluded, got %d lines", len(result.Lines))
	}
	if !result.Errors.HasCode(constants.ErrorCodeProductNotPublished) {
		t.Fatalf("expected warning for unpublished line, got %v", result.Errors)
	}
	assertPrice(t, "total", result.Total.Gross, "10.00")
	if len(f.reload(created.Token).Lines) != 2 {
		t.Fatalf("unavailable line rows must be kept")
	}
}

func TestCheckoutMutationDeletesUnavailableLines(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	plate := f.seedVariant(variantSeed{name: "Plate", price: "4.00"})
	f.seedGiftCard("CARD-DROP", "5.00")
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1}, CheckoutLineInput{VariantID: plate.ID, Quantity: 1})

	if err := f.db.Model(&models.ProductChannelListing{}).
		Where("product_id = ?", plate.ProductID).
		Update("is_published", false).Error; err != nil {
		t.Fatalf("unpublish failed: %v", err)
	}
	f.advance(time.Minute)
	result, err := f.svc.AddPromoCode(ctx, created.Token, "CARD-DROP", Requester{})
	if err != nil {
		t.Fatalf("attach gift card failed: %v", err)
	}
	if len(result.Lines) != 1 || !result.Errors.HasCode(constants.ErrorCodeProductNotPublished) {
		t.Fatalf("expected one line and a warning, got %d lines / %v", len(result.Lines), result.Errors)
	}
	assertPrice(t, "total", result.Total.Gross, "5.00")

	if !result.LastChange.After(created.LastChange) {
		t.Fatalf("expected last change to advance")
	}
	reloaded := f.reload(created.Token)
	if len(reloaded.Lines) != 1 || reloaded.Lines[0].VariantID != mug.ID {
		t.Fatalf("expected only the available line to be persisted, got %+v", reloaded.Lines)
	}
}

func TestCheckoutGiftCardMonotonicity(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "30.00"})
	first := f.seedGiftCard("CARD-A", "10.00")
	f.seedGiftCard("CARD-B", "50.00")
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})

	one, err := f.svc.AddPromoCode(ctx, created.Token, "card-a", Requester{})
	if err != nil {
		t.Fatalf("attach CARD-A failed: %v", err)
	}
	assertPrice(t, "total after A", one.Total.Gross, "20.00")
	two, err := f.svc.AddPromoCode(ctx, created.Token, "CARD-B", Requester{})
	if err != nil {
		t.Fatalf("attach CARD-B failed: %v", err)
	}
	assertPrice(t, "total after B", two.Total.Gross, "0.00")
	if len(two.GiftCards) != 2 {
		t.Fatalf("expected two gift cards, got %d", len(two.GiftCards))
	}
	assertPrice(t, "card A offset", two.GiftCards[0].Offset, "10.00")
	assertPrice(t, "card B offset", two.GiftCards[1].Offset, "20.00")
	assertPrice(t, "card B balance", two.GiftCards[1].Balance, "50.00")

	again, err := f.svc.AddPromoCode(ctx, created.Token, "CARD-A", Requester{})
	if err != nil {
		t.Fatalf("re-attach must be a no-op: %v", err)
	}
	if len(again.GiftCards) != 2 || !again.LastChange.Equal(two.LastChange) {
		t.Fatalf("re-attach changed state")
	}

	if again.GiftCards[0].PromoID != PromoIDOf(PromoCodeGiftCard, first.ID) {
		t.Fatalf("unexpected promo id %q", again.GiftCards[0].PromoID)
	}
	removed, err := f.svc.RemovePromoCode(ctx, created.Token, nil, strPtr(again.GiftCards[0].PromoID))
	if err != nil {
		t.Fatalf("detach CARD-A failed: %v", err)
	}
	assertPrice(t, "total after removing A", removed.Total.Gross, "0.00")
	if len(f.reload(created.Token).GiftCards) != 1 {
		t.Fatalf("expected detach persisted")
	}
}

func TestCheckoutGiftCardAttachValidation(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "30.00"})
	empty := f.seedGiftCard("EMPTY", "0.00")
	bound := f.seedGiftCard("BOUND", "10.00")
	if err := f.db.Model(bound).Update("used_by_email", "owner@example.com").Error; err != nil {
		t.Fatalf("bind gift card failed: %v", err)
	}
	inactive := f.seedGiftCard("INACTIVE", "10.00")
	if err := f.db.Model(inactive).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate gift card failed: %v", err)
	}
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})

	for _, code := range []string{empty.Code, "BOUND", "INACTIVE"} {
		_, err := f.svc.AddPromoCode(ctx, created.Token, code, Requester{})
		assertCode(t, err, constants.ErrorCodeInvalid)
	}
	result, err := f.svc.AddPromoCode(ctx, created.Token, "BOUND", Requester{Email: "Owner@Example.com"})
	if err != nil {
		t.Fatalf("owner should attach bound card: %v", err)
	}
	assertPrice(t, "total", result.Total.Gross, "20.00")
}

func TestCheckoutGiftCardReattachIsNoOp(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "30.00"})
	card := f.seedGiftCard("CARD-X", "25.00")
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})
	attached, err := f.svc.AddPromoCode(ctx, created.Token, "CARD-X", Requester{})
	if err != nil {
		t.Fatalf("attach gift card failed: %v", err)
	}
	assertPrice(t, "total after attach", attached.Total.Gross, "5.00")

	if err := f.db.Model(card).Updates(map[string]interface{}{"current_balance": "0.00", "is_active": false}).Error; err != nil {
		t.Fatalf("drain gift card failed: %v", err)
	}
	f.advance(time.Minute)
	result, err := f.svc.AddPromoCode(ctx, created.Token, "card-x", Requester{})
	if err != nil {
		t.Fatalf("re-attaching an attached card should succeed, got %v", err)
	}
	if len(result.GiftCards) != 1 || result.GiftCards[0].Usable {
		t.Fatalf("expected the drained card to stay attached once, got %+v", result.GiftCards)
	}
	assertPrice(t, "total", result.Total.Gross, "30.00")
	if !result.LastChange.Equal(attached.LastChange) {
		t.Fatalf("re-attach must not advance last change")
	}
	if cards := f.reload(created.Token).GiftCards; len(cards) != 1 {
		t.Fatalf("expected one attached card row, got %d", len(cards))
	}
}

func TestCheckoutHookCallCounts(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00", shipping: true})
	plate := f.seedVariant(variantSeed{name: "Plate", price: "4.00", shipping: true})
	method := f.seedShippingMethod("US", "5.00", nil)
	f.seedVoucher(voucherSeed{code: "ONE", value: "1.00"})
	created := f.createCheckout("buyer@example.com",
		CheckoutLineInput{VariantID: mug.ID, Quantity: 1},
		CheckoutLineInput{VariantID: plate.ID, Quantity: 1},
	)
	f.shipTo(created.Token, "US")
	f.selectMethod(created.Token, method.ID)

	f.plugins.reset()
	if _, err := f.svc.Get(ctx, created.Token); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	lineCalls, shippingCalls := f.plugins.calls()
	if lineCalls != 2 || shippingCalls != 1 {
		t.Fatalf("get: expected 2 line and 1 shipping calls, got %d and %d", lineCalls, shippingCalls)
	}

	f.plugins.reset()
	if _, err := f.svc.AddPromoCode(ctx, created.Token, "ONE", Requester{}); err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}
	lineCalls, shippingCalls = f.plugins.calls()
	if lineCalls != 2 || shippingCalls != 1 {
		t.Fatalf("add promo: expected 2 line and 1 shipping calls, got %d and %d", lineCalls, shippingCalls)
	}
}

func TestCheckoutUpstreamFailureIsNotPersisted(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	f.seedVoucher(voucherSeed{code: "ONE", value: "1.00"})
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})

	f.plugins.lineErr = plugin.Retryable(errors.New("tax service down"))
	_, err := f.svc.AddPromoCode(ctx, created.Token, "ONE", Requester{})
	if err == nil {
		t.Fatalf("expected upstream error")
	}
	upstream, ok := plugin.AsUpstream(err)
	if !ok || !upstream.Retryable {
		t.Fatalf("expected retryable upstream error, got %v", err)
	}
	if f.reload(created.Token).HasVoucher() {
		t.Fatalf("voucher must not be persisted when pricing fails")
	}
}

func TestCheckoutCreateAndEmailValidation(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})

	_, err := f.svc.Create(ctx, CreateCheckoutInput{Currency: "USD"})
	assertCode(t, err, constants.ErrorCodeGraphQLError)
	_, err = f.svc.Create(ctx, CreateCheckoutInput{Channel: testChannel, Lines: []CheckoutLineInput{{VariantID: mug.ID}}})
	assertCode(t, err, constants.ErrorCodeZeroQuantity)
	_, err = f.svc.Create(ctx, CreateCheckoutInput{Channel: testChannel, Email: "not-an-email"})
	assertCode(t, err, constants.ErrorCodeGraphQLError)
	_, err = f.svc.Create(ctx, CreateCheckoutInput{Channel: testChannel, Currency: "EUR", Lines: []CheckoutLineInput{{VariantID: mug.ID, Quantity: 1}}})
	assertCode(t, err, constants.ErrorCodeUnavailableVariantInChannel)

	created := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})
	if created.Currency != "USD" || created.Token == "" {
		t.Fatalf("unexpected checkout: %+v", created)
	}
	f.advance(time.Minute)
	updated, err := f.svc.UpdateEmail(ctx, created.Token, "Buyer@Example.com")
	if err != nil {
		t.Fatalf("update email failed: %v", err)
	}
	if updated.Email != "buyer@example.com" {
		t.Fatalf("expected normalized email, got %s", updated.Email)
	}
	if !updated.LastChange.Equal(created.LastChange) {
		t.Fatalf("email change must not touch last change")
	}
	_, err = f.svc.UpdateEmail(ctx, created.Token, "broken@")
	assertCode(t, err, constants.ErrorCodeGraphQLError)

	_, err = f.svc.Get(ctx, "missing-token")
	list := assertCode(t, err, constants.ErrorCodeNotFound)
	if list[0].Field != constants.FieldToken || !IsNotFound(err) {
		t.Fatalf("expected not found on token, got %+v", list)
	}
}

func TestCheckoutReadDoesNotPersistAutoClears(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	voucher := f.seedVoucher(voucherSeed{code: "SOON", value: "1.00"})
	created := f.createCheckout("buyer@example.com", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})
	if _, err := f.svc.AddPromoCode(ctx, created.Token, "SOON", Requester{}); err != nil {
		t.Fatalf("add promo code failed: %v", err)
	}
	end := f.clock.Add(time.Hour)
	if err := f.db.Model(voucher).Update("end_date", end).Error; err != nil {
		t.Fatalf("update voucher failed: %v", err)
	}
	f.advance(2 * time.Hour)

	result, err := f.svc.Get(ctx, created.Token)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if result.VoucherCode != nil || !result.Errors.HasCode(constants.ErrorCodeInvalid) {
		t.Fatalf("expected expired voucher dropped from view, got %v / %v", result.VoucherCode, result.Errors)
	}
	if !f.reload(created.Token).HasVoucher() {
		t.Fatalf("read must not persist voucher removal")
	}
}

func TestCheckoutDeleteExpired(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	mug := f.seedVariant(variantSeed{name: "Mug", price: "10.00"})
	stale := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})
	f.advance(23 * time.Hour)
	fresh := f.createCheckout("", CheckoutLineInput{VariantID: mug.ID, Quantity: 1})
	f.advance(2 * time.Hour)

	deleted, err := f.svc.DeleteExpiredCheckouts(ctx, 10)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted checkout, got %d", deleted)
	}
	repo := repository.NewCheckoutRepository(f.db)
	if gone, _ := repo.GetByToken(stale.Token); gone != nil {
		t.Fatalf("stale checkout should be deleted")
	}
	if kept, _ := repo.GetByToken(fresh.Token); kept == nil {
		t.Fatalf("fresh checkout should be kept")
	}
}

func TestDeactivateExpiredGiftCards(t *testing.T) {
	f := setupCheckoutServiceTest(t)
	ctx := context.Background()
	card := f.seedGiftCard("OLD", "10.00")
	past := f.clock.Add(-time.Hour)
	if err := f.db.Model(card).Update("expiry_date", past).Error; err != nil {
		t.Fatalf("expire gift card failed: %v", err)
	}
	f.seedGiftCard("NEW", "10.00")

	count, err := f.svc.DeactivateExpiredGiftCards(ctx, 10)
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 card deactivated, got %d", count)
	}
	events, err := repository.NewGiftCardRepository(f.db).ListEvents(card.ID)
	if err != nil || len(events) != 1 || events[0].Type != constants.GiftCardEventDeactivated {
		t.Fatalf("expected deactivated event, got %+v (%v)", events, err)
	}
}
