package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/checkout-next/internal/models"

	"github.com/shopspring/decimal"
)

func usd(amount string) models.Price {
	return models.NewPrice(decimal.RequireFromString(amount), "USD")
}

func TestFlatRateTaxAddsTaxOnNet(t *testing.T) {
	p, err := NewFlatRateTaxFromOptions(map[string]interface{}{"rate": "10"})
	if err != nil {
		t.Fatalf("create plugin failed: %v", err)
	}
	got, err := p.CalculateLineTotal(context.Background(), LineTotalInput{ChargeTaxes: true, Total: usd("20.00")}, models.UntaxedPrice(usd("20.00")))
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if !got.Net.Equal(usd("20.00")) || !got.Gross.Equal(usd("22.00")) {
		t.Fatalf("unexpected taxed price %s / %s", got.Net, got.Gross)
	}
}

func TestFlatRateTaxCountryOverride(t *testing.T) {
	p, err := NewFlatRateTaxFromOptions(map[string]interface{}{
		"rate":          "10",
		"country_rates": "de:19, FR:20",
	})
	if err != nil {
		t.Fatalf("create plugin failed: %v", err)
	}
	input := LineTotalInput{ChargeTaxes: true, Total: usd("100.00"), Address: &models.Address{Country: "DE"}}
	got, err := p.CalculateLineTotal(context.Background(), input, models.UntaxedPrice(input.Total))
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if !got.Gross.Equal(usd("119.00")) {
		t.Fatalf("want DE gross 119.00 got %s", got.Gross)
	}
}

func TestFlatRateTaxPricesEnteredWithTax(t *testing.T) {
	p, err := NewFlatRateTaxFromOptions(map[string]interface{}{
		"rate":                    "25",
		"prices_entered_with_tax": true,
	})
	if err != nil {
		t.Fatalf("create plugin failed: %v", err)
	}
	got, err := p.CalculateLineTotal(context.Background(), LineTotalInput{ChargeTaxes: true, Total: usd("125.00")}, models.UntaxedPrice(usd("125.00")))
	if err != nil {
		t.Fatalf("calculate failed: %v", err)
	}
	if !got.Net.Equal(usd("100.00")) || !got.Gross.Equal(usd("125.00")) {
		t.Fatalf("unexpected taxed price %s / %s", got.Net, got.Gross)
	}
}

func TestFlatRateTaxSkipsUntaxedProductsAndShipping(t *testing.T) {
	p, err := NewFlatRateTaxFromOptions(map[string]interface{}{
		"rate":             "10",
		"include_shipping": "false",
	})
	if err != nil {
		t.Fatalf("create plugin failed: %v", err)
	}
	previous := models.UntaxedPrice(usd("5.00"))
	line, _ := p.CalculateLineTotal(context.Background(), LineTotalInput{ChargeTaxes: false, Total: usd("5.00")}, previous)
	if !line.Gross.Equal(usd("5.00")) {
		t.Fatalf("untaxed product should keep gross, got %s", line.Gross)
	}
	shipping, _ := p.CalculateShippingPrice(context.Background(), ShippingPriceInput{Price: usd("5.00")}, previous)
	if !shipping.Gross.Equal(usd("5.00")) {
		t.Fatalf("shipping should be untaxed, got %s", shipping.Gross)
	}
}

func TestFlatRateTaxRejectsInvalidRates(t *testing.T) {
	cases := []map[string]interface{}{
		{"rate": "abc"},
		{"rate": "101"},
		{"rate": "-1"},
		{"rate": "10", "country_rates": "GERMANY:19"},
		{"rate": "10", "country_rates": "DE"},
	}
	for _, raw := range cases {
		if _, err := NewFlatRateTaxFromOptions(raw); !errors.Is(err, ErrConfigInvalid) {
			t.Fatalf("options %v want ErrConfigInvalid got %v", raw, err)
		}
	}
}
