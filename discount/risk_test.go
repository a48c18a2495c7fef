package discount

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

func riskFixture() []*product.Product {
	return []*product.Product{
		{SKU: "MILK", Name: "Milk", UnitPrice: types.Units(100), Stock: 40, LowStockThreshold: 10, ExpiryDate: asOf.AddDate(0, 0, 2)},
		{SKU: "RICE", Name: "Rice", UnitPrice: types.Units(50), Stock: 10, LowStockThreshold: 10, ExpiryDate: asOf.AddDate(0, 0, 100)},
		{SKU: "BREAD", Name: "Bread", UnitPrice: types.Units(40), Stock: 20, LowStockThreshold: 10, ExpiryDate: asOf.AddDate(0, 0, -1)},
	}
}

func TestRiskScores(t *testing.T) {
	scores := RiskScores(riskFixture(), asOf)

	// MILK: 0.5*(1-2/100) + 0.3*(4/4) + 0.2*(100/100) = 0.99
	if got := scores["MILK"]; !got.Equal(decimal.NewFromInt(99)) {
		t.Errorf("MILK: got %s, want 99", got)
	}
	// RICE: 0.5*0 + 0.3*(1/4) + 0.2*(50/100) = 0.175
	if got := scores["RICE"]; !got.Equal(decimal.RequireFromString("17.5")) {
		t.Errorf("RICE: got %s, want 17.5", got)
	}
	// BREAD: 0.5*(1+1/100) + 0.3*(2/4) + 0.2*(40/100) = 0.735
	if got := scores["BREAD"]; !got.Equal(decimal.RequireFromString("73.5")) {
		t.Errorf("BREAD: got %s, want 73.5", got)
	}
}

func TestRiskScoresDegenerateInputs(t *testing.T) {
	products := []*product.Product{
		{SKU: "Z", UnitPrice: types.Zero(), Stock: 0, ExpiryDate: asOf},
	}
	scores := RiskScores(products, asOf)
	if got := scores["Z"]; !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Z: got %s, want 50", got)
	}
	if len(RiskScores(nil, asOf)) != 0 {
		t.Error("expected no scores for empty input")
	}
}

func TestAssess(t *testing.T) {
	rep := Default().Assess(riskFixture(), asOf, decimal.NewFromInt(DefaultRiskThreshold))

	if rep.TotalProducts != 3 {
		t.Errorf("TotalProducts: got %d, want 3", rep.TotalProducts)
	}
	if rep.HighRiskProducts != 2 {
		t.Fatalf("HighRiskProducts: got %d, want 2", rep.HighRiskProducts)
	}
	if !rep.TotalInventoryValue.Equal(types.Units(190)) {
		t.Errorf("TotalInventoryValue: got %v, want 190.00", rep.TotalInventoryValue)
	}
	if !rep.AtRiskValue.Equal(types.Units(140)) {
		t.Errorf("AtRiskValue: got %v, want 140.00", rep.AtRiskValue)
	}

	first, second := rep.Recommendations[0], rep.Recommendations[1]
	if first.SKU != "MILK" || second.SKU != "BREAD" {
		t.Fatalf("order: got %s, %s", first.SKU, second.SKU)
	}
	if first.Status != StatusExpiring || first.DiscountedPrice == nil {
		t.Errorf("MILK: got status %s, price %v", first.Status, first.DiscountedPrice)
	}
	// (30-2)/30*50 = 46.67% off 100.00
	if first.DiscountedPrice != nil && first.DiscountedPrice.Amount != 5333 {
		t.Errorf("MILK discounted: got %v, want 53.33", first.DiscountedPrice)
	}
	if second.Status != StatusExpired || second.DiscountedPrice != nil {
		t.Errorf("BREAD: expired product must have no price, got %v", second.DiscountedPrice)
	}
}
