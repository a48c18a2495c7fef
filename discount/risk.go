package discount

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/stockledger/product"
	"github.com/xraph/stockledger/types"
)

// DefaultRiskThreshold is the score at or above which a product is high risk.
const DefaultRiskThreshold = 60

// Risk score weights.
var (
	weightExpiry = decimal.RequireFromString("0.5")
	weightStock  = decimal.RequireFromString("0.3")
	weightPrice  = decimal.RequireFromString("0.2")
)

// Recommendation is the assessment of one high-risk product.
type Recommendation struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Category        string          `json:"category,omitempty"`
	CurrentStock    int64           `json:"current_stock"`
	DaysUntilExpiry int             `json:"days_until_expiry"`
	Status          Status          `json:"status"`
	RiskScore       decimal.Decimal `json:"risk_score"`
	SuggestedPct    decimal.Decimal `json:"suggested_discount_percent"`
	CurrentPrice    types.Money     `json:"current_price"`
	// DiscountedPrice is nil for expired products, which must not be sold.
	DiscountedPrice *types.Money `json:"discounted_price"`
}

// Report summarizes waste risk across a product set.
type Report struct {
	AsOf                time.Time        `json:"as_of"`
	TotalProducts       int              `json:"total_products"`
	HighRiskProducts    int              `json:"high_risk_products"`
	TotalInventoryValue types.Money      `json:"total_inventory_value"`
	AtRiskValue         types.Money      `json:"at_risk_value"`
	Recommendations     []Recommendation `json:"recommendations"`
}

// RiskScores returns a 0-100 waste-risk score per SKU. The score weighs
// nearness to expiry (50%), stock relative to the low-stock threshold (30%)
// and price (20%), each normalized against the maximum in the set.
func RiskScores(products []*product.Product, asOf time.Time) map[string]decimal.Decimal {
	type row struct {
		days  decimal.Decimal
		ratio decimal.Decimal
		price decimal.Decimal
	}
	rows := make(map[string]row, len(products))
	var maxDays, maxRatio, maxPrice decimal.Decimal
	for i, p := range products {
		r := row{
			days:  decimal.NewFromInt(int64(DaysUntil(p.ExpiryDate, asOf))),
			ratio: stockRatio(p),
			price: p.UnitPrice.Decimal(),
		}
		rows[p.SKU] = r
		if i == 0 || r.days.GreaterThan(maxDays) {
			maxDays = r.days
		}
		if r.ratio.GreaterThan(maxRatio) {
			maxRatio = r.ratio
		}
		if r.price.GreaterThan(maxPrice) {
			maxPrice = r.price
		}
	}

	scores := make(map[string]decimal.Decimal, len(rows))
	for sku, r := range rows {
		expiry := decimal.NewFromInt(1)
		if maxDays.IsPositive() {
			expiry = expiry.Sub(r.days.Div(maxDays))
		}
		score := weightExpiry.Mul(expiry).
			Add(weightStock.Mul(normalize(r.ratio, maxRatio))).
			Add(weightPrice.Mul(normalize(r.price, maxPrice)))
		scores[sku] = score.Mul(hundred).Round(2)
	}
	return scores
}

// Assess scores every product and recommends discounts for those at or
// above threshold, highest risk first.
func (p *Policy) Assess(products []*product.Product, asOf time.Time, threshold decimal.Decimal) *Report {
	scores := RiskScores(products, asOf)
	rep := &Report{AsOf: asOf, TotalProducts: len(products), Recommendations: []Recommendation{}}

	for _, prod := range products {
		rep.TotalInventoryValue = rep.TotalInventoryValue.Add(prod.UnitPrice)
		score := scores[prod.SKU]
		if score.LessThan(threshold) {
			continue
		}

		eval := p.Evaluate(prod, asOf)
		rec := Recommendation{
			SKU:             prod.SKU,
			Name:            prod.Name,
			Category:        prod.Category,
			CurrentStock:    prod.Stock,
			DaysUntilExpiry: eval.DaysUntilExpiry,
			Status:          eval.Status,
			RiskScore:       score,
			SuggestedPct:    eval.SuggestedPct.Round(2),
			CurrentPrice:    prod.UnitPrice,
		}
		if eval.Sellable() {
			price := ApplyPercent(prod.UnitPrice, eval.SuggestedPct)
			rec.DiscountedPrice = &price
		}
		rep.HighRiskProducts++
		rep.AtRiskValue = rep.AtRiskValue.Add(prod.UnitPrice)
		rep.Recommendations = append(rep.Recommendations, rec)
	}

	sort.SliceStable(rep.Recommendations, func(i, j int) bool {
		a, b := rep.Recommendations[i], rep.Recommendations[j]
		if !a.RiskScore.Equal(b.RiskScore) {
			return a.RiskScore.GreaterThan(b.RiskScore)
		}
		return a.SKU < b.SKU
	})
	return rep
}

func stockRatio(p *product.Product) decimal.Decimal {
	if p.LowStockThreshold <= 0 {
		return decimal.NewFromInt(p.Stock)
	}
	return decimal.NewFromInt(p.Stock).Div(decimal.NewFromInt(p.LowStockThreshold))
}

func normalize(v, maxV decimal.Decimal) decimal.Decimal {
	if !maxV.IsPositive() {
		return decimal.Zero
	}
	return v.Div(maxV)
}
