// Package pricing computes order totals and discounts for the cart,
// subscription-builder and package-builder flows. Every function is a pure
// computation over the caller-supplied selection; nothing here touches the
// database, so the engine is recomputed fresh on every input change.
package pricing

import (
	"github.com/shopspring/decimal"
)

// MinimumOrderMeals is the hard checkout floor for the cart/subscription flow.
const MinimumOrderMeals = 5

// MaxPackageQuantity caps both the per-package quantity and the aggregate
// package quantity in one order. Larger orders go through the bulk-orders
// contact flow, never through programmatic checkout.
const MaxPackageQuantity = 20

// MealSelection is one individual meal line in the cart.
type MealSelection struct {
	MealID   string          `json:"meal_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// PackageSelection is one package line. MealCount is the package's fixed
// meal count; for build-your-own packages it is zero and the count derives
// from the package's own per-meal breakdown.
type PackageSelection struct {
	PackageID string          `json:"package_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	MealCount int             `json:"meal_count"`
	Breakdown map[string]int  `json:"breakdown,omitempty"`
}

// Selection is the full order input: individual meals plus packages.
type Selection struct {
	Meals    []MealSelection    `json:"meals"`
	Packages []PackageSelection `json:"packages"`
}

// volumeTier maps a minimum meal count to a percentage discount.
// Highest qualifying tier wins; tiers are not cumulative.
type volumeTier struct {
	MinMeals int
	Rate     decimal.Decimal
}

var volumeTiers = []volumeTier{
	{100, decimal.NewFromFloat(0.22)},
	{13, decimal.NewFromFloat(0.15)},
	{8, decimal.NewFromFloat(0.10)},
	{5, decimal.NewFromFloat(0.05)},
}

// builderTier maps a minimum item count to a flat-dollar discount for the
// build-your-own package flow. Distinct mechanism from the volume tiers.
type builderTier struct {
	MinItems int
	Amount   decimal.Decimal
}

var builderTiers = []builderTier{
	{22, decimal.NewFromInt(300)},
	{16, decimal.NewFromInt(198)},
	{12, decimal.NewFromInt(96)},
	{8, decimal.NewFromInt(33)},
}

var memberRate = decimal.NewFromFloat(0.10)

// clampQuantity defends against negative quantities coming off UI forms.
func clampQuantity(q int) int {
	if q < 0 {
		return 0
	}
	return q
}

// clampPrice defends against negative prices; pricing feeds render paths
// and must always produce a well-formed non-negative result.
func clampPrice(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	return p
}

// MealsPerPackage returns how many meal units one unit of the package
// contributes: the fixed meal count when positive, otherwise the sum of the
// package's own per-meal breakdown.
func MealsPerPackage(pkg PackageSelection) int {
	if pkg.MealCount > 0 {
		return pkg.MealCount
	}
	total := 0
	for _, qty := range pkg.Breakdown {
		total += clampQuantity(qty)
	}
	return total
}

// TotalMealUnits sums meal units across individual meals and packages.
func TotalMealUnits(sel Selection) int {
	total := 0
	for _, m := range sel.Meals {
		total += clampQuantity(m.Quantity)
	}
	for _, p := range sel.Packages {
		total += clampQuantity(p.Quantity) * MealsPerPackage(p)
	}
	return total
}

// Subtotal sums price x quantity over every line, before any discount.
func Subtotal(sel Selection) decimal.Decimal {
	subtotal := decimal.Zero
	for _, m := range sel.Meals {
		subtotal = subtotal.Add(clampPrice(m.Price).Mul(decimal.NewFromInt(int64(clampQuantity(m.Quantity)))))
	}
	for _, p := range sel.Packages {
		subtotal = subtotal.Add(clampPrice(p.Price).Mul(decimal.NewFromInt(int64(clampQuantity(p.Quantity)))))
	}
	return subtotal
}

// VolumeDiscountRate returns the percentage discount for a meal count.
func VolumeDiscountRate(totalMeals int) decimal.Decimal {
	for _, tier := range volumeTiers {
		if totalMeals >= tier.MinMeals {
			return tier.Rate
		}
	}
	return decimal.Zero
}

// MemberDiscountRate is the flat membership discount, applied after the
// volume discount.
func MemberDiscountRate() decimal.Decimal {
	return memberRate
}

// FinalPrice applies the volume discount and then, for members, the
// membership discount on the already-discounted amount. The order is
// load-bearing: member pricing shown in the app is computed this way.
func FinalPrice(subtotal decimal.Decimal, totalMeals int, member bool) decimal.Decimal {
	price := clampPrice(subtotal).Mul(decimal.NewFromInt(1).Sub(VolumeDiscountRate(totalMeals)))
	if member {
		price = price.Mul(decimal.NewFromInt(1).Sub(memberRate))
	}
	return price
}

// PackageBuilderDiscount returns the flat-dollar discount for the
// build-your-own package flow, keyed by absolute item count.
func PackageBuilderDiscount(totalItems int) decimal.Decimal {
	for _, tier := range builderTiers {
		if totalItems >= tier.MinItems {
			return tier.Amount
		}
	}
	return decimal.Zero
}

// PackageBuilderTotal applies the flat discount, flooring at zero.
func PackageBuilderTotal(subtotal decimal.Decimal, totalItems int) decimal.Decimal {
	total := clampPrice(subtotal).Sub(PackageBuilderDiscount(totalItems))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// CheckoutGate reports whether the cart meets the minimum meal count and,
// when it does not, how many meals short it is. Preset-package and
// package-builder purchases are exempt; a package satisfies the minimum by
// construction.
func CheckoutGate(totalMeals int) (allowed bool, shortfall int) {
	if totalMeals >= MinimumOrderMeals {
		return true, 0
	}
	return false, MinimumOrderMeals - totalMeals
}

// ClampPackageQuantity clamps one package line's quantity to [0, 20].
func ClampPackageQuantity(q int) int {
	q = clampQuantity(q)
	if q > MaxPackageQuantity {
		return MaxPackageQuantity
	}
	return q
}

// AggregatePackageQuantity sums package quantities across the order.
func AggregatePackageQuantity(sel Selection) int {
	total := 0
	for _, p := range sel.Packages {
		total += clampQuantity(p.Quantity)
	}
	return total
}

// BuilderItem is one meal line inside a build-your-own package.
type BuilderItem struct {
	MealID   string          `json:"meal_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// BuilderQuote is the pricing result for the package-builder flow.
type BuilderQuote struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
}

// ComputeBuilderQuote prices a build-your-own package: flat-dollar discount
// by item count, floored at zero. The builder is exempt from the cart's
// meal minimum.
func ComputeBuilderQuote(items []BuilderItem) BuilderQuote {
	totalItems := 0
	subtotal := decimal.Zero
	for _, item := range items {
		qty := clampQuantity(item.Quantity)
		totalItems += qty
		subtotal = subtotal.Add(clampPrice(item.Price).Mul(decimal.NewFromInt(int64(qty))))
	}

	return BuilderQuote{
		TotalItems: totalItems,
		Subtotal:   subtotal,
		Discount:   PackageBuilderDiscount(totalItems),
		Total:      PackageBuilderTotal(subtotal, totalItems),
	}
}

// Quote is the full pricing result handed to the UI.
type Quote struct {
	TotalMeals          int             `json:"total_meals"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	VolumeDiscountRate  decimal.Decimal `json:"volume_discount_rate"`
	MemberDiscountRate  decimal.Decimal `json:"member_discount_rate"`
	Total               decimal.Decimal `json:"total"`
	CheckoutAllowed     bool            `json:"checkout_allowed"`
	MealShortfall       int             `json:"meal_shortfall"`
	BulkContactRequired bool            `json:"bulk_contact_required"`
}

// ComputeQuote evaluates the whole engine for one selection. Checkout is
// refused both below the meal minimum and above the aggregate package cap;
// the latter routes the customer to the bulk-orders contact flow.
func ComputeQuote(sel Selection, member bool) Quote {
	totalMeals := TotalMealUnits(sel)
	subtotal := Subtotal(sel)
	allowed, shortfall := CheckoutGate(totalMeals)

	quote := Quote{
		TotalMeals:         totalMeals,
		Subtotal:           subtotal,
		VolumeDiscountRate: VolumeDiscountRate(totalMeals),
		Total:              FinalPrice(subtotal, totalMeals, member),
		CheckoutAllowed:    allowed,
		MealShortfall:      shortfall,
	}
	if member {
		quote.MemberDiscountRate = memberRate
	}
	if AggregatePackageQuantity(sel) > MaxPackageQuantity {
		quote.BulkContactRequired = true
		quote.CheckoutAllowed = false
	}
	return quote
}
