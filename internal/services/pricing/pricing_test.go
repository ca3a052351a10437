package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestTotalMealUnits(t *testing.T) {
	sel := Selection{
		Meals: []MealSelection{
			{MealID: "lactation-congee", Quantity: 3, Price: d(18.5)},
			{MealID: "ginger-chicken", Quantity: 2, Price: d(21)},
		},
		Packages: []PackageSelection{
			{PackageID: "first-week", Quantity: 2, Price: d(240), MealCount: 14},
		},
	}

	assert.Equal(t, 3+2+2*14, TotalMealUnits(sel))
}

func TestTotalMealUnitsClampsNegativeQuantities(t *testing.T) {
	base := Selection{
		Meals: []MealSelection{{MealID: "congee", Quantity: 4, Price: d(18)}},
	}
	withNegative := Selection{
		Meals: []MealSelection{
			{MealID: "congee", Quantity: 4, Price: d(18)},
			{MealID: "soup", Quantity: -3, Price: d(12)},
		},
	}

	// A negative entry must behave exactly as if it were omitted.
	assert.Equal(t, TotalMealUnits(base), TotalMealUnits(withNegative))
	assert.GreaterOrEqual(t, TotalMealUnits(withNegative), 0)
}

func TestMealsPerPackageDerivedFromBreakdown(t *testing.T) {
	pkg := PackageSelection{
		PackageID: "build-your-own",
		Quantity:  1,
		Price:     d(199),
		Breakdown: map[string]int{"congee": 5, "broth": 4, "stir-fry": -1},
	}

	assert.Equal(t, 9, MealsPerPackage(pkg))
	assert.Equal(t, 9, TotalMealUnits(Selection{Packages: []PackageSelection{pkg}}))
}

func TestSubtotal(t *testing.T) {
	sel := Selection{
		Meals:    []MealSelection{{MealID: "congee", Quantity: 3, Price: d(18.5)}},
		Packages: []PackageSelection{{PackageID: "first-week", Quantity: 2, Price: d(240), MealCount: 14}},
	}

	assert.True(t, Subtotal(sel).Equal(d(3*18.5+2*240)), "got %s", Subtotal(sel))
}

func TestVolumeDiscountRateTiers(t *testing.T) {
	cases := []struct {
		meals int
		rate  float64
	}{
		{0, 0}, {4, 0},
		{5, 0.05}, {7, 0.05},
		{8, 0.10}, {12, 0.10},
		{13, 0.15}, {99, 0.15},
		{100, 0.22}, {1000, 0.22},
	}

	for _, tc := range cases {
		assert.True(t, VolumeDiscountRate(tc.meals).Equal(d(tc.rate)),
			"meals=%d expected %v got %s", tc.meals, tc.rate, VolumeDiscountRate(tc.meals))
	}
}

func TestVolumeDiscountRateMonotonic(t *testing.T) {
	prev := decimal.Zero
	for meals := 0; meals <= 120; meals++ {
		rate := VolumeDiscountRate(meals)
		assert.True(t, rate.GreaterThanOrEqual(prev), "rate dropped at %d meals", meals)
		prev = rate
	}
}

func TestFinalPriceMemberAppliedAfterVolume(t *testing.T) {
	subtotal := d(200)

	// Member discount multiplies the volume-discounted amount, it is never
	// added to the volume rate.
	expected := subtotal.Mul(d(1).Sub(VolumeDiscountRate(13))).Mul(d(0.90))
	assert.True(t, FinalPrice(subtotal, 13, true).Equal(expected))

	additive := subtotal.Mul(d(1).Sub(d(0.15 + 0.10)))
	assert.False(t, FinalPrice(subtotal, 13, true).Equal(additive))
}

func TestFinalPriceNonMember(t *testing.T) {
	assert.True(t, FinalPrice(d(100), 8, false).Equal(d(90)))
	assert.True(t, FinalPrice(d(100), 0, false).Equal(d(100)))
}

func TestPackageBuilderDiscountTiers(t *testing.T) {
	cases := []struct {
		items  int
		amount int64
	}{
		{7, 0},
		{8, 33}, {11, 33},
		{12, 96}, {15, 96},
		{16, 198}, {21, 198},
		{22, 300}, {50, 300},
	}

	for _, tc := range cases {
		assert.True(t, PackageBuilderDiscount(tc.items).Equal(decimal.NewFromInt(tc.amount)),
			"items=%d expected %d got %s", tc.items, tc.amount, PackageBuilderDiscount(tc.items))
	}
}

func TestPackageBuilderTotalNeverNegative(t *testing.T) {
	// Discount larger than subtotal floors at zero.
	assert.True(t, PackageBuilderTotal(d(50), 22).Equal(decimal.Zero))
	assert.True(t, PackageBuilderTotal(d(500), 22).Equal(d(200)))
}

func TestCheckoutGate(t *testing.T) {
	cases := []struct {
		meals     int
		allowed   bool
		shortfall int
	}{
		{0, false, 5},
		{4, false, 1},
		{5, true, 0},
		{6, true, 0},
	}

	for _, tc := range cases {
		allowed, shortfall := CheckoutGate(tc.meals)
		assert.Equal(t, tc.allowed, allowed, "meals=%d", tc.meals)
		assert.Equal(t, tc.shortfall, shortfall, "meals=%d", tc.meals)
	}
}

func TestClampPackageQuantity(t *testing.T) {
	assert.Equal(t, 0, ClampPackageQuantity(-2))
	assert.Equal(t, 7, ClampPackageQuantity(7))
	assert.Equal(t, MaxPackageQuantity, ClampPackageQuantity(50))
}

func TestComputeQuoteBulkOrderRedirect(t *testing.T) {
	sel := Selection{
		Packages: []PackageSelection{
			{PackageID: "first-week", Quantity: 12, Price: d(240), MealCount: 14},
			{PackageID: "full-month", Quantity: 9, Price: d(880), MealCount: 56},
		},
	}

	quote := ComputeQuote(sel, false)
	assert.True(t, quote.BulkContactRequired)
	assert.False(t, quote.CheckoutAllowed)
}

func TestComputeQuote(t *testing.T) {
	sel := Selection{
		Meals: []MealSelection{{MealID: "congee", Quantity: 8, Price: d(20)}},
	}

	quote := ComputeQuote(sel, true)
	assert.Equal(t, 8, quote.TotalMeals)
	assert.True(t, quote.Subtotal.Equal(d(160)))
	assert.True(t, quote.VolumeDiscountRate.Equal(d(0.10)))
	assert.True(t, quote.MemberDiscountRate.Equal(d(0.10)))
	assert.True(t, quote.Total.Equal(d(160).Mul(d(0.90)).Mul(d(0.90))))
	assert.True(t, quote.CheckoutAllowed)
	assert.Equal(t, 0, quote.MealShortfall)
	assert.False(t, quote.BulkContactRequired)
}

func TestComputeBuilderQuote(t *testing.T) {
	quote := ComputeBuilderQuote([]BuilderItem{
		{MealID: "congee", Quantity: 8, Price: d(20)},
		{MealID: "broth", Quantity: 4, Price: d(15)},
	})

	assert.Equal(t, 12, quote.TotalItems)
	assert.True(t, quote.Subtotal.Equal(d(220)))
	assert.True(t, quote.Discount.Equal(d(96)))
	assert.True(t, quote.Total.Equal(d(124)))
}

func TestComputeQuoteBelowMinimum(t *testing.T) {
	sel := Selection{
		Meals: []MealSelection{{MealID: "congee", Quantity: 3, Price: d(20)}},
	}

	quote := ComputeQuote(sel, false)
	assert.False(t, quote.CheckoutAllowed)
	assert.Equal(t, 2, quote.MealShortfall)
	assert.True(t, quote.MemberDiscountRate.Equal(decimal.Zero))
}
