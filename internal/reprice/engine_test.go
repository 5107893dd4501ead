package reprice

import (
	"fmt"
	"math/rand"
	"testing"
)

func TestEffectiveQuantity(t *testing.T) {
	cases := []struct {
		qty    int
		waste  float64
		expect int
	}{
		{10, 0.1, 11},
		{10, 0.125, 12},
		{10, 0, 10},
		{1, 1, 2},
		{7, 0.05, 8},
		{0, 0.5, 0},
		{10, -0.3, 10},
		{10, 2.5, 20},
	}
	for _, c := range cases {
		if got := EffectiveQuantity(c.qty, c.waste); got != c.expect {
			t.Fatalf("EffectiveQuantity(%d, %v) = %d, want %d", c.qty, c.waste, got, c.expect)
		}
	}
}

func TestComputeEndToEnd(t *testing.T) {
	items := []LineItem{
		{ProductID: "a", ProductName: "2x4x8' SPF", Quantity: 10},
		{ProductID: "b", ProductName: "2x6x10' Cedar", Quantity: 5},
	}
	listings := []Listing{
		{VendorID: "x", VendorName: "Vendor X", ProductID: "a", PriceCents: 500, InStock: true},
		{VendorID: "x", VendorName: "Vendor X", ProductID: "b", PriceCents: 1000, InStock: true},
		{VendorID: "y", VendorName: "Vendor Y", ProductID: "a", PriceCents: 450, InStock: true},
	}

	res := Compute(items, 0.1, listings)

	if len(res.VendorTotals) != 2 {
		t.Fatalf("expected 2 vendor totals, got %d", len(res.VendorTotals))
	}
	first := res.VendorTotals[0]
	if first.VendorID != "x" || first.TotalCents != 11500 || first.ItemCount != 2 || len(first.MissingItems) != 0 {
		t.Fatalf("unexpected top vendor: %+v", first)
	}
	second := res.VendorTotals[1]
	if second.VendorID != "y" || second.TotalCents != 4950 || second.ItemCount != 1 {
		t.Fatalf("unexpected second vendor: %+v", second)
	}
	if len(second.MissingItems) != 1 || second.MissingItems[0] != "2x6x10' Cedar" {
		t.Fatalf("unexpected missing items: %v", second.MissingItems)
	}

	if res.PerItemBest[0].BestVendorID != "y" || res.PerItemBest[0].BestPriceCents != 4950 {
		t.Fatalf("unexpected best for item a: %+v", res.PerItemBest[0])
	}
	if res.PerItemBest[1].BestVendorID != "x" || res.PerItemBest[1].BestPriceCents != 6000 {
		t.Fatalf("unexpected best for item b: %+v", res.PerItemBest[1])
	}
	if res.PerItemBest[0].Quantity != 11 || res.PerItemBest[1].Quantity != 6 {
		t.Fatalf("unexpected effective quantities: %+v", res.PerItemBest)
	}

	if res.SplitOrderTotalCents != 10950 {
		t.Fatalf("split total = %d, want 10950", res.SplitOrderTotalCents)
	}
	if res.BestSingleVendorTotalCents != 11500 {
		t.Fatalf("best single vendor = %d, want 11500", res.BestSingleVendorTotalCents)
	}
	if res.SplitSavingsCents != 550 {
		t.Fatalf("savings = %d, want 550", res.SplitSavingsCents)
	}
}

func TestCompletenessOutranksPrice(t *testing.T) {
	items := []LineItem{
		{ProductID: "a", ProductName: "A", Quantity: 1},
		{ProductID: "b", ProductName: "B", Quantity: 1},
	}
	listings := []Listing{
		{VendorID: "cheap", VendorName: "Cheap", ProductID: "a", PriceCents: 100, InStock: true},
		{VendorID: "full", VendorName: "Full", ProductID: "a", PriceCents: 4000, InStock: true},
		{VendorID: "full", VendorName: "Full", ProductID: "b", PriceCents: 4000, InStock: true},
	}
	res := Compute(items, 0, listings)
	if res.VendorTotals[0].VendorID != "full" {
		t.Fatalf("expected fully fulfilling vendor first, got %s", res.VendorTotals[0].VendorID)
	}
	if res.VendorTotals[1].VendorID != "cheap" {
		t.Fatalf("expected partial vendor second, got %s", res.VendorTotals[1].VendorID)
	}
}

func TestStableTieBreak(t *testing.T) {
	items := []LineItem{{ProductID: "a", ProductName: "A", Quantity: 2}}
	listings := []Listing{
		{VendorID: "v1", VendorName: "First", ProductID: "a", PriceCents: 300, InStock: true},
		{VendorID: "v2", VendorName: "Second", ProductID: "a", PriceCents: 300, InStock: true},
	}
	res := Compute(items, 0, listings)
	if res.VendorTotals[0].VendorID != "v1" || res.VendorTotals[1].VendorID != "v2" {
		t.Fatalf("tie did not retain input order: %+v", res.VendorTotals)
	}
}

func TestDuplicateListingFirstInStockWins(t *testing.T) {
	items := []LineItem{{ProductID: "a", ProductName: "A", Quantity: 1}}
	listings := []Listing{
		{VendorID: "v", VendorName: "V", ProductID: "a", PriceCents: 900, InStock: false},
		{VendorID: "v", VendorName: "V", ProductID: "a", PriceCents: 700, InStock: true},
		{VendorID: "v", VendorName: "V", ProductID: "a", PriceCents: 500, InStock: true},
	}
	res := Compute(items, 0, listings)
	if res.VendorTotals[0].TotalCents != 700 {
		t.Fatalf("expected first in-stock listing to win, got total %d", res.VendorTotals[0].TotalCents)
	}
}

func TestUnavailableItemSentinel(t *testing.T) {
	items := []LineItem{
		{ProductID: "a", ProductName: "Available", Quantity: 1},
		{ProductID: "ghost", ProductName: "Ghost Board", Quantity: 3},
	}
	listings := []Listing{
		{VendorID: "v", VendorName: "V", ProductID: "a", PriceCents: 100, InStock: true},
		{VendorID: "v", VendorName: "V", ProductID: "ghost", PriceCents: 100, InStock: false},
	}
	res := Compute(items, 0, listings)

	ghost := res.PerItemBest[1]
	if ghost.BestPriceCents != 0 || ghost.BestVendorID != "" || ghost.BestVendorName != "" {
		t.Fatalf("expected sentinel for unavailable item, got %+v", ghost)
	}
	for _, vt := range res.VendorTotals {
		found := false
		for _, name := range vt.MissingItems {
			if name == "Ghost Board" {
				found = true
			}
		}
		if !found {
			t.Fatalf("vendor %s should list the unavailable item as missing", vt.VendorID)
		}
	}
	if res.BestSingleVendorTotalCents != 0 {
		t.Fatalf("no vendor fulfills everything, best single should be 0, got %d", res.BestSingleVendorTotalCents)
	}
	if res.SplitSavingsCents > 0 {
		t.Fatalf("savings must be non-positive without a full vendor, got %d", res.SplitSavingsCents)
	}
}

func TestVendorWithNothingRelevantStillAppears(t *testing.T) {
	items := []LineItem{{ProductID: "a", ProductName: "A", Quantity: 1}}
	listings := []Listing{
		{VendorID: "v", VendorName: "V", ProductID: "a", PriceCents: 100, InStock: true},
		{VendorID: "empty", VendorName: "Empty", ProductID: "a", PriceCents: 100, InStock: false},
	}
	res := Compute(items, 0, listings)
	if len(res.VendorTotals) != 2 {
		t.Fatalf("expected both vendors in output, got %d", len(res.VendorTotals))
	}
	last := res.VendorTotals[1]
	if last.VendorID != "empty" || last.TotalCents != 0 || last.ItemCount != 0 || len(last.MissingItems) != 1 {
		t.Fatalf("unexpected all-missing vendor: %+v", last)
	}
}

func TestVendorWithOnlyUnrequestedProductsExcluded(t *testing.T) {
	items := []LineItem{{ProductID: "a", ProductName: "A", Quantity: 1}}
	listings := []Listing{
		{VendorID: "v", VendorName: "V", ProductID: "a", PriceCents: 100, InStock: true},
		{VendorID: "stranger", VendorName: "Stranger", ProductID: "zzz", PriceCents: 50, InStock: true},
	}
	res := Compute(items, 0, listings)
	if len(res.VendorTotals) != 1 {
		t.Fatalf("expected only the relevant vendor, got %+v", res.VendorTotals)
	}
	if res.VendorTotals[0].VendorID != "v" {
		t.Fatalf("unexpected vendor in output: %+v", res.VendorTotals[0])
	}
}

func TestEmptyInputsDegenerate(t *testing.T) {
	res := Compute(nil, 0.1, nil)
	if len(res.VendorTotals) != 0 || len(res.PerItemBest) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if res.SplitOrderTotalCents != 0 || res.BestSingleVendorTotalCents != 0 || res.SplitSavingsCents != 0 {
		t.Fatalf("expected zero totals, got %+v", res)
	}
}

func TestSplitNeverBeatsItselfProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 250; trial++ {
		itemCount := 1 + rng.Intn(8)
		items := make([]LineItem, 0, itemCount)
		for i := 0; i < itemCount; i++ {
			items = append(items, LineItem{
				ProductID:   fmt.Sprintf("p%d", i),
				ProductName: fmt.Sprintf("Product %d", i),
				Quantity:    1 + rng.Intn(20),
			})
		}
		vendorCount := 1 + rng.Intn(6)
		listings := make([]Listing, 0)
		for v := 0; v < vendorCount; v++ {
			for i := 0; i < itemCount; i++ {
				if rng.Intn(4) == 0 {
					continue
				}
				listings = append(listings, Listing{
					VendorID:   fmt.Sprintf("v%d", v),
					VendorName: fmt.Sprintf("Vendor %d", v),
					ProductID:  fmt.Sprintf("p%d", i),
					PriceCents: Money(1 + rng.Intn(10_000)),
					InStock:    rng.Intn(5) != 0,
				})
			}
		}
		waste := rng.Float64()

		res := Compute(items, waste, listings)

		if res.BestSingleVendorTotalCents > 0 && res.SplitOrderTotalCents > res.BestSingleVendorTotalCents {
			t.Fatalf("trial %d: split %d exceeds single vendor %d", trial, res.SplitOrderTotalCents, res.BestSingleVendorTotalCents)
		}
		for _, vt := range res.VendorTotals {
			if vt.ItemCount+len(vt.MissingItems) != len(items) {
				t.Fatalf("trial %d: vendor %s count invariant broken: %+v", trial, vt.VendorID, vt)
			}
		}
		var sum Money
		for _, item := range res.PerItemBest {
			sum += item.BestPriceCents
		}
		if sum != res.SplitOrderTotalCents {
			t.Fatalf("trial %d: split total %d != sum of item bests %d", trial, res.SplitOrderTotalCents, sum)
		}
	}
}
