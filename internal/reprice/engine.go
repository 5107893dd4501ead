package reprice

import (
	"math"
	"sort"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// LineItem is one requested product within a build order.
type LineItem struct {
	ProductID   string
	ProductName string
	Quantity    int
}

// Listing is a vendor's advertised price for a single product. Callers must
// supply only currently valid listings; expiry is not interpreted here.
type Listing struct {
	VendorID    string
	VendorName  string
	VendorChain string
	ProductID   string
	PriceCents  Money
	InStock     bool
}

// VendorTotal summarises what one vendor charges for the fulfillable part of
// the order.
type VendorTotal struct {
	VendorID     string   `json:"vendorId"`
	VendorName   string   `json:"vendorName"`
	VendorChain  string   `json:"vendorChain,omitempty"`
	TotalCents   Money    `json:"totalCents"`
	ItemCount    int      `json:"itemCount"`
	MissingItems []string `json:"missingItems"`
}

// ItemBest records the cheapest in-stock offer found for one line item.
// A zero BestPriceCents together with an empty BestVendorID means no offer
// exists, not a free item.
type ItemBest struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	BestVendorID   string `json:"bestVendorId"`
	BestVendorName string `json:"bestVendorName"`
	BestPriceCents Money  `json:"bestPriceCents"`
}

// Result aggregates both purchase strategies for a build order.
type Result struct {
	VendorTotals               []VendorTotal `json:"vendorTotals"`
	PerItemBest                []ItemBest    `json:"perItemBest"`
	SplitOrderTotalCents       Money         `json:"splitOrderTotalCents"`
	BestSingleVendorTotalCents Money         `json:"bestSingleVendorTotalCents"`
	SplitSavingsCents          Money         `json:"splitSavingsCents"`
}

// EffectiveQuantity applies the waste factor and rounds up. Under-ordering is
// the harder failure for the buyer, so waste always rounds toward "buy more".
func EffectiveQuantity(quantity int, wasteFactor float64) int {
	if quantity <= 0 {
		return 0
	}
	return int(math.Ceil(float64(quantity) * (1 + clampWaste(wasteFactor))))
}

func clampWaste(wasteFactor float64) float64 {
	if math.IsNaN(wasteFactor) || wasteFactor < 0 {
		return 0
	}
	if wasteFactor > 1 {
		return 1
	}
	return wasteFactor
}

// Compute prices a build order against a snapshot of vendor listings and
// returns per-vendor totals, the per-item cheapest offers, and the savings
// delta between the best single vendor and the split purchase.
func Compute(items []LineItem, wasteFactor float64, listings []Listing) Result {
	requested := make(map[string]struct{}, len(items))
	for _, item := range items {
		requested[item.ProductID] = struct{}{}
	}

	// Vendors appear only through listings for a requested product. A vendor
	// whose listings all point elsewhere contributes nothing and is omitted;
	// an out-of-stock listing for a requested product still admits its vendor.
	byVendor := make(map[string][]Listing)
	vendorOrder := make([]string, 0)
	for _, l := range listings {
		if _, ok := requested[l.ProductID]; !ok {
			continue
		}
		if _, seen := byVendor[l.VendorID]; !seen {
			vendorOrder = append(vendorOrder, l.VendorID)
		}
		byVendor[l.VendorID] = append(byVendor[l.VendorID], l)
	}

	totals := make([]VendorTotal, 0, len(vendorOrder))
	for _, vendorID := range vendorOrder {
		bucket := byVendor[vendorID]
		vt := VendorTotal{
			VendorID:     vendorID,
			VendorName:   bucket[0].VendorName,
			VendorChain:  bucket[0].VendorChain,
			MissingItems: []string{},
		}
		for _, item := range items {
			listing, ok := firstInStock(bucket, item.ProductID)
			if !ok {
				vt.MissingItems = append(vt.MissingItems, item.ProductName)
				continue
			}
			qty := EffectiveQuantity(item.Quantity, wasteFactor)
			vt.TotalCents += listing.PriceCents * Money(qty)
			vt.ItemCount++
		}
		totals = append(totals, vt)
	}

	// Completeness dominates cost: a vendor that stocks more of the order
	// ranks above a cheaper vendor with gaps.
	sort.SliceStable(totals, func(i, j int) bool {
		if len(totals[i].MissingItems) != len(totals[j].MissingItems) {
			return len(totals[i].MissingItems) < len(totals[j].MissingItems)
		}
		return totals[i].TotalCents < totals[j].TotalCents
	})

	perItem := make([]ItemBest, 0, len(items))
	var splitTotal Money
	for _, item := range items {
		qty := EffectiveQuantity(item.Quantity, wasteFactor)
		best := ItemBest{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    qty,
		}
		found := false
		for _, l := range listings {
			if l.ProductID != item.ProductID || !l.InStock {
				continue
			}
			cost := l.PriceCents * Money(qty)
			if !found || cost < best.BestPriceCents {
				found = true
				best.BestPriceCents = cost
				best.BestVendorID = l.VendorID
				best.BestVendorName = l.VendorName
			}
		}
		splitTotal += best.BestPriceCents
		perItem = append(perItem, best)
	}

	var bestSingle Money
	for _, vt := range totals {
		if len(vt.MissingItems) == 0 {
			bestSingle = vt.TotalCents
			break
		}
	}

	return Result{
		VendorTotals:               totals,
		PerItemBest:                perItem,
		SplitOrderTotalCents:       splitTotal,
		BestSingleVendorTotalCents: bestSingle,
		// May go negative when no vendor carries the full order; bestSingle
		// degrades to zero in that case and the delta is reported as-is.
		SplitSavingsCents: bestSingle - splitTotal,
	}
}

func firstInStock(bucket []Listing, productID string) (Listing, bool) {
	for _, l := range bucket {
		if l.ProductID == productID && l.InStock {
			return l, true
		}
	}
	return Listing{}, false
}
