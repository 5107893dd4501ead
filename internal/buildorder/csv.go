package buildorder

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/lumberlens/backend-lumber/internal/reprice"
)

var csvHeader = []string{"Product", "Quantity (incl. waste)", "Best Vendor", "Best Price", "Line Total"}

// WriteCSV renders a repricing run as a spreadsheet-friendly shopping list.
// Each line shows the cheapest vendor for that item; the summary block at the
// bottom totals the split order against the best single vendor.
func WriteCSV(w io.Writer, view RepriceView) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, best := range view.Result.PerItemBest {
		// BestPriceCents is the extended line total; the unit price divides
		// out exactly because the total was built by multiplication.
		unit := reprice.Money(0)
		if best.Quantity > 0 {
			unit = best.BestPriceCents / reprice.Money(best.Quantity)
		}
		row := []string{
			best.ProductName,
			fmt.Sprintf("%d", best.Quantity),
			best.BestVendorName,
			formatCents(unit),
			formatCents(best.BestPriceCents),
		}
		if best.BestVendorID == "" {
			row[2] = "Unavailable"
			row[3] = ""
			row[4] = ""
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	summary := [][]string{
		{"", "", "", "", ""},
		{"Split Order Total", "", "", "", formatCents(view.Result.SplitOrderTotalCents)},
		{"Best Single Vendor Total", "", "", "", formatCents(view.Result.BestSingleVendorTotalCents)},
		{"Potential Savings", "", "", "", formatCents(view.Result.SplitSavingsCents)},
	}
	for _, row := range summary {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv summary: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatCents(cents reprice.Money) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
