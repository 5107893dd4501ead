package lumber

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Price units accepted on listing submissions.
const (
	UnitPiece      = "piece"
	UnitBoardFoot  = "board_foot"
	UnitLinearFoot = "linear_foot"
)

// CommonDimensions enumerates the nominal dimensions exposed as filters.
var CommonDimensions = []string{
	"2x4", "2x6", "2x8", "2x10", "2x12",
	"4x4", "4x6",
	"6x6",
	"1x4", "1x6", "1x8",
}

// CommonLengths lists standard board lengths in feet.
var CommonLengths = []int{8, 10, 12, 16, 20}

var dimensionPattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// BoardFeet computes the board-foot volume of a piece:
// nominal width (in) x nominal depth (in) x length (ft) / 12.
func BoardFeet(nominalWidthIn, nominalDepthIn float64, lengthFt float64) float64 {
	return nominalWidthIn * nominalDepthIn * lengthFt / 12
}

// PerBoardFootCents normalises a listing price to cents per board foot.
// Linear-foot pricing is not directly convertible without the piece length,
// so it falls back to the per-piece approximation.
func PerBoardFootCents(priceCents int64, priceUnit string, boardFeet float64) int64 {
	if boardFeet == 0 {
		return 0
	}
	switch priceUnit {
	case UnitBoardFoot:
		return priceCents
	default:
		return int64(math.Round(float64(priceCents) / boardFeet))
	}
}

// PerPieceCents normalises a listing price to cents per piece.
func PerPieceCents(priceCents int64, priceUnit string, boardFeet float64) int64 {
	switch priceUnit {
	case UnitBoardFoot:
		return int64(math.Round(float64(priceCents) * boardFeet))
	default:
		return priceCents
	}
}

// ValidUnit reports whether the submitted price unit is one this API accepts.
func ValidUnit(unit string) bool {
	switch unit {
	case UnitPiece, UnitBoardFoot, UnitLinearFoot:
		return true
	}
	return false
}

// FormatDimension renders the display form of a board, e.g. "2x4x8'".
func FormatDimension(nominalWidth, nominalDepth, lengthFt int) string {
	return fmt.Sprintf("%dx%dx%d'", nominalWidth, nominalDepth, lengthFt)
}

// ParseDimension splits a "2x4" style filter value into width and depth.
func ParseDimension(dim string) (width, depth int, ok bool) {
	m := dimensionPattern.FindStringSubmatch(dim)
	if m == nil {
		return 0, 0, false
	}
	width, _ = strconv.Atoi(m[1])
	depth, _ = strconv.Atoi(m[2])
	return width, depth, true
}
