package lumber

import "testing"

func TestBoardFeet(t *testing.T) {
	// A 2x4x8' is 2*4*8/12 = 5.333... board feet.
	got := BoardFeet(2, 4, 8)
	if got < 5.33 || got > 5.34 {
		t.Fatalf("BoardFeet(2,4,8) = %v", got)
	}
	if BoardFeet(1, 12, 1) != 1 {
		t.Fatalf("one board foot expected, got %v", BoardFeet(1, 12, 1))
	}
}

func TestPerBoardFootCents(t *testing.T) {
	if got := PerBoardFootCents(500, UnitBoardFoot, 5.333); got != 500 {
		t.Fatalf("board-foot priced listing should pass through, got %d", got)
	}
	// 698 cents per piece over 5.333 bf ≈ 131 cents/bf.
	if got := PerBoardFootCents(698, UnitPiece, BoardFeet(2, 4, 8)); got != 131 {
		t.Fatalf("per-piece normalisation = %d, want 131", got)
	}
	if got := PerBoardFootCents(698, UnitPiece, 0); got != 0 {
		t.Fatalf("zero board feet must yield 0, got %d", got)
	}
}

func TestPerPieceCents(t *testing.T) {
	if got := PerPieceCents(131, UnitBoardFoot, BoardFeet(2, 4, 8)); got != 699 {
		t.Fatalf("per-piece from board-foot price = %d, want 699", got)
	}
	if got := PerPieceCents(698, UnitPiece, 5.333); got != 698 {
		t.Fatalf("piece price should pass through, got %d", got)
	}
}

func TestParseDimension(t *testing.T) {
	w, d, ok := ParseDimension("2x10")
	if !ok || w != 2 || d != 10 {
		t.Fatalf("ParseDimension(2x10) = %d, %d, %v", w, d, ok)
	}
	if _, _, ok := ParseDimension("2by4"); ok {
		t.Fatal("malformed dimension must not parse")
	}
	if _, _, ok := ParseDimension("x4"); ok {
		t.Fatal("missing width must not parse")
	}
}

func TestFormatDimension(t *testing.T) {
	if got := FormatDimension(2, 6, 12); got != "2x6x12'" {
		t.Fatalf("FormatDimension = %q", got)
	}
}
