package domain

import "testing"

func TestBBoxIntersects(t *testing.T) {
	base := BBox{100, 200, 300, 250}

	cases := []struct {
		name  string
		other BBox
		want  bool
	}{
		{"overlapping", BBox{150, 210, 250, 240}, true},
		{"disjoint_right", BBox{350, 210, 450, 240}, false},
		{"touching_edge", BBox{300, 200, 400, 250}, true},
		{"touching_corner", BBox{300, 250, 400, 300}, true},
		{"above", BBox{100, 0, 300, 199}, false},
		{"contained", BBox{150, 210, 200, 220}, true},
		{"containing", BBox{0, 0, 500, 500}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Intersects(tc.other); got != tc.want {
				t.Fatalf("Intersects(%v, %v) = %v, want %v", base, tc.other, got, tc.want)
			}
			if got := tc.other.Intersects(base); got != tc.want {
				t.Fatalf("Intersects is not symmetric for %v and %v", base, tc.other)
			}
		})
	}
}

func TestBBoxValid(t *testing.T) {
	if !(BBox{0, 0, 10, 10}).Valid() {
		t.Fatal("ordered box should be valid")
	}
	if (BBox{10, 0, 0, 10}).Valid() {
		t.Fatal("x1 > x2 should be invalid")
	}
	if !(BBox{5, 5, 5, 5}).Valid() {
		t.Fatal("degenerate point box should be valid")
	}
}

func TestMapElementType(t *testing.T) {
	cases := map[string]ElementType{
		"narrative_text": ElementParagraph,
		"section_title":  ElementTitle,
		"page_header":    ElementHeader,
		"table_cell":     ElementTableText,
		"caption":        ElementFigureCaption,
		"something_new":  ElementParagraph,
		"":               ElementParagraph,
	}
	for native, want := range cases {
		if got := MapElementType(native); got != want {
			t.Errorf("MapElementType(%q) = %s, want %s", native, got, want)
		}
	}
}
