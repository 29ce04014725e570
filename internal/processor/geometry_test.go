package processor

import (
	"math/rand/v2"
	"testing"
)

func TestMapQuadFullImage(t *testing.T) {
	doc := BuildDocument("<ref>title</ref><det>[[0,0,999,999]]</det>", 100, 200)
	if len(doc.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(doc.Results))
	}
	want := Box{{0, 0}, {100, 0}, {100, 200}, {0, 200}}
	if doc.Results[0].BBox != want {
		t.Fatalf("expected %v, got %v", want, doc.Results[0].BBox)
	}
}

func TestMapQuadRounding(t *testing.T) {
	// 500/999*1000 = 500.5 -> 501
	box := MapQuad(Quad{500, 0, 999, 999}, 1000, 10)
	if box[0][0] != 501 {
		t.Fatalf("expected x1=501, got %d", box[0][0])
	}
}

func TestMapQuadProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 1000; i++ {
		q := Quad{r.IntN(1000), r.IntN(1000), r.IntN(1000), r.IntN(1000)}
		w, h := 1+r.IntN(4000), 1+r.IntN(4000)
		b := MapQuad(q, w, h)

		for _, p := range b {
			if p[0] < 0 || p[0] > w || p[1] < 0 || p[1] > h {
				t.Fatalf("%v on %dx%d: point %v out of bounds", q, w, h, p)
			}
		}
		// clockwise from top-left, axis aligned
		if b[0][1] != b[1][1] || b[1][0] != b[2][0] || b[2][1] != b[3][1] || b[3][0] != b[0][0] {
			t.Fatalf("%v: not axis aligned: %v", q, b)
		}
		if b[0][0] > b[1][0] || b[1][1] > b[2][1] {
			t.Fatalf("%v: not clockwise from top-left: %v", q, b)
		}
	}
}
