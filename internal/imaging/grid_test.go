package imaging

import (
	"image/color"
	"testing"

	"github.com/ironsheep/omr-grader/internal/omr"
)

func TestRegionOverlay(t *testing.T) {
	img := createInMemoryImage(100, 100, color.Black)
	r := omr.NewRegion(10, 10, 60, 80)

	p, err := RegionOverlay(img, r, 25, false, "#ff0000")
	if err != nil {
		t.Fatalf("RegionOverlay failed: %v", err)
	}
	if p.Width != 100 || p.Height != 100 || p.GridSpacing != 25 {
		t.Errorf("unexpected preview %dx%d spacing %d", p.Width, p.Height, p.GridSpacing)
	}

	out := decodePreview(t, p)
	rgb := func(x, y int) (uint32, uint32, uint32) {
		cr, cg, cb, _ := out.At(x, y).RGBA()
		return cr >> 8, cg >> 8, cb >> 8
	}

	// Half-opaque red over black.
	if cr, cg, cb := rgb(75, 90); cr < 120 || cr > 200 || cg != 0 || cb != 0 {
		t.Errorf("grid line at (75,90): got (%d,%d,%d)", cr, cg, cb)
	}
	if cr, cg, cb := rgb(90, 90); cr != 0 || cg != 0 || cb != 0 {
		t.Errorf("background at (90,90): got (%d,%d,%d)", cr, cg, cb)
	}
	// Region outline.
	for _, pt := range [][2]int{{30, 11}, {11, 40}, {58, 40}, {30, 78}} {
		if cr, cg, cb := rgb(pt[0], pt[1]); cr != 0 || cg != 120 || cb != 255 {
			t.Errorf("outline at %v: got (%d,%d,%d)", pt, cr, cg, cb)
		}
	}
	// Inside the region is left alone.
	if cr, cg, cb := rgb(40, 40); cr != 0 || cg != 0 || cb != 0 {
		t.Errorf("region interior: got (%d,%d,%d)", cr, cg, cb)
	}

	if c, _, _, _ := img.At(25, 90).RGBA(); c != 0 {
		t.Error("source image was modified")
	}
}

func TestRegionOverlay_Coordinates(t *testing.T) {
	img := createInMemoryImage(200, 200, color.Black)

	p, err := RegionOverlay(img, omr.NewRegion(0, 0, 10, 10), 100, true, "")
	if err != nil {
		t.Fatalf("RegionOverlay failed: %v", err)
	}

	out := decodePreview(t, p)
	white := 0
	for y := 102; y < 115; y++ {
		for x := 102; x < 160; x++ {
			if cr, cg, cb, _ := out.At(x, y).RGBA(); cr>>8 == 255 && cg>>8 == 255 && cb>>8 == 255 {
				white++
			}
		}
	}
	if white == 0 {
		t.Error("expected label pixels next to the grid crossing")
	}
}

func TestGridColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#00ff00", color.NRGBA{0, 255, 0, 160}},
		{"#0000FF", color.NRGBA{0, 0, 255, 160}},
		{"", color.NRGBA{255, 0, 0, 160}},
		{"green", color.NRGBA{255, 0, 0, 160}},
	}
	for _, tt := range tests {
		if got := gridColor(tt.in); got != tt.want {
			t.Errorf("gridColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRegionOverlay_Errors(t *testing.T) {
	img := createInMemoryImage(50, 50, color.White)

	if _, err := RegionOverlay(img, omr.NewRegion(0, 0, 10, 10), 0, false, ""); err == nil {
		t.Error("expected error for zero grid spacing")
	}
	if _, err := RegionOverlay(img, omr.Region{X1: 10, X2: 5, Y2: 10}, 10, false, ""); err == nil {
		t.Error("expected error for invalid region")
	}
}
