package processor

import (
	"os"
	"strings"
	"testing"

	"github.com/geofetch/s2fetch/common"
)

func TestIntersectExtent(t *testing.T) {
	tests := []struct {
		name     string
		a, b     [4]float64
		expected [4]float64
		overlap  bool
	}{
		{"contained", [4]float64{0, 0, 10, 10}, [4]float64{2, 3, 4, 5}, [4]float64{2, 3, 4, 5}, true},
		{"partial", [4]float64{0, 0, 10, 10}, [4]float64{5, 5, 15, 15}, [4]float64{5, 5, 10, 10}, true},
		{"disjoint", [4]float64{0, 0, 10, 10}, [4]float64{20, 20, 30, 30}, [4]float64{}, false},
		{"touching", [4]float64{0, 0, 10, 10}, [4]float64{10, 0, 20, 10}, [4]float64{}, false},
	}
	for _, tt := range tests {
		got, ok := intersectExtent(tt.a, tt.b)
		if ok != tt.overlap || got != tt.expected {
			t.Errorf("%s: got %v/%v, expected %v/%v", tt.name, got, ok, tt.expected, tt.overlap)
		}
	}
}

func TestParseClipMode(t *testing.T) {
	if m, err := ParseClipMode("extent"); err != nil || m != ClipExtent {
		t.Errorf("got %v/%v", m, err)
	}
	if m, err := ParseClipMode("mask"); err != nil || m != ClipMask {
		t.Errorf("got %v/%v", m, err)
	}
	if _, err := ParseClipMode("smooth"); err == nil {
		t.Error("expected an error")
	}
}

func TestWriteCutline(t *testing.T) {
	dir := t.TempDir()
	area := common.AreaOfInterest{
		Prefix:      "Test01",
		BufferedWKT: "POLYGON ((12 48.5, 12.5 48.5, 12.5 49, 12 49, 12 48.5))",
	}
	path, err := writeCutline(dir, area)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"Polygon"`) {
		t.Errorf("not a geojson polygon: %s", data)
	}
}
