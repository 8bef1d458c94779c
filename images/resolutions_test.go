package images

import (
	"testing"
)

// TestResolution_GetMegaPixels performs table-driven tests on the GetMegaPixels
// method to ensure its calculations are accurate.
func TestResolution_GetMegaPixels(t *testing.T) {
	testCases := []struct {
		name     string
		resType  ResolutionType
		expected float64
	}{
		{name: "Full HD 1080p", resType: ResolutionTypeFHD1080p, expected: 2.07},
		{name: "4K UHD", resType: ResolutionType4KUHD, expected: 8.29},
		{name: "VGA", resType: ResolutionTypeVGA, expected: 0.31},
		{name: "nHD", resType: ResolutionTypeNHD, expected: 0.23},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := GetResolutionByType(tc.resType)
			if !ok {
				t.Fatalf("resolution %q not defined", tc.resType)
			}
			if got := res.GetMegaPixels(); got != tc.expected {
				t.Errorf("expected %.2f MP, but got %.2f MP", tc.expected, got)
			}
		})
	}
}

func TestResolution_GetMegaPixels_Degenerate(t *testing.T) {
	res := Resolution{Pixels: Pixels{Width: 0, Height: 1080}}
	if got := res.GetMegaPixels(); got != 0.0 {
		t.Errorf("expected 0.0 MP for zero width, got %v", got)
	}

	res = Resolution{Pixels: Pixels{Width: -1920, Height: 1080}}
	if got := res.GetMegaPixels(); got != 0.0 {
		t.Errorf("expected 0.0 MP for negative width, got %v", got)
	}
}

// TestResolution_String verifies the human-readable output for a resolution.
func TestResolution_String(t *testing.T) {
	res, ok := GetResolutionByType(ResolutionTypeFHD1080p)
	if !ok {
		t.Fatal("1080p not defined")
	}
	expected := "Full HD 1080p (1920x1080, 2.07MP)"
	if got := res.String(); got != expected {
		t.Errorf("String() = %q, expected %q", got, expected)
	}
}

func TestGetHighestResolutionUnderDimensions(t *testing.T) {
	testCases := []struct {
		name          string
		width, height int
		expected      ResolutionType
		found         bool
	}{
		{name: "Fits 4K exactly", width: 3840, height: 2160, expected: ResolutionType4KUHD, found: true},
		{name: "Just under 4K", width: 3839, height: 2160, expected: ResolutionTypeQHD1440p, found: true},
		{name: "720p envelope", width: 1280, height: 720, expected: ResolutionTypeHD720p, found: true},
		{name: "Tiny sensor", width: 320, height: 240, found: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, ok := GetHighestResolutionUnderDimensions(tc.width, tc.height)
			if ok != tc.found {
				t.Fatalf("found=%v, expected %v", ok, tc.found)
			}
			if ok && res.Name != tc.expected {
				t.Errorf("got %q, expected %q", res.Name, tc.expected)
			}
		})
	}
}

func TestGetAllResolutions(t *testing.T) {
	all := GetAllResolutions()
	if len(all) == 0 {
		t.Fatal("no resolutions defined")
	}
	for _, res := range all {
		if res.Pixels.Width <= 0 || res.Pixels.Height <= 0 {
			t.Errorf("resolution %q has degenerate dimensions %+v", res.Name, res.Pixels)
		}
	}
}
