// Package images - Common capture resolution standards.
//
// The pipeline negotiates camera capture sizes and render target sizes against
// these definitions instead of passing raw width/height pairs around.
package images

import (
	"fmt"
	"math"
)

// AspectRatio represents a camera aspect ratio by name (e.g., "16:9").
type AspectRatio string

// Standard aspect ratios for surveillance and consumer cameras.
const (
	AspectRatio169 AspectRatio = "16:9"
	AspectRatio43  AspectRatio = "4:3"
)

// ResolutionType identifies a supported resolution standard.
type ResolutionType string

// The resolution standards the capture layer knows how to negotiate.
const (
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeHD720p   ResolutionType = "HD 720p"
	ResolutionTypeFHD1080p ResolutionType = "Full HD 1080p"
	ResolutionTypeQHD1440p ResolutionType = "QHD 1440p"
	ResolutionType4KUHD    ResolutionType = "4K UHD"
)

// Pixels describes the exact dimensions of a resolution.
type Pixels struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Resolution describes the complete set of attributes for a resolution standard.
type Resolution struct {
	Name        ResolutionType `json:"name"        yaml:"name"`
	AspectRatio AspectRatio    `json:"aspectRatio" yaml:"aspectRatio"`
	Pixels      Pixels         `json:"pixels"      yaml:"pixels"`
}

// GetMegaPixels calculates the megapixel value from the pixel dimensions,
// rounded to two decimal places (e.g., 2.07 for 1080p).
func (r Resolution) GetMegaPixels() float64 {
	if r.Pixels.Width <= 0 || r.Pixels.Height <= 0 {
		return 0.0
	}
	mp := float64(r.Pixels.Width*r.Pixels.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the resolution.
func (r Resolution) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", r.Name, r.Pixels.Width, r.Pixels.Height, r.GetMegaPixels())
}

// resolutions stores all defined resolution standards, keyed by type.
var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeNHD: {
		Name:        ResolutionTypeNHD,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 640, Height: 360},
	},
	ResolutionTypeVGA: {
		Name:        ResolutionTypeVGA,
		AspectRatio: AspectRatio43,
		Pixels:      Pixels{Width: 640, Height: 480},
	},
	ResolutionTypeHD720p: {
		Name:        ResolutionTypeHD720p,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 1280, Height: 720},
	},
	ResolutionTypeFHD1080p: {
		Name:        ResolutionTypeFHD1080p,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 1920, Height: 1080},
	},
	ResolutionTypeQHD1440p: {
		Name:        ResolutionTypeQHD1440p,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 2560, Height: 1440},
	},
	ResolutionType4KUHD: {
		Name:        ResolutionType4KUHD,
		AspectRatio: AspectRatio169,
		Pixels:      Pixels{Width: 3840, Height: 2160},
	},
}

// GetAllResolutions returns a slice of all defined resolution standards.
// The order is not guaranteed.
func GetAllResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, res := range resolutions {
		all = append(all, res)
	}
	return all
}

// GetResolutionByType retrieves a specific resolution by its type.
// It returns the Resolution and true if found, otherwise an empty Resolution
// and false.
func GetResolutionByType(t ResolutionType) (Resolution, bool) {
	res, ok := resolutions[t]
	return res, ok
}

// GetHighestResolutionUnderDimensions retrieves the highest resolution that
// fits inside the given width and height.
//
// Arguments:
//   - width: The maximum possible width of the image.
//   - height: The maximum possible height of the image.
//
// Returns:
//   - Resolution: The highest resolution within the given bounds.
//   - bool: True if a resolution was found, otherwise false.
func GetHighestResolutionUnderDimensions(width, height int) (Resolution, bool) {
	var highest Resolution
	var found bool

	for _, res := range resolutions {
		if res.Pixels.Width <= width && res.Pixels.Height <= height {
			if !found || res.GetMegaPixels() > highest.GetMegaPixels() {
				highest = res
				found = true
			}
		}
	}
	return highest, found
}
