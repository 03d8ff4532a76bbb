package domain

// Fit selects the resize strategy mapping an image into a target box.
type Fit string

const (
	// FitCover scales to fill the box and crops the excess (default).
	FitCover Fit = "cover"
	// FitContain scales to fit entirely within the box.
	FitContain Fit = "contain"
	// FitFill stretches to the exact box dimensions, ignoring aspect ratio.
	FitFill Fit = "fill"
	// FitInside scales down until both dimensions fit within the box.
	FitInside Fit = "inside"
	// FitOutside scales until both dimensions meet or exceed the box.
	FitOutside Fit = "outside"
)

// ParseFit maps a string to a Fit, falling back to FitCover for
// anything unrecognized. It never fails.
func ParseFit(s string) Fit {
	switch Fit(s) {
	case FitCover, FitContain, FitFill, FitInside, FitOutside:
		return Fit(s)
	default:
		return FitCover
	}
}

// Format is a target image encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"

	// FormatKeep means "serve the source format unchanged".
	FormatKeep Format = ""
)

const (
	// MaxDimension is the upper bound for requested width and height.
	MaxDimension = 2000

	// DefaultQuality is the encode quality applied when none is requested.
	DefaultQuality = 80
)

// TransformOptions is the normalized transformation specification produced
// by the option parser. Zero width/height mean "no resize on that axis".
// All fields are already clamped into range; a TransformOptions value is
// always usable as-is.
type TransformOptions struct {
	Width   int
	Height  int
	Quality int
	Format  Format
	Fit     Fit
}

// NeedsTransform reports whether the options require running the transform
// engine at all. Quality and fit alone are inert; only a resize axis or an
// explicit output format triggers the transformation path.
func (opts TransformOptions) NeedsTransform() bool {
	return opts.Width > 0 || opts.Height > 0 || opts.Format != FormatKeep
}
