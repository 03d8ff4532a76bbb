package imagesvc

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mkrupp/mediakit/internal/domain"
)

const (
	minQuality = 1
	maxQuality = 100
)

// ParseTransformOptions builds transform options from request query
// parameters and the Accept header. Parsing never fails: out-of-range
// values are clamped and unparseable ones fall back to their defaults.
//
// Recognized parameters:
//   - "w", "h": target dimensions, clamped to [1,2000]; absent means unset.
//   - "q": encode quality, clamped to [1,100]; default 80.
//   - "f": output format ("webp", "avif", "jpeg", "jpg", "png").
//   - "fit": resize policy; default "cover".
//
// When no explicit format is requested, the Accept header is consulted:
// clients advertising image/avif get AVIF, image/webp gets WebP, and
// everything else keeps the source format.
func ParseTransformOptions(query url.Values, accept string) domain.TransformOptions {
	//nolint:exhaustruct
	opts := domain.TransformOptions{
		Quality: domain.DefaultQuality,
		Fit:     domain.ParseFit(query.Get("fit")),
		Format:  negotiateFormat(query.Get("f"), accept),
	}

	opts.Width = parseDimension(query.Get("w"))
	opts.Height = parseDimension(query.Get("h"))

	if quality, err := strconv.Atoi(query.Get("q")); err == nil {
		opts.Quality = clampInt(quality, minQuality, maxQuality)
	}

	return opts
}

// parseDimension parses a dimension parameter, clamping the result to
// [1,MaxDimension]. Returns 0 (unset) when the value is absent or not an
// integer.
func parseDimension(value string) int {
	if value == "" {
		return 0
	}

	dim, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}

	return clampInt(dim, 1, domain.MaxDimension)
}

func negotiateFormat(requested string, accept string) domain.Format {
	switch strings.ToLower(requested) {
	case "webp":
		return domain.FormatWebP
	case "avif":
		return domain.FormatAVIF
	case "jpeg", "jpg":
		return domain.FormatJPEG
	case "png":
		return domain.FormatPNG
	}

	switch {
	case strings.Contains(accept, MIMETypeAVIF):
		return domain.FormatAVIF
	case strings.Contains(accept, MIMETypeWebP):
		return domain.FormatWebP
	default:
		return domain.FormatKeep
	}
}

func clampInt(value, lower, upper int) int {
	if value < lower {
		return lower
	}

	if value > upper {
		return upper
	}

	return value
}
