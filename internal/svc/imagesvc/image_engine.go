package imagesvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"github.com/mkrupp/mediakit/internal/domain"
)

var (
	// ErrUnknownInterpolator is returned when an unsupported interpolation method is specified.
	ErrUnknownInterpolator = errors.New("unknown interpolator")

	// ErrUnsupportedMIMEType is returned when trying to process an unsupported image format.
	ErrUnsupportedMIMEType = errors.New("unsupported MIME type")
)

//nolint:gochecknoglobals
var (
	// interpolMap maps interpolator names to their implementations.
	// Supported values: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear".
	interpolMap = map[string]draw.Interpolator{
		"nearestneighbor": draw.NearestNeighbor,
		"catmullrom":      draw.CatmullRom,
		"bilinear":        draw.BiLinear,
		"approxbilinear":  draw.ApproxBiLinear,
	}
)

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownInterpolator
	}

	return interpol, nil
}

// resizePlan describes a single scale operation: the source sub-rectangle
// to read from and the output dimensions to scale it into.
type resizePlan struct {
	dstW, dstH int
	srcRect    image.Rectangle
}

// transformImage decodes an image, applies the requested resize and
// re-encodes it. Resizing never upscales: scale factors are clamped to 1,
// so a source smaller than the requested dimensions is returned at its
// original size (converted to the target format if one is set).
//
// Returns the encoded bytes and the content type of the output.
func transformImage(
	data []byte,
	ctype string,
	opts domain.TransformOptions,
	interpolator string,
) (transformed []byte, outType string, err error) {
	original, err := decodeImage(bytes.NewReader(data), ctype)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bitmap := original

	if opts.Width > 0 || opts.Height > 0 {
		interpol, err := getInterpolatorByName(interpolator)
		if err != nil {
			return nil, "", fmt.Errorf("get interpolator: %w", err)
		}

		plan := planResize(original.Bounds(), opts)
		scaled := image.NewRGBA(image.Rect(0, 0, plan.dstW, plan.dstH))
		interpol.Scale(scaled, scaled.Bounds(), original, plan.srcRect, draw.Over, nil)
		bitmap = scaled
	}

	format := opts.Format
	if format == domain.FormatKeep {
		format = outputFormatForType(ctype)
	}

	transformed, err = encodeImage(bitmap, format, opts.Quality)
	if err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}

	return transformed, formatMIMETypes[format], nil
}

// planResize computes the scale operation for the requested dimensions and
// fit policy. All scale factors are clamped to 1 so the output never
// exceeds the source dimensions.
//
//nolint:cyclop,funlen
func planResize(bounds image.Rectangle, opts domain.TransformOptions) resizePlan {
	var (
		srcW = bounds.Dx()
		srcH = bounds.Dy()
		reqW = opts.Width
		reqH = opts.Height
	)

	plan := resizePlan{dstW: srcW, dstH: srcH, srcRect: bounds}

	switch {
	case reqW > 0 && reqH > 0:
		switch opts.Fit {
		case domain.FitFill:
			// Stretch to the exact requested size, each axis capped at
			// its source dimension.
			plan.dstW = minInt(reqW, srcW)
			plan.dstH = minInt(reqH, srcH)

		case domain.FitCover:
			scale := clampScale(math.Max(float64(reqW)/float64(srcW), float64(reqH)/float64(srcH)))
			plan.dstW = minInt(reqW, roundScale(srcW, scale))
			plan.dstH = minInt(reqH, roundScale(srcH, scale))

			// Center-crop the excess axis out of the source.
			cropW := minInt(srcW, int(math.Round(float64(plan.dstW)/scale)))
			cropH := minInt(srcH, int(math.Round(float64(plan.dstH)/scale)))
			x0 := bounds.Min.X + (srcW-cropW)/2
			y0 := bounds.Min.Y + (srcH-cropH)/2
			plan.srcRect = image.Rect(x0, y0, x0+cropW, y0+cropH)

		case domain.FitContain, domain.FitInside:
			scale := clampScale(math.Min(float64(reqW)/float64(srcW), float64(reqH)/float64(srcH)))
			plan.dstW = roundScale(srcW, scale)
			plan.dstH = roundScale(srcH, scale)

		case domain.FitOutside:
			scale := clampScale(math.Max(float64(reqW)/float64(srcW), float64(reqH)/float64(srcH)))
			plan.dstW = roundScale(srcW, scale)
			plan.dstH = roundScale(srcH, scale)
		}

	case reqW > 0:
		scale := clampScale(float64(reqW) / float64(srcW))
		plan.dstW = roundScale(srcW, scale)
		plan.dstH = roundScale(srcH, scale)

	case reqH > 0:
		scale := clampScale(float64(reqH) / float64(srcH))
		plan.dstW = roundScale(srcW, scale)
		plan.dstH = roundScale(srcH, scale)
	}

	plan.dstW = maxInt(plan.dstW, 1)
	plan.dstH = maxInt(plan.dstH, 1)

	return plan
}

// decodeImage decodes a binary image into a Go image.Image object.
// Returns ErrUnsupportedMIMEType if the content type is not supported.
func decodeImage(reader io.Reader, ctype string) (image image.Image, err error) {
	decoder, err := getDecoderByType(ctype)
	if err != nil {
		return nil, err
	}

	return decoder(reader)
}

// encodeImage encodes a Go image.Image object into binary format.
// Returns ErrUnsupportedMIMEType if the format is not supported.
func encodeImage(bitmap image.Image, format domain.Format, quality int) ([]byte, error) {
	var (
		buffer []byte
		writer = bytes.NewBuffer(buffer)
	)

	encoder, err := getEncoderByFormat(format)
	if err != nil {
		return nil, fmt.Errorf("get encoder: %w", err)
	}

	err = encoder(writer, bitmap, quality)

	return writer.Bytes(), err
}

func clampScale(scale float64) float64 {
	if scale > 1 {
		return 1
	}

	return scale
}

func roundScale(dim int, scale float64) int {
	return int(math.Round(float64(dim) * scale))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
