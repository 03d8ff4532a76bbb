package imagesvc

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/gen2brain/avif"
	"github.com/gen2brain/webp"

	"github.com/mkrupp/mediakit/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeGIF  = "image/gif"
	MIMETypeWebP = "image/webp"
	MIMETypeAVIF = "image/avif"
)

const avifEncodeSpeed = 8

//nolint:gochecknoglobals
var (
	// transformableTypes enumerates the content types the transform engine
	// accepts. Everything else (videos in particular) bypasses the engine
	// and is streamed through untouched.
	transformableTypes = map[string]bool{
		MIMETypeJPEG: true,
		MIMETypePNG:  true,
		MIMETypeGIF:  true,
		MIMETypeWebP: true,
		MIMETypeAVIF: true,
	}

	imageDecoders = map[string]func(io.Reader) (image.Image, error){
		MIMETypeJPEG: jpeg.Decode,
		MIMETypePNG:  png.Decode,
		MIMETypeGIF:  gif.Decode,
		MIMETypeWebP: webp.Decode,
		MIMETypeAVIF: avif.Decode,
	}

	// formatEncoders take an encode quality in [1,100]. PNG is lossless;
	// its quality argument is accepted but the compression level is pinned
	// at maximum.
	formatEncoders = map[domain.Format]func(io.Writer, image.Image, int) error{
		domain.FormatJPEG: func(w io.Writer, img image.Image, quality int) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
		},
		domain.FormatPNG: func(w io.Writer, img image.Image, _ int) error {
			encoder := png.Encoder{CompressionLevel: png.BestCompression} //nolint:exhaustruct

			return encoder.Encode(w, img)
		},
		domain.FormatWebP: func(w io.Writer, img image.Image, quality int) error {
			return webp.Encode(w, img, webp.Options{Quality: quality}) //nolint:exhaustruct
		},
		domain.FormatAVIF: func(w io.Writer, img image.Image, quality int) error {
			return avif.Encode(w, img, avif.Options{Quality: quality, Speed: avifEncodeSpeed}) //nolint:exhaustruct
		},
	}

	// sourceFormats maps a source content type to the output format used
	// when no explicit format is requested. GIFs re-encode as JPEG since
	// the engine only handles single frames.
	sourceFormats = map[string]domain.Format{
		MIMETypeJPEG: domain.FormatJPEG,
		MIMETypePNG:  domain.FormatPNG,
		MIMETypeWebP: domain.FormatWebP,
		MIMETypeAVIF: domain.FormatAVIF,
		MIMETypeGIF:  domain.FormatJPEG,
	}

	formatMIMETypes = map[domain.Format]string{
		domain.FormatJPEG: MIMETypeJPEG,
		domain.FormatPNG:  MIMETypePNG,
		domain.FormatWebP: MIMETypeWebP,
		domain.FormatAVIF: MIMETypeAVIF,
	}

	imageUploadTypes = map[string]bool{
		MIMETypeJPEG: true,
		MIMETypePNG:  true,
		MIMETypeGIF:  true,
		MIMETypeWebP: true,
		MIMETypeAVIF: true,
	}

	videoUploadTypes = map[string]bool{
		"video/mp4":       true,
		"video/webm":      true,
		"video/quicktime": true,
	}
)

func getDecoderByType(mimeType string) (func(io.Reader) (image.Image, error), error) {
	decoder, ok := imageDecoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMIMEType, mimeType)
	}

	return decoder, nil
}

func getEncoderByFormat(format domain.Format) (func(io.Writer, image.Image, int) error, error) {
	encoder, ok := formatEncoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMIMEType, format)
	}

	return encoder, nil
}

// outputFormatForType resolves the output format for a source content type
// when the request leaves the format unspecified. Unmapped types fall back
// to JPEG.
func outputFormatForType(mimeType string) domain.Format {
	if format, ok := sourceFormats[mimeType]; ok {
		return format
	}

	return domain.FormatJPEG
}
