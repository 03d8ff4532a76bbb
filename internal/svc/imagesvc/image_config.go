package imagesvc

// ImageConfig holds configuration parameters for the image service.
type ImageConfig struct {
	// Interpolator specifies the image scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"catmullrom"`

	// IngestMaxDimension caps the longest edge of ingested images, in pixels.
	// Default is 2000.
	IngestMaxDimension int `env:"INGEST_MAX_DIMENSION" default:"2000"`

	// IngestQuality is the encode quality used when re-encoding ingested images.
	// Default is 80.
	IngestQuality int `env:"INGEST_QUALITY" default:"80"`

	// MaxImageSize is the maximum allowed upload size for images, in bytes.
	// Default is 5MB.
	MaxImageSize int64 `env:"MAX_IMAGE_SIZE" default:"5242880"`

	// MaxVideoSize is the maximum allowed upload size for videos, in bytes.
	// Default is 100MB.
	MaxVideoSize int64 `env:"MAX_VIDEO_SIZE" default:"104857600"`
}
