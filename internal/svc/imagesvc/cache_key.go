package imagesvc

import (
	"strconv"
	"strings"

	"github.com/mkrupp/mediakit/internal/domain"
)

// DeriveCacheKey maps an object key and its transform options onto the key
// of the cached derivative. The mapping is deterministic: equal inputs
// always yield the same key, so repeated requests hit the same cache entry.
//
// The key is built from dash-joined segments:
//
//	transformed/<key>[-<w|auto>x<h|auto>]-q<q>[-<format>]-<fit>
//
// The dimension segment is only present when at least one dimension is
// requested; an unset axis reads "auto". The format segment is only present
// when an explicit output format is set.
func DeriveCacheKey(key domain.ObjectKey, opts domain.TransformOptions) domain.ObjectKey {
	segments := []string{"transformed/" + string(key)}

	if opts.Width > 0 || opts.Height > 0 {
		segments = append(segments, dimensionSegment(opts.Width)+"x"+dimensionSegment(opts.Height))
	}

	segments = append(segments, "q"+strconv.Itoa(opts.Quality))

	if opts.Format != domain.FormatKeep {
		segments = append(segments, string(opts.Format))
	}

	segments = append(segments, string(opts.Fit))

	return domain.ObjectKey(strings.Join(segments, "-"))
}

func dimensionSegment(dim int) string {
	if dim <= 0 {
		return "auto"
	}

	return strconv.Itoa(dim)
}
