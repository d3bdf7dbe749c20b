package providers

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// supportedImageTypes is the set of media types every vendor accepts inline.
var supportedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// InlineImage is a decoded data-URI reference.
type InlineImage struct {
	// MediaType is the MIME type, e.g. "image/png"
	MediaType string

	// Data is the base64 payload, unchanged
	Data string
}

// ParseDataURI parses "data:<media-type>;base64,<payload>". It returns false
// for remote URLs, non-base64 URIs, unsupported media types and payloads
// that do not decode.
func ParseDataURI(uri string) (InlineImage, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return InlineImage{}, false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return InlineImage{}, false
	}

	mediaType, params, _ := strings.Cut(meta, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	if !supportedImageTypes[mediaType] || !strings.Contains(params, "base64") {
		return InlineImage{}, false
	}

	payload = strings.TrimSpace(payload)
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return InlineImage{}, false
	}

	return InlineImage{MediaType: mediaType, Data: payload}, true
}

// ImagePlaceholder is the text substituted for an image a vendor cannot take.
func ImagePlaceholder(uri string) string {
	kind := "unknown format"
	if rest, ok := strings.CutPrefix(uri, "data:"); ok {
		if mt, _, _ := strings.Cut(rest, ";"); mt != "" {
			kind = mt
		}
	} else if uri != "" {
		kind = "remote reference"
	}
	return fmt.Sprintf("[image omitted: %s]", kind)
}
