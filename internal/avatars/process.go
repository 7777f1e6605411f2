// Package avatars stores profile avatar images: uploads are validated,
// downscaled, re-encoded as JPEG, and written to S3-compatible object storage;
// reads hand out short-lived presigned URLs instead of proxying bytes.
package avatars

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register the PNG decoder for image.Decode
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// maxDimension bounds the stored avatar's width and height.
	maxDimension = 512

	jpegQuality = 85

	// maxUploadBytes bounds how much of an upload is read before decoding.
	maxUploadBytes = 8 << 20
)

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// processImage validates an uploaded image by sniffing its bytes, downscales
// it to fit maxDimension, and re-encodes it as JPEG. The client-supplied
// content type is never trusted.
func processImage(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes))
	if err != nil {
		return nil, fmt.Errorf("avatar read error: %w", err)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("unsupported avatar format %s: only JPEG and PNG are accepted", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("avatar decode error: %w", err)
	}

	img = downscale(img, maxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("avatar encode error: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale resizes img so neither dimension exceeds maxDim, preserving the
// aspect ratio. Images already within bounds pass through untouched.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
