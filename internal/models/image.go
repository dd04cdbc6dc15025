package models

import (
	"fmt"
	"math"
)

// MaxSamples caps the number of 8-bit samples a single buffer may hold.
// Anything larger is reported as ErrAllocationFailure instead of letting
// the runtime abort the worker.
const MaxSamples = math.MaxInt32

// Image is a decoded raster held as a flat, row-major buffer of 8-bit
// samples. Channels are interleaved per pixel, so the sample for channel c
// of pixel (x, y) lives at Pix[(y*Width+x)*Channels+c].
type Image struct {
	// Pix holds Width*Height*Channels samples
	Pix []uint8

	// Width is the number of pixels per row
	Width int

	// Height is the number of rows
	Height int

	// Channels is the number of interleaved samples per pixel
	// (1 gray, 3 RGB, 4 RGBA when decoded; the filter accepts any count)
	Channels int
}

// NewImage allocates a zeroed image with the given geometry.
func NewImage(width, height, channels int) (*Image, error) {
	n, err := SampleCount(width, height, channels)
	if err != nil {
		return nil, err
	}
	return &Image{
		Pix:      make([]uint8, n),
		Width:    width,
		Height:   height,
		Channels: channels,
	}, nil
}

// SampleCount returns width*height*channels, refusing geometries that
// overflow or exceed MaxSamples.
func SampleCount(width, height, channels int) (int, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return 0, fmt.Errorf("%w: image geometry %dx%dx%d", ErrInvalidArguments, width, height, channels)
	}
	if width > math.MaxInt/height || width*height > math.MaxInt/channels {
		return 0, fmt.Errorf("%w: %dx%dx%d samples overflow", ErrAllocationFailure, width, height, channels)
	}
	n := width * height * channels
	if n > MaxSamples {
		return 0, fmt.Errorf("%w: %d samples exceeds limit of %d", ErrAllocationFailure, n, MaxSamples)
	}
	return n, nil
}

// Stride returns the number of samples in one row.
func (img *Image) Stride() int {
	return img.Width * img.Channels
}

// Empty reports whether the image holds no usable data.
func (img *Image) Empty() bool {
	return img == nil || img.Width <= 0 || img.Height <= 0 || img.Channels <= 0 || len(img.Pix) == 0
}

// Validate checks the buffer length invariant.
func (img *Image) Validate() error {
	if img.Empty() {
		return fmt.Errorf("%w: empty image", ErrDecodeFailure)
	}
	if want := img.Width * img.Height * img.Channels; len(img.Pix) != want {
		return fmt.Errorf("%w: buffer holds %d samples, want %d", ErrInvalidArguments, len(img.Pix), want)
	}
	return nil
}

// At returns the sample of channel c at pixel (x, y).
func (img *Image) At(x, y, c int) uint8 {
	return img.Pix[(y*img.Width+x)*img.Channels+c]
}

// Set stores the sample of channel c at pixel (x, y).
func (img *Image) Set(x, y, c int, v uint8) {
	img.Pix[(y*img.Width+x)*img.Channels+c] = v
}

// Row returns the samples of row y without copying.
func (img *Image) Row(y int) []uint8 {
	stride := img.Stride()
	return img.Pix[y*stride : (y+1)*stride]
}
