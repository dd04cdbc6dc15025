// Package median implements a square-window median filter over
// models.Image buffers. Each channel is filtered on its own.
package median

import (
	"fmt"

	"medfilt/internal/models"
	"medfilt/pkg/padding"
	"medfilt/pkg/selection"
)

// Filter applies a size×size median filter. A Filter owns one window
// buffer that is reused for every window of every image it processes, so a
// worker should keep a single Filter for its whole file range. A Filter is
// not safe for concurrent use.
type Filter struct {
	size   int
	window []uint8
}

// NewFilter creates a filter for the given odd, positive window width.
func NewFilter(size int) (*Filter, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("%w: filter width must be an odd positive integer, got %d", models.ErrInvalidArguments, size)
	}
	return &Filter{
		size:   size,
		window: make([]uint8, size*size),
	}, nil
}

// Size returns the window width.
func (f *Filter) Size() int {
	return f.size
}

// Apply returns the filtered copy of img. img itself is not modified.
//
// An empty image means decoding produced nothing usable and is reported as
// ErrDecodeFailure; images not larger than the half-width in either
// dimension are rejected with ErrInvalidArguments.
func (f *Filter) Apply(img *models.Image) (*models.Image, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: no image data to filter", models.ErrDecodeFailure)
	}

	padded, err := padding.Reflect(img, f.size)
	if err != nil {
		return nil, err
	}

	out, err := models.NewImage(img.Width, img.Height, img.Channels)
	if err != nil {
		return nil, err
	}

	size, ch := f.size, img.Channels
	stride := padded.Stride()
	rank := (size*size - 1) / 2

	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			// window top-left corner in the padded buffer is (x, y)
			base := y*stride + x*ch
			for c := 0; c < ch; c++ {
				n := 0
				for wy := 0; wy < size; wy++ {
					off := base + wy*stride + c
					for wx := 0; wx < size; wx++ {
						f.window[n] = padded.Pix[off+wx*ch]
						n++
					}
				}
				out.Pix[(y*img.Width+x)*ch+c] = selection.Select(f.window, rank)
			}
		}
	}

	return out, nil
}

// Apply filters img with a one-off Filter of the given width.
func Apply(img *models.Image, size int) (*models.Image, error) {
	f, err := NewFilter(size)
	if err != nil {
		return nil, err
	}
	return f.Apply(img)
}
