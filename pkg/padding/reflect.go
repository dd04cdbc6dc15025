// Package padding extends image buffers past their edges so that every
// filter window centered on a real pixel stays inside the buffer.
package padding

import (
	"fmt"

	"medfilt/internal/models"
)

// HalfWidth returns (size-1)/2, the border thickness a size×size window needs.
func HalfWidth(size int) int {
	return (size - 1) / 2
}

// CheckSize verifies that size is a usable filter width for img: odd,
// positive, and with h = (size-1)/2 strictly less than both the image
// width and height so that every reflected row and column exists.
func CheckSize(img *models.Image, size int) error {
	if size < 1 || size%2 == 0 {
		return fmt.Errorf("%w: filter width must be an odd positive integer, got %d", models.ErrInvalidArguments, size)
	}
	h := HalfWidth(size)
	if img.Width <= h || img.Height <= h {
		return fmt.Errorf("%w: %dx%d image is too small for a %dx%d window",
			models.ErrInvalidArguments, img.Width, img.Height, size, size)
	}
	return nil
}

// Reflect returns a copy of img grown by h = (size-1)/2 samples on every
// side, with the border filled by mirroring across each edge without
// repeating the edge sample itself.
//
// Rows are mirrored first into the interior columns of the new buffer. The
// left and right borders are then mirrored from that same buffer across all
// of its rows, so the four corners end up as a column reflection of the
// reflected rows.
func Reflect(img *models.Image, size int) (*models.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if err := CheckSize(img, size); err != nil {
		return nil, err
	}

	h := HalfWidth(size)
	rows, ch := img.Height, img.Channels
	out, err := models.NewImage(img.Width+2*h, img.Height+2*h, ch)
	if err != nil {
		return nil, err
	}

	srcStride := img.Stride()
	dstStride := out.Stride()
	colOffset := h * ch

	// interior returns the slice of padded row i that lines up with the source
	interior := func(i int) []uint8 {
		start := i*dstStride + colOffset
		return out.Pix[start : start+srcStride]
	}

	// top border: padded row i takes source row h-i
	for i := 0; i < h; i++ {
		copy(interior(i), img.Row(h-i))
	}

	// bottom border: padded row rows+h holds source row rows-2, and so on
	for i := rows + h; i < rows+2*h; i++ {
		copy(interior(i), img.Row(2*(rows-1)-(i-h)))
	}

	for i := 0; i < rows; i++ {
		copy(interior(i+h), img.Row(i))
	}

	right := img.Width + h
	for i := 0; i < out.Height; i++ {
		row := out.Pix[i*dstStride : (i+1)*dstStride]
		for c := 0; c < h; c++ {
			src := (2*h - c) * ch
			copy(row[c*ch:(c+1)*ch], row[src:src+ch])
		}
		for c := right; c < out.Width; c++ {
			src := (2*(right-1) - c) * ch
			copy(row[c*ch:(c+1)*ch], row[src:src+ch])
		}
	}

	return out, nil
}
