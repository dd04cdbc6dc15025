package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"medfilt/internal/models"
)

// Decode loads the image at path into an 8-bit interleaved buffer.
//
// Grayscale sources decode to one channel, opaque color sources to three
// (RGB) and everything else to four (non-premultiplied RGBA). Missing,
// unreadable and unsupported files are reported as ErrDecodeFailure.
func Decode(path string) (*models.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDecodeFailure, err)
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrDecodeFailure, filepath.Base(path), err)
	}

	return FromImage(src)
}

// FromImage converts a standard library image into a models.Image.
func FromImage(src image.Image) (*models.Image, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", models.ErrDecodeFailure)
	}

	channels := channelsOf(src)
	img, err := models.NewImage(width, height, channels)
	if err != nil {
		return nil, err
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := src.At(bounds.Min.X+x, bounds.Min.Y+y)
			i := (y*width + x) * channels
			switch channels {
			case 1:
				img.Pix[i] = color.GrayModel.Convert(c).(color.Gray).Y
			default:
				n := color.NRGBAModel.Convert(c).(color.NRGBA)
				img.Pix[i] = n.R
				img.Pix[i+1] = n.G
				img.Pix[i+2] = n.B
				if channels == 4 {
					img.Pix[i+3] = n.A
				}
			}
		}
	}

	return img, nil
}

// channelsOf picks the channel count that keeps all information in src.
func channelsOf(src image.Image) int {
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return 1
	}
	if o, ok := src.(interface{ Opaque() bool }); ok && o.Opaque() {
		return 3
	}
	return 4
}

// ToImage converts a models.Image into a standard library image suitable
// for encoding.
func ToImage(img *models.Image) (image.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, img.Width, img.Height)
	if img.Channels == 1 {
		gray := image.NewGray(rect)
		copy(gray.Pix, img.Pix)
		return gray, nil
	}
	if img.Channels != 3 && img.Channels != 4 {
		return nil, fmt.Errorf("%w: cannot encode %d channels", models.ErrInvalidArguments, img.Channels)
	}

	out := image.NewNRGBA(rect)
	for p := 0; p < img.Width*img.Height; p++ {
		s := img.Pix[p*img.Channels : (p+1)*img.Channels]
		d := out.Pix[p*4 : p*4+4]
		if img.Channels == 3 {
			d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff
		} else {
			copy(d, s)
		}
	}
	return out, nil
}

// Encode writes img to path as PNG regardless of the file's extension.
// Nothing is written unless encoding succeeds.
func Encode(path string, img *models.Image) error {
	std, err := ToImage(img)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, std); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
