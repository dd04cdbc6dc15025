package median

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"medfilt/internal/models"
)

// createTestImage fills an image with a deterministic pseudo-random pattern
func createTestImage(t *testing.T, width, height, channels int, seed int64) *models.Image {
	t.Helper()
	img, err := models.NewImage(width, height, channels)
	if err != nil {
		t.Fatalf("Failed to allocate test image: %v", err)
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// referenceMedian sorts the window around an interior pixel
func referenceMedian(img *models.Image, x, y, c, size int) uint8 {
	h := (size - 1) / 2
	var values []int
	for wy := y - h; wy <= y+h; wy++ {
		for wx := x - h; wx <= x+h; wx++ {
			values = append(values, int(img.At(wx, wy, c)))
		}
	}
	sort.Ints(values)
	return uint8(values[len(values)/2])
}

// TestInteriorMatchesSortedMedian compares every interior sample with a
// sort-based median of the same neighborhood
func TestInteriorMatchesSortedMedian(t *testing.T) {
	for _, tc := range []struct {
		size, channels int
	}{
		{3, 1}, {3, 3}, {5, 4}, {7, 2},
	} {
		img := createTestImage(t, 17, 13, tc.channels, int64(tc.size*10+tc.channels))
		out, err := Apply(img, tc.size)
		if err != nil {
			t.Fatalf("size %d: Apply failed: %v", tc.size, err)
		}

		h := (tc.size - 1) / 2
		for y := h; y < img.Height-h; y++ {
			for x := h; x < img.Width-h; x++ {
				for c := 0; c < tc.channels; c++ {
					want := referenceMedian(img, x, y, c, tc.size)
					if got := out.At(x, y, c); got != want {
						t.Fatalf("size %d channels %d: pixel (%d,%d,%d) = %d, expected %d",
							tc.size, tc.channels, x, y, c, got, want)
					}
				}
			}
		}
	}
}

// TestSize1IsIdentity verifies a width-1 window changes nothing
func TestSize1IsIdentity(t *testing.T) {
	img := createTestImage(t, 9, 6, 3, 7)
	out, err := Apply(img, 1)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff(img.Pix, out.Pix); diff != "" {
		t.Errorf("Identity filter changed samples (-want +got):\n%s", diff)
	}
}

// TestThreeByThreeEndToEnd checks a hand-derived result. With reflection
// the padded buffer is
//
//	5 4 5 6 5
//	2 1 2 3 2
//	5 4 5 6 5
//	8 7 8 9 8
//	5 4 5 6 5
//
// so the center window is 1..9 and every border window is read from above.
func TestThreeByThreeEndToEnd(t *testing.T) {
	img, _ := models.NewImage(3, 3, 1)
	copy(img.Pix, []uint8{1, 2, 3, 4, 5, 6, 7, 8, 9})

	out, err := Apply(img, 3)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if got := out.At(1, 1, 0); got != 5 {
		t.Errorf("Expected center pixel 5, got %d", got)
	}

	want := []uint8{
		4, 4, 5,
		5, 5, 5,
		5, 6, 6,
	}
	if diff := cmp.Diff(want, out.Pix); diff != "" {
		t.Errorf("Filtered image mismatch (-want +got):\n%s", diff)
	}
}

// TestChannelsAreIndependent puts noise in one channel only
func TestChannelsAreIndependent(t *testing.T) {
	img, _ := models.NewImage(5, 5, 2)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			img.Set(x, y, 0, 50)
			img.Set(x, y, 1, uint8(x*50))
		}
	}
	img.Set(2, 2, 0, 255) // impulse

	out, err := Apply(img, 3)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			if got := out.At(x, y, 0); got != 50 {
				t.Errorf("channel 0 at (%d,%d): expected impulse removed (50), got %d", x, y, got)
			}
			if x == 0 || x == 4 {
				continue // mirrored columns bend the ramp at the edges
			}
			if got := out.At(x, y, 1); got != uint8(x*50) {
				t.Errorf("channel 1 at (%d,%d): expected ramp %d preserved, got %d", x, y, x*50, got)
			}
		}
	}
}

// TestFilterReuseAcrossImages runs one Filter over images of different shapes
func TestFilterReuseAcrossImages(t *testing.T) {
	f, err := NewFilter(5)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	for i, dims := range [][3]int{{8, 8, 1}, {20, 11, 3}, {6, 9, 4}} {
		img := createTestImage(t, dims[0], dims[1], dims[2], int64(i))
		got, err := f.Apply(img)
		if err != nil {
			t.Fatalf("image %d: Apply failed: %v", i, err)
		}
		want, _ := Apply(img, 5)
		if diff := cmp.Diff(want.Pix, got.Pix); diff != "" {
			t.Errorf("image %d: reused filter diverged (-want +got):\n%s", i, diff)
		}
		if got.Width != dims[0] || got.Height != dims[1] || got.Channels != dims[2] {
			t.Errorf("image %d: expected %v geometry, got %dx%dx%d", i, dims, got.Width, got.Height, got.Channels)
		}
	}
}

// TestApplyErrors covers the fail-fast paths
func TestApplyErrors(t *testing.T) {
	if _, err := Apply(nil, 3); !errors.Is(err, models.ErrDecodeFailure) {
		t.Errorf("Expected ErrDecodeFailure for nil image, got %v", err)
	}
	if _, err := Apply(&models.Image{Width: 3, Height: 3, Channels: 1}, 3); !errors.Is(err, models.ErrDecodeFailure) {
		t.Errorf("Expected ErrDecodeFailure for empty buffer, got %v", err)
	}
	if _, err := NewFilter(4); !errors.Is(err, models.ErrInvalidArguments) {
		t.Errorf("Expected ErrInvalidArguments for even width, got %v", err)
	}
	small := createTestImage(t, 2, 2, 1, 1)
	if _, err := Apply(small, 5); !errors.Is(err, models.ErrInvalidArguments) {
		t.Errorf("Expected ErrInvalidArguments for undersized image, got %v", err)
	}
}
