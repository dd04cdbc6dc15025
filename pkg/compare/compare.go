// Package compare checks two directories of filtered images for equality,
// typically the output of a single worker run against a multi-worker run.
package compare

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"medfilt/internal/models"
	"medfilt/pkg/imageio"
)

// FileDiff describes one image that differs between the two directories.
type FileDiff struct {
	Name string

	// Shape is set when the dimensions or channel counts differ; the
	// sample statistics are then left zero.
	Shape string

	// Differing is the number of samples that are not equal
	Differing int
	Samples   int

	// RMSE is the root mean square error over all samples
	RMSE float64
}

func (d FileDiff) String() string {
	if d.Shape != "" {
		return fmt.Sprintf("%s: shape mismatch (%s)", d.Name, d.Shape)
	}
	return fmt.Sprintf("%s: %d of %d samples differ, rmse %.4f", d.Name, d.Differing, d.Samples, d.RMSE)
}

// Report is the outcome of comparing two directories.
type Report struct {
	// Compared counts the images present in both directories
	Compared int

	// Missing lists reference images with no counterpart
	Missing []string

	Diffs []FileDiff
}

// Correct reports whether every reference image has an identical counterpart.
func (r *Report) Correct() bool {
	return len(r.Missing) == 0 && len(r.Diffs) == 0
}

// Dirs compares every .png file in want with the file of the same name in
// got. Files in got without a counterpart in want are ignored.
func Dirs(want, got string) (*Report, error) {
	names, err := imageio.List(want)
	if err != nil {
		return nil, err
	}
	if err := imageio.CheckDir(got); err != nil {
		return nil, err
	}

	report := &Report{}
	for _, name := range names {
		if !strings.EqualFold(filepath.Ext(name), ".png") {
			continue
		}

		ref, err := imageio.Decode(filepath.Join(want, name))
		if err != nil {
			return nil, err
		}

		other := filepath.Join(got, name)
		if _, err := os.Stat(other); errors.Is(err, os.ErrNotExist) {
			report.Missing = append(report.Missing, name)
			continue
		}
		img, err := imageio.Decode(other)
		if err != nil {
			return nil, err
		}

		report.Compared++
		if diff, same := Images(ref, img); !same {
			diff.Name = name
			report.Diffs = append(report.Diffs, diff)
		}
	}
	return report, nil
}

// Images compares two decoded images sample by sample.
func Images(a, b *models.Image) (FileDiff, bool) {
	if a.Width != b.Width || a.Height != b.Height || a.Channels != b.Channels {
		return FileDiff{
			Shape: fmt.Sprintf("%dx%dx%d vs %dx%dx%d",
				a.Width, a.Height, a.Channels, b.Width, b.Height, b.Channels),
		}, false
	}

	diff := FileDiff{Samples: len(a.Pix)}
	if diff.Samples == 0 {
		return diff, true
	}

	av := make([]float64, len(a.Pix))
	bv := make([]float64, len(b.Pix))
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			diff.Differing++
		}
		av[i] = float64(a.Pix[i])
		bv[i] = float64(b.Pix[i])
	}
	if diff.Differing == 0 {
		return diff, true
	}

	diff.RMSE = floats.Distance(av, bv, 2) / math.Sqrt(float64(diff.Samples))
	return diff, false
}
