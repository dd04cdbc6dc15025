package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"medfilt/internal/models"
	"medfilt/pkg/group"
	"medfilt/pkg/imageio"
	"medfilt/pkg/median"
)

// createTestDirs returns empty input and output directories
func createTestDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	in, out := filepath.Join(root, "input"), filepath.Join(root, "output")
	for _, d := range []string{in, out} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", d, err)
		}
	}
	return in, out
}

// createTestImages writes n noisy PNGs named img00.png, img01.png, ...
func createTestImages(t *testing.T, dir string, n int) []string {
	t.Helper()
	var names []string
	for i := 0; i < n; i++ {
		img, err := models.NewImage(12+i, 9, []int{1, 3, 4}[i%3])
		if err != nil {
			t.Fatalf("Failed to allocate image: %v", err)
		}
		for p := range img.Pix {
			img.Pix[p] = uint8((p*37 + i*11) % 256)
		}
		name := fmt.Sprintf("img%02d.png", i)
		if err := imageio.Encode(filepath.Join(dir, name), img); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		names = append(names, name)
	}
	return names
}

// assertFiltered compares an output file with filtering its input directly
func assertFiltered(t *testing.T, in, out, name string, size int) {
	t.Helper()
	src, err := imageio.Decode(filepath.Join(in, name))
	if err != nil {
		t.Fatalf("Failed to decode input %s: %v", name, err)
	}
	want, err := median.Apply(src, size)
	if err != nil {
		t.Fatalf("Failed to filter %s: %v", name, err)
	}
	got, err := imageio.Decode(filepath.Join(out, name))
	if err != nil {
		t.Fatalf("Missing or unreadable output %s: %v", name, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("%s: output differs from direct filtering (-want +got):\n%s", name, diff)
	}
}

// TestRunLocalFiltersEveryFile splits seven images across three workers
func TestRunLocalFiltersEveryFile(t *testing.T) {
	in, out := createTestDirs(t)
	names := createTestImages(t, in, 7)
	params := &Params{InputDir: in, OutputDir: out, Size: 3, Count: CountFromListing}

	var stdout bytes.Buffer
	results, err := RunLocal(context.Background(), params, 3, nil, &stdout)
	if err != nil {
		t.Fatalf("RunLocal failed: %v", err)
	}

	for _, name := range names {
		assertFiltered(t, in, out, name, 3)
	}

	wantSpans := [][2]int{{0, 3}, {3, 5}, {5, 7}}
	for rank, r := range results {
		if r.Span.Start != wantSpans[rank][0] || r.Span.End != wantSpans[rank][1] {
			t.Errorf("rank %d: expected span %v, got %v", rank, wantSpans[rank], r.Span)
		}
		if len(r.Outputs) != r.Span.Len() {
			t.Errorf("rank %d: expected %d outputs, got %d", rank, r.Span.Len(), len(r.Outputs))
		}
		if r.Total != 7 {
			t.Errorf("rank %d: expected total 7, got %d", rank, r.Total)
		}
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 1 {
		t.Errorf("Expected one elapsed-time line, got %q", stdout.String())
	}
}

// TestRunLocalMoreWorkersThanFiles leaves trailing workers idle
func TestRunLocalMoreWorkersThanFiles(t *testing.T) {
	in, out := createTestDirs(t)
	names := createTestImages(t, in, 2)

	results, err := RunLocal(context.Background(), &Params{InputDir: in, OutputDir: out, Size: 5, Count: CountFromListing}, 4, nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("RunLocal failed: %v", err)
	}
	for _, name := range names {
		assertFiltered(t, in, out, name, 5)
	}
	for _, r := range results[2:] {
		if !r.Span.Empty() || len(r.Outputs) != 0 {
			t.Errorf("rank %d: expected no work, got span %v and %d outputs", r.Rank, r.Span, len(r.Outputs))
		}
	}
}

// TestRunLocalCountOverride processes only the first Count files
func TestRunLocalCountOverride(t *testing.T) {
	in, out := createTestDirs(t)
	names := createTestImages(t, in, 4)

	_, err := RunLocal(context.Background(), &Params{InputDir: in, OutputDir: out, Size: 3, Count: 2}, 2, nil, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("RunLocal failed: %v", err)
	}

	for i, name := range names {
		_, statErr := os.Stat(filepath.Join(out, name))
		if i < 2 && statErr != nil {
			t.Errorf("Expected output for %s: %v", name, statErr)
		}
		if i >= 2 && !os.IsNotExist(statErr) {
			t.Errorf("Expected no output for %s beyond the count", name)
		}
	}
}

// TestRunLocalZeroCount processes nothing when zero images are requested
func TestRunLocalZeroCount(t *testing.T) {
	in, out := createTestDirs(t)
	createTestImages(t, in, 3)

	var stdout bytes.Buffer
	results, err := RunLocal(context.Background(), &Params{InputDir: in, OutputDir: out, Size: 3, Count: 0}, 2, nil, &stdout)
	if err != nil {
		t.Fatalf("RunLocal failed: %v", err)
	}
	for _, r := range results {
		if r.Total != 0 || !r.Span.Empty() || len(r.Outputs) != 0 {
			t.Errorf("rank %d: expected no work, got total %d span %v", r.Rank, r.Total, r.Span)
		}
	}
	if n, _ := imageio.Count(out); n != 0 {
		t.Errorf("Expected no outputs, got %d", n)
	}
	if stdout.Len() == 0 {
		t.Error("Expected the elapsed time to be printed")
	}
}

// TestRunLocalDecodeFailure stops only the worker owning the bad file
func TestRunLocalDecodeFailure(t *testing.T) {
	in, out := createTestDirs(t)
	createTestImages(t, in, 4) // img00..img03
	if err := os.WriteFile(filepath.Join(in, "img01b.png"), []byte("garbage"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}
	// listing: img00 img01 img01b img02 img03 -> rank 0 owns the first three

	params := &Params{InputDir: in, OutputDir: out, Size: 3, Count: CountFromListing}
	results, err := RunLocal(context.Background(), params, 2, nil, &bytes.Buffer{})
	if !errors.Is(err, models.ErrDecodeFailure) {
		t.Fatalf("Expected ErrDecodeFailure, got %v", err)
	}
	if n := len(multierr.Errors(err)); n != 1 {
		t.Errorf("Expected exactly one worker error, got %d", n)
	}

	if _, statErr := os.Stat(filepath.Join(out, "img01b.png")); !os.IsNotExist(statErr) {
		t.Errorf("Expected no output for the corrupt file")
	}
	for _, name := range []string{"img00.png", "img01.png", "img02.png", "img03.png"} {
		assertFiltered(t, in, out, name, 3)
	}

	if diff := cmp.Diff([]string{"img01b.png"}, results[0].Skipped); diff != "" {
		t.Errorf("Skipped mismatch (-want +got):\n%s", diff)
	}
	if results[1].Err != nil {
		t.Errorf("Expected rank 1 to succeed, got %v", results[1].Err)
	}

	s := Summarize("test", params, results)
	if !s.Failed() || len(s.FailedRanks) != 1 || s.FailedRanks[0] != 0 {
		t.Errorf("Expected rank 0 reported as failed, got %v", s.FailedRanks)
	}
	if s.Processed != 4 || s.Images != 5 {
		t.Errorf("Expected 4 of 5 images processed, got %d of %d", s.Processed, s.Images)
	}
}

// TestRunLocalMissingDirectory fails every worker without hanging
func TestRunLocalMissingDirectory(t *testing.T) {
	_, out := createTestDirs(t)
	params := &Params{InputDir: filepath.Join(out, "absent"), OutputDir: out, Size: 3, Count: CountFromListing}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := RunLocal(ctx, params, 3, nil, &bytes.Buffer{})
	if !errors.Is(err, models.ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound, got %v", err)
	}

	in, _ := createTestDirs(t)
	params = &Params{InputDir: in, OutputDir: filepath.Join(in, "absent"), Size: 3, Count: CountFromListing}
	if _, err := RunLocal(ctx, params, 2, nil, &bytes.Buffer{}); !errors.Is(err, models.ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound for output, got %v", err)
	}
}

// TestRunLocalInvalidSize rejects an even window
func TestRunLocalInvalidSize(t *testing.T) {
	in, out := createTestDirs(t)
	_, err := RunLocal(context.Background(), &Params{InputDir: in, OutputDir: out, Size: 4, Count: CountFromListing}, 2, nil, &bytes.Buffer{})
	if !errors.Is(err, models.ErrInvalidArguments) {
		t.Errorf("Expected ErrInvalidArguments, got %v", err)
	}
}

// TestWorkersOverRedis runs the same protocol with separate Redis members
func TestWorkersOverRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	in, out := createTestDirs(t)
	names := createTestImages(t, in, 5)
	params := &Params{InputDir: in, OutputDir: out, Size: 3, Count: CountFromListing}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	const size = 2
	var wg sync.WaitGroup
	var stdout [size]bytes.Buffer
	errs := make([]error, size)
	for rank := 0; rank < size; rank++ {
		g, err := group.NewRedis(ctx, group.RedisOptions{Addr: srv.Addr(), Job: "batch", Size: size, Rank: rank})
		if err != nil {
			t.Fatalf("NewRedis failed: %v", err)
		}
		defer g.Close()

		wg.Add(1)
		go func(rank int, g group.Group) {
			defer wg.Done()
			w := NewWorker(params, g, nil)
			w.SetOutput(&stdout[rank])
			_, errs[rank] = w.Run(ctx)
		}(rank, g)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			t.Errorf("rank %d failed: %v", rank, err)
		}
	}
	for _, name := range names {
		assertFiltered(t, in, out, name, 3)
	}
	if stdout[0].Len() == 0 || stdout[1].Len() != 0 {
		t.Errorf("Expected only rank 0 to print elapsed time, got %q and %q", stdout[0].String(), stdout[1].String())
	}
}

// TestSummarize computes duration statistics
func TestSummarize(t *testing.T) {
	results := []Result{
		{Rank: 0, Total: 3, Outputs: []string{"a", "b"}, Durations: []time.Duration{time.Second, 3 * time.Second}, Elapsed: 4 * time.Second},
		{Rank: 1, Total: 3, Outputs: []string{"c"}, Durations: []time.Duration{2 * time.Second}, Elapsed: 2 * time.Second},
	}
	s := Summarize("run", &Params{Size: 3, Count: CountFromListing}, results)

	if s.Processed != 3 || s.Images != 3 || s.Workers != 2 {
		t.Errorf("Unexpected totals: %+v", s)
	}
	if s.MeanSeconds != 2 {
		t.Errorf("Expected mean 2s, got %v", s.MeanSeconds)
	}
	if s.StdDevSeconds != 1 {
		t.Errorf("Expected standard deviation 1s, got %v", s.StdDevSeconds)
	}
	if s.ElapsedSeconds != 4 {
		t.Errorf("Expected elapsed 4s, got %v", s.ElapsedSeconds)
	}
	if s.Failed() {
		t.Error("Expected no failure")
	}

	path := filepath.Join(t.TempDir(), "report.yaml")
	if err := WriteReport(path, s); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "runId: run") {
		t.Errorf("Report is missing the run ID:\n%s", data)
	}
}
