package batch

import (
	"fmt"
	"os"
	"time"

	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Summary aggregates the results of every worker of a run.
type Summary struct {
	RunID     string `yaml:"runId"`
	InputDir  string `yaml:"inputDir"`
	OutputDir string `yaml:"outputDir"`
	Size      int    `yaml:"size"`
	Workers   int    `yaml:"workers"`

	// Images is the count the group partitioned
	Images int `yaml:"images"`

	// Processed is the number of filtered files written
	Processed int `yaml:"processed"`

	// Unprocessed names the files owned by failed workers that were never written
	Unprocessed []string `yaml:"unprocessed,omitempty"`

	// FailedRanks lists the workers that stopped on an error
	FailedRanks []int    `yaml:"failedRanks,omitempty"`
	Errors      []string `yaml:"errors,omitempty"`

	// ElapsedSeconds is the longest barrier-to-barrier time of any worker
	ElapsedSeconds float64 `yaml:"elapsedSeconds"`

	// MeanSeconds and StdDevSeconds describe the per-image processing time
	MeanSeconds   float64 `yaml:"meanSeconds"`
	StdDevSeconds float64 `yaml:"stdDevSeconds"`

	FinishedAt time.Time `yaml:"finishedAt"`
}

// Failed reports whether any worker stopped on an error.
func (s Summary) Failed() bool {
	return len(s.FailedRanks) > 0
}

// Summarize folds worker results into a Summary.
func Summarize(runID string, params *Params, results []Result) Summary {
	s := Summary{
		RunID:      runID,
		InputDir:   params.InputDir,
		OutputDir:  params.OutputDir,
		Size:       params.Size,
		Workers:    len(results),
		FinishedAt: time.Now().UTC(),
	}

	var seconds []float64
	for _, r := range results {
		if r.Total > s.Images {
			s.Images = r.Total
		}
		s.Processed += len(r.Outputs)
		if e := r.Elapsed.Seconds(); e > s.ElapsedSeconds {
			s.ElapsedSeconds = e
		}
		for _, d := range r.Durations {
			seconds = append(seconds, d.Seconds())
		}
		if r.Err != nil {
			s.FailedRanks = append(s.FailedRanks, r.Rank)
			s.Errors = append(s.Errors, fmt.Sprintf("worker %d: %v", r.Rank, r.Err))
			s.Unprocessed = append(s.Unprocessed, r.Skipped...)
		}
	}

	if len(seconds) > 0 {
		s.MeanSeconds = stat.Mean(seconds, nil)
	}
	if len(seconds) > 1 {
		s.StdDevSeconds = stat.StdDev(seconds, nil)
	}
	return s
}

// WriteReport saves the summary as YAML.
func WriteReport(path string, s Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}
